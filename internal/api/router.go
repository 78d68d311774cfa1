package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	cartHandler "budget-cart/internal/api/handlers/cart"
	"budget-cart/internal/api/handlers/health"
	shoppingHandler "budget-cart/internal/api/handlers/shopping"
	"budget-cart/internal/api/middleware"
	"budget-cart/internal/core/ai/oracle"
	"budget-cart/internal/core/cache"
	cartService "budget-cart/internal/core/cart"
	"budget-cart/internal/core/catalog"
	"budget-cart/internal/core/pipeline"
	"budget-cart/internal/infrastructure/config"
	"budget-cart/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// 整條管線含多次外部呼叫，超時要給得比單一請求寬
	timeoutDuration = 120 * time.Second
	// 請求體大小限制 (1MB)，本服務沒有上傳需求
	maxBodySize = 1 << 20
)

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, cacheService *cache.Service) (*gin.Engine, error) {
	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	// 設置 gin 模式
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 創建路由引擎
	router := gin.New()

	// 註冊基礎中間件
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(requestid.New())

	// CORS 設置
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// 請求體大小限制
	router.Use(middleware.BodySizeLimit(maxBodySize))

	// 限流
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}

	common.LogInfo("Initializing services",
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
		zap.String("model", cfg.Oracle.Model),
		zap.Duration("timeout", timeoutDuration),
	)

	// 初始化分類服務與零售商目錄客戶端
	oracleClient := oracle.NewClient(&cfg.Oracle)

	krogerCatalog := catalog.NewKrogerClient(&cfg.Kroger, &cfg.Cache, cacheService, cfg.Search.MaxRetries)

	walmartCatalog, err := catalog.NewWalmartClient(&cfg.Walmart, cfg.Search.MaxRetries)
	if err != nil {
		common.LogError("Failed to initialize walmart client", zap.Error(err))
		return nil, fmt.Errorf("failed to initialize walmart client: %w", err)
	}

	// 初始化購物清單管線
	pipe := pipeline.NewPipeline(cfg, oracleClient, krogerCatalog, walmartCatalog, krogerCatalog, cacheService)

	// 初始化購物車同步
	cartStore := cartService.NewStore(cacheService)
	cartClient := cartService.NewKrogerCartClient(&cfg.Kroger)
	cartEngine := cartService.NewEngine(&cfg.Cart, cartStore, cartClient)

	// 全局中間件：設置超時和配置
	router.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeoutDuration)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Set("config", cfg)

		c.Next()

		if ctx.Err() == context.DeadlineExceeded {
			common.LogError("Request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", c.GetHeader("X-Request-ID")),
				zap.Duration("timeout", timeoutDuration),
			)
			c.JSON(http.StatusGatewayTimeout, gin.H{
				"error": "Request timeout",
				"code":  common.ErrCodeRequestTimeout,
				"details": gin.H{
					"timeout": timeoutDuration.String(),
				},
			})
			c.Abort()
			return
		}
	})

	// 健康檢查路由
	router.GET("/health", health.HealthCheck)
	router.GET("/ready", health.ReadinessCheck)
	router.GET("/live", health.LivenessCheck)

	// API 路由組
	api := router.Group("/api/v1")
	{
		shoppingInstance := shoppingHandler.NewHandler(pipe)
		cartInstance := cartHandler.NewHandler(cartEngine, cartStore)

		shoppingGroup := api.Group("/shopping")
		{
			// 由查詢字串產生購物清單
			shoppingGroup.POST("/list", shoppingInstance.HandleShoppingList)
		}

		cartGroup := api.Group("/cart")
		{
			// 同步購物清單到零售商購物車
			cartGroup.POST("/sync", cartInstance.HandleSync)

			// 授權完成後續跑剩餘項目
			cartGroup.POST("/resume", cartInstance.HandleResume)

			// 讀取本服務認知的購物車內容
			cartGroup.GET("/snapshot/:userID", cartInstance.HandleSnapshot)
		}
	}

	common.LogInfo("Router setup completed successfully",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
		zap.Duration("timeout", timeoutDuration),
		zap.Int64("max_body_size", maxBodySize),
	)

	return router, nil
}
