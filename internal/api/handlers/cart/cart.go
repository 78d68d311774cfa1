package cart

import (
	"errors"
	"net/http"

	cartService "budget-cart/internal/core/cart"
	"budget-cart/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler 購物車處理程序
type Handler struct {
	engine *cartService.Engine
	store  *cartService.Store
}

// NewHandler 創建購物車處理程序
func NewHandler(engine *cartService.Engine, store *cartService.Store) *Handler {
	return &Handler{engine: engine, store: store}
}

// SyncRequest 購物車同步請求
// Items 是商品 ID 對數量的期望值；Reset 為真時先清空快照再整份加入
type SyncRequest struct {
	UserID string         `json:"user_id" binding:"required"`
	Items  map[string]int `json:"items" binding:"required"`
	Reset  bool           `json:"reset"`
}

// HandleSync 將購物清單同步到使用者的零售商購物車
func (h *Handler) HandleSync(c *gin.Context) {
	requestID := common.RequestID(c)

	var req SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.LogWarn("請求格式無效",
			zap.Error(err),
			zap.String("request_id", requestID),
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	common.LogInfo("開始處理購物車同步請求",
		zap.String("request_id", requestID),
		zap.Int("item_count", len(req.Items)),
		zap.Bool("reset", req.Reset),
	)

	outcome, err := h.engine.Sync(c.Request.Context(), req.UserID, req.Items, req.Reset)
	if err != nil {
		common.LogError("購物車同步失敗",
			zap.Error(err),
			zap.String("request_id", requestID),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Cart sync failed"})
		return
	}

	// 需要重新授權不是錯誤：回 200，呼叫端依 state 分流
	c.JSON(http.StatusOK, outcome)
}

// ResumeRequest 同步回復請求
type ResumeRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Resume string `json:"resume" binding:"required"`
}

// HandleResume 授權完成後續跑剩餘項目
func (h *Handler) HandleResume(c *gin.Context) {
	var req ResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	outcome, err := h.engine.Resume(c.Request.Context(), req.UserID, req.Resume)
	if err != nil {
		var custom *common.CustomError
		if errors.As(err, &custom) {
			common.WriteErrorResponse(c, custom)
			return
		}
		common.LogError("購物車同步回復失敗", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Cart resume failed"})
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// HandleSnapshot 讀取本服務對使用者購物車的認知
func (h *Handler) HandleSnapshot(c *gin.Context) {
	userID := c.Param("userID")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing user id"})
		return
	}

	snap, err := h.store.Snapshot(c.Request.Context(), userID)
	if err != nil {
		common.LogError("快照讀取失敗",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Snapshot lookup failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"items":   snap,
	})
}
