package shopping

import (
	"net/http"

	"budget-cart/internal/core/pipeline"
	"budget-cart/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler 購物清單處理程序
type Handler struct {
	pipeline *pipeline.Pipeline
}

// NewHandler 創建購物清單處理程序
func NewHandler(p *pipeline.Pipeline) *Handler {
	return &Handler{pipeline: p}
}

// HandleShoppingList 由查詢字串產生購物清單
func (h *Handler) HandleShoppingList(c *gin.Context) {
	requestID := common.RequestID(c)

	common.LogInfo("開始處理購物清單請求",
		zap.String("request_id", requestID),
		zap.String("client_ip", c.ClientIP()),
	)

	var req pipeline.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		common.LogWarn("請求格式無效",
			zap.Error(err),
			zap.String("request_id", requestID),
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	resp, err := h.pipeline.Run(c.Request.Context(), req)
	if err != nil {
		common.LogError("購物清單管線執行失敗",
			zap.Error(err),
			zap.String("request_id", requestID),
		)
		common.WriteErrorResponse(c, common.ErrOracleUnavailable)
		return
	}

	c.JSON(http.StatusOK, resp)
}
