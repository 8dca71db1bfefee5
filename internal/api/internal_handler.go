package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"eventFlow/internal/content"
	"eventFlow/internal/database"
)

// InternalHandler 服务于 worker 的内部接口，不做用户鉴权，由共享密钥中间件保护。
type InternalHandler struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewInternalHandler(db *gorm.DB, logger *slog.Logger) *InternalHandler {
	return &InternalHandler{db: db, logger: logger}
}

// PreviewHTML 返回活动落地页的完整 HTML，草稿状态也可渲染，供截图任务使用。
func (h *InternalHandler) PreviewHTML(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		BadRequest(c, "invalid event id")
		return
	}

	var event database.Event
	if err := h.db.WithContext(c.Request.Context()).First(&event, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "event not found")
		} else {
			Internal(c, "failed to query event")
		}
		return
	}

	doc, err := content.Decode(event.Content)
	if err != nil {
		requestLogger(c, h.logger).Error("preview content decode failed",
			slog.Uint64("event_id", uint64(event.ID)), slog.Any("error", err))
		Internal(c, "failed to decode page content")
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(renderPublicPage(event, doc)))
}
