package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"eventFlow/internal/ai"
	"eventFlow/internal/content"
)

// AIHandler 提供区块文案与图片的 AI 生成接口。
type AIHandler struct {
	client ai.Client
	logger *slog.Logger
}

func NewAIHandler(client ai.Client, logger *slog.Logger) *AIHandler {
	return &AIHandler{client: client, logger: logger}
}

type generateBlockRequest struct {
	BlockType        string `json:"block_type" binding:"required"`
	EventName        string `json:"event_name"`
	EventDescription string `json:"event_description"`
	Prompt           string `json:"prompt"`
}

type generateImageRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

type editImageRequest struct {
	Prompt   string `json:"prompt" binding:"required"`
	ImageURL string `json:"image_url" binding:"required"`
}

// GenerateBlockContent 为指定区块类型生成文案。生成失败时退回静态示例内容，
// 编辑器侧永远能拿到可用的区块。
func (h *AIHandler) GenerateBlockContent(c *gin.Context) {
	var req generateBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	blockType := content.BlockType(req.BlockType)
	generated, err := h.client.GenerateBlockContent(c.Request.Context(), blockType, req.EventName, req.EventDescription, req.Prompt)
	if err != nil {
		requestLogger(c, h.logger).Warn("ai block generation failed, using static content",
			slog.String("block_type", req.BlockType), slog.Any("error", err))
		generated = ai.StaticContent(blockType)
	}
	if generated == nil {
		BadRequest(c, "unsupported block type")
		return
	}

	c.JSON(http.StatusOK, gin.H{"content": generated})
}

// GenerateImage 按描述生成图片，返回可直接落地的 URL 或 data URI。
func (h *AIHandler) GenerateImage(c *gin.Context) {
	var req generateImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	imageURL, err := h.client.GenerateImage(c.Request.Context(), req.Prompt)
	if err != nil {
		requestLogger(c, h.logger).Error("ai image generation failed", slog.Any("error", err))
		Internal(c, "image generation failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"image_url": imageURL})
}

// EditImage 基于已有图片按指令修图。
func (h *AIHandler) EditImage(c *gin.Context) {
	var req editImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	imageURL, err := h.client.EditImage(c.Request.Context(), req.Prompt, req.ImageURL)
	if err != nil {
		requestLogger(c, h.logger).Error("ai image edit failed", slog.Any("error", err))
		Internal(c, "image edit failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"image_url": imageURL})
}
