package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"eventFlow/internal/api/middleware"
	"eventFlow/internal/database"
	"eventFlow/internal/tasks"
)

// CampaignHandler 负责营销邮件活动的创建与查询，投递由 worker 执行。
type CampaignHandler struct {
	db          *gorm.DB
	asynqClient *asynq.Client
	logger      *slog.Logger
}

func NewCampaignHandler(db *gorm.DB, asynqClient *asynq.Client, logger *slog.Logger) *CampaignHandler {
	return &CampaignHandler{db: db, asynqClient: asynqClient, logger: logger}
}

type createCampaignRequest struct {
	Subject  string `json:"subject" binding:"required,max=255"`
	Body     string `json:"body" binding:"required"`
	Audience string `json:"audience" binding:"omitempty,oneof=registrations leads all"`
}

type campaignResponse struct {
	ID          uint      `json:"id"`
	EventID     uint      `json:"event_id"`
	Subject     string    `json:"subject"`
	Audience    string    `json:"audience"`
	Status      string    `json:"status"`
	SentCount   int       `json:"sent_count"`
	FailedCount int       `json:"failed_count"`
	CreatedAt   time.Time `json:"created_at"`
}

func newCampaignResponse(campaign database.Campaign) campaignResponse {
	return campaignResponse{
		ID:          campaign.ID,
		EventID:     campaign.EventID,
		Subject:     campaign.Subject,
		Audience:    campaign.Audience,
		Status:      campaign.Status,
		SentCount:   campaign.SentCount,
		FailedCount: campaign.FailedCount,
		CreatedAt:   campaign.CreatedAt,
	}
}

// ownedEventByParam 加载路径里的活动并校验归属。
func (h *CampaignHandler) ownedEventByParam(c *gin.Context) (database.Event, bool) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return database.Event{}, false
	}
	id, ok := idParam(c, "id")
	if !ok {
		BadRequest(c, "invalid event id")
		return database.Event{}, false
	}

	var event database.Event
	if err := h.db.WithContext(c.Request.Context()).First(&event, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "event not found")
		} else {
			Internal(c, "failed to query event")
		}
		return database.Event{}, false
	}
	if event.UserID != userID {
		Forbidden(c, "access denied")
		return database.Event{}, false
	}
	return event, true
}

// CreateCampaign 创建营销邮件并立即入队投递。
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	event, ok := h.ownedEventByParam(c)
	if !ok {
		return
	}

	var req createCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	audience := req.Audience
	if audience == "" {
		audience = "registrations"
	}

	campaign := database.Campaign{
		EventID:  event.ID,
		Subject:  strings.TrimSpace(req.Subject),
		Body:     req.Body,
		Audience: audience,
		Status:   "pending",
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&campaign).Error; err != nil {
		Internal(c, "failed to create campaign")
		return
	}

	if h.asynqClient != nil {
		correlationID := middleware.GetCorrelationID(c)
		task, err := tasks.NewEmailCampaignTask(campaign.ID, correlationID)
		if err == nil {
			_, err = h.asynqClient.EnqueueContext(c.Request.Context(), task, asynq.MaxRetry(2))
		}
		if err != nil {
			requestLogger(c, h.logger).Error("enqueue campaign task failed", slog.Any("error", err))
			Internal(c, "failed to enqueue campaign")
			return
		}
	}

	c.JSON(http.StatusCreated, newCampaignResponse(campaign))
}

// ListCampaigns 列出活动的营销邮件及投递结果。
func (h *CampaignHandler) ListCampaigns(c *gin.Context) {
	event, ok := h.ownedEventByParam(c)
	if !ok {
		return
	}

	var campaigns []database.Campaign
	if err := h.db.WithContext(c.Request.Context()).
		Where("event_id = ?", event.ID).
		Order("created_at DESC").
		Find(&campaigns).Error; err != nil {
		Internal(c, "failed to list campaigns")
		return
	}

	items := make([]campaignResponse, 0, len(campaigns))
	for _, campaign := range campaigns {
		items = append(items, newCampaignResponse(campaign))
	}
	c.JSON(http.StatusOK, items)
}
