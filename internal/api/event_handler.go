package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"eventFlow/internal/analytics"
	"eventFlow/internal/api/middleware"
	"eventFlow/internal/content"
	"eventFlow/internal/database"
	"eventFlow/internal/storage"
	"eventFlow/internal/tasks"
)

// EventHandler 负责活动的增删改查与发布流程。
type EventHandler struct {
	db          *gorm.DB
	asynqClient *asynq.Client
	storage     *storage.Client
	tracker     *analytics.Tracker
	logger      *slog.Logger
	maxEvents   int
}

// NewEventHandler 构造 EventHandler。
func NewEventHandler(
	db *gorm.DB,
	asynqClient *asynq.Client,
	storageClient *storage.Client,
	tracker *analytics.Tracker,
	logger *slog.Logger,
	maxEvents int,
) *EventHandler {
	return &EventHandler{
		db:          db,
		asynqClient: asynqClient,
		storage:     storageClient,
		tracker:     tracker,
		logger:      logger,
		maxEvents:   maxEvents,
	}
}

type createEventRequest struct {
	Name        string     `json:"name" binding:"required,max=255"`
	Description string     `json:"description"`
	StartsAt    *time.Time `json:"starts_at"`
	Location    string     `json:"location"`
	TemplateID  *uint      `json:"template_id"`
}

type updateEventRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	StartsAt    *time.Time `json:"starts_at"`
	Location    *string    `json:"location"`
	Slug        *string    `json:"slug"`
}

type eventListItem struct {
	ID         uint       `json:"id"`
	Name       string     `json:"name"`
	Slug       string     `json:"slug"`
	Status     string     `json:"status"`
	StartsAt   *time.Time `json:"starts_at,omitempty"`
	Location   string     `json:"location,omitempty"`
	PreviewURL string     `json:"preview_url,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type eventResponse struct {
	ID          uint           `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Slug        string         `json:"slug"`
	Status      string         `json:"status"`
	StartsAt    *time.Time     `json:"starts_at,omitempty"`
	Location    string         `json:"location,omitempty"`
	Content     datatypes.JSON `json:"content"`
	PreviewURL  string         `json:"preview_url,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (h *EventHandler) newEventResponse(c *gin.Context, event database.Event) eventResponse {
	return eventResponse{
		ID:          event.ID,
		Name:        event.Name,
		Description: event.Description,
		Slug:        event.Slug,
		Status:      event.Status,
		StartsAt:    event.StartsAt,
		Location:    event.Location,
		Content:     event.Content,
		PreviewURL:  h.previewURL(c, event),
		CreatedAt:   event.CreatedAt,
		UpdatedAt:   event.UpdatedAt,
	}
}

// previewURL 优先用对象存储里的截图，回退到外链预览图。
func (h *EventHandler) previewURL(c *gin.Context, event database.Event) string {
	if event.PreviewObjectKey != "" && h.storage != nil {
		if url, err := h.storage.GeneratePresignedURL(c.Request.Context(), event.PreviewObjectKey, 15*time.Minute); err == nil {
			return url
		}
	}
	return event.PreviewImageURL
}

// CreateEvent 创建活动草稿，可选地从模板拷贝内容。
func (h *EventHandler) CreateEvent(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()

	var count int64
	if err := h.db.WithContext(ctx).
		Model(&database.Event{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		Internal(c, "failed to count events")
		return
	}
	if h.maxEvents > 0 && count >= int64(h.maxEvents) {
		Forbidden(c, "event limit reached")
		return
	}

	doc := content.NewDocument(req.Name)
	if req.TemplateID != nil {
		var template database.Template
		if err := h.db.WithContext(ctx).First(&template, *req.TemplateID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				NotFound(c, "template not found")
				return
			}
			Internal(c, "failed to query template")
			return
		}
		if template.UserID != userID && !template.IsPublic {
			Forbidden(c, "access denied")
			return
		}
		templateDoc, err := content.Decode(template.Content)
		if err != nil {
			Internal(c, "template content is corrupted")
			return
		}
		doc = templateDoc.Clone()
		doc.Name = req.Name
	}

	slug, err := h.uniqueSlug(c, content.Slugify(req.Name), 0)
	if err != nil {
		Internal(c, "failed to allocate slug")
		return
	}
	doc.Slug = slug
	doc.Status = content.StatusDraft

	encoded, err := doc.Encode()
	if err != nil {
		Internal(c, "failed to encode content")
		return
	}

	event := database.Event{
		Name:        req.Name,
		Description: req.Description,
		Slug:        slug,
		Status:      string(content.StatusDraft),
		StartsAt:    req.StartsAt,
		Location:    req.Location,
		Content:     encoded,
		UserID:      userID,
	}
	if err := h.db.WithContext(ctx).Create(&event).Error; err != nil {
		Internal(c, "failed to create event")
		return
	}

	c.JSON(http.StatusCreated, h.newEventResponse(c, event))
}

// ListEvents 列出用户全部活动。
func (h *EventHandler) ListEvents(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var events []database.Event
	if err := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&events).Error; err != nil {
		Internal(c, "failed to list events")
		return
	}

	items := make([]eventListItem, 0, len(events))
	for _, event := range events {
		items = append(items, eventListItem{
			ID:         event.ID,
			Name:       event.Name,
			Slug:       event.Slug,
			Status:     event.Status,
			StartsAt:   event.StartsAt,
			Location:   event.Location,
			PreviewURL: h.previewURL(c, event),
			UpdatedAt:  event.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, items)
}

// GetEvent 返回活动详情（含落地页内容文档）。
func (h *EventHandler) GetEvent(c *gin.Context) {
	event, ok := h.ownedEvent(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.newEventResponse(c, event))
}

// UpdateEvent 更新活动的元信息。改 slug 只允许草稿态。
func (h *EventHandler) UpdateEvent(c *gin.Context) {
	event, ok := h.ownedEvent(c)
	if !ok {
		return
	}

	var req updateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	updates := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			BadRequest(c, "name must not be empty")
			return
		}
		updates["name"] = name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.StartsAt != nil {
		updates["starts_at"] = *req.StartsAt
	}
	if req.Location != nil {
		updates["location"] = *req.Location
	}
	if req.Slug != nil {
		if event.Status != string(content.StatusDraft) {
			Conflict(c, "slug can only change while the event is a draft")
			return
		}
		slug := content.Slugify(*req.Slug)
		taken, err := h.slugTaken(c, slug, event.ID)
		if err != nil {
			Internal(c, "failed to check slug")
			return
		}
		if taken {
			Conflict(c, "slug already in use")
			return
		}
		updates["slug"] = slug
	}
	if len(updates) == 0 {
		c.JSON(http.StatusOK, h.newEventResponse(c, event))
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Model(&event).Updates(updates).Error; err != nil {
		Internal(c, "failed to update event")
		return
	}
	c.JSON(http.StatusOK, h.newEventResponse(c, event))
}

// UpdateContent 整体替换落地页内容文档。
// 文档先解码再重新编码，既校验结构又丢弃未知字段噪音。
func (h *EventHandler) UpdateContent(c *gin.Context) {
	event, ok := h.ownedEvent(c)
	if !ok {
		return
	}

	raw, err := c.GetRawData()
	if err != nil {
		BadRequest(c, "failed to read request body")
		return
	}

	doc, err := content.Decode(raw)
	if err != nil {
		BadRequest(c, "invalid content document")
		return
	}

	// 名称、slug 与状态以数据库为准，文档里的值只作展示缓存。
	doc.Name = event.Name
	doc.Slug = event.Slug
	if status, err := content.ParseStatus(event.Status); err == nil {
		doc.Status = status
	}

	encoded, err := doc.Encode()
	if err != nil {
		Internal(c, "failed to encode content")
		return
	}

	if err := h.db.WithContext(c.Request.Context()).
		Model(&event).
		Update("content", datatypes.JSON(encoded)).Error; err != nil {
		Internal(c, "failed to save content")
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": event.ID, "updated_at": time.Now().UTC()})
}

// PublishEvent 把活动切到 active 并触发预览截图。
// 已有其它 active 活动占用相同 slug 时返回 409。
func (h *EventHandler) PublishEvent(c *gin.Context) {
	event, ok := h.ownedEvent(c)
	if !ok {
		return
	}

	if event.Slug == "" {
		BadRequest(c, "event has no slug")
		return
	}

	taken, err := h.slugTaken(c, event.Slug, event.ID)
	if err != nil {
		Internal(c, "failed to check slug")
		return
	}
	if taken {
		Conflict(c, "slug already in use by another live event")
		return
	}

	if err := h.db.WithContext(c.Request.Context()).
		Model(&event).
		Update("status", string(content.StatusActive)).Error; err != nil {
		Internal(c, "failed to publish event")
		return
	}

	h.enqueuePreview(c, event.ID)
	c.JSON(http.StatusOK, gin.H{"id": event.ID, "status": string(content.StatusActive)})
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus 切换活动状态（completed / cancelled / 回到 draft）。
func (h *EventHandler) UpdateStatus(c *gin.Context) {
	event, ok := h.ownedEvent(c)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	status, err := content.ParseStatus(req.Status)
	if err != nil {
		BadRequest(c, "invalid status")
		return
	}
	if status == content.StatusActive {
		BadRequest(c, "use the publish endpoint to go live")
		return
	}

	if err := h.db.WithContext(c.Request.Context()).
		Model(&event).
		Update("status", string(status)).Error; err != nil {
		Internal(c, "failed to update status")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": event.ID, "status": string(status)})
}

// DuplicateEvent 复制一份草稿态的活动副本。
func (h *EventHandler) DuplicateEvent(c *gin.Context) {
	event, ok := h.ownedEvent(c)
	if !ok {
		return
	}

	userID, _ := userIDFromContext(c)

	var count int64
	if err := h.db.WithContext(c.Request.Context()).
		Model(&database.Event{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		Internal(c, "failed to count events")
		return
	}
	if h.maxEvents > 0 && count >= int64(h.maxEvents) {
		Forbidden(c, "event limit reached")
		return
	}

	name := event.Name + "（副本）"
	slug, err := h.uniqueSlug(c, content.Slugify(name), 0)
	if err != nil {
		Internal(c, "failed to allocate slug")
		return
	}

	doc, err := content.Decode(event.Content)
	if err != nil {
		Internal(c, "event content is corrupted")
		return
	}
	doc.Name = name
	doc.Slug = slug
	doc.Status = content.StatusDraft

	encoded, err := doc.Encode()
	if err != nil {
		Internal(c, "failed to encode content")
		return
	}

	copyEvent := database.Event{
		Name:        name,
		Description: event.Description,
		Slug:        slug,
		Status:      string(content.StatusDraft),
		StartsAt:    event.StartsAt,
		Location:    event.Location,
		Content:     encoded,
		UserID:      userID,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&copyEvent).Error; err != nil {
		Internal(c, "failed to duplicate event")
		return
	}

	c.JSON(http.StatusCreated, h.newEventResponse(c, copyEvent))
}

// DeleteEvent 删除活动及其关联数据。
func (h *EventHandler) DeleteEvent(c *gin.Context) {
	event, ok := h.ownedEvent(c)
	if !ok {
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Delete(&event).Error; err != nil {
		Internal(c, "failed to delete event")
		return
	}

	if event.PreviewObjectKey != "" && h.storage != nil {
		if err := h.storage.DeleteObject(c.Request.Context(), event.PreviewObjectKey); err != nil {
			requestLogger(c, h.logger).Warn("delete preview object failed",
				slog.String("object_key", event.PreviewObjectKey),
				slog.Any("error", err),
			)
		}
	}

	c.Status(http.StatusNoContent)
}

type eventStatsResponse struct {
	Views           int64 `json:"views"`
	UniqueVisitors  int64 `json:"unique_visitors"`
	Clicks          int64 `json:"clicks"`
	UniqueClicks    int64 `json:"unique_clicks"`
	Registrations   int64 `json:"registrations"`
	CheckedIn       int64 `json:"checked_in"`
	ExpenseCents    int64 `json:"expense_cents"`
	CostPerLeadCent int64 `json:"cost_per_lead_cents"`
}

// GetEventStats 汇总访问、报名与花费数据。
func (h *EventHandler) GetEventStats(c *gin.Context) {
	event, ok := h.ownedEvent(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	resp := eventStatsResponse{}

	if h.tracker != nil {
		stats, err := h.tracker.Stats(ctx, event.ID)
		if err != nil {
			requestLogger(c, h.logger).Warn("read analytics stats failed", slog.Any("error", err))
		} else {
			resp.Views = stats.Views
			resp.UniqueVisitors = stats.UniqueVisitors
			resp.Clicks = stats.Clicks
			resp.UniqueClicks = stats.UniqueClicks
		}
	}

	if err := h.db.WithContext(ctx).
		Model(&database.Registration{}).
		Where("event_id = ?", event.ID).
		Count(&resp.Registrations).Error; err != nil {
		Internal(c, "failed to count registrations")
		return
	}
	if err := h.db.WithContext(ctx).
		Model(&database.Registration{}).
		Where("event_id = ? AND checked_in_at IS NOT NULL", event.ID).
		Count(&resp.CheckedIn).Error; err != nil {
		Internal(c, "failed to count check-ins")
		return
	}

	var totalCents *int64
	if err := h.db.WithContext(ctx).
		Model(&database.Expense{}).
		Where("event_id = ?", event.ID).
		Select("SUM(amount_cents)").
		Scan(&totalCents).Error; err != nil {
		Internal(c, "failed to sum expenses")
		return
	}
	if totalCents != nil {
		resp.ExpenseCents = *totalCents
	}
	if resp.Registrations > 0 {
		resp.CostPerLeadCent = resp.ExpenseCents / resp.Registrations
	}

	c.JSON(http.StatusOK, resp)
}

// RequestPreview 手动触发一次预览截图。
func (h *EventHandler) RequestPreview(c *gin.Context) {
	event, ok := h.ownedEvent(c)
	if !ok {
		return
	}
	h.enqueuePreview(c, event.ID)
	c.JSON(http.StatusAccepted, gin.H{"id": event.ID})
}

// ownedEvent 解析路径 ID 并校验归属，失败时已写好响应。
func (h *EventHandler) ownedEvent(c *gin.Context) (database.Event, bool) {
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

// slugTaken 检查 slug 是否被其它 active 活动占用。
func (h *EventHandler) slugTaken(c *gin.Context, slug string, excludeID uint) (bool, error) {
	var count int64
	err := h.db.WithContext(c.Request.Context()).
		Model(&database.Event{}).
		Where("slug = ? AND status = ? AND id <> ?", slug, string(content.StatusActive), excludeID).
		Count(&count).Error
	return count > 0, err
}

// uniqueSlug 在基础 slug 被占用时追加数字后缀。
func (h *EventHandler) uniqueSlug(c *gin.Context, base string, excludeID uint) (string, error) {
	slug := base
	for i := 2; i < 100; i++ {
		taken, err := h.slugTaken(c, slug, excludeID)
		if err != nil {
			return "", err
		}
		if !taken {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
	return "", errors.New("could not allocate a unique slug")
}

func (h *EventHandler) enqueuePreview(c *gin.Context, eventID uint) {
	if h.asynqClient == nil {
		return
	}
	correlationID := middleware.GetCorrelationID(c)
	task, err := tasks.NewPagePreviewTask(eventID, correlationID)
	if err != nil {
		requestLogger(c, h.logger).Error("build preview task failed", slog.Any("error", err))
		return
	}
	if _, err := h.asynqClient.EnqueueContext(c.Request.Context(), task, asynq.MaxRetry(3)); err != nil {
		requestLogger(c, h.logger).Error("enqueue preview task failed", slog.Any("error", err))
	}
}
