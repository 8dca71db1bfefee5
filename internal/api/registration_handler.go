package api

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"eventFlow/internal/content"
	"eventFlow/internal/database"
)

// RegistrationHandler 负责报名名单、签到与导出。
type RegistrationHandler struct {
	db *gorm.DB
}

func NewRegistrationHandler(db *gorm.DB) *RegistrationHandler {
	return &RegistrationHandler{db: db}
}

type registrationListItem struct {
	ID          uint              `json:"id"`
	Email       string            `json:"email"`
	Details     map[string]string `json:"details"`
	EmailStatus string            `json:"email_status"`
	CheckedInAt *time.Time        `json:"checked_in_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// ownedEventByParam 加载路径里的活动并校验归属。
func (h *RegistrationHandler) ownedEventByParam(c *gin.Context) (database.Event, bool) {
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

// ListRegistrations 按报名时间倒序返回名单。
func (h *RegistrationHandler) ListRegistrations(c *gin.Context) {
	event, ok := h.ownedEventByParam(c)
	if !ok {
		return
	}

	var registrations []database.Registration
	if err := h.db.WithContext(c.Request.Context()).
		Where("event_id = ?", event.ID).
		Order("created_at DESC").
		Find(&registrations).Error; err != nil {
		Internal(c, "failed to list registrations")
		return
	}

	items := make([]registrationListItem, 0, len(registrations))
	for _, reg := range registrations {
		items = append(items, registrationListItem{
			ID:          reg.ID,
			Email:       reg.Email,
			Details:     decodeDetails(reg.Details),
			EmailStatus: reg.EmailStatus,
			CheckedInAt: reg.CheckedInAt,
			CreatedAt:   reg.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, items)
}

// ExportRegistrations 导出 CSV 名单。
// 列由活动表单定义决定，额外附上签到与报名时间。
func (h *RegistrationHandler) ExportRegistrations(c *gin.Context) {
	event, ok := h.ownedEventByParam(c)
	if !ok {
		return
	}

	doc, err := content.Decode(event.Content)
	if err != nil {
		Internal(c, "failed to load form definition")
		return
	}

	var registrations []database.Registration
	if err := h.db.WithContext(c.Request.Context()).
		Where("event_id = ?", event.ID).
		Order("created_at ASC").
		Find(&registrations).Error; err != nil {
		Internal(c, "failed to list registrations")
		return
	}

	filename := fmt.Sprintf("registrations-%s.csv", event.Slug)
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	writer := csv.NewWriter(c.Writer)
	header := []string{"email"}
	for _, field := range doc.FormFields {
		header = append(header, field.Label)
	}
	header = append(header, "checked_in_at", "registered_at")
	_ = writer.Write(header)

	for _, reg := range registrations {
		details := decodeDetails(reg.Details)
		row := []string{reg.Email}
		for _, field := range doc.FormFields {
			row = append(row, details[field.ID])
		}
		checkedIn := ""
		if reg.CheckedInAt != nil {
			checkedIn = reg.CheckedInAt.UTC().Format(time.RFC3339)
		}
		row = append(row, checkedIn, reg.CreatedAt.UTC().Format(time.RFC3339))
		_ = writer.Write(row)
	}
	writer.Flush()
}

type checkInResponse struct {
	RegistrationID uint       `json:"registration_id"`
	EventID        uint       `json:"event_id"`
	Email          string     `json:"email"`
	CheckedInAt    *time.Time `json:"checked_in_at"`
	AlreadyIn      bool       `json:"already_checked_in"`
}

// CheckInByToken 扫码签到。重复扫码幂等返回首次签到时间。
func (h *RegistrationHandler) CheckInByToken(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	token := c.Param("token")
	if token == "" {
		BadRequest(c, "missing token")
		return
	}

	ctx := c.Request.Context()

	var registration database.Registration
	if err := h.db.WithContext(ctx).
		Preload("Event").
		Where("qr_token = ?", token).
		First(&registration).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "registration not found")
		} else {
			Internal(c, "failed to query registration")
		}
		return
	}

	if registration.Event.UserID != userID {
		Forbidden(c, "access denied")
		return
	}

	if registration.CheckedInAt != nil {
		c.JSON(http.StatusOK, checkInResponse{
			RegistrationID: registration.ID,
			EventID:        registration.EventID,
			Email:          registration.Email,
			CheckedInAt:    registration.CheckedInAt,
			AlreadyIn:      true,
		})
		return
	}

	now := time.Now().UTC()
	if err := h.db.WithContext(ctx).
		Model(&registration).
		Update("checked_in_at", now).Error; err != nil {
		Internal(c, "failed to check in")
		return
	}

	c.JSON(http.StatusOK, checkInResponse{
		RegistrationID: registration.ID,
		EventID:        registration.EventID,
		Email:          registration.Email,
		CheckedInAt:    &now,
	})
}

func decodeDetails(raw []byte) map[string]string {
	details := map[string]string{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &details)
	}
	return details
}
