package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"eventFlow/internal/database"
)

// LeadHandler 负责潜在客户的增删改查。
type LeadHandler struct {
	db *gorm.DB
}

func NewLeadHandler(db *gorm.DB) *LeadHandler {
	return &LeadHandler{db: db}
}

type leadRequest struct {
	Name    string `json:"name" binding:"required,max=255"`
	Email   string `json:"email" binding:"omitempty,email"`
	Phone   string `json:"phone" binding:"max=64"`
	Source  string `json:"source" binding:"max=255"`
	Note    string `json:"note"`
	EventID *uint  `json:"event_id"`
}

type leadResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Source    string    `json:"source,omitempty"`
	Note      string    `json:"note,omitempty"`
	EventID   *uint     `json:"event_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func newLeadResponse(lead database.Lead) leadResponse {
	return leadResponse{
		ID:        lead.ID,
		Name:      lead.Name,
		Email:     lead.Email,
		Phone:     lead.Phone,
		Source:    lead.Source,
		Note:      lead.Note,
		EventID:   lead.EventID,
		CreatedAt: lead.CreatedAt,
	}
}

// CreateLead 录入一条线索，可选关联到某个活动。
func (h *LeadHandler) CreateLead(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req leadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()

	if req.EventID != nil {
		var event database.Event
		if err := h.db.WithContext(ctx).First(&event, *req.EventID).Error; err != nil || event.UserID != userID {
			BadRequest(c, "invalid event id")
			return
		}
	}

	lead := database.Lead{
		UserID:  userID,
		EventID: req.EventID,
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:   strings.TrimSpace(req.Phone),
		Source:  strings.TrimSpace(req.Source),
		Note:    req.Note,
	}
	if err := h.db.WithContext(ctx).Create(&lead).Error; err != nil {
		Internal(c, "failed to create lead")
		return
	}
	c.JSON(http.StatusCreated, newLeadResponse(lead))
}

// ListLeads 列出用户全部线索，可按活动过滤。
func (h *LeadHandler) ListLeads(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	query := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if eventID := intQuery(c, "event_id", 0, 0); eventID > 0 {
		query = query.Where("event_id = ?", eventID)
	}

	var leads []database.Lead
	if err := query.Find(&leads).Error; err != nil {
		Internal(c, "failed to list leads")
		return
	}

	items := make([]leadResponse, 0, len(leads))
	for _, lead := range leads {
		items = append(items, newLeadResponse(lead))
	}
	c.JSON(http.StatusOK, items)
}

// UpdateLead 更新一条线索。
func (h *LeadHandler) UpdateLead(c *gin.Context) {
	lead, ok := h.ownedLead(c)
	if !ok {
		return
	}

	var req leadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	updates := map[string]any{
		"name":   strings.TrimSpace(req.Name),
		"email":  strings.ToLower(strings.TrimSpace(req.Email)),
		"phone":  strings.TrimSpace(req.Phone),
		"source": strings.TrimSpace(req.Source),
		"note":   req.Note,
	}
	if err := h.db.WithContext(c.Request.Context()).Model(&lead).Updates(updates).Error; err != nil {
		Internal(c, "failed to update lead")
		return
	}
	c.JSON(http.StatusOK, newLeadResponse(lead))
}

// DeleteLead 删除一条线索。
func (h *LeadHandler) DeleteLead(c *gin.Context) {
	lead, ok := h.ownedLead(c)
	if !ok {
		return
	}
	if err := h.db.WithContext(c.Request.Context()).Delete(&lead).Error; err != nil {
		Internal(c, "failed to delete lead")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *LeadHandler) ownedLead(c *gin.Context) (database.Lead, bool) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return database.Lead{}, false
	}
	id, ok := idParam(c, "id")
	if !ok {
		BadRequest(c, "invalid lead id")
		return database.Lead{}, false
	}

	var lead database.Lead
	if err := h.db.WithContext(c.Request.Context()).First(&lead, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "lead not found")
		} else {
			Internal(c, "failed to query lead")
		}
		return database.Lead{}, false
	}
	if lead.UserID != userID {
		Forbidden(c, "access denied")
		return database.Lead{}, false
	}
	return lead, true
}
