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

// ExpenseHandler 负责活动花费的记录与汇总。
type ExpenseHandler struct {
	db *gorm.DB
}

func NewExpenseHandler(db *gorm.DB) *ExpenseHandler {
	return &ExpenseHandler{db: db}
}

type expenseRequest struct {
	Category    string     `json:"category" binding:"required,max=64"`
	Label       string     `json:"label" binding:"required,max=255"`
	AmountCents int64      `json:"amount_cents" binding:"required,gt=0"`
	IncurredOn  *time.Time `json:"incurred_on"`
}

type expenseResponse struct {
	ID          uint       `json:"id"`
	Category    string     `json:"category"`
	Label       string     `json:"label"`
	AmountCents int64      `json:"amount_cents"`
	IncurredOn  *time.Time `json:"incurred_on,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func newExpenseResponse(expense database.Expense) expenseResponse {
	return expenseResponse{
		ID:          expense.ID,
		Category:    expense.Category,
		Label:       expense.Label,
		AmountCents: expense.AmountCents,
		IncurredOn:  expense.IncurredOn,
		CreatedAt:   expense.CreatedAt,
	}
}

// ownedEventByParam 加载路径里的活动并校验归属。
func (h *ExpenseHandler) ownedEventByParam(c *gin.Context) (database.Event, bool) {
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

// CreateExpense 给活动记一笔花费，金额以分存储。
func (h *ExpenseHandler) CreateExpense(c *gin.Context) {
	event, ok := h.ownedEventByParam(c)
	if !ok {
		return
	}

	var req expenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	expense := database.Expense{
		EventID:     event.ID,
		Category:    strings.TrimSpace(req.Category),
		Label:       strings.TrimSpace(req.Label),
		AmountCents: req.AmountCents,
		IncurredOn:  req.IncurredOn,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&expense).Error; err != nil {
		Internal(c, "failed to create expense")
		return
	}
	c.JSON(http.StatusCreated, newExpenseResponse(expense))
}

type expenseListResponse struct {
	Items          []expenseResponse `json:"items"`
	TotalCents     int64             `json:"total_cents"`
	CategoryTotals map[string]int64  `json:"category_totals"`
}

// ListExpenses 按时间倒序返回花费明细与分类小计。
func (h *ExpenseHandler) ListExpenses(c *gin.Context) {
	event, ok := h.ownedEventByParam(c)
	if !ok {
		return
	}

	var expenses []database.Expense
	if err := h.db.WithContext(c.Request.Context()).
		Where("event_id = ?", event.ID).
		Order("created_at DESC").
		Find(&expenses).Error; err != nil {
		Internal(c, "failed to list expenses")
		return
	}

	resp := expenseListResponse{
		Items:          make([]expenseResponse, 0, len(expenses)),
		CategoryTotals: map[string]int64{},
	}
	for _, expense := range expenses {
		resp.Items = append(resp.Items, newExpenseResponse(expense))
		resp.TotalCents += expense.AmountCents
		resp.CategoryTotals[expense.Category] += expense.AmountCents
	}
	c.JSON(http.StatusOK, resp)
}

// DeleteExpense 删除一笔花费。
func (h *ExpenseHandler) DeleteExpense(c *gin.Context) {
	event, ok := h.ownedEventByParam(c)
	if !ok {
		return
	}

	expenseID, ok := idParam(c, "expenseID")
	if !ok {
		BadRequest(c, "invalid expense id")
		return
	}

	result := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND event_id = ?", expenseID, event.ID).
		Delete(&database.Expense{})
	if result.Error != nil {
		Internal(c, "failed to delete expense")
		return
	}
	if result.RowsAffected == 0 {
		NotFound(c, "expense not found")
		return
	}
	c.Status(http.StatusNoContent)
}
