package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"eventFlow/internal/content"
	"eventFlow/internal/database"
)

func TestListExpenses_SumsByCategory(t *testing.T) {
	db := newTestDB(t)
	h := NewExpenseHandler(db)
	event := seedEvent(t, db, 1, "年会", "nianhui", string(content.StatusActive))

	expenses := []database.Expense{
		{EventID: event.ID, Category: "venue", Label: "场地押金", AmountCents: 500000},
		{EventID: event.ID, Category: "venue", Label: "场地尾款", AmountCents: 300000},
		{EventID: event.ID, Category: "catering", Label: "茶歇", AmountCents: 120000},
	}
	for i := range expenses {
		if err := db.Create(&expenses[i]).Error; err != nil {
			t.Fatalf("seed expense: %v", err)
		}
	}

	c, w := newAuthedContext(t, 1)
	c.Request = httptest.NewRequest(http.MethodGet, "/v1/events/1/expenses", nil)
	c.Params = gin.Params{{Key: "id", Value: itoa(event.ID)}}

	h.ListExpenses(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	var resp expenseListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TotalCents != 920000 {
		t.Fatalf("expected total 920000 got %d", resp.TotalCents)
	}
	if resp.CategoryTotals["venue"] != 800000 || resp.CategoryTotals["catering"] != 120000 {
		t.Fatalf("unexpected category totals: %v", resp.CategoryTotals)
	}
	if len(resp.Items) != 3 {
		t.Fatalf("expected 3 items got %d", len(resp.Items))
	}
}

func TestCreateExpense_RejectsNonPositiveAmount(t *testing.T) {
	db := newTestDB(t)
	h := NewExpenseHandler(db)
	event := seedEvent(t, db, 1, "年会", "nianhui", string(content.StatusDraft))

	c, w := newAuthedContext(t, 1)
	c.Request = jsonRequest(t, http.MethodPost, "/v1/events/1/expenses", gin.H{
		"category":     "venue",
		"label":        "场地",
		"amount_cents": 0,
	})
	c.Params = gin.Params{{Key: "id", Value: itoa(event.ID)}}

	h.CreateExpense(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestDeleteExpense_ScopedToEvent(t *testing.T) {
	db := newTestDB(t)
	h := NewExpenseHandler(db)
	mine := seedEvent(t, db, 1, "我的", "mine", string(content.StatusDraft))
	other := seedEvent(t, db, 1, "另一场", "other", string(content.StatusDraft))

	expense := database.Expense{EventID: other.ID, Category: "venue", Label: "场地", AmountCents: 100}
	if err := db.Create(&expense).Error; err != nil {
		t.Fatalf("seed expense: %v", err)
	}

	c, w := newAuthedContext(t, 1)
	c.Request = httptest.NewRequest(http.MethodDelete, "/v1/events/1/expenses/1", nil)
	c.Params = gin.Params{
		{Key: "id", Value: itoa(mine.ID)},
		{Key: "expenseID", Value: itoa(expense.ID)},
	}

	h.DeleteExpense(c)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", w.Code)
	}
	var count int64
	if err := db.Model(&database.Expense{}).Count(&count).Error; err != nil {
		t.Fatalf("count expenses: %v", err)
	}
	if count != 1 {
		t.Fatalf("expense should survive, count=%d", count)
	}
}
