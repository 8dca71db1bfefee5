package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"eventFlow/internal/content"
	"eventFlow/internal/database"
)

func newPublicTestHandler(db *gorm.DB) *PublicHandler {
	return NewPublicHandler(db, nil, nil, nil, "https://events.example.com")
}

func seedLiveEventWithForm(t *testing.T, db *gorm.DB, slug string) database.Event {
	t.Helper()
	doc := content.NewDocument("技术大会")
	doc.Slug = slug
	doc.Status = content.StatusActive
	doc.Blocks = append(doc.Blocks, content.NewBlock(content.BlockHero))
	doc.FormFields = []content.FormField{
		{ID: "name", Label: "姓名", Type: content.FieldText},
		{ID: "email", Label: "邮箱", Type: content.FieldEmail},
		{ID: "company", Label: "公司 (optional)", Type: content.FieldText},
	}
	encoded, err := doc.Encode()
	if err != nil {
		t.Fatalf("encode doc: %v", err)
	}
	event := database.Event{
		Name:    "技术大会",
		Slug:    slug,
		Status:  string(content.StatusActive),
		Content: encoded,
		UserID:  1,
	}
	if err := db.Create(&event).Error; err != nil {
		t.Fatalf("seed event: %v", err)
	}
	return event
}

func slugContext(t *testing.T, slug string, req *http.Request) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = gin.Params{{Key: "slug", Value: slug}}
	return c, w
}

func TestShowPage_OnlyServesLiveEvents(t *testing.T) {
	db := newTestDB(t)
	h := newPublicTestHandler(db)
	event := seedLiveEventWithForm(t, db, "tech-conf")

	if err := db.Model(&event).Update("status", string(content.StatusCompleted)).Error; err != nil {
		t.Fatalf("update status: %v", err)
	}

	c, w := slugContext(t, "tech-conf", httptest.NewRequest(http.MethodGet, "/p/tech-conf", nil))
	h.ShowPage(c)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", w.Code)
	}
}

func TestShowPage_RendersBlocksAndForm(t *testing.T) {
	db := newTestDB(t)
	h := newPublicTestHandler(db)
	seedLiveEventWithForm(t, db, "tech-conf")

	c, w := slugContext(t, "tech-conf", httptest.NewRequest(http.MethodGet, "/p/tech-conf", nil))
	h.ShowPage(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, "registration-modal") {
		t.Fatal("expected registration modal in page")
	}
	if !strings.Contains(body, `name="email"`) {
		t.Fatal("expected email field in form")
	}
	if !strings.Contains(body, `data-track="click"`) {
		t.Fatal("expected live hero button to carry the click beacon hook")
	}
}

func TestRegister_ReportsMissingRequiredFields(t *testing.T) {
	db := newTestDB(t)
	h := newPublicTestHandler(db)
	seedLiveEventWithForm(t, db, "tech-conf")

	req := jsonRequest(t, http.MethodPost, "/p/tech-conf/register", gin.H{"name": "张三"})
	c, w := slugContext(t, "tech-conf", req)

	h.Register(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		MissingFields []string `json:"missing_fields"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.MissingFields) != 1 || resp.MissingFields[0] != "email" {
		t.Fatalf("expected missing [email] got %v", resp.MissingFields)
	}
}

func TestRegister_OptionalFieldMayBeOmitted(t *testing.T) {
	db := newTestDB(t)
	h := newPublicTestHandler(db)
	event := seedLiveEventWithForm(t, db, "tech-conf")

	req := jsonRequest(t, http.MethodPost, "/p/tech-conf/register", gin.H{
		"name":  "张三",
		"email": "zhangsan@example.com",
	})
	c, w := slugContext(t, "tech-conf", req)

	h.Register(c)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}
	var resp registerResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.HasPrefix(resp.QRCodeDataURI, "data:image/png;base64,") {
		t.Fatalf("expected png data uri got %q", resp.QRCodeDataURI[:min(len(resp.QRCodeDataURI), 40)])
	}

	var saved database.Registration
	if err := db.Where("event_id = ?", event.ID).First(&saved).Error; err != nil {
		t.Fatalf("load registration: %v", err)
	}
	if saved.Email != "zhangsan@example.com" {
		t.Fatalf("email mismatch: %q", saved.Email)
	}
	if saved.QRToken == "" {
		t.Fatal("expected a qr token")
	}
}

func TestTrackClick_AlwaysNoContent(t *testing.T) {
	db := newTestDB(t)
	h := newPublicTestHandler(db)
	seedLiveEventWithForm(t, db, "tech-conf")

	c, w := slugContext(t, "tech-conf", httptest.NewRequest(http.MethodPost, "/p/tech-conf/click", nil))
	h.TrackClick(c)
	// 直接调用 handler 时没有引擎冲刷状态码，需要手动写出
	c.Writer.WriteHeaderNow()

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", w.Code)
	}
}
