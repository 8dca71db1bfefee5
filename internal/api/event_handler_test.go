package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"eventFlow/internal/content"
	"eventFlow/internal/database"
)

func newEventTestHandler(db *gorm.DB) *EventHandler {
	return NewEventHandler(db, nil, nil, nil, nil, 50)
}

func seedEvent(t *testing.T, db *gorm.DB, userID uint, name, slug, status string) database.Event {
	t.Helper()
	doc := content.NewDocument(name)
	doc.Slug = slug
	encoded, err := doc.Encode()
	if err != nil {
		t.Fatalf("encode doc: %v", err)
	}
	event := database.Event{
		Name:    name,
		Slug:    slug,
		Status:  status,
		Content: encoded,
		UserID:  userID,
	}
	if err := db.Create(&event).Error; err != nil {
		t.Fatalf("seed event: %v", err)
	}
	return event
}

func itoa(id uint) string { return strconv.FormatUint(uint64(id), 10) }

func jsonRequest(t *testing.T, method, target string, payload any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestCreateEvent_DerivesSlugAndStartsAsDraft(t *testing.T) {
	db := newTestDB(t)
	h := newEventTestHandler(db)

	c, w := newAuthedContext(t, 1)
	c.Request = jsonRequest(t, http.MethodPost, "/v1/events", gin.H{"name": "Go Meetup 2026"})

	h.CreateEvent(c)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}

	var resp eventResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Slug != "go-meetup-2026" {
		t.Fatalf("expected slug go-meetup-2026 got %q", resp.Slug)
	}
	if resp.Status != string(content.StatusDraft) {
		t.Fatalf("expected draft got %q", resp.Status)
	}

	doc, err := content.Decode(resp.Content)
	if err != nil {
		t.Fatalf("decode content: %v", err)
	}
	if doc.Name != "Go Meetup 2026" {
		t.Fatalf("document name mismatch: %q", doc.Name)
	}
}

func TestCreateEvent_EnforcesQuota(t *testing.T) {
	db := newTestDB(t)
	h := NewEventHandler(db, nil, nil, nil, nil, 1)
	seedEvent(t, db, 1, "第一场", "first", string(content.StatusDraft))

	c, w := newAuthedContext(t, 1)
	c.Request = jsonRequest(t, http.MethodPost, "/v1/events", gin.H{"name": "第二场"})

	h.CreateEvent(c)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestCreateEvent_CopiesTemplateContent(t *testing.T) {
	db := newTestDB(t)
	h := newEventTestHandler(db)

	doc := content.NewDocument("模板")
	doc.Blocks = append(doc.Blocks, content.NewBlock(content.BlockHero), content.NewBlock(content.BlockButton))
	encoded, err := doc.Encode()
	if err != nil {
		t.Fatalf("encode template: %v", err)
	}
	template := database.Template{Title: "模板", Content: encoded, IsPublic: true, UserID: 9}
	if err := db.Create(&template).Error; err != nil {
		t.Fatalf("seed template: %v", err)
	}

	c, w := newAuthedContext(t, 1)
	c.Request = jsonRequest(t, http.MethodPost, "/v1/events", gin.H{"name": "新活动", "template_id": template.ID})

	h.CreateEvent(c)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}
	var resp eventResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	created, err := content.Decode(resp.Content)
	if err != nil {
		t.Fatalf("decode content: %v", err)
	}
	if len(created.Blocks) != 2 {
		t.Fatalf("expected 2 blocks from template got %d", len(created.Blocks))
	}
	if created.Name != "新活动" {
		t.Fatalf("expected document renamed, got %q", created.Name)
	}
}

func TestPublishEvent_RejectsSlugHeldByLiveEvent(t *testing.T) {
	db := newTestDB(t)
	h := newEventTestHandler(db)

	seedEvent(t, db, 2, "别人的", "launch", string(content.StatusActive))
	mine := seedEvent(t, db, 1, "我的", "launch", string(content.StatusDraft))

	c, w := newAuthedContext(t, 1)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/events/publish", nil)
	c.Params = gin.Params{{Key: "id", Value: itoa(mine.ID)}}

	h.PublishEvent(c)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d body=%s", w.Code, w.Body.String())
	}

	var reloaded database.Event
	if err := db.First(&reloaded, mine.ID).Error; err != nil {
		t.Fatalf("reload event: %v", err)
	}
	if reloaded.Status != string(content.StatusDraft) {
		t.Fatalf("event should stay draft, got %q", reloaded.Status)
	}
}

func TestPublishEvent_ActivatesEvent(t *testing.T) {
	db := newTestDB(t)
	h := newEventTestHandler(db)
	mine := seedEvent(t, db, 1, "发布会", "fabuhui", string(content.StatusDraft))

	c, w := newAuthedContext(t, 1)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/events/publish", nil)
	c.Params = gin.Params{{Key: "id", Value: itoa(mine.ID)}}

	h.PublishEvent(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	var reloaded database.Event
	if err := db.First(&reloaded, mine.ID).Error; err != nil {
		t.Fatalf("reload event: %v", err)
	}
	if reloaded.Status != string(content.StatusActive) {
		t.Fatalf("expected active got %q", reloaded.Status)
	}
}

func TestUpdateContent_MetaComesFromEventRow(t *testing.T) {
	db := newTestDB(t)
	h := newEventTestHandler(db)
	event := seedEvent(t, db, 1, "真实名称", "real-slug", string(content.StatusDraft))

	doc := content.NewDocument("改掉的名称")
	doc.Slug = "hijacked"
	doc.Status = content.StatusActive
	doc.Blocks = append(doc.Blocks, content.NewBlock(content.BlockText))
	payload, err := doc.Encode()
	if err != nil {
		t.Fatalf("encode doc: %v", err)
	}

	c, w := newAuthedContext(t, 1)
	c.Request = httptest.NewRequest(http.MethodPut, "/v1/events/content", bytes.NewReader(payload))
	c.Params = gin.Params{{Key: "id", Value: itoa(event.ID)}}

	h.UpdateContent(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	var reloaded database.Event
	if err := db.First(&reloaded, event.ID).Error; err != nil {
		t.Fatalf("reload event: %v", err)
	}
	saved, err := content.Decode(reloaded.Content)
	if err != nil {
		t.Fatalf("decode saved content: %v", err)
	}
	if saved.Name != "真实名称" || saved.Slug != "real-slug" || saved.Status != content.StatusDraft {
		t.Fatalf("document meta not pinned to event row: %+v", saved)
	}
	if len(saved.Blocks) != 1 {
		t.Fatalf("expected 1 block got %d", len(saved.Blocks))
	}
}

func TestUpdateContent_RejectsGarbage(t *testing.T) {
	db := newTestDB(t)
	h := newEventTestHandler(db)
	event := seedEvent(t, db, 1, "活动", "huodong", string(content.StatusDraft))

	c, w := newAuthedContext(t, 1)
	c.Request = httptest.NewRequest(http.MethodPut, "/v1/events/content", bytes.NewReader([]byte("not json")))
	c.Params = gin.Params{{Key: "id", Value: itoa(event.ID)}}

	h.UpdateContent(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestUpdateStatus_ActiveMustGoThroughPublish(t *testing.T) {
	db := newTestDB(t)
	h := newEventTestHandler(db)
	event := seedEvent(t, db, 1, "活动", "huodong", string(content.StatusDraft))

	c, w := newAuthedContext(t, 1)
	c.Request = jsonRequest(t, http.MethodPut, "/v1/events/status", gin.H{"status": "active"})
	c.Params = gin.Params{{Key: "id", Value: itoa(event.ID)}}

	h.UpdateStatus(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestGetEvent_DeniesForeignEvent(t *testing.T) {
	db := newTestDB(t)
	h := newEventTestHandler(db)
	other := seedEvent(t, db, 2, "别人的", "theirs", string(content.StatusDraft))

	c, w := newAuthedContext(t, 1)
	c.Request = httptest.NewRequest(http.MethodGet, "/v1/events", nil)
	c.Params = gin.Params{{Key: "id", Value: itoa(other.ID)}}

	h.GetEvent(c)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestDuplicateEvent_CreatesDraftCopy(t *testing.T) {
	db := newTestDB(t)
	h := newEventTestHandler(db)
	event := seedEvent(t, db, 1, "年会", "nianhui", string(content.StatusActive))

	c, w := newAuthedContext(t, 1)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/events/duplicate", nil)
	c.Params = gin.Params{{Key: "id", Value: itoa(event.ID)}}

	h.DuplicateEvent(c)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}
	var resp eventResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID == event.ID {
		t.Fatal("expected a new event id")
	}
	if resp.Status != string(content.StatusDraft) {
		t.Fatalf("copy should be draft got %q", resp.Status)
	}
	if resp.Slug == event.Slug {
		t.Fatalf("copy should get a fresh slug, got %q", resp.Slug)
	}
}
