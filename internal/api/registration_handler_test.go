package api

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"eventFlow/internal/database"
)

func TestCheckInByToken_IsIdempotent(t *testing.T) {
	db := newTestDB(t)
	h := NewRegistrationHandler(db)
	event := seedLiveEventWithForm(t, db, "tech-conf")

	registration := database.Registration{
		EventID: event.ID,
		Email:   "guest@example.com",
		Details: datatypes.JSON(`{"name":"张三","email":"guest@example.com"}`),
		QRToken: "tok-123",
	}
	if err := db.Create(&registration).Error; err != nil {
		t.Fatalf("seed registration: %v", err)
	}

	checkIn := func() (checkInResponse, int) {
		c, w := newAuthedContext(t, 1)
		c.Request = httptest.NewRequest(http.MethodPost, "/v1/checkin/tok-123", nil)
		c.Params = gin.Params{{Key: "token", Value: "tok-123"}}
		h.CheckInByToken(c)

		var resp checkInResponse
		if w.Code == http.StatusOK {
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
		}
		return resp, w.Code
	}

	first, code := checkIn()
	if code != http.StatusOK {
		t.Fatalf("expected 200 got %d", code)
	}
	if first.AlreadyIn {
		t.Fatal("first scan should not be flagged as repeat")
	}
	if first.CheckedInAt == nil {
		t.Fatal("expected a check-in time")
	}

	second, code := checkIn()
	if code != http.StatusOK {
		t.Fatalf("expected 200 got %d", code)
	}
	if !second.AlreadyIn {
		t.Fatal("second scan should be flagged as repeat")
	}
	if second.CheckedInAt == nil || second.CheckedInAt.Unix() != first.CheckedInAt.Unix() {
		t.Fatalf("expected first check-in time preserved, got %v vs %v", second.CheckedInAt, first.CheckedInAt)
	}
}

func TestCheckInByToken_DeniesForeignOrganizer(t *testing.T) {
	db := newTestDB(t)
	h := NewRegistrationHandler(db)
	event := seedLiveEventWithForm(t, db, "tech-conf")

	registration := database.Registration{
		EventID: event.ID,
		Email:   "guest@example.com",
		QRToken: "tok-456",
	}
	if err := db.Create(&registration).Error; err != nil {
		t.Fatalf("seed registration: %v", err)
	}

	c, w := newAuthedContext(t, 99)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/checkin/tok-456", nil)
	c.Params = gin.Params{{Key: "token", Value: "tok-456"}}
	h.CheckInByToken(c)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", w.Code)
	}
}

func TestExportRegistrations_WritesFormColumns(t *testing.T) {
	db := newTestDB(t)
	h := NewRegistrationHandler(db)
	event := seedLiveEventWithForm(t, db, "tech-conf")

	now := time.Now().UTC()
	registrations := []database.Registration{
		{
			EventID:     event.ID,
			Email:       "a@example.com",
			Details:     datatypes.JSON(`{"name":"甲","email":"a@example.com","company":"Acme"}`),
			QRToken:     "tok-a",
			CheckedInAt: &now,
		},
		{
			EventID: event.ID,
			Email:   "b@example.com",
			Details: datatypes.JSON(`{"name":"乙","email":"b@example.com"}`),
			QRToken: "tok-b",
		},
	}
	for i := range registrations {
		if err := db.Create(&registrations[i]).Error; err != nil {
			t.Fatalf("seed registration: %v", err)
		}
	}

	c, w := newAuthedContext(t, 1)
	c.Request = httptest.NewRequest(http.MethodGet, "/v1/events/1/registrations/export", nil)
	c.Params = gin.Params{{Key: "id", Value: itoa(event.ID)}}

	h.ExportRegistrations(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "registrations-tech-conf.csv") {
		t.Fatalf("unexpected disposition: %q", w.Header().Get("Content-Disposition"))
	}

	rows, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	header := rows[0]
	if header[0] != "email" || header[1] != "姓名" || header[len(header)-2] != "checked_in_at" {
		t.Fatalf("unexpected header: %v", header)
	}
	if rows[1][3] != "Acme" {
		t.Fatalf("expected company column filled, got %v", rows[1])
	}
	if rows[1][len(header)-2] == "" {
		t.Fatal("expected checked-in timestamp for first row")
	}
	if rows[2][len(header)-2] != "" {
		t.Fatal("expected empty check-in for second row")
	}
}
