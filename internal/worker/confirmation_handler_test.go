package worker

import (
	"strings"
	"testing"

	"eventFlow/internal/content"
	"eventFlow/internal/database"
)

func TestBuildMessage_DefaultsToEventName(t *testing.T) {
	h := &ConfirmationTaskHandler{}
	doc := content.NewDocument("技术大会")
	encoded, err := doc.Encode()
	if err != nil {
		t.Fatalf("encode doc: %v", err)
	}
	event := database.Event{Name: "技术大会", Content: encoded}

	subject, body := h.buildMessage(event, database.Registration{})
	if subject != "报名确认：技术大会" {
		t.Fatalf("unexpected subject: %q", subject)
	}
	if !strings.Contains(body, "技术大会") {
		t.Fatal("body should mention the event name")
	}
	if !strings.Contains(body, `cid:checkin-qr`) {
		t.Fatal("body should embed the qr attachment")
	}
}

func TestBuildMessage_AutoReplyOverridesCopy(t *testing.T) {
	h := &ConfirmationTaskHandler{}
	doc := content.NewDocument("技术大会")
	doc.AutoReply = content.AutoReplyConfig{
		Enabled: true,
		Subject: "欢迎加入",
		Body:    "我们下周见\n记得带工牌",
	}
	encoded, err := doc.Encode()
	if err != nil {
		t.Fatalf("encode doc: %v", err)
	}
	event := database.Event{Name: "技术大会", Content: encoded}

	subject, body := h.buildMessage(event, database.Registration{})
	if subject != "欢迎加入" {
		t.Fatalf("unexpected subject: %q", subject)
	}
	if !strings.Contains(body, "我们下周见<br>记得带工牌") {
		t.Fatalf("auto-reply body not applied: %q", body)
	}
	if !strings.Contains(body, `cid:checkin-qr`) {
		t.Fatal("qr section must survive the override")
	}
}

func TestBuildMessage_DisabledAutoReplyIsIgnored(t *testing.T) {
	h := &ConfirmationTaskHandler{}
	doc := content.NewDocument("技术大会")
	doc.AutoReply = content.AutoReplyConfig{Enabled: false, Subject: "不该出现"}
	encoded, err := doc.Encode()
	if err != nil {
		t.Fatalf("encode doc: %v", err)
	}
	event := database.Event{Name: "技术大会", Content: encoded}

	subject, _ := h.buildMessage(event, database.Registration{})
	if subject != "报名确认：技术大会" {
		t.Fatalf("unexpected subject: %q", subject)
	}
}
