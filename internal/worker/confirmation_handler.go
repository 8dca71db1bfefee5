package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"eventFlow/internal/content"
	"eventFlow/internal/database"
	"eventFlow/internal/errcode"
	"eventFlow/internal/mailer"
	"eventFlow/internal/qr"
	"eventFlow/internal/tasks"
)

// ConfirmationTaskHandler 负责消费报名确认邮件任务。
type ConfirmationTaskHandler struct {
	db            *gorm.DB
	mailer        mailer.Client
	redisClient   *redis.Client
	logger        *slog.Logger
	publicBaseURL string
}

// NewConfirmationTaskHandler 创建任务处理器。
func NewConfirmationTaskHandler(
	db *gorm.DB,
	mailerClient mailer.Client,
	redisClient *redis.Client,
	logger *slog.Logger,
	publicBaseURL string,
) *ConfirmationTaskHandler {
	return &ConfirmationTaskHandler{
		db:            db,
		mailer:        mailerClient,
		redisClient:   redisClient,
		logger:        logger,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *ConfirmationTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	var payload tasks.EmailConfirmationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return err
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Int("registration_id", int(payload.RegistrationID)),
	)
	log.Info("Starting confirmation email task...")

	var registration database.Registration
	if err := h.db.WithContext(ctx).Preload("Event").First(&registration, payload.RegistrationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("registration not found, skipping task")
			return nil
		}
		log.Error("query registration failed", slog.Any("error", err))
		return err
	}

	event := registration.Event
	log = log.With(slog.Uint64("event_id", uint64(event.ID)))

	defer func() {
		if retErr == nil {
			return
		}
		if !isFinalAsynqAttempt(ctx) {
			return
		}

		if err := h.db.WithContext(ctx).Model(&registration).Update("email_status", "failed").Error; err != nil {
			log.Error("mark registration email failed", slog.Any("error", err))
		}
		notify := TaskNotifyMessage{
			Status:         "error",
			Kind:           "confirmation_email",
			EventID:        event.ID,
			RegistrationID: registration.ID,
			CorrelationID:  payload.CorrelationID,
			ErrorCode:      errcode.SystemError,
			ErrorMessage:   strings.TrimSpace(retErr.Error()),
		}
		if err := publishTaskNotify(ctx, h.redisClient, event.UserID, notify); err != nil {
			log.Error("publish confirmation error notification failed", slog.Any("error", err))
		}
	}()

	subject, body := h.buildMessage(event, registration)

	qrPNG, err := qr.PNG(qr.CheckInURL(h.publicBaseURL, registration.QRToken), 0)
	if err != nil {
		log.Error("generate check-in qr failed", slog.Any("error", err))
		return err
	}

	_, err = h.mailer.Send(ctx, mailer.SendEmailRequest{
		To:      []mailer.EmailAddress{{Email: registration.Email}},
		Subject: subject,
		HTML:    body,
		Attachments: []mailer.Attachment{
			{Filename: "checkin-qr.png", MIMEType: "image/png", Content: qrPNG, ContentID: "checkin-qr"},
		},
	})
	if err != nil {
		log.Error("send confirmation email failed", slog.Any("error", err))
		return err
	}

	if err := h.db.WithContext(ctx).Model(&registration).Update("email_status", "sent").Error; err != nil {
		log.Error("mark registration email sent failed", slog.Any("error", err))
		return err
	}

	log.Info("Confirmation email task completed successfully.")
	return nil
}

// buildMessage 生成确认邮件的主题与正文。
// 活动配置了自动回复时优先使用，否则用内置的默认文案。
func (h *ConfirmationTaskHandler) buildMessage(event database.Event, registration database.Registration) (string, string) {
	subject := fmt.Sprintf("报名确认：%s", event.Name)
	intro := fmt.Sprintf("<p>你已成功报名 <strong>%s</strong>。</p>", event.Name)

	if doc, err := content.Decode(event.Content); err == nil && doc.AutoReply.Enabled {
		if s := strings.TrimSpace(doc.AutoReply.Subject); s != "" {
			subject = s
		}
		if b := strings.TrimSpace(doc.AutoReply.Body); b != "" {
			intro = "<p>" + strings.ReplaceAll(b, "\n", "<br>") + "</p>"
		}
	}

	body := intro + `<p>入场时请出示下方二维码完成签到：</p><img src="cid:checkin-qr" alt="签到二维码" width="256" height="256">`
	return subject, body
}
