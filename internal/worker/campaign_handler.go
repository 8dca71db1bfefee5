package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"eventFlow/internal/database"
	"eventFlow/internal/errcode"
	"eventFlow/internal/mailer"
	"eventFlow/internal/tasks"
)

// CampaignTaskHandler 负责消费营销邮件群发任务。
type CampaignTaskHandler struct {
	db          *gorm.DB
	mailer      mailer.Client
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewCampaignTaskHandler 创建任务处理器。
func NewCampaignTaskHandler(
	db *gorm.DB,
	mailerClient mailer.Client,
	redisClient *redis.Client,
	logger *slog.Logger,
) *CampaignTaskHandler {
	return &CampaignTaskHandler{
		db:          db,
		mailer:      mailerClient,
		redisClient: redisClient,
		logger:      logger,
	}
}

// ProcessTask 实现 asynq.Handler。
// 单个收件人失败只计数不中断，整轮发完后汇总结果。
func (h *CampaignTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	var payload tasks.EmailCampaignPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return err
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Int("campaign_id", int(payload.CampaignID)),
	)
	log.Info("Starting campaign delivery task...")

	var campaign database.Campaign
	if err := h.db.WithContext(ctx).Preload("Event").First(&campaign, payload.CampaignID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("campaign not found, skipping task")
			return nil
		}
		log.Error("query campaign failed", slog.Any("error", err))
		return err
	}

	event := campaign.Event
	log = log.With(slog.Uint64("event_id", uint64(event.ID)))

	defer func() {
		if retErr == nil {
			return
		}
		if !isFinalAsynqAttempt(ctx) {
			return
		}

		if err := h.db.WithContext(ctx).Model(&campaign).Update("status", "failed").Error; err != nil {
			log.Error("mark campaign failed", slog.Any("error", err))
		}
		notify := TaskNotifyMessage{
			Status:        "error",
			Kind:          "campaign",
			EventID:       event.ID,
			CampaignID:    campaign.ID,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.SystemError,
			ErrorMessage:  strings.TrimSpace(retErr.Error()),
		}
		if err := publishTaskNotify(ctx, h.redisClient, event.UserID, notify); err != nil {
			log.Error("publish campaign error notification failed", slog.Any("error", err))
		}
	}()

	recipients, err := h.collectRecipients(ctx, campaign)
	if err != nil {
		log.Error("collect campaign recipients failed", slog.Any("error", err))
		return err
	}

	if err := h.db.WithContext(ctx).Model(&campaign).Update("status", "sending").Error; err != nil {
		log.Error("mark campaign sending failed", slog.Any("error", err))
		return err
	}

	sent, failed := 0, 0
	for _, recipient := range recipients {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, sendErr := h.mailer.Send(ctx, mailer.SendEmailRequest{
			To:      []mailer.EmailAddress{{Email: recipient}},
			Subject: campaign.Subject,
			HTML:    campaignBodyHTML(campaign.Body),
		})
		if sendErr != nil {
			failed++
			log.Warn("campaign recipient delivery failed",
				slog.String("recipient", recipient),
				slog.Any("error", sendErr),
			)
			continue
		}
		sent++
	}

	status := "completed"
	if len(recipients) > 0 && sent == 0 {
		status = "failed"
	}
	update := map[string]any{
		"status":       status,
		"sent_count":   sent,
		"failed_count": failed,
	}
	if err := h.db.WithContext(ctx).Model(&campaign).Updates(update).Error; err != nil {
		log.Error("update campaign counters failed", slog.Any("error", err))
		return err
	}

	notify := TaskNotifyMessage{
		Status:        "completed",
		Kind:          "campaign",
		EventID:       event.ID,
		CampaignID:    campaign.ID,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
		SentCount:     sent,
		FailedCount:   failed,
	}
	if status == "failed" {
		notify.Status = "error"
		notify.ErrorCode = errcode.SystemError
		notify.ErrorMessage = "所有收件人投递失败"
	} else if failed > 0 {
		notify.ErrorCode = errcode.PartialDelivery
		notify.ErrorMessage = "部分收件人投递失败，已跳过并继续"
	}
	if err := publishTaskNotify(ctx, h.redisClient, event.UserID, notify); err != nil {
		log.Error("publish redis notification failed", slog.Any("error", err))
		return err
	}

	log.Info("Campaign delivery task completed.",
		slog.Int("sent", sent),
		slog.Int("failed", failed),
	)
	return nil
}

// collectRecipients 按受众类型汇总去重后的收件人邮箱。
func (h *CampaignTaskHandler) collectRecipients(ctx context.Context, campaign database.Campaign) ([]string, error) {
	var emails []string

	includeRegistrations := campaign.Audience != "leads"
	includeLeads := campaign.Audience == "leads" || campaign.Audience == "all"

	if includeRegistrations {
		if err := h.db.WithContext(ctx).
			Model(&database.Registration{}).
			Where("event_id = ? AND email <> ''", campaign.EventID).
			Pluck("email", &emails).Error; err != nil {
			return nil, err
		}
	}
	if includeLeads {
		var leadEmails []string
		if err := h.db.WithContext(ctx).
			Model(&database.Lead{}).
			Where("user_id = ? AND email <> ''", campaign.Event.UserID).
			Pluck("email", &leadEmails).Error; err != nil {
			return nil, err
		}
		emails = append(emails, leadEmails...)
	}

	seen := make(map[string]struct{}, len(emails))
	unique := make([]string, 0, len(emails))
	for _, email := range emails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" {
			continue
		}
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}
		unique = append(unique, email)
	}
	return unique, nil
}

func campaignBodyHTML(body string) string {
	return "<p>" + strings.ReplaceAll(body, "\n", "<br>") + "</p>"
}
