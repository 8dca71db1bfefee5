package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"eventFlow/internal/database"
	"eventFlow/internal/errcode"
	"eventFlow/internal/storage"
	"eventFlow/internal/tasks"
)

const previewJPEGQuality = 80

// PreviewTaskHandler 负责消费落地页预览截图任务。
type PreviewTaskHandler struct {
	db                 *gorm.DB
	storage            *storage.Client
	redisClient        *redis.Client
	logger             *slog.Logger
	internalSecret     string
	internalAPIBaseURL string
}

// NewPreviewTaskHandler 创建任务处理器。
func NewPreviewTaskHandler(
	db *gorm.DB,
	storageClient *storage.Client,
	redisClient *redis.Client,
	logger *slog.Logger,
	internalSecret string,
	internalAPIBaseURL string,
) *PreviewTaskHandler {
	return &PreviewTaskHandler{
		db:                 db,
		storage:            storageClient,
		redisClient:        redisClient,
		logger:             logger,
		internalSecret:     internalSecret,
		internalAPIBaseURL: strings.TrimRight(strings.TrimSpace(internalAPIBaseURL), "/"),
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *PreviewTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	var payload tasks.PagePreviewPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return err
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Int("event_id", int(payload.EventID)),
	)
	log.Info("Starting landing page preview task...")

	var event database.Event
	if err := h.db.WithContext(ctx).First(&event, payload.EventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("event not found, skipping task")
			return nil
		}
		log.Error("query event failed", slog.Any("error", err))
		return err
	}

	log = log.With(slog.Uint64("user_id", uint64(event.UserID)))

	defer func() {
		if retErr == nil {
			return
		}
		if !isFinalAsynqAttempt(ctx) {
			return
		}

		notify := TaskNotifyMessage{
			Status:        "error",
			Kind:          "page_preview",
			EventID:       event.ID,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.SystemError,
			ErrorMessage:  strings.TrimSpace(retErr.Error()),
		}
		if err := publishTaskNotify(ctx, h.redisClient, event.UserID, notify); err != nil {
			log.Error("publish preview error notification failed", slog.Any("error", err))
		}
	}()

	html, err := fetchInternalPreviewHTML(ctx, h.internalAPIBaseURL, event.ID, h.internalSecret)
	if err != nil {
		log.Error("fetch preview html failed", slog.Any("error", err))
		return err
	}

	page, cleanup, err := renderLandingPage(log, html)
	if err != nil {
		log.Error("render landing page failed", slog.Any("error", err))
		return err
	}
	defer cleanup()

	imageBytes, err := capturePreviewScreenshot(page, previewJPEGQuality)
	if err != nil {
		log.Error("capture preview screenshot failed", slog.Any("error", err))
		return err
	}

	objectName := fmt.Sprintf("event-previews/%d/%s.jpg", event.UserID, uuid.NewString())
	reader := bytes.NewReader(imageBytes)
	if _, err := h.storage.UploadFile(ctx, objectName, reader, int64(len(imageBytes)), "image/jpeg"); err != nil {
		log.Error("upload preview to minio failed", slog.Any("error", err))
		return err
	}

	oldKey := event.PreviewObjectKey
	update := map[string]any{
		"preview_object_key": objectName,
	}
	if err := h.db.WithContext(ctx).Model(&event).Updates(update).Error; err != nil {
		log.Error("update event preview failed", slog.Any("error", err))
		return err
	}

	if oldKey != "" && oldKey != objectName {
		if err := h.storage.DeleteObject(ctx, oldKey); err != nil {
			log.Warn("delete stale preview object failed",
				slog.String("object_key", oldKey),
				slog.Any("error", err),
			)
		}
	}

	notify := TaskNotifyMessage{
		Status:        "completed",
		Kind:          "page_preview",
		EventID:       event.ID,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
	}
	if err := publishTaskNotify(ctx, h.redisClient, event.UserID, notify); err != nil {
		log.Error("publish redis notification failed", slog.Any("error", err))
		return err
	}

	log.Info("Landing page preview task completed successfully.")
	return nil
}
