package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// 统一的 WebSocket 消息协议（通过 Redis Pub/Sub 转发给前端）。
// 注意：这里的字段名与前端解析保持一致。
type TaskNotifyMessage struct {
	Status         string `json:"status"` // completed / error
	Kind           string `json:"kind"`   // confirmation_email / campaign / page_preview
	EventID        uint   `json:"event_id,omitempty"`
	CampaignID     uint   `json:"campaign_id,omitempty"`
	RegistrationID uint   `json:"registration_id,omitempty"`
	CorrelationID  string `json:"correlation_id"`
	ErrorCode      int    `json:"error_code"`
	ErrorMessage   string `json:"error_message"`
	SentCount      int    `json:"sent_count,omitempty"`
	FailedCount    int    `json:"failed_count,omitempty"`
}

func publishTaskNotify(ctx context.Context, redisClient *redis.Client, userID uint, notify TaskNotifyMessage) error {
	data, err := json.Marshal(notify)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := fmt.Sprintf("user_notify:%d", userID)
	if err := redisClient.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
