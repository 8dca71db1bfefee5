package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeEmailConfirmation = "email:confirmation"
	TypeEmailCampaign     = "email:campaign"
	TypePagePreview       = "page:preview"
)

// EmailConfirmationPayload 描述发送报名确认邮件所需的最小信息。
type EmailConfirmationPayload struct {
	RegistrationID uint   `json:"registration_id"`
	CorrelationID  string `json:"correlation_id"`
}

// NewEmailConfirmationTask 构造一个新的报名确认邮件任务。
func NewEmailConfirmationTask(registrationID uint, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(EmailConfirmationPayload{
		RegistrationID: registrationID,
		CorrelationID:  correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeEmailConfirmation, payload), nil
}

// EmailCampaignPayload 描述群发营销邮件所需的最小信息。
type EmailCampaignPayload struct {
	CampaignID    uint   `json:"campaign_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewEmailCampaignTask 构造一个新的营销邮件群发任务。
func NewEmailCampaignTask(campaignID uint, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(EmailCampaignPayload{
		CampaignID:    campaignID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeEmailCampaign, payload), nil
}

// PagePreviewPayload 描述生成落地页预览截图所需的最小信息。
type PagePreviewPayload struct {
	EventID       uint   `json:"event_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewPagePreviewTask 构造一个新的落地页预览截图任务。
func NewPagePreviewTask(eventID uint, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(PagePreviewPayload{
		EventID:       eventID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePagePreview, payload), nil
}
