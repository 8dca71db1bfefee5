package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"eventFlow/internal/config"
)

// Client 抽象邮件发送，方便 worker 测试时替换假实现。
type Client interface {
	Send(ctx context.Context, req SendEmailRequest) (*SendEmailResult, error)
}

// EmailAddress 表示一个收发件人。
type EmailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Attachment 表示邮件附件，Content 会在发送前做 base64 编码。
type Attachment struct {
	Filename  string
	MIMEType  string
	Content   []byte
	ContentID string
}

// SendEmailRequest 描述一封待发送的邮件。
type SendEmailRequest struct {
	From        EmailAddress
	To          []EmailAddress
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

// SendEmailResult 保留 SendGrid 返回的消息标识，方便排查投递问题。
type SendEmailResult struct {
	StatusCode int
	MessageID  string
}

// HTTPError 携带 SendGrid 返回的非 2xx 响应内容。
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		msg = "<empty body>"
	}
	if len(msg) > 2000 {
		msg = msg[:2000] + "..."
	}
	return fmt.Sprintf("sendgrid http %d: %s", e.StatusCode, msg)
}

type client struct {
	cfg        config.MailConfig
	httpClient *http.Client
	logger     *slog.Logger
	maxRetries int
}

// NewClient 构造 SendGrid 邮件客户端。
func NewClient(cfg config.MailConfig, logger *slog.Logger) (Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("sendgrid api key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.sendgrid.com"
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 30
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	return &client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		logger:     logger.With("client", "sendgrid"),
		maxRetries: maxRetries,
	}, nil
}

// SendGrid v3 mail/send 的请求结构。
type mailSendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             EmailAddress      `json:"from"`
	Subject          string            `json:"subject,omitempty"`
	Content          []mailContent     `json:"content,omitempty"`
	Attachments      []wireAttachment  `json:"attachments,omitempty"`
}

type personalization struct {
	To []EmailAddress `json:"to"`
}

type mailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type wireAttachment struct {
	Content   string `json:"content"`
	Type      string `json:"type,omitempty"`
	Filename  string `json:"filename"`
	ContentID string `json:"content_id,omitempty"`
}

func (c *client) Send(ctx context.Context, req SendEmailRequest) (*SendEmailResult, error) {
	if strings.TrimSpace(req.From.Email) == "" {
		req.From = EmailAddress{Email: c.cfg.FromEmail, Name: c.cfg.FromName}
	}
	if strings.TrimSpace(req.From.Email) == "" {
		return nil, errors.New("mailer: from email is required")
	}
	if len(req.To) == 0 {
		return nil, errors.New("mailer: at least one recipient is required")
	}
	if strings.TrimSpace(req.Subject) == "" {
		return nil, errors.New("mailer: subject is required")
	}

	contents := []mailContent{}
	if t := strings.TrimSpace(req.Text); t != "" {
		contents = append(contents, mailContent{Type: "text/plain", Value: t})
	}
	if h := strings.TrimSpace(req.HTML); h != "" {
		contents = append(contents, mailContent{Type: "text/html", Value: h})
	}
	if len(contents) == 0 {
		return nil, errors.New("mailer: text or html body is required")
	}

	attachments := make([]wireAttachment, 0, len(req.Attachments))
	for _, a := range req.Attachments {
		if strings.TrimSpace(a.Filename) == "" {
			return nil, errors.New("mailer: attachment filename is required")
		}
		if len(a.Content) == 0 {
			return nil, fmt.Errorf("mailer: attachment %q has no content", a.Filename)
		}
		attachments = append(attachments, wireAttachment{
			Content:   base64.StdEncoding.EncodeToString(a.Content),
			Type:      a.MIMEType,
			Filename:  a.Filename,
			ContentID: a.ContentID,
		})
	}

	wire := mailSendRequest{
		Personalizations: []personalization{{To: req.To}},
		From:             req.From,
		Subject:          req.Subject,
		Content:          contents,
		Attachments:      attachments,
	}

	resp, err := c.doWithRetry(ctx, wire)
	if err != nil {
		return nil, err
	}

	return &SendEmailResult{
		StatusCode: resp.StatusCode,
		MessageID:  strings.TrimSpace(resp.Header.Get("X-Message-Id")),
	}, nil
}

func (c *client) doWithRetry(ctx context.Context, body mailSendRequest) (*http.Response, error) {
	backoff := time.Second

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := c.doOnce(ctx, body)
		if err == nil {
			return resp, nil
		}

		if !isRetryable(err) || attempt == c.maxRetries {
			return nil, err
		}

		c.logger.Warn("SendGrid 请求失败，准备重试",
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"backoff", backoff.String(),
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (c *client) doOnce(ctx context.Context, body mailSendRequest) (*http.Response, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v3/mail/send", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		_ = resp.Body.Close()
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return resp, nil
}

// isRetryable 判断错误是否值得重试：网络错误、限流与服务端错误。
func isRetryable(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}
	return true
}
