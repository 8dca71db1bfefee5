package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"eventFlow/internal/config"
	"eventFlow/internal/content"
)

// Client 抽象文案与图片生成，方便 handler 测试时替换假实现。
type Client interface {
	GenerateBlockContent(ctx context.Context, blockType content.BlockType, eventName, eventDescription, userPrompt string) (content.BlockContent, error)
	GenerateImage(ctx context.Context, prompt string) (string, error)
	EditImage(ctx context.Context, prompt, imageURL string) (string, error)
}

// HTTPError 携带 OpenAI 返回的非 2xx 响应内容。
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
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, msg)
}

type client struct {
	cfg        config.OpenAIConfig
	httpClient *http.Client
	logger     *slog.Logger
	maxRetries int
}

// NewClient 构造 OpenAI 客户端。
func NewClient(cfg config.OpenAIConfig, logger *slog.Logger) (Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if strings.TrimSpace(cfg.TextModel) == "" {
		cfg.TextModel = "gpt-4o-mini"
	}
	if strings.TrimSpace(cfg.ImageModel) == "" {
		cfg.ImageModel = "gpt-image-1"
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 60
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	return &client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		logger:     logger.With("client", "openai"),
		maxRetries: maxRetries,
	}, nil
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
	Temperature    float64           `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// blockFieldHints 告诉模型每种区块要返回哪些 JSON 字段。
var blockFieldHints = map[content.BlockType]string{
	content.BlockHero:    `"headline", "text", "buttonText"`,
	content.BlockHeading: `"text"`,
	content.BlockText:    `"text"`,
	content.BlockButton:  `"text"`,
	content.BlockSpeaker: `"name", "role", "bio"`,
	content.BlockAgenda:  `"items" (array of {"time", "title", "description"})`,
	content.BlockFAQ:     `"items" (array of {"question", "answer"})`,
}

// GenerateBlockContent 让模型生成指定区块类型的内容字段。
// 返回的内容已解析成对应区块的内容结构，可直接写入文档。
func (c *client) GenerateBlockContent(ctx context.Context, blockType content.BlockType, eventName, eventDescription, userPrompt string) (content.BlockContent, error) {
	hint, ok := blockFieldHints[blockType]
	if !ok {
		return nil, fmt.Errorf("unsupported block type for generation: %s", blockType)
	}

	system := "你是活动落地页的文案助手。只输出一个 JSON 对象，不要包含任何解释文字。"
	prompt := fmt.Sprintf(
		"为活动 %q 生成一个 %s 区块的中文文案。活动介绍：%s。输出 JSON 对象，仅包含字段 %s。",
		eventName, blockType, eventDescription, hint,
	)
	if strings.TrimSpace(userPrompt) != "" {
		prompt += " 额外要求：" + userPrompt
	}

	reqBody := chatCompletionRequest{
		Model: c.cfg.TextModel,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
		Temperature:    0.7,
	}

	var resp chatCompletionResponse
	if err := c.doJSON(ctx, "/v1/chat/completions", reqBody, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: empty completion response")
	}

	return decodeBlockContent(blockType, resp.Choices[0].Message.Content)
}

// decodeBlockContent 把模型输出包进区块信封，复用内容包的按类型解码。
func decodeBlockContent(blockType content.BlockType, raw string) (content.BlockContent, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	envelope := fmt.Sprintf(`{"id":"generated","type":%q,"content":%s}`, blockType, raw)
	var block content.Block
	if err := json.Unmarshal([]byte(envelope), &block); err != nil {
		return nil, fmt.Errorf("decode generated content: %w", err)
	}
	if block.Content == nil {
		return nil, errors.New("generated content did not match block shape")
	}
	return block.Content, nil
}

type imageGenerationRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size"`
}

type imageGenerationResponse struct {
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// GenerateImage 生成一张图片，返回可直接用于 <img src> 的地址。
func (c *client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	reqBody := imageGenerationRequest{
		Model:  c.cfg.ImageModel,
		Prompt: prompt,
		N:      1,
		Size:   "1536x1024",
	}

	var resp imageGenerationResponse
	if err := c.doJSON(ctx, "/v1/images/generations", reqBody, &resp); err != nil {
		return "", err
	}
	return imageResultURL(resp)
}

// EditImage 下载原图后调用图片编辑接口，返回新图片地址。
func (c *client) EditImage(ctx context.Context, prompt, imageURL string) (string, error) {
	imageBytes, err := c.downloadImage(ctx, imageURL)
	if err != nil {
		return "", fmt.Errorf("download source image: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("model", c.cfg.ImageModel); err != nil {
		return "", err
	}
	if err := writer.WriteField("prompt", prompt); err != nil {
		return "", err
	}
	part, err := writer.CreateFormFile("image", "source.png")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(imageBytes); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/images/edits", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 16<<20))
	if err != nil {
		return "", err
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return "", &HTTPError{StatusCode: httpResp.StatusCode, Body: string(raw)}
	}

	var resp imageGenerationResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode image edit response: %w", err)
	}
	return imageResultURL(resp)
}

func imageResultURL(resp imageGenerationResponse) (string, error) {
	if len(resp.Data) == 0 {
		return "", errors.New("openai: empty image response")
	}
	if url := strings.TrimSpace(resp.Data[0].URL); url != "" {
		return url, nil
	}
	if b64 := strings.TrimSpace(resp.Data[0].B64JSON); b64 != "" {
		return "data:image/png;base64," + b64, nil
	}
	return "", errors.New("openai: image response has neither url nor b64 payload")
}

func (c *client) downloadImage(ctx context.Context, imageURL string) ([]byte, error) {
	if b64, ok := strings.CutPrefix(imageURL, "data:image/png;base64,"); ok {
		return base64.StdEncoding.DecodeString(b64)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 16<<20))
}

func (c *client) doJSON(ctx context.Context, path string, body, out any) error {
	backoff := time.Second

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := c.doOnce(ctx, path, body, out)
		if err == nil {
			return nil
		}

		if !isRetryable(err) || attempt == c.maxRetries {
			return err
		}

		c.logger.Warn("OpenAI 请求失败，准备重试",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"backoff", backoff.String(),
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (c *client) doOnce(ctx context.Context, path string, body, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode openai response: %w", err)
	}
	return nil
}

func isRetryable(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}
	return true
}
