package content

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Status 表示落地页的生命周期状态，决定公开路由是否可达。
type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus 校验外部输入的状态字符串。
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusDraft, StatusActive, StatusCompleted, StatusCancelled:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Document 是一张落地页的完整内容文档：
// 有序区块序列（顺序即页面自上而下的布局）加页面级元数据。
// 序列化后的 JSON 即存储格式，要求逐字段精确往返。
type Document struct {
	Name       string          `json:"name"`
	Slug       string          `json:"slug"`
	Status     Status          `json:"status"`
	Blocks     []Block         `json:"blocks"`
	FormFields []FormField     `json:"formFields"`
	FormTitle  string          `json:"formTitle,omitempty"`
	AutoReply  AutoReplyConfig `json:"autoReply"`
}

// NewDocument 创建一份空白草稿文档，Slug 由名称派生。
func NewDocument(name string) Document {
	return Document{
		Name:   name,
		Slug:   Slugify(name),
		Status: StatusDraft,
	}
}

// Encode 序列化文档。
func (d Document) Encode() ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

// Decode 反序列化文档。Decode(Encode(doc)) 必须与 doc 逐字段相等。
func Decode(data []byte) (Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	return d, nil
}

// FindBlock 按 ID 查找区块，返回下标；未找到返回 -1。
func (d Document) FindBlock(id string) int {
	for i, b := range d.Blocks {
		if b.ID == id {
			return i
		}
	}
	return -1
}

// Clone 返回文档的深拷贝，供引擎边界之外安全持有。
func (d Document) Clone() Document {
	out := d
	if d.Blocks != nil {
		out.Blocks = make([]Block, len(d.Blocks))
		for i, b := range d.Blocks {
			out.Blocks[i] = b.clone()
		}
	}
	if d.FormFields != nil {
		out.FormFields = make([]FormField, len(d.FormFields))
		for i, f := range d.FormFields {
			out.FormFields[i] = f
			if f.Options != nil {
				out.FormFields[i].Options = append([]string(nil), f.Options...)
			}
		}
	}
	return out
}

var (
	slugInvalid  = regexp.MustCompile(`[^a-z0-9]+`)
	slugTrimDash = regexp.MustCompile(`^-+|-+$`)
)

// Slugify 从名称派生 URL 安全的标识；用户可在编辑器中自行改写。
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = slugInvalid.ReplaceAllString(s, "-")
	s = slugTrimDash.ReplaceAllString(s, "")
	if s == "" {
		s = "event"
	}
	return s
}
