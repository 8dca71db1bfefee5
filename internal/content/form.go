package content

import "strings"

// FieldType 表示报名表单字段的输入类型。
type FieldType string

const (
	FieldText   FieldType = "text"
	FieldEmail  FieldType = "email"
	FieldTel    FieldType = "tel"
	FieldSelect FieldType = "select"
)

// FormField 描述页面级报名表单中的一个字段。
// 字段值以 ID 为键查找，Label 只用于展示与选填判定。
type FormField struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Type        FieldType `json:"type"`
	Placeholder string    `json:"placeholder,omitempty"`
	Options     []string  `json:"options,omitempty"`
}

// Optional 判断字段是否选填：Label 中包含 "(optional)"（忽略大小写）即为选填。
func (f FormField) Optional() bool {
	return strings.Contains(strings.ToLower(f.Label), "(optional)")
}

// MissingFields 返回提交值中缺失的必填字段 ID 列表。
// 这里只做建议性校验，最终是否接受提交由调用方决定。
func MissingFields(fields []FormField, values map[string]string) []string {
	var missing []string
	for _, f := range fields {
		if f.Optional() {
			continue
		}
		if strings.TrimSpace(values[f.ID]) == "" {
			missing = append(missing, f.ID)
		}
	}
	return missing
}

// AutoReplyConfig 报名确认邮件的自定义配置；Enabled 时覆盖默认确认邮件文案。
type AutoReplyConfig struct {
	Enabled bool   `json:"enabled"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body,omitempty"`
}
