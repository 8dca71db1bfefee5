package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User 表示白名单内的主办方账号。
// 登录仅对 Whitelisted 的账号放行，由 cmd/admin 预先开通。
type User struct {
	gorm.Model
	Username           string  `gorm:"uniqueIndex;size:64"`
	PasswordHash       string  `gorm:"size:255"`
	Whitelisted        bool    `gorm:"default:false"`
	MustChangePassword bool    `gorm:"default:false"`
	Events             []Event `gorm:"constraint:OnDelete:CASCADE"`
}

// Event 表示一场活动及其落地页内容。
// Content(JSONB) 存储序列化的区块文档，编辑器整体读写；
// Slug 仅在 active 状态要求唯一，由发布流程校验。
type Event struct {
	gorm.Model
	Name             string `gorm:"size:255"`
	Description      string `gorm:"type:text"`
	Slug             string `gorm:"size:255;index"`
	Status           string `gorm:"size:32;default:draft;index"`
	StartsAt         *time.Time
	Location         string         `gorm:"size:255"`
	Content          datatypes.JSON `gorm:"type:jsonb"`
	PreviewImageURL  string         `gorm:"size:512"`
	PreviewObjectKey string         `gorm:"size:512"`
	UserID           uint           `gorm:"index"`
	User             User           `gorm:"constraint:OnDelete:CASCADE"`
	Registrations    []Registration `gorm:"constraint:OnDelete:CASCADE"`
	Expenses         []Expense      `gorm:"constraint:OnDelete:CASCADE"`
	Campaigns        []Campaign     `gorm:"constraint:OnDelete:CASCADE"`
}

// Template 表示可复用的落地页模板。
// Content(JSONB) 与 Event.Content 同构，存区块文档。
type Template struct {
	gorm.Model
	Title           string         `gorm:"size:255"`
	PreviewImageURL string         `gorm:"size:512"`
	Content         datatypes.JSON `gorm:"type:jsonb"`
	IsPublic        bool           `gorm:"default:false"`
	UserID          uint           `gorm:"index"`
	User            User           `gorm:"constraint:OnDelete:CASCADE"`
}

// Registration 表示一条报名记录。
// Details(JSONB) 以表单字段 ID 为键存提交值；QRToken 用于到场核销。
type Registration struct {
	gorm.Model
	EventID     uint           `gorm:"index"`
	Event       Event          `gorm:"constraint:OnDelete:CASCADE"`
	Email       string         `gorm:"size:255;index"`
	Details     datatypes.JSON `gorm:"type:jsonb"`
	QRToken     string         `gorm:"uniqueIndex;size:64"`
	CheckedInAt *time.Time
	EmailStatus string `gorm:"size:32;default:pending"` // pending / sent / failed
}

// Lead 表示一条线索（未必关联具体活动）。
type Lead struct {
	gorm.Model
	UserID  uint   `gorm:"index"`
	EventID *uint  `gorm:"index"`
	Name    string `gorm:"size:255"`
	Email   string `gorm:"size:255;index"`
	Phone   string `gorm:"size:64"`
	Source  string `gorm:"size:64"`
	Note    string `gorm:"type:text"`
}

// Expense 表示活动支出，金额以分为单位避免浮点误差。
type Expense struct {
	gorm.Model
	EventID     uint   `gorm:"index"`
	Event       Event  `gorm:"constraint:OnDelete:CASCADE"`
	Category    string `gorm:"size:64"`
	Label       string `gorm:"size:255"`
	AmountCents int64
	IncurredOn  *time.Time
}

// Campaign 表示一次营销邮件投递。
// Audience 取 registrations / leads / all；投递进度由 Worker 回写。
type Campaign struct {
	gorm.Model
	EventID     uint   `gorm:"index"`
	Event       Event  `gorm:"constraint:OnDelete:CASCADE"`
	Subject     string `gorm:"size:255"`
	Body        string `gorm:"type:text"`
	Audience    string `gorm:"size:32;default:registrations"`
	Status      string `gorm:"size:32;default:pending"` // pending / sending / completed / failed
	SentCount   int
	FailedCount int
}

// Asset 记录用户上传的对象，用于限额与清理。
type Asset struct {
	gorm.Model
	UserID    uint   `gorm:"index"`
	ObjectKey string `gorm:"uniqueIndex;size:512"`
}

// AllModels 列出需要迁移的全部模型。
func AllModels() []any {
	return []any{
		&User{},
		&Event{},
		&Template{},
		&Registration{},
		&Lead{},
		&Expense{},
		&Campaign{},
		&Asset{},
	}
}
