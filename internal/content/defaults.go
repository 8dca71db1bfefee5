package content

import "github.com/google/uuid"

// DefaultContent 返回新增区块时的默认负载。
// 类型集合是封闭的，调用方传入未知类型返回 nil（配置错误，正常流程不会出现）。
func DefaultContent(t BlockType) BlockContent {
	switch t {
	case BlockHero:
		return &HeroContent{
			Headline:           "活动主标题",
			Text:               "一句话介绍你的活动亮点",
			ButtonText:         "立即报名",
			BackgroundImageSrc: "",
			ButtonVariant:      "primary",
			ButtonSize:         "lg",
			Action:             ActionForm,
		}
	case BlockHeading:
		return &HeadingContent{
			Text:      "栏目标题",
			Level:     "h2",
			Alignment: "left",
		}
	case BlockText:
		return &TextContent{
			Text:      "在这里填写介绍文字。",
			Alignment: "left",
		}
	case BlockImage:
		return &ImageContent{Src: "", Alt: ""}
	case BlockButton:
		return &ButtonContent{
			Text:      "了解更多",
			Alignment: "center",
			Size:      "md",
			Variant:   "primary",
			Action:    ActionLink,
		}
	case BlockSpeaker:
		return &SpeakerContent{
			Name: "嘉宾姓名",
			Role: "职位 / 公司",
			Bio:  "嘉宾简介",
		}
	case BlockAgenda:
		return &AgendaContent{
			Items: []AgendaItem{
				{Time: "09:00", Title: "签到入场", Description: ""},
			},
		}
	case BlockFAQ:
		return &FAQContent{
			Items: []FAQItem{
				{Question: "如何参加本次活动？", Answer: "提交报名表单后，凭确认邮件中的二维码入场。"},
			},
		}
	default:
		return nil
	}
}

// NewBlock 用默认负载创建一个新区块并分配稳定 ID。
func NewBlock(t BlockType) Block {
	return Block{
		ID:      uuid.NewString(),
		Type:    t,
		Content: DefaultContent(t),
	}
}
