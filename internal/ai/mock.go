package ai

import (
	"context"

	"eventFlow/internal/content"
)

// StaticContent 返回指定区块类型的兜底文案。
// AI 调用失败时编辑器拿这份内容继续工作，绝不向用户抛错。
func StaticContent(blockType content.BlockType) content.BlockContent {
	switch blockType {
	case content.BlockHero:
		return &content.HeroContent{
			Headline:   "一场不容错过的精彩活动",
			Text:       "与行业同行面对面交流，收获实战经验与新的合作机会。",
			ButtonText: "立即报名",
		}
	case content.BlockHeading:
		return &content.HeadingContent{Text: "活动亮点"}
	case content.BlockText:
		return &content.TextContent{Text: "我们精心准备了主题分享、圆桌讨论和自由交流环节，期待你的到来。"}
	case content.BlockButton:
		return &content.ButtonContent{Text: "了解更多"}
	case content.BlockSpeaker:
		return &content.SpeakerContent{
			Name: "特邀嘉宾",
			Role: "行业专家",
			Bio:  "拥有多年一线实践经验，将带来深入浅出的主题分享。",
		}
	case content.BlockAgenda:
		return &content.AgendaContent{Items: []content.AgendaItem{
			{Time: "09:00", Title: "签到入场"},
			{Time: "09:30", Title: "开场致辞"},
			{Time: "10:00", Title: "主题分享"},
		}}
	case content.BlockFAQ:
		return &content.FAQContent{Items: []content.FAQItem{
			{Question: "活动是否收费？", Answer: "本次活动免费，报名成功后凭二维码签到入场。"},
			{Question: "可以带同事一起参加吗？", Answer: "可以，请让同事单独报名，方便我们统计人数。"},
		}}
	default:
		return nil
	}
}

const mockImageDataURI = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

// MockClient 返回静态内容，供本地开发与测试使用。
type MockClient struct{}

func (MockClient) GenerateBlockContent(_ context.Context, blockType content.BlockType, _, _, _ string) (content.BlockContent, error) {
	return StaticContent(blockType), nil
}

func (MockClient) GenerateImage(_ context.Context, _ string) (string, error) {
	return mockImageDataURI, nil
}

func (MockClient) EditImage(_ context.Context, _, _ string) (string, error) {
	return mockImageDataURI, nil
}
