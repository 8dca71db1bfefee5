package content

import (
	"encoding/json"
	"fmt"
)

// BlockType 表示落地页内容块的封闭类型集合。
type BlockType string

const (
	BlockHero    BlockType = "hero"
	BlockHeading BlockType = "heading"
	BlockText    BlockType = "text"
	BlockImage   BlockType = "image"
	BlockButton  BlockType = "button"
	BlockSpeaker BlockType = "speaker"
	BlockAgenda  BlockType = "agenda"
	BlockFAQ     BlockType = "faq"
)

// BlockTypes 按编辑器面板中的展示顺序列出全部类型。
var BlockTypes = []BlockType{
	BlockHero,
	BlockHeading,
	BlockText,
	BlockImage,
	BlockButton,
	BlockSpeaker,
	BlockAgenda,
	BlockFAQ,
}

// ParseBlockType 校验外部输入的类型字符串。
func ParseBlockType(s string) (BlockType, error) {
	t := BlockType(s)
	for _, known := range BlockTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown block type %q", s)
}

// 按钮动作：link 跳转外链，form 弹出报名表单。
const (
	ActionLink = "link"
	ActionForm = "form"
)

// BlockContent 是各内容块负载的统一接口，由各变体的指针类型实现。
type BlockContent interface {
	blockType() BlockType
	clone() BlockContent
}

// HeroContent 首屏大图区块。
type HeroContent struct {
	Headline           string `json:"headline,omitempty"`
	Text               string `json:"text,omitempty"`
	ButtonText         string `json:"buttonText,omitempty"`
	BackgroundImageSrc string `json:"backgroundImageSrc,omitempty"`
	ButtonVariant      string `json:"buttonVariant,omitempty"`
	ButtonSize         string `json:"buttonSize,omitempty"`
	Action             string `json:"action,omitempty"`
	Href               string `json:"href,omitempty"`
}

// HeadingContent 标题区块，level 取 h1/h2/h3。
type HeadingContent struct {
	Text      string `json:"text,omitempty"`
	Level     string `json:"level,omitempty"`
	Alignment string `json:"alignment,omitempty"`
}

// TextContent 正文段落区块。
type TextContent struct {
	Text      string `json:"text,omitempty"`
	Alignment string `json:"alignment,omitempty"`
}

// ImageContent 图片区块；Src 为空时渲染占位（作者态提示，不是错误）。
type ImageContent struct {
	Src string `json:"src,omitempty"`
	Alt string `json:"alt,omitempty"`
}

// ButtonContent 独立 CTA 按钮区块。
type ButtonContent struct {
	Text      string `json:"text,omitempty"`
	Alignment string `json:"alignment,omitempty"`
	Size      string `json:"size,omitempty"`
	Variant   string `json:"variant,omitempty"`
	Action    string `json:"action,omitempty"`
	Href      string `json:"href,omitempty"`
}

// SpeakerContent 讲师/嘉宾区块。
type SpeakerContent struct {
	Name        string `json:"name,omitempty"`
	Role        string `json:"role,omitempty"`
	Bio         string `json:"bio,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	LinkedinURL string `json:"linkedinUrl,omitempty"`
}

// AgendaItem 议程条目，顺序由数组顺序决定，渲染时不排序。
type AgendaItem struct {
	Time        string `json:"time,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// AgendaContent 议程时间线区块。
type AgendaContent struct {
	Items []AgendaItem `json:"items"`
}

// FAQItem 单条问答。
type FAQItem struct {
	Question string `json:"question,omitempty"`
	Answer   string `json:"answer,omitempty"`
}

// FAQContent 折叠问答区块（同一时刻最多展开一项）。
type FAQContent struct {
	Items []FAQItem `json:"items"`
}

func (*HeroContent) blockType() BlockType    { return BlockHero }
func (*HeadingContent) blockType() BlockType { return BlockHeading }
func (*TextContent) blockType() BlockType    { return BlockText }
func (*ImageContent) blockType() BlockType   { return BlockImage }
func (*ButtonContent) blockType() BlockType  { return BlockButton }
func (*SpeakerContent) blockType() BlockType { return BlockSpeaker }
func (*AgendaContent) blockType() BlockType  { return BlockAgenda }
func (*FAQContent) blockType() BlockType     { return BlockFAQ }

func (c *HeroContent) clone() BlockContent    { d := *c; return &d }
func (c *HeadingContent) clone() BlockContent { d := *c; return &d }
func (c *TextContent) clone() BlockContent    { d := *c; return &d }
func (c *ImageContent) clone() BlockContent   { d := *c; return &d }
func (c *ButtonContent) clone() BlockContent  { d := *c; return &d }
func (c *SpeakerContent) clone() BlockContent { d := *c; return &d }

func (c *AgendaContent) clone() BlockContent {
	d := AgendaContent{}
	if c.Items != nil {
		d.Items = make([]AgendaItem, len(c.Items))
		copy(d.Items, c.Items)
	}
	return &d
}

func (c *FAQContent) clone() BlockContent {
	d := FAQContent{}
	if c.Items != nil {
		d.Items = make([]FAQItem, len(c.Items))
		copy(d.Items, c.Items)
	}
	return &d
}

// emptyContent 返回指定类型的零值负载，用于 JSON 解码。
func emptyContent(t BlockType) BlockContent {
	switch t {
	case BlockHero:
		return &HeroContent{}
	case BlockHeading:
		return &HeadingContent{}
	case BlockText:
		return &TextContent{}
	case BlockImage:
		return &ImageContent{}
	case BlockButton:
		return &ButtonContent{}
	case BlockSpeaker:
		return &SpeakerContent{}
	case BlockAgenda:
		return &AgendaContent{}
	case BlockFAQ:
		return &FAQContent{}
	default:
		return nil
	}
}

// Block 表示落地页中的一个可渲染单元。
// ID 在创建时分配且全生命周期稳定；Type 创建后不可变（改类型等于删除重建）。
type Block struct {
	ID      string       `json:"id"`
	Type    BlockType    `json:"type"`
	Content BlockContent `json:"content"`
	Styles  *BlockStyles `json:"styles,omitempty"`
}

type blockJSON struct {
	ID      string          `json:"id"`
	Type    BlockType       `json:"type"`
	Content json.RawMessage `json:"content"`
	Styles  *BlockStyles    `json:"styles,omitempty"`
}

// MarshalJSON 按类型序列化负载；空负载输出为 {}。
func (b Block) MarshalJSON() ([]byte, error) {
	raw := blockJSON{ID: b.ID, Type: b.Type, Styles: b.Styles}
	if b.Content != nil {
		data, err := json.Marshal(b.Content)
		if err != nil {
			return nil, fmt.Errorf("marshal %s content: %w", b.Type, err)
		}
		raw.Content = data
	} else {
		raw.Content = json.RawMessage("{}")
	}
	return json.Marshal(raw)
}

// UnmarshalJSON 宽松解码：未知类型负载置空（渲染时跳过），
// 负载中的未知字段按 encoding/json 的默认行为忽略。
func (b *Block) UnmarshalJSON(data []byte) error {
	var raw blockJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	b.ID = raw.ID
	b.Type = raw.Type
	b.Styles = raw.Styles
	b.Content = nil

	payload := emptyContent(raw.Type)
	if payload == nil {
		return nil
	}
	if len(raw.Content) > 0 {
		if err := json.Unmarshal(raw.Content, payload); err != nil {
			return fmt.Errorf("unmarshal %s content: %w", raw.Type, err)
		}
	}
	b.Content = payload
	return nil
}

func (b Block) clone() Block {
	out := Block{ID: b.ID, Type: b.Type}
	if b.Content != nil {
		out.Content = b.Content.clone()
	}
	if b.Styles != nil {
		out.Styles = b.Styles.clone()
	}
	return out
}
