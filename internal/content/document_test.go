package content

import (
	"encoding/json"
	"reflect"
	"testing"
)

// fullDocument 构造一份覆盖全部区块类型的文档，agenda/faq 覆盖 0/1/3 个条目。
func fullDocument() Document {
	return Document{
		Name:   "产品发布会",
		Slug:   "product-launch",
		Status: StatusActive,
		Blocks: []Block{
			{ID: "b1", Type: BlockHero, Content: &HeroContent{
				Headline: "发布会", Text: "欢迎参加", ButtonText: "报名",
				ButtonVariant: "primary", ButtonSize: "lg", Action: ActionForm,
			}, Styles: &BlockStyles{
				BackgroundColor: "#000000",
				HeadlineStyles:  &TextStyles{FontSize: "5xl", Color: "#ffffff"},
			}},
			{ID: "b2", Type: BlockHeading, Content: &HeadingContent{Text: "介绍", Level: "h2", Alignment: "center"}},
			{ID: "b3", Type: BlockText, Content: &TextContent{Text: "正文", Alignment: "left"}},
			{ID: "b4", Type: BlockImage, Content: &ImageContent{Src: "https://example.com/a.png", Alt: "海报"}},
			{ID: "b5", Type: BlockButton, Content: &ButtonContent{
				Text: "了解更多", Alignment: "center", Size: "md", Variant: "outline",
				Action: ActionLink, Href: "https://example.com",
			}},
			{ID: "b6", Type: BlockSpeaker, Content: &SpeakerContent{
				Name: "张三", Role: "CTO", Bio: "简介", LinkedinURL: "https://linkedin.com/in/x",
			}},
			{ID: "b7", Type: BlockAgenda, Content: &AgendaContent{}},
			{ID: "b8", Type: BlockAgenda, Content: &AgendaContent{Items: []AgendaItem{
				{Time: "09:00", Title: "签到"},
			}}},
			{ID: "b9", Type: BlockFAQ, Content: &FAQContent{Items: []FAQItem{
				{Question: "q1", Answer: "a1"},
				{Question: "q2", Answer: "a2"},
				{Question: "q3", Answer: "a3"},
			}}},
		},
		FormFields: []FormField{
			{ID: "name", Label: "姓名", Type: FieldText, Placeholder: "请输入姓名"},
			{ID: "email", Label: "邮箱", Type: FieldEmail},
			{ID: "source", Label: "来源 (optional)", Type: FieldSelect, Options: []string{"朋友推荐", "社交媒体"}},
		},
		FormTitle: "报名登记",
		AutoReply: AutoReplyConfig{Enabled: true, Subject: "报名成功", Body: "期待见到你"},
	}
}

func TestDocument_RoundTrip(t *testing.T) {
	doc := fullDocument()

	data, err := doc.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if !reflect.DeepEqual(decoded, doc) {
		t.Fatalf("round-trip mismatch:\n got  %+v\n want %+v", decoded, doc)
	}
}

func TestDecode_IgnoresUnknownContentKeys(t *testing.T) {
	// 负载允许携带未知字段：宽松解码，渲染时忽略
	raw := []byte(`{
		"name":"x","slug":"x","status":"draft",
		"blocks":[{"id":"b1","type":"heading","content":{"text":"hi","level":"h2","alignment":"left","legacyField":42}}],
		"formFields":null,"autoReply":{"enabled":false}
	}`)
	doc, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	heading, ok := doc.Blocks[0].Content.(*HeadingContent)
	if !ok {
		t.Fatalf("content type = %T", doc.Blocks[0].Content)
	}
	if heading.Text != "hi" {
		t.Fatalf("heading text = %q", heading.Text)
	}
}

func TestDecode_UnknownBlockTypeIsTolerated(t *testing.T) {
	raw := []byte(`{
		"name":"x","slug":"x","status":"draft",
		"blocks":[{"id":"b1","type":"carousel","content":{"foo":"bar"}}],
		"formFields":null,"autoReply":{"enabled":false}
	}`)
	doc, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode should tolerate unknown block types: %v", err)
	}
	if doc.Blocks[0].Content != nil {
		t.Fatalf("unknown type must decode to empty content, got %+v", doc.Blocks[0].Content)
	}
	// 渲染未知区块：输出空，不 panic
	if out := RenderBlock(doc.Blocks[0], RenderContext{}); out != "" {
		t.Fatalf("unknown block must render nothing, got %q", out)
	}
}

func TestBlock_MarshalEmptyContent(t *testing.T) {
	data, err := json.Marshal(Block{ID: "b1", Type: BlockText})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(raw["content"]) != "{}" {
		t.Fatalf("empty content must serialize as {}, got %s", raw["content"])
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Product Launch 2026":   "product-launch-2026",
		"  Hello,   World!  ":   "hello-world",
		"全中文名称":                 "event",
		"--already-slugged--  ": "already-slugged",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if _, err := ParseStatus("active"); err != nil {
		t.Fatalf("active: %v", err)
	}
	if _, err := ParseStatus("archived"); err == nil {
		t.Fatal("archived should be rejected")
	}
}
