package content

import "strings"

// TextStyles 是 hero 区块中标题/副文/按钮各自的样式子组。
type TextStyles struct {
	FontSize        string `json:"fontSize,omitempty"`
	Color           string `json:"color,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
}

// BlockStyles 是区块级的视觉覆盖项。
// 缺失字段在渲染时回落到变体默认值，默认值本身从不持久化。
type BlockStyles struct {
	BackgroundColor string      `json:"backgroundColor,omitempty"`
	TextColor       string      `json:"textColor,omitempty"`
	FontSize        string      `json:"fontSize,omitempty"`
	Padding         string      `json:"padding,omitempty"`
	HeadlineStyles  *TextStyles `json:"headlineStyles,omitempty"`
	SubtextStyles   *TextStyles `json:"subtextStyles,omitempty"`
	ButtonStyles    *TextStyles `json:"buttonStyles,omitempty"`
}

func (s *BlockStyles) clone() *BlockStyles {
	if s == nil {
		return nil
	}
	out := *s
	if s.HeadlineStyles != nil {
		v := *s.HeadlineStyles
		out.HeadlineStyles = &v
	}
	if s.SubtextStyles != nil {
		v := *s.SubtextStyles
		out.SubtextStyles = &v
	}
	if s.ButtonStyles != nil {
		v := *s.ButtonStyles
		out.ButtonStyles = &v
	}
	return &out
}

// 渲染期默认值（见 ResolveBlockStyles / ResolveTextStyles）。
const (
	DefaultPadding          = "medium"
	DefaultFontSize         = "base"
	DefaultHeroHeadlineSize = "4xl"
	DefaultHeroSubtextSize  = "xl"
	DefaultHeroButtonSize   = "lg"
)

// ResolvedBlockStyles 是补全默认值之后的容器样式，所有字段均有取值或显式为空。
type ResolvedBlockStyles struct {
	BackgroundColor string // 为空表示继承页面默认，不输出覆盖
	TextColor       string
	FontSize        string
	Padding         string
}

// ResolveBlockStyles 对容器样式做确定性的全量补全：
// padding 缺省 medium，fontSize 缺省 base，颜色缺省不覆盖。
func ResolveBlockStyles(s *BlockStyles) ResolvedBlockStyles {
	out := ResolvedBlockStyles{
		Padding:  DefaultPadding,
		FontSize: DefaultFontSize,
	}
	if s == nil {
		return out
	}
	out.BackgroundColor = strings.TrimSpace(s.BackgroundColor)
	out.TextColor = strings.TrimSpace(s.TextColor)
	if v := strings.TrimSpace(s.FontSize); v != "" {
		out.FontSize = v
	}
	if v := strings.TrimSpace(s.Padding); v != "" {
		out.Padding = v
	}
	return out
}

// ResolveTextStyles 补全样式子组，fontSize 缺省取变体默认（hero: 4xl/xl/lg）。
func ResolveTextStyles(s *TextStyles, defaultFontSize string) TextStyles {
	out := TextStyles{FontSize: defaultFontSize}
	if s == nil {
		return out
	}
	if v := strings.TrimSpace(s.FontSize); v != "" {
		out.FontSize = v
	}
	out.Color = strings.TrimSpace(s.Color)
	out.BackgroundColor = strings.TrimSpace(s.BackgroundColor)
	return out
}

// fontSizeKeywords 是映射为工具类的尺寸关键字；其余取值按字面量透传为内联样式。
var fontSizeKeywords = map[string]struct{}{
	"xs": {}, "sm": {}, "base": {}, "lg": {}, "xl": {},
	"2xl": {}, "3xl": {}, "4xl": {}, "5xl": {}, "6xl": {}, "7xl": {},
}

var paddingClasses = map[string]string{
	"none":   "py-0",
	"small":  "py-4",
	"medium": "py-8",
	"large":  "py-16",
}

// FontSizeClass 返回尺寸关键字对应的工具类；
// 非关键字（例如 "18px"）返回空类名和内联样式值。
func FontSizeClass(size string) (class string, inline string) {
	size = strings.TrimSpace(size)
	if size == "" {
		size = DefaultFontSize
	}
	if _, ok := fontSizeKeywords[size]; ok {
		return "text-" + size, ""
	}
	return "", size
}

// PaddingClass 返回间距关键字对应的工具类；非关键字按字面量透传。
func PaddingClass(padding string) (class string, inline string) {
	padding = strings.TrimSpace(padding)
	if padding == "" {
		padding = DefaultPadding
	}
	if class, ok := paddingClasses[padding]; ok {
		return class, ""
	}
	return "", padding
}
