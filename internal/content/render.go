package content

import (
	"fmt"
	"html"
	"strings"
)

// RenderContext 描述一次渲染的上下文。
// Editable 为真时处于编辑画布：所有跳转与业务动作被抑制，
// 点击只用于选中区块；为假时是公开页，按钮点击先上报统计再执行动作。
type RenderContext struct {
	Editable bool
}

// RenderBlock 把一个区块渲染成 HTML 片段。纯函数，无副作用；
// 负载缺失或类型未知时返回空串，绝不 panic（见错误处理约定）。
// 编辑画布与公开页使用同一份渲染逻辑，保证两侧呈现一致。
func RenderBlock(b Block, ctx RenderContext) string {
	if b.Content == nil {
		return ""
	}

	switch c := b.Content.(type) {
	case *HeroContent:
		return renderHero(b, c, ctx)
	case *HeadingContent:
		return renderHeading(b, c, ctx)
	case *TextContent:
		return renderText(b, c, ctx)
	case *ImageContent:
		return renderImage(b, c, ctx)
	case *ButtonContent:
		return renderButton(b, c, ctx)
	case *SpeakerContent:
		return renderSpeaker(b, c, ctx)
	case *AgendaContent:
		return renderAgenda(b, c, ctx)
	case *FAQContent:
		return renderFAQ(b, c, ctx)
	default:
		return ""
	}
}

// RenderDocument 按区块顺序渲染整页内容。
func RenderDocument(d Document, ctx RenderContext) string {
	var sb strings.Builder
	for _, b := range d.Blocks {
		sb.WriteString(RenderBlock(b, ctx))
	}
	return sb.String()
}

func esc(s string) string { return html.EscapeString(s) }

// styleList 拼接内联样式，跳过空值，保证输出确定性。
type styleList struct {
	pairs []string
}

func (s *styleList) add(prop, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	s.pairs = append(s.pairs, prop+":"+value)
}

func (s *styleList) attr() string {
	if len(s.pairs) == 0 {
		return ""
	}
	return ` style="` + esc(strings.Join(s.pairs, ";")) + `"`
}

// cssURL 把外部地址包成 url("…")，去掉能截断 url() 或引号的字符，
// 防止地址里夹带额外的样式声明。
func cssURL(src string) string {
	cleaned := strings.NewReplacer("(", "", ")", "", `"`, "", "'", "", `\`, "").Replace(src)
	return `url("` + cleaned + `")`
}

func alignClass(alignment string) string {
	switch alignment {
	case "center":
		return "text-center"
	case "right":
		return "text-right"
	default:
		return "text-left"
	}
}

// blockAttrs 输出区块根元素上的公共属性；编辑态带上画布选中所需的标记。
func blockAttrs(b Block, ctx RenderContext) string {
	if !ctx.Editable {
		return ""
	}
	return fmt.Sprintf(` data-block-id=%q data-block-type=%q`, esc(b.ID), esc(string(b.Type)))
}

// containerOpen 打开通用容器：居中布局，区块级样式覆盖应用在容器上。
func containerOpen(b Block, ctx RenderContext) string {
	resolved := ResolveBlockStyles(b.Styles)

	classes := []string{"mx-auto", "w-full", "max-w-3xl", "px-4"}
	styles := &styleList{}

	if class, inline := PaddingClass(resolved.Padding); class != "" {
		classes = append(classes, class)
	} else {
		styles.add("padding", inline)
	}
	if class, inline := FontSizeClass(resolved.FontSize); class != "" {
		classes = append(classes, class)
	} else {
		styles.add("font-size", inline)
	}
	styles.add("background-color", resolved.BackgroundColor)
	styles.add("color", resolved.TextColor)

	return fmt.Sprintf(`<section class=%q%s%s>`,
		strings.Join(classes, " "), styles.attr(), blockAttrs(b, ctx))
}

// ---- 按钮动作 ----

// renderActionControl 渲染带 link/form 双动作语义的按钮。
// 编辑态下不输出 href、表单钩子与统计标记：点击只会落到画布的选中逻辑上。
// 公开页上 data-track 由页面脚本先行发送点击上报（fire-and-forget），
// 再执行主动作；上报失败不影响也不阻塞主动作。
func renderActionControl(text, action, href string, classes string, styles *styleList, ctx RenderContext) string {
	if ctx.Editable {
		return fmt.Sprintf(`<button type="button" class=%q%s>%s</button>`,
			classes, styles.attr(), esc(text))
	}

	switch action {
	case ActionLink:
		if strings.TrimSpace(href) == "" {
			return fmt.Sprintf(`<button type="button" class=%q%s data-track="click">%s</button>`,
				classes, styles.attr(), esc(text))
		}
		return fmt.Sprintf(`<a href=%q target="_blank" rel="noopener noreferrer" class=%q%s data-track="click">%s</a>`,
			esc(href), classes, styles.attr(), esc(text))
	default:
		// form 或未指定：打开报名表单
		return fmt.Sprintf(`<button type="button" class=%q%s data-open-form data-track="click">%s</button>`,
			classes, styles.attr(), esc(text))
	}
}

func buttonClasses(variant, size string) string {
	classes := []string{"inline-block", "rounded-lg", "font-semibold", "transition"}

	switch size {
	case "sm":
		classes = append(classes, "px-4", "py-2", "text-sm")
	case "lg":
		classes = append(classes, "px-8", "py-4", "text-lg")
	default:
		classes = append(classes, "px-6", "py-3", "text-base")
	}

	switch variant {
	case "secondary":
		classes = append(classes, "bg-gray-200", "text-gray-900", "hover:bg-gray-300")
	case "outline":
		classes = append(classes, "border", "border-current", "bg-transparent", "hover:bg-white/10")
	default:
		classes = append(classes, "bg-indigo-600", "text-white", "hover:bg-indigo-700")
	}

	return strings.Join(classes, " ")
}

// ---- 各变体 ----

func renderHero(b Block, c *HeroContent, ctx RenderContext) string {
	var sb strings.Builder

	classes := []string{
		"relative", "flex", "min-h-[480px]", "w-full", "flex-col",
		"items-center", "justify-center", "px-6", "text-center",
	}
	styles := &styleList{}
	if strings.TrimSpace(c.BackgroundImageSrc) != "" {
		classes = append(classes, "bg-cover", "bg-center")
		styles.add("background-image", cssURL(c.BackgroundImageSrc))
	} else {
		classes = append(classes, "bg-gradient-to-br", "from-indigo-600", "to-purple-700")
	}
	if b.Styles != nil {
		styles.add("background-color", b.Styles.BackgroundColor)
		styles.add("color", b.Styles.TextColor)
	}

	fmt.Fprintf(&sb, `<section class=%q%s%s>`,
		strings.Join(classes, " "), styles.attr(), blockAttrs(b, ctx))

	var sub *BlockStyles
	if b.Styles != nil {
		sub = b.Styles
	} else {
		sub = &BlockStyles{}
	}

	headline := ResolveTextStyles(sub.HeadlineStyles, DefaultHeroHeadlineSize)
	hlStyles := &styleList{}
	hlClasses := []string{"font-bold", "text-white", "drop-shadow"}
	if class, inline := FontSizeClass(headline.FontSize); class != "" {
		hlClasses = append(hlClasses, class)
	} else {
		hlStyles.add("font-size", inline)
	}
	hlStyles.add("color", headline.Color)
	hlStyles.add("background-color", headline.BackgroundColor)
	fmt.Fprintf(&sb, `<h1 class=%q%s>%s</h1>`, strings.Join(hlClasses, " "), hlStyles.attr(), esc(c.Headline))

	subtext := ResolveTextStyles(sub.SubtextStyles, DefaultHeroSubtextSize)
	stStyles := &styleList{}
	stClasses := []string{"mt-4", "max-w-2xl", "text-white/90"}
	if class, inline := FontSizeClass(subtext.FontSize); class != "" {
		stClasses = append(stClasses, class)
	} else {
		stStyles.add("font-size", inline)
	}
	stStyles.add("color", subtext.Color)
	stStyles.add("background-color", subtext.BackgroundColor)
	fmt.Fprintf(&sb, `<p class=%q%s>%s</p>`, strings.Join(stClasses, " "), stStyles.attr(), esc(c.Text))

	if strings.TrimSpace(c.ButtonText) != "" {
		button := ResolveTextStyles(sub.ButtonStyles, DefaultHeroButtonSize)
		btnStyles := &styleList{}
		btnClasses := []string{"mt-8", buttonClasses(c.ButtonVariant, c.ButtonSize)}
		if class, inline := FontSizeClass(button.FontSize); class != "" {
			btnClasses = append(btnClasses, class)
		} else {
			btnStyles.add("font-size", inline)
		}
		btnStyles.add("color", button.Color)
		btnStyles.add("background-color", button.BackgroundColor)
		sb.WriteString(renderActionControl(c.ButtonText, c.Action, c.Href,
			strings.Join(btnClasses, " "), btnStyles, ctx))
	}

	sb.WriteString(`</section>`)
	return sb.String()
}

func renderHeading(b Block, c *HeadingContent, ctx RenderContext) string {
	tag := "h2"
	sizeClass := "text-3xl"
	switch c.Level {
	case "h1":
		tag, sizeClass = "h1", "text-4xl"
	case "h3":
		tag, sizeClass = "h3", "text-2xl"
	}

	return containerOpen(b, ctx) +
		fmt.Sprintf(`<%s class="%s font-bold %s">%s</%s>`,
			tag, sizeClass, alignClass(c.Alignment), esc(c.Text), tag) +
		`</section>`
}

func renderText(b Block, c *TextContent, ctx RenderContext) string {
	return containerOpen(b, ctx) +
		fmt.Sprintf(`<p class="leading-relaxed %s">%s</p>`, alignClass(c.Alignment), esc(c.Text)) +
		`</section>`
}

func renderImage(b Block, c *ImageContent, ctx RenderContext) string {
	var inner string
	if strings.TrimSpace(c.Src) == "" {
		// 作者态占位：空图片不是错误
		inner = `<div class="flex aspect-video w-full items-center justify-center rounded-lg border-2 border-dashed border-gray-300 text-gray-400">图片占位</div>`
	} else {
		inner = fmt.Sprintf(`<img src=%q alt=%q class="aspect-video w-full rounded-lg object-cover"/>`,
			esc(c.Src), esc(c.Alt))
	}
	return containerOpen(b, ctx) + inner + `</section>`
}

func renderButton(b Block, c *ButtonContent, ctx RenderContext) string {
	wrapClass := "flex justify-center"
	switch c.Alignment {
	case "left":
		wrapClass = "flex justify-start"
	case "right":
		wrapClass = "flex justify-end"
	}

	control := renderActionControl(c.Text, c.Action, c.Href,
		buttonClasses(c.Variant, c.Size), &styleList{}, ctx)

	return containerOpen(b, ctx) +
		fmt.Sprintf(`<div class=%q>%s</div>`, wrapClass, control) +
		`</section>`
}

func renderSpeaker(b Block, c *SpeakerContent, ctx RenderContext) string {
	var sb strings.Builder
	sb.WriteString(containerOpen(b, ctx))
	sb.WriteString(`<div class="flex items-start gap-4">`)

	if strings.TrimSpace(c.ImageURL) != "" {
		fmt.Fprintf(&sb, `<img src=%q alt=%q class="h-20 w-20 rounded-full object-cover"/>`,
			esc(c.ImageURL), esc(c.Name))
	} else {
		fmt.Fprintf(&sb, `<div class="flex h-20 w-20 items-center justify-center rounded-full bg-indigo-100 text-2xl font-bold text-indigo-600">%s</div>`,
			esc(firstLetter(c.Name)))
	}

	sb.WriteString(`<div>`)
	fmt.Fprintf(&sb, `<p class="text-lg font-semibold">%s</p>`, esc(c.Name))
	fmt.Fprintf(&sb, `<p class="text-sm text-gray-500">%s</p>`, esc(c.Role))
	fmt.Fprintf(&sb, `<p class="mt-2 text-sm leading-relaxed">%s</p>`, esc(c.Bio))
	if link := strings.TrimSpace(c.LinkedinURL); link != "" {
		if ctx.Editable {
			sb.WriteString(`<span class="mt-2 inline-block text-sm text-indigo-600">LinkedIn</span>`)
		} else {
			fmt.Fprintf(&sb, `<a href=%q target="_blank" rel="noopener noreferrer" class="mt-2 inline-block text-sm text-indigo-600 hover:underline">LinkedIn</a>`,
				esc(link))
		}
	}
	sb.WriteString(`</div></div></section>`)
	return sb.String()
}

func renderAgenda(b Block, c *AgendaContent, ctx RenderContext) string {
	var sb strings.Builder
	sb.WriteString(containerOpen(b, ctx))
	sb.WriteString(`<ol class="relative space-y-6 border-l-2 border-indigo-200 pl-6">`)
	// 条目顺序即数组顺序，由作者控制，渲染时不排序
	for _, item := range c.Items {
		sb.WriteString(`<li>`)
		fmt.Fprintf(&sb, `<span class="text-sm font-semibold text-indigo-600">%s</span>`, esc(item.Time))
		fmt.Fprintf(&sb, `<p class="font-semibold">%s</p>`, esc(item.Title))
		if strings.TrimSpace(item.Description) != "" {
			fmt.Fprintf(&sb, `<p class="text-sm text-gray-500">%s</p>`, esc(item.Description))
		}
		sb.WriteString(`</li>`)
	}
	sb.WriteString(`</ol></section>`)
	return sb.String()
}

// renderFAQ 用同名 details 组实现单开手风琴：
// 打开任一项会自动收起同组已打开项，再次点击已打开项可收起。
func renderFAQ(b Block, c *FAQContent, ctx RenderContext) string {
	group := "faq-" + b.ID

	var sb strings.Builder
	sb.WriteString(containerOpen(b, ctx))
	sb.WriteString(`<div class="space-y-2">`)
	for _, item := range c.Items {
		fmt.Fprintf(&sb, `<details name=%q class="rounded-lg border border-gray-200 p-4">`, esc(group))
		fmt.Fprintf(&sb, `<summary class="cursor-pointer font-semibold">%s</summary>`, esc(item.Question))
		fmt.Fprintf(&sb, `<p class="mt-2 text-sm leading-relaxed text-gray-600">%s</p>`, esc(item.Answer))
		sb.WriteString(`</details>`)
	}
	sb.WriteString(`</div></section>`)
	return sb.String()
}

func firstLetter(name string) string {
	for _, r := range strings.TrimSpace(name) {
		return strings.ToUpper(string(r))
	}
	return "?"
}

// RenderForm 渲染报名表单主体；select 的 options 原样作为选项输出。
// 必填性只体现在 required 属性上，最终校验由提交处理方执行。
func RenderForm(fields []FormField, title string) string {
	var sb strings.Builder
	sb.WriteString(`<form data-registration-form class="space-y-4">`)
	if strings.TrimSpace(title) != "" {
		fmt.Fprintf(&sb, `<h2 class="text-xl font-bold">%s</h2>`, esc(title))
	}
	for _, f := range fields {
		required := ""
		if !f.Optional() {
			required = " required"
		}
		fmt.Fprintf(&sb, `<label class="block"><span class="mb-1 block text-sm font-medium">%s</span>`, esc(f.Label))
		switch f.Type {
		case FieldSelect:
			fmt.Fprintf(&sb, `<select name=%q class="w-full rounded-lg border border-gray-300 p-2"%s>`, esc(f.ID), required)
			for _, opt := range f.Options {
				fmt.Fprintf(&sb, `<option value=%q>%s</option>`, esc(opt), esc(opt))
			}
			sb.WriteString(`</select>`)
		default:
			inputType := string(f.Type)
			if inputType == "" {
				inputType = "text"
			}
			fmt.Fprintf(&sb, `<input type=%q name=%q placeholder=%q class="w-full rounded-lg border border-gray-300 p-2"%s/>`,
				esc(inputType), esc(f.ID), esc(f.Placeholder), required)
		}
		sb.WriteString(`</label>`)
	}
	sb.WriteString(`<button type="submit" class="w-full rounded-lg bg-indigo-600 py-3 font-semibold text-white hover:bg-indigo-700">提交报名</button>`)
	sb.WriteString(`</form>`)
	return sb.String()
}
