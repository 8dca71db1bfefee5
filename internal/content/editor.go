package content

// Direction 表示区块移动方向。
type Direction string

const (
	MoveUp   Direction = "up"
	MoveDown Direction = "down"
)

// Editor 是内容文档的内存变更引擎。
// 编辑会话期间文档由 Editor 独占持有（单用户单标签页，无并发写入），
// 所有操作对当前文档都是全函数：目标不存在时静默跳过，从不报错。
type Editor struct {
	doc      Document
	selected string
}

// NewEditor 用给定文档开启编辑会话；传入文档被深拷贝，外部后续修改不影响会话。
func NewEditor(doc Document) *Editor {
	return &Editor{doc: doc.Clone()}
}

// Document 返回当前文档的深拷贝。
func (e *Editor) Document() Document {
	return e.doc.Clone()
}

// AddBlock 在序列末尾追加一个带默认负载的新区块，选中并返回其 ID。
// 类型集合封闭，未知类型不追加并返回空串。
func (e *Editor) AddBlock(t BlockType) string {
	if DefaultContent(t) == nil {
		return ""
	}
	block := NewBlock(t)
	e.doc.Blocks = append(e.doc.Blocks, block)
	e.selected = block.ID
	return block.ID
}

// UpdateBlock 整体替换目标区块的负载；styles 仅在非 nil 时整体替换，
// nil 表示保持原样（与 content 的整体替换语义不对称，刻意保留）。
func (e *Editor) UpdateBlock(id string, c BlockContent, styles *BlockStyles) {
	i := e.doc.FindBlock(id)
	if i < 0 {
		return
	}
	if c != nil {
		e.doc.Blocks[i].Content = c.clone()
	} else {
		e.doc.Blocks[i].Content = nil
	}
	if styles != nil {
		e.doc.Blocks[i].Styles = styles.clone()
	}
}

// RemoveBlock 删除目标区块；若其正被选中则清空选中态。
func (e *Editor) RemoveBlock(id string) {
	i := e.doc.FindBlock(id)
	if i < 0 {
		return
	}
	e.doc.Blocks = append(e.doc.Blocks[:i], e.doc.Blocks[i+1:]...)
	if e.selected == id {
		e.selected = ""
	}
}

// MoveBlock 与相邻区块交换位置；序列边界处为 no-op，不是错误。
func (e *Editor) MoveBlock(id string, dir Direction) {
	i := e.doc.FindBlock(id)
	if i < 0 {
		return
	}
	j := i
	switch dir {
	case MoveUp:
		j = i - 1
	case MoveDown:
		j = i + 1
	default:
		return
	}
	if j < 0 || j >= len(e.doc.Blocks) {
		return
	}
	e.doc.Blocks[i], e.doc.Blocks[j] = e.doc.Blocks[j], e.doc.Blocks[i]
}

// UpdatePageMeta 整体替换表单与自动回复配置。
func (e *Editor) UpdatePageMeta(fields []FormField, formTitle string, autoReply AutoReplyConfig) {
	if fields == nil {
		e.doc.FormFields = nil
	} else {
		e.doc.FormFields = make([]FormField, len(fields))
		for i, f := range fields {
			e.doc.FormFields[i] = f
			if f.Options != nil {
				e.doc.FormFields[i].Options = append([]string(nil), f.Options...)
			}
		}
	}
	e.doc.FormTitle = formTitle
	e.doc.AutoReply = autoReply
}

// Select 选中指定区块；ID 不存在时保持原选中态。
func (e *Editor) Select(id string) {
	if e.doc.FindBlock(id) >= 0 {
		e.selected = id
	}
}

// Deselect 清空选中态。
func (e *Editor) Deselect() {
	e.selected = ""
}

// Selected 返回当前选中的区块 ID，未选中时为空串。
// 选中态与区块序列始终一致：被删除的区块不会残留为选中。
func (e *Editor) Selected() string {
	return e.selected
}
