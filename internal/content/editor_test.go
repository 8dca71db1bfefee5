package content

import (
	"reflect"
	"testing"
)

func TestAddBlock_UsesSchemaDefaults(t *testing.T) {
	for _, typ := range BlockTypes {
		e := NewEditor(NewDocument("发布会"))
		id := e.AddBlock(typ)
		if id == "" {
			t.Fatalf("AddBlock(%s) returned empty id", typ)
		}

		doc := e.Document()
		if len(doc.Blocks) != 1 {
			t.Fatalf("expected 1 block, got %d", len(doc.Blocks))
		}
		got := doc.Blocks[0]
		if got.Type != typ {
			t.Fatalf("block type = %s, want %s", got.Type, typ)
		}
		if !reflect.DeepEqual(got.Content, DefaultContent(typ)) {
			t.Fatalf("block content = %+v, want schema default %+v", got.Content, DefaultContent(typ))
		}
		if got.Styles != nil {
			t.Fatalf("new block should not persist default styles, got %+v", got.Styles)
		}
		if e.Selected() != id {
			t.Fatalf("new block should be selected, selected=%q", e.Selected())
		}
	}
}

func TestAddBlock_UnknownTypeIsRejected(t *testing.T) {
	e := NewEditor(Document{})
	if id := e.AddBlock(BlockType("carousel")); id != "" {
		t.Fatalf("unknown type should not be added, got id %q", id)
	}
	if n := len(e.Document().Blocks); n != 0 {
		t.Fatalf("document should stay empty, got %d blocks", n)
	}
}

func TestMoveBlock_NoopAtBoundaries(t *testing.T) {
	e := NewEditor(Document{})
	first := e.AddBlock(BlockHeading)
	middle := e.AddBlock(BlockText)
	last := e.AddBlock(BlockButton)

	before := e.Document()
	e.MoveBlock(first, MoveUp)
	e.MoveBlock(last, MoveDown)
	if !reflect.DeepEqual(e.Document(), before) {
		t.Fatal("boundary move should leave the document unchanged")
	}

	e.MoveBlock(middle, MoveUp)
	got := e.Document()
	wantOrder := []string{middle, first, last}
	for i, id := range wantOrder {
		if got.Blocks[i].ID != id {
			t.Fatalf("block[%d].ID = %s, want %s", i, got.Blocks[i].ID, id)
		}
	}
}

func TestMoveBlock_UnknownIDIsNoop(t *testing.T) {
	e := NewEditor(Document{})
	e.AddBlock(BlockText)
	before := e.Document()
	e.MoveBlock("missing", MoveDown)
	if !reflect.DeepEqual(e.Document(), before) {
		t.Fatal("move of unknown id should be a no-op")
	}
}

func TestRemoveBlock_SelectionSemantics(t *testing.T) {
	e := NewEditor(Document{})
	a := e.AddBlock(BlockHeading)
	b := e.AddBlock(BlockText)

	e.Select(a)
	e.RemoveBlock(b)
	if e.Selected() != a {
		t.Fatalf("removing an unselected block must keep selection, got %q", e.Selected())
	}

	e.RemoveBlock(a)
	if e.Selected() != "" {
		t.Fatalf("removing the selected block must clear selection, got %q", e.Selected())
	}
	if n := len(e.Document().Blocks); n != 0 {
		t.Fatalf("expected empty document, got %d blocks", n)
	}

	// 不存在的 ID：静默 no-op
	before := e.Document()
	e.RemoveBlock("missing")
	if !reflect.DeepEqual(e.Document(), before) {
		t.Fatal("remove of unknown id should be a no-op")
	}
}

func TestUpdateBlock_StylesAsymmetry(t *testing.T) {
	e := NewEditor(Document{})
	id := e.AddBlock(BlockHeading)

	styles := &BlockStyles{Padding: "large", TextColor: "#112233"}
	e.UpdateBlock(id, &HeadingContent{Text: "日程", Level: "h3", Alignment: "center"}, styles)

	got := e.Document().Blocks[0]
	if !reflect.DeepEqual(got.Styles, styles) {
		t.Fatalf("styles = %+v, want %+v", got.Styles, styles)
	}

	// content 整体替换、styles 为 nil 时必须保持原值不变
	e.UpdateBlock(id, &HeadingContent{Text: "改名"}, nil)
	got = e.Document().Blocks[0]
	if !reflect.DeepEqual(got.Styles, styles) {
		t.Fatalf("nil styles must preserve previous value, got %+v", got.Styles)
	}
	heading, ok := got.Content.(*HeadingContent)
	if !ok {
		t.Fatalf("content type = %T", got.Content)
	}
	if heading.Level != "" || heading.Alignment != "" || heading.Text != "改名" {
		t.Fatalf("content must be replaced wholesale, got %+v", heading)
	}

	// 显式提供 styles 时整体替换
	e.UpdateBlock(id, &HeadingContent{Text: "改名"}, &BlockStyles{FontSize: "2xl"})
	got = e.Document().Blocks[0]
	if got.Styles.Padding != "" || got.Styles.FontSize != "2xl" {
		t.Fatalf("styles must be replaced wholesale, got %+v", got.Styles)
	}
}

func TestUpdatePageMeta_ReplacesWholesale(t *testing.T) {
	e := NewEditor(Document{})
	e.UpdatePageMeta([]FormField{
		{ID: "name", Label: "姓名", Type: FieldText},
		{ID: "email", Label: "邮箱", Type: FieldEmail},
	}, "报名信息", AutoReplyConfig{Enabled: true, Subject: "见"})

	doc := e.Document()
	if len(doc.FormFields) != 2 || doc.FormTitle != "报名信息" || !doc.AutoReply.Enabled {
		t.Fatalf("page meta not applied: %+v", doc)
	}

	e.UpdatePageMeta(nil, "", AutoReplyConfig{})
	doc = e.Document()
	if doc.FormFields != nil || doc.FormTitle != "" || doc.AutoReply.Enabled {
		t.Fatalf("page meta must be replaced wholesale: %+v", doc)
	}
}

func TestEditor_DocumentIsolation(t *testing.T) {
	e := NewEditor(Document{})
	id := e.AddBlock(BlockAgenda)

	out := e.Document()
	agenda := out.Blocks[0].Content.(*AgendaContent)
	agenda.Items[0].Title = "外部篡改"

	inside := e.Document().Blocks[0].Content.(*AgendaContent)
	if inside.Items[0].Title == "外部篡改" {
		t.Fatal("mutating a returned document must not leak into the editor")
	}

	_ = id
}
