package content

import (
	"reflect"
	"strings"
	"testing"
)

func TestFormField_Optional(t *testing.T) {
	cases := []struct {
		label string
		want  bool
	}{
		{"姓名", false},
		{"公司 (optional)", true},
		{"Company (Optional)", true},
		{"Company (OPTIONAL) name", true},
		{"optional things", false},
	}
	for _, c := range cases {
		f := FormField{ID: "x", Label: c.label}
		if got := f.Optional(); got != c.want {
			t.Errorf("Optional(%q) = %v, want %v", c.label, got, c.want)
		}
	}
}

func TestMissingFields(t *testing.T) {
	fields := []FormField{
		{ID: "name", Label: "姓名", Type: FieldText},
		{ID: "email", Label: "邮箱", Type: FieldEmail},
		{ID: "company", Label: "公司 (optional)", Type: FieldText},
	}

	missing := MissingFields(fields, map[string]string{
		"name":  "张三",
		"email": "   ",
	})
	if !reflect.DeepEqual(missing, []string{"email"}) {
		t.Fatalf("missing = %v, want [email]", missing)
	}

	if missing := MissingFields(fields, map[string]string{"name": "张三", "email": "a@b.c"}); missing != nil {
		t.Fatalf("complete submission reported missing fields: %v", missing)
	}
}

func TestMissingFields_LookupByIDNotLabel(t *testing.T) {
	fields := []FormField{{ID: "f-1", Label: "姓名", Type: FieldText}}
	if missing := MissingFields(fields, map[string]string{"姓名": "张三"}); len(missing) != 1 {
		t.Fatalf("values must be keyed by field id, not label: %v", missing)
	}
}

func TestRenderForm_SelectOptionsVerbatim(t *testing.T) {
	fields := []FormField{
		{ID: "source", Label: "来源", Type: FieldSelect, Options: []string{"朋友推荐", "社交媒体"}},
		{ID: "note", Label: "备注 (optional)", Type: FieldText, Placeholder: "随便写点"},
	}
	out := RenderForm(fields, "报名")

	for _, opt := range []string{"朋友推荐", "社交媒体"} {
		if !strings.Contains(out, ">"+opt+"</option>") {
			t.Fatalf("select option %q missing: %s", opt, out)
		}
	}
	if !strings.Contains(out, `name="source" class="w-full rounded-lg border border-gray-300 p-2" required`) {
		t.Fatalf("required select missing required attribute: %s", out)
	}
	if strings.Contains(out, `name="note" placeholder="随便写点" class="w-full rounded-lg border border-gray-300 p-2" required`) {
		t.Fatalf("optional field must not be required: %s", out)
	}
}
