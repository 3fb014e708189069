package keyboard

import "testing"

func TestColumn(t *testing.T) {
	if Column(nil) != nil {
		t.Fatal("empty list should yield nil markup")
	}
	m := Column([]Button{{Text: "Run", Unique: "run_file"}, {Text: "Back", Unique: "main_menu"}})
	if len(m.InlineKeyboard) != 2 {
		t.Fatalf("rows = %d, want 2", len(m.InlineKeyboard))
	}
	if b := m.InlineKeyboard[1][0]; b.Text != "Back" || b.Unique != "main_menu" {
		t.Fatalf("button = %+v", b)
	}
}

func TestLayout(t *testing.T) {
	btns := []Button{{Text: "a", Unique: "a"}, {Text: "b", Unique: "b"}, {Text: "c", Unique: "c"}, {Text: "d", Unique: "d"}}
	m := Layout(btns, 2)
	if len(m.InlineKeyboard) != 3 || len(m.InlineKeyboard[0]) != 2 || m.InlineKeyboard[2][0].Unique != "d" {
		t.Fatalf("layout = %+v", m.InlineKeyboard)
	}
	m = Layout(btns[:1], 5)
	if len(m.InlineKeyboard) != 1 || len(m.InlineKeyboard[0]) != 1 {
		t.Fatalf("oversized row = %+v", m.InlineKeyboard)
	}
}

func TestInlineDropsEmptyRows(t *testing.T) {
	if Inline(nil, []Button{}) != nil {
		t.Fatal("rows without buttons should yield nil")
	}
	m := Inline(nil, []Button{{Text: "x", Unique: "x", Data: "1"}})
	if len(m.InlineKeyboard) != 1 || m.InlineKeyboard[0][0].Data != "1" {
		t.Fatalf("markup = %+v", m.InlineKeyboard)
	}
}
