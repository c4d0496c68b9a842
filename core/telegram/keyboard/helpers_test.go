package keyboard

import "testing"

func TestInlineButtonsOnePerRow(t *testing.T) {
	markup := InlineButtons([]InlineBtn{
		{Text: "A", Data: "menu:a"},
		{Text: "B", Data: "menu:b"},
		{Text: "C", URL: "https://example.com"},
	})

	if got := len(markup.InlineKeyboard); got != 3 {
		t.Fatalf("rows = %d, want 3", got)
	}
	for i, row := range markup.InlineKeyboard {
		if len(row) != 1 {
			t.Fatalf("row %d has %d buttons, want 1", i, len(row))
		}
	}
	if markup.InlineKeyboard[0][0].Data != "menu:a" {
		t.Fatalf("data = %q", markup.InlineKeyboard[0][0].Data)
	}
	if markup.InlineKeyboard[2][0].URL != "https://example.com" {
		t.Fatalf("url button lost its link: %+v", markup.InlineKeyboard[2][0])
	}
}

func TestInlineButtonsRowsKeepsShape(t *testing.T) {
	markup := InlineButtonsRows(
		[]InlineBtn{{Text: "1", Data: "p:1"}, {Text: "2", Data: "p:2"}},
		[]InlineBtn{{Text: "Back", Data: "menu:home"}},
	)

	if len(markup.InlineKeyboard) != 2 {
		t.Fatalf("rows = %d, want 2", len(markup.InlineKeyboard))
	}
	if len(markup.InlineKeyboard[0]) != 2 || len(markup.InlineKeyboard[1]) != 1 {
		t.Fatalf("row widths = %d,%d, want 2,1",
			len(markup.InlineKeyboard[0]), len(markup.InlineKeyboard[1]))
	}
	if markup.InlineKeyboard[1][0].Text != "Back" {
		t.Fatalf("text = %q", markup.InlineKeyboard[1][0].Text)
	}
}

func TestInlineButtonsNPerRow(t *testing.T) {
	buttons := []InlineBtn{
		{Text: "1", Data: "g:1"}, {Text: "2", Data: "g:2"},
		{Text: "3", Data: "g:3"}, {Text: "4", Data: "g:4"},
		{Text: "5", Data: "g:5"},
	}

	markup := InlineButtonsNPerRow(buttons, 2)
	if len(markup.InlineKeyboard) != 3 {
		t.Fatalf("rows = %d, want 3", len(markup.InlineKeyboard))
	}
	if len(markup.InlineKeyboard[2]) != 1 {
		t.Fatalf("last row width = %d, want 1", len(markup.InlineKeyboard[2]))
	}

	// n <= 1 degrades to one button per row.
	markup = InlineButtonsNPerRow(buttons[:2], 0)
	if len(markup.InlineKeyboard) != 2 || len(markup.InlineKeyboard[0]) != 1 {
		t.Fatalf("unexpected shape for n=0: %v", markup.InlineKeyboard)
	}
}

func TestCancelBtn(t *testing.T) {
	btn := CancelBtn("order:cancel")
	if btn.Text != defaultCancelLabel || btn.Data != "order:cancel" {
		t.Fatalf("btn = %+v", btn)
	}

	btn = CancelBtn("order:cancel", "Tutup")
	if btn.Text != "Tutup" {
		t.Fatalf("label override lost: %q", btn.Text)
	}

	markup := SingleCancelMarkup("order:cancel")
	if len(markup.InlineKeyboard) != 1 || len(markup.InlineKeyboard[0]) != 1 {
		t.Fatalf("unexpected shape: %v", markup.InlineKeyboard)
	}
	if markup.InlineKeyboard[0][0].Data != "order:cancel" {
		t.Fatalf("data = %q", markup.InlineKeyboard[0][0].Data)
	}
}
