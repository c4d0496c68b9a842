package keyboard

import tele "gopkg.in/telebot.v4"

// InlineBtn describes one inline button. Data carries already encoded
// callback data (see the callbacks package); URL buttons open a link
// instead and leave Data empty.
type InlineBtn struct {
	Text string
	Data string
	URL  string
}

const defaultCancelLabel = "❌ Batal"

func (b InlineBtn) btn() tele.Btn {
	return tele.Btn{Text: b.Text, Data: b.Data, URL: b.URL}
}

// InlineButtons builds an inline keyboard where each provided button is placed on its own row.
func InlineButtons(buttons []InlineBtn) *tele.ReplyMarkup {
	rows := make([][]InlineBtn, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, []InlineBtn{b})
	}
	return InlineButtonsRows(rows...)
}

// InlineButtonsRows builds an inline keyboard from rows of InlineBtn.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, len(rows))
	for i, row := range rows {
		r := make([]tele.InlineButton, len(row))
		for j, btn := range row {
			r[j] = *btn.btn().Inline()
		}
		inline[i] = r
	}
	markup.InlineKeyboard = inline
	return markup
}

// InlineButtonsNPerRow splits a flat list of buttons into rows with up to n buttons per row.
// If n <= 1, it behaves like InlineButtons (one per row).
func InlineButtonsNPerRow(buttons []InlineBtn, n int) *tele.ReplyMarkup {
	if n <= 1 {
		return InlineButtons(buttons)
	}
	var rows [][]InlineBtn
	for i := 0; i < len(buttons); i += n {
		end := i + n
		if end > len(buttons) {
			end = len(buttons)
		}
		rows = append(rows, buttons[i:end])
	}
	return InlineButtonsRows(rows...)
}

// CancelBtn returns the standard cancel button pointing at the given
// callback data. An optional label overrides the default.
func CancelBtn(data string, label ...string) InlineBtn {
	text := defaultCancelLabel
	if len(label) > 0 && label[0] != "" {
		text = label[0]
	}
	return InlineBtn{Text: text, Data: data}
}

// SingleCancelMarkup creates an inline keyboard with a single cancel button.
func SingleCancelMarkup(data string, label ...string) *tele.ReplyMarkup {
	return InlineButtons([]InlineBtn{CancelBtn(data, label...)})
}
