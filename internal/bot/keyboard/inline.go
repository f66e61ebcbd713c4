package keyboard

import (
	telebot "gopkg.in/telebot.v3"
)

// InlineButton is a button definition before its callback data is encoded.
// A button with URL set opens the link instead of sending a callback.
type InlineButton struct {
	Text   string
	Unique string
	Data   string
	URL    string
}

// InlineKeyboardBuilder accumulates rows before rendering telebot markup.
type InlineKeyboardBuilder struct {
	rows [][]InlineButton
}

// NewInlineKeyboard creates an empty builder.
func NewInlineKeyboard() *InlineKeyboardBuilder {
	return &InlineKeyboardBuilder{}
}

// AddRow appends a row. Empty rows are ignored.
func (b *InlineKeyboardBuilder) AddRow(buttons ...InlineButton) *InlineKeyboardBuilder {
	if len(buttons) == 0 {
		return b
	}

	row := make([]InlineButton, len(buttons))
	copy(row, buttons)
	b.rows = append(b.rows, row)
	return b
}

// Build encodes every button. Unique is folded into the callback data and
// never set on the telebot button, because telebot would rewrite the data
// into its own "\f" routing format.
func (b *InlineKeyboardBuilder) Build() (*telebot.ReplyMarkup, error) {
	inline := make([][]telebot.InlineButton, len(b.rows))
	for i, row := range b.rows {
		inline[i] = make([]telebot.InlineButton, len(row))
		for j, btn := range row {
			if btn.URL != "" {
				inline[i][j] = telebot.InlineButton{Text: btn.Text, URL: btn.URL}
				continue
			}

			data, err := EncodeCallback(btn.Unique, btn.Data)
			if err != nil {
				return nil, err
			}
			inline[i][j] = telebot.InlineButton{Text: btn.Text, Data: data}
		}
	}

	return &telebot.ReplyMarkup{InlineKeyboard: inline}, nil
}

// MustBuild is Build for keyboards whose payloads are known to fit; a button
// that would overflow is turned into a no-op.
func (b *InlineKeyboardBuilder) MustBuild() *telebot.ReplyMarkup {
	for _, row := range b.rows {
		for j := range row {
			if row[j].URL == "" {
				if _, err := EncodeCallback(row[j].Unique, row[j].Data); err != nil {
					row[j].Unique, row[j].Data = CallbackNoop, ""
				}
			}
		}
	}

	markup, _ := b.Build()
	return markup
}
