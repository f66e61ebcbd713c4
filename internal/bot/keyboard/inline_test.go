package keyboard_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/oasis-bot/internal/bot/keyboard"
)

func TestInlineKeyboardBuilder(t *testing.T) {
	t.Run("encodes rows", func(t *testing.T) {
		markup, err := keyboard.NewInlineKeyboard().
			AddRow(
				keyboard.InlineButton{Text: "Buy Now", Unique: keyboard.CallbackBuy, Data: "1"},
				keyboard.InlineButton{Text: "Open", URL: "https://example.com/f"},
			).
			AddRow().
			AddRow(keyboard.InlineButton{Text: "·", Unique: keyboard.CallbackNoop}).
			Build()
		require.NoError(t, err)

		require.Len(t, markup.InlineKeyboard, 2)
		assert.Equal(t, "buy:1", markup.InlineKeyboard[0][0].Data)
		assert.Empty(t, markup.InlineKeyboard[0][0].Unique)
		assert.Equal(t, "https://example.com/f", markup.InlineKeyboard[0][1].URL)
		assert.Empty(t, markup.InlineKeyboard[0][1].Data)
		assert.Equal(t, "noop", markup.InlineKeyboard[1][0].Data)
	})

	t.Run("callback data overflow", func(t *testing.T) {
		builder := keyboard.NewInlineKeyboard().AddRow(keyboard.InlineButton{
			Text:   "Too big",
			Unique: keyboard.CallbackPage,
			Data:   strings.Repeat("x", keyboard.CallbackDataLimitBytes),
		})

		_, err := builder.Build()
		assert.Error(t, err)

		markup := builder.MustBuild()
		assert.Equal(t, "noop", markup.InlineKeyboard[0][0].Data)
	})
}
