package keyboard

import (
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/oasis-bot/internal/i18n"
)

// menuItems maps reply-keyboard translation keys to the commands they stand for.
var menuItems = [][]struct{ key, command string }{
	{{"menu.home", "/home"}, {"menu.search", "/search"}},
	{{"menu.showcase", "/showcase"}, {"menu.purchases", "/purchases"}},
	{{"menu.upload", "/upload"}, {"menu.manage", "/manage"}},
	{{"menu.profile", "/profile"}, {"menu.help", "/help"}},
}

// MainMenu builds a localized reply keyboard for the bot main menu.
func MainMenu(t i18n.Translator) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{ResizeKeyboard: true}

	rows := make([]telebot.Row, 0, len(menuItems))
	for _, items := range menuItems {
		buttons := make([]telebot.Btn, 0, len(items))
		for _, item := range items {
			buttons = append(buttons, markup.Text(lookup(t, item.key)))
		}
		rows = append(rows, markup.Row(buttons...))
	}
	markup.Reply(rows...)

	return markup
}

// MenuCommand returns the command behind a main menu label, or "".
func MenuCommand(t i18n.Translator, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	for _, items := range menuItems {
		for _, item := range items {
			if lookup(t, item.key) == text {
				return item.command
			}
		}
	}
	return ""
}

func lookup(t i18n.Translator, key string) string {
	if t == nil {
		return key
	}
	return t.T(key)
}
