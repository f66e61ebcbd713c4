package keyboard

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Proton-105/oasis-bot/internal/i18n"
)

// PaginationButtons returns prev, current and next buttons for a list view.
// Callback data is "pg:<page>:<scope>"; the current page is a no-op.
func PaginationButtons(t i18n.Translator, scope string, page, totalPages int) []InlineButton {
	if totalPages <= 1 {
		return nil
	}
	page = min(max(page, 1), totalPages)

	buttons := make([]InlineButton, 0, 3)

	if page > 1 {
		buttons = append(buttons, InlineButton{
			Text:   translated(t, "pagination.prev", "◀️ Prev"),
			Unique: CallbackPage,
			Data:   PageData(page-1, scope),
		})
	}

	buttons = append(buttons, InlineButton{
		Text:   translatedf(t, "pagination.page", "%d/%d", page, totalPages),
		Unique: CallbackNoop,
	})

	if page < totalPages {
		buttons = append(buttons, InlineButton{
			Text:   translated(t, "pagination.next", "Next ▶️"),
			Unique: CallbackPage,
			Data:   PageData(page+1, scope),
		})
	}

	return buttons
}

// PageData encodes a page request.
func PageData(page int, scope string) string {
	return strconv.Itoa(page) + CallbackDataSeparator + scope
}

// ParsePageData is the inverse of PageData.
func ParsePageData(data string) (page int, scope string, ok bool) {
	rawPage, scope, found := strings.Cut(data, CallbackDataSeparator)
	if !found {
		return 0, "", false
	}
	page, err := strconv.Atoi(rawPage)
	if err != nil || page < 1 {
		return 0, "", false
	}
	return page, scope, true
}

// Paginate returns the items of the 1-based page and the page count.
func Paginate[T any](items []T, page, perPage int) ([]T, int) {
	if perPage <= 0 || len(items) == 0 {
		return items, 1
	}
	total := (len(items) + perPage - 1) / perPage
	page = min(max(page, 1), total)
	start := (page - 1) * perPage
	return items[start:min(start+perPage, len(items))], total
}

func translated(t i18n.Translator, key, fallback string) string {
	if t == nil {
		return fallback
	}

	text := strings.TrimSpace(t.T(key))
	if text == "" || text == key {
		return fallback
	}

	return text
}

func translatedf(t i18n.Translator, key, fallback string, args ...any) string {
	return fmt.Sprintf(translated(t, key, fallback), args...)
}
