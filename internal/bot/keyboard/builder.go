package keyboard

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/oasis-bot/internal/catalog"
	"github.com/Proton-105/oasis-bot/internal/domain"
	"github.com/Proton-105/oasis-bot/internal/i18n"
	"github.com/Proton-105/oasis-bot/internal/listings"
	"github.com/Proton-105/oasis-bot/internal/purchase"
)

const (
	// PageSize is the number of listings per list page.
	PageSize = 8

	maxButtonTitle = 28
	tagsPerRow     = 3
	done           = "done"
)

// Upload callback payloads besides tag names.
const (
	UploadDone    = done
	UploadSkip    = "skip"
	UploadPublish = "publish"
	UploadCancel  = "cancel"
)

// Builder renders the storefront keyboards.
type Builder struct {
	log *slog.Logger
}

// NewBuilder returns a new Builder instance.
func NewBuilder(log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{log: log}
}

// ProductCard is the keyboard under a product card. The first row is the
// purchase button, whose text and action follow the attempt state.
func (b *Builder) ProductCard(t i18n.Translator, id listings.ID, st purchase.State, tags []string) *telebot.ReplyMarkup {
	buy := InlineButton{Text: t.T(buttonKey(st)), Unique: CallbackBuy, Data: id.String()}
	switch {
	case st.Disabled():
		buy.Unique, buy.Data = CallbackNoop, ""
	case st == purchase.Bought:
		buy.Unique = CallbackDownload
	}

	kb := NewInlineKeyboard().AddRow(buy)

	row := make([]InlineButton, 0, tagsPerRow)
	for _, raw := range tags {
		tag, err := domain.ParseTag(raw)
		if err != nil {
			continue
		}
		row = append(row, InlineButton{Text: "#" + tag.Label(), Unique: CallbackTag, Data: string(tag)})
		if len(row) == tagsPerRow {
			break
		}
	}
	kb.AddRow(row...)

	return kb.MustBuild()
}

// buttonKey maps a purchase state to its translation key.
func buttonKey(st purchase.State) string {
	return "purchase.button." + string(st)
}

// CardList renders one button per listing of the requested page plus pagination.
func (b *Builder) CardList(t i18n.Translator, cards []catalog.Card, scope string, page int) *telebot.ReplyMarkup {
	items, total := Paginate(cards, page, PageSize)

	kb := NewInlineKeyboard()
	for _, c := range items {
		kb.AddRow(InlineButton{
			Text:   shorten(c.Title, maxButtonTitle) + " · " + c.PriceLabel(),
			Unique: CallbackProduct,
			Data:   c.ID.String(),
		})
	}
	kb.AddRow(PaginationButtons(t, scope, page, total)...)

	return kb.MustBuild()
}

// ManageList renders the seller's own listings with management actions.
func (b *Builder) ManageList(t i18n.Translator, cards []catalog.Card, page int) *telebot.ReplyMarkup {
	items, total := Paginate(cards, page, PageSize)

	kb := NewInlineKeyboard()
	for _, c := range items {
		visibility := t.T("manage.hide")
		if c.Status == listings.StatusDisabled {
			visibility = t.T("manage.show")
		}
		id := c.ID.String()
		kb.AddRow(InlineButton{Text: shorten(c.Title, maxButtonTitle), Unique: CallbackProduct, Data: id})
		kb.AddRow(
			InlineButton{Text: visibility, Unique: CallbackVisibility, Data: id},
			InlineButton{Text: t.T("manage.edit"), Unique: CallbackEdit, Data: id},
			InlineButton{Text: t.T("manage.delete"), Unique: CallbackDelete, Data: id},
		)
	}
	kb.AddRow(PaginationButtons(t, "m", page, total)...)

	return kb.MustBuild()
}

// ConfirmDelete asks before a listing is removed.
func (b *Builder) ConfirmDelete(t i18n.Translator, id listings.ID) *telebot.ReplyMarkup {
	return NewInlineKeyboard().AddRow(
		InlineButton{Text: t.T("manage.delete_confirm"), Unique: CallbackDelete, Data: id.String() + CallbackDataSeparator + "yes"},
		InlineButton{Text: t.T("common.cancel"), Unique: CallbackNoop},
	).MustBuild()
}

// EditFields lists what can be changed on a listing.
func (b *Builder) EditFields(t i18n.Translator, id listings.ID) *telebot.ReplyMarkup {
	button := func(field string) InlineButton {
		return InlineButton{
			Text:   t.T("edit.field." + field),
			Unique: CallbackEdit,
			Data:   id.String() + CallbackDataSeparator + field,
		}
	}

	return NewInlineKeyboard().
		AddRow(button(EditTitle), button(EditDescription)).
		AddRow(button(EditPrice), button(EditCopies)).
		AddRow(button(EditTags)).
		AddRow(button(EditFile), button(EditPreviews)).
		MustBuild()
}

// Editable listing fields.
const (
	EditTitle       = "title"
	EditDescription = "description"
	EditPrice       = "price"
	EditCopies      = "copies"
	EditTags        = "tags"
	EditFile        = "file"
	EditPreviews    = "previews"
)

// TagPicker renders every tag as a toggle, three per row, and a done button.
// unique selects the conversation the picker belongs to.
func (b *Builder) TagPicker(t i18n.Translator, unique string, selected []domain.Tag) *telebot.ReplyMarkup {
	chosen := make(map[domain.Tag]bool, len(selected))
	for _, tag := range selected {
		chosen[tag] = true
	}

	kb := NewInlineKeyboard()
	row := make([]InlineButton, 0, tagsPerRow)
	for _, tag := range domain.Tags {
		text := tag.Label()
		if chosen[tag] {
			text = "✅ " + text
		}
		row = append(row, InlineButton{Text: text, Unique: unique, Data: string(tag)})
		if len(row) == tagsPerRow {
			kb.AddRow(row...)
			row = make([]InlineButton, 0, tagsPerRow)
		}
	}
	kb.AddRow(row...)
	kb.AddRow(InlineButton{Text: t.T("common.done"), Unique: unique, Data: done})

	return kb.MustBuild()
}

// TagMenu lists every category for the showcase.
func (b *Builder) TagMenu() *telebot.ReplyMarkup {
	kb := NewInlineKeyboard()
	row := make([]InlineButton, 0, tagsPerRow)
	for _, tag := range domain.Tags {
		row = append(row, InlineButton{Text: "#" + tag.Label(), Unique: CallbackTag, Data: string(tag)})
		if len(row) == tagsPerRow {
			kb.AddRow(row...)
			row = make([]InlineButton, 0, tagsPerRow)
		}
	}
	kb.AddRow(row...)
	return kb.MustBuild()
}

// PreviewsDone closes the preview collection step.
func (b *Builder) PreviewsDone(t i18n.Translator) *telebot.ReplyMarkup {
	return NewInlineKeyboard().
		AddRow(InlineButton{Text: t.T("upload.previews_done"), Unique: CallbackUpload, Data: UploadSkip}).
		MustBuild()
}

// UploadConfirm is shown under the draft summary.
func (b *Builder) UploadConfirm(t i18n.Translator) *telebot.ReplyMarkup {
	return NewInlineKeyboard().AddRow(
		InlineButton{Text: t.T("upload.publish"), Unique: CallbackUpload, Data: UploadPublish},
		InlineButton{Text: t.T("common.cancel"), Unique: CallbackUpload, Data: UploadCancel},
	).MustBuild()
}

// Link is a single URL button.
func (b *Builder) Link(text, url string) *telebot.ReplyMarkup {
	return NewInlineKeyboard().AddRow(InlineButton{Text: text, URL: url}).MustBuild()
}

func shorten(s string, limit int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit-1]) + "…"
}
