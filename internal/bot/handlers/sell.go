package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/oasis-bot/internal/bot/keyboard"
	"github.com/Proton-105/oasis-bot/internal/catalog"
	"github.com/Proton-105/oasis-bot/internal/domain"
	apperrors "github.com/Proton-105/oasis-bot/internal/errors"
	"github.com/Proton-105/oasis-bot/internal/i18n"
	"github.com/Proton-105/oasis-bot/internal/listings"
	"github.com/Proton-105/oasis-bot/internal/restclient"
	"github.com/Proton-105/oasis-bot/internal/state"
)

const (
	maxTitleLength       = 100
	maxDescriptionLength = 2000
)

// Listings is the listing service as a seller uses it.
type Listings interface {
	Get(ctx context.Context, token string, id listings.ID) (*listings.Post, error)
	Create(ctx context.Context, token string, fields listings.Fields, file listings.File, previews []listings.File) (*listings.Post, error)
	Update(ctx context.Context, token string, id listings.ID, fields listings.Fields) error
	SetStatus(ctx context.Context, token string, id listings.ID, status listings.Status) error
	ReplaceFile(ctx context.Context, token string, id listings.ID, file listings.File) error
	ReplacePreviews(ctx context.Context, token string, id listings.ID, previews []listings.File) error
}

// Sell covers the seller side: the upload wizard, editing and managing listings.
type Sell struct {
	accounts Accounts
	catalog  Catalog
	listings Listings
	drafts   Drafts
	files    Files
	fsm      state.StateMachine
	kb       *keyboard.Builder
	log      *slog.Logger
}

// NewSell wires the seller handlers.
func NewSell(accounts Accounts, cat Catalog, list Listings, drafts Drafts, files Files, fsm state.StateMachine, kb *keyboard.Builder, log *slog.Logger) *Sell {
	if log == nil {
		log = slog.Default()
	}
	return &Sell{
		accounts: accounts,
		catalog:  cat,
		listings: list,
		drafts:   drafts,
		files:    files,
		fsm:      fsm,
		kb:       kb,
		log:      log,
	}
}

// Manage lists the seller's listings with hide, edit and delete buttons.
func (h *Sell) Manage(c telebot.Context) error {
	return h.manage(c, 1)
}

func (h *Sell) manage(c telebot.Context, page int) error {
	ctx, cancel := Context(c)
	defer cancel()

	tok, err := token(ctx, h.accounts, c)
	if err != nil {
		return err
	}

	cards, err := h.catalog.SellerListings(ctx, tok, AccountOf(c).ClerkUserID)
	if err != nil {
		return err
	}
	cards = visible(cards)

	t := tr(c)
	if len(cards) == 0 {
		return c.Send(t.T("manage.empty"))
	}
	return sendOrEdit(c, t.T("manage.title"), h.kb.ManageList(t, cards, page))
}

// visible drops listings the seller deleted.
func visible(cards []catalog.Card) []catalog.Card {
	out := cards[:0:0]
	for _, card := range cards {
		if card.Status != listings.StatusUserDeleted {
			out = append(out, card)
		}
	}
	return out
}

// ToggleVisibility handles "vis:<id>".
func (h *Sell) ToggleVisibility(c telebot.Context) error {
	ctx, cancel := Context(c)
	defer cancel()

	tok, post, err := h.ownPost(ctx, c, listings.ID(callbackData(c)))
	if err != nil {
		return err
	}

	next, key := listings.StatusDisabled, "manage.hidden"
	if post.Status == listings.StatusDisabled {
		next, key = listings.StatusActive, "manage.shown"
	}
	if err := h.listings.SetStatus(ctx, tok, post.ID, next); err != nil {
		return upstream(err)
	}

	if err := respond(c, tr(c).Tf(key, post.Title), false); err != nil {
		return err
	}
	return h.redrawManage(ctx, c, tok)
}

// Delete handles "del:<id>" by asking for confirmation and "del:<id>:yes" by
// removing the listing.
func (h *Sell) Delete(c telebot.Context) error {
	raw, confirm, _ := strings.Cut(callbackData(c), keyboard.CallbackDataSeparator)
	id := listings.ID(raw)
	t := tr(c)

	if confirm != "yes" {
		if err := respond(c, "", false); err != nil {
			return err
		}
		return c.Send(t.T("manage.delete_prompt"), h.kb.ConfirmDelete(t, id))
	}

	ctx, cancel := Context(c)
	defer cancel()

	tok, post, err := h.ownPost(ctx, c, id)
	if err != nil {
		return err
	}
	if err := h.listings.SetStatus(ctx, tok, post.ID, listings.StatusUserDeleted); err != nil {
		return upstream(err)
	}

	if err := respond(c, t.T("manage.deleted"), false); err != nil {
		return err
	}
	return c.Edit(t.Tf("manage.deleted_text", escape(post.Title)), telebot.ModeHTML)
}

func (h *Sell) redrawManage(ctx context.Context, c telebot.Context, tok string) error {
	cards, err := h.catalog.SellerListings(ctx, tok, AccountOf(c).ClerkUserID)
	if err != nil {
		return err
	}
	return editMarkup(c, h.kb.ManageList(tr(c), visible(cards), 1))
}

// ownPost loads id with the seller's token and checks the caller owns it.
func (h *Sell) ownPost(ctx context.Context, c telebot.Context, id listings.ID) (string, *listings.Post, error) {
	if id == "" {
		return "", nil, apperrors.NewValidationError("Which listing? Use /edit <id>.")
	}

	tok, err := token(ctx, h.accounts, c)
	if err != nil {
		return "", nil, err
	}

	post, err := h.listings.Get(ctx, tok, id)
	if restclient.StatusOf(err) == http.StatusNotFound {
		return "", nil, apperrors.NewNotFoundError("listing")
	}
	if err != nil {
		return "", nil, upstream(err)
	}
	if post.SellerID != AccountOf(c).ClerkUserID {
		return "", nil, apperrors.NewNotFoundError("listing")
	}
	if post.ID == "" {
		post.ID = id
	}
	return tok, post, nil
}

func upstream(err error) error {
	return apperrors.NewUpstreamError("listing", err)
}

func fieldsOf(p *listings.Post) listings.Fields {
	return listings.Fields{
		Title:       p.Title,
		Description: p.Description,
		Tags:        p.Tags,
		PriceUSD:    p.PriceUSD,
		Copies:      p.Copies,
	}
}

// Upload starts the listing wizard.
func (h *Sell) Upload(c telebot.Context) error {
	ctx, cancel := Context(c)
	defer cancel()

	if _, err := token(ctx, h.accounts, c); err != nil {
		return err
	}

	userID := c.Sender().ID
	if err := h.drafts.Save(ctx, userID, &domain.Draft{Mode: domain.DraftCreate}); err != nil {
		return err
	}
	if err := h.fsm.SetState(ctx, userID, state.StateUploadTitle, nil); err != nil {
		return err
	}
	return c.Send(tr(c).T("upload.title"))
}

// UploadTitle receives the title.
func (h *Sell) UploadTitle(c telebot.Context) error {
	title, err := textField(c.Text(), maxTitleLength, "title")
	if err != nil {
		return err
	}
	return h.step(c, state.StateUploadDescription, "upload.description", func(d *domain.Draft) error {
		d.Title = title
		return nil
	})
}

// UploadDescription receives the description.
func (h *Sell) UploadDescription(c telebot.Context) error {
	desc, err := textField(c.Text(), maxDescriptionLength, "description")
	if err != nil {
		return err
	}
	return h.step(c, state.StateUploadPrice, "upload.price", func(d *domain.Draft) error {
		d.Description = desc
		return nil
	})
}

// UploadPrice receives the USD price.
func (h *Sell) UploadPrice(c telebot.Context) error {
	price, err := catalog.ParsePrice(c.Text())
	if err != nil {
		return apperrors.NewValidationError(capitalize(err.Error()) + ".")
	}
	return h.step(c, state.StateUploadCopies, "upload.copies", func(d *domain.Draft) error {
		d.Price = price.String()
		return nil
	})
}

// UploadCopies receives the number of copies; -1 means unlimited.
func (h *Sell) UploadCopies(c telebot.Context) error {
	copies, err := parseCopies(c.Text())
	if err != nil {
		return err
	}

	ctx, cancel := Context(c)
	defer cancel()

	userID := c.Sender().ID
	draft, err := h.drafts.Update(ctx, userID, func(d *domain.Draft) error {
		d.Copies = copies
		return nil
	})
	if err != nil {
		return err
	}
	if err := h.fsm.TransitionTo(ctx, userID, state.StateUploadTags); err != nil {
		return err
	}

	t := tr(c)
	return c.Send(t.Tf("upload.tags", domain.MaxTags), h.kb.TagPicker(t, keyboard.CallbackUpload, draft.Tags))
}

// UploadFile receives the main file as a document.
func (h *Sell) UploadFile(c telebot.Context) error {
	doc := c.Message().Document
	if doc == nil {
		return c.Send(tr(c).T("upload.file_expected"))
	}
	if doc.FileSize > MaxFileSize {
		return apperrors.NewValidationError("Files up to 20 MB can be sent through Telegram.")
	}

	file := documentFile(doc)
	ctx, cancel := Context(c)
	defer cancel()

	userID := c.Sender().ID
	if _, err := h.drafts.Update(ctx, userID, func(d *domain.Draft) error {
		d.File = &file
		return nil
	}); err != nil {
		return err
	}
	if err := h.fsm.TransitionTo(ctx, userID, state.StateUploadPreviews); err != nil {
		return err
	}

	t := tr(c)
	return c.Send(t.Tf("upload.previews", domain.MaxPreviews), h.kb.PreviewsDone(t))
}

// UploadPreview collects preview photos. The wizard moves on by itself once
// the maximum is reached.
func (h *Sell) UploadPreview(c telebot.Context) error {
	photo := c.Message().Photo
	if photo == nil {
		return c.Send(tr(c).T("upload.preview_expected"), h.kb.PreviewsDone(tr(c)))
	}

	ctx, cancel := Context(c)
	defer cancel()

	draft, err := h.addPreview(ctx, c.Sender().ID, photo)
	if err != nil {
		return err
	}

	if len(draft.Previews) >= domain.MaxPreviews {
		return h.confirm(ctx, c, draft)
	}
	return c.Send(tr(c).Tf("upload.preview_added", len(draft.Previews), domain.MaxPreviews), h.kb.PreviewsDone(tr(c)))
}

func (h *Sell) addPreview(ctx context.Context, userID int64, photo *telebot.Photo) (*domain.Draft, error) {
	return h.drafts.Update(ctx, userID, func(d *domain.Draft) error {
		if len(d.Previews) >= domain.MaxPreviews {
			return apperrors.NewValidationError(fmt.Sprintf("A listing has at most %d previews.", domain.MaxPreviews))
		}
		d.Previews = append(d.Previews, photoFile(photo))
		return nil
	})
}

func (h *Sell) confirm(ctx context.Context, c telebot.Context, draft *domain.Draft) error {
	if err := h.fsm.TransitionTo(ctx, c.Sender().ID, state.StateUploadConfirm); err != nil {
		return err
	}
	t := tr(c)
	return c.Send(draftSummary(t, draft), h.kb.UploadConfirm(t), telebot.ModeHTML)
}

// UploadCallback handles "up:<payload>": tag toggles, "done", "skip",
// "publish" and "cancel". What a payload means depends on the conversation state.
func (h *Sell) UploadCallback(c telebot.Context) error {
	ctx, cancel := Context(c)
	defer cancel()

	userID := c.Sender().ID
	current, err := h.fsm.Current(ctx, userID)
	if err != nil {
		return err
	}

	data := callbackData(c)
	t := tr(c)

	switch current.CurrentState {
	case state.StateUploadTags:
		if data == keyboard.UploadDone {
			return h.tagsDone(ctx, c)
		}
		return h.toggleDraftTag(ctx, c, data)

	case state.StateEditField:
		if current.Value(state.ContextField) != keyboard.EditTags {
			break
		}
		if data == keyboard.UploadDone {
			return h.saveEditedTags(ctx, c, listings.ID(current.Value(state.ContextListingID)))
		}
		return h.toggleDraftTag(ctx, c, data)

	case state.StateUploadPreviews:
		if data != keyboard.UploadSkip {
			break
		}
		if err := respond(c, "", false); err != nil {
			return err
		}
		draft, err := h.drafts.Get(ctx, userID)
		if err != nil {
			return err
		}
		if draft == nil {
			return h.expired(ctx, c)
		}
		return h.confirm(ctx, c, draft)

	case state.StateEditPreviews:
		if data != keyboard.UploadSkip {
			break
		}
		return h.saveEditedPreviews(ctx, c, listings.ID(current.Value(state.ContextListingID)))

	case state.StateUploadConfirm:
		switch data {
		case keyboard.UploadPublish:
			return h.publish(ctx, c)
		case keyboard.UploadCancel:
			return h.discard(ctx, c)
		}
	}

	return respond(c, t.T("upload.stale"), true)
}

func (h *Sell) toggleDraftTag(ctx context.Context, c telebot.Context, raw string) error {
	tag, err := domain.ParseTag(raw)
	if err != nil {
		return respond(c, "", false)
	}

	t := tr(c)
	full := false
	draft, err := h.drafts.Update(ctx, c.Sender().ID, func(d *domain.Draft) error {
		next, ok := toggle(d.Tags, tag, domain.MaxTags)
		full = !ok
		d.Tags = next
		return nil
	})
	if err != nil {
		return err
	}
	if full {
		return respond(c, t.Tf("upload.too_many_tags", domain.MaxTags), true)
	}

	if err := editMarkup(c, h.kb.TagPicker(t, keyboard.CallbackUpload, draft.Tags)); err != nil {
		return err
	}
	return respond(c, "", false)
}

func (h *Sell) tagsDone(ctx context.Context, c telebot.Context) error {
	if err := h.fsm.TransitionTo(ctx, c.Sender().ID, state.StateUploadFile); err != nil {
		return err
	}
	if err := respond(c, "", false); err != nil {
		return err
	}
	return c.Send(tr(c).T("upload.file"))
}

func (h *Sell) publish(ctx context.Context, c telebot.Context) error {
	userID := c.Sender().ID
	draft, err := h.drafts.Get(ctx, userID)
	if err != nil {
		return err
	}
	if draft == nil || draft.File == nil {
		return h.expired(ctx, c)
	}

	tok, err := token(ctx, h.accounts, c)
	if err != nil {
		return err
	}

	t := tr(c)
	if err := respond(c, t.T("upload.publishing"), false); err != nil {
		return err
	}

	fields, err := draftFields(draft)
	if err != nil {
		return err
	}

	file, err := h.files.Fetch(ctx, *draft.File)
	if err != nil {
		return apperrors.NewValidationError("Could not read the file you sent. Please send it again with /upload.")
	}
	previews, err := h.fetchAll(ctx, draft.Previews)
	if err != nil {
		return err
	}

	post, err := h.listings.Create(ctx, tok, fields, file, previews)
	if err != nil {
		return upstream(err)
	}

	h.finish(ctx, userID)
	h.log.InfoContext(ctx, "listing published",
		slog.Int64("user_id", userID),
		slog.String("post_id", post.ID.String()),
	)
	return c.Send(t.Tf("upload.published", escape(post.Title), post.ID.String()), telebot.ModeHTML)
}

func (h *Sell) discard(ctx context.Context, c telebot.Context) error {
	h.finish(ctx, c.Sender().ID)
	t := tr(c)
	if err := respond(c, "", false); err != nil {
		return err
	}
	return c.Send(t.T("cancel.done"), keyboard.MainMenu(t))
}

func (h *Sell) expired(ctx context.Context, c telebot.Context) error {
	h.finish(ctx, c.Sender().ID)
	return respond(c, tr(c).T("upload.expired"), true)
}

// finish drops the draft and the conversation.
func (h *Sell) finish(ctx context.Context, userID int64) {
	if err := h.drafts.Delete(ctx, userID); err != nil {
		h.log.WarnContext(ctx, "failed to drop draft", slog.Int64("user_id", userID), slog.Any("error", err))
	}
	if err := h.fsm.ClearState(ctx, userID); err != nil {
		h.log.WarnContext(ctx, "failed to clear conversation", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}

func (h *Sell) fetchAll(ctx context.Context, refs []domain.DraftFile) ([]listings.File, error) {
	out := make([]listings.File, 0, len(refs))
	for _, ref := range refs {
		f, err := h.files.Fetch(ctx, ref)
		if err != nil {
			return nil, apperrors.NewValidationError("Could not read one of the preview images. Please send it again.")
		}
		out = append(out, f)
	}
	return out, nil
}

// Edit handles "/edit <id>" and the "edit:<id>" and "edit:<id>:<field>" callbacks.
func (h *Sell) Edit(c telebot.Context) error {
	raw := arg(c)
	field := ""
	if c.Callback() != nil {
		raw, field, _ = strings.Cut(callbackData(c), keyboard.CallbackDataSeparator)
		if err := respond(c, "", false); err != nil {
			return err
		}
	}
	if raw == "" {
		return c.Send(tr(c).T("edit.usage"), telebot.ModeHTML)
	}

	ctx, cancel := Context(c)
	defer cancel()

	_, post, err := h.ownPost(ctx, c, listings.ID(raw))
	if err != nil {
		return err
	}

	t := tr(c)
	if field == "" {
		return c.Send(t.Tf("edit.pick", escape(post.Title)), h.kb.EditFields(t, post.ID), telebot.ModeHTML)
	}
	return h.beginEdit(ctx, c, post, field)
}

func (h *Sell) beginEdit(ctx context.Context, c telebot.Context, post *listings.Post, field string) error {
	userID := c.Sender().ID
	t := tr(c)
	values := map[string]string{state.ContextListingID: post.ID.String(), state.ContextField: field}

	switch field {
	case keyboard.EditTitle, keyboard.EditDescription, keyboard.EditPrice, keyboard.EditCopies:
		if err := h.fsm.SetState(ctx, userID, state.StateEditField, values); err != nil {
			return err
		}
		return c.Send(t.Tf("edit.prompt."+field, escape(currentValue(post, field))), telebot.ModeHTML)

	case keyboard.EditTags:
		tags, _ := domain.ValidateTags(post.Tags)
		draft := &domain.Draft{Mode: domain.DraftEdit, PostID: post.ID.String(), EditField: field, Tags: tags}
		if err := h.drafts.Save(ctx, userID, draft); err != nil {
			return err
		}
		if err := h.fsm.SetState(ctx, userID, state.StateEditField, values); err != nil {
			return err
		}
		return c.Send(t.Tf("upload.tags", domain.MaxTags), h.kb.TagPicker(t, keyboard.CallbackUpload, tags))

	case keyboard.EditFile:
		if err := h.fsm.SetState(ctx, userID, state.StateEditFile, values); err != nil {
			return err
		}
		return c.Send(t.T("edit.prompt.file"))

	case keyboard.EditPreviews:
		draft := &domain.Draft{Mode: domain.DraftEdit, PostID: post.ID.String(), EditField: field}
		if err := h.drafts.Save(ctx, userID, draft); err != nil {
			return err
		}
		if err := h.fsm.SetState(ctx, userID, state.StateEditPreviews, values); err != nil {
			return err
		}
		return c.Send(t.Tf("edit.prompt.previews", domain.MaxPreviews), h.kb.PreviewsDone(t))
	}

	return apperrors.NewValidationError("This field cannot be edited.")
}

func currentValue(p *listings.Post, field string) string {
	switch field {
	case keyboard.EditTitle:
		return p.Title
	case keyboard.EditDescription:
		return p.Description
	case keyboard.EditPrice:
		return catalog.FormatPrice(p.PriceUSD)
	case keyboard.EditCopies:
		return strconv.Itoa(p.Copies)
	default:
		return ""
	}
}

// EditFieldInput receives the new value of a text field.
func (h *Sell) EditFieldInput(c telebot.Context) error {
	ctx, cancel := Context(c)
	defer cancel()

	current, err := h.fsm.Current(ctx, c.Sender().ID)
	if err != nil {
		return err
	}
	field := current.Value(state.ContextField)
	if field == keyboard.EditTags {
		return c.Send(tr(c).T("edit.use_buttons"))
	}

	tok, post, err := h.ownPost(ctx, c, listings.ID(current.Value(state.ContextListingID)))
	if err != nil {
		return err
	}

	fields := fieldsOf(post)
	if err := applyField(&fields, field, c.Text()); err != nil {
		return err
	}
	if err := h.listings.Update(ctx, tok, post.ID, fields); err != nil {
		return upstream(err)
	}
	return h.edited(ctx, c)
}

func applyField(f *listings.Fields, field, input string) error {
	switch field {
	case keyboard.EditTitle:
		v, err := textField(input, maxTitleLength, "title")
		if err != nil {
			return err
		}
		f.Title = v
	case keyboard.EditDescription:
		v, err := textField(input, maxDescriptionLength, "description")
		if err != nil {
			return err
		}
		f.Description = v
	case keyboard.EditPrice:
		p, err := catalog.ParsePrice(input)
		if err != nil {
			return apperrors.NewValidationError(capitalize(err.Error()) + ".")
		}
		f.PriceUSD = p
	case keyboard.EditCopies:
		n, err := parseCopies(input)
		if err != nil {
			return err
		}
		f.Copies = n
	default:
		return apperrors.NewStateError("unknown edit field " + field)
	}
	return nil
}

func (h *Sell) saveEditedTags(ctx context.Context, c telebot.Context, id listings.ID) error {
	draft, err := h.drafts.Get(ctx, c.Sender().ID)
	if err != nil {
		return err
	}
	if draft == nil {
		return h.expired(ctx, c)
	}

	tok, post, err := h.ownPost(ctx, c, id)
	if err != nil {
		return err
	}

	fields := fieldsOf(post)
	fields.Tags = domain.Strings(draft.Tags)
	if err := h.listings.Update(ctx, tok, post.ID, fields); err != nil {
		return upstream(err)
	}
	if err := respond(c, "", false); err != nil {
		return err
	}
	return h.edited(ctx, c)
}

// EditFileInput receives a replacement main file.
func (h *Sell) EditFileInput(c telebot.Context) error {
	doc := c.Message().Document
	if doc == nil {
		return c.Send(tr(c).T("upload.file_expected"))
	}

	ctx, cancel := Context(c)
	defer cancel()

	current, err := h.fsm.Current(ctx, c.Sender().ID)
	if err != nil {
		return err
	}
	tok, post, err := h.ownPost(ctx, c, listings.ID(current.Value(state.ContextListingID)))
	if err != nil {
		return err
	}

	file, err := h.files.Fetch(ctx, documentFile(doc))
	if err != nil {
		return apperrors.NewValidationError("Could not read the file. Files up to 20 MB can be sent through Telegram.")
	}
	if err := h.listings.ReplaceFile(ctx, tok, post.ID, file); err != nil {
		return upstream(err)
	}
	return h.edited(ctx, c)
}

// EditPreviewInput collects replacement previews until "up:skip" or the maximum.
func (h *Sell) EditPreviewInput(c telebot.Context) error {
	photo := c.Message().Photo
	if photo == nil {
		return c.Send(tr(c).T("upload.preview_expected"), h.kb.PreviewsDone(tr(c)))
	}

	ctx, cancel := Context(c)
	defer cancel()

	draft, err := h.addPreview(ctx, c.Sender().ID, photo)
	if err != nil {
		return err
	}
	if len(draft.Previews) >= domain.MaxPreviews {
		return h.saveEditedPreviews(ctx, c, listings.ID(draft.PostID))
	}
	return c.Send(tr(c).Tf("upload.preview_added", len(draft.Previews), domain.MaxPreviews), h.kb.PreviewsDone(tr(c)))
}

func (h *Sell) saveEditedPreviews(ctx context.Context, c telebot.Context, id listings.ID) error {
	if c.Callback() != nil {
		if err := respond(c, "", false); err != nil {
			return err
		}
	}

	draft, err := h.drafts.Get(ctx, c.Sender().ID)
	if err != nil {
		return err
	}
	if draft == nil || len(draft.Previews) == 0 {
		// Nothing sent: keep the current previews.
		h.finish(ctx, c.Sender().ID)
		return c.Send(tr(c).T("edit.unchanged"))
	}

	tok, post, err := h.ownPost(ctx, c, id)
	if err != nil {
		return err
	}
	previews, err := h.fetchAll(ctx, draft.Previews)
	if err != nil {
		return err
	}
	if err := h.listings.ReplacePreviews(ctx, tok, post.ID, previews); err != nil {
		return upstream(err)
	}
	return h.edited(ctx, c)
}

func (h *Sell) edited(ctx context.Context, c telebot.Context) error {
	h.finish(ctx, c.Sender().ID)
	return c.Send(tr(c).T("edit.saved"))
}

// UseButtons answers free text in steps that only take button presses.
func (h *Sell) UseButtons(c telebot.Context) error {
	return c.Send(tr(c).T("edit.use_buttons"))
}

// step stores one wizard answer and moves to the next state.
func (h *Sell) step(c telebot.Context, next state.State, prompt string, apply func(d *domain.Draft) error) error {
	ctx, cancel := Context(c)
	defer cancel()

	userID := c.Sender().ID
	if _, err := h.drafts.Update(ctx, userID, apply); err != nil {
		return err
	}
	if err := h.fsm.TransitionTo(ctx, userID, next); err != nil {
		return err
	}
	return c.Send(tr(c).T(prompt))
}

func textField(input string, limit int, name string) (string, error) {
	v := strings.TrimSpace(input)
	if v == "" {
		return "", apperrors.NewValidationError(fmt.Sprintf("The %s cannot be empty.", name))
	}
	if utf8.RuneCountInString(v) > limit {
		return "", apperrors.NewValidationError(fmt.Sprintf("The %s can have at most %d characters.", name, limit))
	}
	return v, nil
}

func parseCopies(input string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || (n <= 0 && n != domain.UnlimitedCopies) {
		return 0, apperrors.NewValidationError("Send a positive number of copies, or -1 for unlimited.")
	}
	return n, nil
}

func draftFields(d *domain.Draft) (listings.Fields, error) {
	price, err := catalog.ParsePrice(d.Price)
	if err != nil {
		return listings.Fields{}, apperrors.NewValidationError(capitalize(err.Error()) + ".")
	}
	return listings.Fields{
		Title:       d.Title,
		Description: d.Description,
		Tags:        domain.Strings(d.Tags),
		PriceUSD:    price,
		Copies:      d.Copies,
	}, nil
}

func draftSummary(t i18n.Translator, d *domain.Draft) string {
	var b strings.Builder
	b.WriteString(t.T("upload.summary"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "<b>%s</b>\n", escape(d.Title))
	if price, err := catalog.ParsePrice(d.Price); err == nil {
		b.WriteString(t.Tf("product.price", catalog.FormatPrice(price)))
		b.WriteByte('\n')
	}
	if d.Copies == domain.UnlimitedCopies {
		b.WriteString(t.T("product.copies_unlimited"))
	} else {
		b.WriteString(t.Tf("product.copies", d.Copies))
	}
	b.WriteByte('\n')

	labels := make([]string, len(d.Tags))
	for i, tag := range d.Tags {
		labels[i] = "#" + tag.Label()
	}
	if len(labels) > 0 {
		b.WriteString(strings.Join(labels, " "))
		b.WriteByte('\n')
	}
	if d.File != nil {
		b.WriteString(t.Tf("upload.summary_file", escape(d.File.Name)))
		b.WriteByte('\n')
	}
	b.WriteString(t.Tf("upload.summary_previews", len(d.Previews)))
	b.WriteString("\n\n")
	b.WriteString(escape(truncate(d.Description, descriptionLimit)))
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return strings.ToUpper(string(r)) + s[size:]
}
