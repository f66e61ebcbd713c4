package handlers

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/oasis-bot/internal/bot/keyboard"
	"github.com/Proton-105/oasis-bot/internal/domain"
	apperrors "github.com/Proton-105/oasis-bot/internal/errors"
	"github.com/Proton-105/oasis-bot/internal/state"
	"github.com/Proton-105/oasis-bot/internal/users"
	"github.com/Proton-105/oasis-bot/internal/wallet"
)

const maxNicknameLength = 32

// Profiles is the caller's own profile in the user service.
type Profiles interface {
	Nickname(ctx context.Context, token string) (string, error)
	SetNickname(ctx context.Context, token, nickname string) error
	Themes(ctx context.Context, token string) ([domain.InterestSlots]string, error)
	SetThemes(ctx context.Context, token string, slots [domain.InterestSlots]string) error
	VerifyWallet(ctx context.Context, token, walletAddress, signature string) error
}

// Wallets opens the wallet bridge a user registered.
type Wallets interface {
	For(url string) wallet.Provider
}

// Account handles login, wallet setup and the caller's profile settings.
type Account struct {
	accounts      Accounts
	profiles      Profiles
	wallets       Wallets
	fsm           state.StateMachine
	kb            *keyboard.Builder
	log           *slog.Logger
	walletTimeout time.Duration
}

// NewAccount wires the account handlers. walletTimeout bounds a signature prompt.
func NewAccount(accounts Accounts, profiles Profiles, wallets Wallets, fsm state.StateMachine, kb *keyboard.Builder, walletTimeout time.Duration, log *slog.Logger) *Account {
	if log == nil {
		log = slog.Default()
	}
	return &Account{
		accounts:      accounts,
		profiles:      profiles,
		wallets:       wallets,
		fsm:           fsm,
		kb:            kb,
		log:           log,
		walletTimeout: walletTimeout,
	}
}

// Start greets the user and shows the main menu. "/start <session-id>" from a
// deep link logs in right away.
func (h *Account) Start(c telebot.Context) error {
	ctx, cancel := Context(c)
	defer cancel()

	if err := h.fsm.ClearState(ctx, c.Sender().ID); err != nil {
		h.log.Warn("failed to reset conversation", slog.Int64("user_id", c.Sender().ID), slog.Any("error", err))
	}

	t := tr(c)
	if err := c.Send(t.Tf("start.welcome", escape(c.Sender().FirstName)), keyboard.MainMenu(t), telebot.ModeHTML); err != nil {
		return err
	}

	if arg(c) != "" {
		return h.Login(c)
	}
	if !AccountOf(c).LoggedIn() {
		return c.Send(t.T("start.login_hint"))
	}
	return nil
}

// Help lists the commands.
func (h *Account) Help(c telebot.Context) error {
	return c.Send(tr(c).T("help.text"), telebot.ModeHTML)
}

// Login links the identity session given as argument.
func (h *Account) Login(c telebot.Context) error {
	t := tr(c)
	sessionID := arg(c)
	if sessionID == "" {
		return c.Send(t.T("login.usage"), telebot.ModeHTML)
	}

	ctx, cancel := Context(c)
	defer cancel()

	account, err := h.accounts.Login(ctx, c.Sender().ID, sessionID)
	if err != nil {
		return err
	}
	SetAccount(c, account)

	if err := c.Send(t.T("login.done")); err != nil {
		return err
	}
	if !account.HasWallet() {
		return c.Send(t.T("wallet.hint"), telebot.ModeHTML)
	}
	return nil
}

// Logout unlinks and revokes the session.
func (h *Account) Logout(c telebot.Context) error {
	account := AccountOf(c)
	if !account.LoggedIn() {
		return c.Send(tr(c).T("logout.not_logged_in"))
	}

	ctx, cancel := Context(c)
	defer cancel()

	if err := h.accounts.Logout(ctx, account); err != nil {
		return err
	}
	return c.Send(tr(c).T("logout.done"))
}

// Wallet registers the wallet bridge URL, or asks for it.
func (h *Account) Wallet(c telebot.Context) error {
	if raw := arg(c); raw != "" {
		return h.saveWalletURL(c, raw)
	}

	ctx, cancel := Context(c)
	defer cancel()

	if err := h.fsm.SetState(ctx, c.Sender().ID, state.StateAwaitingWalletURL, nil); err != nil {
		return err
	}

	t := tr(c)
	current := t.T("wallet.none")
	if account := AccountOf(c); account.HasWallet() {
		current = escape(account.WalletRPCURL)
	}
	return c.Send(t.Tf("wallet.prompt", current), telebot.ModeHTML)
}

// WalletURLInput receives the bridge URL in StateAwaitingWalletURL.
func (h *Account) WalletURLInput(c telebot.Context) error {
	return h.saveWalletURL(c, c.Text())
}

func (h *Account) saveWalletURL(c telebot.Context, raw string) error {
	ctx, cancel := Context(c)
	defer cancel()

	if err := h.accounts.SetWalletURL(ctx, c.Sender().ID, raw); err != nil {
		return err
	}
	if err := h.fsm.ClearState(ctx, c.Sender().ID); err != nil {
		h.log.Warn("failed to clear conversation", slog.Int64("user_id", c.Sender().ID), slog.Any("error", err))
	}
	return c.Send(tr(c).T("wallet.saved"), telebot.ModeHTML)
}

// Verify proves ownership of the bridge's wallet by signing the fixed
// verification message and registers the address as payment wallet.
func (h *Account) Verify(c telebot.Context) error {
	t := tr(c)
	account := AccountOf(c)
	if !account.HasWallet() {
		return c.Send(t.T("wallet.hint"), telebot.ModeHTML)
	}

	ctx, cancel := detached(c, h.walletTimeout)
	defer cancel()

	tok, err := token(ctx, h.accounts, c)
	if err != nil {
		return err
	}

	if err := c.Send(t.T("verify.prompt")); err != nil {
		return err
	}

	provider := h.wallets.For(account.WalletRPCURL)
	address, err := wallet.RequestAccounts(ctx, provider)
	if err != nil {
		return h.walletFailure(c, err)
	}

	signature, err := wallet.PersonalSign(ctx, provider, users.VerificationMessage, address)
	if err != nil {
		return h.walletFailure(c, err)
	}

	if err := h.profiles.VerifyWallet(ctx, tok, address, signature); err != nil {
		return apperrors.NewUpstreamError("user", err)
	}
	return c.Send(t.Tf("verify.done", address), telebot.ModeHTML)
}

func (h *Account) walletFailure(c telebot.Context, err error) error {
	if wallet.IsUserRejected(err) {
		return c.Send(tr(c).T("verify.rejected"))
	}
	return apperrors.NewWalletError(err)
}

// Nickname shows the current nickname and asks for a new one, or sets the
// argument directly.
func (h *Account) Nickname(c telebot.Context) error {
	if nick := arg(c); nick != "" {
		return h.saveNickname(c, nick)
	}

	ctx, cancel := Context(c)
	defer cancel()

	tok, err := token(ctx, h.accounts, c)
	if err != nil {
		return err
	}

	t := tr(c)
	current, err := h.profiles.Nickname(ctx, tok)
	if err != nil {
		return apperrors.NewUpstreamError("user", err)
	}
	if current == "" {
		current = "-"
	}

	if err := h.fsm.SetState(ctx, c.Sender().ID, state.StateAwaitingNickname, nil); err != nil {
		return err
	}
	return c.Send(t.Tf("nickname.prompt", escape(current)), telebot.ModeHTML)
}

// NicknameInput receives the nickname in StateAwaitingNickname.
func (h *Account) NicknameInput(c telebot.Context) error {
	return h.saveNickname(c, c.Text())
}

func (h *Account) saveNickname(c telebot.Context, nick string) error {
	nick = strings.TrimSpace(nick)
	if nick == "" || utf8.RuneCountInString(nick) > maxNicknameLength {
		return apperrors.NewValidationError("A nickname has 1 to 32 characters.")
	}

	ctx, cancel := Context(c)
	defer cancel()

	tok, err := token(ctx, h.accounts, c)
	if err != nil {
		return err
	}
	if err := h.profiles.SetNickname(ctx, tok, nick); err != nil {
		return apperrors.NewUpstreamError("user", err)
	}
	if err := h.fsm.ClearState(ctx, c.Sender().ID); err != nil {
		h.log.Warn("failed to clear conversation", slog.Int64("user_id", c.Sender().ID), slog.Any("error", err))
	}
	return c.Send(tr(c).Tf("nickname.saved", escape(nick)), telebot.ModeHTML)
}

// Interests shows the interest picker with the stored selection.
func (h *Account) Interests(c telebot.Context) error {
	ctx, cancel := Context(c)
	defer cancel()

	tok, err := token(ctx, h.accounts, c)
	if err != nil {
		return err
	}

	slots, err := h.profiles.Themes(ctx, tok)
	if err != nil {
		return apperrors.NewUpstreamError("user", err)
	}

	selected := make([]domain.Tag, 0, domain.InterestSlots)
	for _, raw := range slots {
		if tag, err := domain.ParseTag(raw); err == nil {
			selected = append(selected, tag)
		}
	}

	t := tr(c)
	return c.Send(t.Tf("interests.prompt", domain.InterestSlots), h.kb.TagPicker(t, keyboard.CallbackInterest, selected))
}

// ToggleInterest handles "int:<TAG>" and "int:done". The selection lives in
// the picker's own buttons, so no conversation state is needed.
func (h *Account) ToggleInterest(c telebot.Context) error {
	t := tr(c)
	selected := selectedTags(c.Callback().Message, keyboard.CallbackInterest)
	data := callbackData(c)

	if data == keyboard.UploadDone {
		return h.saveInterests(c, selected)
	}

	tag, err := domain.ParseTag(data)
	if err != nil {
		return respond(c, "", false)
	}

	next, ok := toggle(selected, tag, domain.InterestSlots)
	if !ok {
		return respond(c, t.Tf("interests.too_many", domain.InterestSlots), true)
	}

	if err := editMarkup(c, h.kb.TagPicker(t, keyboard.CallbackInterest, next)); err != nil {
		return err
	}
	return respond(c, "", false)
}

func (h *Account) saveInterests(c telebot.Context, selected []domain.Tag) error {
	ctx, cancel := Context(c)
	defer cancel()

	tok, err := token(ctx, h.accounts, c)
	if err != nil {
		return err
	}

	var slots [domain.InterestSlots]string
	for i, tag := range selected {
		if i == domain.InterestSlots {
			break
		}
		slots[i] = string(tag)
	}

	if err := h.profiles.SetThemes(ctx, tok, slots); err != nil {
		return apperrors.NewUpstreamError("user", err)
	}

	t := tr(c)
	if err := respond(c, t.T("interests.saved"), false); err != nil {
		return err
	}
	labels := make([]string, len(selected))
	for i, tag := range selected {
		labels[i] = tag.Label()
	}
	if len(labels) == 0 {
		labels = []string{"-"}
	}
	return c.Edit(t.Tf("interests.current", strings.Join(labels, ", ")))
}

// selectedTags reads the picker state back from the rendered buttons.
func selectedTags(msg *telebot.Message, unique string) []domain.Tag {
	if msg == nil || msg.ReplyMarkup == nil {
		return nil
	}

	var out []domain.Tag
	for _, row := range msg.ReplyMarkup.InlineKeyboard {
		for _, btn := range row {
			prefix, data, _ := strings.Cut(btn.Data, keyboard.CallbackDataSeparator)
			if prefix != unique || !strings.HasPrefix(btn.Text, "✅") {
				continue
			}
			if tag, err := domain.ParseTag(data); err == nil {
				out = append(out, tag)
			}
		}
	}
	return out
}

// toggle adds or removes tag, refusing to grow past limit.
func toggle(selected []domain.Tag, tag domain.Tag, limit int) ([]domain.Tag, bool) {
	out := make([]domain.Tag, 0, len(selected)+1)
	removed := false
	for _, s := range selected {
		if s == tag {
			removed = true
			continue
		}
		out = append(out, s)
	}
	if removed {
		return out, true
	}
	if len(out) >= limit {
		return selected, false
	}
	return append(out, tag), true
}
