package handlers

import (
	"context"
	"errors"
	"html"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/oasis-bot/internal/catalog"
	"github.com/Proton-105/oasis-bot/internal/domain"
	apperrors "github.com/Proton-105/oasis-bot/internal/errors"
	"github.com/Proton-105/oasis-bot/internal/i18n"
	"github.com/Proton-105/oasis-bot/internal/identity"
	"github.com/Proton-105/oasis-bot/internal/listings"
)

// Accounts is the account linking service.
type Accounts interface {
	Login(ctx context.Context, telegramID int64, sessionID string) (*domain.Account, error)
	Logout(ctx context.Context, account *domain.Account) error
	SetWalletURL(ctx context.Context, telegramID int64, raw string) error
	Session(account *domain.Account) *identity.Session
	Token(ctx context.Context, account *domain.Account) (string, error)
}

// Catalog builds the browsing views.
type Catalog interface {
	Home(ctx context.Context, token string) ([]catalog.Card, error)
	Search(ctx context.Context, query string, page int) ([]catalog.Card, error)
	Showcase(ctx context.Context, rawTag string) (domain.Tag, []catalog.Card, error)
	Product(ctx context.Context, token string, id listings.ID) (*catalog.Product, error)
	ResolveProfile(ctx context.Context, candidate string) (*catalog.Profile, error)
	SellerListings(ctx context.Context, token, sellerID string) ([]catalog.Card, error)
	Purchases(ctx context.Context, token, buyerID string, page int) ([]catalog.Card, error)
}

// tr returns the translator chosen for the sender.
func tr(c telebot.Context) i18n.Translator {
	if t, ok := c.Get(translatorKey).(i18n.Translator); ok && t != nil {
		return t
	}
	return fallbackTranslator{}
}

type fallbackTranslator struct{}

func (fallbackTranslator) T(key string) string { return key }

func (fallbackTranslator) Tf(key string, _ ...any) string { return key }

func (fallbackTranslator) Lang() string { return "en" }

// arg returns the command payload: "/search red lamp" → "red lamp".
func arg(c telebot.Context) string {
	return strings.TrimSpace(c.Message().Payload)
}

// token returns a bearer token for the sender, or an auth error that the
// error middleware turns into a login hint.
func token(ctx context.Context, accounts Accounts, c telebot.Context) (string, error) {
	account := AccountOf(c)
	if !account.LoggedIn() {
		return "", apperrors.NewAuthError("not logged in")
	}
	return accounts.Token(ctx, account)
}

// optionalToken is token for views that also work signed out.
func optionalToken(ctx context.Context, accounts Accounts, c telebot.Context) string {
	if !AccountOf(c).LoggedIn() {
		return ""
	}
	tok, err := accounts.Token(ctx, AccountOf(c))
	if err != nil {
		return ""
	}
	return tok
}

// respond answers a callback query; alert shows a modal instead of a toast.
func respond(c telebot.Context, text string, alert bool) error {
	if c.Callback() == nil {
		if text == "" {
			return nil
		}
		return c.Send(text)
	}
	return c.Respond(&telebot.CallbackResponse{Text: text, ShowAlert: alert})
}

// callbackData returns the payload after the callback prefix.
func callbackData(c telebot.Context) string {
	cb := c.Callback()
	if cb == nil {
		return ""
	}
	_, data, _ := strings.Cut(cb.Data, ":")
	return data
}

// editMarkup swaps the keyboard of the pressed message. Redrawing an
// unchanged keyboard is not an error.
func editMarkup(c telebot.Context, markup *telebot.ReplyMarkup) error {
	if err := c.Edit(markup); err != nil && !errors.Is(err, telebot.ErrSameMessageContent) {
		return err
	}
	return nil
}

func escape(s string) string {
	return html.EscapeString(s)
}
