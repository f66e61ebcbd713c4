package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/oasis-bot/internal/bot/handlers"
	"github.com/Proton-105/oasis-bot/internal/bot/keyboard"
	errors "github.com/Proton-105/oasis-bot/internal/errors"
	"github.com/Proton-105/oasis-bot/internal/i18n"
	"github.com/Proton-105/oasis-bot/internal/idempotency"
	"github.com/Proton-105/oasis-bot/internal/middleware"
	"github.com/Proton-105/oasis-bot/internal/state"
	"github.com/Proton-105/oasis-bot/pkg/config"
)

// Accounts is the account service as the bot uses it.
type Accounts interface {
	handlers.Accounts
	AccountResolver
	ActivityTracker
}

// Deps are the services the bot talks to.
type Deps struct {
	FSM          state.StateMachine
	Idempotency  idempotency.Manager
	RateLimit    *middleware.RateLimitMiddleware
	Accounts     Accounts
	Profiles     handlers.Profiles
	Catalog      handlers.Catalog
	Listings     handlers.Listings
	Drafts       handlers.Drafts
	Purchases    handlers.Purchases
	Wallets      handlers.Wallets
	Translations *i18n.Manager
}

// Bot wraps telebot.Bot with application dependencies required for handling updates.
type Bot struct {
	telebot    *telebot.Bot
	log        *slog.Logger
	cfg        config.Config
	deps       Deps
	router     *Router
	dispatcher *Dispatcher
	keyboard   *keyboard.Builder
	errHandler *errors.Handler
	views      *handlers.Views
}

// New builds a telegram bot instance configured according to the application settings.
func New(cfg config.Config, log *slog.Logger, deps Deps) (*Bot, error) {
	if log == nil {
		log = slog.Default()
	}

	settings := telebot.Settings{
		Token: cfg.Bot.Token,
		OnError: func(err error, c telebot.Context) {
			log.Error("telebot error", slog.Any("error", err))
		},
	}

	if cfg.Bot.Mode == "webhook" {
		settings.Poller = &telebot.Webhook{
			Listen:   cfg.Server.WebhookPort,
			Endpoint: &telebot.WebhookEndpoint{PublicURL: cfg.Bot.WebhookURL},
		}
	} else {
		settings.Poller = &telebot.LongPoller{
			Timeout: cfg.Bot.Timeout,
		}
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	kb := keyboard.NewBuilder(log)
	views, err := handlers.NewViews(cfg.Bot.ViewCacheSize, tb, kb, log)
	if err != nil {
		return nil, err
	}

	dispatcher := NewDispatcher(deps.FSM, log)
	b := &Bot{
		telebot:    tb,
		log:        log,
		cfg:        cfg,
		deps:       deps,
		router:     NewRouter(dispatcher, log),
		dispatcher: dispatcher,
		keyboard:   kb,
		errHandler: errors.NewHandler(log, cfg.Sentry.Enabled),
		views:      views,
	}

	b.setupRouter()

	if deps.RateLimit != nil {
		b.telebot.Use(deps.RateLimit.Handle)
	}

	b.registerTelebotHandlers()

	return b, nil
}

// Start publishes the command menu and runs the telegram bot event loop.
func (b *Bot) Start() {
	if b.telebot == nil {
		return
	}

	commands := make([]telebot.Command, 0, len(menuCommands))
	for _, cmd := range menuCommands {
		commands = append(commands, telebot.Command{Text: strings.TrimPrefix(cmd.name, "/"), Description: cmd.description})
	}
	if err := b.telebot.SetCommands(commands); err != nil {
		b.log.Warn("failed to publish command menu", slog.Any("error", err))
	}

	b.telebot.Start()
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	if b.telebot == nil {
		return
	}

	b.log.Info("stopping telegram bot...")
	b.telebot.Stop()
}

// Telebot exposes the underlying telebot.Bot instance for integrations such as health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

// Ping checks that the Bot API accepts the token.
func (b *Bot) Ping(context.Context) error {
	if b.telebot == nil {
		return fmt.Errorf("telebot not initialised")
	}
	_, err := b.telebot.Raw("getMe", nil)
	return err
}

func (b *Bot) setupRouter() {
	d := b.deps
	log := b.log

	b.router.Use(RecoveryMiddleware(log, b.errHandler))
	b.router.Use(middleware.Idempotency(d.Idempotency, idempotency.DefaultTTL, log))
	b.router.Use(ErrorHandlingMiddleware(b.errHandler))
	b.router.Use(LoggingMiddleware(log))
	b.router.Use(AccountMiddleware(d.Accounts, d.Translations, log))
	b.router.Use(LastActiveMiddleware(d.Accounts, log))
	b.router.Use(middleware.Metrics)

	account := handlers.NewAccount(d.Accounts, d.Profiles, d.Wallets, d.FSM, b.keyboard, b.cfg.Services.WalletTimeout, log)
	browse := handlers.NewBrowse(d.Accounts, d.Catalog, d.FSM, b.keyboard, log)
	shop := handlers.NewShop(d.Accounts, d.Catalog, d.Purchases, d.Wallets, b.views, b.telebot, 0, log)
	sell := handlers.NewSell(d.Accounts, d.Catalog, d.Listings, d.Drafts, handlers.NewTelegramFiles(b.telebot), d.FSM, b.keyboard, log)
	pager := handlers.NewPager(browse, sell)
	cancel := handlers.NewCancelHandler(d.FSM, d.Drafts, log)

	commands := map[string]handlers.Handler{
		CommandStart:     account.Start,
		CommandHelp:      account.Help,
		CommandLogin:     account.Login,
		CommandLogout:    account.Logout,
		CommandWallet:    account.Wallet,
		CommandVerify:    account.Verify,
		CommandNickname:  account.Nickname,
		CommandInterests: account.Interests,
		CommandHome:      browse.Home,
		CommandSearch:    browse.Search,
		CommandShowcase:  browse.Showcase,
		CommandProfile:   browse.Profile,
		CommandPurchases: browse.Purchases,
		CommandProduct:   shop.Product,
		CommandManage:    sell.Manage,
		CommandUpload:    sell.Upload,
		CommandEdit:      sell.Edit,
		CommandCancel:    cancel,
	}
	for name, h := range commands {
		b.router.RegisterCommand(name, h)
	}

	callbacks := map[string]handlers.CallbackHandler{
		keyboard.CallbackBuy:        shop.Buy,
		keyboard.CallbackDownload:   shop.Download,
		keyboard.CallbackProduct:    shop.Product,
		keyboard.CallbackNoop:       shop.Noop,
		keyboard.CallbackTag:        browse.Tag,
		keyboard.CallbackPage:       pager.Page,
		keyboard.CallbackInterest:   account.ToggleInterest,
		keyboard.CallbackVisibility: sell.ToggleVisibility,
		keyboard.CallbackDelete:     sell.Delete,
		keyboard.CallbackEdit:       sell.Edit,
		keyboard.CallbackUpload:     sell.UploadCallback,
	}
	for prefix, h := range callbacks {
		b.router.RegisterCallback(prefix, h)
	}

	steps := map[state.State]handlers.Handler{
		state.StateAwaitingSearch:    browse.SearchInput,
		state.StateAwaitingNickname:  account.NicknameInput,
		state.StateAwaitingWalletURL: account.WalletURLInput,
		state.StateUploadTitle:       sell.UploadTitle,
		state.StateUploadDescription: sell.UploadDescription,
		state.StateUploadPrice:       sell.UploadPrice,
		state.StateUploadCopies:      sell.UploadCopies,
		state.StateUploadTags:        sell.UseButtons,
		state.StateUploadFile:        sell.UploadFile,
		state.StateUploadPreviews:    sell.UploadPreview,
		state.StateUploadConfirm:     sell.UseButtons,
		state.StateEditField:         sell.EditFieldInput,
		state.StateEditFile:          sell.EditFileInput,
		state.StateEditPreviews:      sell.EditPreviewInput,
		state.StateError:             cancel,
	}
	for st, h := range steps {
		b.dispatcher.RegisterStateHandler(st, h)
	}

	b.router.SetDefault(b.menuOrHint)
}

// menuOrHint runs the command behind a main menu button, or points at /help.
func (b *Bot) menuOrHint(c telebot.Context) error {
	t := translatorOf(c)
	if name := keyboard.MenuCommand(t, c.Text()); name != "" {
		if h := b.router.getCommandHandler(name); h != nil {
			return h(c)
		}
	}
	if msg := c.Message(); msg != nil && (msg.Document != nil || msg.Photo != nil) {
		return c.Send(t.T("unknown.file"))
	}
	return c.Send(t.T("unknown.text"))
}

func translatorOf(c telebot.Context) i18n.Translator {
	if t, ok := c.Get("translator").(i18n.Translator); ok && t != nil {
		return t
	}
	return keyTranslator{}
}

type keyTranslator struct{}

func (keyTranslator) T(key string) string { return key }

func (keyTranslator) Tf(key string, _ ...any) string { return key }

func (keyTranslator) Lang() string { return "en" }

func (b *Bot) registerTelebotHandlers() {
	if b.telebot == nil || b.router == nil {
		return
	}

	for _, endpoint := range []string{telebot.OnText, telebot.OnCallback, telebot.OnDocument, telebot.OnPhoto} {
		b.telebot.Handle(endpoint, b.router.Route)
	}
}
