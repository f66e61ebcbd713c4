package bot

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/oasis-bot/internal/bot/handlers"
	"github.com/Proton-105/oasis-bot/internal/bot/keyboard"
)

const stateLookupTimeout = 5 * time.Second

// Router dispatches commands, callbacks, and state-aware updates. Every
// handler, state handlers included, runs inside the middleware chain.
type Router struct {
	mu             sync.RWMutex
	commands       map[string]handlers.Handler
	callbacks      map[string]handlers.CallbackHandler
	dispatcher     *Dispatcher
	defaultHandler handlers.Handler
	middlewares    []handlers.Middleware
	log            *slog.Logger
}

// NewRouter builds a Router with empty registries.
func NewRouter(dispatcher *Dispatcher, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}

	return &Router{
		commands:    make(map[string]handlers.Handler),
		callbacks:   make(map[string]handlers.CallbackHandler),
		dispatcher:  dispatcher,
		middlewares: make([]handlers.Middleware, 0),
		log:         log,
	}
}

// RegisterCommand registers a handler for a bot command such as "/start".
func (r *Router) RegisterCommand(cmd string, h handlers.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[cmd] = h
}

// RegisterCallback registers a handler for the callback prefix before the first ':'.
func (r *Router) RegisterCallback(prefix string, h handlers.CallbackHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks[prefix] = h
}

// Use appends a middleware to the chain.
func (r *Router) Use(mw handlers.Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = append(r.middlewares, mw)
}

// SetDefault sets the fallback handler for text that is neither a command nor
// expected by the conversation.
func (r *Router) SetDefault(h handlers.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultHandler = h
}

// Route directs the incoming update to the appropriate handler.
func (r *Router) Route(c telebot.Context) error {
	if c == nil {
		return nil
	}

	if callback := c.Callback(); callback != nil {
		return r.handleCallback(c, callback.Data)
	}

	return r.handleMessage(c)
}

func (r *Router) handleCallback(c telebot.Context, data string) error {
	prefix, _, err := keyboard.DecodeCallback(data)
	if err != nil {
		return c.Respond()
	}

	handler := r.getCallbackHandler(prefix)
	if handler == nil {
		r.log.Info("no callback handler found", "data", data)
		return c.Respond()
	}

	return r.executeHandler(handlers.Handler(handler), c)
}

func (r *Router) handleMessage(c telebot.Context) error {
	if name, ok := CommandOf(c.Text()); ok {
		if handler := r.getCommandHandler(name); handler != nil {
			return r.executeHandler(handler, c)
		}
	}

	if handler := r.stateHandler(c); handler != nil {
		return r.executeHandler(handler, c)
	}

	if handler := r.getDefaultHandler(); handler != nil {
		return r.executeHandler(handler, c)
	}

	return nil
}

// stateHandler resolves the conversation step lazily, inside the chain, so a
// state lookup failure is reported like any other handler error.
func (r *Router) stateHandler(c telebot.Context) handlers.Handler {
	if r.dispatcher == nil || c.Sender() == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), stateLookupTimeout)
	defer cancel()

	handler, _, err := r.dispatcher.Resolve(ctx, c.Sender().ID)
	if err != nil {
		return func(telebot.Context) error { return err }
	}
	return handler
}

// CommandOf extracts the command word of text: "/search@oasis_bot lamp" → "/search".
func CommandOf(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}

	word, _, _ := strings.Cut(text, " ")
	word, _, _ = strings.Cut(word, "@")
	word = strings.TrimSpace(word)
	if len(word) < 2 {
		return "", false
	}
	return strings.ToLower(word), true
}

func (r *Router) executeHandler(h handlers.Handler, c telebot.Context) error {
	wrapped := r.applyMiddlewares(h)
	if wrapped == nil {
		return nil
	}
	return wrapped(c)
}

func (r *Router) getCallbackHandler(prefix string) handlers.CallbackHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbacks[prefix]
}

func (r *Router) getCommandHandler(cmd string) handlers.Handler {
	r.mu.RLock()
	handler := r.commands[cmd]
	r.mu.RUnlock()
	return handler
}

func (r *Router) getDefaultHandler() handlers.Handler {
	r.mu.RLock()
	handler := r.defaultHandler
	r.mu.RUnlock()
	return handler
}

// applyMiddlewares wraps the handler with all registered middlewares.
func (r *Router) applyMiddlewares(h handlers.Handler) handlers.Handler {
	if h == nil {
		return nil
	}

	middlewares := r.middlewaresSnapshot()
	wrapped := h
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}

	return wrapped
}

func (r *Router) middlewaresSnapshot() []handlers.Middleware {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.middlewares) == 0 {
		return nil
	}

	snapshot := make([]handlers.Middleware, len(r.middlewares))
	copy(snapshot, r.middlewares)
	return snapshot
}
