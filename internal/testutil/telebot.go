// Package testutil holds fakes shared by handler and middleware tests.
package testutil

import (
	"strings"
	"sync"

	telebot "gopkg.in/telebot.v3"
)

// Sent is one outgoing message captured by a fake.
type Sent struct {
	To   telebot.Recipient
	What interface{}
	Opts []interface{}
}

// Text returns the message text, or the caption of a photo.
func (s Sent) Text() string {
	switch v := s.What.(type) {
	case string:
		return v
	case *telebot.Photo:
		return v.Caption
	default:
		return ""
	}
}

// Markup returns the inline keyboard sent with the message, if any.
func (s Sent) Markup() *telebot.ReplyMarkup {
	for _, opt := range s.Opts {
		if m, ok := opt.(*telebot.ReplyMarkup); ok {
			return m
		}
	}
	return nil
}

// FakeContext is a telebot.Context for a single update. Methods it does not
// override panic through the nil embedded interface.
type FakeContext struct {
	telebot.Context

	User *telebot.User
	Msg  *telebot.Message
	CB   *telebot.Callback

	mu        sync.Mutex
	values    map[string]interface{}
	Sent      []Sent
	Responses []*telebot.CallbackResponse
	Edits     []Sent
}

// NewMessage builds a context for a text message from userID.
func NewMessage(userID int64, text string) *FakeContext {
	user := &telebot.User{ID: userID, FirstName: "Ada", LanguageCode: "en"}
	msg := &telebot.Message{ID: 100, Sender: user, Chat: &telebot.Chat{ID: userID}, Text: text}
	if strings.HasPrefix(text, "/") {
		if _, payload, ok := strings.Cut(text, " "); ok {
			msg.Payload = strings.TrimSpace(payload)
		}
	}
	return &FakeContext{User: user, Msg: msg}
}

// NewCallback builds a context for a button press on message messageID.
func NewCallback(userID int64, messageID int, data string) *FakeContext {
	user := &telebot.User{ID: userID, FirstName: "Ada", LanguageCode: "en"}
	msg := &telebot.Message{ID: messageID, Chat: &telebot.Chat{ID: userID}}
	return &FakeContext{
		User: user,
		Msg:  msg,
		CB:   &telebot.Callback{ID: "cb-" + data, Sender: user, Message: msg, Data: data},
	}
}

func (f *FakeContext) Sender() *telebot.User { return f.User }

func (f *FakeContext) Chat() *telebot.Chat {
	if f.Msg == nil {
		return nil
	}
	return f.Msg.Chat
}

func (f *FakeContext) Recipient() telebot.Recipient { return f.Chat() }

func (f *FakeContext) Message() *telebot.Message { return f.Msg }

func (f *FakeContext) Callback() *telebot.Callback { return f.CB }

func (f *FakeContext) Text() string {
	if f.Msg == nil {
		return ""
	}
	return f.Msg.Text
}

func (f *FakeContext) Send(what interface{}, opts ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = append(f.Sent, Sent{To: f.Chat(), What: what, Opts: opts})
	return nil
}

func (f *FakeContext) Edit(what interface{}, opts ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Edits = append(f.Edits, Sent{To: f.Chat(), What: what, Opts: opts})
	return nil
}

func (f *FakeContext) Respond(resp ...*telebot.CallbackResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(resp) == 0 {
		resp = []*telebot.CallbackResponse{{}}
	}
	f.Responses = append(f.Responses, resp...)
	return nil
}

func (f *FakeContext) Set(key string, val interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.values == nil {
		f.values = make(map[string]interface{})
	}
	f.values[key] = val
}

func (f *FakeContext) Get(key string) interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[key]
}

// LastText is the text of the most recent outgoing message, or "".
func (f *FakeContext) LastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Sent) == 0 {
		return ""
	}
	return f.Sent[len(f.Sent)-1].Text()
}

// LastResponse is the most recent callback answer, or nil.
func (f *FakeContext) LastResponse() *telebot.CallbackResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Responses) == 0 {
		return nil
	}
	return f.Responses[len(f.Responses)-1]
}

// Messenger records messages sent and keyboards edited outside an update.
type Messenger struct {
	mu      sync.Mutex
	nextID  int
	Sent    []Sent
	Markups []*telebot.ReplyMarkup
	// SendErr fails every Send when set.
	SendErr error
}

// Send records the message and returns it with a fresh id.
func (m *Messenger) Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return nil, m.SendErr
	}
	m.nextID++
	m.Sent = append(m.Sent, Sent{To: to, What: what, Opts: opts})

	chat, _ := to.(*telebot.Chat)
	return &telebot.Message{ID: 1000 + m.nextID, Chat: chat}, nil
}

// EditReplyMarkup records the new keyboard.
func (m *Messenger) EditReplyMarkup(msg telebot.Editable, markup *telebot.ReplyMarkup) (*telebot.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Markups = append(m.Markups, markup)
	return nil, nil
}

// LastMarkup is the most recent edited keyboard, or nil.
func (m *Messenger) LastMarkup() *telebot.ReplyMarkup {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Markups) == 0 {
		return nil
	}
	return m.Markups[len(m.Markups)-1]
}

// Texts returns the text of every sent message.
func (m *Messenger) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Sent))
	for i, s := range m.Sent {
		out[i] = s.Text()
	}
	return out
}
