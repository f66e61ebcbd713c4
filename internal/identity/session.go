package identity

import (
	"context"
	"errors"
)

// TokenSource mints session tokens. *Client implements it.
type TokenSource interface {
	CreateSessionToken(ctx context.Context, sessionID, template string) (string, error)
}

// Session is a linked account's view of its identity session.
type Session struct {
	tokens    TokenSource
	template  string
	sessionID string
	userID    string
}

// NewSession binds sessionID and userID. Either may be empty for a signed-out user.
func NewSession(tokens TokenSource, sessionID, userID, template string) *Session {
	return &Session{tokens: tokens, template: template, sessionID: sessionID, userID: userID}
}

// Session is NewSession with c as the token source.
func (c *Client) Session(sessionID, userID, template string) *Session {
	return NewSession(c, sessionID, userID, template)
}

// SignedIn reports whether a session is linked.
func (s *Session) SignedIn() bool {
	return s != nil && s.sessionID != "" && s.userID != ""
}

// UserID returns the identity id, or "".
func (s *Session) UserID() string {
	if s == nil {
		return ""
	}
	return s.userID
}

// Token mints a fresh bearer token. An ended session yields "" without error.
func (s *Session) Token(ctx context.Context) (string, error) {
	if !s.SignedIn() {
		return "", nil
	}
	tok, err := s.tokens.CreateSessionToken(ctx, s.sessionID, s.template)
	if errors.Is(err, ErrSessionInactive) {
		return "", nil
	}
	return tok, err
}
