// Package auth supplies the bot token used to authenticate REST calls and the
// gateway handshake.
package auth

import (
	"errors"
	"strings"
	"sync"

	"github.com/Guliveer/guildkit/internal/constants"
)

// ErrEmptyToken is returned when a blank token is supplied.
var ErrEmptyToken = errors.New("auth token is empty")

// TokenProvider holds a bearer token. Reads are safe for concurrent use, but
// replacing the token while REST requests are in flight means those requests
// may go out with either token; rotate between batches of work.
type TokenProvider struct {
	mu    sync.RWMutex
	token string
}

// NewTokenProvider creates a provider for the given bot token.
func NewTokenProvider(token string) (*TokenProvider, error) {
	token = normalize(token)
	if token == "" {
		return nil, ErrEmptyToken
	}
	return &TokenProvider{token: token}, nil
}

// AuthToken returns the current token.
func (p *TokenProvider) AuthToken() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token
}

// SetToken replaces the token (login with a new token). The gateway picks the
// new token up on its next handshake.
func (p *TokenProvider) SetToken(token string) error {
	token = normalize(token)
	if token == "" {
		return ErrEmptyToken
	}
	p.mu.Lock()
	p.token = token
	p.mu.Unlock()
	return nil
}

// GetAuthHeaders returns the headers needed on every authenticated request.
func (p *TokenProvider) GetAuthHeaders() map[string]string {
	return map[string]string{
		constants.HeaderAuthorization: "Bearer " + p.AuthToken(),
		"User-Agent":                  constants.UserAgent,
	}
}

// normalize trims whitespace and a pasted "Bearer " prefix.
func normalize(token string) string {
	token = strings.TrimSpace(token)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}
