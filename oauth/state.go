package oauth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidLoginState means the state parameter could not be decoded.
var ErrInvalidLoginState = errors.New("invalid login state")

// LoginState travels through the provider as the OAuth state parameter.
// Nonce binds the callback to the browser that started the login.
type LoginState struct {
	Next  string `json:"next"`
	Nonce string `json:"nonce"`
}

// NewLoginState returns a state for next with a fresh nonce.
func NewLoginState(next string) LoginState {
	return LoginState{Next: SafeNext(next), Nonce: uuid.NewString()}
}

// Encode returns the URL-safe form of the state.
func (s LoginState) Encode() string {
	raw, _ := json.Marshal(s)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// ParseLoginState decodes a state produced by Encode. Next is re-sanitized.
func ParseLoginState(raw string) (LoginState, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return LoginState{}, fmt.Errorf("%w: %w", ErrInvalidLoginState, err)
	}
	var s LoginState
	if err := json.Unmarshal(decoded, &s); err != nil {
		return LoginState{}, fmt.Errorf("%w: %w", ErrInvalidLoginState, err)
	}
	if _, err := uuid.Parse(s.Nonce); err != nil {
		return LoginState{}, fmt.Errorf("%w: bad nonce", ErrInvalidLoginState)
	}
	s.Next = SafeNext(s.Next)
	return s, nil
}

// SafeNext keeps next only if it is a local absolute path.
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") {
		return "/"
	}
	if strings.HasPrefix(next, "//") || strings.HasPrefix(next, `/\`) {
		return "/"
	}
	return next
}
