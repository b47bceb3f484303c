package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/MrEthical07/goIdentity/idtoolkit"
	"github.com/MrEthical07/goIdentity/transport"
)

const (
	DefaultAuthURL    = "https://accounts.google.com/o/oauth2/v2/auth"
	DefaultTokenURL   = "https://oauth2.googleapis.com/token"
	DefaultProviderID = "google.com"
)

// DefaultScopes are requested when Config.Scopes is empty.
var DefaultScopes = []string{"openid", "email", "profile"}

var (
	ErrMissingCode        = errors.New("authorization code is required")
	ErrMissingRedirectURI = errors.New("redirect uri is required")
	ErrMissingIDToken     = errors.New("provider response has no id_token")
)

// State is the progress of one code exchange.
type State uint8

const (
	StateCodeReceived State = iota
	StateProviderTokenObtained
	StateSessionIssued
)

func (s State) String() string {
	switch s {
	case StateCodeReceived:
		return "code_received"
	case StateProviderTokenObtained:
		return "provider_token_obtained"
	case StateSessionIssued:
		return "session_issued"
	default:
		return "unknown"
	}
}

// ExchangeError reports the state in which an exchange stopped.
type ExchangeError struct {
	State State
	Err   error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("oauth exchange failed at %s: %v", e.State, e.Err)
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// IdentityService performs the second hop. *idtoolkit.Client satisfies it.
type IdentityService interface {
	SignInWithIdp(ctx context.Context, providerIDToken, providerID, requestURI string) (*idtoolkit.SignInResponse, error)
}

// Config holds the provider client registration.
type Config struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	ProviderID   string
	Scopes       []string
}

// Result is a completed exchange.
type Result struct {
	IDToken      string
	RefreshToken string
	ExpiresIn    time.Duration
	LocalID      string
	Email        string
	IsNewUser    bool
	State        State
}

// Exchanger runs the two-hop code exchange.
type Exchanger struct {
	cfg  Config
	http *http.Client
	idp  IdentityService
}

// NewExchanger returns an Exchanger. httpClient carries every provider call.
func NewExchanger(cfg Config, httpClient *http.Client, idp IdentityService) *Exchanger {
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.ProviderID == "" {
		cfg.ProviderID = DefaultProviderID
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Exchanger{cfg: cfg, http: httpClient, idp: idp}
}

// ProviderID returns the provider the exchanger signs in with.
func (e *Exchanger) ProviderID() string {
	return e.cfg.ProviderID
}

func (e *Exchanger) oauthConfig(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     e.cfg.ClientID,
		ClientSecret: e.cfg.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       e.cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   e.cfg.AuthURL,
			TokenURL:  e.cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthCodeURL returns the provider consent URL carrying state.
func (e *Exchanger) AuthCodeURL(redirectURI, state string) string {
	return e.oauthConfig(redirectURI).AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades code for a session token pair. Failures are returned as
// *ExchangeError; upstream error bodies are preserved as *transport.APIError.
func (e *Exchanger) Exchange(ctx context.Context, code, redirectURI string) (*Result, error) {
	if code == "" {
		return nil, &ExchangeError{State: StateCodeReceived, Err: ErrMissingCode}
	}
	if redirectURI == "" {
		return nil, &ExchangeError{State: StateCodeReceived, Err: ErrMissingRedirectURI}
	}

	providerToken, err := e.exchangeCode(ctx, code, redirectURI)
	if err != nil {
		return nil, &ExchangeError{State: StateCodeReceived, Err: err}
	}

	session, err := e.idp.SignInWithIdp(ctx, providerToken, e.cfg.ProviderID, redirectURI)
	if err != nil {
		return nil, &ExchangeError{State: StateProviderTokenObtained, Err: err}
	}

	return &Result{
		IDToken:      session.IDToken,
		RefreshToken: session.RefreshToken,
		ExpiresIn:    session.ExpiresIn(),
		LocalID:      session.LocalID,
		Email:        session.Email,
		IsNewUser:    session.IsNewUser,
		State:        StateSessionIssued,
	}, nil
}

func (e *Exchanger) exchangeCode(ctx context.Context, code, redirectURI string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.http)
	tok, err := e.oauthConfig(redirectURI).Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return "", transport.DecodeError(retrieveErr.Response.StatusCode, retrieveErr.Body)
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) || ctx.Err() != nil {
			return "", fmt.Errorf("%w: %w", transport.ErrRequestFailed, err)
		}
		// The provider answered 2xx with a body oauth2 could not use.
		return "", fmt.Errorf("%w: %w", transport.ErrMalformedResponse, err)
	}
	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		return "", ErrMissingIDToken
	}
	return idToken, nil
}
