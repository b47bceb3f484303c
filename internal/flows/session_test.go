package flows

import (
	"context"
	"errors"
	"fmt"
	"testing"

	gjwt "github.com/golang-jwt/jwt/v5"

	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/transport"
)

type fakeTokens struct {
	valid        map[string]*jwt.IdentityClaims
	expired      map[string]bool
	refreshTo    TokenPair
	refreshErr   error
	verifyCalls  int
	refreshCalls int
}

func (f *fakeTokens) verify(_ context.Context, tok string) (*jwt.IdentityClaims, error) {
	f.verifyCalls++
	if c, ok := f.valid[tok]; ok {
		return c, nil
	}
	if f.expired[tok] {
		return nil, &jwt.ClaimError{Claim: "exp", Err: jwt.ErrTokenExpired}
	}
	return nil, fmt.Errorf("%w: unknown token", jwt.ErrSignatureInvalid)
}

func (f *fakeTokens) refresh(_ context.Context, rt string) (TokenPair, error) {
	f.refreshCalls++
	if f.refreshErr != nil {
		return TokenPair{}, f.refreshErr
	}
	return f.refreshTo, nil
}

func claimsFor(uid string, authTime int64) *jwt.IdentityClaims {
	return &jwt.IdentityClaims{RegisteredClaims: gjwt.RegisteredClaims{Subject: uid}, AuthTime: authTime}
}

func (f *fakeTokens) deps() SessionDeps {
	return SessionDeps{Verify: f.verify, Refresh: f.refresh}
}

func TestCurrentUserNoSessionMakesNoCalls(t *testing.T) {
	f := &fakeTokens{}
	for _, pair := range []*TokenPair{nil, {}, {IDToken: "a"}, {RefreshToken: "r"}} {
		res := RunCurrentUser(context.Background(), pair, false, f.deps())
		if res.State != SessionNoSession || res.Claims != nil || res.Err != nil {
			t.Fatalf("expected empty no-session result, got %+v", res)
		}
	}
	if f.verifyCalls != 0 || f.refreshCalls != 0 {
		t.Fatalf("expected zero calls, got verify=%d refresh=%d", f.verifyCalls, f.refreshCalls)
	}
}

func TestCurrentUserValidTokenSkipsRefresh(t *testing.T) {
	f := &fakeTokens{valid: map[string]*jwt.IdentityClaims{"id-1": claimsFor("u1", 1)}}
	res := RunCurrentUser(context.Background(), &TokenPair{IDToken: "id-1", RefreshToken: "rt-1"}, false, f.deps())
	if res.State != SessionAuthenticated || res.Claims.UID() != "u1" || res.Refreshed != nil {
		t.Fatalf("unexpected result %+v", res)
	}
	if f.refreshCalls != 0 {
		t.Fatal("valid token must not refresh")
	}
}

func TestCurrentUserExpiredRefreshesOnceAndReverifies(t *testing.T) {
	f := &fakeTokens{
		valid:     map[string]*jwt.IdentityClaims{"id-2": claimsFor("u1", 1)},
		expired:   map[string]bool{"id-1": true},
		refreshTo: TokenPair{IDToken: "id-2", RefreshToken: "rt-2"},
	}

	res := RunCurrentUser(context.Background(), &TokenPair{IDToken: "id-1", RefreshToken: "rt-1"}, false, f.deps())
	if res.State != SessionAuthenticated || res.Claims.UID() != "u1" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Refreshed == nil || *res.Refreshed != (TokenPair{IDToken: "id-2", RefreshToken: "rt-2"}) {
		t.Fatalf("expected new pair, got %+v", res.Refreshed)
	}
	if f.refreshCalls != 1 || f.verifyCalls != 2 {
		t.Fatalf("expected one refresh and a re-verify, got refresh=%d verify=%d", f.refreshCalls, f.verifyCalls)
	}

	second := RunCurrentUser(context.Background(), res.Refreshed, false, f.deps())
	if second.State != SessionAuthenticated || f.refreshCalls != 1 {
		t.Fatalf("second call must not refresh, got %+v after %d refreshes", second, f.refreshCalls)
	}
}

func TestCurrentUserRefreshedTokenFailingVerificationIsInvalid(t *testing.T) {
	f := &fakeTokens{
		expired:   map[string]bool{"id-1": true},
		refreshTo: TokenPair{IDToken: "forged", RefreshToken: "rt-2"},
	}
	res := RunCurrentUser(context.Background(), &TokenPair{IDToken: "id-1", RefreshToken: "rt-1"}, false, f.deps())
	if res.State != SessionInvalid || res.Failure != SessionFailureReverify || !res.ClearTokens || res.Claims != nil {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestCurrentUserInvalidTokenClearsWithoutRefresh(t *testing.T) {
	f := &fakeTokens{}
	res := RunCurrentUser(context.Background(), &TokenPair{IDToken: "junk", RefreshToken: "rt"}, false, f.deps())
	if res.State != SessionInvalid || res.Failure != SessionFailureVerify || !res.ClearTokens {
		t.Fatalf("unexpected result %+v", res)
	}
	if !errors.Is(res.Err, jwt.ErrSignatureInvalid) {
		t.Fatalf("expected verification error to surface, got %v", res.Err)
	}
	if f.refreshCalls != 0 {
		t.Fatal("only expiry may trigger a refresh")
	}
}

func TestCurrentUserRefreshFailure(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		clear bool
	}{
		{name: "rejected refresh token", err: transport.DecodeError(400, []byte(`{"error":{"code":400,"message":"TOKEN_EXPIRED"}}`)), clear: true},
		{name: "network failure", err: fmt.Errorf("%w: dial tcp", transport.ErrRequestFailed), clear: false},
		{name: "upstream outage", err: transport.DecodeError(503, []byte(`{"error":{"code":503,"message":"UNAVAILABLE"}}`)), clear: false},
		{name: "upstream throttled", err: transport.DecodeError(429, []byte(`{"error":{"code":429,"message":"TOO_MANY_ATTEMPTS_TRY_LATER"}}`)), clear: false},
		{name: "garbled success body", err: fmt.Errorf("%w: unexpected EOF", transport.ErrMalformedResponse), clear: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := &fakeTokens{expired: map[string]bool{"id-1": true}, refreshErr: tc.err}
			res := RunCurrentUser(context.Background(), &TokenPair{IDToken: "id-1", RefreshToken: "rt-1"}, false, f.deps())
			if res.Failure != SessionFailureRefresh || res.ClearTokens != tc.clear {
				t.Fatalf("unexpected result %+v", res)
			}
		})
	}
}

type denyLimiter struct{ keys []string }

func (d *denyLimiter) CheckRefresh(_ context.Context, key string) error {
	d.keys = append(d.keys, key)
	return errors.New("rate limited")
}

func TestCurrentUserRefreshRateLimited(t *testing.T) {
	f := &fakeTokens{expired: map[string]bool{"id-1": true}}
	lim := &denyLimiter{}
	deps := f.deps()
	deps.RateLimiter = lim
	deps.RefreshKey = func(rt string) string { return "hash:" + rt }

	res := RunCurrentUser(context.Background(), &TokenPair{IDToken: "id-1", RefreshToken: "rt-1"}, false, deps)
	if res.Failure != SessionFailureRateLimited || res.ClearTokens {
		t.Fatalf("unexpected result %+v", res)
	}
	if f.refreshCalls != 0 || len(lim.keys) != 1 || lim.keys[0] != "hash:rt-1" {
		t.Fatalf("limiter must run before refresh on the hashed key, got %v", lim.keys)
	}
}

func TestCurrentUserRevokedIsFatalWithoutRefresh(t *testing.T) {
	f := &fakeTokens{valid: map[string]*jwt.IdentityClaims{"id-1": claimsFor("u1", 100)}}
	deps := f.deps()
	revoked := fmt.Errorf("lookup: %w", ErrTokenRevoked)
	deps.CheckRevoked = func(context.Context, *jwt.IdentityClaims) error { return revoked }

	res := RunCurrentUser(context.Background(), &TokenPair{IDToken: "id-1", RefreshToken: "rt-1"}, true, deps)
	if res.State != SessionInvalid || res.Failure != SessionFailureRevoked || !res.ClearTokens || !errors.Is(res.Err, revoked) {
		t.Fatalf("unexpected result %+v", res)
	}
	if f.refreshCalls != 0 {
		t.Fatal("revocation must not trigger a refresh")
	}

	skipped := RunCurrentUser(context.Background(), &TokenPair{IDToken: "id-1", RefreshToken: "rt-1"}, false, deps)
	if skipped.State != SessionAuthenticated {
		t.Fatalf("revocation check must only run when requested, got %+v", skipped)
	}
}

func TestCurrentUserKeepsTokensWhenVerificationCannotRun(t *testing.T) {
	keyOutage := func(context.Context, string) (*jwt.IdentityClaims, error) {
		return nil, fmt.Errorf("%w: jwks endpoint returned 503", jwt.ErrKeyFetchFailed)
	}
	res := RunCurrentUser(context.Background(), &TokenPair{IDToken: "id-1", RefreshToken: "rt-1"}, false, SessionDeps{Verify: keyOutage})
	if res.Failure != SessionFailureVerify || res.ClearTokens {
		t.Fatalf("key outage must keep tokens, got %+v", res)
	}

	f := &fakeTokens{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res = RunCurrentUser(ctx, &TokenPair{IDToken: "junk", RefreshToken: "rt"}, false, f.deps())
	if res.ClearTokens {
		t.Fatalf("cancelled request must keep tokens, got %+v", res)
	}
}

func TestCurrentUserRevocationLookupOutageKeepsTokens(t *testing.T) {
	f := &fakeTokens{valid: map[string]*jwt.IdentityClaims{"id-1": claimsFor("u1", 100)}}
	deps := f.deps()
	deps.CheckRevoked = func(context.Context, *jwt.IdentityClaims) error {
		return transport.DecodeError(500, []byte(`{"error":{"code":500,"message":"INTERNAL"}}`))
	}
	res := RunCurrentUser(context.Background(), &TokenPair{IDToken: "id-1", RefreshToken: "rt-1"}, true, deps)
	if res.Failure != SessionFailureRevoked || res.ClearTokens {
		t.Fatalf("lookup outage must keep tokens, got %+v", res)
	}
}

func TestIsSessionError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{fmt.Errorf("wrap: %w", jwt.ErrSignatureInvalid), true},
		{&jwt.ClaimError{Claim: "exp", Err: jwt.ErrTokenExpired}, true},
		{ErrUserDisabled, true},
		{transport.DecodeError(400, []byte(`{"error":{"code":400,"message":"INVALID_REFRESH_TOKEN"}}`)), true},
		{transport.DecodeError(429, nil), false},
		{transport.DecodeError(502, nil), false},
		{fmt.Errorf("%w: %w", jwt.ErrKeyFetchFailed, context.DeadlineExceeded), false},
		{errors.New("unclassified"), false},
		{nil, false},
	}
	for _, tc := range tests {
		if got := IsSessionError(tc.err); got != tc.want {
			t.Fatalf("IsSessionError(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
