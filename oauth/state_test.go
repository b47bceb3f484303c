package oauth

import (
	"errors"
	"testing"
)

func TestLoginStateRoundTripKeepsNonce(t *testing.T) {
	s := NewLoginState("/dashboard?tab=1")
	got, err := ParseLoginState(s.Encode())
	if err != nil {
		t.Fatalf("ParseLoginState: %v", err)
	}
	if got != s {
		t.Fatalf("expected %+v, got %+v", s, got)
	}
}

func TestSafeNext(t *testing.T) {
	tests := map[string]string{
		"":                     "/",
		"/ok":                  "/ok",
		"//evil.example.com":   "/",
		`/\evil.example.com`:   "/",
		"https://evil.example": "/",
	}
	for in, want := range tests {
		if got := SafeNext(in); got != want {
			t.Fatalf("SafeNext(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseLoginStateRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"***", "e30"} {
		if _, err := ParseLoginState(raw); !errors.Is(err, ErrInvalidLoginState) {
			t.Fatalf("%q: expected ErrInvalidLoginState, got %v", raw, err)
		}
	}
}
