package goIdentity

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseServiceAccount(t *testing.T) {
	sa := testServiceAccount(t)
	data, err := json.Marshal(sa)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := ParseServiceAccount(data)
	if err != nil {
		t.Fatalf("ParseServiceAccount: %v", err)
	}
	if got.ClientEmail != sa.ClientEmail || got.PrivateKeyID != "sa-kid" || got.ProjectID != testProject {
		t.Fatalf("unexpected account %+v", got)
	}
}

func TestParseServiceAccountRejects(t *testing.T) {
	for name, raw := range map[string]string{
		"not json":      "{",
		"wrong type":    `{"type":"authorized_user","client_email":"a@b","private_key":"k"}`,
		"missing email": `{"type":"service_account","private_key":"k"}`,
		"missing key":   `{"type":"service_account","client_email":"a@b"}`,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseServiceAccount([]byte(raw)); !errors.Is(err, ErrInvalidServiceAccount) {
				t.Fatalf("expected ErrInvalidServiceAccount, got %v", err)
			}
		})
	}
}

func TestLoadServiceAccountFile(t *testing.T) {
	data, _ := json.Marshal(testServiceAccount(t))
	path := filepath.Join(t.TempDir(), "sa.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadServiceAccountFile(path); err != nil {
		t.Fatalf("LoadServiceAccountFile: %v", err)
	}
	if _, err := LoadServiceAccountFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestBuildTakesProjectFromServiceAccount(t *testing.T) {
	f := newFakeIdentity(t)
	cfg := f.config()
	cfg.ProjectID = ""
	e := build(t, f.builder(t).WithConfig(cfg).WithServiceAccount(testServiceAccount(t)))
	if e.ProjectID() != testProject {
		t.Fatalf("expected project %q, got %q", testProject, e.ProjectID())
	}
}
