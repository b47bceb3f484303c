package goIdentity

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/MrEthical07/goIdentity/jwt"
)

// ServiceAccount is a service account JSON key file.
type ServiceAccount struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	ClientID     string `json:"client_id"`
	TokenURI     string `json:"token_uri"`
}

// ParseServiceAccount decodes and checks a service account key file. The
// private key itself is imported lazily on first signature.
func ParseServiceAccount(data []byte) (*ServiceAccount, error) {
	var sa ServiceAccount
	if err := json.Unmarshal(data, &sa); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidServiceAccount, err)
	}
	if err := sa.validate(); err != nil {
		return nil, err
	}
	return &sa, nil
}

// LoadServiceAccountFile reads and parses the key file at path.
func LoadServiceAccountFile(path string) (*ServiceAccount, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account: %w", err)
	}
	return ParseServiceAccount(data)
}

func (sa *ServiceAccount) validate() error {
	if sa.Type != "" && sa.Type != "service_account" {
		return fmt.Errorf("%w: type %q", ErrInvalidServiceAccount, sa.Type)
	}
	if strings.TrimSpace(sa.ClientEmail) == "" {
		return fmt.Errorf("%w: client_email is required", ErrInvalidServiceAccount)
	}
	if strings.TrimSpace(sa.PrivateKey) == "" {
		return fmt.Errorf("%w: private_key is required", ErrInvalidServiceAccount)
	}
	return nil
}

func (sa *ServiceAccount) credentials() jwt.Credentials {
	return jwt.Credentials{
		ClientEmail:  sa.ClientEmail,
		PrivateKeyID: sa.PrivateKeyID,
		PrivateKey:   sa.PrivateKey,
		TokenURL:     sa.TokenURI,
	}
}
