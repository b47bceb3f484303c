package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/keys"
)

func newVerifyCmd(opts *rootOptions) *cobra.Command {
	var (
		sessionCookie bool
		checkRevoked  bool
		jwksFile      string
	)
	cmd := &cobra.Command{
		Use:   "verify TOKEN",
		Short: "Verify an id token or session cookie and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var extra []func(*goIdentity.Builder)
			if jwksFile != "" {
				src, err := loadJWKSet(jwksFile)
				if err != nil {
					return err
				}
				extra = append(extra, func(b *goIdentity.Builder) { b.WithKeySource(keys.SpaceIDToken, src) })
			}
			engine, done, err := opts.engine(checkRevoked, extra...)
			if err != nil {
				return err
			}
			defer done()

			token := strings.TrimSpace(args[0])
			var claims *goIdentity.Claims
			if sessionCookie {
				claims, err = engine.VerifySessionCookie(cmd.Context(), token, checkRevoked)
			} else {
				claims, err = engine.VerifyIdentityChecked(cmd.Context(), token, checkRevoked)
			}
			if err != nil {
				return fmt.Errorf("verify: %w", err)
			}
			return printJSON(cmd, claims)
		},
	}
	cmd.Flags().BoolVar(&sessionCookie, "session-cookie", false, "Verify a session cookie instead of an id token")
	cmd.Flags().BoolVar(&checkRevoked, "check-revoked", false, "Reject disabled accounts and revoked tokens")
	cmd.Flags().StringVar(&jwksFile, "jwks", "", "Verify id tokens offline against a JWK set file")
	return cmd
}

func loadJWKSet(path string) (keys.StaticSource, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read jwk set: %w", err)
	}
	set, err := keys.ParseJWKSet(raw)
	if err != nil {
		return nil, err
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("%s holds no RS256 signing keys", path)
	}
	return keys.StaticSource(set), nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
