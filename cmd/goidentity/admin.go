package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newCustomTokenCmd(opts *rootOptions) *cobra.Command {
	var (
		uid       string
		rawClaims string
		signIn    bool
	)
	cmd := &cobra.Command{
		Use:   "custom-token",
		Short: "Sign a custom token for a uid",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var claims map[string]any
			if rawClaims != "" {
				if err := json.Unmarshal([]byte(rawClaims), &claims); err != nil {
					return fmt.Errorf("parse --claims: %w", err)
				}
			}
			engine, done, err := opts.engine(true)
			if err != nil {
				return err
			}
			defer done()

			if signIn {
				session, err := engine.SignInWithCustomToken(cmd.Context(), uid, claims)
				if err != nil {
					return err
				}
				return printJSON(cmd, session)
			}
			token, err := engine.SignCustomToken(uid, claims)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&uid, "uid", "", "Account uid (required)")
	cmd.Flags().StringVar(&rawClaims, "claims", "", "Developer claims as a JSON object")
	cmd.Flags().BoolVar(&signIn, "sign-in", false, "Exchange the token for an id token and refresh token")
	_ = cmd.MarkFlagRequired("uid")
	return cmd
}

func newAssertionCmd(opts *rootOptions) *cobra.Command {
	var exchange bool
	cmd := &cobra.Command{
		Use:   "assertion",
		Short: "Sign a service account assertion, or exchange it for an access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, done, err := opts.engine(true)
			if err != nil {
				return err
			}
			defer done()

			var out string
			if exchange {
				out, err = engine.AccessToken(cmd.Context())
			} else {
				out, err = engine.SignServiceAssertion()
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&exchange, "access-token", false, "Print an OAuth access token instead of the assertion")
	return cmd
}

func newLookupCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup UID",
		Short: "Print the account record for a uid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, done, err := opts.engine(true)
			if err != nil {
				return err
			}
			defer done()

			user, err := engine.GetUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, user)
		},
	}
}

func newSessionCookieCmd(opts *rootOptions) *cobra.Command {
	var validFor time.Duration
	cmd := &cobra.Command{
		Use:   "session-cookie ID_TOKEN",
		Short: "Trade an id token for a session cookie",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, done, err := opts.engine(true)
			if err != nil {
				return err
			}
			defer done()

			cookie, err := engine.CreateSessionCookie(cmd.Context(), args[0], validFor)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cookie)
			return nil
		},
	}
	cmd.Flags().DurationVar(&validFor, "valid-for", 24*time.Hour, "Cookie lifetime, between 5m and 336h")
	return cmd
}
