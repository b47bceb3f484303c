// Command goidentity verifies tokens and runs admin operations against a
// project configured through GOIDENTITY_* environment variables.
package main

import (
	"fmt"
	"os"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	goIdentity "github.com/MrEthical07/goIdentity"
)

type rootOptions struct {
	debug          bool
	serviceAccount string
	redisAddr      string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "goidentity",
		Short: "Verify identity tokens and call identity admin endpoints",
		Long: `goidentity verifies id tokens and session cookies, signs custom tokens and
service assertions, and looks up accounts. Project settings come from
GOIDENTITY_* environment variables; admin commands also need a service
account key file.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				cmd.PrintErrf("Error displaying help: %v\n", err)
			}
		},
	}

	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&opts.serviceAccount, "service-account", os.Getenv("GOIDENTITY_SERVICE_ACCOUNT"),
		"Path to a service account JSON key file")
	root.PersistentFlags().StringVar(&opts.redisAddr, "redis-addr", os.Getenv("REDIS_ADDR"),
		"Redis address for throttles and the access token cache")

	root.AddCommand(
		newVerifyCmd(opts),
		newCustomTokenCmd(opts),
		newAssertionCmd(opts),
		newLookupCmd(opts),
		newSessionCookieCmd(opts),
		newBenchCmd(opts),
	)
	return root
}

func (o *rootOptions) logger() (*zap.Logger, error) {
	if o.debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// redisClient connects to redisAddr, or starts an in-process miniredis when
// fallback is set and no address was given. The returned func releases both.
func (o *rootOptions) redisClient(fallback bool) (redis.UniversalClient, func(), error) {
	addr := o.redisAddr
	if addr == "" && !fallback {
		return nil, func() {}, nil
	}
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		return client, func() { _ = client.Close(); mr.Close() }, nil
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	return client, func() { _ = client.Close() }, nil
}

// engine builds an engine from the environment. requireAccount fails early
// when no service account was given. extra runs on the builder last.
func (o *rootOptions) engine(requireAccount bool, extra ...func(*goIdentity.Builder)) (*goIdentity.Engine, func(), error) {
	cfg, err := goIdentity.LoadConfigFromEnv()
	if err != nil {
		return nil, nil, err
	}
	logger, err := o.logger()
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	b := goIdentity.New().WithConfig(cfg).WithLogger(logger)
	switch {
	case o.serviceAccount != "":
		sa, err := goIdentity.LoadServiceAccountFile(o.serviceAccount)
		if err != nil {
			return nil, nil, err
		}
		b.WithServiceAccount(sa)
	case requireAccount:
		return nil, nil, fmt.Errorf("--service-account is required: %w", goIdentity.ErrServiceAccountRequired)
	}

	client, closeRedis, err := o.redisClient(false)
	if err != nil {
		return nil, nil, err
	}
	if client != nil {
		b.WithRedis(client)
	}

	for _, fn := range extra {
		fn(b)
	}
	engine, err := b.Build()
	if err != nil {
		closeRedis()
		return nil, nil, err
	}
	return engine, func() {
		engine.Close()
		closeRedis()
		_ = logger.Sync()
	}, nil
}
