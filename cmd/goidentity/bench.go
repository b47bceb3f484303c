package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	mrand "math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/internal/rate"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/keys"
)

const benchProject = "bench-project"

type benchOptions struct {
	tokens      int
	concurrency int
	ops         int
	maxRefresh  int
}

func newBenchCmd(root *rootOptions) *cobra.Command {
	opts := benchOptions{}
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure local token verification and refresh throttle throughput",
		Long: `bench mints tokens with a throwaway key, verifies them concurrently through
an engine backed by a static key source, then drives the Redis refresh
throttle. Without --redis-addr an in-process miniredis is used.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.tokens <= 0 || opts.concurrency <= 0 || opts.ops <= 0 || opts.maxRefresh <= 0 {
				return errors.New("tokens, concurrency, ops and max-refresh must be > 0")
			}
			return runBench(cmd.Context(), cmd.OutOrStdout(), root, opts)
		},
	}
	cmd.Flags().IntVar(&opts.tokens, "tokens", 10000, "Distinct tokens to mint")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 64, "Concurrent workers")
	cmd.Flags().IntVar(&opts.ops, "ops", 200000, "Operations per phase")
	cmd.Flags().IntVar(&opts.maxRefresh, "max-refresh", 20, "Refresh attempts allowed per token and window")
	return cmd
}

func runBench(ctx context.Context, out io.Writer, root *rootOptions, opts benchOptions) error {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	logger, err := root.logger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg := goIdentity.DefaultConfig()
	cfg.ProjectID = benchProject
	cfg.APIKey = "bench"
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	engine, err := goIdentity.New().
		WithConfig(cfg).
		WithLogger(logger).
		WithKeySource(keys.SpaceIDToken, keys.StaticSource{"bench": &key.PublicKey}).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	fmt.Fprintf(out, "minting %d tokens...\n", opts.tokens)
	start := time.Now()
	tokens := make([]string, opts.tokens)
	for i := range tokens {
		if tokens[i], err = mintBenchToken(key, fmt.Sprintf("user-%d", i)); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "minted in %s\n", time.Since(start).Round(time.Millisecond))

	verifyStats := runPhase(opts.ops, opts.concurrency, len(tokens), func(i int) error {
		_, err := engine.VerifyIdentity(ctx, tokens[i])
		return err
	})

	client, closeRedis, err := root.redisClient(true)
	if err != nil {
		return err
	}
	defer closeRedis()
	limiter := rate.New(client, rate.Config{
		EnableRefreshThrottle: true,
		MaxRefreshAttempts:    opts.maxRefresh,
		RefreshWindow:         time.Minute,
	})
	var limited atomic.Int64
	throttleStats := runPhase(opts.ops, opts.concurrency, len(tokens), func(i int) error {
		err := limiter.CheckRefresh(ctx, rate.RefreshKey(tokens[i]))
		if errors.Is(err, rate.ErrRateLimited) {
			limited.Add(1)
			return nil
		}
		return err
	})

	logger.Debug("bench finished", zap.Any("metrics", engine.MetricsSnapshot().Counters))
	fmt.Fprintln(out, "---- results ----")
	printStats(out, "verify", verifyStats)
	printStats(out, "refresh-throttle", throttleStats)
	fmt.Fprintf(out, "refresh-throttle: limited=%d\n", limited.Load())
	return nil
}

func mintBenchToken(key *rsa.PrivateKey, uid string) (string, error) {
	now := time.Now()
	tok := gjwt.NewWithClaims(gjwt.SigningMethodRS256, gjwt.MapClaims{
		"iss":       jwt.DefaultIDTokenIssuer + benchProject,
		"aud":       benchProject,
		"sub":       uid,
		"iat":       now.Unix(),
		"exp":       now.Add(time.Hour).Unix(),
		"auth_time": now.Unix(),
	})
	tok.Header["kid"] = "bench"
	return tok.SignedString(key)
}

// runPhase runs ops calls of fn across workers, each call on a random index
// below n.
func runPhase(ops, concurrency, n int, fn func(i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := mrand.New(mrand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			local := make([]time.Duration, 0, ops/concurrency+1)
			for {
				if int(atomic.AddInt64(&cursor, 1)) > ops {
					break
				}
				t0 := time.Now()
				if err := fn(r.Intn(n)); err != nil {
					atomic.AddInt64(&failures, 1)
				}
				local = append(local, time.Since(t0))
			}
			mu.Lock()
			latencies = append(latencies, local...)
			mu.Unlock()
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
