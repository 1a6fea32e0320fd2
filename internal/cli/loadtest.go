package cli

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/spf13/cobra"
)

type loadtestOptions struct {
	clients     int
	concurrency int
	ops         int
	limit       int
	window      time.Duration
	sessions    int
}

func newLoadtestCmd() *cobra.Command {
	var opts loadtestOptions

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Drive concurrent rate-limit and session checks against Redis",
		Long: `loadtest runs two phases against the configured Redis (or an in-process
miniredis): a public route hammered from --clients distinct IPs, then a
protected route with --sessions issued tokens. It reports allow/deny counts
and latency percentiles per phase.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.clients <= 0 || opts.concurrency <= 0 || opts.ops <= 0 || opts.sessions <= 0 {
				return fmt.Errorf("clients, concurrency, ops, and sessions must be > 0")
			}
			return runLoadtest(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().IntVar(&opts.clients, "clients", 500, "Distinct client IPs in the rate-limit phase")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 64, "Concurrent workers")
	cmd.Flags().IntVar(&opts.ops, "ops", 20000, "Requests per phase")
	cmd.Flags().IntVar(&opts.limit, "limit", 30, "Requests allowed per client and window")
	cmd.Flags().DurationVar(&opts.window, "window", time.Minute, "Rate-limit window")
	cmd.Flags().IntVar(&opts.sessions, "sessions", 1000, "Tokens issued for the session phase")

	return cmd
}

func runLoadtest(ctx context.Context, out io.Writer, opts loadtestOptions) error {
	client, cleanup, err := openRedis(ctx, flagRedisAddr, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := goGuard.DefaultConfig()
	cfg.RateLimit.Policies = map[string]goGuard.RatePolicy{
		goGuard.DefaultPolicyPath: {Limit: opts.limit, Window: opts.window},
		"/bench/private":          {Limit: opts.ops, Window: opts.window},
	}
	cfg.Routes = []goGuard.Route{
		{Prefix: "/bench/public"},
		{Prefix: "/bench/private", RequireAuth: true, Action: "read", Resource: "posts"},
	}
	if _, err := ensureSigningKey(&cfg); err != nil {
		return err
	}

	engine, err := goGuard.New().
		WithConfig(cfg).
		WithRedis(client).
		WithAuditSink(goGuard.NoOpSink{}).
		WithLogger(logger).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	ips := make([]string, opts.clients)
	for i := range ips {
		ips[i] = fmt.Sprintf("10.%d.%d.%d", (i>>16)&0xff, (i>>8)&0xff, i&0xff)
	}

	fmt.Fprintf(out, "issuing %d tokens...\n", opts.sessions)
	tokens := make([]string, opts.sessions)
	for i := range tokens {
		tok, _, err := engine.IssueToken(fmt.Sprintf("user-%d", i), "user")
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
		tokens[i] = tok
	}

	limitStats := runPhase(ctx, engine, opts, func(r *rand.Rand, i int) goGuard.RequestContext {
		return goGuard.RequestContext{
			IP:     ips[r.Intn(len(ips))],
			Path:   "/bench/public",
			Method: http.MethodGet,
		}
	})
	sessionStats := runPhase(ctx, engine, opts, func(r *rand.Rand, i int) goGuard.RequestContext {
		return goGuard.RequestContext{
			IP:     "10.255.0.1",
			Path:   "/bench/private",
			Method: http.MethodGet,
			Token:  tokens[r.Intn(len(tokens))],
		}
	})

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "rate_limit", limitStats)
	printStats(out, "session", sessionStats)
	return nil
}

type phaseStats struct {
	total    time.Duration
	ops      int
	allowed  int64
	denied   int64
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

// runPhase evaluates opts.ops requests built by next across opts.concurrency workers.
// 429 and 403 count as denied; any other rejection counts as a failure.
func runPhase(ctx context.Context, engine *goGuard.Engine, opts loadtestOptions, next func(r *rand.Rand, i int) goGuard.RequestContext) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		allowed   int64
		denied    int64
		failures  int64
		latencies = make([]time.Duration, 0, opts.ops)
		mu        sync.Mutex
	)

	route := func(path string) goGuard.Route {
		rt, _ := engine.RouteFor(path)
		return rt
	}

	start := time.Now()
	for w := 0; w < opts.concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= opts.ops {
					return
				}
				rc := next(r, i)
				t0 := time.Now()
				d := engine.Evaluate(ctx, rc, route(rc.Path))
				elapsed := time.Since(t0)

				switch {
				case d.Forwarded():
					atomic.AddInt64(&allowed, 1)
				case d.Status == http.StatusTooManyRequests || d.Status == http.StatusForbidden:
					atomic.AddInt64(&denied, 1)
				default:
					atomic.AddInt64(&failures, 1)
				}

				mu.Lock()
				latencies = append(latencies, elapsed)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	s := computeStats(time.Since(start), latencies)
	s.allowed = allowed
	s.denied = denied
	s.failures = failures
	return s
}

func computeStats(total time.Duration, samples []time.Duration) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:   total,
		ops:     len(samples),
		p50:     percentile(samples, 50),
		p95:     percentile(samples, 95),
		p99:     percentile(samples, 99),
		opsPerS: float64(len(samples)) / total.Seconds(),
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
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d allowed=%d denied=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.allowed,
		s.denied,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
