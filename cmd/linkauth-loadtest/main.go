// Command linkauth-loadtest measures the hot path of every authorized
// request: the session lookup by token hash, the activity write, and a full
// Engine.Authorize over Redis-backed sessions.
//
// Without -redis-addr (or REDIS_ADDR) it starts an embedded miniredis.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/linkauth"
	"github.com/MrEthical07/linkauth/session"
	"github.com/MrEthical07/linkauth/store/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type options struct {
	sessions    int
	owners      int
	logins      int
	concurrency int
	ops         int
	redisAddr   string
	prefix      string
}

func main() {
	var o options
	flag.IntVar(&o.sessions, "sessions", 50000, "sessions seeded straight into the store")
	flag.IntVar(&o.owners, "users", 5000, "distinct owners of the seeded sessions")
	flag.IntVar(&o.logins, "logins", 200, "tokens issued through Engine.Login for the authorize phase")
	flag.IntVar(&o.concurrency, "concurrency", 256, "concurrent workers per phase")
	flag.IntVar(&o.ops, "ops", 200000, "operations per phase")
	flag.StringVar(&o.redisAddr, "redis-addr", os.Getenv("REDIS_ADDR"), "redis address; empty starts miniredis")
	flag.StringVar(&o.prefix, "prefix", "la-load", "session key prefix")
	flag.Parse()

	if err := run(context.Background(), o); err != nil {
		fmt.Fprintln(os.Stderr, "linkauth-loadtest:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options) error {
	if o.sessions <= 0 || o.owners <= 0 || o.logins <= 0 || o.concurrency <= 0 || o.ops <= 0 {
		return fmt.Errorf("sessions, users, logins, concurrency and ops must be > 0")
	}

	client, closeClient, err := connect(o.redisAddr)
	if err != nil {
		return err
	}
	defer closeClient()

	store := session.NewStore(client, o.prefix, 24*time.Hour)
	latency, err := store.Ping(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("redis round trip %s\n", latency.Round(time.Microsecond))

	seeded, err := seed(ctx, store, o)
	if err != nil {
		return err
	}

	engine, tokens, err := loginPool(ctx, store, o.logins)
	if err != nil {
		return err
	}
	defer engine.Close()

	base := time.Now()
	report := []struct {
		name  string
		stats phaseStats
	}{
		{"lookup", runPhase(o.ops, o.concurrency, func(r *rand.Rand, _ int) error {
			_, err := store.FindSessionByTokenHash(ctx, seeded[r.IntN(len(seeded))].TokenHash)
			return err
		})},
		{"activity", runPhase(o.ops, o.concurrency, func(r *rand.Rand, i int) error {
			s := seeded[r.IntN(len(seeded))]
			s.LastActivityAt = base.Add(time.Duration(i) * time.Millisecond)
			return store.UpdateSession(ctx, s)
		})},
		{"authorize", runPhase(o.ops, o.concurrency, func(r *rand.Rand, _ int) error {
			_, err := engine.Authorize(ctx, tokens[r.IntN(len(tokens))])
			return err
		})},
	}

	fmt.Println("---- results ----")
	for _, p := range report {
		fmt.Println(p.stats.format(p.name))
	}
	return nil
}

func connect(addr string) (redis.UniversalClient, func(), error) {
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func seed(ctx context.Context, store *session.Store, o options) ([]linkauth.Session, error) {
	fmt.Printf("seeding %d sessions for %d users...\n", o.sessions, o.owners)
	started := time.Now()

	out := make([]linkauth.Session, 0, o.sessions)
	for i := 0; i < o.sessions; i++ {
		s, err := store.InsertSession(ctx, linkauth.Session{
			UserID:         int64(i%o.owners) + 1,
			TokenHash:      linkauth.HashToken("load-" + strconv.Itoa(i)),
			DeviceInfo:     "linkauth-loadtest",
			IPAddress:      "127.0.0.1",
			Location:       "unknown",
			CreatedAt:      started,
			LastActivityAt: started,
			IsActive:       true,
		})
		if err != nil {
			return nil, fmt.Errorf("seed session %d: %w", i, err)
		}
		out = append(out, s)
	}
	fmt.Printf("seeded in %s\n", time.Since(started).Round(time.Millisecond))
	return out, nil
}

// loginPool builds an engine over store with the cheapest permitted Argon2
// cost and logs one account in n times.
func loginPool(ctx context.Context, store *session.Store, n int) (*linkauth.Engine, []string, error) {
	cfg := linkauth.DefaultConfig()
	cfg.JWT.SigningKey = strings.Repeat("L", 32)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Session.ActivityInterval = time.Minute
	cfg.Metrics.Enabled = false

	engine, err := linkauth.New().
		WithConfig(cfg).
		WithUserStore(memory.New()).
		WithSessionStore(store).
		Build()
	if err != nil {
		return nil, nil, err
	}

	const pw = "load test password"
	if _, err := engine.Register(ctx, "load@example.com", pw, linkauth.Profile{}); err != nil {
		engine.Close()
		return nil, nil, err
	}
	tokens := make([]string, n)
	for i := range tokens {
		res, err := engine.Login(ctx, "load@example.com", pw, "")
		if err != nil {
			engine.Close()
			return nil, nil, err
		}
		tokens[i] = res.Token
	}
	return engine, tokens, nil
}

// runPhase splits ops into contiguous index ranges, one per worker. Each
// worker keeps its own latency slice; they are merged once all finish.
func runPhase(ops, concurrency int, op func(r *rand.Rand, i int) error) phaseStats {
	concurrency = min(concurrency, ops)
	perWorker := make([][]time.Duration, concurrency)
	failures := make([]int, concurrency)

	var wg sync.WaitGroup
	started := time.Now()
	for w := range concurrency {
		lo, hi := w*ops/concurrency, (w+1)*ops/concurrency
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := rand.New(rand.NewPCG(uint64(started.UnixNano()), uint64(w)))
			samples := make([]time.Duration, 0, hi-lo)
			for i := lo; i < hi; i++ {
				t0 := time.Now()
				if err := op(r, i); err != nil {
					failures[w]++
				}
				samples = append(samples, time.Since(t0))
			}
			perWorker[w] = samples
		}()
	}
	wg.Wait()
	elapsed := time.Since(started)

	var failed int
	for _, f := range failures {
		failed += f
	}
	return summarize(elapsed, slices.Concat(perWorker...), failed)
}

type phaseStats struct {
	elapsed       time.Duration
	ops, failures int
	p50, p95, p99 time.Duration
	throughput    float64
}

func summarize(elapsed time.Duration, samples []time.Duration, failures int) phaseStats {
	s := phaseStats{elapsed: elapsed, ops: len(samples), failures: failures}
	if len(samples) == 0 {
		return s
	}
	slices.Sort(samples)
	s.p50 = percentile(samples, 50)
	s.p95 = percentile(samples, 95)
	s.p99 = percentile(samples, 99)
	if elapsed > 0 {
		s.throughput = float64(len(samples)) / elapsed.Seconds()
	}
	return s
}

// percentile expects sorted samples.
func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	idx := (len(samples) - 1) * min(max(p, 0), 100) / 100
	return samples[idx]
}

func (s phaseStats) format(name string) string {
	return fmt.Sprintf("%-9s ops=%d failures=%d elapsed=%s ops/sec=%.0f p50=%s p95=%s p99=%s",
		name, s.ops, s.failures, s.elapsed.Round(time.Millisecond), s.throughput,
		s.p50.Round(time.Microsecond), s.p95.Round(time.Microsecond), s.p99.Round(time.Microsecond))
}
