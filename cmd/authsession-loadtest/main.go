// Command authsession-loadtest measures session manager throughput against
// an in-process stub backend: a steady authenticated-request phase and a
// refresh-storm phase in which the backend keeps rotating the accepted
// token so every wave of requests 401s at once. The storm phase is the
// interesting one: it reports how many simultaneous 401s were coalesced
// into a single refresh cycle.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	authsession "github.com/platefeed/authsession"
)

const signingKey = "loadtest-signing-key"

type stubBackend struct {
	mu       sync.Mutex
	seq      int
	accepted string
	refreshN int64
}

func (s *stubBackend) mint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mintLocked()
}

func (s *stubBackend) mintLocked() string {
	s.seq++
	claims := jwtlib.MapClaims{
		"uid": "u-1",
		"exp": time.Now().Add(15 * time.Minute).Unix(),
		"jti": fmt.Sprintf("tok-%d", s.seq),
	}
	tok, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(signingKey))
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign token: %v\n", err)
		os.Exit(1)
	}
	s.accepted = tok
	return tok
}

func (s *stubBackend) valid(r *http.Request) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted != "" && r.Header.Get("Authorization") == "Bearer "+s.accepted
}

func (s *stubBackend) serve() *httptest.Server {
	user := map[string]any{"id": "u-1", "username": "loadtest"}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"user": user, "accessToken": s.mint()})
	})
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt64(&s.refreshN, 1)
		_ = json.NewEncoder(w).Encode(map[string]string{"accessToken": s.mint()})
	})
	mux.HandleFunc("GET /auth/verify", func(w http.ResponseWriter, r *http.Request) {
		if !s.valid(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"user": user})
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/feed", func(w http.ResponseWriter, r *http.Request) {
		if !s.valid(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": []string{"a", "b"}})
	})

	return httptest.NewServer(mux)
}

func main() {
	var (
		ops         = flag.Int("ops", 20000, "authenticated requests in the steady phase")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		storms      = flag.Int("storms", 50, "number of forced-expiry waves in the storm phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "authsession-loadtest", "token vault key prefix")
	)
	flag.Parse()

	if *ops <= 0 || *concurrency <= 0 || *storms <= 0 {
		fmt.Fprintln(os.Stderr, "ops, concurrency, and storms must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  *redis.Client
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewClient(&redis.Options{Addr: addr})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	backend := &stubBackend{}
	srv := backend.serve()
	defer srv.Close()

	cfg, err := authsession.ConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	cfg.BaseURL = srv.URL
	cfg.Vault.RedisPrefix = *prefix
	cfg.Monitor.Enabled = false

	manager, err := authsession.New().
		WithConfig(cfg).
		WithRedis(client).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "manager build: %v\n", err)
		os.Exit(1)
	}
	defer manager.Close()

	if _, err := manager.Login(ctx, "loadtest", "loadtest"); err != nil {
		fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
		os.Exit(1)
	}

	steady := runSteadyPhase(ctx, manager, srv.URL, *ops, *concurrency)
	storm := runStormPhase(ctx, manager, backend, srv.URL, *storms, *concurrency)

	fmt.Println("---- results ----")
	printStats("steady", steady)
	printStats("storm", storm)

	snap := manager.MetricsSnapshot()
	fmt.Printf("storm waves: %d, refresh cycles: %d, coalesced callers: %d, replays: %d\n",
		*storms,
		atomic.LoadInt64(&backend.refreshN),
		snap.Counters[authsession.MetricRefreshDeduped],
		snap.Counters[authsession.MetricRequestReplayed],
	)
}

func runSteadyPhase(ctx context.Context, manager *authsession.Manager, baseURL string, ops, concurrency int) phaseStats {
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
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				ok := doFeed(ctx, manager, baseURL)
				d := time.Since(t0)
				if !ok {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

func runStormPhase(ctx context.Context, manager *authsession.Manager, backend *stubBackend, baseURL string, storms, concurrency int) phaseStats {
	var (
		failures  int64
		latencies = make([]time.Duration, 0, storms*concurrency)
		mu        sync.Mutex
	)

	start := time.Now()
	for s := 0; s < storms; s++ {
		backend.mint() // invalidate the client's token server-side

		var wg sync.WaitGroup
		for w := 0; w < concurrency; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				t0 := time.Now()
				ok := doFeed(ctx, manager, baseURL)
				d := time.Since(t0)
				if !ok {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}()
		}
		wg.Wait()
	}
	return computeStats(time.Since(start), latencies, failures)
}

func doFeed(ctx context.Context, manager *authsession.Manager, baseURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/feed", nil)
	if err != nil {
		return false
	}
	resp, err := manager.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
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
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%-8s ops=%d failures=%d total=%s ops/s=%.0f p50=%s p95=%s p99=%s\n",
		name, s.ops, s.failures, s.total.Round(time.Millisecond), s.opsPerS,
		s.p50.Round(time.Microsecond), s.p95.Round(time.Microsecond), s.p99.Round(time.Microsecond),
	)
}
