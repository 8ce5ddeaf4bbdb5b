package authsession

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/platefeed/authsession/token"
)

const testSigningKey = "test-signing-key-not-a-secret"

// fakeBackend is an in-process auth backend. Status queues let a test
// script throttling or failure responses ahead of the eventual success;
// an empty queue means "answer normally".
type fakeBackend struct {
	t   *testing.T
	srv *httptest.Server

	mu           sync.Mutex
	tokenSeq     int
	currentToken string
	tokenTTL     time.Duration
	user         UserProfile
	password     string

	loginQueue    []int
	verifyQueue   []int
	refreshQueue  []int
	refreshAlways int
	verifyDelay   time.Duration
	refreshGate   chan struct{}
	feed429Once   bool
	feed401Always bool

	loginCalls   int
	verifyCalls  int
	refreshCalls int
	logoutCalls  int
	refreshTimes []time.Time
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()

	b := &fakeBackend{
		t:        t,
		tokenTTL: 30 * time.Minute,
		user: UserProfile{
			ID:          "u-1",
			Username:    "ana",
			DisplayName: "Ana",
			Role:        "member",
		},
		password: "x",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", b.handleLogin)
	mux.HandleFunc("POST /auth/register", b.handleRegister)
	mux.HandleFunc("GET /auth/verify", b.handleVerify)
	mux.HandleFunc("POST /auth/refresh", b.handleRefresh)
	mux.HandleFunc("POST /auth/logout", b.handleLogout)
	mux.HandleFunc("GET /api/feed", b.handleFeed)

	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

// mintLocked issues a fresh signed token and makes it the only one the
// backend accepts. Caller holds b.mu.
func (b *fakeBackend) mintLocked() string {
	b.tokenSeq++
	claims := jwtlib.MapClaims{
		"uid":  b.user.ID,
		"role": b.user.Role,
		"jti":  fmt.Sprintf("tok-%d", b.tokenSeq),
		"exp":  time.Now().Add(b.tokenTTL).Unix(),
	}
	tok, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(testSigningKey))
	if err != nil {
		b.t.Fatalf("sign token: %v", err)
	}
	b.currentToken = tok
	return tok
}

// issue mints a token as if a previous process had logged in, for seeding
// a vault before the manager starts.
func (b *fakeBackend) issue() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mintLocked()
}

// expireToken rotates the accepted token server-side without telling the
// client, so its next authenticated request draws a 401.
func (b *fakeBackend) expireToken() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mintLocked()
}

func (b *fakeBackend) counts() (login, verify, refresh, logout int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loginCalls, b.verifyCalls, b.refreshCalls, b.logoutCalls
}

func (b *fakeBackend) refreshTimestamps() []time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]time.Time, len(b.refreshTimes))
	copy(out, b.refreshTimes)
	return out
}

func (b *fakeBackend) authorized(r *http.Request) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentToken != "" && r.Header.Get("Authorization") == "Bearer "+b.currentToken
}

func popQueue(q *[]int) (int, bool) {
	if len(*q) == 0 {
		return 0, false
	}
	status := (*q)[0]
	*q = (*q)[1:]
	return status, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (b *fakeBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.loginCalls++
	if status, ok := popQueue(&b.loginQueue); ok {
		b.mu.Unlock()
		writeJSON(w, status, map[string]string{"message": "scripted"})
		return
	}

	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		b.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad request"})
		return
	}
	if creds.Username != b.user.Username || creds.Password != b.password {
		b.mu.Unlock()
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid credentials"})
		return
	}

	tok := b.mintLocked()
	user := b.user
	b.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: "rc-1", HttpOnly: true, Path: "/"})
	writeJSON(w, http.StatusOK, map[string]any{"user": user, "accessToken": tok})
}

func (b *fakeBackend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var input RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.Username == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "username required"})
		return
	}

	b.mu.Lock()
	b.user = UserProfile{ID: "u-new", Username: input.Username, DisplayName: input.DisplayName, Role: "member"}
	tok := b.mintLocked()
	user := b.user
	b.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: "rc-1", HttpOnly: true, Path: "/"})
	writeJSON(w, http.StatusCreated, map[string]any{"user": user, "accessToken": tok})
}

func (b *fakeBackend) handleVerify(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.verifyCalls++
	delay := b.verifyDelay
	status, scripted := popQueue(&b.verifyQueue)
	user := b.user
	b.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if scripted {
		writeJSON(w, status, map[string]string{"message": "scripted"})
		return
	}
	if !b.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid token"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (b *fakeBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.refreshCalls++
	b.refreshTimes = append(b.refreshTimes, time.Now())
	gate := b.refreshGate
	always := b.refreshAlways
	status, scripted := popQueue(&b.refreshQueue)
	b.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if always != 0 {
		writeJSON(w, always, map[string]string{"message": "scripted"})
		return
	}
	if scripted {
		writeJSON(w, status, map[string]string{"message": "scripted"})
		return
	}

	b.mu.Lock()
	tok := b.mintLocked()
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"accessToken": tok})
}

func (b *fakeBackend) handleLogout(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	b.logoutCalls++
	b.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (b *fakeBackend) handleFeed(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	throttle := b.feed429Once
	b.feed429Once = false
	reject := b.feed401Always
	b.mu.Unlock()

	if throttle {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"message": "slow down"})
		return
	}
	if reject {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid token"})
		return
	}
	if !b.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid token"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": []string{"first", "second"}})
}

// fastConfig shrinks every delay so lifecycle tests run in milliseconds.
func fastConfig(baseURL string) Config {
	cfg := defaultConfig()
	cfg.BaseURL = baseURL
	cfg.Monitor.Enabled = false
	cfg.Refresh.BaseDelay = 10 * time.Millisecond
	cfg.Refresh.MaxDelay = 160 * time.Millisecond
	cfg.Refresh.MaxAttempts = 3
	cfg.Refresh.CycleTimeout = 5 * time.Second
	cfg.Login.MaxRetries = 2
	cfg.Login.BaseDelay = 10 * time.Millisecond
	cfg.Login.MaxTotalWait = 2 * time.Second
	cfg.Verify.RateLimitDelay = 20 * time.Millisecond
	cfg.Verify.SafetyTimeout = 400 * time.Millisecond
	cfg.Interceptor.RateLimitDelay = 15 * time.Millisecond
	return cfg
}

func newTestManager(t *testing.T, b *fakeBackend, mutate ...func(*Builder)) *Manager {
	t.Helper()

	builder := New().WithConfig(fastConfig(b.srv.URL))
	for _, f := range mutate {
		f(builder)
	}

	m, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

// seededVault returns a vault already holding tok, as if left behind by a
// previous process.
func seededVault(t *testing.T, tok string) token.Vault {
	t.Helper()

	v := token.NewMemoryVault()
	if err := v.Save(t.Context(), tok); err != nil {
		t.Fatalf("seed vault: %v", err)
	}
	return v
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}

// awaitEvent reads the manager bus until an event of the wanted kind
// arrives.
func awaitEvent(t *testing.T, m *Manager, kind EventKind) Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-m.Events():
			if e.Kind == kind {
				return e
			}
		case <-deadline:
			t.Fatalf("no %s event within 2s", kind)
		}
	}
}
