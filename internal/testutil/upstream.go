// Package testutil provides fakes and containers for console tests.
package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bissquit/finance-admin/internal/apiclient"
	"github.com/bissquit/finance-admin/internal/domain"
	"github.com/bissquit/finance-admin/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// RecordedRequest is what FakeAPI saw for one call.
type RecordedRequest struct {
	Method        string
	Path          string
	Query         string
	Authorization string
}

type account struct {
	password string
	user     domain.User
}

// FakeAPI is an in-process stand-in for the finance REST API.
// All routes live under /api/v1 and answer with the {success, data, message} envelope.
type FakeAPI struct {
	Server *httptest.Server

	mu            sync.Mutex
	omitLoginUser bool
	accounts      map[string]account
	tokens        map[string]domain.User
	failures      map[string]int
	requests      []RecordedRequest
	users         []domain.User
	transactions  []domain.Transaction
	dashboard     domain.DashboardStats
	stats         domain.TransactionStats
}

// NewFakeAPI starts a fake upstream that is closed when the test ends.
func NewFakeAPI(t *testing.T) *FakeAPI {
	t.Helper()

	f := &FakeAPI{
		accounts: make(map[string]account),
		tokens:   make(map[string]domain.User),
		failures: make(map[string]int),
	}

	r := chi.NewRouter()
	r.Use(f.record)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", f.login)

		r.Group(func(r chi.Router) {
			r.Use(f.requireToken)
			r.Post("/auth/logout", f.logout)
			r.Get("/auth/me", f.me)
			r.Get("/users", f.listUsers)
			r.Get("/users/profile", f.profile)
			r.Get("/users/{id}", f.getUser)
			r.Get("/transactions", f.listTransactions)
			r.Get("/transactions/statistics", f.transactionStats)
			r.Get("/transactions/{id}", f.getTransaction)
			r.Get("/dashboard", f.getDashboard)
		})
	})

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the API root the console should be configured with.
func (f *FakeAPI) URL() string {
	return f.Server.URL + "/api/v1"
}

// AddAccount registers credentials that POST /auth/login accepts.
func (f *FakeAPI) AddAccount(password string, user domain.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[user.Email] = account{password: password, user: user}
	f.users = append(f.users, user)
}

// OmitLoginUser makes POST /auth/login answer with tokens only, leaving the
// account to be fetched from /auth/me.
func (f *FakeAPI) OmitLoginUser() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.omitLoginUser = true
}

// IssueToken returns an access token the fake accepts for user, without a login call.
func (f *FakeAPI) IssueToken(user domain.User) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	token := "at-" + uuid.NewString()
	f.tokens[token] = user
	return token
}

// NewClient returns an API client for the fake that sends the bearer token
// of the session found on the request context.
func (f *FakeAPI) NewClient(t *testing.T, opts ...apiclient.Option) *apiclient.Client {
	t.Helper()
	opts = append([]apiclient.Option{apiclient.WithTokenSource(session.TokenSource())}, opts...)
	client, err := apiclient.New(apiclient.Config{BaseURL: f.URL()}, opts...)
	require.NoError(t, err)
	return client
}

// SessionContext returns ctx carrying a session for user with accessToken.
func SessionContext(ctx context.Context, user domain.User, accessToken string) context.Context {
	now := time.Now()
	return session.WithSession(ctx, &session.Session{
		ID:          uuid.NewString(),
		Identity:    user.Identity(),
		AccessToken: accessToken,
		IssuedAt:    now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(session.DefaultMaxAge),
	})
}

// SetTransactions replaces the transactions served by the fake.
func (f *FakeAPI) SetTransactions(txs []domain.Transaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transactions = txs
}

// SetDashboard replaces the dashboard payload.
func (f *FakeAPI) SetDashboard(stats domain.DashboardStats) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dashboard = stats
}

// SetTransactionStats replaces the statistics payload.
func (f *FakeAPI) SetTransactionStats(stats domain.TransactionStats) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats = stats
}

// Fail makes every request to path (without the /api/v1 prefix) answer status.
func (f *FakeAPI) Fail(path string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures["/api/v1"+path] = status
}

// RevokeAll invalidates every issued access token, as an upstream expiry would.
func (f *FakeAPI) RevokeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = make(map[string]domain.User)
}

// Requests returns a copy of all requests seen so far.
func (f *FakeAPI) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RecordedRequest(nil), f.requests...)
}

// RequestsTo returns the recorded requests for path (without /api/v1).
func (f *FakeAPI) RequestsTo(path string) []RecordedRequest {
	var out []RecordedRequest
	for _, r := range f.Requests() {
		if r.Path == "/api/v1"+path {
			out = append(out, r)
		}
	}
	return out
}

func (f *FakeAPI) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, RecordedRequest{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			Authorization: r.Header.Get("Authorization"),
		})
		status, failing := f.failures[r.URL.Path]
		f.mu.Unlock()

		if failing {
			writeEnvelope(w, status, false, nil, http.StatusText(status))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeAPI) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		f.mu.Lock()
		_, ok := f.tokens[token]
		f.mu.Unlock()
		if !ok {
			writeEnvelope(w, http.StatusUnauthorized, false, nil, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeAPI) login(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeEnvelope(w, http.StatusBadRequest, false, nil, "invalid json")
		return
	}

	f.mu.Lock()
	acc, ok := f.accounts[creds.Email]
	if !ok || acc.password != creds.Password {
		f.mu.Unlock()
		writeEnvelope(w, http.StatusUnauthorized, false, nil, "Invalid email or password")
		return
	}
	token := "at-" + uuid.NewString()
	f.tokens[token] = acc.user
	omit := f.omitLoginUser
	f.mu.Unlock()

	body := map[string]any{
		"access_token":  token,
		"refresh_token": "rt-" + uuid.NewString(),
	}
	if !omit {
		body["user"] = acc.user
	}
	writeJSON(w, http.StatusOK, body)
}

func (f *FakeAPI) logout(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	f.mu.Lock()
	delete(f.tokens, token)
	f.mu.Unlock()
	writeEnvelope(w, http.StatusOK, true, nil, "logged out")
}

func (f *FakeAPI) me(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	f.mu.Lock()
	user := f.tokens[token]
	f.mu.Unlock()
	writeEnvelope(w, http.StatusOK, true, user, "")
}

func (f *FakeAPI) profile(w http.ResponseWriter, r *http.Request) {
	f.me(w, r)
}

func (f *FakeAPI) listUsers(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	users := append([]domain.User{}, f.users...)
	f.mu.Unlock()

	if search := r.URL.Query().Get("search"); search != "" {
		filtered := users[:0]
		for _, u := range users {
			if strings.Contains(u.Email, search) {
				filtered = append(filtered, u)
			}
		}
		users = filtered
	}
	writeEnvelope(w, http.StatusOK, true, users, "")
}

func (f *FakeAPI) getUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			writeEnvelope(w, http.StatusOK, true, u, "")
			return
		}
	}
	writeEnvelope(w, http.StatusNotFound, false, nil, "User not found")
}

func (f *FakeAPI) listTransactions(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	txs := append([]domain.Transaction{}, f.transactions...)
	f.mu.Unlock()
	writeEnvelope(w, http.StatusOK, true, txs, "")
}

func (f *FakeAPI) getTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.transactions {
		if tx.ID == id {
			writeEnvelope(w, http.StatusOK, true, tx, "")
			return
		}
	}
	writeEnvelope(w, http.StatusNotFound, false, nil, "Transaction not found")
}

func (f *FakeAPI) transactionStats(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	stats := f.stats
	f.mu.Unlock()
	writeEnvelope(w, http.StatusOK, true, stats, "")
}

func (f *FakeAPI) getDashboard(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	stats := f.dashboard
	f.mu.Unlock()
	writeEnvelope(w, http.StatusOK, true, stats, "")
}

func writeEnvelope(w http.ResponseWriter, status int, success bool, data any, message string) {
	writeJSON(w, status, map[string]any{
		"success": success,
		"data":    data,
		"message": message,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
