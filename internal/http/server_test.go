package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/shopspring/decimal"

	"pfm/internal/api"
	"pfm/internal/auth"
	"pfm/internal/core"
	"pfm/internal/metrics"
	"pfm/internal/middleware/ratelimit"
	"pfm/internal/services"
)

func token(t *testing.T, email string, role core.Role, id int64) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   email,
		"roles": []string{string(role)},
		"id":    id,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

// fakeAPI is an in-memory finance API answering in the {data} envelope.
type fakeAPI struct {
	mu           sync.Mutex
	loginToken   string
	unauthorized bool
	banks        []core.Bank
	accounts     []core.BankAccount
	txs          []core.Transaction
	calls        map[string]int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		banks: []core.Bank{{ID: 1, Name: "Fineco", Country: "IT", Initials: "FI", Logo: "/files/fineco.png"}},
		accounts: []core.BankAccount{
			{ID: 5, AccountNumber: "IT60X0542811101000000123456", AccountDescription: "Main", Balance: decimal.NewFromInt(1000),
				AccountType: core.Checking, Bank: core.Ref{ID: 1, Name: "Fineco"}, Owner: core.Ref{ID: 7, Name: "Ana"}, IsDeleted: core.Deleted},
			{ID: 6, AccountNumber: "IT02L1234512345123456789012", AccountDescription: "Savings", Balance: decimal.RequireFromString("234.50"),
				AccountType: core.Savings, Bank: core.Ref{ID: 1, Name: "Fineco"}, Owner: core.Ref{ID: 7, Name: "Ana"}, IsDeleted: core.Active},
		},
		txs: []core.Transaction{
			{ID: 10, BankAccountID: 6, TransactionType: core.Income, Amount: decimal.NewFromInt(100), TransactionDate: "2024-05-01", Description: "Salary", IsDeleted: core.Active},
		},
		calls: map[string]int{},
	}
}

func writeData(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": v})
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var c struct{ Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&c)
		if c.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Bad credentials"}`))
			return
		}
		writeData(w, http.StatusOK, map[string]string{"token": f.loginToken})
	})
	mux.HandleFunc("POST /api/auth/register", func(w http.ResponseWriter, r *http.Request) {
		var c struct{ Name, Email string }
		_ = json.NewDecoder(r.Body).Decode(&c)
		if c.Email == "taken@example.com" {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"message":"email already registered"}`))
			return
		}
		writeData(w, http.StatusCreated, map[string]string{"token": f.loginToken})
	})
	mux.HandleFunc("GET /api/banks", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, f.banks)
	})
	mux.HandleFunc("GET /api/banks/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		for _, b := range f.banks {
			if b.ID == id {
				writeData(w, http.StatusOK, b)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"bank not found"}`))
	})
	mux.HandleFunc("POST /api/banks", func(w http.ResponseWriter, r *http.Request) {
		var in core.BankInput
		_ = json.NewDecoder(r.Body).Decode(&in)
		b := core.Bank{ID: int64(len(f.banks) + 1), Name: in.Name, Country: in.Country, Initials: in.Initials, Logo: in.Logo}
		f.banks = append(f.banks, b)
		writeData(w, http.StatusCreated, b)
	})
	mux.HandleFunc("DELETE /api/banks/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("PATCH /api/banks/{id}/restore", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "99" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"bank not found"}`))
			return
		}
		writeData(w, http.StatusOK, nil)
	})
	mux.HandleFunc("GET /api/bank-accounts", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, f.accounts)
	})
	mux.HandleFunc("GET /api/bank-accounts/owner/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, f.accounts)
	})
	mux.HandleFunc("GET /api/bank-accounts/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		for _, a := range f.accounts {
			if a.ID == id {
				writeData(w, http.StatusOK, a)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("GET /api/users", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, []core.User{{ID: 7, Name: "Ana", Email: "ana@example.com"}})
	})
	mux.HandleFunc("PUT /api/bank-accounts/{id}/restore", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		for i := range f.accounts {
			if f.accounts[i].ID == id {
				f.accounts[i].IsDeleted = core.Active
			}
		}
		writeData(w, http.StatusOK, nil)
	})
	mux.HandleFunc("GET /api/transactions/user/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, f.txs)
	})
	mux.HandleFunc("GET /api/transactions/user/{id}/recent", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, f.txs)
	})
	mux.HandleFunc("POST /api/uploads/images", func(w http.ResponseWriter, r *http.Request) {
		_, header, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		writeData(w, http.StatusOK, "/files/"+header.Filename)
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls[r.Method+" "+r.URL.Path]++
		if f.unauthorized && !strings.HasPrefix(r.URL.Path, "/api/auth/") {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Token expired"}`))
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func (f *fakeAPI) callCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *fakeAPI) setUnauthorized(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unauthorized = v
}

type journalSpy struct {
	mu      sync.Mutex
	entries []string
}

func (j *journalSpy) Record(_ context.Context, _ core.Identity, resource, action string, _ int64, _ string, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	j.entries = append(j.entries, resource+":"+action+":"+outcome)
}

type activityStub struct{}

func (activityStub) Recent(context.Context, int) ([]core.Activity, error) {
	return []core.Activity{{ID: 1, Actor: "ana@example.com", Resource: core.ResourceBank, Action: core.ActionCreate,
		ResourceID: 2, Outcome: core.OutcomeSuccess, CreatedAt: time.Now(), SyncStatus: core.SyncDone}}, nil
}

func (activityStub) Stats(context.Context) (core.ActivityStats, error) {
	return core.ActivityStats{Pending: 3, Synced: 9}, nil
}

type testEnv struct {
	srv     *Server
	api     *fakeAPI
	journal *journalSpy
	lists   *services.Lists
	user    string
	admin   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	fake := newFakeAPI()
	ts := httptest.NewServer(fake.handler())
	t.Cleanup(ts.Close)

	env := &testEnv{
		api:     fake,
		journal: &journalSpy{},
		lists:   services.NewLists(10, time.Minute),
		user:    token(t, "ana@example.com", core.RoleUser, 7),
		admin:   token(t, "root@example.com", core.RoleAdmin, 1),
	}
	fake.loginToken = env.user

	m := metrics.New()
	client := api.NewClient(ts.URL+"/api", api.WithObserver(m.ObserveAPI))
	sessions := auth.NewManager(time.Hour, nil)
	sessions.OnLogout = func(id core.Identity) { env.lists.Forget(id.Email) }
	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: 1000, CleanupInterval: time.Minute})
	t.Cleanup(limiter.Stop)

	srv, err := NewServer(":0", Deps{
		Auth:         client,
		API:          client,
		Banks:        services.NewBankService(client, env.lists.Banks, env.journal),
		Accounts:     services.NewAccountService(client, env.lists.Accounts, env.journal),
		Transactions: services.NewTransactionService(client, env.lists.Transactions, env.journal),
		Dashboard:    services.NewDashboardService(client),
		Uploads:      services.NewUploadService(client, env.journal),
		Activity:     activityStub{},
		Sessions:     sessions,
		Metrics:      m,
		Limiter:      limiter,
		AssetURL:     "http://assets.test",
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	env.srv = srv
	return env
}

type reqOpt func(*http.Request)

func as(tok string) reqOpt {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: auth.CookieName, Value: tok}) }
}

func htmx(r *http.Request) { r.Header.Set("HX-Request", "true") }

func form(r *http.Request) { r.Header.Set("Content-Type", "application/x-www-form-urlencoded") }

func (e *testEnv) do(method, target, body string, opts ...reqOpt) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for _, o := range opts {
		o(req)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := env.do(http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, rr.Code, rr.Body.String())
		}
	}
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("down") }

func TestReadyFailsWhenJournalIsDown(t *testing.T) {
	env := newTestEnv(t)
	env.srv.journal = failingPinger{}
	rr := env.do(http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestLoginPage(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodGet, "/", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Sign in") {
		t.Fatalf("anonymous index: status=%d", rr.Code)
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("security headers missing")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("request id missing")
	}

	rr = env.do(http.MethodGet, "/", "", as(env.user))
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/dashboard" {
		t.Fatalf("signed in index: status=%d location=%q", rr.Code, rr.Header().Get("Location"))
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodPost, "/login", "email=ana%40example.com&password=secret", form, htmx)
	if rr.Code != http.StatusOK || rr.Header().Get("HX-Redirect") != "/dashboard" {
		t.Fatalf("login: status=%d redirect=%q", rr.Code, rr.Header().Get("HX-Redirect"))
	}
	if !strings.Contains(rr.Header().Get("Set-Cookie"), auth.CookieName+"="+env.user) {
		t.Fatalf("session cookie not set: %q", rr.Header().Get("Set-Cookie"))
	}

	rr = env.do(http.MethodPost, "/login", "email=ana%40example.com&password=nope", form, htmx)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad password: status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Wrong email or password") {
		t.Fatalf("missing inline error: %s", rr.Body.String())
	}
	if rr.Header().Get("Set-Cookie") != "" {
		t.Fatalf("failed login must not store a session")
	}

	rr = env.do(http.MethodPost, "/login", "email=&password=", form)
	if rr.Code != http.StatusUnprocessableEntity || !strings.Contains(rr.Body.String(), "Email and password are required") {
		t.Fatalf("empty form: status=%d", rr.Code)
	}
}

func TestRegisterStartsSessionWithIssuedToken(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodPost, "/register", "name=Ana&email=ana%40example.com&password=pw", form, htmx)
	if rr.Code != http.StatusOK || rr.Header().Get("HX-Redirect") != "/dashboard" {
		t.Fatalf("register: status=%d redirect=%q", rr.Code, rr.Header().Get("HX-Redirect"))
	}
	if !strings.Contains(rr.Header().Get("Set-Cookie"), auth.CookieName+"="+env.user) {
		t.Fatalf("session cookie not set: %q", rr.Header().Get("Set-Cookie"))
	}
	if n := env.api.callCount("POST /api/auth/login"); n != 0 {
		t.Fatalf("register must not log in again, got %d login calls", n)
	}

	rr = env.do(http.MethodPost, "/register", "name=Bo&email=taken%40example.com&password=pw", form, htmx)
	if rr.Code != http.StatusUnprocessableEntity || !strings.Contains(rr.Body.String(), "Email already registered") {
		t.Fatalf("taken email: status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestLogoutForgetsLists(t *testing.T) {
	env := newTestEnv(t)
	if rr := env.do(http.MethodGet, "/banks", "", as(env.user)); rr.Code != http.StatusOK {
		t.Fatalf("banks: %d", rr.Code)
	}
	if env.lists.Banks.Size() != 1 {
		t.Fatalf("expected the bank list to be cached")
	}

	rr := env.do(http.MethodPost, "/logout", "", as(env.user))
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/" {
		t.Fatalf("logout: status=%d", rr.Code)
	}
	if env.lists.Banks.Size() != 0 {
		t.Fatalf("cached lists survived logout")
	}
}

func TestRouteGating(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name       string
		path       string
		opts       []reqOpt
		wantStatus int
		wantHeader [2]string
	}{
		{"anonymous page", "/banks", nil, http.StatusSeeOther, [2]string{"Location", "/"}},
		{"anonymous htmx", "/banks", []reqOpt{htmx}, http.StatusUnauthorized, [2]string{"HX-Redirect", "/"}},
		{"corrupt cookie", "/banks", []reqOpt{as("not-a-token")}, http.StatusSeeOther, [2]string{"Location", "/"}},
		{"user on admin", "/admin", []reqOpt{as(env.user)}, http.StatusForbidden, [2]string{}},
		{"admin on admin", "/admin", []reqOpt{as(env.admin)}, http.StatusOK, [2]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(http.MethodGet, tt.path, "", tt.opts...)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status=%d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantHeader[0] != "" && rr.Header().Get(tt.wantHeader[0]) != tt.wantHeader[1] {
				t.Fatalf("%s=%q, want %q", tt.wantHeader[0], rr.Header().Get(tt.wantHeader[0]), tt.wantHeader[1])
			}
		})
	}
}

func TestAdminShowsActivity(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(http.MethodGet, "/admin", "", as(env.admin))
	body := rr.Body.String()
	for _, want := range []string{"ana@example.com", "Pending export", ">3<", `href="/admin"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("admin page missing %q", want)
		}
	}
}

func TestBankLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodGet, "/banks", "", as(env.user))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Fineco") {
		t.Fatalf("banks page: status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `src="http://assets.test/files/fineco.png"`) {
		t.Fatalf("logo not resolved against the asset origin")
	}

	// Missing logo is refused before the API is called.
	rr = env.do(http.MethodPost, "/banks", "name=Revolut&country=LT", as(env.user), form, htmx)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing logo: status=%d", rr.Code)
	}
	trigger := rr.Header().Get("HX-Trigger")
	if !strings.Contains(trigger, `"type":"error"`) || !strings.Contains(trigger, "Upload a logo before saving the bank") {
		t.Fatalf("unexpected trigger %s", trigger)
	}
	if rr.Body.Len() != 0 {
		t.Fatalf("failed mutation must not swap anything: %q", rr.Body.String())
	}
	if env.api.callCount("POST /api/banks") != 0 {
		t.Fatalf("invalid bank reached the API")
	}

	rr = env.do(http.MethodPost, "/banks", "name=Revolut&country=LT&initials=rv&logo=%2Ffiles%2Frevolut.png", as(env.user), form, htmx)
	if rr.Code != http.StatusOK {
		t.Fatalf("create: status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `id="bank-2"`) || !strings.Contains(rr.Body.String(), "RV") {
		t.Fatalf("create answered with %s", rr.Body.String())
	}
	trigger = rr.Header().Get("HX-Trigger")
	for _, part := range []string{`"type":"success"`, `"form:reset"`, `"panel:close"`, `"list:changed"`} {
		if !strings.Contains(trigger, part) {
			t.Fatalf("HX-Trigger missing %s: %s", part, trigger)
		}
	}

	rr = env.do(http.MethodGet, "/banks", "", as(env.user))
	if !strings.Contains(rr.Body.String(), "Revolut") {
		t.Fatalf("created bank not in the list")
	}
	if n := env.api.callCount("GET /api/banks"); n != 1 {
		t.Fatalf("list fetched %d times, want 1", n)
	}

	rr = env.do(http.MethodDelete, "/banks/2", "", as(env.user), htmx)
	if rr.Code != http.StatusOK || rr.Body.Len() != 0 {
		t.Fatalf("delete: status=%d body=%q", rr.Code, rr.Body.String())
	}
	rr = env.do(http.MethodGet, "/banks", "", as(env.user))
	if strings.Contains(rr.Body.String(), "Revolut") {
		t.Fatalf("deleted bank still listed")
	}

	want := []string{"bank:create:success", "bank:delete:success"}
	if strings.Join(env.journal.entries, ",") != strings.Join(want, ",") {
		t.Fatalf("journal %v, want %v", env.journal.entries, want)
	}
}

func TestBankFormAndDetails(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodGet, "/banks/new", "", as(env.user), htmx)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "New bank") {
		t.Fatalf("new form: status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `hx-post="/uploads?mode=image&field=logo"`) {
		t.Fatalf("logo upload field missing: %s", rr.Body.String())
	}

	rr = env.do(http.MethodGet, "/banks/1/edit", "", as(env.user), htmx)
	if !strings.Contains(rr.Body.String(), `hx-put="/banks/1"`) || !strings.Contains(rr.Body.String(), `value="/files/fineco.png"`) {
		t.Fatalf("edit form: %s", rr.Body.String())
	}

	rr = env.do(http.MethodGet, "/banks/99", "", as(env.user), htmx)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown bank: status=%d", rr.Code)
	}

	rr = env.do(http.MethodGet, "/banks/abc", "", as(env.user), htmx)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad id: status=%d", rr.Code)
	}
}

func TestExpiredSessionAtAPI(t *testing.T) {
	env := newTestEnv(t)
	env.api.setUnauthorized(true)

	rr := env.do(http.MethodGet, "/banks/1", "", as(env.user), htmx)
	if rr.Code != http.StatusUnauthorized || rr.Header().Get("HX-Redirect") != "/" {
		t.Fatalf("status=%d redirect=%q", rr.Code, rr.Header().Get("HX-Redirect"))
	}
	if !strings.Contains(rr.Header().Get("Set-Cookie"), "Max-Age=0") {
		t.Fatalf("session cookie not cleared: %q", rr.Header().Get("Set-Cookie"))
	}

	rr = env.do(http.MethodGet, "/dashboard", "", as(env.user))
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("page load with a refused token: status=%d", rr.Code)
	}
}

func TestAccountsRestore(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodGet, "/bank-accounts", "", as(env.user))
	if !strings.Contains(rr.Body.String(), `class="deleted"`) {
		t.Fatalf("deleted account not marked")
	}

	rr = env.do(http.MethodPost, "/bank-accounts/5/restore", "", as(env.user), htmx)
	if rr.Code != http.StatusOK {
		t.Fatalf("restore: status=%d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), `class="deleted"`) {
		t.Fatalf("restored account still marked deleted")
	}
	if n := env.api.callCount("GET /api/bank-accounts"); n != 2 {
		t.Fatalf("accounts fetched %d times, want 2", n)
	}
}

func TestBanksRestore(t *testing.T) {
	env := newTestEnv(t)

	env.do(http.MethodGet, "/banks", "", as(env.user))
	rr := env.do(http.MethodPost, "/banks/1/restore", "", as(env.user), htmx)
	if rr.Code != http.StatusOK {
		t.Fatalf("restore: status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `id="bank-1"`) {
		t.Fatalf("restore must answer with the bank rows: %s", rr.Body.String())
	}
	trigger := rr.Header().Get("HX-Trigger")
	for _, part := range []string{"Bank restored", `"action":"restore"`} {
		if !strings.Contains(trigger, part) {
			t.Fatalf("HX-Trigger missing %s: %s", part, trigger)
		}
	}
	if n := env.api.callCount("PATCH /api/banks/1/restore"); n != 1 {
		t.Fatalf("restore sent %d times, want 1", n)
	}
	if n := env.api.callCount("GET /api/banks"); n != 2 {
		t.Fatalf("banks fetched %d times, want 2", n)
	}

	rr = env.do(http.MethodPost, "/banks/99/restore", "", as(env.user), htmx)
	if rr.Code != http.StatusNotFound || !strings.Contains(rr.Header().Get("HX-Trigger"), "Bank not found") {
		t.Fatalf("failed restore: status=%d trigger=%s", rr.Code, rr.Header().Get("HX-Trigger"))
	}
}

func TestAccountForm(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodGet, "/bank-accounts/new", "", as(env.user), htmx)
	if rr.Code != http.StatusOK {
		t.Fatalf("new form: status=%d", rr.Code)
	}
	for _, want := range []string{`hx-post="/bank-accounts"`, ">Fineco<", ">Ana (ana@example.com)<"} {
		if !strings.Contains(rr.Body.String(), want) {
			t.Fatalf("new form missing %q: %s", want, rr.Body.String())
		}
	}

	rr = env.do(http.MethodGet, "/bank-accounts/6/edit", "", as(env.user), htmx)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `value="234.50"`) {
		t.Fatalf("edit form: status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCreateAccountRejectsBadBalance(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(http.MethodPost, "/bank-accounts", "accountNumber=1&balance=lots&accountType=SAVINGS&bankId=1&ownerId=7", as(env.user), form, htmx)
	if rr.Code != http.StatusUnprocessableEntity || !strings.Contains(rr.Header().Get("HX-Trigger"), "Invalid amount") {
		t.Fatalf("status=%d trigger=%s", rr.Code, rr.Header().Get("HX-Trigger"))
	}
}

func TestTransactionsAndDashboard(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodGet, "/transactions", "", as(env.user))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Salary") {
		t.Fatalf("ledger: status=%d", rr.Code)
	}

	rr = env.do(http.MethodPost, "/transactions", "bankAccountId=6&transactionType=EXPENSE&amount=abc&transactionDate=2024-05-02", as(env.user), form, htmx)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad amount: status=%d", rr.Code)
	}

	rr = env.do(http.MethodGet, "/transactions/10", "", as(env.user), htmx)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Salary") {
		t.Fatalf("details: status=%d", rr.Code)
	}
	rr = env.do(http.MethodGet, "/transactions/11", "", as(env.user), htmx)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown transaction: status=%d", rr.Code)
	}

	rr = env.do(http.MethodGet, "/dashboard", "", as(env.user))
	if rr.Code != http.StatusOK {
		t.Fatalf("dashboard: status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"234.50", "100.00", "Savings", "Salary"} {
		if !strings.Contains(body, want) {
			t.Fatalf("dashboard missing %q", want)
		}
	}

	rr = env.do(http.MethodGet, "/overview", "", as(env.user))
	if !strings.Contains(rr.Body.String(), "Across 1 transactions") {
		t.Fatalf("overview: %s", rr.Body.String())
	}
}

func multipartBody(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name       string
		target     string
		filename   string
		wantStatus int
		wantBody   string
	}{
		{"inline logo field", "/uploads?mode=image&field=logo", "logo.png", http.StatusOK, `name="logo" value="/files/logo.png"`},
		{"standalone form", "/uploads?mode=both", "scan.png", http.StatusOK, "Stored as"},
		{"wrong kind", "/uploads?mode=image&field=logo", "scan.pdf", http.StatusUnprocessableEntity, ""},
		{"unsupported file", "/uploads", "notes.txt", http.StatusUnprocessableEntity, ""},
		{"unknown field", "/uploads?field=avatar", "a.png", http.StatusUnprocessableEntity, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartBody(t, tt.filename, []byte("\x89PNG\r\n"))
			req := httptest.NewRequest(http.MethodPost, tt.target, body)
			req.Header.Set("Content-Type", contentType)
			as(env.user)(req)
			htmx(req)
			rr := httptest.NewRecorder()
			env.srv.Handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status=%d, want %d (trigger %s)", rr.Code, tt.wantStatus, rr.Header().Get("HX-Trigger"))
			}
			if tt.wantBody != "" && !strings.Contains(rr.Body.String(), tt.wantBody) {
				t.Fatalf("body missing %q: %s", tt.wantBody, rr.Body.String())
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(http.MethodGet, "/banks", "", as(env.user))

	rr := env.do(http.MethodGet, "/metrics", "")
	body := rr.Body.String()
	for _, want := range []string{
		`pfm_http_requests_total{method="GET",route="GET /banks",status="200"} 1`,
		`pfm_api_requests_total`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q", want)
		}
	}
}
