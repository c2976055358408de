package http

import (
	"context"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"pfm/internal/api"
	"pfm/internal/auth"
	"pfm/internal/core"
	"pfm/internal/log"
	"pfm/internal/metrics"
	"pfm/internal/middleware/ratelimit"
	"pfm/internal/middleware/security"
	"pfm/internal/middleware/trace"
	"pfm/internal/services"
	appweb "pfm/web"
)

// Pinger is anything /readyz checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ActivityReader backs the admin page.
type ActivityReader interface {
	Recent(ctx context.Context, limit int) ([]core.Activity, error)
	Stats(ctx context.Context) (core.ActivityStats, error)
}

// Deps are the collaborators a Server needs. Metrics, Limiter, Detector and
// Journal are optional.
type Deps struct {
	Auth         api.AuthClient
	API          Pinger
	Banks        *services.BankService
	Accounts     *services.AccountService
	Transactions *services.TransactionService
	Dashboard    *services.DashboardService
	Uploads      *services.UploadService
	Activity     ActivityReader
	Journal      Pinger
	Sessions     *auth.Manager
	Metrics      *metrics.Metrics
	Limiter      *ratelimit.Limiter
	Detector     *security.Detector
	AssetURL     string
	Logger       *log.Logger
}

type Server struct {
	http.Server

	auth         api.AuthClient
	api          Pinger
	banks        *services.BankService
	accounts     *services.AccountService
	transactions *services.TransactionService
	dashboard    *services.DashboardService
	uploads      *services.UploadService
	activity     ActivityReader
	journal      Pinger
	sessions     *auth.Manager
	metrics      *metrics.Metrics
	limiter      *ratelimit.Limiter
	detector     *security.Detector
	tracer       *trace.Middleware
	templates    *renderer
	logger       *log.Logger

	shutdownOnce sync.Once
}

func NewServer(addr string, d Deps) (*Server, error) {
	logger := d.Logger
	if logger == nil {
		logger = log.Default()
	}
	tmpl, err := newRenderer(appweb.TemplatesFS, d.AssetURL)
	if err != nil {
		return nil, err
	}

	s := &Server{
		auth:         d.Auth,
		api:          d.API,
		banks:        d.Banks,
		accounts:     d.Accounts,
		transactions: d.Transactions,
		dashboard:    d.Dashboard,
		uploads:      d.Uploads,
		activity:     d.Activity,
		journal:      d.Journal,
		sessions:     d.Sessions,
		metrics:      d.Metrics,
		limiter:      d.Limiter,
		detector:     d.Detector,
		templates:    tmpl,
		logger:       logger.WithComponent(log.ComponentHTTP),
	}
	if s.detector == nil {
		s.detector = security.NewDetector(logger)
	}
	if s.sessions == nil {
		s.sessions = auth.NewManager(24*time.Hour, logger)
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(d.AssetURL),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(assetURL string) http.Handler {
	mux := http.NewServeMux()
	user := s.sessions.RequireSession
	admin := s.sessions.RequireRole(core.RoleAdmin)
	hf := func(h http.HandlerFunc) http.Handler { return h }

	if static, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		cached := security.StaticAssetMiddleware(86400)
		mux.Handle("GET /static/", cached(http.StripPrefix("/static/", http.FileServer(http.FS(static)))))
	}
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	// Authentication
	mux.HandleFunc("GET /{$}", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /register", s.handleRegisterPage)
	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("POST /logout", s.handleLogout)

	mux.Handle("GET /dashboard", user(hf(s.handleDashboard)))
	mux.Handle("GET /overview", user(hf(s.handleOverview)))

	// Banks
	mux.Handle("GET /banks", user(hf(s.handleBanks)))
	mux.Handle("GET /banks/new", user(hf(s.handleBankForm)))
	mux.Handle("POST /banks", user(hf(s.handleCreateBank)))
	mux.Handle("GET /banks/{id}", user(hf(s.handleBankDetails)))
	mux.Handle("GET /banks/{id}/edit", user(hf(s.handleBankForm)))
	mux.Handle("PUT /banks/{id}", user(hf(s.handleUpdateBank)))
	mux.Handle("POST /banks/{id}", user(hf(s.handleUpdateBank)))
	mux.Handle("DELETE /banks/{id}", user(hf(s.handleDeleteBank)))
	mux.Handle("POST /banks/{id}/restore", user(hf(s.handleRestoreBank)))

	// Bank accounts
	mux.Handle("GET /bank-accounts", user(hf(s.handleAccounts)))
	mux.Handle("GET /bank-accounts/new", user(hf(s.handleAccountForm)))
	mux.Handle("POST /bank-accounts", user(hf(s.handleCreateAccount)))
	mux.Handle("GET /bank-accounts/{id}", user(hf(s.handleAccountDetails)))
	mux.Handle("GET /bank-accounts/{id}/edit", user(hf(s.handleAccountForm)))
	mux.Handle("PUT /bank-accounts/{id}", user(hf(s.handleUpdateAccount)))
	mux.Handle("POST /bank-accounts/{id}", user(hf(s.handleUpdateAccount)))
	mux.Handle("DELETE /bank-accounts/{id}", user(hf(s.handleDeleteAccount)))
	mux.Handle("POST /bank-accounts/{id}/restore", user(hf(s.handleRestoreAccount)))

	// Transactions
	mux.Handle("GET /transactions", user(hf(s.handleTransactions)))
	mux.Handle("GET /transactions/new", user(hf(s.handleTransactionForm)))
	mux.Handle("POST /transactions", user(hf(s.handleCreateTransaction)))
	mux.Handle("GET /transactions/{id}", user(hf(s.handleTransactionDetails)))
	mux.Handle("GET /transactions/{id}/edit", user(hf(s.handleTransactionForm)))
	mux.Handle("PUT /transactions/{id}", user(hf(s.handleUpdateTransaction)))
	mux.Handle("POST /transactions/{id}", user(hf(s.handleUpdateTransaction)))
	mux.Handle("DELETE /transactions/{id}", user(hf(s.handleDeleteTransaction)))

	// Uploads
	mux.Handle("GET /uploads", user(hf(s.handleUploadsPage)))
	mux.Handle("POST /uploads", user(hf(s.handleUpload)))

	mux.Handle("GET /admin", admin(hf(s.handleAdmin)))

	// Middleware, innermost first. Metrics wraps the mux directly so the
	// matched route pattern is visible to it.
	var h http.Handler = mux
	if s.metrics != nil {
		h = s.metrics.Middleware(h)
	}
	if s.limiter != nil {
		h = s.limiter.Middleware(s.detector.ExtractClientIP, ratelimit.Mutating, s.rateLimited)(h)
	}
	h = s.sessions.Load(h)
	h = log.RequestIDMiddleware(trace.RequestIDFrom)(h)
	h = log.Middleware(s.logger)(h)
	h = s.tracer.Middleware(h)
	h = s.detector.Middleware(false)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig(assetURL)).Middleware(h)
	return h
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	if s.metrics != nil {
		s.metrics.RateLimited.Inc()
	}
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	NewHTMXResponse().
		Status(http.StatusTooManyRequests).
		TriggerErrorNotification("Too many requests, please wait a minute").
		Write(w)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady checks the templates, the finance API and the journal.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]Pinger{"api": s.api, "journal": s.journal}
	for name, p := range checks {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", "check", name, "error", err)
			http.Error(w, name+" not ready", http.StatusServiceUnavailable)
			return
		}
	}
	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// renderPage writes a full page. The session, when any, fills the navbar.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, name, title, active, errMsg string, data any) {
	p := page{Title: title, Active: active, Error: errMsg, Data: data}
	if sess, ok := auth.FromContext(r.Context()); ok {
		id := sess.Identity
		p.Session = &id
	}
	body, err := s.templates.page(name, p)
	if err != nil {
		s.renderFailed(r, name, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	NewHTMXResponse().Status(status).Header("Content-Type", "text/html; charset=utf-8").Body(body).Write(w)
}

func (s *Server) renderFailed(r *http.Request, name string, err error) {
	fields := log.NewFields().WithOperation(log.OpRender).WithErrorType(log.ErrorTypeInternal).WithError(err)
	log.FromContext(r.Context()).WithComponent(log.ComponentTemplate).
		ErrorContext(r.Context(), "Template execution failed", append(fields.ToSlice(), "template", name)...)
}

// renderPartial renders a fragment and hands it to b for the triggers.
func (s *Server) renderPartial(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, data any) {
	body, err := s.templates.partial(name, data)
	if err != nil {
		s.renderFailed(r, name, err)
		s.fail(w, r, err)
		return
	}
	b.Header("Content-Type", "text/html; charset=utf-8").Body(body).Write(w)
}
