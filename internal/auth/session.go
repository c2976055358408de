package auth

import (
	"context"
	"net/http"
	"time"

	"pfm/internal/api"
	"pfm/internal/core"
	"pfm/internal/log"
)

const CookieName = "pfm_token"

type Session struct {
	Identity core.Identity
	Token    string
}

type sessionKey struct{}

// WithSession stores s in ctx together with its token for outgoing API calls.
func WithSession(ctx context.Context, s Session) context.Context {
	ctx = context.WithValue(ctx, sessionKey{}, s)
	return api.WithToken(ctx, s.Token)
}

// FromContext returns the session loaded for this request, if any.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}

// Manager stores sessions in an HttpOnly cookie and gates routes on them.
type Manager struct {
	// MaxAge bounds the cookie lifetime; tokens carrying exp end sooner.
	MaxAge time.Duration
	// OnLogout runs after a session is cleared, e.g. to drop cached lists.
	OnLogout func(core.Identity)
	Logger   *log.Logger
}

func NewManager(maxAge time.Duration, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{MaxAge: maxAge, Logger: logger.WithComponent(log.ComponentAuth)}
}

func isSecure(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}

// Login validates token and stores it. Empty or undecodable tokens are refused
// and nothing is stored.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, token string) (core.Identity, error) {
	id, err := Decode(token)
	if err != nil {
		return core.Identity{}, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   isSecure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(m.MaxAge.Seconds()),
	})
	m.Logger.InfoContext(r.Context(), "Session started", "email", id.Email, "role", id.Role)
	return id, nil
}

// Logout removes the session cookie.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) {
	clearCookie(w, r)
	if s, ok := FromContext(r.Context()); ok {
		m.Logger.InfoContext(r.Context(), "Session ended", log.FieldOperation, log.OpLogout, log.FieldUser, s.Identity.Email)
		if m.OnLogout != nil {
			m.OnLogout(s.Identity)
		}
	}
}

func clearCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   isSecure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// Load reads the session cookie into the request context. A cookie that no
// longer decodes is deleted and the request continues anonymously.
func (m *Manager) Load(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(CookieName)
		if err != nil || c.Value == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := Decode(c.Value)
		if err != nil {
			m.Logger.WarnContext(r.Context(), "Discarding invalid session", "error", err)
			clearCookie(w, r)
			next.ServeHTTP(w, r)
			return
		}
		ctx := WithSession(r.Context(), Session{Identity: id, Token: c.Value})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RedirectToLogin sends the browser to the login page. HTMX requests get an
// HX-Redirect so the whole page is replaced instead of a fragment.
func RedirectToLogin(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// RequireSession lets only signed-in requests through.
func (m *Manager) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			RedirectToLogin(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole lets only sessions holding role through. It implies RequireSession.
func (m *Manager) RequireRole(role core.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return m.RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, _ := FromContext(r.Context())
			if s.Identity.Role != role {
				m.Logger.WarnContext(r.Context(), "Role check failed", "email", s.Identity.Email, "required", role, "path", r.URL.Path)
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
