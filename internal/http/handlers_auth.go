package http

import (
	"errors"
	"net/http"

	"pfm/internal/api"
	"pfm/internal/auth"
	"pfm/internal/log"
)

type authForm struct {
	Name  string
	Email string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.FromContext(r.Context()); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	s.renderPage(w, r, http.StatusOK, "login", "Sign in", "", "", authForm{})
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.FromContext(r.Context()); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	s.renderPage(w, r, http.StatusOK, "register", "Register", "", "", authForm{})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	p, err := parseBody(r)
	if err != nil {
		s.authFailed(w, r, log.OpLogin, authForm{}, "Invalid request")
		return
	}
	form := authForm{Email: p.Get("email")}
	password := p.Get("password")
	if form.Email == "" || password == "" {
		s.authFailed(w, r, log.OpLogin, form, "Email and password are required")
		return
	}

	token, err := s.auth.Login(r.Context(), form.Email, password)
	if err != nil {
		s.authFailed(w, r, log.OpLogin, form, loginMessage(err))
		return
	}
	s.startSession(w, r, log.OpLogin, form, token)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	p, err := parseBody(r)
	if err != nil {
		s.authFailed(w, r, log.OpRegister, authForm{}, "Invalid request")
		return
	}
	form := authForm{Name: p.Get("name"), Email: p.Get("email")}
	password := p.Get("password")
	if form.Name == "" || form.Email == "" || password == "" {
		s.authFailed(w, r, log.OpRegister, form, "Name, email and password are required")
		return
	}

	// The token issued on registration starts the session directly.
	token, err := s.auth.Register(r.Context(), form.Name, form.Email, password)
	if err != nil {
		s.authFailed(w, r, log.OpRegister, form, loginMessage(err))
		return
	}
	s.startSession(w, r, log.OpRegister, form, token)
}

// startSession stores token as the session; op is log.OpLogin or log.OpRegister.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request, op string, form authForm, token string) {
	logger := log.FromContext(r.Context()).WithComponent(log.ComponentAuth)
	id, err := s.sessions.Login(w, r, token)
	if err != nil {
		logger.WarnContext(r.Context(), "API returned an unusable token",
			log.NewFields().WithOperation(op).WithErrorType(log.ErrorTypeAuth).WithError(err).ToSlice()...)
		s.authFailed(w, r, op, form, "The finance service returned an invalid session")
		return
	}
	logger.InfoContext(r.Context(), "User signed in", log.FieldOperation, op, log.FieldUser, id.Email)
	redirect(w, r, "/dashboard")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Logout(w, r)
	redirect(w, r, "/")
}

// authFailed shows msg inline under the form; full page posts get the page back.
// The page rendered is named after op.
func (s *Server) authFailed(w http.ResponseWriter, r *http.Request, op string, form authForm, msg string) {
	if isHTMX(r) {
		UnprocessableEntityError(msg).TriggerErrorNotification(msg).Write(w)
		return
	}
	title := "Sign in"
	if op == log.OpRegister {
		title = "Register"
	}
	s.renderPage(w, r, http.StatusUnprocessableEntity, op, title, "", msg, form)
}

func loginMessage(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		if apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden {
			return "Wrong email or password"
		}
		if apiErr.Status < 500 && apiErr.Message != "" {
			return capitalize(apiErr.Message)
		}
	}
	return "The finance service is unavailable, please retry"
}
