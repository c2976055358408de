package http

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"pfm/internal/api"
	"pfm/internal/auth"
	"pfm/internal/core"
	"pfm/internal/log"
	"pfm/internal/services"
)

var (
	errBadRequest   = errors.New("malformed request")
	errNotFound     = errors.New("not found")
	errUnknownField = errors.New("unknown upload field")
)

// validationErrors are the user's to fix; they answer 422 with their own text.
var validationErrors = []error{
	core.ErrEmptyName,
	core.ErrEmptyCountry,
	core.ErrMissingLogo,
	core.ErrEmptyAccountNumber,
	core.ErrMissingBank,
	core.ErrMissingOwner,
	core.ErrInvalidAccountType,
	core.ErrMissingAccount,
	core.ErrInvalidTxType,
	core.ErrMissingDate,
	core.ErrInvalidDate,
	core.ErrInvalidAmount,
	services.ErrUnsupportedFile,
	services.ErrWrongKind,
	services.ErrFileTooLarge,
	services.ErrInvalidMode,
	services.ErrNoUserID,
	errBadRequest,
	errInvalidID,
	errUnknownField,
}

func isValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// sessionExpired reports errors that mean the stored token is no good.
func sessionExpired(err error) bool {
	return api.IsUnauthorized(err) || errors.Is(err, api.ErrMissingToken)
}

// errorType classifies err for the error_type log field.
func errorType(err error) string {
	var apiErr *api.Error
	var netErr net.Error
	switch {
	case isValidation(err):
		return log.ErrorTypeValidation
	case sessionExpired(err):
		return log.ErrorTypeAuth
	case errors.As(err, &apiErr):
		return log.ErrorTypeUpstream
	case errors.As(err, &netErr):
		return log.ErrorTypeNetwork
	}
	return log.ErrorTypeInternal
}

// statusFor maps err to the status and message shown to the user.
func statusFor(err error) (int, string) {
	var apiErr *api.Error
	var netErr net.Error
	switch {
	case isValidation(err):
		for _, target := range validationErrors {
			if errors.Is(err, target) {
				return http.StatusUnprocessableEntity, capitalize(target.Error())
			}
		}
	case errors.Is(err, errNotFound):
		return http.StatusNotFound, "Not found"
	case errors.As(err, &apiErr):
		if apiErr.Status == http.StatusNotFound {
			return http.StatusNotFound, capitalize(api.Message(err))
		}
		if apiErr.Status == http.StatusForbidden {
			return http.StatusForbidden, "You are not allowed to do that"
		}
		if apiErr.Status < 500 && apiErr.Message != "" {
			return http.StatusUnprocessableEntity, capitalize(apiErr.Message)
		}
		return http.StatusBadGateway, "The finance service is unavailable, please retry"
	case errors.As(err, &netErr):
		return http.StatusBadGateway, "The finance service is unavailable, please retry"
	}
	return http.StatusInternalServerError, "Something went wrong, please retry"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// fail answers a failed HTMX mutation or fragment request. The body stays
// empty so nothing is swapped; the message travels as an error toast.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.FromContext(r.Context())
	if sessionExpired(err) {
		logger.InfoContext(r.Context(), "API refused the session token", "error", err)
		s.sessions.Logout(w, r)
		auth.RedirectToLogin(w, r)
		return
	}

	status, msg := statusFor(err)
	fields := log.NewFields().WithErrorType(errorType(err)).WithError(err).ToSlice()
	if status >= 500 {
		logger.ErrorContext(r.Context(), "Request failed", append(fields, log.FieldPath, r.URL.Path)...)
	} else {
		logger.WarnContext(r.Context(), "Request rejected", append(fields, log.FieldPath, r.URL.Path, log.FieldStatusCode, status)...)
	}
	NewHTMXResponse().
		Status(status).
		TriggerErrorNotification(msg).
		Write(w)
}

// failPage renders name with the error in place of its data.
func (s *Server) failPage(w http.ResponseWriter, r *http.Request, err error, name, title, active string) {
	if sessionExpired(err) {
		s.fail(w, r, err)
		return
	}
	status, msg := statusFor(err)
	log.FromContext(r.Context()).ErrorContext(r.Context(), "Page load failed", "error", err, "page", name)
	s.renderPage(w, r, status, name, title, active, msg, nil)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// identity returns the signed-in user. Routes behind RequireSession always
// have one.
func identity(r *http.Request) core.Identity {
	sess, _ := auth.FromContext(r.Context())
	return sess.Identity
}

// redirect sends the browser to url, as a full page load for HTMX requests.
func redirect(w http.ResponseWriter, r *http.Request, url string) {
	if isHTMX(r) {
		NewHTMXResponse().Redirect(url).Write(w)
		return
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}

// sanitizeInput removes control characters other than tab and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
