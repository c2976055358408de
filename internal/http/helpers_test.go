package http

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"

	"pfm/internal/api"
	"pfm/internal/core"
	"pfm/internal/log"
)

func TestStatusAndErrorType(t *testing.T) {
	timeout := &net.DNSError{Err: "timeout", IsTimeout: true}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"validation", fmt.Errorf("create: %w", core.ErrInvalidAmount), http.StatusUnprocessableEntity, log.ErrorTypeValidation},
		{"session refused", &api.Error{Status: http.StatusUnauthorized, Message: "expired"}, http.StatusBadGateway, log.ErrorTypeAuth},
		{"no token", api.ErrMissingToken, http.StatusBadGateway, log.ErrorTypeAuth},
		{"api not found", &api.Error{Status: http.StatusNotFound, Message: "bank not found"}, http.StatusNotFound, log.ErrorTypeUpstream},
		{"api down", fmt.Errorf("list banks: %w", &api.Error{Status: http.StatusServiceUnavailable}), http.StatusBadGateway, log.ErrorTypeUpstream},
		{"network", fmt.Errorf("failed to execute request: %w", timeout), http.StatusBadGateway, log.ErrorTypeNetwork},
		{"other", errors.New("boom"), http.StatusInternalServerError, log.ErrorTypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorType(tt.err); got != tt.wantType {
				t.Errorf("errorType = %q, want %q", got, tt.wantType)
			}
			if sessionExpired(tt.err) {
				return
			}
			if status, _ := statusFor(tt.err); status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
		})
	}
}
