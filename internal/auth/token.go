// Package auth turns the API's bearer token into a browser session.
//
// Tokens are decoded, not verified: the API checks signatures on every call,
// so the front end only needs the identity claims to decide what to render.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"pfm/internal/core"
)

var (
	ErrEmptyToken     = errors.New("empty token")
	ErrMalformedToken = errors.New("malformed token")
	ErrExpiredToken   = errors.New("token expired")
)

// Decode extracts the identity carried by token as of now.
func Decode(token string) (core.Identity, error) {
	return DecodeAt(token, time.Now())
}

// DecodeAt is Decode with an explicit clock.
//
// Login tokens put the email in "sub" and the role in "roles[0]"; refreshed
// tokens use "email" and "role". Both shapes are accepted.
func DecodeAt(token string, now time.Time) (core.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return core.Identity{}, ErrEmptyToken
	}
	if strings.Count(token, ".") != 2 {
		return core.Identity{}, ErrMalformedToken
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return core.Identity{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if _, ok := claims["exp"]; ok && !claims.VerifyExpiresAt(now.Unix(), true) {
		return core.Identity{}, ErrExpiredToken
	}

	id := core.Identity{
		Email:  firstString(claims, "sub", "email"),
		Role:   roleOf(claims),
		UserID: firstInt(claims, "id", "userId"),
	}
	if id.Email == "" {
		return core.Identity{}, fmt.Errorf("%w: no subject", ErrMalformedToken)
	}
	return id, nil
}

func firstString(claims jwt.MapClaims, keys ...string) string {
	for _, k := range keys {
		if s, ok := claims[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func firstInt(claims jwt.MapClaims, keys ...string) int64 {
	for _, k := range keys {
		switch v := claims[k].(type) {
		case float64:
			return int64(v)
		case string:
			var n int64
			if _, err := fmt.Sscan(v, &n); err == nil {
				return n
			}
		}
	}
	return 0
}

func roleOf(claims jwt.MapClaims) core.Role {
	raw := ""
	if roles, ok := claims["roles"].([]any); ok && len(roles) > 0 {
		switch r := roles[0].(type) {
		case string:
			raw = r
		case map[string]any:
			raw, _ = r["authority"].(string)
		}
	}
	if raw == "" {
		raw, _ = claims["role"].(string)
	}
	role := core.Role(strings.ToUpper(strings.TrimPrefix(raw, "ROLE_")))
	if !role.Valid() {
		return core.RoleUser
	}
	return role
}
