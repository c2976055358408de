package api

import (
	"context"
	"errors"
	"net/http"
)

var ErrNoTokenInResponse = errors.New("api: auth response carried no token")

type credentials struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenData struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	data, err := write[tokenData](ctx, c, http.MethodPost, loginPath, credentials{Email: email, Password: password})
	if err != nil {
		return "", err
	}
	if data.Token == "" {
		return "", ErrNoTokenInResponse
	}
	return data.Token, nil
}

// Register creates an account and returns the token the API issues for it.
func (c *Client) Register(ctx context.Context, name, email, password string) (string, error) {
	data, err := write[tokenData](ctx, c, http.MethodPost, registerPath, credentials{Name: name, Email: email, Password: password})
	if err != nil {
		return "", err
	}
	if data.Token == "" {
		return "", ErrNoTokenInResponse
	}
	return data.Token, nil
}
