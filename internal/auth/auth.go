// Package auth implements login and signup against the schedule API and
// keeps the resulting token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	appLog "dyncal/internal/log"
	"dyncal/internal/remote"
)

var (
	ErrUserExists       = errors.New("username already exists")
	ErrUnauthorized     = errors.New("invalid username or password")
	ErrMissingFields    = errors.New("username and password are required")
	ErrPasswordMismatch = errors.New("passwords do not match")
)

type credentials struct {
	UserName string `json:"userName"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token   string `json:"token"`
	Message string `json:"message"`
}

// Service logs users in and stores their token.
type Service struct {
	api    *remote.Client
	tokens *TokenStore
}

func NewService(api *remote.Client, tokens *TokenStore) *Service {
	return &Service{api: api, tokens: tokens}
}

// Login posts credentials to /auth/login and stores the returned token, if
// any.
func (s *Service) Login(ctx context.Context, userName, password string) error {
	userName = strings.TrimSpace(userName)
	if userName == "" || password == "" {
		return ErrMissingFields
	}

	var resp loginResponse
	err := s.api.PostJSON(ctx, "/auth/login", credentials{UserName: userName, Password: password}, &resp)
	if err != nil {
		var apiErr *remote.APIError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden) {
			return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Message)
		}
		return fmt.Errorf("login: %w", err)
	}

	if resp.Token != "" {
		if err := s.tokens.Set(resp.Token); err != nil {
			return fmt.Errorf("store token: %w", err)
		}
	}
	appLog.Info("login succeeded", "user", userName, "token_stored", resp.Token != "")
	return nil
}

// CreateUser registers a new account via /auth/create-user.
func (s *Service) CreateUser(ctx context.Context, userName, password, confirm string) error {
	userName = strings.TrimSpace(userName)
	if userName == "" || password == "" {
		return ErrMissingFields
	}
	if password != confirm {
		return ErrPasswordMismatch
	}

	err := s.api.PostJSON(ctx, "/auth/create-user", credentials{UserName: userName, Password: password}, nil)
	if err != nil {
		var apiErr *remote.APIError
		if errors.As(err, &apiErr) && isDuplicate(apiErr) {
			return ErrUserExists
		}
		return fmt.Errorf("create user: %w", err)
	}
	appLog.Info("user created", "user", userName)
	return nil
}

// Logout forgets the stored token.
func (s *Service) Logout() error {
	return s.tokens.Clear()
}

func isDuplicate(e *remote.APIError) bool {
	if e.Status == http.StatusConflict {
		return true
	}
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate")
}
