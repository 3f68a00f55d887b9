package supabase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/vansh-rautela/sage-health-assistant/internal/config"
)

var ErrUserDataMissing = errors.New("user data not found")

// UserStore is the part of Store that Auth needs.
type UserStore interface {
	CreateUser(ctx context.Context, u User) (*User, error)
	GetUser(ctx context.Context, id string) (*User, error)
}

// Auth signs users up and in against Supabase auth and keeps the users
// table in step.
type Auth struct {
	http  *resty.Client
	users UserStore
}

func NewAuth(cfg *config.SupabaseConfig, users UserStore) *Auth {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := resty.New().
		SetBaseURL(baseURL(cfg)+authPath).
		SetHeader("apikey", cfg.Key).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)

	return &Auth{http: client, users: users}
}

type authUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// authResponse covers both shapes returned by sign-up: a bare user when email
// confirmation is pending, or a session with a nested user.
type authResponse struct {
	authUser
	AccessToken string    `json:"access_token"`
	User        *authUser `json:"user"`
}

func (r authResponse) userID() string {
	if r.User != nil && r.User.ID != "" {
		return r.User.ID
	}
	return r.ID
}

type authError struct {
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorName        string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (e authError) text() string {
	for _, s := range []string{e.Msg, e.Message, e.ErrorDescription, e.ErrorCode, e.ErrorName} {
		if s != "" {
			return s
		}
	}
	return "unknown error"
}

func isDuplicate(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "already registered") ||
		strings.Contains(msg, "already exists")
}

// SignUp creates the auth account and the matching users row.
func (a *Auth) SignUp(ctx context.Context, email, password, name string) (*User, error) {
	var out authResponse
	var apiErr authError

	resp, err := a.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"email":    email,
			"password": password,
			"data":     map[string]string{"name": name},
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/signup")
	if err != nil {
		return nil, fmt.Errorf("sign up failed: %w", err)
	}
	if resp.IsError() {
		msg := apiErr.text()
		if isDuplicate(msg) || apiErr.ErrorCode == "user_already_exists" {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("sign up failed (status %d): %s", resp.StatusCode(), msg)
	}

	id := out.userID()
	if id == "" {
		return nil, errors.New("failed to create user account")
	}

	user, err := a.users.CreateUser(ctx, User{ID: id, Email: email, Name: name})
	if err != nil {
		if isDuplicate(err.Error()) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("sign up failed: %w", err)
	}

	slog.Info("User signed up", "user_id", id)
	return user, nil
}

// SignIn exchanges credentials for an access token and loads the user's row.
func (a *Auth) SignIn(ctx context.Context, email, password string) (*User, string, error) {
	var out authResponse
	var apiErr authError

	resp, err := a.http.R().
		SetContext(ctx).
		SetQueryParam("grant_type", "password").
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/token")
	if err != nil {
		slog.Warn("Sign in request failed", "error", err)
		return nil, "", ErrInvalidCredentials
	}
	if resp.IsError() {
		slog.Info("Sign in rejected", "status", resp.StatusCode(), "reason", apiErr.text())
		return nil, "", ErrInvalidCredentials
	}

	id := out.userID()
	if id == "" || out.AccessToken == "" {
		return nil, "", ErrInvalidCredentials
	}

	user, err := a.users.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, "", ErrUserDataMissing
		}
		return nil, "", fmt.Errorf("loading user: %w", err)
	}
	return user, out.AccessToken, nil
}
