// Package auth exchanges operator credentials for an upstream access token.
//
// The authenticator talks to the auth endpoints with its own HTTP client.
// It does not use the session-aware apiclient and never touches session
// state, so it can be constructed before the session layer exists.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bissquit/finance-admin/internal/apiclient"
	"github.com/bissquit/finance-admin/internal/domain"
	"github.com/bissquit/finance-admin/internal/pkg/ctxlog"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultInvalidMessage = "Invalid credentials"

// ErrInvalidCredentials is returned when the upstream refuses the login.
var ErrInvalidCredentials = errors.New("invalid credentials")

// CredentialsError carries the message shown on the login form.
type CredentialsError struct {
	Message string
	Status  int
}

func (e *CredentialsError) Error() string {
	return e.Message
}

// Unwrap makes CredentialsError match ErrInvalidCredentials.
func (e *CredentialsError) Unwrap() error {
	return ErrInvalidCredentials
}

// Credentials is the login form input.
type Credentials struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Result is a successful authentication.
type Result struct {
	AccessToken string
	Identity    domain.Identity
}

// Config configures the Authenticator.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	Transport http.RoundTripper
}

// Authenticator calls the upstream /auth endpoints.
type Authenticator struct {
	baseURL    string
	httpClient *http.Client
	validator  *validator.Validate
}

// NewAuthenticator creates an authenticator for the API rooted at cfg.BaseURL.
func NewAuthenticator(cfg Config) *Authenticator {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = apiclient.DefaultTimeout
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Authenticator{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(transport),
		},
		validator: validator.New(),
	}
}

type tokenPayload struct {
	AccessToken string       `json:"access_token"`
	User        *domain.User `json:"user"`
}

// loginResponse accepts the token payload either bare or inside the
// {success, data, message} envelope.
type loginResponse struct {
	tokenPayload
	Data *tokenPayload `json:"data"`
}

func (r *loginResponse) payload() tokenPayload {
	if r.AccessToken == "" && r.Data != nil {
		return *r.Data
	}
	return r.tokenPayload
}

// Authenticate exchanges email and password for an access token and the
// identity of the account. Any refusal is reported as ErrInvalidCredentials.
func (a *Authenticator) Authenticate(ctx context.Context, email, password string) (*Result, error) {
	creds := Credentials{Email: strings.TrimSpace(email), Password: password}
	if err := a.validator.Struct(creds); err != nil {
		return nil, &CredentialsError{Message: "Email and password are required"}
	}

	var resp loginResponse
	status, body, err := a.post(ctx, "/auth/login", "", creds, &resp)
	if err != nil {
		return nil, err
	}

	if status < 200 || status >= 300 {
		msg := apiclient.ExtractMessage(body)
		if msg == "" {
			msg = defaultInvalidMessage
		}
		ctxlog.FromContext(ctx).Info("login refused by upstream", "status", status)
		return nil, &CredentialsError{Message: msg, Status: status}
	}

	tokens := resp.payload()
	if tokens.AccessToken == "" {
		return nil, &CredentialsError{Message: defaultInvalidMessage, Status: status}
	}
	if tokens.User != nil {
		return &Result{AccessToken: tokens.AccessToken, Identity: tokens.User.Identity()}, nil
	}

	// some deployments answer with the token only
	identity, err := a.Me(ctx, tokens.AccessToken)
	if errors.Is(err, apiclient.ErrSessionExpired) {
		return nil, &CredentialsError{Message: defaultInvalidMessage, Status: http.StatusUnauthorized}
	}
	if err != nil {
		return nil, err
	}
	return &Result{AccessToken: tokens.AccessToken, Identity: *identity}, nil
}

// Logout tells the upstream to drop accessToken.
func (a *Authenticator) Logout(ctx context.Context, accessToken string) error {
	status, body, err := a.post(ctx, "/auth/logout", accessToken, struct{}{}, nil)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("logout: upstream status %d: %s", status, messageOr(body, "no message"))
	}
	return nil
}

// Me returns the account bound to accessToken.
func (a *Authenticator) Me(ctx context.Context, accessToken string) (*domain.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/auth/me", nil)
	if err != nil {
		return nil, &apiclient.Error{Kind: apiclient.ErrRequestInvalid, Method: http.MethodGet, Path: "/auth/me", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	status, body, err := a.send(req)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		return nil, &apiclient.Error{Kind: apiclient.ErrSessionExpired, Method: http.MethodGet, Path: "/auth/me", Status: status}
	}
	if status < 200 || status >= 300 {
		return nil, &apiclient.Error{
			Kind:    apiclient.ErrUpstreamFailure,
			Method:  http.MethodGet,
			Path:    "/auth/me",
			Status:  status,
			Message: apiclient.ExtractMessage(body),
		}
	}

	// /auth/me may or may not wrap the user in a data envelope.
	var wrapped struct {
		Data *domain.User `json:"data"`
	}
	var user domain.User
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Data != nil {
		user = *wrapped.Data
	} else if err := json.Unmarshal(body, &user); err != nil {
		return nil, &apiclient.Error{Kind: apiclient.ErrUpstreamFailure, Method: http.MethodGet, Path: "/auth/me", Status: status, Err: err}
	}

	identity := user.Identity()
	return &identity, nil
}

func (a *Authenticator) post(ctx context.Context, path, bearer string, in, out any) (int, []byte, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return 0, nil, &apiclient.Error{Kind: apiclient.ErrRequestInvalid, Method: http.MethodPost, Path: path, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, &apiclient.Error{Kind: apiclient.ErrRequestInvalid, Method: http.MethodPost, Path: path, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	status, body, err := a.send(req)
	if err != nil {
		return 0, nil, err
	}

	if out != nil && status >= 200 && status < 300 && len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return status, body, &apiclient.Error{
				Kind:   apiclient.ErrUpstreamFailure,
				Method: http.MethodPost,
				Path:   path,
				Status: status,
				Err:    fmt.Errorf("decode response: %w", err),
			}
		}
	}

	return status, body, nil
}

func (a *Authenticator) send(req *http.Request) (int, []byte, error) {
	resp, err := a.httpClient.Do(req)
	if err != nil {
		ctxlog.FromContext(req.Context()).Error("auth endpoint unreachable", "path", req.URL.Path, "error", err)
		return 0, nil, &apiclient.Error{Kind: apiclient.ErrUnreachable, Method: req.Method, Path: req.URL.Path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, &apiclient.Error{Kind: apiclient.ErrUnreachable, Method: req.Method, Path: req.URL.Path, Err: err}
	}
	return resp.StatusCode, body, nil
}

func messageOr(body []byte, fallback string) string {
	if msg := apiclient.ExtractMessage(body); msg != "" {
		return msg
	}
	return fallback
}
