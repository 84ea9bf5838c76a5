package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"testing"
)

// Client plays the operator's browser against a running console. Cookies
// persist between calls, redirects come back to the caller unfollowed, and
// every response is checked against the OpenAPI document.
type Client struct {
	base      string
	http      *http.Client
	validator *OpenAPIValidator
	t         *testing.T
}

// NewClientWithValidation returns a Client for the console at baseURL.
func NewClientWithValidation(t *testing.T, baseURL, specPath string) *Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}

	return &Client{
		base: strings.TrimSuffix(baseURL, "/"),
		http: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		validator: NewOpenAPIValidator(t, specPath),
		t:         t,
	}
}

// LoginAs submits the login form and fails the test unless the console
// answers with the post-login redirect.
func (c *Client) LoginAs(t *testing.T, email, password string) {
	t.Helper()

	form := url.Values{"email": {email}, "password": {password}}
	resp, err := c.send(http.MethodPost, "/login", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("login as %s: %v", email, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusSeeOther {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("login as %s: got %d, body %s", email, resp.StatusCode, body)
	}
}

func (c *Client) GET(path string) (*http.Response, error) {
	return c.send(http.MethodGet, path, "", nil)
}

// POST sends body as JSON. A nil body sends no payload.
func (c *Client) POST(path string, body any) (*http.Response, error) {
	return c.sendJSON(http.MethodPost, path, body)
}

// PUT sends body as JSON.
func (c *Client) PUT(path string, body any) (*http.Response, error) {
	return c.sendJSON(http.MethodPut, path, body)
}

func (c *Client) sendJSON(method, path string, body any) (*http.Response, error) {
	if body == nil {
		return c.send(method, path, "", nil)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return c.send(method, path, "application/json", bytes.NewReader(payload))
}

func (c *Client) send(method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}

	// the validator only routes on method and path, the sent body is not needed
	c.validator.ValidateResponse(c.t, req, resp)
	return resp, nil
}

// DecodeJSON decodes and closes the response body.
func DecodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s response: %v", resp.Request.URL.Path, err)
	}
}
