package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const specPath = "../../api/openapi/openapi.yaml"

func TestOpenAPIValidator_DocumentsConsole(t *testing.T) {
	v := NewOpenAPIValidator(t, specPath)

	ops := v.Operations()
	for _, op := range []string{
		"GET /login", "POST /login", "POST /logout", "GET /unauthorized",
		"GET /dashboard", "GET /users", "GET /users/profile", "GET /users/{id}",
		"GET /transactions", "GET /transactions/statistics", "GET /transactions/{id}",
		"GET /settings", "PUT /settings",
		"GET /healthz", "GET /readyz", "GET /version",
	} {
		assert.Contains(t, ops, op)
	}
}

func TestOpenAPIValidator_ErrorEnvelope(t *testing.T) {
	v := NewOpenAPIValidator(t, specPath)

	rec := httptest.NewRecorder()
	rec.Header().Set("Content-Type", "application/json")
	rec.WriteHeader(http.StatusUnauthorized)
	_, _ = rec.WriteString(`{"error":{"message":"Invalid credentials"}}`)
	resp := rec.Result()

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	v.ValidateResponse(t, req, resp)

	// the body is still readable afterwards
	body, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "Invalid credentials"))
}
