package apiclient

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Is(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := error(&Error{Kind: ErrUnreachable, Method: "GET", Path: "/users", Err: cause})

	assert.ErrorIs(t, err, ErrUnreachable)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrUpstreamFailure)
	assert.Equal(t, "GET /users: upstream unreachable: dial tcp: connection refused", err.Error())
}

func TestError_UserMessage(t *testing.T) {
	assert.Equal(t, "custom", (&Error{Kind: ErrUpstreamFailure, Message: "custom"}).UserMessage())
	assert.Contains(t, (&Error{Kind: ErrSessionExpired}).UserMessage(), "session has expired")
	assert.Contains(t, (&Error{Kind: ErrUnreachable}).UserMessage(), "could not be reached")
}

func TestKindName(t *testing.T) {
	assert.Equal(t, "ok", KindName(nil))
	assert.Equal(t, "session_expired", KindName(&Error{Kind: ErrSessionExpired}))
	assert.Equal(t, "upstream_failure", KindName(&Error{Kind: ErrUpstreamFailure}))
	assert.Equal(t, "unknown", KindName(errors.New("other")))
}

func TestExtractMessage(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"message":"Invalid credentials"}`, "Invalid credentials"},
		{`{"message":["a","b"]}`, "a; b"},
		{`{"error":"Unauthorized"}`, "Unauthorized"},
		{`{"error":{"message":"nested"}}`, "nested"},
		{`{"statusCode":500}`, ""},
		{`not json`, ""},
		{``, ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractMessage([]byte(tt.body)), tt.body)
	}
}
