package apiclient

import (
	"bytes"
	"encoding/json"
	"strings"
)

// envelope is the {success, data, message} wrapper of upstream responses.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// errorBody covers the shapes the upstream uses for failures.
type errorBody struct {
	Message json.RawMessage `json:"message"`
	Error   json.RawMessage `json:"error"`
}

// ExtractMessage returns the human readable message of an upstream error
// body, or "" when the body has none. Both {"message": "..."} and
// {"error": "..."} are understood; array messages are joined.
func ExtractMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	if msg := rawText(eb.Message); msg != "" {
		return msg
	}
	if msg := rawText(eb.Error); msg != "" {
		return msg
	}
	var nested struct {
		Message string `json:"message"`
	}
	if len(eb.Error) > 0 && json.Unmarshal(eb.Error, &nested) == nil {
		return nested.Message
	}
	return ""
}

func rawText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "; ")
	}
	return ""
}

// decodeData unmarshals the data member of body into out. Bodies that are
// not wrapped in an envelope are decoded as a whole.
func decodeData(body []byte, out any) (*envelope, error) {
	var env envelope
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return &env, nil
	}

	payload := trimmed
	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, err
		}
		if len(env.Data) > 0 {
			payload = env.Data
		}
	}

	if out == nil {
		return &env, nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return nil, err
	}
	return &env, nil
}
