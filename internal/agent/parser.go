package agent

import (
	"encoding/json"
	"strings"

	"github.com/sqlsage/sqlsage/internal/types"
)

// ParseResponse validates the model's final message against the SQL-response
// envelope. Both fields must be present; no repair or retry is attempted.
// A fenced ```json block around the object is tolerated, the JSON inside is
// still strictly validated.
func ParseResponse(content string) (*types.SQLResponse, error) {
	payload := stripCodeFence(strings.TrimSpace(content))
	if payload == "" {
		return nil, &types.SchemaValidationError{Reason: "empty response", Raw: content}
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, &types.SchemaValidationError{
			Reason: "response is not a JSON object: " + err.Error(),
			Raw:    content,
		}
	}

	resp := &types.SQLResponse{}
	for _, field := range []struct {
		key string
		dst *string
	}{
		{"sql_query", &resp.SQLQuery},
		{"explanation", &resp.Explanation},
	} {
		value, ok := raw[field.key]
		if !ok {
			return nil, &types.SchemaValidationError{
				Reason: "missing required field " + field.key,
				Raw:    content,
			}
		}
		if err := json.Unmarshal(value, field.dst); err != nil {
			return nil, &types.SchemaValidationError{
				Reason: "field " + field.key + " is not a string",
				Raw:    content,
			}
		}
	}

	return resp, nil
}

// stripCodeFence removes a surrounding markdown code fence, if any.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		// Drop the language tag line (e.g. "json").
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
