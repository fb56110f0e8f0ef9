package validate

import (
	"fmt"
	"strings"

	"pagesmith/app/pkg/types"
)

var requiredFields = []string{"email", "secret", "task", "round", "nonce", "brief", "evaluation_url"}

// Error describes a structural problem with an inbound request. The
// message is user-facing and ends up in the 400 response body.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return e.Reason
}

func invalid(format string, v ...interface{}) error {
	return &Error{Reason: fmt.Sprintf(format, v...)}
}

// Check validates the raw request shape. Checks run in a fixed order and
// stop at the first failure; the missing-field check names every absent
// key. Check never mutates its input.
func Check(data map[string]interface{}) error {
	var missing []string
	for _, field := range requiredFields {
		if _, ok := data[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return invalid("Missing required fields: %s", strings.Join(missing, ", "))
	}

	if email, ok := data["email"].(string); !ok || !strings.Contains(email, "@") {
		return invalid("Invalid email format")
	}
	if task, ok := data["task"].(string); !ok || task == "" {
		return invalid("Task must be a non-empty string")
	}
	if round, ok := asInt(data["round"]); !ok || round < 1 {
		return invalid("Round must be a positive integer")
	}
	if nonce, ok := data["nonce"].(string); !ok || nonce == "" {
		return invalid("Nonce must be a non-empty string")
	}
	if brief, ok := data["brief"].(string); !ok || brief == "" {
		return invalid("Brief must be a non-empty string")
	}
	if u, ok := data["evaluation_url"].(string); !ok || !strings.HasPrefix(u, "http") {
		return invalid("Evaluation URL must be a valid HTTP(S) URL")
	}

	if raw, ok := data["checks"]; ok {
		if _, isList := raw.([]interface{}); !isList {
			return invalid("Checks must be a list")
		}
	}
	if raw, ok := data["attachments"]; ok {
		list, isList := raw.([]interface{})
		if !isList {
			return invalid("Attachments must be a list")
		}
		for _, item := range list {
			att, isMap := item.(map[string]interface{})
			if !isMap {
				return invalid("Each attachment must have 'name' and 'url'")
			}
			if _, hasName := att["name"]; !hasName {
				return invalid("Each attachment must have 'name' and 'url'")
			}
			if _, hasURL := att["url"]; !hasURL {
				return invalid("Each attachment must have 'name' and 'url'")
			}
		}
	}

	return nil
}

// Decode converts an already-validated raw payload into the typed
// request. Call Check first; Decode assumes the shape holds.
func Decode(data map[string]interface{}) types.TaskRequest {
	round, _ := asInt(data["round"])
	req := types.TaskRequest{
		Email:         asString(data["email"]),
		Secret:        asString(data["secret"]),
		Task:          asString(data["task"]),
		Round:         round,
		Nonce:         asString(data["nonce"]),
		Brief:         asString(data["brief"]),
		EvaluationURL: asString(data["evaluation_url"]),
	}
	if raw, ok := data["checks"].([]interface{}); ok {
		for _, item := range raw {
			req.Checks = append(req.Checks, asString(item))
		}
	}
	if raw, ok := data["attachments"].([]interface{}); ok {
		for _, item := range raw {
			att, isMap := item.(map[string]interface{})
			if !isMap {
				continue
			}
			req.Attachments = append(req.Attachments, types.Attachment{
				Name: asString(att["name"]),
				URL:  asString(att["url"]),
			})
		}
	}
	return req
}

// asInt accepts the numeric shapes encoding/json can hand us. A float is
// only an int when it has no fractional part.
func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}
