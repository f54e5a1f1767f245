package canvas

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"canvas-load/internal/httpx"
)

// APIError is a non-2xx answer from Canvas. Error() renders "<status> <message>",
// which is what callers compare against for the known benign failures.
type APIError struct {
	Status  int
	Message string
	Details []ErrorDetail
	Method  string
	URL     string
}

// ErrorDetail is one attribute-level validation error.
type ErrorDetail struct {
	Attribute string `json:"attribute"`
	Type      string `json:"type"`
	Message   string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

type errorBody struct {
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors"`
	Status  string          `json:"status"`
}

func newAPIError(herr *httpx.HTTPError) *APIError {
	e := &APIError{
		Status: herr.StatusCode,
		Method: herr.Method,
		URL:    herr.URL,
	}

	var eb errorBody
	if err := json.Unmarshal(herr.Body, &eb); err == nil {
		e.Details = parseErrorDetails(eb.Errors)
		msgs := make([]string, 0, len(e.Details)+1)
		if strings.TrimSpace(eb.Message) != "" {
			msgs = append(msgs, strings.TrimSpace(eb.Message))
		}
		for _, d := range e.Details {
			if d.Message != "" {
				msgs = append(msgs, d.Message)
			}
		}
		e.Message = strings.Join(msgs, "; ")
	}

	if e.Message == "" {
		e.Message = httpx.Snippet(herr.Body, 300)
	}
	if e.Message == "" {
		e.Message = http.StatusText(herr.StatusCode)
	}
	return e
}

// Canvas uses two shapes for "errors":
//   - [{"message": "..."}]
//   - {"sis_source_id": [{"attribute": "...", "type": "taken", "message": "..."}]}
func parseErrorDetails(raw json.RawMessage) []ErrorDetail {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var list []ErrorDetail
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}

	var byAttr map[string][]ErrorDetail
	if err := json.Unmarshal(raw, &byAttr); err == nil {
		keys := make([]string, 0, len(byAttr))
		for k := range byAttr {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var out []ErrorDetail
		for _, k := range keys {
			for _, d := range byAttr[k] {
				if d.Attribute == "" {
					d.Attribute = k
				}
				out = append(out, d)
			}
		}
		return out
	}

	var msg string
	if err := json.Unmarshal(raw, &msg); err == nil && msg != "" {
		return []ErrorDetail{{Message: msg}}
	}
	return nil
}

// AsAPIError unwraps err into an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsNotFound reports a lookup for a resource that does not exist.
func IsNotFound(err error) bool {
	e, ok := AsAPIError(err)
	if !ok {
		return false
	}
	if e.Status == http.StatusNotFound {
		return true
	}
	return strings.Contains(strings.ToLower(e.Message), "does not exist")
}

// ErrNoAccount is returned by account scoped calls when the token cannot see
// any account, which is how Canvas presents a non-admin token.
var ErrNoAccount = errors.New("canvas: no account available for this token")

// IsUnauthorized reports a token that may not perform the call.
func IsUnauthorized(err error) bool {
	if errors.Is(err, ErrNoAccount) {
		return true
	}
	e, ok := AsAPIError(err)
	if !ok {
		return false
	}
	if e.Status == http.StatusUnauthorized {
		return true
	}
	return strings.Contains(strings.ToLower(e.Message), "not authorized")
}

// IsSISTaken reports a create rejected because the SIS id is already used.
func IsSISTaken(err error) bool {
	e, ok := AsAPIError(err)
	if !ok {
		return false
	}
	for _, d := range e.Details {
		if strings.HasPrefix(d.Attribute, "sis_") && d.Type == "taken" {
			return true
		}
	}
	return strings.Contains(strings.ToLower(e.Message), "is already in use")
}

// IsThrottled matches Canvas' rate limiter, which answers 403 instead of 429.
func IsThrottled(status int, body []byte) bool {
	return status == http.StatusForbidden && strings.Contains(string(body), "Rate Limit Exceeded")
}
