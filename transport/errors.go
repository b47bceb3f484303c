package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
)

var (
	// ErrUpstream is matched by every *APIError via errors.Is.
	ErrUpstream = errors.New("upstream error")
	// ErrMalformedResponse is returned when a 2xx body cannot be decoded.
	ErrMalformedResponse = errors.New("malformed upstream response")
	// ErrRequestFailed wraps transport-level failures (DNS, TLS, reset, cancellation).
	ErrRequestFailed = errors.New("upstream request failed")
)

// ErrorDetail is one entry of the optional "errors" array in a Google API
// error body.
type ErrorDetail struct {
	Message string `json:"message"`
	Domain  string `json:"domain"`
	Reason  string `json:"reason"`
}

// APIError is an upstream failure unwrapped from
// {"error":{"code":..,"message":..,"errors":[..]}} or from an RFC 6749
// {"error":"..","error_description":".."} body.
type APIError struct {
	// Status is the HTTP status of the response.
	Status int `json:"-"`
	// Code is the upstream error code (the HTTP status for Google APIs).
	Code int `json:"code"`
	// Message is the upstream message, e.g. "TOKEN_EXPIRED" or "INVALID_ID_TOKEN".
	Message string `json:"message"`
	// Errors carries the upstream detail list when present.
	Errors []ErrorDetail `json:"errors,omitempty"`
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return "upstream error " + strconv.Itoa(e.Code) + ": " + e.Message
}

// Is reports ErrUpstream so callers can branch without a type assertion.
func (e *APIError) Is(target error) bool {
	return target == ErrUpstream
}

type googleErrorBody struct {
	Error json.RawMessage `json:"error"`
}

type oauthErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// DecodeError builds an *APIError from a failed response body. Unknown body
// shapes are carried verbatim as the message.
func DecodeError(status int, body []byte) *APIError {
	out := &APIError{Status: status, Code: status}

	var wrapper googleErrorBody
	if err := json.Unmarshal(body, &wrapper); err == nil && len(wrapper.Error) > 0 {
		var nested APIError
		if err := json.Unmarshal(wrapper.Error, &nested); err == nil && nested.Message != "" {
			out.Message = nested.Message
			out.Errors = nested.Errors
			if nested.Code != 0 {
				out.Code = nested.Code
			}
			return out
		}

		var flat oauthErrorBody
		if err := json.Unmarshal(body, &flat); err == nil && flat.Error != "" {
			out.Message = flat.Error
			if flat.ErrorDescription != "" {
				out.Message += ": " + flat.ErrorDescription
			}
			return out
		}
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(status)
	}
	out.Message = msg
	return out
}
