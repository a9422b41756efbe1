// ABOUTME: Typed errors for EveryAction API failures
// ABOUTME: Classifies HTTP responses into retriable, fatal, conflict, credential and payload errors
package everyaction

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Kind is the category of an API failure.
type Kind int

const (
	// KindUnknown is used for errors that did not come from this package.
	KindUnknown Kind = iota
	// KindRetriable is a 429, 5xx, connection failure or timeout.
	KindRetriable
	// KindFatal is a non-retriable failure, including exhausted retries.
	KindFatal
	// KindConflict is a 409 response.
	KindConflict
	// KindInvalidCredentials is a 403 response.
	KindInvalidCredentials
	// KindInvalidPayload is a 400 response carrying INVALID_PARAMETER.
	KindInvalidPayload
)

func (k Kind) String() string {
	switch k {
	case KindRetriable:
		return "retriable"
	case KindFatal:
		return "fatal"
	case KindConflict:
		return "conflict"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindInvalidPayload:
		return "invalid_payload"
	default:
		return "unknown"
	}
}

// APIError describes a failed EveryAction call.
type APIError struct {
	Kind       Kind
	Method     string
	Endpoint   string
	StatusCode int
	Message    string
	Body       string
	Attempts   int
	Err        error
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString("everyaction ")
	b.WriteString(e.Kind.String())
	if e.Method != "" || e.Endpoint != "" {
		fmt.Fprintf(&b, " %s %s", e.Method, e.Endpoint)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Attempts > 1 {
		fmt.Fprintf(&b, " after %d attempts", e.Attempts)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// GetKind extracts the Kind from err, or KindUnknown.
func GetKind(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

func asAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}

// IsRetriable reports whether err should be retried.
func IsRetriable(err error) bool {
	return GetKind(err) == KindRetriable
}

// IsFatal reports whether err is any non-retriable API failure.
func IsFatal(err error) bool {
	switch GetKind(err) {
	case KindFatal, KindConflict, KindInvalidCredentials, KindInvalidPayload:
		return true
	}
	return false
}

// IsInvalidCredentials reports whether err is a 403 from the API.
func IsInvalidCredentials(err error) bool {
	return GetKind(err) == KindInvalidCredentials
}

// IsInvalidPayload reports whether err is an INVALID_PARAMETER rejection.
func IsInvalidPayload(err error) bool {
	return GetKind(err) == KindInvalidPayload
}

// errorBody is the error envelope returned by the API.
type errorBody struct {
	Errors []struct {
		Code string `json:"code"`
		Text string `json:"text"`
	} `json:"errors"`
}

// classify maps a response to an error, or nil for 2xx/3xx.
func classify(resp *Response) *APIError {
	status := resp.StatusCode
	body := string(resp.Body)

	newErr := func(kind Kind, msg string) *APIError {
		return &APIError{Kind: kind, StatusCode: status, Message: msg, Body: body}
	}

	switch {
	case status == http.StatusConflict:
		return newErr(KindConflict, reasonPhrase(resp))
	case status == http.StatusTooManyRequests || (status >= 500 && status < 600):
		return newErr(KindRetriable, responseMessage(resp))
	case status >= 400 && status < 500:
		msg := body
		if msg == "" {
			msg = responseMessage(resp)
		}
		if status == http.StatusForbidden {
			return newErr(KindInvalidCredentials, msg)
		}
		if status == http.StatusBadRequest && strings.Contains(msg, "INVALID_PARAMETER") {
			return newErr(KindInvalidPayload, invalidParameterText(msg))
		}
		return newErr(KindFatal, msg)
	}
	return nil
}

// invalidParameterText extracts errors[0].text, falling back to the raw body.
func invalidParameterText(body string) string {
	var parsed errorBody
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return body
	}
	if len(parsed.Errors) == 0 || parsed.Errors[0].Text == "" {
		return body
	}
	return parsed.Errors[0].Text
}

func reasonPhrase(resp *Response) string {
	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}
	return reason
}

func responseMessage(resp *Response) string {
	msg := fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	if len(resp.Body) > 0 {
		msg += ": " + string(resp.Body)
	}
	return msg
}
