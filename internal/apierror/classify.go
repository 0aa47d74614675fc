package apierror

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// CodeInvalidSessionID is the backend error code reporting an expired or
// revoked session token.
const CodeInvalidSessionID = "INVALID_SESSION_ID"

// ClassifiedError is the normalized interpretation of an API error response.
type ClassifiedError struct {
	Message                string
	Code                   string
	RequiresSessionRefresh bool
}

// Classify interprets an HTTP error response. The body may be a single error
// record or an array of them; malformed or absent bodies degrade to a
// synthesized message rather than failing. method and path are only used for
// the synthesized message.
func Classify(status int, body []byte, method, path string) ClassifiedError {
	msg, code := extractErrorRecord(body)
	c := ClassifiedError{Message: msg, Code: code}

	switch status {
	case http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound,
		http.StatusRequestTimeout, http.StatusServiceUnavailable:
		// Enumerated statuses that never signal a stale session.
	case http.StatusUnauthorized:
		c.RequiresSessionRefresh = code == CodeInvalidSessionID
	default:
		// 500 and anything not enumerated above: a revoked user may come
		// back with no distinguishing status, so the body code decides.
		c.RequiresSessionRefresh = code == CodeInvalidSessionID
	}

	if c.Message == "" {
		c.Message = fmt.Sprintf("HTTP %d for %s %s", status, method, path)
	}
	return c
}

// extractErrorRecord pulls message and code out of a response body. The
// backend sends either [{"errorCode": ..., "message": ...}] or a bare object;
// older endpoints use "msg" or "errorMsg" for the message field.
func extractErrorRecord(body []byte) (msg, code string) {
	if len(body) == 0 {
		return "", ""
	}

	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", ""
	}

	record, ok := parsed.(map[string]any)
	if !ok {
		seq, ok := parsed.([]any)
		if !ok || len(seq) == 0 {
			return "", ""
		}
		record, ok = seq[0].(map[string]any)
		if !ok {
			return "", ""
		}
	}

	for _, field := range []string{"message", "msg", "errorMsg"} {
		if v, ok := record[field].(string); ok && v != "" {
			msg = v
			break
		}
	}
	if v, ok := record["errorCode"].(string); ok {
		code = v
	}
	return msg, code
}

// WrapClassified converts a classification into a structured *Error for a
// given action. cause, when non-nil, is attached as the underlying error.
func WrapClassified(c ClassifiedError, status int, actionDescription string, cause error) *Error {
	code := CodeAPI
	if c.RequiresSessionRefresh {
		code = CodeAuth
	}
	return &Error{
		Code:              code,
		Message:           c.Message,
		ActionDescription: actionDescription,
		AuthFailure:       c.RequiresSessionRefresh,
		FailureReason:     c.Code,
		HTTPStatus:        status,
		Cause:             cause,
	}
}
