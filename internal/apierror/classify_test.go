package apierror

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifySessionRefresh(t *testing.T) {
	invalidSession := []byte(`{"errorCode":"INVALID_SESSION_ID"}`)
	otherCode := []byte(`{"errorCode":"SOMETHING_ELSE"}`)

	tests := []struct {
		name    string
		status  int
		body    []byte
		refresh bool
	}{
		{"401 invalid session", 401, invalidSession, true},
		{"401 other code", 401, otherCode, false},
		{"401 no body", 401, nil, false},
		{"404 never refreshes", 404, invalidSession, false},
		{"400 never refreshes", 400, invalidSession, false},
		{"403 never refreshes", 403, invalidSession, false},
		{"408 never refreshes", 408, invalidSession, false},
		{"503 never refreshes", 503, invalidSession, false},
		{"500 invalid session", 500, invalidSession, true},
		{"500 other code", 500, otherCode, false},
		{"418 unlisted status checks body", 418, invalidSession, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.status, tt.body, "GET", "/v1/records")
			assert.Equal(t, tt.refresh, c.RequiresSessionRefresh)
		})
	}
}

func TestClassifyMessageExtraction(t *testing.T) {
	tests := []struct {
		name    string
		body    []byte
		message string
		code    string
	}{
		{"array record", []byte(`[{"errorCode":"X","message":"m"}]`), "m", "X"},
		{"single record", []byte(`{"errorCode":"Y","message":"boom"}`), "boom", "Y"},
		{"msg field", []byte(`{"msg":"short"}`), "short", ""},
		{"errorMsg field", []byte(`{"errorMsg":"legacy"}`), "legacy", ""},
		{"message wins over msg", []byte(`{"message":"a","msg":"b"}`), "a", ""},
		{"code only", []byte(`{"errorCode":"Z"}`), "", "Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, code := extractErrorRecord(tt.body)
			assert.Equal(t, tt.message, msg)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestClassifySynthesizedMessage(t *testing.T) {
	c := Classify(408, nil, "GET", "/v1/records")
	assert.Contains(t, c.Message, "HTTP 408")
	assert.Contains(t, c.Message, "GET /v1/records")
}

func TestClassifyMalformedBody(t *testing.T) {
	for _, body := range [][]byte{
		[]byte("not json"),
		[]byte(`[]`),
		[]byte(`[42]`),
		[]byte(`"just a string"`),
	} {
		c := Classify(500, body, "POST", "/v1/records")
		assert.Empty(t, c.Code)
		assert.NotEmpty(t, c.Message, "classification always yields a readable message")
		assert.False(t, c.RequiresSessionRefresh)
	}
}

func TestWrapClassified(t *testing.T) {
	c := Classify(401, []byte(`[{"errorCode":"INVALID_SESSION_ID","message":"Session expired"}]`), "GET", "/v1/records")
	err := WrapClassified(c, 401, "GET /v1/records", nil)

	require.NotNil(t, err)
	assert.True(t, err.AuthFailure)
	assert.Equal(t, "INVALID_SESSION_ID", err.FailureReason)
	assert.Equal(t, "Session expired", err.Message)
	assert.Equal(t, 401, err.HTTPStatus)
	assert.Equal(t, CodeAuth, err.Code)
}

func TestErrorUnwrap(t *testing.T) {
	cause := assert.AnError
	err := ErrNetwork(cause)
	assert.ErrorIs(t, err, cause)
}

func TestAsError(t *testing.T) {
	structured := ErrAuth("no session")
	assert.Same(t, structured, AsError(structured))

	generic := AsError(assert.AnError)
	assert.Equal(t, CodeAPI, generic.Code)
	assert.NotEmpty(t, generic.Message)
}
