package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renewals/pkg/platform/httputil"
)

// NewJSONRequest marshals body and builds a JSON request. A nil body sends no payload.
func NewJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err, "marshal request body")
	}
	return NewRawJSONRequest(t, method, path, string(payload))
}

// NewRawJSONRequest sends raw as-is, for payloads a typed request cannot express.
func NewRawJSONRequest(t *testing.T, method, path, raw string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func NewRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	return httptest.NewRequest(method, path, nil)
}

// DoRequest serves req against handler and returns the recorded response.
func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// UnmarshalResponse decodes the body into T without consuming the recorder,
// so a test can decode the same response more than once.
func UnmarshalResponse[T any](t *testing.T, rr *httptest.ResponseRecorder) *T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(bytes.NewReader(rr.Body.Bytes())).Decode(&out), "decode response: %s", rr.Body.String())
	return &out
}

func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	assert.Equal(t, expected, rr.Code, "unexpected status, body: %s", rr.Body.String())
}

func AssertStatusOK(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()
	AssertStatus(t, rr, http.StatusOK)
}

// AssertStatusAndError checks the status and the error code of an error
// envelope. Internal errors must not leak a description.
func AssertStatusAndError(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus int, expectedCode string) {
	t.Helper()
	AssertStatus(t, rr, expectedStatus)
	body := UnmarshalResponse[httputil.ErrorResponse](t, rr)
	assert.Equal(t, expectedCode, body.Error, "unexpected error code")
	if expectedStatus == http.StatusInternalServerError {
		assert.Empty(t, body.Description, "internal errors carry no description")
	}
}

// AssertJSONField checks one top-level field of a JSON object response.
// Ids are strings on the wire, so compare them as strings.
func AssertJSONField(t *testing.T, rr *httptest.ResponseRecorder, key string, expected any) {
	t.Helper()
	fields := *UnmarshalResponse[map[string]any](t, rr)
	got, ok := fields[key]
	require.True(t, ok, "response has no %q field", key)
	assert.Equal(t, expected, got, "unexpected %q", key)
}
