package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/groupbuy/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// HeaderUserID is the identity header honoured when header identity is enabled.
const HeaderUserID = "X-User-ID"

// Client issues JSON requests against an engine in-process.
type Client struct {
	t      *testing.T
	engine *gin.Engine
	header http.Header
}

// NewClient creates a client for engine.
func NewClient(t *testing.T, engine *gin.Engine) *Client {
	return &Client{t: t, engine: engine, header: http.Header{}}
}

// As returns a copy of the client that sends the given header on every request.
func (c *Client) As(key, value string) *Client {
	cp := &Client{t: c.t, engine: c.engine, header: c.header.Clone()}
	cp.header.Set(key, value)
	return cp
}

// Do sends a request with an optional JSON body.
func (c *Client) Do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()

	var reader io.Reader
	if body != nil {
		reader = ToJSONReader(c.t, body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.header {
		req.Header[k] = v
	}

	w := httptest.NewRecorder()
	c.engine.ServeHTTP(w, req)
	return w
}

// DecodeData unmarshals the envelope's data into a T.
func DecodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "Failed to parse JSON response: %s", w.Body.String())
	require.True(t, env.Success, "Expected success response: %s", w.Body.String())

	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out), "Failed to parse response data")
	return out
}

// DecodeError unmarshals the envelope's error.
func DecodeError(t *testing.T, w *httptest.ResponseRecorder) dto.ErrorInfo {
	t.Helper()

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "Failed to parse JSON response")
	assert.False(t, resp.Success, "Expected success to be false")
	require.NotNil(t, resp.Error, "Expected error object in response")
	return *resp.Error
}

// AssertErrorCode asserts the status and error code of a failed response.
func AssertErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()

	require.Equal(t, status, w.Code, "Unexpected status code: %s", w.Body.String())
	assert.Equal(t, code, DecodeError(t, w).Code, "Unexpected error code")
}

// ToJSONReader converts a value to a JSON io.Reader.
func ToJSONReader(t *testing.T, v any) io.Reader {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err, "Failed to marshal to JSON")
	return bytes.NewReader(data)
}
