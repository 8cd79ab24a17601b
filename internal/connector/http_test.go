package connector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApiErrorStatusAndMessage(t *testing.T) {
	err := &apiError{StatusCode: 503, Body: "service unavailable"}
	assert.Equal(t, 503, err.Status())
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "service unavailable")
}

func TestIsStaleTokenError(t *testing.T) {
	assert.True(t, isStaleTokenError(&apiError{StatusCode: 400}))
	assert.True(t, isStaleTokenError(&apiError{StatusCode: 404}))
	assert.True(t, isStaleTokenError(&apiError{StatusCode: 410}))
	assert.False(t, isStaleTokenError(&apiError{StatusCode: 401}))
	assert.False(t, isStaleTokenError(&apiError{StatusCode: 500}))
	assert.False(t, isStaleTokenError(assertError{}))
}

type assertError struct{}

func (assertError) Error() string { return "not an apiError" }

func TestBasicAuthHeader(t *testing.T) {
	header := basicAuthHeader("user", "token")
	assert.Equal(t, "Basic dXNlcjp0b2tlbg==", header)
}

func TestDoJSONSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	err := doJSON(context.Background(), newHTTPClient(), http.MethodGet, srv.URL, map[string]string{"Authorization": "Bearer abc"}, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
}

func TestDoJSONErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing"))
	}))
	defer srv.Close()

	err := doJSON(context.Background(), newHTTPClient(), http.MethodGet, srv.URL, nil, nil)
	require.Error(t, err)
	var ae *apiError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, 404, ae.StatusCode)
	assert.True(t, isStaleTokenError(err))
}
