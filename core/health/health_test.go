package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, statusResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestLiveness(t *testing.T) {
	s := New(Options{})
	rec, body := get(t, s.Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body.Status)
}

func TestReadiness(t *testing.T) {
	healthy := true
	s := New(Options{Checks: []Check{{Name: "db", Run: func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("connection refused")
	}}}})

	rec, body := get(t, s.Handler(), "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body.Checks["db"])

	healthy = false
	rec, body = get(t, s.Handler(), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable", body.Status)
	assert.Equal(t, "fail", body.Checks["db"])
}

func TestStartShutdown(t *testing.T) {
	s := New(Options{Listen: "127.0.0.1:0"})
	require.NoError(t, s.Start())
	require.NoError(t, s.Shutdown(context.Background()))
}

func TestShutdownWithoutStart(t *testing.T) {
	assert.NoError(t, New(Options{}).Shutdown(context.Background()))
}
