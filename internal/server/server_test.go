package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/john/emoterain/internal/metrics"
)

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestRoutes_Health(t *testing.T) {
	code, body := get(t, Routes(nil), "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK", body)
}

func TestRoutes_Metrics(t *testing.T) {
	code, body := get(t, Routes(nil), "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "emoterain_overlay_clients")
}

func TestRoutes_Overlay(t *testing.T) {
	called := false
	overlay := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	})

	code, _ := get(t, Routes(overlay), "/overlay?channel=moonmoon")
	assert.True(t, called)
	assert.Equal(t, http.StatusTeapot, code)

	code, _ = get(t, Routes(nil), "/overlay")
	assert.Equal(t, http.StatusNotFound, code)
}
