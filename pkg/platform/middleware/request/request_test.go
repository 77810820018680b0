package request

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	capture := func(dst *string) http.Handler {
		return RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*dst = GetRequestID(r.Context())
		}))
	}

	t.Run("generates UUID when no header provided", func(t *testing.T) {
		var got string
		w := httptest.NewRecorder()
		capture(&got).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/didcomm", nil))

		assert.Len(t, got, 36)
		assert.Equal(t, got, w.Header().Get("X-Request-ID"))
	})

	t.Run("reuses a valid client id", func(t *testing.T) {
		var got string
		req := httptest.NewRequest(http.MethodGet, "/didcomm", nil)
		req.Header.Set("X-Request-ID", "wallet.req_42")
		w := httptest.NewRecorder()
		capture(&got).ServeHTTP(w, req)

		assert.Equal(t, "wallet.req_42", got)
	})

	t.Run("replaces unsafe client ids", func(t *testing.T) {
		for _, bad := range []string{"has\nnewline", "semi;colon", strings.Repeat("a", MaxRequestIDLength+1)} {
			var got string
			req := httptest.NewRequest(http.MethodGet, "/didcomm", nil)
			req.Header.Set("X-Request-ID", bad)
			capture(&got).ServeHTTP(httptest.NewRecorder(), req)
			assert.NotEqual(t, bad, got)
			assert.Len(t, got, 36)
		}
	})

	t.Run("empty when middleware absent", func(t *testing.T) {
		assert.Equal(t, "", GetRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
	})
}

func TestRecovery(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	handler := Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/notifications/n1/decision", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal_error","error_description":"internal server error"}`, w.Body.String())
	assert.Contains(t, logs.String(), "panic recovered")
}

func TestContentTypeJSON(t *testing.T) {
	ok := ContentTypeJSON(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name        string
		method      string
		contentType string
		want        int
	}{
		{"json post", http.MethodPost, "application/json; charset=utf-8", http.StatusNoContent},
		{"missing header is allowed", http.MethodPost, "", http.StatusNoContent},
		{"form post rejected", http.MethodPost, "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
		{"get ignores header", http.MethodGet, "text/plain", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/credentials", strings.NewReader(`{}`))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			ok.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestLogger_SkipsHealthyProbes(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	handler := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/credentials" {
			w.WriteHeader(http.StatusCreated)
		}
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Empty(t, logs.String())

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/credentials", nil))
	assert.Contains(t, logs.String(), `"status":201`)
}

func TestTimeout(t *testing.T) {
	handler := Timeout(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/verification-sessions", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "timeout")
}

func TestLatency_UsesRoutePattern(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Use(Latency(m))
	r.Get("/credentials/{id}", func(w http.ResponseWriter, _ *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/credentials/cred_1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/credentials/cred_2", nil))

	assert.Equal(t, 1, testutil.CollectAndCount(m.EndpointLatency))
}
