package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestLogger(t *testing.T) {
	newLogger := func(buf *bytes.Buffer) *slog.Logger {
		return slog.New(slog.NewJSONHandler(buf, nil))
	}

	t.Run("Logs Completed Request With Correlation Id", func(t *testing.T) {
		var buf bytes.Buffer

		handler := chimiddleware.RequestID(RequestLogger(newLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/balances", nil))

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "request completed", line["msg"])
		assert.NotEmpty(t, line["request_id"])

		response, ok := line["response"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, float64(http.StatusOK), response["status"])
	})

	t.Run("Server Errors Log At Error Level", func(t *testing.T) {
		var buf bytes.Buffer

		handler := RequestLogger(newLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/deposits/update", nil))

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "ERROR", line["level"])
		assert.Equal(t, "server error", line["msg"])
	})
}
