package http

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteError(w, 400, "Invalid email format")

	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Invalid email format", resp.Error)
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()

	WriteJSON(w, 201, map[string]string{"message": "created"})

	assert.Equal(t, 201, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "created", body["message"])
}

func TestWriteJSON_EncodeFailureLogged(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	w := httptest.NewRecorder()
	WriteJSON(w, 200, map[string]any{"bad": make(chan int)})

	assert.Equal(t, 200, w.Code)
	assert.Contains(t, buf.String(), "failed to encode response body")
}

func TestErrorWriterStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w *httptest.ResponseRecorder)
		status int
	}{
		{"bad request", func(w *httptest.ResponseRecorder) { WriteBadRequest(w, "x") }, 400},
		{"unauthorized", func(w *httptest.ResponseRecorder) { WriteUnauthorized(w, "x") }, 401},
		{"forbidden", func(w *httptest.ResponseRecorder) { WriteForbidden(w, "x") }, 403},
		{"not found", func(w *httptest.ResponseRecorder) { WriteNotFound(w, "x") }, 404},
		{"conflict", func(w *httptest.ResponseRecorder) { WriteConflict(w, "x") }, 409},
		{"too many requests", func(w *httptest.ResponseRecorder) { WriteTooManyRequests(w, "x") }, 429},
		{"internal", func(w *httptest.ResponseRecorder) { WriteInternalError(w, "x") }, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
