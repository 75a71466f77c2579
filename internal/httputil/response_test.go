package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteJSONError(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteJSONError(rec, http.StatusBadRequest, "test error")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %s, want application/json", ct)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["error"] != "test error" {
		t.Errorf("error = %s, want 'test error'", resp["error"])
	}
}

func TestWriteJSONOK(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteJSONOK(rec, map[string]float64{"progress": 0.25})

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp map[string]float64
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["progress"] != 0.25 {
		t.Errorf("progress = %v, want 0.25", resp["progress"])
	}
}

func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		write func(http.ResponseWriter)
		want  int
	}{
		{"method not allowed", MethodNotAllowed, http.StatusMethodNotAllowed},
		{"bad request", func(w http.ResponseWriter) { BadRequest(w, "invalid input") }, http.StatusBadRequest},
		{"not found", func(w http.ResponseWriter) { NotFound(w, "missing") }, http.StatusNotFound},
		{"internal", func(w http.ResponseWriter) { InternalServerError(w, "boom") }, http.StatusInternalServerError},
		{"unavailable", func(w http.ResponseWriter) { ServiceUnavailable(w, "loading") }, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	type pick struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"x": 1, "y": 2}`, false},
		{"unknown field", `{"x": 1, "w": 2}`, true},
		{"truncated", `{"x": 1`, true},
		{"too large", `{"x": "` + strings.Repeat("a", MaxBodyBytes) + `"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var p pick
			err := DecodeJSON(httptest.NewRecorder(), req, &p)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && (p.X != 1 || p.Y != 2) {
				t.Errorf("decoded %+v", p)
			}
		})
	}
}
