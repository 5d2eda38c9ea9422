package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
	}{
		{name: "generated", incoming: ""},
		{name: "propagated", incoming: "req-123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			handler := RequestID(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r.Context())
				w.WriteHeader(http.StatusTeapot)
			}))

			req := httptest.NewRequest(http.MethodPost, "/scoreboard.v1.MatchService/ListMatches", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if seen == "" {
				t.Fatal("request id missing from context")
			}
			if tt.incoming != "" && seen != tt.incoming {
				t.Errorf("got %q, want %q", seen, tt.incoming)
			}
			if rec.Header().Get(RequestIDHeader) != seen {
				t.Errorf("response header %q does not match %q", rec.Header().Get(RequestIDHeader), seen)
			}
			if rec.Code != http.StatusTeapot {
				t.Errorf("status: got %d", rec.Code)
			}
		})
	}
}
