package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestRequestIDMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		clientID string
		wantUUID bool
	}{
		{name: "client id is reused", clientID: "replay-7f3a"},
		{name: "missing id is generated", wantUUID: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				ctxID       string
				forwardedID string
			)
			h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctxID = GetRequestID(r.Context())
				forwardedID = r.Header.Get(RequestIDHeader)
			}))

			req := httptest.NewRequest(http.MethodGet, "/item", nil)
			if tt.clientID != "" {
				req.Header.Set(RequestIDHeader, tt.clientID)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if got := rec.Header().Values(RequestIDHeader); len(got) != 0 {
				t.Errorf("response carries %s %v, want none", RequestIDHeader, got)
			}
			if forwardedID != tt.clientID {
				t.Errorf("request header changed to %q", forwardedID)
			}
			if tt.wantUUID {
				if _, err := uuid.Parse(ctxID); err != nil {
					t.Errorf("generated id %q is not a UUID: %v", ctxID, err)
				}
			} else if ctxID != tt.clientID {
				t.Errorf("id = %q, want %q", ctxID, tt.clientID)
			}
		})
	}
}

func TestRequestIDMiddleware_Unique(t *testing.T) {
	var id string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id = GetRequestID(r.Context())
	}))

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		if seen[id] {
			t.Fatalf("duplicate request id %s", id)
		}
		seen[id] = true
	}
}

func TestGetRequestID_Empty(t *testing.T) {
	if id := GetRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context()); id != "" {
		t.Errorf("expected empty id, got %q", id)
	}
}
