package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/civicforum/constitution-platform/internal/model"
)

// fakeResolver knows a fixed set of tokens.
type fakeResolver map[string]*model.User

func (f fakeResolver) ResolveBearer(_ context.Context, token string) (*model.User, error) {
	if u, ok := f[token]; ok {
		return u, nil
	}
	return nil, errors.New("unknown token")
}

func echoUser(w http.ResponseWriter, r *http.Request) {
	if u, ok := UserFromContext(r.Context()); ok {
		w.Write([]byte(u.UserID))
		return
	}
	w.Write([]byte("anonymous"))
}

func TestRequireAuth(t *testing.T) {
	resolver := fakeResolver{"K3P9ZQ2A": {UserID: "K3P9ZQ2A"}}
	h := RequireAuth(resolver)(http.HandlerFunc(echoUser))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"valid bearer", "Bearer K3P9ZQ2A", http.StatusOK, "K3P9ZQ2A"},
		{"scheme is case-insensitive", "bearer K3P9ZQ2A", http.StatusOK, "K3P9ZQ2A"},
		{"missing header", "", http.StatusUnauthorized, "unauthorized"},
		{"wrong scheme", "Basic K3P9ZQ2A", http.StatusUnauthorized, "unauthorized"},
		{"empty token", "Bearer ", http.StatusUnauthorized, "unauthorized"},
		{"unknown user", "Bearer NOPE0000", http.StatusUnauthorized, "unauthorized"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	resolver := fakeResolver{"K3P9ZQ2A": {UserID: "K3P9ZQ2A"}}
	h := OptionalAuth(resolver)(http.HandlerFunc(echoUser))

	for header, want := range map[string]string{
		"":                "anonymous",
		"Bearer NOPE0000": "anonymous",
		"Bearer K3P9ZQ2A": "K3P9ZQ2A",
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, header)
		assert.Equal(t, want, rec.Body.String(), header)
	}
}
