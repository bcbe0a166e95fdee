package handler_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/civicforum/constitution-platform/internal/apperror"
	"github.com/civicforum/constitution-platform/internal/auth"
	"github.com/civicforum/constitution-platform/internal/handler"
	sqliteRepo "github.com/civicforum/constitution-platform/internal/repository/sqlite"
	"github.com/civicforum/constitution-platform/internal/service"
)

// fakeGoogle stands in for the Google OAuth provider.
type fakeGoogle struct {
	user      *auth.GoogleUser
	err       error
	exchanged []string
}

func (f *fakeGoogle) AuthURL(state string) string {
	return "https://accounts.example.test/auth?state=" + url.QueryEscape(state)
}

func (f *fakeGoogle) Exchange(_ context.Context, code string) (*auth.GoogleUser, error) {
	f.exchanged = append(f.exchanged, code)
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

func newAuthHandler(t *testing.T, google *fakeGoogle) (*handler.AuthHandler, *sqliteRepo.DB) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqliteRepo.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	identity := service.NewIdentityService(db, auth.NewPasswordServiceWithCost(bcrypt.MinCost), nil, logger)
	return handler.NewAuthHandler(google, identity, logger), db
}

func callback(h *handler.AuthHandler, cookieState, query string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?"+query, nil)
	if cookieState != "" {
		req.AddCookie(&http.Cookie{Name: "oauth_state", Value: cookieState})
	}
	rr := httptest.NewRecorder()
	h.HandleGoogleCallback(rr, req)
	return rr
}

func verifiedUser() *auth.GoogleUser {
	return &auth.GoogleUser{
		Sub:           "google-123",
		Email:         "Asha@Example.com",
		EmailVerified: true,
		Name:          "Asha",
		Picture:       "https://example.test/asha.png",
	}
}

func TestAuthHandler_HandleGoogleLogin(t *testing.T) {
	h, _ := newAuthHandler(t, &fakeGoogle{})

	rr := httptest.NewRecorder()
	h.HandleGoogleLogin(rr, httptest.NewRequest(http.MethodGet, "/auth/google/login", nil))

	assert.Equal(t, http.StatusTemporaryRedirect, rr.Code)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "oauth_state", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	require.NotEmpty(t, cookies[0].Value)

	assert.Equal(t, "https://accounts.example.test/auth?state="+cookies[0].Value, rr.Header().Get("Location"))
}

func TestAuthHandler_HandleGoogleCallback(t *testing.T) {
	t.Run("signs in and hands the token back in the fragment", func(t *testing.T) {
		google := &fakeGoogle{user: verifiedUser()}
		h, db := newAuthHandler(t, google)

		rr := callback(h, "s1", "state=s1&code=abc")

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, []string{"abc"}, google.exchanged)

		user, err := db.GetByGoogleID(context.Background(), "google-123")
		require.NoError(t, err)
		assert.Equal(t, "asha@example.com", user.Email)

		// Without a JWT secret the bearer is the public userId.
		assert.Equal(t, "/#token="+user.UserID, rr.Header().Get("Location"))

		cookies := rr.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "oauth_state", cookies[0].Name)
		assert.Negative(t, cookies[0].MaxAge, "state cookie is single use")
	})

	t.Run("missing state cookie", func(t *testing.T) {
		google := &fakeGoogle{user: verifiedUser()}
		h, _ := newAuthHandler(t, google)

		rr := callback(h, "", "state=s1&code=abc")

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Empty(t, google.exchanged)
	})

	t.Run("state mismatch", func(t *testing.T) {
		google := &fakeGoogle{user: verifiedUser()}
		h, db := newAuthHandler(t, google)

		rr := callback(h, "s1", "state=forged&code=abc")

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Empty(t, google.exchanged)

		_, err := db.GetByGoogleID(context.Background(), "google-123")
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})

	t.Run("user denied consent", func(t *testing.T) {
		google := &fakeGoogle{user: verifiedUser()}
		h, _ := newAuthHandler(t, google)

		rr := callback(h, "s1", "state=s1&error=access_denied")

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/?auth=denied", rr.Header().Get("Location"))
		assert.Empty(t, google.exchanged)
	})

	t.Run("missing code", func(t *testing.T) {
		h, _ := newAuthHandler(t, &fakeGoogle{user: verifiedUser()})

		rr := callback(h, "s1", "state=s1")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("exchange failure", func(t *testing.T) {
		h, _ := newAuthHandler(t, &fakeGoogle{err: errors.New("token endpoint unreachable")})

		rr := callback(h, "s1", "state=s1&code=abc")

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.NotContains(t, rr.Body.String(), "unreachable")
	})

	t.Run("unverified email is not linked to an existing account", func(t *testing.T) {
		gUser := verifiedUser()
		gUser.EmailVerified = false
		google := &fakeGoogle{user: gUser}
		h, db := newAuthHandler(t, google)

		identity := service.NewIdentityService(db, auth.NewPasswordServiceWithCost(bcrypt.MinCost), nil,
			slog.New(slog.NewTextHandler(io.Discard, nil)))
		existing, err := identity.Register(context.Background(), service.RegisterInput{
			Name:     "Asha",
			Email:    "asha@example.com",
			Password: "12341234",
		})
		require.NoError(t, err)

		rr := callback(h, "s1", "state=s1&code=abc")

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/?auth=unverified", rr.Header().Get("Location"))

		user, err := db.GetByEmail(context.Background(), "asha@example.com")
		require.NoError(t, err)
		assert.Equal(t, existing.User.UserID, user.UserID)
		assert.Nil(t, user.GoogleID)

		_, err = db.GetByGoogleID(context.Background(), "google-123")
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})
}
