package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/rs/xid"

	"github.com/civicforum/constitution-platform/internal/auth"
	"github.com/civicforum/constitution-platform/internal/service"
)

const stateCookie = "oauth_state"

// GoogleExchanger is the part of *auth.GoogleProvider the handler needs.
type GoogleExchanger interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GoogleUser, error)
}

// AuthHandler runs the server-side Google OAuth flow, for clients that do
// not embed the Google Sign-In widget.
//
//   - HandleGoogleLogin    → redirect the browser to Google's consent page
//   - HandleGoogleCallback → exchange the code, find or create the user and
//     hand the bearer token back to the SPA
type AuthHandler struct {
	google   GoogleExchanger
	identity *service.IdentityService
	logger   *slog.Logger
}

func NewAuthHandler(google GoogleExchanger, identity *service.IdentityService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{google: google, identity: identity, logger: logger}
}

// HandleGoogleLogin redirects to Google.
//
// HTTP: GET /auth/google/login
//
// CSRF PROTECTION VIA STATE:
// A random state is stored in a short-lived HttpOnly cookie and must come
// back unchanged on the callback.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the flow.
//
// HTTP: GET /auth/google/callback?code=xxx&state=yyy
//
// On success the browser lands on "/#token=<bearer>". The token travels in
// the fragment so it never reaches server logs; the SPA reads it from
// location.hash.
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" {
		h.logger.Warn("google callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != cookie.Value {
		h.logger.Warn("google callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// Single use.
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("google callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	gUser, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("google callback: exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	// Sign-in may link onto an existing account by email, so the address
	// must be one Google has verified.
	if !gUser.EmailVerified {
		h.logger.Warn("google callback: email not verified", slog.String("email", gUser.Email))
		http.Redirect(w, r, "/?auth=unverified", http.StatusSeeOther)
		return
	}

	res, err := h.identity.GoogleSignIn(r.Context(), service.GoogleProfile{
		GoogleID: gUser.Sub,
		Email:    gUser.Email,
		Name:     gUser.Name,
		Picture:  gUser.Picture,
	})
	if err != nil {
		h.logger.Error("google callback: sign-in failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	h.logger.Info("user authenticated via google", slog.String("userId", res.User.UserID))

	fragment := url.Values{"token": {res.Token}}.Encode()
	http.Redirect(w, r, "/#"+fragment, http.StatusSeeOther)
}
