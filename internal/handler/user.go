package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/civicforum/constitution-platform/internal/apperror"
	"github.com/civicforum/constitution-platform/internal/auth"
	"github.com/civicforum/constitution-platform/internal/model"
	"github.com/civicforum/constitution-platform/internal/service"
)

// UserHandler serves registration, sign-in and profile routes.
type UserHandler struct {
	identity *service.IdentityService
	logger   *slog.Logger
}

func NewUserHandler(identity *service.IdentityService, logger *slog.Logger) *UserHandler {
	return &UserHandler{identity: identity, logger: logger}
}

type registerRequest struct {
	Name     string     `json:"name" validate:"required"`
	Email    string     `json:"email" validate:"required"`
	Password string     `json:"password" validate:"required,min=8,max=72"`
	Role     model.Role `json:"role" validate:"omitempty,oneof=Citizen Expert Lawmaker"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// googleLoginRequest is what the web client's Google Sign-In widget posts
// after the user picks an account.
type googleLoginRequest struct {
	GoogleID string `json:"googleId" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Name     string `json:"name"`
	Picture  string `json:"picture"`
}

type changePasswordRequest struct {
	Email           string `json:"email" validate:"required"`
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

// HandleRegister creates an account.
//
// HTTP: POST /api/users/register
// RESPONSE: 201 {"message": "...", "user": {...}, "token": "..."}
func (h *UserHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.identity.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, authResponse("User registered successfully", res))
}

// HandleLogin signs in with email and password.
//
// HTTP: POST /api/users/login
func (h *UserHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.identity.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse("User logged in successfully", res))
}

// HandleGoogleLogin signs in with a profile vouched for by the client-side
// Google widget.
//
// HTTP: POST /api/users/google-login
func (h *UserHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req googleLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.identity.GoogleSignIn(r.Context(), service.GoogleProfile{
		GoogleID: req.GoogleID,
		Email:    req.Email,
		Name:     req.Name,
		Picture:  req.Picture,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse("User logged in successfully", res))
}

// HandleChangePassword replaces an account's password.
//
// HTTP: POST /api/users/change-password
func (h *UserHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.identity.ChangePassword(r.Context(), req.Email, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}

// HandleMe returns the bearer's profile.
//
// HTTP: GET /api/users/me
// Auth: Required
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthenticated("a signed-in user is required"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// HandleProfile returns a user's public profile by userId.
//
// HTTP: GET /api/users/{userId}
func (h *UserHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.identity.Profile(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func authResponse(message string, res *service.AuthResult) map[string]any {
	return map[string]any{
		"message": message,
		"user":    res.User,
		"token":   res.Token,
	}
}
