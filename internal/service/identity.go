package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/civicforum/constitution-platform/internal/apperror"
	"github.com/civicforum/constitution-platform/internal/auth"
	"github.com/civicforum/constitution-platform/internal/model"
	"github.com/civicforum/constitution-platform/internal/repository"
)

const (
	MinPasswordLength = 8
	MaxNameLength     = 100

	// UserIDLength is the length of the public user code, e.g. "K3P9ZQ2A".
	UserIDLength = 8

	userIDAttempts = 5
)

// IdentityService handles registration, sign-in and bearer resolution.
//
// DEPENDENCIES (injected via NewIdentityService):
//   - users      repository.UserRepository → read/write user records
//   - passwords  *auth.PasswordService     → bcrypt hashing
//   - tokens     *auth.TokenService        → optional JWT issuing; nil disables it
type IdentityService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	tokens    *auth.TokenService
	validate  *validator.Validate
	newUserID func() string
	logger    *slog.Logger
}

// NewIdentityService creates an IdentityService. tokens may be nil, in which
// case the bearer handed out at login is the public userId itself.
func NewIdentityService(
	users repository.UserRepository,
	passwords *auth.PasswordService,
	tokens *auth.TokenService,
	logger *slog.Logger,
) *IdentityService {
	return &IdentityService{
		users:     users,
		passwords: passwords,
		tokens:    tokens,
		validate:  validator.New(),
		newUserID: randomUserID,
		logger:    logger,
	}
}

// compile-time check that the service can back the auth middleware
var _ auth.Resolver = (*IdentityService)(nil)

// AuthResult bundles the user with the bearer token the client should send.
type AuthResult struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// RegisterInput is what a new email+password account needs.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     model.Role
}

// GoogleProfile is the identity a Google sign-in vouches for, either from the
// web client's sign-in widget or from the server-side OAuth callback.
type GoogleProfile struct {
	GoogleID string
	Email    string
	Name     string
	Picture  string
}

// randomUserID returns UserIDLength characters of crypto/rand base32
// (A-Z and 2-7).
func randomUserID() string {
	return rand.Text()[:UserIDLength]
}

// Register creates an email+password account and signs it in.
func (s *IdentityService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	if name == "" {
		return nil, apperror.ValidationFailed("name", "name is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return nil, apperror.ValidationFailed("name",
			fmt.Sprintf("name must be %d characters or less", MaxNameLength))
	}
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, apperror.ValidationFailed("email", "a valid email is required")
	}
	if err := s.checkPassword("password", in.Password); err != nil {
		return nil, err
	}

	role := in.Role
	if role == "" {
		role = model.RoleCitizen
	}
	if !role.Valid() {
		return nil, apperror.ValidationFailed("role",
			fmt.Sprintf("role must be one of %s, %s, %s", model.RoleCitizen, model.RoleExpert, model.RoleLawmaker))
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("registering %s: %w", email, err)
	}

	user := &model.User{
		Name:     name,
		Email:    email,
		Role:     role,
		Password: hash,
	}
	if err := s.create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		slog.String("userId", user.UserID),
		slog.String("role", string(user.Role)),
	)
	return s.signIn(user)
}

// Login checks email and password. Every failure is the same
// Unauthenticated error so callers cannot probe which emails exist.
func (s *IdentityService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("email", "email and password are required")
	}

	invalid := apperror.Unauthenticated("invalid email or password")

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, invalid
		}
		return nil, err
	}
	if !user.HasPassword() {
		return nil, invalid
	}
	if err := s.passwords.Verify(user.Password, password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			return nil, invalid
		}
		return nil, err
	}

	s.logger.Info("user logged in", slog.String("userId", user.UserID))
	return s.signIn(user)
}

// GoogleSignIn finds or creates the account for a Google identity.
//
// Lookup order: by Google id, then by email (linking the Google id onto the
// existing account), otherwise a new Citizen is created.
func (s *IdentityService) GoogleSignIn(ctx context.Context, p GoogleProfile) (*AuthResult, error) {
	p.GoogleID = strings.TrimSpace(p.GoogleID)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Name = strings.TrimSpace(p.Name)

	if p.GoogleID == "" {
		return nil, apperror.ValidationFailed("googleId", "google id is required")
	}
	if err := s.validate.Var(p.Email, "required,email"); err != nil {
		return nil, apperror.ValidationFailed("email", "a valid email is required")
	}

	user, err := s.users.GetByGoogleID(ctx, p.GoogleID)
	if err == nil {
		return s.signIn(user)
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}

	user, err = s.users.GetByEmail(ctx, p.Email)
	switch {
	case err == nil:
		if err := s.users.LinkGoogle(ctx, user.ID, p.GoogleID, p.Picture); err != nil {
			return nil, err
		}
		user.GoogleID = &p.GoogleID
		user.Picture = p.Picture
		s.logger.Info("google account linked", slog.String("userId", user.UserID))
		return s.signIn(user)

	case errors.Is(err, apperror.ErrNotFound):
		name := p.Name
		if name == "" {
			name, _, _ = strings.Cut(p.Email, "@")
		}
		user = &model.User{
			Name:     name,
			Email:    p.Email,
			Role:     model.RoleCitizen,
			GoogleID: &p.GoogleID,
			Picture:  p.Picture,
		}
		if err := s.create(ctx, user); err != nil {
			return nil, err
		}
		s.logger.Info("user registered via google", slog.String("userId", user.UserID))
		return s.signIn(user)

	default:
		return nil, err
	}
}

// ChangePassword replaces the password of an email+password account after
// checking the current one.
func (s *IdentityService) ChangePassword(ctx context.Context, email, current, next string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return apperror.ValidationFailed("email", "email is required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !user.HasPassword() {
		return apperror.ValidationFailed("currentPassword",
			"this account signs in with Google and has no password")
	}
	if err := s.passwords.Verify(user.Password, current); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			return apperror.Unauthenticated("current password is incorrect")
		}
		return err
	}
	if err := s.checkPassword("newPassword", next); err != nil {
		return err
	}

	hash, err := s.passwords.Hash(next)
	if err != nil {
		return fmt.Errorf("changing password for %s: %w", user.UserID, err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}

	s.logger.Info("password changed", slog.String("userId", user.UserID))
	return nil
}

// ResolveBearer maps a bearer token to its user. The token is either the
// public userId or, when JWTs are enabled, a signed token carrying it.
func (s *IdentityService) ResolveBearer(ctx context.Context, token string) (*model.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperror.Unauthenticated("no bearer token provided")
	}

	userID := token
	if s.tokens != nil && auth.LooksLikeJWT(token) {
		sub, err := s.tokens.Validate(token)
		if err != nil {
			return nil, apperror.Unauthenticated("invalid bearer token")
		}
		userID = sub
	}

	user, err := s.users.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthenticated("user not found for bearer token")
		}
		return nil, err
	}
	return user, nil
}

// Profile returns the user with the given public userId.
func (s *IdentityService) Profile(ctx context.Context, userID string) (*model.User, error) {
	return s.users.GetByUserID(ctx, strings.TrimSpace(userID))
}

// create assigns a fresh public userId and stores the user. Codes are random,
// so a clash is unlikely but possible; a taken code is skipped.
func (s *IdentityService) create(ctx context.Context, user *model.User) error {
	for range userIDAttempts {
		candidate := s.newUserID()
		_, err := s.users.GetByUserID(ctx, candidate)
		if err == nil {
			continue
		}
		if !errors.Is(err, apperror.ErrNotFound) {
			return err
		}

		user.UserID = candidate
		return s.users.Create(ctx, user)
	}
	return fmt.Errorf("generating user id: %d attempts all collided", userIDAttempts)
}

func (s *IdentityService) checkPassword(field, password string) error {
	if len(password) < MinPasswordLength {
		return apperror.ValidationFailed(field,
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(password) > auth.MaxPasswordBytes {
		return apperror.ValidationFailed(field,
			fmt.Sprintf("password must be %d bytes or fewer", auth.MaxPasswordBytes))
	}
	return nil
}

func (s *IdentityService) signIn(user *model.User) (*AuthResult, error) {
	if s.tokens == nil {
		return &AuthResult{User: user, Token: user.UserID}, nil
	}
	token, err := s.tokens.Generate(user.UserID)
	if err != nil {
		return nil, fmt.Errorf("issuing token for %s: %w", user.UserID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}
