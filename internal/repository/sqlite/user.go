package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/civicforum/constitution-platform/internal/apperror"
	"github.com/civicforum/constitution-platform/internal/model"
	"github.com/civicforum/constitution-platform/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, user_id, name, email, role, password, google_id, picture, created_at, updated_at`

// Create inserts a new user. The caller supplies UserID; ID and timestamps are
// assigned here. A clash on email, user_id or google_id becomes a Conflict.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = model.RoleCitizen
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.UserID,
		user.Name,
		user.Email,
		string(user.Role),
		user.Password,
		user.GoogleID,
		user.Picture,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict(uniqueUserMessage(err))
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}

	return nil
}

func uniqueUserMessage(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "users.email"):
		return "email is already registered"
	case strings.Contains(msg, "users.google_id"):
		return "google account is already linked to another user"
	case strings.Contains(msg, "users.user_id"):
		return "user id is already taken"
	}
	return "user already exists"
}

// GetUserByID retrieves a user by internal ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUserWhere(ctx, "id", id)
}

// GetByUserID retrieves a user by their public code.
func (db *DB) GetByUserID(ctx context.Context, userID string) (*model.User, error) {
	return db.getUserWhere(ctx, "user_id", userID)
}

// GetByEmail retrieves a user by (lower-cased) email.
func (db *DB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUserWhere(ctx, "email", strings.ToLower(email))
}

// GetByGoogleID retrieves a user by their federated Google subject.
func (db *DB) GetByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	return db.getUserWhere(ctx, "google_id", googleID)
}

// getUserWhere is shared by the lookups above. column is always a constant
// from this file, never user input.
func (db *DB) getUserWhere(ctx context.Context, column, value string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, value)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", value)
		}
		return nil, fmt.Errorf("sqlite: getting user by %s: %w", column, err)
	}
	return u, nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	var (
		u        model.User
		role     string
		googleID sql.NullString
	)
	err := row.Scan(
		&u.ID,
		&u.UserID,
		&u.Name,
		&u.Email,
		&role,
		&u.Password,
		&googleID,
		&u.Picture,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	if googleID.Valid {
		u.GoogleID = &googleID.String
	}
	return &u, nil
}

// UpdatePassword replaces the placeholder credential.
func (db *DB) UpdatePassword(ctx context.Context, id, password string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET password = ?, updated_at = ? WHERE id = ?`,
		password, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating password for %s: %w", id, err)
	}
	return expectOneRow(result, "user", id)
}

// LinkGoogle attaches a Google identity (and refreshes the picture) on an
// existing account, e.g. when someone who registered by email signs in with Google.
func (db *DB) LinkGoogle(ctx context.Context, id, googleID, picture string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET google_id = ?, picture = ?, updated_at = ? WHERE id = ?`,
		googleID, picture, time.Now().UTC(), id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict(uniqueUserMessage(err))
		}
		return fmt.Errorf("sqlite: linking google account for %s: %w", id, err)
	}
	return expectOneRow(result, "user", id)
}

// expectOneRow turns "0 rows affected" into NotFound.
func expectOneRow(result sql.Result, resource, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
