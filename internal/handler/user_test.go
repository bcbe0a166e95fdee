package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/civicforum/constitution-platform/internal/auth"
	"github.com/civicforum/constitution-platform/internal/handler"
	"github.com/civicforum/constitution-platform/internal/model"
	sqliteRepo "github.com/civicforum/constitution-platform/internal/repository/sqlite"
	"github.com/civicforum/constitution-platform/internal/service"
)

func TestUserHandler_HandleRegister(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqliteRepo.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := handler.NewUserHandler(
		service.NewIdentityService(db, auth.NewPasswordServiceWithCost(bcrypt.MinCost), nil, logger),
		logger,
	)

	register := func(body map[string]string) *httptest.ResponseRecorder {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/api/users/register", bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		h.HandleRegister(rr, req)
		return rr
	}

	t.Run("padded name and email are normalised", func(t *testing.T) {
		rr := register(map[string]string{
			"name":     strings.Repeat(" ", 60) + "Priya" + strings.Repeat(" ", 60),
			"email":    "  Priya@Example.com ",
			"password": "12341234",
			"role":     "Expert",
		})

		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		var res struct {
			User  model.User `json:"user"`
			Token string     `json:"token"`
		}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		assert.Equal(t, "Priya", res.User.Name)
		assert.Equal(t, "priya@example.com", res.User.Email)
		assert.Equal(t, model.RoleExpert, res.User.Role)
		assert.Equal(t, res.User.UserID, res.Token)
	})

	t.Run("malformed email", func(t *testing.T) {
		rr := register(map[string]string{"name": "X", "email": "not-an-email", "password": "12341234"})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		var res handler.ErrorResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		assert.Equal(t, "email", res.Field)
	})

	t.Run("name too long after trimming", func(t *testing.T) {
		rr := register(map[string]string{
			"name":     strings.Repeat("n", service.MaxNameLength+1),
			"email":    "long@example.com",
			"password": "12341234",
		})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		var res handler.ErrorResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		assert.Equal(t, "name", res.Field)
	})
}
