package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azaliaz/bookstore/internal/auth"
	"github.com/azaliaz/bookstore/internal/domain/models"
	storerrros "github.com/azaliaz/bookstore/internal/storage/errors"
)

func decodeAuth(t *testing.T, body []byte) authResponse {
	t.Helper()
	var resp authResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

func TestServer_register(t *testing.T) {
	s, mockStorage := newTestServer(t)
	router := s.Router()

	t.Run("success", func(t *testing.T) {
		mockStorage.EXPECT().GetUserByEmail(gomock.Any(), "test@example.com").Return(models.User{}, storerrros.ErrUserNotFound)
		mockStorage.EXPECT().SaveUser(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, user models.User) (models.User, error) {
				assert.Equal(t, "test@example.com", user.Email)
				assert.NotEqual(t, "password123", user.PasswordHash)
				assert.True(t, auth.VerifyPassword(user.PasswordHash, "password123"))
				assert.False(t, auth.VerifyPassword(user.PasswordHash, "password124"))
				user.UID = "u1"
				return user, nil
			})

		w := request(t, router, http.MethodPost, "/api/auth/signup", `{"email":"test@example.com","password":"password123"}`, "")
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		resp := decodeAuth(t, w.Body.Bytes())
		assert.Equal(t, "test@example.com", resp.User.Email)
		assert.NotContains(t, w.Body.String(), "password")

		uid, err := s.tokens.Verify(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, "u1", uid)
	})

	t.Run("email already in use", func(t *testing.T) {
		mockStorage.EXPECT().GetUserByEmail(gomock.Any(), "test@example.com").Return(models.User{UID: "u1", Email: "test@example.com"}, nil)

		w := request(t, router, http.MethodPost, "/api/auth/signup", `{"email":"test@example.com","password":"password123"}`, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, msgEmailInUse, decodeError(t, w).Error)
	})

	t.Run("duplicate caught by the store", func(t *testing.T) {
		mockStorage.EXPECT().GetUserByEmail(gomock.Any(), "race@example.com").Return(models.User{}, storerrros.ErrUserNotFound)
		mockStorage.EXPECT().SaveUser(gomock.Any(), gomock.Any()).Return(models.User{}, storerrros.ErrUserExists)

		w := request(t, router, http.MethodPost, "/api/auth/signup", `{"email":"race@example.com","password":"password123"}`, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, msgEmailInUse, decodeError(t, w).Error)
	})

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name   string
			body   string
			fields []string
		}{
			{name: "bad email", body: `{"email":"not-an-email","password":"password123"}`, fields: []string{"email"}},
			{name: "short password", body: `{"email":"a@example.com","password":"12345"}`, fields: []string{"password"}},
			{name: "empty", body: `{}`, fields: []string{"email", "password"}},
			{name: "multibyte password over 72 bytes", body: `{"email":"a@example.com","password":"` + strings.Repeat("п", 40) + `"}`, fields: []string{"password"}},
			{name: "ascii password over 72 bytes", body: `{"email":"a@example.com","password":"` + strings.Repeat("a", 73) + `"}`, fields: []string{"password"}},
			{name: "wrong type", body: `{"email":5,"password":"password123"}`, fields: []string{"email"}},
			{name: "not json", body: `email=a`, fields: []string{"body"}},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				w := request(t, router, http.MethodPost, "/api/auth/signup", tc.body, "")
				assert.Equal(t, http.StatusBadRequest, w.Code)
				assert.ElementsMatch(t, tc.fields, fields(decodeError(t, w)))
			})
		}
	})

	t.Run("password of exactly 72 bytes", func(t *testing.T) {
		password := strings.Repeat("п", 36)
		mockStorage.EXPECT().GetUserByEmail(gomock.Any(), "long@example.com").Return(models.User{}, storerrros.ErrUserNotFound)
		mockStorage.EXPECT().SaveUser(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, user models.User) (models.User, error) {
				assert.True(t, auth.VerifyPassword(user.PasswordHash, password))
				user.UID = "u2"
				return user, nil
			})

		w := request(t, router, http.MethodPost, "/api/auth/signup", `{"email":"long@example.com","password":"`+password+`"}`, "")
		assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	})

	t.Run("store failure", func(t *testing.T) {
		mockStorage.EXPECT().GetUserByEmail(gomock.Any(), "test@example.com").Return(models.User{}, storerrros.ErrUserNotFound)
		mockStorage.EXPECT().SaveUser(gomock.Any(), gomock.Any()).Return(models.User{}, errors.New("db down"))

		w := request(t, router, http.MethodPost, "/api/auth/signup", `{"email":"test@example.com","password":"password123"}`, "")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Error creating user", decodeError(t, w).Error)
		assert.NotContains(t, w.Body.String(), "db down")
	})
}

func TestServer_login(t *testing.T) {
	s, mockStorage := newTestServer(t)
	router := s.Router()

	hash, err := auth.HashPassword("password123")
	require.NoError(t, err)
	user := models.User{UID: "u1", Email: "test@example.com", PasswordHash: hash}

	t.Run("success", func(t *testing.T) {
		mockStorage.EXPECT().GetUserByEmail(gomock.Any(), "test@example.com").Return(user, nil)

		w := request(t, router, http.MethodPost, "/api/auth/login", `{"email":"test@example.com","password":"password123"}`, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resp := decodeAuth(t, w.Body.Bytes())
		assert.Equal(t, "test@example.com", resp.User.Email)

		uid, err := s.tokens.Verify(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, "u1", uid)
	})

	t.Run("wrong password and unknown email look the same", func(t *testing.T) {
		mockStorage.EXPECT().GetUserByEmail(gomock.Any(), "test@example.com").Return(user, nil)
		mockStorage.EXPECT().GetUserByEmail(gomock.Any(), "nobody@example.com").Return(models.User{}, storerrros.ErrUserNotFound)

		wrong := request(t, router, http.MethodPost, "/api/auth/login", `{"email":"test@example.com","password":"wrongpassword"}`, "")
		unknown := request(t, router, http.MethodPost, "/api/auth/login", `{"email":"nobody@example.com","password":"password123"}`, "")

		assert.Equal(t, http.StatusUnauthorized, wrong.Code)
		assert.Equal(t, http.StatusUnauthorized, unknown.Code)
		assert.Equal(t, wrong.Body.String(), unknown.Body.String())
		assert.Equal(t, msgInvalidCredentials, decodeError(t, wrong).Error)
	})

	t.Run("validation", func(t *testing.T) {
		w := request(t, router, http.MethodPost, "/api/auth/login", `{"email":"test@example.com"}`, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, []string{"password"}, fields(decodeError(t, w)))

		w = request(t, router, http.MethodPost, "/api/auth/login", `{"email":"nope","password":"x"}`, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, []string{"email"}, fields(decodeError(t, w)))
	})

	t.Run("store failure", func(t *testing.T) {
		mockStorage.EXPECT().GetUserByEmail(gomock.Any(), "test@example.com").Return(models.User{}, errors.New("timeout"))

		w := request(t, router, http.MethodPost, "/api/auth/login", `{"email":"test@example.com","password":"password123"}`, "")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Error logging in", decodeError(t, w).Error)
	})
}
