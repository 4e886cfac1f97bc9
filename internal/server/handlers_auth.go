package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/azaliaz/bookstore/internal/auth"
	"github.com/azaliaz/bookstore/internal/domain/models"
	"github.com/azaliaz/bookstore/internal/logger"
	storerrros "github.com/azaliaz/bookstore/internal/storage/errors"
)

type userResponse struct {
	Email string `json:"email"`
}

type authResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

func (s *Server) Register(ctx *gin.Context) {
	log := logger.Get()
	var req signupRequest
	if err := s.bindJSON(ctx, &req); err != nil {
		badRequest(ctx, err)
		return
	}
	email := strings.TrimSpace(req.Email)

	_, err := s.Storage.GetUserByEmail(ctx.Request.Context(), email)
	switch {
	case err == nil:
		writeError(ctx, http.StatusBadRequest, msgEmailInUse)
		return
	case !errors.Is(err, storerrros.ErrUserNotFound):
		internalError(ctx, "Error creating user", err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		internalError(ctx, "Error creating user", err)
		return
	}
	user, err := s.Storage.SaveUser(ctx.Request.Context(), models.User{Email: email, PasswordHash: hash})
	if err != nil {
		if errors.Is(err, storerrros.ErrUserExists) {
			writeError(ctx, http.StatusBadRequest, msgEmailInUse)
			return
		}
		internalError(ctx, "Error creating user", err)
		return
	}

	token, err := s.tokens.Issue(user.UID)
	if err != nil {
		internalError(ctx, "Error creating user", err)
		return
	}
	log.Info().Str("uid", user.UID).Msg("user registered")
	ctx.JSON(http.StatusCreated, authResponse{User: userResponse{Email: user.Email}, Token: token})
}

func (s *Server) Login(ctx *gin.Context) {
	log := logger.Get()
	var req loginRequest
	if err := s.bindJSON(ctx, &req); err != nil {
		badRequest(ctx, err)
		return
	}

	user, err := s.Storage.GetUserByEmail(ctx.Request.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, storerrros.ErrUserNotFound) {
			auth.BurnCompare(req.Password)
			log.Debug().Msg("login for unknown email")
			writeError(ctx, http.StatusUnauthorized, msgInvalidCredentials)
			return
		}
		internalError(ctx, "Error logging in", err)
		return
	}
	if !auth.VerifyPassword(user.PasswordHash, req.Password) {
		log.Debug().Str("uid", user.UID).Msg("invalid password")
		writeError(ctx, http.StatusUnauthorized, msgInvalidCredentials)
		return
	}

	token, err := s.tokens.Issue(user.UID)
	if err != nil {
		internalError(ctx, "Error logging in", err)
		return
	}
	ctx.JSON(http.StatusOK, authResponse{User: userResponse{Email: user.Email}, Token: token})
}
