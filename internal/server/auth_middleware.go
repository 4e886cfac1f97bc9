package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/azaliaz/bookstore/internal/auth"
	"github.com/azaliaz/bookstore/internal/logger"
)

const uidKey = "uid"

var (
	errNoAuthHeader  = errors.New("missing authorization header")
	errBadAuthHeader = errors.New("invalid authorization header format")
)

// JWTAuthMiddleware lets a request through only with a valid bearer token and
// stores the token's user id on the request context.
func (s *Server) JWTAuthMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		log := logger.Get()

		tokenStr, err := bearerToken(ctx.GetHeader("Authorization"))
		if err != nil {
			log.Debug().Err(err).Str("path", ctx.Request.URL.Path).Msg("authorization header invalid")
			if errors.Is(err, errNoAuthHeader) {
				writeError(ctx, http.StatusUnauthorized, "Authorization header is required")
				return
			}
			writeError(ctx, http.StatusUnauthorized, "Invalid token format")
			return
		}

		uid, err := s.tokens.Verify(tokenStr)
		if err != nil {
			log.Debug().Err(err).Str("path", ctx.Request.URL.Path).Msg("validate jwt failed")
			if errors.Is(err, auth.ErrTokenExpired) {
				writeError(ctx, http.StatusUnauthorized, "Token expired")
				return
			}
			writeError(ctx, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx.Set(uidKey, uid)
		ctx.Next()
	}
}

// UserID returns the id the auth middleware verified for this request.
func UserID(ctx *gin.Context) (string, bool) {
	uid := ctx.GetString(uidKey)
	return uid, uid != ""
}

func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errNoAuthHeader
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errBadAuthHeader
	}
	return parts[1], nil
}
