package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/azaliaz/bookstore/internal/logger"
)

const (
	msgInternal           = "Internal server error"
	msgBookNotFound       = "Book not found"
	msgInvalidCredentials = "Invalid credentials"
	msgEmailInUse         = "Email already in use"
)

func writeError(ctx *gin.Context, status int, msg string) {
	ctx.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// badRequest answers validation failures with their itemized field errors.
func badRequest(ctx *gin.Context, err error) {
	var verr *validationError
	if errors.As(err, &verr) {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"errors": verr.fields})
		return
	}
	writeError(ctx, http.StatusBadRequest, err.Error())
}

// internalError logs the cause and answers with a generic message only.
func internalError(ctx *gin.Context, msg string, err error) {
	log := logger.Get()
	log.Error().Err(err).Str("path", ctx.FullPath()).Msg(msg)
	_ = ctx.Error(err)
	writeError(ctx, http.StatusInternalServerError, msg)
}

// recoverPanic is the last resort for anything escaping a handler.
func recoverPanic(ctx *gin.Context, recovered any) {
	log := logger.Get()
	log.Error().Any("panic", recovered).Str("path", ctx.Request.URL.Path).Msg("handler panicked")
	writeError(ctx, http.StatusInternalServerError, msgInternal)
}

// errorHandler answers 500 when a handler reported an error without writing a response.
func errorHandler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Next()
		if len(ctx.Errors) == 0 || ctx.Writer.Written() {
			return
		}
		log := logger.Get()
		log.Error().Str("errors", ctx.Errors.String()).Msg("unhandled request error")
		writeError(ctx, http.StatusInternalServerError, msgInternal)
	}
}
