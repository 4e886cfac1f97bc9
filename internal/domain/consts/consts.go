package consts

import "time"

const (
	DBCtxTimeout = 5 * time.Second
	TokenTTL     = 24 * time.Hour

	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	MinPasswordLen   = 6
	MaxPasswordBytes = 72

	UsersCollection = "users"
	BooksCollection = "books"
)
