package storerrros

import "errors"

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
	ErrBookNoExist  = errors.New("book does not exist")
)
