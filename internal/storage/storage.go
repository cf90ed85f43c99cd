package storage

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUsernameTaken        = errors.New("username already taken by a verified account")
	ErrEmailTaken           = errors.New("email already in use")
	ErrMessagesClosed       = errors.New("user is not accepting messages")
	ErrMessageNotFound      = errors.New("message not found")
	ErrNotMessageOwner      = errors.New("message belongs to another user")
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
)
