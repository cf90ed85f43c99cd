package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID                  int64
	Email               string
	Username            string
	PassHash            []byte
	IsVerified          bool
	IsAcceptingMessages bool
	VerifyCode          string
	VerifyCodeExpiresAt time.Time
}

// Message is an anonymous note delivered to a user. It deliberately carries
// no sender identity; nothing about the sender is ever persisted.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type RefreshToken struct {
	TokenHash string
	UserID    int64
	ExpiresAt time.Time
}

// EmailJob is the payload published to the mail queue. The mailer binary
// consumes it and renders the verification-code template.
type EmailJob struct {
	Email    string `json:"to"`
	Username string `json:"username"`
	Code     string `json:"code"`
}
