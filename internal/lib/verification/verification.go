package verification

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"mysterymsg/internal/models"
)

// ErrDeliveryFailed means the account state change went through but the
// verification email could not be dispatched. Callers report it as a
// degraded success, never as a registration failure.
var ErrDeliveryFailed = errors.New("verification email delivery failed")

type Publisher interface {
	SendEmailJob(ctx context.Context, job models.EmailJob) error
}

const codeDigits = 6

// NewCode returns a 6-digit numeric verification code, zero-padded.
func NewCode() (string, error) {
	const op = "verification.NewCode"

	max := big.NewInt(1)
	for i := 0; i < codeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return fmt.Sprintf("%0*d", codeDigits, n), nil
}

// SendCodeEmail publishes a verification-code email job to the mail queue.
// A publish failure is reported as ErrDeliveryFailed so the caller can keep
// the already-persisted account state.
func SendCodeEmail(
	ctx context.Context,
	log *slog.Logger,
	pub Publisher,
	username, email, code string,
) error {
	job := models.EmailJob{
		Email:    email,
		Username: username,
		Code:     code,
	}

	if err := pub.SendEmailJob(ctx, job); err != nil {
		log.Error("failed to publish verification email", slog.Any("err", err))

		return ErrDeliveryFailed
	}

	return nil
}
