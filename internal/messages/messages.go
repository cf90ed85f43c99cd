package messages

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	sl "mysterymsg/internal/lib/logger"
	"mysterymsg/internal/models"
	"mysterymsg/internal/storage"
)

// MaxContentLen bounds a single anonymous message.
const MaxContentLen = 300

var ErrInvalidContent = errors.New("message content is empty or too long")

type Store interface {
	InsertMessage(ctx context.Context, username string, msg models.Message) error
	Messages(ctx context.Context, userID int64) ([]models.Message, error)
	DeleteMessage(ctx context.Context, userID int64, messageID uuid.UUID) error
}

// Service handles the anonymous inbox: public submission, owner-side listing
// and deletion. Nothing about a sender is accepted, derived, or stored.
type Service struct {
	log   *slog.Logger
	store Store
	now   func() time.Time
}

func New(log *slog.Logger, store Store) *Service {
	return &Service{
		log:   log,
		store: store,
		now:   time.Now,
	}
}

// Submit appends an anonymous message to the recipient's collection. The
// accepting-flag check happens atomically with the write in the store, so a
// toggle-off that commits first always wins.
func (s *Service) Submit(ctx context.Context, username, content string) (models.Message, error) {
	const op = "messages.Submit"

	log := s.log.With(slog.String("op", op))

	if strings.TrimSpace(content) == "" || len(content) > MaxContentLen {
		return models.Message{}, ErrInvalidContent
	}

	msg := models.Message{
		ID:        uuid.New(),
		Content:   content,
		CreatedAt: s.now(),
	}

	if err := s.store.InsertMessage(ctx, username, msg); err != nil {
		switch {
		case errors.Is(err, storage.ErrUserNotFound):
			log.Warn("recipient not found")
			return models.Message{}, storage.ErrUserNotFound
		case errors.Is(err, storage.ErrMessagesClosed):
			log.Info("recipient is not accepting messages")
			return models.Message{}, storage.ErrMessagesClosed
		}

		log.Error("failed to insert message", sl.Err(err))
		return models.Message{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("message delivered")

	return msg, nil
}

// List returns the owner's messages, newest first.
func (s *Service) List(ctx context.Context, userID int64) ([]models.Message, error) {
	const op = "messages.List"

	msgs, err := s.store.Messages(ctx, userID)
	if err != nil {
		s.log.Error("failed to list messages", slog.String("op", op), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return msgs, nil
}

// Delete removes one message irrevocably. Only the owning account may delete
// it.
func (s *Service) Delete(ctx context.Context, userID int64, messageID uuid.UUID) error {
	const op = "messages.Delete"

	log := s.log.With(slog.String("op", op))

	if err := s.store.DeleteMessage(ctx, userID, messageID); err != nil {
		switch {
		case errors.Is(err, storage.ErrMessageNotFound):
			return storage.ErrMessageNotFound
		case errors.Is(err, storage.ErrNotMessageOwner):
			log.Warn("delete attempt on foreign message", slog.Int64("uid", userID))
			return storage.ErrNotMessageOwner
		}

		log.Error("failed to delete message", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("message deleted", slog.Int64("uid", userID))

	return nil
}
