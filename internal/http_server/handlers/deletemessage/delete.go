package deleteMessage

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	resp "mysterymsg/internal/lib/api/response"
	sl "mysterymsg/internal/lib/logger"
	"mysterymsg/internal/messages"
	authmw "mysterymsg/internal/middleware/auth"
	"mysterymsg/internal/storage"
)

type Response struct {
	resp.Response
	Deleted bool `json:"deleted"`
}

// New deletes one of the authenticated account's messages. A foreign message
// id is denied with the same wording as authentication failure, so owners of
// other inboxes cannot be probed.
func New(
	log *slog.Logger,
	svc *messages.Service,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.deleteMessage.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID, ok := authmw.UserID(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("unauthorized"))

			return
		}

		messageID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("invalid message id"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := svc.Delete(ctx, userID, messageID); err != nil {
			switch {
			case errors.Is(err, storage.ErrMessageNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("message not found"))

			case errors.Is(err, storage.ErrNotMessageOwner):
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, resp.Error("forbidden"))

			default:
				log.Error("failed to delete message", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))
			}

			return
		}

		log.Info("message deleted")

		render.JSON(w, r, Response{Response: resp.OK(), Deleted: true})
	}
}
