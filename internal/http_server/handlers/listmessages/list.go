package listMessages

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	resp "mysterymsg/internal/lib/api/response"
	sl "mysterymsg/internal/lib/logger"
	"mysterymsg/internal/messages"
	authmw "mysterymsg/internal/middleware/auth"
	"mysterymsg/internal/models"
)

type Response struct {
	resp.Response
	Messages []models.Message `json:"messages"`
}

// New returns the authenticated account's inbox, newest first.
func New(
	log *slog.Logger,
	svc *messages.Service,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.listMessages.New"

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

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		msgs, err := svc.List(ctx, userID)
		if err != nil {
			log.Error("failed to list messages", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		if msgs == nil {
			msgs = []models.Message{}
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Messages: msgs,
		})
	}
}
