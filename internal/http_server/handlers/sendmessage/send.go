package sendMessage

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	resp "mysterymsg/internal/lib/api/response"
	sl "mysterymsg/internal/lib/logger"
	"mysterymsg/internal/messages"
	"mysterymsg/internal/storage"
)

type Request struct {
	Content string `json:"content" validate:"required,max=300"`
}

type Response struct {
	resp.Response
	Delivered bool `json:"delivered"`
}

// New accepts an anonymous message for the user named in the URL. The caller
// is unauthenticated and stays unrecorded: the request carries no identity
// and none is logged beyond chi's request id.
func New(
	log *slog.Logger,
	validate *validator.Validate,
	svc *messages.Service,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.sendMessage.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		username := chi.URLParam(r, "username")
		if username == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("missing username"))

			return
		}

		var req Request

		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			log.Error("Failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("Invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if _, err := svc.Submit(ctx, username, req.Content); err != nil {
			switch {
			case errors.Is(err, storage.ErrUserNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("recipient not found"))

			case errors.Is(err, storage.ErrMessagesClosed):
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, resp.Error("user is not accepting messages"))

			case errors.Is(err, messages.ErrInvalidContent):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("message content is empty or too long"))

			default:
				log.Error("failed to deliver message", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))
			}

			return
		}

		log.Info("anonymous message delivered")

		render.JSON(w, r, Response{Response: resp.OK(), Delivered: true})
	}
}
