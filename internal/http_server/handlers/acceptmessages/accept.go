package acceptMessages

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"mysterymsg/internal/account"
	resp "mysterymsg/internal/lib/api/response"
	sl "mysterymsg/internal/lib/logger"
	authmw "mysterymsg/internal/middleware/auth"
	"mysterymsg/internal/storage"
)

type SetRequest struct {
	AcceptMessages *bool `json:"accept_messages" validate:"required"`
}

type Response struct {
	resp.Response
	IsAcceptingMessages bool `json:"is_accepting_messages"`
}

// NewGet reports the accepting flag for the authenticated account.
func NewGet(
	log *slog.Logger,
	accounts *account.Accounts,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.acceptMessages.NewGet"

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

		accepting, err := accounts.AcceptState(ctx, userID)
		if err != nil {
			if errors.Is(err, storage.ErrUserNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("account not found"))

				return
			}

			log.Error("failed to fetch accept state", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		ResponseOK(w, r, accepting)
	}
}

// NewSet overwrites the accepting flag for the authenticated account.
func NewSet(
	log *slog.Logger,
	validate *validator.Validate,
	accounts *account.Accounts,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.acceptMessages.NewSet"

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

		var req SetRequest

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

		if err := accounts.SetAcceptState(ctx, userID, *req.AcceptMessages); err != nil {
			if errors.Is(err, storage.ErrUserNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("account not found"))

				return
			}

			log.Error("failed to update accept state", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("accept state updated", slog.Bool("accepting", *req.AcceptMessages))

		ResponseOK(w, r, *req.AcceptMessages)
	}
}

func ResponseOK(w http.ResponseWriter, r *http.Request, accepting bool) {
	render.JSON(w, r, Response{
		Response:            resp.OK(),
		IsAcceptingMessages: accepting,
	})
}
