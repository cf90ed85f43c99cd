package register

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
	"mysterymsg/internal/lib/verification"
	"mysterymsg/internal/storage"
)

type Request struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=2,max=30"`
	Pass     string `json:"password" validate:"required,min=6"`
}

type Response struct {
	resp.Response
	UserID    int64 `json:"user_id"`
	EmailSent bool  `json:"email_sent"`
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	accounts *account.Accounts,
	msgSender verification.Publisher,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.register.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			log.Error("Failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		log.Info("Request body decoded")

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("Invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		userID, code, err := accounts.Register(ctx, req.Email, req.Username, req.Pass)
		if err != nil {
			if errors.Is(err, storage.ErrUsernameTaken) {
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, resp.Error("username is already taken"))

				return
			}
			if errors.Is(err, storage.ErrEmailTaken) {
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, resp.Error("email is already in use"))

				return
			}

			log.Error("failed to register user", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("User registered", slog.Int64("id", userID))

		// Delivery failure does not roll the account back; the client gets a
		// degraded success and can ask for a resend.
		emailSent := true
		if err := verification.SendCodeEmail(ctx, log, msgSender, req.Username, req.Email, code); err != nil {
			emailSent = false
		}

		ResponseOK(w, r, userID, emailSent)
	}
}

func ResponseOK(w http.ResponseWriter, r *http.Request, userID int64, emailSent bool) {
	render.JSON(w, r, Response{
		Response:  resp.OK(),
		UserID:    userID,
		EmailSent: emailSent,
	})
}
