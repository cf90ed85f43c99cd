package resendCode

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
	Email string `json:"email" validate:"required,email"`
}

type Response struct {
	resp.Response
}

// Cooldowner throttles resends per email address across instances.
type Cooldowner interface {
	AcquireResendCooldown(ctx context.Context, email string, ttl time.Duration) (bool, error)
}

// New resends the verification code for an unverified account. The endpoint
// answers 200 whether or not the email maps to an account, so it cannot be
// used to probe for registered addresses.
func New(
	log *slog.Logger,
	validate *validator.Validate,
	accounts *account.Accounts,
	msgSender verification.Publisher,
	cooldown Cooldowner,
	cooldownTTL time.Duration,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.resendCode.New"

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

		won, err := cooldown.AcquireResendCooldown(ctx, req.Email, cooldownTTL)
		if err != nil {
			log.Error("failed to check resend cooldown", sl.Err(err))
		}
		if err == nil && !won {
			render.Status(r, http.StatusTooManyRequests)
			render.JSON(w, r, resp.Error("please wait before requesting another code"))

			return
		}

		user, code, err := accounts.RegenerateCode(ctx, req.Email)
		if err != nil {
			if errors.Is(err, storage.ErrUserNotFound) || errors.Is(err, account.ErrAlreadyVerified) {
				log.Info("resend skipped")

				ResponseOK(w, r)

				return
			}

			log.Error("failed to regenerate verification code", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		if err := verification.SendCodeEmail(ctx, log, msgSender, user.Username, user.Email, code); err != nil {
			log.Error("Failed to send verification email", sl.Err(err))
		}

		log.Info("verification code resent", slog.Int64("uid", user.ID))

		ResponseOK(w, r)
	}
}

func ResponseOK(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, Response{
		Response: resp.OK(),
	})
}
