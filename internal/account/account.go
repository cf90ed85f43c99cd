package account

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"mysterymsg/internal/lib/jwt"
	sl "mysterymsg/internal/lib/logger"
	"mysterymsg/internal/lib/verification"
	"mysterymsg/internal/models"
	"mysterymsg/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotVerified        = errors.New("account is not verified")
	ErrAlreadyVerified    = errors.New("account is already verified")
	ErrCodeExpired        = errors.New("verification code expired")
	ErrCodeMismatch       = errors.New("verification code mismatch")
)

// Accounts owns the account lifecycle: registered (unverified) -> verified ->
// accepting or closed. is_verified only ever moves forward.
type Accounts struct {
	log         *slog.Logger
	usrSaver    UserSaver
	usrProvider UserProvider
	codeTTL     time.Duration
	accessTTL   time.Duration
	refreshTTL  time.Duration
	tokenSecret string
	now         func() time.Time
}

type UserSaver interface {
	UpsertUnverifiedUser(ctx context.Context, email, username string, passHash []byte, code string, codeExpiresAt time.Time) (int64, error)
	UpdateVerificationCode(ctx context.Context, userID int64, code string, expiresAt time.Time) error
	MarkVerified(ctx context.Context, userID int64) error
	SetAcceptingMessages(ctx context.Context, userID int64, accepting bool) error

	SaveRefreshToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error
	DeleteRefreshToken(ctx context.Context, tokenHash string) error
}

type UserProvider interface {
	UserByUsername(ctx context.Context, username string) (models.User, error)
	UserByEmail(ctx context.Context, email string) (models.User, error)
	UserByID(ctx context.Context, id int64) (models.User, error)
	AcceptingMessages(ctx context.Context, userID int64) (bool, error)
	RefreshToken(ctx context.Context, tokenHash string) (models.RefreshToken, error)
}

func New(
	log *slog.Logger,
	userSaver UserSaver,
	userProvider UserProvider,
	codeTTL, accessTTL, refreshTTL time.Duration,
	tokenSecret string,
) *Accounts {
	return &Accounts{
		log:         log,
		usrSaver:    userSaver,
		usrProvider: userProvider,
		codeTTL:     codeTTL,
		accessTTL:   accessTTL,
		refreshTTL:  refreshTTL,
		tokenSecret: tokenSecret,
		now:         time.Now,
	}
}

// Register creates an unverified account with a fresh verification code, or
// reclaims an abandoned unverified sign-up for the same username. Returns the
// user id and the code to be dispatched by email; sending is the caller's
// concern so that delivery failure never rolls back the account.
func (a *Accounts) Register(
	ctx context.Context,
	email string,
	username string,
	pass string,
) (int64, string, error) {
	const op = "account.Register"

	log := a.log.With(
		slog.String("op", op),
	)

	log.Info("Registering new user")

	passHash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return 0, "", fmt.Errorf("%s: %w", op, err)
	}

	code, err := verification.NewCode()
	if err != nil {
		log.Error("failed to generate verification code", sl.Err(err))
		return 0, "", fmt.Errorf("%s: %w", op, err)
	}

	id, err := a.usrSaver.UpsertUnverifiedUser(ctx, email, username, passHash, code, a.now().Add(a.codeTTL))
	if err != nil {
		if errors.Is(err, storage.ErrUsernameTaken) || errors.Is(err, storage.ErrEmailTaken) {
			log.Warn("registration conflict", sl.Err(err))

			return 0, "", err
		}

		log.Error("Failed to save user", sl.Err(err))

		return 0, "", fmt.Errorf("%s: %w", op, err)
	}

	return id, code, nil
}

// Verify flips the account to verified if the submitted code matches and has
// not expired. The transition is terminal; a second attempt with any code
// reports ErrAlreadyVerified and changes nothing. The code is retained after
// verification but no longer consulted.
func (a *Accounts) Verify(
	ctx context.Context,
	username string,
	code string,
) error {
	const op = "account.Verify"

	log := a.log.With(
		slog.String("op", op),
	)

	user, err := a.usrProvider.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
			return storage.ErrUserNotFound
		}

		log.Error("failed to get user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if user.IsVerified {
		return ErrAlreadyVerified
	}

	if a.now().After(user.VerifyCodeExpiresAt) {
		log.Warn("verification code expired")
		return ErrCodeExpired
	}

	if subtle.ConstantTimeCompare([]byte(user.VerifyCode), []byte(code)) != 1 {
		log.Warn("verification code mismatch")
		return ErrCodeMismatch
	}

	if err := a.usrSaver.MarkVerified(ctx, user.ID); err != nil {
		log.Error("failed to mark user as verified", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user verified", slog.Int64("uid", user.ID))

	return nil
}

// RegenerateCode issues a fresh code and expiry for an unverified account,
// invalidating the previous one. Used by the resend flow.
func (a *Accounts) RegenerateCode(
	ctx context.Context,
	email string,
) (models.User, string, error) {
	const op = "account.RegenerateCode"

	log := a.log.With(
		slog.String("op", op),
	)

	user, err := a.usrProvider.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.User{}, "", storage.ErrUserNotFound
		}

		log.Error("failed to get user", sl.Err(err))
		return models.User{}, "", fmt.Errorf("%s: %w", op, err)
	}

	if user.IsVerified {
		return models.User{}, "", ErrAlreadyVerified
	}

	code, err := verification.NewCode()
	if err != nil {
		log.Error("failed to generate verification code", sl.Err(err))
		return models.User{}, "", fmt.Errorf("%s: %w", op, err)
	}

	if err := a.usrSaver.UpdateVerificationCode(ctx, user.ID, code, a.now().Add(a.codeTTL)); err != nil {
		log.Error("failed to update verification code", sl.Err(err))
		return models.User{}, "", fmt.Errorf("%s: %w", op, err)
	}

	return user, code, nil
}

// Login checks credentials of a verified account and returns an access token
// plus a rotating refresh token.
func (a *Accounts) Login(
	ctx context.Context,
	email, password string,
) (accessToken string, refreshToken string, err error) {
	const op = "account.Login"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrProvider.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
			return "", "", ErrInvalidCredentials
		}

		log.Error("failed to get user", sl.Err(err))
		return "", "", err
	}

	if !user.IsVerified {
		return "", "", ErrNotVerified
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
		log.Info("invalid credentials", sl.Err(err))
		return "", "", ErrInvalidCredentials
	}

	accessToken, err = jwt.NewAccessToken(user, a.tokenSecret, a.accessTTL)
	if err != nil {
		log.Error("failed to generate access token", sl.Err(err))
		return "", "", err
	}

	refreshTokenValue, err := jwt.NewRefreshToken()
	if err != nil {
		log.Error("failed to generate refresh token", sl.Err(err))
		return "", "", err
	}

	err = a.usrSaver.SaveRefreshToken(ctx, user.ID, jwt.HashToken(refreshTokenValue), a.now().Add(a.refreshTTL))
	if err != nil {
		log.Error("failed to save refresh token", sl.Err(err))
		return "", "", err
	}

	log.Info("user logged in successfully", slog.Int64("uid", user.ID))
	return accessToken, refreshTokenValue, nil
}

// Refresh rotates a refresh token and mints a new access token.
func (a *Accounts) Refresh(
	ctx context.Context,
	refreshToken string,
) (string, string, error) {
	const op = "account.Refresh"

	log := a.log.With(
		slog.String("op", op),
	)

	rt, err := a.usrProvider.RefreshToken(ctx, jwt.HashToken(refreshToken))
	if err != nil {
		log.Warn("refresh token not found", sl.Err(err))
		return "", "", ErrInvalidCredentials
	}

	if a.now().After(rt.ExpiresAt) {
		log.Warn("refresh token expired")

		return "", "", ErrInvalidCredentials
	}

	user, err := a.usrProvider.UserByID(ctx, rt.UserID)
	if err != nil {
		log.Error("failed to load user", sl.Err(err))
		return "", "", ErrInvalidCredentials
	}

	accessToken, err := jwt.NewAccessToken(user, a.tokenSecret, a.accessTTL)
	if err != nil {
		log.Error("failed to generate access token", sl.Err(err))
		return "", "", err
	}

	newRefresh, err := jwt.NewRefreshToken()
	if err != nil {
		log.Error("failed to generate refresh token", sl.Err(err))
		return "", "", err
	}

	if err := a.usrSaver.SaveRefreshToken(ctx, user.ID, jwt.HashToken(newRefresh), a.now().Add(a.refreshTTL)); err != nil {
		log.Error("failed to save new refresh token", sl.Err(err))
		return "", "", err
	}

	if err := a.usrSaver.DeleteRefreshToken(ctx, rt.TokenHash); err != nil {
		log.Error("failed to delete old refresh token", sl.Err(err))
		return "", "", err
	}

	log.Info("refresh successful", slog.Int64("uid", user.ID))

	return accessToken, newRefresh, nil
}

func (a *Accounts) Logout(
	ctx context.Context,
	rawRefreshToken string,
) error {
	const op = "account.Logout"

	log := a.log.With(
		slog.String("op", op),
	)

	rt, err := a.usrProvider.RefreshToken(ctx, jwt.HashToken(rawRefreshToken))
	if err != nil {
		log.Warn("refresh token not found", slog.Any("err", err))
		return ErrInvalidCredentials
	}

	err = a.usrSaver.DeleteRefreshToken(ctx, rt.TokenHash)
	if err != nil {
		log.Error("failed to delete refresh token", slog.Any("err", err))
		return err
	}

	log.Info("logout successful")

	return nil
}

// AcceptState reports whether the account currently accepts anonymous
// messages.
func (a *Accounts) AcceptState(ctx context.Context, userID int64) (bool, error) {
	const op = "account.AcceptState"

	accepting, err := a.usrProvider.AcceptingMessages(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return false, storage.ErrUserNotFound
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	return accepting, nil
}

// SetAcceptState overwrites the accepting flag. Pure overwrite, no
// intermediate states.
func (a *Accounts) SetAcceptState(ctx context.Context, userID int64, accepting bool) error {
	const op = "account.SetAcceptState"

	if err := a.usrSaver.SetAcceptingMessages(ctx, userID, accepting); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return storage.ErrUserNotFound
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	a.log.Info("accept state updated",
		slog.Int64("uid", userID),
		slog.Bool("accepting", accepting),
	)

	return nil
}
