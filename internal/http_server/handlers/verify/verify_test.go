package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"mysterymsg/internal/account"
	"mysterymsg/internal/models"
	"mysterymsg/internal/storage"
)

type fakeUsers struct {
	user     *models.User
	verified bool
}

func (f *fakeUsers) UserByUsername(_ context.Context, username string) (models.User, error) {
	if f.user == nil || f.user.Username != username {
		return models.User{}, storage.ErrUserNotFound
	}
	u := *f.user
	u.IsVerified = u.IsVerified || f.verified
	return u, nil
}

func (f *fakeUsers) MarkVerified(context.Context, int64) error {
	f.verified = true
	return nil
}

func (f *fakeUsers) UserByEmail(context.Context, string) (models.User, error) {
	return models.User{}, storage.ErrUserNotFound
}

func (f *fakeUsers) UserByID(context.Context, int64) (models.User, error) {
	return models.User{}, storage.ErrUserNotFound
}

func (f *fakeUsers) AcceptingMessages(context.Context, int64) (bool, error) { return false, nil }

func (f *fakeUsers) RefreshToken(context.Context, string) (models.RefreshToken, error) {
	return models.RefreshToken{}, storage.ErrRefreshTokenNotFound
}

func (f *fakeUsers) UpsertUnverifiedUser(context.Context, string, string, []byte, string, time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeUsers) UpdateVerificationCode(context.Context, int64, string, time.Time) error {
	return nil
}

func (f *fakeUsers) SetAcceptingMessages(context.Context, int64, bool) error { return nil }

func (f *fakeUsers) SaveRefreshToken(context.Context, int64, string, time.Time) error { return nil }

func (f *fakeUsers) DeleteRefreshToken(context.Context, string) error { return nil }

func newHandler(users *fakeUsers) http.HandlerFunc {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	accounts := account.New(log, users, users, 10*time.Minute, time.Minute, time.Hour, "secret")
	return New(log, validator.New(), accounts)
}

func post(t *testing.T, h http.HandlerFunc, username, code string) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(map[string]string{"username": username, "code": code})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/verify", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestVerify_Success(t *testing.T) {
	users := &fakeUsers{user: &models.User{
		ID:                  1,
		Username:            "alice",
		VerifyCode:          "123456",
		VerifyCodeExpiresAt: time.Now().Add(10 * time.Minute),
	}}

	rec := post(t, newHandler(users), "alice", "123456")

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, users.verified)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Verified)
}

func TestVerify_AlreadyVerifiedIsSoft(t *testing.T) {
	users := &fakeUsers{user: &models.User{
		ID:                  1,
		Username:            "alice",
		IsVerified:          true,
		VerifyCode:          "123456",
		VerifyCodeExpiresAt: time.Now().Add(10 * time.Minute),
	}}

	rec := post(t, newHandler(users), "alice", "000000")

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestVerify_Expired(t *testing.T) {
	users := &fakeUsers{user: &models.User{
		ID:                  1,
		Username:            "alice",
		VerifyCode:          "123456",
		VerifyCodeExpiresAt: time.Now().Add(-time.Minute),
	}}

	rec := post(t, newHandler(users), "alice", "123456")

	require.Equal(t, http.StatusGone, rec.Code)
	require.False(t, users.verified)
}

func TestVerify_Mismatch(t *testing.T) {
	users := &fakeUsers{user: &models.User{
		ID:                  1,
		Username:            "alice",
		VerifyCode:          "123456",
		VerifyCodeExpiresAt: time.Now().Add(10 * time.Minute),
	}}

	rec := post(t, newHandler(users), "alice", "654321")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, users.verified)
}

func TestVerify_AccountNotFound(t *testing.T) {
	rec := post(t, newHandler(&fakeUsers{}), "nobody", "123456")

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVerify_RejectsNonNumericCode(t *testing.T) {
	rec := post(t, newHandler(&fakeUsers{}), "alice", "abc123")

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
