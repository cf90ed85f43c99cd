package account

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"mysterymsg/internal/models"
	"mysterymsg/internal/storage"
)

// fakeStore mirrors the postgres repo's semantics in memory: the upsert is
// atomic under one lock, username and email are unique, and a verified
// username can never be reclaimed.
type fakeStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[string]*models.User // keyed by username
	tokens map[string]models.RefreshToken
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID: 1,
		users:  make(map[string]*models.User),
		tokens: make(map[string]models.RefreshToken),
	}
}

func (f *fakeStore) UpsertUnverifiedUser(_ context.Context, email, username string, passHash []byte, code string, codeExpiresAt time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.Email == email && u.Username != username {
			return 0, storage.ErrEmailTaken
		}
	}

	if existing, ok := f.users[username]; ok {
		if existing.IsVerified {
			return 0, storage.ErrUsernameTaken
		}
		existing.Email = email
		existing.PassHash = passHash
		existing.VerifyCode = code
		existing.VerifyCodeExpiresAt = codeExpiresAt
		return existing.ID, nil
	}

	u := &models.User{
		ID:                  f.nextID,
		Email:               email,
		Username:            username,
		PassHash:            passHash,
		IsAcceptingMessages: true,
		VerifyCode:          code,
		VerifyCodeExpiresAt: codeExpiresAt,
	}
	f.nextID++
	f.users[username] = u

	return u.ID, nil
}

func (f *fakeStore) UpdateVerificationCode(_ context.Context, userID int64, code string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.ID == userID && !u.IsVerified {
			u.VerifyCode = code
			u.VerifyCodeExpiresAt = expiresAt
		}
	}
	return nil
}

func (f *fakeStore) MarkVerified(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.ID == userID {
			u.IsVerified = true
		}
	}
	return nil
}

func (f *fakeStore) SetAcceptingMessages(_ context.Context, userID int64, accepting bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.ID == userID {
			u.IsAcceptingMessages = accepting
			return nil
		}
	}
	return storage.ErrUserNotFound
}

func (f *fakeStore) SaveRefreshToken(_ context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.tokens[tokenHash] = models.RefreshToken{TokenHash: tokenHash, UserID: userID, ExpiresAt: expiresAt}
	return nil
}

func (f *fakeStore) DeleteRefreshToken(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.tokens, tokenHash)
	return nil
}

func (f *fakeStore) UserByUsername(_ context.Context, username string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[username]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}
	return *u, nil
}

func (f *fakeStore) UserByEmail(_ context.Context, email string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.Email == email {
			return *u, nil
		}
	}
	return models.User{}, storage.ErrUserNotFound
}

func (f *fakeStore) UserByID(_ context.Context, id int64) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.ID == id {
			return *u, nil
		}
	}
	return models.User{}, storage.ErrUserNotFound
}

func (f *fakeStore) AcceptingMessages(_ context.Context, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.ID == userID {
			return u.IsAcceptingMessages, nil
		}
	}
	return false, storage.ErrUserNotFound
}

func (f *fakeStore) RefreshToken(_ context.Context, tokenHash string) (models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rt, ok := f.tokens[tokenHash]
	if !ok {
		return models.RefreshToken{}, storage.ErrRefreshTokenNotFound
	}
	return rt, nil
}

func newTestAccounts(store *fakeStore, now func() time.Time) *Accounts {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	a := New(log, store, store, 10*time.Minute, 15*time.Minute, time.Hour, "test-secret")
	if now != nil {
		a.now = now
	}
	return a
}

func TestRegister_FreshAccount(t *testing.T) {
	store := newFakeStore()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := newTestAccounts(store, func() time.Time { return base })

	id, code, err := a.Register(context.Background(), "alice@example.com", "alice", "secret123")
	require.NoError(t, err)
	require.NotZero(t, id)
	require.Len(t, code, 6)

	user, err := store.UserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.False(t, user.IsVerified)
	require.Equal(t, code, user.VerifyCode)
	require.True(t, user.VerifyCodeExpiresAt.After(base))
	require.NoError(t, bcrypt.CompareHashAndPassword(user.PassHash, []byte("secret123")))
}

func TestRegister_ReclaimsUnverified(t *testing.T) {
	store := newFakeStore()
	a := newTestAccounts(store, nil)

	id1, code1, err := a.Register(context.Background(), "alice@example.com", "alice", "first")
	require.NoError(t, err)

	id2, code2, err := a.Register(context.Background(), "alice@example.com", "alice", "second")
	require.NoError(t, err)

	require.Equal(t, id1, id2, "re-registration must reuse the record")
	require.NotEqual(t, code1, code2, "a new code must be issued")
	require.Len(t, store.users, 1)

	user, err := store.UserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword(user.PassHash, []byte("second")))
}

func TestRegister_VerifiedUsernameTaken(t *testing.T) {
	store := newFakeStore()
	a := newTestAccounts(store, nil)

	_, code, err := a.Register(context.Background(), "alice@example.com", "alice", "pass12")
	require.NoError(t, err)
	require.NoError(t, a.Verify(context.Background(), "alice", code))

	_, _, err = a.Register(context.Background(), "other@example.com", "alice", "pass34")
	require.ErrorIs(t, err, storage.ErrUsernameTaken)
}

func TestRegister_EmailTaken(t *testing.T) {
	store := newFakeStore()
	a := newTestAccounts(store, nil)

	_, _, err := a.Register(context.Background(), "alice@example.com", "alice", "pass12")
	require.NoError(t, err)

	_, _, err = a.Register(context.Background(), "alice@example.com", "bob", "pass34")
	require.ErrorIs(t, err, storage.ErrEmailTaken)
}

func TestVerify_FlipsExactlyOnce(t *testing.T) {
	store := newFakeStore()
	a := newTestAccounts(store, nil)

	_, code, err := a.Register(context.Background(), "alice@example.com", "alice", "pass12")
	require.NoError(t, err)

	require.NoError(t, a.Verify(context.Background(), "alice", code))

	user, err := store.UserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.True(t, user.IsVerified)
	require.Equal(t, code, user.VerifyCode, "code is retained for audit")

	// Any further attempt, correct code or not, is a no-op.
	require.ErrorIs(t, a.Verify(context.Background(), "alice", code), ErrAlreadyVerified)
	require.ErrorIs(t, a.Verify(context.Background(), "alice", "000000"), ErrAlreadyVerified)

	user, err = store.UserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.True(t, user.IsVerified)
}

func TestVerify_ExpiredCode(t *testing.T) {
	store := newFakeStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := newTestAccounts(store, func() time.Time { return now })

	_, code, err := a.Register(context.Background(), "alice@example.com", "alice", "pass12")
	require.NoError(t, err)

	now = now.Add(11 * time.Minute)

	require.ErrorIs(t, a.Verify(context.Background(), "alice", code), ErrCodeExpired)

	user, err := store.UserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.False(t, user.IsVerified)
}

func TestVerify_CodeMismatch(t *testing.T) {
	store := newFakeStore()
	a := newTestAccounts(store, nil)

	_, code, err := a.Register(context.Background(), "alice@example.com", "alice", "pass12")
	require.NoError(t, err)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	require.ErrorIs(t, a.Verify(context.Background(), "alice", wrong), ErrCodeMismatch)

	user, err := store.UserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.False(t, user.IsVerified)
}

func TestVerify_UnknownAccount(t *testing.T) {
	a := newTestAccounts(newFakeStore(), nil)

	err := a.Verify(context.Background(), "nobody", "123456")
	require.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestRegenerateCode(t *testing.T) {
	store := newFakeStore()
	a := newTestAccounts(store, nil)

	_, code, err := a.Register(context.Background(), "alice@example.com", "alice", "pass12")
	require.NoError(t, err)

	user, newCode, err := a.RegenerateCode(context.Background(), "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, "alice", user.Username)
	require.NotEqual(t, code, newCode)

	// Verified accounts never get a new code.
	require.NoError(t, a.Verify(context.Background(), "alice", newCode))
	_, _, err = a.RegenerateCode(context.Background(), "alice@example.com")
	require.ErrorIs(t, err, ErrAlreadyVerified)
}

func TestLogin_RequiresVerifiedAccount(t *testing.T) {
	store := newFakeStore()
	a := newTestAccounts(store, nil)

	_, code, err := a.Register(context.Background(), "alice@example.com", "alice", "pass12")
	require.NoError(t, err)

	_, _, err = a.Login(context.Background(), "alice@example.com", "pass12")
	require.ErrorIs(t, err, ErrNotVerified)

	require.NoError(t, a.Verify(context.Background(), "alice", code))

	_, _, err = a.Login(context.Background(), "alice@example.com", "wrongpass")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	access, refreshTok, err := a.Login(context.Background(), "alice@example.com", "pass12")
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refreshTok)
}

func TestRefresh_RotatesToken(t *testing.T) {
	store := newFakeStore()
	a := newTestAccounts(store, nil)

	_, code, err := a.Register(context.Background(), "alice@example.com", "alice", "pass12")
	require.NoError(t, err)
	require.NoError(t, a.Verify(context.Background(), "alice", code))

	_, refreshTok, err := a.Login(context.Background(), "alice@example.com", "pass12")
	require.NoError(t, err)

	access2, refresh2, err := a.Refresh(context.Background(), refreshTok)
	require.NoError(t, err)
	require.NotEmpty(t, access2)
	require.NotEqual(t, refreshTok, refresh2)

	// The old token is gone after rotation.
	_, _, err = a.Refresh(context.Background(), refreshTok)
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogout_InvalidatesToken(t *testing.T) {
	store := newFakeStore()
	a := newTestAccounts(store, nil)

	_, code, err := a.Register(context.Background(), "alice@example.com", "alice", "pass12")
	require.NoError(t, err)
	require.NoError(t, a.Verify(context.Background(), "alice", code))

	_, refreshTok, err := a.Login(context.Background(), "alice@example.com", "pass12")
	require.NoError(t, err)

	require.NoError(t, a.Logout(context.Background(), refreshTok))
	require.ErrorIs(t, a.Logout(context.Background(), refreshTok), ErrInvalidCredentials)
}

func TestAcceptState_Toggle(t *testing.T) {
	store := newFakeStore()
	a := newTestAccounts(store, nil)

	id, code, err := a.Register(context.Background(), "alice@example.com", "alice", "pass12")
	require.NoError(t, err)
	require.NoError(t, a.Verify(context.Background(), "alice", code))

	accepting, err := a.AcceptState(context.Background(), id)
	require.NoError(t, err)
	require.True(t, accepting, "verified accounts start accepting")

	require.NoError(t, a.SetAcceptState(context.Background(), id, false))

	accepting, err = a.AcceptState(context.Background(), id)
	require.NoError(t, err)
	require.False(t, accepting)

	_, err = a.AcceptState(context.Background(), 9999)
	require.ErrorIs(t, err, storage.ErrUserNotFound)
}
