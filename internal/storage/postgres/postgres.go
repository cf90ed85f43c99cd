package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"mysterymsg/internal/config"
	"mysterymsg/internal/models"
	"mysterymsg/internal/storage"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg *config.Config) (*PostgresRepo, error) {
	const op = "storage.postgres.New"

	dsn := dsn(cfg)

	if err := runMigrations(dsn); err != nil {
		return nil, fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	return &PostgresRepo{pool: pool}, nil
}

// UpsertUnverifiedUser creates an account in the unverified state, or reclaims
// an existing unverified record with the same username by overwriting its
// credentials and verification code. A username held by a verified account
// yields ErrUsernameTaken; an email held by another account yields
// ErrEmailTaken. The check-and-reserve is a single statement, so concurrent
// sign-ups for the same username cannot produce two records.
func (r *PostgresRepo) UpsertUnverifiedUser(
	ctx context.Context,
	email, username string,
	passHash []byte,
	code string,
	codeExpiresAt time.Time,
) (int64, error) {
	const op = "storage.postgres.UpsertUnverifiedUser"

	query := `
		INSERT INTO users (email, username, password_hash, verify_code, verify_code_expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (username) DO UPDATE
		SET email = EXCLUDED.email,
		    password_hash = EXCLUDED.password_hash,
		    verify_code = EXCLUDED.verify_code,
		    verify_code_expires_at = EXCLUDED.verify_code_expires_at
		WHERE users.is_verified = FALSE
		RETURNING id;
	`

	var id int64

	err := r.pool.QueryRow(ctx, query, email, username, string(passHash), code, codeExpiresAt).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, storage.ErrUsernameTaken
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, storage.ErrEmailTaken
		}

		return 0, fmt.Errorf("%s: failed to save user: %w", op, err)
	}

	return id, nil
}

func (r *PostgresRepo) UserByUsername(ctx context.Context, username string) (models.User, error) {
	query := `
		SELECT id, email, username, password_hash, is_verified, is_accepting_messages,
		       verify_code, verify_code_expires_at
		FROM users
		WHERE username = $1;
	`

	return r.scanUser(r.pool.QueryRow(ctx, query, username))
}

func (r *PostgresRepo) UserByEmail(ctx context.Context, email string) (models.User, error) {
	query := `
		SELECT id, email, username, password_hash, is_verified, is_accepting_messages,
		       verify_code, verify_code_expires_at
		FROM users
		WHERE email = $1;
	`

	return r.scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *PostgresRepo) UserByID(ctx context.Context, id int64) (models.User, error) {
	query := `
		SELECT id, email, username, password_hash, is_verified, is_accepting_messages,
		       verify_code, verify_code_expires_at
		FROM users
		WHERE id = $1;
	`

	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *PostgresRepo) scanUser(row pgx.Row) (models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.PassHash,
		&u.IsVerified,
		&u.IsAcceptingMessages,
		&u.VerifyCode,
		&u.VerifyCodeExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrUserNotFound
		}

		return models.User{}, err
	}

	return u, nil
}

// MarkVerified flips is_verified; the stored code is retained for audit.
func (r *PostgresRepo) MarkVerified(ctx context.Context, userID int64) error {
	query := `UPDATE users SET is_verified = TRUE WHERE id = $1`

	_, err := r.pool.Exec(ctx, query, userID)

	return err
}

// UpdateVerificationCode replaces the code and expiry of an unverified
// account. A verified account is left untouched.
func (r *PostgresRepo) UpdateVerificationCode(ctx context.Context, userID int64, code string, expiresAt time.Time) error {
	query := `
		UPDATE users
		SET verify_code = $1, verify_code_expires_at = $2
		WHERE id = $3 AND is_verified = FALSE
	`

	_, err := r.pool.Exec(ctx, query, code, expiresAt, userID)

	return err
}

func (r *PostgresRepo) AcceptingMessages(ctx context.Context, userID int64) (bool, error) {
	query := `SELECT is_accepting_messages FROM users WHERE id = $1`

	var accepting bool

	err := r.pool.QueryRow(ctx, query, userID).Scan(&accepting)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, storage.ErrUserNotFound
	}

	return accepting, err
}

func (r *PostgresRepo) SetAcceptingMessages(ctx context.Context, userID int64, accepting bool) error {
	query := `UPDATE users SET is_accepting_messages = $1 WHERE id = $2`

	tag, err := r.pool.Exec(ctx, query, accepting, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

// InsertMessage appends a message to the recipient's collection only if the
// recipient is verified and accepting. The flag check and the write are one
// statement, so a concurrent toggle-off that commits first is always observed.
func (r *PostgresRepo) InsertMessage(ctx context.Context, username string, msg models.Message) error {
	const op = "storage.postgres.InsertMessage"

	query := `
		INSERT INTO messages (id, user_id, content, created_at)
		SELECT $1, u.id, $2, $3
		FROM users u
		WHERE u.username = $4 AND u.is_verified AND u.is_accepting_messages
	`

	tag, err := r.pool.Exec(ctx, query, msg.ID, msg.Content, msg.CreatedAt, username)
	if err != nil {
		return fmt.Errorf("%s: failed to insert message: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		// Classify the rejection. An unverified account has no public link
		// yet, so it is reported the same way as a missing one.
		user, err := r.UserByUsername(ctx, username)
		if err != nil {
			return err
		}
		if !user.IsVerified {
			return storage.ErrUserNotFound
		}

		return storage.ErrMessagesClosed
	}

	return nil
}

func (r *PostgresRepo) Messages(ctx context.Context, userID int64) ([]models.Message, error) {
	const op = "storage.postgres.Messages"

	query := `
		SELECT id, content, created_at
		FROM messages
		WHERE user_id = $1
		ORDER BY created_at DESC, id
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var messages []models.Message

	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

func (r *PostgresRepo) DeleteMessage(ctx context.Context, userID int64, messageID uuid.UUID) error {
	const op = "storage.postgres.DeleteMessage"

	query := `DELETE FROM messages WHERE id = $1 AND user_id = $2`

	tag, err := r.pool.Exec(ctx, query, messageID, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		err := r.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM messages WHERE id = $1)`, messageID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if exists {
			return storage.ErrNotMessageOwner
		}

		return storage.ErrMessageNotFound
	}

	return nil
}

func (r *PostgresRepo) SaveRefreshToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	const query = `
		INSERT INTO refresh_tokens (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
	`

	_, err := r.pool.Exec(ctx, query, tokenHash, userID, expiresAt)
	return err
}

func (r *PostgresRepo) RefreshToken(ctx context.Context, tokenHash string) (models.RefreshToken, error) {
	const query = `
		SELECT token_hash, user_id, expires_at
		FROM refresh_tokens
		WHERE token_hash = $1;
	`

	var rt models.RefreshToken

	err := r.pool.QueryRow(ctx, query, tokenHash).Scan(&rt.TokenHash, &rt.UserID, &rt.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.RefreshToken{}, storage.ErrRefreshTokenNotFound
	}

	return rt, err
}

func (r *PostgresRepo) DeleteRefreshToken(ctx context.Context, tokenHash string) error {
	query := `DELETE FROM refresh_tokens WHERE token_hash = $1`

	_, err := r.pool.Exec(ctx, query, tokenHash)

	return err
}

func (r *PostgresRepo) Close() {
	r.pool.Close()
}

func runMigrations(dsn string) error {
	goose.SetBaseFS(embedMigrations)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	return goose.Up(db, "migrations")
}

func dsn(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s database=%s sslmode=%s",
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
	)
}
