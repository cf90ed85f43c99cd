package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisRepo struct {
	client *redis.Client
}

func New(ctx context.Context, addr, pass string, db int) (*RedisRepo, error) {
	const op = "storage.redis.New"

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     pass,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RedisRepo{
		client: client,
	}, nil
}

// AcquireResendCooldown reserves the right to resend a verification code to
// the given email. Returns true if the caller won the slot, false while a
// previous resend is still cooling down. SETNX keeps it atomic across API
// instances.
func (r *RedisRepo) AcquireResendCooldown(ctx context.Context, email string, ttl time.Duration) (bool, error) {
	const op = "storage.redis.AcquireResendCooldown"

	key := fmt.Sprintf("verify:resend:%s", email)

	success, err := r.client.SetNX(ctx, key, "pending", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return success, nil
}

func (r *RedisRepo) Close() {
	r.client.Close()
}
