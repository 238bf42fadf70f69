package auth

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bookhaven/bookhaven/internal/shared"
)

// OTPSender delivers a verification code.
type OTPSender interface {
	SendOTP(ctx context.Context, email, code string) error
}

// OTPStore keeps pending registrations in Redis.
type OTPStore struct {
	client *redis.Client
}

// NewOTPStore constructs OTPStore.
func NewOTPStore(client *redis.Client) *OTPStore {
	return &OTPStore{client: client}
}

// Save stores the pending registration and resets its attempt counter.
func (s *OTPStore) Save(ctx context.Context, pending PendingRegistration, ttl time.Duration) error {
	payload, err := json.Marshal(pending)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, shared.OTPKey(pending.Email), payload, ttl)
	pipe.Del(ctx, shared.OTPAttemptsKey(pending.Email))
	_, err = pipe.Exec(ctx)
	return err
}

// Load returns the pending registration or ErrOTPExpired.
func (s *OTPStore) Load(ctx context.Context, email string) (PendingRegistration, error) {
	raw, err := s.client.Get(ctx, shared.OTPKey(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return PendingRegistration{}, ErrOTPExpired
		}
		return PendingRegistration{}, err
	}
	var pending PendingRegistration
	if err := json.Unmarshal(raw, &pending); err != nil {
		return PendingRegistration{}, fmt.Errorf("auth: decode pending registration: %w", err)
	}
	return pending, nil
}

// Attempt counts a verification attempt and returns the running total.
func (s *OTPStore) Attempt(ctx context.Context, email string, ttl time.Duration) (int64, error) {
	key := shared.OTPAttemptsKey(email)
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Delete drops the pending registration and its counter.
func (s *OTPStore) Delete(ctx context.Context, email string) error {
	return s.client.Del(ctx, shared.OTPKey(email), shared.OTPAttemptsKey(email)).Err()
}

// GenerateCode returns a uniformly random six digit code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
