package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	StatePrefix  = "oauth:state:"
	CodePrefix   = "oauth:code:"
	ReportPrefix = "oauth:report:"

	// ReportTTL bounds how long a rendered callback page has to claim its outcome.
	ReportTTL = time.Minute
)

// StateStore keeps the single-use values of the OAuth round trip: issued
// state nonces and redeemed authorization codes.
type StateStore interface {
	SaveState(ctx context.Context, nonce, provider string) error
	// ConsumeState removes the nonce and returns the provider it was issued
	// for. ok is false when the nonce is unknown, expired or already used.
	ConsumeState(ctx context.Context, nonce string) (provider string, ok bool, err error)
	// MarkCodeUsed returns false when the code had already been marked.
	MarkCodeUsed(ctx context.Context, provider, code string) (bool, error)
}

// ReportStore holds a popup's outcome until its callback page has loaded
// and claims it.
type ReportStore interface {
	SaveReport(ctx context.Context, token string, payload []byte) error
	// ConsumeReport hands the payload out once. ok is false for unknown,
	// expired or already claimed tokens.
	ConsumeReport(ctx context.Context, token string) (payload []byte, ok bool, err error)
}

type RedisStateStore struct {
	client   *redis.Client
	stateTTL time.Duration
	codeTTL  time.Duration
}

func NewRedisStateStore(client *redis.Client, stateTTL, codeTTL time.Duration) *RedisStateStore {
	return &RedisStateStore{
		client:   client,
		stateTTL: stateTTL,
		codeTTL:  codeTTL,
	}
}

func (s *RedisStateStore) SaveState(ctx context.Context, nonce, provider string) error {
	return s.client.SetNX(ctx, StatePrefix+nonce, provider, s.stateTTL).Err()
}

func (s *RedisStateStore) ConsumeState(ctx context.Context, nonce string) (string, bool, error) {
	if nonce == "" {
		return "", false, nil
	}
	provider, err := s.client.GetDel(ctx, StatePrefix+nonce).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return provider, true, nil
}

func (s *RedisStateStore) MarkCodeUsed(ctx context.Context, provider, code string) (bool, error) {
	return s.client.SetNX(ctx, CodeKey(provider, code), "1", s.codeTTL).Result()
}

// CodeKey hashes the code so raw authorization codes never reach Redis.
func CodeKey(provider, code string) string {
	sum := sha256.Sum256([]byte(code))
	return CodePrefix + provider + ":" + hex.EncodeToString(sum[:])
}

func (s *RedisStateStore) SaveReport(ctx context.Context, token string, payload []byte) error {
	return s.client.Set(ctx, ReportPrefix+token, payload, ReportTTL).Err()
}

func (s *RedisStateStore) ConsumeReport(ctx context.Context, token string) ([]byte, bool, error) {
	if token == "" {
		return nil, false, nil
	}
	payload, err := s.client.GetDel(ctx, ReportPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

func (s *RedisStateStore) IsReady(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStateStore) Name() string {
	return "StateStore[redis]"
}

func (s *RedisStateStore) Shutdown(ctx context.Context) error {
	return s.client.Close()
}
