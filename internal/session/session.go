// Package session holds short-lived per-user state in Redis: single-use form
// nonces and one-shot flash notices.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"ripple/internal/observability"
)

const (
	nonceKeyPrefix = "form_nonce:%d"
	flashKeyPrefix = "flash:%d"

	// NonceTTL bounds how long an issued form token stays valid.
	NonceTTL = 30 * time.Minute
	flashTTL = 10 * time.Minute
)

// Store manages nonces and flash messages for authenticated users.
type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func nonceKey(userID uint) string {
	return fmt.Sprintf(nonceKeyPrefix, userID)
}

func flashKey(userID uint) string {
	return fmt.Sprintf(flashKeyPrefix, userID)
}

// IssueNonce mints a fresh single-use token for the user's next form
// submission. Issuing again overwrites any previous token, so only the most
// recently rendered form can submit.
func (s *Store) IssueNonce(ctx context.Context, userID uint) (string, error) {
	token := uuid.NewString()
	if err := s.rdb.Set(ctx, nonceKey(userID), token, NonceTTL).Err(); err != nil {
		return "", fmt.Errorf("failed to issue nonce: %w", err)
	}
	return token, nil
}

// consumeNonceScript deletes the stored token only when it equals the
// submitted one, in a single Redis round trip.
var consumeNonceScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ConsumeNonce removes the stored token and reports whether the submitted one
// matched it. A second submission with the same token finds nothing and is
// rejected, which is what makes refresh-resubmits no-ops. A mismatched token
// is rejected without consuming anything, so a stale tab cannot burn the
// token a freshly rendered form is about to submit.
func (s *Store) ConsumeNonce(ctx context.Context, userID uint, token string) (bool, error) {
	if token == "" {
		observability.NonceRejections.Inc()
		return false, nil
	}
	n, err := consumeNonceScript.Run(ctx, s.rdb, []string{nonceKey(userID)}, token).Int()
	if err != nil {
		return false, fmt.Errorf("failed to consume nonce: %w", err)
	}
	if n == 0 {
		observability.NonceRejections.Inc()
		return false, nil
	}
	return true, nil
}

// PushFlash queues a notice to show the user on their next page load.
func (s *Store) PushFlash(ctx context.Context, userID uint, message string) error {
	key := flashKey(userID)
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, message)
	pipe.Expire(ctx, key, flashTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push flash: %w", err)
	}
	return nil
}

// PopFlashes drains and returns all pending notices for the user.
func (s *Store) PopFlashes(ctx context.Context, userID uint) ([]string, error) {
	key := flashKey(userID)
	pipe := s.rdb.TxPipeline()
	lrange := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to pop flashes: %w", err)
	}
	return lrange.Val(), nil
}
