package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/marketpulse/listing-insights/internal/models"
	"github.com/redis/go-redis/v9"
)

// Redis key layout:
//
//	visitors:day:<listing>:<yyyy-mm-dd>  set of visitor ids seen today
//	visitors:all:<listing>               set of visitor ids ever seen
//	session:<listing>:<visitor>          JSON of the most recent session
const (
	dayVisitorsTTL = 48 * time.Hour
	sessionTTL     = 24 * time.Hour
)

// RedisStore implements Store on Redis. Set adds give atomic first-seen
// semantics so concurrent events for the same visitor classify exactly one
// of them as unique.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Classify(ctx context.Context, listingID, visitorID string, now time.Time) (models.Novelty, error) {
	day := now.UTC().Format("2006-01-02")
	dayKey := fmt.Sprintf("visitors:day:%s:%s", listingID, day)
	allKey := fmt.Sprintf("visitors:all:%s", listingID)

	pipe := s.client.Pipeline()
	dayAdd := pipe.SAdd(ctx, dayKey, visitorID)
	pipe.Expire(ctx, dayKey, dayVisitorsTTL)
	allAdd := pipe.SAdd(ctx, allKey, visitorID)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to classify visitor: %w", err)
	}

	if dayAdd.Val() == 0 {
		return models.NoveltyRepeat, nil
	}
	if allAdd.Val() == 0 {
		return models.NoveltyReturning, nil
	}
	return models.NoveltyUnique, nil
}

func (s *RedisStore) Latest(ctx context.Context, listingID, visitorID string) (*models.VisitorSession, error) {
	key := sessionKey(listingID, visitorID)
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var sess models.VisitorSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) Save(ctx context.Context, sess *models.VisitorSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	key := sessionKey(sess.ListingID, sess.VisitorID)
	if err := s.client.Set(ctx, key, data, sessionTTL).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func sessionKey(listingID, visitorID string) string {
	return fmt.Sprintf("session:%s:%s", listingID, visitorID)
}
