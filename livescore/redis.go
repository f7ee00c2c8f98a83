package livescore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/tabletennis-bracket/models"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix   = "bracket:live:"
	liveTTL     = 6 * time.Hour
	maxAttempts = 5
)

// RedisStore shares live counters between instances. Updates use WATCH so
// two referees pressing at once never lose a point.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func liveKey(matchID int) string { return fmt.Sprintf("%s%d", keyPrefix, matchID) }

func decode(raw []byte) (models.SetScore, error) {
	var p models.SetScore
	if err := json.Unmarshal(raw, &p); err != nil {
		return models.SetScore{}, fmt.Errorf("decode live score: %w", err)
	}
	return p, nil
}

func (s *RedisStore) Get(ctx context.Context, matchID int) (models.SetScore, error) {
	raw, err := s.rdb.Get(ctx, liveKey(matchID)).Bytes()
	if err == redis.Nil {
		return models.SetScore{}, nil
	}
	if err != nil {
		return models.SetScore{}, err
	}
	return decode(raw)
}

func (s *RedisStore) Update(ctx context.Context, matchID int, fn UpdateFunc) (models.SetScore, error) {
	key := liveKey(matchID)
	var next models.SetScore

	txf := func(tx *redis.Tx) error {
		var cur models.SetScore
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case err == redis.Nil:
		case err != nil:
			return err
		default:
			if cur, err = decode(raw); err != nil {
				return err
			}
		}

		n, err := fn(cur)
		if err != nil {
			return err
		}
		b, err := json.Marshal(n)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, liveTTL)
			return nil
		})
		if err == nil {
			next = n
		}
		return err
	}

	for i := 0; i < maxAttempts; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return models.SetScore{}, err
		}
	}
	return models.SetScore{}, fmt.Errorf("%w: match %d", ErrContended, matchID)
}

func (s *RedisStore) Reset(ctx context.Context, matchID int) error {
	return s.rdb.Del(ctx, liveKey(matchID)).Err()
}
