package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atelier-ai/server/internal/assistant/model"
	errx "github.com/atelier-ai/server/internal/core/error"
	logx "github.com/atelier-ai/server/pkg/logger"
)

type RedisTurnStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisTurnStore(rdb redis.Cmdable, ttl time.Duration) *RedisTurnStore {
	return &RedisTurnStore{rdb: rdb, ttl: ttl}
}

func (r *RedisTurnStore) turnsKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:turns", conversationID)
}

func (r *RedisTurnStore) AppendTurn(ctx context.Context, conversationID string, turn *model.Turn) error {
	b, err := json.Marshal(turn)
	if err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to marshal turn")
		return fmt.Errorf("marshal turn: %w", err)
	}
	key := r.turnsKey(conversationID)

	// append turn
	if err := r.rdb.RPush(ctx, key, b).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to push turn to redis")
		return errx.WrapRedis(err)
	}
	// extend TTL on touch
	if r.ttl > 0 {
		if ok, err := r.rdb.Expire(ctx, key, r.ttl).Result(); err != nil {
			logx.Error().Err(err).Str("key", key).Msg("failed to set expire")
			return errx.WrapRedis(err)
		} else if !ok {
			logx.Warn().Str("key", key).Dur("ttl", r.ttl).Msg("failed to set TTL on transcript key")
		}
	}
	return nil
}

func (r *RedisTurnStore) LoadTurns(ctx context.Context, conversationID string) ([]*model.Turn, error) {
	key := r.turnsKey(conversationID)

	rows, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return []*model.Turn{}, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load transcript from redis")
		return nil, errx.WrapRedis(err)
	}

	turns := make([]*model.Turn, 0, len(rows))
	for i, s := range rows {
		var t model.Turn
		if err := json.Unmarshal([]byte(s), &t); err != nil {
			logx.Error().Err(err).Str("conversation_id", conversationID).Int("index", i).Msg("failed to unmarshal turn")
			return nil, fmt.Errorf("unmarshal turn at index %d: %w", i, err)
		}
		turns = append(turns, &t)
	}
	return turns, nil
}

func (r *RedisTurnStore) ClearTurns(ctx context.Context, conversationID string) error {
	key := r.turnsKey(conversationID)
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete transcript from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.TurnStore = (*RedisTurnStore)(nil)
