package repo

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/atelier-ai/server/internal/assistant/model"
	errx "github.com/atelier-ai/server/internal/core/error"
	logx "github.com/atelier-ai/server/pkg/logger"
)

const (
	fieldInputTokens     = "input_tokens"
	fieldOutputTokens    = "output_tokens"
	fieldImagesGenerated = "images_generated"
)

// RedisUsageStore keeps a conversation's running usage counters in one hash.
// All updates go through HINCRBY inside MULTI/EXEC, so concurrent turns on
// the same conversation cannot lose updates; cost is never stored, only the
// counters.
type RedisUsageStore struct {
	rdb redis.Cmdable
}

func NewRedisUsageStore(rdb redis.Cmdable) *RedisUsageStore {
	return &RedisUsageStore{rdb: rdb}
}

func (r *RedisUsageStore) usageKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:usage", conversationID)
}

func (r *RedisUsageStore) AddUsage(ctx context.Context, conversationID string, inputTokens, outputTokens int64) (model.UsageTotals, error) {
	return r.increment(ctx, conversationID, inputTokens, outputTokens, 0)
}

func (r *RedisUsageStore) AddImage(ctx context.Context, conversationID string) (model.UsageTotals, error) {
	return r.increment(ctx, conversationID, 0, 0, 1)
}

// increment applies the deltas atomically and returns the post-update totals.
// A zero delta still reads the field's current value, which is how the full
// snapshot comes back from one round trip.
func (r *RedisUsageStore) increment(ctx context.Context, conversationID string, in, out, images int64) (model.UsageTotals, error) {
	key := r.usageKey(conversationID)

	var inCmd, outCmd, imgCmd *redis.IntCmd
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		inCmd = pipe.HIncrBy(ctx, key, fieldInputTokens, in)
		outCmd = pipe.HIncrBy(ctx, key, fieldOutputTokens, out)
		imgCmd = pipe.HIncrBy(ctx, key, fieldImagesGenerated, images)
		return nil
	})
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to update usage totals")
		return model.UsageTotals{}, errx.WrapRedis(err)
	}

	return model.UsageTotals{
		InputTokens:     inCmd.Val(),
		OutputTokens:    outCmd.Val(),
		ImagesGenerated: imgCmd.Val(),
	}, nil
}

func (r *RedisUsageStore) ReadTotals(ctx context.Context, conversationID string) (model.UsageTotals, error) {
	key := r.usageKey(conversationID)

	fields, err := r.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return model.UsageTotals{}, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to read usage totals")
		return model.UsageTotals{}, errx.WrapRedis(err)
	}

	return model.UsageTotals{
		InputTokens:     parseCounter(fields[fieldInputTokens]),
		OutputTokens:    parseCounter(fields[fieldOutputTokens]),
		ImagesGenerated: parseCounter(fields[fieldImagesGenerated]),
	}, nil
}

func parseCounter(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

var _ model.UsageStore = (*RedisUsageStore)(nil)
