package repo

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-ai/server/internal/assistant/model"
)

func newTestClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

func TestTurnStoreAppendLoadRoundTrip(t *testing.T) {
	rdb, _ := newTestClient(t)
	store := NewRedisTurnStore(rdb, time.Hour)
	ctx := context.Background()

	raw := json.RawMessage(`{"message":"hi","metadata":{"type":"info"}}`)
	in := []*model.Turn{
		{ID: "t1", Role: model.RoleUser, Content: "hello", CreatedAt: time.Now().UTC().Truncate(time.Second)},
		{ID: "t2", Role: model.RoleAssistant, Content: "hi", ContentJSON: raw, CreatedAt: time.Now().UTC().Truncate(time.Second)},
	}
	for _, turn := range in {
		require.NoError(t, store.AppendTurn(ctx, "c1", turn))
	}

	out, err := store.LoadTurns(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "t1", out[0].ID)
	assert.Equal(t, model.RoleUser, out[0].Role)
	assert.Equal(t, "hello", out[0].Content)
	assert.Equal(t, "t2", out[1].ID)
	assert.JSONEq(t, string(raw), string(out[1].ContentJSON))
}

func TestTurnStoreLoadMissingConversationIsEmpty(t *testing.T) {
	rdb, _ := newTestClient(t)
	store := NewRedisTurnStore(rdb, time.Hour)

	out, err := store.LoadTurns(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestTurnStoreTTLRefreshedOnAppend(t *testing.T) {
	rdb, mr := newTestClient(t)
	store := NewRedisTurnStore(rdb, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.AppendTurn(ctx, "c1", &model.Turn{ID: "t1", Role: model.RoleUser, Content: "a"}))
	assert.Equal(t, time.Hour, mr.TTL("conversation:c1:turns"))

	mr.FastForward(30 * time.Minute)
	require.NoError(t, store.AppendTurn(ctx, "c1", &model.Turn{ID: "t2", Role: model.RoleUser, Content: "b"}))
	assert.Equal(t, time.Hour, mr.TTL("conversation:c1:turns"))
}

func TestTurnStoreClear(t *testing.T) {
	rdb, _ := newTestClient(t)
	store := NewRedisTurnStore(rdb, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.AppendTurn(ctx, "c1", &model.Turn{ID: "t1", Role: model.RoleUser, Content: "a"}))
	require.NoError(t, store.ClearTurns(ctx, "c1"))

	out, err := store.LoadTurns(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, out)

	// clearing an absent conversation is a no-op
	require.NoError(t, store.ClearTurns(ctx, "never-existed"))
}

func TestTurnStoreConversationsAreIsolated(t *testing.T) {
	rdb, _ := newTestClient(t)
	store := NewRedisTurnStore(rdb, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.AppendTurn(ctx, "c1", &model.Turn{ID: "t1", Role: model.RoleUser, Content: "a"}))
	require.NoError(t, store.AppendTurn(ctx, "c2", &model.Turn{ID: "t2", Role: model.RoleUser, Content: "b"}))
	require.NoError(t, store.ClearTurns(ctx, "c1"))

	out, err := store.LoadTurns(ctx, "c2")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "t2", out[0].ID)
}
