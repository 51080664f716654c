package session

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"courtside/models"
)

func testClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStore(testClient(t), zap.NewNop())

	sess := models.NewSession("34600111222", "whatsapp")
	sess.Draft.Sport = "padel"
	sess.Draft.Date = "2025-06-12"
	require.NoError(t, store.Save(ctx, sess))

	loaded, err := store.Get(ctx, "34600111222")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "padel", loaded.Draft.Sport)
	assert.Equal(t, "2025-06-12", loaded.Draft.Date)
}

func TestStoreMissingSession(t *testing.T) {
	ctx := context.Background()
	store := NewStore(testClient(t), zap.NewNop())

	loaded, err := store.Get(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestStoreMigratesLegacySession(t *testing.T) {
	ctx := context.Background()
	client := testClient(t)
	store := NewStore(client, zap.NewNop())

	// A session persisted under the pre-versioned layout: no schemaVersion,
	// a selected time but no duration.
	legacy := map[string]interface{}{
		"userId":  "34600111222",
		"channel": "whatsapp",
		"draft":   map[string]interface{}{"sport": "padel", "time": "14:00"},
	}
	blob, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, client.Set(ctx, "session:34600111222", blob, 0).Err())

	loaded, err := store.Get(ctx, "34600111222")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, models.SessionSchemaVersion, loaded.SchemaVersion)
	assert.Equal(t, 1, loaded.Draft.Duration)
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := NewStore(testClient(t), zap.NewNop())

	require.NoError(t, store.Save(ctx, models.NewSession("u1", "whatsapp")))
	require.NoError(t, store.Delete(ctx, "u1"))

	loaded, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, loaded)

	// Idempotent.
	require.NoError(t, store.Delete(ctx, "u1"))
}

func TestDedupFirstAndSecondDelivery(t *testing.T) {
	ctx := context.Background()
	dedup := NewDedup(testClient(t))

	first, err := dedup.MarkProcessed(ctx, "wamid.123")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := dedup.MarkProcessed(ctx, "wamid.123")
	require.NoError(t, err)
	assert.False(t, second)
}

func TestDedupEmptyMessageID(t *testing.T) {
	ctx := context.Background()
	dedup := NewDedup(testClient(t))

	for i := 0; i < 3; i++ {
		first, err := dedup.MarkProcessed(ctx, "")
		require.NoError(t, err)
		assert.True(t, first, "messages without an id cannot be deduplicated")
	}
}

func TestFlowGuardEnsureIsStable(t *testing.T) {
	ctx := context.Background()
	guard := NewFlowGuard(testClient(t))

	token, err := guard.Ensure(ctx, "u1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	again, err := guard.Ensure(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, token, again)
}

func TestFlowGuardResetInvalidatesToken(t *testing.T) {
	ctx := context.Background()
	guard := NewFlowGuard(testClient(t))

	old, err := guard.Ensure(ctx, "u1")
	require.NoError(t, err)

	fresh, err := guard.Reset(ctx, "u1")
	require.NoError(t, err)
	assert.NotEqual(t, old, fresh)

	current, err := guard.Current(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, fresh, current)
	assert.NotEqual(t, old, current, "a send computed under the old token must be droppable")
}
