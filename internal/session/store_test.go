package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certflow/internal/common/database"
	"certflow/internal/flow/gate"
)

func sampleSnapshot() Snapshot {
	return Snapshot{
		ID:        "s-1",
		StepIndex: 3,
		Fields:    map[string]string{"firstName": "Ada"},
		Gate: gate.Snapshot{
			State:    gate.Sent,
			Response: &gate.Response{Success: true, ID: "cert-1"},
			Attempts: 1,
		},
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute)
	now := testNow
	store.now = func() time.Time { return now }

	_, err := store.Load(ctx, "s-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, store.Save(ctx, sampleSnapshot()))
	got, err := store.Load(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.StepIndex)

	now = now.Add(2 * time.Minute)
	_, err = store.Load(ctx, "s-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, store.Save(ctx, sampleSnapshot()))
	require.NoError(t, store.Delete(ctx, "s-1"))
	_, err = store.Load(ctx, "s-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func newMiniRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "certflow:session:", ttl), mr
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	store, mr := newMiniRedisStore(t, time.Hour)

	_, err := store.Load(ctx, "s-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, store.Save(ctx, sampleSnapshot()))
	assert.True(t, mr.Exists("certflow:session:s-1"))
	assert.Equal(t, time.Hour, mr.TTL("certflow:session:s-1"))

	got, err := store.Load(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, sampleSnapshot().Fields, got.Fields)
	assert.Equal(t, "cert-1", got.Gate.Response.ID)
	assert.True(t, got.CreatedAt.Equal(testNow))

	mr.FastForward(2 * time.Hour)
	_, err = store.Load(ctx, "s-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisStore_Delete(t *testing.T) {
	ctx := context.Background()
	store, mr := newMiniRedisStore(t, 0)

	require.NoError(t, store.Save(ctx, sampleSnapshot()))
	require.NoError(t, store.Delete(ctx, "s-1"))
	assert.False(t, mr.Exists("certflow:session:s-1"))
}

func TestRedisStore_CorruptSnapshot(t *testing.T) {
	store, mr := newMiniRedisStore(t, 0)
	require.NoError(t, mr.Set("certflow:session:bad", "{not json"))

	_, err := store.Load(context.Background(), "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
	assert.Contains(t, err.Error(), "decode session bad")
}

func TestRedisStore_Unavailable(t *testing.T) {
	store, mr := newMiniRedisStore(t, 0)
	mr.Close()

	err := store.Save(context.Background(), sampleSnapshot())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save session s-1")
}

func TestRedisStore_Commands(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(&database.RedisClient{Client: client}, "certflow:session:", 10*time.Minute)

	snap := sampleSnapshot()
	data, err := json.Marshal(snap)
	require.NoError(t, err)

	mock.ExpectSet("certflow:session:s-1", data, 10*time.Minute).SetVal("OK")
	mock.ExpectGet("certflow:session:s-1").SetErr(errors.New("connection reset by peer"))
	mock.ExpectGet("certflow:session:s-2").RedisNil()

	require.NoError(t, store.Save(ctx, snap))

	_, err = store.Load(ctx, "s-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
	assert.Contains(t, err.Error(), "load session s-1")

	_, err = store.Load(ctx, "s-2")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthCheck(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, HealthCheck(ctx, NewMemoryStore(0)))

	store, mr := newMiniRedisStore(t, time.Minute)
	assert.NoError(t, HealthCheck(ctx, store))

	mr.Close()
	assert.Error(t, HealthCheck(ctx, store))
}
