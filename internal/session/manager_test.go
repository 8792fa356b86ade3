package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certflow/internal/common/config"
	"certflow/internal/flow/gate"
)

type failingStore struct {
	*MemoryStore
	err error
}

func (f *failingStore) Save(context.Context, Snapshot) error { return f.err }

func sequentialIDs() ManagerOption {
	n := 0
	return WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("s-%d", n)
	})
}

func TestManager_StartAndGet(t *testing.T) {
	ctx := context.Background()
	m := NewManager(testDefinition(), testDeps(&stubTransport{}), nil, sequentialIDs())

	s, err := m.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s-1", s.ID())

	got, err := m.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = m.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_EvictThenRestore(t *testing.T) {
	ctx := context.Background()
	now := testNow
	deps := testDeps(&stubTransport{})
	deps.Now = func() time.Time { return now }
	m := NewManager(testDefinition(), deps, NewMemoryStore(0), sequentialIDs())

	s, err := m.Start(ctx)
	require.NoError(t, err)
	s.SetFields(completeFields())
	_, err = s.Advance(ctx)
	require.NoError(t, err)
	require.NoError(t, m.Save(ctx, s))

	now = now.Add(time.Hour)
	assert.Equal(t, 1, m.Evict(30*time.Minute))
	assert.Equal(t, 0, m.Evict(30*time.Minute))

	restored, err := m.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.NotSame(t, s, restored)
	assert.Equal(t, "certificate", restored.View().Step.Step)
	assert.Equal(t, "Ada", restored.Snapshot().Fields["firstName"])
}

// blockingTransport holds every send until release is closed.
type blockingTransport struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newBlockingTransport() *blockingTransport {
	return &blockingTransport{entered: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingTransport) Send(ctx context.Context, _ map[string]interface{}) (*gate.Response, error) {
	b.once.Do(func() { close(b.entered) })
	select {
	case <-b.release:
		return &gate.Response{Success: true, ID: "cert-1"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestManager_EvictDoesNotWaitOnBusySession(t *testing.T) {
	ctx := context.Background()
	var offset atomic.Int64
	transport := newBlockingTransport()
	deps := testDeps(transport)
	deps.Now = func() time.Time { return testNow.Add(time.Duration(offset.Load())) }
	m := NewManager(testDefinition(), deps, NewMemoryStore(0), sequentialIDs())

	busy, err := m.Start(ctx)
	require.NoError(t, err)
	_, err = m.Start(ctx)
	require.NoError(t, err)
	busy.SetFields(completeFields())

	submitted := make(chan error, 1)
	go func() {
		_, err := busy.Submit(ctx)
		submitted <- err
	}()
	select {
	case <-transport.entered:
	case <-time.After(time.Second):
		t.Fatal("submission never reached the transport")
	}

	offset.Store(int64(time.Hour))
	evicted := make(chan int, 1)
	go func() { evicted <- m.Evict(30 * time.Minute) }()
	select {
	case n := <-evicted:
		assert.Equal(t, 1, n, "only the idle session is evicted")
	case <-time.After(time.Second):
		t.Fatal("Evict blocked behind a submission in flight")
	}

	got := make(chan error, 1)
	go func() {
		_, err := m.Get(ctx, "s-2")
		got <- err
	}()
	select {
	case err := <-got:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Get on another session blocked behind a submission in flight")
	}

	close(transport.release)
	require.NoError(t, <-submitted)

	live, err := m.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Same(t, busy, live)
}

func TestManager_Delete(t *testing.T) {
	ctx := context.Background()
	m := NewManager(testDefinition(), testDeps(nil), nil, sequentialIDs())

	_, err := m.Start(ctx)
	require.NoError(t, err)
	require.NoError(t, m.Delete(ctx, "s-1"))

	_, err = m.Get(ctx, "s-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_StoreFailure(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{MemoryStore: NewMemoryStore(0), err: errors.New("disk full")}
	m := NewManager(testDefinition(), testDeps(nil), store, sequentialIDs())

	_, err := m.Start(ctx)
	assert.ErrorIs(t, err, ErrStoreFailed)
}

func TestManager_RedisBacked(t *testing.T) {
	ctx := context.Background()
	store, _ := newMiniRedisStore(t, time.Hour)

	first := NewManager(testDefinition(), testDeps(&stubTransport{}), store, sequentialIDs())
	s, err := first.Start(ctx)
	require.NoError(t, err)
	s.SetFields(map[string]string{"firstName": "Ada"})
	require.NoError(t, first.Save(ctx, s))

	// a second instance sharing the store sees the same session
	second := NewManager(testDefinition(), testDeps(&stubTransport{}), store)
	got, err := second.Get(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Snapshot().Fields["firstName"])
}

func TestNewStore(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		cfg := &config.Config{Session: config.SessionConfig{Store: config.SessionStoreMemory, TTL: 60}}
		store, closer, err := NewStore(context.Background(), cfg)
		require.NoError(t, err)
		assert.IsType(t, &MemoryStore{}, store)
		assert.NoError(t, closer())
	})

	t.Run("redis without address", func(t *testing.T) {
		cfg := &config.Config{Session: config.SessionConfig{Store: config.SessionStoreRedis}}
		_, _, err := NewStore(context.Background(), cfg)
		assert.Error(t, err)
	})
}

func TestDefinitionFromConfig(t *testing.T) {
	cfg := &config.Config{
		Flow: config.FlowConfig{
			Steps:                []config.StepConfig{{Name: "details", Next: "review"}, {Name: "review"}, {Name: "payment"}},
			TransitionMode:       "explicit",
			ReviewStep:           "review",
			PaymentStep:          "payment",
			ReviewJumpsToPayment: true,
			Fields:               []string{"firstName"},
			RequiredFields:       []string{"firstName"},
			DateStep:             "details",
			MaxBackdateDays:      7,
			MaxSpanDays:          5,
			Preview:              true,
		},
		Submission: config.SubmissionConfig{GuardMode: "post_success", Timeout: 15000},
		Payment:    config.PaymentConfig{URL: "https://pay.example.com", Embedded: true},
	}

	def := DefinitionFromConfig(cfg)

	assert.Equal(t, "review", def.Navigator.Steps[0].Next)
	assert.True(t, def.Navigator.ReviewJumpsToPayment)
	assert.Equal(t, 15*time.Second, def.Gate.Timeout)
	assert.Equal(t, []string{"firstName"}, def.Gate.Required)
	assert.True(t, def.Preview)
	assert.Equal(t, "https://pay.example.com", def.Payment.URL)
}
