package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/course-registry/internal/domain/shared"
	"github.com/alem-hub/course-registry/pkg/circuitbreaker"
	"github.com/alem-hub/course-registry/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY BUS
// ══════════════════════════════════════════════════════════════════════════════

func TestInMemoryEventBus_SyncDeliveryOrder(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	defer bus.Close()

	var got []string
	require.NoError(t, bus.Subscribe(shared.EventStudentEnrolled, func(shared.Event) error {
		got = append(got, "typed")
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		got = append(got, "all:"+string(e.EventType()))
		return nil
	}))

	ev := shared.NewStudentEnrolledEvent("c1", "Дизайн", "s1", "Анна", false, 1, 3)
	require.NoError(t, bus.Publish(ev))
	require.NoError(t, bus.Publish(shared.NewCourseCompletedEvent("c1", "Дизайн", 1)))

	assert.Equal(t, []string{"typed", "all:course.student_enrolled", "all:course.completed"}, got)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.Published)
	assert.Equal(t, int64(1), snap.ByType[shared.EventCourseCompleted])
	assert.Equal(t, int64(3), snap.HandlerRuns)
}

func TestInMemoryEventBus_HandlerErrorsAndPanicsAreContained(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	defer bus.Close()

	reached := false
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { return errors.New("boom") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { panic("handler bug") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		reached = true
		return nil
	}))

	assert.NoError(t, bus.Publish(shared.NewStudentAddedEvent("s1", "Анна", false)))
	assert.True(t, reached)
	assert.Equal(t, int64(2), bus.Metrics().Snapshot().HandlerFailures)
}

func TestInMemoryEventBus_AsyncCloseWaits(t *testing.T) {
	cfg := DefaultInMemoryEventBusConfig()
	cfg.AsyncMode = true
	bus := NewInMemoryEventBus(cfg)

	var mu sync.Mutex
	count := 0
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}))

	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(shared.NewStudentAddedEvent("s", "Анна", false)))
	}
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 10, count)
}

func TestInMemoryEventBus_Closed(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(shared.NewStudentAddedEvent("s", "Анна", false)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.SubscribeAll(func(shared.Event) error { return nil }), ErrEventBusClosed)
	assert.Error(t, bus.Publish(nil))
}

// ══════════════════════════════════════════════════════════════════════════════
// REDIS BUS
// ══════════════════════════════════════════════════════════════════════════════

type fakeRedis struct {
	mu         sync.Mutex
	published  []string
	publishErr error
	messages   chan RedisMessage
	closed     bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{messages: make(chan RedisMessage, 8)}
}

func (f *fakeRedis) Publish(_ context.Context, _ string, message interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, message.(string))
	return nil
}

func (f *fakeRedis) Subscribe(context.Context, ...string) (<-chan RedisMessage, error) {
	return f.messages, nil
}

func (f *fakeRedis) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeRedis) Published() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.published...)
}

func TestRedisEventBus_PublishesEnvelopeAndDeliversLocally(t *testing.T) {
	fake := newFakeRedis()
	bus, err := NewRedisEventBus(RedisEventBusConfig{Client: fake, InstanceID: "me"})
	require.NoError(t, err)

	local := 0
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		local++
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewCourseCompletedEvent("c1", "Маркетинг", 2)))
	assert.Equal(t, 1, local)

	published := fake.Published()
	require.Len(t, published, 1)

	var env eventEnvelope
	require.NoError(t, json.Unmarshal([]byte(published[0]), &env))
	assert.Equal(t, "me", env.InstanceID)
	assert.Equal(t, shared.EventCourseCompleted, env.EventType)
	assert.Equal(t, "c1", env.AggregateID)

	require.NoError(t, bus.Close())
	assert.True(t, fake.closed)
}

func TestRedisEventBus_BrokerFailureKeepsLocalDelivery(t *testing.T) {
	fake := newFakeRedis()
	fake.publishErr = errors.New("connection refused")
	bus, err := NewRedisEventBus(RedisEventBusConfig{Client: fake})
	require.NoError(t, err)
	defer bus.Close()

	local := 0
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		local++
		return nil
	}))

	assert.NoError(t, bus.Publish(shared.NewStudentAddedEvent("s1", "Анна", true)))
	assert.Equal(t, 1, local)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.BrokerFailures)
	assert.Equal(t, int64(1), snap.Published)
}

func TestRedisEventBus_ReplaysRemoteEventsOnly(t *testing.T) {
	fake := newFakeRedis()
	bus, err := NewRedisEventBus(RedisEventBusConfig{Client: fake, InstanceID: "me"})
	require.NoError(t, err)
	defer bus.Close()

	received := make(chan shared.Event, 2)
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		received <- e
		return nil
	}))

	self, _ := json.Marshal(eventEnvelope{InstanceID: "me", EventType: shared.EventStudentAdded})
	remote, _ := json.Marshal(eventEnvelope{
		InstanceID:  "other",
		EventType:   shared.EventRegistrationRejected,
		AggregateID: "c9",
		OccurredAt:  time.Now(),
		Payload:     map[string]interface{}{"reason": "course full"},
	})
	fake.messages <- RedisMessage{Payload: string(self)}
	fake.messages <- RedisMessage{Payload: "not json"}
	fake.messages <- RedisMessage{Payload: string(remote)}

	select {
	case e := <-received:
		assert.Equal(t, shared.EventRegistrationRejected, e.EventType())
		assert.Equal(t, "c9", e.AggregateID())
		assert.Equal(t, "course full", e.Payload()["reason"])
	case <-time.After(2 * time.Second):
		t.Fatal("remote event was not replayed")
	}
	assert.Empty(t, received)
	assert.Equal(t, int64(1), bus.Metrics().Snapshot().RemoteReplayed)
}

func TestMetricsSnapshot_Fields(t *testing.T) {
	m := NewEventBusMetrics()
	m.RecordPublish(shared.EventStudentEnrolled)
	m.RecordPublish(shared.EventRegistrationRejected)
	m.RecordHandler(2*time.Millisecond, true)
	m.RecordHandler(4*time.Millisecond, false)

	snap := m.Snapshot()
	assert.Equal(t, 3*time.Millisecond, snap.AvgHandlerLatency)

	fields := make(map[string]any)
	for _, f := range snap.Fields() {
		fields[f.Key] = f.Value
	}
	assert.Equal(t, 2, fields["published"])
	assert.Equal(t, 1, fields["enrolled_events"])
	assert.Equal(t, 1, fields["rejected_events"])
	assert.Equal(t, 1, fields["handler_failures"])
}

func TestNewRedisEventBus_RequiresClient(t *testing.T) {
	_, err := NewRedisEventBus(RedisEventBusConfig{})
	assert.Error(t, err)
}

// ══════════════════════════════════════════════════════════════════════════════
// GO-REDIS ADAPTER
// ══════════════════════════════════════════════════════════════════════════════

func TestGoRedisClient_BreakerOpensOnDeadBroker(t *testing.T) {
	client := newGoRedisClient(redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	}), nil)
	defer client.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		assert.Error(t, client.Publish(ctx, DefaultChannel, "payload"))
	}

	assert.Equal(t, circuitbreaker.StateOpen, client.breaker.State())
	assert.ErrorIs(t, client.Publish(ctx, DefaultChannel, "payload"), circuitbreaker.ErrCircuitOpen)
}

func TestNewGoRedisClient_BadURL(t *testing.T) {
	_, err := NewGoRedisClient(context.Background(), RedisOptions{URL: "http://nope"})
	assert.Error(t, err)
}

func TestGoRedisClient_SubscribeFailsOnDeadBroker(t *testing.T) {
	client := newGoRedisClient(redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	}), nil)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	messages, err := client.Subscribe(ctx, DefaultChannel)
	assert.Error(t, err)
	assert.Nil(t, messages)
}

func TestClassifyPublishError(t *testing.T) {
	assert.NoError(t, classifyPublishError(nil))

	dial := errors.New("dial tcp 127.0.0.1:1: connect: connection refused")
	assert.True(t, retry.IsRetryable(classifyPublishError(dial)))

	assert.False(t, retry.IsRetryable(classifyPublishError(context.Canceled)))
	assert.False(t, retry.IsRetryable(classifyPublishError(redis.Nil)))
}
