package stream

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridgate/gridgate/internal/logging"
	"github.com/gridgate/gridgate/internal/metrics"
)

func newTestEngine(t *testing.T, interval time.Duration) *Engine {
	t.Helper()
	e := NewEngine(
		logging.NewWatermillServiceLogger(watermill.NopLogger{}),
		metrics.New(),
		Options{DefaultInterval: interval},
	)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func collect(t *testing.T, sub *Subscription, n int) []UserUpdate {
	t.Helper()
	updates := make([]UserUpdate, 0, n)
	timeout := time.After(5 * time.Second)
	for len(updates) < n {
		select {
		case u, ok := <-sub.Updates():
			require.True(t, ok, "updates channel closed early")
			updates = append(updates, u)
		case <-timeout:
			t.Fatalf("timed out after %d of %d updates", len(updates), n)
		}
	}
	return updates
}

func TestUpdateTypeRotation(t *testing.T) {
	assert.Equal(t, "profile_update", UpdateTypeFor(0))
	assert.Equal(t, "activity_update", UpdateTypeFor(1))
	assert.Equal(t, "status_update", UpdateTypeFor(2))
	assert.Equal(t, "profile_update", UpdateTypeFor(3))
}

func TestSubjectFor(t *testing.T) {
	subject := SubjectFor(7, 12)
	assert.Equal(t, int32(7), subject.Id)
	assert.Equal(t, "User 7", subject.Name)
	assert.Equal(t, "user7@example.com", subject.Email)
	assert.Equal(t, int32(32), subject.Age)
}

func TestZeroIntervalFallsBackToDefault(t *testing.T) {
	e := newTestEngine(t, 30*time.Millisecond)

	sub, err := e.Subscribe(context.Background(), 1, 0)
	require.NoError(t, err)
	defer sub.Cancel()

	assert.Equal(t, 30*time.Millisecond, sub.Interval())
}

func TestExplicitIntervalInSeconds(t *testing.T) {
	e := newTestEngine(t, 30*time.Millisecond)

	sub, err := e.Subscribe(context.Background(), 1, 3)
	require.NoError(t, err)
	defer sub.Cancel()

	assert.Equal(t, 3*time.Second, sub.Interval())
}

func TestUpdatesFollowSequenceContract(t *testing.T) {
	e := newTestEngine(t, 10*time.Millisecond)

	sub, err := e.Subscribe(context.Background(), 42, 0)
	require.NoError(t, err)
	defer sub.Cancel()

	updates := collect(t, sub, 5)

	wantTypes := []string{"activity_update", "status_update", "profile_update", "activity_update", "status_update"}
	for i, u := range updates {
		seq := uint64(i + 1)
		assert.Equal(t, seq, u.Sequence, "sequence must be dense and ordered")
		assert.Equal(t, wantTypes[i], u.UpdateType)
		assert.Equal(t, int32(42), u.User.Id)
		assert.Equal(t, "User 42", u.User.Name)
		assert.Equal(t, "user42@example.com", u.User.Email)
		assert.Equal(t, 30+int32(seq%10), u.User.Age)
		assert.NotZero(t, u.Timestamp)
	}
}

func TestCancelStopsEmissionWithinOneTick(t *testing.T) {
	e := newTestEngine(t, 10*time.Millisecond)

	sub, err := e.Subscribe(context.Background(), 1, 0)
	require.NoError(t, err)

	first := collect(t, sub, 1)
	sub.Cancel()

	var last uint64 = first[0].Sequence
	deadline := time.After(2 * time.Second)
	for {
		select {
		case u, ok := <-sub.Updates():
			if !ok {
				// Producer terminated; nothing was delivered beyond the
				// events already in flight at cancellation.
				assert.LessOrEqual(t, last, first[0].Sequence+1)
				return
			}
			last = u.Sequence
		case <-deadline:
			t.Fatal("updates channel never closed after cancel")
		}
	}
}

func TestContextCancellationStopsProducer(t *testing.T) {
	e := newTestEngine(t, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := e.Subscribe(ctx, 1, 0)
	require.NoError(t, err)

	collect(t, sub, 2)
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-sub.Updates():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("updates channel never closed after context cancel")
		}
	}
}

func TestUnsubscribeByID(t *testing.T) {
	e := newTestEngine(t, 10*time.Millisecond)

	sub, err := e.Subscribe(context.Background(), 1, 0)
	require.NoError(t, err)
	require.NotEmpty(t, sub.ID())
	require.Equal(t, 1, e.Active())

	assert.True(t, e.Unsubscribe(sub.ID()))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-sub.Updates():
			if !ok {
				// Producer cleanup runs concurrently with the channel close.
				assert.Eventually(t, func() bool {
					return !e.Unsubscribe(sub.ID())
				}, time.Second, 10*time.Millisecond, "id must not be reusable")
				return
			}
		case <-deadline:
			t.Fatal("updates channel never closed after unsubscribe")
		}
	}
}

func TestBufferAbsorbsTransientConsumerPause(t *testing.T) {
	e := newTestEngine(t, 5*time.Millisecond)

	sub, err := e.Subscribe(context.Background(), 1, 0)
	require.NoError(t, err)
	defer sub.Cancel()

	// Stop consuming for many tick intervals; the producer must keep filling
	// the buffer instead of stalling on the first unconsumed event.
	time.Sleep(300 * time.Millisecond)

	// Drain whatever is immediately available. 20ms covers only a handful of
	// new ticks, so reaching a full buffer's worth here means the events were
	// buffered during the pause.
	deadline := time.After(20 * time.Millisecond)
	var drained int
	var last uint64
drain:
	for {
		select {
		case u := <-sub.Updates():
			require.Equal(t, last+1, u.Sequence, "sequence must stay dense across the pause")
			last = u.Sequence
			drained++
		case <-deadline:
			break drain
		}
	}
	assert.GreaterOrEqual(t, drained, DefaultBuffer)
}

func TestSlowConsumerIsNotDroppedOrReordered(t *testing.T) {
	e := newTestEngine(t, 5*time.Millisecond)

	sub, err := e.Subscribe(context.Background(), 1, 0)
	require.NoError(t, err)
	defer sub.Cancel()

	// Let the producer run ahead, then drain; sequences must still be dense.
	time.Sleep(100 * time.Millisecond)
	updates := collect(t, sub, 10)
	for i, u := range updates {
		require.Equal(t, uint64(i+1), u.Sequence)
	}
}

func TestSubscribeAfterCloseFails(t *testing.T) {
	e := newTestEngine(t, 10*time.Millisecond)
	require.NoError(t, e.Close())

	_, err := e.Subscribe(context.Background(), 1, 0)
	assert.ErrorIs(t, err, ErrEngineClosed)
}
