// Package stream implements the subscription engine: one timer-driven
// producer per subscription, publishing user update events over an in-memory
// pub/sub until the consumer cancels. The engine is protocol-agnostic; the
// gRPC and JSON-RPC adapters both consume the same typed channel.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/gridgate/gridgate/internal/directory"
	"github.com/gridgate/gridgate/internal/ids"
	"github.com/gridgate/gridgate/internal/jsoncodec"
	"github.com/gridgate/gridgate/internal/logging"
	"github.com/gridgate/gridgate/internal/metrics"
)

// DefaultInterval replaces zero or negative client-supplied intervals.
const DefaultInterval = 2 * time.Second

// DefaultBuffer is the minimum per-subscription event buffer. A consumer may
// fall this many events behind before the producer blocks; events are never
// dropped.
const DefaultBuffer = 32

// ErrEngineClosed is returned by Subscribe after the engine has shut down.
var ErrEngineClosed = errors.New("subscription engine is closed")

// UserUpdate is the periodic event payload emitted to subscribers.
type UserUpdate struct {
	User       directory.User `json:"user"`
	UpdateType string         `json:"update_type"`
	Timestamp  int64          `json:"timestamp"`
	Sequence   uint64         `json:"sequence"`
}

// updateTypes rotates by sequence % 3.
var updateTypes = [3]string{"profile_update", "activity_update", "status_update"}

// UpdateTypeFor returns the update type for a sequence number: multiples of 3
// are profile updates, then activity, then status.
func UpdateTypeFor(sequence uint64) string {
	return updateTypes[sequence%3]
}

// SubjectFor builds the synthetic subject record carried by an update event.
func SubjectFor(userID int32, sequence uint64) directory.User {
	return directory.User{
		Id:    userID,
		Name:  fmt.Sprintf("User %d", userID),
		Email: fmt.Sprintf("user%d@example.com", userID),
		Age:   30 + int32(sequence%10),
	}
}

// Subscription is one live update stream. Consume Updates until it closes;
// cancel by calling Cancel (or cancelling the context passed to Subscribe).
type Subscription struct {
	id       string
	userID   int32
	interval time.Duration

	updates chan UserUpdate
	cancel  context.CancelFunc
	done    chan struct{}
}

// ID is the subscription identifier handed back to JSON-RPC clients.
func (s *Subscription) ID() string { return s.id }

// UserID is the subject id the subscription was opened for.
func (s *Subscription) UserID() int32 { return s.userID }

// Interval is the effective tick interval after default substitution.
func (s *Subscription) Interval() time.Duration { return s.interval }

// Updates delivers events in strictly increasing sequence order with no gaps.
// The channel closes once the producer has terminated.
func (s *Subscription) Updates() <-chan UserUpdate { return s.updates }

// Cancel stops the producer. Emission ceases within one tick interval.
func (s *Subscription) Cancel() {
	s.cancel()
}

// Engine owns all active subscriptions. Events travel over a watermill
// gochannel pub/sub, one topic per subscription; the buffered per-subscription
// updates channel is the bounded backpressure, so a producer keeps ticking
// until the consumer has fallen a full buffer behind.
type Engine struct {
	pubSub          *gochannel.GoChannel
	logger          logging.ServiceLogger
	metrics         *metrics.Metrics
	buffer          int
	defaultInterval time.Duration

	mu     sync.Mutex
	subs   map[string]*Subscription
	closed bool
}

// Options tunes the engine. Zero values fall back to defaults.
type Options struct {
	Buffer          int
	DefaultInterval time.Duration
}

// NewEngine builds an engine logging through the supplied ServiceLogger.
func NewEngine(logger logging.ServiceLogger, m *metrics.Metrics, opts Options) *Engine {
	buffer := opts.Buffer
	if buffer < DefaultBuffer {
		buffer = DefaultBuffer
	}
	interval := opts.DefaultInterval
	if interval <= 0 {
		interval = DefaultInterval
	}

	// Blocking on subscriber ack keeps publishes strictly ordered: without it
	// the gochannel delivers each message on its own goroutine. The pump acks
	// on receipt, so a publish only blocks while the pump is mid-handoff; the
	// buffered updates channel is what absorbs a slow consumer.
	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            int64(buffer),
		BlockPublishUntilSubscriberAck: true,
	}, logging.NewWatermillAdapter(logger))

	return &Engine{
		pubSub:          pubSub,
		logger:          logger,
		metrics:         m,
		buffer:          buffer,
		defaultInterval: interval,
		subs:            make(map[string]*Subscription),
	}
}

// Subscribe registers a subscription for userID and starts its producer.
// intervalSeconds of zero or less selects the default interval. The producer
// stops when ctx is cancelled, Cancel is called, or the engine closes.
func (e *Engine) Subscribe(ctx context.Context, userID int32, intervalSeconds int32) (*Subscription, error) {
	interval := e.defaultInterval
	if intervalSeconds > 0 {
		interval = time.Duration(intervalSeconds) * time.Second
	}

	subCtx, cancel := context.WithCancel(ctx)

	sub := &Subscription{
		id:       ids.CreateULID(),
		userID:   userID,
		interval: interval,
		updates:  make(chan UserUpdate, e.buffer),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	topic := "user_updates." + sub.id

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		cancel()
		return nil, ErrEngineClosed
	}
	e.subs[sub.id] = sub
	e.mu.Unlock()

	// Subscribe before the first publish; the gochannel pub/sub does not
	// retain messages for late subscribers.
	msgs, err := e.pubSub.Subscribe(subCtx, topic)
	if err != nil {
		cancel()
		e.remove(sub.id)
		return nil, fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	e.metrics.ActiveSubscriptions.Inc()
	e.logger.Info("Subscription created", logging.LogFields{
		"subscription_id": sub.id,
		"user_id":         userID,
		"interval":        interval.String(),
	})

	go e.pump(subCtx, sub, msgs)
	go e.produce(subCtx, sub, topic)

	return sub, nil
}

// Unsubscribe cancels the subscription with the given id.
func (e *Engine) Unsubscribe(id string) bool {
	e.mu.Lock()
	sub, ok := e.subs[id]
	e.mu.Unlock()
	if !ok {
		return false
	}
	sub.Cancel()
	return true
}

// Active reports the number of registered subscriptions.
func (e *Engine) Active() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

// Close cancels every subscription and shuts the pub/sub down. Producers
// terminate within one tick interval.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	subs := make([]*Subscription, 0, len(e.subs))
	for _, sub := range e.subs {
		subs = append(subs, sub)
	}
	e.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
		<-sub.done
	}
	return e.pubSub.Close()
}

func (e *Engine) remove(id string) {
	e.mu.Lock()
	delete(e.subs, id)
	e.mu.Unlock()
}

// produce ticks until the subscription context is cancelled, publishing one
// event per tick. Sequence numbers start at 1 and never repeat.
func (e *Engine) produce(ctx context.Context, sub *Subscription, topic string) {
	defer func() {
		e.remove(sub.id)
		e.metrics.ActiveSubscriptions.Dec()
		close(sub.done)
		e.logger.Debug("Subscription producer stopped", logging.LogFields{
			"subscription_id": sub.id,
		})
	}()

	ticker := time.NewTicker(sub.interval)
	defer ticker.Stop()

	var sequence uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		sequence++
		update := UserUpdate{
			User:       SubjectFor(sub.userID, sequence),
			UpdateType: UpdateTypeFor(sequence),
			Timestamp:  time.Now().Unix(),
			Sequence:   sequence,
		}

		payload, err := jsoncodec.Marshal(update)
		if err != nil {
			e.logger.Error("Failed to encode update event", err, logging.LogFields{
				"subscription_id": sub.id,
			})
			return
		}

		msg := message.NewMessage(watermill.NewUUID(), payload)
		msg.SetContext(ctx)
		if err := e.pubSub.Publish(topic, msg); err != nil {
			// The consumer side is gone or the engine is closing.
			return
		}
		e.metrics.UpdateEvents.Inc()
	}
}

// pump decodes events off the pub/sub and forwards them to the buffered typed
// channel. Messages are acked on receipt; the blocking send into the bounded
// channel is what backpressures the producer, and only once the consumer has
// fallen a full buffer behind.
func (e *Engine) pump(ctx context.Context, sub *Subscription, msgs <-chan *message.Message) {
	defer close(sub.updates)

	for msg := range msgs {
		var update UserUpdate
		err := jsoncodec.Unmarshal(msg.Payload, &update)
		msg.Ack()
		if err != nil {
			e.logger.Error("Failed to decode update event", err, logging.LogFields{
				"subscription_id": sub.id,
			})
			// Stop the producer too; a stream that cannot decode its own
			// events must terminate, not gap.
			sub.Cancel()
			return
		}

		select {
		case sub.updates <- update:
		case <-ctx.Done():
			return
		}
	}
}
