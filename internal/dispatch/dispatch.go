// Package dispatch exposes the gateway's business operations behind one
// interface. Each protocol adapter binds its own view; the core logic below
// is implemented exactly once.
package dispatch

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/gridgate/gridgate/internal/apperrors"
	"github.com/gridgate/gridgate/internal/directory"
	"github.com/gridgate/gridgate/internal/metrics"
	"github.com/gridgate/gridgate/internal/store"
	"github.com/gridgate/gridgate/internal/stream"
)

// ErrGridItemNotFound is shared by get, update, and delete misses.
var ErrGridItemNotFound = apperrors.WithMessage(apperrors.CodeGridItemNotFound, "Specified grid item not found")

// Health is the health probe result.
type Health struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// Core is the operation set offered to every protocol adapter.
type Core interface {
	ListGridItems(ctx context.Context) []store.GridItem
	GetGridItem(ctx context.Context, id uint64) (store.GridItem, error)
	CreateGridItem(ctx context.Context, fields store.CreateGridItem) (store.GridItem, error)
	UpdateGridItem(ctx context.Context, id uint64, patch store.UpdateGridItem) (store.GridItem, error)
	DeleteGridItem(ctx context.Context, id uint64) error

	GetUser(ctx context.Context, id int32) (directory.User, error)
	CreateUser(ctx context.Context, name, email string, age int32) (directory.User, error)
	UpdateUser(ctx context.Context, id int32, name, email string, age int32) (directory.User, error)
	DeleteUser(ctx context.Context, id int32) (string, error)
	VerifyCredentials(ctx context.Context, username, password string) (bool, string)

	SubscribeUserUpdates(ctx context.Context, userID, intervalSeconds int32) (*stream.Subscription, error)
	UnsubscribeUserUpdates(ctx context.Context, id string) bool

	Health(ctx context.Context) Health
}

// Dispatcher owns the shared state objects. Adapters never touch the store,
// directory, or engine directly.
type Dispatcher struct {
	store   *store.Store
	users   *directory.Directory
	engine  *stream.Engine
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// New wires the dispatcher over its collaborators.
func New(s *store.Store, users *directory.Directory, engine *stream.Engine, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		store:   s,
		users:   users,
		engine:  engine,
		metrics: m,
		tracer:  otel.Tracer("gridgate/dispatch"),
	}
}

// Protocol returns a Core bound to a protocol label for metrics and spans.
func (d *Dispatcher) Protocol(name string) Core {
	return &protocolView{d: d, protocol: name}
}

type protocolView struct {
	d        *Dispatcher
	protocol string
}

// instrument opens a span and returns a closure recording the outcome.
func (v *protocolView) instrument(ctx context.Context, method string) func(err error) {
	_, span := v.d.tracer.Start(ctx, v.protocol+"."+method,
		trace.WithAttributes(attribute.String("gridgate.protocol", v.protocol)))
	return func(err error) {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
		v.d.metrics.ObserveRequest(v.protocol, method, err)
	}
}

func (v *protocolView) ListGridItems(ctx context.Context) []store.GridItem {
	done := v.instrument(ctx, "ListGridItems")
	defer done(nil)
	return v.d.store.List()
}

func (v *protocolView) GetGridItem(ctx context.Context, id uint64) (store.GridItem, error) {
	done := v.instrument(ctx, "GetGridItem")
	item, ok := v.d.store.Get(id)
	if !ok {
		done(ErrGridItemNotFound)
		return store.GridItem{}, ErrGridItemNotFound
	}
	done(nil)
	return item, nil
}

func (v *protocolView) CreateGridItem(ctx context.Context, fields store.CreateGridItem) (store.GridItem, error) {
	done := v.instrument(ctx, "CreateGridItem")
	defer done(nil)
	return v.d.store.Create(fields), nil
}

func (v *protocolView) UpdateGridItem(ctx context.Context, id uint64, patch store.UpdateGridItem) (store.GridItem, error) {
	done := v.instrument(ctx, "UpdateGridItem")
	item, ok := v.d.store.Update(id, patch)
	if !ok {
		done(ErrGridItemNotFound)
		return store.GridItem{}, ErrGridItemNotFound
	}
	done(nil)
	return item, nil
}

func (v *protocolView) DeleteGridItem(ctx context.Context, id uint64) error {
	done := v.instrument(ctx, "DeleteGridItem")
	if !v.d.store.Delete(id) {
		done(ErrGridItemNotFound)
		return ErrGridItemNotFound
	}
	done(nil)
	return nil
}

func (v *protocolView) GetUser(ctx context.Context, id int32) (directory.User, error) {
	done := v.instrument(ctx, "GetUser")
	user, err := v.d.users.Get(id)
	done(err)
	return user, err
}

func (v *protocolView) CreateUser(ctx context.Context, name, email string, age int32) (directory.User, error) {
	done := v.instrument(ctx, "CreateUser")
	defer done(nil)
	return v.d.users.Create(name, email, age), nil
}

func (v *protocolView) UpdateUser(ctx context.Context, id int32, name, email string, age int32) (directory.User, error) {
	done := v.instrument(ctx, "UpdateUser")
	user, err := v.d.users.Update(id, name, email, age)
	done(err)
	return user, err
}

func (v *protocolView) DeleteUser(ctx context.Context, id int32) (string, error) {
	done := v.instrument(ctx, "DeleteUser")
	msg, err := v.d.users.Delete(id)
	done(err)
	return msg, err
}

func (v *protocolView) VerifyCredentials(ctx context.Context, username, password string) (bool, string) {
	done := v.instrument(ctx, "VerifyCredentials")
	defer done(nil)
	return v.d.users.VerifyCredentials(username, password)
}

func (v *protocolView) SubscribeUserUpdates(ctx context.Context, userID, intervalSeconds int32) (*stream.Subscription, error) {
	done := v.instrument(ctx, "SubscribeUserUpdates")
	// The subscription outlives the request span; the producer is tied to the
	// caller's context, not the span's.
	sub, err := v.d.engine.Subscribe(ctx, userID, intervalSeconds)
	done(err)
	return sub, err
}

func (v *protocolView) UnsubscribeUserUpdates(ctx context.Context, id string) bool {
	done := v.instrument(ctx, "UnsubscribeUserUpdates")
	defer done(nil)
	return v.d.engine.Unsubscribe(id)
}

func (v *protocolView) Health(ctx context.Context) Health {
	done := v.instrument(ctx, "Health")
	defer done(nil)
	return Health{
		Status:    "healthy",
		Message:   "Server is running normally",
		Timestamp: time.Now().Unix(),
	}
}
