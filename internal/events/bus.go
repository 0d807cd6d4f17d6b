// Package events provides the small typed in-process bus that coordinates
// watch mode: file change notifications, debounced build triggers, and
// build completion fan-out. It is not durable; the build history store
// covers persistence.
package events

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
)

// ErrBusClosed is returned by Publish after Close.
var ErrBusClosed = errors.New("events: bus is closed")

// Bus is a typed publish/subscribe bus. Publish blocks until every
// subscriber has accepted the event or the context is canceled, which gives
// natural backpressure: a slow consumer slows its producers instead of
// dropping triggers.
type Bus struct {
	mu       sync.RWMutex
	subs     map[reflect.Type]map[uint64]*subscriber
	nextID   atomic.Uint64
	isClosed atomic.Bool
	onceDone sync.Once
}

type subscriber struct {
	send  func(ctx context.Context, evt any) error
	close func()
}

func NewBus() *Bus {
	return &Bus{subs: make(map[reflect.Type]map[uint64]*subscriber)}
}

// Subscribe registers a subscription for events of type T and returns the
// receive channel plus an unsubscribe function. When T is an interface,
// events whose concrete type implements it are delivered.
func Subscribe[T any](b *Bus, buffer int) (<-chan T, func()) {
	eventType := reflect.TypeFor[T]()
	ch := make(chan T, buffer)

	if b.isClosed.Load() {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID.Add(1)

	var closeOnce sync.Once
	closeChannel := func() { closeOnce.Do(func() { close(ch) }) }

	var unsubOnce sync.Once
	unsubscribe := func() {
		unsubOnce.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if typeSubs, ok := b.subs[eventType]; ok {
				delete(typeSubs, id)
				if len(typeSubs) == 0 {
					delete(b.subs, eventType)
				}
			}
			closeChannel()
		})
	}

	sub := &subscriber{
		send: func(ctx context.Context, evt any) error {
			v, ok := evt.(T)
			if !ok {
				return fmt.Errorf("events: type mismatch: expected %s, got %T", eventType, evt)
			}
			select {
			case ch <- v:
				return nil
			case <-ctx.Done():
				return fmt.Errorf("events: publish %s: %w", eventType, ctx.Err())
			}
		},
		close: closeChannel,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.isClosed.Load() {
		closeChannel()
		return ch, func() {}
	}
	if b.subs[eventType] == nil {
		b.subs[eventType] = make(map[uint64]*subscriber)
	}
	b.subs[eventType][id] = sub
	return ch, unsubscribe
}

// SubscriberCount reports active subscribers for T, for tests and
// diagnostics.
func SubscriberCount[T any](b *Bus) int {
	if b == nil {
		return 0
	}
	eventType := reflect.TypeFor[T]()
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[eventType])
}

// Publish delivers evt to all matching subscribers, blocking per subscriber
// until accepted or ctx is canceled.
func (b *Bus) Publish(ctx context.Context, evt any) error {
	if evt == nil {
		return errors.New("events: nil event")
	}
	if b.isClosed.Load() {
		return ErrBusClosed
	}

	evtType := reflect.TypeOf(evt)

	b.mu.RLock()
	var targets []*subscriber
	for subType, typeSubs := range b.subs {
		match := subType == evtType
		if !match && subType.Kind() == reflect.Interface {
			match = evtType.Implements(subType)
		}
		if !match {
			continue
		}
		for _, s := range typeSubs {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range targets {
		if err := s.send(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

// Close shuts the bus down and closes every subscription channel.
func (b *Bus) Close() {
	b.onceDone.Do(func() {
		b.isClosed.Store(true)

		b.mu.Lock()
		var toClose []*subscriber
		for _, typeSubs := range b.subs {
			for _, s := range typeSubs {
				toClose = append(toClose, s)
			}
		}
		b.subs = make(map[reflect.Type]map[uint64]*subscriber)
		b.mu.Unlock()

		for _, s := range toClose {
			s.close()
		}
	})
}
