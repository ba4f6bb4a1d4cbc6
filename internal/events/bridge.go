// Package events relays hypervisor domain events upstream as guest events.
//
// The hypervisor's event callbacks only enqueue; a single translator
// goroutine resolves each event to the guest's current state and emits it.
// The queue is bounded and never blocks the producer: when it is full the
// event is dropped, logged and counted.
package events

import (
	"context"
	"fmt"

	"github.com/digitalocean/go-libvirt"
	"github.com/rs/zerolog"

	"github.com/jbweber/jimvn/internal/bus"
	"github.com/jbweber/jimvn/internal/metrics"
	"github.com/jbweber/jimvn/internal/vm"
)

// DefaultQueueSize bounds the number of events waiting for translation.
const DefaultQueueSize = 10

// Source is the subset of *libvirt.Libvirt the bridge uses. Cancelling the
// context passed to the subscription calls deregisters the callbacks.
type Source interface {
	LifecycleEvents(ctx context.Context) (<-chan libvirt.DomainEventLifecycleMsg, error)
	SubscribeEvents(ctx context.Context, eventID libvirt.DomainEventID, dom libvirt.OptDomain) (<-chan interface{}, error)
	DomainGetState(dom libvirt.Domain, flags uint32) (int32, int32, error)
}

// Emitter publishes guest events.
type Emitter interface {
	Guest(ctx context.Context, event bus.GuestEvent, msg bus.GuestMessage) error
}

// Kind distinguishes queued events.
type Kind int

const (
	KindLifecycle Kind = iota
	KindMigrationIteration
)

// Event is one queued hypervisor notification.
type Event struct {
	Kind      Kind
	Domain    libvirt.Domain
	Iteration int32
}

// Bridge connects hypervisor event streams to the upstream emitter.
type Bridge struct {
	src     Source
	emitter Emitter
	log     zerolog.Logger
	metrics *metrics.Metrics
	queue   chan Event
}

// NewBridge creates a bridge with a queue of the given size.
func NewBridge(src Source, emitter Emitter, log zerolog.Logger, m *metrics.Metrics, size int) *Bridge {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Bridge{
		src:     src,
		emitter: emitter,
		log:     log.With().Str("engine", "events").Logger(),
		metrics: m,
		queue:   make(chan Event, size),
	}
}

// Offer enqueues an event without blocking. It reports false when the
// event was dropped.
func (b *Bridge) Offer(ev Event) bool {
	select {
	case b.queue <- ev:
		return true
	default:
		b.metrics.EventDropped()
		b.log.Warn().
			Str("domain", ev.Domain.Name).
			Str("uuid", vm.DomainUUID(ev.Domain)).
			Msg("event queue full, dropping event")
		return false
	}
}

// Run subscribes to lifecycle and migration-iteration events and
// translates them until ctx is cancelled, which also deregisters the
// subscriptions.
func (b *Bridge) Run(ctx context.Context) error {
	lifecycle, err := b.src.LifecycleEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to lifecycle events: %w", err)
	}

	// Older daemons lack migration iteration events; lifecycle events
	// still flow without them.
	iterations, err := b.src.SubscribeEvents(ctx, libvirt.DomainEventIDMigrationIteration, libvirt.OptDomain{})
	if err != nil {
		b.log.Warn().Err(err).Msg("migration iteration events unavailable")
		iterations = nil
	}

	go b.pump(ctx, lifecycle, iterations)

	b.log.Info().Msg("event bridge started")
	b.Translate(ctx)
	b.log.Info().Msg("event bridge stopped")
	return nil
}

// pump moves subscription messages into the queue. A closed stream is
// not reopened.
func (b *Bridge) pump(ctx context.Context, lifecycle <-chan libvirt.DomainEventLifecycleMsg, iterations <-chan interface{}) {
	for lifecycle != nil || iterations != nil {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-lifecycle:
			if !ok {
				lifecycle = nil
				continue
			}
			b.Offer(Event{Kind: KindLifecycle, Domain: msg.Dom})
		case raw, ok := <-iterations:
			if !ok {
				iterations = nil
				continue
			}
			if ev, ok := migrationEvent(raw); ok {
				b.Offer(ev)
			}
		}
	}
}

func migrationEvent(raw interface{}) (Event, bool) {
	switch msg := raw.(type) {
	case libvirt.DomainEventCallbackMigrationIterationMsg:
		return Event{Kind: KindMigrationIteration, Domain: msg.Dom, Iteration: msg.Iteration}, true
	case *libvirt.DomainEventCallbackMigrationIterationMsg:
		return Event{Kind: KindMigrationIteration, Domain: msg.Dom, Iteration: msg.Iteration}, true
	default:
		return Event{}, false
	}
}

// Translate emits queued events until ctx is cancelled.
func (b *Bridge) Translate(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-b.queue:
			b.handle(ctx, ev)
		}
	}
}

// handle emits one event. Failures are logged, never returned.
func (b *Bridge) handle(ctx context.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Interface("panic", r).Msg("event translation panicked")
		}
	}()

	id := vm.DomainUUID(ev.Domain)
	msg := bus.GuestMessage{UUID: id}

	var event bus.GuestEvent
	switch ev.Kind {
	case KindMigrationIteration:
		event = bus.GuestMigrating
		msg.MigratingInfo = &bus.MigratingInfo{Iteration: ev.Iteration}
	default:
		state, _, err := b.src.DomainGetState(ev.Domain, 0)
		if err != nil {
			b.log.Error().Err(err).Str("uuid", id).Msg("failed to get domain state")
			return
		}
		event = bus.GuestEvent(vm.StateName(state))
		b.log.Info().Msgf("Domain %s, UUID %s state changed to %s", ev.Domain.Name, id, event)
	}

	if err := b.emitter.Guest(ctx, event, msg); err != nil {
		b.log.Error().Err(err).Str("uuid", id).Str("event", string(event)).Msg("failed to emit guest event")
		return
	}
	b.metrics.GuestEvent(string(event))
}
