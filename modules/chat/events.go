package chat

import (
	"sync"

	"github.com/example/room-relay/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

const publishQueueSize = 1024

// busPublisher forwards domain events to the mono EventBus from its own
// goroutine so the relay worker never waits on the bus.
type busPublisher struct {
	bus    mono.EventBus
	logger types.Logger
	queue  chan any

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func newBusPublisher(bus mono.EventBus, logger types.Logger) *busPublisher {
	p := &busPublisher{
		bus:    bus,
		logger: logger,
		queue:  make(chan any, publishQueueSize),
	}
	p.wg.Add(1)
	go p.drain()
	return p
}

// Publish queues an event. Events are dropped when the queue is full or the
// publisher is closed.
func (p *busPublisher) Publish(event any) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- event:
	default:
		p.logger.Warn("Event queue full, dropping event", "type", eventName(event))
	}
}

// Close stops accepting events and waits for queued events to be published.
func (p *busPublisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *busPublisher) drain() {
	defer p.wg.Done()
	for event := range p.queue {
		if err := p.publish(event); err != nil {
			p.logger.Warn("Failed to publish event", "type", eventName(event), "error", err)
		}
	}
}

func (p *busPublisher) publish(event any) error {
	switch e := event.(type) {
	case events.MessagePostedEvent:
		return events.MessagePostedV1.Publish(p.bus, e, nil)
	case events.UserJoinedEvent:
		return events.UserJoinedV1.Publish(p.bus, e, nil)
	case events.UserLeftEvent:
		return events.UserLeftV1.Publish(p.bus, e, nil)
	case events.RoomCreatedEvent:
		return events.RoomCreatedV1.Publish(p.bus, e, nil)
	default:
		return nil
	}
}

func eventName(event any) string {
	switch event.(type) {
	case events.MessagePostedEvent:
		return "MessagePosted"
	case events.UserJoinedEvent:
		return "UserJoined"
	case events.UserLeftEvent:
		return "UserLeft"
	case events.RoomCreatedEvent:
		return "RoomCreated"
	default:
		return "unknown"
	}
}
