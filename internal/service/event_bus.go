// internal/service/event_bus.go
package service

import (
	"sync"

	"go.uber.org/zap"

	"rn2903-service/internal/model"
)

// EventBus fans service events out to subscribers
type EventBus struct {
	subscribers map[chan model.ServiceEvent]map[model.EventType]bool
	events      chan model.ServiceEvent
	done        chan struct{}
	once        sync.Once
	mutex       sync.RWMutex
	logger      *zap.Logger
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventBus{
		subscribers: make(map[chan model.ServiceEvent]map[model.EventType]bool),
		events:      make(chan model.ServiceEvent, 1000),
		done:        make(chan struct{}),
		logger:      logger.With(zap.String("component", "event_bus")),
	}
}

// Start distributes events until Stop is called
func (eb *EventBus) Start() {
	for {
		select {
		case event := <-eb.events:
			eb.distributeEvent(event)
		case <-eb.done:
			return
		}
	}
}

// Stop ends Start and closes every subscriber channel
func (eb *EventBus) Stop() {
	eb.once.Do(func() {
		close(eb.done)
		eb.mutex.Lock()
		defer eb.mutex.Unlock()
		for ch := range eb.subscribers {
			close(ch)
		}
		eb.subscribers = make(map[chan model.ServiceEvent]map[model.EventType]bool)
	})
}

// Publish queues an event; it never blocks
func (eb *EventBus) Publish(event model.ServiceEvent) {
	select {
	case eb.events <- event:
	default:
		eb.logger.Warn("Event bus full, dropping event",
			zap.String("event_type", string(event.EventType)),
		)
	}
}

// Subscribe returns a channel receiving events of the given types, or all events when none are given
func (eb *EventBus) Subscribe(types ...model.EventType) <-chan model.ServiceEvent {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	filter := make(map[model.EventType]bool, len(types))
	for _, t := range types {
		filter[t] = true
	}
	subscriber := make(chan model.ServiceEvent, 100)
	eb.subscribers[subscriber] = filter
	return subscriber
}

// Unsubscribe removes and closes a subscriber channel
func (eb *EventBus) Unsubscribe(ch <-chan model.ServiceEvent) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	for subscriber := range eb.subscribers {
		if subscriber == ch {
			delete(eb.subscribers, subscriber)
			close(subscriber)
			return
		}
	}
}

// SubscriberCount returns the number of live subscribers
func (eb *EventBus) SubscriberCount() int {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()
	return len(eb.subscribers)
}

func (eb *EventBus) distributeEvent(event model.ServiceEvent) {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()

	for subscriber, filter := range eb.subscribers {
		if len(filter) > 0 && !filter[event.EventType] {
			continue
		}
		select {
		case subscriber <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}
