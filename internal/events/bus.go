package events

import (
	"sync"
	"time"
)

// Topic classifies messages emitted for view subscribers.
type Topic string

const (
	TopicState  Topic = "state"
	TopicJob    Topic = "job"
	TopicMedia  Topic = "media"
	TopicNotice Topic = "notice"
	TopicUpdate Topic = "update"
)

// Level is the severity of a notice event.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Event is a sequenced payload consumed by UI subscribers.
type Event struct {
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Topic     Topic     `json:"topic"`
	JobID     string    `json:"jobId,omitempty"`
	Level     Level     `json:"level,omitempty"`
	Message   string    `json:"message,omitempty"`
	Payload   any       `json:"payload,omitempty"`
}

// Bus stores recent events and provides incremental reads.
type Bus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
	sinks     []func(Event)
}

// NewBus creates a bounded in-memory event buffer.
func NewBus(maxEvents int) *Bus {
	if maxEvents <= 0 {
		maxEvents = 500
	}

	return &Bus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
	}
}

// OnPublish registers fn to receive every event after it is stored.
// Sinks run on the publishing goroutine and must not publish.
func (b *Bus) OnPublish(fn func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, fn)
}

// Publish appends one event and assigns sequence and timestamp. A nil bus
// drops the event.
func (b *Bus) Publish(event Event) Event {
	if b == nil {
		return event
	}
	b.mu.Lock()
	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}
	sinks := b.sinks
	b.mu.Unlock()

	for _, sink := range sinks {
		sink(event)
	}
	return event
}

// Notify publishes a user-facing notice.
func (b *Bus) Notify(level Level, message string) {
	b.Publish(Event{Topic: TopicNotice, Level: level, Message: message})
}

// Since returns events with sequence strictly greater than seq.
func (b *Bus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return nil
	}

	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}

// SinceTopic returns events on one topic newer than seq.
func (b *Bus) SinceTopic(topic Topic, seq int64) []Event {
	all := b.Since(seq)
	out := all[:0]
	for _, event := range all {
		if event.Topic == topic {
			out = append(out, event)
		}
	}
	return out
}
