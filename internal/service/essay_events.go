package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// EssayUpdatedEvent is broadcast whenever an essay's status, metrics or feedback change.
type EssayUpdatedEvent struct {
	EssayID       string    `json:"essay_id"`
	TeacherID     string    `json:"teacher_id,omitempty"`
	AssignmentID  string    `json:"assignment_id,omitempty"`
	StudentID     string    `json:"student_id,omitempty"`
	Status        string    `json:"status"`
	Version       int       `json:"version"`
	Override      bool      `json:"override"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// EssayEventPublisher announces essay updates to interested parties.
type EssayEventPublisher interface {
	PublishEssayUpdated(ctx context.Context, event EssayUpdatedEvent) error
}

// EssayEventBus fans essay updates out over NATS and to in-process listeners.
// Without a NATS connection events are dispatched locally only.
type EssayEventBus struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger

	mu        sync.RWMutex
	listeners map[uint64]func(EssayUpdatedEvent)
	nextID    uint64
}

// NewEssayEventBus builds a bus publishing on <prefix>.essay.updated.
func NewEssayEventBus(conn *nats.Conn, subjectPrefix string, logger zerolog.Logger) *EssayEventBus {
	prefix := strings.Trim(strings.TrimSpace(subjectPrefix), ".")
	if prefix == "" {
		prefix = "vocab"
	}

	return &EssayEventBus{
		conn:      conn,
		subject:   prefix + ".essay.updated",
		logger:    logger.With().Str("component", "essay_event_bus").Logger(),
		listeners: make(map[uint64]func(EssayUpdatedEvent)),
	}
}

// Subject returns the NATS subject events are published on.
func (b *EssayEventBus) Subject() string {
	return b.subject
}

// PublishEssayUpdated serialises the event and publishes it.
func (b *EssayEventBus) PublishEssayUpdated(_ context.Context, event EssayUpdatedEvent) error {
	if b.conn == nil {
		b.dispatch(event)
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal essay event: %w", err)
	}
	if err := b.conn.Publish(b.subject, payload); err != nil {
		return fmt.Errorf("publish essay event: %w", err)
	}

	return nil
}

// Start subscribes to the NATS subject until ctx is cancelled.
func (b *EssayEventBus) Start(ctx context.Context) error {
	if b.conn == nil {
		return nil
	}

	sub, err := b.conn.Subscribe(b.subject, b.handleMessage)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", b.subject, err)
	}

	go func() {
		<-ctx.Done()
		if err := sub.Unsubscribe(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to unsubscribe essay events")
		}
	}()

	b.logger.Info().Str("subject", b.subject).Msg("listening for essay events")
	return nil
}

// Subscribe registers a listener and returns a function that removes it.
func (b *EssayEventBus) Subscribe(listener func(EssayUpdatedEvent)) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners[id] = listener
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

func (b *EssayEventBus) handleMessage(msg *nats.Msg) {
	var event EssayUpdatedEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		b.logger.Warn().Err(err).Msg("discarding malformed essay event")
		return
	}

	b.dispatch(event)
}

func (b *EssayEventBus) dispatch(event EssayUpdatedEvent) {
	b.mu.RLock()
	listeners := make([]func(EssayUpdatedEvent), 0, len(b.listeners))
	for _, listener := range b.listeners {
		listeners = append(listeners, listener)
	}
	b.mu.RUnlock()

	for _, listener := range listeners {
		listener(event)
	}
}
