package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/dubbletrubble/TsukiNijiLabsA/internal/model"

	"github.com/google/uuid"
)

// Sink receives every emitted event. The webhook/Discord notifiers
// implement this.
type Sink interface {
	Notify(eventType string, payload json.RawMessage)
}

// EventService records platform events for the admin activity log and
// pushes them to the websocket hub and any registered sinks. Events are
// observability only; failures are logged, never propagated.
type EventService struct {
	store EventStore
	hub   *WSHub
	sinks []Sink
}

func NewEventService(store EventStore, hub *WSHub) *EventService {
	return &EventService{store: store, hub: hub}
}

func (s *EventService) AddSink(sink Sink) {
	s.sinks = append(s.sinks, sink)
}

func (s *EventService) Emit(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[EVENTS] marshal %s: %v", eventType, err)
		return
	}

	if s.store != nil {
		ev := &model.PlatformEvent{
			ID:        uuid.NewString(),
			Type:      eventType,
			Payload:   data,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.store.Append(ctx, ev); err != nil {
			log.Printf("[EVENTS] append %s: %v", eventType, err)
		}
	}

	if s.hub != nil {
		msg, err := json.Marshal(model.WSEvent{Type: eventType, Data: data})
		if err == nil {
			s.hub.Broadcast(msg)
		}
	}

	for _, sink := range s.sinks {
		sink.Notify(eventType, data)
	}
}

func (s *EventService) Recent(ctx context.Context, limit int) ([]model.PlatformEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.List(ctx, limit)
}
