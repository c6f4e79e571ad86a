package events

import (
	"context"
	"encoding/json"
	"time"
)

// ChangeEvent is published after a mutation has been persisted.
type ChangeEvent struct {
	ID        string          `json:"id"`
	Op        string          `json:"op"`
	Path      json.RawMessage `json:"path"`
	Revision  int64           `json:"revision"`
	Timestamp int64           `json:"timestamp"`
}

func NewChangeEvent(id, op string, path json.RawMessage, revision int64, at time.Time) ChangeEvent {
	return ChangeEvent{
		ID:        id,
		Op:        op,
		Path:      path,
		Revision:  revision,
		Timestamp: at.Unix(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, event ChangeEvent) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ChangeEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
