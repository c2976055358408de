// Package events carries "an activity was journaled" notices from the web
// front end to the sync worker.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// ActivityMessage is deliberately small: the worker reloads the row from the
// journal by ID.
type ActivityMessage struct {
	ID            int64     `json:"id"`
	CorrelationID string    `json:"correlation_id"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewActivityMessage(id int64, correlationID string) *ActivityMessage {
	return &ActivityMessage{ID: id, CorrelationID: correlationID, Timestamp: time.Now()}
}

func (m *ActivityMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ActivityMessageFromJSON(data []byte) (*ActivityMessage, error) {
	var msg ActivityMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Handler processes one message. Returning an error asks the broker to
// deliver it again.
type Handler func(ctx context.Context, msg *ActivityMessage) error

type Publisher interface {
	PublishActivity(ctx context.Context, id int64, correlationID string) error
	Close() error
}

type Consumer interface {
	ConsumeActivity(ctx context.Context, handler Handler) error
	Close() error
}

// Nop is used when no broker is configured. The worker's periodic pass
// still picks up every journaled row.
type Nop struct{}

func (Nop) PublishActivity(context.Context, int64, string) error { return nil }

func (Nop) ConsumeActivity(ctx context.Context, _ Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (Nop) Close() error { return nil }

var (
	_ Publisher = Nop{}
	_ Consumer  = Nop{}
)
