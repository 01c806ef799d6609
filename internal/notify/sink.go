// Package notify delivers catalog change events to a notification sink.
package notify

import (
	"context"

	"github.com/google/uuid"

	"github.com/stacklok/catalog-watcher/internal/catalog"
)

//go:generate mockgen -destination=mocks/mock_sink.go -package=mocks -source=sink.go Sink

// Kind distinguishes the two change events
type Kind string

const (
	// KindNew is emitted for an identity not seen before
	KindNew Kind = "new"
	// KindUpdated is emitted when the progress count of a known item increases
	KindUpdated Kind = "updated"
)

// Event is a single detected change, delivered once to the sink
type Event struct {
	ID       uuid.UUID
	Identity string
	Kind     Kind
	Item     catalog.Item

	// ProgressNumber is the observed progress count, when known
	ProgressNumber *int
}

// NewEvent builds an event for item with a fresh ID
func NewEvent(kind Kind, item catalog.Item) Event {
	var progress *int
	if item.Episodes != nil {
		n := *item.Episodes
		progress = &n
	}
	return Event{
		ID:             uuid.New(),
		Identity:       item.Key(),
		Kind:           kind,
		Item:           item,
		ProgressNumber: progress,
	}
}

// Sink receives change events. Delivery is at-least-once across restarts.
type Sink interface {
	Notify(ctx context.Context, event Event) error
}
