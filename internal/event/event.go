// Package event carries thread lifecycle notifications to collaborators
// such as subscription mailers.
//
// Sinks are fire and forget: Emit never fails the operation that produced
// the event.  Implementations log their own delivery errors.
package event

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yanizio/adept-forum/internal/forum"
)

// Kind names an event type on the wire.
type Kind string

const (
	KindThreadCreated Kind = "thread.created"
	KindThreadMoved   Kind = "thread.moved"
)

// Event is the envelope every sink receives.
type Event struct {
	ID     uuid.UUID `json:"id"`
	Kind   Kind      `json:"kind"`
	SiteID int64     `json:"site_id"`
	At     time.Time `json:"at"`
	Data   any       `json:"data"`
}

// Actor identifies the principal behind an event.
type Actor struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// ThreadCreated is emitted after a new thread commits.
type ThreadCreated struct {
	Thread forum.Thread `json:"thread"`
	Author Actor        `json:"author"`
}

// ThreadMoved is emitted after a thread changes forum.
type ThreadMoved struct {
	Thread   forum.Thread `json:"thread"`
	OldForum int64        `json:"old_forum"`
	NewForum int64        `json:"new_forum"`
	Actor    Actor        `json:"actor"`
}

// New wraps data in an envelope with a fresh id, stamped now.
func New(kind Kind, siteID int64, data any) Event {
	return NewAt(kind, siteID, time.Now(), data)
}

// NewAt is New with a caller-supplied timestamp.
func NewAt(kind Kind, siteID int64, at time.Time, data any) Event {
	return Event{ID: uuid.New(), Kind: kind, SiteID: siteID, At: at.UTC(), Data: data}
}

// Sink receives events.
type Sink interface {
	Emit(ctx context.Context, e Event)
}

// Multi fans an event out to every sink in order.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, e Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, e)
		}
	}
}

// Discard drops events.
type Discard struct{}

func (Discard) Emit(context.Context, Event) {}

// Recorder keeps events in memory; tests assert on it.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Emit(_ context.Context, e Event) { r.Events = append(r.Events, e) }

// Kinds lists recorded kinds in order.
func (r *Recorder) Kinds() []Kind {
	out := make([]Kind, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.Kind
	}
	return out
}
