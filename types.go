package authsession

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/platefeed/authsession/httpapi"
)

// UserProfile is the read-only account snapshot returned by the backend
// verify/login calls. It is owned by the Manager and replaced wholesale on
// every successful verify or login, never partially mutated.
type UserProfile = httpapi.Profile

// RegisterInput carries the fields for account registration.
type RegisterInput = httpapi.RegisterInput

// SessionState represents the lifecycle state of the session.
type SessionState uint8

const (
	// StateAnonymous is an exported constant or variable used by the session manager.
	StateAnonymous SessionState = iota
	// StateAuthenticating is an exported constant or variable used by the session manager.
	StateAuthenticating
	// StateAuthenticated is an exported constant or variable used by the session manager.
	StateAuthenticated
	// StateLoggingOut is an exported constant or variable used by the session manager.
	StateLoggingOut
)

// String describes the string operation and its observable behavior.
func (s SessionState) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateLoggingOut:
		return "logging_out"
	default:
		return "unknown"
	}
}

// SessionSnapshot is a point-in-time copy of the session state. Invariant:
// User is non-nil only if Token is non-empty; a token may exist pending
// verification.
type SessionSnapshot struct {
	State           SessionState
	Token           string
	User            *UserProfile
	Loading         bool
	RefreshInFlight bool
}

// EventKind enumerates the signals carried by the session event bus.
type EventKind uint8

const (
	// EventSessionInvalidated is an exported constant or variable used by the session manager.
	EventSessionInvalidated EventKind = iota
	// EventLoggedIn is an exported constant or variable used by the session manager.
	EventLoggedIn
	// EventLoggedOut is an exported constant or variable used by the session manager.
	EventLoggedOut
	// EventRefreshed is an exported constant or variable used by the session manager.
	EventRefreshed
	// EventStateChanged is an exported constant or variable used by the session manager.
	EventStateChanged
)

// String describes the string operation and its observable behavior.
func (k EventKind) String() string {
	switch k {
	case EventSessionInvalidated:
		return "session_invalidated"
	case EventLoggedIn:
		return "logged_in"
	case EventLoggedOut:
		return "logged_out"
	case EventRefreshed:
		return "refreshed"
	case EventStateChanged:
		return "state_changed"
	default:
		return "unknown"
	}
}

// Event is one signal on the session event bus.
type Event struct {
	ID        string       `json:"id"`
	Kind      EventKind    `json:"-"`
	KindName  string       `json:"kind"`
	Timestamp time.Time    `json:"timestamp"`
	State     SessionState `json:"-"`
	StateName string       `json:"state"`
	UserID    string       `json:"user_id,omitempty"`
	Reason    string       `json:"reason,omitempty"`
}

// EventSink receives session events from the dispatcher.
type EventSink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink defines a public type used by authsession APIs.
type NoOpSink struct{}

// Emit describes the emit operation and its observable behavior.
func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink defines a public type used by authsession APIs.
type ChannelSink struct {
	events  chan Event
	dropped atomic.Uint64
}

// NewChannelSink describes the newchannelsink operation and its observable behavior.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

// Emit delivers event to the channel without blocking. When the buffer is
// full and no reader is draining it, the event is dropped and counted, so a
// caller that never consumes Events cannot stall the dispatcher.
func (s *ChannelSink) Emit(_ context.Context, event Event) {
	select {
	case s.events <- event:
	default:
		s.dropped.Add(1)
	}
}

// Events describes the events operation and its observable behavior.
func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// Dropped reports how many events were discarded because the channel
// buffer was full.
func (s *ChannelSink) Dropped() uint64 {
	return s.dropped.Load()
}

// JSONWriterSink defines a public type used by authsession APIs.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink describes the newjsonwritersink operation and its observable behavior.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

// Emit describes the emit operation and its observable behavior.
func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
