package audit

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/platinummonkey/ssoadmin/pkg/observability"
	"github.com/platinummonkey/ssoadmin/pkg/session"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log logs an audit event
	Log(ctx context.Context, event *Event) error

	// Close closes the logger and flushes any buffered logs
	Close() error
}

// Attach records the session transitions of store on logger until the
// returned func is called.
func Attach(store *session.Store, logger Logger, log *observability.Logger) func() {
	if log == nil {
		log = observability.NewNopLogger()
	}
	t := &tracker{prev: store.GetState(), now: time.Now}
	return store.Subscribe(func(next session.State) {
		event := t.observe(next)
		if event == nil {
			return
		}
		if err := logger.Log(context.Background(), event); err != nil {
			log.WithError(err).WithField("event_type", string(event.EventType)).Warn("failed to write audit event")
		}
	})
}

// tracker turns consecutive states into events.
type tracker struct {
	mu   sync.Mutex
	prev session.State
	now  func() time.Time
	// pending is set between the tokens of a login and its user record.
	pending bool
}

func (t *tracker) observe(next session.State) *Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.prev
	t.prev = next

	var eventType EventType
	switch {
	case prev.IsAuthenticated && !next.IsAuthenticated:
		t.pending = false
		eventType = EventTypeSessionLogout
	case !next.IsAuthenticated:
		return nil
	case !prev.IsAuthenticated || t.pending:
		if next.User == nil {
			t.pending = true
			return nil
		}
		t.pending = false
		eventType = EventTypeSessionLogin
	case prev.AccessToken != next.AccessToken:
		eventType = EventTypeSessionRefresh
	case !reflect.DeepEqual(prev.User, next.User):
		eventType = EventTypeSessionUser
	default:
		return nil
	}

	// A logout carries the actor that left.
	actor := next
	if eventType == EventTypeSessionLogout {
		actor = prev
	}
	event := &Event{
		Timestamp: t.now().UTC(),
		EventType: eventType,
		DeviceID:  actor.DeviceID,
	}
	if actor.User != nil {
		event.UserID = actor.User.ID
		event.Email = actor.User.Email
		event.Role = actor.User.Role
		event.Message = actor.User.Name
	}
	return event
}
