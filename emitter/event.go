package emitter

import (
	"fmt"
	"time"

	"github.com/hugolhafner/kscan/record"
)

type EventType int

const (
	EventPhase EventType = iota
	EventMessage
	EventDone
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventPhase:
		return "PHASE"
	case EventMessage:
		return "MESSAGE"
	case EventDone:
		return "DONE"
	case EventError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Terminal reports whether the event ends a scan.
func (t EventType) Terminal() bool {
	return t == EventDone || t == EventError
}

const (
	PhaseStarted = "Consumer started"
	PhasePolling = "Polling partitions"
)

// Stats summarises a finished scan.
type Stats struct {
	// MessagesEmitted counts MESSAGE events, ie. records that passed the filter.
	MessagesEmitted int `json:"messagesEmitted"`
	// RecordsConsumed counts every record polled, filtered or not.
	RecordsConsumed int           `json:"recordsConsumed"`
	BytesConsumed   int64         `json:"bytesConsumed"`
	Elapsed         time.Duration `json:"elapsed"`
}

// Event is one item of a scan's output. Exactly one of Phase, Message,
// Stats or Err is meaningful, selected by Type.
type Event struct {
	Type    EventType       `json:"type"`
	Phase   string          `json:"phase,omitempty"`
	Message *record.Message `json:"message,omitempty"`
	Stats   *Stats          `json:"stats,omitempty"`
	Err     error           `json:"-"`
}

func PhaseEvent(phase string) Event {
	return Event{Type: EventPhase, Phase: phase}
}

func MessageEvent(msg record.Message) Event {
	return Event{Type: EventMessage, Message: &msg}
}

func DoneEvent(stats Stats) Event {
	return Event{Type: EventDone, Stats: &stats}
}

func ErrorEvent(err error) Event {
	return Event{Type: EventError, Err: err}
}

func (e Event) String() string {
	switch e.Type {
	case EventPhase:
		return fmt.Sprintf("PHASE(%s)", e.Phase)
	case EventMessage:
		return fmt.Sprintf("MESSAGE(%s-%d@%d)", e.Message.Topic, e.Message.Partition, e.Message.Offset)
	case EventDone:
		return fmt.Sprintf("DONE(%d emitted in %s)", e.Stats.MessagesEmitted, e.Stats.Elapsed)
	case EventError:
		return fmt.Sprintf("ERROR(%v)", e.Err)
	default:
		return e.Type.String()
	}
}
