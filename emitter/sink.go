package emitter

import (
	"context"
	"iter"

	"github.com/hugolhafner/kscan/record"
)

// Sink receives the events of a scan. Push returns false once the consumer
// has lost interest; the emitter then stops without a terminal event.
type Sink interface {
	Push(e Event) bool
}

type SinkFunc func(e Event) bool

func (f SinkFunc) Push(e Event) bool {
	return f(e)
}

// guardedSink stops forwarding once the wrapped sink declined an event.
type guardedSink struct {
	sink   Sink
	closed bool
}

func (g *guardedSink) Push(e Event) bool {
	if g.closed {
		return false
	}
	if !g.sink.Push(e) {
		g.closed = true
		return false
	}
	return true
}

// Emitter runs a single scan, pushing its events into sink. Run returns
// after the terminal event, or as soon as ctx is cancelled or sink declines
// an event.
type Emitter interface {
	Run(ctx context.Context, sink Sink)
}

// Scan exposes a scan as a lazy, single-use sequence of events. Breaking
// out of the range loop cancels the scan.
func Scan(ctx context.Context, e Emitter) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		e.Run(ctx, SinkFunc(yield))
	}
}

// OnlyMessages narrows an event sequence to its messages.
func OnlyMessages(seq iter.Seq[Event]) iter.Seq[record.Message] {
	return func(yield func(record.Message) bool) {
		for e := range seq {
			if e.Type != EventMessage {
				continue
			}
			if !yield(*e.Message) {
				return
			}
		}
	}
}

// Take ends seq after n items.
func Take[T any](seq iter.Seq[T], n int) iter.Seq[T] {
	return func(yield func(T) bool) {
		if n <= 0 {
			return
		}

		taken := 0
		for v := range seq {
			if !yield(v) {
				return
			}
			taken++
			if taken >= n {
				return
			}
		}
	}
}

// Collect runs e to completion and returns every event it produced.
func Collect(ctx context.Context, e Emitter) []Event {
	var events []Event
	e.Run(ctx, SinkFunc(func(ev Event) bool {
		events = append(events, ev)
		return true
	}))
	return events
}
