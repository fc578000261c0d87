package filter

import (
	"github.com/hugolhafner/kscan/record"
)

// Predicate decides whether a message is emitted by a scan. Messages it
// rejects are consumed but neither emitted nor counted toward the limit.
type Predicate func(msg record.Message) bool

// All accepts every message.
func All() Predicate {
	return func(record.Message) bool { return true }
}

// And accepts a message only when every predicate does.
func And(preds ...Predicate) Predicate {
	return func(msg record.Message) bool {
		for _, p := range preds {
			if !p(msg) {
				return false
			}
		}
		return true
	}
}

// WithoutErrors rejects messages that failed to deserialize.
func WithoutErrors() Predicate {
	return func(msg record.Message) bool {
		return !msg.HasError()
	}
}
