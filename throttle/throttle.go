package throttle

import (
	"context"
)

// Throttler gates the poll loop of a scan. Implementations may delay, but
// never alter which records a poll returns.
type Throttler interface {
	// BeforePoll is called before every poll and may block until polling is allowed.
	BeforePoll(ctx context.Context) error
	// AfterPoll is called with the size of every poll result and may block to
	// keep throughput within a budget.
	AfterPoll(ctx context.Context, records, bytes int) error
}

type noop struct{}

// Noop returns a Throttler that never delays.
func Noop() Throttler {
	return noop{}
}

func (noop) BeforePoll(context.Context) error {
	return nil
}

func (noop) AfterPoll(context.Context, int, int) error {
	return nil
}
