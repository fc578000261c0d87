package throttle

import (
	"context"

	"golang.org/x/time/rate"
)

var _ Throttler = (*Rate)(nil)

// Rate limits the number of polls per second and the number of polled bytes
// per second. A zero limit disables that dimension.
type Rate struct {
	polls *rate.Limiter
	bytes *rate.Limiter
}

func NewRate(pollsPerSecond float64, bytesPerSecond int) *Rate {
	r := &Rate{}

	if pollsPerSecond > 0 {
		r.polls = rate.NewLimiter(rate.Limit(pollsPerSecond), 1)
	}
	if bytesPerSecond > 0 {
		r.bytes = rate.NewLimiter(rate.Limit(bytesPerSecond), bytesPerSecond)
	}

	return r
}

func (r *Rate) BeforePoll(ctx context.Context) error {
	if r.polls == nil {
		return nil
	}
	return r.polls.Wait(ctx)
}

// AfterPoll charges the polled bytes to the byte budget. Results larger than
// one second of budget are charged in burst-sized pieces.
func (r *Rate) AfterPoll(ctx context.Context, _ int, bytes int) error {
	if r.bytes == nil {
		return nil
	}

	burst := r.bytes.Burst()
	for bytes > 0 {
		n := min(bytes, burst)
		if err := r.bytes.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}

	return nil
}
