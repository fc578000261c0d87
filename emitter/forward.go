package emitter

import (
	"context"

	"github.com/hugolhafner/kscan/filter"
	"github.com/hugolhafner/kscan/kafka"
	"github.com/hugolhafner/kscan/position"
	"github.com/hugolhafner/kscan/serde"
)

var _ Emitter = (*Forward)(nil)

// Forward emits records oldest first, from the resolved start of every
// partition up to the high watermark captured when the scan started.
type Forward struct {
	base
}

func NewForward(
	factory kafka.SourceFactory,
	pos position.ConsumerPosition,
	limit int,
	pipeline *serde.Pipeline,
	predicate filter.Predicate,
	opts ...Option,
) *Forward {
	return &Forward{
		base: newBase(factory, pos, limit, pipeline, predicate, position.Forward, opts),
	}
}

func (f *Forward) Run(ctx context.Context, sink Sink) {
	f.run(ctx, sink, f.read)
}

type forwardCursor struct {
	bound position.Bound
	next  int64
}

func (c *forwardCursor) done() bool {
	return c.next >= c.bound.End
}

func (f *Forward) read(s *scan, bounds []position.Bound) error {
	cursors := make(map[kafka.TopicPartition]*forwardCursor, len(bounds))
	partitions := make([]kafka.TopicPartition, 0, len(bounds))
	for _, b := range bounds {
		cursors[b.Partition] = &forwardCursor{bound: b, next: b.Start}
		partitions = append(partitions, b.Partition)
	}

	s.src.Assign(partitions)
	for _, b := range bounds {
		s.src.Seek(b.Partition, b.Start)
	}

	remaining := len(cursors)
	finish := func(tp kafka.TopicPartition, c *forwardCursor) {
		c.next = c.bound.End
		remaining--
		s.src.PausePartitions(tp)
	}

	for remaining > 0 {
		records, err := s.poll()
		if err != nil {
			return err
		}

		if len(records) == 0 {
			if s.exhausted() {
				s.logger.Debug("Giving up on partitions after empty polls", "remaining", remaining)
				return nil
			}
			if err := s.phase(PhasePolling); err != nil {
				return err
			}
			continue
		}

		matched := 0
		for _, rec := range records {
			tp := rec.TopicPartition()
			c, ok := cursors[tp]
			// unassigned, finished or already seen
			if !ok || c.done() || rec.Offset < c.next {
				continue
			}

			if rec.Offset >= c.bound.End {
				finish(tp, c)
				continue
			}

			c.next = rec.Offset + 1
			if c.done() {
				finish(tp, c)
			}
			if rec.IsControl {
				continue
			}

			emitted, err := s.emit(rec)
			if err != nil {
				return err
			}
			if !emitted {
				continue
			}

			matched++
			if s.limitReached() {
				return nil
			}
		}

		if matched == 0 && remaining > 0 {
			if err := s.phase(PhasePolling); err != nil {
				return err
			}
		}
	}

	return nil
}
