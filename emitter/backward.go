package emitter

import (
	"context"
	"slices"

	"github.com/hugolhafner/kscan/filter"
	"github.com/hugolhafner/kscan/kafka"
	"github.com/hugolhafner/kscan/position"
	"github.com/hugolhafner/kscan/serde"
)

var _ Emitter = (*Backward)(nil)

// Backward emits records newest first. Every round reads one window below
// the current upper bound of each partition, then emits the windows reversed,
// one partition after another.
type Backward struct {
	base
}

func NewBackward(
	factory kafka.SourceFactory,
	pos position.ConsumerPosition,
	limit int,
	pipeline *serde.Pipeline,
	predicate filter.Predicate,
	opts ...Option,
) *Backward {
	return &Backward{
		base: newBase(factory, pos, limit, pipeline, predicate, position.Backward, opts),
	}
}

func (b *Backward) Run(ctx context.Context, sink Sink) {
	b.run(ctx, sink, b.read)
}

// backwardCursor walks one partition from its upper bound down to its start.
// The current window is [lo, hi).
type backwardCursor struct {
	bound position.Bound
	hi    int64

	lo      int64
	next    int64
	full    bool
	records []kafka.ConsumerRecord
}

func (c *backwardCursor) active() bool {
	return c.hi > c.bound.Start
}

func (c *backwardCursor) open(chunk int64) {
	c.lo = max(c.bound.Start, c.hi-chunk)
	c.next = c.lo
	c.full = false
	c.records = make([]kafka.ConsumerRecord, 0, c.hi-c.lo)
}

func (b *Backward) read(s *scan, bounds []position.Bound) error {
	cursors := make([]*backwardCursor, 0, len(bounds))
	for _, bound := range bounds {
		cursors = append(cursors, &backwardCursor{bound: bound, hi: bound.End})
	}

	for round := 1; ; round++ {
		var active []*backwardCursor
		for _, c := range cursors {
			if c.active() {
				active = append(active, c)
			}
		}
		if len(active) == 0 || s.limitReached() {
			return nil
		}

		chunk := s.config.chunkSize(s.limit-s.stats.MessagesEmitted, len(active))
		s.logger.Debug("Reading backward round", "round", round, "partitions", len(active), "chunk", chunk)

		if err := b.fill(s, active, chunk); err != nil {
			return err
		}

		matched := 0
		for _, c := range active {
			slices.Reverse(c.records)
			for _, rec := range c.records {
				ok, err := s.emit(rec)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}

				matched++
				if s.limitReached() {
					return nil
				}
			}

			c.hi = c.lo
			c.records = nil
		}

		if matched == 0 {
			if err := s.phase(PhasePolling); err != nil {
				return err
			}
		}
	}
}

// fill seeks every active cursor to the start of its next window and polls
// until every window is full. Windows the source cannot fill within the
// empty poll tolerance keep what they have.
func (b *Backward) fill(s *scan, active []*backwardCursor, chunk int64) error {
	byPartition := make(map[kafka.TopicPartition]*backwardCursor, len(active))
	partitions := make([]kafka.TopicPartition, 0, len(active))
	for _, c := range active {
		c.open(chunk)
		byPartition[c.bound.Partition] = c
		partitions = append(partitions, c.bound.Partition)
	}

	s.src.Assign(partitions)
	for _, c := range active {
		s.src.Seek(c.bound.Partition, c.lo)
	}

	pending := len(active)
	markFull := func(c *backwardCursor) {
		c.full = true
		pending--
		s.src.PausePartitions(c.bound.Partition)
	}

	s.emptyPolls = 0
	for pending > 0 {
		records, err := s.poll()
		if err != nil {
			return err
		}

		if len(records) == 0 {
			if s.exhausted() {
				s.logger.Debug("Giving up on windows after empty polls", "pending", pending)
				return nil
			}
			continue
		}

		for _, rec := range records {
			c, ok := byPartition[rec.TopicPartition()]
			if !ok || c.full || rec.Offset < c.next {
				continue
			}

			if rec.Offset >= c.hi {
				markFull(c)
				continue
			}

			if !rec.IsControl {
				c.records = append(c.records, rec)
			}
			c.next = rec.Offset + 1
			if c.next >= c.hi {
				markFull(c)
			}
		}
	}

	return nil
}
