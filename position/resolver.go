package position

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hugolhafner/kscan/kafka"
	"github.com/hugolhafner/kscan/logger"
)

type ResolverConfig struct {
	// LookupTimeout bounds the offset lookups of a single Resolve call.
	// Zero means no bound beyond the caller's context.
	LookupTimeout time.Duration
	Logger        logger.Logger
}

type ResolverOption func(*ResolverConfig)

func WithLookupTimeout(d time.Duration) ResolverOption {
	return func(c *ResolverConfig) {
		c.LookupTimeout = d
	}
}

func WithLogger(l logger.Logger) ResolverOption {
	return func(c *ResolverConfig) {
		c.Logger = l
	}
}

func defaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		LookupTimeout: 10 * time.Second,
		Logger:        logger.NewNoopLogger(),
	}
}

// Resolver turns a ConsumerPosition into per-partition Bounds.
type Resolver struct {
	config ResolverConfig
	logger logger.Logger
}

func NewResolver(opts ...ResolverOption) *Resolver {
	cfg := defaultResolverConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Resolver{
		config: cfg,
		logger: cfg.Logger,
	}
}

// Resolve computes the Bounds of every partition selected by pos.
//
// Forward bounds run from the resolved start to the high-water mark captured
// now. Backward bounds run from the log-start offset to the resolved upper
// bound. Offsets outside [logStart, highWatermark] are clamped into it.
//
// Partitions that cannot be resolved are returned in Resolution.Skipped. If
// every selected partition is skipped, ErrNoResolvablePartitions is returned.
// Errors listing start or end offsets as a whole are returned as is.
func (r *Resolver) Resolve(
	ctx context.Context, src kafka.Source, pos ConsumerPosition, dir Direction, partitions []kafka.TopicPartition,
) (Resolution, error) {
	var res Resolution

	targets, skipped, err := r.targets(pos, partitions)
	if err != nil {
		return res, err
	}
	res.Skipped = skipped

	if len(targets) == 0 {
		return res, r.checkResolved(res)
	}

	if r.config.LookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.LookupTimeout)
		defer cancel()
	}

	starts, err := src.StartOffsets(ctx, targets)
	if err != nil {
		return res, fmt.Errorf("start offsets: %w", err)
	}

	ends, err := src.EndOffsets(ctx, targets)
	if err != nil {
		return res, fmt.Errorf("end offsets: %w", err)
	}

	var byTime kafka.ListedOffsets
	if pos.SeekType == SeekTimestamp {
		timestamps := make(map[kafka.TopicPartition]int64, len(targets))
		for _, tp := range targets {
			timestamps[tp] = pos.SeekTo[tp]
		}

		byTime, err = src.OffsetsForTimes(ctx, timestamps)
		if err != nil {
			// the lookup as a whole failed, which fails every partition on its own
			byTime = make(kafka.ListedOffsets, len(targets))
			for _, tp := range targets {
				byTime[tp] = kafka.ListedOffset{Offset: -1, Err: err}
			}
		}
	}

	for _, tp := range targets {
		start, err := listed(starts, tp)
		if err != nil {
			res.Skipped = append(res.Skipped, r.skip(tp, fmt.Errorf("log start offset: %w", err)))
			continue
		}

		end, err := listed(ends, tp)
		if err != nil {
			res.Skipped = append(res.Skipped, r.skip(tp, fmt.Errorf("high watermark: %w", err)))
			continue
		}

		var target int64
		switch pos.SeekType {
		case SeekBeginning:
			target = start
		case SeekLatest:
			target = end
		case SeekOffset:
			target = clamp(pos.SeekTo[tp], start, end)
		case SeekTimestamp:
			found, ok := byTime.Lookup(tp)
			if !ok {
				res.Skipped = append(res.Skipped, r.skip(tp, fmt.Errorf("timestamp lookup: %w", kafka.ErrNoOffsetFound)))
				continue
			}
			if found.Err != nil {
				res.Skipped = append(res.Skipped, r.skip(tp, fmt.Errorf("timestamp lookup: %w", found.Err)))
				continue
			}

			target = end
			if found.Offset >= 0 {
				target = clamp(found.Offset, start, end)
			}
		}

		b := Bound{Partition: tp, Start: target, End: end}
		if dir == Backward {
			b = Bound{Partition: tp, Start: start, End: target}
		}
		res.Bounds = append(res.Bounds, b)
	}

	return res, r.checkResolved(res)
}

// targets selects the partitions pos asks for. For offset and timestamp
// positions only partitions with a SeekTo entry are selected; entries naming
// a partition the topic does not have are skipped.
func (r *Resolver) targets(
	pos ConsumerPosition, partitions []kafka.TopicPartition,
) ([]kafka.TopicPartition, []*PartitionError, error) {
	switch pos.SeekType {
	case SeekBeginning, SeekLatest:
		targets := make([]kafka.TopicPartition, 0, len(partitions))
		for _, tp := range partitions {
			if tp.Topic == pos.Topic {
				targets = append(targets, tp)
			}
		}
		sortPartitions(targets)
		return targets, nil, nil

	case SeekOffset, SeekTimestamp:
		known := make(map[kafka.TopicPartition]struct{}, len(partitions))
		for _, tp := range partitions {
			known[tp] = struct{}{}
		}

		requested := make([]kafka.TopicPartition, 0, len(pos.SeekTo))
		for tp := range pos.SeekTo {
			requested = append(requested, tp)
		}
		sortPartitions(requested)

		var (
			targets []kafka.TopicPartition
			skipped []*PartitionError
		)
		for _, tp := range requested {
			if _, ok := known[tp]; !ok || tp.Topic != pos.Topic {
				skipped = append(skipped, r.skip(tp, ErrPartitionNotFound))
				continue
			}
			targets = append(targets, tp)
		}
		return targets, skipped, nil

	default:
		return nil, nil, fmt.Errorf("%w: %d", ErrUnknownSeekType, pos.SeekType)
	}
}

func (r *Resolver) skip(tp kafka.TopicPartition, cause error) *PartitionError {
	r.logger.Warn(
		"Skipping partition, position could not be resolved",
		"topic", tp.Topic,
		"partition", tp.Partition,
		"error", cause,
	)
	return NewPartitionError(tp, cause)
}

func (r *Resolver) checkResolved(res Resolution) error {
	if len(res.Bounds) > 0 || len(res.Skipped) == 0 {
		return nil
	}

	errs := make([]error, 0, len(res.Skipped)+1)
	errs = append(errs, ErrNoResolvablePartitions)
	for _, s := range res.Skipped {
		errs = append(errs, s)
	}
	return errors.Join(errs...)
}

func listed(offsets kafka.ListedOffsets, tp kafka.TopicPartition) (int64, error) {
	o, ok := offsets.Lookup(tp)
	if !ok {
		return 0, kafka.ErrNoOffsetFound
	}
	if o.Err != nil {
		return 0, o.Err
	}
	if o.Offset < 0 {
		return 0, kafka.ErrNoOffsetFound
	}
	return o.Offset, nil
}

func clamp(offset, lo, hi int64) int64 {
	return max(lo, min(offset, hi))
}
