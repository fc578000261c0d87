package emitter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hugolhafner/kscan/filter"
	"github.com/hugolhafner/kscan/kafka"
	"github.com/hugolhafner/kscan/logger"
	kscanotel "github.com/hugolhafner/kscan/otel"
	"github.com/hugolhafner/kscan/position"
	"github.com/hugolhafner/kscan/serde"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.38.0"
	"go.opentelemetry.io/otel/trace"
)

// errCancelled unwinds a scan whose context is done or whose sink declined
// an event. It never reaches the sink.
var errCancelled = errors.New("scan cancelled")

// scanner is the part of a scan that differs between directions. It runs
// once the source is open and the non-empty bounds are known.
type scanner func(s *scan, bounds []position.Bound) error

// base holds what Forward and Backward share.
type base struct {
	factory   kafka.SourceFactory
	position  position.ConsumerPosition
	limit     int
	pipeline  *serde.Pipeline
	predicate filter.Predicate
	direction position.Direction

	config   Config
	resolver *position.Resolver
	logger   logger.Logger
}

func newBase(
	factory kafka.SourceFactory,
	pos position.ConsumerPosition,
	limit int,
	pipeline *serde.Pipeline,
	predicate filter.Predicate,
	dir position.Direction,
	opts []Option,
) base {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if pipeline == nil {
		pipeline = serde.StringPipeline()
	}
	if predicate == nil {
		predicate = filter.All()
	}

	l := cfg.Logger.With("topic", pos.Topic, "direction", dir.String())

	return base{
		factory:   factory,
		position:  pos,
		limit:     limit,
		pipeline:  pipeline,
		predicate: predicate,
		direction: dir,
		config:    cfg,
		resolver: position.NewResolver(
			position.WithLookupTimeout(cfg.LookupTimeout),
			position.WithLogger(l),
		),
		logger: l,
	}
}

// scan is the state of one Run call.
type scan struct {
	*base

	ctx   context.Context
	sink  *guardedSink
	src   kafka.Source
	attrs metric.MeasurementOption

	stats      Stats
	emptyPolls int
}

func (b *base) run(ctx context.Context, sink Sink, body scanner) {
	tel := b.config.Telemetry
	started := time.Now()

	attrs := metric.WithAttributes(
		semconv.MessagingDestinationName(b.position.Topic),
		kscanotel.AttrDirection.String(b.direction.String()),
	)

	ctx, span := tel.Tracer.Start(
		ctx, b.position.Topic+" scan",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationTypeReceive,
			semconv.MessagingDestinationName(b.position.Topic),
			kscanotel.AttrDirection.String(b.direction.String()),
			kscanotel.AttrSeekType.String(b.position.SeekType.String()),
			attribute.Int("scan.limit", b.limit),
		),
	)
	defer span.End()

	tel.ScansActive.Add(ctx, 1, attrs)
	defer tel.ScansActive.Add(ctx, -1, attrs)

	s := &scan{
		base:  b,
		ctx:   ctx,
		sink:  &guardedSink{sink: sink},
		attrs: attrs,
	}

	b.logger.Info("Scan started", "seekType", b.position.SeekType.String(), "limit", b.limit)

	err := s.execute(body)
	s.stats.Elapsed = time.Since(started)

	status := kscanotel.StatusSuccess
	switch {
	case errors.Is(err, errCancelled) || (err != nil && ctx.Err() != nil):
		status = kscanotel.StatusCancelled
		span.SetStatus(codes.Error, "cancelled")
		b.logger.Debug("Scan cancelled", "emitted", s.stats.MessagesEmitted)

	case err != nil:
		status = kscanotel.StatusError
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		tel.Errors.Add(ctx, 1, attrs)
		b.logger.Error("Scan failed", "error", err, "emitted", s.stats.MessagesEmitted)
		s.sink.Push(ErrorEvent(err))

	default:
		b.logger.Info(
			"Scan finished",
			"emitted", s.stats.MessagesEmitted,
			"consumed", s.stats.RecordsConsumed,
			"bytes", s.stats.BytesConsumed,
			"elapsed", s.stats.Elapsed,
		)
		s.sink.Push(DoneEvent(s.stats))
	}

	span.SetAttributes(
		kscanotel.AttrScanStatus.String(status),
		attribute.Int("scan.messages_emitted", s.stats.MessagesEmitted),
	)
	tel.ScanDuration.Record(
		ctx, s.stats.Elapsed.Seconds(), metric.WithAttributes(
			semconv.MessagingDestinationName(b.position.Topic),
			kscanotel.AttrDirection.String(b.direction.String()),
			kscanotel.AttrScanStatus.String(status),
		),
	)
}

// execute opens the source, resolves bounds and runs body. The source is
// closed on every path.
func (s *scan) execute(body scanner) error {
	if err := s.phase(PhaseStarted); err != nil {
		return err
	}
	if err := s.ctx.Err(); err != nil {
		return errCancelled
	}

	src, err := s.factory()
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer src.Close()
	s.src = src

	partitions, err := src.Partitions(s.ctx, s.position.Topic)
	if err != nil {
		return s.cancelledOr(fmt.Errorf("list partitions: %w", err))
	}

	res, err := s.resolver.Resolve(s.ctx, src, s.position, s.direction, partitions)
	if err != nil {
		return s.cancelledOr(fmt.Errorf("resolve position: %w", err))
	}

	bounds := res.NonEmpty()
	for _, b := range bounds {
		s.logger.Debug(
			"Resolved partition bounds",
			"partition", b.Partition.Partition,
			"start", b.Start,
			"end", b.End,
		)
	}

	if len(bounds) == 0 || s.limit <= 0 {
		return nil
	}

	return body(s, bounds)
}

func (s *scan) cancelledOr(err error) error {
	if s.ctx.Err() != nil {
		return errCancelled
	}
	return err
}

// poll issues one throttled poll. Consecutive empty polls are counted and
// followed by the configured backoff.
func (s *scan) poll() ([]kafka.ConsumerRecord, error) {
	if err := s.ctx.Err(); err != nil {
		return nil, errCancelled
	}

	tel := s.config.Telemetry
	throttler := s.config.Throttler

	if err := throttler.BeforePoll(s.ctx); err != nil {
		return nil, s.cancelledOr(fmt.Errorf("throttle: %w", err))
	}

	pollStart := time.Now()
	records, err := s.src.Poll(s.ctx, s.config.PollTimeout)
	tel.PollsIssued.Add(s.ctx, 1, s.attrs)

	if err != nil {
		tel.PollDuration.Record(
			s.ctx, time.Since(pollStart).Seconds(), metric.WithAttributes(
				kscanotel.AttrPollStatus.String(kscanotel.StatusError),
			),
		)
		return nil, s.cancelledOr(fmt.Errorf("poll: %w", err))
	}

	pollStatus := kscanotel.StatusSuccess
	if len(records) == 0 {
		pollStatus = kscanotel.StatusEmpty
	}
	tel.PollDuration.Record(
		s.ctx, time.Since(pollStart).Seconds(), metric.WithAttributes(
			kscanotel.AttrPollStatus.String(pollStatus),
		),
	)

	bytes := 0
	for _, r := range records {
		bytes += r.Size()
	}
	s.stats.RecordsConsumed += len(records)
	s.stats.BytesConsumed += int64(bytes)
	tel.RecordsRead.Add(s.ctx, int64(len(records)), s.attrs)
	tel.BytesRead.Add(s.ctx, int64(bytes), s.attrs)

	if err := throttler.AfterPoll(s.ctx, len(records), bytes); err != nil {
		return nil, s.cancelledOr(fmt.Errorf("throttle: %w", err))
	}

	if len(records) > 0 {
		s.emptyPolls = 0
		s.logger.Debug("Polled records", "count", len(records), "bytes", bytes)
		return records, nil
	}

	s.emptyPolls++
	s.logger.Debug("Empty poll", "consecutive", s.emptyPolls)

	if d := s.config.EmptyPollBackoff.Next(uint(s.emptyPolls)); d > 0 {
		select {
		case <-s.ctx.Done():
			return nil, errCancelled
		case <-time.After(d):
		}
	}

	return nil, nil
}

// exhausted reports whether enough consecutive empty polls were seen to give
// up on partitions that have not reached their bound.
func (s *scan) exhausted() bool {
	return s.config.MaxEmptyPolls > 0 && s.emptyPolls >= s.config.MaxEmptyPolls
}

// emit deserialises rec and pushes it if it matches the predicate. It
// reports whether the record matched.
func (s *scan) emit(rec kafka.ConsumerRecord) (bool, error) {
	if s.ctx.Err() != nil {
		return false, errCancelled
	}

	msg := s.pipeline.Deserialise(rec)
	if !s.predicate(msg) {
		return false, nil
	}

	if !s.sink.Push(MessageEvent(msg)) {
		return false, errCancelled
	}

	s.stats.MessagesEmitted++
	s.config.Telemetry.RecordsEmitted.Add(s.ctx, 1, s.attrs)
	return true, nil
}

func (s *scan) limitReached() bool {
	return s.stats.MessagesEmitted >= s.limit
}

func (s *scan) phase(text string) error {
	if !s.sink.Push(PhaseEvent(text)) {
		return errCancelled
	}
	return nil
}
