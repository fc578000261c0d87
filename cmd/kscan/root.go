package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hugolhafner/kscan/emitter"
	"github.com/hugolhafner/kscan/filter"
	"github.com/hugolhafner/kscan/kafka"
	"github.com/hugolhafner/kscan/logger"
	kscanotel "github.com/hugolhafner/kscan/otel"
	"github.com/hugolhafner/kscan/plugins/zaplogger"
	"github.com/hugolhafner/kscan/position"
	"github.com/hugolhafner/kscan/serde"
	"github.com/hugolhafner/kscan/throttle"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
)

// newRootCommand builds the kscan command. Events are written to out as
// JSON lines.
func newRootCommand(out io.Writer) *cobra.Command {
	var configPath string
	flags := defaultConfig()

	cmd := &cobra.Command{
		Use:           "kscan",
		Short:         "Scan a Kafka topic forward or backward",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			applyFlags(cmd, &cfg, flags)

			return run(cmd.Context(), cfg, out)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "YAML config file")
	f.StringSliceVarP(&flags.Brokers, "brokers", "b", flags.Brokers, "bootstrap brokers")
	f.StringVarP(&flags.Topic, "topic", "t", "", "topic to scan")
	f.StringVarP(&flags.Direction, "direction", "d", flags.Direction, "forward or backward")
	f.StringVarP(&flags.Seek, "seek", "s", flags.Seek, "beginning, latest, offset or timestamp")
	f.StringSliceVar(&flags.Offsets, "offsets", nil, "partition=offset pairs for --seek offset")
	f.StringVar(&flags.Timestamp, "timestamp", "", "epoch millis or RFC 3339 for --seek timestamp")
	f.IntVarP(&flags.Limit, "limit", "n", flags.Limit, "maximum number of messages")
	f.StringVarP(&flags.Filter, "filter", "f", "", "CEL expression messages must match")
	f.StringVar(&flags.KeySerde, "key-serde", flags.KeySerde, "key deserialiser")
	f.StringVar(&flags.ValueSerde, "value-serde", flags.ValueSerde, "value deserialiser")
	f.Float64Var(&flags.Rate.Polls, "rate", 0, "maximum polls per second, 0 for unlimited")
	f.IntVar(&flags.Rate.Bytes, "rate-bytes", 0, "maximum bytes per second, 0 for unlimited")
	f.DurationVar(&flags.PollTimeout, "poll-timeout", flags.PollTimeout, "timeout of a single poll")
	f.Int64Var(&flags.ChunkSize, "chunk-size", 0, "fixed per-partition window for backward scans")
	f.StringVar(&flags.LogLevel, "log-level", flags.LogLevel, "debug, info, warn or error")

	return cmd
}

// applyFlags overrides cfg with every flag set on the command line.
func applyFlags(cmd *cobra.Command, cfg *Config, flags Config) {
	changed := cmd.Flags().Changed

	if changed("brokers") {
		cfg.Brokers = flags.Brokers
	}
	if changed("topic") {
		cfg.Topic = flags.Topic
	}
	if changed("direction") {
		cfg.Direction = flags.Direction
	}
	if changed("seek") {
		cfg.Seek = flags.Seek
	}
	if changed("offsets") {
		cfg.Offsets = flags.Offsets
	}
	if changed("timestamp") {
		cfg.Timestamp = flags.Timestamp
	}
	if changed("limit") {
		cfg.Limit = flags.Limit
	}
	if changed("filter") {
		cfg.Filter = flags.Filter
	}
	if changed("key-serde") {
		cfg.KeySerde = flags.KeySerde
	}
	if changed("value-serde") {
		cfg.ValueSerde = flags.ValueSerde
	}
	if changed("rate") {
		cfg.Rate.Polls = flags.Rate.Polls
	}
	if changed("rate-bytes") {
		cfg.Rate.Bytes = flags.Rate.Bytes
	}
	if changed("poll-timeout") {
		cfg.PollTimeout = flags.PollTimeout
	}
	if changed("chunk-size") {
		cfg.ChunkSize = flags.ChunkSize
	}
	if changed("log-level") {
		cfg.LogLevel = flags.LogLevel
	}
}

func run(ctx context.Context, cfg Config, out io.Writer) error {
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log, err := zaplogger.NewProduction(level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	pos, dir, err := cfg.Position()
	if err != nil {
		return err
	}

	kafkaOpts := []kafka.KgoOption{
		kafka.WithBootstrapServers(cfg.Brokers),
		kafka.WithClientID(cfg.ClientID),
		kafka.WithLogger(log),
	}
	if cfg.ReadCommitted {
		kafkaOpts = append(kafkaOpts, kafka.WithReadCommitted())
	}
	factory := kafka.NewKgoSourceFactory(kafkaOpts...)

	if pos.SeekType == position.SeekTimestamp {
		pos, err = describeTimestamp(ctx, factory, pos)
		if err != nil {
			return err
		}
	}

	pipeline, err := serde.NewNamedPipeline(cfg.KeySerde, cfg.ValueSerde)
	if err != nil {
		return err
	}

	predicate := filter.All()
	if cfg.Filter != "" {
		predicate, err = filter.CEL(cfg.Filter, filter.WithCELLogger(log))
		if err != nil {
			return err
		}
	}

	telemetry, err := kscanotel.NewTelemetry(otel.GetTracerProvider(), otel.GetMeterProvider())
	if err != nil {
		return fmt.Errorf("create telemetry: %w", err)
	}

	opts := []emitter.Option{
		emitter.WithPollTimeout(cfg.PollTimeout),
		emitter.WithMaxEmptyPolls(cfg.MaxEmptyPolls),
		emitter.WithBackwardChunkSize(cfg.ChunkSize),
		emitter.WithTelemetry(telemetry),
		emitter.WithLogger(log),
	}
	if cfg.Rate.Polls > 0 || cfg.Rate.Bytes > 0 {
		opts = append(opts, emitter.WithThrottler(throttle.NewRate(cfg.Rate.Polls, cfg.Rate.Bytes)))
	}

	var e emitter.Emitter
	switch dir {
	case position.Forward:
		e = emitter.NewForward(factory, pos, cfg.Limit, pipeline, predicate, opts...)
	case position.Backward:
		e = emitter.NewBackward(factory, pos, cfg.Limit, pipeline, predicate, opts...)
	}

	w := newEventWriter(out)
	for ev := range emitter.Scan(ctx, e) {
		if err := w.Write(ev); err != nil {
			return err
		}
		if ev.Type == emitter.EventError {
			return ev.Err
		}
	}

	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// describeTimestamp applies the timestamp of pos to every partition of its topic.
func describeTimestamp(
	ctx context.Context, factory kafka.SourceFactory, pos position.ConsumerPosition,
) (position.ConsumerPosition, error) {
	src, err := factory()
	if err != nil {
		return pos, err
	}
	defer src.Close()

	partitions, err := src.Partitions(ctx, pos.Topic)
	if err != nil {
		return pos, err
	}
	return expandTimestamp(pos, partitions), nil
}
