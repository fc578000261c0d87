package otel

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	traceNoop "go.opentelemetry.io/otel/trace/noop"
)

const scopeName = "github.com/hugolhafner/kscan"

// Telemetry holds all OpenTelemetry instruments used by scans.
// When no providers are configured, all instruments are noops with zero overhead
type Telemetry struct {
	Tracer trace.Tracer

	// Source metrics
	PollsIssued  metric.Int64Counter
	RecordsRead  metric.Int64Counter
	BytesRead    metric.Int64Counter
	PollDuration metric.Float64Histogram

	// Scan metrics
	RecordsEmitted metric.Int64Counter
	ScanDuration   metric.Float64Histogram
	ScansActive    metric.Int64UpDownCounter

	Errors metric.Int64Counter
}

// NewTelemetry creates a Telemetry instance from the given providers.
// all providers are optional and defaulted to noops if nil
func NewTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) (*Telemetry, error) {
	if tp == nil {
		tp = traceNoop.NewTracerProvider()
	}
	if mp == nil {
		mp = noop.NewMeterProvider()
	}

	meter := mp.Meter(scopeName)

	pollsIssued, err := meter.Int64Counter(
		"scan.polls",
		metric.WithDescription("Poll calls issued against the record source"),
	)
	if err != nil {
		return nil, err
	}

	recordsRead, err := meter.Int64Counter(
		"scan.records.read",
		metric.WithDescription("Raw records returned by polls"),
	)
	if err != nil {
		return nil, err
	}

	bytesRead, err := meter.Int64Counter(
		"scan.bytes.read",
		metric.WithDescription("Key, value and header bytes returned by polls"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	pollDuration, err := meter.Float64Histogram(
		"scan.poll.duration",
		metric.WithDescription("Time per Poll() call"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	recordsEmitted, err := meter.Int64Counter(
		"scan.records.emitted",
		metric.WithDescription("Messages that passed the filter and were emitted"),
	)
	if err != nil {
		return nil, err
	}

	scanDuration, err := meter.Float64Histogram(
		"scan.duration",
		metric.WithDescription("End-to-end scan time"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	scansActive, err := meter.Int64UpDownCounter(
		"scan.active",
		metric.WithDescription("Scans currently running"),
	)
	if err != nil {
		return nil, err
	}

	errors, err := meter.Int64Counter(
		"scan.errors",
		metric.WithDescription("Scans that ended with an error"),
	)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Tracer:         tp.Tracer(scopeName),
		PollsIssued:    pollsIssued,
		RecordsRead:    recordsRead,
		BytesRead:      bytesRead,
		PollDuration:   pollDuration,
		RecordsEmitted: recordsEmitted,
		ScanDuration:   scanDuration,
		ScansActive:    scansActive,
		Errors:         errors,
	}, nil
}

// Noop returns a Telemetry instance with all noop instruments
func Noop() *Telemetry {
	t, _ := NewTelemetry(nil, nil)
	return t
}
