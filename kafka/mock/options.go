package mockkafka

import (
	"time"

	"github.com/hugolhafner/kscan/kafka"
)

// Option is a functional option for configuring a mock Cluster.
type Option func(*Cluster)

// WithMaxPollRecords sets the maximum number of records returned per Poll call.
// Default is 10.
func WithMaxPollRecords(n int) Option {
	return func(s *Cluster) {
		if n > 0 {
			s.maxPollRecords = n
		}
	}
}

// WithPollDelay adds an artificial delay to Poll calls.
func WithPollDelay(d time.Duration) Option {
	return func(s *Cluster) {
		s.pollDelay = d
	}
}

// WithPollError configures an error to be returned by all Poll calls.
func WithPollError(err error) Option {
	return func(s *Cluster) {
		s.pollErr = func(int) error { return err }
	}
}

// WithPollErrorFunc configures a function deciding the error of the n-th Poll call (1 indexed).
func WithPollErrorFunc(fn func(call int) error) Option {
	return func(s *Cluster) {
		s.pollErr = fn
	}
}

// WithTimestampLookupError makes OffsetsForTimes fail for the partitions fn returns an error for.
func WithTimestampLookupError(fn func(tp kafka.TopicPartition) error) Option {
	return func(s *Cluster) {
		s.lookupErr = fn
	}
}

// WithPartitionsError configures an error to be returned by Partitions.
func WithPartitionsError(err error) Option {
	return func(s *Cluster) {
		s.partitionsErr = err
	}
}
