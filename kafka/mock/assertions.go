package mockkafka

import (
	"testing"

	"github.com/hugolhafner/kscan/kafka"
	"github.com/stretchr/testify/require"
)

// AssertClosed verifies that Close() was called.
func (s *Source) AssertClosed(tb testing.TB) {
	tb.Helper()

	require.True(tb, s.IsClosed(), "expected source to be closed")
}

// AssertAssigned verifies that the given partitions are currently assigned.
func (s *Source) AssertAssigned(tb testing.TB, partitions ...kafka.TopicPartition) {
	tb.Helper()

	assigned := make(map[kafka.TopicPartition]bool)
	for _, p := range s.Assigned() {
		assigned[p] = true
	}

	for _, p := range partitions {
		if !assigned[p] {
			tb.Errorf("expected partition %s to be assigned, but it is not", p)
		}
	}
}

// AssertSeeked verifies that tp was seeked to offset at some point.
func (s *Source) AssertSeeked(tb testing.TB, tp kafka.TopicPartition, offset int64) {
	tb.Helper()

	for _, sk := range s.Seeks() {
		if sk.Partition == tp && sk.Offset == offset {
			return
		}
	}

	tb.Errorf("expected partition %s to be seeked to offset %d, but it was not", tp, offset)
}

// AssertNotPolled verifies that Poll was never called.
func (s *Source) AssertNotPolled(tb testing.TB) {
	tb.Helper()

	require.Zero(tb, s.PollCount(), "expected no polls, got %d", s.PollCount())
}

// AssertAllClosed verifies that every source opened on the cluster was closed.
func (c *Cluster) AssertAllClosed(tb testing.TB) {
	tb.Helper()

	for i, s := range c.Sources() {
		require.True(tb, s.IsClosed(), "expected source %d to be closed", i)
	}
}
