//go:build unit

package emitter_test

import (
	"context"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/hugolhafner/kscan/emitter"
	mockkafka "github.com/hugolhafner/kscan/kafka/mock"
	"github.com/stretchr/testify/require"
)

// newTransactionalCluster fills every partition with perPartition records
// committed in transactions of ten, so a commit marker follows every tenth
// record and is the last offset of each partition. It returns the ids of
// the data records.
func newTransactionalCluster(t *testing.T) (*mockkafka.Cluster, []string) {
	t.Helper()

	c := mockkafka.NewCluster(mockkafka.WithMaxPollRecords(maxPollRecords))
	c.CreateTopic(topic, partitionCount)

	var data []string
	for p := int32(0); p < partitionCount; p++ {
		for i := int64(0); i < perPartition; i++ {
			stored := c.AddRecords(
				topic, p,
				mockkafka.Record(fmt.Sprintf("key-%d", i), fmt.Sprintf("%d-%d", p, i)).
					WithTimestamp(recordTime(p, i)).
					Build(),
			)
			data = append(data, fmt.Sprintf("%d-%d", p, stored[0].Offset))

			if (i+1)%10 == 0 {
				c.AddRecords(topic, p, mockkafka.ControlRecord().WithTimestamp(recordTime(p, i)).Build())
			}
		}
	}

	return c, data
}

func collectWithin(t *testing.T, e emitter.Emitter) []emitter.Event {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events := emitter.Collect(ctx, e)
	require.NoError(t, ctx.Err(), "scan did not finish on its own")
	return events
}

func TestForward_TrailingCommitMarker_Finishes(t *testing.T) {
	t.Parallel()

	c, data := newTransactionalCluster(t)

	events := collectWithin(
		t, emitter.NewForward(c.Factory(), beginning(), unlimited, nil, nil, emitter.WithMaxEmptyPolls(0)),
	)

	stats := requireDone(t, events)
	msgs := messages(events)
	require.ElementsMatch(t, data, ids(msgs))
	require.Equal(t, len(data), stats.MessagesEmitted)
	require.Equal(t, len(data)+partitionCount*perPartition/10, stats.RecordsConsumed)

	for _, m := range msgs {
		require.Empty(t, m.Error)
		require.NotEmpty(t, m.Value)
	}
	c.AssertAllClosed(t)
}

func TestForward_CommitMarkers_NotCountedTowardLimit(t *testing.T) {
	t.Parallel()

	c, _ := newTransactionalCluster(t)

	events := collectWithin(
		t, emitter.NewForward(c.Factory(), beginning(), 55, nil, nil, emitter.WithMaxEmptyPolls(0)),
	)

	requireDone(t, events)
	msgs := messages(events)
	require.Len(t, msgs, 55)
	for _, m := range msgs {
		require.NotEmpty(t, m.Value)
	}
}

func TestBackward_TrailingCommitMarker_Finishes(t *testing.T) {
	t.Parallel()

	c, data := newTransactionalCluster(t)

	events := collectWithin(
		t, emitter.NewBackward(
			c.Factory(), latest(), unlimited, nil, nil,
			emitter.WithMaxEmptyPolls(0), emitter.WithBackwardChunkSize(7),
		),
	)

	requireDone(t, events)
	msgs := messages(events)
	require.ElementsMatch(t, data, ids(msgs))

	for p, offsets := range byPartition(msgs) {
		require.True(
			t, slices.IsSortedFunc(offsets, func(a, b int64) int { return int(b - a) }),
			"partition %d not newest first: %v", p, offsets,
		)
	}
	c.AssertAllClosed(t)
}
