//go:build unit

package emitter_test

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/hugolhafner/kscan/emitter"
	"github.com/hugolhafner/kscan/kafka"
	mockkafka "github.com/hugolhafner/kscan/kafka/mock"
	"github.com/hugolhafner/kscan/position"
	"github.com/hugolhafner/kscan/record"
	"github.com/stretchr/testify/require"
)

const (
	topic          = "test"
	partitionCount = 5
	perPartition   = 100
	maxPollRecords = 19
	unlimited      = math.MaxInt
)

var baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func recordTime(partition int32, offset int64) time.Time {
	return baseTime.Add(time.Duration(offset)*time.Minute + time.Duration(partition)*time.Second)
}

func tp(partition int32) kafka.TopicPartition {
	return kafka.TopicPartition{Topic: topic, Partition: partition}
}

// newFilledCluster creates the topic with partitionCount partitions holding
// perPartition records each. Values are "<partition>-<offset>".
func newFilledCluster(t *testing.T, opts ...mockkafka.Option) *mockkafka.Cluster {
	t.Helper()

	c := mockkafka.NewCluster(append([]mockkafka.Option{mockkafka.WithMaxPollRecords(maxPollRecords)}, opts...)...)
	c.CreateTopic(topic, partitionCount)

	for p := int32(0); p < partitionCount; p++ {
		for i := int64(0); i < perPartition; i++ {
			c.AddRecords(
				topic, p,
				mockkafka.Record(fmt.Sprintf("key-%d", i), fmt.Sprintf("%d-%d", p, i)).
					WithTimestamp(recordTime(p, i)).
					Build(),
			)
		}
	}

	return c
}

func beginning() position.ConsumerPosition {
	return position.NewConsumerPosition(position.SeekBeginning, topic, nil)
}

func latest() position.ConsumerPosition {
	return position.NewConsumerPosition(position.SeekLatest, topic, nil)
}

func atOffsets(offsets func(p int32) int64) position.ConsumerPosition {
	seekTo := make(map[kafka.TopicPartition]int64, partitionCount)
	for p := int32(0); p < partitionCount; p++ {
		seekTo[tp(p)] = offsets(p)
	}
	return position.NewConsumerPosition(position.SeekOffset, topic, seekTo)
}

func atTimestamps(offsets func(p int32) int64) position.ConsumerPosition {
	seekTo := make(map[kafka.TopicPartition]int64, partitionCount)
	for p := int32(0); p < partitionCount; p++ {
		seekTo[tp(p)] = recordTime(p, offsets(p)).UnixMilli()
	}
	return position.NewConsumerPosition(position.SeekTimestamp, topic, seekTo)
}

func collect(t *testing.T, e emitter.Emitter) []emitter.Event {
	t.Helper()
	return emitter.Collect(context.Background(), e)
}

func messages(events []emitter.Event) []record.Message {
	var out []record.Message
	for _, e := range events {
		if e.Type == emitter.EventMessage {
			out = append(out, *e.Message)
		}
	}
	return out
}

func phases(events []emitter.Event) int {
	n := 0
	for _, e := range events {
		if e.Type == emitter.EventPhase {
			n++
		}
	}
	return n
}

// requireDone checks the scan started with a PHASE and ended with its only
// terminal event, DONE.
func requireDone(t *testing.T, events []emitter.Event) emitter.Stats {
	t.Helper()

	require.NotEmpty(t, events)
	require.Equal(t, emitter.EventPhase, events[0].Type)

	last := events[len(events)-1]
	require.Equal(t, emitter.EventDone, last.Type, "last event is %s", last)
	requireSingleTerminal(t, events)

	return *last.Stats
}

func requireError(t *testing.T, events []emitter.Event) error {
	t.Helper()

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	require.Equal(t, emitter.EventError, last.Type, "last event is %s", last)
	require.Error(t, last.Err)
	requireSingleTerminal(t, events)

	return last.Err
}

func requireSingleTerminal(t *testing.T, events []emitter.Event) {
	t.Helper()

	terminals := 0
	for _, e := range events {
		if e.Type.Terminal() {
			terminals++
		}
	}
	require.Equal(t, 1, terminals)
}

func requireNoTerminal(t *testing.T, events []emitter.Event) {
	t.Helper()

	for _, e := range events {
		require.False(t, e.Type.Terminal(), "unexpected terminal event %s", e)
	}
}

// ids identifies messages as "<partition>-<offset>".
func ids(msgs []record.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, fmt.Sprintf("%d-%d", m.Partition, m.Offset))
	}
	return out
}

// expectedIDs lists "<partition>-<offset>" for every offset in [from(p), to(p)).
func expectedIDs(from, to func(p int32) int64) []string {
	var out []string
	for p := int32(0); p < partitionCount; p++ {
		for o := from(p); o < to(p); o++ {
			out = append(out, fmt.Sprintf("%d-%d", p, o))
		}
	}
	return out
}

func byPartition(msgs []record.Message) map[int32][]int64 {
	out := make(map[int32][]int64)
	for _, m := range msgs {
		out[m.Partition] = append(out[m.Partition], m.Offset)
	}
	return out
}

func constant(v int64) func(int32) int64 {
	return func(int32) int64 { return v }
}

// spread gives every partition a different offset.
func spread(p int32) int64 {
	return int64(13 + 17*p)
}
