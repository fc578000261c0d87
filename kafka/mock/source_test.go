//go:build unit

package mockkafka_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hugolhafner/kscan/kafka"
	mockkafka "github.com/hugolhafner/kscan/kafka/mock"
	"github.com/stretchr/testify/require"
)

func tp(p int32) kafka.TopicPartition {
	return kafka.TopicPartition{Topic: "input", Partition: p}
}

func TestCluster_AddRecordsAssignsOffsets(t *testing.T) {
	t.Parallel()

	c := mockkafka.NewCluster()
	stored := c.AddRecords(
		"input", 1,
		mockkafka.SimpleRecord("k1", "v1"),
		mockkafka.Record("k2", "v2").WithOffset(10).Build(),
		mockkafka.SimpleRecord("k3", "v3"),
	)

	require.Len(t, stored, 3)
	require.Equal(t, []int64{0, 10, 11}, []int64{stored[0].Offset, stored[1].Offset, stored[2].Offset})
	require.Equal(t, "input", stored[0].Topic)
	require.Equal(t, int32(1), stored[0].Partition)

	partitions, err := c.NewSource().Partitions(context.Background(), "input")
	require.NoError(t, err)
	require.Equal(t, []kafka.TopicPartition{tp(0), tp(1)}, partitions)
}

func TestSource_Offsets(t *testing.T) {
	t.Parallel()

	c := mockkafka.NewCluster()
	c.AddRecords("input", 0, mockkafka.Values("a", "b", "c", "d")...)
	c.DeleteRecordsBefore("input", 0, 2)

	src := c.NewSource()
	ctx := context.Background()

	starts, err := src.StartOffsets(ctx, []kafka.TopicPartition{tp(0), tp(5)})
	require.NoError(t, err)
	require.Equal(t, int64(2), starts[tp(0)].Offset)
	require.ErrorIs(t, starts[tp(5)].Err, kafka.ErrUnknownTopic)

	ends, err := src.EndOffsets(ctx, []kafka.TopicPartition{tp(0)})
	require.NoError(t, err)
	require.Equal(t, int64(4), ends[tp(0)].Offset)
}

func TestSource_OffsetsForTimes(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := mockkafka.NewCluster()
	for i := 0; i < 3; i++ {
		c.AddRecords("input", 0, mockkafka.ValueRecord("v").WithTimestamp(base.Add(time.Duration(i)*time.Hour)).Build())
	}

	src := c.NewSource()
	got, err := src.OffsetsForTimes(
		context.Background(), map[kafka.TopicPartition]int64{
			tp(0): base.Add(90 * time.Minute).UnixMilli(),
		},
	)
	require.NoError(t, err)
	require.Equal(t, int64(2), got[tp(0)].Offset)

	got, err = src.OffsetsForTimes(
		context.Background(), map[kafka.TopicPartition]int64{
			tp(0): base.Add(time.Hour * 5).UnixMilli(),
		},
	)
	require.NoError(t, err)
	require.Equal(t, int64(-1), got[tp(0)].Offset)
}

func TestSource_PollRoundRobin(t *testing.T) {
	t.Parallel()

	c := mockkafka.NewCluster(mockkafka.WithMaxPollRecords(3))
	c.AddRecords("input", 0, mockkafka.Values("a0", "a1", "a2")...)
	c.AddRecords("input", 1, mockkafka.Values("b0", "b1", "b2")...)

	src := c.NewSource()
	src.Assign([]kafka.TopicPartition{tp(0), tp(1)})

	records, err := src.Poll(context.Background(), time.Second)
	require.NoError(t, err)
	require.Equal(t, []string{"a0", "b0", "a1"}, values(records))

	records, err = src.Poll(context.Background(), time.Second)
	require.NoError(t, err)
	require.Equal(t, []string{"a2", "b1", "b2"}, values(records))

	records, err = src.Poll(context.Background(), time.Second)
	require.NoError(t, err)
	require.Empty(t, records)
	require.Equal(t, 3, src.PollCount())
}

func TestSource_SeekAndPause(t *testing.T) {
	t.Parallel()

	c := mockkafka.NewCluster()
	c.AddRecords("input", 0, mockkafka.Values("a0", "a1", "a2")...)
	c.AddRecords("input", 1, mockkafka.Values("b0", "b1", "b2")...)

	src := c.NewSource()
	src.Assign([]kafka.TopicPartition{tp(0), tp(1)})
	src.Seek(tp(0), 2)
	src.Seek(tp(3), 0) // not assigned, ignored
	src.PausePartitions(tp(1))

	records, err := src.Poll(context.Background(), time.Second)
	require.NoError(t, err)
	require.Equal(t, []string{"a2"}, values(records))

	src.ResumePartitions(tp(1))
	records, err = src.Poll(context.Background(), time.Second)
	require.NoError(t, err)
	require.Equal(t, []string{"b0", "b1", "b2"}, values(records))

	src.AssertSeeked(t, tp(0), 2)
	src.AssertAssigned(t, tp(0), tp(1))
	require.Len(t, src.Seeks(), 1)
}

func TestSource_AssignReplaces(t *testing.T) {
	t.Parallel()

	c := mockkafka.NewCluster()
	c.AddRecords("input", 0, mockkafka.Values("a0")...)
	c.AddRecords("input", 1, mockkafka.Values("b0")...)

	src := c.NewSource()
	src.Assign([]kafka.TopicPartition{tp(0)})
	src.PausePartitions(tp(0))
	src.Assign([]kafka.TopicPartition{tp(1)})

	require.Equal(t, []kafka.TopicPartition{tp(1)}, src.Assigned())

	records, err := src.Poll(context.Background(), time.Second)
	require.NoError(t, err)
	require.Equal(t, []string{"b0"}, values(records))
}

func TestSource_PollErrors(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")
	c := mockkafka.NewCluster(
		mockkafka.WithPollErrorFunc(
			func(call int) error {
				if call == 2 {
					return errBoom
				}
				return nil
			},
		),
	)
	src := c.NewSource()

	_, err := src.Poll(context.Background(), time.Second)
	require.NoError(t, err)
	_, err = src.Poll(context.Background(), time.Second)
	require.ErrorIs(t, err, errBoom)
}

func TestSource_PollDelayHonoursContext(t *testing.T) {
	t.Parallel()

	c := mockkafka.NewCluster(mockkafka.WithPollDelay(time.Minute))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.NewSource().Poll(ctx, time.Second)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSource_Closed(t *testing.T) {
	t.Parallel()

	c := mockkafka.NewCluster()
	c.CreateTopic("input", 1)

	src := c.NewSource()
	src.Close()
	src.AssertClosed(t)
	c.AssertAllClosed(t)

	_, err := src.Poll(context.Background(), time.Second)
	require.ErrorIs(t, err, kafka.ErrSourceClosed)
	_, err = src.Partitions(context.Background(), "input")
	require.ErrorIs(t, err, kafka.ErrSourceClosed)
}

func TestCluster_Factory(t *testing.T) {
	t.Parallel()

	c := mockkafka.NewCluster(mockkafka.WithPartitionsError(errors.New("metadata")))
	src, err := c.Factory()()
	require.NoError(t, err)
	require.Same(t, c.LastSource(), src)
	require.Len(t, c.Sources(), 1)

	_, err = src.Partitions(context.Background(), "input")
	require.Error(t, err)
}

func values(records []kafka.ConsumerRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, string(r.Value))
	}
	return out
}
