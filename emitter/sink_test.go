//go:build unit

package emitter_test

import (
	"context"
	"iter"
	"slices"
	"testing"

	"github.com/hugolhafner/kscan/emitter"
	"github.com/hugolhafner/kscan/record"
	"github.com/stretchr/testify/require"
)

func eventSeq(events ...emitter.Event) iter.Seq[emitter.Event] {
	return slices.Values(events)
}

func msgEvent(offset int64) emitter.Event {
	return emitter.MessageEvent(record.Message{Metadata: record.Metadata{Topic: topic, Offset: offset}})
}

func TestOnlyMessages(t *testing.T) {
	t.Parallel()

	seq := eventSeq(
		emitter.PhaseEvent(emitter.PhaseStarted),
		msgEvent(1),
		emitter.PhaseEvent(emitter.PhasePolling),
		msgEvent(2),
		emitter.DoneEvent(emitter.Stats{MessagesEmitted: 2}),
	)

	var offsets []int64
	for m := range emitter.OnlyMessages(seq) {
		offsets = append(offsets, m.Offset)
	}
	require.Equal(t, []int64{1, 2}, offsets)
}

func TestTake(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		n    int
		want []int
	}{
		{name: "fewer than available", n: 2, want: []int{1, 2}},
		{name: "more than available", n: 10, want: []int{1, 2, 3}},
		{name: "zero", n: 0, want: nil},
	}

	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				t.Parallel()
				got := slices.Collect(emitter.Take(slices.Values([]int{1, 2, 3}), tt.n))
				require.Equal(t, tt.want, got)
			},
		)
	}
}

func TestTake_StopsTheScan(t *testing.T) {
	t.Parallel()

	c := newFilledCluster(t)
	e := emitter.NewForward(c.Factory(), beginning(), unlimited, nil, nil)

	msgs := slices.Collect(emitter.Take(emitter.OnlyMessages(emitter.Scan(context.Background(), e)), 5))

	require.Len(t, msgs, 5)
	c.AssertAllClosed(t)
}

func TestEvent_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "PHASE(Consumer started)", emitter.PhaseEvent(emitter.PhaseStarted).String())
	require.Equal(t, "MESSAGE(test-0@7)", msgEvent(7).String())
	require.Equal(t, "DONE", emitter.EventDone.String())
	require.True(t, emitter.EventError.Terminal())
	require.False(t, emitter.EventMessage.Terminal())
}
