package position

import (
	"fmt"
	"maps"
	"sort"
	"strings"

	"github.com/hugolhafner/kscan/kafka"
)

// SeekType selects how a ConsumerPosition is turned into offsets.
type SeekType int

const (
	SeekBeginning SeekType = iota
	SeekLatest
	SeekOffset
	SeekTimestamp
)

func (s SeekType) String() string {
	switch s {
	case SeekBeginning:
		return "beginning"
	case SeekLatest:
		return "latest"
	case SeekOffset:
		return "offset"
	case SeekTimestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

func ParseSeekType(s string) (SeekType, error) {
	switch strings.ToLower(s) {
	case "beginning", "earliest":
		return SeekBeginning, nil
	case "latest", "end":
		return SeekLatest, nil
	case "offset":
		return SeekOffset, nil
	case "timestamp":
		return SeekTimestamp, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownSeekType, s)
	}
}

// Direction is the order in which a scan walks each partition.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return "unknown"
	}
}

func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "forward", "oldest":
		return Forward, nil
	case "backward", "newest":
		return Backward, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", s)
	}
}

// ConsumerPosition is where a scan starts. SeekTo holds offsets for
// SeekOffset and epoch millis for SeekTimestamp; partitions without an entry
// are not scanned in those modes.
type ConsumerPosition struct {
	SeekType SeekType
	Topic    string
	SeekTo   map[kafka.TopicPartition]int64
}

func NewConsumerPosition(seekType SeekType, topic string, seekTo map[kafka.TopicPartition]int64) ConsumerPosition {
	return ConsumerPosition{
		SeekType: seekType,
		Topic:    topic,
		SeekTo:   maps.Clone(seekTo),
	}
}

// Bound is the half-open offset range [Start, End) to scan on one partition.
type Bound struct {
	Partition kafka.TopicPartition
	Start     int64
	End       int64
}

func (b Bound) Empty() bool {
	return b.Start >= b.End
}

func (b Bound) Len() int64 {
	if b.Empty() {
		return 0
	}
	return b.End - b.Start
}

// Resolution is the outcome of resolving a position against a topic.
type Resolution struct {
	// Bounds holds one entry per resolved partition, in partition order.
	Bounds []Bound
	// Skipped holds the partitions that could not be resolved.
	Skipped []*PartitionError
}

// NonEmpty returns the bounds that have something to read.
func (r Resolution) NonEmpty() []Bound {
	out := make([]Bound, 0, len(r.Bounds))
	for _, b := range r.Bounds {
		if !b.Empty() {
			out = append(out, b)
		}
	}
	return out
}

func sortPartitions(tps []kafka.TopicPartition) {
	sort.Slice(
		tps, func(i, j int) bool {
			if tps[i].Topic != tps[j].Topic {
				return tps[i].Topic < tps[j].Topic
			}
			return tps[i].Partition < tps[j].Partition
		},
	)
}
