package kafka

import (
	"strconv"
	"time"
)

// Header represents a single Kafka record header
// kafka needs to support multiple headers with duplicate keys
type Header struct {
	Key   string
	Value []byte
}

// HeaderValue returns the value of the first header matching the given key
// Returns (nil, false) if no header with that key exists
func HeaderValue(headers []Header, key string) ([]byte, bool) {
	for _, h := range headers {
		if h.Key == key {
			return h.Value, true
		}
	}
	return nil, false
}

type ConsumerRecord struct {
	Key         []byte
	Value       []byte
	Headers     []Header
	Topic       string
	Partition   int32
	Offset      int64
	LeaderEpoch int32
	Timestamp   time.Time
	// IsControl marks a transaction commit or abort marker. Markers occupy
	// an offset but carry no user data.
	IsControl bool
}

func (r ConsumerRecord) TopicPartition() TopicPartition {
	return TopicPartition{
		Topic:     r.Topic,
		Partition: r.Partition,
	}
}

// Size is the number of key, value and header bytes carried by the record.
func (r ConsumerRecord) Size() int {
	n := len(r.Key) + len(r.Value)
	for _, h := range r.Headers {
		n += len(h.Key) + len(h.Value)
	}
	return n
}

type TopicPartition struct {
	Topic     string
	Partition int32
}

func (tp TopicPartition) String() string {
	return tp.Topic + "-" + strconv.FormatInt(int64(tp.Partition), 10)
}

// ListedOffset is the result of an offset lookup for a single partition.
// Offset is -1 when the lookup found nothing (eg. no record at or after a timestamp).
type ListedOffset struct {
	Offset int64
	Err    error
}

type ListedOffsets map[TopicPartition]ListedOffset

// Lookup returns the listed offset for tp, if the response contained it.
func (l ListedOffsets) Lookup(tp TopicPartition) (ListedOffset, bool) {
	o, ok := l[tp]
	return o, ok
}
