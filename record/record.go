package record

import (
	"time"
)

type Metadata struct {
	Timestamp time.Time
	Topic     string
	Partition int32
	Offset    int64
}

const HeaderValueSeparator = ","

// Message is a deserialized record as presented to callers of a scan.
type Message struct {
	Metadata

	Key   string
	Value string
	// Headers maps each header key to its value. Values of a key repeated
	// on the record are joined with HeaderValueSeparator in record order.
	Headers map[string]string

	KeySize     int
	ValueSize   int
	HeadersSize int

	KeySerde   string
	ValueSerde string

	// Error is set when the key or value could not be deserialized. The
	// message is still emitted and still counts toward the scan limit.
	Error string
}

// HasError reports whether deserialization of the message failed.
func (m Message) HasError() bool {
	return m.Error != ""
}
