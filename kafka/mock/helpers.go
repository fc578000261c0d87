package mockkafka

import (
	"time"

	"github.com/hugolhafner/kscan/kafka"
)

// RecordBuilder provides a fluent interface for building ConsumerRecords.
type RecordBuilder struct {
	record kafka.ConsumerRecord
}

// Record creates a new RecordBuilder with the given key and value.
func Record(key, value string) *RecordBuilder {
	return &RecordBuilder{
		record: kafka.ConsumerRecord{
			Key:       []byte(key),
			Value:     []byte(value),
			Timestamp: time.Now(),
		},
	}
}

// ValueRecord creates a RecordBuilder for a record without a key.
func ValueRecord(value string) *RecordBuilder {
	return &RecordBuilder{
		record: kafka.ConsumerRecord{
			Value:     []byte(value),
			Timestamp: time.Now(),
		},
	}
}

// WithOffset sets the record's offset. Offsets below the partition's next
// offset are replaced by it when the record is added, so gaps can be built by
// choosing a higher one.
func (b *RecordBuilder) WithOffset(offset int64) *RecordBuilder {
	b.record.Offset = offset
	return b
}

// WithTimestamp sets the record's timestamp.
func (b *RecordBuilder) WithTimestamp(ts time.Time) *RecordBuilder {
	b.record.Timestamp = ts
	return b
}

// WithHeader appends a header to the record.
func (b *RecordBuilder) WithHeader(key string, value []byte) *RecordBuilder {
	b.record.Headers = append(b.record.Headers, kafka.Header{Key: key, Value: value})
	return b
}

// Build returns the constructed ConsumerRecord.
func (b *RecordBuilder) Build() kafka.ConsumerRecord {
	return b.record
}

// ControlRecord creates a transaction marker occupying one offset.
func ControlRecord() *RecordBuilder {
	return &RecordBuilder{
		record: kafka.ConsumerRecord{
			Timestamp: time.Now(),
			IsControl: true,
		},
	}
}

// SimpleRecord creates a ConsumerRecord with just key and value as strings.
func SimpleRecord(key, value string) kafka.ConsumerRecord {
	return Record(key, value).Build()
}

// Values creates one keyless record per value.
func Values(values ...string) []kafka.ConsumerRecord {
	records := make([]kafka.ConsumerRecord, 0, len(values))
	for _, v := range values {
		records = append(records, ValueRecord(v).Build())
	}
	return records
}
