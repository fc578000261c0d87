package kafka

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUnknownTopic  = errors.New("unknown topic")
	ErrSourceClosed  = errors.New("source closed")
	ErrNotAssigned   = errors.New("partition not assigned")
	ErrNoOffsetFound = errors.New("no offset found")
)

// Source is a single-threaded, manually assigned view over a topic's partitions.
// It is owned by exactly one scan and must not be used concurrently.
type Source interface {
	// Partitions lists the partitions of topic.
	Partitions(ctx context.Context, topic string) ([]TopicPartition, error)

	// StartOffsets lists the log-start offset of each partition.
	StartOffsets(ctx context.Context, partitions []TopicPartition) (ListedOffsets, error)
	// EndOffsets lists the high-water mark of each partition.
	EndOffsets(ctx context.Context, partitions []TopicPartition) (ListedOffsets, error)
	// OffsetsForTimes finds, per partition, the earliest offset whose timestamp
	// is at or after the given epoch millis. Offset is -1 when no such record exists.
	OffsetsForTimes(ctx context.Context, timestamps map[TopicPartition]int64) (ListedOffsets, error)

	// Assign replaces the set of partitions that Poll reads from. All assigned
	// partitions are resumed.
	Assign(partitions []TopicPartition)
	// Seek moves the read position of an assigned partition.
	Seek(tp TopicPartition, offset int64)
	PausePartitions(partitions ...TopicPartition)
	ResumePartitions(partitions ...TopicPartition)

	// Poll waits at most timeout for records from the assigned, unpaused
	// partitions. Records of one partition are returned in offset order.
	Poll(ctx context.Context, timeout time.Duration) ([]ConsumerRecord, error)

	Close()
}

// SourceFactory opens a new Source. Every scan opens its own.
type SourceFactory func() (Source, error)
