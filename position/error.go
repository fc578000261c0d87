package position

import (
	"errors"
	"fmt"

	"github.com/hugolhafner/kscan/kafka"
)

var (
	ErrUnknownSeekType        = errors.New("unknown seek type")
	ErrPartitionNotFound      = errors.New("partition not found in topic")
	ErrNoResolvablePartitions = errors.New("no partition could be resolved")
)

// PartitionError reports a partition that was skipped during resolution.
type PartitionError struct {
	Partition kafka.TopicPartition
	Cause     error
}

func (e *PartitionError) Error() string {
	return fmt.Sprintf("resolve %s: %v", e.Partition, e.Cause)
}

func (e *PartitionError) Unwrap() error {
	return e.Cause
}

func NewPartitionError(tp kafka.TopicPartition, cause error) *PartitionError {
	return &PartitionError{Partition: tp, Cause: cause}
}

func AsPartitionError(err error) (*PartitionError, bool) {
	var pe *PartitionError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
