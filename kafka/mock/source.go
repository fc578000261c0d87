package mockkafka

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hugolhafner/kscan/kafka"
)

var _ kafka.Source = (*Source)(nil)

type partitionLog struct {
	records  []kafka.ConsumerRecord
	logStart int64
	// highWatermark is one past the last offset written.
	highWatermark int64
}

// Cluster is an in-memory set of topics. Every Source it opens reads the same
// data but keeps its own assignment, positions and pause state.
type Cluster struct {
	mu sync.RWMutex

	partitionCounts map[string]int32
	logs            map[kafka.TopicPartition]*partitionLog

	sources []*Source

	maxPollRecords int
	pollDelay      time.Duration
	pollErr        func(call int) error
	lookupErr      func(tp kafka.TopicPartition) error
	partitionsErr  error
}

func NewCluster(opts ...Option) *Cluster {
	c := &Cluster{
		partitionCounts: make(map[string]int32),
		logs:            make(map[kafka.TopicPartition]*partitionLog),
		maxPollRecords:  10,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// CreateTopic creates a topic with n empty partitions. Creating an existing
// topic only ever grows its partition count.
func (c *Cluster) CreateTopic(topic string, partitions int32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.createTopicLocked(topic, partitions)
}

func (c *Cluster) createTopicLocked(topic string, partitions int32) {
	if partitions <= c.partitionCounts[topic] {
		return
	}

	for p := c.partitionCounts[topic]; p < partitions; p++ {
		c.logs[kafka.TopicPartition{Topic: topic, Partition: p}] = &partitionLog{}
	}
	c.partitionCounts[topic] = partitions
}

// AddRecords appends records to a topic-partition, creating it if needed, and
// returns the records as stored (with topic, partition and offset set).
func (c *Cluster) AddRecords(topic string, partition int32, records ...kafka.ConsumerRecord) []kafka.ConsumerRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.createTopicLocked(topic, partition+1)
	log := c.logs[kafka.TopicPartition{Topic: topic, Partition: partition}]

	stored := make([]kafka.ConsumerRecord, 0, len(records))
	for _, r := range records {
		r.Topic = topic
		r.Partition = partition
		if r.Offset < log.highWatermark {
			r.Offset = log.highWatermark
		}
		log.highWatermark = r.Offset + 1
		log.records = append(log.records, r)
		stored = append(stored, r)
	}

	return stored
}

// DeleteRecordsBefore advances the log-start offset of a partition, as retention would.
func (c *Cluster) DeleteRecordsBefore(topic string, partition int32, offset int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	log, ok := c.logs[kafka.TopicPartition{Topic: topic, Partition: partition}]
	if !ok {
		return
	}

	if offset > log.highWatermark {
		offset = log.highWatermark
	}
	log.logStart = offset

	kept := log.records[:0]
	for _, r := range log.records {
		if r.Offset >= offset {
			kept = append(kept, r)
		}
	}
	log.records = kept
}

// NewSource opens a Source over the cluster.
func (c *Cluster) NewSource() *Source {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &Source{
		cluster:   c,
		positions: make(map[kafka.TopicPartition]int64),
		paused:    make(map[kafka.TopicPartition]bool),
	}
	c.sources = append(c.sources, s)

	return s
}

// Factory returns a SourceFactory opening a new Source per call.
func (c *Cluster) Factory() kafka.SourceFactory {
	return func() (kafka.Source, error) {
		return c.NewSource(), nil
	}
}

// Sources returns every Source opened so far, oldest first.
func (c *Cluster) Sources() []*Source {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Source, len(c.sources))
	copy(out, c.sources)
	return out
}

// LastSource returns the most recently opened Source, or nil.
func (c *Cluster) LastSource() *Source {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.sources) == 0 {
		return nil
	}
	return c.sources[len(c.sources)-1]
}

// Seek records a Seek call made on a Source.
type Seek struct {
	Partition kafka.TopicPartition
	Offset    int64
}

// Source is an in-memory kafka.Source reading from a Cluster.
type Source struct {
	cluster *Cluster

	mu        sync.Mutex
	assigned  []kafka.TopicPartition
	positions map[kafka.TopicPartition]int64
	paused    map[kafka.TopicPartition]bool
	seeks     []Seek
	polls     int
	closed    bool
}

func (s *Source) Partitions(ctx context.Context, topic string) ([]kafka.TopicPartition, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	s.cluster.mu.RLock()
	defer s.cluster.mu.RUnlock()

	if s.cluster.partitionsErr != nil {
		return nil, s.cluster.partitionsErr
	}

	n, ok := s.cluster.partitionCounts[topic]
	if !ok {
		return nil, fmt.Errorf("%w: %s", kafka.ErrUnknownTopic, topic)
	}

	partitions := make([]kafka.TopicPartition, 0, n)
	for p := int32(0); p < n; p++ {
		partitions = append(partitions, kafka.TopicPartition{Topic: topic, Partition: p})
	}
	return partitions, nil
}

func (s *Source) StartOffsets(ctx context.Context, partitions []kafka.TopicPartition) (kafka.ListedOffsets, error) {
	return s.listOffsets(partitions, func(l *partitionLog) int64 { return l.logStart })
}

func (s *Source) EndOffsets(ctx context.Context, partitions []kafka.TopicPartition) (kafka.ListedOffsets, error) {
	return s.listOffsets(partitions, func(l *partitionLog) int64 { return l.highWatermark })
}

func (s *Source) listOffsets(
	partitions []kafka.TopicPartition, pick func(*partitionLog) int64,
) (kafka.ListedOffsets, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	s.cluster.mu.RLock()
	defer s.cluster.mu.RUnlock()

	out := make(kafka.ListedOffsets, len(partitions))
	for _, tp := range partitions {
		log, ok := s.cluster.logs[tp]
		if !ok {
			out[tp] = kafka.ListedOffset{Offset: -1, Err: fmt.Errorf("%w: %s", kafka.ErrUnknownTopic, tp)}
			continue
		}
		out[tp] = kafka.ListedOffset{Offset: pick(log)}
	}
	return out, nil
}

func (s *Source) OffsetsForTimes(
	ctx context.Context, timestamps map[kafka.TopicPartition]int64,
) (kafka.ListedOffsets, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	s.cluster.mu.RLock()
	defer s.cluster.mu.RUnlock()

	out := make(kafka.ListedOffsets, len(timestamps))
	for tp, ts := range timestamps {
		if s.cluster.lookupErr != nil {
			if err := s.cluster.lookupErr(tp); err != nil {
				out[tp] = kafka.ListedOffset{Offset: -1, Err: err}
				continue
			}
		}

		log, ok := s.cluster.logs[tp]
		if !ok {
			out[tp] = kafka.ListedOffset{Offset: -1, Err: fmt.Errorf("%w: %s", kafka.ErrUnknownTopic, tp)}
			continue
		}

		found := int64(-1)
		for _, r := range log.records {
			if r.Timestamp.UnixMilli() >= ts {
				found = r.Offset
				break
			}
		}
		out[tp] = kafka.ListedOffset{Offset: found}
	}
	return out, nil
}

func (s *Source) Assign(partitions []kafka.TopicPartition) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.assigned = append([]kafka.TopicPartition(nil), partitions...)
	s.paused = make(map[kafka.TopicPartition]bool)

	positions := make(map[kafka.TopicPartition]int64, len(partitions))
	for _, tp := range partitions {
		positions[tp] = s.positions[tp]
	}
	s.positions = positions
}

func (s *Source) Seek(tp kafka.TopicPartition, offset int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.positions[tp]; !ok {
		return
	}
	s.positions[tp] = offset
	s.seeks = append(s.seeks, Seek{Partition: tp, Offset: offset})
}

func (s *Source) PausePartitions(partitions ...kafka.TopicPartition) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tp := range partitions {
		s.paused[tp] = true
	}
}

func (s *Source) ResumePartitions(partitions ...kafka.TopicPartition) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tp := range partitions {
		delete(s.paused, tp)
	}
}

// Poll returns records round-robin across the assigned, unpaused partitions,
// at most maxPollRecords per call. It never waits for new data.
func (s *Source) Poll(ctx context.Context, timeout time.Duration) ([]kafka.ConsumerRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.polls++
	call := s.polls
	s.mu.Unlock()

	if d := s.cluster.pollDelay; d > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d):
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.cluster.pollErr != nil {
		if err := s.cluster.pollErr(call); err != nil {
			return nil, err
		}
	}

	s.cluster.mu.RLock()
	defer s.cluster.mu.RUnlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []kafka.ConsumerRecord
	for len(records) < s.cluster.maxPollRecords {
		progressMade := false

		for _, tp := range s.assigned {
			if s.paused[tp] {
				continue
			}

			log, ok := s.cluster.logs[tp]
			if !ok {
				continue
			}

			pos := s.positions[tp]
			idx := sort.Search(
				len(log.records), func(i int) bool {
					return log.records[i].Offset >= pos
				},
			)
			if idx >= len(log.records) {
				continue
			}

			r := log.records[idx]
			records = append(records, r)
			s.positions[tp] = r.Offset + 1
			progressMade = true

			if len(records) >= s.cluster.maxPollRecords {
				break
			}
		}

		if !progressMade {
			break
		}
	}

	return records, nil
}

// Close marks the source as closed.
func (s *Source) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
}

func (s *Source) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return kafka.ErrSourceClosed
	}
	return nil
}

// IsClosed reports whether Close has been called.
func (s *Source) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

// Assigned returns the current assignment.
func (s *Source) Assigned() []kafka.TopicPartition {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]kafka.TopicPartition(nil), s.assigned...)
}

// Seeks returns every Seek call in order.
func (s *Source) Seeks() []Seek {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Seek(nil), s.seeks...)
}

// PollCount returns the number of Poll calls made.
func (s *Source) PollCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.polls
}
