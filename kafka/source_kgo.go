package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hugolhafner/kscan/logger"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
)

var _ Source = (*KgoSource)(nil)

type KgoSourceConfig struct {
	BootstrapServers []string
	ClientID         string
	MaxPollRecords   int
	FetchMaxWait     time.Duration
	// IsolationLevel is "read_uncommitted" or "read_committed".
	IsolationLevel string

	Logger logger.Logger
}

func defaultConfig() KgoSourceConfig {
	return KgoSourceConfig{
		BootstrapServers: []string{"localhost:9092"},
		ClientID:         "kscan",
		MaxPollRecords:   500,
		FetchMaxWait:     500 * time.Millisecond,
		IsolationLevel:   "read_uncommitted",
		Logger:           logger.NewNoopLogger(),
	}
}

type KgoOption func(*KgoSourceConfig)

func WithBootstrapServers(servers []string) KgoOption {
	return func(cfg *KgoSourceConfig) {
		cfg.BootstrapServers = servers
	}
}

func WithClientID(id string) KgoOption {
	return func(cfg *KgoSourceConfig) {
		cfg.ClientID = id
	}
}

func WithMaxPollRecords(n int) KgoOption {
	return func(cfg *KgoSourceConfig) {
		if n > 0 {
			cfg.MaxPollRecords = n
		}
	}
}

func WithFetchMaxWait(d time.Duration) KgoOption {
	return func(cfg *KgoSourceConfig) {
		if d > 0 {
			cfg.FetchMaxWait = d
		}
	}
}

func WithReadCommitted() KgoOption {
	return func(cfg *KgoSourceConfig) {
		cfg.IsolationLevel = "read_committed"
	}
}

func WithLogger(l logger.Logger) KgoOption {
	return func(cfg *KgoSourceConfig) {
		cfg.Logger = l
	}
}

// KgoSource is a Source backed by franz-go. Metadata and offset lookups go
// through an admin client; records are read by a second client that consumes
// directly assigned partitions. The consuming client is created on the first
// Poll after an assignment, so that its initial offsets are the seeked ones.
type KgoSource struct {
	config KgoSourceConfig

	meta  *kgo.Client
	admin *kadm.Client

	consumer *kgo.Client

	mu       sync.Mutex
	assigned map[TopicPartition]struct{}
	// consuming tracks partitions the consumer client has been told about.
	consuming map[TopicPartition]struct{}
	pending   map[TopicPartition]int64
	paused    map[TopicPartition]struct{}
	closed    bool

	logger logger.Logger
}

func NewKgoSource(opts ...KgoOption) (*KgoSource, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	meta, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.BootstrapServers...),
		kgo.ClientID(cfg.ClientID),
		kgo.WithLogger(newKgoLogger(cfg.Logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("create kgo client: %w", err)
	}

	return &KgoSource{
		config:    cfg,
		meta:      meta,
		admin:     kadm.NewClient(meta),
		assigned:  make(map[TopicPartition]struct{}),
		consuming: make(map[TopicPartition]struct{}),
		pending:   make(map[TopicPartition]int64),
		paused:    make(map[TopicPartition]struct{}),
		logger:    cfg.Logger,
	}, nil
}

// NewKgoSourceFactory returns a SourceFactory opening a fresh KgoSource per scan.
func NewKgoSourceFactory(opts ...KgoOption) SourceFactory {
	return func() (Source, error) {
		return NewKgoSource(opts...)
	}
}

func (k *KgoSource) Partitions(ctx context.Context, topic string) ([]TopicPartition, error) {
	details, err := k.admin.ListTopics(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("list topic %s: %w", topic, err)
	}

	detail, ok := details[topic]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
	if detail.Err != nil {
		if errors.Is(detail.Err, kerr.UnknownTopicOrPartition) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
		}
		return nil, fmt.Errorf("describe topic %s: %w", topic, detail.Err)
	}

	numbers := detail.Partitions.Numbers()
	partitions := make([]TopicPartition, 0, len(numbers))
	for _, p := range numbers {
		partitions = append(partitions, TopicPartition{Topic: topic, Partition: p})
	}

	return partitions, nil
}

func (k *KgoSource) StartOffsets(ctx context.Context, partitions []TopicPartition) (ListedOffsets, error) {
	listed, err := k.admin.ListStartOffsets(ctx, topicsOf(partitions)...)
	if err := tolerateShardErrors(err); err != nil {
		return nil, fmt.Errorf("list start offsets: %w", err)
	}

	return fromKadmOffsets(listed, partitions), nil
}

func (k *KgoSource) EndOffsets(ctx context.Context, partitions []TopicPartition) (ListedOffsets, error) {
	listed, err := k.admin.ListEndOffsets(ctx, topicsOf(partitions)...)
	if err := tolerateShardErrors(err); err != nil {
		return nil, fmt.Errorf("list end offsets: %w", err)
	}

	return fromKadmOffsets(listed, partitions), nil
}

// OffsetsForTimes issues one ListOffsets request carrying a timestamp per
// partition; franz-go shards it across partition leaders.
func (k *KgoSource) OffsetsForTimes(ctx context.Context, timestamps map[TopicPartition]int64) (ListedOffsets, error) {
	req := kmsg.NewPtrListOffsetsRequest()
	req.ReplicaID = -1
	if k.config.IsolationLevel == "read_committed" {
		req.IsolationLevel = 1
	}

	byTopic := make(map[string]int)
	for tp, ts := range timestamps {
		idx, ok := byTopic[tp.Topic]
		if !ok {
			rt := kmsg.NewListOffsetsRequestTopic()
			rt.Topic = tp.Topic
			req.Topics = append(req.Topics, rt)
			idx = len(req.Topics) - 1
			byTopic[tp.Topic] = idx
		}

		rp := kmsg.NewListOffsetsRequestTopicPartition()
		rp.Partition = tp.Partition
		rp.CurrentLeaderEpoch = -1
		rp.Timestamp = ts
		req.Topics[idx].Partitions = append(req.Topics[idx].Partitions, rp)
	}

	out := make(ListedOffsets, len(timestamps))
	for _, shard := range k.meta.RequestSharded(ctx, req) {
		if shard.Err != nil {
			sreq, ok := shard.Req.(*kmsg.ListOffsetsRequest)
			if !ok {
				return nil, fmt.Errorf("list offsets for times: %w", shard.Err)
			}
			for _, t := range sreq.Topics {
				for _, p := range t.Partitions {
					out[TopicPartition{Topic: t.Topic, Partition: p.Partition}] = ListedOffset{Offset: -1, Err: shard.Err}
				}
			}
			continue
		}

		resp, ok := shard.Resp.(*kmsg.ListOffsetsResponse)
		if !ok {
			continue
		}
		for _, t := range resp.Topics {
			for _, p := range t.Partitions {
				tp := TopicPartition{Topic: t.Topic, Partition: p.Partition}
				if err := kerr.ErrorForCode(p.ErrorCode); err != nil {
					out[tp] = ListedOffset{Offset: -1, Err: err}
					continue
				}
				out[tp] = ListedOffset{Offset: p.Offset}
			}
		}
	}

	return out, nil
}

func (k *KgoSource) Assign(partitions []TopicPartition) {
	k.mu.Lock()
	defer k.mu.Unlock()

	next := make(map[TopicPartition]struct{}, len(partitions))
	for _, tp := range partitions {
		next[tp] = struct{}{}
	}

	var dropped []TopicPartition
	for tp := range k.assigned {
		if _, ok := next[tp]; !ok {
			dropped = append(dropped, tp)
			delete(k.pending, tp)
		}
	}

	if k.consumer != nil {
		if len(dropped) > 0 {
			k.consumer.RemoveConsumePartitions(topicPartitionsToMap(dropped))
			for _, tp := range dropped {
				delete(k.consuming, tp)
			}
		}
		if len(k.paused) > 0 {
			k.consumer.ResumeFetchPartitions(topicPartitionsToMap(setToSlice(k.paused)))
		}
	}

	k.assigned = next
	k.paused = make(map[TopicPartition]struct{})
}

func (k *KgoSource) Seek(tp TopicPartition, offset int64) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, ok := k.assigned[tp]; !ok {
		return
	}
	k.pending[tp] = offset
}

func (k *KgoSource) PausePartitions(partitions ...TopicPartition) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, tp := range partitions {
		k.paused[tp] = struct{}{}
	}
	if k.consumer != nil {
		k.consumer.PauseFetchPartitions(topicPartitionsToMap(partitions))
	}
}

func (k *KgoSource) ResumePartitions(partitions ...TopicPartition) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, tp := range partitions {
		delete(k.paused, tp)
	}
	if k.consumer != nil {
		k.consumer.ResumeFetchPartitions(topicPartitionsToMap(partitions))
	}
}

// applyPending hands pending seeks to the consuming client, creating it on first use.
func (k *KgoSource) applyPending() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return ErrSourceClosed
	}
	if len(k.pending) == 0 {
		return nil
	}

	if k.consumer == nil {
		initial := make(map[string]map[int32]kgo.Offset)
		for tp, offset := range k.pending {
			if initial[tp.Topic] == nil {
				initial[tp.Topic] = make(map[int32]kgo.Offset)
			}
			initial[tp.Topic][tp.Partition] = kgo.NewOffset().At(offset)
			k.consuming[tp] = struct{}{}
		}

		opts := []kgo.Opt{
			kgo.SeedBrokers(k.config.BootstrapServers...),
			kgo.ClientID(k.config.ClientID),
			kgo.WithLogger(newKgoLogger(k.logger)),
			kgo.ConsumePartitions(initial),
			kgo.FetchMaxWait(k.config.FetchMaxWait),
			// markers are needed to see a partition reach its end offset
			kgo.KeepControlRecords(),
		}
		if k.config.IsolationLevel == "read_committed" {
			opts = append(opts, kgo.FetchIsolationLevel(kgo.ReadCommitted()))
		}

		client, err := kgo.NewClient(opts...)
		if err != nil {
			return fmt.Errorf("create kgo consumer: %w", err)
		}
		k.consumer = client
		k.pending = make(map[TopicPartition]int64)

		return nil
	}

	added := make(map[string]map[int32]kgo.Offset)
	moved := make(map[string]map[int32]kgo.EpochOffset)
	for tp, offset := range k.pending {
		if _, ok := k.consuming[tp]; !ok {
			if added[tp.Topic] == nil {
				added[tp.Topic] = make(map[int32]kgo.Offset)
			}
			added[tp.Topic][tp.Partition] = kgo.NewOffset().At(offset)
			k.consuming[tp] = struct{}{}
			continue
		}

		if moved[tp.Topic] == nil {
			moved[tp.Topic] = make(map[int32]kgo.EpochOffset)
		}
		moved[tp.Topic][tp.Partition] = kgo.EpochOffset{Epoch: -1, Offset: offset}
	}

	if len(added) > 0 {
		k.consumer.AddConsumePartitions(added)
	}
	if len(moved) > 0 {
		k.consumer.SetOffsets(moved)
	}
	k.pending = make(map[TopicPartition]int64)

	return nil
}

func (k *KgoSource) Poll(ctx context.Context, timeout time.Duration) ([]ConsumerRecord, error) {
	if err := k.applyPending(); err != nil {
		return nil, err
	}

	k.mu.Lock()
	consumer := k.consumer
	k.mu.Unlock()

	if consumer == nil {
		return nil, nil
	}

	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fetches := consumer.PollRecords(pollCtx, k.config.MaxPollRecords)
	if fetches.IsClientClosed() {
		return nil, ErrSourceClosed
	}
	if errs := fetches.Errors(); len(errs) > 0 {
		for _, err := range errs {
			if !errors.Is(err.Err, context.DeadlineExceeded) && !errors.Is(err.Err, context.Canceled) {
				return nil, fmt.Errorf("poll %s-%d: %w", err.Topic, err.Partition, err.Err)
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return convertRecords(k.filterAssigned(fetches.Records())), nil
}

// filterAssigned drops records buffered for partitions that are no longer assigned.
func (k *KgoSource) filterAssigned(records []*kgo.Record) []*kgo.Record {
	k.mu.Lock()
	defer k.mu.Unlock()

	kept := records[:0]
	for _, r := range records {
		if _, ok := k.assigned[TopicPartition{Topic: r.Topic, Partition: r.Partition}]; ok {
			kept = append(kept, r)
		}
	}
	return kept
}

func (k *KgoSource) Close() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return
	}
	k.closed = true

	if k.consumer != nil {
		k.consumer.Close()
	}
	k.meta.Close()
}

func tolerateShardErrors(err error) error {
	if err == nil {
		return nil
	}

	var se *kadm.ShardErrors
	if errors.As(err, &se) && !se.AllFailed {
		return nil
	}
	return err
}

func fromKadmOffsets(listed kadm.ListedOffsets, partitions []TopicPartition) ListedOffsets {
	out := make(ListedOffsets, len(partitions))
	for _, tp := range partitions {
		o, ok := listed.Lookup(tp.Topic, tp.Partition)
		if !ok {
			out[tp] = ListedOffset{Offset: -1, Err: fmt.Errorf("%w: %s", ErrNoOffsetFound, tp)}
			continue
		}
		out[tp] = ListedOffset{Offset: o.Offset, Err: o.Err}
	}
	return out
}

func convertRecords(records []*kgo.Record) []ConsumerRecord {
	converted := make([]ConsumerRecord, len(records))
	for i, r := range records {
		converted[i] = ConsumerRecord{
			Topic:       r.Topic,
			Partition:   r.Partition,
			Offset:      r.Offset,
			Key:         r.Key,
			Value:       r.Value,
			Headers:     convertFromKgoHeaders(r.Headers),
			Timestamp:   r.Timestamp,
			LeaderEpoch: r.LeaderEpoch,
			IsControl:   r.Attrs.IsControl(),
		}
	}

	return converted
}

func convertFromKgoHeaders(headers []kgo.RecordHeader) []Header {
	converted := make([]Header, len(headers))
	for i, h := range headers {
		converted[i] = Header{Key: h.Key, Value: h.Value}
	}
	return converted
}

func topicsOf(partitions []TopicPartition) []string {
	seen := make(map[string]struct{})
	var topics []string
	for _, tp := range partitions {
		if _, ok := seen[tp.Topic]; ok {
			continue
		}
		seen[tp.Topic] = struct{}{}
		topics = append(topics, tp.Topic)
	}
	return topics
}

func topicPartitionsToMap(tps []TopicPartition) map[string][]int32 {
	m := make(map[string][]int32)
	for _, tp := range tps {
		m[tp.Topic] = append(m[tp.Topic], tp.Partition)
	}
	return m
}

func setToSlice(set map[TopicPartition]struct{}) []TopicPartition {
	out := make([]TopicPartition, 0, len(set))
	for tp := range set {
		out = append(out, tp)
	}
	return out
}
