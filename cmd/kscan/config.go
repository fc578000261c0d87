package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/hugolhafner/kscan/kafka"
	"github.com/hugolhafner/kscan/position"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "KSCAN_"

type RateConfig struct {
	Polls float64 `koanf:"polls"`
	Bytes int     `koanf:"bytes"`
}

type Config struct {
	Brokers  []string `koanf:"brokers"`
	ClientID string   `koanf:"client_id"`
	Topic    string   `koanf:"topic"`

	// Direction is forward or backward.
	Direction string `koanf:"direction"`
	// Seek is beginning, latest, offset or timestamp.
	Seek string `koanf:"seek"`
	// Offsets holds partition=offset pairs for the offset seek.
	Offsets []string `koanf:"offsets"`
	// Timestamp is either epoch millis or RFC 3339, applied to every
	// partition for the timestamp seek.
	Timestamp string `koanf:"timestamp"`

	Limit      int    `koanf:"limit"`
	Filter     string `koanf:"filter"`
	KeySerde   string `koanf:"key_serde"`
	ValueSerde string `koanf:"value_serde"`

	Rate RateConfig `koanf:"rate"`

	PollTimeout   time.Duration `koanf:"poll_timeout"`
	MaxEmptyPolls int           `koanf:"max_empty_polls"`
	ChunkSize     int64         `koanf:"chunk_size"`

	ReadCommitted bool   `koanf:"read_committed"`
	LogLevel      string `koanf:"log_level"`
}

func defaultConfig() Config {
	return Config{
		Brokers:       []string{"localhost:9092"},
		ClientID:      "kscan",
		Direction:     position.Forward.String(),
		Seek:          position.SeekBeginning.String(),
		Limit:         100,
		KeySerde:      "string",
		ValueSerde:    "string",
		PollTimeout:   time.Second,
		MaxEmptyPolls: 3,
		LogLevel:      "warn",
	}
}

// LoadConfig merges the YAML file at path (if it exists) with KSCAN_
// environment variables over the defaults. Nested keys use a double
// underscore, e.g. KSCAN_RATE__POLLS.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return cfg, fmt.Errorf("load env: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
}

// Position builds the ConsumerPosition and Direction the config describes.
func (c Config) Position() (position.ConsumerPosition, position.Direction, error) {
	var pos position.ConsumerPosition

	if c.Topic == "" {
		return pos, 0, errors.New("topic is required")
	}

	dir, err := position.ParseDirection(c.Direction)
	if err != nil {
		return pos, 0, err
	}

	seekType, err := position.ParseSeekType(c.Seek)
	if err != nil {
		return pos, 0, err
	}

	var seekTo map[kafka.TopicPartition]int64
	switch seekType {
	case position.SeekOffset:
		seekTo, err = parseOffsets(c.Topic, c.Offsets)
	case position.SeekTimestamp:
		seekTo, err = c.timestamps()
	}
	if err != nil {
		return pos, 0, err
	}

	return position.NewConsumerPosition(seekType, c.Topic, seekTo), dir, nil
}

func parseOffsets(topic string, pairs []string) (map[kafka.TopicPartition]int64, error) {
	if len(pairs) == 0 {
		return nil, errors.New("offset seek needs at least one partition=offset pair")
	}

	out := make(map[kafka.TopicPartition]int64, len(pairs))
	for _, pair := range pairs {
		p, o, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, fmt.Errorf("invalid offset %q, want partition=offset", pair)
		}

		partition, err := strconv.ParseInt(p, 10, 32)
		if err != nil || partition < 0 {
			return nil, fmt.Errorf("invalid partition in %q", pair)
		}
		offset, err := strconv.ParseInt(o, 10, 64)
		if err != nil || offset < 0 {
			return nil, fmt.Errorf("invalid offset in %q", pair)
		}

		out[kafka.TopicPartition{Topic: topic, Partition: int32(partition)}] = offset
	}
	return out, nil
}

// timestamps returns the timestamp keyed by partition -1. The partitions
// are only known once the topic is described, see expandTimestamp.
func (c Config) timestamps() (map[kafka.TopicPartition]int64, error) {
	ms, err := parseTimestamp(c.Timestamp)
	if err != nil {
		return nil, err
	}
	return map[kafka.TopicPartition]int64{{Topic: c.Topic, Partition: -1}: ms}, nil
}

func parseTimestamp(s string) (int64, error) {
	if s == "" {
		return 0, errors.New("timestamp seek needs a timestamp")
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q, want epoch millis or RFC 3339", s)
	}
	return t.UnixMilli(), nil
}

// expandTimestamp replaces the placeholder entry of a timestamp position
// with one entry per partition of the topic.
func expandTimestamp(pos position.ConsumerPosition, partitions []kafka.TopicPartition) position.ConsumerPosition {
	ms, ok := pos.SeekTo[kafka.TopicPartition{Topic: pos.Topic, Partition: -1}]
	if pos.SeekType != position.SeekTimestamp || !ok {
		return pos
	}

	seekTo := make(map[kafka.TopicPartition]int64, len(partitions))
	for _, tp := range partitions {
		seekTo[tp] = ms
	}
	return position.NewConsumerPosition(pos.SeekType, pos.Topic, seekTo)
}
