//go:build unit

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hugolhafner/kscan/emitter"
	"github.com/hugolhafner/kscan/kafka"
	"github.com/hugolhafner/kscan/position"
	"github.com/hugolhafner/kscan/record"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "kscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, defaultConfig(), cfg)
}

func TestLoadConfig_MissingFileIsIgnored(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, defaultConfig(), cfg)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := writeConfig(
		t, `
brokers: [broker-1:9092, broker-2:9092]
topic: orders
direction: backward
seek: offset
offsets: ["0=10", "1=20"]
limit: 50
poll_timeout: 250ms
rate:
  polls: 5
`,
	)

	t.Setenv("KSCAN_LIMIT", "75")
	t.Setenv("KSCAN_RATE__BYTES", "1024")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Brokers)
	require.Equal(t, "orders", cfg.Topic)
	require.Equal(t, "backward", cfg.Direction)
	require.Equal(t, []string{"0=10", "1=20"}, cfg.Offsets)
	require.Equal(t, 75, cfg.Limit)
	require.Equal(t, 250*time.Millisecond, cfg.PollTimeout)
	require.Equal(t, 5.0, cfg.Rate.Polls)
	require.Equal(t, 1024, cfg.Rate.Bytes)
	require.Equal(t, "string", cfg.KeySerde)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "brokers: [unterminated"))
	require.Error(t, err)
}

func TestConfig_Position(t *testing.T) {
	t.Parallel()

	tp := func(p int32) kafka.TopicPartition {
		return kafka.TopicPartition{Topic: "orders", Partition: p}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantDir position.Direction
		want    position.ConsumerPosition
		wantErr bool
	}{
		{
			name:    "defaults",
			wantDir: position.Forward,
			want:    position.NewConsumerPosition(position.SeekBeginning, "orders", nil),
		},
		{
			name: "backward from latest",
			mutate: func(c *Config) {
				c.Direction = "backward"
				c.Seek = "latest"
			},
			wantDir: position.Backward,
			want:    position.NewConsumerPosition(position.SeekLatest, "orders", nil),
		},
		{
			name: "offsets",
			mutate: func(c *Config) {
				c.Seek = "offset"
				c.Offsets = []string{"0=10", " 2=0"}
			},
			wantDir: position.Forward,
			want: position.NewConsumerPosition(
				position.SeekOffset, "orders", map[kafka.TopicPartition]int64{tp(0): 10, tp(2): 0},
			),
		},
		{
			name: "timestamp millis",
			mutate: func(c *Config) {
				c.Seek = "timestamp"
				c.Timestamp = "1700000000000"
			},
			wantDir: position.Forward,
			want: position.NewConsumerPosition(
				position.SeekTimestamp, "orders", map[kafka.TopicPartition]int64{tp(-1): 1700000000000},
			),
		},
		{
			name: "timestamp rfc3339",
			mutate: func(c *Config) {
				c.Seek = "timestamp"
				c.Timestamp = "2023-11-14T22:13:20Z"
			},
			wantDir: position.Forward,
			want: position.NewConsumerPosition(
				position.SeekTimestamp, "orders", map[kafka.TopicPartition]int64{tp(-1): 1700000000000},
			),
		},
		{name: "missing topic", mutate: func(c *Config) { c.Topic = "" }, wantErr: true},
		{name: "bad direction", mutate: func(c *Config) { c.Direction = "sideways" }, wantErr: true},
		{name: "bad seek", mutate: func(c *Config) { c.Seek = "middle" }, wantErr: true},
		{name: "offset seek without offsets", mutate: func(c *Config) { c.Seek = "offset" }, wantErr: true},
		{
			name: "malformed offset",
			mutate: func(c *Config) {
				c.Seek = "offset"
				c.Offsets = []string{"0:10"}
			},
			wantErr: true,
		},
		{
			name: "negative offset",
			mutate: func(c *Config) {
				c.Seek = "offset"
				c.Offsets = []string{"0=-1"}
			},
			wantErr: true,
		},
		{name: "timestamp seek without timestamp", mutate: func(c *Config) { c.Seek = "timestamp" }, wantErr: true},
		{
			name: "unparseable timestamp",
			mutate: func(c *Config) {
				c.Seek = "timestamp"
				c.Timestamp = "yesterday"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				t.Parallel()

				cfg := defaultConfig()
				cfg.Topic = "orders"
				if tt.mutate != nil {
					tt.mutate(&cfg)
				}

				pos, dir, err := cfg.Position()
				if tt.wantErr {
					require.Error(t, err)
					return
				}
				require.NoError(t, err)
				require.Equal(t, tt.wantDir, dir)
				require.Equal(t, tt.want, pos)
			},
		)
	}
}

func TestExpandTimestamp(t *testing.T) {
	t.Parallel()

	partitions := []kafka.TopicPartition{{Topic: "orders", Partition: 0}, {Topic: "orders", Partition: 1}}

	placeholder := position.NewConsumerPosition(
		position.SeekTimestamp, "orders", map[kafka.TopicPartition]int64{{Topic: "orders", Partition: -1}: 42},
	)
	expanded := expandTimestamp(placeholder, partitions)
	require.Equal(t, map[kafka.TopicPartition]int64{partitions[0]: 42, partitions[1]: 42}, expanded.SeekTo)

	offsets := position.NewConsumerPosition(position.SeekOffset, "orders", map[kafka.TopicPartition]int64{partitions[0]: 3})
	require.Equal(t, offsets, expandTimestamp(offsets, partitions))
}

func TestApplyFlags(t *testing.T) {
	t.Parallel()

	cmd := newRootCommand(&bytes.Buffer{})
	require.NoError(t, cmd.ParseFlags([]string{"--topic", "orders", "-n", "5", "--rate", "2.5", "--offsets", "0=1,1=2"}))

	cfg := defaultConfig()
	cfg.Direction = "backward"

	flags := defaultConfig()
	flags.Topic = "orders"
	flags.Limit = 5
	flags.Rate.Polls = 2.5
	flags.Offsets = []string{"0=1", "1=2"}
	flags.Seek = "latest"
	applyFlags(cmd, &cfg, flags)

	require.Equal(t, "orders", cfg.Topic)
	require.Equal(t, 5, cfg.Limit)
	require.Equal(t, 2.5, cfg.Rate.Polls)
	require.Equal(t, []string{"0=1", "1=2"}, cfg.Offsets)
	// not set on the command line
	require.Equal(t, "backward", cfg.Direction)
	require.Equal(t, position.SeekBeginning.String(), cfg.Seek)
}

func TestEventWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := newEventWriter(&buf)

	msg := record.Message{
		Metadata: record.Metadata{
			Timestamp: time.UnixMilli(1700000000000),
			Topic:     "orders",
			Partition: 1,
			Offset:    7,
		},
		Key:        "k",
		Value:      "v",
		KeySerde:   "string",
		ValueSerde: "string",
	}

	require.NoError(t, w.Write(emitter.PhaseEvent(emitter.PhaseStarted)))
	require.NoError(t, w.Write(emitter.MessageEvent(msg)))
	require.NoError(t, w.Write(emitter.ErrorEvent(errors.New("boom"))))

	dec := json.NewDecoder(&buf)

	var phase map[string]any
	require.NoError(t, dec.Decode(&phase))
	require.Equal(t, "PHASE", phase["type"])
	require.Equal(t, emitter.PhaseStarted, phase["phase"])

	var message struct {
		Type    string      `json:"type"`
		Message messageLine `json:"message"`
	}
	require.NoError(t, dec.Decode(&message))
	require.Equal(t, "MESSAGE", message.Type)
	require.Equal(t, int64(1700000000000), message.Message.Timestamp)
	require.Equal(t, int64(7), message.Message.Offset)
	require.Equal(t, "v", message.Message.Value)

	var failed map[string]any
	require.NoError(t, dec.Decode(&failed))
	require.Equal(t, "ERROR", failed["type"])
	require.Equal(t, "boom", failed["error"])
}
