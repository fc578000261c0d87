package main

import (
	"encoding/json"
	"io"

	"github.com/hugolhafner/kscan/emitter"
	"github.com/hugolhafner/kscan/record"
)

type messageLine struct {
	Timestamp   int64             `json:"timestamp_ms"`
	Topic       string            `json:"topic"`
	Partition   int32             `json:"partition"`
	Offset      int64             `json:"offset"`
	Key         string            `json:"key"`
	Value       string            `json:"value"`
	Headers     map[string]string `json:"headers,omitempty"`
	KeySize     int               `json:"key_size"`
	ValueSize   int               `json:"value_size"`
	HeadersSize int               `json:"headers_size"`
	KeySerde    string            `json:"key_serde"`
	ValueSerde  string            `json:"value_serde"`
	Error       string            `json:"error,omitempty"`
}

type eventLine struct {
	Type    emitter.EventType `json:"type"`
	Phase   string            `json:"phase,omitempty"`
	Message *messageLine      `json:"message,omitempty"`
	Stats   *emitter.Stats    `json:"stats,omitempty"`
	Error   string            `json:"error,omitempty"`
}

type eventWriter struct {
	enc *json.Encoder
}

func newEventWriter(w io.Writer) *eventWriter {
	return &eventWriter{enc: json.NewEncoder(w)}
}

func (w *eventWriter) Write(ev emitter.Event) error {
	line := eventLine{
		Type:  ev.Type,
		Phase: ev.Phase,
		Stats: ev.Stats,
	}
	if ev.Message != nil {
		line.Message = toMessageLine(*ev.Message)
	}
	if ev.Err != nil {
		line.Error = ev.Err.Error()
	}
	return w.enc.Encode(line)
}

func toMessageLine(m record.Message) *messageLine {
	return &messageLine{
		Timestamp:   m.Timestamp.UnixMilli(),
		Topic:       m.Topic,
		Partition:   m.Partition,
		Offset:      m.Offset,
		Key:         m.Key,
		Value:       m.Value,
		Headers:     m.Headers,
		KeySize:     m.KeySize,
		ValueSize:   m.ValueSize,
		HeadersSize: m.HeadersSize,
		KeySerde:    m.KeySerde,
		ValueSerde:  m.ValueSerde,
		Error:       m.Error,
	}
}
