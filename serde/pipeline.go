package serde

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/hugolhafner/kscan/kafka"
	"github.com/hugolhafner/kscan/record"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// Pipeline turns raw consumer records into record.Messages using one
// deserialiser for keys and one for values. It never fails: errors are
// recorded on the message.
type Pipeline struct {
	keyName   string
	key       UntypedDeserialiser
	valueName string
	value     UntypedDeserialiser
}

func NewPipeline(keyName string, key UntypedDeserialiser, valueName string, value UntypedDeserialiser) *Pipeline {
	return &Pipeline{
		keyName:   keyName,
		key:       key,
		valueName: valueName,
		value:     value,
	}
}

// StringPipeline reads keys and values as UTF-8 strings.
func StringPipeline() *Pipeline {
	return NewPipeline(NameString, ToUntyped[string](String()), NameString, ToUntyped[string](String()))
}

// NewNamedPipeline builds a Pipeline from builtin serde names.
func NewNamedPipeline(keyName, valueName string) (*Pipeline, error) {
	key, keyName, err := Lookup(keyName)
	if err != nil {
		return nil, fmt.Errorf("key serde: %w", err)
	}

	value, valueName, err := Lookup(valueName)
	if err != nil {
		return nil, fmt.Errorf("value serde: %w", err)
	}

	return NewPipeline(keyName, key, valueName, value), nil
}

func (p *Pipeline) Deserialise(r kafka.ConsumerRecord) record.Message {
	msg := record.Message{
		Metadata: record.Metadata{
			Timestamp: r.Timestamp,
			Topic:     r.Topic,
			Partition: r.Partition,
			Offset:    r.Offset,
		},
		KeySize:    len(r.Key),
		ValueSize:  len(r.Value),
		KeySerde:   p.keyName,
		ValueSerde: p.valueName,
	}

	if len(r.Headers) > 0 {
		msg.Headers = make(map[string]string, len(r.Headers))
		for _, h := range r.Headers {
			if prev, ok := msg.Headers[h.Key]; ok {
				msg.Headers[h.Key] = prev + record.HeaderValueSeparator + string(h.Value)
			} else {
				msg.Headers[h.Key] = string(h.Value)
			}
			msg.HeadersSize += len(h.Key) + len(h.Value)
		}
	}

	var errs []string

	key, err := p.deserialise("key", p.keyName, p.key, r.Topic, r.Key)
	if err != nil {
		errs = append(errs, err.Error())
		key = string(r.Key)
	}
	msg.Key = key

	value, err := p.deserialise("value", p.valueName, p.value, r.Topic, r.Value)
	if err != nil {
		errs = append(errs, err.Error())
		value = string(r.Value)
	}
	msg.Value = value

	switch len(errs) {
	case 0:
	case 1:
		msg.Error = errs[0]
	default:
		msg.Error = errs[0] + "; " + errs[1]
	}

	return msg
}

func (p *Pipeline) deserialise(target, name string, d UntypedDeserialiser, topic string, data []byte) (string, error) {
	// tombstones and keyless records carry no payload to decode
	if data == nil {
		return "", nil
	}

	v, err := d.Deserialise(topic, data)
	if err != nil {
		return "", NewSerdeError(target, name, err)
	}

	s, err := render(v)
	if err != nil {
		return "", NewSerdeError(target, name, err)
	}
	return s, nil
}

// render formats a deserialised value as display text.
func render(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	case int32:
		return strconv.FormatInt(int64(t), 10), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case proto.Message:
		b, err := protojson.Marshal(t)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case fmt.Stringer:
		return t.String(), nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}
