package serde

import (
	"fmt"
	"unicode/utf8"
)

type stringSerde struct{}

func String() Serde[string] {
	return stringSerde{}
}

func (s stringSerde) Serialise(topic string, value string) ([]byte, error) {
	return []byte(value), nil
}

func (s stringSerde) Deserialise(topic string, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("invalid utf-8 in %d bytes", len(data))
	}
	return string(data), nil
}
