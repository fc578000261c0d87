package serde

import (
	"encoding/base64"
	"encoding/hex"
)

// encoded renders raw bytes as text; it cannot fail.
type encoded struct {
	encode func([]byte) string
	decode func(string) ([]byte, error)
}

func (e encoded) Serialise(_ string, value string) ([]byte, error) {
	return e.decode(value)
}

func (e encoded) Deserialise(_ string, data []byte) (string, error) {
	return e.encode(data), nil
}

// Base64 renders payloads as standard base64.
func Base64() Serde[string] {
	return encoded{
		encode: base64.StdEncoding.EncodeToString,
		decode: base64.StdEncoding.DecodeString,
	}
}

// Hex renders payloads as lower-case hex.
func Hex() Serde[string] {
	return encoded{
		encode: hex.EncodeToString,
		decode: hex.DecodeString,
	}
}
