package serde

import (
	"encoding/binary"
	"fmt"
)

type int32Serde struct{}

// Int32 reads big-endian 4 byte integers.
func Int32() Serde[int32] {
	return int32Serde{}
}

func (s int32Serde) Serialise(_ string, value int32) ([]byte, error) {
	return binary.BigEndian.AppendUint32(nil, uint32(value)), nil
}

func (s int32Serde) Deserialise(_ string, data []byte) (int32, error) {
	if len(data) != 4 {
		return 0, fmt.Errorf("int32 needs 4 bytes, got %d", len(data))
	}
	return int32(binary.BigEndian.Uint32(data)), nil
}

type int64Serde struct{}

// Int64 reads big-endian 8 byte integers.
func Int64() Serde[int64] {
	return int64Serde{}
}

func (s int64Serde) Serialise(_ string, value int64) ([]byte, error) {
	return binary.BigEndian.AppendUint64(nil, uint64(value)), nil
}

func (s int64Serde) Deserialise(_ string, data []byte) (int64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("int64 needs 8 bytes, got %d", len(data))
	}
	return int64(binary.BigEndian.Uint64(data)), nil
}
