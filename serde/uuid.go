package serde

import (
	"github.com/google/uuid"
)

type uuidSerde struct{}

// UUID reads 16 byte binary UUIDs.
func UUID() Serde[uuid.UUID] {
	return uuidSerde{}
}

func (s uuidSerde) Serialise(_ string, value uuid.UUID) ([]byte, error) {
	return value.MarshalBinary()
}

func (s uuidSerde) Deserialise(_ string, data []byte) (uuid.UUID, error) {
	return uuid.FromBytes(data)
}
