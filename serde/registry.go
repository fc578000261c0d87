package serde

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

const (
	NameString = "String"
	NameBytes  = "Bytes"
	NameJSON   = "JSON"
	NameInt32  = "Int32"
	NameInt64  = "Int64"
	NameUUID   = "UUID"
	NameBase64 = "Base64"
	NameHex    = "Hex"
)

var builtins = map[string]func() UntypedDeserialiser{
	NameString: func() UntypedDeserialiser { return ToUntyped[string](String()) },
	NameBytes:  func() UntypedDeserialiser { return ToUntyped[[]byte](Bytes()) },
	NameJSON:   func() UntypedDeserialiser { return ToUntyped[any](JSON[any]()) },
	NameInt32:  func() UntypedDeserialiser { return ToUntyped[int32](Int32()) },
	NameInt64:  func() UntypedDeserialiser { return ToUntyped[int64](Int64()) },
	NameUUID:   func() UntypedDeserialiser { return ToUntyped[uuid.UUID](UUID()) },
	NameBase64: func() UntypedDeserialiser { return ToUntyped[string](Base64()) },
	NameHex:    func() UntypedDeserialiser { return ToUntyped[string](Hex()) },
}

// Lookup returns the builtin deserialiser registered under name (case-insensitive).
func Lookup(name string) (UntypedDeserialiser, string, error) {
	for n, build := range builtins {
		if strings.EqualFold(n, name) {
			return build(), n, nil
		}
	}
	return nil, "", fmt.Errorf("unknown serde %q, want one of %s", name, strings.Join(Names(), ", "))
}

// Names lists the builtin serde names in sorted order.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
