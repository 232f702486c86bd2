// Package codec provides the serialization strategies attached to
// handlers. Scalar value (de)serialization on the wire is owned by the
// caller; a Codec only turns persisted records into bytes and back.
package codec

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes and decodes entity records.
type Codec interface {
	// Name identifies the codec, e.g. "json".
	Name() string
	// Marshal encodes v.
	Marshal(v any) ([]byte, error)
	// Unmarshal decodes data into v.
	Unmarshal(data []byte, v any) error
}

// Built-in codecs.
var (
	// JSON encodes records with encoding/json. It is the codec a
	// handler falls back to when none was registered for its entity
	// type and use case.
	JSON Codec = jsonCodec{}

	// Msgpack encodes records with the msgpack wire format, for
	// callers exchanging records with non-HTTP consumers.
	Msgpack Codec = msgpackCodec{}
)

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type msgpackCodec struct{}

func (msgpackCodec) Name() string { return "msgpack" }

func (msgpackCodec) Marshal(v any) ([]byte, error) { return msgpack.Marshal(v) }

func (msgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }
