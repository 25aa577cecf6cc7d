package arena

import (
	"encoding/json"
	"fmt"
)

// Declared encoding bounds per record kind. A value that encodes past
// its bound indicates a programming error upstream and is fatal.
const (
	MaxInfoSize     = 4096
	MaxProfileSize  = 4096
	MaxRewardSize   = 2048
	MaxTasksSize    = 4096
	MaxRegistrySize = 1024
	MaxQuestSize    = 1024
	MaxVoiceSize    = 5120
)

// Codec serializes container values with a hard size bound. Encode and
// Decode panic on violation; use DecodeLenient where degraded records
// must not take the process down.
type Codec[T any] struct {
	Name    string
	MaxSize int
}

// NewCodec returns a bounded codec for the named record kind.
func NewCodec[T any](name string, maxSize int) Codec[T] {
	return Codec[T]{Name: name, MaxSize: maxSize}
}

// Encode serializes v. It panics if v cannot be serialized or the
// encoded form exceeds the codec's bound.
func (c Codec[T]) Encode(v T) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("codec %s: encode: %v", c.Name, err))
	}
	if c.MaxSize > 0 && len(b) > c.MaxSize {
		panic(fmt.Sprintf("codec %s: encoded %d bytes exceeds bound %d", c.Name, len(b), c.MaxSize))
	}
	return b
}

// Decode deserializes b, panicking on malformed input. Stored records
// were produced by Encode, so malformed bytes mean corruption.
func (c Codec[T]) Decode(b []byte) T {
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		panic(fmt.Sprintf("codec %s: decode: %v", c.Name, err))
	}
	return v
}

// DecodeLenient deserializes b, returning the zero value and the cause
// when the record is unreadable.
func (c Codec[T]) DecodeLenient(b []byte) (T, error) {
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return v, fmt.Errorf("codec %s: decode: %w", c.Name, err)
	}
	return v, nil
}
