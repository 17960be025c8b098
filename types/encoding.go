package types

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// The wire encoding of blocks and sidecars is the protobuf binary format,
// written field by field so the messages need no generated code.

type (
	protoNumber = protowire.Number
	protoType   = protowire.Type
)

type encoder struct {
	buf []byte
}

func (e *encoder) uint64(num protowire.Number, v uint64) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.VarintType)
	e.buf = protowire.AppendVarint(e.buf, v)
}

func (e *encoder) bytes(num protowire.Number, bz []byte) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendBytes(e.buf, bz)
}

// fieldFunc decodes a single field. It returns the number of bytes it
// consumed, or -1 if it does not know the field, in which case the field is
// skipped.
type fieldFunc func(num protowire.Number, typ protowire.Type, bz []byte) (int, error)

func decodeFields(bz []byte, fn fieldFunc) error {
	for len(bz) > 0 {
		num, typ, n := protowire.ConsumeTag(bz)
		if n < 0 {
			return protowire.ParseError(n)
		}
		bz = bz[n:]

		m, err := fn(num, typ, bz)
		if err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
		if m < 0 {
			m = protowire.ConsumeFieldValue(num, typ, bz)
			if m < 0 {
				return protowire.ParseError(m)
			}
		}
		bz = bz[m:]
	}
	return nil
}

func consumeUint64(typ protowire.Type, bz []byte) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, fmt.Errorf("unexpected wire type %v", typ)
	}
	v, n := protowire.ConsumeVarint(bz)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func consumeBytes(typ protowire.Type, bz []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, fmt.Errorf("unexpected wire type %v", typ)
	}
	v, n := protowire.ConsumeBytes(bz)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

// consumeFixed decodes a length-delimited field into dst, which must match
// its length exactly.
func consumeFixed(typ protowire.Type, bz []byte, dst []byte) (int, error) {
	v, n, err := consumeBytes(typ, bz)
	if err != nil {
		return 0, err
	}
	if len(v) != len(dst) {
		return 0, fmt.Errorf("expected %d bytes, got %d", len(dst), len(v))
	}
	copy(dst, v)
	return n, nil
}

// encodeUint64 returns the varint encoding of v, for hashing.
func encodeUint64(v uint64) []byte {
	return protowire.AppendVarint(nil, v)
}
