package api

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Message is implemented by every request and response of the file service.
// The encoding is the protobuf wire format; unknown fields are skipped.
type Message interface {
	appendWire(b []byte) []byte
	unmarshalWire(b []byte) error
}

// Marshal encodes m in protobuf wire format.
func Marshal(m Message) ([]byte, error) {
	return m.appendWire(nil), nil
}

// Unmarshal decodes b into m. Fields absent from b keep their value.
func Unmarshal(b []byte, m Message) error {
	return m.unmarshalWire(b)
}

type encoder struct {
	b []byte
}

func (e *encoder) varint(num protowire.Number, v uint64) {
	if v == 0 {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.VarintType)
	e.b = protowire.AppendVarint(e.b, v)
}

func (e *encoder) int64(num protowire.Number, v int64) {
	e.varint(num, uint64(v))
}

func (e *encoder) bool(num protowire.Number, v bool) {
	if v {
		e.varint(num, 1)
	}
}

func (e *encoder) bytes(num protowire.Number, v []byte) {
	if len(v) == 0 {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendBytes(e.b, v)
}

func (e *encoder) string(num protowire.Number, v string) {
	if v == "" {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendString(e.b, v)
}

// message embeds m. Callers skip nil messages; an empty one is still
// written so that presence survives the round trip.
func (e *encoder) message(num protowire.Number, m Message) {
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendBytes(e.b, m.appendWire(nil))
}

func (e *encoder) credentials(num protowire.Number, c *Credentials) {
	if c != nil {
		e.message(num, c)
	}
}

func (e *encoder) attributes(num protowire.Number, a *FileAttributes) {
	if a != nil {
		e.message(num, a)
	}
}

func (e *encoder) packed(num protowire.Number, vs []uint32) {
	if len(vs) == 0 {
		return
	}
	var p []byte
	for _, v := range vs {
		p = protowire.AppendVarint(p, uint64(v))
	}
	e.bytes(num, p)
}

// field is one decoded key/value pair.
type field struct {
	num protowire.Number
	typ protowire.Type
	raw []byte
	v   uint64
}

func (f field) uint64() uint64 { return f.v }
func (f field) uint32() uint32 { return uint32(f.v) }
func (f field) int64() int64   { return int64(f.v) }
func (f field) int32() int32   { return int32(f.v) }
func (f field) bool() bool     { return f.v != 0 }
func (f field) string() string { return string(f.raw) }

func (f field) bytes() []byte {
	return append([]byte(nil), f.raw...)
}

// uint32s decodes a repeated uint32 in either packed or unpacked form.
func (f field) uint32s() ([]uint32, error) {
	if f.typ == protowire.VarintType {
		return []uint32{uint32(f.v)}, nil
	}
	var vs []uint32
	b := f.raw
	for len(b) > 0 {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		vs = append(vs, uint32(v))
		b = b[n:]
	}
	return vs, nil
}

// consumeFields walks the fields of b and hands every varint and
// length-delimited field to fn. Fields of other wire types are skipped.
func consumeFields(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("api: bad tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.v, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			f.raw, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("api: field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		if n < 0 {
			return fmt.Errorf("api: field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]

		if err := fn(f); err != nil {
			return fmt.Errorf("api: field %d: %w", num, err)
		}
	}
	return nil
}
