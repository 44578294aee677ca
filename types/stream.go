package types

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// StreamOutput accumulates serialized values. Unbounded integers are written as
// varints so small values stay small on the wire.
type StreamOutput struct {
	buf []byte
}

// NewStreamOutput is a factory for StreamOutputs
func NewStreamOutput() *StreamOutput {
	return &StreamOutput{buf: make([]byte, 0, 64)}
}

// WriteVLong writes a non-negative int64 as an unsigned varint
func (o *StreamOutput) WriteVLong(v int64) {
	o.buf = protowire.AppendVarint(o.buf, uint64(v))
}

// WriteZLong writes an int64 as a zig-zag encoded varint, suitable for negative values
func (o *StreamOutput) WriteZLong(v int64) {
	o.buf = protowire.AppendVarint(o.buf, protowire.EncodeZigZag(v))
}

// WriteBool writes a single byte boolean
func (o *StreamOutput) WriteBool(b bool) {
	if b {
		o.buf = append(o.buf, 1)
	} else {
		o.buf = append(o.buf, 0)
	}
}

// WriteDouble writes a float64 as 8 little-endian bytes
func (o *StreamOutput) WriteDouble(f float64) {
	o.buf = protowire.AppendFixed64(o.buf, math.Float64bits(f))
}

// WriteString writes a length-prefixed string
func (o *StreamOutput) WriteString(s string) {
	o.buf = protowire.AppendString(o.buf, s)
}

// WriteBytes writes a length-prefixed byte slice
func (o *StreamOutput) WriteBytes(p []byte) {
	o.buf = protowire.AppendBytes(o.buf, p)
}

// Bytes returns the serialized data
func (o *StreamOutput) Bytes() []byte {
	return o.buf
}

// Len returns the number of bytes written so far
func (o *StreamOutput) Len() int {
	return len(o.buf)
}

// Reset discards all written data
func (o *StreamOutput) Reset() {
	o.buf = o.buf[:0]
}

// StreamInput reads values written by a StreamOutput
type StreamInput struct {
	buf []byte
}

// NewStreamInput is a factory for StreamInputs
func NewStreamInput(buf []byte) *StreamInput {
	return &StreamInput{buf: buf}
}

// Remaining returns the number of unread bytes
func (in *StreamInput) Remaining() int {
	return len(in.buf)
}

// ReadVLong reads an unsigned varint written by WriteVLong
func (in *StreamInput) ReadVLong() (int64, error) {
	v, n := protowire.ConsumeVarint(in.buf)
	if n < 0 {
		return 0, fmt.Errorf("Unable to read vlong: %w", protowire.ParseError(n))
	}
	in.buf = in.buf[n:]
	return int64(v), nil
}

// ReadZLong reads a zig-zag varint written by WriteZLong
func (in *StreamInput) ReadZLong() (int64, error) {
	v, n := protowire.ConsumeVarint(in.buf)
	if n < 0 {
		return 0, fmt.Errorf("Unable to read zlong: %w", protowire.ParseError(n))
	}
	in.buf = in.buf[n:]
	return protowire.DecodeZigZag(v), nil
}

// ReadBool reads a boolean written by WriteBool
func (in *StreamInput) ReadBool() (bool, error) {
	if len(in.buf) == 0 {
		return false, fmt.Errorf("Unable to read bool: unexpected end of input")
	}
	b := in.buf[0]
	in.buf = in.buf[1:]
	return b != 0, nil
}

// ReadDouble reads a float64 written by WriteDouble
func (in *StreamInput) ReadDouble() (float64, error) {
	v, n := protowire.ConsumeFixed64(in.buf)
	if n < 0 {
		return 0, fmt.Errorf("Unable to read double: %w", protowire.ParseError(n))
	}
	in.buf = in.buf[n:]
	return math.Float64frombits(v), nil
}

// ReadString reads a string written by WriteString
func (in *StreamInput) ReadString() (string, error) {
	v, n := protowire.ConsumeString(in.buf)
	if n < 0 {
		return "", fmt.Errorf("Unable to read string: %w", protowire.ParseError(n))
	}
	in.buf = in.buf[n:]
	return v, nil
}

// ReadBytes reads a byte slice written by WriteBytes
func (in *StreamInput) ReadBytes() ([]byte, error) {
	v, n := protowire.ConsumeBytes(in.buf)
	if n < 0 {
		return nil, fmt.Errorf("Unable to read bytes: %w", protowire.ParseError(n))
	}
	in.buf = in.buf[n:]
	return v, nil
}
