package types

import (
	"errors"
	"testing"

	serrors "github.com/go-sif/sifql/errors"
	"github.com/stretchr/testify/require"
)

type fakeStateType struct {
	id   int
	name string
}

func (f fakeStateType) ID() int                                        { return f.id }
func (f fakeStateType) Name() string                                   { return f.name }
func (f fakeStateType) FixedSize() int                                 { return 8 }
func (f fakeStateType) Value(v interface{}) (interface{}, error)       { return v, nil }
func (f fakeStateType) Compare(a, b interface{}) int                   { return 0 }
func (f fakeStateType) WriteValueTo(*StreamOutput, interface{}) error  { return nil }
func (f fakeStateType) ReadValueFrom(*StreamInput) (interface{}, error) { return nil, nil }

func TestStreamRoundTrip(t *testing.T) {
	out := NewStreamOutput()
	out.WriteVLong(0)
	out.WriteVLong(300)
	out.WriteZLong(-42)
	out.WriteBool(true)
	out.WriteDouble(3.25)
	out.WriteString("Trillian")
	out.WriteBytes([]byte{1, 2, 3})

	in := NewStreamInput(out.Bytes())
	v, err := in.ReadVLong()
	require.Nil(t, err)
	require.EqualValues(t, 0, v)
	v, err = in.ReadVLong()
	require.Nil(t, err)
	require.EqualValues(t, 300, v)
	z, err := in.ReadZLong()
	require.Nil(t, err)
	require.EqualValues(t, -42, z)
	b, err := in.ReadBool()
	require.Nil(t, err)
	require.True(t, b)
	d, err := in.ReadDouble()
	require.Nil(t, err)
	require.Equal(t, 3.25, d)
	s, err := in.ReadString()
	require.Nil(t, err)
	require.Equal(t, "Trillian", s)
	p, err := in.ReadBytes()
	require.Nil(t, err)
	require.Equal(t, []byte{1, 2, 3}, p)
	require.Equal(t, 0, in.Remaining())

	_, err = in.ReadVLong()
	require.NotNil(t, err)
}

func TestSmallVLongsAreCompact(t *testing.T) {
	out := NewStreamOutput()
	out.WriteVLong(5)
	require.Equal(t, 1, out.Len())
}

func TestBuiltInValuesRoundTrip(t *testing.T) {
	values := []struct {
		t DataType
		v interface{}
	}{
		{Boolean, true},
		{String, "Arthur"},
		{Integer, int32(38)},
		{Long, int64(-7)},
		{Double, 1.5},
		{Long, nil},
		{Undefined, nil},
	}
	for _, tc := range values {
		out := NewStreamOutput()
		require.Nil(t, WriteValue(out, tc.t, tc.v))
		read, err := ReadValue(NewStreamInput(out.Bytes()), tc.t)
		require.Nil(t, err)
		require.Equal(t, 0, tc.t.Compare(tc.v, read), "type %s", tc.t.Name())
		require.Equal(t, tc.v, read)
	}
}

func TestValueConversion(t *testing.T) {
	v, err := Integer.Value(float64(33))
	require.Nil(t, err)
	require.Equal(t, int32(33), v)
	_, err = Integer.Value(1.5)
	require.NotNil(t, err)
	v, err = Long.Value("12")
	require.Nil(t, err)
	require.Equal(t, int64(12), v)
	v, err = String.Value(nil)
	require.Nil(t, err)
	require.Nil(t, v)
}

func TestNilSortsFirst(t *testing.T) {
	require.Equal(t, -1, Long.Compare(nil, int64(0)))
	require.Equal(t, 1, Long.Compare(int64(0), nil))
	require.Equal(t, 0, Long.Compare(nil, nil))
}

func TestRegistryRejectsCollisions(t *testing.T) {
	r := NewRegistry()
	first := fakeStateType{id: CustomTypeIDStart, name: "first_state"}
	require.Nil(t, r.Register(first))
	// registering the same instance twice is harmless
	require.Nil(t, r.Register(first))

	err := r.Register(fakeStateType{id: CustomTypeIDStart, name: "second_state"})
	var dup serrors.DuplicateTypeIDError
	require.True(t, errors.As(err, &dup))
	require.Equal(t, "first_state", dup.Existing)

	require.NotNil(t, r.Register(fakeStateType{id: LongID, name: "shadow_long"}))

	found, ok := r.Lookup(CustomTypeIDStart)
	require.True(t, ok)
	require.Equal(t, "first_state", found.Name())
	found, ok = r.LookupName("long")
	require.True(t, ok)
	require.Equal(t, Long, found)
}

func TestTypedValueRoundTrip(t *testing.T) {
	r := NewRegistry()
	out := NewStreamOutput()
	require.Nil(t, WriteTypedValue(out, String, "Zaphod"))
	dt, v, err := r.ReadTypedValue(NewStreamInput(out.Bytes()))
	require.Nil(t, err)
	require.Equal(t, String, dt)
	require.Equal(t, "Zaphod", v)
}

func TestBucketCodec(t *testing.T) {
	rows := [][]interface{}{
		{"Arthur", int32(38), int64(1)},
		{"Trillian", int32(33), nil},
		{nil, nil, int64(3)},
	}
	for _, c := range []Compression{NoCompression, LZ4Compression, ZstdCompression} {
		codec := &BucketCodec{Types: []DataType{String, Integer, Long}, Compression: c}
		data, err := codec.Encode(rows)
		require.Nil(t, err)
		decoded, err := codec.Decode(data)
		require.Nil(t, err)
		require.Equal(t, rows, decoded)
	}

	codec := &BucketCodec{Types: []DataType{String}}
	_, err := codec.Encode([][]interface{}{{"a", "b"}})
	require.NotNil(t, err)
	_, err = codec.Decode(nil)
	require.NotNil(t, err)
}
