package types

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4"
)

// Compression selects how an encoded Bucket is compressed
type Compression byte

const (
	// NoCompression leaves Bucket data uncompressed
	NoCompression Compression = iota
	// LZ4Compression compresses Bucket data with lz4
	LZ4Compression
	// ZstdCompression compresses Bucket data with zstd
	ZstdCompression
)

// BucketCodec encodes batches of rows whose columns have known DataTypes.
// Partial aggregation results are handed to their upstream in this form.
type BucketCodec struct {
	Types       []DataType
	Compression Compression
}

// Encode serializes rows. Every row must have exactly len(Types) values.
func (c *BucketCodec) Encode(rows [][]interface{}) ([]byte, error) {
	out := NewStreamOutput()
	out.WriteVLong(int64(len(rows)))
	for i, row := range rows {
		if len(row) != len(c.Types) {
			return nil, fmt.Errorf("Row %d has %d values, expected %d", i, len(row), len(c.Types))
		}
		for j, v := range row {
			if err := c.Types[j].WriteValueTo(out, v); err != nil {
				return nil, err
			}
		}
	}
	payload, err := compress(c.Compression, out.Bytes())
	if err != nil {
		return nil, err
	}
	return append([]byte{byte(c.Compression)}, payload...), nil
}

// Decode deserializes rows written by Encode
func (c *BucketCodec) Decode(data []byte) ([][]interface{}, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("Bucket data is empty")
	}
	payload, err := decompress(Compression(data[0]), data[1:])
	if err != nil {
		return nil, err
	}
	in := NewStreamInput(payload)
	numRows, err := in.ReadVLong()
	if err != nil {
		return nil, err
	}
	rows := make([][]interface{}, numRows)
	for i := range rows {
		row := make([]interface{}, len(c.Types))
		for j, t := range c.Types {
			v, err := t.ReadValueFrom(in)
			if err != nil {
				return nil, fmt.Errorf("Unable to read column %d of row %d: %w", j, i, err)
			}
			row[j] = v
		}
		rows[i] = row
	}
	return rows, nil
}

func compress(c Compression, data []byte) ([]byte, error) {
	switch c {
	case NoCompression:
		return data, nil
	case LZ4Compression:
		buf := new(bytes.Buffer)
		w := lz4.NewWriter(buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case ZstdCompression:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	}
	return nil, fmt.Errorf("Unknown compression %d", c)
}

func decompress(c Compression, data []byte) ([]byte, error) {
	switch c {
	case NoCompression:
		return data, nil
	case LZ4Compression:
		return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	case ZstdCompression:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(data, nil)
	}
	return nil, fmt.Errorf("Unknown compression %d", c)
}
