package jsonl

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/go-sif/sifql"
	"github.com/go-sif/sifql/expr"
	"github.com/go-sif/sifql/functions"
	"github.com/go-sif/sifql/types"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type trackingReader struct {
	io.Reader
	closed bool
}

func (r *trackingReader) Close() error {
	r.closed = true
	return nil
}

func rowBuilder(t *testing.T, outputs ...sifql.Symbol) RowFunc {
	fns, err := functions.NewRegistry(0)
	require.Nil(t, err)
	b, err := expr.NewRowBuilder(expr.NewCompiler(fns), outputs, nil)
	require.Nil(t, err)
	return b.Build
}

func TestJSONLParser(t *testing.T) {
	data := "# crew\n" +
		"{\"name\": \"Sean\", \"meta\": { \"index\": 1, \"first\": \"Sean\", \"last\": \"McIntyre\"}}\n" +
		"\n" +
		"{\"name\": \"Chris\", \"meta\": { \"index\": 3, \"first\": \"Chris\"}}\n" +
		"{\"name\": \"Phil\", \"meta\": { \"index\": 2, \"first\": \"Phil\", \"last\": \"Lalibert√©\"}}\n"
	r := &trackingReader{Reader: strings.NewReader(data)}
	parser := CreateParser(&ParserConf{BatchSize: 2, Comment: '#'})
	iter, err := parser.Parse(r, rowBuilder(t,
		sifql.NewReference("name", types.String),
		sifql.NewReference("meta.index", types.Integer),
		sifql.NewReference("meta.last", types.String),
	))
	require.Nil(t, err)

	var rows []sifql.Row
	batches := 0
	for iter.HasNextBatch() {
		batch, err := iter.NextBatch(context.Background())
		require.Nil(t, err)
		require.True(t, len(batch) <= 2)
		rows = append(rows, batch...)
		batches++
	}
	require.Equal(t, 2, batches)
	require.Equal(t, []sifql.Row{
		sifql.ArrayRow{"Sean", int32(1), "McIntyre"},
		sifql.ArrayRow{"Chris", int32(3), nil},
		sifql.ArrayRow{"Phil", int32(2), "Lalibert√©"},
	}, rows)
	require.Nil(t, iter.Close())
	require.True(t, r.closed)
}

func TestJSONLParserInvalidLine(t *testing.T) {
	r := &trackingReader{Reader: strings.NewReader("{\"name\": \"Sean\"}\n{\"name\": \n")}
	iter, err := CreateParser(&ParserConf{}).Parse(r, rowBuilder(t, sifql.NewReference("name", types.String)))
	require.Nil(t, err)
	_, err = iter.NextBatch(context.Background())
	require.NotNil(t, err)
	require.Contains(t, err.Error(), "line 2")
}

func TestJSONLParserHonoursCancellation(t *testing.T) {
	r := &trackingReader{Reader: strings.NewReader("{\"name\": \"Sean\"}\n")}
	iter, err := CreateParser(&ParserConf{HeaderLines: 0}).Parse(r, rowBuilder(t, sifql.NewReference("name", types.String)))
	require.Nil(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = iter.NextBatch(ctx)
	require.Equal(t, context.Canceled, err)
}

func TestToValue(t *testing.T) {
	doc := Document{gjson.Parse(`{"a": 1.5, "b": true, "c": null, "d": {"e": [1]}}`)}
	require.Equal(t, 1.5, ToValue(doc.Get("a")))
	require.Equal(t, true, ToValue(doc.Get("b")))
	require.Nil(t, ToValue(doc.Get("c")))
	require.Nil(t, ToValue(doc.Get("missing")))
	require.Equal(t, `{"e": [1]}`, ToValue(doc.Get("d")))
}
