package export

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salescanon/internal/table"
)

func sample() *table.Table {
	d := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	return table.FromRows(
		[]string{"Date", "Customer", "Total_Sales", "notes"},
		[][]any{
			{d, "Acme", 10.25, "first"},
			{nil, nil, nil, 42.0},
		},
	)
}

func readBack(t *testing.T, data []byte) arrow.Table {
	t.Helper()
	pf, err := file.NewParquetReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = pf.Close() })

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, memory.NewGoAllocator())
	require.NoError(t, err)
	tbl, err := fr.ReadTable(context.Background())
	require.NoError(t, err)
	t.Cleanup(tbl.Release)
	return tbl
}

func TestSchema_TypesByColumn(t *testing.T) {
	t.Parallel()

	sc := Schema([]string{"Date", "Quantity", "Customer", "date"})
	assert.Equal(t, arrow.TIMESTAMP, sc.Field(0).Type.ID())
	assert.Equal(t, arrow.FLOAT64, sc.Field(1).Type.ID())
	assert.Equal(t, arrow.STRING, sc.Field(2).Type.ID())
	assert.Equal(t, arrow.STRING, sc.Field(3).Type.ID())
}

func TestWriteParquet_RoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteParquet(&buf, sample()))

	tbl := readBack(t, buf.Bytes())
	require.EqualValues(t, 2, tbl.NumRows())
	require.EqualValues(t, 4, tbl.NumCols())

	date := tbl.Column(0).Data().Chunk(0).(*array.Timestamp)
	assert.Equal(t, arrow.Timestamp(time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC).UnixMilli()), date.Value(0))
	assert.True(t, date.IsNull(1))

	cust := tbl.Column(1).Data().Chunk(0).(*array.String)
	assert.Equal(t, "Acme", cust.Value(0))
	assert.True(t, cust.IsNull(1))

	total := tbl.Column(2).Data().Chunk(0).(*array.Float64)
	assert.Equal(t, 10.25, total.Value(0))
	assert.True(t, total.IsNull(1))

	notes := tbl.Column(3).Data().Chunk(0).(*array.String)
	assert.Equal(t, "42", notes.Value(1))
}

func TestWriteParquetFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sales.parquet")
	require.NoError(t, WriteParquetFile(path, sample()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "PAR1", string(data[:4]))
	assert.EqualValues(t, 2, readBack(t, data).NumRows())
}

func TestWriteParquetFile_BadPath(t *testing.T) {
	t.Parallel()

	err := WriteParquetFile(filepath.Join(t.TempDir(), "missing", "x.parquet"), sample())
	assert.Error(t, err)
}
