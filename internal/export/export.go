// Package export writes canonical tables to columnar files.
package export

import (
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"salescanon/internal/schema"
	"salescanon/internal/table"
	"salescanon/internal/transformer"
)

// timestampType is the Arrow type of the Date column.
var timestampType = &arrow.TimestampType{Unit: arrow.Millisecond, TimeZone: "UTC"}

// Schema returns the Arrow schema for a table with the given columns.
// Canonical numeric columns are float64, Date is a UTC millisecond timestamp,
// and every other column is a string. All fields are nullable.
func Schema(columns []string) *arrow.Schema {
	fields := make([]arrow.Field, len(columns))
	for i, c := range columns {
		fields[i] = arrow.Field{Name: c, Type: fieldType(c), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

func fieldType(col string) arrow.DataType {
	for _, r := range schema.Roles() {
		if string(r) != col {
			continue
		}
		switch r.Kind() {
		case schema.KindTime:
			return timestampType
		case schema.KindNumeric:
			return arrow.PrimitiveTypes.Float64
		}
	}
	return arrow.BinaryTypes.String
}

// WriteParquet writes t to w as a Snappy-compressed Parquet file with the
// Arrow schema embedded.
func WriteParquet(w io.Writer, t *table.Table) error {
	sc := Schema(t.Columns())
	rec := buildRecord(memory.NewGoAllocator(), sc, t)
	defer rec.Release()

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	writer, err := pqarrow.NewFileWriter(sc, w, props, arrowProps)
	if err != nil {
		return fmt.Errorf("export: create parquet writer: %w", err)
	}
	if err := writer.Write(rec); err != nil {
		_ = writer.Close()
		return fmt.Errorf("export: write parquet: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("export: close parquet writer: %w", err)
	}
	return nil
}

// WriteParquetFile writes t to path, replacing any existing file.
func WriteParquetFile(path string, t *table.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}
	if err := WriteParquet(f, t); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func buildRecord(mem memory.Allocator, sc *arrow.Schema, t *table.Table) arrow.Record {
	b := array.NewRecordBuilder(mem, sc)
	defer b.Release()

	for i, f := range sc.Fields() {
		values, _ := t.Column(f.Name)
		switch fb := b.Field(i).(type) {
		case *array.Float64Builder:
			fb.Reserve(len(values))
			for _, v := range values {
				x, ok := transformer.ParseNumber(v)
				if !ok || math.IsNaN(x) || math.IsInf(x, 0) {
					fb.AppendNull()
					continue
				}
				fb.Append(x)
			}
		case *array.TimestampBuilder:
			fb.Reserve(len(values))
			for _, v := range values {
				ts, ok := v.(time.Time)
				if !ok || ts.IsZero() {
					fb.AppendNull()
					continue
				}
				fb.Append(arrow.Timestamp(ts.UnixMilli()))
			}
		case *array.StringBuilder:
			fb.Reserve(len(values))
			for _, v := range values {
				s, ok := transformer.Identity(v).(string)
				if !ok {
					fb.AppendNull()
					continue
				}
				fb.Append(s)
			}
		}
	}
	return b.NewRecord()
}
