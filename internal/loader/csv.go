package loader

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"salescanon/internal/table"
	"salescanon/internal/transformer"
)

// ReadCSV reads delimited text with a header row.
//
// Parsing is best-effort: quotes are lazy, records whose field count differs
// from the header are skipped and counted, and a leading UTF-8 BOM is
// dropped. Cells are trimmed; blanks and null tokens become nil.
func ReadCSV(ctx context.Context, r io.Reader, opt Options) (*table.Table, error) {
	logf := opt.logger()

	br := bufio.NewReaderSize(r, 64*1024)
	if b, _ := br.Peek(len(utf8BOM)); bytes.Equal(b, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	comma := opt.Comma
	if comma == 0 {
		first, _ := br.Peek(64 * 1024)
		comma = sniffDelimiter(first)
	}

	cr := csv.NewReader(br)
	cr.Comma = comma
	cr.FieldsPerRecord = -1 // we validate manually
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return table.FromRows(nil, nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = headerName(h, i)
	}

	rows := make([][]any, 0, 1024)
	skipped := 0
	for line := 2; ; line++ {
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: line %d: %w", line, err)
		}
		if len(rec) != len(columns) {
			if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
				continue
			}
			skipped++
			continue
		}
		row := make([]any, len(rec))
		for i, cell := range rec {
			row[i] = textCell(cell)
		}
		rows = append(rows, row)
	}

	if skipped > 0 {
		logf("loader: csv skipped=%d reason=field_count", skipped)
	}
	return table.FromRows(columns, rows), nil
}

// sniffDelimiter picks the candidate delimiter that occurs most often in the
// first line of sample, ignoring quoted sections. Comma wins ties.
func sniffDelimiter(sample []byte) rune {
	if i := bytes.IndexByte(sample, '\n'); i >= 0 {
		sample = sample[:i]
	}
	counts := map[rune]int{}
	inQuotes := false
	for _, r := range string(sample) {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if inQuotes {
			continue
		}
		switch r {
		case ',', ';', '\t', '|':
			counts[r]++
		}
	}
	best, bestN := ',', counts[',']
	for _, r := range []rune{';', '\t', '|'} {
		if counts[r] > bestN {
			best, bestN = r, counts[r]
		}
	}
	return best
}

// headerName trims a header cell and names blank ones by position.
func headerName(h string, i int) string {
	h = strings.TrimSpace(h)
	if h == "" {
		return fmt.Sprintf("column_%d", i+1)
	}
	return h
}

// textCell trims s and maps blanks and null tokens to nil.
func textCell(s string) any {
	s = strings.TrimSpace(s)
	if transformer.IsNullToken(s) {
		return nil
	}
	return s
}
