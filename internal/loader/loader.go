// Package loader reads raw tabular files (CSV, JSON, HTML tables) into a
// table.Table. Cells stay as loaded: trimmed strings from text formats,
// float64/bool/string from JSON, and nil for blanks and null tokens. Typing is
// left to schema inference and canonicalization.
package loader

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"salescanon/internal/table"
)

// Logger is the minimal logging interface used by the loaders.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Format is an input file format.
type Format string

const (
	FormatUnknown Format = ""
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatHTML    Format = "html"
)

// ErrUnsupportedFormat is returned for inputs no reader handles (e.g. Excel).
var ErrUnsupportedFormat = errors.New("loader: unsupported format")

// Options configures Load and Read.
type Options struct {
	// Format forces a reader. FormatUnknown picks by extension, then by
	// sniffing the first bytes.
	Format Format

	// Comma is the CSV delimiter. Zero detects ',', ';', '\t' or '|' from the
	// header line.
	Comma rune

	// TableSelector selects the HTML table to read. Defaults to "table"; the
	// first match wins.
	TableSelector string

	Logger Logger
}

func (o Options) logger() func(string, ...any) {
	if o.Logger != nil {
		return o.Logger.Printf
	}
	return log.New(io.Discard, "", 0).Printf
}

// ParseFormat maps a user-supplied name to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatUnknown, nil
	case "csv", "tsv", "txt":
		return FormatCSV, nil
	case "json", "ndjson", "jsonl":
		return FormatJSON, nil
	case "html", "htm":
		return FormatHTML, nil
	default:
		return FormatUnknown, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// FormatFromPath guesses the format from the file extension. Spreadsheet
// extensions are reported as unsupported rather than unknown.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch ext {
	case "xls", "xlsx", "xlsm", "ods":
		return FormatUnknown, fmt.Errorf("%w: %s (export the sheet as CSV)", ErrUnsupportedFormat, ext)
	case "":
		return FormatUnknown, nil
	}
	f, err := ParseFormat(ext)
	if err != nil {
		// Unknown extensions fall back to sniffing.
		return FormatUnknown, nil
	}
	return f, nil
}

// Load opens path and reads it as a table.
func Load(ctx context.Context, path string, opt Options) (*table.Table, error) {
	if opt.Format == FormatUnknown {
		f, err := FormatFromPath(path)
		if err != nil {
			return nil, err
		}
		opt.Format = f
	}

	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	defer fh.Close()

	t, err := Read(ctx, fh, opt)
	if err != nil {
		return nil, fmt.Errorf("loader: %s: %w", filepath.Base(path), err)
	}
	opt.logger()("loader: file=%s format=%s rows=%d columns=%d", filepath.Base(path), opt.Format, t.Len(), len(t.Columns()))
	return t, nil
}

// Read reads r in opt.Format, sniffing the format when it is unknown.
func Read(ctx context.Context, r io.Reader, opt Options) (*table.Table, error) {
	br := bufio.NewReader(r)
	if opt.Format == FormatUnknown {
		sample, _ := br.Peek(4096)
		opt.Format = sniffFormat(sample)
	}

	switch opt.Format {
	case FormatCSV:
		return ReadCSV(ctx, br, opt)
	case FormatJSON:
		return ReadJSON(ctx, br, opt)
	case FormatHTML:
		return ReadHTML(ctx, br, opt)
	default:
		return nil, fmt.Errorf("%w: cannot detect format", ErrUnsupportedFormat)
	}
}

// sniffFormat infers the input format from a byte sample. An empty sample
// reads as an empty CSV.
func sniffFormat(sample []byte) Format {
	trim := bytes.TrimSpace(bytes.TrimPrefix(sample, utf8BOM))
	if len(trim) == 0 {
		return FormatCSV
	}
	switch trim[0] {
	case '<':
		return FormatHTML
	case '{', '[':
		return FormatJSON
	}
	// Legacy spreadsheets (OLE2) and xlsx (zip) have binary magic numbers.
	if bytes.HasPrefix(trim, []byte{0xD0, 0xCF, 0x11, 0xE0}) || bytes.HasPrefix(trim, []byte("PK\x03\x04")) {
		return FormatUnknown
	}
	return FormatCSV
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}
