package loader

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"salescanon/internal/table"
)

// ReadHTML reads the first table matched by opt.TableSelector.
//
// The header is the first row that has <th> cells; without one, the first
// row is the header. Rows whose cell count differs from the header are
// skipped like misaligned CSV records. Cell text is whitespace-collapsed.
func ReadHTML(ctx context.Context, r io.Reader, opt Options) (*table.Table, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("html: parse: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sel := opt.TableSelector
	if sel == "" {
		sel = "table"
	}
	tbl := doc.Find(sel).First()
	if tbl.Length() == 0 {
		return nil, fmt.Errorf("html: no element matches %q", sel)
	}

	headerInTh := tbl.Find("th").Length() > 0

	var columns []string
	var rows [][]any
	skipped := 0

	tbl.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		// Rows of nested tables belong to those tables.
		if tr.Closest("table").Get(0) != tbl.Get(0) {
			return
		}
		cells := tr.ChildrenFiltered("th, td")
		if cells.Length() == 0 {
			return
		}
		if columns == nil {
			if headerInTh && tr.ChildrenFiltered("th").Length() == 0 {
				// Caption-like rows above the real header.
				return
			}
			columns = make([]string, 0, cells.Length())
			cells.Each(func(i int, c *goquery.Selection) {
				columns = append(columns, headerName(cellText(c), i))
			})
			return
		}
		if cells.Length() != len(columns) {
			skipped++
			return
		}
		row := make([]any, 0, len(columns))
		cells.Each(func(_ int, c *goquery.Selection) {
			row = append(row, textCell(cellText(c)))
		})
		rows = append(rows, row)
	})

	if skipped > 0 {
		opt.logger()("loader: html skipped=%d reason=cell_count", skipped)
	}
	return table.FromRows(columns, rows), nil
}

func cellText(c *goquery.Selection) string {
	return strings.Join(strings.Fields(c.Text()), " ")
}
