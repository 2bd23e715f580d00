package transformer

import "sync"

// Row is a pooled positional row used to build storage insert batches
// without allocating a fresh slice per source row.
//
// Ownership: exactly one goroutine owns a Row at a time. The final consumer
// calls Free once nothing references r.V any more. On error or cancellation
// paths call Drop instead, so a Row that may still be observed is never
// handed out again.
type Row struct {
	V    []any
	Line int // 1-based source row number, if known
}

var rowPool sync.Pool

// GetRow returns a Row with len(V) == colCount and every element nil.
func GetRow(colCount int) *Row {
	if v := rowPool.Get(); v != nil {
		r := v.(*Row)
		if cap(r.V) < colCount {
			r.V = make([]any, colCount)
		}
		r.V = r.V[:colCount]
		clear(r.V)
		r.Line = 0
		return r
	}
	return &Row{V: make([]any, colCount)}
}

// Free returns r to the pool.
func (r *Row) Free() {
	rowPool.Put(r)
}

// Drop releases r's values without re-pooling it.
func (r *Row) Drop() {
	r.V = nil
	r.Line = 0
}
