package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"salescanon/internal/table"
)

// arrayJoinSeparator flattens arrays of scalars into one cell.
const arrayJoinSeparator = ","

// ReadJSON reads records from r. Accepted shapes:
//   - a root array of objects
//   - a root object holding an array of objects (envelope); the largest
//     such array wins
//   - a single root object (one record)
//   - newline-delimited objects, alone or after any of the above
//
// Nested objects are flattened into "parent.child" columns. Numbers decode
// as float64. Columns are the sorted union of all record keys.
func ReadJSON(ctx context.Context, r io.Reader, opt Options) (*table.Table, error) {
	dec := json.NewDecoder(r)

	var root any
	if err := dec.Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return table.FromRecords(nil, nil), nil
		}
		return nil, fmt.Errorf("json: decode: %w", err)
	}

	var objs []map[string]any
	switch v := root.(type) {
	case []any:
		for i, elem := range v {
			if elem == nil {
				continue
			}
			m, ok := elem.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("json: array element %d not an object (got %T)", i, elem)
			}
			objs = append(objs, m)
		}
	case map[string]any:
		if env := largestObjectSlice(v); env != nil {
			objs = env
		} else {
			objs = append(objs, v)
		}
	default:
		return nil, fmt.Errorf("json: unsupported root %T (want object or array)", root)
	}

	// NDJSON / multiple top-level objects.
	for n := len(objs) + 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("json: record %d: %w", n, err)
		}
		if obj != nil {
			objs = append(objs, obj)
		}
	}

	recs := make([]table.Record, len(objs))
	for i, obj := range objs {
		rec := make(table.Record, len(obj))
		flattenRecord("", obj, rec)
		recs[i] = rec
	}
	return table.FromRecords(nil, recs), nil
}

// largestObjectSlice returns the longest field of root whose value is a
// non-empty array of objects, or nil. Ties go to the alphabetically first key
// so the choice does not depend on map order.
func largestObjectSlice(root map[string]any) []map[string]any {
	keys := make([]string, 0, len(root))
	for k := range root {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var best []map[string]any
	for _, k := range keys {
		arr, ok := root[k].([]any)
		if !ok || len(arr) == 0 {
			continue
		}
		objs := make([]map[string]any, 0, len(arr))
		for _, elem := range arr {
			if elem == nil {
				continue
			}
			m, ok := elem.(map[string]any)
			if !ok {
				objs = nil
				break
			}
			objs = append(objs, m)
		}
		if len(objs) > len(best) {
			best = objs
		}
	}
	return best
}

func flattenRecord(prefix string, in map[string]any, out table.Record) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		flattenValue(key, v, out)
	}
}

func flattenValue(key string, v any, out table.Record) {
	switch t := v.(type) {
	case map[string]any:
		flattenRecord(key, t, out)
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if e == nil {
				continue
			}
			parts = append(parts, fmt.Sprint(e))
		}
		if len(parts) == 0 {
			out[key] = nil
			return
		}
		out[key] = strings.Join(parts, arrayJoinSeparator)
	case string:
		out[key] = textCell(t)
	default:
		out[key] = v
	}
}
