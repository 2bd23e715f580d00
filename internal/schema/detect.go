package schema

import (
	"strings"
	"time"

	"salescanon/internal/datenorm"
	"salescanon/internal/table"
	"salescanon/internal/transformer"
)

const (
	// dateSampleSize bounds how many non-null values are tried when
	// classifying a column as a date.
	dateSampleSize = 100

	// distinctCapPerColumn bounds distinct counting in profiles.
	distinctCapPerColumn = 10000

	// categoricalRatio: a text column with fewer distinct values than this
	// share of the rows is categorical.
	categoricalRatio = 0.10

	// idRatio: a column named like an id with more distinct values than this
	// share of the rows is an id column.
	idRatio = 0.95
)

// idNames are the normalized column names considered for id detection.
var idNames = map[string]bool{"id": true, "index": true, "key": true}

// ColumnKind is the content class of a column.
type ColumnKind string

const (
	ColumnEmpty   ColumnKind = "empty"
	ColumnNumeric ColumnKind = "numeric"
	ColumnDate    ColumnKind = "date"
	ColumnText    ColumnKind = "text"
)

// Candidates is the exploratory view of a table: content classes plus every
// column that matches any pattern of a role. It is not used to canonicalize.
type Candidates struct {
	Numeric     []string          `json:"numeric"`
	Dates       []string          `json:"dates"`
	Text        []string          `json:"text"`
	Categorical []string          `json:"categorical"`
	IDs         []string          `json:"ids"`
	Roles       map[Role][]string `json:"roles"`
}

// ColumnProfile summarizes one column.
type ColumnProfile struct {
	Name           string     `json:"name"`
	Kind           ColumnKind `json:"kind"`
	NonNull        int        `json:"non_null"`
	Nulls          int        `json:"nulls"`
	Distinct       int        `json:"distinct"`
	DistinctCapped bool       `json:"distinct_capped,omitempty"`
}

// DetectCandidates classifies every column of t by content and lists, per
// role, all columns that match an exact pattern or a keyword, exact matches
// first. Keyword candidates are not content-checked here.
func DetectCandidates(t *table.Table) Candidates {
	var in Inferrer
	return in.DetectCandidates(t)
}

// DetectCandidates is the Inferrer form of the package-level function; it
// uses the Inferrer's patterns and date options.
func (in *Inferrer) DetectCandidates(t *table.Table) Candidates {
	c := Candidates{Roles: make(map[Role][]string)}
	rows := t.Len()

	for _, p := range in.Profile(t) {
		switch p.Kind {
		case ColumnNumeric:
			c.Numeric = append(c.Numeric, p.Name)
		case ColumnDate:
			c.Dates = append(c.Dates, p.Name)
		case ColumnText:
			c.Text = append(c.Text, p.Name)
			if !p.DistinctCapped && float64(p.Distinct) < float64(rows)*categoricalRatio {
				c.Categorical = append(c.Categorical, p.Name)
			}
		}
		if rows > 0 && idNames[normalizeName(p.Name)] && float64(p.Distinct)/float64(rows) > idRatio {
			c.IDs = append(c.IDs, p.Name)
		}
	}

	cols := t.Columns()
	norms := make([]string, len(cols))
	for i, col := range cols {
		norms[i] = normalizeName(col)
	}
	patterns := in.patterns()
	for _, role := range Roles() {
		rp, ok := patterns[role]
		if !ok {
			continue
		}
		exact, keywords := rp.compiled()
		seen := make(map[string]bool)
		add := func(i int) {
			if seen[cols[i]] {
				return
			}
			if role == UnitPrice && containsAny(norms[i], "total", "sum") {
				return
			}
			seen[cols[i]] = true
			c.Roles[role] = append(c.Roles[role], cols[i])
		}
		for _, p := range exact {
			for i, n := range norms {
				if n == p {
					add(i)
				}
			}
		}
		for _, k := range keywords {
			for i, n := range norms {
				if containsAny(n, k) {
					add(i)
				}
			}
		}
	}
	return c
}

// Profile returns per-column null and distinct counts and the content class
// of every column of t, in column order. Distinct counting is bounded.
func (in *Inferrer) Profile(t *table.Table) []ColumnProfile {
	cols := t.Columns()
	out := make([]ColumnProfile, 0, len(cols))
	for _, name := range cols {
		values, _ := t.Column(name)
		out = append(out, in.profileColumn(name, values))
	}
	return out
}

// Profile profiles t with a default Inferrer.
func Profile(t *table.Table) []ColumnProfile {
	var in Inferrer
	return in.Profile(t)
}

func (in *Inferrer) profileColumn(name string, values []any) ColumnProfile {
	p := ColumnProfile{Name: name}
	set := make(map[string]struct{})
	nonNull := make([]any, 0, len(values))

	for _, v := range values {
		if transformer.IsBlank(v) {
			p.Nulls++
			continue
		}
		p.NonNull++
		nonNull = append(nonNull, v)
		if p.DistinctCapped {
			continue
		}
		key, _ := transformer.Identity(v).(string)
		set[key] = struct{}{}
		if len(set) >= distinctCapPerColumn {
			p.DistinctCapped = true
			set = nil
		}
	}
	if p.DistinctCapped {
		p.Distinct = distinctCapPerColumn
	} else {
		p.Distinct = len(set)
	}

	p.Kind = in.classify(nonNull)
	return p
}

// classify decides the content class of the non-null values of a column.
// Numeric and date classes require every value to parse; dates are tested on
// the first dateSampleSize values.
func (in *Inferrer) classify(nonNull []any) ColumnKind {
	if len(nonNull) == 0 {
		return ColumnEmpty
	}
	if allTimes(nonNull) {
		return ColumnDate
	}
	if transformer.NumericRatio(nonNull) == 1 {
		return ColumnNumeric
	}
	sample := nonNull
	if len(sample) > dateSampleSize {
		sample = sample[:dateSampleSize]
	}
	if datenorm.ParseRatio(sample, in.DateOptions) == 1 {
		return ColumnDate
	}
	return ColumnText
}

func allTimes(values []any) bool {
	for _, v := range values {
		if _, ok := v.(time.Time); !ok {
			return false
		}
	}
	return true
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
