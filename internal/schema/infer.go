package schema

import (
	"io"
	"log"
	"strings"

	"salescanon/internal/datenorm"
	"salescanon/internal/table"
	"salescanon/internal/transformer"
)

// Logger is the minimal logging interface used by the inference engine.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// DefaultMinParseRatio is the share of non-null values that must parse for a
// keyword match to be accepted.
const DefaultMinParseRatio = 0.8

// Layer names the heuristic layer that resolved a role.
type Layer string

const (
	LayerExact   Layer = "exact"
	LayerKeyword Layer = "keyword"
)

// Match explains one resolved role.
type Match struct {
	Role    Role   `json:"role"`
	Column  string `json:"column"`
	Pattern string `json:"pattern"`
	Layer   Layer  `json:"layer"`
}

// Inferrer resolves role mappings. The zero value uses DefaultPatterns,
// day-first dates and DefaultMinParseRatio.
type Inferrer struct {
	// Patterns overrides the built-in pattern lists. Roles absent from
	// Patterns are never resolved.
	Patterns Patterns

	// DateOptions is used to content-check keyword candidates for Date.
	DateOptions datenorm.Options

	// MinParseRatio is the content threshold for keyword matches.
	MinParseRatio float64

	// Exclusive stops a column from being bound to more than one role. Off by
	// default: a column may back several roles, except that UnitPrice never
	// takes the Total_Sales column.
	Exclusive bool

	Logger Logger
}

// Infer resolves t with a default Inferrer.
func Infer(t *table.Table) Mapping {
	var in Inferrer
	return in.Infer(t)
}

// Infer returns the role mapping of t.
func (in *Inferrer) Infer(t *table.Table) Mapping {
	matches := in.Explain(t)
	m := make(Mapping, len(matches))
	for _, mt := range matches {
		m[mt.Role] = mt.Column
	}
	return m
}

// Explain resolves t and returns one Match per resolved role, in resolution
// order.
func (in *Inferrer) Explain(t *table.Table) []Match {
	logf := in.logger()
	cols := t.Columns()
	norms := make([]string, len(cols))
	for i, c := range cols {
		norms[i] = normalizeName(c)
	}

	patterns := in.patterns()
	claimed := make(map[string]bool, len(cols))
	var totalCol string
	var out []Match

	for _, role := range Roles() {
		rp, ok := patterns[role]
		if !ok {
			continue
		}
		allowed := func(i int) bool {
			if in.Exclusive && claimed[cols[i]] {
				return false
			}
			if role == UnitPrice {
				if strings.Contains(norms[i], "total") || strings.Contains(norms[i], "sum") {
					return false
				}
				if totalCol != "" && cols[i] == totalCol {
					return false
				}
			}
			return true
		}

		mt, found := in.resolve(t, role, rp, cols, norms, allowed)
		if !found {
			logf("schema: role=%s unresolved", role)
			continue
		}
		logf("schema: role=%s column=%q layer=%s pattern=%s", role, mt.Column, mt.Layer, mt.Pattern)
		if claimed[mt.Column] {
			logf("schema: warn column=%q backs more than one role (set exclusive_columns to forbid)", mt.Column)
		}
		claimed[mt.Column] = true
		if role == TotalSales {
			totalCol = mt.Column
		}
		out = append(out, mt)
	}
	return out
}

// resolve runs both layers for one role. Patterns are walked in list order
// and, for each pattern, columns left to right, so list order decides ties.
func (in *Inferrer) resolve(t *table.Table, role Role, rp RolePatterns, cols, norms []string, allowed func(int) bool) (Match, bool) {
	exact, keywords := rp.compiled()

	for _, p := range exact {
		for i, n := range norms {
			if n == p && allowed(i) {
				return Match{Role: role, Column: cols[i], Pattern: p, Layer: LayerExact}, true
			}
		}
	}

	for _, k := range keywords {
		for i, n := range norms {
			if !strings.Contains(n, k) || !allowed(i) {
				continue
			}
			if in.contentFits(t, role, cols[i]) {
				return Match{Role: role, Column: cols[i], Pattern: k, Layer: LayerKeyword}, true
			}
		}
	}
	return Match{}, false
}

// contentFits reports whether the values of col are plausible for role.
func (in *Inferrer) contentFits(t *table.Table, role Role, col string) bool {
	values, ok := t.Column(col)
	if !ok {
		return false
	}
	switch role.Kind() {
	case KindTime:
		return datenorm.ParseRatio(values, in.DateOptions) >= in.minRatio()
	case KindNumeric:
		return transformer.NumericRatio(values) >= in.minRatio()
	default:
		for _, v := range values {
			if !transformer.IsBlank(v) {
				return true
			}
		}
		return false
	}
}

func (in *Inferrer) patterns() Patterns {
	if in.Patterns == nil {
		return DefaultPatterns()
	}
	return in.Patterns
}

func (in *Inferrer) minRatio() float64 {
	if in.MinParseRatio <= 0 || in.MinParseRatio > 1 {
		return DefaultMinParseRatio
	}
	return in.MinParseRatio
}

func (in *Inferrer) logger() func(format string, v ...any) {
	if in.Logger == nil {
		return log.New(io.Discard, "", 0).Printf
	}
	return in.Logger.Printf
}
