package canonical

import (
	"strings"

	"salescanon/internal/schema"
	"salescanon/internal/table"
	"salescanon/internal/transformer"
)

// Validation is the outcome of checking a canonical table for a set of
// required roles.
type Validation struct {
	OK bool

	// Missing lists roles without a column of the canonical name.
	Missing []schema.Role

	// Empty lists roles whose column exists but holds only nulls.
	Empty []schema.Role
}

// Validate checks that t has a non-empty canonical column for every role.
// Roles are reported in the order given.
func Validate(t *table.Table, roles ...schema.Role) Validation {
	v := Validation{Missing: []schema.Role{}, Empty: []schema.Role{}}
	for _, r := range roles {
		values, ok := t.Column(string(r))
		if !ok {
			v.Missing = append(v.Missing, r)
			continue
		}
		if allBlank(values) {
			v.Empty = append(v.Empty, r)
		}
	}
	v.OK = len(v.Missing) == 0 && len(v.Empty) == 0
	return v
}

// Reason renders a failed validation as "missing: A, B; empty: C". It is
// empty when v is OK.
func (v Validation) Reason() string {
	var parts []string
	if len(v.Missing) > 0 {
		parts = append(parts, "missing: "+joinRoles(v.Missing))
	}
	if len(v.Empty) > 0 {
		parts = append(parts, "empty: "+joinRoles(v.Empty))
	}
	return strings.Join(parts, "; ")
}

func joinRoles(rs []schema.Role) string {
	s := make([]string, len(rs))
	for i, r := range rs {
		s[i] = string(r)
	}
	return strings.Join(s, ", ")
}

func allBlank(values []any) bool {
	for _, v := range values {
		if !transformer.IsBlank(v) {
			return false
		}
	}
	return true
}
