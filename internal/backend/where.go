// internal/backend/where.go
//
// Condition builders for NocoDB's where grammar.
//
// Context
// -------
//
//	(Directory_ID,eq,dogparks)~and((Slug,eq,central)~or(Slug,eq,north))
//
// The grammar has no quoting.  `,` `(` `)` and `~` are syntax wherever they
// appear, so a value carrying one of them would rewrite the query instead
// of being compared.
//
// Notes
// -----
//   - Only identifiers (directory ids, slugs) go through Eq.  Service checks
//     them with ValidValue first and answers ErrInvalidValue otherwise.
//   - Free-text references such as category names never reach the where
//     clause; they are matched in memory over the cached listing set.
package backend

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidValue is returned when an identifier cannot be expressed in a
// where clause.
var ErrInvalidValue = errors.New("invalid identifier")

var identRe = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N}._-]{0,127}$`)

// ValidValue reports whether v is safe to place in an Eq condition.
func ValidValue(v string) bool {
	return identRe.MatchString(strings.TrimSpace(v))
}

func checkValues(vals ...string) error {
	for _, v := range vals {
		if !ValidValue(v) {
			return fmt.Errorf("%w: %q", ErrInvalidValue, v)
		}
	}
	return nil
}

// Eq returns a single equality condition.  value must pass ValidValue.
func Eq(field, value string) string {
	return "(" + field + ",eq," + strings.TrimSpace(value) + ")"
}

// And joins non-empty conditions with ~and.
func And(conds ...string) string { return join("~and", conds) }

// Or joins non-empty conditions with ~or.  More than one condition is
// wrapped in parentheses so it nests inside And.
func Or(conds ...string) string {
	s := join("~or", conds)
	if strings.Contains(s, "~or") {
		return "(" + s + ")"
	}
	return s
}

func join(op string, conds []string) string {
	kept := conds[:0:0]
	for _, c := range conds {
		if c != "" {
			kept = append(kept, c)
		}
	}
	return strings.Join(kept, op)
}
