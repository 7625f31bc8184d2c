// Package condition implements the boolean algebra used to gate dependencies
// on target platforms. Conditions start out as Cargo platform predicates and
// end up as GN boolean expressions such as `is_win && current_cpu == "x64"`.
package condition

import (
	"fmt"
	"strings"
)

// Kind enumerates the closed set of condition variants. The declaration order
// is significant: Compare orders conditions by kind first.
type Kind int

const (
	KindAlwaysFalse Kind = iota
	KindAlwaysTrue
	KindIgnored
	KindExpr
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindAlwaysFalse:
		return "always_false"
	case KindAlwaysTrue:
		return "always_true"
	case KindIgnored:
		return "ignored"
	case KindExpr:
		return "expr"
	case KindUnsupported:
		return "unsupported"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Condition is a comparable value: two conditions are equal iff they have the
// same kind and text, so it can be used with == and as a map key.
type Condition struct {
	kind Kind
	text string // GN expression for KindExpr, diagnostic for KindUnsupported
}

var (
	// AlwaysFalse marks a predicate that never holds in any supported build
	// configuration.
	AlwaysFalse = Condition{kind: KindAlwaysFalse}
	AlwaysTrue  = Condition{kind: KindAlwaysTrue}
	// Ignored is a recognized predicate that is deliberately not modeled. It
	// behaves as an identity for both Or and And.
	Ignored = Condition{kind: KindIgnored}
)

// Expr returns a condition holding a GN boolean expression.
func Expr(text string) Condition {
	return Condition{kind: KindExpr, text: text}
}

// Unsupported returns a condition recording a predicate that has no GN
// translation. It must never reach generated output.
func Unsupported(message string) Condition {
	return Condition{kind: KindUnsupported, text: message}
}

func (c Condition) Kind() Kind {
	return c.kind
}

// Text returns the expression of an Expr or the message of an Unsupported
// condition, and the empty string otherwise.
func (c Condition) Text() string {
	return c.text
}

func (c Condition) String() string {
	switch c.kind {
	case KindExpr:
		return c.text
	case KindUnsupported:
		return "unsupported: " + c.text
	}
	return c.kind.String()
}

// Compare orders conditions by kind and then by text. It returns -1, 0 or +1.
func Compare(a, b Condition) int {
	if a.kind != b.kind {
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	return strings.Compare(a.text, b.text)
}

// Or returns the disjunction of a and b.
func Or(a, b Condition) Condition {
	if a == b {
		return a
	}
	switch {
	case a.kind == KindAlwaysFalse:
		return b
	case b.kind == KindAlwaysFalse:
		return a
	case a.kind == KindAlwaysTrue || b.kind == KindAlwaysTrue:
		return AlwaysTrue
	case a.kind == KindIgnored:
		return b
	case b.kind == KindIgnored:
		return a
	case a.kind == KindExpr && b.kind == KindExpr:
		return Expr("(" + a.text + ") || (" + b.text + ")")
	case a.kind == KindUnsupported:
		return a
	default:
		return b
	}
}

// And returns the conjunction of a and b.
func And(a, b Condition) Condition {
	if a == b {
		return a
	}
	switch {
	case a.kind == KindAlwaysFalse || b.kind == KindAlwaysFalse:
		return AlwaysFalse
	case a.kind == KindAlwaysTrue:
		return b
	case b.kind == KindAlwaysTrue:
		return a
	case a.kind == KindIgnored:
		return b
	case b.kind == KindIgnored:
		return a
	case a.kind == KindExpr && b.kind == KindExpr:
		return Expr("(" + a.text + ") && (" + b.text + ")")
	case a.kind == KindUnsupported:
		return a
	default:
		return b
	}
}

// Not returns the negation of c. Negating a negated expression yields the
// inner expression, so Not(Not(x)) == x for every x.
func Not(c Condition) Condition {
	switch c.kind {
	case KindAlwaysFalse:
		return AlwaysTrue
	case KindAlwaysTrue:
		return AlwaysFalse
	case KindExpr:
		return Expr(negate(c.text))
	default:
		return c
	}
}

func negate(expr string) string {
	if inner, ok := strings.CutPrefix(expr, "!"); ok {
		if isIdentifier(inner) {
			return inner
		}
		if stripped, ok := unwrap(inner); ok {
			return stripped
		}
	}
	if isIdentifier(expr) {
		return "!" + expr
	}
	return "!(" + expr + ")"
}

// unwrap removes one pair of parentheses enclosing the whole of s.
func unwrap(s string) (string, bool) {
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return "", false
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(s)-1 {
				return "", false
			}
		}
	}
	return s[1 : len(s)-1], true
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		b := s[i]
		switch {
		case b == '_', b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z':
		case b >= '0' && b <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// AllOf folds conditions with And starting from AlwaysTrue, after sorting and
// removing duplicates so the result does not depend on input order.
func AllOf(conds ...Condition) Condition {
	acc := AlwaysTrue
	for _, c := range normalize(conds) {
		acc = And(acc, c)
	}
	return acc
}

// AnyOf folds conditions with Or starting from AlwaysFalse, after sorting and
// removing duplicates so the result does not depend on input order.
func AnyOf(conds ...Condition) Condition {
	acc := AlwaysFalse
	for _, c := range normalize(conds) {
		acc = Or(acc, c)
	}
	return acc
}

// UnsupportedError is returned when a condition without a GN translation is
// about to be emitted.
type UnsupportedError struct {
	Message string
}

func (e *UnsupportedError) Error() string {
	return "failed to translate `#[cfg(...)]` into a GN condition: " + e.Message
}

// Output converts c into the text placed in a generated rule. The boolean
// result is false when no condition is needed (AlwaysTrue or Ignored).
//
// AlwaysFalse conditions must have been filtered out by dependency resolution;
// Output panics if it meets one.
func (c Condition) Output() (string, bool, error) {
	switch c.kind {
	case KindAlwaysTrue, KindIgnored:
		return "", false, nil
	case KindExpr:
		return c.text, true, nil
	case KindAlwaysFalse:
		panic("condition: AlwaysFalse dependency reached rule output")
	default:
		return "", false, &UnsupportedError{Message: c.text}
	}
}
