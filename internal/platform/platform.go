// Package platform models the target filters attached to dependency edges in a
// cargo metadata export. A filter is either a concrete target triple
// ("x86_64-pc-windows-msvc") or a conditional compilation expression
// ("cfg(all(unix, target_arch = \"aarch64\"))").
package platform

import (
	"errors"
	"fmt"
	"strings"
)

// Platform is a parsed target filter. Exactly one of Triple and Cfg is set.
type Platform struct {
	Triple string
	Cfg    *Expr
}

func (p Platform) String() string {
	if p.Cfg != nil {
		return "cfg(" + p.Cfg.String() + ")"
	}
	return p.Triple
}

// Op identifies the shape of an Expr node.
type Op int

const (
	OpValue Op = iota
	OpNot
	OpAll
	OpAny
)

// Expr is a node of a cfg expression tree.
type Expr struct {
	Op   Op
	Args []*Expr // operands of OpNot (exactly one), OpAll and OpAny
	Cfg  Cfg     // leaf predicate of OpValue
}

// Cfg is a leaf predicate: a bare name such as `unix`, or a key/value pair
// such as `target_os = "linux"`.
type Cfg struct {
	Key   string
	Value string
	Pair  bool
}

func (c Cfg) String() string {
	if c.Pair {
		return fmt.Sprintf("%s = %q", c.Key, c.Value)
	}
	return c.Key
}

func (e *Expr) String() string {
	switch e.Op {
	case OpNot:
		return "not(" + joinExprs(e.Args) + ")"
	case OpAll:
		return "all(" + joinExprs(e.Args) + ")"
	case OpAny:
		return "any(" + joinExprs(e.Args) + ")"
	default:
		return e.Cfg.String()
	}
}

func joinExprs(exprs []*Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

// Name returns a leaf expression for a bare name predicate.
func Name(name string) *Expr {
	return &Expr{Op: OpValue, Cfg: Cfg{Key: name}}
}

// KeyPair returns a leaf expression for a `key = "value"` predicate.
func KeyPair(key, value string) *Expr {
	return &Expr{Op: OpValue, Cfg: Cfg{Key: key, Value: value, Pair: true}}
}

func Not(e *Expr) *Expr {
	return &Expr{Op: OpNot, Args: []*Expr{e}}
}

func All(es ...*Expr) *Expr {
	return &Expr{Op: OpAll, Args: es}
}

func Any(es ...*Expr) *Expr {
	return &Expr{Op: OpAny, Args: es}
}

// Parse parses a target filter as it appears in the `target` field of a
// dependency kind in cargo metadata.
func Parse(s string) (Platform, error) {
	s = strings.TrimSpace(s)
	if inner, ok := strings.CutPrefix(s, "cfg("); ok {
		inner, ok = strings.CutSuffix(inner, ")")
		if !ok {
			return Platform{}, fmt.Errorf("platform %q: missing closing parenthesis", s)
		}
		expr, err := ParseExpr(inner)
		if err != nil {
			return Platform{}, fmt.Errorf("platform %q: %w", s, err)
		}
		return Platform{Cfg: expr}, nil
	}

	if s == "" {
		return Platform{}, errors.New("empty platform")
	}
	if strings.ContainsAny(s, " \t\n()=,\"") {
		return Platform{}, fmt.Errorf("platform %q: invalid target triple", s)
	}
	return Platform{Triple: s}, nil
}
