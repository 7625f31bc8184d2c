package condition_test

import (
	"errors"
	"testing"

	"github.com/crate2gn/crate2gn/internal/condition"
	"github.com/crate2gn/crate2gn/internal/platform"
)

func fromString(t *testing.T, s string) condition.Condition {
	t.Helper()
	p, err := platform.Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	return condition.FromPlatform(p)
}

func TestFromPlatform(t *testing.T) {
	cases := []struct {
		note  string
		input string
		exp   condition.Condition
	}{
		{
			note:  "triple",
			input: "x86_64-pc-windows-msvc",
			exp:   condition.Expr(`is_win && current_cpu == "x64"`),
		},
		{
			note:  "unknown triple",
			input: "wasm32-unknown-unknown",
			exp:   condition.AlwaysFalse,
		},
		{
			note:  "any",
			input: `cfg(any(windows, target_os = "android"))`,
			exp:   condition.Expr("(is_android) || (is_win)"),
		},
		{
			note:  "redundant any",
			input: "cfg(any(windows, windows))",
			exp:   condition.Expr("is_win"),
		},
		{
			note:  "arch only",
			input: `cfg(target_arch = "aarch64")`,
			exp:   condition.Expr(`current_cpu == "arm64"`),
		},
		{
			note:  "all arch and family",
			input: `cfg(all(target_arch = "aarch64", unix))`,
			exp:   condition.Expr(`(!is_win) && (current_cpu == "arm64")`),
		},
		{
			note:  "all is order independent",
			input: `cfg(all(unix, target_arch = "aarch64"))`,
			exp:   condition.Expr(`(!is_win) && (current_cpu == "arm64")`),
		},
		{
			note:  "windows_aarch64_msvc",
			input: `cfg(all(any(target_arch = "x86_64", target_arch = "arm64ec"), target_env = "msvc", not(windows_raw_dylib)))`,
			exp:   condition.Expr(`current_cpu == "x64"`),
		},
		{
			note:  "windows_i686_gnu",
			input: `cfg(all(target_arch = "x86", target_env = "gnu", not(target_abi = "llvm"), not(windows_raw_dylib)))`,
			exp:   condition.AlwaysFalse,
		},
		{
			note:  "empty all",
			input: "cfg(all())",
			exp:   condition.AlwaysTrue,
		},
		{
			note:  "empty any",
			input: "cfg(any())",
			exp:   condition.AlwaysFalse,
		},
		{
			note:  "family key pair",
			input: `cfg(target_family = "wasm")`,
			exp:   condition.AlwaysFalse,
		},
		{
			note:  "not windows equals unix",
			input: "cfg(not(windows))",
			exp:   condition.Expr("!is_win"),
		},
		{
			note:  "not of os",
			input: `cfg(not(target_os = "linux"))`,
			exp:   condition.Expr("!(is_linux || is_chromeos)"),
		},
		{
			note:  "abi ignored",
			input: `cfg(target_abi = "llvm")`,
			exp:   condition.Ignored,
		},
		{
			note:  "unknown env",
			input: `cfg(target_env = "musl")`,
			exp:   condition.Unsupported("unknown `target_env` value: `musl`"),
		},
		{
			note:  "unknown vendor",
			input: `cfg(target_vendor = "apple")`,
			exp:   condition.Unsupported("unknown `target_vendor` name: `apple`"),
		},
		{
			note:  "unknown key",
			input: `cfg(feature = "std")`,
			exp:   condition.Unsupported("Unknown key `feature` in `feature = \"std\"`"),
		},
		{
			note:  "unknown name",
			input: "cfg(miri)",
			exp:   condition.Unsupported("unknown option name: `#[cfg(miri)]`"),
		},
		{
			note:  "unsupported poisons any",
			input: "cfg(any(unix, miri))",
			exp:   condition.Unsupported("unknown option name: `#[cfg(miri)]`"),
		},
	}

	for _, tc := range cases {
		t.Run(tc.note, func(t *testing.T) {
			if got := fromString(t, tc.input); got != tc.exp {
				t.Fatalf("expected %v, got %v", tc.exp, got)
			}
		})
	}
}

func TestOrAcrossFilters(t *testing.T) {
	got := condition.Or(fromString(t, "armv7-linux-android"), fromString(t, "cfg(windows)"))
	exp := condition.Expr(`(is_android && current_cpu == "arm") || (is_win)`)
	if got != exp {
		t.Fatalf("expected %v, got %v", exp, got)
	}
}

func samples() []condition.Condition {
	return []condition.Condition{
		condition.AlwaysFalse,
		condition.AlwaysTrue,
		condition.Ignored,
		condition.Expr("is_win"),
		condition.Expr(`(is_android) || (is_win)`),
		condition.Unsupported("unknown option name: `#[cfg(miri)]`"),
	}
}

func TestLaws(t *testing.T) {
	for _, x := range samples() {
		if got := condition.Or(x, x); got != x {
			t.Errorf("Or(%v, %v) = %v", x, x, got)
		}
		if got := condition.And(x, x); got != x {
			t.Errorf("And(%v, %v) = %v", x, x, got)
		}
		if got := condition.Or(condition.AlwaysFalse, x); got != x {
			t.Errorf("Or(AlwaysFalse, %v) = %v", x, got)
		}
		if got := condition.And(condition.AlwaysTrue, x); got != x {
			t.Errorf("And(AlwaysTrue, %v) = %v", x, got)
		}
		if got := condition.Or(condition.AlwaysTrue, x); got != condition.AlwaysTrue {
			t.Errorf("Or(AlwaysTrue, %v) = %v", x, got)
		}
		if got := condition.And(condition.AlwaysFalse, x); got != condition.AlwaysFalse {
			t.Errorf("And(AlwaysFalse, %v) = %v", x, got)
		}
		if got := condition.Not(condition.Not(x)); got != x {
			t.Errorf("Not(Not(%v)) = %v", x, got)
		}
	}
}

func TestIgnoredIsIdentity(t *testing.T) {
	expr := condition.Expr("is_mac")
	if got := condition.Or(condition.Ignored, expr); got != expr {
		t.Fatalf("expected %v, got %v", expr, got)
	}
	if got := condition.And(expr, condition.Ignored); got != expr {
		t.Fatalf("expected %v, got %v", expr, got)
	}
	if got := condition.Not(condition.Ignored); got != condition.Ignored {
		t.Fatalf("expected ignored, got %v", got)
	}
}

func TestNot(t *testing.T) {
	cases := []struct {
		note string
		in   string
		exp  string
	}{
		{note: "identifier", in: "is_win", exp: "!is_win"},
		{note: "negated identifier", in: "!is_win", exp: "is_win"},
		{note: "compound", in: "(a) && (b)", exp: "!((a) && (b))"},
		{note: "negated compound", in: "!((a) && (b))", exp: "(a) && (b)"},
		{note: "negation not covering whole", in: "!(a) && (b)", exp: "!(!(a) && (b))"},
	}

	for _, tc := range cases {
		t.Run(tc.note, func(t *testing.T) {
			if got := condition.Not(condition.Expr(tc.in)); got != condition.Expr(tc.exp) {
				t.Fatalf("expected %q, got %v", tc.exp, got)
			}
		})
	}
}

func TestOutput(t *testing.T) {
	if _, ok, err := condition.AlwaysTrue.Output(); ok || err != nil {
		t.Fatalf("expected no condition for AlwaysTrue, got ok=%v err=%v", ok, err)
	}
	if _, ok, err := condition.Ignored.Output(); ok || err != nil {
		t.Fatalf("expected no condition for Ignored, got ok=%v err=%v", ok, err)
	}

	text, ok, err := condition.Expr("is_win").Output()
	if err != nil || !ok || text != "is_win" {
		t.Fatalf("unexpected output %q ok=%v err=%v", text, ok, err)
	}

	_, _, err = condition.Unsupported("boom").Output()
	var unsupported *condition.UnsupportedError
	if !errors.As(err, &unsupported) || unsupported.Message != "boom" {
		t.Fatalf("expected unsupported error, got %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for AlwaysFalse")
		}
	}()
	_, _, _ = condition.AlwaysFalse.Output()
}

func TestCompare(t *testing.T) {
	s := samples()
	for i := range s {
		for j := range s {
			got := condition.Compare(s[i], s[j])
			switch {
			case i == j && got != 0:
				t.Errorf("Compare(%v, %v) = %d, want 0", s[i], s[j], got)
			case i != j && got == 0:
				t.Errorf("Compare(%v, %v) = 0", s[i], s[j])
			case i != j && condition.Compare(s[j], s[i]) != -got:
				t.Errorf("Compare is not antisymmetric for %v and %v", s[i], s[j])
			}
		}
	}
	if condition.Compare(condition.AlwaysFalse, condition.Unsupported("")) >= 0 {
		t.Fatal("AlwaysFalse must sort before Unsupported")
	}
}
