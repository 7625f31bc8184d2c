package condition

import (
	"fmt"
	"slices"

	"github.com/crate2gn/crate2gn/internal/platform"
)

type entry struct {
	key  string
	expr string
}

var triples = []entry{
	{"i686-linux-android", `is_android && current_cpu == "x86"`},
	{"x86_64-linux-android", `is_android && current_cpu == "x64"`},
	{"armv7-linux-android", `is_android && current_cpu == "arm"`},
	{"aarch64-linux-android", `is_android && current_cpu == "arm64"`},
	{"aarch64-fuchsia", `is_fuchsia && current_cpu == "arm64"`},
	{"x86_64-fuchsia", `is_fuchsia && current_cpu == "x64"`},
	{"aarch64-apple-ios", `is_ios && current_cpu == "arm64"`},
	{"armv7-apple-ios", `is_ios && current_cpu == "arm"`},
	{"x86_64-apple-ios", `is_ios && current_cpu == "x64"`},
	{"i386-apple-ios", `is_ios && current_cpu == "x86"`},
	{"i686-pc-windows-msvc", `is_win && current_cpu == "x86"`},
	{"x86_64-pc-windows-msvc", `is_win && current_cpu == "x64"`},
	{"i686-unknown-linux-gnu", `(is_linux || is_chromeos) && current_cpu == "x86"`},
	{"x86_64-unknown-linux-gnu", `(is_linux || is_chromeos) && current_cpu == "x64"`},
	{"x86_64-apple-darwin", `is_mac && current_cpu == "x64"`},
	{"aarch64-apple-darwin", `is_mac && current_cpu == "arm64"`},
}

var arches = []entry{
	{"aarch64", `current_cpu == "arm64"`},
	{"arm", `current_cpu == "arm"`},
	{"x86", `current_cpu == "x86"`},
	{"x86_64", `current_cpu == "x64"`},
}

// unix is set by rustc on fuchsia too, hence "not windows".
var families = []entry{
	{"unix", "!is_win"},
	{"windows", "is_win"},
}

var oses = []entry{
	{"android", "is_android"},
	{"darwin", "is_mac"},
	{"fuchsia", "is_fuchsia"},
	{"ios", "is_ios"},
	{"linux", "is_linux || is_chromeos"},
	{"windows", "is_win"},
}

// lookup maps a value through table. Values outside the table never occur in
// the supported build matrix and translate to AlwaysFalse.
func lookup(table []entry, key string) Condition {
	for _, e := range table {
		if e.key == key {
			return Expr(e.expr)
		}
	}
	return AlwaysFalse
}

// FromPlatform translates a Cargo platform filter into a condition.
func FromPlatform(p platform.Platform) Condition {
	if p.Cfg != nil {
		return FromExpr(p.Cfg)
	}
	return FromTriple(p.Triple)
}

// FromTriple translates a target triple. Unknown triples are AlwaysFalse.
func FromTriple(triple string) Condition {
	return lookup(triples, triple)
}

// FromExpr translates a cfg expression tree.
func FromExpr(e *platform.Expr) Condition {
	switch e.Op {
	case platform.OpNot:
		return Not(FromExpr(e.Args[0]))
	case platform.OpAll:
		return AllOf(fromExprs(e.Args)...)
	case platform.OpAny:
		return AnyOf(fromExprs(e.Args)...)
	default:
		return fromCfg(e.Cfg)
	}
}

func fromExprs(exprs []*platform.Expr) []Condition {
	conds := make([]Condition, len(exprs))
	for i, e := range exprs {
		conds[i] = FromExpr(e)
	}
	return conds
}

func normalize(conds []Condition) []Condition {
	conds = slices.Clone(conds)
	slices.SortFunc(conds, Compare)
	return slices.Compact(conds)
}

func fromCfg(cfg platform.Cfg) Condition {
	if !cfg.Pair {
		return fromName(cfg.Key)
	}
	switch cfg.Key {
	case "target_abi":
		return Ignored
	case "target_arch":
		return lookup(arches, cfg.Value)
	case "target_env":
		return fromEnv(cfg.Value)
	case "target_family":
		return lookup(families, cfg.Value)
	case "target_os":
		return lookup(oses, cfg.Value)
	case "target_vendor":
		return fromVendor(cfg.Value)
	}
	return Unsupported(fmt.Sprintf("Unknown key `%s` in `%s`", cfg.Key, cfg))
}

func fromName(name string) Condition {
	switch name {
	case "unix", "windows":
		return lookup(families, name)
	case "windows_raw_dylib":
		return AlwaysFalse
	}
	return Unsupported(fmt.Sprintf("unknown option name: `#[cfg(%s)]`", name))
}

// msvc is the only Windows environment that is built; gnu and sgx never are.
func fromEnv(env string) Condition {
	switch env {
	case "msvc":
		return AlwaysTrue
	case "gnu", "sgx":
		return AlwaysFalse
	}
	return Unsupported(fmt.Sprintf("unknown `target_env` value: `%s`", env))
}

func fromVendor(vendor string) Condition {
	switch vendor {
	case "fortanix", "uwp":
		return AlwaysFalse
	}
	return Unsupported(fmt.Sprintf("unknown `target_vendor` name: `%s`", vendor))
}
