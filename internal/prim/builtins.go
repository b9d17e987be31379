package prim

import (
	"fmt"

	"github.com/marchdb/march/internal/marcherr"
	"github.com/marchdb/march/internal/types"
)

func i64s(name string, args []types.Value, n int) ([]int64, error) {
	if len(args) != n {
		return nil, wrongArity(name, n, len(args))
	}
	out := make([]int64, n)
	for i, a := range args {
		if a.Kind != types.I64 {
			return nil, wrongKind(name, i, types.I64, a.Kind)
		}
		out[i] = a.I64
	}
	return out, nil
}

func boolI64(b bool) types.Value {
	if b {
		return types.I64Value(1)
	}
	return types.I64Value(0)
}

// AddI64 implements add_i64. original_source/src/exec.rs JIT-compiled
// this to a native `add r, r` stub with a software fallback on
// mmap/mprotect failure; this core always takes the software path.
func AddI64(_ Context, args []types.Value) ([]types.Value, error) {
	v, err := i64s("add_i64", args, 2)
	if err != nil {
		return nil, err
	}
	return []types.Value{types.I64Value(v[0] + v[1])}, nil
}

// SubI64 implements sub_i64, the JIT-backed counterpart to AddI64 in
// original_source/src/exec.rs.
func SubI64(_ Context, args []types.Value) ([]types.Value, error) {
	v, err := i64s("sub_i64", args, 2)
	if err != nil {
		return nil, err
	}
	return []types.Value{types.I64Value(v[0] - v[1])}, nil
}

func MulI64(_ Context, args []types.Value) ([]types.Value, error) {
	v, err := i64s("mul_i64", args, 2)
	if err != nil {
		return nil, err
	}
	return []types.Value{types.I64Value(v[0] * v[1])}, nil
}

func DivI64(_ Context, args []types.Value) ([]types.Value, error) {
	v, err := i64s("div_i64", args, 2)
	if err != nil {
		return nil, err
	}
	if v[1] == 0 {
		return nil, fmt.Errorf("%w: div_i64", marcherr.ErrDivByZero)
	}
	return []types.Value{types.I64Value(v[0] / v[1])}, nil
}

func ModI64(_ Context, args []types.Value) ([]types.Value, error) {
	v, err := i64s("mod_i64", args, 2)
	if err != nil {
		return nil, err
	}
	if v[1] == 0 {
		return nil, fmt.Errorf("%w: mod_i64", marcherr.ErrDivByZero)
	}
	return []types.Value{types.I64Value(v[0] % v[1])}, nil
}

func NegI64(_ Context, args []types.Value) ([]types.Value, error) {
	v, err := i64s("neg_i64", args, 1)
	if err != nil {
		return nil, err
	}
	return []types.Value{types.I64Value(-v[0])}, nil
}

func EqI64(_ Context, args []types.Value) ([]types.Value, error) {
	v, err := i64s("eq_i64", args, 2)
	if err != nil {
		return nil, err
	}
	return []types.Value{boolI64(v[0] == v[1])}, nil
}

func LtI64(_ Context, args []types.Value) ([]types.Value, error) {
	v, err := i64s("lt_i64", args, 2)
	if err != nil {
		return nil, err
	}
	return []types.Value{boolI64(v[0] < v[1])}, nil
}

func GtI64(_ Context, args []types.Value) ([]types.Value, error) {
	v, err := i64s("gt_i64", args, 2)
	if err != nil {
		return nil, err
	}
	return []types.Value{boolI64(v[0] > v[1])}, nil
}

// stateKey validates the namespace/key pair shared by every state.*
// primitive's leading two text arguments.
func stateKey(name string, args []types.Value, minArgs int) (ns, key string, rest []types.Value, err error) {
	if len(args) < minArgs {
		return "", "", nil, wrongArity(name, minArgs, len(args))
	}
	if args[0].Kind != types.Text {
		return "", "", nil, wrongKind(name, 0, types.Text, args[0].Kind)
	}
	if args[1].Kind != types.Text {
		return "", "", nil, wrongKind(name, 1, types.Text, args[1].Kind)
	}
	return args[0].Text, args[1].Text, args[2:], nil
}

// ReadI64 implements state.read_i64: (namespace, key) -> i64. Reads
// through Context.Globals, the two-level namespace/key store distilled
// spec §4.5 requires in place of original_source's single flat
// BTreeMap<String,Value>.
func ReadI64(ctx Context, args []types.Value) ([]types.Value, error) {
	ns, key, _, err := stateKey("state.read_i64", args, 2)
	if err != nil {
		return nil, err
	}
	v, err := ctx.Globals.Read(ns, key)
	if err != nil {
		return nil, err
	}
	if v.Kind != types.I64 {
		return nil, fmt.Errorf("%w: state.read_i64 %s/%s: expected i64, stored %s", marcherr.ErrTypeMismatch, ns, key, v.Kind)
	}
	return []types.Value{v}, nil
}

// WriteI64 implements state.write_i64: (namespace, key, value) -> unit.
func WriteI64(ctx Context, args []types.Value) ([]types.Value, error) {
	ns, key, rest, err := stateKey("state.write_i64", args, 3)
	if err != nil {
		return nil, err
	}
	if rest[0].Kind != types.I64 {
		return nil, wrongKind("state.write_i64", 2, types.I64, rest[0].Kind)
	}
	ctx.Globals.Write(ns, key, rest[0])
	return []types.Value{types.UnitValue}, nil
}

func ReadF64(ctx Context, args []types.Value) ([]types.Value, error) {
	ns, key, _, err := stateKey("state.read_f64", args, 2)
	if err != nil {
		return nil, err
	}
	v, err := ctx.Globals.Read(ns, key)
	if err != nil {
		return nil, err
	}
	if v.Kind != types.F64 {
		return nil, fmt.Errorf("%w: state.read_f64 %s/%s: expected f64, stored %s", marcherr.ErrTypeMismatch, ns, key, v.Kind)
	}
	return []types.Value{v}, nil
}

func WriteF64(ctx Context, args []types.Value) ([]types.Value, error) {
	ns, key, rest, err := stateKey("state.write_f64", args, 3)
	if err != nil {
		return nil, err
	}
	if rest[0].Kind != types.F64 {
		return nil, wrongKind("state.write_f64", 2, types.F64, rest[0].Kind)
	}
	ctx.Globals.Write(ns, key, rest[0])
	return []types.Value{types.UnitValue}, nil
}

func ReadText(ctx Context, args []types.Value) ([]types.Value, error) {
	ns, key, _, err := stateKey("state.read_text", args, 2)
	if err != nil {
		return nil, err
	}
	v, err := ctx.Globals.Read(ns, key)
	if err != nil {
		return nil, err
	}
	if v.Kind != types.Text {
		return nil, fmt.Errorf("%w: state.read_text %s/%s: expected text, stored %s", marcherr.ErrTypeMismatch, ns, key, v.Kind)
	}
	return []types.Value{v}, nil
}

func WriteText(ctx Context, args []types.Value) ([]types.Value, error) {
	ns, key, rest, err := stateKey("state.write_text", args, 3)
	if err != nil {
		return nil, err
	}
	if rest[0].Kind != types.Text {
		return nil, wrongKind("state.write_text", 2, types.Text, rest[0].Kind)
	}
	ctx.Globals.Write(ns, key, rest[0])
	return []types.Value{types.UnitValue}, nil
}

// BuiltinsByName is the fixed symbol table the CLI's run command
// (buildRegistry) consults when a catalog prim's bare name matches a
// known Go implementation, mirroring original_source/src/interp.rs's
// name-dispatched match over "add_i64"/"sub_i64" (extended here to the
// full arithmetic and state.* set distilled spec §4.5/§5 calls for).
var BuiltinsByName = map[string]Func{
	"add_i64": AddI64,
	"sub_i64": SubI64,
	"mul_i64": MulI64,
	"div_i64": DivI64,
	"mod_i64": ModI64,
	"neg_i64": NegI64,
	"eq_i64":  EqI64,
	"lt_i64":  LtI64,
	"gt_i64":  GtI64,

	"state.read_i64":   ReadI64,
	"state.write_i64":  WriteI64,
	"state.read_f64":   ReadF64,
	"state.write_f64":  WriteF64,
	"state.read_text":  ReadText,
	"state.write_text": WriteText,
}
