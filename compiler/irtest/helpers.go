package irtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slowlang/holeyc/compiler/ast"
	"github.com/slowlang/holeyc/compiler/ir"
	"github.com/slowlang/holeyc/compiler/lower"
)

// Lower decodes a YAML tree and lowers it into quads.
func Lower(tb testing.TB, tree string) *ir.Program {
	tb.Helper()

	x, err := ast.Decode([]byte(tree))
	require.NoError(tb, err, "decode")

	p, err := lower.Program(context.Background(), x)
	require.NoError(tb, err, "lower")

	require.NoError(tb, p.Check(), "check")

	return p
}

// Run interprets p and returns its output and main's result.
func Run(tb testing.TB, p *ir.Program, input ...int64) (string, int64) {
	tb.Helper()

	m := NewMachine(p, input...)

	ret, err := m.Run(context.Background())
	require.NoError(tb, err, "run")

	return string(m.Output), ret
}

// Proc finds a procedure by name.
func Proc(tb testing.TB, p *ir.Program, name string) *ir.Procedure {
	tb.Helper()

	for _, f := range p.Procs {
		if f.Name == name {
			return f
		}
	}

	require.Failf(tb, "no procedure", "%v", name)

	return nil
}

// Instrs returns the procedure code as a list of instructions.
func Instrs(f *ir.Procedure) []ir.Instr {
	r := make([]ir.Instr, len(f.Code))

	for i, id := range f.Code {
		r[i] = f.Instr(id)
	}

	return r
}

// VarByName finds a variable of procedure f, or a global if f is nil.
func VarByName(tb testing.TB, p *ir.Program, f *ir.Procedure, name string) ir.VarID {
	tb.Helper()

	proc := -1
	if f != nil {
		proc = f.Index
	}

	for id, v := range p.Vars {
		if v.Name == name && v.Proc == proc && v.Kind != ir.Temp {
			return ir.VarID(id)
		}
	}

	require.Failf(tb, "no variable", "%v", name)

	return -1
}
