package opt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/holeyc/compiler/ir"
	"github.com/slowlang/holeyc/compiler/irtest"
)

var programs = map[string]struct {
	tree  string
	input []int64
}{
	"loop": {tree: `
funcs:
  - name: sum
    ret: int
    formals: [{name: n, type: int}]
    body:
      - decl: {name: s, type: int}
      - decl: {name: i, type: int}
      - assign: {dst: {id: s}, src: {int: 0}}
      - assign: {dst: {id: i}, src: {int: 1}}
      - while:
          cond: {bin: {op: "<=", l: {id: i}, r: {id: n}}}
          body:
            - assign: {dst: {id: s}, src: {bin: {op: "+", l: {id: s}, r: {id: i}}}}
            - postinc: {id: i}
      - return: {id: s}
  - name: main
    body:
      - decl: {name: k, type: int}
      - assign: {dst: {id: k}, src: {int: 10}}
      - toconsole: {call: {func: sum, args: [{id: k}]}}
      - toconsole: {char: "\n"}
`},
	"branches": {tree: `
funcs:
  - name: main
    body:
      - decl: {name: x, type: int}
      - decl: {name: c, type: bool}
      - fromconsole: {id: x}
      - assign: {dst: {id: c}, src: {bin: {op: ">", l: {id: x}, r: {int: 3}}}}
      - if:
          cond: {un: {op: "!", x: {id: c}}}
          then: [{toconsole: {str: "small"}}]
          else: [{toconsole: {str: "big"}}]
      - if:
          cond: {bin: {op: "&&", l: {bool: true}, r: {bin: {op: "!=", l: {int: 2}, r: {int: 3}}}}}
          then: [{toconsole: {un: {op: "-", x: {int: 8}}}}]
`, input: []int64{5}},
	"pointers": {tree: `
globals:
  - {name: g, type: int}
funcs:
  - name: set
    formals: [{name: p, type: intptr}, {name: v, type: int}]
    body:
      - assign: {dst: {deref: p}, src: {id: v}}
  - name: main
    body:
      - decl: {name: x, type: int}
      - decl: {name: p, type: intptr}
      - decl: {name: s, type: charptr}
      - assign: {dst: {id: x}, src: {int: 1}}
      - assign: {dst: {id: p}, src: {ref: x}}
      - call: {func: set, args: [{id: p}, {int: 7}]}
      - toconsole: {id: x}
      - assign: {dst: {id: g}, src: {id: x}}
      - call: {func: set, args: [{ref: g}, {bin: {op: "*", l: {id: g}, r: {int: 6}}}]}
      - toconsole: {id: g}
      - assign: {dst: {id: s}, src: {str: "hey"}}
      - toconsole: {index: {id: s, off: {int: 1}}}
`},
	"manyargs": {tree: `
funcs:
  - name: f
    ret: int
    formals:
      - {name: a, type: int}
      - {name: b, type: int}
      - {name: c, type: int}
      - {name: d, type: int}
      - {name: e, type: int}
      - {name: g, type: int}
      - {name: h, type: int}
      - {name: i, type: int}
    body:
      - return: {bin: {op: "-", l: {id: h}, r: {bin: {op: "/", l: {id: i}, r: {id: a}}}}}
  - name: main
    body:
      - toconsole:
          call:
            func: f
            args: [{int: 2}, {int: 0}, {int: 0}, {int: 0}, {int: 0}, {int: 0}, {int: 30}, {int: 8}]
`},
	"order": {tree: `
globals:
  - {name: g, type: int}
funcs:
  - name: bump
    ret: int
    body:
      - assign: {dst: {id: g}, src: {int: 100}}
      - return: {int: 0}
  - name: show
    formals: [{name: a, type: int}, {name: b, type: int}]
    body:
      - toconsole: {id: a}
      - toconsole: {char: " "}
  - name: main
    body:
      - decl: {name: x, type: int}
      - assign: {dst: {id: x}, src: {int: 1}}
      - toconsole: {bin: {op: "+", l: {id: x}, r: {assign: {dst: {id: x}, src: {int: 5}}}}}
      - toconsole: {char: " "}
      - assign: {dst: {id: g}, src: {int: 1}}
      - toconsole: {bin: {op: "+", l: {id: g}, r: {call: {func: bump}}}}
      - toconsole: {char: " "}
      - assign: {dst: {id: g}, src: {int: 1}}
      - call: {func: show, args: [{id: g}, {call: {func: bump}}]}
`},
}

func TestPreservesBehavior(t *testing.T) {
	ctx := context.Background()

	for name, tc := range programs {
		t.Run(name, func(t *testing.T) {
			ref := irtest.Lower(t, tc.tree)
			want, wantRet := irtest.Run(t, ref, tc.input...)

			p := irtest.Lower(t, tc.tree)

			err := Program(ctx, p, Options{})
			require.NoError(t, err)

			got, gotRet := irtest.Run(t, p, tc.input...)

			assert.Equal(t, want, got)
			assert.Equal(t, wantRet, gotRet)

			for _, f := range p.Procs {
				st, err := Proc(ctx, p, f, Options{})
				require.NoError(t, err)

				assert.Equal(t, 1, st.Rounds, "proc %v is not at fixed point", f.Name)
				assert.True(t, st.Converged, "proc %v", f.Name)
				assert.Zero(t, st.Changed+st.Pruned+st.Removed, "proc %v", f.Name)
			}
		})
	}
}

func TestExpectedOutputs(t *testing.T) {
	ctx := context.Background()

	for name, want := range map[string]string{
		"loop":     "55\n",
		"branches": "big-8",
		"pointers": "742e",
		"manyargs": "26",
		"order":    "6 1 1 ",
	} {
		tc := programs[name]

		p := irtest.Lower(t, tc.tree)
		require.NoError(t, Program(ctx, p, Options{Jobs: 1}))

		got, _ := irtest.Run(t, p, tc.input...)
		assert.Equal(t, want, got, name)
	}
}

func TestPrunesFalseBranch(t *testing.T) {
	ctx := context.Background()

	p := irtest.Lower(t, `
funcs:
  - name: main
    body:
      - if:
          cond: {bin: {op: "==", l: {int: 1}, r: {int: 1}}}
          then: [{toconsole: {char: a}}]
          else: [{toconsole: {char: b}}]
`)

	require.NoError(t, Program(ctx, p, Options{}))

	f := irtest.Proc(t, p, "main")

	var writes []ir.Operand

	for _, x := range irtest.Instrs(f) {
		switch x := x.(type) {
		case ir.Intrinsic:
			writes = append(writes, x.X)
		case ir.JumpIfFalse, ir.BinOp:
			t.Errorf("unexpected quad: %#v", x)
		}
	}

	assert.Equal(t, []ir.Operand{ir.Lit{Value: 'a', W: ir.Byte}}, writes)

	out, _ := irtest.Run(t, p)
	assert.Equal(t, "a", out)
}

func TestMaxRounds(t *testing.T) {
	ctx := context.Background()

	p := irtest.Lower(t, programs["branches"].tree)
	f := irtest.Proc(t, p, "main")

	st, err := Proc(ctx, p, f, Options{MaxRounds: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, st.Rounds)
	assert.NotZero(t, st.Changed)
	assert.False(t, st.Converged)

	st, err = Proc(ctx, p, f, Options{})
	require.NoError(t, err)
	assert.True(t, st.Converged)
}

func TestCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := irtest.Lower(t, programs["loop"].tree)

	err := Program(ctx, p, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}
