package lower_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/holeyc/compiler/ast"
	"github.com/slowlang/holeyc/compiler/format"
	"github.com/slowlang/holeyc/compiler/ir"
	"github.com/slowlang/holeyc/compiler/irtest"
	"github.com/slowlang/holeyc/compiler/lower"
	"github.com/slowlang/holeyc/compiler/tp"
)

func TestLowerListing(t *testing.T) {
	p := irtest.Lower(t, `
globals:
  - {name: g, type: int}
funcs:
  - name: add
    ret: int
    formals: [{name: a, type: int}, {name: b, type: int}]
    body:
      - return: {bin: {op: "+", l: {id: a}, r: {id: b}}}
  - name: main
    body:
      - decl: {name: x, type: int}
      - assign: {dst: {id: x}, src: {call: {func: add, args: [{int: 1}, {id: g}]}}}
      - while:
          cond: {bin: {op: ">", l: {id: x}, r: {int: 0}}}
          body:
            - postdec: {id: x}
      - toconsole: {str: "done"}
`)

	text := string(format.Program(nil, p))

	assert.Equal(t, `[BEGIN GLOBALS]
g (8 bytes)
str_0 "done"
[END GLOBALS]

[BEGIN add LOCALS]
a (formal, 8 bytes)
b (formal, 8 bytes)
tmp0 (temp, 8 bytes)
[END add LOCALS]
        enter add
        getarg 1 [a]
        getarg 2 [b]
        [tmp0] := [a] ADD64 [b]
        setret [tmp0]
        goto lbl_0
lbl_0: leave add

[BEGIN main LOCALS]
x (local, 8 bytes)
tmp0 (temp, 8 bytes)
tmp1 (temp, 1 bytes)
[END main LOCALS]
        enter main
        setarg 1 1
        setarg 2 [g]
        call add
        getret [tmp0]
        [x] := [tmp0]
lbl_2: nop
        [tmp1] := [x] GT8 0
        IFZ [tmp1] GOTO lbl_3
        [x] := [x] SUB64 1
        goto lbl_2
lbl_3: nop
        WRITE str_0
lbl_1: leave main
`, text)

	out, _ := irtest.Run(t, p)
	assert.Equal(t, "done", out)
}

func TestRefMarksEscaped(t *testing.T) {
	p := irtest.Lower(t, `
funcs:
  - name: main
    body:
      - decl: {name: x, type: int}
      - decl: {name: y, type: int}
      - decl: {name: p, type: intptr}
      - assign: {dst: {id: p}, src: {ref: x}}
      - assign: {dst: {index: {id: p, off: {int: 0}}}, src: {int: 9}}
      - assign: {dst: {id: y}, src: {deref: p}}
      - toconsole: {id: y}
`)
	f := irtest.Proc(t, p, "main")

	assert.True(t, p.Var(irtest.VarByName(t, p, f, "x")).Escaped)
	assert.False(t, p.Var(irtest.VarByName(t, p, f, "y")).Escaped)

	var mul, addrOf int

	for _, x := range irtest.Instrs(f) {
		switch x := x.(type) {
		case ir.AddrOf:
			addrOf++
		case ir.BinOp:
			if x.Op == ir.Mul {
				mul++
				assert.Equal(t, ir.Lit{Value: 8, W: ir.Quad}, x.R)
			}
		}
	}

	assert.Equal(t, 1, addrOf)
	assert.Equal(t, 1, mul)

	out, _ := irtest.Run(t, p)
	assert.Equal(t, "9", out)
}

func TestCharIndexNoScale(t *testing.T) {
	p := irtest.Lower(t, `
funcs:
  - name: main
    body:
      - decl: {name: s, type: charptr}
      - assign: {dst: {id: s}, src: {str: "abc"}}
      - toconsole: {index: {id: s, off: {int: 2}}}
      - toconsole: {deref: s}
`)
	f := irtest.Proc(t, p, "main")

	for _, x := range irtest.Instrs(f) {
		if b, ok := x.(ir.BinOp); ok {
			assert.NotEqual(t, ir.Mul, b.Op)
		}
	}

	out, _ := irtest.Run(t, p)
	assert.Equal(t, "ca", out)
}

func TestLowerUnresolved(t *testing.T) {
	x := &ast.Program{Decls: []ast.Decl{
		&ast.FuncDecl{
			Sym: &ast.Symbol{Name: "main", Kind: ast.Func, Type: tp.Func{Out: tp.Void{}}},
			Body: []ast.Stmt{
				&ast.ToConsole{X: &ast.Ident{Sym: &ast.Symbol{Name: "ghost", Kind: ast.Local, Type: tp.Int{}}}},
			},
		},
	}}

	_, err := lower.Program(context.Background(), x)
	require.Error(t, err)

	var ie *ir.InternalError
	assert.ErrorAs(t, err, &ie)
}

func TestLeftToRight(t *testing.T) {
	p := irtest.Lower(t, `
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
`)
	f := irtest.Proc(t, p, "main")
	x := irtest.VarByName(t, p, f, "x")

	copied, stored := -1, -1

	for i, q := range irtest.Instrs(f) {
		a, ok := q.(ir.Assign)
		if !ok {
			continue
		}

		if src, ok := a.Src.(ir.Sym); ok && src.ID == x {
			if _, ok := a.Dst.(ir.Tmp); ok && copied < 0 {
				copied = i
			}
		}

		if dst, ok := a.Dst.(ir.Sym); ok && dst.ID == x && a.Src == (ir.Lit{Value: 5, W: ir.Quad}) {
			stored = i
		}
	}

	require.True(t, copied >= 0, "x is copied before the assignment")
	assert.Less(t, copied, stored)

	out, _ := irtest.Run(t, p)
	assert.Equal(t, "6 1 1 ", out)
}

func TestSideEffectFreeOperandsNotCopied(t *testing.T) {
	p := irtest.Lower(t, `
funcs:
  - name: main
    body:
      - decl: {name: x, type: int}
      - decl: {name: y, type: int}
      - assign: {dst: {id: y}, src: {bin: {op: "*", l: {id: x}, r: {un: {op: "-", x: {id: x}}}}}}
`)
	f := irtest.Proc(t, p, "main")

	for _, q := range irtest.Instrs(f) {
		if a, ok := q.(ir.Assign); ok {
			_, tmp := a.Dst.(ir.Tmp)
			assert.False(t, tmp, "unexpected copy: %+v", a)
		}
	}
}

func TestCallResultWidth(t *testing.T) {
	p := irtest.Lower(t, `
funcs:
  - name: first
    ret: char
    body:
      - return: {char: "z"}
  - name: main
    body:
      - toconsole: {call: {func: first}}
`)
	f := irtest.Proc(t, p, "main")

	var rets int

	for _, q := range irtest.Instrs(f) {
		if r, ok := q.(ir.GetRet); ok {
			rets++
			assert.Equal(t, ir.Byte, r.Dst.Width())
		}
	}

	assert.Equal(t, 1, rets)

	out, _ := irtest.Run(t, p)
	assert.Equal(t, "z", out)
}
