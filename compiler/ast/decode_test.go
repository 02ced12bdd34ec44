package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/holeyc/compiler/tp"
)

func TestDecode(t *testing.T) {
	p, err := Decode([]byte(`
globals:
  - {name: g, type: int}
funcs:
  - name: main
    body:
      - decl: {name: x, type: char}
      - assign: {dst: {id: x}, src: {char: q}}
      - call: {func: later, args: [{id: g}]}
      - if:
          cond: {bool: true}
          then: [{return: {}}]
  - name: later
    ret: int
    formals: [{name: g, type: int}]
    body:
      - return: {id: g}
`))
	require.NoError(t, err)
	require.Len(t, p.Decls, 3)

	gd := p.Decls[0].(*VarDecl)
	assert.Equal(t, Global, gd.Sym.Kind)

	main := p.Decls[1].(*FuncDecl)
	later := p.Decls[2].(*FuncDecl)

	assert.Equal(t, tp.Func{Out: tp.Void{}}, main.Sym.Type)
	assert.Equal(t, tp.Func{In: []tp.Type{tp.Int{}}, Out: tp.Int{}}, later.Sym.Type)

	require.Len(t, main.Body, 4)

	x := main.Body[0].(*VarDecl).Sym

	as := main.Body[1].(*AssignStmt)
	assert.Same(t, x, as.X.Dst.(*Ident).Sym)
	assert.Equal(t, &CharLit{Value: 'q'}, as.X.Src)

	call := main.Body[2].(*CallStmt)
	assert.Same(t, later.Sym, call.X.Func)
	assert.Same(t, gd.Sym, call.X.Args[0].(*Ident).Sym)

	iff := main.Body[3].(*If)
	assert.Equal(t, []Stmt{&Return{}}, iff.Then)

	// formal shadows the global
	ret := later.Body[0].(*Return)
	assert.Same(t, later.Formals[0], ret.X.(*Ident).Sym)
}

func TestDecodeErrors(t *testing.T) {
	for name, tree := range map[string]string{
		"undefined":  "funcs: [{name: main, body: [{toconsole: {id: nope}}]}]",
		"bad type":   "globals: [{name: g, type: float}]",
		"redeclared": "globals: [{name: g, type: int}, {name: g, type: int}]",
		"not lvalue": "funcs: [{name: main, body: [{postinc: {int: 1}}]}]",
		"bad op":     "funcs: [{name: main, body: [{toconsole: {bin: {op: '%', l: {int: 1}, r: {int: 2}}}}]}]",
		"no func":    "funcs: [{name: main, body: [{call: {func: nope}}]}]",
		"empty stmt": "funcs: [{name: main, body: [{}]}]",
		"yaml":       "funcs: [",
	} {
		_, err := Decode([]byte(tree))
		assert.Error(t, err, name)
	}
}

func TestTypeOf(t *testing.T) {
	s := &Symbol{Name: "s", Kind: Local, Type: tp.Ptr{X: tp.Char{}}}

	assert.Equal(t, tp.Char{}, TypeOf(&Index{X: &Ident{Sym: s}, Off: &IntLit{}}))
	assert.Equal(t, tp.Char{}, TypeOf(&Deref{X: &Ident{Sym: s}}))
	assert.Equal(t, tp.Bool{}, TypeOf(&Binary{Op: "<"}))
	assert.Equal(t, tp.Int{}, TypeOf(&Unary{Op: "-"}))
	assert.Equal(t, tp.Ptr{X: tp.Char{}}, TypeOf(&StrLit{Value: "x"}))
}
