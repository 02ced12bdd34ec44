package ast

import (
	"gopkg.in/yaml.v3"
	"tlog.app/go/errors"

	"github.com/slowlang/holeyc/compiler/tp"
)

// Tree file is a YAML dump of an already resolved program.
//
//	globals:
//	  - {name: g, type: int}
//	funcs:
//	  - name: main
//	    ret: int
//	    formals: [{name: a, type: int}]
//	    body:
//	      - decl: {name: x, type: int}
//	      - assign: {dst: {id: x}, src: {bin: {op: "+", l: {id: a}, r: {int: 1}}}}
//	      - toconsole: {id: x}
//	      - return: {id: x}
//
// Bare return is written as `return: {}`.
// Names are bound to the enclosing function's formals and locals first, then to globals.

type (
	yFile struct {
		Globals []yVar  `yaml:"globals"`
		Funcs   []yFunc `yaml:"funcs"`
	}

	yVar struct {
		Name string `yaml:"name"`
		Type string `yaml:"type"`
	}

	yFunc struct {
		Name    string  `yaml:"name"`
		Ret     string  `yaml:"ret"`
		Formals []yVar  `yaml:"formals"`
		Body    []yStmt `yaml:"body"`
	}

	yStmt struct {
		Decl        *yVar    `yaml:"decl"`
		Assign      *yAssign `yaml:"assign"`
		Call        *yCall   `yaml:"call"`
		PostInc     *yExpr   `yaml:"postinc"`
		PostDec     *yExpr   `yaml:"postdec"`
		FromConsole *yExpr   `yaml:"fromconsole"`
		ToConsole   *yExpr   `yaml:"toconsole"`
		If          *yIf     `yaml:"if"`
		While       *yWhile  `yaml:"while"`
		Return      *yExpr   `yaml:"return"`
	}

	yIf struct {
		Cond yExpr   `yaml:"cond"`
		Then []yStmt `yaml:"then"`
		Else []yStmt `yaml:"else"`
	}

	yWhile struct {
		Cond yExpr   `yaml:"cond"`
		Body []yStmt `yaml:"body"`
	}

	yExpr struct {
		Int    *int64   `yaml:"int"`
		Char   *string  `yaml:"char"`
		Str    *string  `yaml:"str"`
		Bool   *bool    `yaml:"bool"`
		Null   bool     `yaml:"nullptr"`
		ID     string   `yaml:"id"`
		Deref  string   `yaml:"deref"`
		Ref    string   `yaml:"ref"`
		Index  *yIndex  `yaml:"index"`
		Bin    *yBin    `yaml:"bin"`
		Un     *yUn     `yaml:"un"`
		Assign *yAssign `yaml:"assign"`
		Call   *yCall   `yaml:"call"`
	}

	yIndex struct {
		ID  string `yaml:"id"`
		Off yExpr  `yaml:"off"`
	}

	yBin struct {
		Op string `yaml:"op"`
		L  yExpr  `yaml:"l"`
		R  yExpr  `yaml:"r"`
	}

	yUn struct {
		Op string `yaml:"op"`
		X  yExpr  `yaml:"x"`
	}

	yAssign struct {
		Dst yExpr `yaml:"dst"`
		Src yExpr `yaml:"src"`
	}

	yCall struct {
		Func string  `yaml:"func"`
		Args []yExpr `yaml:"args"`
	}

	binder struct {
		globals map[string]*Symbol
		funcs   map[string]*Symbol
		scope   map[string]*Symbol
	}
)

func Decode(data []byte) (_ *Program, err error) {
	var f yFile

	err = yaml.Unmarshal(data, &f)
	if err != nil {
		return nil, errors.Wrap(err, "unmarshal")
	}

	b := &binder{
		globals: map[string]*Symbol{},
		funcs:   map[string]*Symbol{},
	}

	p := &Program{}

	for _, g := range f.Globals {
		s, err := b.declare(b.globals, g, Global)
		if err != nil {
			return nil, errors.Wrap(err, "global %v", g.Name)
		}

		p.Decls = append(p.Decls, &VarDecl{Sym: s})
	}

	decls := make([]*FuncDecl, len(f.Funcs))

	// all signatures first so calls may refer forward
	for i, yf := range f.Funcs {
		ret, ok := tp.Parse(yf.Ret)
		if yf.Ret == "" {
			ret, ok = tp.Void{}, true
		}
		if !ok {
			return nil, errors.New("func %v: bad return type %q", yf.Name, yf.Ret)
		}

		ft := tp.Func{Out: ret}
		d := &FuncDecl{}

		for _, a := range yf.Formals {
			t, ok := tp.Parse(a.Type)
			if !ok {
				return nil, errors.New("func %v: formal %v: bad type %q", yf.Name, a.Name, a.Type)
			}

			ft.In = append(ft.In, t)
			d.Formals = append(d.Formals, &Symbol{Name: a.Name, Kind: Formal, Type: t})
		}

		if _, ok := b.funcs[yf.Name]; ok {
			return nil, errors.New("func %v redefined", yf.Name)
		}

		d.Sym = &Symbol{Name: yf.Name, Kind: Func, Type: ft}
		b.funcs[yf.Name] = d.Sym
		decls[i] = d
	}

	for i, yf := range f.Funcs {
		d := decls[i]

		b.scope = map[string]*Symbol{}

		for _, s := range d.Formals {
			b.scope[s.Name] = s
		}

		d.Body, err = b.stmts(yf.Body)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", yf.Name)
		}

		p.Decls = append(p.Decls, d)
	}

	return p, nil
}

func (b *binder) declare(scope map[string]*Symbol, v yVar, kind SymKind) (*Symbol, error) {
	t, ok := tp.Parse(v.Type)
	if !ok || tp.IsVoid(t) {
		return nil, errors.New("bad type %q", v.Type)
	}

	if _, ok := scope[v.Name]; ok {
		return nil, errors.New("redeclared")
	}

	s := &Symbol{Name: v.Name, Kind: kind, Type: t}
	scope[v.Name] = s

	return s, nil
}

func (b *binder) lookup(name string) (*Ident, error) {
	if s, ok := b.scope[name]; ok {
		return &Ident{Sym: s}, nil
	}

	if s, ok := b.globals[name]; ok {
		return &Ident{Sym: s}, nil
	}

	return nil, errors.New("undefined: %v", name)
}

func (b *binder) stmts(l []yStmt) (r []Stmt, err error) {
	for i, y := range l {
		s, err := b.stmt(y)
		if err != nil {
			return nil, errors.Wrap(err, "stmt %d", i)
		}

		r = append(r, s)
	}

	return r, nil
}

func (b *binder) stmt(y yStmt) (Stmt, error) {
	switch {
	case y.Decl != nil:
		s, err := b.declare(b.scope, *y.Decl, Local)
		if err != nil {
			return nil, errors.Wrap(err, "local %v", y.Decl.Name)
		}

		return &VarDecl{Sym: s}, nil
	case y.Assign != nil:
		x, err := b.assign(y.Assign)
		if err != nil {
			return nil, err
		}

		return &AssignStmt{X: x}, nil
	case y.Call != nil:
		x, err := b.call(y.Call)
		if err != nil {
			return nil, err
		}

		return &CallStmt{X: x}, nil
	case y.PostInc != nil:
		x, err := b.lval(*y.PostInc)
		if err != nil {
			return nil, errors.Wrap(err, "postinc")
		}

		return &PostInc{X: x}, nil
	case y.PostDec != nil:
		x, err := b.lval(*y.PostDec)
		if err != nil {
			return nil, errors.Wrap(err, "postdec")
		}

		return &PostDec{X: x}, nil
	case y.FromConsole != nil:
		x, err := b.lval(*y.FromConsole)
		if err != nil {
			return nil, errors.Wrap(err, "fromconsole")
		}

		return &FromConsole{X: x}, nil
	case y.ToConsole != nil:
		x, err := b.expr(*y.ToConsole)
		if err != nil {
			return nil, errors.Wrap(err, "toconsole")
		}

		return &ToConsole{X: x}, nil
	case y.If != nil:
		cond, err := b.expr(y.If.Cond)
		if err != nil {
			return nil, errors.Wrap(err, "if cond")
		}

		then, err := b.stmts(y.If.Then)
		if err != nil {
			return nil, errors.Wrap(err, "then")
		}

		if y.If.Else == nil {
			return &If{Cond: cond, Then: then}, nil
		}

		els, err := b.stmts(y.If.Else)
		if err != nil {
			return nil, errors.Wrap(err, "else")
		}

		return &IfElse{Cond: cond, Then: then, Else: els}, nil
	case y.While != nil:
		cond, err := b.expr(y.While.Cond)
		if err != nil {
			return nil, errors.Wrap(err, "while cond")
		}

		body, err := b.stmts(y.While.Body)
		if err != nil {
			return nil, errors.Wrap(err, "while body")
		}

		return &While{Cond: cond, Body: body}, nil
	case y.Return != nil:
		if y.Return.empty() {
			return &Return{}, nil
		}

		x, err := b.expr(*y.Return)
		if err != nil {
			return nil, errors.Wrap(err, "return")
		}

		return &Return{X: x}, nil
	}

	return nil, errors.New("empty statement")
}

func (b *binder) lval(y yExpr) (LVal, error) {
	x, err := b.expr(y)
	if err != nil {
		return nil, err
	}

	l, ok := x.(LVal)
	if !ok {
		return nil, errors.New("not an lvalue: %T", x)
	}

	return l, nil
}

func (b *binder) assign(y *yAssign) (*Assign, error) {
	dst, err := b.lval(y.Dst)
	if err != nil {
		return nil, errors.Wrap(err, "assign dst")
	}

	src, err := b.expr(y.Src)
	if err != nil {
		return nil, errors.Wrap(err, "assign src")
	}

	return &Assign{Dst: dst, Src: src}, nil
}

func (b *binder) call(y *yCall) (*Call, error) {
	f, ok := b.funcs[y.Func]
	if !ok {
		return nil, errors.New("undefined func: %v", y.Func)
	}

	c := &Call{Func: f}

	for i, a := range y.Args {
		x, err := b.expr(a)
		if err != nil {
			return nil, errors.Wrap(err, "arg %d", i+1)
		}

		c.Args = append(c.Args, x)
	}

	return c, nil
}

func (b *binder) expr(y yExpr) (Expr, error) {
	switch {
	case y.Int != nil:
		return &IntLit{Value: *y.Int}, nil
	case y.Char != nil:
		if len(*y.Char) != 1 {
			return nil, errors.New("bad char literal: %q", *y.Char)
		}

		return &CharLit{Value: (*y.Char)[0]}, nil
	case y.Str != nil:
		return &StrLit{Value: *y.Str}, nil
	case y.Bool != nil:
		if *y.Bool {
			return &True{}, nil
		}

		return &False{}, nil
	case y.Null:
		return &NullPtr{}, nil
	case y.ID != "":
		return b.lookup(y.ID)
	case y.Deref != "":
		id, err := b.lookup(y.Deref)
		if err != nil {
			return nil, err
		}

		return &Deref{X: id}, nil
	case y.Ref != "":
		id, err := b.lookup(y.Ref)
		if err != nil {
			return nil, err
		}

		return &Ref{X: id}, nil
	case y.Index != nil:
		id, err := b.lookup(y.Index.ID)
		if err != nil {
			return nil, err
		}

		off, err := b.expr(y.Index.Off)
		if err != nil {
			return nil, errors.Wrap(err, "index")
		}

		return &Index{X: id, Off: off}, nil
	case y.Bin != nil:
		l, err := b.expr(y.Bin.L)
		if err != nil {
			return nil, errors.Wrap(err, "%v lhs", y.Bin.Op)
		}

		r, err := b.expr(y.Bin.R)
		if err != nil {
			return nil, errors.Wrap(err, "%v rhs", y.Bin.Op)
		}

		switch y.Bin.Op {
		case "+", "-", "*", "/", "&&", "||", "==", "!=", "<", ">", "<=", ">=":
		default:
			return nil, errors.New("unsupported binary op: %q", y.Bin.Op)
		}

		return &Binary{Op: y.Bin.Op, L: l, R: r}, nil
	case y.Un != nil:
		x, err := b.expr(y.Un.X)
		if err != nil {
			return nil, errors.Wrap(err, "%v", y.Un.Op)
		}

		if y.Un.Op != "-" && y.Un.Op != "!" {
			return nil, errors.New("unsupported unary op: %q", y.Un.Op)
		}

		return &Unary{Op: y.Un.Op, X: x}, nil
	case y.Assign != nil:
		return b.assign(y.Assign)
	case y.Call != nil:
		return b.call(y.Call)
	}

	return nil, errors.New("empty expression")
}

func (y *yExpr) empty() bool {
	return *y == yExpr{}
}
