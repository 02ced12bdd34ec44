package lower

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/holeyc/compiler/ast"
	"github.com/slowlang/holeyc/compiler/format"
	"github.com/slowlang/holeyc/compiler/ir"
	"github.com/slowlang/holeyc/compiler/tp"
)

type (
	pkgContext struct {
		*ir.Program

		globals map[*ast.Symbol]ir.Sym
		procs   map[*ast.Symbol]int
	}

	funContext struct {
		*pkgContext

		f *ir.Procedure

		vars map[*ast.Symbol]ir.Sym
	}
)

// Program lowers the resolved tree into quads.
func Program(ctx context.Context, x *ast.Program) (_ *ir.Program, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "lower: program", "decls", len(x.Decls))
	defer tr.Finish("err", &err)
	defer ir.Recover(&err)

	p := &pkgContext{
		Program: ir.NewProgram(),
		globals: map[*ast.Symbol]ir.Sym{},
		procs:   map[*ast.Symbol]int{},
	}

	var funcs []*ast.FuncDecl

	for _, d := range x.Decls {
		switch d := d.(type) {
		case *ast.VarDecl:
			p.globals[d.Sym] = p.AddGlobal(d.Sym.Name, width(d.Sym.Type))
		case *ast.FuncDecl:
			ft, ok := d.Sym.Type.(tp.Func)
			if !ok {
				return nil, errors.New("func %v: not a function type: %T", d.Sym.Name, d.Sym.Type)
			}

			f := p.NewProc(d.Sym.Name, ft.Out == nil || tp.IsVoid(ft.Out))
			p.procs[d.Sym] = f.Index

			funcs = append(funcs, d)
		default:
			ir.Bug("unexpected declaration: %T", d)
		}
	}

	for _, d := range funcs {
		err = p.proc(ctx, d)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", d.Sym.Name)
		}
	}

	return p.Program, nil
}

func (p *pkgContext) proc(ctx context.Context, d *ast.FuncDecl) (err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "lower proc", "name", d.Sym.Name, "formals", len(d.Formals))
	defer tr.Finish("err", &err)

	c := &funContext{
		pkgContext: p,
		f:          p.Procs[p.procs[d.Sym]],
		vars:       map[*ast.Symbol]ir.Sym{},
	}

	p.Begin(c.f)

	for i, s := range d.Formals {
		v := p.NewLocal(c.f, s.Name, ir.Formal, width(s.Type))
		c.vars[s] = v

		c.f.Add(ir.GetArg{Index: i + 1, Dst: v})
	}

	c.stmts(d.Body)

	c.f.End()

	tr.Printw("lowered", "quads", len(c.f.Code), "locals", len(c.f.Locals), "temps", len(c.f.Temps))

	if tr.If("dump_ir") {
		tr.Printw("ir", "text", string(format.Proc(nil, p.Program, c.f)))
	}

	return nil
}

func (c *funContext) stmts(l []ast.Stmt) {
	for _, s := range l {
		c.stmt(s)
	}
}

func (c *funContext) stmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.VarDecl:
		if s.Sym == nil {
			ir.Bug("%v: declaration without symbol", c.f.Name)
		}

		c.vars[s.Sym] = c.NewLocal(c.f, s.Sym.Name, ir.Local, width(s.Sym.Type))
	case *ast.AssignStmt:
		c.expr(s.X)
	case *ast.CallStmt:
		c.call(s.X, false)
	case *ast.PostInc:
		x := c.lval(s.X)
		c.f.Add(ir.BinOp{Dst: x, Op: ir.Add, L: x, R: ir.Lit{Value: 1, W: ir.Quad}})
	case *ast.PostDec:
		x := c.lval(s.X)
		c.f.Add(ir.BinOp{Dst: x, Op: ir.Sub, L: x, R: ir.Lit{Value: 1, W: ir.Quad}})
	case *ast.FromConsole:
		x := c.lval(s.X)
		c.f.Add(ir.Intrinsic{Kind: ir.Input, Format: formatOf(ast.TypeOf(s.X)), X: x})
	case *ast.ToConsole:
		x := c.expr(s.X)
		c.f.Add(ir.Intrinsic{Kind: ir.Output, Format: formatOf(ast.TypeOf(s.X)), X: x})
	case *ast.If:
		end := c.NewLabel()

		cond := c.expr(s.Cond)
		c.f.Add(ir.JumpIfFalse{Cond: cond, Label: end})

		c.stmts(s.Then)

		c.f.Add(ir.Nop{}, end)
	case *ast.IfElse:
		els := c.NewLabel()
		after := c.NewLabel()

		cond := c.expr(s.Cond)
		c.f.Add(ir.JumpIfFalse{Cond: cond, Label: els})

		c.stmts(s.Then)

		c.f.Add(ir.Jump{Label: after})
		c.f.Add(ir.Nop{}, els)

		c.stmts(s.Else)

		c.f.Add(ir.Nop{}, after)
	case *ast.While:
		head := c.NewLabel()
		after := c.NewLabel()

		c.f.Add(ir.Nop{}, head)

		cond := c.expr(s.Cond)
		c.f.Add(ir.JumpIfFalse{Cond: cond, Label: after})

		c.stmts(s.Body)

		c.f.Add(ir.Jump{Label: head})
		c.f.Add(ir.Nop{}, after)
	case *ast.Return:
		if s.X != nil {
			x := c.expr(s.X)
			if x == nil {
				ir.Bug("%v: return of void value", c.f.Name)
			}

			c.f.Add(ir.SetRet{X: x})
		}

		c.f.Add(ir.Jump{Label: c.f.LeaveLabel})
	default:
		ir.Bug("%v: unexpected statement: %T", c.f.Name, s)
	}
}

// expr emits code computing e and returns the operand holding its value.
// Void calls yield nil.
func (c *funContext) expr(e ast.Expr) ir.Operand {
	switch e := e.(type) {
	case *ast.IntLit:
		return ir.Lit{Value: e.Value, W: ir.Quad}
	case *ast.CharLit:
		return ir.Lit{Value: int64(e.Value), W: ir.Byte}
	case *ast.True:
		return ir.Lit{Value: 1, W: ir.Byte}
	case *ast.False:
		return ir.Lit{Value: 0, W: ir.Byte}
	case *ast.NullPtr:
		return ir.Lit{Value: 0, W: ir.Quad}
	case *ast.StrLit:
		return c.String(e.Value)
	case *ast.Ident, *ast.Deref, *ast.Index:
		return c.lval(e.(ast.LVal))
	case *ast.Ref:
		x := c.ident(e.X)
		c.Var(x.ID).Escaped = true

		t := c.NewTemp(c.f, ir.Quad)
		c.f.Add(ir.AddrOf{Dst: t, X: x})

		return t
	case *ast.Assign:
		dst := c.lval(e.Dst)

		if m, ok := dst.(ir.Mem); ok && effects(e.Src) {
			m.Addr = c.settle(m.Addr)
			dst = m
		}

		src := c.expr(e.Src)

		if src == nil {
			ir.Bug("%v: assignment of void value", c.f.Name)
		}

		c.f.Add(ir.Assign{Dst: dst, Src: src})

		return dst
	case *ast.Call:
		return c.call(e, true)
	case *ast.Binary:
		op := binop(e.Op)

		l := c.expr(e.L)
		if effects(e.R) {
			l = c.settle(l)
		}

		r := c.expr(e.R)

		t := c.NewTemp(c.f, op.Width())
		c.f.Add(ir.BinOp{Dst: t, Op: op, L: l, R: r})

		return t
	case *ast.Unary:
		op := ir.Neg
		if e.Op == "!" {
			op = ir.Not
		}

		x := c.expr(e.X)

		t := c.NewTemp(c.f, op.Width())
		c.f.Add(ir.UnOp{Dst: t, Op: op, X: x})

		return t
	}

	ir.Bug("%v: unexpected expression: %T", c.f.Name, e)

	return nil
}

// lval returns the storage e designates.
// Pointer accesses become Mem operands so loads and stores go through the address.
func (c *funContext) lval(e ast.LVal) ir.Operand {
	switch e := e.(type) {
	case *ast.Ident:
		return c.ident(e)
	case *ast.Deref:
		p := c.ident(e.X)

		return ir.Mem{Addr: p, W: width(tp.Elem(e.X.Sym.Type))}
	case *ast.Index:
		elem := tp.Elem(e.X.Sym.Type)

		var p ir.Operand = c.ident(e.X)
		if effects(e.Off) {
			p = c.settle(p)
		}

		off := c.expr(e.Off)

		if size := elem.Size(); size != 1 {
			t := c.NewTemp(c.f, ir.Quad)
			c.f.Add(ir.BinOp{Dst: t, Op: ir.Mul, L: off, R: ir.Lit{Value: int64(size), W: ir.Quad}})

			off = t
		}

		addr := c.NewTemp(c.f, ir.Quad)
		c.f.Add(ir.BinOp{Dst: addr, Op: ir.Add, L: p, R: off})

		return ir.Mem{Addr: addr, W: width(elem)}
	}

	ir.Bug("%v: unexpected lvalue: %T", c.f.Name, e)

	return nil
}

func (c *funContext) ident(e *ast.Ident) ir.Sym {
	if e == nil || e.Sym == nil {
		ir.Bug("%v: unresolved identifier", c.f.Name)
	}

	if v, ok := c.vars[e.Sym]; ok {
		return v
	}

	if v, ok := c.globals[e.Sym]; ok {
		return v
	}

	ir.Bug("%v: unresolved symbol %v (%v)", c.f.Name, e.Sym.Name, e.Sym.Kind)

	return ir.Sym{}
}

func (c *funContext) call(e *ast.Call, result bool) ir.Operand {
	if e.Func == nil {
		ir.Bug("%v: call of unresolved function", c.f.Name)
	}

	proc, ok := c.procs[e.Func]
	if !ok {
		ir.Bug("%v: call of undeclared function %v", c.f.Name, e.Func.Name)
	}

	args := make([]ir.Operand, len(e.Args))

	for i, a := range e.Args {
		if i != 0 && effects(a) {
			for j := range args[:i] {
				args[j] = c.settle(args[j])
			}
		}

		args[i] = c.expr(a)
	}

	for i, a := range args {
		c.f.Add(ir.SetArg{Index: i + 1, X: a})
	}

	c.f.Add(ir.Call{Proc: proc})

	if c.Procs[proc].Void || !result {
		return nil
	}

	t := c.NewTemp(c.f, width(ast.TypeOf(e)))
	c.f.Add(ir.GetRet{Dst: t})

	return t
}

// settle copies a variable or memory operand into a temporary
// so later side effects do not change the value already evaluated.
func (c *funContext) settle(o ir.Operand) ir.Operand {
	switch o.(type) {
	case ir.Sym, ir.Mem:
	default:
		return o
	}

	t := c.NewTemp(c.f, o.Width())
	c.f.Add(ir.Assign{Dst: t, Src: o})

	return t
}

// effects reports whether evaluating e may write memory.
func effects(e ast.Expr) bool {
	switch e := e.(type) {
	case *ast.Assign, *ast.Call:
		return true
	case *ast.Binary:
		return effects(e.L) || effects(e.R)
	case *ast.Unary:
		return effects(e.X)
	case *ast.Index:
		return effects(e.Off)
	}

	return false
}

func binop(op string) ir.Op {
	switch op {
	case "+":
		return ir.Add
	case "-":
		return ir.Sub
	case "*":
		return ir.Mul
	case "/":
		return ir.Div
	case "&&":
		return ir.And
	case "||":
		return ir.Or
	case "==":
		return ir.Eq
	case "!=":
		return ir.Neq
	case "<":
		return ir.Lt
	case ">":
		return ir.Gt
	case "<=":
		return ir.Lte
	case ">=":
		return ir.Gte
	}

	ir.Bug("unexpected operator: %q", op)

	return 0
}

func width(t tp.Type) ir.Width {
	if t == nil {
		ir.Bug("untyped value")
	}

	if t.Size() == 1 {
		return ir.Byte
	}

	return ir.Quad
}

func formatOf(t tp.Type) ir.Format {
	switch t := t.(type) {
	case tp.Char:
		return ir.FmtByte
	case tp.Ptr:
		if _, ok := t.X.(tp.Char); ok {
			return ir.FmtString
		}
	}

	return ir.FmtInt
}
