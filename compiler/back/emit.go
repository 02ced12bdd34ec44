package back

import (
	"context"
	"fmt"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/holeyc/compiler/asm/amd64"
	"github.com/slowlang/holeyc/compiler/format"
	"github.com/slowlang/holeyc/compiler/ir"
)

type (
	pkgContext struct {
		*ir.Program
	}

	funContext struct {
		*pkgContext

		f *ir.Procedure

		// callee of each SetArg
		argOf map[ir.QuadID]int
	}
)

// work registers
const (
	val  = amd64.RAX
	rval = amd64.RCX
	addr = amd64.R11
)

// Emit appends x86-64 assembly of p to b.
// Layout must have been run on p.
func Emit(ctx context.Context, b []byte, p *ir.Program) (_ []byte, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "emit", "procs", len(p.Procs))
	defer tr.Finish("err", &err)
	defer ir.Recover(&err)

	c := &pkgContext{Program: p}

	b = c.data(b)

	b = append(b, "\n\t.text\n"...)

	for _, f := range p.Procs {
		b = append(b, '\n')

		b, err = c.proc(ctx, b, f)
		if err != nil {
			return nil, errors.Wrap(err, "proc %v", f.Name)
		}
	}

	return b, nil
}

func (c *pkgContext) data(b []byte) []byte {
	b = append(b, "\t.data\n"...)

	for _, id := range c.Globals {
		v := c.Var(id)

		b = fmt.Appendf(b, "\t.align 8\n%s:\n\t.quad 0\n", v.Loc)
	}

	for i, s := range c.Strings() {
		b = fmt.Appendf(b, "%s:\n\t.asciz \"%s\"\n", format.StringName(i), escape(s))
	}

	return b
}

func (c *pkgContext) proc(ctx context.Context, b []byte, f *ir.Procedure) (_ []byte, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "emit proc", "name", f.Name, "quads", len(f.Code), "frame", f.FrameSize)
	defer tr.Finish("err", &err)

	fc := &funContext{
		pkgContext: c,
		f:          f,
		argOf:      map[ir.QuadID]int{},
	}

	callee := -1

	for i := len(f.Code) - 1; i >= 0; i-- {
		id := f.Code[i]

		switch x := f.Instr(id).(type) {
		case ir.Call:
			callee = x.Proc
		case ir.SetArg:
			if callee < 0 {
				ir.Bug("%v: setarg %d without call", f.Name, x.Index)
			}

			fc.argOf[id] = callee
		}
	}

	st := len(b)

	for _, id := range f.Code {
		q := f.Quad(id)

		for _, l := range q.Labels {
			b = fmt.Appendf(b, "%s:\n", format.LabelName(l))
		}

		b = fc.instr(b, id, q.Instr)
	}

	if tr.If("dump_asm") {
		tr.Printw("asm", "text", string(b[st:]))
	}

	return b, nil
}

func (c *funContext) instr(b []byte, id ir.QuadID, x ir.Instr) []byte {
	switch x := x.(type) {
	case ir.Enter:
		name := ProcName(c.f.Name)

		if name == "main" {
			b = fmt.Appendf(b, "\t.globl %s\n", name)
		}

		b = fmt.Appendf(b, "%s:\n", name)
		b = fmt.Appendf(b, "\tpushq %%rbp\n\tmovq %%rsp, %%rbp\n\tsubq $%d, %%rsp\n", c.f.FrameSize)
	case ir.Leave:
		b = fmt.Appendf(b, "\taddq $%d, %%rsp\n\tpopq %%rbp\n\tretq\n", c.f.FrameSize)
	case ir.Nop:
	case ir.Assign:
		b = c.load(b, val, x.Src)
		b = c.store(b, x.Dst, val)
	case ir.BinOp:
		b = c.load(b, rval, x.R)
		b = c.load(b, val, x.L)
		b = c.binop(b, x.Op)
		b = c.store(b, x.Dst, val)
	case ir.UnOp:
		b = c.load(b, val, x.X)

		switch x.Op {
		case ir.Neg:
			b = fmt.Appendf(b, "\tnegq %v\n", val)
		case ir.Not:
			b = fmt.Appendf(b, "\tcmpq $0, %v\n\tsete %s\n\tmovzbq %s, %v\n", val, val.Byte(), val.Byte(), val)
		default:
			ir.Bug("%v: unexpected unary operator %v", c.f.Name, x.Op)
		}

		b = c.store(b, x.Dst, val)
	case ir.AddrOf:
		b = fmt.Appendf(b, "\tleaq %s, %v\n", c.ref(x.X), val)
		b = c.store(b, x.Dst, val)
	case ir.Jump:
		b = fmt.Appendf(b, "\tjmp %s\n", format.LabelName(x.Label))
	case ir.JumpIfFalse:
		b = c.load(b, val, x.Cond)
		b = fmt.Appendf(b, "\tcmpq $0, %v\n\tje %s\n", val, format.LabelName(x.Label))
	case ir.SetArg:
		b = c.setarg(b, id, x)
	case ir.Call:
		callee := c.Proc(x.Proc)

		b = fmt.Appendf(b, "\tcallq %s\n", ProcName(callee.Name))

		if n := stackArgs(len(callee.Formals)); n != 0 {
			b = fmt.Appendf(b, "\taddq $%d, %%rsp\n", SlotSize*(n+n%2))
		}
	case ir.GetArg:
		n := len(c.f.Formals)

		if r, ok := amd64.Arg(x.Index); ok {
			b = fmt.Appendf(b, "\tmovq %v, %v\n", r, val)
		} else {
			b = fmt.Appendf(b, "\tmovq %d(%%rbp), %v\n", frameReserve+SlotSize*(n-x.Index), val)
		}

		b = c.store(b, x.Dst, val)
	case ir.SetRet:
		b = c.load(b, val, x.X)
	case ir.GetRet:
		b = c.store(b, x.Dst, val)
	case ir.Intrinsic:
		b = c.intrinsic(b, x)
	default:
		ir.Bug("%v: unexpected instruction %T", c.f.Name, x)
	}

	return b
}

func (c *funContext) binop(b []byte, op ir.Op) []byte {
	switch op {
	case ir.Add:
		return fmt.Appendf(b, "\taddq %v, %v\n", rval, val)
	case ir.Sub:
		return fmt.Appendf(b, "\tsubq %v, %v\n", rval, val)
	case ir.Mul:
		return fmt.Appendf(b, "\timulq %v, %v\n", rval, val)
	case ir.Div:
		return fmt.Appendf(b, "\tcqto\n\tidivq %v\n", rval)
	case ir.And, ir.Or:
		ins := "andb"
		if op == ir.Or {
			ins = "orb"
		}

		b = fmt.Appendf(b, "\tcmpq $0, %v\n\tsetne %s\n", val, val.Byte())
		b = fmt.Appendf(b, "\tcmpq $0, %v\n\tsetne %s\n", rval, rval.Byte())
		b = fmt.Appendf(b, "\t%s %s, %s\n\tmovzbq %s, %v\n", ins, rval.Byte(), val.Byte(), val.Byte(), val)

		return b
	}

	cond, ok := condOf(op)
	if !ok {
		ir.Bug("%v: unexpected binary operator %v", c.f.Name, op)
	}

	return fmt.Appendf(b, "\tcmpq %v, %v\n\tset%v %s\n\tmovzbq %s, %v\n", rval, val, cond, val.Byte(), val.Byte(), val)
}

func (c *funContext) setarg(b []byte, id ir.QuadID, x ir.SetArg) []byte {
	b = c.load(b, val, x.X)

	if r, ok := amd64.Arg(x.Index); ok {
		return fmt.Appendf(b, "\tmovq %v, %v\n", val, r)
	}

	callee := c.Proc(c.argOf[id])
	n := stackArgs(len(callee.Formals))

	if x.Index == len(amd64.Args)+1 && n%2 != 0 {
		b = fmt.Appendf(b, "\tsubq $%d, %%rsp\n", SlotSize)
	}

	return fmt.Appendf(b, "\tpushq %v\n", val)
}

func (c *funContext) intrinsic(b []byte, x ir.Intrinsic) []byte {
	if x.Kind == ir.Output {
		b = c.load(b, val, x.X)
		b = fmt.Appendf(b, "\tmovq %v, %v\n", val, amd64.RDI)

		switch x.Format {
		case ir.FmtByte:
			return append(b, "\tcallq printByte\n"...)
		case ir.FmtString:
			return append(b, "\tcallq printString\n"...)
		default:
			return append(b, "\tcallq printInt\n"...)
		}
	}

	if x.Format == ir.FmtByte {
		b = append(b, "\tcallq getByte\n"...)
	} else {
		b = append(b, "\tcallq getInt\n"...)
	}

	return c.store(b, x.X, val)
}

// load puts the value of o into r.
// Mem operands go through the address register.
func (c *funContext) load(b []byte, r amd64.Reg, o ir.Operand) []byte {
	switch o := o.(type) {
	case ir.Lit:
		return fmt.Appendf(b, "\tmovq $%d, %v\n", o.Value, r)
	case ir.Str:
		return fmt.Appendf(b, "\tleaq %s(%%rip), %v\n", format.StringName(o.ID), r)
	case ir.Sym, ir.Tmp:
		if o.Width() == ir.Byte {
			return fmt.Appendf(b, "\tmovzbq %s, %v\n", c.ref(o), r)
		}

		return fmt.Appendf(b, "\tmovq %s, %v\n", c.ref(o), r)
	case ir.Mem:
		b = c.load(b, addr, o.Addr)

		if o.W == ir.Byte {
			return fmt.Appendf(b, "\tmovzbq (%v), %v\n", addr, r)
		}

		return fmt.Appendf(b, "\tmovq (%v), %v\n", addr, r)
	}

	ir.Bug("%v: load of %T", c.f.Name, o)

	return b
}

// store writes r into o.
func (c *funContext) store(b []byte, o ir.Operand, r amd64.Reg) []byte {
	switch o := o.(type) {
	case ir.Sym, ir.Tmp:
		w := int(o.Width())

		return fmt.Appendf(b, "\tmov%s %s, %s\n", amd64.Suffix(w), r.Sized(w), c.ref(o))
	case ir.Mem:
		w := int(o.W)
		b = c.load(b, addr, o.Addr)

		return fmt.Appendf(b, "\tmov%s %s, (%v)\n", amd64.Suffix(w), r.Sized(w), addr)
	}

	ir.Bug("%v: store into %v", c.f.Name, format.Operand(c.Program, o))

	return b
}

// ref returns the memory reference of a variable.
func (c *funContext) ref(o ir.Operand) string {
	id, ok := ir.VarOf(o)
	if !ok {
		ir.Bug("%v: not a variable: %T", c.f.Name, o)
	}

	v := c.Var(id)

	if v.Loc == "" {
		ir.Bug("%v: variable %v has no location", c.f.Name, v.Name)
	}

	if v.Kind == ir.Global {
		return v.Loc + "(%rip)"
	}

	return v.Loc
}

func condOf(op ir.Op) (amd64.Cond, bool) {
	switch op {
	case ir.Eq:
		return amd64.E, true
	case ir.Neq:
		return amd64.NE, true
	case ir.Lt:
		return amd64.L, true
	case ir.Gt:
		return amd64.G, true
	case ir.Lte:
		return amd64.LE, true
	case ir.Gte:
		return amd64.GE, true
	}

	return 0, false
}

func stackArgs(n int) int {
	if n <= len(amd64.Args) {
		return 0
	}

	return n - len(amd64.Args)
}

// escape quotes s for .asciz using octal escapes.
func escape(s string) string {
	b := make([]byte, 0, len(s))

	for i := 0; i < len(s); i++ {
		ch := s[i]

		if ch < 0x20 || ch >= 0x7f || ch == '"' || ch == '\\' {
			b = fmt.Appendf(b, "\\%03o", ch)
			continue
		}

		b = append(b, ch)
	}

	return string(b)
}
