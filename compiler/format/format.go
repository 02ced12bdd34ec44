package format

import (
	"fmt"
	"strconv"

	"github.com/slowlang/holeyc/compiler/ir"
)

// Program appends the 3AC listing of the whole program.
func Program(b []byte, p *ir.Program) []byte {
	b = append(b, "[BEGIN GLOBALS]\n"...)

	for _, id := range p.Globals {
		v := p.Var(id)
		b = fmt.Appendf(b, "%v (%v bytes)\n", v.Name, v.Width)
	}

	for i, s := range p.Strings() {
		b = fmt.Appendf(b, "str_%d %s\n", i, strconv.Quote(s))
	}

	b = append(b, "[END GLOBALS]\n"...)

	for _, f := range p.Procs {
		b = append(b, '\n')
		b = Proc(b, p, f)
	}

	return b
}

func Proc(b []byte, p *ir.Program, f *ir.Procedure) []byte {
	b = fmt.Appendf(b, "[BEGIN %v LOCALS]\n", f.Name)

	for _, l := range [][]ir.VarID{f.Formals, f.Locals, f.Temps} {
		for _, id := range l {
			v := p.Var(id)
			b = fmt.Appendf(b, "%v (%v, %v bytes)", v.Name, v.Kind, v.Width)

			if v.Loc != "" {
				b = fmt.Appendf(b, " %v", v.Loc)
			}

			b = append(b, '\n')
		}
	}

	b = fmt.Appendf(b, "[END %v LOCALS]\n", f.Name)

	for _, id := range f.Code {
		q := f.Quad(id)

		for _, l := range q.Labels {
			b = fmt.Appendf(b, "%v: ", LabelName(l))
		}

		if len(q.Labels) == 0 {
			b = append(b, "        "...)
		}

		b = append(b, Instr(p, q.Instr)...)
		b = append(b, '\n')
	}

	return b
}

func Instr(p *ir.Program, x ir.Instr) string {
	o := func(x ir.Operand) string { return Operand(p, x) }

	switch x := x.(type) {
	case ir.Assign:
		return fmt.Sprintf("%v := %v", o(x.Dst), o(x.Src))
	case ir.BinOp:
		return fmt.Sprintf("%v := %v %v%d %v", o(x.Dst), o(x.L), x.Op, 8*x.Dst.Width(), o(x.R))
	case ir.UnOp:
		return fmt.Sprintf("%v := %v%d %v", o(x.Dst), x.Op, 8*x.Dst.Width(), o(x.X))
	case ir.AddrOf:
		return fmt.Sprintf("%v := LOC %v", o(x.Dst), o(x.X))
	case ir.Jump:
		return fmt.Sprintf("goto %v", LabelName(x.Label))
	case ir.JumpIfFalse:
		return fmt.Sprintf("IFZ %v GOTO %v", o(x.Cond), LabelName(x.Label))
	case ir.Call:
		return fmt.Sprintf("call %v", p.Proc(x.Proc).Name)
	case ir.SetArg:
		return fmt.Sprintf("setarg %d %v", x.Index, o(x.X))
	case ir.GetArg:
		return fmt.Sprintf("getarg %d %v", x.Index, o(x.Dst))
	case ir.SetRet:
		return fmt.Sprintf("setret %v", o(x.X))
	case ir.GetRet:
		return fmt.Sprintf("getret %v", o(x.Dst))
	case ir.Enter:
		return fmt.Sprintf("enter %v", p.Proc(x.Proc).Name)
	case ir.Leave:
		return fmt.Sprintf("leave %v", p.Proc(x.Proc).Name)
	case ir.Intrinsic:
		if x.Kind == ir.Input {
			return fmt.Sprintf("READ %v", o(x.X))
		}

		return fmt.Sprintf("WRITE %v", o(x.X))
	case ir.Nop:
		return "nop"
	}

	return fmt.Sprintf("?%T", x)
}

func Operand(p *ir.Program, x ir.Operand) string {
	switch x := x.(type) {
	case ir.Lit:
		return strconv.FormatInt(x.Value, 10)
	case ir.Sym:
		return "[" + p.Var(x.ID).Name + "]"
	case ir.Tmp:
		return "[" + p.Var(x.ID).Name + "]"
	case ir.Str:
		return StringName(x.ID)
	case ir.Mem:
		return "@" + Operand(p, x.Addr)
	case nil:
		return "<nil>"
	}

	return fmt.Sprintf("?%T", x)
}

func LabelName(l ir.Label) string {
	return "lbl_" + strconv.Itoa(int(l))
}

func StringName(id int) string {
	return "str_" + strconv.Itoa(id)
}
