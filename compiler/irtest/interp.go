// Package irtest runs three address code in tests.
package irtest

import (
	"context"
	"encoding/binary"
	"strconv"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/holeyc/compiler/ir"
)

type (
	// Machine interprets a program with byte addressed memory.
	// Variables live in memory so pointers to them work.
	Machine struct {
		P *ir.Program

		Input  []int64
		Output []byte

		// MaxSteps bounds executed quads. 0 means DefaultSteps.
		MaxSteps int

		mem   []byte
		addr  map[ir.VarID]int64 // globals
		strs  []int64
		steps int

		labels map[*ir.Procedure]map[ir.Label]int
	}

	frame struct {
		f    *ir.Procedure
		addr map[ir.VarID]int64

		args []int64
		ret  int64

		out    []int64 // pending call arguments
		result int64
	}
)

const DefaultSteps = 1_000_000

var (
	ErrDivZero = errors.New("division by zero")
	ErrSteps   = errors.New("step limit exceeded")
	ErrInput   = errors.New("input exhausted")
	ErrNilPtr  = errors.New("nil pointer dereference")
)

func NewMachine(p *ir.Program, input ...int64) *Machine {
	m := &Machine{
		P:      p,
		Input:  input,
		addr:   map[ir.VarID]int64{},
		labels: map[*ir.Procedure]map[ir.Label]int{},
	}

	m.mem = make([]byte, 8) // null page

	for _, id := range p.Globals {
		m.addr[id] = m.alloc(8)
	}

	for _, s := range p.Strings() {
		a := m.alloc(len(s) + 1)
		copy(m.mem[a:], s)

		m.strs = append(m.strs, a)
	}

	return m
}

// Run executes procedure main and returns its result.
func (m *Machine) Run(ctx context.Context) (ret int64, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "interpret")
	defer tr.Finish("err", &err)
	defer ir.Recover(&err)

	for _, f := range m.P.Procs {
		if f.Name == "main" {
			ret, err = m.call(f, nil)

			tr.Printw("done", "steps", m.steps, "ret", ret, "output", len(m.Output))

			return ret, err
		}
	}

	return 0, errors.New("no main procedure")
}

func (m *Machine) call(f *ir.Procedure, args []int64) (int64, error) {
	fr := &frame{
		f:    f,
		addr: map[ir.VarID]int64{},
		args: args,
	}

	sp := len(m.mem)
	defer func() { m.mem = m.mem[:sp] }()

	for _, l := range [][]ir.VarID{f.Formals, f.Locals, f.Temps} {
		for _, id := range l {
			fr.addr[id] = m.alloc(8)
		}
	}

	labels := m.labelsOf(f)

	for pc := 0; pc < len(f.Code); {
		m.steps++

		if m.steps > m.maxSteps() {
			return 0, ErrSteps
		}

		x := f.Instr(f.Code[pc])
		pc++

		switch x := x.(type) {
		case ir.Enter, ir.Nop:
		case ir.Leave:
			return fr.ret, nil
		case ir.Assign:
			v, err := m.read(fr, x.Src)
			if err != nil {
				return 0, err
			}

			err = m.write(fr, x.Dst, v)
			if err != nil {
				return 0, err
			}
		case ir.BinOp:
			l, err := m.read(fr, x.L)
			if err != nil {
				return 0, err
			}

			r, err := m.read(fr, x.R)
			if err != nil {
				return 0, err
			}

			v, err := binop(x.Op, l, r)
			if err != nil {
				return 0, err
			}

			err = m.write(fr, x.Dst, v)
			if err != nil {
				return 0, err
			}
		case ir.UnOp:
			v, err := m.read(fr, x.X)
			if err != nil {
				return 0, err
			}

			switch x.Op {
			case ir.Neg:
				v = -v
			case ir.Not:
				v = b2i(v == 0)
			default:
				ir.Bug("unexpected unary operator %v", x.Op)
			}

			err = m.write(fr, x.Dst, v)
			if err != nil {
				return 0, err
			}
		case ir.AddrOf:
			err := m.write(fr, x.Dst, m.varAddr(fr, x.X))
			if err != nil {
				return 0, err
			}
		case ir.Jump:
			pc = labels[x.Label]
		case ir.JumpIfFalse:
			v, err := m.read(fr, x.Cond)
			if err != nil {
				return 0, err
			}

			if v == 0 {
				pc = labels[x.Label]
			}
		case ir.SetArg:
			v, err := m.read(fr, x.X)
			if err != nil {
				return 0, err
			}

			for len(fr.out) < x.Index {
				fr.out = append(fr.out, 0)
			}

			fr.out[x.Index-1] = v
		case ir.Call:
			args := fr.out
			fr.out = nil

			r, err := m.call(m.P.Proc(x.Proc), args)
			if err != nil {
				return 0, err
			}

			fr.result = r
		case ir.GetArg:
			var v int64
			if x.Index <= len(fr.args) {
				v = fr.args[x.Index-1]
			}

			err := m.write(fr, x.Dst, v)
			if err != nil {
				return 0, err
			}
		case ir.SetRet:
			v, err := m.read(fr, x.X)
			if err != nil {
				return 0, err
			}

			fr.ret = v
		case ir.GetRet:
			err := m.write(fr, x.Dst, fr.result)
			if err != nil {
				return 0, err
			}
		case ir.Intrinsic:
			err := m.intrinsic(fr, x)
			if err != nil {
				return 0, err
			}
		default:
			ir.Bug("unexpected instruction %T", x)
		}
	}

	return 0, errors.New("%v: fell off the end", f.Name)
}

func (m *Machine) intrinsic(fr *frame, x ir.Intrinsic) error {
	if x.Kind == ir.Input {
		if len(m.Input) == 0 {
			return ErrInput
		}

		v := m.Input[0]
		m.Input = m.Input[1:]

		return m.write(fr, x.X, v)
	}

	v, err := m.read(fr, x.X)
	if err != nil {
		return err
	}

	switch x.Format {
	case ir.FmtByte:
		m.Output = append(m.Output, byte(v))
	case ir.FmtString:
		if v == 0 {
			return ErrNilPtr
		}

		for a := v; a < int64(len(m.mem)) && m.mem[a] != 0; a++ {
			m.Output = append(m.Output, m.mem[a])
		}
	default:
		m.Output = strconv.AppendInt(m.Output, v, 10)
	}

	return nil
}

func (m *Machine) read(fr *frame, o ir.Operand) (int64, error) {
	switch o := o.(type) {
	case ir.Lit:
		return o.Value, nil
	case ir.Str:
		return m.strs[o.ID], nil
	case ir.Sym, ir.Tmp:
		return m.load(m.varAddr(fr, o), o.Width())
	case ir.Mem:
		a, err := m.read(fr, o.Addr)
		if err != nil {
			return 0, err
		}

		return m.load(a, o.W)
	}

	ir.Bug("read of %T", o)

	return 0, nil
}

func (m *Machine) write(fr *frame, o ir.Operand, v int64) error {
	switch o := o.(type) {
	case ir.Sym, ir.Tmp:
		return m.store(m.varAddr(fr, o), o.Width(), v)
	case ir.Mem:
		a, err := m.read(fr, o.Addr)
		if err != nil {
			return err
		}

		return m.store(a, o.W, v)
	}

	ir.Bug("write into %T", o)

	return nil
}

func (m *Machine) load(a int64, w ir.Width) (int64, error) {
	if err := m.check(a, w); err != nil {
		return 0, err
	}

	if w == ir.Byte {
		return int64(m.mem[a]), nil
	}

	return int64(binary.LittleEndian.Uint64(m.mem[a:])), nil
}

func (m *Machine) store(a int64, w ir.Width, v int64) error {
	if err := m.check(a, w); err != nil {
		return err
	}

	if w == ir.Byte {
		m.mem[a] = byte(v)
		return nil
	}

	binary.LittleEndian.PutUint64(m.mem[a:], uint64(v))

	return nil
}

func (m *Machine) check(a int64, w ir.Width) error {
	if a < 8 {
		return ErrNilPtr
	}

	if a+int64(w) > int64(len(m.mem)) {
		return errors.New("address out of range: %#x", a)
	}

	return nil
}

func (m *Machine) varAddr(fr *frame, o ir.Operand) int64 {
	id, ok := ir.VarOf(o)
	if !ok {
		ir.Bug("not a variable: %T", o)
	}

	if a, ok := fr.addr[id]; ok {
		return a
	}

	if a, ok := m.addr[id]; ok {
		return a
	}

	ir.Bug("%v: variable %v is not visible", fr.f.Name, m.P.Var(id).Name)

	return 0
}

func (m *Machine) alloc(n int) int64 {
	n = (n + 7) &^ 7

	a := len(m.mem)
	m.mem = append(m.mem, make([]byte, n)...)

	return int64(a)
}

func (m *Machine) labelsOf(f *ir.Procedure) map[ir.Label]int {
	if l, ok := m.labels[f]; ok {
		return l
	}

	l := map[ir.Label]int{}

	for i, id := range f.Code {
		for _, lab := range f.Quad(id).Labels {
			l[lab] = i
		}
	}

	m.labels[f] = l

	return l
}

func (m *Machine) maxSteps() int {
	if m.MaxSteps > 0 {
		return m.MaxSteps
	}

	return DefaultSteps
}

func binop(op ir.Op, l, r int64) (int64, error) {
	switch op {
	case ir.Add:
		return l + r, nil
	case ir.Sub:
		return l - r, nil
	case ir.Mul:
		return l * r, nil
	case ir.Div:
		if r == 0 {
			return 0, ErrDivZero
		}

		if r == -1 {
			return -l, nil
		}

		return l / r, nil
	case ir.And:
		return b2i(l != 0 && r != 0), nil
	case ir.Or:
		return b2i(l != 0 || r != 0), nil
	case ir.Eq:
		return b2i(l == r), nil
	case ir.Neq:
		return b2i(l != r), nil
	case ir.Lt:
		return b2i(l < r), nil
	case ir.Gt:
		return b2i(l > r), nil
	case ir.Lte:
		return b2i(l <= r), nil
	case ir.Gte:
		return b2i(l >= r), nil
	}

	ir.Bug("unexpected binary operator %v", op)

	return 0, nil
}

func b2i(x bool) int64 {
	if x {
		return 1
	}

	return 0
}
