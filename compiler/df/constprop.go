package df

import (
	"context"
	"math"

	"tlog.app/go/tlog"

	"github.com/slowlang/holeyc/compiler/cfg"
	"github.com/slowlang/holeyc/compiler/ir"
)

type (
	ValueKind int8

	// Value is a constant lattice element.
	// Unknown is represented by absence from Consts.
	Value struct {
		Kind  ValueKind
		Const int64
	}

	// Consts maps variables to their lattice values.
	Consts map[ir.VarID]Value

	// ConstProp is a forward constant propagation problem.
	ConstProp struct {
		p *ir.Program
		f *ir.Procedure

		// shared are globals and escaped variables.
		// Calls and stores through pointers may change them.
		shared []ir.VarID
	}
)

const (
	Const ValueKind = iota + 1
	NotConst
)

var _ Problem[Consts] = (*ConstProp)(nil)

func NewConstProp(p *ir.Program, f *ir.Procedure) *ConstProp {
	return &ConstProp{
		p:      p,
		f:      f,
		shared: shared(p),
	}
}

// Propagate runs constant propagation on g and rewrites the procedure
// using converged facts. It returns the number of changed quads.
func Propagate(ctx context.Context, p *ir.Program, g *cfg.Graph) (changed int) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "constprop", "proc", g.Proc.Name, "blocks", len(g.Blocks))
	defer tr.Finish("changed", &changed)

	cp := NewConstProp(p, g.Proc)
	r := Solve(ctx, g, cp)

	changed = cp.Rewrite(ctx, g, r)

	tr.V("constprop").Printw("solved", "visits", r.Visits, "changed", changed)

	return changed
}

func (c *ConstProp) Backward() bool { return false }

func (c *ConstProp) Empty() Consts { return Consts{} }

func (c *ConstProp) Copy(f Consts) Consts {
	r := make(Consts, len(f))

	for k, v := range f {
		r[k] = v
	}

	return r
}

func (c *ConstProp) Meet(dst, src Consts) Consts {
	for k, v := range src {
		d, ok := dst[k]
		if !ok {
			dst[k] = v
			continue
		}

		dst[k] = meet(d, v)
	}

	return dst
}

func (c *ConstProp) Equal(x, y Consts) bool {
	if len(x) != len(y) {
		return false
	}

	for k, v := range x {
		if w, ok := y[k]; !ok || w != v {
			return false
		}
	}

	return true
}

// Seed marks shared variables unknowable at every block entry.
func (c *ConstProp) Seed(b *cfg.Block, f Consts) Consts {
	c.clobber(f)

	return f
}

func (c *ConstProp) Transfer(f Consts, id ir.QuadID) Consts {
	x := c.f.Instr(id)

	switch x.(type) {
	case ir.Call:
		c.clobber(f)

		return f
	}

	if _, ok := ir.Dst(x).(ir.Mem); ok {
		c.clobber(f)

		return f
	}

	d, ok := ir.Defines(x)
	if !ok {
		return f
	}

	if c.p.Var(d).Escaped {
		f[d] = Value{Kind: NotConst}

		return f
	}

	v, known := c.eval(f, x)
	if !known {
		delete(f, d)

		return f
	}

	f[d] = v

	return f
}

// Rewrite applies converged facts to the procedure in one sweep.
func (c *ConstProp) Rewrite(ctx context.Context, g *cfg.Graph, r *Result[Consts]) (changed int) {
	tr := tlog.SpanFromContext(ctx)

	dead := map[ir.QuadID]bool{}

	for _, b := range g.Blocks {
		f := c.Copy(r.In[b.ID])

		for _, id := range g.Code(b) {
			q := c.f.Quad(id)

			n, del := c.rewrite(f, q.Instr)

			if del {
				dead[id] = true
				changed++
			} else if n != nil {
				tr.V("constprop_rewrite").Printw("rewrite", "proc", c.f.Name, "quad", id)

				q.Instr = n
				changed++
			}

			f = c.Transfer(f, id)
		}
	}

	c.f.Sweep(dead)

	return changed
}

// rewrite returns the replacement for x, or del if x is to be removed.
// nil means no change.
func (c *ConstProp) rewrite(f Consts, x ir.Instr) (n ir.Instr, del bool) {
	switch x := x.(type) {
	case ir.Assign:
		src, ok := c.subst(f, x.Src)
		if !ok {
			return nil, false
		}

		x.Src = src

		return x, false
	case ir.BinOp:
		if v, ok := c.eval(f, x); ok && v.Kind == Const && !isMem(x.Dst) {
			return ir.Assign{Dst: x.Dst, Src: ir.Lit{Value: v.Const, W: x.Dst.Width()}}, false
		}

		l, lok := c.subst(f, x.L)
		r, rok := c.subst(f, x.R)

		if !lok && !rok {
			return nil, false
		}

		x.L, x.R = l, r

		return x, false
	case ir.UnOp:
		if v, ok := c.eval(f, x); ok && v.Kind == Const && !isMem(x.Dst) {
			return ir.Assign{Dst: x.Dst, Src: ir.Lit{Value: v.Const, W: x.Dst.Width()}}, false
		}

		o, ok := c.subst(f, x.X)
		if !ok {
			return nil, false
		}

		x.X = o

		return x, false
	case ir.JumpIfFalse:
		v := c.value(f, x.Cond)
		if v == nil || v.Kind != Const {
			return nil, false
		}

		if v.Const != 0 {
			return nil, true
		}

		return ir.Jump{Label: x.Label}, false
	}

	return nil, false
}

// subst replaces a constant variable operand with a literal.
func (c *ConstProp) subst(f Consts, o ir.Operand) (ir.Operand, bool) {
	id, ok := ir.VarOf(o)
	if !ok {
		return o, false
	}

	v, ok := f[id]
	if !ok || v.Kind != Const {
		return o, false
	}

	return ir.Lit{Value: v.Const, W: o.Width()}, true
}

// eval computes the value x assigns to its destination.
// known is false if the result depends on an unknown value.
func (c *ConstProp) eval(f Consts, x ir.Instr) (v Value, known bool) {
	notConst := Value{Kind: NotConst}

	switch x := x.(type) {
	case ir.Assign:
		s := c.value(f, x.Src)
		if s == nil {
			return Value{}, false
		}

		if s.Kind == Const && x.Dst.Width() == ir.Byte {
			s.Const = int64(uint8(s.Const))
		}

		return *s, true
	case ir.BinOp:
		l := c.value(f, x.L)
		r := c.value(f, x.R)

		if l != nil && l.Kind == NotConst || r != nil && r.Kind == NotConst {
			return notConst, true
		}

		if l == nil || r == nil {
			return Value{}, false
		}

		res, ok := Fold(x.Op, l.Const, r.Const)
		if !ok {
			return notConst, true
		}

		return Value{Kind: Const, Const: res}, true
	case ir.UnOp:
		s := c.value(f, x.X)
		if s == nil {
			return Value{}, false
		}

		if s.Kind == NotConst {
			return notConst, true
		}

		res, ok := Fold(x.Op, s.Const, 0)
		if !ok {
			return notConst, true
		}

		return Value{Kind: Const, Const: res}, true
	}

	return notConst, true
}

// value returns the lattice value of an operand or nil if unknown.
func (c *ConstProp) value(f Consts, o ir.Operand) *Value {
	switch o := o.(type) {
	case ir.Lit:
		return &Value{Kind: Const, Const: o.Value}
	case ir.Sym, ir.Tmp:
		id, _ := ir.VarOf(o)

		v, ok := f[id]
		if !ok {
			return nil
		}

		return &v
	}

	return &Value{Kind: NotConst}
}

func (c *ConstProp) clobber(f Consts) {
	for _, id := range c.shared {
		f[id] = Value{Kind: NotConst}
	}
}

// Fold evaluates op on constants the way generated code would.
// It refuses operations that trap at run time.
func Fold(op ir.Op, l, r int64) (int64, bool) {
	b := func(x bool) int64 {
		if x {
			return 1
		}

		return 0
	}

	switch op {
	case ir.Add:
		return l + r, true
	case ir.Sub:
		return l - r, true
	case ir.Mul:
		return l * r, true
	case ir.Div:
		if r == 0 || l == math.MinInt64 && r == -1 {
			return 0, false
		}

		return l / r, true
	case ir.And:
		return b(l != 0 && r != 0), true
	case ir.Or:
		return b(l != 0 || r != 0), true
	case ir.Eq:
		return b(l == r), true
	case ir.Neq:
		return b(l != r), true
	case ir.Lt:
		return b(l < r), true
	case ir.Gt:
		return b(l > r), true
	case ir.Lte:
		return b(l <= r), true
	case ir.Gte:
		return b(l >= r), true
	case ir.Neg:
		return -l, true
	case ir.Not:
		return b(l == 0), true
	}

	return 0, false
}

func meet(x, y Value) Value {
	if x.Kind == NotConst || y.Kind == NotConst || x.Const != y.Const {
		return Value{Kind: NotConst}
	}

	return x
}

func isMem(o ir.Operand) bool {
	_, ok := o.(ir.Mem)
	return ok
}

func shared(p *ir.Program) (r []ir.VarID) {
	for id := range p.Vars {
		v := &p.Vars[id]

		if v.Kind == ir.Global || v.Escaped {
			r = append(r, ir.VarID(id))
		}
	}

	return r
}

func (k ValueKind) String() string {
	switch k {
	case Const:
		return "const"
	case NotConst:
		return "not_const"
	default:
		return "unknown"
	}
}
