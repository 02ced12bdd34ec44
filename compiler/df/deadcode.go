package df

import (
	"context"

	"tlog.app/go/tlog"

	"github.com/slowlang/holeyc/compiler/cfg"
	"github.com/slowlang/holeyc/compiler/ir"
	"github.com/slowlang/holeyc/compiler/set"
)

type (
	Live = set.Bits[ir.VarID]

	// Liveness is a backward live variables problem.
	// Quads whose results are never used do not make their operands live.
	Liveness struct {
		p *ir.Program
		f *ir.Procedure

		shared Live
	}
)

var _ Problem[Live] = (*Liveness)(nil)

func NewLiveness(p *ir.Program, f *ir.Procedure) *Liveness {
	return &Liveness{
		p:      p,
		f:      f,
		shared: set.Of(shared(p)...),
	}
}

// DeadCode removes quads whose results are never used.
// It returns the number of removed quads.
func DeadCode(ctx context.Context, p *ir.Program, g *cfg.Graph) (removed int) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "deadcode", "proc", g.Proc.Name, "blocks", len(g.Blocks))
	defer tr.Finish("removed", &removed)

	l := NewLiveness(p, g.Proc)
	r := Solve(ctx, g, l)

	dead := l.Dead(g, r)

	if tr.If("dump_live") {
		for _, b := range g.Blocks {
			tr.Printw("live", "block", b.ID, "in", r.In[b.ID], "out", r.Out[b.ID])
		}
	}

	removed = g.Proc.Sweep(dead)

	tr.V("deadcode").Printw("solved", "visits", r.Visits, "removed", removed)

	return removed
}

func (l *Liveness) Backward() bool { return true }

func (l *Liveness) Empty() Live { return Live{} }

func (l *Liveness) Copy(f Live) Live { return f.Copy() }

func (l *Liveness) Meet(dst, src Live) Live {
	dst.Merge(src)

	return dst
}

func (l *Liveness) Equal(x, y Live) bool { return x.Equal(y) }

func (l *Liveness) Seed(b *cfg.Block, f Live) Live { return f }

func (l *Liveness) Transfer(f Live, id ir.QuadID) Live {
	x := l.f.Instr(id)

	if l.removable(f, x) {
		return f
	}

	if d, ok := ir.Defines(x); ok {
		f.Clear(d)
	}

	for _, v := range ir.Reads(x) {
		f.Set(v)
	}

	if l.readsShared(x) {
		f.Merge(l.shared)
	}

	return f
}

// Dead collects removable quads using converged facts.
func (l *Liveness) Dead(g *cfg.Graph, r *Result[Live]) map[ir.QuadID]bool {
	dead := map[ir.QuadID]bool{}

	for _, b := range g.Blocks {
		f := l.Copy(r.Out[b.ID])
		code := g.Code(b)

		for i := len(code) - 1; i >= 0; i-- {
			id := code[i]

			if l.removable(f, l.f.Instr(id)) {
				dead[id] = true
			}

			f = l.Transfer(f, id)
		}
	}

	return dead
}

func (l *Liveness) removable(f Live, x ir.Instr) bool {
	if ir.Effectful(x) {
		return false
	}

	d, ok := ir.Defines(x)
	if !ok {
		return false
	}

	if l.shared.IsSet(d) {
		return false
	}

	return !f.IsSet(d)
}

// readsShared reports whether x may observe globals or escaped variables.
func (l *Liveness) readsShared(x ir.Instr) bool {
	switch x.(type) {
	case ir.Call, ir.Leave:
		return true
	}

	for _, o := range ir.Srcs(x) {
		if _, ok := o.(ir.Mem); ok {
			return true
		}
	}

	return false
}
