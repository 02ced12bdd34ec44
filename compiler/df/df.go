package df

import (
	"context"

	"nikand.dev/go/heap"
	"tlog.app/go/tlog"

	"github.com/slowlang/holeyc/compiler/cfg"
	"github.com/slowlang/holeyc/compiler/ir"
)

type (
	// Problem describes one dataflow analysis over facts of type F.
	//
	// Meet must be associative, commutative and monotone, Empty its identity.
	// Transfer must be monotone or Solve may not terminate.
	Problem[F any] interface {
		Backward() bool

		Empty() F
		Copy(F) F
		Meet(dst, src F) F
		Equal(x, y F) bool

		// Seed adjusts merged facts at the block boundary (IN for forward, OUT for backward).
		Seed(b *cfg.Block, f F) F

		// Transfer applies one quad. It may modify f.
		Transfer(f F, id ir.QuadID) F
	}

	Result[F any] struct {
		In  []F
		Out []F

		// Visits counts block recomputations.
		Visits int
	}
)

// Solve iterates p over g until no block facts change.
// Blocks wait in a heap ordered by reverse postorder (forward)
// or postorder (backward) so most facts are final when read.
func Solve[F any](ctx context.Context, g *cfg.Graph, p Problem[F]) *Result[F] {
	tr := tlog.SpanFromContext(ctx)

	n := len(g.Blocks)
	r := &Result[F]{
		In:  make([]F, n),
		Out: make([]F, n),
	}

	for i := 0; i < n; i++ {
		r.In[i] = p.Empty()
		r.Out[i] = p.Empty()
	}

	back := p.Backward()
	rank := ranks(g, back)

	queued := make([]bool, n)
	work := heap.Heap[int]{Less: func(d []int, i, j int) bool {
		return rank[d[i]] < rank[d[j]]
	}}

	push := func(b int) {
		if queued[b] {
			return
		}

		queued[b] = true
		work.Push(b)
	}

	for _, b := range g.Blocks {
		push(b.ID)
	}

	for work.Len() != 0 {
		b := g.Blocks[work.Pop()]
		queued[b.ID] = false
		r.Visits++

		if back {
			if backward(g, p, r, b) {
				for _, pb := range b.Preds {
					push(pb)
				}
			}
		} else {
			if forward(g, p, r, b) {
				for _, sb := range b.Succs {
					push(sb)
				}
			}
		}
	}

	tr.V("df_solve").Printw("dataflow solved", "proc", g.Proc.Name, "blocks", n, "visits", r.Visits)

	return r
}

// ranks orders blocks for the worklist.
// Unreachable blocks go last in block order.
func ranks(g *cfg.Graph, back bool) []int {
	n := len(g.Blocks)
	rank := make([]int, n)

	for i := range rank {
		rank[i] = n + i
	}

	po := g.Postorder()

	for i, b := range po {
		if back {
			rank[b] = i
		} else {
			rank[b] = len(po) - 1 - i
		}
	}

	return rank
}

func forward[F any](g *cfg.Graph, p Problem[F], r *Result[F], b *cfg.Block) bool {
	in := p.Empty()

	for _, pb := range b.Preds {
		in = p.Meet(in, r.Out[pb])
	}

	in = p.Seed(b, in)

	out := p.Copy(in)

	for _, id := range g.Code(b) {
		out = p.Transfer(out, id)
	}

	changed := !p.Equal(in, r.In[b.ID]) || !p.Equal(out, r.Out[b.ID])

	r.In[b.ID] = in
	r.Out[b.ID] = out

	return changed
}

func backward[F any](g *cfg.Graph, p Problem[F], r *Result[F], b *cfg.Block) bool {
	out := p.Empty()

	for _, sb := range b.Succs {
		out = p.Meet(out, r.In[sb])
	}

	out = p.Seed(b, out)

	in := p.Copy(out)
	code := g.Code(b)

	for i := len(code) - 1; i >= 0; i-- {
		in = p.Transfer(in, code[i])
	}

	changed := !p.Equal(in, r.In[b.ID]) || !p.Equal(out, r.Out[b.ID])

	r.In[b.ID] = in
	r.Out[b.ID] = out

	return changed
}
