package cfg

import (
	"context"

	"tlog.app/go/tlog"

	"github.com/slowlang/holeyc/compiler/ir"
	"github.com/slowlang/holeyc/compiler/set"
)

type (
	// Block is a view of Proc.Code[Start:End].
	Block struct {
		ID    int
		Start int
		End   int

		Preds []int
		Succs []int
	}

	Graph struct {
		Proc   *ir.Procedure
		Blocks []*Block

		label map[ir.Label]int // label -> block
	}
)

// Build partitions f's code into basic blocks.
// A block starts at the first quad, at every labeled quad and right after a jump.
func Build(ctx context.Context, f *ir.Procedure) *Graph {
	g := &Graph{
		Proc:  f,
		label: map[ir.Label]int{},
	}

	n := len(f.Code)

	for i := 0; i < n; {
		b := &Block{ID: len(g.Blocks), Start: i}

		for _, l := range f.Quad(f.Code[i]).Labels {
			g.label[l] = b.ID
		}

		i++

		for i < n && !ir.IsTransfer(f.Instr(f.Code[i-1])) && len(f.Quad(f.Code[i]).Labels) == 0 {
			i++
		}

		b.End = i
		g.Blocks = append(g.Blocks, b)
	}

	for _, b := range g.Blocks {
		last := f.Instr(f.Code[b.End-1])

		switch x := last.(type) {
		case ir.Jump:
			g.link(b, g.target(x.Label))
		case ir.JumpIfFalse:
			g.link(b, g.target(x.Label))

			if b.ID+1 < len(g.Blocks) {
				g.link(b, b.ID+1)
			}
		default:
			if b.ID+1 < len(g.Blocks) {
				g.link(b, b.ID+1)
			}
		}
	}

	for _, b := range g.Blocks {
		for _, s := range b.Succs {
			sb := g.Blocks[s]
			sb.Preds = append(sb.Preds, b.ID)
		}
	}

	if tr := tlog.SpanFromContext(ctx); tr.If("cfg") {
		for _, b := range g.Blocks {
			tr.Printw("block", "proc", f.Name, "id", b.ID, "start", b.Start, "end", b.End, "preds", b.Preds, "succs", b.Succs)
		}
	}

	return g
}

// Code returns quads of the block.
func (g *Graph) Code(b *Block) []ir.QuadID {
	return g.Proc.Code[b.Start:b.End]
}

// Last returns the final quad of the block.
func (g *Graph) Last(b *Block) ir.QuadID {
	return g.Proc.Code[b.End-1]
}

// BlockOf returns the block a label starts.
func (g *Graph) BlockOf(l ir.Label) (int, bool) {
	b, ok := g.label[l]
	return b, ok
}

// Reachable returns blocks reachable from the entry.
func (g *Graph) Reachable() set.Bits[int] {
	var seen set.Bits[int]

	if len(g.Blocks) == 0 {
		return seen
	}

	q := []int{0}
	seen.Set(0)

	for len(q) != 0 {
		b := g.Blocks[q[0]]
		q = q[1:]

		for _, s := range b.Succs {
			if seen.IsSet(s) {
				continue
			}

			seen.Set(s)
			q = append(q, s)
		}
	}

	return seen
}

// Postorder returns blocks reachable from the entry in depth-first postorder.
func (g *Graph) Postorder() []int {
	if len(g.Blocks) == 0 {
		return nil
	}

	type frame struct {
		b, next int
	}

	var seen set.Bits[int]
	var po []int

	st := []frame{{b: 0}}
	seen.Set(0)

	for len(st) != 0 {
		top := &st[len(st)-1]
		succs := g.Blocks[top.b].Succs

		if top.next == len(succs) {
			po = append(po, top.b)
			st = st[:len(st)-1]

			continue
		}

		s := succs[top.next]
		top.next++

		if seen.IsSet(s) {
			continue
		}

		seen.Set(s)
		st = append(st, frame{b: s})
	}

	return po
}

func (g *Graph) target(l ir.Label) int {
	b, ok := g.label[l]
	if !ok {
		ir.Bug("%v: jump to undefined label %v", g.Proc.Name, l)
	}

	return b
}

func (g *Graph) link(b *Block, s int) {
	for _, x := range b.Succs {
		if x == s {
			return
		}
	}

	b.Succs = append(b.Succs, s)
}
