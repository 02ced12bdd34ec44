package cfg

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/holeyc/compiler/ir"
	"github.com/slowlang/holeyc/compiler/irtest"
)

func TestIfElse(t *testing.T) {
	p := irtest.Lower(t, `
funcs:
  - name: main
    body:
      - decl: {name: x, type: int}
      - fromconsole: {id: x}
      - if:
          cond: {bin: {op: ">", l: {id: x}, r: {int: 0}}}
          then: [{toconsole: {int: 1}}]
          else: [{toconsole: {int: 2}}]
`)
	f := irtest.Proc(t, p, "main")

	g := Build(context.Background(), f)
	require.Len(t, g.Blocks, 5)

	type edges struct {
		start, end   int
		preds, succs []int
	}

	var got []edges

	for _, b := range g.Blocks {
		got = append(got, edges{b.Start, b.End, b.Preds, b.Succs})
	}

	assert.Equal(t, []edges{
		{0, 4, nil, []int{2, 1}},
		{4, 6, []int{0}, []int{3}},
		{6, 8, []int{0}, []int{3}},
		{8, 9, []int{1, 2}, []int{4}},
		{9, 10, []int{3}, nil},
	}, got)

	assert.Equal(t, 5, g.Reachable().Size())
	assert.Equal(t, []int{4, 3, 2, 1, 0}, g.Postorder())

	b, ok := g.BlockOf(f.LeaveLabel)
	assert.True(t, ok)
	assert.Equal(t, 4, b)
	assert.Equal(t, f.Leave, g.Last(g.Blocks[4]))
}

func TestUnreachable(t *testing.T) {
	p := irtest.Lower(t, `
funcs:
  - name: main
    ret: int
    body:
      - return: {int: 1}
      - toconsole: {int: 2}
`)
	f := irtest.Proc(t, p, "main")

	g := Build(context.Background(), f)
	require.Len(t, g.Blocks, 3)

	r := g.Reachable()

	assert.True(t, r.IsSet(0))
	assert.False(t, r.IsSet(1))
	assert.True(t, r.IsSet(2))

	assert.Equal(t, []int{2}, g.Blocks[1].Succs)
	assert.Equal(t, []int{2, 0}, g.Postorder())
}

func TestUndefinedLabel(t *testing.T) {
	p := ir.NewProgram()
	f := p.NewProc("main", true)

	p.Begin(f)
	f.Add(ir.Jump{Label: 99})
	f.End()

	assert.Panics(t, func() {
		Build(context.Background(), f)
	})
}
