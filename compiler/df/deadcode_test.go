package df

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slowlang/holeyc/compiler/cfg"
	"github.com/slowlang/holeyc/compiler/ir"
	"github.com/slowlang/holeyc/compiler/irtest"
)

func TestDeadCodeChain(t *testing.T) {
	ctx := context.Background()

	p := irtest.Lower(t, `
funcs:
  - name: id
    ret: int
    formals: [{name: v, type: int}]
    body:
      - return: {id: v}
  - name: main
    body:
      - decl: {name: a, type: int}
      - decl: {name: b, type: int}
      - fromconsole: {id: a}
      - assign: {dst: {id: b}, src: {bin: {op: "*", l: {bin: {op: "+", l: {id: a}, r: {int: 1}}}, r: {int: 2}}}}
      - assign: {dst: {id: b}, src: {call: {func: id, args: [{id: a}]}}}
      - toconsole: {id: a}
`)
	f := irtest.Proc(t, p, "main")

	removed := DeadCode(ctx, p, cfg.Build(ctx, f))

	// a+1, *2, both stores into b and the unused call result
	assert.Equal(t, 5, removed)

	var calls, reads int

	for _, x := range irtest.Instrs(f) {
		switch x := x.(type) {
		case ir.Call:
			calls++
		case ir.Intrinsic:
			if x.Kind == ir.Input {
				reads++
			}
		case ir.BinOp:
			t.Errorf("dead arithmetic survived: %v", x)
		}
	}

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, reads)

	out, _ := irtest.Run(t, p, 41)
	assert.Equal(t, "41", out)

	assert.Zero(t, DeadCode(ctx, p, cfg.Build(ctx, f)))
}

func TestDeadCodeKeepsStores(t *testing.T) {
	ctx := context.Background()

	p := irtest.Lower(t, `
globals:
  - {name: g, type: int}
funcs:
  - name: main
    body:
      - decl: {name: x, type: int}
      - decl: {name: p, type: intptr}
      - assign: {dst: {id: p}, src: {ref: x}}
      - assign: {dst: {deref: p}, src: {int: 5}}
      - assign: {dst: {id: g}, src: {id: x}}
`)
	f := irtest.Proc(t, p, "main")
	before := len(f.Code)

	removed := DeadCode(ctx, p, cfg.Build(ctx, f))
	assert.Zero(t, removed)
	assert.Len(t, f.Code, before)
}

func TestDeadCodeLoopCarried(t *testing.T) {
	ctx := context.Background()

	p := irtest.Lower(t, loopTree)
	f := irtest.Proc(t, p, "count")
	before := len(f.Code)

	assert.Zero(t, DeadCode(ctx, p, cfg.Build(ctx, f)))
	assert.Len(t, f.Code, before)

	out, _ := irtest.Run(t, p)
	assert.Equal(t, "5", out)
}
