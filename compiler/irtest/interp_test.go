package irtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecursion(t *testing.T) {
	p := Lower(t, `
funcs:
  - name: fact
    ret: int
    formals: [{name: n, type: int}]
    body:
      - if:
          cond: {bin: {op: "<=", l: {id: n}, r: {int: 1}}}
          then: [{return: {int: 1}}]
      - return: {bin: {op: "*", l: {id: n}, r: {call: {func: fact, args: [{bin: {op: "-", l: {id: n}, r: {int: 1}}}]}}}}
  - name: main
    ret: int
    body:
      - decl: {name: k, type: int}
      - fromconsole: {id: k}
      - toconsole: {call: {func: fact, args: [{id: k}]}}
      - return: {int: 3}
`)

	out, ret := Run(t, p, 5)
	assert.Equal(t, "120", out)
	assert.EqualValues(t, 3, ret)
}

func TestErrors(t *testing.T) {
	ctx := context.Background()

	p := Lower(t, `
funcs:
  - name: main
    body:
      - decl: {name: z, type: int}
      - fromconsole: {id: z}
      - toconsole: {bin: {op: "/", l: {int: 1}, r: {id: z}}}
`)

	_, err := NewMachine(p, 0).Run(ctx)
	assert.ErrorIs(t, err, ErrDivZero)

	_, err = NewMachine(p).Run(ctx)
	assert.ErrorIs(t, err, ErrInput)

	p = Lower(t, `
funcs:
  - name: main
    body:
      - while:
          cond: {bool: true}
          body: []
`)

	m := NewMachine(p)
	m.MaxSteps = 100

	_, err = m.Run(ctx)
	require.ErrorIs(t, err, ErrSteps)

	p = Lower(t, `
funcs:
  - name: main
    body:
      - decl: {name: p, type: intptr}
      - assign: {dst: {id: p}, src: {nullptr: true}}
      - toconsole: {deref: p}
`)

	_, err = NewMachine(p).Run(ctx)
	assert.ErrorIs(t, err, ErrNilPtr)
}
