package back

import (
	"context"
	"fmt"

	"tlog.app/go/tlog"

	"github.com/slowlang/holeyc/compiler/ir"
)

const (
	SlotSize = 8

	// frameReserve covers saved %rbp and the return address.
	frameReserve = 16
)

// Layout assigns a location to every variable and a frame size to every procedure.
// Each procedure slot is 8 bytes; locals come first, then temporaries, then formals.
func Layout(ctx context.Context, p *ir.Program) {
	tr := tlog.SpanFromContext(ctx)

	for _, id := range p.Globals {
		v := p.Var(id)
		v.Loc = GlobalName(v.Name)
	}

	for _, f := range p.Procs {
		slots := 0

		for _, l := range [][]ir.VarID{f.Locals, f.Temps, f.Formals} {
			for _, id := range l {
				v := p.Var(id)
				v.Loc = fmt.Sprintf("%d(%%rbp)", -(frameReserve + SlotSize*(slots+1)))

				slots++
			}
		}

		f.FrameSize = align16(frameReserve + SlotSize*slots)

		tr.V("layout").Printw("frame", "proc", f.Name, "slots", slots, "frame_size", f.FrameSize)
	}
}

func GlobalName(name string) string { return "gbl_" + name }

// ProcName is the assembly symbol of a procedure.
func ProcName(name string) string {
	if name == "main" {
		return name
	}

	return "fun_" + name
}

func align16(x int) int {
	return (x + 15) &^ 15
}
