package ir

import (
	"strconv"

	"tlog.app/go/errors"
)

func NewProgram() *Program {
	return &Program{
		strid: make(map[string]int),
	}
}

func (p *Program) NewLabel() Label {
	l := p.nextLabel
	p.nextLabel++

	return l
}

func (p *Program) NewVar(v Var) VarID {
	id := VarID(len(p.Vars))
	p.Vars = append(p.Vars, v)

	return id
}

func (p *Program) Var(id VarID) *Var {
	if id < 0 || int(id) >= len(p.Vars) {
		Bug("no such variable: %d", id)
	}

	return &p.Vars[id]
}

func (p *Program) AddGlobal(name string, w Width) Sym {
	id := p.NewVar(Var{Name: name, Kind: Global, Width: w, Proc: -1})
	p.Globals = append(p.Globals, id)

	return Sym{ID: id, W: w}
}

// String returns the pooled literal, adding it on first use.
// Safe for concurrent use.
func (p *Program) String(s string) Str {
	defer p.mu.Unlock()
	p.mu.Lock()

	if p.strid == nil {
		p.strid = make(map[string]int)
	}

	id, ok := p.strid[s]
	if !ok {
		id = len(p.strings)
		p.strings = append(p.strings, s)
		p.strid[s] = id
	}

	return Str{ID: id}
}

// Strings returns pooled literals in order of first use.
func (p *Program) Strings() []string {
	defer p.mu.Unlock()
	p.mu.Lock()

	return append([]string(nil), p.strings...)
}

func (p *Program) NewProc(name string, void bool) *Procedure {
	f := &Procedure{
		Name:  name,
		Index: len(p.Procs),
		Void:  void,
	}

	p.Procs = append(p.Procs, f)

	return f
}

func (p *Program) Proc(i int) *Procedure {
	if i < 0 || i >= len(p.Procs) {
		Bug("no such procedure: %d", i)
	}

	return p.Procs[i]
}

// Begin emits the Enter/Leave sentinels of f.
// Leave is allocated up front so returns may jump to it and is
// appended to Code by End.
func (p *Program) Begin(f *Procedure) {
	f.Enter = f.Add(Enter{Proc: f.Index})

	f.LeaveLabel = p.NewLabel()
	f.Leave = f.alloc(Entry{Labels: []Label{f.LeaveLabel}, Instr: Leave{Proc: f.Index}})
}

func (f *Procedure) End() {
	f.Code = append(f.Code, f.Leave)
}

func (p *Program) NewLocal(f *Procedure, name string, kind VarKind, w Width) Sym {
	id := p.NewVar(Var{Name: name, Kind: kind, Width: w, Proc: f.Index})

	switch kind {
	case Formal:
		f.Formals = append(f.Formals, id)
	case Local:
		f.Locals = append(f.Locals, id)
	default:
		Bug("bad local kind: %v", kind)
	}

	return Sym{ID: id, W: w}
}

func (p *Program) NewTemp(f *Procedure, w Width) Tmp {
	id := p.NewVar(Var{Kind: Temp, Width: w, Proc: f.Index})
	p.Vars[id].Name = tmpName(len(f.Temps))

	f.Temps = append(f.Temps, id)

	return Tmp{ID: id, W: w}
}

// Add appends instruction to the code.
func (f *Procedure) Add(x Instr, labels ...Label) QuadID {
	id := f.alloc(Entry{Labels: labels, Instr: x})
	f.Code = append(f.Code, id)

	return id
}

func (f *Procedure) alloc(q Entry) QuadID {
	id := QuadID(len(f.Quads))
	f.Quads = append(f.Quads, q)

	return id
}

func (f *Procedure) Quad(id QuadID) *Entry {
	if id < 0 || int(id) >= len(f.Quads) {
		Bug("%v: no such quad: %d", f.Name, id)
	}

	return &f.Quads[id]
}

func (f *Procedure) Instr(id QuadID) Instr {
	return f.Quad(id).Instr
}

// Sweep removes quads from the code keeping relative order.
// Labels of a removed quad move to the next surviving one.
func (f *Procedure) Sweep(dead map[QuadID]bool) (removed int) {
	if len(dead) == 0 {
		return 0
	}

	code := f.Code[:0]
	var carry []Label

	for _, id := range f.Code {
		q := &f.Quads[id]

		if dead[id] && id != f.Enter && id != f.Leave {
			carry = append(carry, q.Labels...)
			q.Labels = nil
			removed++

			continue
		}

		if len(carry) != 0 {
			q.Labels = append(carry, q.Labels...)
			carry = nil
		}

		code = append(code, id)
	}

	if len(carry) != 0 {
		Bug("%v: labels %v fell off the end", f.Name, carry)
	}

	f.Code = code

	return removed
}

// Labels maps every attached label to its owner.
func (p *Program) Labels() (map[Label]QuadRef, error) {
	m := map[Label]QuadRef{}

	for _, f := range p.Procs {
		for _, id := range f.Code {
			for _, l := range f.Quads[id].Labels {
				if r, ok := m[l]; ok {
					return nil, errors.New("label %v attached twice: %v/%d and %v/%d", l, p.Procs[r.Proc].Name, r.Quad, f.Name, id)
				}

				m[l] = QuadRef{Proc: f.Index, Quad: id}
			}
		}
	}

	return m, nil
}

type QuadRef struct {
	Proc int
	Quad QuadID
}

// Check verifies label integrity: each label is attached exactly once
// and every jump lands inside its own procedure.
func (p *Program) Check() error {
	m, err := p.Labels()
	if err != nil {
		return err
	}

	for _, f := range p.Procs {
		for _, id := range f.Code {
			l := NoLabel

			switch x := f.Quads[id].Instr.(type) {
			case Jump:
				l = x.Label
			case JumpIfFalse:
				l = x.Label
			}

			if l == NoLabel {
				continue
			}

			r, ok := m[l]
			if !ok {
				return errors.New("%v: quad %d jumps to undefined label %v", f.Name, id, l)
			}

			if r.Proc != f.Index {
				return errors.New("%v: quad %d jumps into %v", f.Name, id, p.Procs[r.Proc].Name)
			}
		}
	}

	return nil
}

func tmpName(n int) string {
	return "tmp" + strconv.Itoa(n)
}
