package ir

// Dst returns the operand written by x or nil.
// A Mem destination is a store through a pointer, not a variable definition.
func Dst(x Instr) Operand {
	switch x := x.(type) {
	case Assign:
		return x.Dst
	case BinOp:
		return x.Dst
	case UnOp:
		return x.Dst
	case AddrOf:
		return x.Dst
	case GetArg:
		return x.Dst
	case GetRet:
		return x.Dst
	case Intrinsic:
		if x.Kind == Input {
			return x.X
		}
	}

	return nil
}

// Srcs returns operands read by x.
// The address behind a Mem destination counts as read.
func Srcs(x Instr) (r []Operand) {
	switch x := x.(type) {
	case Assign:
		r = append(r, x.Src)
	case BinOp:
		r = append(r, x.L, x.R)
	case UnOp:
		r = append(r, x.X)
	case JumpIfFalse:
		r = append(r, x.Cond)
	case SetArg:
		r = append(r, x.X)
	case SetRet:
		r = append(r, x.X)
	case Intrinsic:
		if x.Kind == Output {
			r = append(r, x.X)
		}
	}

	if m, ok := Dst(x).(Mem); ok {
		r = append(r, m.Addr)
	}

	return r
}

// VarOf returns the variable an operand names directly.
func VarOf(o Operand) (VarID, bool) {
	switch o := o.(type) {
	case Sym:
		return o.ID, true
	case Tmp:
		return o.ID, true
	}

	return -1, false
}

// Reads returns variables whose values x reads.
// Mem operands read their address variable.
func Reads(x Instr) (r []VarID) {
	for _, o := range Srcs(x) {
		if m, ok := o.(Mem); ok {
			o = m.Addr
		}

		if id, ok := VarOf(o); ok {
			r = append(r, id)
		}
	}

	return r
}

// Defines returns the variable x writes, if any.
func Defines(x Instr) (VarID, bool) {
	d := Dst(x)
	if d == nil {
		return -1, false
	}

	return VarOf(d)
}

// Effectful reports whether x must stay regardless of liveness.
func Effectful(x Instr) bool {
	switch x.(type) {
	case Call, Intrinsic, Jump, JumpIfFalse, Enter, Leave, Nop, SetArg, SetRet:
		return true
	}

	_, mem := Dst(x).(Mem)

	return mem
}

// IsTransfer reports whether x ends a basic block.
func IsTransfer(x Instr) bool {
	switch x.(type) {
	case Jump, JumpIfFalse:
		return true
	}

	return false
}

func Target(x Instr) Label {
	switch x := x.(type) {
	case Jump:
		return x.Label
	case JumpIfFalse:
		return x.Label
	}

	return NoLabel
}
