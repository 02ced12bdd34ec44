// Package amd64 names x86-64 registers and condition codes in AT&T syntax.
package amd64

type (
	Reg  int8
	Cond int8
)

const (
	RAX Reg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
)

const (
	E Cond = iota
	NE
	L
	G
	LE
	GE
)

// Args are integer argument registers of the System V calling convention.
var Args = []Reg{RDI, RSI, RDX, RCX, R8, R9}

var names = [...][2]string{
	RAX: {"%rax", "%al"},
	RCX: {"%rcx", "%cl"},
	RDX: {"%rdx", "%dl"},
	RBX: {"%rbx", "%bl"},
	RSP: {"%rsp", "%spl"},
	RBP: {"%rbp", "%bpl"},
	RSI: {"%rsi", "%sil"},
	RDI: {"%rdi", "%dil"},
	R8:  {"%r8", "%r8b"},
	R9:  {"%r9", "%r9b"},
	R10: {"%r10", "%r10b"},
	R11: {"%r11", "%r11b"},
}

func (r Reg) String() string {
	if int(r) >= len(names) || r < 0 {
		return "%?"
	}

	return names[r][0]
}

// Byte is the low 8-bit name of the register.
func (r Reg) Byte() string {
	if int(r) >= len(names) || r < 0 {
		return "%?"
	}

	return names[r][1]
}

// Sized is the register name for an operand of w bytes.
func (r Reg) Sized(w int) string {
	if w == 1 {
		return r.Byte()
	}

	return r.String()
}

// Arg returns the register of 1-based argument i, if it is passed in one.
func Arg(i int) (Reg, bool) {
	if i < 1 || i > len(Args) {
		return 0, false
	}

	return Args[i-1], true
}

func (c Cond) String() string {
	switch c {
	case E:
		return "e"
	case NE:
		return "ne"
	case L:
		return "l"
	case G:
		return "g"
	case LE:
		return "le"
	case GE:
		return "ge"
	default:
		return "?"
	}
}

// Suffix is the operand size suffix for a width in bytes.
func Suffix(w int) string {
	switch w {
	case 1:
		return "b"
	case 2:
		return "w"
	case 4:
		return "l"
	default:
		return "q"
	}
}
