package ir

import "sync"

type (
	Width   int8
	VarKind int8
	Op      int8

	VarID  int
	QuadID int
	Label  int

	IntrinsicKind int8
	Format        int8

	Var struct {
		Name  string
		Kind  VarKind
		Width Width
		Proc  int // owner procedure, -1 for globals

		// Escaped is set once the variable's address is taken.
		Escaped bool

		// Loc is assigned by frame layout: "gbl_x" or "-24(%rbp)".
		Loc string
	}

	Operand interface {
		Width() Width
		operand()
	}

	Lit struct {
		Value int64
		W     Width
	}

	// Sym is a named variable: global, local or formal.
	Sym struct {
		ID VarID
		W  Width
	}

	Tmp struct {
		ID VarID
		W  Width
	}

	// Str is the address of a pooled string literal.
	Str struct {
		ID int
	}

	// Mem is the memory cell Addr points to.
	// Addr is always a Sym or Tmp holding an address.
	Mem struct {
		Addr Operand
		W    Width
	}

	// Entry is a quad with the labels attached to it.
	Entry struct {
		Labels []Label
		Instr  Instr
	}

	Instr interface {
		instr()
	}

	Assign struct {
		Dst, Src Operand
	}

	BinOp struct {
		Dst  Operand
		Op   Op
		L, R Operand
	}

	UnOp struct {
		Dst Operand
		Op  Op
		X   Operand
	}

	// AddrOf stores the address of variable X into Dst.
	AddrOf struct {
		Dst Operand
		X   Operand
	}

	Jump struct {
		Label Label
	}

	JumpIfFalse struct {
		Cond  Operand
		Label Label
	}

	Call struct {
		Proc int
	}

	SetArg struct {
		Index int // 1-based
		X     Operand
	}

	GetArg struct {
		Index int // 1-based
		Dst   Operand
	}

	SetRet struct {
		X Operand
	}

	GetRet struct {
		Dst Operand
	}

	Enter struct {
		Proc int
	}

	Leave struct {
		Proc int
	}

	Intrinsic struct {
		Kind   IntrinsicKind
		Format Format
		X      Operand
	}

	Nop struct{}

	Procedure struct {
		Name  string
		Index int
		Void  bool

		Formals []VarID
		Locals  []VarID
		Temps   []VarID

		Quads []Entry
		Code  []QuadID

		Enter      QuadID
		Leave      QuadID
		LeaveLabel Label

		FrameSize int
	}

	Program struct {
		Procs   []*Procedure
		Globals []VarID
		Vars    []Var

		mu      sync.Mutex
		strings []string
		strid   map[string]int

		nextLabel Label
	}
)

const (
	Byte Width = 1
	Quad Width = 8
)

const (
	Global VarKind = iota
	Local
	Formal
	Temp
)

const (
	Add Op = iota
	Sub
	Mul
	Div
	And
	Or
	Eq
	Neq
	Lt
	Gt
	Lte
	Gte

	Neg
	Not
)

const (
	Input IntrinsicKind = iota
	Output
)

const (
	FmtInt Format = iota
	FmtByte
	FmtString
)

const NoLabel Label = -1

func (x Lit) Width() Width { return x.W }
func (x Sym) Width() Width { return x.W }
func (x Tmp) Width() Width { return x.W }
func (x Str) Width() Width { return Quad }
func (x Mem) Width() Width { return x.W }

func (Lit) operand() {}
func (Sym) operand() {}
func (Tmp) operand() {}
func (Str) operand() {}
func (Mem) operand() {}

func (Assign) instr()      {}
func (BinOp) instr()       {}
func (UnOp) instr()        {}
func (AddrOf) instr()      {}
func (Jump) instr()        {}
func (JumpIfFalse) instr() {}
func (Call) instr()        {}
func (SetArg) instr()      {}
func (GetArg) instr()      {}
func (SetRet) instr()      {}
func (GetRet) instr()      {}
func (Enter) instr()       {}
func (Leave) instr()       {}
func (Intrinsic) instr()   {}
func (Nop) instr()         {}

// Width is the result width of an operator.
func (op Op) Width() Width {
	switch op {
	case Add, Sub, Mul, Div, Neg:
		return Quad
	default:
		return Byte
	}
}

func (op Op) String() string {
	switch op {
	case Add:
		return "ADD"
	case Sub:
		return "SUB"
	case Mul:
		return "MULT"
	case Div:
		return "DIV"
	case And:
		return "AND"
	case Or:
		return "OR"
	case Eq:
		return "EQ"
	case Neq:
		return "NEQ"
	case Lt:
		return "LT"
	case Gt:
		return "GT"
	case Lte:
		return "LTE"
	case Gte:
		return "GTE"
	case Neg:
		return "NEG"
	case Not:
		return "NOT"
	default:
		return "?"
	}
}

func (k VarKind) String() string {
	switch k {
	case Global:
		return "global"
	case Local:
		return "local"
	case Formal:
		return "formal"
	case Temp:
		return "temp"
	default:
		return "?"
	}
}
