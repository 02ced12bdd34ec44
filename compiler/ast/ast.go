package ast

import "github.com/slowlang/holeyc/compiler/tp"

// Tree handed over by the front end.
// Every identifier is already bound to its Symbol and every node type-checks.

type (
	SymKind int

	Symbol struct {
		Name string
		Kind SymKind
		Type tp.Type
	}

	Program struct {
		Decls []Decl
	}

	Decl interface {
		decl()
	}

	Stmt interface {
		stmt()
	}

	Expr interface {
		expr()
	}

	// LVal is an Expr which designates a storage location.
	LVal interface {
		Expr
		lval()
	}

	VarDecl struct {
		Sym *Symbol
	}

	FuncDecl struct {
		Sym     *Symbol
		Formals []*Symbol
		Body    []Stmt
	}

	AssignStmt struct {
		X *Assign
	}

	CallStmt struct {
		X *Call
	}

	PostInc struct {
		X LVal
	}

	PostDec struct {
		X LVal
	}

	FromConsole struct {
		X LVal
	}

	ToConsole struct {
		X Expr
	}

	If struct {
		Cond Expr
		Then []Stmt
	}

	IfElse struct {
		Cond Expr
		Then []Stmt
		Else []Stmt
	}

	While struct {
		Cond Expr
		Body []Stmt
	}

	Return struct {
		X Expr // nil for bare return
	}

	Ident struct {
		Sym *Symbol
	}

	IntLit struct {
		Value int64
	}

	CharLit struct {
		Value byte
	}

	StrLit struct {
		Value string
	}

	True    struct{}
	False   struct{}
	NullPtr struct{}

	Assign struct {
		Dst LVal
		Src Expr
	}

	Call struct {
		Func *Symbol
		Args []Expr
	}

	Binary struct {
		Op   string
		L, R Expr
	}

	Unary struct {
		Op string
		X  Expr
	}

	// Deref is @x.
	Deref struct {
		X *Ident
	}

	// Ref is ^x.
	Ref struct {
		X *Ident
	}

	// Index is x[Off].
	Index struct {
		X   *Ident
		Off Expr
	}
)

const (
	Global SymKind = iota
	Local
	Formal
	Func
)

func (k SymKind) String() string {
	switch k {
	case Global:
		return "global"
	case Local:
		return "local"
	case Formal:
		return "formal"
	case Func:
		return "func"
	default:
		return "unknown"
	}
}

func (*VarDecl) decl()  {}
func (*FuncDecl) decl() {}

func (*VarDecl) stmt()     {}
func (*AssignStmt) stmt()  {}
func (*CallStmt) stmt()    {}
func (*PostInc) stmt()     {}
func (*PostDec) stmt()     {}
func (*FromConsole) stmt() {}
func (*ToConsole) stmt()   {}
func (*If) stmt()          {}
func (*IfElse) stmt()      {}
func (*While) stmt()       {}
func (*Return) stmt()      {}

func (*Ident) expr()   {}
func (*IntLit) expr()  {}
func (*CharLit) expr() {}
func (*StrLit) expr()  {}
func (*True) expr()    {}
func (*False) expr()   {}
func (*NullPtr) expr() {}
func (*Assign) expr()  {}
func (*Call) expr()    {}
func (*Binary) expr()  {}
func (*Unary) expr()   {}
func (*Deref) expr()   {}
func (*Ref) expr()     {}
func (*Index) expr()   {}

func (*Ident) lval() {}
func (*Deref) lval() {}
func (*Index) lval() {}

// TypeOf returns the type of an expression.
// Operators are resolved by the fixed typing rules of the language.
func TypeOf(e Expr) tp.Type {
	switch e := e.(type) {
	case *Ident:
		return e.Sym.Type
	case *IntLit:
		return tp.Int{}
	case *CharLit:
		return tp.Char{}
	case *StrLit:
		return tp.Ptr{X: tp.Char{}}
	case *True, *False:
		return tp.Bool{}
	case *NullPtr:
		return tp.Ptr{X: tp.Void{}}
	case *Assign:
		return TypeOf(e.Dst)
	case *Call:
		if f, ok := e.Func.Type.(tp.Func); ok {
			return f.Out
		}

		return tp.Void{}
	case *Binary:
		switch e.Op {
		case "+", "-", "*", "/":
			return tp.Int{}
		default:
			return tp.Bool{}
		}
	case *Unary:
		if e.Op == "!" {
			return tp.Bool{}
		}

		return tp.Int{}
	case *Deref:
		return tp.Elem(e.X.Sym.Type)
	case *Index:
		return tp.Elem(e.X.Sym.Type)
	case *Ref:
		return tp.Ptr{X: e.X.Sym.Type}
	}

	return nil
}
