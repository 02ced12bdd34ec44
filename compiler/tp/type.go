package tp

type (
	Type interface {
		Size() int
	}

	Int  struct{}
	Char struct{}
	Bool struct{}
	Void struct{}

	Ptr struct {
		X Type
	}

	Func struct {
		In  []Type
		Out Type
	}
)

func (x Int) Size() int  { return 8 }
func (x Char) Size() int { return 1 }
func (x Bool) Size() int { return 1 }
func (x Void) Size() int { return 0 }
func (x Ptr) Size() int  { return 8 }
func (x Func) Size() int { return 8 }

func (x Int) String() string  { return "int" }
func (x Char) String() string { return "char" }
func (x Bool) String() string { return "bool" }
func (x Void) String() string { return "void" }
func (x Ptr) String() string  { return name(x.X) + "ptr" }

func (x Func) String() string {
	s := "("

	for i, t := range x.In {
		if i != 0 {
			s += ", "
		}

		s += name(t)
	}

	return s + ")->" + name(x.Out)
}

func IsVoid(t Type) bool {
	_, ok := t.(Void)
	return ok
}

// Elem returns pointee type or nil if t is not a pointer.
func Elem(t Type) Type {
	p, ok := t.(Ptr)
	if !ok {
		return nil
	}

	return p.X
}

func Parse(s string) (Type, bool) {
	switch s {
	case "int":
		return Int{}, true
	case "char":
		return Char{}, true
	case "bool":
		return Bool{}, true
	case "void":
		return Void{}, true
	case "intptr":
		return Ptr{X: Int{}}, true
	case "charptr":
		return Ptr{X: Char{}}, true
	case "boolptr":
		return Ptr{X: Bool{}}, true
	}

	return nil, false
}

func name(t Type) string {
	if s, ok := t.(interface{ String() string }); ok {
		return s.String()
	}

	return "?"
}
