package ir

import (
	"fmt"
	"path/filepath"

	"tlog.app/go/loc"
)

// InternalError means the front end broke its contract.
// It aborts the whole compilation.
type InternalError struct {
	Msg string
	PC  loc.PC
}

// Bug aborts compilation. The panic is turned back into an error by Recover.
func Bug(format string, args ...any) {
	panic(&InternalError{
		Msg: fmt.Sprintf(format, args...),
		PC:  loc.Caller(1),
	})
}

// Recover is deferred by compilation entry points.
// Other panics are propagated.
func Recover(errp *error) {
	p := recover()
	if p == nil {
		return
	}

	e, ok := p.(*InternalError)
	if !ok {
		panic(p)
	}

	*errp = e
}

func (e *InternalError) Error() string {
	if e.PC == 0 {
		return "internal error: " + e.Msg
	}

	_, file, line := e.PC.NameFileLine()

	return fmt.Sprintf("internal error: %s (%s:%d)", e.Msg, filepath.Base(file), line)
}
