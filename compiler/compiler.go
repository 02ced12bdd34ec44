package compiler

import (
	"context"
	"os"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/holeyc/compiler/ast"
	"github.com/slowlang/holeyc/compiler/back"
	"github.com/slowlang/holeyc/compiler/format"
	"github.com/slowlang/holeyc/compiler/ir"
	"github.com/slowlang/holeyc/compiler/lower"
	"github.com/slowlang/holeyc/compiler/opt"
)

type Options struct {
	Optimize bool

	MaxRounds int
	Jobs      int
}

func ReadFile(ctx context.Context, name string) (*ast.Program, error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(text), "name", name)

	x, err := ast.Decode(text)
	if err != nil {
		return nil, errors.Wrap(err, "decode tree")
	}

	return x, nil
}

func CompileFile(ctx context.Context, name string, opts Options) (obj []byte, err error) {
	x, err := ReadFile(ctx, name)
	if err != nil {
		return nil, err
	}

	return Compile(ctx, x, opts)
}

// Compile translates the tree into x86-64 assembly text.
func Compile(ctx context.Context, x *ast.Program, opts Options) (obj []byte, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "compile", "optimize", opts.Optimize)
	defer tr.Finish("err", &err)

	p, err := Build(ctx, x, opts)
	if err != nil {
		return nil, err
	}

	back.Layout(ctx, p)

	obj, err = back.Emit(ctx, nil, p)
	if err != nil {
		return nil, errors.Wrap(err, "emit")
	}

	return obj, nil
}

// Build lowers the tree and optimizes it if requested.
func Build(ctx context.Context, x *ast.Program, opts Options) (p *ir.Program, err error) {
	p, err = lower.Program(ctx, x)
	if err != nil {
		return nil, errors.Wrap(err, "lower")
	}

	if err = p.Check(); err != nil {
		return nil, errors.Wrap(err, "check")
	}

	if !opts.Optimize {
		return p, nil
	}

	err = opt.Program(ctx, p, opt.Options{
		MaxRounds: opts.MaxRounds,
		Jobs:      opts.Jobs,
	})
	if err != nil {
		return nil, errors.Wrap(err, "optimize")
	}

	return p, nil
}

// DumpIR returns the 3AC listing of the program.
func DumpIR(ctx context.Context, x *ast.Program, opts Options) ([]byte, error) {
	p, err := Build(ctx, x, opts)
	if err != nil {
		return nil, err
	}

	back.Layout(ctx, p)

	return format.Program(nil, p), nil
}
