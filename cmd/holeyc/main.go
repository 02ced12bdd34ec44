package main

import (
	"context"
	"os"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"
	"tlog.app/go/tlog/ext/tlflag"

	"github.com/slowlang/holeyc/compiler"
)

func main() {
	compileCmd := &cli.Command{
		Name:        "compile",
		Description: "compile resolved tree files into x86-64 assembly",
		Action:      compileAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			cli.NewFlag("output,o", "-", "output file"),
			cli.NewFlag("optimize,O", false, "run constant propagation and dead code elimination"),
			cli.NewFlag("rounds", 0, "max optimization rounds per procedure (0 is default)"),
			cli.NewFlag("jobs", 0, "procedures optimized in parallel (0 is unlimited)"),
		},
	}

	irCmd := &cli.Command{
		Name:        "ir",
		Description: "print three address code",
		Action:      irAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			cli.NewFlag("output,o", "-", "output file"),
			cli.NewFlag("optimize,O", false, "print optimized code"),
			cli.NewFlag("rounds", 0, "max optimization rounds per procedure (0 is default)"),
			cli.NewFlag("jobs", 0, "procedures optimized in parallel (0 is unlimited)"),
		},
	}

	app := &cli.Command{
		Name:        "holeyc",
		Description: "holeyc is a back end for the holeyc language",
		Before:      before,
		Flags: []*cli.Flag{
			cli.NewFlag("log", "stderr", "log output file (or stderr)"),
			cli.NewFlag("verbosity,v", "", "logger verbosity topics (dump_ir, dump_opt, dump_asm, cfg, ...)"),
			cli.FlagfileFlag,
			cli.HelpFlag,
		},
		Commands: []*cli.Command{
			compileCmd,
			irCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func before(c *cli.Command) error {
	w, err := tlflag.OpenWriter(c.String("log"))
	if err != nil {
		return errors.Wrap(err, "open log file")
	}

	tlog.DefaultLogger = tlog.New(w)

	tlog.SetVerbosity(c.String("verbosity"))

	return nil
}

func options(c *cli.Command) compiler.Options {
	return compiler.Options{
		Optimize:  c.Bool("optimize"),
		MaxRounds: c.Int("rounds"),
		Jobs:      c.Int("jobs"),
	}
}

func compileAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	var out []byte

	for _, a := range c.Args {
		obj, err := compiler.CompileFile(ctx, a, options(c))
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		out = append(out, obj...)
	}

	return write(c.String("output"), out)
}

func irAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	var out []byte

	for _, a := range c.Args {
		x, err := compiler.ReadFile(ctx, a)
		if err != nil {
			return errors.Wrap(err, "read %v", a)
		}

		text, err := compiler.DumpIR(ctx, x, options(c))
		if err != nil {
			return errors.Wrap(err, "ir %v", a)
		}

		out = append(out, text...)
	}

	return write(c.String("output"), out)
}

func write(name string, data []byte) error {
	if name == "" || name == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}

	err := os.WriteFile(name, data, 0o644)
	if err != nil {
		return errors.Wrap(err, "write output")
	}

	return nil
}
