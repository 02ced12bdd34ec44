package opt

import (
	"context"

	"golang.org/x/sync/errgroup"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/holeyc/compiler/cfg"
	"github.com/slowlang/holeyc/compiler/df"
	"github.com/slowlang/holeyc/compiler/format"
	"github.com/slowlang/holeyc/compiler/ir"
)

type (
	Options struct {
		// MaxRounds limits rounds per procedure. 0 means DefaultRounds.
		MaxRounds int

		// Jobs limits procedures optimized at once. 0 means no limit.
		Jobs int
	}

	Stats struct {
		Rounds  int
		Changed int
		Pruned  int
		Removed int

		// Converged is set when the last round changed nothing.
		Converged bool
	}
)

const DefaultRounds = 16

// Program optimizes every procedure of p.
// Procedures only share the variable table which is not modified here.
func Program(ctx context.Context, p *ir.Program, opts Options) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "optimize", "procs", len(p.Procs), "jobs", opts.Jobs)
	defer tr.Finish("err", &err)

	g, ctx := errgroup.WithContext(ctx)

	if opts.Jobs > 0 {
		g.SetLimit(opts.Jobs)
	}

	for _, f := range p.Procs {
		f := f

		g.Go(func() (err error) {
			defer ir.Recover(&err)

			_, err = Proc(ctx, p, f, opts)
			if err != nil {
				return errors.Wrap(err, "proc %v", f.Name)
			}

			return nil
		})
	}

	err = g.Wait()
	if err != nil {
		return err
	}

	return p.Check()
}

// Proc runs optimization rounds on f until nothing changes.
func Proc(ctx context.Context, p *ir.Program, f *ir.Procedure, opts Options) (st Stats, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "optimize proc", "name", f.Name, "quads", len(f.Code))
	defer tr.Finish("err", &err)

	rounds := opts.MaxRounds
	if rounds <= 0 {
		rounds = DefaultRounds
	}

	for st.Rounds < rounds {
		if err = ctx.Err(); err != nil {
			return st, err
		}

		st.Rounds++

		g := cfg.Build(ctx, f)
		changed := df.Propagate(ctx, p, g)

		g = cfg.Build(ctx, f)
		pruned := Prune(g)

		g = cfg.Build(ctx, f)
		removed := df.DeadCode(ctx, p, g)

		st.Changed += changed
		st.Pruned += pruned
		st.Removed += removed

		tr.V("round").Printw("round", "round", st.Rounds, "changed", changed, "pruned", pruned, "removed", removed)

		if changed+pruned+removed == 0 {
			st.Converged = true
			break
		}
	}

	if !st.Converged {
		tr.Printw("round limit reached before fixed point", "rounds", st.Rounds, "quads", len(f.Code))
	}

	tr.Printw("optimized", "rounds", st.Rounds, "changed", st.Changed, "pruned", st.Pruned, "removed", st.Removed, "quads", len(f.Code))

	if tr.If("dump_opt") {
		tr.Printw("ir", "text", string(format.Proc(nil, p, f)))
	}

	return st, nil
}

// Prune removes blocks unreachable from the entry.
// Enter and Leave always stay.
func Prune(g *cfg.Graph) int {
	reach := g.Reachable()
	dead := map[ir.QuadID]bool{}

	for _, b := range g.Blocks {
		if reach.IsSet(b.ID) {
			continue
		}

		for _, id := range g.Code(b) {
			dead[id] = true
		}
	}

	return g.Proc.Sweep(dead)
}
