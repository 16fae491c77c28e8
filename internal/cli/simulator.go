package cli

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/roach88/labroutine/internal/ir"
)

// simulator stands in for the hardware when none is attached: it logs
// each dispatched model and waits delay before accepting the next.
type simulator struct {
	logger *slog.Logger
	delay  time.Duration
}

func (s *simulator) Dispatch(ctx context.Context, d ir.Dispatch) error {
	args := []any{
		"run_id", d.RunID,
		"cycle", d.Cycle,
		"model", d.Model.Name,
		"path", d.Model.Path,
	}
	if d.Iteration > 0 {
		args = append(args, "iteration", d.Iteration, "combination", d.Combination)
		names := make([]string, 0, len(d.Values))
		for name := range d.Values {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			args = append(args, name, d.Values[name])
		}
	}
	s.logger.Info("executing model", args...)

	if s.delay <= 0 {
		return nil
	}
	timer := time.NewTimer(s.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
