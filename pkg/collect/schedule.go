package collect

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron"
)

// Schedule runs RunAll on the cron spec (e.g. "@daily" or "0 0 6 * * *")
// until ctx is done. The returned cron is already started.
func (r *Runner) Schedule(ctx context.Context, spec string, opts RunOptions) (*cron.Cron, error) {
	c := cron.New()
	err := c.AddFunc(spec, func() {
		failed := 0
		for _, res := range r.RunAll(ctx, opts) {
			if res.Err != nil {
				failed++
			}
		}
		slog.Info("scheduled run finished", "importers", len(r.importers), "failed", failed)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	c.Start()
	go func() {
		<-ctx.Done()
		c.Stop()
	}()
	return c, nil
}
