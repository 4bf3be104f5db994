package acquire

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"keycards/entity"
	"keycards/lib/sl"
)

// Source is one campaign client. Acquire never fails; it reports its
// outcome in the attempt record.
type Source interface {
	Name() string
	Acquire(ctx context.Context, credential string) entity.AcquisitionAttempt
}

// Orchestrator fans an acquisition out to every configured source at
// once and merges what came back. Sources are independent coupon
// pools, so there is no early exit on first success: every client runs
// to completion before the merge.
type Orchestrator struct {
	sources []Source
	log     *slog.Logger
}

func New(sources []Source, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		sources: sources,
		log:     logger.With(sl.Module("acquire")),
	}
}

// AcquireAll runs every source concurrently and concatenates the
// non-empty results in source-configuration order. An empty merged
// slice is the failure signal the redemption service acts on.
func (o *Orchestrator) AcquireAll(ctx context.Context, credential string) []entity.Coupon {
	attempts := make([]entity.AcquisitionAttempt, len(o.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range o.sources {
		i, src := i, src
		g.Go(func() error {
			attempts[i] = src.Acquire(gctx, credential)
			return nil
		})
	}
	_ = g.Wait()

	var merged []entity.Coupon
	for _, a := range attempts {
		o.log.Debug("source finished",
			sl.Source(a.Source),
			slog.String("outcome", string(a.Outcome)),
			slog.Int("retries_used", a.RetriesUsed),
			slog.Int("coupons", len(a.Coupons)))
		merged = append(merged, a.Coupons...)
	}
	return merged
}
