package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"keycards/entity"
	"keycards/lib/sl"
)

type Store interface {
	ListWithCredential(ctx context.Context) ([]*entity.KeyCard, error)
}

type Acquirer interface {
	AcquireAll(ctx context.Context, credential string) []entity.Coupon
}

type Sink interface {
	Send(ctx context.Context, title, content string) error
}

// Job re-harvests coupons for every card that has ever been activated
// and reports which owners newly qualified. It never touches stored
// state: a used card's coupon list is immutable, the sweep only
// produces an ephemeral tally.
type Job struct {
	store       Store
	acquirer    Acquirer
	sink        Sink
	concurrency int
	log         *slog.Logger
}

func NewJob(store Store, acquirer Acquirer, sink Sink, concurrency int, logger *slog.Logger) *Job {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Job{
		store:       store,
		acquirer:    acquirer,
		sink:        sink,
		concurrency: concurrency,
		log:         logger.With(sl.Module("sweep")),
	}
}

func (j *Job) Name() string {
	return "coupon-sweep"
}

// Run executes one sweep. Without a configured sink the run is a
// silent no-op. Per-card failures only exclude that card from the
// tally; a failed report delivery is logged and swallowed so the run
// itself never fails for it.
func (j *Job) Run() error {
	if j.sink == nil {
		return nil
	}
	ctx := context.Background()

	cards, err := j.store.ListWithCredential(ctx)
	if err != nil {
		return fmt.Errorf("list activated cards: %w", err)
	}
	j.log.Info("sweep started", slog.Int("cards", len(cards)))

	var mu sync.Mutex
	var owners []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency)
	for _, card := range cards {
		card := card
		g.Go(func() error {
			coupons := j.acquirer.AcquireAll(gctx, card.Credential)
			if len(coupons) == 0 {
				return nil
			}
			mu.Lock()
			owners = append(owners, card.OwnerRef)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	title := fmt.Sprintf("%d owners re-acquired coupons", len(owners))
	if err = j.sink.Send(ctx, title, strings.Join(owners, "\n")); err != nil {
		j.log.Error("report delivery failed", sl.Err(err))
	}
	j.log.Info("sweep finished", slog.Int("qualified", len(owners)))
	return nil
}
