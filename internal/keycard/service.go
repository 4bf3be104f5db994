package keycard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"keycards/entity"
	"keycards/lib/clock"
	"keycards/lib/sl"
)

var (
	// ErrCodeNotFound means the presented code does not exist at all.
	ErrCodeNotFound = errors.New("key card not found")
	// ErrAcquisitionFailed means every source came back empty; the card
	// stays unused and the bearer may retry later.
	ErrAcquisitionFailed = errors.New("acquisition failed, retry later")
	// ErrBatchIncomplete reports a partial bulk insert: the batch record
	// exists but fewer cards than Count were stored.
	ErrBatchIncomplete = errors.New("batch incomplete")
)

// maxInsertRounds bounds code regeneration when bulk inserts run into
// the store's unique index.
const maxInsertRounds = 3

// Store is the durable key-card repository. Find operations report an
// absent record as (nil, nil).
type Store interface {
	FindByCode(ctx context.Context, code string) (*entity.KeyCard, error)
	ListBatches(ctx context.Context) ([]*entity.Batch, error)
	ListByBatch(ctx context.Context, batchId string) ([]*entity.KeyCard, error)
	ListByStatus(ctx context.Context, status entity.KeyCardStatus) ([]*entity.KeyCard, error)
	CreateBatch(ctx context.Context, batch *entity.Batch) error
	BulkInsertKeyCards(ctx context.Context, cards []*entity.KeyCard) (int, error)
	ActivateCard(ctx context.Context, code, credential, ownerRef string, coupons []entity.Coupon, firstUse time.Time) (bool, error)
}

// Acquirer fans one credential out to every campaign source and merges
// the harvest.
type Acquirer interface {
	AcquireAll(ctx context.Context, credential string) []entity.Coupon
}

// Service owns the key-card lifecycle: batch issuance, the single
// unused -> used transition and the idempotent replay of used cards.
type Service struct {
	store      Store
	acquirer   Acquirer
	codeLength int
	now        clock.Source
	flights    singleflight.Group
	log        *slog.Logger
}

func NewService(store Store, acquirer Acquirer, codeLength int, now clock.Source, logger *slog.Logger) *Service {
	if codeLength < 1 {
		codeLength = 16
	}
	if now == nil {
		now = clock.System()
	}
	return &Service{
		store:      store,
		acquirer:   acquirer,
		codeLength: codeLength,
		now:        now,
		log:        logger.With(sl.Module("keycard")),
	}
}

// Activate redeems a code. A used card replays its stored coupons with
// no side effects; a fresh card triggers acquisition and, on a
// non-empty harvest, commits the transition atomically. Activations of
// the same code are collapsed into one flight so a fresh code never
// causes duplicate upstream calls.
func (s *Service) Activate(ctx context.Context, code, credential, ownerRef string) (*entity.AcquisitionResult, error) {
	log := s.log.With(sl.Secret("code", code), sl.Secret("credential", credential))

	card, err := s.store.FindByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("find card: %w", err)
	}
	if card == nil {
		return nil, ErrCodeNotFound
	}
	if card.IsUsed() {
		log.Debug("replaying used card")
		return &entity.AcquisitionResult{Card: card, Coupons: card.Coupons, Replayed: true}, nil
	}

	v, err, shared := s.flights.Do(code, func() (interface{}, error) {
		return s.activateFresh(ctx, code, credential, ownerRef)
	})
	if err != nil {
		return nil, err
	}
	res := v.(*entity.AcquisitionResult)
	if shared {
		log.Debug("activation joined in-flight attempt")
	}
	return res, nil
}

func (s *Service) activateFresh(ctx context.Context, code, credential, ownerRef string) (*entity.AcquisitionResult, error) {
	log := s.log.With(sl.Secret("code", code))

	coupons := s.acquirer.AcquireAll(ctx, credential)
	if len(coupons) == 0 {
		log.Info("no coupons acquired, card stays unused")
		return nil, ErrAcquisitionFailed
	}

	firstUse := s.now()
	committed, err := s.store.ActivateCard(ctx, code, credential, ownerRef, coupons, firstUse)
	if err != nil {
		return nil, fmt.Errorf("commit activation: %w", err)
	}
	if !committed {
		// Lost the race: some other activation flipped the card first.
		// Its committed coupons are the truth; ours are discarded.
		card, err := s.store.FindByCode(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("find card after lost race: %w", err)
		}
		if card == nil || !card.IsUsed() {
			return nil, ErrCodeNotFound
		}
		log.Warn("activation lost commit race, replaying winner")
		return &entity.AcquisitionResult{Card: card, Coupons: card.Coupons, Replayed: true}, nil
	}

	card, err := s.store.FindByCode(ctx, code)
	if err != nil || card == nil {
		// The commit went through; reread is cosmetic.
		card = &entity.KeyCard{Code: code, Status: entity.StatusUsed, Credential: credential, OwnerRef: ownerRef, Coupons: coupons, FirstUseTime: &firstUse}
	}
	log.Info("card activated", slog.Int("coupons", len(coupons)))
	return &entity.AcquisitionResult{Card: card, Coupons: coupons}, nil
}

// CreateBatch issues a named batch of count fresh cards. Colliding
// codes are regenerated within a bounded number of rounds; when the
// store still holds fewer cards than requested the batch is returned
// together with ErrBatchIncomplete instead of hiding the gap.
func (s *Service) CreateBatch(ctx context.Context, name string, count int) (*entity.Batch, error) {
	if count < 1 {
		return nil, fmt.Errorf("batch count must be at least 1, got %d", count)
	}
	log := s.log.With(slog.String("batch", name), slog.Int("count", count))

	batch := &entity.Batch{
		ID:        uuid.NewString(),
		Name:      name,
		Count:     count,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}

	inserted := 0
	for round := 0; round < maxInsertRounds && inserted < count; round++ {
		cards, err := s.buildCards(batch, count-inserted)
		if err != nil {
			return batch, fmt.Errorf("generate codes: %w", err)
		}
		n, err := s.store.BulkInsertKeyCards(ctx, cards)
		inserted += n
		if err != nil {
			log.Error("bulk insert failed", sl.Err(err), slog.Int("inserted", inserted))
			break
		}
	}
	if inserted < count {
		log.Warn("batch incomplete", slog.Int("inserted", inserted))
		return batch, fmt.Errorf("%w: %d of %d cards stored", ErrBatchIncomplete, inserted, count)
	}
	log.Info("batch created")
	return batch, nil
}

func (s *Service) buildCards(batch *entity.Batch, n int) ([]*entity.KeyCard, error) {
	cards := make([]*entity.KeyCard, 0, n)
	seen := make(map[string]bool, n)
	for len(cards) < n {
		code, err := GenerateCode(s.codeLength)
		if err != nil {
			return nil, err
		}
		if seen[code] {
			continue
		}
		seen[code] = true
		cards = append(cards, &entity.KeyCard{
			ID:        uuid.NewString(),
			Code:      code,
			Status:    entity.StatusUnused,
			BatchID:   batch.ID,
			CreatedAt: s.now(),
		})
	}
	return cards, nil
}

func (s *Service) Batches(ctx context.Context) ([]*entity.Batch, error) {
	return s.store.ListBatches(ctx)
}

func (s *Service) KeyCardsByBatch(ctx context.Context, batchId string) ([]*entity.KeyCard, error) {
	return s.store.ListByBatch(ctx, batchId)
}

func (s *Service) KeyCardsByStatus(ctx context.Context, status entity.KeyCardStatus) ([]*entity.KeyCard, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("unknown status %q", status)
	}
	return s.store.ListByStatus(ctx, status)
}

func (s *Service) KeyCardInfo(ctx context.Context, code string) (*entity.KeyCard, error) {
	card, err := s.store.FindByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("find card: %w", err)
	}
	if card == nil {
		return nil, ErrCodeNotFound
	}
	return card, nil
}
