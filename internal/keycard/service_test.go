package keycard

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keycards/entity"
)

type fakeStore struct {
	mu          sync.Mutex
	cards       map[string]*entity.KeyCard
	batches     []*entity.Batch
	commits     int
	insertLimit int // cap on total stored cards, simulates partial bulk inserts; 0 = unlimited
}

func newFakeStore() *fakeStore {
	return &fakeStore{cards: make(map[string]*entity.KeyCard)}
}

func (f *fakeStore) FindByCode(_ context.Context, code string) (*entity.KeyCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	card, ok := f.cards[code]
	if !ok {
		return nil, nil
	}
	cp := *card
	return &cp, nil
}

func (f *fakeStore) ListBatches(_ context.Context) ([]*entity.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*entity.Batch{}, f.batches...), nil
}

func (f *fakeStore) ListByBatch(_ context.Context, batchId string) ([]*entity.KeyCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.KeyCard
	for _, c := range f.cards {
		if c.BatchID == batchId {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) ListByStatus(_ context.Context, status entity.KeyCardStatus) ([]*entity.KeyCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.KeyCard
	for _, c := range f.cards {
		if c.Status == status {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateBatch(_ context.Context, batch *entity.Batch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeStore) BulkInsertKeyCards(_ context.Context, cards []*entity.KeyCard) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inserted := 0
	for _, c := range cards {
		if f.insertLimit > 0 && len(f.cards) >= f.insertLimit {
			continue
		}
		if _, dup := f.cards[c.Code]; dup {
			continue
		}
		cp := *c
		f.cards[c.Code] = &cp
		inserted++
	}
	return inserted, nil
}

func (f *fakeStore) ActivateCard(_ context.Context, code, credential, ownerRef string, coupons []entity.Coupon, firstUse time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	card, ok := f.cards[code]
	if !ok || card.Status != entity.StatusUnused {
		return false, nil
	}
	card.Status = entity.StatusUsed
	card.Credential = credential
	card.OwnerRef = ownerRef
	card.Coupons = coupons
	card.FirstUseTime = &firstUse
	f.commits++
	return true, nil
}

func (f *fakeStore) seedUnused(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cards[code] = &entity.KeyCard{
		ID:        code + "-id",
		Code:      code,
		Status:    entity.StatusUnused,
		CreatedAt: time.Now(),
	}
}

type fakeAcquirer struct {
	coupons []entity.Coupon
	calls   atomic.Int32
	delay   time.Duration
}

func (f *fakeAcquirer) AcquireAll(_ context.Context, _ string) []entity.Coupon {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.coupons
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestService_Activate(t *testing.T) {
	twoCoupons := []entity.Coupon{
		{Text: "Lunch|30-5", Color: "text-green-600", User: "138****0001"},
		{Text: "Dinner|50-8", Color: "text-green-600", User: "138****0001"},
	}

	testCases := []struct {
		name        string
		seed        func(store *fakeStore)
		acquirer    *fakeAcquirer
		code        string
		wantErr     error
		wantCoupons []entity.Coupon
		wantReplay  bool
	}{
		{
			name:     "unknown code",
			seed:     func(_ *fakeStore) {},
			acquirer: &fakeAcquirer{},
			code:     "NOSUCHCODE123456",
			wantErr:  ErrCodeNotFound,
		},
		{
			name: "fresh card, coupons acquired",
			seed: func(store *fakeStore) {
				store.seedUnused("FRESHCODE1234567")
			},
			acquirer:    &fakeAcquirer{coupons: twoCoupons},
			code:        "FRESHCODE1234567",
			wantCoupons: twoCoupons,
		},
		{
			name: "fresh card, all sources empty",
			seed: func(store *fakeStore) {
				store.seedUnused("EMPTYHARVEST1234")
			},
			acquirer: &fakeAcquirer{},
			code:     "EMPTYHARVEST1234",
			wantErr:  ErrAcquisitionFailed,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore()
			tc.seed(store)
			svc := NewService(store, tc.acquirer, 16, nil, testLogger())

			res, err := svc.Activate(context.Background(), tc.code, "cred-1", "user1")
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantCoupons, res.Coupons)
			assert.Equal(t, tc.wantReplay, res.Replayed)
		})
	}
}

func TestService_Activate_FailureLeavesCardRetryable(t *testing.T) {
	store := newFakeStore()
	store.seedUnused("RETRYABLE1234567")
	acq := &fakeAcquirer{}
	svc := NewService(store, acq, 16, nil, testLogger())

	_, err := svc.Activate(context.Background(), "RETRYABLE1234567", "cred-1", "user1")
	require.ErrorIs(t, err, ErrAcquisitionFailed)

	card, err := store.FindByCode(context.Background(), "RETRYABLE1234567")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusUnused, card.Status)
	assert.Nil(t, card.FirstUseTime)

	// the card is not short-circuited as used: a later attempt may succeed
	acq.coupons = []entity.Coupon{{Text: "Late|20-3", Color: "text-green-600", User: "139****0002"}}
	res, err := svc.Activate(context.Background(), "RETRYABLE1234567", "cred-1", "user1")
	require.NoError(t, err)
	assert.Len(t, res.Coupons, 1)
}

func TestService_Activate_Idempotent(t *testing.T) {
	store := newFakeStore()
	store.seedUnused("IDEMPOTENT123456")
	coupons := []entity.Coupon{{Text: "Brunch|40-6", Color: "text-green-600", User: "137****0003"}}
	acq := &fakeAcquirer{coupons: coupons}
	svc := NewService(store, acq, 16, nil, testLogger())

	first, err := svc.Activate(context.Background(), "IDEMPOTENT123456", "cred-1", "user1")
	require.NoError(t, err)
	second, err := svc.Activate(context.Background(), "IDEMPOTENT123456", "cred-1", "user1")
	require.NoError(t, err)

	assert.Equal(t, first.Coupons, second.Coupons)
	assert.False(t, first.Replayed)
	assert.True(t, second.Replayed)
	assert.Equal(t, int32(1), acq.calls.Load(), "replay must not re-trigger acquisition")
}

func TestService_Activate_UsedCardInvariant(t *testing.T) {
	store := newFakeStore()
	store.seedUnused("INVARIANT1234567")
	acq := &fakeAcquirer{coupons: []entity.Coupon{{Text: "Tea|15-2", Color: "text-green-600", User: "136****0004"}}}
	svc := NewService(store, acq, 16, nil, testLogger())

	_, err := svc.Activate(context.Background(), "INVARIANT1234567", "cred-9", "owner-9")
	require.NoError(t, err)

	card, err := store.FindByCode(context.Background(), "INVARIANT1234567")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusUsed, card.Status)
	require.NotNil(t, card.FirstUseTime)
	assert.NotEmpty(t, card.Coupons)
	assert.Equal(t, "cred-9", card.Credential)
	assert.Equal(t, "owner-9", card.OwnerRef)
}

func TestService_Activate_ConcurrentSingleCommit(t *testing.T) {
	store := newFakeStore()
	store.seedUnused("CONCURRENT123456")
	acq := &fakeAcquirer{
		coupons: []entity.Coupon{{Text: "Race|25-4", Color: "text-green-600", User: "135****0005"}},
		delay:   20 * time.Millisecond,
	}
	svc := NewService(store, acq, 16, nil, testLogger())

	const n = 10
	results := make([]*entity.AcquisitionResult, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Activate(context.Background(), "CONCURRENT123456", fmt.Sprintf("cred-%d", i), "user1")
		}(i)
	}
	wg.Wait()

	store.mu.Lock()
	commits := store.commits
	store.mu.Unlock()
	assert.Equal(t, 1, commits, "exactly one unused->used transition")

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].Coupons, results[i].Coupons, "all callers see the one committed coupon set")
	}
}

func TestService_CreateBatch(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, &fakeAcquirer{}, 16, nil, testLogger())

	b, err := svc.CreateBatch(context.Background(), "spring-promo", 5)
	require.NoError(t, err)
	assert.Equal(t, "spring-promo", b.Name)
	assert.Equal(t, 5, b.Count)

	cards, err := store.ListByBatch(context.Background(), b.ID)
	require.NoError(t, err)
	require.Len(t, cards, 5)

	codes := make(map[string]bool)
	for _, card := range cards {
		assert.Equal(t, entity.StatusUnused, card.Status)
		assert.Len(t, card.Code, 16)
		codes[card.Code] = true
	}
	assert.Len(t, codes, 5, "codes must be unique")
}

func TestService_CreateBatch_InvalidCount(t *testing.T) {
	svc := NewService(newFakeStore(), &fakeAcquirer{}, 16, nil, testLogger())
	_, err := svc.CreateBatch(context.Background(), "empty", 0)
	assert.Error(t, err)
}

func TestService_CreateBatch_PartialInsertSurfaced(t *testing.T) {
	store := newFakeStore()
	store.insertLimit = 3
	svc := NewService(store, &fakeAcquirer{}, 16, nil, testLogger())

	b, err := svc.CreateBatch(context.Background(), "short-batch", 5)
	require.ErrorIs(t, err, ErrBatchIncomplete)
	require.NotNil(t, b, "the batch record still exists, degraded")
	assert.Equal(t, 5, b.Count)

	cards, listErr := store.ListByBatch(context.Background(), b.ID)
	require.NoError(t, listErr)
	assert.Len(t, cards, 3)
}
