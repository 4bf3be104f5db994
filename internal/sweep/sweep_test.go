package sweep

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keycards/entity"
)

type stubStore struct {
	cards []*entity.KeyCard
	err   error
}

func (s *stubStore) ListWithCredential(_ context.Context) ([]*entity.KeyCard, error) {
	return s.cards, s.err
}

type stubAcquirer struct {
	mu     sync.Mutex
	byCred map[string][]entity.Coupon
	calls  atomic.Int32
}

func (s *stubAcquirer) AcquireAll(_ context.Context, credential string) []entity.Coupon {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byCred[credential]
}

type stubSink struct {
	mu      sync.Mutex
	title   string
	content string
	sent    int
	err     error
}

func (s *stubSink) Send(_ context.Context, title, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent++
	s.title = title
	s.content = content
	return s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func usedCard(code, credential, owner string) *entity.KeyCard {
	return &entity.KeyCard{
		Code:       code,
		Status:     entity.StatusUsed,
		Credential: credential,
		OwnerRef:   owner,
	}
}

func TestJob_Run(t *testing.T) {
	coupon := entity.Coupon{Text: "Re|30-5", Color: "text-green-600", User: "138****0001"}
	store := &stubStore{cards: []*entity.KeyCard{
		usedCard("CARD1", "cred-1", "user1"),
		usedCard("CARD2", "cred-2", "user2"),
		usedCard("CARD3", "cred-3", "user3"),
	}}
	acq := &stubAcquirer{byCred: map[string][]entity.Coupon{
		"cred-1": {coupon},
		"cred-3": {coupon},
	}}
	sink := &stubSink{}
	job := NewJob(store, acq, sink, 2, testLogger())

	require.NoError(t, job.Run())

	assert.Equal(t, int32(3), acq.calls.Load())
	assert.Equal(t, 1, sink.sent)
	assert.Equal(t, "2 owners re-acquired coupons", sink.title)

	owners := strings.Split(sink.content, "\n")
	sort.Strings(owners)
	assert.Equal(t, []string{"user1", "user3"}, owners)

	// stored cards are never mutated by a sweep
	for _, card := range store.cards {
		assert.Empty(t, card.Coupons)
		assert.Equal(t, entity.StatusUsed, card.Status)
	}
}

func TestJob_Run_NoSinkIsNoOp(t *testing.T) {
	store := &stubStore{cards: []*entity.KeyCard{usedCard("CARD1", "cred-1", "user1")}}
	acq := &stubAcquirer{}
	job := NewJob(store, acq, nil, 2, testLogger())

	require.NoError(t, job.Run())
	assert.Zero(t, acq.calls.Load(), "missing sink makes the run a silent no-op")
}

func TestJob_Run_SinkFailureSwallowed(t *testing.T) {
	store := &stubStore{cards: []*entity.KeyCard{usedCard("CARD1", "cred-1", "user1")}}
	acq := &stubAcquirer{byCred: map[string][]entity.Coupon{
		"cred-1": {{Text: "Re|30-5", Color: "text-green-600", User: "138****0001"}},
	}}
	sink := &stubSink{err: errors.New("webhook down")}
	job := NewJob(store, acq, sink, 1, testLogger())

	assert.NoError(t, job.Run(), "report delivery failure never fails the sweep")
	assert.Equal(t, 1, sink.sent)
}

func TestJob_Run_StoreError(t *testing.T) {
	store := &stubStore{err: errors.New("mongo down")}
	job := NewJob(store, &stubAcquirer{}, &stubSink{}, 1, testLogger())
	assert.Error(t, job.Run())
}

func TestJob_Name(t *testing.T) {
	assert.Equal(t, "coupon-sweep", NewJob(&stubStore{}, &stubAcquirer{}, &stubSink{}, 1, testLogger()).Name())
}
