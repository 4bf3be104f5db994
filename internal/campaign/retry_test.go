package campaign

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_Run(t *testing.T) {
	testCases := []struct {
		name         string
		maxAttempts  int
		succeedOn    int // 1-based attempt that succeeds, 0 = never
		wantAttempts int
		wantOk       bool
	}{
		{name: "first attempt succeeds", maxAttempts: 3, succeedOn: 1, wantAttempts: 1, wantOk: true},
		{name: "succeeds on last attempt", maxAttempts: 3, succeedOn: 3, wantAttempts: 3, wantOk: true},
		{name: "budget exhausted", maxAttempts: 3, succeedOn: 0, wantAttempts: 3, wantOk: false},
		{name: "zero budget treated as one", maxAttempts: 0, succeedOn: 0, wantAttempts: 1, wantOk: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := RetryPolicy{MaxAttempts: tc.maxAttempts}
			attempts, ok := p.Run(context.Background(), func(n int) Result {
				if tc.succeedOn > 0 && n+1 == tc.succeedOn {
					return Success
				}
				return Retry
			})
			assert.Equal(t, tc.wantAttempts, attempts)
			assert.Equal(t, tc.wantOk, ok)
		})
	}
}

func TestRetryPolicy_Run_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := RetryPolicy{MaxAttempts: 5}
	attempts, ok := p.Run(ctx, func(int) Result { return Retry })
	assert.Zero(t, attempts)
	assert.False(t, ok)
}
