package campaign

import "context"

// Result classifies one attempt. There is no terminal failure in this
// protocol: anything short of success is worth another try while the
// budget lasts.
type Result int

const (
	Success Result = iota
	Retry
)

// RetryPolicy bounds a retried operation. MaxAttempts counts the first
// try, so maxRetries extra tries mean MaxAttempts = maxRetries + 1.
type RetryPolicy struct {
	MaxAttempts int
}

// Run invokes attempt until it reports Success, the budget runs out or
// the context is done. Returns the number of attempts made and whether
// the last one succeeded.
func (p RetryPolicy) Run(ctx context.Context, attempt func(n int) Result) (int, bool) {
	budget := p.MaxAttempts
	if budget < 1 {
		budget = 1
	}
	for n := 0; n < budget; n++ {
		if ctx.Err() != nil {
			return n, false
		}
		if attempt(n) == Success {
			return n + 1, true
		}
	}
	return budget, false
}
