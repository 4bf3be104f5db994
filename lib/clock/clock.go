package clock

import "time"

const layout = "2006-01-02T15:04:05Z"

// Source yields the current time. Components that stamp records take a
// Source instead of calling time.Now directly so a tick is triggerable
// in tests.
type Source func() time.Time

func System() Source {
	return time.Now
}

// Now is the timestamp format used in API response envelopes.
func Now() string {
	return time.Now().UTC().Format(layout)
}

func Format(t time.Time) string {
	return t.UTC().Format(layout)
}
