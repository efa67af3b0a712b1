package ratelimit

import "time"

// Result describes a single admission decision for one identifier.
type Result struct {
	Admitted  bool      `json:"admitted"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
	// FailOpen is set when the counting store could not be reached and the
	// request was admitted without being counted.
	FailOpen bool `json:"-"`
}

// RetryAfter returns the whole seconds a rejected client should wait, at least 1.
func (r Result) RetryAfter(now time.Time) int {
	secs := int(r.ResetAt.Sub(now).Round(time.Second) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// Policy is the request budget applied to one bucket.
type Policy struct {
	Limit  int
	Window time.Duration
}

func (p Policy) Valid() bool {
	return p.Limit > 0 && p.Window > 0
}
