package index

// FailureRate is the read-only projection of Stats used for health decisions.
// Reduce fields are nil, not zero, when the index is not map-reduce.
type FailureRate struct {
	Attempts  int64
	Errors    int64
	Successes int64

	ReduceAttempts  *int64
	ReduceErrors    *int64
	ReduceSuccesses *int64
}

// FailurePolicy decides when an index is failing badly enough to disable.
type FailurePolicy struct {
	// MinAttempts is the number of attempts required before judging.
	MinAttempts int64
	// MaxRate is the tolerated share of errors, in [0, 1].
	MaxRate float64
}

// DefaultFailurePolicy requires 100 attempts and tolerates 15% errors.
var DefaultFailurePolicy = FailurePolicy{MinAttempts: 100, MaxRate: 0.15}

// TotalAttempts sums map and reduce attempts.
func (f FailureRate) TotalAttempts() int64 {
	n := f.Attempts
	if f.ReduceAttempts != nil {
		n += *f.ReduceAttempts
	}
	return n
}

// TotalErrors sums map and reduce errors.
func (f FailureRate) TotalErrors() int64 {
	n := f.Errors
	if f.ReduceErrors != nil {
		n += *f.ReduceErrors
	}
	return n
}

// Rate returns errors over attempts across both phases, 0 with no attempts.
func (f FailureRate) Rate() float64 {
	attempts := f.TotalAttempts()
	if attempts == 0 {
		return 0
	}
	return float64(f.TotalErrors()) / float64(attempts)
}

// IsInvalid reports whether the index crossed the policy's error threshold.
func (f FailureRate) IsInvalid(p FailurePolicy) bool {
	if f.TotalAttempts() < p.MinAttempts {
		return false
	}
	return f.Rate() > p.MaxRate
}
