package ingest

// guard.go implements the size and quota accounting applied to every file
// an ingestion call produces.
//
// Limits are nullable: the zero Limit means "unlimited". A QuotaState is
// scoped to one Ingest call and only ever moves downward. Abandoning an
// unpack attempt never rolls a QuotaState back; the orchestrator replaces it
// with a fresh one instead.

import "fmt"

// Limit is an optional byte ceiling. The zero value is unlimited.
type Limit struct {
	bytes int64
	set   bool
}

// Unlimited returns a Limit that never rejects.
func Unlimited() Limit {
	return Limit{}
}

// MaxBytes returns a Limit of n bytes. Negative values are clamped to zero.
func MaxBytes(n int64) Limit {
	if n < 0 {
		n = 0
	}
	return Limit{bytes: n, set: true}
}

// IsSet reports whether the limit is enforced.
func (l Limit) IsSet() bool {
	return l.set
}

// Bytes returns the ceiling and whether it is enforced.
func (l Limit) Bytes() (int64, bool) {
	return l.bytes, l.set
}

// Exceeded reports whether size is over the limit.
func (l Limit) Exceeded(size int64) bool {
	return l.set && size > l.bytes
}

func (l Limit) String() string {
	if !l.set {
		return "unlimited"
	}
	return fmt.Sprintf("%d bytes", l.bytes)
}

// Decision is the Guard's verdict for one candidate size.
type Decision int

const (
	Admit Decision = iota
	RejectSize
	RejectQuota
)

func (d Decision) String() string {
	switch d {
	case Admit:
		return "admit"
	case RejectSize:
		return "reject_size"
	case RejectQuota:
		return "reject_quota"
	default:
		return "unknown"
	}
}

// QuotaState tracks the bytes still available to one ingestion call.
type QuotaState struct {
	ceiling   Limit
	remaining int64
	admitted  int64
}

// NewQuotaState starts a tracker from ceiling. An unset ceiling disables
// quota tracking; admitted bytes are still counted.
func NewQuotaState(ceiling Limit) *QuotaState {
	return &QuotaState{
		ceiling:   ceiling,
		remaining: ceiling.bytes,
	}
}

// Enabled reports whether quota is being enforced.
func (q *QuotaState) Enabled() bool {
	return q != nil && q.ceiling.set
}

// Remaining returns the bytes left and whether tracking is enabled.
func (q *QuotaState) Remaining() (int64, bool) {
	if !q.Enabled() {
		return 0, false
	}
	return q.remaining, true
}

// Admitted returns the sum of all sizes admitted against this state.
func (q *QuotaState) Admitted() int64 {
	if q == nil {
		return 0
	}
	return q.admitted
}

// Ceiling returns the limit the state started from.
func (q *QuotaState) Ceiling() Limit {
	if q == nil {
		return Unlimited()
	}
	return q.ceiling
}

// Fresh returns a new, untouched state with the same ceiling.
func (q *QuotaState) Fresh() *QuotaState {
	return NewQuotaState(q.Ceiling())
}

// Guard decides whether a file of size bytes may be admitted. On Admit the
// quota is decremented by size. A zero-byte file is always admitted.
func Guard(size int64, sizeLimit Limit, quota *QuotaState) Decision {
	if size <= 0 {
		return Admit
	}
	if sizeLimit.Exceeded(size) {
		return RejectSize
	}
	if quota.Enabled() && size > quota.remaining {
		return RejectQuota
	}
	if quota != nil {
		if quota.Enabled() {
			quota.remaining -= size
		}
		quota.admitted += size
	}
	return Admit
}

// bound returns the largest size that could still be admitted under
// sizeLimit and quota, for cutting off a stream early.
func bound(sizeLimit Limit, quota *QuotaState) Limit {
	b := sizeLimit
	if remaining, ok := quota.Remaining(); ok {
		if !b.set || remaining < b.bytes {
			b = MaxBytes(remaining)
		}
	}
	return b
}

// rejection classifies a size that overflowed bound.
func rejection(size int64, sizeLimit Limit) Decision {
	if sizeLimit.Exceeded(size) {
		return RejectSize
	}
	return RejectQuota
}
