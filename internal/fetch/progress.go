package fetch

// Indeterminate is reported once, when enabled, for bodies of unknown length.
const Indeterminate = -1

// UnknownLengthPolicy selects what is reported when the server does not
// declare a content length.
type UnknownLengthPolicy int

const (
	// UnknownSuppress reports no progress at all.
	UnknownSuppress UnknownLengthPolicy = iota
	// UnknownIndeterminate reports Indeterminate once, when the first bytes
	// arrive.
	UnknownIndeterminate
)

// ParseUnknownLengthPolicy maps a settings value to a policy. Unrecognised
// values suppress progress.
func ParseUnknownLengthPolicy(s string) UnknownLengthPolicy {
	if s == "indeterminate" {
		return UnknownIndeterminate
	}
	return UnknownSuppress
}

func (p UnknownLengthPolicy) String() string {
	if p == UnknownIndeterminate {
		return "indeterminate"
	}
	return "suppress"
}

// progress turns byte counts into percentages worth reporting.
type progress struct {
	read     int64
	total    int64
	policy   UnknownLengthPolicy
	last     int
	reported bool
}

func newProgress(total int64, policy UnknownLengthPolicy) *progress {
	return &progress{total: total, policy: policy}
}

// advance records n more bytes and returns a percentage if one should be
// reported.
func (p *progress) advance(n int) (int, bool) {
	p.read += int64(n)
	switch {
	case p.total < 0:
		if p.policy == UnknownIndeterminate && !p.reported {
			return p.mark(Indeterminate)
		}
		return 0, false
	case p.total == 0:
		return 0, false
	}

	percent := int(p.read * 100 / p.total)
	if percent > 100 {
		percent = 100
	}
	if p.reported && percent == p.last {
		return 0, false
	}
	return p.mark(percent)
}

// finish returns the final percentage for empty bodies, which never reach
// advance with a known total.
func (p *progress) finish() (int, bool) {
	if p.total == 0 && !p.reported {
		return p.mark(100)
	}
	return 0, false
}

func (p *progress) mark(percent int) (int, bool) {
	p.last = percent
	p.reported = true
	return percent, true
}
