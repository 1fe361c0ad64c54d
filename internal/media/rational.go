package media

import (
	"fmt"
	"strconv"
	"strings"
)

// Rational is a non-negative frame-rate fraction as reported by the media
// toolchain, e.g. "30/1" or "30000/1001". Only explicit "p/q" and bare
// integer forms are accepted; anything else is rejected rather than
// evaluated.
type Rational struct {
	Num int64
	Den int64
}

// ParseRational parses "p/q" with non-negative integer p and positive
// integer q, or a bare non-negative integer.
func ParseRational(s string) (Rational, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Rational{}, fmt.Errorf("empty rational")
	}

	numStr, denStr, hasDen := strings.Cut(s, "/")
	num, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil || num < 0 {
		return Rational{}, fmt.Errorf("invalid rational %q", s)
	}
	if !hasDen {
		return Rational{Num: num, Den: 1}, nil
	}

	den, err := strconv.ParseInt(denStr, 10, 64)
	if err != nil || den <= 0 {
		return Rational{}, fmt.Errorf("invalid rational %q", s)
	}
	return Rational{Num: num, Den: den}, nil
}

// Float returns the rational as a float64; zero when undefined.
func (r Rational) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// IsZero reports whether the rational is unset or zero.
func (r Rational) IsZero() bool {
	return r.Num == 0
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}
