package media

import (
	"fmt"
	"math"
)

// NoPTS marks an unset timestamp, mirroring AV_NOPTS_VALUE.
const NoPTS int64 = math.MinInt64

// Rational is a time base or ratio expressed as Num/Den.
type Rational struct {
	Num int
	Den int
}

// NewRational creates a rational number.
func NewRational(num, den int) Rational {
	return Rational{Num: num, Den: den}
}

// Valid reports whether both terms are non-zero.
func (r Rational) Valid() bool {
	return r.Num != 0 && r.Den != 0
}

// Float returns the value as float64, or 0 for an invalid rational.
func (r Rational) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// Seconds converts a timestamp expressed in r units to seconds.
func (r Rational) Seconds(ts int64) float64 {
	if ts == NoPTS {
		return 0
	}
	return float64(ts) * r.Float()
}

// FromSeconds converts seconds to the nearest timestamp in r units.
func (r Rational) FromSeconds(sec float64) int64 {
	if !r.Valid() {
		return 0
	}
	return int64(math.Round(sec * float64(r.Den) / float64(r.Num)))
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}
