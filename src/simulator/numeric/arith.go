package numeric

import (
	"math"
	"math/bits"
)

// Frac is the number of fractional bits of the internal signed fixed-point
// representation used by every engine datapath.
const Frac = 24

// One is 1.0 in the internal representation.
const One int64 = 1 << Frac

// ln2 is round(ln(2) * 2^24).
const ln2 int64 = 11629080

const (
	expTerms = 10
	// exp(-18) is below the internal resolution.
	expFloor   = -18 * One
	expCeiling = 38 * One
)

// FromFloat64 converts to the internal representation with round-to-nearest
// and saturation. NaN maps to zero.
func FromFloat64(x float64) int64 {
	if math.IsNaN(x) {
		return 0
	}
	scaled := math.Round(x * float64(One))
	if scaled >= math.MaxInt64 {
		return math.MaxInt64
	}
	if scaled <= math.MinInt64 {
		return math.MinInt64
	}
	return int64(scaled)
}

func ToFloat64(v int64) float64 {
	return float64(v) / float64(One)
}

// SatAdd adds with saturation at the int64 bounds.
func SatAdd(a, b int64) int64 {
	s := a + b
	if a > 0 && b > 0 && s < 0 {
		return math.MaxInt64
	}
	if a < 0 && b < 0 && s >= 0 {
		return math.MinInt64
	}
	return s
}

// SatMul multiplies two integers with saturation.
func SatMul(a, b int64) int64 {
	hi, lo := bits.Mul64(absU(a), absU(b))
	return signed(hi != 0 || lo > math.MaxInt64, lo, (a < 0) != (b < 0))
}

// Mul multiplies two internal fixed-point values, rounding to nearest and
// saturating.
func Mul(a, b int64) int64 {
	hi, lo := bits.Mul64(absU(a), absU(b))
	lo, carry := bits.Add64(lo, uint64(1)<<(Frac-1), 0)
	hi += carry

	q := hi<<(64-Frac) | lo>>Frac
	overflow := hi>>Frac != 0 || q > math.MaxInt64
	return signed(overflow, q, (a < 0) != (b < 0))
}

// Recip returns 1/v. Non-positive input saturates.
func Recip(v int64) int64 {
	if v <= 0 {
		return math.MaxInt64
	}
	return (One << Frac) / v
}

// Sqrt returns the square root of a non-negative internal value; negative
// input yields zero.
func Sqrt(v int64) int64 {
	if v <= 0 {
		return 0
	}

	// sqrt(v * 2^Frac), trading low bits for headroom when v is large.
	k := Frac
	lost := 0
	for bits.Len64(uint64(v))+k > 63 {
		k -= 2
		lost++
	}
	return int64(isqrt(uint64(v)<<uint(k))) << uint(lost)
}

// RecipSqrt returns 1/sqrt(v).
func RecipSqrt(v int64) int64 {
	return Recip(Sqrt(v))
}

// Exp returns e^d. Results below the internal resolution flush to zero and
// large arguments saturate.
func Exp(d int64) int64 {
	if d < expFloor {
		return 0
	}
	if d > expCeiling {
		return math.MaxInt64
	}

	// d = k*ln2 + r, r in [0, ln2)
	k := d / ln2
	if d%ln2 != 0 && d < 0 {
		k--
	}
	r := d - k*ln2

	acc := One
	for n := int64(expTerms); n >= 1; n-- {
		acc = One + Mul(r, acc)/n
	}

	if k >= 0 {
		if bits.Len64(uint64(acc))+int(k) > 62 {
			return math.MaxInt64
		}
		return acc << uint(k)
	}
	return RoundShift(acc, int(-k))
}

// RoundShift divides by 2^shift rounding to nearest. A negative shift
// multiplies with saturation.
func RoundShift(v int64, shift int) int64 {
	if shift <= 0 {
		if shift <= -63 {
			return signed(v != 0, 0, v < 0)
		}
		return SatMul(v, int64(1)<<uint(-shift))
	}
	if shift >= 63 {
		return 0
	}
	return SatAdd(v, int64(1)<<uint(shift-1)) >> uint(shift)
}

// SignExtend interprets the low width bits of word as two's complement.
func SignExtend(word uint32, width int) int64 {
	shift := uint(64 - width)
	return int64(uint64(word)<<shift) >> shift
}

// IntRange is the signed range of a width-bit integer.
func IntRange(width int) (int64, int64) {
	return -(int64(1) << uint(width-1)), int64(1)<<uint(width-1) - 1
}

// Clamp bounds v to [lo, hi] and reports whether it had to.
func Clamp(v, lo, hi int64) (int64, bool) {
	if v > hi {
		return hi, true
	}
	if v < lo {
		return lo, true
	}
	return v, false
}

// Truncate keeps the low width bits of v as a storage word.
func Truncate(v int64, width int) uint32 {
	return uint32(uint64(v) & (uint64(1)<<uint(width) - 1))
}

func absU(v int64) uint64 {
	if v < 0 {
		return uint64(-v)
	}
	return uint64(v)
}

func signed(overflow bool, magnitude uint64, negative bool) int64 {
	if overflow {
		if negative {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	if negative {
		return -int64(magnitude)
	}
	return int64(magnitude)
}

func isqrt(n uint64) uint64 {
	var r uint64
	bit := uint64(1) << 62
	for bit > n {
		bit >>= 2
	}
	for bit != 0 {
		if n >= r+bit {
			n -= r + bit
			r = r>>1 + bit
		} else {
			r >>= 1
		}
		bit >>= 2
	}
	return r
}
