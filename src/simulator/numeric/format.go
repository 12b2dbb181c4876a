package numeric

import (
	"fmt"
	"math"

	"NMPulator/src/simulator/codec"

	"github.com/x448/float16"
)

// Format describes how a lane storage word maps to a real value. Engines
// convert lanes to the internal representation on read and back on
// write-back.
type Format interface {
	// Bits is the lane width in bits.
	Bits() int
	Name() string
	ToInternal(word uint32) int64
	// FromInternal rounds and saturates; the bool reports saturation.
	FromInternal(v int64) (uint32, bool)
}

// Fixed is a two's-complement fixed-point lane with frac fractional bits.
type Fixed struct {
	bits int
	frac int
}

// NewFixed panics on a width other than 8, 16 or 32 or on a fraction that
// does not fit the width or the internal representation.
func NewFixed(width, frac int) Fixed {
	if width != 8 && width != 16 && width != 32 {
		err := fmt.Errorf("fixed lane width %d is not supported", width)
		panic(err)
	}
	if frac < 0 || frac >= width || frac > Frac {
		err := fmt.Errorf("fixed lane fraction %d does not fit width %d", frac, width)
		panic(err)
	}
	return Fixed{bits: width, frac: frac}
}

func (f Fixed) Bits() int {
	return f.bits
}

func (f Fixed) FracBits() int {
	return f.frac
}

func (f Fixed) Name() string {
	return fmt.Sprintf("Q%d.%d", f.bits-f.frac, f.frac)
}

func (f Fixed) ToInternal(word uint32) int64 {
	return SignExtend(word, f.bits) << uint(Frac-f.frac)
}

func (f Fixed) FromInternal(v int64) (uint32, bool) {
	lo, hi := IntRange(f.bits)
	r, saturated := Clamp(RoundShift(v, Frac-f.frac), lo, hi)
	return Truncate(r, f.bits), saturated
}

// Half is an IEEE-754 binary16 lane.
type Half struct{}

func (Half) Bits() int {
	return 16
}

func (Half) Name() string {
	return "fp16"
}

func (Half) ToInternal(word uint32) int64 {
	h := float16.Frombits(uint16(word))
	if h.IsNaN() {
		return 0
	}
	return FromFloat64(float64(h.Float32()))
}

func (Half) FromInternal(v int64) (uint32, bool) {
	h := float16.Fromfloat32(float32(ToFloat64(v)))
	if h.IsInf(0) {
		maxHalf := float16.Fromfloat32(65504)
		if h.Signbit() {
			return uint32(maxHalf.Bits() | 0x8000), true
		}
		return uint32(maxHalf.Bits()), true
	}
	return uint32(h.Bits()), false
}

// FormatFor resolves a generation name. A negative frac keeps the
// generation default fraction; it is ignored for fp16.
func FormatFor(generation string, frac int) (Format, error) {
	pick := func(def int) int {
		if frac < 0 {
			return def
		}
		return frac
	}

	switch generation {
	case "q8":
		return newFixedChecked(8, pick(4))
	case "q16":
		return newFixedChecked(16, pick(8))
	case "q32":
		return newFixedChecked(32, pick(16))
	case "half":
		return Half{}, nil
	default:
		return nil, fmt.Errorf("generation %q is not supported", generation)
	}
}

func newFixedChecked(width, frac int) (Format, error) {
	if frac < 0 || frac >= width || frac > Frac {
		return nil, fmt.Errorf("fraction %d does not fit a %d-bit lane", frac, width)
	}
	return NewFixed(width, frac), nil
}

// Unpack converts every lane of a payload to the internal representation.
func Unpack(f Format, p codec.Payload) [codec.NumLanes]int64 {
	var out [codec.NumLanes]int64
	for i := range out {
		out[i] = f.ToInternal(p.Lane(i, f.Bits()))
	}
	return out
}

// Pack converts internal values back to lanes and returns how many lanes
// saturated.
func Pack(f Format, values [codec.NumLanes]int64) (codec.Payload, int) {
	var p codec.Payload
	saturated := 0
	for i, v := range values {
		word, sat := f.FromInternal(v)
		if sat {
			saturated++
		}
		p.SetLane(i, f.Bits(), word)
	}
	return p, saturated
}

// PackFloats encodes up to NumLanes real values.
func PackFloats(f Format, values []float64) codec.Payload {
	var internal [codec.NumLanes]int64
	for i := 0; i < len(values) && i < codec.NumLanes; i++ {
		internal[i] = FromFloat64(values[i])
	}
	p, _ := Pack(f, internal)
	return p
}

// UnpackFloats decodes every lane to a real value.
func UnpackFloats(f Format, p codec.Payload) []float64 {
	internal := Unpack(f, p)
	out := make([]float64, codec.NumLanes)
	for i, v := range internal {
		out[i] = ToFloat64(v)
	}
	return out
}

// Resolution is the value of one least significant lane step, or the
// spacing of fp16 around 1.0.
func Resolution(f Format) float64 {
	if fx, ok := f.(Fixed); ok {
		return math.Ldexp(1, -fx.frac)
	}
	return math.Ldexp(1, -10)
}
