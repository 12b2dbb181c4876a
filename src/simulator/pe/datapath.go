package pe

import (
	"NMPulator/src/simulator/codec"
	"NMPulator/src/simulator/numeric"
)

// Array is the V x V multiply-accumulate array. Row i holds the weight
// vector of output lane i; every MAC step adds the dot product of each row
// with the input vector into that lane's accumulator.
type Array struct {
	LaneBits       int
	UtilizedCycles int

	accum [codec.NumLanes]int64
}

func NewArray(laneBits int) Array {
	return Array{LaneBits: laneBits}
}

func (a *Array) Reset() {
	a.accum = [codec.NumLanes]int64{}
}

func (a *Array) Accumulators() [codec.NumLanes]int64 {
	return a.accum
}

// Accumulate runs one MAC step.
func (a *Array) Accumulate(weights [codec.NumLanes]codec.Payload, input codec.Payload) {
	x := a.signedLanes(input)
	for i := range weights {
		a.accum[i] = numeric.SatAdd(a.accum[i], ProductSum(a.signedLanes(weights[i]), x))
	}
	a.UtilizedCycles++
}

// Scale converts the accumulators to an activation vector and returns how
// many lanes clamped.
func (a *Array) Scale(scale int64, shift int) (codec.Payload, int) {
	var out codec.Payload
	saturated := 0
	for i, acc := range a.accum {
		v, clamped := ScaleLane(acc, scale, shift, a.LaneBits)
		if clamped {
			saturated++
		}
		out.SetLane(i, a.LaneBits, numeric.Truncate(v, a.LaneBits))
	}
	return out, saturated
}

func (a *Array) signedLanes(p codec.Payload) [codec.NumLanes]int64 {
	var out [codec.NumLanes]int64
	for i := range out {
		out[i] = numeric.SignExtend(p.Lane(i, a.LaneBits), a.LaneBits)
	}
	return out
}

// ProductSum is the saturating dot product of two lane vectors.
func ProductSum(a, b [codec.NumLanes]int64) int64 {
	var sum int64
	for i := range a {
		sum = numeric.SatAdd(sum, numeric.SatMul(a[i], b[i]))
	}
	return sum
}

// ScaleLane computes clamp((acc*scale) >> shift) over the signed lane range.
func ScaleLane(acc int64, scale int64, shift int, laneBits int) (int64, bool) {
	lo, hi := numeric.IntRange(laneBits)
	return numeric.Clamp(numeric.SatMul(acc, scale)>>uint(shift), lo, hi)
}
