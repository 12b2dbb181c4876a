package nmp

import (
	"NMPulator/src/simulator/codec"
	"NMPulator/src/simulator/numeric"
)

// Epsilon keeps the RMS reciprocal finite on an all-zero vector.
var Epsilon = numeric.FromFloat64(1e-4)

// Workspace is the datapath state a kernel works on. Input is loaded by
// the Read state; the kernel leaves its result in Output.
type Workspace struct {
	Input  [codec.NumLanes]int64
	Output [codec.NumLanes]int64

	Accumulator int64
	Factor      int64
}

// Kernel is a reduction over one vector, split into states that each take
// one tick.
type Kernel interface {
	Name() string
	// Entry is the first state after the input vector arrives.
	Entry() State
	// Step runs state and returns the next one. StateWrite ends the kernel.
	Step(state State, ws *Workspace) State
}

// KernelFor selects the kernel for a config mode. Unknown modes run
// RMS-norm.
func KernelFor(mode uint8) Kernel {
	if mode == codec.ModeSoftmax {
		return Softmax{}
	}
	return RMSNorm{}
}

// RMSNorm computes x / sqrt(mean(x^2) + eps).
type RMSNorm struct{}

func (RMSNorm) Name() string {
	return "rmsnorm"
}

func (RMSNorm) Entry() State {
	return StateSumSq
}

func (RMSNorm) Step(state State, ws *Workspace) State {
	switch state {
	case StateSumSq:
		ws.Accumulator = 0
		for _, x := range ws.Input {
			ws.Accumulator = numeric.SatAdd(ws.Accumulator, numeric.Mul(x, x))
		}
		return StateSqrtRecip

	case StateSqrtRecip:
		mean := numeric.SatAdd(ws.Accumulator/codec.NumLanes, Epsilon)
		ws.Factor = numeric.RecipSqrt(mean)
		return StateNormalize

	case StateNormalize:
		for i, x := range ws.Input {
			ws.Output[i] = numeric.Mul(x, ws.Factor)
		}
		return StateWrite

	default:
		return invalidState("rmsnorm", state)
	}
}

// Softmax computes exp(x - max) / sum(exp(x - max)).
type Softmax struct{}

func (Softmax) Name() string {
	return "softmax"
}

func (Softmax) Entry() State {
	return StateMax
}

func (Softmax) Step(state State, ws *Workspace) State {
	switch state {
	case StateMax:
		ws.Accumulator = ws.Input[0]
		for _, x := range ws.Input[1:] {
			ws.Accumulator = max(ws.Accumulator, x)
		}
		return StateExp

	case StateExp:
		for i, x := range ws.Input {
			ws.Output[i] = numeric.Exp(numeric.SatAdd(x, -ws.Accumulator))
		}
		return StateSum

	case StateSum:
		ws.Accumulator = 0
		for _, e := range ws.Output {
			ws.Accumulator = numeric.SatAdd(ws.Accumulator, e)
		}
		ws.Factor = numeric.Recip(ws.Accumulator)
		return StateNormalize

	case StateNormalize:
		for i, e := range ws.Output {
			ws.Output[i] = numeric.Mul(e, ws.Factor)
		}
		return StateWrite

	default:
		return invalidState("softmax", state)
	}
}
