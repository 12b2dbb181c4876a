package simulator

import (
	"context"
	"fmt"
	"math"

	"NMPulator/src/simulator/codec"
	"NMPulator/src/simulator/host"
	"NMPulator/src/simulator/numeric"
)

const (
	scenarioRMSNorm = "rmsnorm"
	scenarioSoftmax = "softmax"
	scenarioMac     = "mac"
	scenarioAll     = "all"

	macOutputBase = 256
)

// Scenarios expands a scenario option into the host programs it runs.
func Scenarios(name string) []string {
	if name == scenarioAll {
		return []string{scenarioRMSNorm, scenarioSoftmax, scenarioMac}
	}
	return []string{name}
}

type registerWrite struct {
	region codec.Region
	local  uint16
	data   codec.Payload
}

// session is one host program talking to a core through a driver.
type session struct {
	driver    *host.Driver
	partition uint8
	format    numeric.Format
	irqCycles uint32
}

func (s *session) write(ctx context.Context, region codec.Region, local uint16, data codec.Payload) error {
	return s.driver.Write(ctx, host.AxiAddress(s.partition, codec.MakeAddress(region, local)), data)
}

func (s *session) read(ctx context.Context, region codec.Region, local uint16) (codec.Payload, error) {
	return s.driver.Read(ctx, host.AxiAddress(s.partition, codec.MakeAddress(region, local)))
}

// start pulses an engine and waits for its interrupt window to be counted.
func (s *session) start(ctx context.Context, local uint16) error {
	before, err := s.driver.InterruptCycles()
	if err != nil {
		return err
	}
	if err := s.write(ctx, codec.RegionStart, local, codec.Payload{}); err != nil {
		return err
	}
	_, err = s.driver.WaitDone(ctx, before+s.irqCycles)
	return err
}

func (s *session) run(ctx context.Context, name string, input float64) error {
	switch name {
	case scenarioRMSNorm:
		values := make([]float64, codec.NumLanes)
		for i := range values {
			values[i] = input
		}
		return s.runReduction(ctx, codec.ModeRMSNorm, values, rmsNormReference)
	case scenarioSoftmax:
		values := make([]float64, codec.NumLanes)
		for i := range values {
			values[i] = float64(i-7) * 0.12
		}
		return s.runReduction(ctx, codec.ModeSoftmax, values, softmaxReference)
	case scenarioMac:
		return s.runMac(ctx)
	default:
		return fmt.Errorf("scenario %s is not supported", name)
	}
}

func (s *session) runReduction(ctx context.Context, mode uint8, values []float64, reference func([]float64) []float64) error {
	input := numeric.PackFloats(s.format, values)
	if err := s.write(ctx, codec.RegionScratchpad, 0, input); err != nil {
		return err
	}

	config := codec.ReductionConfig{IsValid: true, Mode: mode, NumVector: 1, NumTimestep: 1}
	if err := s.write(ctx, codec.RegionReductionConfig, codec.LocalConfig, config.Pack()); err != nil {
		return err
	}
	if err := s.start(ctx, codec.LocalStartReduce); err != nil {
		return err
	}

	output, err := s.read(ctx, codec.RegionScratchpad, 0)
	if err != nil {
		return err
	}

	// The reference sees the quantized input the core saw.
	expected := reference(numeric.UnpackFloats(s.format, input))
	got := numeric.UnpackFloats(s.format, output)
	resolution := numeric.Resolution(s.format)
	for i := range got {
		tolerance := resolution*math.Max(1, math.Abs(expected[i])) + 1e-3
		if math.Abs(got[i]-expected[i]) > tolerance {
			return fmt.Errorf("lane %d: got %f, expected %f (tolerance %g)", i, got[i], expected[i], tolerance)
		}
	}
	return nil
}

func rmsNormReference(x []float64) []float64 {
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	factor := 1 / math.Sqrt(sum/float64(len(x))+1e-4)

	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = v * factor
	}
	return out
}

func softmaxReference(x []float64) []float64 {
	peak := math.Inf(-1)
	for _, v := range x {
		peak = math.Max(peak, v)
	}

	out := make([]float64, len(x))
	sum := 0.0
	for i, v := range x {
		out[i] = math.Exp(v - peak)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// runMac streams one vector through 16 identity weight rows and expects it
// back unchanged in memory 1.
func (s *session) runMac(ctx context.Context) error {
	bits := s.format.Bits()

	for i := 0; i < codec.NumLanes; i++ {
		row := make([]uint32, codec.NumLanes)
		row[i] = 1
		if err := s.write(ctx, codec.RegionWeightBuffer, uint16(i), codec.PayloadFromLanes(row, bits)); err != nil {
			return err
		}
	}

	steps := []registerWrite{
		{codec.RegionEngineConfig, codec.LocalManagerBase, codec.ManagerConfig{NumInput: 1}.Pack()},
		{codec.RegionEngineConfig, codec.LocalPEConfig, codec.PEConfig{IsValid: true, NumOutput: 1, Scale: 1}.Pack()},
		{codec.RegionEngineConfig, codec.LocalAddressMap, codec.AddressMap{
			NumVector: [codec.NumMemories]uint8{1, 1, 1, 1},
			Base:      [codec.NumMemories]uint16{0, macOutputBase, 0, 0},
		}.Pack()},
	}

	input := make([]uint32, codec.NumLanes)
	for i := range input {
		input[i] = numeric.Truncate(int64(i-8), bits)
	}
	steps = append(steps,
		registerWrite{codec.RegionScratchpad, 0, codec.PayloadFromLanes(input, bits)},
		registerWrite{codec.RegionControlConfig, codec.LocalConfig, codec.ControlConfig{
			IsValid:      true,
			InputMemory:  0,
			OutputMemory: 1,
			NumInput:     1,
			NumOutput:    1,
			NumTimestep:  1,
		}.Pack()},
	)

	for _, step := range steps {
		if err := s.write(ctx, step.region, step.local, step.data); err != nil {
			return err
		}
	}
	if err := s.start(ctx, codec.LocalStartControl); err != nil {
		return err
	}

	output, err := s.read(ctx, codec.RegionScratchpad, macOutputBase)
	if err != nil {
		return err
	}
	for i, lane := range output.Lanes(bits) {
		if lane != input[i] {
			return fmt.Errorf("lane %d: got 0x%x, expected 0x%x", i, lane, input[i])
		}
	}
	return nil
}
