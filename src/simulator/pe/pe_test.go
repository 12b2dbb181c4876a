package pe

import (
	"testing"

	"NMPulator/src/simulator/codec"
	"NMPulator/src/simulator/wire"
)

type harness struct {
	engine *Engine
	group  wire.Group
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{engine: NewEngine("Mac", 8, 256, 4, nil)}
	h.group.Add(h.engine.Channels()...)
	return h
}

func (h *harness) tick() {
	h.engine.Tick()
	h.group.Commit()
}

func (h *harness) write(region codec.Region, local uint16, data codec.Payload) {
	h.engine.Commands().Push(codec.WriteCommand(region, local, data))
	h.group.Commit()
	h.tick()
}

func (h *harness) read(t *testing.T, region codec.Region, local uint16) codec.Payload {
	t.Helper()

	h.engine.Commands().Push(codec.ReadCommand(region, local))
	h.group.Commit()
	h.tick()

	reply, ok := h.engine.Replies().Pop()
	if !ok {
		t.Fatalf("no reply for %s[0x%X]", region, local)
	}
	return reply.Data
}

func (h *harness) run(t *testing.T, limit int) []codec.Payload {
	t.Helper()

	h.engine.Start().Push(true)
	h.group.Commit()

	var outputs []codec.Payload
	for i := 0; i < limit; i++ {
		h.tick()
		for {
			activation, ok := h.engine.Activations().Pop()
			if !ok {
				break
			}
			outputs = append(outputs, activation)
		}
		if i > 0 && h.engine.State() == StateIdle {
			return outputs
		}
	}
	t.Fatalf("mac engine still in %s after %d cycles", h.engine.State(), limit)
	return nil
}

func lanes(values ...int) codec.Payload {
	words := make([]uint32, len(values))
	for i, v := range values {
		words[i] = uint32(v) & 0xFF
	}
	return codec.PayloadFromLanes(words, 8)
}

func sequence(from int) codec.Payload {
	values := make([]int, codec.NumLanes)
	for i := range values {
		values[i] = from + i
	}
	return lanes(values...)
}

// identityRows loads weight rows so that output lane i picks input lane i.
func identityRows(h *harness, base int) {
	for i := 0; i < codec.NumLanes; i++ {
		row := make([]int, codec.NumLanes)
		row[i] = 1
		h.engine.WeightBuffer().Write(base+i, lanes(row...))
	}
}

func TestScaleLaneClampBoundary(t *testing.T) {
	cases := []struct {
		name     string
		acc      int64
		expected int64
		clamped  bool
	}{
		{"exact max", 127 << 4, 127, false},
		{"one above max", 128 << 4, 127, true},
		{"exact min", -128 << 4, -128, false},
		{"one below min", -129 << 4, -128, true},
	}
	for _, c := range cases {
		got, clamped := ScaleLane(c.acc, 1, 4, 8)
		if got != c.expected || clamped != c.clamped {
			t.Fatalf("%s: expected %d clamped=%v, got %d clamped=%v", c.name, c.expected, c.clamped, got, clamped)
		}
	}
}

func TestDefaultScaleShift(t *testing.T) {
	c := NewConfig()
	scale, shift := c.ScaleShift()
	if scale != DefaultScale || shift != DefaultShift {
		t.Fatalf("expected defaults, got %d >> %d", scale, shift)
	}

	c.Write(codec.LocalPEConfig, codec.PEConfig{Scale: 3, Shift: 1}.Pack())
	scale, shift = c.ScaleShift()
	if scale != 3 || shift != 1 {
		t.Fatalf("expected 3 >> 1, got %d >> %d", scale, shift)
	}
}

func TestConfigRegistersReadBack(t *testing.T) {
	h := newHarness(t)

	pe := codec.PEConfig{IsValid: true, ManagerIndex: 1, NumOutput: 5, Scale: 9, Shift: 2}
	manager := codec.ManagerConfig{ZeroActive: true, NumInput: 4, BaseWeight: 0x100, BaseInput: 0x20}
	h.write(codec.RegionEngineConfig, codec.LocalPEConfig, pe.Pack())
	h.write(codec.RegionEngineConfig, codec.LocalManagerBase+1, manager.Pack())

	if got := codec.UnpackPEConfig(h.read(t, codec.RegionEngineConfig, codec.LocalPEConfig)); got != pe {
		t.Fatalf("pe config read back %+v", got)
	}
	if got := codec.UnpackManagerConfig(h.read(t, codec.RegionEngineConfig, codec.LocalManagerBase+1)); got != manager {
		t.Fatalf("manager config read back %+v", got)
	}
}

func TestBufferAccessThroughCommands(t *testing.T) {
	h := newHarness(t)

	h.write(codec.RegionWeightBuffer, 17, sequence(3))
	h.write(codec.RegionInputBuffer, 5, sequence(40))

	if got := h.read(t, codec.RegionWeightBuffer, 17); got != sequence(3) {
		t.Fatalf("weight buffer read back %v", got)
	}
	if got := h.read(t, codec.RegionInputBuffer, 5); got != sequence(40) {
		t.Fatalf("input buffer read back %v", got)
	}
	if got := h.read(t, codec.RegionInputBuffer, 4000); got != (codec.Payload{}) {
		t.Fatalf("out of range read should return zero, got %v", got)
	}
}

func TestMacAccumulatesOverInputs(t *testing.T) {
	h := newHarness(t)

	h.write(codec.RegionEngineConfig, codec.LocalManagerBase, codec.ManagerConfig{NumInput: 2, BaseWeight: 0, BaseInput: 100}.Pack())
	h.write(codec.RegionEngineConfig, codec.LocalPEConfig, codec.PEConfig{IsValid: true, NumOutput: 1, Scale: 1, Shift: 0}.Pack())
	identityRows(h, 0)
	identityRows(h, codec.NumLanes)
	h.engine.InputBuffer().Write(100, sequence(1))
	h.engine.InputBuffer().Write(101, sequence(10))

	outputs := h.run(t, 100)
	if len(outputs) != 1 {
		t.Fatalf("expected one activation, got %d", len(outputs))
	}
	for i := 0; i < codec.NumLanes; i++ {
		expected := uint32(1+i) + uint32(10+i)
		if got := outputs[0].Lane(i, 8); got != expected {
			t.Fatalf("lane %d: expected %d, got %d", i, expected, got)
		}
	}
}

func TestMacClampsAndCountsSaturation(t *testing.T) {
	h := newHarness(t)

	h.write(codec.RegionEngineConfig, codec.LocalManagerBase, codec.ManagerConfig{NumInput: 1}.Pack())
	h.write(codec.RegionEngineConfig, codec.LocalPEConfig, codec.PEConfig{IsValid: true, NumOutput: 1, Scale: 1}.Pack())
	ones := make([]int, codec.NumLanes)
	for i := range ones {
		ones[i] = 1
	}
	for i := 0; i < codec.NumLanes; i++ {
		h.engine.WeightBuffer().Write(i, lanes(ones...))
	}
	h.engine.InputBuffer().Write(0, sequence(1))

	outputs := h.run(t, 100)
	for i := 0; i < codec.NumLanes; i++ {
		if got := outputs[0].Lane(i, 8); got != 127 {
			t.Fatalf("lane %d: expected 127, got %d", i, got)
		}
	}
	if h.engine.StatFactory().Value("saturations") != codec.NumLanes {
		t.Fatalf("expected every lane to saturate")
	}
}

func TestZeroFirstSkipsMac(t *testing.T) {
	h := newHarness(t)

	h.write(codec.RegionEngineConfig, codec.LocalManagerBase, codec.ManagerConfig{ZeroActive: true, NumInput: 1}.Pack())
	h.write(codec.RegionEngineConfig, codec.LocalPEConfig, codec.PEConfig{IsValid: true, IsZeroFirst: true, NumOutput: 2, Scale: 1}.Pack())
	identityRows(h, 0)
	h.engine.InputBuffer().Write(0, sequence(1))

	outputs := h.run(t, 100)
	if len(outputs) != 2 {
		t.Fatalf("expected two activations, got %d", len(outputs))
	}
	for _, out := range outputs {
		if out != (codec.Payload{}) {
			t.Fatalf("skipped MAC should produce zeros, got %v", out)
		}
	}
	if h.engine.StatFactory().Value("zero_skips") != 2 {
		t.Fatalf("expected two zero skips")
	}
	if h.engine.Array().UtilizedCycles != 0 {
		t.Fatalf("array should not have run")
	}
}

func TestStreamDrainsBeforeStart(t *testing.T) {
	h := newHarness(t)

	h.write(codec.RegionEngineConfig, codec.LocalManagerBase+1, codec.ManagerConfig{NumInput: 2, BaseInput: 50}.Pack())
	h.write(codec.RegionEngineConfig, codec.LocalPEConfig, codec.PEConfig{IsValid: true, ManagerIndex: 1, NumOutput: 1}.Pack())

	h.engine.Stream().Push(StreamEntry{Data: sequence(7), Manager: 1, Logical: 0})
	h.engine.Stream().Push(StreamEntry{Data: sequence(9), Manager: 1, Logical: 1})
	h.engine.Start().Push(true)
	h.group.Commit()

	h.tick()
	h.tick()
	if h.engine.State() != StateIdle {
		t.Fatalf("start must wait for the stream to drain")
	}
	h.tick()
	if h.engine.State() != StatePre {
		t.Fatalf("expected start after the stream drained, got %s", h.engine.State())
	}

	if h.engine.InputBuffer().Read(50) != sequence(7) || h.engine.InputBuffer().Read(51) != sequence(9) {
		t.Fatalf("stream entries not placed at the manager input base")
	}
}

func TestStartIgnoredWhenInvalid(t *testing.T) {
	h := newHarness(t)

	h.engine.Start().Push(true)
	h.group.Commit()
	h.tick()

	if h.engine.State() != StateIdle {
		t.Fatalf("engine started without a valid config")
	}
	if h.engine.StatFactory().Value("ignored_starts") != 1 {
		t.Fatalf("ignored start was not counted")
	}
}
