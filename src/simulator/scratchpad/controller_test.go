package scratchpad

import (
	"testing"

	"NMPulator/src/simulator/codec"
	"NMPulator/src/simulator/wire"
)

type testController struct {
	controller *Controller
	reduction  *ClientPort
	mac        *ClientPort
	group      wire.Group
}

func newTestController(t *testing.T) *testController {
	t.Helper()

	s := NewScratchpad("Scratchpad", 16, 64, 8, 3)
	c := new(Controller)
	c.Init("Controller", s, NewAddressMap(16), 4, nil)

	tc := &testController{controller: c}
	tc.reduction = c.Connect(ClientReduction, 4)
	tc.mac = c.Connect(ClientMac, 4)
	tc.group.Add(c.Channels()...)
	return tc
}

func (tc *testController) cycle() {
	tc.controller.Cycle()
	tc.group.Commit()
}

func (tc *testController) command(cmd codec.Command) {
	tc.controller.Commands().Push(cmd)
	tc.group.Commit()
}

func TestTranslateLaw(t *testing.T) {
	m := NewAddressMap(16)
	config := m.Config()
	config.Base[2] = 100
	config.NumVector[2] = 3
	m.Configure(config)

	cases := []struct {
		vector, timestep, expected int
	}{
		{0, 0, 100},
		{0, 15, 115},
		{1, 0, 116},
		{2, 4, 100 + 4 + 2*16},
		{0, 16, 100 + 3*16},
		{1, 17, 100 + 1 + (3+1)*16},
	}
	for _, c := range cases {
		got := m.Translate(Descriptor{MemoryIndex: 2, VectorIndex: c.vector, TimestepIndex: c.timestep})
		if got != c.expected {
			t.Fatalf("v=%d t=%d: expected %d, got %d", c.vector, c.timestep, c.expected, got)
		}
	}
}

func TestTranslateIsBijective(t *testing.T) {
	m := NewAddressMap(16)
	config := m.Config()
	config.Base[1] = 7
	config.NumVector[1] = 5
	m.Configure(config)

	seen := make(map[int]Descriptor)
	for v := 0; v < 5; v++ {
		for ts := 0; ts < 48; ts++ {
			d := Descriptor{MemoryIndex: 1, VectorIndex: v, TimestepIndex: ts}
			address := m.Translate(d)
			if prior, found := seen[address]; found {
				t.Fatalf("%s and %s both map to %d", prior, d, address)
			}
			seen[address] = d
		}
	}
}

func TestAddressMapResetDefaults(t *testing.T) {
	m := NewAddressMap(16)
	for i := 0; i < codec.NumMemories; i++ {
		if m.NumVector(i) != 1 || m.Base(i) != 0 {
			t.Fatalf("memory %d: unexpected reset state %d/%d", i, m.NumVector(i), m.Base(i))
		}
	}
}

func TestDirectWriteThenRead(t *testing.T) {
	tc := newTestController(t)

	tc.command(codec.WriteCommand(codec.RegionScratchpad, 42, vector(9)))
	tc.cycle()
	tc.command(codec.ReadCommand(codec.RegionScratchpad, 42))
	tc.cycle()

	reply, ok := tc.controller.Replies().Pop()
	if !ok || reply.Data != vector(9) {
		t.Fatalf("expected direct read reply, got %v ok=%v", reply.Data, ok)
	}
}

func TestAddressMapRegister(t *testing.T) {
	tc := newTestController(t)

	config := codec.AddressMap{}
	config.NumVector[3] = 4
	config.Base[3] = 0x1234
	tc.command(codec.WriteCommand(codec.RegionEngineConfig, codec.LocalAddressMap, config.Pack()))
	tc.cycle()
	tc.command(codec.ReadCommand(codec.RegionEngineConfig, codec.LocalAddressMap))
	tc.cycle()

	reply, ok := tc.controller.Replies().Pop()
	if !ok {
		t.Fatalf("expected address map reply")
	}
	if got := codec.UnpackAddressMap(reply.Data); got != config {
		t.Fatalf("address map read back %+v, expected %+v", got, config)
	}
}

func TestEngineWriteThenReadViaDescriptor(t *testing.T) {
	tc := newTestController(t)

	d := Descriptor{MemoryIndex: 0, VectorIndex: 0, TimestepIndex: 3, IsWrite: true, Data: vector(5)}
	tc.reduction.Requests.Push(d)
	tc.group.Commit()
	tc.cycle()

	ack, ok := tc.reduction.Responses.Pop()
	if !ok || !ack.Written {
		t.Fatalf("write should be acknowledged, got %+v ok=%v", ack, ok)
	}

	d.IsWrite = false
	tc.reduction.Requests.Push(d)
	tc.group.Commit()
	tc.cycle()

	response, ok := tc.reduction.Responses.Pop()
	if !ok || response.Nack || response.Data != vector(5) {
		t.Fatalf("unexpected response %+v ok=%v", response, ok)
	}
	if tc.controller.Scratchpad().Inspect(3) != vector(5) {
		t.Fatalf("descriptor did not land at physical address 3")
	}
}

func TestEngineReadNackedByDirectAccess(t *testing.T) {
	tc := newTestController(t)

	tc.controller.Commands().Push(codec.ReadCommand(codec.RegionScratchpad, 16))
	tc.reduction.Requests.Push(Descriptor{MemoryIndex: 0, TimestepIndex: 0})
	tc.group.Commit()
	tc.cycle()

	response, ok := tc.reduction.Responses.Pop()
	if !ok || !response.Nack {
		t.Fatalf("expected nack, got %+v ok=%v", response, ok)
	}
	if _, ok := tc.controller.Replies().Pop(); !ok {
		t.Fatalf("direct read should still be answered")
	}
	if tc.controller.StatFactory().Value("nacks_reduction") != 1 {
		t.Fatalf("nack was not counted")
	}
}

func TestEngineWriteBackpressuredByDirectWrite(t *testing.T) {
	tc := newTestController(t)

	tc.controller.Commands().Push(codec.WriteCommand(codec.RegionScratchpad, 1, vector(1)))
	tc.mac.Requests.Push(Descriptor{MemoryIndex: 0, TimestepIndex: 2, IsWrite: true, Data: vector(2)})
	tc.group.Commit()
	tc.cycle()

	if tc.mac.Requests.IsEmpty() {
		t.Fatalf("engine write should stay queued while the write port is taken")
	}

	if !tc.mac.Responses.IsEmpty() {
		t.Fatalf("a held write must not be acknowledged")
	}

	tc.cycle()
	if !tc.mac.Requests.IsEmpty() {
		t.Fatalf("engine write should drain on the next cycle")
	}
	if ack, ok := tc.mac.Responses.Pop(); !ok || !ack.Written {
		t.Fatalf("granted write should be acknowledged, got %+v ok=%v", ack, ok)
	}
	if tc.controller.Scratchpad().Inspect(1) != vector(1) || tc.controller.Scratchpad().Inspect(2) != vector(2) {
		t.Fatalf("both writes should be in memory")
	}
}

func TestTwoEngineWritesSameTick(t *testing.T) {
	tc := newTestController(t)

	tc.reduction.Requests.Push(Descriptor{MemoryIndex: 0, TimestepIndex: 6, IsWrite: true, Data: vector(6)})
	tc.mac.Requests.Push(Descriptor{MemoryIndex: 0, TimestepIndex: 6, IsWrite: true, Data: vector(7)})
	tc.group.Commit()
	tc.cycle()

	if got := tc.controller.Scratchpad().Inspect(6); got != vector(6) {
		t.Fatalf("memory should hold exactly the reduction write, got %v", got)
	}
	if tc.mac.Requests.Size() != 1 {
		t.Fatalf("mac write should be held back")
	}
}

func TestUnknownCommandDropped(t *testing.T) {
	tc := newTestController(t)

	tc.command(codec.ReadCommand(codec.RegionEngineConfig, 0x20))
	tc.cycle()

	if !tc.controller.IsIdle() {
		t.Fatalf("dropped command should leave the controller idle")
	}
	if tc.controller.StatFactory().Value("dropped_commands") != 1 {
		t.Fatalf("drop was not counted")
	}
}

func TestOutOfRangeAccesses(t *testing.T) {
	tc := newTestController(t)

	// 16 banks x 64 entries
	var data codec.Payload
	data[0] = 0x7F
	tc.command(codec.WriteCommand(codec.RegionScratchpad, 2000, data))
	tc.cycle()
	tc.command(codec.ReadCommand(codec.RegionScratchpad, 2000))
	tc.cycle()

	reply, ok := tc.controller.Replies().Pop()
	if !ok || reply.Data != (codec.Payload{}) {
		t.Fatalf("out of range read should reply zero, got %v ok=%v", reply.Data, ok)
	}

	tc.reduction.Requests.Push(Descriptor{MemoryIndex: 0, TimestepIndex: 4000})
	tc.group.Commit()
	tc.cycle()

	response, ok := tc.reduction.Responses.Pop()
	if !ok || response.Nack || response.Data != (codec.Payload{}) {
		t.Fatalf("out of range engine read should answer zero, got %+v ok=%v", response, ok)
	}
	if got := tc.controller.StatFactory().Value("out_of_range_accesses"); got != 3 {
		t.Fatalf("out_of_range_accesses %d", got)
	}
}

func TestWriteHeldWhileResponsesFull(t *testing.T) {
	tc := newTestController(t)

	for i := 0; i < 4; i++ {
		tc.reduction.Requests.Push(Descriptor{MemoryIndex: 0, TimestepIndex: i, IsWrite: true, Data: vector(uint32(i))})
	}
	tc.group.Commit()
	for i := 0; i < 4; i++ {
		tc.cycle()
	}
	if tc.reduction.Responses.Size() != 4 {
		t.Fatalf("expected four acknowledgements, got %d", tc.reduction.Responses.Size())
	}

	tc.reduction.Requests.Push(Descriptor{MemoryIndex: 0, TimestepIndex: 4, IsWrite: true, Data: vector(4)})
	tc.group.Commit()
	tc.cycle()

	if tc.reduction.Requests.Size() != 1 || tc.controller.Scratchpad().Inspect(4) != (codec.Payload{}) {
		t.Fatalf("a write must wait for room for its acknowledgement")
	}

	tc.reduction.Responses.Pop()
	tc.cycle()
	if tc.controller.Scratchpad().Inspect(4) != vector(4) {
		t.Fatalf("write should land once its acknowledgement fits")
	}
}

func TestClientChannelNames(t *testing.T) {
	tc := newTestController(t)

	if got := tc.reduction.Requests.Name(); got != "Controller.Reduction.Requests" {
		t.Fatalf("unexpected channel name %s", got)
	}
	if got := tc.mac.Responses.Name(); got != "Controller.Mac.Responses" {
		t.Fatalf("unexpected channel name %s", got)
	}
	if got := Client(7).Name(); got != "Client[7]" {
		t.Fatalf("unexpected client name %s", got)
	}
}
