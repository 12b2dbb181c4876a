package host

import (
	"context"
	"errors"
	"testing"
	"time"

	"NMPulator/src/misc"
	"NMPulator/src/simulator/codec"
	"NMPulator/src/simulator/core"
)

const testPartition = 0x33

func newTestDriver(t *testing.T, generation misc.Generation, attempts int) (*Driver, *SimTransport) {
	t.Helper()

	config := core.DefaultConfig()
	config.Generation = generation
	config.BankEntries = 256
	config.BufferEntries = 256

	c, err := core.New(config, nil)
	if err != nil {
		t.Fatalf("build core: %v", err)
	}

	transport := NewSimTransport(c, testPartition, 1, nil)
	driver := NewDriver(transport, Options{
		PayloadBytes: c.Codec().PayloadBytes(),
		Attempts:     attempts,
		PollValid:    true,
		Sleep:        func(time.Duration) {},
	}, nil)
	return driver, transport
}

func axi(region codec.Region, local uint16) uint32 {
	return AxiAddress(testPartition, codec.MakeAddress(region, local))
}

func TestLayoutMatchesCardOffsets(t *testing.T) {
	l := LayoutFor(16)
	if l.AW != 0x400 || l.W != 0x410 || l.B != 0x430 || l.AR != 0x440 || l.R != 0x450 {
		t.Fatalf("unexpected 128-bit layout %+v", l)
	}

	wide := LayoutFor(64)
	if end := wide.R + uint32(4*wide.ChannelWords()); end > wide.Interrupt {
		t.Fatalf("512-bit R channel ends at 0x%x, past the interrupt counter", end)
	}
}

func TestAddressWords(t *testing.T) {
	words := SplitAddress(0x33500010)
	if words[0] != 0x40004000 || words[1] != 0xCD {
		t.Fatalf("unexpected address words 0x%08X 0x%08X", words[0], words[1])
	}
	if got := JoinAddress(words); got != 0x33500010 {
		t.Fatalf("joined address 0x%08X", got)
	}
}

func TestReadDataSitsAtBitTen(t *testing.T) {
	words := PackR([]uint32{0xFFFFFFFF, 0x1})
	if words[0] != 0xFFFFFC00 || words[1] != 0x7FF || words[2] != 0 {
		t.Fatalf("unexpected R words %#v", words)
	}

	got := UnpackR(words)
	if got[0] != 0xFFFFFFFF || got[1] != 0x1 {
		t.Fatalf("unexpected unpacked data %#v", got)
	}
}

func TestWriteReadThroughShell(t *testing.T) {
	d, _ := newTestDriver(t, misc.GenerationQ8, 100)
	ctx := context.Background()

	data := codec.Payload{0x9EE3E635, 0x584169B2, 0xA0A882BF, 0xD4C04352}
	if err := d.Write(ctx, axi(codec.RegionScratchpad, 0x10), data); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := d.Read(ctx, axi(codec.RegionScratchpad, 0x10))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != data {
		t.Fatalf("read back %08X, expected %08X", got[:4], data[:4])
	}
}

func TestWideGenerationCarriesFullPayload(t *testing.T) {
	d, _ := newTestDriver(t, misc.GenerationQ32, 100)
	ctx := context.Background()

	var data codec.Payload
	for i := range data {
		data[i] = 0x01010101 * uint32(i+1)
	}
	if err := d.Write(ctx, axi(codec.RegionScratchpad, 3), data); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := d.Read(ctx, axi(codec.RegionScratchpad, 3))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != data {
		t.Fatalf("read back %08X, expected %08X", got, data)
	}
}

func TestForeignPartitionTimesOut(t *testing.T) {
	d, transport := newTestDriver(t, misc.GenerationQ8, 20)

	_, err := d.Read(context.Background(), AxiAddress(0x34, codec.MakeAddress(codec.RegionScratchpad, 0)))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected a timeout, got %v", err)
	}
	if got := transport.StatFactory().Value("foreign_partition_drops"); got != 1 {
		t.Fatalf("expected 1 dropped command, got %d", got)
	}
}

func TestReductionRunRaisesInterrupt(t *testing.T) {
	d, transport := newTestDriver(t, misc.GenerationQ8, 1000)
	ctx := context.Background()

	words := make([]uint32, codec.NumLanes)
	for i := range words {
		words[i] = 0x10
	}
	steps := []struct {
		address uint32
		data    codec.Payload
	}{
		{axi(codec.RegionScratchpad, 0), codec.PayloadFromLanes(words, 8)},
		{axi(codec.RegionReductionConfig, codec.LocalConfig), codec.ReductionConfig{IsValid: true, NumVector: 1, NumTimestep: 1}.Pack()},
		{axi(codec.RegionStart, codec.LocalStartReduce), codec.Payload{}},
	}
	for _, step := range steps {
		if err := d.Write(ctx, step.address, step.data); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	irqCycles := uint32(transport.Core().Config().IrqCycles)
	cycles, err := d.WaitDone(ctx, irqCycles)
	if err != nil {
		t.Fatalf("wait done: %v", err)
	}
	if cycles != irqCycles {
		t.Fatalf("expected %d interrupt cycles, got %d", irqCycles, cycles)
	}

	got, err := d.Read(ctx, axi(codec.RegionScratchpad, 0))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != codec.PayloadFromLanes(words, 8) {
		t.Fatalf("expected 0x10 lanes, got %08X", got[:4])
	}
}

func TestUnmappedAndClosedAccess(t *testing.T) {
	_, transport := newTestDriver(t, misc.GenerationQ8, 10)

	if err := transport.Poke(0x100, 1); !errors.Is(err, ErrOffset) {
		t.Fatalf("expected ErrOffset, got %v", err)
	}

	transport.Close()
	if _, err := transport.Peek(0x570); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestCancelledContext(t *testing.T) {
	d, _ := newTestDriver(t, misc.GenerationQ8, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Write(ctx, axi(codec.RegionScratchpad, 0), codec.Payload{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type closeCounter struct {
	Transport
	closes int
}

func (c *closeCounter) Close() error {
	c.closes++
	return nil
}

func TestRegistryLifecycle(t *testing.T) {
	opened := make(map[int]*closeCounter)
	opener := func(slot int) (Transport, error) {
		if slot > 3 {
			return nil, errors.New("no such slot")
		}
		opened[slot] = &closeCounter{}
		return opened[slot], nil
	}

	r := NewRegistry(opener, Options{PayloadBytes: 16}, nil)
	other := NewRegistry(opener, Options{PayloadBytes: 16}, nil)

	h, err := r.Open(0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := r.Open(0); err == nil {
		t.Fatalf("second open of slot 0 should fail")
	}
	if _, err := r.Open(7); err == nil {
		t.Fatalf("open of a missing slot should fail")
	}

	if d, err := r.Get(h); err != nil || d == nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := other.Get(h); !errors.Is(err, ErrUnknownHandle) {
		t.Fatalf("handles must not leak across registries, got %v", err)
	}
	if _, err := r.Get(Handle{}); !errors.Is(err, ErrUnknownHandle) {
		t.Fatalf("zero handle should be unknown, got %v", err)
	}

	if err := r.Close(h); err != nil {
		t.Fatalf("close: %v", err)
	}
	if opened[0].closes != 1 {
		t.Fatalf("transport closed %d times", opened[0].closes)
	}
	if err := r.Close(h); !errors.Is(err, ErrUnknownHandle) {
		t.Fatalf("double close should report an unknown handle, got %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("registry still holds %d slots", r.Len())
	}

	if _, err := r.Open(0); err != nil {
		t.Fatalf("slot 0 should reopen after close: %v", err)
	}
}

func TestCheckPartition(t *testing.T) {
	if p, err := CheckPartition(0x33); err != nil || p != 0x33 {
		t.Fatalf("0x33 rejected: %v", err)
	}
	for _, bad := range []int{0, -1, 0x100} {
		if _, err := CheckPartition(bad); !errors.Is(err, ErrPartition) {
			t.Fatalf("partition 0x%x accepted", bad)
		}
	}
}

func TestUnpolledReadNeverMixesReplies(t *testing.T) {
	d, transport := newTestDriver(t, misc.GenerationQ32, 100)
	ctx := context.Background()

	lanes := make([]uint32, codec.NumLanes)
	for i := range lanes {
		lanes[i] = 0x01010101 * uint32(i+1)
	}
	data := codec.PayloadFromLanes(lanes, 32)
	if err := d.Write(ctx, axi(codec.RegionScratchpad, 5), data); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Without polling R valid, the R words are read before the core answers.
	impatient := NewDriver(transport, Options{
		PayloadBytes: d.Layout().Words * 4,
		Attempts:     100,
		Sleep:        func(time.Duration) {},
	}, nil)
	if _, err := impatient.Read(ctx, axi(codec.RegionScratchpad, 5)); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout for an unanswered R read, got %v", err)
	}
	if got := transport.StatFactory().Value("empty_reads"); got != 1 {
		t.Fatalf("empty_reads %d", got)
	}

	layout := transport.Layout()
	for i := 0; ; i++ {
		if i > 100 {
			t.Fatalf("late reply never arrived")
		}
		valid, err := transport.Peek(layout.RValid)
		if err != nil {
			t.Fatalf("peek R valid: %v", err)
		}
		if valid != 0 {
			break
		}
	}

	words := make([]uint32, layout.ChannelWords())
	for i := range words {
		word, err := transport.Peek(layout.R + uint32(4*i))
		if err != nil {
			t.Fatalf("R word %d: %v", i, err)
		}
		words[i] = word
		// A second reply queued mid-read must not leak into this one.
		if i == 3 {
			for j, address := range SplitAddress(axi(codec.RegionScratchpad, 6)) {
				if err := transport.Poke(layout.AR+uint32(4*j), address); err != nil {
					t.Fatalf("poke AR: %v", err)
				}
			}
		}
	}

	var got codec.Payload
	copy(got[:], UnpackR(words))
	if got != data {
		t.Fatalf("late reply read back %v, expected %v", got.Lanes(32), data.Lanes(32))
	}
}
