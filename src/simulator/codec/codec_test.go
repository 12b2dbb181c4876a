package codec

import (
	"bytes"
	"testing"
)

func TestAddressFields(t *testing.T) {
	address := MakeAddress(RegionReductionConfig, LocalConfig)
	if address != 0xC00010 {
		t.Fatalf("expected 0xC00010, got 0x%06X", address)
	}
	if RegionOf(address) != RegionReductionConfig {
		t.Fatalf("expected reduction region, got %s", RegionOf(address))
	}
	if LocalIndexOf(address) != LocalConfig {
		t.Fatalf("expected local index 1, got %d", LocalIndexOf(address))
	}

	scratch := MakeAddress(RegionScratchpad, 0xFFFF)
	if scratch != 0x5FFFF0 {
		t.Fatalf("expected 0x5FFFF0, got 0x%06X", scratch)
	}
	if LocalIndexOf(scratch|0xF) != 0xFFFF {
		t.Fatalf("reserved low bits leaked into local index")
	}
}

func TestEncodeLayout(t *testing.T) {
	c := NewCodec(8)
	if c.PayloadBytes() != 16 {
		t.Fatalf("expected 128-bit payload for 8-bit lanes, got %d bytes", c.PayloadBytes())
	}

	var data Payload
	data[0] = 0x04030201
	data[3] = 0xDDCCBBAA
	data[4] = 0xFFFFFFFF // beyond the 128-bit payload
	raw := c.Encode(Command{IsWrite: true, Address: 0xFF500120, Data: data})

	want := []byte{
		0x01, 0x50, 0x01, 0x20,
		0x01, 0x02, 0x03, 0x04, 0, 0, 0, 0, 0, 0, 0, 0, 0xAA, 0xBB, 0xCC, 0xDD,
	}
	if !bytes.Equal(raw, want) {
		t.Fatalf("unexpected raw encoding\n got %x\nwant %x", raw, want)
	}

	cmd := c.Decode(raw)
	if !cmd.IsWrite || cmd.Address != 0x500120 {
		t.Fatalf("unexpected decoded header: %+v", cmd)
	}
	if cmd.Data != data.Truncate(128) {
		t.Fatalf("payload mismatch after decode")
	}
}

func TestDecodeIsTotal(t *testing.T) {
	c := NewCodec(32)

	cmd := c.Decode(nil)
	if cmd.IsWrite || cmd.Address != 0 || cmd.Data != (Payload{}) {
		t.Fatalf("empty input should decode to a zero read, got %+v", cmd)
	}

	cmd = c.Decode([]byte{0xFE, 0x9A})
	if cmd.IsWrite {
		t.Fatalf("flag bit 0 is clear, expected a read")
	}
	if cmd.Region().Known() {
		t.Fatalf("region 0x9 should not be owned, got %s", cmd.Region())
	}

	long := make([]byte, c.RawBytes()+8)
	for i := range long {
		long[i] = 0xFF
	}
	cmd = c.Decode(long)
	if cmd.Address != 0xFFFFFF {
		t.Fatalf("expected 24-bit address, got 0x%X", cmd.Address)
	}
}

func TestPayloadFieldAcrossWords(t *testing.T) {
	var p Payload
	p.SetField(28, 12, 0xABC)
	if p[0] != 0xC0000000 || p[1] != 0xAB {
		t.Fatalf("unexpected words %08x %08x", p[0], p[1])
	}
	if p.Field(28, 12) != 0xABC {
		t.Fatalf("expected 0xABC, got 0x%X", p.Field(28, 12))
	}

	p.SetField(30, 4, 0)
	if p.Field(28, 12) != 0xA80 {
		t.Fatalf("partial clear failed, got 0x%X", p.Field(28, 12))
	}

	p.SetField(448, 64, 0x0123456789ABCDEF)
	if p.Field(448, 64) != 0x0123456789ABCDEF {
		t.Fatalf("64-bit field at the top of the payload did not survive")
	}
}

func TestPayloadLanes(t *testing.T) {
	for _, bits := range []int{8, 16, 32} {
		lanes := make([]uint32, NumLanes)
		for i := range lanes {
			lanes[i] = uint32(i*37+1) & (uint32(1)<<uint(bits) - 1)
		}
		p := PayloadFromLanes(lanes, bits)
		got := p.Lanes(bits)
		for i := range lanes {
			if got[i] != lanes[i] {
				t.Fatalf("bits=%d lane %d: expected %d, got %d", bits, i, lanes[i], got[i])
			}
		}
		if bits < 32 && p.Truncate(NumLanes*bits) != p {
			t.Fatalf("bits=%d: lanes spilled past the payload width", bits)
		}
	}

	var p Payload
	p.SetLane(1, 8, 0x1FF)
	if p.Lane(1, 8) != 0xFF || p.Lane(2, 8) != 0 {
		t.Fatalf("lane write is not confined to its lane")
	}
}

func TestPayloadFieldPanicsOutOfRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for field past the payload")
		}
	}()
	var p Payload
	p.Field(PayloadBits-4, 8)
}
