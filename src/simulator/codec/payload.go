package codec

import (
	"encoding/binary"
	"fmt"
)

// NumLanes is the vector width V shared by every entry, register and engine.
const NumLanes = 16

// PayloadBits is the widest payload any generation carries: 16 lanes of
// 32 bits. Narrower generations leave the upper bits zero.
const PayloadBits = NumLanes * 32

const payloadWords = PayloadBits / 32

// Payload is the data field of a command or reply, stored as little-endian
// 32-bit words. Bit 0 is the LSB of word 0.
type Payload [payloadWords]uint32

// Field returns width bits starting at offset. Width is limited to 64.
func (p Payload) Field(offset, width int) uint64 {
	checkField(offset, width)

	var value uint64
	for i := 0; i < width; {
		pos := offset + i
		word, bit := pos/32, pos%32
		n := min(32-bit, width-i)
		mask := uint64(1)<<uint(n) - 1
		value |= (uint64(p[word]>>uint(bit)) & mask) << uint(i)
		i += n
	}
	return value
}

// SetField overwrites width bits starting at offset with the low bits of
// value.
func (p *Payload) SetField(offset, width int, value uint64) {
	checkField(offset, width)

	for i := 0; i < width; {
		pos := offset + i
		word, bit := pos/32, pos%32
		n := min(32-bit, width-i)
		mask := uint64(1)<<uint(n) - 1
		chunk := uint32((value>>uint(i))&mask) << uint(bit)
		p[word] = p[word]&^(uint32(mask)<<uint(bit)) | chunk
		i += n
	}
}

// Flag reads a single bit.
func (p Payload) Flag(offset int) bool {
	return p.Field(offset, 1) != 0
}

// SetFlag writes a single bit.
func (p *Payload) SetFlag(offset int, on bool) {
	var v uint64
	if on {
		v = 1
	}
	p.SetField(offset, 1, v)
}

// Lane returns lane i of a vector whose lanes are laneBits wide.
func (p Payload) Lane(i, laneBits int) uint32 {
	checkLane(i, laneBits)
	return uint32(p.Field(i*laneBits, laneBits))
}

// SetLane writes lane i of a vector whose lanes are laneBits wide.
func (p *Payload) SetLane(i, laneBits int, value uint32) {
	checkLane(i, laneBits)
	p.SetField(i*laneBits, laneBits, uint64(value))
}

// Lanes unpacks all NumLanes lanes.
func (p Payload) Lanes(laneBits int) []uint32 {
	lanes := make([]uint32, NumLanes)
	for i := range lanes {
		lanes[i] = p.Lane(i, laneBits)
	}
	return lanes
}

// PayloadFromLanes packs up to NumLanes lanes.
func PayloadFromLanes(lanes []uint32, laneBits int) Payload {
	if len(lanes) > NumLanes {
		err := fmt.Errorf("payload holds %d lanes, got %d", NumLanes, len(lanes))
		panic(err)
	}

	var p Payload
	for i, v := range lanes {
		p.SetLane(i, laneBits, v)
	}
	return p
}

// Bytes serializes the low n bytes of the payload, little-endian.
func (p Payload) Bytes(n int) []byte {
	if n < 0 || n > PayloadBits/8 {
		err := fmt.Errorf("payload byte count %d out of range", n)
		panic(err)
	}

	full := make([]byte, PayloadBits/8)
	for i, w := range p {
		binary.LittleEndian.PutUint32(full[4*i:], w)
	}
	return full[:n]
}

// PayloadFromBytes is the inverse of Bytes. Missing bytes read as zero and
// bytes past the container are ignored.
func PayloadFromBytes(raw []byte) Payload {
	full := make([]byte, PayloadBits/8)
	copy(full, raw)

	var p Payload
	for i := range p {
		p[i] = binary.LittleEndian.Uint32(full[4*i:])
	}
	return p
}

// Truncate clears every bit at or above bits.
func (p Payload) Truncate(bits int) Payload {
	if bits >= PayloadBits {
		return p
	}
	if bits < 0 {
		bits = 0
	}

	var out Payload
	for offset := 0; offset < bits; offset += 32 {
		width := min(32, bits-offset)
		out.SetField(offset, width, p.Field(offset, width))
	}
	return out
}

func checkField(offset, width int) {
	if width <= 0 || width > 64 || offset < 0 || offset+width > PayloadBits {
		err := fmt.Errorf("payload field [%d +%d) out of range", offset, width)
		panic(err)
	}
}

func checkLane(i, laneBits int) {
	if i < 0 || i >= NumLanes {
		err := fmt.Errorf("lane %d out of range", i)
		panic(err)
	}
	if laneBits != 8 && laneBits != 16 && laneBits != 32 {
		err := fmt.Errorf("lane width %d is not supported", laneBits)
		panic(err)
	}
}
