// Package host is the software side of the card shell: a register-level
// transport, a driver that runs AXI-style write and read transactions over
// it, and a registry of attached slots.
package host

import (
	"errors"
	"fmt"
)

var (
	ErrTimeout       = errors.New("host: timed out")
	ErrClosed        = errors.New("host: transport closed")
	ErrUnknownHandle = errors.New("host: unknown handle")
	ErrPartition     = errors.New("host: invalid partition")
	ErrOffset        = errors.New("host: register offset not mapped")
)

// Transport moves 32-bit registers at byte offsets of the shell.
type Transport interface {
	Poke(offset uint32, value uint32) error
	Peek(offset uint32) (uint32, error)
}

const (
	addressWords = 2
	addressShift = 10
	addressHigh  = 0x3FFFF
	dataShift    = 10
	dataLowMask  = 1<<dataShift - 1
	writeStrobe  = 0x1FFFF

	baseAW          = 0x400
	baseW           = 0x410
	offsetInterrupt = 0x570
	offsetRValid    = 0x574
)

// Layout places the shell channels for payloads of Words 32-bit words. The
// W and R channels carry one extra word: the strobe on W and the shifted
// tail on R.
type Layout struct {
	Words     int
	AW        uint32
	W         uint32
	B         uint32
	AR        uint32
	R         uint32
	Interrupt uint32
	RValid    uint32
}

// LayoutFor returns the layout for payloadBytes. 16-byte payloads land on
// the card's fixed offsets: AW 0x400, W 0x410, AR 0x440, R 0x450.
func LayoutFor(payloadBytes int) Layout {
	if payloadBytes <= 0 || payloadBytes%4 != 0 || payloadBytes > 64 {
		err := fmt.Errorf("payload of %d bytes cannot be carried by the shell", payloadBytes)
		panic(err)
	}

	words := payloadBytes / 4
	b := baseW + alignUp(uint32(4*(words+1)), 0x10)
	ar := b + 0x10

	return Layout{
		Words:     words,
		AW:        baseAW,
		W:         baseW,
		B:         b,
		AR:        ar,
		R:         ar + 0x10,
		Interrupt: offsetInterrupt,
		RValid:    offsetRValid,
	}
}

func alignUp(v, to uint32) uint32 {
	return (v + to - 1) / to * to
}

// ChannelWords is the number of registers of the W and R channels.
func (l Layout) ChannelWords() int {
	return l.Words + 1
}

func within(offset, base uint32, words int) (int, bool) {
	if offset < base || offset >= base+uint32(4*words) || (offset-base)%4 != 0 {
		return 0, false
	}
	return int((offset - base) / 4), true
}

// AxiAddress joins a partition byte and a 24-bit command address.
func AxiAddress(partition uint8, address uint32) uint32 {
	return uint32(partition)<<24 | address&0xFFFFFF
}

// CheckPartition validates a configured partition byte.
func CheckPartition(partition int) (uint8, error) {
	if partition <= 0 || partition > 0xFF {
		return 0, fmt.Errorf("%w: 0x%x", ErrPartition, partition)
	}
	return uint8(partition), nil
}

// SplitAddress places an AXI address on the AW/AR registers.
func SplitAddress(axi uint32) [addressWords]uint32 {
	full := uint64(axi) << addressShift
	return [addressWords]uint32{uint32(full), uint32(full>>32) & addressHigh}
}

// JoinAddress undoes SplitAddress.
func JoinAddress(words [addressWords]uint32) uint32 {
	full := uint64(words[1]&addressHigh)<<32 | uint64(words[0])
	return uint32(full >> addressShift)
}

// PackW lays data out on the W registers with the trailing strobe word.
func PackW(data []uint32) []uint32 {
	out := make([]uint32, len(data)+1)
	copy(out, data)
	out[len(data)] = writeStrobe
	return out
}

// PackR lays data out on the R registers: the payload sits at bit 10.
func PackR(data []uint32) []uint32 {
	out := make([]uint32, len(data)+1)
	for i, word := range data {
		out[i] |= word << dataShift
		out[i+1] |= word >> (32 - dataShift)
	}
	return out
}

// UnpackR recovers the payload from the R registers.
func UnpackR(words []uint32) []uint32 {
	if len(words) == 0 {
		return nil
	}
	out := make([]uint32, len(words)-1)
	for i := range out {
		out[i] = words[i]>>dataShift | (words[i+1]&dataLowMask)<<(32-dataShift)
	}
	return out
}
