package codec

import "fmt"

const (
	headerBytes = 4
	flagWrite   = 0x1
	addressMask = 0xFFFFFF
)

// Command is one register transaction on the inbound channel.
type Command struct {
	IsWrite bool
	Address uint32
	Data    Payload
}

// Reply carries the data of a read back to the host, in issue order.
type Reply struct {
	Data Payload
}

func (c Command) Region() Region {
	return RegionOf(c.Address)
}

func (c Command) LocalIndex() uint16 {
	return LocalIndexOf(c.Address)
}

func (c Command) String() string {
	op := "rd"
	if c.IsWrite {
		op = "wr"
	}
	return fmt.Sprintf("%s %s[0x%04X]", op, c.Region(), c.LocalIndex())
}

// WriteCommand builds a write to region/local.
func WriteCommand(region Region, local uint16, data Payload) Command {
	return Command{IsWrite: true, Address: MakeAddress(region, local), Data: data}
}

// ReadCommand builds a read of region/local.
func ReadCommand(region Region, local uint16) Command {
	return Command{Address: MakeAddress(region, local)}
}

// Codec converts commands to and from their raw byte form. The raw form is
// one flag byte, the 24-bit address big-endian, then the payload
// little-endian. Its width depends on the lane width of the generation.
type Codec struct {
	payloadBytes int
}

// NewCodec returns a codec for payloads of NumLanes lanes of laneBits each.
func NewCodec(laneBits int) Codec {
	checkLane(0, laneBits)
	return Codec{payloadBytes: NumLanes * laneBits / 8}
}

func (c Codec) PayloadBytes() int {
	return c.payloadBytes
}

// RawBytes is the length of an encoded command.
func (c Codec) RawBytes() int {
	return headerBytes + c.payloadBytes
}

// Encode never fails. Address bits above 23 and payload bits past the
// generation width are dropped.
func (c Codec) Encode(cmd Command) []byte {
	raw := make([]byte, headerBytes, c.RawBytes())
	if cmd.IsWrite {
		raw[0] = flagWrite
	}
	address := cmd.Address & addressMask
	raw[1] = byte(address >> 16)
	raw[2] = byte(address >> 8)
	raw[3] = byte(address)
	return append(raw, cmd.Data.Bytes(c.payloadBytes)...)
}

// Decode never fails. Short input is zero-padded, trailing bytes are
// ignored.
func (c Codec) Decode(raw []byte) Command {
	buf := make([]byte, c.RawBytes())
	copy(buf, raw)

	return Command{
		IsWrite: buf[0]&flagWrite != 0,
		Address: uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3]),
		Data:    PayloadFromBytes(buf[headerBytes:]),
	}
}
