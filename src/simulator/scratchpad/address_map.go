package scratchpad

import (
	"fmt"

	"NMPulator/src/simulator/codec"
)

// Descriptor is a logical access: which vector of which timestep of a
// logical memory.
type Descriptor struct {
	MemoryIndex   int
	VectorIndex   int
	TimestepIndex int
	IsWrite       bool
	Data          codec.Payload
}

func (d Descriptor) String() string {
	op := "rd"
	if d.IsWrite {
		op = "wr"
	}
	return fmt.Sprintf("%s mem%d[v=%d, t=%d]", op, d.MemoryIndex, d.VectorIndex, d.TimestepIndex)
}

// AddressMap places the logical memories in the scratchpad. Sixteen
// consecutive timesteps of one vector occupy consecutive physical
// addresses, so they land in sixteen different banks.
type AddressMap struct {
	numBanks int
	config   codec.AddressMap
}

func NewAddressMap(numBanks int) *AddressMap {
	m := &AddressMap{numBanks: numBanks}
	m.Reset()
	return m
}

// Reset restores num_vector = 1 and base = 0 for every memory.
func (m *AddressMap) Reset() {
	m.config = codec.AddressMap{}
	for i := range m.config.NumVector {
		m.config.NumVector[i] = 1
	}
}

func (m *AddressMap) Configure(config codec.AddressMap) {
	m.config = config
}

func (m *AddressMap) Config() codec.AddressMap {
	return m.config
}

func (m *AddressMap) Base(memory int) int {
	m.checkMemory(memory)
	return int(m.config.Base[memory])
}

func (m *AddressMap) NumVector(memory int) int {
	m.checkMemory(memory)
	return int(m.config.NumVector[memory])
}

// Translate returns the physical address of a descriptor. Range checking
// against the scratchpad is left to the scratchpad.
func (m *AddressMap) Translate(d Descriptor) int {
	m.checkMemory(d.MemoryIndex)

	lower_ts := d.TimestepIndex & 0xF
	upper_ts := d.TimestepIndex >> 4
	num_vector := int(m.config.NumVector[d.MemoryIndex])

	return int(m.config.Base[d.MemoryIndex]) + lower_ts + (upper_ts*num_vector+d.VectorIndex)*m.numBanks
}

func (m *AddressMap) checkMemory(memory int) {
	if memory < 0 || memory >= codec.NumMemories {
		err := fmt.Errorf("memory index %d out of range [0, %d)", memory, codec.NumMemories)
		panic(err)
	}
}
