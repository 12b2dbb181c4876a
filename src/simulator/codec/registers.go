package codec

// Bit offsets of every register layout. All packing and unpacking of
// config payloads goes through this file.
const (
	reductionValidBit     = 0
	reductionModeOffset   = 8
	reductionModeWidth    = 3
	reductionMemoryOffset = 32
	reductionMemoryWidth  = 3
	reductionVectorOffset = 48
	reductionVectorWidth  = 8
	reductionStepOffset   = 64
	reductionStepWidth    = 16

	addressMapStride      = 32
	addressMapVectorWidth = 8
	addressMapBaseOffset  = 16
	addressMapBaseWidth   = 16

	peValidBit         = 0
	peZeroFirstBit     = 8
	peManagerOffset    = 16
	peManagerWidth     = 1
	peNumOutputOffset  = 32
	peNumOutputWidth   = 8
	peScaleOffset      = 64
	peScaleWidth       = 16
	peShiftOffset      = 80
	peShiftWidth       = 5
	managerZeroBit     = 0
	managerInputOffset = 8
	managerInputWidth  = 8
	managerWeightBase  = 16
	managerInputBase   = 32
	managerBaseWidth   = 16

	controlValidBit      = 0
	controlInMemOffset   = 8
	controlOutMemOffset  = 16
	controlMemWidth      = 3
	controlManagerOffset = 24
	controlManagerWidth  = 1
	controlInputOffset   = 32
	controlOutputOffset  = 40
	controlCountWidth    = 8
	controlStepOffset    = 48
	controlStepWidth     = 16
)

// NumMemories is the number of logical memory indices the address map
// holds a base/num_vector pair for.
const NumMemories = 4

// Reduction kernel selectors carried in ReductionConfig.Mode.
const (
	ModeRMSNorm uint8 = 0
	ModeSoftmax uint8 = 1
)

// ReductionConfig is the register at RegionReductionConfig/LocalConfig.
type ReductionConfig struct {
	IsValid     bool
	Mode        uint8
	MemoryIndex uint8
	NumVector   uint8
	NumTimestep uint16
}

func (c ReductionConfig) Pack() Payload {
	var p Payload
	p.SetFlag(reductionValidBit, c.IsValid)
	p.SetField(reductionModeOffset, reductionModeWidth, uint64(c.Mode))
	p.SetField(reductionMemoryOffset, reductionMemoryWidth, uint64(c.MemoryIndex))
	p.SetField(reductionVectorOffset, reductionVectorWidth, uint64(c.NumVector))
	p.SetField(reductionStepOffset, reductionStepWidth, uint64(c.NumTimestep))
	return p
}

func UnpackReductionConfig(p Payload) ReductionConfig {
	return ReductionConfig{
		IsValid:     p.Flag(reductionValidBit),
		Mode:        uint8(p.Field(reductionModeOffset, reductionModeWidth)),
		MemoryIndex: uint8(p.Field(reductionMemoryOffset, reductionMemoryWidth)),
		NumVector:   uint8(p.Field(reductionVectorOffset, reductionVectorWidth)),
		NumTimestep: uint16(p.Field(reductionStepOffset, reductionStepWidth)),
	}
}

// AddressMap is the register at RegionEngineConfig/LocalAddressMap. Memory
// m owns bits [32m, 32m+32): num_vector in the low byte, base in the high
// half.
type AddressMap struct {
	NumVector [NumMemories]uint8
	Base      [NumMemories]uint16
}

func (m AddressMap) Pack() Payload {
	var p Payload
	for i := 0; i < NumMemories; i++ {
		p.SetField(i*addressMapStride, addressMapVectorWidth, uint64(m.NumVector[i]))
		p.SetField(i*addressMapStride+addressMapBaseOffset, addressMapBaseWidth, uint64(m.Base[i]))
	}
	return p
}

func UnpackAddressMap(p Payload) AddressMap {
	var m AddressMap
	for i := 0; i < NumMemories; i++ {
		m.NumVector[i] = uint8(p.Field(i*addressMapStride, addressMapVectorWidth))
		m.Base[i] = uint16(p.Field(i*addressMapStride+addressMapBaseOffset, addressMapBaseWidth))
	}
	return m
}

// PEConfig is the MAC engine register at RegionEngineConfig/LocalPEConfig.
// A zero Scale selects the engine defaults for both scale and shift.
type PEConfig struct {
	IsValid      bool
	IsZeroFirst  bool
	ManagerIndex uint8
	NumOutput    uint8
	Scale        uint16
	Shift        uint8
}

func (c PEConfig) Pack() Payload {
	var p Payload
	p.SetFlag(peValidBit, c.IsValid)
	p.SetFlag(peZeroFirstBit, c.IsZeroFirst)
	p.SetField(peManagerOffset, peManagerWidth, uint64(c.ManagerIndex))
	p.SetField(peNumOutputOffset, peNumOutputWidth, uint64(c.NumOutput))
	p.SetField(peScaleOffset, peScaleWidth, uint64(c.Scale))
	p.SetField(peShiftOffset, peShiftWidth, uint64(c.Shift))
	return p
}

func UnpackPEConfig(p Payload) PEConfig {
	return PEConfig{
		IsValid:      p.Flag(peValidBit),
		IsZeroFirst:  p.Flag(peZeroFirstBit),
		ManagerIndex: uint8(p.Field(peManagerOffset, peManagerWidth)),
		NumOutput:    uint8(p.Field(peNumOutputOffset, peNumOutputWidth)),
		Scale:        uint16(p.Field(peScaleOffset, peScaleWidth)),
		Shift:        uint8(p.Field(peShiftOffset, peShiftWidth)),
	}
}

// ManagerConfig is a MAC address manager register at
// RegionEngineConfig/LocalManagerBase+m.
type ManagerConfig struct {
	ZeroActive bool
	NumInput   uint8
	BaseWeight uint16
	BaseInput  uint16
}

func (c ManagerConfig) Pack() Payload {
	var p Payload
	p.SetFlag(managerZeroBit, c.ZeroActive)
	p.SetField(managerInputOffset, managerInputWidth, uint64(c.NumInput))
	p.SetField(managerWeightBase, managerBaseWidth, uint64(c.BaseWeight))
	p.SetField(managerInputBase, managerBaseWidth, uint64(c.BaseInput))
	return p
}

func UnpackManagerConfig(p Payload) ManagerConfig {
	return ManagerConfig{
		ZeroActive: p.Flag(managerZeroBit),
		NumInput:   uint8(p.Field(managerInputOffset, managerInputWidth)),
		BaseWeight: uint16(p.Field(managerWeightBase, managerBaseWidth)),
		BaseInput:  uint16(p.Field(managerInputBase, managerBaseWidth)),
	}
}

// ControlConfig is the register at RegionControlConfig/LocalConfig.
type ControlConfig struct {
	IsValid      bool
	InputMemory  uint8
	OutputMemory uint8
	ManagerIndex uint8
	NumInput     uint8
	NumOutput    uint8
	NumTimestep  uint16
}

func (c ControlConfig) Pack() Payload {
	var p Payload
	p.SetFlag(controlValidBit, c.IsValid)
	p.SetField(controlInMemOffset, controlMemWidth, uint64(c.InputMemory))
	p.SetField(controlOutMemOffset, controlMemWidth, uint64(c.OutputMemory))
	p.SetField(controlManagerOffset, controlManagerWidth, uint64(c.ManagerIndex))
	p.SetField(controlInputOffset, controlCountWidth, uint64(c.NumInput))
	p.SetField(controlOutputOffset, controlCountWidth, uint64(c.NumOutput))
	p.SetField(controlStepOffset, controlStepWidth, uint64(c.NumTimestep))
	return p
}

func UnpackControlConfig(p Payload) ControlConfig {
	return ControlConfig{
		IsValid:      p.Flag(controlValidBit),
		InputMemory:  uint8(p.Field(controlInMemOffset, controlMemWidth)),
		OutputMemory: uint8(p.Field(controlOutMemOffset, controlMemWidth)),
		ManagerIndex: uint8(p.Field(controlManagerOffset, controlManagerWidth)),
		NumInput:     uint8(p.Field(controlInputOffset, controlCountWidth)),
		NumOutput:    uint8(p.Field(controlOutputOffset, controlCountWidth)),
		NumTimestep:  uint16(p.Field(controlStepOffset, controlStepWidth)),
	}
}
