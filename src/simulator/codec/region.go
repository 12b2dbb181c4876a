package codec

import "fmt"

// Region enumerates the owners of the 24-bit command address space. The
// region sits in address bits 23..20 and selects which block decodes the
// remaining local index.
type Region uint8

const (
	RegionStart           Region = 0x0
	RegionGlobalConfig    Region = 0x3
	RegionEngineConfig    Region = 0x4
	RegionScratchpad      Region = 0x5
	RegionInputBuffer     Region = 0x6
	RegionControlConfig   Region = 0x7
	RegionWeightBuffer    Region = 0x8
	RegionReductionConfig Region = 0xC
)

// Local indices inside the config regions.
const (
	LocalConfig       uint16 = 0x01
	LocalAddressMap   uint16 = 0x01
	LocalPEConfig     uint16 = 0x02
	LocalManagerBase  uint16 = 0x03
	LocalStartControl uint16 = 0x01
	LocalStartReduce  uint16 = 0x02
)

// NumManagers is the number of MAC address managers addressable through
// RegionEngineConfig.
const NumManagers = 2

func (r Region) String() string {
	switch r {
	case RegionStart:
		return "start"
	case RegionGlobalConfig:
		return "global_config"
	case RegionEngineConfig:
		return "engine_config"
	case RegionScratchpad:
		return "scratchpad"
	case RegionInputBuffer:
		return "input_buffer"
	case RegionControlConfig:
		return "control_config"
	case RegionWeightBuffer:
		return "weight_buffer"
	case RegionReductionConfig:
		return "reduction_config"
	default:
		return fmt.Sprintf("region_0x%X", uint8(r))
	}
}

// Known reports whether some block owns the region.
func (r Region) Known() bool {
	switch r {
	case RegionStart, RegionGlobalConfig, RegionEngineConfig, RegionScratchpad,
		RegionInputBuffer, RegionControlConfig, RegionWeightBuffer, RegionReductionConfig:
		return true
	default:
		return false
	}
}

// RegionOf extracts bits 23..20 of a command address.
func RegionOf(address uint32) Region {
	return Region((address >> 20) & 0xF)
}

// LocalIndexOf extracts bits 19..4 of a command address.
func LocalIndexOf(address uint32) uint16 {
	return uint16((address >> 4) & 0xFFFF)
}

// MakeAddress packs a region and local index into a 24-bit command address.
// The reserved low nibble is zero.
func MakeAddress(region Region, local uint16) uint32 {
	return (uint32(region)&0xF)<<20 | uint32(local)<<4
}
