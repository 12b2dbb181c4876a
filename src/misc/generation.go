package misc

// Generation selects the lane word format of the scratchpad and every
// engine datapath. The payload width follows from it: 16 lanes times the
// lane width.
type Generation string

const (
	// GenerationQ8 is the 8-bit Q4.4 generation with a 128-bit payload.
	GenerationQ8 Generation = "q8"
	// GenerationQ16 uses 16-bit Q8.8 lanes.
	GenerationQ16 Generation = "q16"
	// GenerationQ32 uses 32-bit Q16.16 lanes.
	GenerationQ32 Generation = "q32"
	// GenerationHalf uses IEEE binary16 lanes.
	GenerationHalf Generation = "half"
)

// DefaultGeneration returns the generation used when no explicit selection
// is made.
func DefaultGeneration() Generation {
	return GenerationQ8
}

// GenerationFromString converts an arbitrary string into a Generation. When
// the provided value is unknown the bool return will be false.
func GenerationFromString(value string) (Generation, bool) {
	switch value {
	case string(GenerationQ8):
		return GenerationQ8, true
	case string(GenerationQ16):
		return GenerationQ16, true
	case string(GenerationQ32):
		return GenerationQ32, true
	case string(GenerationHalf):
		return GenerationHalf, true
	default:
		return "", false
	}
}

// LaneBits is the lane width of the generation.
func (g Generation) LaneBits() int {
	switch g {
	case GenerationQ16, GenerationHalf:
		return 16
	case GenerationQ32:
		return 32
	default:
		return 8
	}
}
