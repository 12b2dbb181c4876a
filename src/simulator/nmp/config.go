package nmp

import (
	"NMPulator/src/misc"
	"NMPulator/src/simulator/codec"
	"NMPulator/src/simulator/scratchpad"
)

// Config holds the reduction engine register and its iteration counters.
// The register is not double-buffered: a write while a run is in flight
// takes effect on the next access.
type Config struct {
	register codec.ReductionConfig

	vector   misc.WrapCounter
	timestep misc.WrapCounter
}

func NewConfig() *Config {
	c := &Config{
		register: codec.ReductionConfig{NumVector: 1, NumTimestep: 1},
	}
	c.ResetCounters()
	return c
}

func (c *Config) Register() codec.ReductionConfig {
	return c.register
}

// Write stores a config payload. Only LocalConfig is backed by a register;
// other local indices are ignored.
func (c *Config) Write(local uint16, data codec.Payload) {
	if local != codec.LocalConfig {
		return
	}
	c.register = codec.UnpackReductionConfig(data)
}

// Read returns the register for LocalConfig and zero elsewhere.
func (c *Config) Read(local uint16) codec.Payload {
	if local != codec.LocalConfig {
		return codec.Payload{}
	}
	return c.register.Pack()
}

func (c *Config) ResetCounters() {
	c.vector.Init(int(c.register.NumVector))
	c.timestep.Init(int(c.register.NumTimestep))
}

func (c *Config) VectorIndex() int {
	return c.vector.Value()
}

func (c *Config) TimestepIndex() int {
	return c.timestep.Value()
}

// Descriptor is the logical access for the current counters.
func (c *Config) Descriptor(is_write bool, data codec.Payload) scratchpad.Descriptor {
	return scratchpad.Descriptor{
		MemoryIndex:   int(c.register.MemoryIndex) % codec.NumMemories,
		VectorIndex:   c.vector.Value(),
		TimestepIndex: c.timestep.Value(),
		IsWrite:       is_write,
		Data:          data,
	}
}

// Advance moves to the next vector, and to the next timestep on vector end.
// It reports whether both counters ended on this step.
func (c *Config) Advance() bool {
	vector_end := c.vector.Increment()
	if !vector_end {
		return false
	}
	return c.timestep.Increment()
}
