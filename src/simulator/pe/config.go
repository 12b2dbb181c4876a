package pe

import (
	"fmt"

	"NMPulator/src/misc"
	"NMPulator/src/simulator/codec"
)

// Activation scaling applied when the PE config leaves Scale at zero.
const (
	DefaultScale = 167
	DefaultShift = 11
)

// Config is the PE register, the address managers and the MAC counters.
type Config struct {
	register codec.PEConfig
	managers [codec.NumManagers]codec.ManagerConfig

	input  misc.WrapCounter
	output misc.WrapCounter
}

func NewConfig() *Config {
	c := &Config{
		register: codec.PEConfig{NumOutput: 1},
	}
	for m := range c.managers {
		c.managers[m].NumInput = 1
	}
	c.ResetCounters()
	return c
}

func (c *Config) Register() codec.PEConfig {
	return c.register
}

func (c *Config) Manager(m int) codec.ManagerConfig {
	return c.managers[c.checkManager(m)]
}

// ActiveManager is the manager selected by the PE register.
func (c *Config) ActiveManager() int {
	return int(c.register.ManagerIndex) % codec.NumManagers
}

// Write stores a RegionEngineConfig payload and reports whether the local
// index names a PE register.
func (c *Config) Write(local uint16, data codec.Payload) bool {
	switch {
	case local == codec.LocalPEConfig:
		c.register = codec.UnpackPEConfig(data)
		return true
	case local >= codec.LocalManagerBase && local < codec.LocalManagerBase+codec.NumManagers:
		c.managers[local-codec.LocalManagerBase] = codec.UnpackManagerConfig(data)
		return true
	default:
		return false
	}
}

// Read returns the register at a local index, zero for unknown indices.
func (c *Config) Read(local uint16) codec.Payload {
	switch {
	case local == codec.LocalPEConfig:
		return c.register.Pack()
	case local >= codec.LocalManagerBase && local < codec.LocalManagerBase+codec.NumManagers:
		return c.managers[local-codec.LocalManagerBase].Pack()
	default:
		return codec.Payload{}
	}
}

// ScaleShift returns the activation scale and right shift. A zero scale
// selects the defaults for both.
func (c *Config) ScaleShift() (int64, int) {
	if c.register.Scale == 0 {
		return DefaultScale, DefaultShift
	}
	return int64(c.register.Scale), int(c.register.Shift)
}

// SkipsMac reports whether the active manager's zero flag lets the engine
// skip accumulation for the current output.
func (c *Config) SkipsMac() bool {
	return c.managers[c.ActiveManager()].ZeroActive && c.register.IsZeroFirst
}

func (c *Config) ResetCounters() {
	c.input.Init(int(c.managers[c.ActiveManager()].NumInput))
	c.output.Init(int(c.register.NumOutput))
}

func (c *Config) InputIndex() int {
	return c.input.Value()
}

func (c *Config) OutputIndex() int {
	return c.output.Value()
}

// NextInput reports whether the input counter wrapped.
func (c *Config) NextInput() bool {
	return c.input.Increment()
}

// NextOutput reports whether the output counter wrapped.
func (c *Config) NextOutput() bool {
	return c.output.Increment()
}

// WeightAddress is the weight buffer row of lane for the current input and
// output indices.
func (c *Config) WeightAddress(lane int) int {
	m := c.managers[c.ActiveManager()]
	row := c.output.Value()*int(m.NumInput) + c.input.Value()
	return int(m.BaseWeight) + row*codec.NumLanes + lane
}

// InputAddress places a logical input vector of manager m in the input
// buffer.
func (c *Config) InputAddress(m int, logical int) int {
	return int(c.managers[c.checkManager(m)].BaseInput) + logical
}

func (c *Config) checkManager(m int) int {
	if m < 0 || m >= codec.NumManagers {
		err := fmt.Errorf("manager index %d out of range [0, %d)", m, codec.NumManagers)
		panic(err)
	}
	return m
}
