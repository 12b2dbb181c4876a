package core

import (
	"fmt"

	"NMPulator/src/misc"
)

// Config is the geometry of one accelerator core.
type Config struct {
	Generation      misc.Generation
	FracBits        int
	NumBanks        int
	BankEntries     int
	BufferEntries   int
	ChannelCapacity int
	IrqCycles       int
}

// DefaultConfig is the 8-bit generation with the reset geometry.
func DefaultConfig() Config {
	return Config{
		Generation:      misc.DefaultGeneration(),
		FracBits:        -1,
		NumBanks:        16,
		BankEntries:     4096,
		BufferEntries:   4096,
		ChannelCapacity: 4,
		IrqCycles:       10,
	}
}

// ConfigFromLoader reads the runtime configuration.
func ConfigFromLoader(config_loader *misc.ConfigLoader) Config {
	return Config{
		Generation:      config_loader.Generation(),
		FracBits:        config_loader.FracBits(),
		NumBanks:        config_loader.NumBanks(),
		BankEntries:     config_loader.BankEntries(),
		BufferEntries:   config_loader.BufferEntries(),
		ChannelCapacity: config_loader.ChannelCapacity(),
		IrqCycles:       config_loader.IrqCycles(),
	}
}

func (c Config) Validate() error {
	if _, ok := misc.GenerationFromString(string(c.Generation)); !ok {
		return fmt.Errorf("generation %q is not supported", c.Generation)
	}
	if c.NumBanks <= 0 || c.BankEntries <= 0 {
		return fmt.Errorf("scratchpad geometry %dx%d is empty", c.NumBanks, c.BankEntries)
	}
	if c.NumBanks*c.BankEntries > 1<<16 {
		return fmt.Errorf("scratchpad of %d entries exceeds the 16-bit local index", c.NumBanks*c.BankEntries)
	}
	if c.BufferEntries <= 0 || c.BufferEntries > 1<<16 {
		return fmt.Errorf("buffer entries %d out of range", c.BufferEntries)
	}
	if c.ChannelCapacity <= 0 {
		return fmt.Errorf("channel capacity %d <= 0", c.ChannelCapacity)
	}
	if c.IrqCycles <= 0 {
		return fmt.Errorf("irq cycles %d <= 0", c.IrqCycles)
	}
	return nil
}
