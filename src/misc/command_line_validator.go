package misc

import (
	"errors"
	"fmt"
	"strconv"
)

type CommandLineValidator struct {
	command_line_parser *CommandLineParser
}

func (this *CommandLineValidator) Init(command_line_parser *CommandLineParser) {
	this.command_line_parser = command_line_parser
}

func (this *CommandLineValidator) Validate() {
	generation := this.command_line_parser.StringParameter("generation")
	parsed, ok := GenerationFromString(generation)
	if !ok {
		err := fmt.Errorf("generation %s is not supported", generation)
		panic(err)
	}

	frac_bits := this.command_line_parser.IntParameter("frac_bits")
	if parsed != GenerationHalf && frac_bits >= int64(parsed.LaneBits()) {
		err := fmt.Errorf("frac_bits %d does not fit a %d-bit lane", frac_bits, parsed.LaneBits())
		panic(err)
	}
	if frac_bits > 24 {
		err := errors.New("frac_bits > 24")
		panic(err)
	}

	scenario := this.command_line_parser.StringParameter("scenario")
	switch scenario {
	case "rmsnorm", "softmax", "mac", "all":
	default:
		err := fmt.Errorf("scenario %s is not supported", scenario)
		panic(err)
	}

	if this.command_line_parser.IntParameter("max_cycles") <= 0 {
		err := errors.New("max_cycles <= 0")
		panic(err)
	}

	if this.command_line_parser.IntParameter("irq_cycles") <= 0 {
		err := errors.New("irq_cycles <= 0")
		panic(err)
	}

	input_value := this.command_line_parser.StringParameter("input_value")
	if _, err := strconv.ParseFloat(input_value, 64); err != nil {
		err := fmt.Errorf("input_value %s is not a number", input_value)
		panic(err)
	}

	if this.command_line_parser.IntParameter("slot") < 0 {
		err := errors.New("slot < 0")
		panic(err)
	}

	if this.command_line_parser.IntParameter("verbose") < 0 {
		err := errors.New("verbose < 0")
		panic(err)
	}
}

type ConfigValidator struct {
	config_loader *ConfigLoader
}

func (this *ConfigValidator) Init(config_loader *ConfigLoader) {
	this.config_loader = config_loader
}

func (this *ConfigValidator) Validate() {
	if this.config_loader.BankEntries() <= 0 {
		err := errors.New("bank_entries <= 0")
		panic(err)
	}

	if this.config_loader.NumBanks()*this.config_loader.BankEntries() > 1<<16 {
		err := errors.New("scratchpad is larger than the 16-bit direct-access window")
		panic(err)
	}

	if this.config_loader.BufferEntries() <= 0 || this.config_loader.BufferEntries() > 1<<16 {
		err := errors.New("buffer_entries is out of range")
		panic(err)
	}

	if this.config_loader.ChannelCapacity() <= 0 {
		err := errors.New("channel_capacity <= 0")
		panic(err)
	}

	if this.config_loader.IrqCycles() <= 0 {
		err := errors.New("irq_cycles <= 0")
		panic(err)
	}

	if partition := this.config_loader.Partition(); partition < 0 || partition > 0xFF {
		err := fmt.Errorf("partition 0x%X is not a byte", partition)
		panic(err)
	}
}
