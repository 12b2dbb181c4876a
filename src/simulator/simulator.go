// Package simulator runs host programs against an accelerator core, either
// simulated or on a card, and reports their statistics.
package simulator

import "NMPulator/src/misc"

type Simulator struct {
	platform Platform
}

func (this *Simulator) Init(command_line_parser *misc.CommandLineParser) {
	platform := newPlatform(command_line_parser)
	platform.Init(command_line_parser)

	this.platform = platform
}

func (this *Simulator) Fini() {
	if this.platform != nil {
		this.platform.Fini()
	}
}

func (this *Simulator) IsFinished() bool {
	if this.platform == nil {
		return true
	}

	return this.platform.IsFinished()
}

func (this *Simulator) Cycle() {
	if this.platform != nil {
		this.platform.Cycle()
	}
}

func (this *Simulator) Dump() {
	if this.platform != nil {
		this.platform.Dump()
	}
}

// Passed is true when every host program verified its output.
func (this *Simulator) Passed() bool {
	return this.platform != nil && len(this.platform.Failures()) == 0
}
