package simulator

import (
	"NMPulator/src/misc"
)

type Platform interface {
	Init(command_line_parser *misc.CommandLineParser)
	Fini()
	IsFinished() bool
	Cycle()
	Dump()
	Failures() []string
}

// newPlatform picks a card behind PCIe BARs when bar paths are given and
// the simulated core otherwise.
func newPlatform(command_line_parser *misc.CommandLineParser) Platform {
	if command_line_parser.StringParameter("bar_paths") != "" {
		return new(CardPlatform)
	}
	return new(NmpPlatform)
}
