package main

import (
	"fmt"
	"os"
	"path/filepath"

	"NMPulator/src/misc"
	"NMPulator/src/simulator"
)

func main() {
	command_line_parser := InitCommandLineParser()
	command_line_parser.Parse(os.Args)

	if command_line_parser.IsArgSet("help") {
		fmt.Printf("%s", command_line_parser.StringifyHelpMsgs())
		return
	}

	command_line_validator := new(misc.CommandLineValidator)
	command_line_validator.Init(command_line_parser)
	command_line_validator.Validate()

	misc.ConfigureRuntime(command_line_parser)

	bin_dirpath := command_line_parser.StringParameter("bin_dirpath")
	args_filepath := filepath.Join(bin_dirpath, "args.txt")
	options_filepath := filepath.Join(bin_dirpath, "options.txt")

	args_file_dumper := new(misc.FileDumper)
	args_file_dumper.Init(args_filepath)
	args_file_dumper.WriteLines([]string{command_line_parser.StringifyArgs()})

	options_file_dumper := new(misc.FileDumper)
	options_file_dumper.Init(options_filepath)
	options_file_dumper.WriteLines([]string{command_line_parser.StringifyOptions()})

	simulator_ := new(simulator.Simulator)
	simulator_.Init(command_line_parser)

	for !simulator_.IsFinished() {
		simulator_.Cycle()
	}

	simulator_.Dump()
	simulator_.Fini()

	if !simulator_.Passed() {
		fmt.Println("[nmp] TEST FAILED")
		os.Exit(1)
	}
	fmt.Println("[nmp] TEST PASSED")
}

func InitCommandLineParser() *misc.CommandLineParser {
	command_line_parser := new(misc.CommandLineParser)
	command_line_parser.Init()

	// level 0: warnings only
	// level 1: engine start and finish
	// level 2: arbitration losses, nacks and saturations
	command_line_parser.AddOption(misc.INT, "verbose", "0", "verbosity of the simulation")

	command_line_parser.AddOption(
		misc.STRING,
		"generation",
		string(misc.DefaultGeneration()),
		"lane format of the core (q8|q16|q32|half)",
	)
	command_line_parser.AddOption(
		misc.INT,
		"frac_bits",
		"-1",
		"fraction bits of fixed-point lanes (-1 keeps the generation default)",
	)

	command_line_parser.AddOption(
		misc.STRING,
		"scenario",
		"all",
		"host program to run (rmsnorm|softmax|mac|all)",
	)
	command_line_parser.AddOption(
		misc.INT,
		"max_cycles",
		"100000",
		"polling bound of every host wait, in register accesses",
	)
	command_line_parser.AddOption(
		misc.STRING,
		"input_value",
		"1.0",
		"lane value of the rmsnorm input vector",
	)
	command_line_parser.AddOption(misc.INT, "irq_cycles", "10", "interrupt assertion length in cycles")

	command_line_parser.AddOption(misc.INT, "slot", "0", "card slot to attach")
	command_line_parser.AddOption(
		misc.STRING,
		"bar_paths",
		"",
		"comma separated BAR resource files, one per slot (empty simulates the core)",
	)

	command_line_parser.AddOption(misc.STRING, "config_path", "", "optional JSON geometry overrides")
	command_line_parser.AddOption(misc.STRING, "root_dirpath", ".", "path to the root directory")
	command_line_parser.AddOption(misc.STRING, "bin_dirpath", "bin", "path to the bin directory")

	return command_line_parser
}
