package simulator

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"NMPulator/src/misc"
	"NMPulator/src/simulator/codec"
	"NMPulator/src/simulator/core"
	"NMPulator/src/simulator/host"
	"NMPulator/src/simulator/numeric"
)

const cardTimeout = 10 * time.Second

// hostRunner runs one scenario per Cycle through a registry-held driver.
type hostRunner struct {
	bin_dirpath string
	scenarios   []string
	next        int
	input       float64
	timeout     time.Duration

	registry *host.Registry
	handle   host.Handle
	session  session

	results  []string
	failures []string

	stat_factory *misc.StatFactory
}

func (this *hostRunner) init(
	command_line_parser *misc.CommandLineParser,
	opener host.Opener,
	options host.Options,
	timeout time.Duration,
) {
	config_loader := new(misc.ConfigLoader)
	config_loader.Init()

	this.bin_dirpath = command_line_parser.StringParameter("bin_dirpath")
	this.scenarios = Scenarios(command_line_parser.StringParameter("scenario"))
	this.timeout = timeout

	input, err := strconv.ParseFloat(command_line_parser.StringParameter("input_value"), 64)
	if err != nil {
		panic(fmt.Errorf("input_value: %w", err))
	}
	this.input = input

	format, err := numeric.FormatFor(string(config_loader.Generation()), config_loader.FracBits())
	if err != nil {
		panic(err)
	}
	partition, err := host.CheckPartition(config_loader.Partition())
	if err != nil {
		panic(err)
	}

	options.PayloadBytes = codec.NewCodec(format.Bits()).PayloadBytes()
	options.Attempts = int(command_line_parser.IntParameter("max_cycles"))

	logger := misc.NewLogger()
	this.registry = host.NewRegistry(opener, options, logger)
	this.handle, err = this.registry.Open(int(command_line_parser.IntParameter("slot")))
	if err != nil {
		panic(err)
	}
	driver, err := this.registry.Get(this.handle)
	if err != nil {
		panic(err)
	}

	this.session = session{
		driver:    driver,
		partition: partition,
		format:    format,
		irqCycles: uint32(config_loader.IrqCycles()),
	}

	this.stat_factory = new(misc.StatFactory)
	this.stat_factory.Init("Host")
}

func (this *hostRunner) fini() {
	if this.registry == nil {
		return
	}
	if err := this.registry.Close(this.handle); err != nil {
		fmt.Printf("[nmp] %v\n", err)
	}
	this.registry = nil
}

func (this *hostRunner) IsFinished() bool {
	return this.next >= len(this.scenarios)
}

func (this *hostRunner) Cycle() {
	if this.IsFinished() {
		return
	}
	name := this.scenarios[this.next]
	this.next++

	ctx := context.Background()
	if this.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, this.timeout)
		defer cancel()
	}

	fmt.Printf("[nmp] running scenario %s on %s lanes\n", name, this.session.format.Name())
	if err := this.session.run(ctx, name, this.input); err != nil {
		this.fail(fmt.Sprintf("%s: %v", name, err))
		return
	}
	this.stat_factory.Increment("passed_scenarios", 1)
	this.results = append(this.results, fmt.Sprintf("Host_scenario_%s: passed", name))
	fmt.Printf("[nmp] scenario %s passed\n", name)
}

func (this *hostRunner) fail(message string) {
	this.stat_factory.Increment("failed_scenarios", 1)
	this.failures = append(this.failures, message)
	this.results = append(this.results, "Host_failure: "+message)
	fmt.Printf("[nmp] FAILED %s\n", message)
}

// checkInterrupts compares the interrupt counter with one window per run.
func (this *hostRunner) checkInterrupts(runs int) {
	cycles, err := this.session.driver.InterruptCycles()
	if err != nil {
		this.fail(err.Error())
		return
	}

	expected := uint32(runs) * this.session.irqCycles
	this.results = append(this.results, fmt.Sprintf("Host_interrupt_cycles: %d", cycles))
	if cycles < expected {
		this.fail(fmt.Sprintf("interrupt cycles %d lesser than expected %d", cycles, expected))
	}
}

func (this *hostRunner) Failures() []string {
	return this.failures
}

func (this *hostRunner) lines() []string {
	this.stat_factory.Increment("passed_scenarios", 0)
	this.stat_factory.Increment("failed_scenarios", 0)

	lines := this.stat_factory.ToLines()
	lines = append(lines, this.session.driver.StatFactory().ToLines()...)
	return append(lines, this.results...)
}

func (this *hostRunner) dump(lines []string) {
	if this.bin_dirpath == "" {
		return
	}

	file_dumper := new(misc.FileDumper)
	file_dumper.Init(filepath.Join(this.bin_dirpath, "nmp_log.txt"))
	file_dumper.WriteLines(lines)
}

// NmpPlatform runs the host programs against a simulated core behind the
// simulated card shell.
type NmpPlatform struct {
	hostRunner

	core      *core.Core
	transport *host.SimTransport
}

func (this *NmpPlatform) Init(command_line_parser *misc.CommandLineParser) {
	config_loader := new(misc.ConfigLoader)
	config_loader.Init()

	config_validator := new(misc.ConfigValidator)
	config_validator.Init(config_loader)
	config_validator.Validate()

	c, err := core.New(core.ConfigFromLoader(config_loader), misc.NewLogger())
	if err != nil {
		panic(err)
	}
	this.core = c
	this.transport = host.NewSimTransport(c, uint8(config_loader.Partition()), 1, misc.NewLogger())

	opener := func(slot int) (host.Transport, error) {
		return this.transport, nil
	}
	// Simulated time only moves on register accesses, so the driver never
	// sleeps.
	this.hostRunner.init(command_line_parser, opener, host.Options{
		PollValid: true,
		Sleep:     func(time.Duration) {},
	}, 0)

	fmt.Printf("[nmp] core ready: %s generation, %d banks x %d entries\n",
		config_loader.Generation(), config_loader.NumBanks(), config_loader.BankEntries())
}

func (this *NmpPlatform) Fini() {
	this.hostRunner.fini()
}

func (this *NmpPlatform) Cycle() {
	before := this.core.Cycle()
	this.hostRunner.Cycle()
	fmt.Printf("[nmp] core cycles: %d (+%d)\n", this.core.Cycle(), this.core.Cycle()-before)

	if this.IsFinished() {
		this.checkInterrupts(int(this.core.DoneCount()))
	}
}

func (this *NmpPlatform) Dump() {
	lines := this.lines()
	lines = append(lines, this.transport.StatFactory().ToLines()...)
	lines = append(lines, this.core.ToLines()...)
	this.dump(lines)
}

// CardPlatform runs the same host programs against cards mapped through
// PCIe BAR resource files.
type CardPlatform struct {
	hostRunner
}

func (this *CardPlatform) Init(command_line_parser *misc.CommandLineParser) {
	paths := strings.Split(command_line_parser.StringParameter("bar_paths"), ",")
	for i := range paths {
		paths[i] = strings.TrimSpace(paths[i])
	}

	this.hostRunner.init(command_line_parser, host.BAROpener(paths, 0), host.Options{
		PollValid: false,
	}, cardTimeout)

	fmt.Printf("[nmp] attached card slot %d\n", command_line_parser.IntParameter("slot"))
}

func (this *CardPlatform) Fini() {
	this.hostRunner.fini()
}

func (this *CardPlatform) Cycle() {
	this.hostRunner.Cycle()

	if this.IsFinished() {
		this.checkInterrupts(len(this.scenarios))
	}
}

func (this *CardPlatform) Dump() {
	this.dump(this.lines())
}
