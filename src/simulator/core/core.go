// Package core assembles one accelerator core: the banked scratchpad and its
// controller, the reduction, MAC and control engines, and the router that
// fronts them. Everything advances on a single global tick.
package core

import (
	"fmt"
	"log/slog"

	"NMPulator/src/misc"
	"NMPulator/src/simulator/codec"
	"NMPulator/src/simulator/control"
	"NMPulator/src/simulator/nmp"
	"NMPulator/src/simulator/numeric"
	"NMPulator/src/simulator/pe"
	"NMPulator/src/simulator/router"
	"NMPulator/src/simulator/scratchpad"
	"NMPulator/src/simulator/wire"
)

// Direct access, the reduction engine and the control engine each own one
// scratchpad read port.
const numScratchpadPorts = 3

type Core struct {
	config Config
	format numeric.Format

	scratchpad *scratchpad.Scratchpad
	controller *scratchpad.Controller
	reduction  *nmp.Engine
	mac        *pe.Engine
	control    *control.Engine
	router     *router.Router

	group wire.Group

	cycle           int64
	irq             bool
	irqRemaining    int
	interruptCycles int64
	doneCount       int64

	logger       *slog.Logger
	stat_factory *misc.StatFactory
}

func New(config Config, logger *slog.Logger) (*Core, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("core config: %w", err)
	}

	format, err := numeric.FormatFor(string(config.Generation), config.FracBits)
	if err != nil {
		return nil, fmt.Errorf("core format: %w", err)
	}

	logger = misc.OrDiscard(logger)
	c := &Core{
		config: config,
		format: format,
		logger: logger.With("component", "Core"),
	}

	capacity := config.ChannelCapacity

	c.scratchpad = scratchpad.NewScratchpad("Scratchpad", config.NumBanks, config.BankEntries, format.Bits(), numScratchpadPorts)
	c.controller = new(scratchpad.Controller)
	c.controller.Init("Controller", c.scratchpad, scratchpad.NewAddressMap(config.NumBanks), capacity, logger)

	reductionPort := c.controller.Connect(scratchpad.ClientReduction, capacity)
	controlPort := c.controller.Connect(scratchpad.ClientMac, capacity)

	c.reduction = nmp.NewEngine("Reduction", format, reductionPort, capacity, logger)
	c.mac = pe.NewEngine("Mac", format.Bits(), config.BufferEntries, capacity, logger)
	c.control = control.NewEngine("Control", controlPort, control.MacPort{
		Stream:      c.mac.Stream(),
		Start:       c.mac.Start(),
		Activations: c.mac.Activations(),
	}, capacity, logger)

	c.router = router.NewRouter("Router", router.Ports{
		Controller:     router.Endpoint{Commands: c.controller.Commands(), Replies: c.controller.Replies()},
		Reduction:      router.Endpoint{Commands: c.reduction.Commands(), Replies: c.reduction.Replies()},
		Control:        router.Endpoint{Commands: c.control.Commands(), Replies: c.control.Replies()},
		Mac:            router.Endpoint{Commands: c.mac.Commands(), Replies: c.mac.Replies()},
		ControlStart:   c.control.Start(),
		ReductionStart: c.reduction.Start(),
		ControlDone:    c.control.Done(),
		ReductionDone:  c.reduction.Done(),
	}, capacity, logger)

	c.group.Add(c.router.Channels()...)
	c.group.Add(c.controller.Channels()...)
	c.group.Add(c.reduction.Channels()...)
	c.group.Add(c.mac.Channels()...)
	c.group.Add(c.control.Channels()...)

	c.stat_factory = new(misc.StatFactory)
	c.stat_factory.Init("Core")

	c.logger.Info("core built",
		"generation", config.Generation,
		"format", format.Name(),
		"banks", config.NumBanks,
		"bank_entries", config.BankEntries)

	return c, nil
}

// Tick advances every block by one cycle and then commits all channels.
func (c *Core) Tick() {
	c.router.Cycle()
	c.controller.Cycle()
	c.reduction.Tick()
	c.control.Tick()
	c.mac.Tick()
	c.tickInterrupt()

	c.group.Commit()
	c.cycle++
}

// tickInterrupt raises the line for IrqCycles ticks after every done pulse.
// A done pulse that arrives while the line is high restarts the window.
func (c *Core) tickInterrupt() {
	if _, ok := c.router.Done().Pop(); ok {
		c.irqRemaining = c.config.IrqCycles
		c.doneCount++
		c.stat_factory.Increment("done_pulses", 1)
		c.logger.Info("done", "cycle", c.cycle)
	}

	c.irq = c.irqRemaining > 0
	if c.irq {
		c.irqRemaining--
		c.interruptCycles++
		c.stat_factory.Increment("interrupt_cycles", 1)
	}
}

// Submit queues a command on the inbound channel. It returns false when the
// channel is full; the caller ticks and tries again.
func (c *Core) Submit(command codec.Command) bool {
	inbound := c.router.Inbound()
	if !inbound.CanPush() {
		c.stat_factory.Increment("submit_stalls", 1)
		return false
	}
	inbound.Push(command)
	return true
}

// PopReply returns the oldest reply that has left the router.
func (c *Core) PopReply() (codec.Reply, bool) {
	return c.router.Replies().Pop()
}

// IRQ reports whether the interrupt line was asserted in the last tick.
func (c *Core) IRQ() bool {
	return c.irq
}

func (c *Core) InterruptCycles() int64 {
	return c.interruptCycles
}

func (c *Core) DoneCount() int64 {
	return c.doneCount
}

func (c *Core) Cycle() int64 {
	return c.cycle
}

func (c *Core) Config() Config {
	return c.config
}

func (c *Core) Format() numeric.Format {
	return c.format
}

func (c *Core) Codec() codec.Codec {
	return codec.NewCodec(c.format.Bits())
}

func (c *Core) Scratchpad() *scratchpad.Scratchpad {
	return c.scratchpad
}

func (c *Core) Controller() *scratchpad.Controller {
	return c.controller
}

func (c *Core) Reduction() *nmp.Engine {
	return c.reduction
}

func (c *Core) Mac() *pe.Engine {
	return c.mac
}

func (c *Core) Control() *control.Engine {
	return c.control
}

func (c *Core) Router() *router.Router {
	return c.router
}

// IsIdle is true when no command, request or run is in flight. Replies
// waiting for the host do not count.
func (c *Core) IsIdle() bool {
	return c.router.IsIdle() &&
		c.controller.IsIdle() &&
		c.reduction.IsIdle() &&
		c.mac.IsIdle() &&
		c.control.IsIdle() &&
		c.irqRemaining == 0
}

func (c *Core) StatFactories() []*misc.StatFactory {
	return []*misc.StatFactory{
		c.stat_factory,
		c.router.StatFactory(),
		c.controller.StatFactory(),
		c.scratchpad.StatFactory(),
		c.reduction.StatFactory(),
		c.control.StatFactory(),
		c.mac.StatFactory(),
	}
}

// ToLines renders every block's statistics plus the core counters.
func (c *Core) ToLines() []string {
	c.stat_factory.Increment("done_pulses", 0)
	c.stat_factory.Increment("interrupt_cycles", 0)

	lines := make([]string, 0)
	for _, stat_factory := range c.StatFactories() {
		lines = append(lines, stat_factory.ToLines()...)
	}
	lines = append(lines, fmt.Sprintf("Core_cycles: %d", c.cycle))
	return lines
}
