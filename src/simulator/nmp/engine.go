// Package nmp is the near-memory reduction engine. It walks a logical
// memory vector by vector, reduces each vector with the configured kernel
// and writes the result back in place.
package nmp

import (
	"fmt"
	"log/slog"

	"NMPulator/src/misc"
	"NMPulator/src/simulator/codec"
	"NMPulator/src/simulator/numeric"
	"NMPulator/src/simulator/scratchpad"
	"NMPulator/src/simulator/wire"
)

type State int

const (
	StateIdle State = iota
	StatePre
	StateRead
	StateSumSq
	StateSqrtRecip
	StateMax
	StateExp
	StateSum
	StateNormalize
	StateWrite
	StateNext
	StateFin
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePre:
		return "pre"
	case StateRead:
		return "read"
	case StateSumSq:
		return "sum_sq"
	case StateSqrtRecip:
		return "sqrt_recip"
	case StateMax:
		return "max"
	case StateExp:
		return "exp"
	case StateSum:
		return "sum"
	case StateNormalize:
		return "normalize"
	case StateWrite:
		return "write"
	case StateNext:
		return "next"
	case StateFin:
		return "fin"
	default:
		return fmt.Sprintf("state_%d", int(s))
	}
}

func invalidState(kernel string, state State) State {
	err := fmt.Errorf("%s kernel has no state %s", kernel, state)
	panic(err)
}

// Engine is the reduction engine. Each Tick either serves one config
// command or advances the FSM.
type Engine struct {
	name   string
	format numeric.Format

	config    *Config
	kernel    Kernel
	workspace Workspace
	state     State
	isStart   bool
	// writes issued but not yet acknowledged by the controller
	pendingWrites int

	commands *wire.Channel[codec.Command]
	replies  *wire.Channel[codec.Reply]
	start    *wire.Channel[bool]
	done     *wire.Channel[bool]
	memory   *scratchpad.ClientPort

	logger       *slog.Logger
	stat_factory *misc.StatFactory
}

func NewEngine(
	name string,
	format numeric.Format,
	memory *scratchpad.ClientPort,
	channelCapacity int,
	logger *slog.Logger,
) *Engine {
	e := &Engine{
		name:     name,
		format:   format,
		config:   NewConfig(),
		kernel:   RMSNorm{},
		state:    StateIdle,
		commands: wire.NewChannel[codec.Command](name+".Commands", channelCapacity),
		replies:  wire.NewChannel[codec.Reply](name+".Replies", channelCapacity),
		start:    wire.NewChannel[bool](name+".Start", 1),
		done:     wire.NewChannel[bool](name+".Done", 1),
		memory:   memory,
		logger:   misc.OrDiscard(logger).With("component", name),
	}

	e.stat_factory = new(misc.StatFactory)
	e.stat_factory.Init(name)

	return e
}

func (e *Engine) Name() string {
	return e.name
}

func (e *Engine) Commands() *wire.Channel[codec.Command] {
	return e.commands
}

func (e *Engine) Replies() *wire.Channel[codec.Reply] {
	return e.replies
}

func (e *Engine) Start() *wire.Channel[bool] {
	return e.start
}

func (e *Engine) Done() *wire.Channel[bool] {
	return e.done
}

func (e *Engine) Channels() []wire.Committer {
	return []wire.Committer{e.commands, e.replies, e.start, e.done}
}

func (e *Engine) Config() *Config {
	return e.config
}

func (e *Engine) State() State {
	return e.state
}

func (e *Engine) StatFactory() *misc.StatFactory {
	return e.stat_factory
}

func (e *Engine) IsIdle() bool {
	return e.state == StateIdle && e.commands.IsEmpty() && e.start.IsEmpty()
}

func (e *Engine) Tick() {
	if e.serveCommand() {
		return
	}
	e.step()
}

func (e *Engine) serveCommand() bool {
	command, ok := e.commands.Peek()
	if !ok {
		return false
	}
	if !command.IsWrite && !e.replies.CanPush() {
		return false
	}
	e.commands.Pop()

	if command.Region() != codec.RegionReductionConfig {
		e.stat_factory.Increment("dropped_commands", 1)
		return true
	}

	if command.IsWrite {
		e.config.Write(command.LocalIndex(), command.Data)
		e.stat_factory.Increment("config_writes", 1)
		return true
	}

	e.replies.Push(codec.Reply{Data: e.config.Read(command.LocalIndex())})
	e.stat_factory.Increment("config_reads", 1)
	return true
}

// drainAcks retires write acknowledgements queued ahead of any read
// response.
func (e *Engine) drainAcks() {
	for {
		response, ok := e.memory.Responses.Peek()
		if !ok || !response.Written {
			return
		}
		e.memory.Responses.Pop()
		e.pendingWrites--
	}
}

func (e *Engine) step() {
	e.drainAcks()

	switch e.state {
	case StateIdle:
		e.stepIdle()

	case StatePre:
		if !e.memory.Requests.CanPush() {
			e.stat_factory.Increment("request_stalls", 1)
			return
		}
		e.memory.Requests.Push(e.config.Descriptor(false, codec.Payload{}))
		e.state = StateRead

	case StateRead:
		response, ok := e.memory.Responses.Pop()
		if !ok {
			return
		}
		if response.Nack {
			e.stat_factory.Increment("read_retries", 1)
			e.state = StatePre
			return
		}
		e.workspace.Input = numeric.Unpack(e.format, response.Data)
		e.state = e.kernel.Entry()

	case StateWrite:
		if !e.memory.Requests.CanPush() {
			e.stat_factory.Increment("request_stalls", 1)
			return
		}
		data, saturated := numeric.Pack(e.format, e.workspace.Output)
		if saturated > 0 {
			e.stat_factory.Increment("saturations", int64(saturated))
			e.logger.Debug("output saturated",
				"lanes", saturated,
				"vector", e.config.VectorIndex(),
				"timestep", e.config.TimestepIndex())
		}
		e.memory.Requests.Push(e.config.Descriptor(true, data))
		e.pendingWrites++
		e.stat_factory.Increment("vectors", 1)
		e.state = StateNext

	case StateNext:
		if e.config.Advance() {
			e.state = StateFin
		} else {
			e.state = StatePre
		}

	case StateFin:
		// done only goes out once every result is in memory
		if e.pendingWrites > 0 {
			e.stat_factory.Increment("write_drain_cycles", 1)
			return
		}
		if !e.done.CanPush() {
			return
		}
		e.done.Push(true)
		e.isStart = false
		e.state = StateIdle
		e.stat_factory.Increment("runs", 1)
		e.logger.Info("reduction finished", "kernel", e.kernel.Name())

	default:
		e.state = e.kernel.Step(e.state, &e.workspace)
	}

	if e.state != StateIdle {
		e.stat_factory.Increment("busy_cycles", 1)
	}
}

func (e *Engine) stepIdle() {
	pulse, ok := e.start.Pop()
	if ok {
		register := e.config.Register()
		e.isStart = register.IsValid && pulse
		if !e.isStart {
			e.stat_factory.Increment("ignored_starts", 1)
		}
	}
	if !e.isStart {
		return
	}

	register := e.config.Register()
	e.config.ResetCounters()
	e.kernel = KernelFor(register.Mode)
	e.state = StatePre

	e.logger.Info("reduction started",
		"kernel", e.kernel.Name(),
		"memory", register.MemoryIndex,
		"num_vector", register.NumVector,
		"num_timestep", register.NumTimestep)
}
