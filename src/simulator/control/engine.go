// Package control is the streaming engine that drives the MAC engine from
// the scratchpad. For every timestep it streams num_input vectors into the
// MAC input buffer, starts the MAC engine and writes the num_output
// activation vectors it produces back to the scratchpad.
package control

import (
	"fmt"
	"log/slog"

	"NMPulator/src/misc"
	"NMPulator/src/simulator/codec"
	"NMPulator/src/simulator/pe"
	"NMPulator/src/simulator/scratchpad"
	"NMPulator/src/simulator/wire"
)

type State int

const (
	StateIdle State = iota
	StateRequest
	StateResponse
	StateStart
	StateCollect
	StateFin
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequest:
		return "request"
	case StateResponse:
		return "response"
	case StateStart:
		return "start"
	case StateCollect:
		return "collect"
	case StateFin:
		return "fin"
	default:
		return fmt.Sprintf("state_%d", int(s))
	}
}

// MacPort is the control engine's view of the MAC engine.
type MacPort struct {
	Stream      *wire.Channel[pe.StreamEntry]
	Start       *wire.Channel[bool]
	Activations *wire.Channel[codec.Payload]
}

type Engine struct {
	name string

	register codec.ControlConfig
	input    misc.WrapCounter
	output   misc.WrapCounter
	timestep misc.WrapCounter
	state    State
	isStart  bool
	// activations written but not yet acknowledged
	pendingWrites int

	commands *wire.Channel[codec.Command]
	replies  *wire.Channel[codec.Reply]
	start    *wire.Channel[bool]
	done     *wire.Channel[bool]
	memory   *scratchpad.ClientPort
	mac      MacPort

	logger       *slog.Logger
	stat_factory *misc.StatFactory
}

func NewEngine(
	name string,
	memory *scratchpad.ClientPort,
	mac MacPort,
	channelCapacity int,
	logger *slog.Logger,
) *Engine {
	e := &Engine{
		name:     name,
		register: codec.ControlConfig{NumInput: 1, NumOutput: 1, NumTimestep: 1},
		state:    StateIdle,
		commands: wire.NewChannel[codec.Command](name+".Commands", channelCapacity),
		replies:  wire.NewChannel[codec.Reply](name+".Replies", channelCapacity),
		start:    wire.NewChannel[bool](name+".Start", 1),
		done:     wire.NewChannel[bool](name+".Done", 1),
		memory:   memory,
		mac:      mac,
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

func (e *Engine) Register() codec.ControlConfig {
	return e.register
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

	if command.Region() != codec.RegionControlConfig {
		e.stat_factory.Increment("dropped_commands", 1)
		return true
	}

	// Only LocalConfig is backed by a register; other indices read as zero.
	known := command.LocalIndex() == codec.LocalConfig
	if command.IsWrite {
		if known {
			e.register = codec.UnpackControlConfig(command.Data)
		}
		return true
	}

	var data codec.Payload
	if known {
		data = e.register.Pack()
	}
	e.replies.Push(codec.Reply{Data: data})
	return true
}

func (e *Engine) descriptor(memory uint8, vector int, is_write bool, data codec.Payload) scratchpad.Descriptor {
	return scratchpad.Descriptor{
		MemoryIndex:   int(memory) % codec.NumMemories,
		VectorIndex:   vector,
		TimestepIndex: e.timestep.Value(),
		IsWrite:       is_write,
		Data:          data,
	}
}

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
		return

	case StateRequest:
		if !e.memory.Requests.CanPush() {
			e.stat_factory.Increment("request_stalls", 1)
			break
		}
		e.memory.Requests.Push(e.descriptor(e.register.InputMemory, e.input.Value(), false, codec.Payload{}))
		e.state = StateResponse

	case StateResponse:
		response, ok := e.memory.Responses.Peek()
		if !ok {
			break
		}
		if response.Nack {
			e.memory.Responses.Pop()
			e.stat_factory.Increment("read_retries", 1)
			e.state = StateRequest
			break
		}
		if !e.mac.Stream.CanPush() {
			e.stat_factory.Increment("stream_stalls", 1)
			break
		}
		e.memory.Responses.Pop()
		e.mac.Stream.Push(pe.StreamEntry{
			Data:    response.Data,
			Manager: int(e.register.ManagerIndex) % codec.NumManagers,
			Logical: e.input.Value(),
		})
		e.stat_factory.Increment("streamed_vectors", 1)

		if e.input.Increment() {
			e.state = StateStart
		} else {
			e.state = StateRequest
		}

	case StateStart:
		if !e.mac.Start.CanPush() {
			break
		}
		e.mac.Start.Push(true)
		e.state = StateCollect

	case StateCollect:
		activation, ok := e.mac.Activations.Peek()
		if !ok {
			break
		}
		if !e.memory.Requests.CanPush() {
			e.stat_factory.Increment("request_stalls", 1)
			break
		}
		e.mac.Activations.Pop()
		e.memory.Requests.Push(e.descriptor(e.register.OutputMemory, e.output.Value(), true, activation))
		e.pendingWrites++
		e.stat_factory.Increment("written_vectors", 1)

		if !e.output.Increment() {
			break
		}
		if e.timestep.Increment() {
			e.state = StateFin
		} else {
			e.state = StateRequest
		}

	case StateFin:
		if e.pendingWrites > 0 {
			e.stat_factory.Increment("write_drain_cycles", 1)
			break
		}
		if !e.done.CanPush() {
			break
		}
		e.done.Push(true)
		e.isStart = false
		e.state = StateIdle
		e.stat_factory.Increment("runs", 1)
		e.logger.Info("control finished", "timesteps", e.register.NumTimestep)
	}

	e.stat_factory.Increment("busy_cycles", 1)
}

func (e *Engine) stepIdle() {
	pulse, ok := e.start.Pop()
	if ok {
		e.isStart = e.register.IsValid && pulse
		if !e.isStart {
			e.stat_factory.Increment("ignored_starts", 1)
		}
	}
	if !e.isStart {
		return
	}

	e.input.Init(int(e.register.NumInput))
	e.output.Init(int(e.register.NumOutput))
	e.timestep.Init(int(e.register.NumTimestep))
	e.state = StateRequest

	e.logger.Info("control started",
		"input_memory", e.register.InputMemory,
		"output_memory", e.register.OutputMemory,
		"num_input", e.register.NumInput,
		"num_output", e.register.NumOutput,
		"num_timestep", e.register.NumTimestep)
}
