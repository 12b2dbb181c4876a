// Package pe is the multiply-accumulate engine: a V x V array fed from a
// private weight buffer and input buffer, producing one activation vector
// per configured output.
package pe

import (
	"fmt"
	"log/slog"

	"NMPulator/src/misc"
	"NMPulator/src/simulator/codec"
	"NMPulator/src/simulator/scratchpad"
	"NMPulator/src/simulator/wire"
)

type State int

const (
	StateIdle State = iota
	StatePre
	StateMac
	StateScale
	StateOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePre:
		return "pre"
	case StateMac:
		return "mac"
	case StateScale:
		return "scale"
	case StateOut:
		return "out"
	default:
		return fmt.Sprintf("state_%d", int(s))
	}
}

// StreamEntry is an input vector streamed in by the control engine.
// Logical is the vector index relative to the manager's input base.
type StreamEntry struct {
	Data    codec.Payload
	Manager int
	Logical int
}

type Engine struct {
	name     string
	laneBits int

	config     *Config
	weights    *scratchpad.Bank
	inputs     *scratchpad.Bank
	array      Array
	state      State
	activation codec.Payload

	commands    *wire.Channel[codec.Command]
	replies     *wire.Channel[codec.Reply]
	start       *wire.Channel[bool]
	stream      *wire.Channel[StreamEntry]
	activations *wire.Channel[codec.Payload]

	logger       *slog.Logger
	stat_factory *misc.StatFactory
}

func NewEngine(
	name string,
	laneBits int,
	bufferEntries int,
	channelCapacity int,
	logger *slog.Logger,
) *Engine {
	e := &Engine{
		name:        name,
		laneBits:    laneBits,
		config:      NewConfig(),
		weights:     new(scratchpad.Bank),
		inputs:      new(scratchpad.Bank),
		array:       NewArray(laneBits),
		state:       StateIdle,
		commands:    wire.NewChannel[codec.Command](name+".Commands", channelCapacity),
		replies:     wire.NewChannel[codec.Reply](name+".Replies", channelCapacity),
		start:       wire.NewChannel[bool](name+".Start", 1),
		stream:      wire.NewChannel[StreamEntry](name+".Stream", channelCapacity),
		activations: wire.NewChannel[codec.Payload](name+".Activations", channelCapacity),
		logger:      misc.OrDiscard(logger).With("component", name),
	}

	entryBytes := codec.NumLanes * laneBits / 8
	e.weights.Init(0, bufferEntries, entryBytes)
	e.inputs.Init(1, bufferEntries, entryBytes)

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

func (e *Engine) Stream() *wire.Channel[StreamEntry] {
	return e.stream
}

func (e *Engine) Activations() *wire.Channel[codec.Payload] {
	return e.activations
}

func (e *Engine) Channels() []wire.Committer {
	return []wire.Committer{e.commands, e.replies, e.start, e.stream, e.activations}
}

func (e *Engine) Config() *Config {
	return e.config
}

func (e *Engine) Array() *Array {
	return &e.array
}

func (e *Engine) State() State {
	return e.state
}

func (e *Engine) StatFactory() *misc.StatFactory {
	return e.stat_factory
}

// WeightBuffer and InputBuffer give tests and the host backdoor access.
func (e *Engine) WeightBuffer() *scratchpad.Bank {
	return e.weights
}

func (e *Engine) InputBuffer() *scratchpad.Bank {
	return e.inputs
}

func (e *Engine) IsIdle() bool {
	return e.state == StateIdle && e.commands.IsEmpty() && e.start.IsEmpty() && e.stream.IsEmpty()
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

	local := command.LocalIndex()
	switch command.Region() {
	case codec.RegionEngineConfig:
		if command.IsWrite {
			if !e.config.Write(local, command.Data) {
				e.stat_factory.Increment("dropped_commands", 1)
			}
			return true
		}
		e.replies.Push(codec.Reply{Data: e.config.Read(local)})

	case codec.RegionWeightBuffer:
		e.accessBuffer(e.weights, command)

	case codec.RegionInputBuffer:
		e.accessBuffer(e.inputs, command)

	default:
		e.stat_factory.Increment("dropped_commands", 1)
	}
	return true
}

// accessBuffer serves a host access to a private buffer.
func (e *Engine) accessBuffer(buffer *scratchpad.Bank, command codec.Command) {
	address := int(command.LocalIndex())
	if command.IsWrite {
		e.writeBuffer(buffer, address, command.Data)
		return
	}
	e.replies.Push(codec.Reply{Data: e.readBuffer(buffer, address)})
}

// Addresses past a buffer read as zero and drop writes.
func (e *Engine) readBuffer(buffer *scratchpad.Bank, address int) codec.Payload {
	if address < 0 || address >= buffer.Entries() {
		e.stat_factory.Increment("out_of_range_accesses", 1)
		return codec.Payload{}
	}
	return buffer.Read(address)
}

func (e *Engine) writeBuffer(buffer *scratchpad.Bank, address int, data codec.Payload) {
	if address < 0 || address >= buffer.Entries() {
		e.stat_factory.Increment("out_of_range_accesses", 1)
		return
	}
	buffer.Write(address, data)
}

func (e *Engine) step() {
	switch e.state {
	case StateIdle:
		e.stepIdle()
		return

	case StatePre:
		e.array.Reset()
		if e.config.SkipsMac() {
			e.stat_factory.Increment("zero_skips", 1)
			e.state = StateScale
		} else {
			e.state = StateMac
		}

	case StateMac:
		var weights [codec.NumLanes]codec.Payload
		for i := range weights {
			weights[i] = e.readBuffer(e.weights, e.config.WeightAddress(i))
		}
		input := e.readBuffer(e.inputs, e.config.InputAddress(e.config.ActiveManager(), e.config.InputIndex()))
		e.array.Accumulate(weights, input)

		if e.config.NextInput() {
			e.state = StateScale
		}

	case StateScale:
		scale, shift := e.config.ScaleShift()
		activation, saturated := e.array.Scale(scale, shift)
		if saturated > 0 {
			e.stat_factory.Increment("saturations", int64(saturated))
			e.logger.Debug("activation clamped", "lanes", saturated, "output", e.config.OutputIndex())
		}
		e.activation = activation
		e.state = StateOut

	case StateOut:
		if !e.activations.CanPush() {
			e.stat_factory.Increment("activation_stalls", 1)
			return
		}
		e.activations.Push(e.activation)
		e.stat_factory.Increment("outputs", 1)

		if e.config.NextOutput() {
			e.state = StateIdle
			e.stat_factory.Increment("runs", 1)
			e.logger.Info("mac finished", "outputs", e.config.Register().NumOutput)
		} else {
			e.state = StatePre
		}
	}

	e.stat_factory.Increment("busy_cycles", 1)
}

// stepIdle drains the input stream first; a start pulse is only taken when
// no stream entry is waiting.
func (e *Engine) stepIdle() {
	if entry, ok := e.stream.Pop(); ok {
		e.writeBuffer(e.inputs, e.config.InputAddress(entry.Manager, entry.Logical), entry.Data)
		e.stat_factory.Increment("stream_writes", 1)
		return
	}

	pulse, ok := e.start.Pop()
	if !ok {
		return
	}

	register := e.config.Register()
	if !register.IsValid || !pulse {
		e.stat_factory.Increment("ignored_starts", 1)
		return
	}

	e.config.ResetCounters()
	e.state = StatePre
	e.logger.Info("mac started",
		"manager", e.config.ActiveManager(),
		"num_input", e.config.Manager(e.config.ActiveManager()).NumInput,
		"num_output", register.NumOutput)
}
