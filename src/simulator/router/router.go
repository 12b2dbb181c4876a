// Package router decodes inbound commands by region, forwards them to the
// owning block, and multiplexes replies and done pulses back out.
package router

import (
	"log/slog"

	"NMPulator/src/misc"
	"NMPulator/src/simulator/codec"
	"NMPulator/src/simulator/wire"
)

// Endpoint is the command and reply channel pair of a block.
type Endpoint struct {
	Commands *wire.Channel[codec.Command]
	Replies  *wire.Channel[codec.Reply]
}

// Ports wires the router to the blocks it serves.
type Ports struct {
	Controller Endpoint
	Reduction  Endpoint
	Control    Endpoint
	Mac        Endpoint

	ControlStart   *wire.Channel[bool]
	ReductionStart *wire.Channel[bool]
	ControlDone    *wire.Channel[bool]
	ReductionDone  *wire.Channel[bool]
}

type Router struct {
	name  string
	ports Ports

	inbound      *wire.Channel[codec.Command]
	replies      *wire.Channel[codec.Reply]
	done         *wire.Channel[bool]
	localReplies *wire.Channel[codec.Reply]

	globalConfig codec.Payload

	logger       *slog.Logger
	stat_factory *misc.StatFactory
}

func NewRouter(name string, ports Ports, channelCapacity int, logger *slog.Logger) *Router {
	r := &Router{
		name:         name,
		ports:        ports,
		inbound:      wire.NewChannel[codec.Command](name+".Inbound", channelCapacity),
		replies:      wire.NewChannel[codec.Reply](name+".Replies", channelCapacity),
		done:         wire.NewChannel[bool](name+".Done", channelCapacity),
		localReplies: wire.NewChannel[codec.Reply](name+".LocalReplies", channelCapacity),
		logger:       misc.OrDiscard(logger).With("component", name),
	}

	r.stat_factory = new(misc.StatFactory)
	r.stat_factory.Init(name)

	return r
}

func (r *Router) Name() string {
	return r.name
}

// Inbound is the single external command channel.
func (r *Router) Inbound() *wire.Channel[codec.Command] {
	return r.inbound
}

func (r *Router) Replies() *wire.Channel[codec.Reply] {
	return r.replies
}

func (r *Router) Done() *wire.Channel[bool] {
	return r.done
}

func (r *Router) Channels() []wire.Committer {
	return []wire.Committer{r.inbound, r.replies, r.done, r.localReplies}
}

// GlobalConfig is the side register behind region 0x3.
func (r *Router) GlobalConfig() codec.Payload {
	return r.globalConfig
}

func (r *Router) StatFactory() *misc.StatFactory {
	return r.stat_factory
}

func (r *Router) IsIdle() bool {
	return r.inbound.IsEmpty() && r.localReplies.IsEmpty()
}

func (r *Router) Cycle() {
	r.forwardCommand()
	r.forwardReply()
	r.forwardDone()
}

func (r *Router) forwardCommand() {
	command, ok := r.inbound.Peek()
	if !ok {
		return
	}

	switch command.Region() {
	case codec.RegionGlobalConfig:
		if command.IsWrite {
			r.globalConfig = command.Data
		} else {
			if !r.localReplies.CanPush() {
				r.stat_factory.Increment("command_stalls", 1)
				return
			}
			r.localReplies.Push(codec.Reply{Data: r.globalConfig})
		}
		r.inbound.Pop()
		r.stat_factory.Increment("global_config_accesses", 1)
		return

	case codec.RegionStart:
		r.dispatchStart(command)
		return
	}

	target, ok := r.owner(command)
	if !ok {
		r.drop(command)
		return
	}

	if !target.CanPush() {
		r.stat_factory.Increment("command_stalls", 1)
		return
	}
	r.inbound.Pop()
	target.Push(command)
	r.stat_factory.Increment("forwarded_commands", 1)
}

// owner returns the command channel of the block that decodes command.
func (r *Router) owner(command codec.Command) (*wire.Channel[codec.Command], bool) {
	local := command.LocalIndex()

	switch command.Region() {
	case codec.RegionEngineConfig:
		switch {
		case local == codec.LocalAddressMap:
			return r.ports.Controller.Commands, true
		case local >= codec.LocalPEConfig && local < codec.LocalManagerBase+codec.NumManagers:
			return r.ports.Mac.Commands, true
		default:
			return nil, false
		}
	case codec.RegionScratchpad:
		return r.ports.Controller.Commands, true
	case codec.RegionInputBuffer, codec.RegionWeightBuffer:
		return r.ports.Mac.Commands, true
	case codec.RegionReductionConfig:
		return r.ports.Reduction.Commands, true
	case codec.RegionControlConfig:
		return r.ports.Control.Commands, true
	default:
		return nil, false
	}
}

func (r *Router) dispatchStart(command codec.Command) {
	if !command.IsWrite {
		r.drop(command)
		return
	}

	var start *wire.Channel[bool]
	switch command.LocalIndex() {
	case codec.LocalStartControl:
		start = r.ports.ControlStart
	case codec.LocalStartReduce:
		start = r.ports.ReductionStart
	default:
		r.drop(command)
		return
	}

	if !start.CanPush() {
		r.stat_factory.Increment("command_stalls", 1)
		return
	}
	r.inbound.Pop()
	start.Push(true)
	r.stat_factory.Increment("start_pulses", 1)
}

func (r *Router) drop(command codec.Command) {
	r.inbound.Pop()
	r.stat_factory.Increment("dropped_commands", 1)
	r.logger.Debug("dropped command", "command", command.String())
}

// forwardReply moves at most one reply out. Sources are polled in fixed
// priority order; the rest wait for a later cycle. The global config reply
// comes last: it is ready one cycle after its read, while a block reply
// that is ready at the same time belongs to an earlier read.
func (r *Router) forwardReply() {
	if !r.replies.CanPush() {
		return
	}

	sources := []*wire.Channel[codec.Reply]{
		r.ports.Controller.Replies,
		r.ports.Reduction.Replies,
		r.ports.Control.Replies,
		r.ports.Mac.Replies,
		r.localReplies,
	}
	for _, source := range sources {
		reply, ok := source.Pop()
		if !ok {
			continue
		}
		r.replies.Push(reply)
		r.stat_factory.Increment("replies", 1)
		return
	}
}

func (r *Router) forwardDone() {
	if !r.done.CanPush() {
		return
	}

	for _, source := range []*wire.Channel[bool]{r.ports.ControlDone, r.ports.ReductionDone} {
		if _, ok := source.Pop(); ok {
			r.done.Push(true)
			r.stat_factory.Increment("done_pulses", 1)
			return
		}
	}
}
