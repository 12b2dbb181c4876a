package scratchpad

import (
	"fmt"
	"log/slog"

	"NMPulator/src/misc"
	"NMPulator/src/simulator/codec"
	"NMPulator/src/simulator/wire"

	"github.com/sarchlab/akita/v4/sim"
)

// Response answers an engine request. A read gets its entry, or Nack when
// it lost its bank and has to be issued again. A write gets Written once it
// is in memory.
type Response struct {
	Data    codec.Payload
	Nack    bool
	Written bool
}

// ClientPort is the pair of channels an engine uses to reach the
// scratchpad.
type ClientPort struct {
	Client    Client
	Port      int
	Requests  *wire.Channel[Descriptor]
	Responses *wire.Channel[Response]
}

// Controller owns the scratchpad and its address map. It serves one
// external command per cycle and one request per connected engine.
type Controller struct {
	name string

	scratchpad  *Scratchpad
	address_map *AddressMap

	commands *wire.Channel[codec.Command]
	replies  *wire.Channel[codec.Reply]
	clients  []*ClientPort

	logger       *slog.Logger
	stat_factory *misc.StatFactory
}

func (this *Controller) Init(
	name string,
	scratchpad *Scratchpad,
	address_map *AddressMap,
	channel_capacity int,
	logger *slog.Logger,
) {
	this.name = name
	this.scratchpad = scratchpad
	this.address_map = address_map

	this.commands = wire.NewChannel[codec.Command](sim.BuildName(name, "Commands"), channel_capacity)
	this.replies = wire.NewChannel[codec.Reply](sim.BuildName(name, "Replies"), channel_capacity)
	this.clients = make([]*ClientPort, 0)

	this.logger = misc.OrDiscard(logger).With("component", name)

	this.stat_factory = new(misc.StatFactory)
	this.stat_factory.Init(name)
}

func (this *Controller) Fini() {
	this.clients = nil
}

// Connect attaches an engine. Clients must be connected in priority order;
// client k reads through scratchpad port k+1, port 0 belongs to direct
// access.
func (this *Controller) Connect(client Client, channel_capacity int) *ClientPort {
	if client == ClientDirect {
		err := fmt.Errorf("%s: direct access is not an engine client", this.name)
		panic(err)
	}

	if n := len(this.clients); n > 0 && this.clients[n-1].Client > client {
		err := fmt.Errorf("%s: client %s connected after lower priority %s", this.name, client, this.clients[n-1].Client)
		panic(err)
	}

	port := len(this.clients) + 1
	if port >= this.scratchpad.NumPorts() {
		err := fmt.Errorf("%s: no read port left for client %s", this.name, client)
		panic(err)
	}

	name := sim.BuildName(this.name, client.Name())
	client_port := &ClientPort{
		Client:    client,
		Port:      port,
		Requests:  wire.NewChannel[Descriptor](sim.BuildName(name, "Requests"), channel_capacity),
		Responses: wire.NewChannel[Response](sim.BuildName(name, "Responses"), channel_capacity),
	}
	this.clients = append(this.clients, client_port)

	return client_port
}

func (this *Controller) Name() string {
	return this.name
}

// Commands is the inbound channel the router forwards regions 0x5 and the
// address-map register to.
func (this *Controller) Commands() *wire.Channel[codec.Command] {
	return this.commands
}

func (this *Controller) Replies() *wire.Channel[codec.Reply] {
	return this.replies
}

func (this *Controller) Scratchpad() *Scratchpad {
	return this.scratchpad
}

func (this *Controller) AddressMap() *AddressMap {
	return this.address_map
}

func (this *Controller) StatFactory() *misc.StatFactory {
	return this.stat_factory
}

// Channels lists every channel the controller owns so the core can commit
// them.
func (this *Controller) Channels() []wire.Committer {
	channels := []wire.Committer{this.commands, this.replies}
	for _, client := range this.clients {
		channels = append(channels, client.Requests, client.Responses)
	}
	return channels
}

func (this *Controller) IsIdle() bool {
	if !this.commands.IsEmpty() || !this.replies.IsEmpty() {
		return false
	}
	for _, client := range this.clients {
		if !client.Requests.IsEmpty() || !client.Responses.IsEmpty() {
			return false
		}
	}
	return true
}

func (this *Controller) Cycle() {
	claims := make(map[int]Client)

	direct_read := this.serveCommand(claims)

	issued := make([]access, len(this.clients))
	for i, client := range this.clients {
		issued[i] = this.serveClient(client, claims)
	}

	this.scratchpad.Step()

	if direct_read {
		data, ok := this.scratchpad.ReadResult(0)
		if !ok {
			err := fmt.Errorf("%s: direct read lost arbitration", this.name)
			panic(err)
		}
		this.replies.Push(codec.Reply{Data: data})
	}

	for i, client := range this.clients {
		if issued[i].write {
			this.acknowledgeWrite(client)
			continue
		}
		if issued[i].port == 0 {
			continue
		}

		data, ok := this.scratchpad.ReadResult(client.Port)
		if !ok {
			this.stat_factory.Increment("nacks_"+client.Client.String(), 1)
			this.logger.Debug("read lost arbitration", "client", client.Client.String())
			client.Responses.Push(Response{Nack: true})
			continue
		}
		client.Responses.Push(Response{Data: data})
	}
}

// serveCommand handles at most one external command and reports whether a
// direct read was submitted on port 0.
func (this *Controller) serveCommand(claims map[int]Client) bool {
	command, ok := this.commands.Peek()
	if !ok {
		return false
	}

	if !command.IsWrite && !this.replies.CanPush() {
		this.stat_factory.Increment("reply_stalls", 1)
		return false
	}
	this.commands.Pop()

	switch {
	case command.Region() == codec.RegionScratchpad:
		address := int(command.LocalIndex())
		if !this.scratchpad.Contains(address) {
			return this.dropOutOfRange(command.IsWrite, address)
		}
		bank, _ := this.scratchpad.Locate(address)
		claims[bank] = ClientDirect

		if command.IsWrite {
			this.scratchpad.SubmitWrite(ClientDirect, address, command.Data)
			this.stat_factory.Increment("direct_writes", 1)
			return false
		}
		this.scratchpad.SubmitRead(0, ClientDirect, address)
		this.stat_factory.Increment("direct_reads", 1)
		return true

	case command.Region() == codec.RegionEngineConfig && command.LocalIndex() == codec.LocalAddressMap:
		if command.IsWrite {
			this.address_map.Configure(codec.UnpackAddressMap(command.Data))
			this.stat_factory.Increment("address_map_writes", 1)
			return false
		}
		this.replies.Push(codec.Reply{Data: this.address_map.Config().Pack()})
		this.stat_factory.Increment("address_map_reads", 1)
		return false

	default:
		this.stat_factory.Increment("dropped_commands", 1)
		this.logger.Debug("dropped command", "command", command.String())
		return false
	}
}

// serveClient takes at most one request from an engine and reports what
// it submitted: a read on the client's port, a write, or nothing (port 0).
// A write whose bank is already claimed by a higher priority access stays
// queued.
func (this *Controller) serveClient(client *ClientPort, claims map[int]Client) access {
	request, ok := client.Requests.Peek()
	if !ok {
		return access{}
	}
	// Every request is answered, so a full response channel holds it back.
	if !client.Responses.CanPush() {
		return access{}
	}

	address := this.address_map.Translate(request)
	if !this.scratchpad.Contains(address) {
		client.Requests.Pop()
		client.Responses.Push(Response{Written: request.IsWrite})
		this.stat_factory.Increment("out_of_range_accesses", 1)
		this.logger.Warn("engine access out of range", "client", client.Client.String(), "address", address)
		return access{}
	}
	bank, _ := this.scratchpad.Locate(address)

	if !request.IsWrite {
		client.Requests.Pop()

		this.scratchpad.SubmitRead(client.Port, client.Client, address)
		if _, found := claims[bank]; !found {
			claims[bank] = client.Client
		}
		this.stat_factory.Increment("reads_"+client.Client.String(), 1)
		return access{client: client.Client, port: client.Port}
	}

	if owner, found := claims[bank]; found && owner < client.Client {
		this.stat_factory.Increment("write_backpressure_"+client.Client.String(), 1)
		return access{}
	}

	if !this.scratchpad.SubmitWrite(client.Client, address, request.Data) {
		this.stat_factory.Increment("write_backpressure_"+client.Client.String(), 1)
		return access{}
	}
	client.Requests.Pop()

	claims[bank] = client.Client
	this.stat_factory.Increment("writes_"+client.Client.String(), 1)
	return access{client: client.Client, write: true}
}

// acknowledgeWrite tells the engine its write reached memory. The bank
// claim taken in serveClient guarantees the grant.
func (this *Controller) acknowledgeWrite(client *ClientPort) {
	granted, ok := this.scratchpad.WriteGranted()
	if !ok || granted != client.Client {
		err := fmt.Errorf("%s: %s write lost arbitration", this.name, client.Client)
		panic(err)
	}
	client.Responses.Push(Response{Written: true})
}

// dropOutOfRange accounts for an access past the end of the scratchpad. A
// direct read still owes the host a reply, which reads as zero.
func (this *Controller) dropOutOfRange(is_write bool, address int) bool {
	this.stat_factory.Increment("out_of_range_accesses", 1)
	this.logger.Warn("access out of range", "address", address, "write", is_write)
	if !is_write {
		this.replies.Push(codec.Reply{})
	}
	return false
}
