package scratchpad

import (
	"fmt"

	"NMPulator/src/misc"
	"NMPulator/src/simulator/codec"
)

// Client names a requester. Lower values win bank conflicts.
type Client int

const (
	ClientDirect Client = iota
	ClientReduction
	ClientMac
	ClientOther
)

func (c Client) String() string {
	switch c {
	case ClientDirect:
		return "direct"
	case ClientReduction:
		return "reduction"
	case ClientMac:
		return "mac"
	case ClientOther:
		return "other"
	default:
		return fmt.Sprintf("client_%d", int(c))
	}
}

// Name is the component name element of the client's channels.
func (c Client) Name() string {
	switch c {
	case ClientDirect:
		return "Direct"
	case ClientReduction:
		return "Reduction"
	case ClientMac:
		return "Mac"
	case ClientOther:
		return "Other"
	default:
		return fmt.Sprintf("Client[%d]", int(c))
	}
}

type pendingRead struct {
	valid   bool
	client  Client
	address int
}

type readResult struct {
	valid bool
	data  codec.Payload
}

type pendingWrite struct {
	valid   bool
	client  Client
	address int
	data    codec.Payload
}

type access struct {
	client Client
	write  bool
	port   int
}

// Scratchpad is a banked memory with numPorts read ports and one write port.
// Physical address p lives in bank p%numBanks at offset p/numBanks. Each
// bank serves one access per Step; colliding accesses are arbitrated by
// client priority and losers are dropped.
type Scratchpad struct {
	name     string
	banks    []*Bank
	laneBits int

	reads   []pendingRead
	results []readResult
	write   pendingWrite
	granted pendingWrite

	stat_factory *misc.StatFactory
}

func NewScratchpad(name string, numBanks int, bankEntries int, laneBits int, numPorts int) *Scratchpad {
	if numBanks <= 0 {
		err := fmt.Errorf("scratchpad %s: num banks %d <= 0", name, numBanks)
		panic(err)
	}
	if numPorts <= 0 {
		err := fmt.Errorf("scratchpad %s: num ports %d <= 0", name, numPorts)
		panic(err)
	}

	s := &Scratchpad{
		name:     name,
		banks:    make([]*Bank, numBanks),
		laneBits: laneBits,
		reads:    make([]pendingRead, numPorts),
		results:  make([]readResult, numPorts),
	}

	entryBytes := codec.NumLanes * laneBits / 8
	for i := range s.banks {
		s.banks[i] = new(Bank)
		s.banks[i].Init(i, bankEntries, entryBytes)
	}

	s.stat_factory = new(misc.StatFactory)
	s.stat_factory.Init(name)

	return s
}

func (s *Scratchpad) Name() string {
	return s.name
}

func (s *Scratchpad) NumBanks() int {
	return len(s.banks)
}

func (s *Scratchpad) NumPorts() int {
	return len(s.reads)
}

func (s *Scratchpad) LaneBits() int {
	return s.laneBits
}

// Capacity is the number of addressable entries.
func (s *Scratchpad) Capacity() int {
	return len(s.banks) * s.banks[0].Entries()
}

func (s *Scratchpad) StatFactory() *misc.StatFactory {
	return s.stat_factory
}

// Contains reports whether address is addressable.
func (s *Scratchpad) Contains(address int) bool {
	return address >= 0 && address < s.Capacity()
}

// Locate splits a physical address into bank and offset and panics when it
// is out of range.
func (s *Scratchpad) Locate(address int) (int, int) {
	if address < 0 || address >= s.Capacity() {
		err := fmt.Errorf("scratchpad %s: address %d out of range [0, %d)", s.name, address, s.Capacity())
		panic(err)
	}
	return address % len(s.banks), address / len(s.banks)
}

// SubmitRead queues a read on port for the next Step.
func (s *Scratchpad) SubmitRead(port int, client Client, address int) {
	s.checkPort(port)
	s.Locate(address)

	if s.reads[port].valid {
		err := fmt.Errorf("scratchpad %s: port %d already has a pending read", s.name, port)
		panic(err)
	}

	s.reads[port] = pendingRead{valid: true, client: client, address: address}
}

// SubmitWrite claims the single write port for the next Step. A second
// write in the same tick is rejected unless its client outranks the first,
// in which case the first is displaced. The return value reports whether
// this write holds the port.
func (s *Scratchpad) SubmitWrite(client Client, address int, data codec.Payload) bool {
	s.Locate(address)

	if s.write.valid {
		if client >= s.write.client {
			s.stat_factory.Increment("write_port_rejected", 1)
			return false
		}
		s.stat_factory.Increment("write_port_displaced", 1)
	}

	s.write = pendingWrite{
		valid:   true,
		client:  client,
		address: address,
		data:    data.Truncate(codec.NumLanes * s.laneBits),
	}
	return true
}

// Step resolves every pending access. Read results from the previous Step
// are discarded first.
func (s *Scratchpad) Step() {
	for i := range s.results {
		s.results[i] = readResult{}
	}
	s.granted = pendingWrite{}

	winners := make(map[int]access)
	contenders := make(map[int]int)

	consider := func(bank int, a access) {
		contenders[bank]++
		current, found := winners[bank]
		if !found || outranks(a, current) {
			winners[bank] = a
		}
	}

	for port, r := range s.reads {
		if !r.valid {
			continue
		}
		bank, _ := s.Locate(r.address)
		consider(bank, access{client: r.client, port: port})
	}
	if s.write.valid {
		bank, _ := s.Locate(s.write.address)
		consider(bank, access{client: s.write.client, write: true, port: -1})
	}

	for bank, winner := range winners {
		if contenders[bank] > 1 {
			s.stat_factory.Increment("bank_conflicts", 1)
			s.stat_factory.Increment("bank_conflict_losses", int64(contenders[bank]-1))
		}

		if winner.write {
			_, offset := s.Locate(s.write.address)
			s.banks[bank].Write(offset, s.write.data)
			s.granted = s.write
			s.stat_factory.Increment("writes", 1)
			continue
		}

		r := s.reads[winner.port]
		_, offset := s.Locate(r.address)
		s.results[winner.port] = readResult{valid: true, data: s.banks[bank].Read(offset)}
		s.stat_factory.Increment("reads", 1)
	}

	for port, r := range s.reads {
		if r.valid && !s.results[port].valid {
			s.stat_factory.Increment("read_losses_"+r.client.String(), 1)
		}
		s.reads[port] = pendingRead{}
	}
	if s.write.valid && !s.granted.valid {
		s.stat_factory.Increment("write_losses_"+s.write.client.String(), 1)
	}
	s.write = pendingWrite{}
}

// ReadResult returns the entry read on port by the last Step, if that read
// won its bank.
func (s *Scratchpad) ReadResult(port int) (codec.Payload, bool) {
	s.checkPort(port)
	return s.results[port].data, s.results[port].valid
}

// WriteGranted reports which client's write the last Step performed.
func (s *Scratchpad) WriteGranted() (Client, bool) {
	return s.granted.client, s.granted.valid
}

// Inspect reads an entry outside the arbitrated path.
func (s *Scratchpad) Inspect(address int) codec.Payload {
	bank, offset := s.Locate(address)
	return s.banks[bank].Read(offset)
}

// Preload writes an entry outside the arbitrated path.
func (s *Scratchpad) Preload(address int, data codec.Payload) {
	bank, offset := s.Locate(address)
	s.banks[bank].Write(offset, data.Truncate(codec.NumLanes*s.laneBits))
}

func (s *Scratchpad) checkPort(port int) {
	if port < 0 || port >= len(s.reads) {
		err := fmt.Errorf("scratchpad %s: port %d out of range [0, %d)", s.name, port, len(s.reads))
		panic(err)
	}
}

// outranks orders bank contenders: client priority, then the write before
// reads of the same client, then the lower port.
func outranks(a, b access) bool {
	if a.client != b.client {
		return a.client < b.client
	}
	if a.write != b.write {
		return a.write
	}
	return a.port < b.port
}
