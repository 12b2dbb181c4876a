package host

import (
	"fmt"
	"log/slog"
	"sync"

	"NMPulator/src/misc"
	"NMPulator/src/simulator/codec"
	"NMPulator/src/simulator/core"
)

// SimTransport plays the card shell in front of a simulated core. Every
// register access advances the core by a fixed number of ticks, so host
// polling and core progress interleave the way they do on a card.
type SimTransport struct {
	mu sync.Mutex

	core           *core.Core
	layout         Layout
	partition      uint8
	ticksPerAccess int

	aw [addressWords]uint32
	w  []uint32
	ar [addressWords]uint32

	pending []codec.Command
	replies [][]uint32
	// reply being read out through the R words
	latched []uint32
	closed  bool

	logger       *slog.Logger
	stat_factory *misc.StatFactory
}

func NewSimTransport(c *core.Core, partition uint8, ticksPerAccess int, logger *slog.Logger) *SimTransport {
	if ticksPerAccess <= 0 {
		ticksPerAccess = 1
	}

	layout := LayoutFor(c.Codec().PayloadBytes())
	s := &SimTransport{
		core:           c,
		layout:         layout,
		partition:      partition,
		ticksPerAccess: ticksPerAccess,
		w:              make([]uint32, layout.ChannelWords()),
		logger:         misc.OrDiscard(logger).With("component", "SimTransport"),
	}

	s.stat_factory = new(misc.StatFactory)
	s.stat_factory.Init("SimTransport")

	return s
}

func (s *SimTransport) Layout() Layout {
	return s.layout
}

func (s *SimTransport) Core() *core.Core {
	return s.core
}

func (s *SimTransport) StatFactory() *misc.StatFactory {
	return s.stat_factory
}

func (s *SimTransport) Poke(offset uint32, value uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if i, ok := within(offset, s.layout.AW, addressWords); ok {
		s.aw[i] = value
	} else if i, ok := within(offset, s.layout.W, s.layout.ChannelWords()); ok {
		s.w[i] = value
		if i == s.layout.Words {
			s.accept(true, JoinAddress(s.aw), s.w[:s.layout.Words])
		}
	} else if i, ok := within(offset, s.layout.AR, addressWords); ok {
		s.ar[i] = value
		if i == addressWords-1 {
			s.accept(false, JoinAddress(s.ar), nil)
		}
	} else {
		return fmt.Errorf("%w: poke 0x%03x", ErrOffset, offset)
	}

	s.advance()
	return nil
}

func (s *SimTransport) Peek(offset uint32) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	s.advance()

	switch offset {
	case s.layout.Interrupt:
		return uint32(s.core.InterruptCycles()), nil
	case s.layout.RValid:
		if s.latched != nil || len(s.replies) > 0 {
			return 1, nil
		}
		return 0, nil
	}

	i, ok := within(offset, s.layout.R, s.layout.ChannelWords())
	if !ok {
		return 0, fmt.Errorf("%w: peek 0x%03x", ErrOffset, offset)
	}
	// The first R access latches the oldest reply, so every word of one
	// read comes from the same reply.
	if s.latched == nil {
		if len(s.replies) == 0 {
			s.stat_factory.Increment("empty_reads", 1)
			return 0, fmt.Errorf("%w: R word %d read with no reply", ErrTimeout, i)
		}
		s.latched = s.replies[0]
		s.replies = s.replies[1:]
	}

	word := s.latched[i]
	// Reading the last word retires the reply.
	if i == s.layout.Words {
		s.latched = nil
	}
	return word, nil
}

// Close stops the transport. Later accesses fail with ErrClosed.
func (s *SimTransport) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// accept turns a completed AW/W or AR handshake into a core command.
// Addresses of another partition are not answered.
func (s *SimTransport) accept(is_write bool, axi uint32, words []uint32) {
	if uint8(axi>>24) != s.partition {
		s.stat_factory.Increment("foreign_partition_drops", 1)
		s.logger.Debug("command for another partition", "address", fmt.Sprintf("0x%08X", axi))
		return
	}

	var data codec.Payload
	copy(data[:], words)

	s.pending = append(s.pending, codec.Command{
		IsWrite: is_write,
		Address: axi & 0xFFFFFF,
		Data:    data,
	})
	if is_write {
		s.stat_factory.Increment("writes", 1)
	} else {
		s.stat_factory.Increment("reads", 1)
	}
}

func (s *SimTransport) advance() {
	for i := 0; i < s.ticksPerAccess; i++ {
		if len(s.pending) > 0 && s.core.Submit(s.pending[0]) {
			s.pending = s.pending[1:]
		}

		s.core.Tick()

		for {
			reply, ok := s.core.PopReply()
			if !ok {
				break
			}
			s.replies = append(s.replies, PackR(reply.Data[:s.layout.Words]))
		}
	}
}
