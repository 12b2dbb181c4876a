package host

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"NMPulator/src/misc"
)

// Handle names an attached slot. The zero Handle is never issued.
type Handle struct {
	id uint64
}

func (h Handle) String() string {
	return fmt.Sprintf("handle#%d", h.id)
}

// Opener attaches the transport of a slot.
type Opener func(slot int) (Transport, error)

type attachment struct {
	slot      int
	transport Transport
	driver    *Driver
}

// Registry tracks attached slots. Registries are independent of each other
// and safe for concurrent use.
type Registry struct {
	mu sync.Mutex

	opener  Opener
	options Options
	next    uint64
	entries map[uint64]*attachment
	slots   map[int]uint64

	logger *slog.Logger
}

func NewRegistry(opener Opener, options Options, logger *slog.Logger) *Registry {
	return &Registry{
		opener:  opener,
		options: options,
		entries: make(map[uint64]*attachment),
		slots:   make(map[int]uint64),
		logger:  misc.OrDiscard(logger).With("component", "Registry"),
	}
}

// Open attaches slot and returns its handle. A slot can be attached once
// at a time.
func (r *Registry) Open(slot int) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.slots[slot]; ok {
		return Handle{}, fmt.Errorf("open slot %d: already attached", slot)
	}

	transport, err := r.opener(slot)
	if err != nil {
		return Handle{}, fmt.Errorf("open slot %d: %w", slot, err)
	}

	r.next++
	r.entries[r.next] = &attachment{
		slot:      slot,
		transport: transport,
		driver:    NewDriver(transport, r.options, r.logger),
	}
	r.slots[slot] = r.next

	r.logger.Info("slot attached", "slot", slot, "handle", r.next)
	return Handle{id: r.next}, nil
}

// Get returns the driver behind h.
func (r *Registry) Get(h Handle) (*Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[h.id]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", h, ErrUnknownHandle)
	}
	return entry.driver, nil
}

// Close detaches h and closes its transport when it can be closed.
func (r *Registry) Close(h Handle) error {
	r.mu.Lock()
	entry, ok := r.entries[h.id]
	if ok {
		delete(r.entries, h.id)
		delete(r.slots, entry.slot)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("close %s: %w", h, ErrUnknownHandle)
	}

	r.logger.Info("slot detached", "slot", entry.slot, "handle", h.id)
	if closer, ok := entry.transport.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("close %s: %w", h, err)
		}
	}
	return nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.entries)
}
