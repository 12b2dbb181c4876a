package host

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"NMPulator/src/misc"
	"NMPulator/src/simulator/codec"
)

const (
	defaultAttempts = 1000
	defaultInterval = 10 * time.Microsecond
)

// Options tune how the driver waits on the shell.
type Options struct {
	// PayloadBytes selects the register layout.
	PayloadBytes int
	// Attempts bounds every polling loop.
	Attempts int
	// Interval is the pause between transaction steps and polls.
	Interval time.Duration
	// PollValid waits on the R-valid register before reading R. Without
	// it the driver pauses one interval and reads.
	PollValid bool
	// Sleep defaults to time.Sleep.
	Sleep func(time.Duration)
}

func (o Options) withDefaults() Options {
	if o.Attempts <= 0 {
		o.Attempts = defaultAttempts
	}
	if o.Interval <= 0 {
		o.Interval = defaultInterval
	}
	if o.Sleep == nil {
		o.Sleep = time.Sleep
	}
	return o
}

// Driver runs write and read transactions over a Transport. It is not safe
// for concurrent use; one driver serves one slot.
type Driver struct {
	transport Transport
	layout    Layout
	options   Options

	logger       *slog.Logger
	stat_factory *misc.StatFactory
}

func NewDriver(transport Transport, options Options, logger *slog.Logger) *Driver {
	options = options.withDefaults()

	d := &Driver{
		transport: transport,
		layout:    LayoutFor(options.PayloadBytes),
		options:   options,
		logger:    misc.OrDiscard(logger).With("component", "Driver"),
	}

	d.stat_factory = new(misc.StatFactory)
	d.stat_factory.Init("Driver")

	return d
}

func (d *Driver) Layout() Layout {
	return d.layout
}

func (d *Driver) Transport() Transport {
	return d.transport
}

func (d *Driver) StatFactory() *misc.StatFactory {
	return d.stat_factory
}

// Write sends data to the AXI address axi.
func (d *Driver) Write(ctx context.Context, axi uint32, data codec.Payload) error {
	if err := d.pokeAddress(d.layout.AW, axi); err != nil {
		return fmt.Errorf("write 0x%08X: %w", axi, err)
	}
	if err := d.pause(ctx); err != nil {
		return fmt.Errorf("write 0x%08X: %w", axi, err)
	}

	for i, word := range PackW(data[:d.layout.Words]) {
		if err := d.transport.Poke(d.layout.W+uint32(4*i), word); err != nil {
			return fmt.Errorf("write 0x%08X: W word %d: %w", axi, i, err)
		}
	}

	d.stat_factory.Increment("writes", 1)
	d.logger.Debug("write", "address", fmt.Sprintf("0x%08X", axi))
	return nil
}

// Read fetches the payload at the AXI address axi.
func (d *Driver) Read(ctx context.Context, axi uint32) (codec.Payload, error) {
	var data codec.Payload

	if err := d.pokeAddress(d.layout.AR, axi); err != nil {
		return data, fmt.Errorf("read 0x%08X: %w", axi, err)
	}

	if d.options.PollValid {
		_, err := d.poll(ctx, d.layout.RValid, func(v uint32) bool { return v != 0 })
		if err != nil {
			return data, fmt.Errorf("read 0x%08X: %w", axi, err)
		}
	} else if err := d.pause(ctx); err != nil {
		return data, fmt.Errorf("read 0x%08X: %w", axi, err)
	}

	words := make([]uint32, d.layout.ChannelWords())
	for i := range words {
		word, err := d.transport.Peek(d.layout.R + uint32(4*i))
		if err != nil {
			return data, fmt.Errorf("read 0x%08X: R word %d: %w", axi, i, err)
		}
		words[i] = word
	}
	copy(data[:], UnpackR(words))

	d.stat_factory.Increment("reads", 1)
	return data, nil
}

// InterruptCycles reads the interrupt counter.
func (d *Driver) InterruptCycles() (uint32, error) {
	v, err := d.transport.Peek(d.layout.Interrupt)
	if err != nil {
		return 0, fmt.Errorf("interrupt counter: %w", err)
	}
	return v, nil
}

// WaitDone polls the interrupt counter until it reaches target and returns
// the last value read.
func (d *Driver) WaitDone(ctx context.Context, target uint32) (uint32, error) {
	v, err := d.poll(ctx, d.layout.Interrupt, func(v uint32) bool { return v >= target })
	if err != nil {
		return v, fmt.Errorf("wait done (interrupt cycles %d < %d): %w", v, target, err)
	}
	return v, nil
}

func (d *Driver) pokeAddress(base uint32, axi uint32) error {
	for i, word := range SplitAddress(axi) {
		if err := d.transport.Poke(base+uint32(4*i), word); err != nil {
			return fmt.Errorf("address word %d: %w", i, err)
		}
	}
	return nil
}

func (d *Driver) poll(ctx context.Context, offset uint32, ready func(uint32) bool) (uint32, error) {
	var v uint32
	for attempt := 0; attempt < d.options.Attempts; attempt++ {
		var err error
		v, err = d.transport.Peek(offset)
		if err != nil {
			return v, err
		}
		if ready(v) {
			d.stat_factory.Increment("poll_attempts", int64(attempt+1))
			return v, nil
		}
		if err := d.pause(ctx); err != nil {
			return v, err
		}
	}

	d.stat_factory.Increment("timeouts", 1)
	return v, fmt.Errorf("%w after %d polls of 0x%03x", ErrTimeout, d.options.Attempts, offset)
}

func (d *Driver) pause(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.options.Sleep(d.options.Interval)
	return nil
}
