//go:build linux

package host

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// BARTransport maps a PCIe BAR resource file, such as
// /sys/bus/pci/devices/<bdf>/resource0, and accesses it as 32-bit
// registers.
type BARTransport struct {
	mu     sync.Mutex
	file   *os.File
	mem    []byte
	closed bool
}

// OpenBAR maps size bytes of path. A size of zero maps the whole file.
func OpenBAR(path string, size int) (*BARTransport, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("open bar %s: %w", path, err)
	}

	if size <= 0 {
		info, err := file.Stat()
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("stat bar %s: %w", path, err)
		}
		size = int(info.Size())
	}

	mem, err := unix.Mmap(int(file.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("mmap bar %s: %w", path, err)
	}

	return &BARTransport{file: file, mem: mem}, nil
}

// BAROpener opens slot i as the BAR file paths[i].
func BAROpener(paths []string, size int) Opener {
	return func(slot int) (Transport, error) {
		if slot < 0 || slot >= len(paths) {
			return nil, fmt.Errorf("slot %d has no bar path", slot)
		}
		return OpenBAR(paths[slot], size)
	}
}

func (b *BARTransport) register(offset uint32) (*uint32, error) {
	if b.closed {
		return nil, ErrClosed
	}
	if offset%4 != 0 || int(offset)+4 > len(b.mem) {
		return nil, fmt.Errorf("%w: 0x%03x outside a %d-byte bar", ErrOffset, offset, len(b.mem))
	}
	return (*uint32)(unsafe.Pointer(&b.mem[offset])), nil
}

func (b *BARTransport) Poke(offset uint32, value uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	reg, err := b.register(offset)
	if err != nil {
		return err
	}
	atomic.StoreUint32(reg, value)
	return nil
}

func (b *BARTransport) Peek(offset uint32) (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	reg, err := b.register(offset)
	if err != nil {
		return 0, err
	}
	return atomic.LoadUint32(reg), nil
}

func (b *BARTransport) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	err := unix.Munmap(b.mem)
	b.mem = nil
	if cerr := b.file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("close bar: %w", err)
	}
	return nil
}
