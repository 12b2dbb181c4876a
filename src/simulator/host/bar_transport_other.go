//go:build !linux

package host

import (
	"fmt"
	"runtime"
)

// BARTransport is only available on linux.
type BARTransport struct{}

func OpenBAR(path string, size int) (*BARTransport, error) {
	return nil, fmt.Errorf("open bar %s: not supported on %s", path, runtime.GOOS)
}

func BAROpener(paths []string, size int) Opener {
	return func(slot int) (Transport, error) {
		return nil, fmt.Errorf("slot %d: bar access not supported on %s", slot, runtime.GOOS)
	}
}

func (b *BARTransport) Poke(offset uint32, value uint32) error {
	return ErrClosed
}

func (b *BARTransport) Peek(offset uint32) (uint32, error) {
	return 0, ErrClosed
}

func (b *BARTransport) Close() error {
	return nil
}
