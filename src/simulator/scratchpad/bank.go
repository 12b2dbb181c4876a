package scratchpad

import (
	"errors"
	"fmt"

	"NMPulator/src/simulator/codec"

	"github.com/sarchlab/akita/v4/mem/mem"
)

// Bank is one independently addressable partition of a scratchpad. Entries
// are stored back to back in an akita storage of entries*entryBytes bytes.
type Bank struct {
	index      int
	entries    int
	entryBytes int

	storage *mem.Storage
}

func (this *Bank) Init(index int, entries int, entryBytes int) {
	if entries <= 0 {
		err := errors.New("bank entries <= 0")
		panic(err)
	}

	if entryBytes <= 0 || entryBytes > codec.PayloadBits/8 {
		err := fmt.Errorf("bank entry width %d bytes is out of range", entryBytes)
		panic(err)
	}

	this.index = index
	this.entries = entries
	this.entryBytes = entryBytes
	this.storage = mem.NewStorage(uint64(entries * entryBytes))
}

func (this *Bank) Fini() {
	this.storage = nil
}

func (this *Bank) Index() int {
	return this.index
}

func (this *Bank) Entries() int {
	return this.entries
}

func (this *Bank) Read(offset int) codec.Payload {
	this.validateRange(offset)

	data, err := this.storage.Read(this.address(offset), uint64(this.entryBytes))
	if err != nil {
		panic(err)
	}

	return codec.PayloadFromBytes(data)
}

func (this *Bank) Write(offset int, data codec.Payload) {
	this.validateRange(offset)

	if err := this.storage.Write(this.address(offset), data.Bytes(this.entryBytes)); err != nil {
		panic(err)
	}
}

func (this *Bank) address(offset int) uint64 {
	return uint64(offset * this.entryBytes)
}

func (this *Bank) validateRange(offset int) {
	if this.storage == nil {
		err := fmt.Errorf("bank %d is not initialized", this.index)
		panic(err)
	}

	if offset < 0 || offset >= this.entries {
		err := fmt.Errorf("bank %d offset %d out of range [0, %d)", this.index, offset, this.entries)
		panic(err)
	}
}
