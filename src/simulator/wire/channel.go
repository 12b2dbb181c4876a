// Package wire provides the bounded channels that connect the blocks of the
// core. A push only becomes visible to the consumer after Commit, which the
// core calls once at the end of every tick, so producers and consumers that
// tick in the same cycle never see each other's half-updated state.
package wire

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"
)

// Channel is a typed FIFO backed by two akita buffers: one staged for the
// current tick and one visible to the consumer.
type Channel[T any] struct {
	name    string
	staged  sim.Buffer
	visible sim.Buffer
}

func NewChannel[T any](name string, capacity int) *Channel[T] {
	if capacity <= 0 {
		err := fmt.Errorf("channel %s capacity %d <= 0", name, capacity)
		panic(err)
	}

	return &Channel[T]{
		name:    name,
		staged:  sim.NewBuffer(sim.BuildName(name, "Staged"), capacity),
		visible: sim.NewBuffer(sim.BuildName(name, "Visible"), capacity),
	}
}

func (c *Channel[T]) Name() string {
	return c.name
}

func (c *Channel[T]) Capacity() int {
	return c.visible.Capacity()
}

// Size counts visible and staged items.
func (c *Channel[T]) Size() int {
	return c.visible.Size() + c.staged.Size()
}

func (c *Channel[T]) IsEmpty() bool {
	return c.Size() == 0
}

func (c *Channel[T]) CanPush() bool {
	return c.Size() < c.Capacity()
}

// Push panics when the channel is full; producers check CanPush first.
func (c *Channel[T]) Push(item T) {
	if !c.CanPush() {
		err := fmt.Errorf("channel %s cannot be pushed", c.name)
		panic(err)
	}

	c.staged.Push(item)
}

// Peek returns the oldest visible item without consuming it.
func (c *Channel[T]) Peek() (T, bool) {
	item := c.visible.Peek()
	if item == nil {
		var zero T
		return zero, false
	}
	return item.(T), true
}

// Pop consumes the oldest visible item.
func (c *Channel[T]) Pop() (T, bool) {
	item := c.visible.Pop()
	if item == nil {
		var zero T
		return zero, false
	}
	return item.(T), true
}

// Commit makes this tick's pushes visible.
func (c *Channel[T]) Commit() {
	for c.staged.Size() > 0 {
		c.visible.Push(c.staged.Pop())
	}
}

// Committer is anything with per-tick staged state.
type Committer interface {
	Commit()
}

// Group commits a set of channels together.
type Group struct {
	members []Committer
}

func (g *Group) Add(members ...Committer) {
	g.members = append(g.members, members...)
}

func (g *Group) Commit() {
	for _, m := range g.members {
		m.Commit()
	}
}
