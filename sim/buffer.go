package sim

import "log"

// Buffer hook positions. The item of the hook context is the element.
var (
	HookPosBufPush = &HookPos{Name: "BufferPush"}
	HookPosBufPop  = &HookPos{Name: "BufferPop"}
)

// A Buffer is a bounded FIFO queue. Pushing into a full buffer panics, so
// producers check CanPush first.
type Buffer interface {
	Named
	Hookable

	CanPush() bool
	Push(e any)
	Pop() any
	Peek() any
	Capacity() int
	Size() int

	// Clear drops every element without firing hooks.
	Clear()
}

// NewBuffer creates a ring buffer.
func NewBuffer(name string, capacity int) Buffer {
	NameMustBeValid(name)

	if capacity <= 0 {
		log.Panicf("buffer %s must have a positive capacity", name)
	}

	return &ringBuffer{
		name:  name,
		slots: make([]any, capacity),
	}
}

type ringBuffer struct {
	HookableBase

	name  string
	slots []any
	head  int
	size  int
}

func (b *ringBuffer) Name() string {
	return b.name
}

func (b *ringBuffer) Capacity() int {
	return len(b.slots)
}

func (b *ringBuffer) Size() int {
	return b.size
}

func (b *ringBuffer) CanPush() bool {
	return b.size < len(b.slots)
}

func (b *ringBuffer) Push(e any) {
	if !b.CanPush() {
		log.Panicf("buffer %s overflow", b.name)
	}

	b.slots[(b.head+b.size)%len(b.slots)] = e
	b.size++

	b.fire(HookPosBufPush, e)
}

func (b *ringBuffer) Pop() any {
	if b.size == 0 {
		return nil
	}

	e := b.slots[b.head]
	b.slots[b.head] = nil
	b.head = (b.head + 1) % len(b.slots)
	b.size--

	b.fire(HookPosBufPop, e)

	return e
}

func (b *ringBuffer) Peek() any {
	if b.size == 0 {
		return nil
	}

	return b.slots[b.head]
}

func (b *ringBuffer) Clear() {
	clear(b.slots)
	b.head = 0
	b.size = 0
}

func (b *ringBuffer) fire(pos *HookPos, e any) {
	if b.NumHooks() == 0 {
		return
	}

	b.InvokeHook(HookCtx{Domain: b, Pos: pos, Item: e})
}
