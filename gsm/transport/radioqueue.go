package transport

import (
	"fmt"
	"sort"

	"github.com/sarchlab/gsmsim/sim"
)

// QueueKey addresses one radio queue.
type QueueKey struct {
	Slot    int
	Channel int
}

// RadioQueue holds one bounded FIFO of bursts per (slot, channel). The
// buffers are created on first use and are watched by the hooks registered
// on the queue.
type RadioQueue struct {
	name     string
	capacity int
	buffers  map[QueueKey]sim.Buffer
	hooks    []sim.Hook

	Dropped uint64
}

// NewRadioQueue creates an empty queue set.
func NewRadioQueue(name string, capacity int) *RadioQueue {
	sim.NameMustBeValid(name)

	return &RadioQueue{
		name:     name,
		capacity: capacity,
		buffers:  make(map[QueueKey]sim.Buffer),
	}
}

// AcceptHook registers a hook on every current and future buffer.
func (q *RadioQueue) AcceptHook(hook sim.Hook) {
	q.hooks = append(q.hooks, hook)

	for _, b := range q.buffers {
		b.AcceptHook(hook)
	}
}

func (q *RadioQueue) buffer(k QueueKey) sim.Buffer {
	b, ok := q.buffers[k]
	if ok {
		return b
	}

	b = sim.NewBuffer(
		fmt.Sprintf("%s.S%d.C%d", q.name, k.Slot, k.Channel), q.capacity)
	for _, h := range q.hooks {
		b.AcceptHook(h)
	}

	q.buffers[k] = b

	return b
}

// Enqueue appends a burst. It returns false and counts a drop when the
// queue of that slot and channel is full.
func (q *RadioQueue) Enqueue(slot, channel int, burst Burst) bool {
	b := q.buffer(QueueKey{Slot: slot, Channel: channel})
	if !b.CanPush() {
		q.Dropped++
		return false
	}

	b.Push(burst)

	return true
}

// Dequeue removes the oldest burst of a slot and channel.
func (q *RadioQueue) Dequeue(slot, channel int) (Burst, bool) {
	b, ok := q.buffers[QueueKey{Slot: slot, Channel: channel}]
	if !ok || b.Size() == 0 {
		return Burst{}, false
	}

	return b.Pop().(Burst), true
}

// Peek returns the oldest burst of a slot and channel without removing it.
func (q *RadioQueue) Peek(slot, channel int) (Burst, bool) {
	b, ok := q.buffers[QueueKey{Slot: slot, Channel: channel}]
	if !ok || b.Size() == 0 {
		return Burst{}, false
	}

	return b.Peek().(Burst), true
}

// Len returns the number of queued bursts of a slot and channel.
func (q *RadioQueue) Len(slot, channel int) int {
	b, ok := q.buffers[QueueKey{Slot: slot, Channel: channel}]
	if !ok {
		return 0
	}

	return b.Size()
}

// Pending returns the keys of the non-empty queues in slot, then channel
// order.
func (q *RadioQueue) Pending() []QueueKey {
	keys := make([]QueueKey, 0, len(q.buffers))

	for k, b := range q.buffers {
		if b.Size() > 0 {
			keys = append(keys, k)
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Slot != keys[j].Slot {
			return keys[i].Slot < keys[j].Slot
		}

		return keys[i].Channel < keys[j].Channel
	})

	return keys
}

// Buffers returns all the buffers, for monitoring.
func (q *RadioQueue) Buffers() []sim.Buffer {
	out := make([]sim.Buffer, 0, len(q.buffers))
	for _, b := range q.buffers {
		out = append(out, b)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })

	return out
}

// Clear drops everything queued on a slot and channel.
func (q *RadioQueue) Clear(slot, channel int) {
	if b, ok := q.buffers[QueueKey{Slot: slot, Channel: channel}]; ok {
		b.Clear()
	}
}
