package tracing

import (
	"fmt"
	"sync"

	"github.com/sarchlab/gsmsim/datarecording"
	"github.com/sarchlab/gsmsim/gsm/node"
	"github.com/sarchlab/gsmsim/sim"
)

// MessageTable is the table the DBTracer writes to.
const MessageTable = "gsm_message"

// MessageRecord is one row of the message table.
type MessageRecord struct {
	Time      float64
	Node      string
	Direction string
	Interface string
	Message   string
}

// DBTracer writes one row per signaling message into a data recorder.
// Tracing can be limited to a time window.
type DBTracer struct {
	lock    sync.Mutex
	backend datarecording.DataRecorder

	startTime, endTime sim.VTimeInSec
	rows               uint64
	err                error
}

// NewDBTracer creates a tracer and the table it writes to.
func NewDBTracer(backend datarecording.DataRecorder) (*DBTracer, error) {
	if err := backend.CreateTable(MessageTable, MessageRecord{}); err != nil {
		return nil, fmt.Errorf("creating the message table: %w", err)
	}

	return &DBTracer{backend: backend, endTime: -1}, nil
}

// SetTimeRange limits tracing to [start, end]. A negative end traces until
// the end of the simulation.
func (t *DBTracer) SetTimeRange(start, end sim.VTimeInSec) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.startTime = start
	t.endTime = end
}

// Func implements sim.Hook.
func (t *DBTracer) Func(ctx sim.HookCtx) {
	dir, ok := directionOf(ctx.Pos)
	if !ok {
		return
	}

	info, ok := ctx.Item.(node.MsgInfo)
	if !ok {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	if info.Time < t.startTime || (t.endTime >= 0 && info.Time > t.endTime) {
		return
	}

	err := t.backend.InsertData(MessageTable, MessageRecord{
		Time:      float64(info.Time),
		Node:      info.Node,
		Direction: string(dir),
		Interface: info.Interface.String(),
		Message:   info.Message.Name(),
	})
	if err != nil {
		if t.err == nil {
			t.err = err
		}

		return
	}

	t.rows++
}

// Rows returns the number of rows written.
func (t *DBTracer) Rows() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.rows
}

// Err returns the first error met while writing.
func (t *DBTracer) Err() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.err
}
