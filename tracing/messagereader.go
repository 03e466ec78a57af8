package tracing

import (
	"context"
	"strings"

	"github.com/sarchlab/gsmsim/datarecording"
)

// MessageQuery selects rows of the message table. Empty fields match
// everything.
type MessageQuery struct {
	Node      string
	Message   string
	Interface string
	Direction Direction

	// EnableTimeRange limits the rows to [StartTime, EndTime].
	EnableTimeRange    bool
	StartTime, EndTime float64

	Limit, Offset int
}

// MessageReader reads the messages a DBTracer recorded.
type MessageReader struct {
	reader datarecording.DataReader
}

// NewMessageReader reads the message table through r.
func NewMessageReader(r datarecording.DataReader) *MessageReader {
	r.MapTable(MessageTable, MessageRecord{})

	return &MessageReader{reader: r}
}

// Messages returns the selected rows in time order and the number of rows
// matching the query ignoring its limit.
func (r *MessageReader) Messages(
	ctx context.Context,
	q MessageQuery,
) ([]MessageRecord, int, error) {
	var (
		conds []string
		args  []any
	)

	match := func(column, value string) {
		if value != "" {
			conds = append(conds, column+" = ?")
			args = append(args, value)
		}
	}

	match("Node", q.Node)
	match("Message", q.Message)
	match("Interface", q.Interface)
	match("Direction", string(q.Direction))

	if q.EnableTimeRange {
		conds = append(conds, "Time >= ?", "Time <= ?")
		args = append(args, q.StartTime, q.EndTime)
	}

	rows, total, err := r.reader.Query(ctx, MessageTable,
		datarecording.QueryParams{
			Where:   strings.Join(conds, " AND "),
			Args:    args,
			OrderBy: "Time, rowid",
			Limit:   q.Limit,
			Offset:  q.Offset,
		})
	if err != nil {
		return nil, 0, err
	}

	out := make([]MessageRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row.(*MessageRecord))
	}

	return out, total, nil
}
