// Package simulation wires a scenario into a runnable simulation: the
// engine, the switch, the cells and the mobiles, the radio medium and the
// IP cloud between them, plus the message counter, the trace database and
// the monitor.
package simulation

import (
	"errors"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/sarchlab/gsmsim/datarecording"
	"github.com/sarchlab/gsmsim/gsm/bs"
	"github.com/sarchlab/gsmsim/gsm/ms"
	"github.com/sarchlab/gsmsim/gsm/msc"
	"github.com/sarchlab/gsmsim/gsm/node"
	"github.com/sarchlab/gsmsim/monitoring"
	"github.com/sarchlab/gsmsim/network"
	"github.com/sarchlab/gsmsim/scenario"
	"github.com/sarchlab/gsmsim/sim"
	"github.com/sarchlab/gsmsim/tracing"
)

// StatsTable is the table the node counters are written to when the
// simulation terminates.
const StatsTable = "gsm_node_stats"

type statsEntry struct {
	Node  string
	Kind  string
	Event string
	Count uint64
}

// A Simulation is a built network ready to run.
type Simulation struct {
	id     string
	cfg    *scenario.Config
	log    *zap.Logger
	timers node.TimerConfig
	engine *sim.SerialEngine

	medium *network.Medium
	ip     *network.IPCloud

	nodes      []*node.Node
	nodeByName map[string]*node.Node
	sw         *msc.Switch
	bss        map[string]*bs.Station
	mss        map[string]*ms.Station

	counter        *tracing.MsgCounter
	callSetup      *tracing.LatencyTracer
	locationUpdate *tracing.LatencyTracer
	recorder       datarecording.DataRecorder
	tracer         *tracing.DBTracer

	monitor    *monitoring.Monitor
	monitorURL string

	terminated bool
}

// ID returns the unique id of the run.
func (s *Simulation) ID() string {
	return s.id
}

// Engine returns the engine used in the simulation.
func (s *Simulation) Engine() sim.Engine {
	return s.engine
}

// Scenario returns the simulated scenario.
func (s *Simulation) Scenario() *scenario.Config {
	return s.cfg
}

// Nodes returns every node in creation order: the switch, the cells, then
// the mobiles.
func (s *Simulation) Nodes() []*node.Node {
	return s.nodes
}

// Node returns the node with the given name.
func (s *Simulation) Node(name string) (*node.Node, bool) {
	n, ok := s.nodeByName[name]
	return n, ok
}

// Switch returns the MSC.
func (s *Simulation) Switch() *msc.Switch {
	return s.sw
}

// BaseStation returns the cell with the given name.
func (s *Simulation) BaseStation(name string) (*bs.Station, bool) {
	st, ok := s.bss[name]
	return st, ok
}

// Mobile returns the mobile with the given name.
func (s *Simulation) Mobile(name string) (*ms.Station, bool) {
	st, ok := s.mss[name]
	return st, ok
}

// Medium returns the radio medium.
func (s *Simulation) Medium() *network.Medium {
	return s.medium
}

// IP returns the IP cloud.
func (s *Simulation) IP() *network.IPCloud {
	return s.ip
}

// MsgCounter returns the counter of every signaling message.
func (s *Simulation) MsgCounter() *tracing.MsgCounter {
	return s.counter
}

// Tracer returns the message tracer, nil when recording is off.
func (s *Simulation) Tracer() *tracing.DBTracer {
	return s.tracer
}

// DataRecorder returns the recorder, nil when recording is off.
func (s *Simulation) DataRecorder() datarecording.DataRecorder {
	return s.recorder
}

// Monitor returns the monitor, nil when monitoring is off.
func (s *Simulation) Monitor() *monitoring.Monitor {
	return s.monitor
}

// MonitorURL returns the address of the monitor page.
func (s *Simulation) MonitorURL() string {
	return s.monitorURL
}

// Run simulates the scenario duration. It can be called again to continue
// a run that ended early on an error.
func (s *Simulation) Run() error {
	if s.terminated {
		return errors.New("simulation already terminated")
	}

	end := scenario.Seconds(s.cfg.Duration)

	var bar *monitoring.ProgressBar
	if s.monitor != nil {
		bar = s.monitor.CreateProgressBar("Simulated ms",
			uint64(math.Round(float64(end)*1000)))
		defer s.monitor.CompleteProgressBar(bar)
	}

	s.log.Info("simulation started",
		zap.String("id", s.id),
		zap.Float64("duration", float64(end)))

	const step sim.VTimeInSec = 1

	for t := s.engine.CurrentTime(); t < end; {
		t = min(t+step, end)

		if err := s.engine.RunUntil(t); err != nil {
			return err
		}

		if bar != nil {
			bar.SetFinished(uint64(math.Round(float64(t) * 1000)))
		}
	}

	s.log.Info("simulation finished", zap.Float64("now", float64(end)))

	return nil
}

// Latency summarizes a LatencyTracer.
type Latency struct {
	Count   uint64
	Aborted uint64
	Average sim.VTimeInSec
	Max     sim.VTimeInSec
}

func latencyOf(t *tracing.LatencyTracer) Latency {
	return Latency{
		Count:   t.Count(),
		Aborted: t.Aborted(),
		Average: t.Average(),
		Max:     t.Max(),
	}
}

// Summary is the outcome of a run.
type Summary struct {
	Now            sim.VTimeInSec
	Switch         msc.Stats
	Medium         network.MediumStats
	Messages       uint64
	PacketsIP      uint64
	PacketsLost    uint64
	CallSetup      Latency
	LocationUpdate Latency
}

// Summary collects the headline counters.
func (s *Simulation) Summary() Summary {
	sum := Summary{
		Now:            s.engine.CurrentTime(),
		Switch:         s.sw.Stats(),
		Medium:         s.medium.Stats(),
		CallSetup:      latencyOf(s.callSetup),
		LocationUpdate: latencyOf(s.locationUpdate),
	}

	for _, c := range s.counter.Counts() {
		if c.Direction == tracing.DirectionSend {
			sum.Messages += c.Count
		}
	}

	sum.PacketsIP, sum.PacketsLost = s.ip.Counts()

	return sum
}

// Terminate writes the node counters, flushes the trace database and stops
// the monitor.
func (s *Simulation) Terminate() {
	if s.terminated {
		return
	}

	s.terminated = true

	if s.monitor != nil {
		if err := s.monitor.StopServer(); err != nil {
			s.log.Warn("stopping the monitor", zap.Error(err))
		}
	}

	if s.recorder != nil {
		if err := s.recordStats(); err != nil {
			s.log.Warn("recording the node counters", zap.Error(err))
		}

		if err := s.recorder.Close(); err != nil {
			s.log.Warn("closing the recorder", zap.Error(err))
		}
	}

	_ = s.log.Sync()
}

func (s *Simulation) recordStats() error {
	if err := s.tracer.Err(); err != nil {
		return err
	}

	if err := s.recorder.CreateTable(StatsTable, statsEntry{}); err != nil {
		return err
	}

	for _, n := range s.nodes {
		stats := monitoring.StatsOf(n.Role())

		events := make([]string, 0, len(stats))
		for e := range stats {
			events = append(events, e)
		}

		sort.Strings(events)

		for _, e := range events {
			err := s.recorder.InsertData(StatsTable, statsEntry{
				Node:  n.Name(),
				Kind:  n.Kind().String(),
				Event: e,
				Count: stats[e],
			})
			if err != nil {
				return err
			}
		}
	}

	return nil
}
