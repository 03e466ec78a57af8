package simulation

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/rs/xid"
	"go.uber.org/zap"

	"github.com/sarchlab/gsmsim/datarecording"
	"github.com/sarchlab/gsmsim/gsm/bs"
	"github.com/sarchlab/gsmsim/gsm/codec"
	"github.com/sarchlab/gsmsim/gsm/handover"
	"github.com/sarchlab/gsmsim/gsm/ms"
	"github.com/sarchlab/gsmsim/gsm/msc"
	"github.com/sarchlab/gsmsim/gsm/node"
	"github.com/sarchlab/gsmsim/gsm/transport"
	"github.com/sarchlab/gsmsim/monitoring"
	"github.com/sarchlab/gsmsim/network"
	"github.com/sarchlab/gsmsim/scenario"
	"github.com/sarchlab/gsmsim/sim"
	"github.com/sarchlab/gsmsim/tracing"
)

// RadioQueueCapacity is the depth of every per slot and channel radio
// queue.
const RadioQueueCapacity = 64

// Builder can be used to build a simulation.
type Builder struct {
	scenario       *scenario.Config
	log            *zap.Logger
	monitorOn      bool
	monitorPort    int
	recordingOn    bool
	outputFileName string
	parallelIDs    bool
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		monitorOn:   true,
		recordingOn: true,
	}
}

// WithScenario sets the network to simulate.
func (b Builder) WithScenario(c *scenario.Config) Builder {
	b.scenario = c
	return b
}

// WithLogger sets the logger the nodes log to.
func (b Builder) WithLogger(log *zap.Logger) Builder {
	b.log = log
	return b
}

// WithoutMonitoring sets the simulation to not use monitoring.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithoutRecording disables the message trace database.
func (b Builder) WithoutRecording() Builder {
	b.recordingOn = false
	return b
}

// WithOutputFileName sets the custom output file name for the data recorder.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.outputFileName = filename
	return b
}

// WithParallelIDs names events with xid instead of a counter. Event IDs are
// then no longer reproducible from run to run.
func (b Builder) WithParallelIDs() Builder {
	b.parallelIDs = true
	return b
}

func (b Builder) parametersMustBeValid() error {
	if b.scenario == nil {
		return errors.New("no scenario given")
	}

	if !b.monitorOn && b.monitorPort != 0 {
		return errors.New(
			"monitor port cannot be set when monitoring is disabled")
	}

	if !b.recordingOn && b.outputFileName != "" {
		return errors.New(
			"output file cannot be set when recording is disabled")
	}

	return nil
}

// Build assembles the engine, the nodes and their collaborators. Nothing
// runs until Run is called.
func (b Builder) Build() (*Simulation, error) {
	if err := b.parametersMustBeValid(); err != nil {
		return nil, err
	}

	cfg := b.scenario
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	timers, err := cfg.TimerConfig()
	if err != nil {
		return nil, err
	}

	log := b.log
	if log == nil {
		log = zap.NewNop()
	}

	if b.parallelIDs {
		sim.UseParallelIDGenerator()
	} else {
		sim.UseSequentialIDGenerator()
	}

	s := &Simulation{
		id:         xid.New().String(),
		cfg:        cfg,
		log:        log,
		timers:     timers,
		engine:     sim.NewSerialEngine(),
		nodeByName: make(map[string]*node.Node),
		bss:        make(map[string]*bs.Station),
		mss:        make(map[string]*ms.Station),
		counter:    tracing.NewMsgCounter(),

		callSetup:      tracing.NewCallSetupTracer(),
		locationUpdate: tracing.NewLocationUpdateTracer(),
	}

	s.medium = network.NewMedium("Medium", s.engine,
		scenario.Seconds(cfg.RadioDelay), network.NewSignalModel(), log)
	s.ip = network.NewIPCloud(s.engine, scenario.Seconds(cfg.IPDelay), log)

	if b.recordingOn {
		if err := s.startRecording(b.outputFileName); err != nil {
			return nil, err
		}
	}

	builders := []func() error{s.buildSwitch, s.buildCells, s.buildMobiles}
	for _, build := range builders {
		if err := build(); err != nil {
			s.Terminate()
			return nil, err
		}
	}

	if b.monitorOn {
		if err := s.startMonitor(b.monitorPort); err != nil {
			s.Terminate()
			return nil, err
		}
	}

	return s, nil
}

func (s *Simulation) startRecording(path string) error {
	if path == "" {
		path = "gsmsim_" + s.id
	}

	rec, err := datarecording.New(path)
	if err != nil {
		return err
	}

	tracer, err := tracing.NewDBTracer(rec)
	if err != nil {
		_ = rec.Close()
		return err
	}

	s.recorder = rec
	s.tracer = tracer

	return nil
}

func (s *Simulation) startMonitor(port int) error {
	s.monitor = monitoring.NewMonitor(s.engine, s.log)
	if port != 0 {
		s.monitor.WithPortNumber(port)
	}

	for _, n := range s.nodes {
		s.monitor.RegisterNode(n)
	}

	url, err := s.monitor.StartServer()
	if err != nil {
		s.monitor = nil
		return err
	}

	s.monitorURL = url

	return nil
}

// newContext creates the context of a node. Mobiles and cells get a radio
// queue.
func (s *Simulation) newContext(id uint32, name string, radio bool) *node.Context {
	ctx := &node.Context{
		ID:     id,
		Name:   name,
		Engine: s.engine,
		Log:    s.log.Named(name).With(zap.Uint32("id", id)),
		MAC:    s.medium,
		IP:     s.ip,
		Rand:   rand.New(rand.NewSource(s.cfg.Seed + int64(id))),
		Timers: s.timers,
	}

	if radio {
		ctx.Radio = transport.NewRadioQueue(name+".Radio", RadioQueueCapacity)
	}

	ctx.AcceptHook(s.counter)
	ctx.AcceptHook(s.callSetup)
	ctx.AcceptHook(s.locationUpdate)
	if s.tracer != nil {
		ctx.AcceptHook(s.tracer)
	}

	return ctx
}

func (s *Simulation) addNode(n *node.Node, at sim.VTimeInSec) {
	s.nodes = append(s.nodes, n)
	s.nodeByName[n.Name()] = n

	s.engine.Schedule(node.NewStartEvent(at, n))
}

func (s *Simulation) buildSwitch() error {
	sw, err := msc.New(s.cfg.SwitchConfig())
	if err != nil {
		return fmt.Errorf("msc: %w", err)
	}

	n := node.New(s.newContext(s.cfg.MSC.ID, s.cfg.MSC.Name, false), sw)
	s.sw = sw
	s.ip.Attach(n)
	s.addNode(n, 0)

	return nil
}

func (s *Simulation) buildCells() error {
	for i := range s.cfg.BaseStations {
		c := &s.cfg.BaseStations[i]

		station, err := bs.New(bs.Config{
			CellIdentity:   c.CellIdentity,
			LAC:            c.LAC,
			MSC:            s.cfg.MSC.ID,
			Resources:      c.ResourceConfig(),
			Neighbours:     s.neighbours(c),
			Thresholds:     c.HandoverThresholds(),
			HandoverMargin: c.HandoverMargin,
			LinkLossLevel:  c.LinkLossLevel,
		}, s.engine)
		if err != nil {
			return fmt.Errorf("%s: %w", c.Name, err)
		}

		n := node.New(s.newContext(c.ID, c.Name, true), station)
		s.bss[c.Name] = station
		s.ip.Attach(n)
		s.medium.AttachCell(n, station.BCCH(), c.CellIdentity, c.NeighbourCells())
		s.addNode(n, 0)
	}

	return nil
}

func (s *Simulation) neighbours(c *scenario.BaseStation) []handover.Neighbour {
	out := make([]handover.Neighbour, 0, len(c.Neighbours))

	for i, nb := range c.Neighbours {
		target, _ := s.cfg.CellByIdentity(nb.Cell)
		out = append(out, handover.Neighbour{
			Index:        i,
			CellIdentity: nb.Cell,
			LAC:          target.LAC,
			BCCH:         uint16(target.ChannelStart),
			RxLevMin:     nb.RxLevMin,
			PowerOffset:  nb.PowerOffset,
		})
	}

	return out
}

func (s *Simulation) buildMobiles() error {
	for i := range s.cfg.Mobiles {
		m := &s.cfg.Mobiles[i]

		cfg := ms.DefaultConfig(
			codec.MustIdentity(m.IMSI), codec.MustIdentity(m.MSISDN))
		if m.AutoAnswer != nil {
			cfg.AutoAnswer = *m.AutoAnswer
		}

		if m.AnswerDelay != nil {
			cfg.AnswerDelay = scenario.Seconds(*m.AnswerDelay)
		}

		cfg.HangUpAfter = scenario.Seconds(m.HangUpAfter)

		station, err := ms.New(cfg)
		if err != nil {
			return fmt.Errorf("%s: %w", m.Name, err)
		}

		n := node.New(s.newContext(m.ID, m.Name, true), station)
		s.mss[m.Name] = station
		s.medium.AttachMobile(n, m.ServingBS)
		s.addNode(n, scenario.Seconds(m.PowerOn))

		for _, sig := range m.Signals {
			s.medium.Signals().Set(m.ID, sig.BS, network.Link{
				Level:   sig.Level,
				Slope:   sig.Slope,
				Since:   scenario.Seconds(sig.Since),
				Quality: sig.Quality,
			})
		}

		for _, call := range m.Calls {
			s.engine.Schedule(node.NewCommandEvent(
				scenario.Seconds(call.At), n, node.Originate{
					Callee:   codec.MustIdentity(call.Callee),
					Duration: scenario.Seconds(call.Duration),
				}))
		}

		if m.PowerOff != nil {
			s.engine.Schedule(node.NewCommandEvent(
				scenario.Seconds(*m.PowerOff), n, node.PowerOff{}))
		}
	}

	return nil
}
