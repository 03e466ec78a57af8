// Package scenario describes a simulated network: the switch and its
// subscribers, the cells, the mobiles, what the mobiles do and how their
// radio links evolve. Scenarios are written in YAML.
package scenario

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/gsmsim/gsm/codec"
	"github.com/sarchlab/gsmsim/gsm/handover"
	"github.com/sarchlab/gsmsim/gsm/msc"
	"github.com/sarchlab/gsmsim/gsm/node"
	"github.com/sarchlab/gsmsim/gsm/resource"
	"github.com/sarchlab/gsmsim/sim"
)

// Config is a complete scenario.
type Config struct {
	Seed       int64                    `yaml:"seed"`
	Duration   time.Duration            `yaml:"duration"`
	RadioDelay time.Duration            `yaml:"radioDelay"`
	IPDelay    time.Duration            `yaml:"ipDelay"`
	Timers     map[string]time.Duration `yaml:"timers"`

	MSC          MSC           `yaml:"msc"`
	BaseStations []BaseStation `yaml:"baseStations"`
	Mobiles      []Mobile      `yaml:"mobiles"`
}

// Subscriber is one HLR record.
type Subscriber struct {
	IMSI   string `yaml:"imsi"`
	MSISDN string `yaml:"msisdn"`
}

// MSC configures the switch.
type MSC struct {
	ID             uint32       `yaml:"id"`
	Name           string       `yaml:"name"`
	MaxCalls       int          `yaml:"maxCalls"`
	PagingAttempts int          `yaml:"pagingAttempts"`
	Subscribers    []Subscriber `yaml:"subscribers"`
}

// Neighbour refers to another configured cell.
type Neighbour struct {
	Cell        uint16  `yaml:"cell"`
	RxLevMin    float64 `yaml:"rxLevMin"`
	PowerOffset float64 `yaml:"powerOffset"`
}

// Thresholds overrides the handover thresholds of a cell.
type Thresholds struct {
	DLLevel   float64 `yaml:"dlLevel"`
	ULLevel   float64 `yaml:"ulLevel"`
	ULQuality float64 `yaml:"ulQuality"`
	DLQuality float64 `yaml:"dlQuality"`
	Window    int     `yaml:"window"`
}

// BaseStation configures one cell.
type BaseStation struct {
	ID             uint32        `yaml:"id"`
	Name           string        `yaml:"name"`
	CellIdentity   uint16        `yaml:"cellIdentity"`
	LAC            uint16        `yaml:"lac"`
	ChannelStart   int           `yaml:"channelStart"`
	ChannelCount   int           `yaml:"channelCount"`
	ReleaseDelay   time.Duration `yaml:"releaseDelay"`
	Neighbours     []Neighbour   `yaml:"neighbours"`
	Thresholds     *Thresholds   `yaml:"thresholds"`
	HandoverMargin float64       `yaml:"handoverMargin"`
	LinkLossLevel  float64       `yaml:"linkLossLevel"`
}

// Call is a call a mobile places.
type Call struct {
	At       time.Duration `yaml:"at"`
	Callee   string        `yaml:"callee"`
	Duration time.Duration `yaml:"duration"`
}

// Signal is the radio link between a mobile and a cell. The level starts
// ramping at Since.
type Signal struct {
	BS      uint32        `yaml:"bs"`
	Level   float64       `yaml:"level"`
	Slope   float64       `yaml:"slope"`
	Since   time.Duration `yaml:"since"`
	Quality float64       `yaml:"quality"`
}

// Mobile configures one mobile station.
type Mobile struct {
	ID          uint32         `yaml:"id"`
	Name        string         `yaml:"name"`
	IMSI        string         `yaml:"imsi"`
	MSISDN      string         `yaml:"msisdn"`
	ServingBS   uint32         `yaml:"servingBS"`
	PowerOn     time.Duration  `yaml:"powerOn"`
	PowerOff    *time.Duration `yaml:"powerOff"`
	AutoAnswer  *bool          `yaml:"autoAnswer"`
	AnswerDelay *time.Duration `yaml:"answerDelay"`
	HangUpAfter time.Duration  `yaml:"hangUpAfter"`
	Calls       []Call         `yaml:"calls"`
	Signals     []Signal       `yaml:"signals"`
}

// Defaults used when a scenario leaves a value out.
const (
	DefaultDuration       = 5 * time.Minute
	DefaultRadioDelay     = time.Millisecond
	DefaultIPDelay        = 2 * time.Millisecond
	DefaultChannelCount   = 4
	DefaultReleaseDelay   = 2 * time.Second
	DefaultHandoverMargin = 4.0
	DefaultLinkLossLevel  = -110.0
	DefaultRxLevMin       = -100.0
)

// Load reads and validates a scenario file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}

	return c, nil
}

// Parse decodes a scenario, fills in the defaults and validates it.
func Parse(data []byte) (*Config, error) {
	c := &Config{}

	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, err
	}

	c.SetDefaults()

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// SetDefaults fills the values a scenario left out.
func (c *Config) SetDefaults() {
	if c.Duration == 0 {
		c.Duration = DefaultDuration
	}

	if c.RadioDelay == 0 {
		c.RadioDelay = DefaultRadioDelay
	}

	if c.IPDelay == 0 {
		c.IPDelay = DefaultIPDelay
	}

	if c.MSC.Name == "" {
		c.MSC.Name = "MSC"
	}

	if c.MSC.MaxCalls == 0 {
		c.MSC.MaxCalls = 50
	}

	if c.MSC.PagingAttempts == 0 {
		c.MSC.PagingAttempts = 3
	}

	for i := range c.BaseStations {
		b := &c.BaseStations[i]

		if b.Name == "" {
			b.Name = fmt.Sprintf("BS%d", b.ID)
		}

		if b.ChannelCount == 0 {
			b.ChannelCount = DefaultChannelCount
		}

		if b.ReleaseDelay == 0 {
			b.ReleaseDelay = DefaultReleaseDelay
		}

		if b.HandoverMargin == 0 {
			b.HandoverMargin = DefaultHandoverMargin
		}

		if b.LinkLossLevel == 0 {
			b.LinkLossLevel = DefaultLinkLossLevel
		}

		for j := range b.Neighbours {
			if b.Neighbours[j].RxLevMin == 0 {
				b.Neighbours[j].RxLevMin = DefaultRxLevMin
			}
		}
	}

	for i := range c.Mobiles {
		if c.Mobiles[i].Name == "" {
			c.Mobiles[i].Name = fmt.Sprintf("MS%d", c.Mobiles[i].ID)
		}
	}
}

// Seconds converts a duration to simulated time.
func Seconds(d time.Duration) sim.VTimeInSec {
	return sim.VTimeInSec(d.Seconds())
}

// TimerConfig returns the GSM defaults with the scenario overrides applied.
func (c *Config) TimerConfig() (node.TimerConfig, error) {
	t := node.DefaultTimers()

	if err := t.Override(c.Timers); err != nil {
		return t, err
	}

	return t, nil
}

// SwitchConfig returns the configuration of the switch.
func (c *Config) SwitchConfig() msc.Config {
	subs := make([]msc.Subscriber, 0, len(c.MSC.Subscribers))
	for _, s := range c.MSC.Subscribers {
		subs = append(subs, msc.Subscriber{
			IMSI:   codec.MustIdentity(s.IMSI),
			MSISDN: codec.MustIdentity(s.MSISDN),
		})
	}

	cells := make([]msc.Cell, 0, len(c.BaseStations))
	for _, b := range c.BaseStations {
		cells = append(cells, msc.Cell{
			NodeID:       b.ID,
			CellIdentity: b.CellIdentity,
			LAC:          b.LAC,
		})
	}

	cfg := msc.DefaultConfig(subs, cells)
	cfg.MaxCalls = c.MSC.MaxCalls
	cfg.PagingAttempts = c.MSC.PagingAttempts

	return cfg
}

// CellByIdentity finds a configured cell.
func (c *Config) CellByIdentity(id uint16) (*BaseStation, bool) {
	for i := range c.BaseStations {
		if c.BaseStations[i].CellIdentity == id {
			return &c.BaseStations[i], true
		}
	}

	return nil, false
}

// ResourceConfig returns the channel layout of the cell.
func (b *BaseStation) ResourceConfig() resource.Config {
	return resource.Config{
		ChannelStart: b.ChannelStart,
		ChannelCount: b.ChannelCount,
		ReleaseDelay: Seconds(b.ReleaseDelay),
	}
}

// HandoverThresholds returns the configured thresholds or the defaults.
func (b *BaseStation) HandoverThresholds() handover.Thresholds {
	if b.Thresholds == nil {
		return handover.DefaultThresholds()
	}

	return handover.Thresholds{
		DLLevel:   b.Thresholds.DLLevel,
		ULLevel:   b.Thresholds.ULLevel,
		ULQuality: b.Thresholds.ULQuality,
		DLQuality: b.Thresholds.DLQuality,
		Window:    b.Thresholds.Window,
	}
}

// NeighbourCells lists the identities of the neighbours in order.
func (b *BaseStation) NeighbourCells() []uint16 {
	out := make([]uint16, 0, len(b.Neighbours))
	for _, n := range b.Neighbours {
		out = append(out, n.Cell)
	}

	return out
}
