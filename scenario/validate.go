package scenario

import (
	"fmt"

	"github.com/sarchlab/gsmsim/gsm/codec"
	"github.com/sarchlab/gsmsim/gsm/handover"
	"github.com/sarchlab/gsmsim/gsm/msc"
	"github.com/sarchlab/gsmsim/sim"
)

// Validate checks that the scenario describes a consistent network.
func (c *Config) Validate() error {
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be positive")
	}

	if c.RadioDelay < 0 || c.IPDelay < 0 {
		return fmt.Errorf("delays must not be negative")
	}

	if _, err := c.TimerConfig(); err != nil {
		return err
	}

	v := &validator{
		ids:   make(map[uint32]string),
		names: make(map[string]bool),
	}

	if err := v.node(c.MSC.ID, c.MSC.Name); err != nil {
		return fmt.Errorf("msc: %w", err)
	}

	if err := c.validateSubscribers(); err != nil {
		return err
	}

	if err := c.validateBaseStations(v); err != nil {
		return err
	}

	if err := c.validateMobiles(v); err != nil {
		return err
	}

	return c.SwitchConfig().Validate()
}

type validator struct {
	ids   map[uint32]string
	names map[string]bool
}

func (v *validator) node(id uint32, name string) error {
	if err := sim.ValidateName(name); err != nil {
		return err
	}

	if other, ok := v.ids[id]; ok {
		return fmt.Errorf("node id %d used by %s and %s", id, other, name)
	}

	if v.names[name] {
		return fmt.Errorf("node name %s used twice", name)
	}

	v.ids[id] = name
	v.names[name] = true

	return nil
}

func (c *Config) validateSubscribers() error {
	for i, s := range c.MSC.Subscribers {
		if _, err := codec.IdentityFromString(s.IMSI); err != nil {
			return fmt.Errorf("subscriber %d: imsi: %w", i, err)
		}

		if _, err := codec.IdentityFromString(s.MSISDN); err != nil {
			return fmt.Errorf("subscriber %d: msisdn: %w", i, err)
		}
	}

	return nil
}

func (c *Config) validateBaseStations(v *validator) error {
	if len(c.BaseStations) == 0 {
		return fmt.Errorf("no base station configured")
	}

	if len(c.BaseStations) > msc.MaxBaseStations {
		return fmt.Errorf("%d base stations configured, at most %d supported",
			len(c.BaseStations), msc.MaxBaseStations)
	}

	cells := make(map[uint16]bool)

	for i := range c.BaseStations {
		b := &c.BaseStations[i]

		if err := v.node(b.ID, b.Name); err != nil {
			return fmt.Errorf("base station %d: %w", i, err)
		}

		if cells[b.CellIdentity] {
			return fmt.Errorf("cell identity %d used twice", b.CellIdentity)
		}

		cells[b.CellIdentity] = true

		if err := b.ResourceConfig().Validate(); err != nil {
			return fmt.Errorf("%s: %w", b.Name, err)
		}

		for j := 0; j < i; j++ {
			o := &c.BaseStations[j]
			if b.ChannelStart < o.ChannelStart+o.ChannelCount &&
				o.ChannelStart < b.ChannelStart+b.ChannelCount {
				return fmt.Errorf("channels of %s overlap with %s",
					b.Name, o.Name)
			}
		}

		if w := b.HandoverThresholds().Window; w <= 0 || w > handover.SampleDepth {
			return fmt.Errorf("%s: handover window %d must be within [1, %d]",
				b.Name, w, handover.SampleDepth)
		}
	}

	for _, b := range c.BaseStations {
		if len(b.Neighbours) > handover.NumNeighbours {
			return fmt.Errorf("%s has %d neighbours, at most %d supported",
				b.Name, len(b.Neighbours), handover.NumNeighbours)
		}

		for _, n := range b.Neighbours {
			if n.Cell == b.CellIdentity {
				return fmt.Errorf("%s lists itself as a neighbour", b.Name)
			}

			if !cells[n.Cell] {
				return fmt.Errorf("%s: neighbour cell %d is not configured",
					b.Name, n.Cell)
			}
		}
	}

	return nil
}

func (c *Config) validateMobiles(v *validator) error {
	bss := make(map[uint32]bool)
	for _, b := range c.BaseStations {
		bss[b.ID] = true
	}

	for i := range c.Mobiles {
		m := &c.Mobiles[i]

		if err := v.node(m.ID, m.Name); err != nil {
			return fmt.Errorf("mobile %d: %w", i, err)
		}

		if _, err := codec.IdentityFromString(m.IMSI); err != nil {
			return fmt.Errorf("%s: imsi: %w", m.Name, err)
		}

		if _, err := codec.IdentityFromString(m.MSISDN); err != nil {
			return fmt.Errorf("%s: msisdn: %w", m.Name, err)
		}

		if !bss[m.ServingBS] {
			return fmt.Errorf("%s camps on unknown base station %d",
				m.Name, m.ServingBS)
		}

		if m.PowerOn < 0 {
			return fmt.Errorf("%s: power on time must not be negative", m.Name)
		}

		if m.PowerOff != nil && *m.PowerOff <= m.PowerOn {
			return fmt.Errorf("%s: powered off before it is powered on", m.Name)
		}

		if m.AnswerDelay != nil && *m.AnswerDelay < 0 {
			return fmt.Errorf("%s: answer delay must not be negative", m.Name)
		}

		if m.HangUpAfter < 0 {
			return fmt.Errorf("%s: hang up time must not be negative", m.Name)
		}

		for j, call := range m.Calls {
			if _, err := codec.IdentityFromString(call.Callee); err != nil {
				return fmt.Errorf("%s: call %d: %w", m.Name, j, err)
			}

			if call.At < m.PowerOn {
				return fmt.Errorf("%s: call %d placed before power on",
					m.Name, j)
			}

			if call.Duration <= 0 {
				return fmt.Errorf("%s: call %d must last", m.Name, j)
			}
		}

		for _, s := range m.Signals {
			if !bss[s.BS] {
				return fmt.Errorf("%s: signal from unknown base station %d",
					m.Name, s.BS)
			}

			if s.Quality < 0 || s.Quality > 1 {
				return fmt.Errorf("%s: quality %g must be within [0, 1]",
					m.Name, s.Quality)
			}
		}
	}

	return nil
}
