package monitoring

import (
	"reflect"
	"strings"
	"unicode"

	"github.com/fatih/structs"
	"github.com/prometheus/client_golang/prometheus"
)

// nodeCollector exports the counters of every registered node. A role
// exposes its counters through a Stats method returning a struct of
// unsigned integers.
type nodeCollector struct {
	m *Monitor

	events *prometheus.Desc
	now    *prometheus.Desc
	calls  *prometheus.Desc
}

func newNodeCollector(m *Monitor) *nodeCollector {
	return &nodeCollector{
		m: m,
		events: prometheus.NewDesc(
			"gsmsim_node_events_total",
			"Protocol events counted by a node.",
			[]string{"node", "kind", "event"}, nil),
		now: prometheus.NewDesc(
			"gsmsim_simulated_seconds",
			"Current simulated time.",
			nil, nil),
		calls: prometheus.NewDesc(
			"gsmsim_calls_in_progress",
			"Call records in use at a switch.",
			[]string{"node"}, nil),
	}
}

func (c *nodeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.events
	ch <- c.now
	ch <- c.calls
}

func (c *nodeCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(
		c.now, prometheus.GaugeValue, float64(c.m.engine.CurrentTime()))

	for _, n := range c.m.nodes {
		for name, v := range StatsOf(n.Role()) {
			ch <- prometheus.MustNewConstMetric(
				c.events, prometheus.CounterValue, float64(v),
				n.Name(), n.Kind().String(), name)
		}
	}

	c.m.inspect(func() {
		for _, n := range c.m.nodes {
			if sw, ok := n.Role().(callLister); ok {
				ch <- prometheus.MustNewConstMetric(
					c.calls, prometheus.GaugeValue,
					float64(len(sw.Calls())), n.Name())
			}
		}
	})
}

// StatsOf calls the Stats method of a role and returns its unsigned
// counters keyed by snake case field name.
func StatsOf(role any) map[string]uint64 {
	method := reflect.ValueOf(role).MethodByName("Stats")
	if !method.IsValid() || method.Type().NumIn() != 0 ||
		method.Type().NumOut() != 1 {
		return nil
	}

	out := method.Call(nil)[0]
	if out.Kind() != reflect.Struct {
		return nil
	}

	stats := make(map[string]uint64)

	for _, f := range structs.Fields(out.Interface()) {
		if v, ok := f.Value().(uint64); ok {
			stats[snakeCase(f.Name())] = v
		}
	}

	return stats
}

func snakeCase(s string) string {
	var b strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && !unicode.IsUpper(runes[i-1])
			nextLower := i > 0 && i+1 < len(runes) && unicode.IsLower(runes[i+1])

			if prevLower || nextLower {
				b.WriteByte('_')
			}

			r = unicode.ToLower(r)
		}

		b.WriteRune(r)
	}

	return b.String()
}
