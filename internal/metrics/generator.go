package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/emadnahed/flakeid/internal/idgen"
)

// GeneratorCollector exports the counters of an ID generator. Values are read
// at scrape time so the generator's hot path stays free of metric calls.
type GeneratorCollector struct {
	stats  idgen.StatsProvider
	nodeID uint16

	generated   *prometheus.Desc
	regressions *prometheus.Desc
	waits       *prometheus.Desc
	node        *prometheus.Desc
}

// NewGeneratorCollector creates a collector for the given generator.
func NewGeneratorCollector(stats idgen.StatsProvider, nodeID uint16) *GeneratorCollector {
	return &GeneratorCollector{
		stats:  stats,
		nodeID: nodeID,
		generated: prometheus.NewDesc(
			"snowflake_ids_generated_total",
			"Total number of identifiers produced by the generator",
			nil, nil,
		),
		regressions: prometheus.NewDesc(
			"snowflake_clock_regressions_total",
			"Total number of generation attempts refused because the clock moved backwards",
			nil, nil,
		),
		waits: prometheus.NewDesc(
			"snowflake_sequence_waits_total",
			"Total number of times the sequence was exhausted and generation waited for the next millisecond",
			nil, nil,
		),
		node: prometheus.NewDesc(
			"snowflake_node_id",
			"Node ID embedded in identifiers produced by this process",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *GeneratorCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.generated
	ch <- c.regressions
	ch <- c.waits
	ch <- c.node
}

// Collect implements prometheus.Collector.
func (c *GeneratorCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats.Stats()
	ch <- prometheus.MustNewConstMetric(c.generated, prometheus.CounterValue, float64(s.Generated))
	ch <- prometheus.MustNewConstMetric(c.regressions, prometheus.CounterValue, float64(s.ClockRegressions))
	ch <- prometheus.MustNewConstMetric(c.waits, prometheus.CounterValue, float64(s.SequenceWaits))
	ch <- prometheus.MustNewConstMetric(c.node, prometheus.GaugeValue, float64(c.nodeID))
}

// RegisterGenerator registers a collector for the generator with the default
// registry.
func RegisterGenerator(stats idgen.StatsProvider, nodeID uint16) (*GeneratorCollector, error) {
	c := NewGeneratorCollector(stats, nodeID)
	if err := prometheus.Register(c); err != nil {
		return nil, err
	}
	return c, nil
}
