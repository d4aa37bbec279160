package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emadnahed/flakeid/internal/idgen"
)

type fixedStats idgen.Stats

func (f fixedStats) Stats() idgen.Stats { return idgen.Stats(f) }

func TestGeneratorCollector(t *testing.T) {
	c := NewGeneratorCollector(fixedStats{Generated: 42, ClockRegressions: 2, SequenceWaits: 3}, 17)

	expected := `
# HELP snowflake_clock_regressions_total Total number of generation attempts refused because the clock moved backwards
# TYPE snowflake_clock_regressions_total counter
snowflake_clock_regressions_total 2
# HELP snowflake_ids_generated_total Total number of identifiers produced by the generator
# TYPE snowflake_ids_generated_total counter
snowflake_ids_generated_total 42
# HELP snowflake_node_id Node ID embedded in identifiers produced by this process
# TYPE snowflake_node_id gauge
snowflake_node_id 17
# HELP snowflake_sequence_waits_total Total number of times the sequence was exhausted and generation waited for the next millisecond
# TYPE snowflake_sequence_waits_total counter
snowflake_sequence_waits_total 3
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected)))
}

func TestGeneratorCollector_LiveGenerator(t *testing.T) {
	gen, err := idgen.NewSnowflakeGenerator(5)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(NewGeneratorCollector(gen, gen.NodeID())))

	for i := 0; i < 10; i++ {
		_, err := gen.NextID()
		require.NoError(t, err)
	}

	families, err := reg.Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, mf := range families {
		m := mf.GetMetric()[0]
		if m.GetCounter() != nil {
			values[mf.GetName()] = m.GetCounter().GetValue()
		} else {
			values[mf.GetName()] = m.GetGauge().GetValue()
		}
	}
	assert.Equal(t, float64(10), values["snowflake_ids_generated_total"])
	assert.Equal(t, float64(5), values["snowflake_node_id"])
}
