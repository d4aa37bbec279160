package cli

import (
	"bytes"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emadnahed/flakeid/internal/idgen"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRoot()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestGenerate(t *testing.T) {
	t.Run("single id", func(t *testing.T) {
		out, err := execute(t, "generate", "--node", "12")
		require.NoError(t, err)

		assert.Contains(t, out, "ID")
		assert.Contains(t, out, "Node ID")
		assert.Contains(t, out, "Sequence")
		assert.Contains(t, out, "Generated snowflake ID: ")
	})

	t.Run("table lists every id", func(t *testing.T) {
		out, err := execute(t, "generate", "--node", "12", "-c", "5")
		require.NoError(t, err)

		rows := regexp.MustCompile(`(?m)^\d+\s+\d{4}-\d{2}-\d{2} `).FindAllString(out, -1)
		assert.Len(t, rows, 5)
		assert.Contains(t, out, "Generated 5 snowflake IDs")
	})

	t.Run("plain output is increasing and carries the node", func(t *testing.T) {
		out, err := execute(t, "generate", "--node", "1023", "--count", "50", "--plain")
		require.NoError(t, err)

		lines := strings.Fields(out)
		require.Len(t, lines, 50)
		var last idgen.ID
		for _, line := range lines {
			id, err := idgen.ParseID(line)
			require.NoError(t, err)
			assert.Equal(t, uint16(1023), id.NodeID())
			assert.Greater(t, id, last)
			last = id
		}
	})

	t.Run("rejects bad count", func(t *testing.T) {
		_, err := execute(t, "generate", "--node", "1", "--count", "0")
		assert.ErrorContains(t, err, "--count must be positive")
	})

	t.Run("rejects node out of range", func(t *testing.T) {
		_, err := execute(t, "generate", "--node", "1024")
		assert.ErrorIs(t, err, idgen.ErrInvalidNodeID)
	})
}

func TestInspect(t *testing.T) {
	id := idgen.Compose(123456, 42, 7)

	t.Run("decimal", func(t *testing.T) {
		out, err := execute(t, "inspect", id.String())
		require.NoError(t, err)

		assert.Contains(t, out, "ID: "+id.String())
		assert.Contains(t, out, "Component")
		assert.Regexp(t, `Node ID\s+42\s`, out)
		assert.Regexp(t, `Sequence\s+7\s`, out)
		assert.Contains(t, out, id.Base62())
		assert.Contains(t, out, "Binary (64 bits): "+id.Binary())
	})

	t.Run("base62", func(t *testing.T) {
		out, err := execute(t, "inspect", "--base62", id.Base62())
		require.NoError(t, err)
		assert.Contains(t, out, "ID: "+id.String())
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := execute(t, "inspect", "invalid")
		assert.ErrorContains(t, err, "invalid snowflake ID")
	})

	t.Run("requires an argument", func(t *testing.T) {
		_, err := execute(t, "inspect")
		assert.Error(t, err)
	})
}

func TestBench(t *testing.T) {
	out, err := execute(t, "bench", "--node", "3", "--counts", "100,2000")
	require.NoError(t, err)

	assert.Contains(t, out, "Generating 100 IDs... done")
	assert.Contains(t, out, "Generating 2000 IDs... done")
	assert.Contains(t, out, "Count")
	assert.Contains(t, out, "Duration")
	assert.Contains(t, out, "IDs/second")
	assert.Regexp(t, `(?m)^2000\s+[\d.]+ ms\s+\d+`, out)
}

func TestInfo(t *testing.T) {
	out, err := execute(t, "info", "--node", "9")
	require.NoError(t, err)

	assert.Regexp(t, `Node ID\s+9`, out)
	assert.Contains(t, out, "1577836800000 (2020-01-01T00:00:00Z)")
	assert.Regexp(t, `Sequence bits\s+12 \(max 4095 per ms\)`, out)
}

func TestPerSecond(t *testing.T) {
	assert.Equal(t, 0.0, perSecond(10, 0))
	assert.InDelta(t, 2000.0, perSecond(1000, 500_000_000), 0.001)
}
