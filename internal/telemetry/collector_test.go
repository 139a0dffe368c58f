package telemetry

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally"
)

func TestCollector(t *testing.T) {
	c, err := tally.NewSharded64([]tally.Dimension{{MaxNrElem: 4}}, 10, tally.WithShards(2))
	require.NoError(t, err)
	t.Cleanup(c.Destroy)

	// One rebalance (11 > step 10 moves 5) and one dropped update.
	c.AddShard(0, []int64{1}, 11)
	c.Add([]int64{1, 2}, 1)

	col := NewCollector(Source{Name: "syscalls", Counter: c})

	assert.Equal(t, 4, testutil.CollectAndCount(col))

	expected := strings.NewReader(`
# HELP tally_dropped_updates_total Updates discarded for malformed indexes
# TYPE tally_dropped_updates_total counter
tally_dropped_updates_total{session="syscalls"} 1
# HELP tally_rebalance_moves_total Magnitude moves from a shard into the global layout
# TYPE tally_rebalance_moves_total counter
tally_rebalance_moves_total{session="syscalls"} 1
`)
	assert.NoError(t, testutil.CollectAndCompare(col, expected,
		"tally_dropped_updates_total", "tally_rebalance_moves_total"))
}
