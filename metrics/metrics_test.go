package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrement(t *testing.T) {
	r := New()
	r.ElectionsWon.Inc()
	r.ElectionsWon.Inc()
	require.Equal(t, float64(2), testutil.ToFloat64(r.ElectionsWon))
}

func TestGathererReturnsRegisteredFamilies(t *testing.T) {
	r := New()
	families, err := r.Gatherer().Gather()
	require.NoError(t, err)
	require.Len(t, families, 7)
}
