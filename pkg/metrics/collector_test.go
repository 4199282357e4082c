package metrics_test

import (
	"testing"
	"time"

	"github.com/hacluster/pcsd/pkg/clock"
	"github.com/hacluster/pcsd/pkg/metrics"
	"github.com/hacluster/pcsd/pkg/registry"
	"github.com/hacluster/pcsd/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_CollectDoesNotPanicWithoutBusOrPool(t *testing.T) {
	clk := clock.NewVirtual(time.Unix(0, 0))
	reg := registry.New(registry.Config{}, clk, nil)
	_, err := reg.Create(types.Command{Name: "noop"}, types.AuthUser{})
	require.NoError(t, err)

	c := metrics.NewCollector(reg, nil, nil)
	assert.NotPanics(t, func() { c.Collect() })
}
