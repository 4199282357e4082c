package library_test

import (
	"testing"

	"github.com/hacluster/pcsd/pkg/library"
	"github.com/hacluster/pcsd/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noReport(types.ReportItem) {}

func TestRegistry_Noop(t *testing.T) {
	r := library.NewRegistry()
	res, err := r.Run(types.Command{Name: "noop"}, types.AuthUser{}, noReport)
	require.NoError(t, err)
	assert.Equal(t, "ok", res)
}

func TestRegistry_UnknownCommand(t *testing.T) {
	r := library.NewRegistry()
	_, err := r.Run(types.Command{Name: "bogus"}, types.AuthUser{}, noReport)
	require.Error(t, err)
	var unk *library.ErrUnknownCommand
	assert.ErrorAs(t, err, &unk)
}

func TestRegistry_ClusterStatusEmitsReports(t *testing.T) {
	r := library.NewRegistry()
	var reports []types.ReportItem
	res, err := r.Run(types.Command{Name: "cluster.status"}, types.AuthUser{Username: "alice"}, func(item types.ReportItem) {
		reports = append(reports, item)
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res)
	assert.Len(t, reports, 2)
}

func TestRegistry_NodeStandby(t *testing.T) {
	r := library.NewRegistry()

	_, err := r.Run(types.Command{Name: "node.standby", Params: map[string]string{}}, types.AuthUser{}, noReport)
	assert.Error(t, err, "missing node param")

	_, err = r.Run(types.Command{Name: "node.standby", Params: map[string]string{"node": "1bad"}}, types.AuthUser{}, noReport)
	assert.Error(t, err, "invalid node id")

	res, err := r.Run(types.Command{Name: "node.standby", Params: map[string]string{"node": "node1"}}, types.AuthUser{}, noReport)
	require.NoError(t, err)
	assert.Equal(t, "node1 is now standby", res)
}
