package api_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"exo/internal/api"
)

func TestScriptRegistryRunsEndToEnd(t *testing.T) {
	names := api.ScriptNames()
	require.Contains(t, names, "split_and_reorder")
	require.Contains(t, names, "rankk_reduce_staging")

	script, ok := api.LookupScript("split_and_reorder")
	require.True(t, ok)

	pr := api.New(script.Seed())
	for _, step := range script.Steps {
		next, label, err := step(pr)
		require.NoError(t, err)
		require.NotEmpty(t, label)
		pr = next
	}
	require.Equal(t, []string{"divide_loop", "reorder_loops"}, pr.Provenance())
}

func TestLookupScriptMissing(t *testing.T) {
	_, ok := api.LookupScript("does_not_exist")
	require.False(t, ok)
}
