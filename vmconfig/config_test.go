package vmconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFillsDefaultsForOmittedFields(t *testing.T) {
	cfg, err := Parse([]byte("cooperative_budget: 100\n"))
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.CooperativeBudget)
	assert.Equal(t, Default().InitialStackCapacity, cfg.InitialStackCapacity)
	assert.Equal(t, Default().MaxCallDepth, cfg.MaxCallDepth)
}

func TestParseRejectsNonPositiveStackCapacity(t *testing.T) {
	_, err := Parse([]byte("initial_stack_capacity: 0\n"))
	assert.Error(t, err)
}

func TestParseRejectsNonPositiveMaxCallDepth(t *testing.T) {
	_, err := Parse([]byte("max_call_depth: -1\n"))
	assert.Error(t, err)
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("not: [valid: yaml"))
	assert.Error(t, err)
}
