package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedJob string

func (n namedJob) Name() string                        { return string(n) }
func (n namedJob) Run(context.Context) (Result, error) { return Result{}, nil }

func TestRegistryOrderAndCopies(t *testing.T) {
	registry, err := NewRegistry(namedJob("notifications"), nil, namedJob("outbox"))
	require.NoError(t, err)

	assert.Equal(t, []string{"notifications", "outbox"}, registry.Names())
	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0])
}

func TestRegistryRejectsDuplicateAndBlankNames(t *testing.T) {
	_, err := NewRegistry(namedJob("outbox"), namedJob("outbox"))
	require.ErrorContains(t, err, "registered twice")

	_, err = NewRegistry(namedJob(" "))
	require.ErrorContains(t, err, "no name")
}

func TestRegistryOnly(t *testing.T) {
	registry, err := NewRegistry(namedJob("a"), namedJob("b"), namedJob("c"))
	require.NoError(t, err)

	subset, err := registry.Only("c", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, subset.Names())

	_, err = registry.Only("missing")
	require.ErrorContains(t, err, `unknown cron job "missing"`)
}
