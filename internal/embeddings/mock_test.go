package embeddings

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockServiceGenerateIsDeterministic(t *testing.T) {
	svc := NewMockService(32)

	first, err := svc.Generate(context.Background(), "hello world")
	require.NoError(t, err)
	second, err := svc.Generate(context.Background(), "hello world")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 32)
}

func TestMockServiceGenerateDiffersByInput(t *testing.T) {
	svc := NewMockService(32)

	a, err := svc.Generate(context.Background(), "alpha")
	require.NoError(t, err)
	b, err := svc.Generate(context.Background(), "beta")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestMockServiceGenerateIsUnitNormalized(t *testing.T) {
	svc := NewMockService(64)
	vec, err := svc.Generate(context.Background(), "normalize me")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)
}

func TestMockServiceDefaultsDimension(t *testing.T) {
	svc := NewMockService(0)
	assert.Equal(t, 1536, svc.GetDimensions())

	negative := NewMockService(-5)
	assert.Equal(t, 1536, negative.GetDimensions())
}

func TestMockServiceGenerateBatch(t *testing.T) {
	svc := NewMockService(16)
	out, err := svc.GenerateBatch(context.Background(), []string{"one", "two", "three"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	for _, v := range out {
		assert.Len(t, v, 16)
	}
	assert.NotEqual(t, out[0], out[1])
}

func TestMockServiceHealthCheck(t *testing.T) {
	svc := NewMockService(8)
	assert.NoError(t, svc.HealthCheck(context.Background()))
}
