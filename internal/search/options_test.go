package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithDefaults_ZeroValueGetsDefaults(t *testing.T) {
	got := Options{}.withDefaults()

	assert.Equal(t, DefaultTopK, got.VectorTopK)
	assert.Equal(t, DefaultTopK, got.BM25TopK)
	assert.Equal(t, float64(DefaultMMRLambda), got.MMRLambda)
	assert.Equal(t, DefaultFinalTopN, got.FinalTopN)
	assert.Equal(t, float64(DefaultMinThreshold), got.MinRelevanceThreshold)
	assert.Equal(t, float64(DefaultRecencyBoost), got.RecencyBoost)
	assert.Equal(t, DefaultContextWindow, got.ContextWindow)
}

func TestWithDefaults_ExplicitZeroMMRLambdaKept(t *testing.T) {
	opts := DefaultOptions()
	opts.MMRLambda = 0

	got := opts.withDefaults()
	assert.Zero(t, got.MMRLambda, "zero lambda means pure diversity, not unset")
}

func TestWithDefaults_MMRLambdaClamped(t *testing.T) {
	opts := DefaultOptions()
	opts.MMRLambda = -0.5
	assert.Zero(t, opts.withDefaults().MMRLambda)

	opts.MMRLambda = 1.5
	assert.Equal(t, 1.0, opts.withDefaults().MMRLambda)
}

func TestWithDefaults_ExplicitZeroRecencyBoostKept(t *testing.T) {
	opts := DefaultOptions()
	opts.RecencyBoost = 0

	got := opts.withDefaults()
	assert.Zero(t, got.RecencyBoost, "zero boost means disabled, not unset")
}

func TestWithDefaults_AlphaClamped(t *testing.T) {
	opts := DefaultOptions()
	opts.Alpha = -1
	assert.Zero(t, opts.withDefaults().Alpha)

	opts.Alpha = 2
	assert.Equal(t, 1.0, opts.withDefaults().Alpha)
}
