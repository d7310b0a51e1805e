package state

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSigmoidLogitRelation(t *testing.T) {
	for _, p := range []float64{0.1, 0.25, 0.5, 0.75, 0.9} {
		x := Logit(p)
		assert.InDelta(t, p, Sigmoid(x), 1e-9)
	}
}

func TestAverage(t *testing.T) {
	v, ok := average([]float64{1, 2, 3})
	assert.True(t, ok)
	assert.InDelta(t, 2.0, v, 1e-9)

	_, ok = average(nil)
	assert.False(t, ok)
}

func TestWeightedAgedMean(t *testing.T) {
	points := []weightedPoint{
		{value: 1, ageSecs: 0},
		{value: 1, ageSecs: 1800},
		{value: 0, ageSecs: 3600},
	}
	mean, ok := weightedAgedMean(points, 1800)
	assert.True(t, ok)
	assert.True(t, mean > 0 && mean < 1)

	_, ok = weightedAgedMean(nil, 1800)
	assert.False(t, ok)
}

func TestWeightedAgedSum(t *testing.T) {
	sum := weightedAgedSum(nil, 1800)
	assert.Equal(t, 0.0, sum)

	sum = weightedAgedSum([]weightedPoint{{value: 1, ageSecs: 0}}, 1800)
	assert.InDelta(t, 1.0, sum, 1e-9)
}

// Scenario 6 — Dewpoint formula.
func TestDewpointScenario6(t *testing.T) {
	dp := Dewpoint(20, 50)
	assert.InDelta(t, 9.3, dp, 0.1)
}

func TestDewpointBranchesAtZero(t *testing.T) {
	above := Dewpoint(0.5, 60)
	below := Dewpoint(-0.5, 60)
	assert.False(t, math.IsNaN(above))
	assert.False(t, math.IsNaN(below))
}

func TestAbsoluteHumidityMonotoneInRelativeHumidity(t *testing.T) {
	low := AbsoluteHumidity(22, 40)
	high := AbsoluteHumidity(22, 80)
	assert.Greater(t, high, low)
}
