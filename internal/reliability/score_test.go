// Copyright 2026 Phillip Cloud
// Licensed under the Apache License, Version 2.0

package reliability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore_Empty(t *testing.T) {
	assert.Equal(t, 0.0, Score(""))
}

func TestScore_AllAlnum(t *testing.T) {
	assert.Equal(t, 1.0, Score("aaaa"))
}

func TestScore_NoAlnum(t *testing.T) {
	assert.Equal(t, 0.0, Score("!!!!"))
}

func TestScore_Mixed(t *testing.T) {
	assert.Equal(t, 0.6667, Score("ab12!!"))
}

func TestScore_UnicodeLetters(t *testing.T) {
	// café: 4 letters, 1 combining-free accented letter all count as alnum.
	assert.Equal(t, 1.0, Score("café"))
}

func TestScore_ClampedToUnitInterval(t *testing.T) {
	s := Score("hello world 123")
	assert.GreaterOrEqual(t, s, 0.0)
	assert.LessOrEqual(t, s, 1.0)
}

func TestMedian_Empty(t *testing.T) {
	assert.Equal(t, 0.0, Median(nil))
}

func TestMedian_Odd(t *testing.T) {
	assert.Equal(t, 2.0, Median([]float64{3, 1, 2}))
}

func TestMedian_Even(t *testing.T) {
	assert.Equal(t, 2.5, Median([]float64{1, 2, 3, 4}))
}

func TestMedian_Single(t *testing.T) {
	assert.Equal(t, 0.42, Median([]float64{0.42}))
}

func TestMedian_DoesNotMutateInput(t *testing.T) {
	values := []float64{5, 1, 3}
	Median(values)
	assert.Equal(t, []float64{5, 1, 3}, values)
}
