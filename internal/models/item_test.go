package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecalculateSumsDistributions(t *testing.T) {
	item := &Item{
		ReportedTotal: 10,
		Distributions: []Distribution{
			{Code: "101", Quantity: 3},
			{Code: "102", Quantity: 4},
			{Code: "103", Quantity: 3},
		},
	}
	item.Recalculate()

	assert.Equal(t, 10, item.CalculatedTotal)
	assert.True(t, item.IsCorrect)
}

func TestRecalculateFlagsMismatch(t *testing.T) {
	item := &Item{
		ReportedTotal: 12,
		Distributions: []Distribution{
			{Code: "101", Quantity: 5},
			{Code: "102", Quantity: 5},
		},
	}
	item.Recalculate()

	assert.Equal(t, 10, item.CalculatedTotal)
	assert.False(t, item.IsCorrect)
}

func TestRecalculateEmptyDistributions(t *testing.T) {
	item := &Item{ReportedTotal: 0}
	item.Recalculate()

	assert.Equal(t, 0, item.CalculatedTotal)
	assert.True(t, item.IsCorrect)

	item.ReportedTotal = 5
	item.Recalculate()
	assert.False(t, item.IsCorrect)
}

func TestImageHandleOmittedWhenEmpty(t *testing.T) {
	item := &Item{ID: "i1", JobID: "j1", Page: 1}

	data, err := json.Marshal(item)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "imageHandle")

	item.ImageHandle = "h1"
	data, err = json.Marshal(item)
	require.NoError(t, err)
	assert.Contains(t, string(data), "imageHandle")
}

func TestJobStatusTerminal(t *testing.T) {
	assert.True(t, JobCompleted.Terminal())
	assert.True(t, JobError.Terminal())
	assert.False(t, JobQueued.Terminal())
	assert.False(t, JobConverting.Terminal())
	assert.False(t, JobProcessing.Terminal())
}
