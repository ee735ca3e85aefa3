package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate_NoRepairNeeded(t *testing.T) {
	c := &ProgressCounters{Total: 10, Processed: 5, Successful: 3, Failed: 1, Errors: 1, ActiveWorkers: 2, WorkerCount: 4}
	result := c.Validate()
	assert.False(t, result.Repaired)
	assert.Equal(t, 5, c.Processed)
}

func TestValidate_ClampsProcessedToTotal(t *testing.T) {
	c := &ProgressCounters{Total: 5, Processed: 10, WorkerCount: 4}
	result := c.Validate()
	assert.True(t, result.Repaired)
	assert.Equal(t, 5, c.Processed)
}

func TestValidate_ScalesDownOvercountedSum(t *testing.T) {
	c := &ProgressCounters{Total: 10, Processed: 4, Successful: 6, Failed: 2, WorkerCount: 1}
	result := c.Validate()
	assert.True(t, result.Repaired)
	assert.LessOrEqual(t, c.Successful+c.Failed+c.Errors, c.Processed)
}

func TestValidate_ClampsActiveWorkers(t *testing.T) {
	c := &ProgressCounters{Total: 10, Processed: 1, WorkerCount: 4, ActiveWorkers: 9}
	result := c.Validate()
	assert.True(t, result.Repaired)
	assert.Equal(t, 4, c.ActiveWorkers)
}

func TestValidate_RejectsNegatives(t *testing.T) {
	c := &ProgressCounters{Total: 10, Processed: -3, WorkerCount: 2, ActiveWorkers: -1}
	c.Validate()
	assert.GreaterOrEqual(t, c.Processed, 0)
	assert.GreaterOrEqual(t, c.ActiveWorkers, 0)
}

func TestPercentComplete_ZeroTotal(t *testing.T) {
	c := ProgressCounters{}
	assert.Equal(t, 0.0, c.PercentComplete())
}
