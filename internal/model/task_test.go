package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskStatusValid(t *testing.T) {
	for _, s := range []TaskStatus{StatusPending, StatusInProgress, StatusCompleted} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, TaskStatus("completed").Valid())
	assert.False(t, TaskStatus("").Valid())
}

func TestTaskPriorityValid(t *testing.T) {
	for _, p := range []TaskPriority{PriorityLow, PriorityMedium, PriorityHigh} {
		assert.True(t, p.Valid(), p)
	}
	assert.False(t, TaskPriority("Urgent").Valid())
}
