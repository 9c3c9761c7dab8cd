package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidOrderStatus(t *testing.T) {
	for _, status := range OrderStatuses {
		assert.True(t, IsValidOrderStatus(status), status)
	}

	assert.False(t, IsValidOrderStatus("REFUNDED"))
	assert.False(t, IsValidOrderStatus("created"))
	assert.False(t, IsValidOrderStatus(""))
}
