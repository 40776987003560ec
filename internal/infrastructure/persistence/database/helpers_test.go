package database

import (
	"errors"
	"testing"
	"time"

	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil))
	assert.False(t, IsUniqueViolation(errors.New("no such table: purchases")))
	assert.True(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: purchases.platform, purchases.platform_purchase_id")))
}

func TestCheckSlowQueryThresholds(t *testing.T) {
	logger, err := logging.NewChanneledLogger(&logging.LoggerConfig{OutputToConsole: true})
	require.NoError(t, err)

	threshold := GetSlowQueryThreshold()

	assert.False(t, checkSlowQuery(logger, "SELECT 1", threshold/2, "acme", threshold))
	assert.False(t, checkSlowQuery(logger, "SELECT 1", threshold, "acme", threshold))
	assert.True(t, checkSlowQuery(logger, "SELECT 1", threshold+time.Millisecond, "acme", threshold))

	// Batch reads get triple the interactive budget.
	assert.False(t, checkSlowQuery(logger, "SELECT 1", 2*threshold, "acme", 3*threshold))
	assert.True(t, checkSlowQuery(logger, "SELECT 1", 3*threshold+time.Millisecond, "acme", 3*threshold))
}
