// Package database provides database helper functions
package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/logging"
	"github.com/coursesignal/coursesignal-go/pkg/config"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

// TestTursoConnection tests the Turso database connection
func TestTursoConnection(databaseURL, authToken string) error {
	connStr := fmt.Sprintf("%s?authToken=%s", databaseURL, authToken)

	db, err := sql.Open("libsql", connStr)
	if err != nil {
		return fmt.Errorf("failed to open connection: %w", err)
	}
	defer db.Close()

	var result int
	err = db.QueryRow("SELECT 1").Scan(&result)
	if err != nil {
		return fmt.Errorf("connection test query failed: %w", err)
	}

	if result != 1 {
		return fmt.Errorf("unexpected query result: %d", result)
	}

	return nil
}

// GetSlowQueryThreshold returns the configured slow query threshold
func GetSlowQueryThreshold() time.Duration {
	return config.SlowQueryThreshold
}

// CheckAndLogSlowQuery routes a query through the slow-query channel when
// its duration exceeds the configured threshold.
func CheckAndLogSlowQuery(logger *logging.ChanneledLogger, query string, duration time.Duration, tenantID string) {
	checkSlowQuery(logger, query, duration, tenantID, GetSlowQueryThreshold())
}

// CheckAndLogSlowBatchQuery is CheckAndLogSlowQuery with a relaxed
// threshold. Batch reads page whole tables and are expected to outlast
// interactive queries.
func CheckAndLogSlowBatchQuery(logger *logging.ChanneledLogger, query string, duration time.Duration, tenantID string) {
	checkSlowQuery(logger, query, duration, tenantID, 3*GetSlowQueryThreshold())
}

func checkSlowQuery(logger *logging.ChanneledLogger, query string, duration time.Duration, tenantID string, threshold time.Duration) bool {
	if duration <= threshold {
		return false
	}
	logger.LogSlowQuery(query, duration, tenantID)
	return true
}

// IsUniqueViolation reports whether an error is a uniqueness-constraint
// rejection. Both the sqlite3 and libsql drivers surface these with the
// same constraint text.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
