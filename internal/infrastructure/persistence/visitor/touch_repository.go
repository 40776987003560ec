package visitor

import (
	"database/sql"
	"time"

	"github.com/coursesignal/coursesignal-go/internal/domain/visitor"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/logging"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/persistence/database"
)

// SQLTouchRepository is the SQL-based implementation of the TouchRepository.
// Touches are append-only; there is no update or delete path.
type SQLTouchRepository struct {
	db       *database.DB
	logger   *logging.ChanneledLogger
	tenantID string
}

// NewSQLTouchRepository creates a new instance of the repository.
func NewSQLTouchRepository(db *database.DB, logger *logging.ChanneledLogger, tenantID string) *SQLTouchRepository {
	return &SQLTouchRepository{
		db:       db,
		logger:   logger,
		tenantID: tenantID,
	}
}

// Create appends a touch to the visitor's touch log.
func (r *SQLTouchRepository) Create(touch *visitor.Touch) error {
	const query = `
		INSERT INTO touches (id, visitor_id, source, medium, campaign, referrer, landing_page, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	start := time.Now()
	r.logger.Database().Debug("Executing touch insert", "id", touch.ID, "visitorId", touch.VisitorID, "tenantId", r.tenantID)

	_, err := r.db.Exec(
		query,
		touch.ID,
		touch.VisitorID,
		touch.Source,
		touch.Medium,
		touch.Campaign,
		touch.Referrer,
		touch.LandingPage,
		touch.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Database().Error("Touch insert failed", "error", err.Error(), "id", touch.ID, "visitorId", touch.VisitorID, "tenantId", r.tenantID)
		return err
	}

	duration := time.Since(start)
	r.logger.Database().Debug("Touch insert completed", "id", touch.ID, "visitorId", touch.VisitorID, "duration", duration, "tenantId", r.tenantID)
	database.CheckAndLogSlowQuery(r.logger, query, duration, r.tenantID)
	return nil
}

// FindByVisitorID returns a visitor's touches ordered by recorded timestamp.
func (r *SQLTouchRepository) FindByVisitorID(visitorID string) ([]*visitor.Touch, error) {
	const query = `
		SELECT id, visitor_id, source, medium, campaign, referrer, landing_page, created_at
		FROM touches
		WHERE visitor_id = ?
		ORDER BY created_at ASC`

	start := time.Now()
	rows, err := r.db.Query(query, visitorID)
	if err != nil {
		r.logger.Database().Error("Failed to load touches by visitor", "error", err.Error(), "visitorId", visitorID, "tenantId", r.tenantID)
		return nil, err
	}
	defer rows.Close()

	touches, err := r.scanTouches(rows)
	if err != nil {
		return nil, err
	}

	duration := time.Since(start)
	r.logger.Database().Debug("Touches loaded by visitor", "visitorId", visitorID, "count", len(touches), "duration", duration, "tenantId", r.tenantID)
	database.CheckAndLogSlowQuery(r.logger, query, duration, r.tenantID)
	return touches, nil
}

// FindInRange returns all touches recorded in [since, until), ordered by
// recorded timestamp. The aggregation engine uses this to compute per-source
// visitor counts.
func (r *SQLTouchRepository) FindInRange(since, until time.Time) ([]*visitor.Touch, error) {
	const query = `
		SELECT id, visitor_id, source, medium, campaign, referrer, landing_page, created_at
		FROM touches
		WHERE created_at >= ? AND created_at < ?
		ORDER BY created_at ASC`

	start := time.Now()
	rows, err := r.db.Query(query, since.UTC(), until.UTC())
	if err != nil {
		r.logger.Database().Error("Failed to load touches in range", "error", err.Error(), "tenantId", r.tenantID)
		return nil, err
	}
	defer rows.Close()

	touches, err := r.scanTouches(rows)
	if err != nil {
		return nil, err
	}

	duration := time.Since(start)
	r.logger.Database().Debug("Touches loaded in range", "count", len(touches), "duration", duration, "tenantId", r.tenantID)
	database.CheckAndLogSlowQuery(r.logger, query, duration, r.tenantID)
	return touches, nil
}

// CountByVisitorID returns the number of touches recorded for a visitor.
func (r *SQLTouchRepository) CountByVisitorID(visitorID string) (int, error) {
	const query = `SELECT COUNT(*) FROM touches WHERE visitor_id = ?`

	start := time.Now()
	var count int
	if err := r.db.QueryRow(query, visitorID).Scan(&count); err != nil {
		r.logger.Database().Error("Touch count failed", "error", err.Error(), "visitorId", visitorID, "tenantId", r.tenantID)
		return 0, err
	}

	duration := time.Since(start)
	database.CheckAndLogSlowQuery(r.logger, query, duration, r.tenantID)
	return count, nil
}

func (r *SQLTouchRepository) scanTouches(rows *sql.Rows) ([]*visitor.Touch, error) {
	var touches []*visitor.Touch
	for rows.Next() {
		var touch visitor.Touch
		var source, medium, campaign, referrer sql.NullString

		err := rows.Scan(
			&touch.ID,
			&touch.VisitorID,
			&source,
			&medium,
			&campaign,
			&referrer,
			&touch.LandingPage,
			&touch.CreatedAt,
		)
		if err != nil {
			r.logger.Database().Error("Failed to scan touch row", "error", err.Error(), "tenantId", r.tenantID)
			return nil, err
		}

		touch.Source = nullStringPtr(source)
		touch.Medium = nullStringPtr(medium)
		touch.Campaign = nullStringPtr(campaign)
		touch.Referrer = nullStringPtr(referrer)
		touches = append(touches, &touch)
	}
	return touches, rows.Err()
}
