package commerce

import (
	"database/sql"
	"time"

	"github.com/coursesignal/coursesignal-go/internal/domain/commerce"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/logging"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/persistence/database"
)

// SQLLaunchRepository is the SQL-based implementation of the LaunchRepository.
type SQLLaunchRepository struct {
	db       *database.DB
	logger   *logging.ChanneledLogger
	tenantID string
}

// NewSQLLaunchRepository creates a new instance of the repository.
func NewSQLLaunchRepository(db *database.DB, logger *logging.ChanneledLogger, tenantID string) *SQLLaunchRepository {
	return &SQLLaunchRepository{
		db:       db,
		logger:   logger,
		tenantID: tenantID,
	}
}

const launchSelect = `
	SELECT id, name, start_date, end_date, revenue_goal_cents, sales_goal, archived, share_token, created_at, updated_at
	FROM launches`

// FindByID retrieves a launch by its unique identifier.
func (r *SQLLaunchRepository) FindByID(id string) (*commerce.Launch, error) {
	const query = launchSelect + ` WHERE id = ?`

	start := time.Now()
	row := r.db.QueryRow(query, id)
	launch, err := r.scanLaunch(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Database().Error("Failed to load launch by ID", "error", err.Error(), "id", id, "tenantId", r.tenantID)
		return nil, err
	}

	duration := time.Since(start)
	database.CheckAndLogSlowQuery(r.logger, query, duration, r.tenantID)
	return launch, nil
}

// FindAll returns every launch for the tenant, newest first.
func (r *SQLLaunchRepository) FindAll() ([]*commerce.Launch, error) {
	const query = launchSelect + ` ORDER BY start_date DESC`

	start := time.Now()
	rows, err := r.db.Query(query)
	if err != nil {
		r.logger.Database().Error("Failed to load launches", "error", err.Error(), "tenantId", r.tenantID)
		return nil, err
	}
	defer rows.Close()

	launches, err := r.scanLaunches(rows)
	if err != nil {
		return nil, err
	}

	duration := time.Since(start)
	r.logger.Database().Debug("Launches loaded", "count", len(launches), "duration", duration, "tenantId", r.tenantID)
	database.CheckAndLogSlowQuery(r.logger, query, duration, r.tenantID)
	return launches, nil
}

// FindByShareToken retrieves a launch by its public share token.
func (r *SQLLaunchRepository) FindByShareToken(token string) (*commerce.Launch, error) {
	const query = launchSelect + ` WHERE share_token = ?`

	start := time.Now()
	row := r.db.QueryRow(query, token)
	launch, err := r.scanLaunch(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Database().Error("Failed to load launch by share token", "error", err.Error(), "tenantId", r.tenantID)
		return nil, err
	}

	duration := time.Since(start)
	database.CheckAndLogSlowQuery(r.logger, query, duration, r.tenantID)
	return launch, nil
}

// FindContaining returns the launch whose window contains the given instant.
// Overlapping windows resolve to the most recently created launch. Archived
// launches never capture new purchases.
func (r *SQLLaunchRepository) FindContaining(at time.Time) (*commerce.Launch, error) {
	const query = launchSelect + `
		WHERE archived = 0 AND start_date <= ? AND end_date >= ?
		ORDER BY created_at DESC
		LIMIT 1`

	start := time.Now()
	instant := at.UTC()
	row := r.db.QueryRow(query, instant, instant)
	launch, err := r.scanLaunch(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Database().Error("Failed to load containing launch", "error", err.Error(), "tenantId", r.tenantID)
		return nil, err
	}

	duration := time.Since(start)
	database.CheckAndLogSlowQuery(r.logger, query, duration, r.tenantID)
	return launch, nil
}

// Create saves a new launch.
func (r *SQLLaunchRepository) Create(launch *commerce.Launch) error {
	const query = `
		INSERT INTO launches (id, name, start_date, end_date, revenue_goal_cents, sales_goal, archived, share_token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	start := time.Now()
	r.logger.Database().Debug("Executing launch insert", "id", launch.ID, "name", launch.Name, "tenantId", r.tenantID)

	_, err := r.db.Exec(
		query,
		launch.ID,
		launch.Name,
		launch.StartDate.UTC(),
		launch.EndDate.UTC(),
		launch.RevenueGoalCents,
		launch.SalesGoal,
		launch.Archived,
		launch.ShareToken,
		launch.CreatedAt.UTC(),
		timePtrUTC(launch.UpdatedAt),
	)
	if err != nil {
		r.logger.Database().Error("Launch insert failed", "error", err.Error(), "id", launch.ID, "tenantId", r.tenantID)
		return err
	}

	duration := time.Since(start)
	r.logger.Database().Info("Launch insert completed", "id", launch.ID, "name", launch.Name, "duration", duration, "tenantId", r.tenantID)
	database.CheckAndLogSlowQuery(r.logger, query, duration, r.tenantID)
	return nil
}

// Update rewrites a launch's editable fields.
func (r *SQLLaunchRepository) Update(launch *commerce.Launch) error {
	const query = `
		UPDATE launches
		SET name = ?, start_date = ?, end_date = ?, revenue_goal_cents = ?, sales_goal = ?, archived = ?, share_token = ?, updated_at = ?
		WHERE id = ?`

	start := time.Now()
	_, err := r.db.Exec(
		query,
		launch.Name,
		launch.StartDate.UTC(),
		launch.EndDate.UTC(),
		launch.RevenueGoalCents,
		launch.SalesGoal,
		launch.Archived,
		launch.ShareToken,
		timePtrUTC(launch.UpdatedAt),
		launch.ID,
	)
	if err != nil {
		r.logger.Database().Error("Launch update failed", "error", err.Error(), "id", launch.ID, "tenantId", r.tenantID)
		return err
	}

	duration := time.Since(start)
	r.logger.Database().Info("Launch update completed", "id", launch.ID, "duration", duration, "tenantId", r.tenantID)
	database.CheckAndLogSlowQuery(r.logger, query, duration, r.tenantID)
	return nil
}

// Delete removes a launch. Callers unlink purchases first; purchases are
// never deleted with their launch.
func (r *SQLLaunchRepository) Delete(id string) error {
	const query = `DELETE FROM launches WHERE id = ?`

	start := time.Now()
	_, err := r.db.Exec(query, id)
	if err != nil {
		r.logger.Database().Error("Launch delete failed", "error", err.Error(), "id", id, "tenantId", r.tenantID)
		return err
	}

	duration := time.Since(start)
	r.logger.Database().Info("Launch delete completed", "id", id, "duration", duration, "tenantId", r.tenantID)
	database.CheckAndLogSlowQuery(r.logger, query, duration, r.tenantID)
	return nil
}

func (r *SQLLaunchRepository) scanLaunch(row rowScanner) (*commerce.Launch, error) {
	var l commerce.Launch
	var revenueGoal sql.NullInt64
	var salesGoal sql.NullInt64
	var shareToken sql.NullString
	var updatedAt sql.NullTime

	err := row.Scan(
		&l.ID,
		&l.Name,
		&l.StartDate,
		&l.EndDate,
		&revenueGoal,
		&salesGoal,
		&l.Archived,
		&shareToken,
		&l.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if revenueGoal.Valid {
		v := revenueGoal.Int64
		l.RevenueGoalCents = &v
	}
	if salesGoal.Valid {
		v := int(salesGoal.Int64)
		l.SalesGoal = &v
	}
	l.ShareToken = nullStringPtr(shareToken)
	if updatedAt.Valid {
		v := updatedAt.Time
		l.UpdatedAt = &v
	}
	return &l, nil
}

func (r *SQLLaunchRepository) scanLaunches(rows *sql.Rows) ([]*commerce.Launch, error) {
	var launches []*commerce.Launch
	for rows.Next() {
		launch, err := r.scanLaunch(rows)
		if err != nil {
			r.logger.Database().Error("Failed to scan launch row", "error", err.Error(), "tenantId", r.tenantID)
			return nil, err
		}
		launches = append(launches, launch)
	}
	return launches, rows.Err()
}

func timePtrUTC(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
