// Package visitor provides the concrete SQL-based implementations of
// the visitor domain repositories (Identity, Touch).
package visitor

import (
	"database/sql"
	"strings"
	"time"

	"github.com/coursesignal/coursesignal-go/internal/domain/visitor"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/logging"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/persistence/database"
)

// SQLIdentityRepository is the SQL-based implementation of the IdentityRepository.
type SQLIdentityRepository struct {
	db       *database.DB
	logger   *logging.ChanneledLogger
	tenantID string
}

// NewSQLIdentityRepository creates a new instance of the repository.
func NewSQLIdentityRepository(db *database.DB, logger *logging.ChanneledLogger, tenantID string) *SQLIdentityRepository {
	return &SQLIdentityRepository{
		db:       db,
		logger:   logger,
		tenantID: tenantID,
	}
}

// FindByID retrieves a visitor identity by its unique identifier.
func (r *SQLIdentityRepository) FindByID(id string) (*visitor.Identity, error) {
	const query = `
		SELECT id, email, fingerprint, first_source, first_medium, first_campaign, created_at, updated_at
		FROM visitors
		WHERE id = ?`

	start := time.Now()
	r.logger.Database().Debug("Loading visitor by ID", "id", id, "tenantId", r.tenantID)

	row := r.db.QueryRow(query, id)
	identity, err := r.scanIdentity(row)
	if err != nil {
		if err == sql.ErrNoRows {
			r.logger.Database().Debug("Visitor not found by ID", "id", id, "tenantId", r.tenantID)
			return nil, nil
		}
		r.logger.Database().Error("Failed to load visitor by ID", "error", err.Error(), "id", id, "tenantId", r.tenantID)
		return nil, err
	}

	duration := time.Since(start)
	r.logger.Database().Debug("Visitor loaded by ID", "id", id, "duration", duration)
	database.CheckAndLogSlowQuery(r.logger, query, duration, r.tenantID)
	return identity, nil
}

// FindByEmail retrieves the visitor identity for a captured email.
// Matching is case-insensitive; when cookie loss has produced several
// identities with the same email the most recently updated one wins.
func (r *SQLIdentityRepository) FindByEmail(email string) (*visitor.Identity, error) {
	const query = `
		SELECT id, email, fingerprint, first_source, first_medium, first_campaign, created_at, updated_at
		FROM visitors
		WHERE email = ?
		ORDER BY updated_at DESC
		LIMIT 1`

	start := time.Now()
	normalized := strings.ToLower(strings.TrimSpace(email))
	r.logger.Database().Debug("Loading visitor by email", "tenantId", r.tenantID)

	row := r.db.QueryRow(query, normalized)
	identity, err := r.scanIdentity(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Database().Error("Failed to load visitor by email", "error", err.Error(), "tenantId", r.tenantID)
		return nil, err
	}

	duration := time.Since(start)
	database.CheckAndLogSlowQuery(r.logger, query, duration, r.tenantID)
	return identity, nil
}

// FindByFingerprint retrieves a visitor identity by its device fingerprint.
func (r *SQLIdentityRepository) FindByFingerprint(fingerprint string) (*visitor.Identity, error) {
	const query = `
		SELECT id, email, fingerprint, first_source, first_medium, first_campaign, created_at, updated_at
		FROM visitors
		WHERE fingerprint = ?`

	start := time.Now()
	r.logger.Database().Debug("Loading visitor by fingerprint", "fingerprint", fingerprint, "tenantId", r.tenantID)

	row := r.db.QueryRow(query, fingerprint)
	identity, err := r.scanIdentity(row)
	if err != nil {
		if err == sql.ErrNoRows {
			r.logger.Database().Debug("Visitor not found by fingerprint", "fingerprint", fingerprint, "tenantId", r.tenantID)
			return nil, nil
		}
		r.logger.Database().Error("Failed to load visitor by fingerprint", "error", err.Error(), "fingerprint", fingerprint, "tenantId", r.tenantID)
		return nil, err
	}

	duration := time.Since(start)
	database.CheckAndLogSlowQuery(r.logger, query, duration, r.tenantID)
	return identity, nil
}

// Create saves a new visitor identity with its fixed first-touch snapshot.
func (r *SQLIdentityRepository) Create(identity *visitor.Identity) error {
	const query = `
		INSERT INTO visitors (id, email, fingerprint, first_source, first_medium, first_campaign, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	start := time.Now()
	r.logger.Database().Debug("Executing visitor insert", "id", identity.ID, "tenantId", r.tenantID)

	_, err := r.db.Exec(
		query,
		identity.ID,
		normalizeEmailPtr(identity.Email),
		identity.Fingerprint,
		identity.FirstTouch.Source,
		identity.FirstTouch.Medium,
		identity.FirstTouch.Campaign,
		identity.CreatedAt.UTC(),
		identity.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Database().Error("Visitor insert failed", "error", err.Error(), "id", identity.ID, "tenantId", r.tenantID)
		return err
	}

	duration := time.Since(start)
	r.logger.Database().Info("Visitor insert completed", "id", identity.ID, "duration", duration, "tenantId", r.tenantID)
	database.CheckAndLogSlowQuery(r.logger, query, duration, r.tenantID)
	return nil
}

// SetEmail records a captured email on an identity. An existing non-null
// email is never overwritten; email capture is monotonic.
func (r *SQLIdentityRepository) SetEmail(id, email string, at time.Time) error {
	const query = `
		UPDATE visitors
		SET email = ?, updated_at = ?
		WHERE id = ? AND email IS NULL`

	start := time.Now()
	normalized := strings.ToLower(strings.TrimSpace(email))

	result, err := r.db.Exec(query, normalized, at.UTC(), id)
	if err != nil {
		r.logger.Database().Error("Visitor email update failed", "error", err.Error(), "id", id, "tenantId", r.tenantID)
		return err
	}

	rows, _ := result.RowsAffected()
	duration := time.Since(start)
	r.logger.Database().Debug("Visitor email update completed", "id", id, "updated", rows > 0, "duration", duration, "tenantId", r.tenantID)
	database.CheckAndLogSlowQuery(r.logger, query, duration, r.tenantID)
	return nil
}

// MarkUpdated bumps the identity's updated_at timestamp. Called on every
// touch so email tie-breaking favors the device seen most recently.
func (r *SQLIdentityRepository) MarkUpdated(id string, at time.Time) error {
	const query = `
		UPDATE visitors
		SET updated_at = ?
		WHERE id = ?`

	start := time.Now()
	_, err := r.db.Exec(query, at.UTC(), id)
	if err != nil {
		r.logger.Database().Error("Visitor timestamp update failed", "error", err.Error(), "id", id, "tenantId", r.tenantID)
		return err
	}

	duration := time.Since(start)
	database.CheckAndLogSlowQuery(r.logger, query, duration, r.tenantID)
	return nil
}

// Count returns the total number of visitor identities for the tenant.
func (r *SQLIdentityRepository) Count() (int, error) {
	const query = `SELECT COUNT(*) FROM visitors`

	start := time.Now()
	var count int
	if err := r.db.QueryRow(query).Scan(&count); err != nil {
		r.logger.Database().Error("Visitor count failed", "error", err.Error(), "tenantId", r.tenantID)
		return 0, err
	}

	duration := time.Since(start)
	database.CheckAndLogSlowQuery(r.logger, query, duration, r.tenantID)
	return count, nil
}

func (r *SQLIdentityRepository) scanIdentity(row *sql.Row) (*visitor.Identity, error) {
	var identity visitor.Identity
	var email, firstSource, firstMedium, firstCampaign sql.NullString

	err := row.Scan(
		&identity.ID,
		&email,
		&identity.Fingerprint,
		&firstSource,
		&firstMedium,
		&firstCampaign,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	identity.Email = nullStringPtr(email)
	identity.FirstTouch = visitor.TouchSnapshot{
		Source:   nullStringPtr(firstSource),
		Medium:   nullStringPtr(firstMedium),
		Campaign: nullStringPtr(firstCampaign),
	}
	return &identity, nil
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func normalizeEmailPtr(email *string) *string {
	if email == nil {
		return nil
	}
	normalized := strings.ToLower(strings.TrimSpace(*email))
	return &normalized
}
