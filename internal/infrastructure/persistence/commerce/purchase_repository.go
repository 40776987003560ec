// Package commerce provides the concrete SQL-based implementations of
// the commerce domain repositories (Purchase, Launch).
package commerce

import (
	"database/sql"
	"time"

	"github.com/coursesignal/coursesignal-go/internal/domain/commerce"
	"github.com/coursesignal/coursesignal-go/internal/domain/visitor"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/logging"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/persistence/database"
)

// SQLPurchaseRepository is the SQL-based implementation of the PurchaseRepository.
type SQLPurchaseRepository struct {
	db       *database.DB
	logger   *logging.ChanneledLogger
	tenantID string
}

// NewSQLPurchaseRepository creates a new instance of the repository.
func NewSQLPurchaseRepository(db *database.DB, logger *logging.ChanneledLogger, tenantID string) *SQLPurchaseRepository {
	return &SQLPurchaseRepository{
		db:       db,
		logger:   logger,
		tenantID: tenantID,
	}
}

const purchaseSelect = `
	SELECT id, visitor_id, email, amount_cents, currency, product_name, platform, platform_purchase_id,
	       first_source, first_medium, first_campaign, last_source, last_medium, last_campaign,
	       status, launch_id, purchased_at, created_at
	FROM purchases`

// FindByID retrieves a purchase by its unique identifier.
func (r *SQLPurchaseRepository) FindByID(id string) (*commerce.Purchase, error) {
	const query = purchaseSelect + ` WHERE id = ?`

	start := time.Now()
	row := r.db.QueryRow(query, id)
	purchase, err := r.scanPurchase(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Database().Error("Failed to load purchase by ID", "error", err.Error(), "id", id, "tenantId", r.tenantID)
		return nil, err
	}

	duration := time.Since(start)
	database.CheckAndLogSlowQuery(r.logger, query, duration, r.tenantID)
	return purchase, nil
}

// FindByPlatformID retrieves a purchase by its platform-scoped external ID.
// Ingestion uses this for the idempotency pre-check.
func (r *SQLPurchaseRepository) FindByPlatformID(platform, platformPurchaseID string) (*commerce.Purchase, error) {
	const query = purchaseSelect + ` WHERE platform = ? AND platform_purchase_id = ?`

	start := time.Now()
	r.logger.Database().Debug("Loading purchase by platform ID", "platform", platform, "platformPurchaseId", platformPurchaseID, "tenantId", r.tenantID)

	row := r.db.QueryRow(query, platform, platformPurchaseID)
	purchase, err := r.scanPurchase(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Database().Error("Failed to load purchase by platform ID", "error", err.Error(), "platform", platform, "tenantId", r.tenantID)
		return nil, err
	}

	duration := time.Since(start)
	database.CheckAndLogSlowQuery(r.logger, query, duration, r.tenantID)
	return purchase, nil
}

// Create inserts a new purchase with its attribution snapshots. The unique
// index on (platform, platform_purchase_id) is the final arbiter under
// concurrent webhook delivery; a constraint violation is surfaced as
// commerce.ErrDuplicatePurchase so ingestion can return the existing row.
func (r *SQLPurchaseRepository) Create(purchase *commerce.Purchase) error {
	const query = `
		INSERT INTO purchases (id, visitor_id, email, amount_cents, currency, product_name, platform, platform_purchase_id,
			first_source, first_medium, first_campaign, last_source, last_medium, last_campaign,
			status, launch_id, purchased_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	start := time.Now()
	r.logger.Database().Debug("Executing purchase insert", "id", purchase.ID, "platform", purchase.Platform, "tenantId", r.tenantID)

	_, err := r.db.Exec(
		query,
		purchase.ID,
		purchase.VisitorID,
		purchase.Email,
		purchase.AmountCents,
		purchase.Currency,
		purchase.ProductName,
		purchase.Platform,
		purchase.PlatformPurchaseID,
		purchase.FirstTouch.Source,
		purchase.FirstTouch.Medium,
		purchase.FirstTouch.Campaign,
		purchase.LastTouch.Source,
		purchase.LastTouch.Medium,
		purchase.LastTouch.Campaign,
		string(purchase.Status),
		purchase.LaunchID,
		purchase.PurchasedAt.UTC(),
		purchase.CreatedAt.UTC(),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			r.logger.Database().Debug("Purchase insert rejected by uniqueness constraint", "platform", purchase.Platform, "platformPurchaseId", purchase.PlatformPurchaseID, "tenantId", r.tenantID)
			return commerce.ErrDuplicatePurchase
		}
		r.logger.Database().Error("Purchase insert failed", "error", err.Error(), "id", purchase.ID, "tenantId", r.tenantID)
		return err
	}

	duration := time.Since(start)
	r.logger.Database().Info("Purchase insert completed", "id", purchase.ID, "platform", purchase.Platform, "amountCents", purchase.AmountCents, "status", string(purchase.Status), "duration", duration, "tenantId", r.tenantID)
	database.CheckAndLogSlowQuery(r.logger, query, duration, r.tenantID)
	return nil
}

// FindInRange returns all purchases made in [since, until), ordered by
// purchase timestamp.
func (r *SQLPurchaseRepository) FindInRange(since, until time.Time) ([]*commerce.Purchase, error) {
	const query = purchaseSelect + `
		WHERE purchased_at >= ? AND purchased_at < ?
		ORDER BY purchased_at ASC`

	start := time.Now()
	rows, err := r.db.Query(query, since.UTC(), until.UTC())
	if err != nil {
		r.logger.Database().Error("Failed to load purchases in range", "error", err.Error(), "tenantId", r.tenantID)
		return nil, err
	}
	defer rows.Close()

	purchases, err := r.scanPurchases(rows)
	if err != nil {
		return nil, err
	}

	duration := time.Since(start)
	r.logger.Database().Debug("Purchases loaded in range", "count", len(purchases), "duration", duration, "tenantId", r.tenantID)
	database.CheckAndLogSlowQuery(r.logger, query, duration, r.tenantID)
	return purchases, nil
}

// FindRecent returns the most recent purchases, newest first.
func (r *SQLPurchaseRepository) FindRecent(limit int) ([]*commerce.Purchase, error) {
	const query = purchaseSelect + `
		ORDER BY purchased_at DESC
		LIMIT ?`

	start := time.Now()
	rows, err := r.db.Query(query, limit)
	if err != nil {
		r.logger.Database().Error("Failed to load recent purchases", "error", err.Error(), "tenantId", r.tenantID)
		return nil, err
	}
	defer rows.Close()

	purchases, err := r.scanPurchases(rows)
	if err != nil {
		return nil, err
	}

	duration := time.Since(start)
	database.CheckAndLogSlowQuery(r.logger, query, duration, r.tenantID)
	return purchases, nil
}

// FindBatchAfter returns up to limit purchases strictly after the cursor id,
// ordered by id. The re-attribution backfill pages through the whole table
// with this; keyset pagination keeps each batch cheap regardless of offset.
func (r *SQLPurchaseRepository) FindBatchAfter(afterID string, limit int) ([]*commerce.Purchase, error) {
	const query = purchaseSelect + `
		WHERE id > ?
		ORDER BY id ASC
		LIMIT ?`

	start := time.Now()
	rows, err := r.db.Query(query, afterID, limit)
	if err != nil {
		r.logger.Database().Error("Failed to load purchase batch", "error", err.Error(), "afterId", afterID, "tenantId", r.tenantID)
		return nil, err
	}
	defer rows.Close()

	purchases, err := r.scanPurchases(rows)
	if err != nil {
		return nil, err
	}

	duration := time.Since(start)
	r.logger.Database().Debug("Purchase batch loaded", "afterId", afterID, "count", len(purchases), "duration", duration, "tenantId", r.tenantID)
	database.CheckAndLogSlowBatchQuery(r.logger, query, duration, r.tenantID)
	return purchases, nil
}

// UpdateAttribution rewrites the attribution fields of an existing purchase.
// Only the backfill calls this; normal ingestion never mutates a purchase.
func (r *SQLPurchaseRepository) UpdateAttribution(purchase *commerce.Purchase) error {
	const query = `
		UPDATE purchases
		SET visitor_id = ?,
			first_source = ?, first_medium = ?, first_campaign = ?,
			last_source = ?, last_medium = ?, last_campaign = ?,
			status = ?, launch_id = ?
		WHERE id = ?`

	start := time.Now()
	_, err := r.db.Exec(
		query,
		purchase.VisitorID,
		purchase.FirstTouch.Source,
		purchase.FirstTouch.Medium,
		purchase.FirstTouch.Campaign,
		purchase.LastTouch.Source,
		purchase.LastTouch.Medium,
		purchase.LastTouch.Campaign,
		string(purchase.Status),
		purchase.LaunchID,
		purchase.ID,
	)
	if err != nil {
		r.logger.Database().Error("Purchase attribution update failed", "error", err.Error(), "id", purchase.ID, "tenantId", r.tenantID)
		return err
	}

	duration := time.Since(start)
	r.logger.Database().Debug("Purchase attribution updated", "id", purchase.ID, "status", string(purchase.Status), "duration", duration, "tenantId", r.tenantID)
	database.CheckAndLogSlowQuery(r.logger, query, duration, r.tenantID)
	return nil
}

// UnlinkLaunch clears the launch association from all purchases attributed
// to a deleted launch. Purchases themselves are never deleted.
func (r *SQLPurchaseRepository) UnlinkLaunch(launchID string) error {
	const query = `
		UPDATE purchases
		SET launch_id = NULL
		WHERE launch_id = ?`

	start := time.Now()
	result, err := r.db.Exec(query, launchID)
	if err != nil {
		r.logger.Database().Error("Launch unlink failed", "error", err.Error(), "launchId", launchID, "tenantId", r.tenantID)
		return err
	}

	rows, _ := result.RowsAffected()
	duration := time.Since(start)
	r.logger.Database().Info("Launch unlinked from purchases", "launchId", launchID, "purchases", rows, "duration", duration, "tenantId", r.tenantID)
	database.CheckAndLogSlowQuery(r.logger, query, duration, r.tenantID)
	return nil
}

// Count returns the total number of purchases for the tenant.
func (r *SQLPurchaseRepository) Count() (int, error) {
	const query = `SELECT COUNT(*) FROM purchases`

	var count int
	if err := r.db.QueryRow(query).Scan(&count); err != nil {
		r.logger.Database().Error("Purchase count failed", "error", err.Error(), "tenantId", r.tenantID)
		return 0, err
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLPurchaseRepository) scanPurchase(row rowScanner) (*commerce.Purchase, error) {
	var p commerce.Purchase
	var visitorID, launchID sql.NullString
	var firstSource, firstMedium, firstCampaign sql.NullString
	var lastSource, lastMedium, lastCampaign sql.NullString
	var status string

	err := row.Scan(
		&p.ID,
		&visitorID,
		&p.Email,
		&p.AmountCents,
		&p.Currency,
		&p.ProductName,
		&p.Platform,
		&p.PlatformPurchaseID,
		&firstSource,
		&firstMedium,
		&firstCampaign,
		&lastSource,
		&lastMedium,
		&lastCampaign,
		&status,
		&launchID,
		&p.PurchasedAt,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.VisitorID = nullStringPtr(visitorID)
	p.LaunchID = nullStringPtr(launchID)
	p.FirstTouch = visitor.TouchSnapshot{Source: nullStringPtr(firstSource), Medium: nullStringPtr(firstMedium), Campaign: nullStringPtr(firstCampaign)}
	p.LastTouch = visitor.TouchSnapshot{Source: nullStringPtr(lastSource), Medium: nullStringPtr(lastMedium), Campaign: nullStringPtr(lastCampaign)}
	p.Status = commerce.AttributionStatus(status)
	return &p, nil
}

func (r *SQLPurchaseRepository) scanPurchases(rows *sql.Rows) ([]*commerce.Purchase, error) {
	var purchases []*commerce.Purchase
	for rows.Next() {
		purchase, err := r.scanPurchase(rows)
		if err != nil {
			r.logger.Database().Error("Failed to scan purchase row", "error", err.Error(), "tenantId", r.tenantID)
			return nil, err
		}
		purchases = append(purchases, purchase)
	}
	return purchases, rows.Err()
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
