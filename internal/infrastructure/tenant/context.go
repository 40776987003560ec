// Package tenant provides tenant context management for multi-tenant support.
package tenant

import (
	domainCommerce "github.com/coursesignal/coursesignal-go/internal/domain/commerce"
	domainVisitor "github.com/coursesignal/coursesignal-go/internal/domain/visitor"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/logging"
	persistenceCommerce "github.com/coursesignal/coursesignal-go/internal/infrastructure/persistence/commerce"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/persistence/database"
	persistenceVisitor "github.com/coursesignal/coursesignal-go/internal/infrastructure/persistence/visitor"
)

// Context holds tenant-specific request context
type Context struct {
	TenantID string
	Config   *Config
	Database *Database
	Status   string
	Logger   *logging.ChanneledLogger
}

// Close cleans up the tenant context
func (ctx *Context) Close() error {
	if ctx.Database != nil {
		return ctx.Database.Close()
	}
	return nil
}

// IsActive returns true if the tenant is active
func (ctx *Context) IsActive() bool {
	return ctx.Status == "active"
}

// IsReserved returns true if the tenant is reserved (awaiting activation)
func (ctx *Context) IsReserved() bool {
	return ctx.Status == "reserved"
}

// GetDatabaseInfo returns database connection information for logging
func (ctx *Context) GetDatabaseInfo() string {
	if ctx.Database != nil {
		return ctx.Database.GetConnectionInfo()
	}
	return "no database connection"
}

// =============================================================================
// Repository Factory Methods
// =============================================================================

// VisitorRepo returns a visitor identity repository instance.
// It returns the interface type from the domain layer.
func (ctx *Context) VisitorRepo() domainVisitor.IdentityRepository {
	db := &database.DB{DB: ctx.Database.Conn}
	return persistenceVisitor.NewSQLIdentityRepository(db, ctx.Logger, ctx.TenantID)
}

// TouchRepo returns a touch repository instance.
func (ctx *Context) TouchRepo() domainVisitor.TouchRepository {
	db := &database.DB{DB: ctx.Database.Conn}
	return persistenceVisitor.NewSQLTouchRepository(db, ctx.Logger, ctx.TenantID)
}

// PurchaseRepo returns a purchase repository instance.
func (ctx *Context) PurchaseRepo() domainCommerce.PurchaseRepository {
	db := &database.DB{DB: ctx.Database.Conn}
	return persistenceCommerce.NewSQLPurchaseRepository(db, ctx.Logger, ctx.TenantID)
}

// LaunchRepo returns a launch repository instance.
func (ctx *Context) LaunchRepo() domainCommerce.LaunchRepository {
	db := &database.DB{DB: ctx.Database.Conn}
	return persistenceCommerce.NewSQLLaunchRepository(db, ctx.Logger, ctx.TenantID)
}
