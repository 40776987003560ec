// Package services contains the application services that orchestrate the
// attribution core: touch recording, identity resolution, purchase ingestion,
// aggregation, launches, and re-attribution backfills.
package services

import "errors"

// Validation and lookup sentinels. Handlers map these onto HTTP status codes;
// anything not in this list is a store failure and surfaces as a 500.
var (
	ErrUnknownTenant       = errors.New("unknown or inactive tenant")
	ErrInvalidTouch        = errors.New("invalid touch fields")
	ErrInvalidIdentify     = errors.New("invalid identify request")
	ErrInvalidPurchase     = errors.New("invalid purchase fields")
	ErrInvalidWindow       = errors.New("invalid analytics window")
	ErrLaunchNotFound      = errors.New("launch not found")
	ErrInvalidLaunch       = errors.New("invalid launch fields")
	ErrBackfillRunning     = errors.New("a backfill is already running for this tenant")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrReportEmailNotSet   = errors.New("no report email configured for tenant")
	ErrSharingNotEnabled   = errors.New("launch sharing is not enabled")
)
