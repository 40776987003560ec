package services

import (
	"fmt"
	"strings"

	"github.com/coursesignal/coursesignal-go/internal/infrastructure/email"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/email/templates"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/logging"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/tenant"
)

// ReportService emails launch performance reports to tenant operators.
type ReportService struct {
	logger    *logging.ChanneledLogger
	emailSvc  email.Service
	analytics *AnalyticsService
}

// NewReportService creates a new report service. emailSvc may be nil when
// RESEND_API_KEY is not configured; sending then fails with a clear error.
func NewReportService(logger *logging.ChanneledLogger, emailSvc email.Service, analytics *AnalyticsService) *ReportService {
	return &ReportService{logger: logger, emailSvc: emailSvc, analytics: analytics}
}

// SendLaunchReport builds the launch aggregates and emails them to the
// tenant's configured report address.
func (s *ReportService) SendLaunchReport(tenantCtx *tenant.Context, launchID string) error {
	if s.emailSvc == nil {
		return fmt.Errorf("email delivery is not configured")
	}
	toEmail := strings.TrimSpace(tenantCtx.Config.ReportEmail)
	if toEmail == "" {
		return ErrReportEmailNotSet
	}

	report, err := s.analytics.LaunchAnalytics(tenantCtx, launchID)
	if err != nil {
		return err
	}

	props := templates.LaunchReportProps{
		LaunchName:       report.Launch.Name,
		Status:           string(report.Status),
		StartDate:        report.Launch.StartDate.Format("Jan 2, 2006"),
		EndDate:          report.Launch.EndDate.Format("Jan 2, 2006"),
		RevenueFormatted: formatCents(report.Summary.TotalRevenueCents),
		Sales:            report.Summary.TotalPurchases,
		RevenueGoalPct:   report.RevenueGoalProgress,
		SalesGoalPct:     report.SalesGoalProgress,
	}
	for i, source := range report.Sources {
		if i >= 5 {
			break
		}
		props.TopSources = append(props.TopSources, templates.ReportSourceRow{
			Source:           source.Source,
			RevenueFormatted: formatCents(source.RevenueCents),
			Purchases:        source.Purchases,
		})
	}

	if err := s.emailSvc.SendLaunchReportEmail(toEmail, props); err != nil {
		s.logger.Email().Error("Launch report email failed", "error", err.Error(), "tenantId", tenantCtx.TenantID, "launchId", launchID)
		return err
	}

	s.logger.Email().Info("Launch report email sent", "tenantId", tenantCtx.TenantID, "launchId", launchID)
	return nil
}

// formatCents renders a money amount for the report. Reports assume a
// single-currency catalog.
func formatCents(cents int64) string {
	return fmt.Sprintf("$%.2f", float64(cents)/100)
}
