// Package email provides the email client for sending transactional emails.
package email

import (
	"fmt"
	"os"

	"github.com/coursesignal/coursesignal-go/internal/infrastructure/email/templates"
	"github.com/resendlabs/resend-go"
)

// Service defines the interface for sending emails, allowing for mock implementations in tests.
type Service interface {
	SendLaunchReportEmail(toEmail string, report templates.LaunchReportProps) error
	SendTenantActivationEmail(toEmail, tenantID, activationURL string) error
}

// ResendClient is the concrete implementation of the email Service using the Resend API.
type ResendClient struct {
	client    *resend.Client
	fromEmail string
	fromName  string
}

// NewService creates a new email service client, returning the Service interface.
func NewService() (Service, error) {
	apiKey := os.Getenv("RESEND_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("RESEND_API_KEY environment variable is required")
	}

	fromEmail := os.Getenv("EMAIL_FROM")
	if fromEmail == "" {
		fromEmail = "reports@coursesignal.app"
	}

	fromName := os.Getenv("EMAIL_FROM_NAME")
	if fromName == "" {
		fromName = "CourseSignal"
	}

	return &ResendClient{
		client:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
	}, nil
}

// SendLaunchReportEmail composes and sends the launch performance report.
func (c *ResendClient) SendLaunchReportEmail(toEmail string, report templates.LaunchReportProps) error {
	subject := fmt.Sprintf("Launch report: %s", report.LaunchName)

	content := templates.GetLaunchReportContent(report)
	htmlContent := templates.GetEmailLayout(templates.EmailLayoutProps{
		Preheader: fmt.Sprintf("%s from %d sales", report.RevenueFormatted, report.Sales),
		Content:   content,
	})

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", c.fromName, c.fromEmail),
		To:      []string{toEmail},
		Subject: subject,
		Html:    htmlContent,
	}

	_, err := c.client.Emails.Send(params)
	if err != nil {
		return fmt.Errorf("failed to send launch report email via Resend: %w", err)
	}

	return nil
}

// SendTenantActivationEmail composes and sends the workspace activation email.
func (c *ResendClient) SendTenantActivationEmail(toEmail, tenantID, activationURL string) error {
	subject := "Activate your CourseSignal workspace"

	content := fmt.Sprintf(`
    <h1 style="font-family: Helvetica, sans-serif; font-size: 24px; font-weight: bold; margin: 0; margin-bottom: 16px;">Welcome to CourseSignal</h1>
    <p style="font-family: Helvetica, sans-serif; font-size: 16px; margin: 0; margin-bottom: 16px;">Your workspace <strong>%s</strong> is reserved. Click below to activate it and set your dashboard password. The link expires in 48 hours.</p>
    <p style="font-family: Helvetica, sans-serif; font-size: 16px; margin: 0;"><a href="%s" target="_blank">Activate workspace</a></p>`,
		tenantID, activationURL)

	htmlContent := templates.GetEmailLayout(templates.EmailLayoutProps{
		Preheader: "Activate your CourseSignal workspace",
		Content:   content,
	})

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", c.fromName, c.fromEmail),
		To:      []string{toEmail},
		Subject: subject,
		Html:    htmlContent,
	}

	_, err := c.client.Emails.Send(params)
	if err != nil {
		return fmt.Errorf("failed to send activation email via Resend: %w", err)
	}

	return nil
}
