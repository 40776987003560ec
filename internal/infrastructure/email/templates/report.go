// Package templates provides email template components
package templates

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
)

// LaunchReportProps carries the figures rendered into the launch report email.
type LaunchReportProps struct {
	LaunchName       string
	Status           string
	StartDate        string
	EndDate          string
	RevenueFormatted string
	Sales            int
	RevenueGoalPct   *float64
	SalesGoalPct     *float64
	TopSources       []ReportSourceRow
	DashboardURL     string
}

// ReportSourceRow is one row of the per-source breakdown table.
type ReportSourceRow struct {
	Source           string
	RevenueFormatted string
	Purchases        int
}

type launchReportData struct {
	LaunchName       string
	Status           string
	Window           string
	RevenueFormatted string
	Sales            int
	RevenueGoalLine  string
	SalesGoalLine    string
	TopSources       []ReportSourceRow
	DashboardURL     string
}

var launchReportTemplate = template.Must(template.New("launchReport").Parse(`
    <h1 style="font-family: Helvetica, sans-serif; font-size: 24px; font-weight: bold; margin: 0; margin-bottom: 16px;">{{.LaunchName}}</h1>
    <p style="font-family: Helvetica, sans-serif; font-size: 16px; margin: 0; margin-bottom: 8px;">Status: <strong>{{.Status}}</strong> &middot; {{.Window}}</p>
    <p style="font-family: Helvetica, sans-serif; font-size: 20px; margin: 0; margin-bottom: 8px;"><strong>{{.RevenueFormatted}}</strong> from {{.Sales}} sales</p>
    {{if .RevenueGoalLine}}<p style="font-family: Helvetica, sans-serif; font-size: 16px; margin: 0; margin-bottom: 4px;">{{.RevenueGoalLine}}</p>{{end}}
    {{if .SalesGoalLine}}<p style="font-family: Helvetica, sans-serif; font-size: 16px; margin: 0; margin-bottom: 16px;">{{.SalesGoalLine}}</p>{{end}}
    {{if .TopSources}}
    <table role="presentation" border="0" cellpadding="6" cellspacing="0" style="width: 100%; margin-bottom: 16px; border-collapse: collapse;">
      <tr>
        <th align="left" style="font-family: Helvetica, sans-serif; font-size: 14px; border-bottom: 1px solid #e0e0e0;">Source</th>
        <th align="right" style="font-family: Helvetica, sans-serif; font-size: 14px; border-bottom: 1px solid #e0e0e0;">Revenue</th>
        <th align="right" style="font-family: Helvetica, sans-serif; font-size: 14px; border-bottom: 1px solid #e0e0e0;">Purchases</th>
      </tr>
      {{range .TopSources}}
      <tr>
        <td style="font-family: Helvetica, sans-serif; font-size: 14px;">{{.Source}}</td>
        <td align="right" style="font-family: Helvetica, sans-serif; font-size: 14px;">{{.RevenueFormatted}}</td>
        <td align="right" style="font-family: Helvetica, sans-serif; font-size: 14px;">{{.Purchases}}</td>
      </tr>
      {{end}}
    </table>
    {{end}}
    {{if .DashboardURL}}<p style="font-family: Helvetica, sans-serif; font-size: 16px; margin: 0;"><a href="{{.DashboardURL}}" target="_blank">View the full launch dashboard</a></p>{{end}}
`))

// GetLaunchReportContent renders the inner content of the launch report email.
func GetLaunchReportContent(props LaunchReportProps) string {
	data := launchReportData{
		LaunchName:       props.LaunchName,
		Status:           props.Status,
		Window:           fmt.Sprintf("%s to %s", props.StartDate, props.EndDate),
		RevenueFormatted: props.RevenueFormatted,
		Sales:            props.Sales,
		TopSources:       props.TopSources,
		DashboardURL:     props.DashboardURL,
	}
	if props.RevenueGoalPct != nil {
		data.RevenueGoalLine = fmt.Sprintf("Revenue goal: %.1f%% reached", *props.RevenueGoalPct)
	}
	if props.SalesGoalPct != nil {
		data.SalesGoalLine = fmt.Sprintf("Sales goal: %.1f%% reached", *props.SalesGoalPct)
	}

	var buf bytes.Buffer
	if err := launchReportTemplate.Execute(&buf, data); err != nil {
		log.Printf("Failed to execute launch report template: %v", err)
		return ""
	}
	return buf.String()
}
