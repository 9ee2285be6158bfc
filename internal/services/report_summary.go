package services

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"

	"github.com/tuitionhub/backend/internal/models"
)

var monthNames = [...]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// MonthName maps 1..12 to an English month name and anything else to "".
func MonthName(month int) string {
	if month < 1 || month > 12 {
		return ""
	}
	return monthNames[month-1]
}

// ConsolidatedSummary is the rendered all-staff email for one period.
type ConsolidatedSummary struct {
	Subject string
	HTML    string
}

func consolidatedSubject(month, year int) string {
	return fmt.Sprintf("Monthly Teaching Hours Report - All Staff - %s %d", MonthName(month), year)
}

type summaryRow struct {
	Name  string
	Email string
	Hours string
}

type summaryView struct {
	Period     string
	StaffCount int
	TotalHours string
	Rows       []summaryRow
}

var summaryTemplate = template.Must(template.New("summary").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Monthly Teaching Hours Report</title></head>
<body style="margin:0;padding:0;background:#f4f5f7;font-family:Arial,Helvetica,sans-serif;color:#333;">
<div style="max-width:680px;margin:0 auto;background:#ffffff;">
<div style="background:linear-gradient(135deg,#667eea 0%,#764ba2 100%);color:#ffffff;padding:32px 24px;text-align:center;">
<h1 style="margin:0;font-size:24px;">Monthly Teaching Hours Report</h1>
<p style="margin:8px 0 0;font-size:16px;">{{.Period}}</p>
</div>
<div style="display:flex;padding:24px;gap:16px;">
<div style="flex:1;background:#f8f9fc;border-radius:8px;padding:16px;text-align:center;">
<div style="font-size:28px;font-weight:bold;color:#667eea;">{{.StaffCount}}</div>
<div style="font-size:13px;color:#666;">Staff Reported</div>
</div>
<div style="flex:1;background:#f8f9fc;border-radius:8px;padding:16px;text-align:center;">
<div style="font-size:28px;font-weight:bold;color:#764ba2;">{{.TotalHours}}</div>
<div style="font-size:13px;color:#666;">Total Hours</div>
</div>
</div>
<table style="width:100%;border-collapse:collapse;margin:0 0 24px;">
<thead>
<tr style="background:#f0f1f6;">
<th style="padding:10px 24px;text-align:left;border-bottom:1px solid #ddd;">Name</th>
<th style="padding:10px 24px;text-align:left;border-bottom:1px solid #ddd;">Email</th>
<th style="padding:10px 24px;text-align:right;border-bottom:1px solid #ddd;">Total Hours</th>
</tr>
</thead>
<tbody>
{{- range .Rows}}
<tr>
<td style="padding:10px 24px;border-bottom:1px solid #eee;">{{.Name}}</td>
<td style="padding:10px 24px;border-bottom:1px solid #eee;">{{.Email}}</td>
<td style="padding:10px 24px;border-bottom:1px solid #eee;text-align:right;">{{.Hours}}</td>
</tr>
{{- end}}
</tbody>
</table>
<p style="padding:0 24px 24px;color:#888;font-size:12px;">Generated by TuitionHub</p>
</div>
</body>
</html>
`))

// ComposeConsolidatedSummary renders one email covering every report in the set.
// The period is taken from the first report; rows are sorted by staff name.
func ComposeConsolidatedSummary(reports []models.MonthlyReport) (*ConsolidatedSummary, error) {
	if len(reports) == 0 {
		return nil, ErrNoReports
	}

	month, year := reports[0].Month, reports[0].Year

	sorted := make([]models.MonthlyReport, len(reports))
	copy(sorted, reports)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StaffName < sorted[j].StaffName
	})

	var total float64
	rows := make([]summaryRow, 0, len(sorted))
	for _, r := range sorted {
		total += r.TotalHours
		rows = append(rows, summaryRow{
			Name:  r.StaffName,
			Email: r.StaffEmail,
			Hours: formatHours(r.TotalHours),
		})
	}

	view := summaryView{
		Period:     fmt.Sprintf("%s %d", MonthName(month), year),
		StaffCount: len(sorted),
		TotalHours: formatHours(total),
		Rows:       rows,
	}

	var buf bytes.Buffer
	if err := summaryTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("render summary: %w", err)
	}

	return &ConsolidatedSummary{
		Subject: consolidatedSubject(month, year),
		HTML:    buf.String(),
	}, nil
}

func formatHours(h float64) string {
	return fmt.Sprintf("%.1f", h)
}
