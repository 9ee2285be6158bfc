package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tuitionhub/backend/internal/config"
	"github.com/tuitionhub/backend/internal/models"
	"github.com/tuitionhub/backend/internal/repository"
	"github.com/tuitionhub/backend/pkg/logger"
)

var (
	ErrInvalidPeriod           = errors.New("invalid report period")
	ErrStaffNotFound           = errors.New("staff not found")
	ErrNoReports               = errors.New("no reports to summarize")
	ErrAdminEmailNotConfigured = errors.New("admin email not configured")
)

const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
	TriggerQueued    = "queued"
)

type StaffDirectory interface {
	ListActive(ctx context.Context) ([]models.Staff, error)
	Get(ctx context.Context, id uint) (*models.Staff, error)
}

type TeachingHourStore interface {
	FindByStaffAndRange(ctx context.Context, staffID uint, start, end time.Time) ([]models.TeachingHour, error)
}

type ReportStore interface {
	Upsert(ctx context.Context, report *models.MonthlyReport) (*models.MonthlyReport, error)
	MarkEmailSent(ctx context.Context, ids []uint, at time.Time) error
	ListByPeriod(ctx context.Context, month, year int) ([]models.MonthlyReport, error)
	List(ctx context.Context, f repository.MonthlyReportFilter) ([]models.MonthlyReport, int64, error)
	GetByID(ctx context.Context, id uint) (*models.MonthlyReport, error)
}

type EmailSettingsProvider interface {
	GetEmailSettings(ctx context.Context) (*EmailSettings, error)
}

// MonthlyReportService aggregates teaching hours into per-staff monthly reports
// and mails the consolidated summary to the configured admin address.
type MonthlyReportService struct {
	staff     StaffDirectory
	hours     TeachingHourStore
	reports   ReportStore
	settings  EmailSettingsProvider
	sender    EmailSender
	metrics   Metrics
	loc       *time.Location
	opTimeout time.Duration
	now       func() time.Time
}

func NewMonthlyReportService(
	staff StaffDirectory,
	hours TeachingHourStore,
	reports ReportStore,
	settings EmailSettingsProvider,
	sender EmailSender,
	metrics Metrics,
	cfg *config.ReportConfig,
) *MonthlyReportService {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	timeout := cfg.OperationTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &MonthlyReportService{
		staff:     staff,
		hours:     hours,
		reports:   reports,
		settings:  settings,
		sender:    sender,
		metrics:   metrics,
		loc:       cfg.Location(),
		opTimeout: timeout,
		now:       time.Now,
	}
}

// GenerateOptions selects the period and staff. Zero values mean "not given".
type GenerateOptions struct {
	Month   int  `json:"month"`
	Year    int  `json:"year"`
	StaffID uint `json:"staff_id"`
}

type reportPeriod struct {
	Month int
	Year  int
	Start time.Time
	End   time.Time
}

// resolvePeriod defaults to the previous calendar month, rolling January back
// to December of the previous year.
func (s *MonthlyReportService) resolvePeriod(month, year int) (reportPeriod, error) {
	if month < 0 || month > 12 || year < 0 || year > 9999 {
		return reportPeriod{}, fmt.Errorf("%w: month=%d year=%d", ErrInvalidPeriod, month, year)
	}

	now := s.now().In(s.loc)
	if month == 0 {
		prev := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc).AddDate(0, -1, 0)
		month = int(prev.Month())
		if year == 0 {
			year = prev.Year()
		}
	} else if year == 0 {
		year = now.Year()
	}

	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, s.loc)
	end := start.AddDate(0, 1, 0).Add(-time.Millisecond)
	return reportPeriod{Month: month, Year: year, Start: start, End: end}, nil
}

// ResolvePeriod pins an omitted month or year to a concrete period using the
// service clock. Queued runs carry the result so retries keep the same period.
func (s *MonthlyReportService) ResolvePeriod(month, year int) (int, int, error) {
	period, err := s.resolvePeriod(month, year)
	if err != nil {
		return 0, 0, err
	}
	return period.Month, period.Year, nil
}

// resolveStaff returns every active staff member, or exactly the requested one
// whatever its active flag.
func (s *MonthlyReportService) resolveStaff(ctx context.Context, staffID uint) ([]models.Staff, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if staffID == 0 {
		staff, err := s.staff.ListActive(opCtx)
		if err != nil {
			return nil, fmt.Errorf("list active staff: %w", err)
		}
		return staff, nil
	}

	member, err := s.staff.Get(opCtx, staffID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: id=%d", ErrStaffNotFound, staffID)
	}
	if err != nil {
		return nil, fmt.Errorf("get staff %d: %w", staffID, err)
	}
	return []models.Staff{*member}, nil
}

// GenerateReports computes and upserts one report per staff member for the period.
// The first store error aborts the run; reports already written stay in place.
func (s *MonthlyReportService) GenerateReports(ctx context.Context, opts GenerateOptions) ([]models.MonthlyReport, error) {
	period, err := s.resolvePeriod(opts.Month, opts.Year)
	if err != nil {
		return nil, err
	}

	staff, err := s.resolveStaff(ctx, opts.StaffID)
	if err != nil {
		return nil, err
	}

	logger.Infof("[MonthlyReport] Generating %s %d for %d staff", MonthName(period.Month), period.Year, len(staff))

	generatedAt := s.now()
	reports := make([]models.MonthlyReport, 0, len(staff))
	for _, member := range staff {
		report, err := s.generateForStaff(ctx, member, period, generatedAt)
		if err != nil {
			s.metrics.AddReportsGenerated(len(reports))
			return nil, fmt.Errorf("generate report for staff %d (%s): %w", member.ID, member.Name, err)
		}
		reports = append(reports, *report)
	}

	s.metrics.AddReportsGenerated(len(reports))
	return reports, nil
}

func (s *MonthlyReportService) generateForStaff(ctx context.Context, member models.Staff, period reportPeriod, generatedAt time.Time) (*models.MonthlyReport, error) {
	findCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	records, err := s.hours.FindByStaffAndRange(findCtx, member.ID, period.Start, period.End)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("load teaching hours: %w", err)
	}

	total, breakdown := aggregateHours(records)

	upsertCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	stored, err := s.reports.Upsert(upsertCtx, &models.MonthlyReport{
		StaffID:          member.ID,
		Month:            period.Month,
		Year:             period.Year,
		StaffName:        member.Name,
		StaffEmail:       member.Email,
		TotalHours:       total,
		SubjectBreakdown: breakdown,
		StartDate:        period.Start,
		EndDate:          period.End,
		GeneratedAt:      generatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("save report: %w", err)
	}
	return stored, nil
}

type breakdownKey struct {
	subject   string
	hasCourse bool
	course    string
}

// aggregateHours sums hours per (subject, course) pair and overall. A record
// without a course never shares an entry with one whose course is "".
// Entries keep the order in which each pair first appears. The total is the
// sum of the entries in that order, so it equals the breakdown sum exactly.
func aggregateHours(records []models.TeachingHour) (float64, models.SubjectBreakdown) {
	breakdown := models.SubjectBreakdown{}
	index := make(map[breakdownKey]int)

	for _, r := range records {
		key := breakdownKey{subject: r.Subject}
		if r.Course != nil {
			key.hasCourse = true
			key.course = *r.Course
		}

		if i, ok := index[key]; ok {
			breakdown[i].Hours += r.Hours
			continue
		}

		entry := models.SubjectBreakdownEntry{Subject: r.Subject, Hours: r.Hours}
		if key.hasCourse {
			course := key.course
			entry.Course = &course
		}
		index[key] = len(breakdown)
		breakdown = append(breakdown, entry)
	}

	var total float64
	for _, e := range breakdown {
		total += e.Hours
	}
	return total, breakdown
}

type SendResult struct {
	Success   bool   `json:"success"`
	Recipient string `json:"recipient,omitempty"`
	Error     string `json:"error,omitempty"`
	Count     int    `json:"count"`

	err error
}

// Err returns the cause behind Error, for errors.Is checks.
func (r *SendResult) Err() error {
	return r.err
}

func failedSend(recipient string, err error) *SendResult {
	return &SendResult{Success: false, Recipient: recipient, Error: err.Error(), err: err}
}

// SendConsolidatedReport mails one summary of reports to the admin address and,
// once the transport accepts it, stamps every report as sent.
func (s *MonthlyReportService) SendConsolidatedReport(ctx context.Context, reports []models.MonthlyReport) *SendResult {
	settingsCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	settings, err := s.settings.GetEmailSettings(settingsCtx)
	cancel()
	if err != nil {
		logger.Errorf("[MonthlyReport] Failed to read email settings: %v", err)
		return failedSend("", err)
	}
	if settings.AdminEmail == "" {
		logger.Warnf("[MonthlyReport] %v, summary not sent", ErrAdminEmailNotConfigured)
		return failedSend("", ErrAdminEmailNotConfigured)
	}

	recipient := settings.AdminEmail
	if len(reports) == 0 {
		logger.Infof("[MonthlyReport] No reports to send")
		return &SendResult{Success: true, Recipient: recipient}
	}

	summary, err := ComposeConsolidatedSummary(reports)
	if err != nil {
		return failedSend(recipient, err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	err = s.deliver(sendCtx, &EmailMessage{
		From:    settings.FromEmail,
		To:      recipient,
		Subject: summary.Subject,
		HTML:    summary.HTML,
	})
	cancel()
	if err != nil {
		s.metrics.IncEmailsSent("failed")
		logger.Errorf("[MonthlyReport] Failed to send summary to %s: %v", recipient, err)
		LogError("MonthlyReport", "send_summary", fmt.Sprintf("Failed to send summary to %s: %v", recipient, err), nil, "", nil)
		return failedSend(recipient, err)
	}
	s.metrics.IncEmailsSent("sent")

	ids := make([]uint, 0, len(reports))
	for _, r := range reports {
		ids = append(ids, r.ID)
	}

	result := &SendResult{Success: true, Recipient: recipient, Count: len(reports)}

	markCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	if err := s.reports.MarkEmailSent(markCtx, ids, s.now()); err != nil {
		// delivered; only the bookkeeping failed
		logger.Errorf("[MonthlyReport] Summary sent but marking %d reports failed: %v", len(ids), err)
		result.err = fmt.Errorf("summary sent but marking reports failed: %w", err)
		result.Error = result.err.Error()
	}

	logger.Infof("[MonthlyReport] Summary of %d reports sent to %s", len(reports), recipient)
	LogInfo("MonthlyReport", "send_summary", fmt.Sprintf("Summary of %d reports sent to %s", len(reports), recipient), nil, "", map[string]interface{}{
		"month": reports[0].Month,
		"year":  reports[0].Year,
		"count": len(reports),
	})
	return result
}

// deliver turns a transport panic into an ordinary send failure.
func (s *MonthlyReportService) deliver(ctx context.Context, msg *EmailMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("email transport panic: %v", r)
		}
	}()
	return s.sender.Send(ctx, msg)
}

type GenerateAndSendResult struct {
	ReportsGenerated int         `json:"reports_generated"`
	EmailResults     *SendResult `json:"email_results,omitempty"`
}

func (s *MonthlyReportService) GenerateAndSend(ctx context.Context, opts GenerateOptions) (*GenerateAndSendResult, error) {
	reports, err := s.GenerateReports(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &GenerateAndSendResult{
		ReportsGenerated: len(reports),
		EmailResults:     s.SendConsolidatedReport(ctx, reports),
	}, nil
}

// Run generates (and optionally sends) while recording metrics and an audit entry.
func (s *MonthlyReportService) Run(ctx context.Context, trigger string, opts GenerateOptions, send bool) (*GenerateAndSendResult, error) {
	start := time.Now()

	var (
		result *GenerateAndSendResult
		err    error
	)
	if send {
		result, err = s.GenerateAndSend(ctx, opts)
	} else {
		var reports []models.MonthlyReport
		reports, err = s.GenerateReports(ctx, opts)
		if err == nil {
			result = &GenerateAndSendResult{ReportsGenerated: len(reports)}
		}
	}

	status := "success"
	switch {
	case err != nil:
		status = "failed"
	case result.EmailResults != nil && !result.EmailResults.Success:
		status = "email_failed"
	}
	s.metrics.ObserveReportRun(trigger, status, time.Since(start))

	extra := map[string]interface{}{"trigger": trigger, "month": opts.Month, "year": opts.Year, "staff_id": opts.StaffID}
	if err != nil {
		logger.Errorf("[MonthlyReport] %s run failed: %v", trigger, err)
		LogError("MonthlyReport", "generate", fmt.Sprintf("Failed to generate reports: %v", err), nil, "", extra)
		return nil, err
	}

	extra["reports_generated"] = result.ReportsGenerated
	LogInfo("MonthlyReport", "generate", fmt.Sprintf("Generated %d reports (%s)", result.ReportsGenerated, trigger), nil, "", extra)
	return result, nil
}

// ResendForPeriod mails the summary again for every stored report of the period.
func (s *MonthlyReportService) ResendForPeriod(ctx context.Context, month, year int) (*SendResult, error) {
	if month < 1 || month > 12 || year < 1 {
		return nil, fmt.Errorf("%w: month=%d year=%d", ErrInvalidPeriod, month, year)
	}

	listCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	reports, err := s.reports.ListByPeriod(listCtx, month, year)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	if len(reports) == 0 {
		return nil, ErrNoReports
	}
	return s.SendConsolidatedReport(ctx, reports), nil
}

type ReportListRequest struct {
	Page     int  `form:"page"`
	PageSize int  `form:"page_size"`
	Month    int  `form:"month"`
	Year     int  `form:"year"`
	StaffID  uint `form:"staff_id"`
}

type ReportListResponse struct {
	Total    int64                  `json:"total"`
	Page     int                    `json:"page"`
	PageSize int                    `json:"page_size"`
	Items    []models.MonthlyReport `json:"items"`
}

func (s *MonthlyReportService) List(ctx context.Context, req *ReportListRequest) (*ReportListResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}

	items, total, err := s.reports.List(ctx, repository.MonthlyReportFilter{
		Page:     req.Page,
		PageSize: req.PageSize,
		Month:    req.Month,
		Year:     req.Year,
		StaffID:  req.StaffID,
	})
	if err != nil {
		return nil, err
	}
	return &ReportListResponse{Total: total, Page: req.Page, PageSize: req.PageSize, Items: items}, nil
}

func (s *MonthlyReportService) GetByID(ctx context.Context, id uint) (*models.MonthlyReport, error) {
	return s.reports.GetByID(ctx, id)
}
