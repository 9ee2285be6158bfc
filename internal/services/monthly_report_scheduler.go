package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/tuitionhub/backend/pkg/logger"
)

const (
	monthlyReportLockName = "monthly_report"
	monthlyReportLockTTL  = 6 * time.Hour
)

type ReportScheduleSettings interface {
	GetMonthlyReportConfig(ctx context.Context) *MonthlyReportConfig
}

type SchedulerLocker interface {
	TryAcquire(ctx context.Context, name, key, owner string, ttl time.Duration, now time.Time) (bool, error)
	Release(ctx context.Context, name, key, owner string) error
}

// ReportRunner is the part of MonthlyReportService the scheduler drives.
type ReportRunner interface {
	Run(ctx context.Context, trigger string, opts GenerateOptions, send bool) (*GenerateAndSendResult, error)
}

// MonthlyReportScheduler fires once a day at the configured time and runs the
// previous month's reports on the report day. A scheduler_locks row keyed by
// the target period keeps concurrent instances from running twice.
type MonthlyReportScheduler struct {
	runner   ReportRunner
	settings ReportScheduleSettings
	holidays *HolidayService
	locks    SchedulerLocker
	loc      *time.Location
	owner    string
	now      func() time.Time

	mu             sync.Mutex
	cronScheduler  *cron.Cron
	currentEntryID cron.EntryID
}

func NewMonthlyReportScheduler(runner ReportRunner, settings ReportScheduleSettings, holidays *HolidayService, locks SchedulerLocker, loc *time.Location) *MonthlyReportScheduler {
	if loc == nil {
		loc = time.Local
	}
	return &MonthlyReportScheduler{
		runner:   runner,
		settings: settings,
		holidays: holidays,
		locks:    locks,
		loc:      loc,
		owner:    uuid.NewString(),
		now:      time.Now,
	}
}

func (s *MonthlyReportScheduler) StartScheduler() {
	s.mu.Lock()
	s.cronScheduler = cron.New(cron.WithLocation(s.loc))
	s.mu.Unlock()

	s.UpdateSchedule()

	s.cronScheduler.Start()
	logger.Infof("[MonthlyReport] Scheduler started (instance %s)", s.owner)
}

func (s *MonthlyReportScheduler) StopScheduler() {
	s.mu.Lock()
	c := s.cronScheduler
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

// UpdateSchedule re-reads monthly_report_time and replaces the cron entry.
func (s *MonthlyReportScheduler) UpdateSchedule() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cronScheduler == nil {
		return
	}
	if s.currentEntryID != 0 {
		s.cronScheduler.Remove(s.currentEntryID)
		s.currentEntryID = 0
	}

	cfg := s.settings.GetMonthlyReportConfig(context.Background())
	hour, minute, err := parseReportTime(cfg.Time)
	if err != nil {
		hour, minute, _ = parseReportTime(defaultMonthlyReportTime)
	}
	cronExpr := fmt.Sprintf("%d %d * * *", minute, hour)

	entryID, err := s.cronScheduler.AddFunc(cronExpr, func() {
		if _, err := s.RunIfDue(context.Background(), s.now()); err != nil {
			logger.Errorf("[MonthlyReport] Scheduled run failed: %v", err)
		}
	})
	if err != nil {
		logger.Errorf("[MonthlyReport] Failed to add cron job: %v", err)
		return
	}

	s.currentEntryID = entryID
	logger.Infof("[MonthlyReport] Scheduled daily check at %02d:%02d %s (cron: %s)", hour, minute, s.loc, cronExpr)
}

// RunIfDue runs the previous month's reports when scheduling is enabled, now is
// the report day, and this instance wins the period lock. It reports whether a
// run was started.
func (s *MonthlyReportScheduler) RunIfDue(ctx context.Context, now time.Time) (bool, error) {
	cfg := s.settings.GetMonthlyReportConfig(ctx)
	if !cfg.Enabled {
		return false, nil
	}

	now = now.In(s.loc)
	if !s.holidays.IsReportDay(now, cfg.HolidayCountry) {
		return false, nil
	}

	target := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc).AddDate(0, -1, 0)
	key := target.Format("2006-01")

	acquired, err := s.locks.TryAcquire(ctx, monthlyReportLockName, key, s.owner, monthlyReportLockTTL, now)
	if err != nil {
		return false, fmt.Errorf("acquire scheduler lock %s: %w", key, err)
	}
	if !acquired {
		logger.Infof("[MonthlyReport] Period %s already claimed by another instance, skipping", key)
		return false, nil
	}

	opts := GenerateOptions{Month: int(target.Month()), Year: target.Year()}
	result, err := s.runner.Run(ctx, TriggerScheduled, opts, cfg.AutoSend)
	if err != nil {
		// let another instance or a manual run retry the period
		if relErr := s.locks.Release(ctx, monthlyReportLockName, key, s.owner); relErr != nil {
			logger.Warnf("[MonthlyReport] Failed to release lock %s: %v", key, relErr)
		}
		return true, err
	}

	logger.Infof("[MonthlyReport] Scheduled run for %s generated %d reports", key, result.ReportsGenerated)
	return true, nil
}
