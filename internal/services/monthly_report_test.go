package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tuitionhub/backend/internal/config"
	"github.com/tuitionhub/backend/internal/models"
	"github.com/tuitionhub/backend/internal/repository"
)

type fakeStaffDirectory struct {
	staff   []models.Staff
	listErr error
}

func (f *fakeStaffDirectory) ListActive(_ context.Context) ([]models.Staff, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Staff
	for _, s := range f.staff {
		if s.IsActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStaffDirectory) Get(_ context.Context, id uint) (*models.Staff, error) {
	for _, s := range f.staff {
		if s.ID == id {
			s := s
			return &s, nil
		}
	}
	return nil, repository.ErrNotFound
}

type rangeQuery struct {
	staffID    uint
	start, end time.Time
}

type fakeHourStore struct {
	records []models.TeachingHour
	failFor map[uint]error
	queries []rangeQuery
}

func (f *fakeHourStore) FindByStaffAndRange(_ context.Context, staffID uint, start, end time.Time) ([]models.TeachingHour, error) {
	f.queries = append(f.queries, rangeQuery{staffID, start, end})
	if err := f.failFor[staffID]; err != nil {
		return nil, err
	}
	var out []models.TeachingHour
	for _, r := range f.records {
		if r.StaffID == staffID && !r.Date.Before(start) && !r.Date.After(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

type reportKey struct {
	staffID     uint
	month, year int
}

type fakeReportStore struct {
	mu      sync.Mutex
	rows    map[reportKey]*models.MonthlyReport
	nextID  uint
	markErr error
	marks   [][]uint
}

func newFakeReportStore() *fakeReportStore {
	return &fakeReportStore{rows: make(map[reportKey]*models.MonthlyReport)}
}

func (f *fakeReportStore) Upsert(_ context.Context, r *models.MonthlyReport) (*models.MonthlyReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := reportKey{r.StaffID, r.Month, r.Year}
	row, ok := f.rows[key]
	if !ok {
		f.nextID++
		row = &models.MonthlyReport{ID: f.nextID, StaffID: r.StaffID, Month: r.Month, Year: r.Year, CreatedAt: r.GeneratedAt}
		f.rows[key] = row
	}
	row.StaffName = r.StaffName
	row.StaffEmail = r.StaffEmail
	row.TotalHours = r.TotalHours
	row.SubjectBreakdown = append(models.SubjectBreakdown{}, r.SubjectBreakdown...)
	row.StartDate = r.StartDate
	row.EndDate = r.EndDate
	row.GeneratedAt = r.GeneratedAt

	out := *row
	return &out, nil
}

func (f *fakeReportStore) MarkEmailSent(_ context.Context, ids []uint, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.markErr != nil {
		return f.markErr
	}
	f.marks = append(f.marks, ids)
	for _, row := range f.rows {
		for _, id := range ids {
			if row.ID == id {
				t := at
				row.EmailSentAt = &t
			}
		}
	}
	return nil
}

func (f *fakeReportStore) ListByPeriod(_ context.Context, month, year int) ([]models.MonthlyReport, error) {
	var out []models.MonthlyReport
	for key, row := range f.rows {
		if key.month == month && key.year == year {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (f *fakeReportStore) List(_ context.Context, _ repository.MonthlyReportFilter) ([]models.MonthlyReport, int64, error) {
	var out []models.MonthlyReport
	for _, row := range f.rows {
		out = append(out, *row)
	}
	return out, int64(len(out)), nil
}

func (f *fakeReportStore) GetByID(_ context.Context, id uint) (*models.MonthlyReport, error) {
	for _, row := range f.rows {
		if row.ID == id {
			out := *row
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeReportStore) get(staffID uint, month, year int) *models.MonthlyReport {
	return f.rows[reportKey{staffID, month, year}]
}

type fakeEmailSettings struct {
	settings EmailSettings
	err      error
}

func (f *fakeEmailSettings) GetEmailSettings(_ context.Context) (*EmailSettings, error) {
	if f.err != nil {
		return nil, f.err
	}
	s := f.settings
	return &s, nil
}

type mockEmailSender struct {
	mock.Mock
}

func (m *mockEmailSender) Send(ctx context.Context, msg *EmailMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

type reportFixture struct {
	svc      *MonthlyReportService
	staff    *fakeStaffDirectory
	hours    *fakeHourStore
	reports  *fakeReportStore
	settings *fakeEmailSettings
	sender   *mockEmailSender
	clock    time.Time
}

func newReportFixture(t *testing.T) *reportFixture {
	t.Helper()

	f := &reportFixture{
		staff: &fakeStaffDirectory{staff: []models.Staff{
			{ID: 1, Name: "Alice", Email: "alice@example.com", IsActive: true},
			{ID: 2, Name: "Bob", Email: "bob@example.com", IsActive: true},
			{ID: 3, Name: "Carol", Email: "carol@example.com", IsActive: false},
		}},
		hours:    &fakeHourStore{failFor: map[uint]error{}},
		reports:  newFakeReportStore(),
		settings: &fakeEmailSettings{settings: EmailSettings{FromEmail: "office@example.com", AdminEmail: "admin@example.com"}},
		sender:   &mockEmailSender{},
		clock:    time.Date(2024, time.April, 1, 8, 0, 0, 0, time.UTC),
	}
	f.svc = NewMonthlyReportService(f.staff, f.hours, f.reports, f.settings, f.sender, nil,
		&config.ReportConfig{Timezone: "UTC", OperationTimeout: time.Second})
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func course(name string) *string { return &name }

func (f *reportFixture) addHours(staffID uint, at time.Time, hours float64, subject string, c *string) {
	f.hours.records = append(f.hours.records, models.TeachingHour{
		ID: uint(len(f.hours.records) + 1), StaffID: staffID, Date: at, Hours: hours, Subject: subject, Course: c,
	})
}

func TestResolvePeriod(t *testing.T) {
	tests := []struct {
		name      string
		now       time.Time
		month     int
		year      int
		wantMonth int
		wantYear  int
		wantErr   bool
	}{
		{name: "defaults to previous month", now: time.Date(2024, time.April, 15, 0, 0, 0, 0, time.UTC), wantMonth: 3, wantYear: 2024},
		{name: "january rolls back year", now: time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC), wantMonth: 12, wantYear: 2023},
		{name: "explicit month uses current year", now: time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC), month: 12, wantMonth: 12, wantYear: 2024},
		{name: "explicit year with defaulted month", now: time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC), year: 2020, wantMonth: 12, wantYear: 2020},
		{name: "explicit both", now: time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC), month: 2, year: 2023, wantMonth: 2, wantYear: 2023},
		{name: "month too large", month: 13, wantErr: true},
		{name: "negative month", month: -1, wantErr: true},
		{name: "negative year", month: 1, year: -5, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReportFixture(t)
			f.clock = tt.now

			period, err := f.svc.resolvePeriod(tt.month, tt.year)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPeriod)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMonth, period.Month)
			assert.Equal(t, tt.wantYear, period.Year)
		})
	}
}

func TestResolvePeriod_Bounds(t *testing.T) {
	f := newReportFixture(t)

	tests := []struct {
		month, year int
		lastDay     int
	}{
		{2, 2024, 29},
		{2, 2023, 28},
		{4, 2024, 30},
		{12, 2024, 31},
	}
	for _, tt := range tests {
		period, err := f.svc.resolvePeriod(tt.month, tt.year)
		require.NoError(t, err)

		assert.Equal(t, time.Date(tt.year, time.Month(tt.month), 1, 0, 0, 0, 0, time.UTC), period.Start)
		assert.Equal(t, time.Date(tt.year, time.Month(tt.month), tt.lastDay, 23, 59, 59, int(999*time.Millisecond), time.UTC), period.End)
	}
}

func TestResolvePeriod_UsesReportZone(t *testing.T) {
	f := newReportFixture(t)
	zone := time.FixedZone("UTC+8", 8*60*60)
	f.svc.loc = zone
	// 2024-01-31 20:00 UTC is already February 1st in UTC+8.
	f.clock = time.Date(2024, time.January, 31, 20, 0, 0, 0, time.UTC)

	period, err := f.svc.resolvePeriod(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, period.Month)
	assert.Equal(t, 2024, period.Year)
	assert.Equal(t, zone, period.Start.Location())
}

func TestGenerateReports_DefaultsToPreviousMonthOnJanuary(t *testing.T) {
	f := newReportFixture(t)
	f.clock = time.Date(2025, time.January, 3, 9, 0, 0, 0, time.UTC)

	reports, err := f.svc.GenerateReports(context.Background(), GenerateOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, reports)
	for _, r := range reports {
		assert.Equal(t, 12, r.Month)
		assert.Equal(t, 2024, r.Year)
	}
}

func TestGenerateReports_SumRespectsInclusiveBounds(t *testing.T) {
	f := newReportFixture(t)
	start := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.March, 31, 23, 59, 59, int(999*time.Millisecond), time.UTC)

	f.addHours(1, start.Add(-time.Millisecond), 100, "Math", nil)
	f.addHours(1, start, 1, "Math", nil)
	f.addHours(1, end, 2, "Math", nil)
	f.addHours(1, end.Add(time.Millisecond), 200, "Math", nil)

	reports, err := f.svc.GenerateReports(context.Background(), GenerateOptions{Month: 3, Year: 2024, StaffID: 1})
	require.NoError(t, err)
	require.Len(t, reports, 1)

	assert.Equal(t, 3.0, reports[0].TotalHours)
	assert.Equal(t, start, reports[0].StartDate)
	assert.Equal(t, end, reports[0].EndDate)

	require.Len(t, f.hours.queries, 1)
	assert.Equal(t, start, f.hours.queries[0].start)
	assert.Equal(t, end, f.hours.queries[0].end)
}

func TestGenerateReports_BreakdownGroupingAndPartition(t *testing.T) {
	f := newReportFixture(t)
	day := time.Date(2024, time.March, 10, 10, 0, 0, 0, time.UTC)

	f.addHours(1, day, 1.5, "Math", course("Algebra I"))
	f.addHours(1, day, 2, "Math", nil)
	f.addHours(1, day, 0.25, "Physics", nil)
	f.addHours(1, day, 1, "Math", course(""))
	f.addHours(1, day, 0.5, "Math", course("Algebra I"))
	f.addHours(1, day, 0.75, "Math", nil)

	reports, err := f.svc.GenerateReports(context.Background(), GenerateOptions{Month: 3, Year: 2024, StaffID: 1})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	report := reports[0]

	require.Len(t, report.SubjectBreakdown, 4)

	assert.Equal(t, "Math", report.SubjectBreakdown[0].Subject)
	require.NotNil(t, report.SubjectBreakdown[0].Course)
	assert.Equal(t, "Algebra I", *report.SubjectBreakdown[0].Course)
	assert.Equal(t, 2.0, report.SubjectBreakdown[0].Hours)

	assert.Equal(t, "Math", report.SubjectBreakdown[1].Subject)
	assert.Nil(t, report.SubjectBreakdown[1].Course)
	assert.Equal(t, 2.75, report.SubjectBreakdown[1].Hours)

	assert.Equal(t, "Physics", report.SubjectBreakdown[2].Subject)
	assert.Equal(t, 0.25, report.SubjectBreakdown[2].Hours)

	require.NotNil(t, report.SubjectBreakdown[3].Course)
	assert.Equal(t, "", *report.SubjectBreakdown[3].Course)
	assert.Equal(t, 1.0, report.SubjectBreakdown[3].Hours)

	var sum float64
	for _, e := range report.SubjectBreakdown {
		sum += e.Hours
	}
	assert.Equal(t, sum, report.TotalHours)
	assert.Equal(t, 6.0, report.TotalHours)
}

func TestGenerateReports_BreakdownSumEqualsTotalForDecimalHours(t *testing.T) {
	f := newReportFixture(t)
	day := time.Date(2024, time.March, 12, 9, 0, 0, 0, time.UTC)

	f.addHours(1, day, 0.1, "Math", nil)
	f.addHours(1, day, 0.2, "Art", nil)
	f.addHours(1, day, 0.3, "Math", nil)
	f.addHours(1, day, 0.7, "Art", nil)
	f.addHours(1, day, 1.1, "Bio", nil)

	reports, err := f.svc.GenerateReports(context.Background(), GenerateOptions{Month: 3, Year: 2024, StaffID: 1})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	report := reports[0]
	require.Len(t, report.SubjectBreakdown, 3)

	var sum float64
	for _, e := range report.SubjectBreakdown {
		sum += e.Hours
	}
	assert.Equal(t, sum, report.TotalHours)
	assert.InDelta(t, 2.4, report.TotalHours, 1e-9)
}

func TestGenerateReports_ZeroActivityStaffGetReport(t *testing.T) {
	f := newReportFixture(t)
	f.addHours(1, time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC), 2, "Math", nil)

	reports, err := f.svc.GenerateReports(context.Background(), GenerateOptions{Month: 3, Year: 2024})
	require.NoError(t, err)
	require.Len(t, reports, 2, "only active staff")

	bob := f.reports.get(2, 3, 2024)
	require.NotNil(t, bob)
	assert.Equal(t, 0.0, bob.TotalHours)
	assert.NotNil(t, bob.SubjectBreakdown)
	assert.Empty(t, bob.SubjectBreakdown)

	assert.Nil(t, f.reports.get(3, 3, 2024), "inactive staff are skipped without an explicit id")
}

func TestGenerateReports_ExplicitInactiveStaffIncluded(t *testing.T) {
	f := newReportFixture(t)
	f.addHours(3, time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC), 4, "Chemistry", nil)

	reports, err := f.svc.GenerateReports(context.Background(), GenerateOptions{Month: 3, Year: 2024, StaffID: 3})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "Carol", reports[0].StaffName)
	assert.Equal(t, 4.0, reports[0].TotalHours)
}

func TestGenerateReports_UnknownStaff(t *testing.T) {
	f := newReportFixture(t)

	_, err := f.svc.GenerateReports(context.Background(), GenerateOptions{Month: 3, Year: 2024, StaffID: 99})
	assert.ErrorIs(t, err, ErrStaffNotFound)
}

func TestGenerateReports_Idempotent(t *testing.T) {
	f := newReportFixture(t)
	f.addHours(1, time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC), 2, "Math", course("Geometry"))
	f.addHours(2, time.Date(2024, time.March, 6, 0, 0, 0, 0, time.UTC), 3, "English", nil)

	first, err := f.svc.GenerateReports(context.Background(), GenerateOptions{Month: 3, Year: 2024})
	require.NoError(t, err)

	f.clock = f.clock.Add(time.Hour)
	second, err := f.svc.GenerateReports(context.Background(), GenerateOptions{Month: 3, Year: 2024})
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].TotalHours, second[i].TotalHours)
		assert.Equal(t, first[i].SubjectBreakdown, second[i].SubjectBreakdown)
		assert.True(t, second[i].GeneratedAt.After(first[i].GeneratedAt))
		assert.Nil(t, second[i].EmailSentAt)
	}
	assert.Len(t, f.reports.rows, 2)
}

func TestGenerateReports_RegenerationKeepsEmailSentAt(t *testing.T) {
	f := newReportFixture(t)
	f.sender.On("Send", mock.Anything, mock.Anything).Return(nil).Once()

	_, err := f.svc.GenerateAndSend(context.Background(), GenerateOptions{Month: 3, Year: 2024})
	require.NoError(t, err)
	sentAt := f.reports.get(1, 3, 2024).EmailSentAt
	require.NotNil(t, sentAt)

	f.clock = f.clock.Add(24 * time.Hour)
	_, err = f.svc.GenerateReports(context.Background(), GenerateOptions{Month: 3, Year: 2024})
	require.NoError(t, err)

	require.NotNil(t, f.reports.get(1, 3, 2024).EmailSentAt)
	assert.Equal(t, *sentAt, *f.reports.get(1, 3, 2024).EmailSentAt)
}

func TestGenerateReports_SnapshotsStaffIdentity(t *testing.T) {
	f := newReportFixture(t)

	_, err := f.svc.GenerateReports(context.Background(), GenerateOptions{Month: 3, Year: 2024, StaffID: 1})
	require.NoError(t, err)

	f.staff.staff[0].Name = "Alice Renamed"
	assert.Equal(t, "Alice", f.reports.get(1, 3, 2024).StaffName)
}

func TestGenerateReports_FailFastKeepsEarlierReports(t *testing.T) {
	f := newReportFixture(t)
	f.hours.failFor[2] = errors.New("connection reset")

	reports, err := f.svc.GenerateReports(context.Background(), GenerateOptions{Month: 3, Year: 2024})
	require.Error(t, err)
	assert.Nil(t, reports)
	assert.Contains(t, err.Error(), "staff 2 (Bob)")
	assert.Contains(t, err.Error(), "connection reset")

	assert.NotNil(t, f.reports.get(1, 3, 2024), "earlier upsert stays committed")
	assert.Nil(t, f.reports.get(2, 3, 2024))
}

func TestGenerateReports_ListError(t *testing.T) {
	f := newReportFixture(t)
	f.staff.listErr = errors.New("db down")

	_, err := f.svc.GenerateReports(context.Background(), GenerateOptions{Month: 3, Year: 2024})
	assert.ErrorContains(t, err, "db down")
}

func sampleReports() []models.MonthlyReport {
	return []models.MonthlyReport{
		{ID: 10, StaffID: 1, Month: 3, Year: 2024, StaffName: "Alice", StaffEmail: "alice@example.com", TotalHours: 5},
		{ID: 11, StaffID: 2, Month: 3, Year: 2024, StaffName: "Bob", StaffEmail: "bob@example.com", TotalHours: 2},
	}
}

func TestSendConsolidatedReport_EmptyBatchSkipsTransport(t *testing.T) {
	f := newReportFixture(t)

	result := f.svc.SendConsolidatedReport(context.Background(), nil)

	assert.True(t, result.Success)
	assert.Equal(t, "admin@example.com", result.Recipient)
	assert.Zero(t, result.Count)
	f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestSendConsolidatedReport_MissingAdminEmail(t *testing.T) {
	f := newReportFixture(t)
	f.settings.settings.AdminEmail = ""

	result := f.svc.SendConsolidatedReport(context.Background(), sampleReports())

	assert.False(t, result.Success)
	assert.Equal(t, ErrAdminEmailNotConfigured.Error(), result.Error)
	assert.ErrorIs(t, result.Err(), ErrAdminEmailNotConfigured)
	f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestSendConsolidatedReport_SettingsError(t *testing.T) {
	f := newReportFixture(t)
	f.settings.err = errors.New("settings unavailable")

	result := f.svc.SendConsolidatedReport(context.Background(), sampleReports())

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "settings unavailable")
	assert.NotErrorIs(t, result.Err(), ErrAdminEmailNotConfigured)
	f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestSendConsolidatedReport_Success(t *testing.T) {
	f := newReportFixture(t)
	reports := sampleReports()
	for i := range reports {
		_, err := f.reports.Upsert(context.Background(), &reports[i])
		require.NoError(t, err)
		reports[i].ID = f.reports.get(reports[i].StaffID, 3, 2024).ID
	}

	f.sender.On("Send", mock.Anything, mock.MatchedBy(func(msg *EmailMessage) bool {
		return msg.From == "office@example.com" &&
			msg.To == "admin@example.com" &&
			msg.Subject == "Monthly Teaching Hours Report - All Staff - March 2024"
	})).Return(nil).Once()

	result := f.svc.SendConsolidatedReport(context.Background(), reports)

	assert.True(t, result.Success)
	assert.Equal(t, "admin@example.com", result.Recipient)
	assert.Equal(t, 2, result.Count)
	assert.Empty(t, result.Error)
	assert.NoError(t, result.Err())
	f.sender.AssertExpectations(t)

	require.Len(t, f.reports.marks, 1)
	assert.ElementsMatch(t, []uint{reports[0].ID, reports[1].ID}, f.reports.marks[0])
	for _, r := range reports {
		sent := f.reports.get(r.StaffID, 3, 2024).EmailSentAt
		require.NotNil(t, sent)
		assert.Equal(t, f.clock, *sent)
	}
}

func TestSendConsolidatedReport_TransportFailureMarksNothing(t *testing.T) {
	f := newReportFixture(t)
	reports, err := f.svc.GenerateReports(context.Background(), GenerateOptions{Month: 3, Year: 2024})
	require.NoError(t, err)

	f.sender.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp 550")).Once()

	result := f.svc.SendConsolidatedReport(context.Background(), reports)

	assert.False(t, result.Success)
	assert.Equal(t, "admin@example.com", result.Recipient)
	assert.Equal(t, "smtp 550", result.Error)
	assert.EqualError(t, result.Err(), "smtp 550")
	assert.Empty(t, f.reports.marks)
	for _, r := range reports {
		assert.Nil(t, f.reports.get(r.StaffID, 3, 2024).EmailSentAt)
	}
}

func TestSendConsolidatedReport_TransportPanicIsFailure(t *testing.T) {
	f := newReportFixture(t)
	f.sender.On("Send", mock.Anything, mock.Anything).Panic("client exploded").Once()

	result := f.svc.SendConsolidatedReport(context.Background(), sampleReports())

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "client exploded")
	assert.Empty(t, f.reports.marks)
}

func TestSendConsolidatedReport_MarkFailureAfterDelivery(t *testing.T) {
	f := newReportFixture(t)
	f.reports.markErr = errors.New("lock timeout")
	f.sender.On("Send", mock.Anything, mock.Anything).Return(nil).Once()

	result := f.svc.SendConsolidatedReport(context.Background(), sampleReports())

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Count)
	assert.Contains(t, result.Error, "lock timeout")
}

func TestGenerateAndSend(t *testing.T) {
	f := newReportFixture(t)
	f.addHours(1, time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC), 2, "Math", nil)
	f.sender.On("Send", mock.Anything, mock.Anything).Return(nil).Once()

	result, err := f.svc.GenerateAndSend(context.Background(), GenerateOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.ReportsGenerated)
	require.NotNil(t, result.EmailResults)
	assert.True(t, result.EmailResults.Success)
	assert.Equal(t, 2, result.EmailResults.Count)
}

func TestGenerateAndSend_GenerationErrorSkipsSend(t *testing.T) {
	f := newReportFixture(t)
	f.hours.failFor[1] = errors.New("timeout")

	_, err := f.svc.GenerateAndSend(context.Background(), GenerateOptions{Month: 3, Year: 2024})
	require.Error(t, err)
	f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestResendForPeriod(t *testing.T) {
	f := newReportFixture(t)

	_, err := f.svc.ResendForPeriod(context.Background(), 3, 2024)
	assert.ErrorIs(t, err, ErrNoReports)

	_, err = f.svc.ResendForPeriod(context.Background(), 0, 2024)
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = f.svc.GenerateReports(context.Background(), GenerateOptions{Month: 3, Year: 2024})
	require.NoError(t, err)
	f.sender.On("Send", mock.Anything, mock.Anything).Return(nil).Once()

	result, err := f.svc.ResendForPeriod(context.Background(), 3, 2024)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Count)
}

func TestRun_WithoutSend(t *testing.T) {
	f := newReportFixture(t)

	result, err := f.svc.Run(context.Background(), TriggerManual, GenerateOptions{Month: 3, Year: 2024}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, result.ReportsGenerated)
	assert.Nil(t, result.EmailResults)
	f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestProcessReportTask(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := newReportFixture(t)
		f.sender.On("Send", mock.Anything, mock.Anything).Return(nil).Once()

		err := f.svc.ProcessReportTask(context.Background(), &ReportTask{RequestID: "r1", Month: 3, Year: 2024, Send: true})
		assert.NoError(t, err)
	})

	t.Run("unknown staff skips retry", func(t *testing.T) {
		f := newReportFixture(t)

		err := f.svc.ProcessReportTask(context.Background(), &ReportTask{Month: 3, Year: 2024, StaffID: 42})
		assert.ErrorIs(t, err, asynq.SkipRetry)
		assert.ErrorIs(t, err, ErrStaffNotFound)
	})

	t.Run("missing admin email skips retry", func(t *testing.T) {
		f := newReportFixture(t)
		f.settings.settings.AdminEmail = ""

		err := f.svc.ProcessReportTask(context.Background(), &ReportTask{Month: 3, Year: 2024, Send: true})
		assert.ErrorIs(t, err, asynq.SkipRetry)
		assert.ErrorIs(t, err, ErrAdminEmailNotConfigured)
	})

	t.Run("transport failure is retried", func(t *testing.T) {
		f := newReportFixture(t)
		f.sender.On("Send", mock.Anything, mock.Anything).Return(errors.New("421 try later")).Once()

		err := f.svc.ProcessReportTask(context.Background(), &ReportTask{Month: 3, Year: 2024, Send: true})
		require.Error(t, err)
		assert.NotErrorIs(t, err, asynq.SkipRetry)
		assert.ErrorContains(t, err, "421 try later")
	})

	t.Run("retry keeps the period resolved at enqueue", func(t *testing.T) {
		f := newReportFixture(t)
		f.clock = time.Date(2024, time.February, 28, 23, 0, 0, 0, time.UTC)

		month, year, err := f.svc.ResolvePeriod(0, 0)
		require.NoError(t, err)
		task := &ReportTask{RequestID: "r2", Month: month, Year: year, StaffID: 1}

		f.clock = time.Date(2024, time.March, 1, 0, 30, 0, 0, time.UTC)
		require.NoError(t, f.svc.ProcessReportTask(context.Background(), task))

		require.Len(t, f.hours.queries, 1)
		assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), f.hours.queries[0].start)
		assert.NotNil(t, f.reports.get(1, 1, 2024))
		assert.Nil(t, f.reports.get(1, 2, 2024))
	})
}

func TestMonthlyReportService_ResolvePeriod(t *testing.T) {
	f := newReportFixture(t)
	f.clock = time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)

	month, year, err := f.svc.ResolvePeriod(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 12, month)
	assert.Equal(t, 2023, year)

	month, year, err = f.svc.ResolvePeriod(6, 0)
	require.NoError(t, err)
	assert.Equal(t, 6, month)
	assert.Equal(t, 2024, year)

	_, _, err = f.svc.ResolvePeriod(13, 2024)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}
