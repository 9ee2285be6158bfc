package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/tuitionhub/backend/internal/config"
	"github.com/tuitionhub/backend/internal/middleware"
	"github.com/tuitionhub/backend/internal/models"
	"github.com/tuitionhub/backend/internal/repository"
	"github.com/tuitionhub/backend/internal/services"
	"github.com/tuitionhub/backend/internal/utils"
	"github.com/tuitionhub/backend/pkg/response"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingSender struct {
	mu       sync.Mutex
	messages []*services.EmailMessage
	err      error
}

func (s *recordingSender) Send(_ context.Context, msg *services.EmailMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, msg)
	return nil
}

type fakeQueue struct {
	async bool
	tasks []*services.ReportTask
	err   error
}

func (q *fakeQueue) Enqueue(task *services.ReportTask) error {
	if q.err != nil {
		return q.err
	}
	if task.RequestID == "" {
		task.RequestID = uuid.NewString()
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *fakeQueue) IsAsync() bool { return q.async }
func (q *fakeQueue) Close() error  { return nil }

type scheduleSpy struct{ calls int }

func (s *scheduleSpy) UpdateSchedule() { s.calls++ }

type testEnv struct {
	db        *gorm.DB
	router    *gin.Engine
	auth      *services.AuthService
	sender    *recordingSender
	queue     *fakeQueue
	scheduler *scheduleSpy
	settings  *services.SystemConfigService
	hours     *repository.TeachingHourRepository
	staff     *repository.StaffRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := models.Open(&config.DatabaseConfig{Driver: "sqlite", DSN: dsn}, logger.Silent)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, models.Migrate(db))
	require.NoError(t, models.Seed(db))

	utils.SetJWTSecret("handler-test-secret")
	jwtCfg := &config.JWTConfig{Secret: "handler-test-secret", ExpireHour: 1}
	reportCfg := &config.ReportConfig{Timezone: "UTC", OperationTimeout: 5 * time.Second}

	env := &testEnv{
		db:        db,
		auth:      services.NewAuthService(db, jwtCfg),
		sender:    &recordingSender{},
		queue:     &fakeQueue{},
		scheduler: &scheduleSpy{},
		settings:  services.NewSystemConfigService(db),
		hours:     repository.NewTeachingHourRepository(db),
		staff:     repository.NewStaffRepository(db),
	}
	require.NoError(t, env.auth.CreateAdminIfNotExists(context.Background()))

	reports := services.NewMonthlyReportService(env.staff, env.hours, repository.NewMonthlyReportRepository(db),
		env.settings, env.sender, nil, reportCfg)

	authHandler := NewAuthHandler(env.auth)
	staffHandler := NewStaffHandler(services.NewStaffService(env.staff), env.auth)
	hourHandler := NewTeachingHourHandler(services.NewTeachingHourService(env.hours, env.staff, time.UTC), env.auth)
	reportHandler := NewMonthlyReportHandler(reports, env.queue)
	configHandler := NewSystemConfigHandler(env.settings, services.NewHolidayService(), env.scheduler)
	logHandler := NewSystemLogHandler(services.NewSystemLogService(db))

	r := gin.New()
	r.GET("/health", NewHealthHandler(db, env.queue).CheckHealth)
	api := r.Group("/api")
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("", middleware.AuthRequired())
	authed.GET("/auth/me", authHandler.GetCurrentUser)
	authed.PUT("/auth/password", authHandler.ChangePassword)
	authed.POST("/teaching-hours", hourHandler.Create)
	authed.GET("/teaching-hours", hourHandler.List)

	admin := authed.Group("", middleware.AdminRequired())
	admin.GET("/staff", staffHandler.List)
	admin.POST("/staff", staffHandler.Create)
	admin.GET("/staff/:id", staffHandler.Get)
	admin.PUT("/staff/:id", staffHandler.Update)
	admin.DELETE("/staff/:id", staffHandler.Delete)
	admin.DELETE("/teaching-hours/:id", hourHandler.Delete)
	admin.GET("/monthly-reports", reportHandler.List)
	admin.GET("/monthly-reports/:id", reportHandler.Get)
	admin.POST("/monthly-reports/generate", reportHandler.Generate)
	admin.POST("/monthly-reports/send", reportHandler.Send)
	admin.GET("/system-config/email", configHandler.GetEmailSettings)
	admin.PUT("/system-config/email", configHandler.UpdateEmailSettings)
	admin.GET("/system-config/monthly-report", configHandler.GetMonthlyReportConfig)
	admin.PUT("/system-config/monthly-report", configHandler.UpdateMonthlyReportConfig)
	admin.GET("/system-config/holiday-countries", configHandler.GetHolidayCountries)
	admin.GET("/system-logs", logHandler.List)
	admin.GET("/system-logs/modules", logHandler.GetModules)

	env.router = r
	return env
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	resp, err := e.auth.Login(context.Background(), &services.LoginRequest{Username: username, Password: password})
	require.NoError(t, err)
	return resp.Token
}

func (e *testEnv) adminToken(t *testing.T) string {
	return e.login(t, "admin", "admin")
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// decode unwraps the envelope and decodes data into out when non-nil.
func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) response.Response {
	t.Helper()

	var env struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Data, out), string(env.Data))
	}
	return response.Response{Code: env.Code, Message: env.Message}
}
