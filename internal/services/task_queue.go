package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/tuitionhub/backend/internal/config"
	"github.com/tuitionhub/backend/pkg/logger"
)

const (
	TaskTypeReportGenerate = "report:generate"
)

// ReportTask is an admin-requested report run.
type ReportTask struct {
	RequestID   string `json:"request_id"`
	Month       int    `json:"month,omitempty"`
	Year        int    `json:"year,omitempty"`
	StaffID     uint   `json:"staff_id,omitempty"`
	Send        bool   `json:"send"`
	RequestedBy string `json:"requested_by,omitempty"`
}

// TaskQueue defines the interface for report task processing
type TaskQueue interface {
	// Enqueue adds a task to the queue
	Enqueue(task *ReportTask) error
	// IsAsync returns true if queue processes tasks asynchronously
	IsAsync() bool
	// Close gracefully shuts down the queue
	Close() error
}

// NewTaskQueue picks the asynq queue when Redis is enabled and reachable,
// otherwise the in-process queue.
func NewTaskQueue(cfg *config.Config, processor func(context.Context, *ReportTask) error) TaskQueue {
	if cfg.Redis.Enabled {
		queue, err := NewAsyncQueue(&cfg.Redis)
		if err != nil {
			logger.Warnf("[TaskQueue] Redis unavailable, falling back to sync mode: %v", err)
		} else {
			logger.Infof("[TaskQueue] Async queue initialized with Redis at %s", cfg.Redis.Addr)
			return queue
		}
	} else {
		logger.Infof("[TaskQueue] Sync queue initialized (Redis disabled)")
	}

	q := NewSyncQueue()
	q.SetProcessor(processor)
	return q
}

func redisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// AsyncQueue implements TaskQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	opt := redisOpt(cfg)
	client := asynq.NewClient(opt)

	inspector := asynq.NewInspector(opt)
	defer inspector.Close()

	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

func newReportTask(task *ReportTask) (*asynq.Task, error) {
	if task.RequestID == "" {
		task.RequestID = uuid.NewString()
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeReportGenerate, payload), nil
}

func (q *AsyncQueue) Enqueue(task *ReportTask) error {
	t, err := newReportTask(task)
	if err != nil {
		return err
	}

	info, err := q.client.Enqueue(t,
		asynq.Queue("default"),
		asynq.MaxRetry(3),
		asynq.TaskID(task.RequestID),
	)
	if err != nil {
		return err
	}

	logger.Infof("[AsyncQueue] Task enqueued: id=%s, queue=%s", info.ID, info.Queue)
	return nil
}

func (q *AsyncQueue) IsAsync() bool {
	return true
}

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue runs each task in the caller's goroutine.
type SyncQueue struct {
	processor func(context.Context, *ReportTask) error
}

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

func (q *SyncQueue) SetProcessor(processor func(context.Context, *ReportTask) error) {
	q.processor = processor
}

func (q *SyncQueue) Enqueue(task *ReportTask) error {
	if q.processor == nil {
		return errors.New("sync queue has no processor")
	}
	if task.RequestID == "" {
		task.RequestID = uuid.NewString()
	}
	return q.processor(context.Background(), task)
}

func (q *SyncQueue) IsAsync() bool {
	return false
}

func (q *SyncQueue) Close() error {
	return nil
}

// ProcessReportTask runs a queued task. Errors that a retry cannot fix skip
// the asynq retry budget.
func (s *MonthlyReportService) ProcessReportTask(ctx context.Context, task *ReportTask) error {
	logger.Infof("[MonthlyReport] Processing task %s: month=%d year=%d staff=%d send=%t by=%s",
		task.RequestID, task.Month, task.Year, task.StaffID, task.Send, task.RequestedBy)

	result, err := s.Run(ctx, TriggerQueued, GenerateOptions{
		Month:   task.Month,
		Year:    task.Year,
		StaffID: task.StaffID,
	}, task.Send)
	if err != nil {
		if errors.Is(err, ErrInvalidPeriod) || errors.Is(err, ErrStaffNotFound) {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	}

	if res := result.EmailResults; res != nil && !res.Success {
		if errors.Is(res.Err(), ErrAdminEmailNotConfigured) {
			return fmt.Errorf("send summary: %w: %w", res.Err(), asynq.SkipRetry)
		}
		return fmt.Errorf("send summary: %w", res.Err())
	}
	return nil
}
