package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tuitionhub/backend/internal/models"
	"github.com/tuitionhub/backend/internal/repository"
)

var (
	ErrInvalidTeachingHour = errors.New("invalid teaching hour")
	ErrForbidden           = errors.New("not allowed for this user")
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID  uint
	Role    string
	StaffID *uint
}

func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

type TeachingHourService struct {
	repo  *repository.TeachingHourRepository
	staff *repository.StaffRepository
	loc   *time.Location
}

func NewTeachingHourService(repo *repository.TeachingHourRepository, staff *repository.StaffRepository, loc *time.Location) *TeachingHourService {
	if loc == nil {
		loc = time.Local
	}
	return &TeachingHourService{repo: repo, staff: staff, loc: loc}
}

type CreateTeachingHourRequest struct {
	StaffID     uint    `json:"staff_id"`
	Date        string  `json:"date" binding:"required"` // YYYY-MM-DD or RFC3339
	Hours       float64 `json:"hours" binding:"required"`
	Subject     string  `json:"subject" binding:"required"`
	Course      *string `json:"course"`
	Description string  `json:"description"`
}

// parseTeachingDate reads a plain date as midnight in the report zone.
func (s *TeachingHourService) parseTeachingDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.ParseInLocation("2006-01-02", value, s.loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidTeachingHour, value)
}

// Create logs hours. Staff users always log for themselves; admins must name the staff.
func (s *TeachingHourService) Create(ctx context.Context, actor Actor, req *CreateTeachingHourRequest) (*models.TeachingHour, error) {
	staffID := req.StaffID
	if !actor.IsAdmin() {
		if actor.StaffID == nil {
			return nil, ErrForbidden
		}
		staffID = *actor.StaffID
	}
	if staffID == 0 {
		return nil, fmt.Errorf("%w: staff_id is required", ErrInvalidTeachingHour)
	}
	if req.Hours <= 0 || req.Hours > 24 {
		return nil, fmt.Errorf("%w: hours must be in (0, 24]", ErrInvalidTeachingHour)
	}
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return nil, fmt.Errorf("%w: subject is required", ErrInvalidTeachingHour)
	}

	date, err := s.parseTeachingDate(req.Date)
	if err != nil {
		return nil, err
	}

	if _, err := s.staff.Get(ctx, staffID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: id=%d", ErrStaffNotFound, staffID)
		}
		return nil, err
	}

	hour := &models.TeachingHour{
		StaffID:     staffID,
		Date:        date,
		Hours:       req.Hours,
		Subject:     subject,
		Course:      req.Course,
		Description: strings.TrimSpace(req.Description),
	}
	if err := s.repo.Create(ctx, hour); err != nil {
		return nil, err
	}
	return hour, nil
}

type TeachingHourListRequest struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	StaffID  uint   `form:"staff_id"`
	From     string `form:"from"` // YYYY-MM-DD, inclusive
	To       string `form:"to"`   // YYYY-MM-DD, inclusive
}

type TeachingHourListResponse struct {
	Total    int64                 `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
	Items    []models.TeachingHour `json:"items"`
}

// List restricts staff users to their own entries.
func (s *TeachingHourService) List(ctx context.Context, actor Actor, req *TeachingHourListRequest) (*TeachingHourListResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}

	filter := repository.TeachingHourFilter{Page: req.Page, PageSize: req.PageSize, StaffID: req.StaffID}
	if !actor.IsAdmin() {
		if actor.StaffID == nil {
			return nil, ErrForbidden
		}
		filter.StaffID = *actor.StaffID
	}
	if req.From != "" {
		from, err := time.ParseInLocation("2006-01-02", req.From, s.loc)
		if err != nil {
			return nil, fmt.Errorf("%w: from %q", ErrInvalidTeachingHour, req.From)
		}
		filter.From = &from
	}
	if req.To != "" {
		to, err := time.ParseInLocation("2006-01-02", req.To, s.loc)
		if err != nil {
			return nil, fmt.Errorf("%w: to %q", ErrInvalidTeachingHour, req.To)
		}
		end := to.AddDate(0, 0, 1).Add(-time.Millisecond)
		filter.To = &end
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &TeachingHourListResponse{Total: total, Page: req.Page, PageSize: req.PageSize, Items: items}, nil
}

func (s *TeachingHourService) Delete(ctx context.Context, id uint) error {
	return s.repo.Delete(ctx, id)
}
