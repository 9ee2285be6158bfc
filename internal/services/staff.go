package services

import (
	"context"
	"strings"

	"github.com/tuitionhub/backend/internal/models"
	"github.com/tuitionhub/backend/internal/repository"
)

type StaffService struct {
	repo *repository.StaffRepository
}

func NewStaffService(repo *repository.StaffRepository) *StaffService {
	return &StaffService{repo: repo}
}

type StaffListRequest struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	Keyword  string `form:"keyword"`
	IsActive *bool  `form:"is_active"`
}

type StaffListResponse struct {
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Items    []models.Staff `json:"items"`
}

func (s *StaffService) List(ctx context.Context, req *StaffListRequest) (*StaffListResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}

	items, total, err := s.repo.List(ctx, repository.StaffFilter{
		Page:     req.Page,
		PageSize: req.PageSize,
		Keyword:  strings.TrimSpace(req.Keyword),
		IsActive: req.IsActive,
	})
	if err != nil {
		return nil, err
	}
	return &StaffListResponse{Total: total, Page: req.Page, PageSize: req.PageSize, Items: items}, nil
}

func (s *StaffService) GetByID(ctx context.Context, id uint) (*models.Staff, error) {
	return s.repo.Get(ctx, id)
}

type CreateStaffRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"omitempty,email"`
	Phone    string `json:"phone"`
	Subjects string `json:"subjects"`
	// Username and Password optionally create a staff login for self-service hour logging.
	Username string `json:"username"`
	Password string `json:"password" binding:"omitempty,min=6"`
}

func (s *StaffService) Create(ctx context.Context, req *CreateStaffRequest) (*models.Staff, error) {
	staff := &models.Staff{
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.TrimSpace(req.Email),
		Phone:    strings.TrimSpace(req.Phone),
		Subjects: strings.TrimSpace(req.Subjects),
		IsActive: true,
	}
	if err := s.repo.Create(ctx, staff); err != nil {
		return nil, err
	}
	return staff, nil
}

type UpdateStaffRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Phone    *string `json:"phone"`
	Subjects *string `json:"subjects"`
	IsActive *bool   `json:"is_active"`
}

func (s *StaffService) Update(ctx context.Context, id uint, req *UpdateStaffRequest) (*models.Staff, error) {
	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		updates["email"] = strings.TrimSpace(*req.Email)
	}
	if req.Phone != nil {
		updates["phone"] = strings.TrimSpace(*req.Phone)
	}
	if req.Subjects != nil {
		updates["subjects"] = strings.TrimSpace(*req.Subjects)
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	return s.repo.Update(ctx, id, updates)
}

// Delete soft-deletes the staff record and disables its login. Stored reports
// keep their snapshot.
func (s *StaffService) Delete(ctx context.Context, id uint) error {
	return s.repo.Delete(ctx, id)
}
