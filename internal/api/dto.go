package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/avdonin/Conveyor/internal/domain"
)

// Project DTOs

// CreateProjectRequest — запрос на создание project.
type CreateProjectRequest struct {
	Name string `json:"name"`
}

// UpdateProjectRequest — запрос на обновление project.
type UpdateProjectRequest struct {
	Name     *string `json:"name,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// ProjectResponse — ответ с project.
type ProjectResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// ProjectFromDomain конвертирует domain.Project в ProjectResponse.
func ProjectFromDomain(p domain.Project) ProjectResponse {
	return ProjectResponse{
		ID:        p.ID,
		Name:      p.Name,
		IsActive:  p.IsActive,
		CreatedAt: p.CreatedAt,
	}
}

// ProjectVersion DTOs

// CreateProjectVersionRequest — запрос на создание версии project.
type CreateProjectVersionRequest struct {
	Spec domain.ProjectSpec `json:"spec"`
}

// ProjectVersionResponse — ответ с версией project.
type ProjectVersionResponse struct {
	ProjectID uuid.UUID          `json:"project_id"`
	Version   int                `json:"version"`
	Spec      domain.ProjectSpec `json:"spec"`
	CreatedAt time.Time          `json:"created_at"`
}

// ProjectVersionFromDomain конвертирует domain.ProjectVersion в ProjectVersionResponse.
func ProjectVersionFromDomain(v domain.ProjectVersion) ProjectVersionResponse {
	return ProjectVersionResponse{
		ProjectID: v.ProjectID,
		Version:   v.Version,
		Spec:      v.Spec,
		CreatedAt: v.CreatedAt,
	}
}

// Run DTOs

// CreateRunRequest — запрос на создание run.
type CreateRunRequest struct {
	Inputs         map[string]any `json:"inputs,omitempty"`
	Version        *int           `json:"version,omitempty"`
	SelectedItems  []string       `json:"selected_items,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
	IsDryRun       bool           `json:"is_dry_run,omitempty"`
}

// RunResponse — ответ с run.
type RunResponse struct {
	ID             uuid.UUID      `json:"id"`
	ProjectID      uuid.UUID      `json:"project_id"`
	Version        int            `json:"version"`
	Status         string         `json:"status"`
	Inputs         map[string]any `json:"inputs,omitempty"`
	SelectedItems  []string       `json:"selected_items,omitempty"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	FinishedAt     *time.Time     `json:"finished_at,omitempty"`
	Error          string         `json:"error,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
	IsDryRun       bool           `json:"is_dry_run"`
	CreatedAt      time.Time      `json:"created_at"`
}

// RunFromDomain конвертирует domain.Run в RunResponse.
func RunFromDomain(r domain.Run) RunResponse {
	return RunResponse{
		ID:             r.ID,
		ProjectID:      r.ProjectID,
		Version:        r.Version,
		Status:         string(r.Status),
		Inputs:         r.Inputs,
		SelectedItems:  r.SelectedItems,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		Error:          r.Error,
		IdempotencyKey: r.IdempotencyKey,
		IsDryRun:       r.IsDryRun,
		CreatedAt:      r.CreatedAt,
	}
}

// Task DTOs

// TaskResponse — ответ с task.
type TaskResponse struct {
	ID                uuid.UUID         `json:"id"`
	RunID             uuid.UUID         `json:"run_id"`
	ItemName          string            `json:"item_name"`
	Type              string            `json:"type"`
	Attempt           int               `json:"attempt"`
	Status            string            `json:"status"`
	Payload           map[string]any    `json:"payload,omitempty"`
	ForwardResources  []domain.Resource `json:"forward_resources,omitempty"`
	BackwardResources []domain.Resource `json:"backward_resources,omitempty"`
	Outputs           map[string]any    `json:"outputs,omitempty"`
	Resources         []domain.Resource `json:"resources,omitempty"`
	StartedAt         *time.Time        `json:"started_at,omitempty"`
	FinishedAt        *time.Time        `json:"finished_at,omitempty"`
	Error             string            `json:"error,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

// TaskFromDomain конвертирует domain.Task в TaskResponse.
func TaskFromDomain(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:                t.ID,
		RunID:             t.RunID,
		ItemName:          t.ItemName,
		Type:              t.Type,
		Attempt:           t.Attempt,
		Status:            string(t.Status),
		Payload:           t.Payload,
		ForwardResources:  t.ForwardResources,
		BackwardResources: t.BackwardResources,
		Outputs:           t.Outputs,
		Resources:         t.Resources,
		StartedAt:         t.StartedAt,
		FinishedAt:        t.FinishedAt,
		Error:             t.Error,
		CreatedAt:         t.CreatedAt,
	}
}

// Schedule DTOs

// CreateScheduleRequest — запрос на создание schedule.
type CreateScheduleRequest struct {
	Name        string         `json:"name"`
	CronExpr    string         `json:"cron_expr,omitempty"`
	IntervalSec int            `json:"interval_sec,omitempty"`
	Timezone    string         `json:"timezone,omitempty"`
	Enabled     bool           `json:"enabled"`
	Inputs      map[string]any `json:"inputs,omitempty"`
}

// UpdateScheduleRequest — запрос на обновление schedule.
type UpdateScheduleRequest struct {
	Name        *string         `json:"name,omitempty"`
	CronExpr    *string         `json:"cron_expr,omitempty"`
	IntervalSec *int            `json:"interval_sec,omitempty"`
	Timezone    *string         `json:"timezone,omitempty"`
	Inputs      *map[string]any `json:"inputs,omitempty"`
}

// SetEnabledRequest — запрос на включение/выключение.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// ScheduleResponse — ответ с schedule.
type ScheduleResponse struct {
	ID          uuid.UUID      `json:"id"`
	ProjectID   uuid.UUID      `json:"project_id"`
	Name        string         `json:"name"`
	CronExpr    string         `json:"cron_expr,omitempty"`
	IntervalSec int            `json:"interval_sec,omitempty"`
	Timezone    string         `json:"timezone"`
	Enabled     bool           `json:"enabled"`
	NextDueAt   *time.Time     `json:"next_due_at,omitempty"`
	LastRunAt   *time.Time     `json:"last_run_at,omitempty"`
	LastRunID   *uuid.UUID     `json:"last_run_id,omitempty"`
	Inputs      map[string]any `json:"inputs,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ScheduleFromDomain конвертирует domain.Schedule в ScheduleResponse.
func ScheduleFromDomain(s *domain.Schedule) ScheduleResponse {
	if s == nil {
		return ScheduleResponse{}
	}
	return ScheduleResponse{
		ID:          s.ID,
		ProjectID:   s.ProjectID,
		Name:        s.Name,
		CronExpr:    s.CronExpr,
		IntervalSec: s.IntervalSec,
		Timezone:    s.Timezone,
		Enabled:     s.Enabled,
		NextDueAt:   s.NextDueAt,
		LastRunAt:   s.LastRunAt,
		LastRunID:   s.LastRunID,
		Inputs:      s.Inputs,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

// Proposal DTOs

// CreateProposalRequest — запрос на создание proposal.
type CreateProposalRequest struct {
	Title        string             `json:"title,omitempty"`
	Description  string             `json:"description,omitempty"`
	ProposedSpec domain.ProjectSpec `json:"proposed_spec"`
	CreatedBy    string             `json:"created_by,omitempty"`
}

// UpdateProposalRequest — запрос на обновление черновика proposal.
type UpdateProposalRequest struct {
	Title        *string             `json:"title,omitempty"`
	Description  *string             `json:"description,omitempty"`
	ProposedSpec *domain.ProjectSpec `json:"proposed_spec,omitempty"`
}

// ReviewProposalRequest — запрос на approve/reject.
type ReviewProposalRequest struct {
	Reviewer string `json:"reviewer"`
	Comment  string `json:"comment,omitempty"`
}

// DryRunProposalRequest — запрос на проверочный запуск proposal.
type DryRunProposalRequest struct {
	Inputs map[string]any `json:"inputs,omitempty"`
}

// ProposalResponse — ответ с proposal.
type ProposalResponse struct {
	ID             uuid.UUID            `json:"id"`
	ProjectID      uuid.UUID            `json:"project_id"`
	BaseVersion    *int                 `json:"base_version,omitempty"`
	ProposedSpec   domain.ProjectSpec   `json:"proposed_spec"`
	Status         string               `json:"status"`
	Title          string               `json:"title,omitempty"`
	Description    string               `json:"description,omitempty"`
	CreatedBy      string               `json:"created_by,omitempty"`
	ReviewedBy     string               `json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time           `json:"reviewed_at,omitempty"`
	ReviewComment  string               `json:"review_comment,omitempty"`
	DryRunID       *uuid.UUID           `json:"dry_run_id,omitempty"`
	DryRunResult   *domain.DryRunResult `json:"dry_run_result,omitempty"`
	AppliedVersion *int                 `json:"applied_version,omitempty"`
	AppliedAt      *time.Time           `json:"applied_at,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// ProposalFromDomain конвертирует domain.Proposal в ProposalResponse.
func ProposalFromDomain(p *domain.Proposal) ProposalResponse {
	if p == nil {
		return ProposalResponse{}
	}
	return ProposalResponse{
		ID:             p.ID,
		ProjectID:      p.ProjectID,
		BaseVersion:    p.BaseVersion,
		ProposedSpec:   p.ProposedSpec,
		Status:         string(p.Status),
		Title:          p.Title,
		Description:    p.Description,
		CreatedBy:      p.CreatedBy,
		ReviewedBy:     p.ReviewedBy,
		ReviewedAt:     p.ReviewedAt,
		ReviewComment:  p.ReviewComment,
		DryRunID:       p.DryRunID,
		DryRunResult:   p.DryRunResult,
		AppliedVersion: p.AppliedVersion,
		AppliedAt:      p.AppliedAt,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}
