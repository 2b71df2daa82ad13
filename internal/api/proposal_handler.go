package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/avdonin/Conveyor/internal/domain"
	"github.com/avdonin/Conveyor/internal/engine"
	"github.com/avdonin/Conveyor/internal/repo"
)

// ListProposals возвращает список proposals с фильтрацией.
// GET /api/v1/proposals?project_id=...&status=...&limit=...&offset=...
func (h *Handler) ListProposals(w http.ResponseWriter, r *http.Request) {
	filter := repo.ProposalFilter{}

	if projectIDStr := r.URL.Query().Get("project_id"); projectIDStr != "" {
		projectID, err := uuid.Parse(projectIDStr)
		if err != nil {
			BadRequest(w, "invalid project_id")
			return
		}
		filter.ProjectID = &projectID
	}

	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status := domain.ParseProposalStatus(statusStr)
		filter.Status = &status
	}

	filter.Limit = queryInt(r, "limit", 50)
	filter.Offset = queryInt(r, "offset", 0)

	proposals, err := h.proposalRepo.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ProposalResponse, len(proposals))
	for i := range proposals {
		result[i] = ProposalFromDomain(&proposals[i])
	}

	List(w, result, len(result))
}

// CreateProposal создаёт черновик изменения спецификации project.
// POST /api/v1/projects/{id}/proposals
func (h *Handler) CreateProposal(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid project id")
		return
	}

	var req CreateProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	// Проверяем, что project существует
	_, err = h.projectRepo.GetByID(r.Context(), projectID)
	if HandleRepoError(w, h.logger, err, "project not found") {
		return
	}

	// Базовая версия — последняя на момент создания черновика
	var baseVersion *int
	if latest, err := h.projectRepo.GetLatestVersion(r.Context(), projectID); err == nil {
		baseVersion = &latest.Version
	}

	now := time.Now()
	proposal := &domain.Proposal{
		ID:           uuid.New(),
		ProjectID:    projectID,
		BaseVersion:  baseVersion,
		ProposedSpec: req.ProposedSpec,
		Status:       domain.ProposalStatusDraft,
		Title:        req.Title,
		Description:  req.Description,
		CreatedBy:    req.CreatedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.proposalRepo.Create(r.Context(), proposal); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, ProposalFromDomain(proposal))
}

// GetProposal возвращает proposal по ID.
// GET /api/v1/proposals/{id}
func (h *Handler) GetProposal(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid proposal id")
		return
	}

	proposal, err := h.proposalRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "proposal not found") {
		return
	}

	Success(w, ProposalFromDomain(proposal))
}

// UpdateProposal обновляет черновик proposal.
// PUT /api/v1/proposals/{id}
func (h *Handler) UpdateProposal(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid proposal id")
		return
	}

	var req UpdateProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	proposal, err := h.proposalRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "proposal not found") {
		return
	}

	if !proposal.CanEdit() {
		InvalidState(w, "only DRAFT proposals can be edited")
		return
	}

	if req.Title != nil {
		proposal.Title = *req.Title
	}
	if req.Description != nil {
		proposal.Description = *req.Description
	}
	if req.ProposedSpec != nil {
		proposal.ProposedSpec = *req.ProposedSpec
		// Новая спецификация — прошлый dry-run результат неактуален
		proposal.DryRunID = nil
		proposal.DryRunResult = nil
	}
	proposal.UpdatedAt = time.Now()

	if err := h.proposalRepo.Update(r.Context(), proposal); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, ProposalFromDomain(proposal))
}

// DeleteProposal удаляет proposal.
// DELETE /api/v1/proposals/{id}
func (h *Handler) DeleteProposal(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid proposal id")
		return
	}

	if err := h.proposalRepo.Delete(r.Context(), id); err != nil {
		if HandleRepoError(w, h.logger, err, "proposal not found") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	NoContent(w)
}

// SubmitProposal отправляет proposal на review.
// Перед отправкой спецификация валидируется.
// POST /api/v1/proposals/{id}/submit
func (h *Handler) SubmitProposal(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid proposal id")
		return
	}

	proposal, err := h.proposalRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "proposal not found") {
		return
	}

	if err := engine.Validate(&proposal.ProposedSpec); err != nil {
		BadRequest(w, err.Error())
		return
	}
	if _, err := engine.BuildGraph(&proposal.ProposedSpec); err != nil {
		BadRequest(w, err.Error())
		return
	}

	if err := h.proposalRepo.Submit(r.Context(), id); err != nil {
		if HandleRepoError(w, h.logger, err, "proposal not found") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	h.respondWithProposal(w, r, id)
}

// ApproveProposal одобряет proposal.
// POST /api/v1/proposals/{id}/approve
func (h *Handler) ApproveProposal(w http.ResponseWriter, r *http.Request) {
	h.reviewProposal(w, r, h.proposalRepo.Approve)
}

// RejectProposal отклоняет proposal.
// POST /api/v1/proposals/{id}/reject
func (h *Handler) RejectProposal(w http.ResponseWriter, r *http.Request) {
	h.reviewProposal(w, r, h.proposalRepo.Reject)
}

// reviewProposal — общая часть approve/reject.
func (h *Handler) reviewProposal(w http.ResponseWriter, r *http.Request, review func(ctx context.Context, id uuid.UUID, reviewer, comment string) error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid proposal id")
		return
	}

	var req ReviewProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Reviewer == "" {
		BadRequest(w, "reviewer is required")
		return
	}

	if err := review(r.Context(), id, req.Reviewer, req.Comment); err != nil {
		if HandleRepoError(w, h.logger, err, "proposal not found") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	h.respondWithProposal(w, r, id)
}

// DryRunProposal выполняет проверочный запуск предлагаемой спецификации.
//
// Проверка выполняется синхронно без workers: обход графа в
// топологическом порядке с рендерингом условий и конфигураций,
// элементы "производят" статические ресурсы. Для аудита создаётся
// завершённый run с флагом is_dry_run.
// POST /api/v1/proposals/{id}/dry-run
func (h *Handler) DryRunProposal(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid proposal id")
		return
	}

	var req DryRunProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "invalid request body")
		return
	}

	proposal, err := h.proposalRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "proposal not found") {
		return
	}

	startedAt := time.Now()
	items, summary, err := engine.DryRun(&proposal.ProposedSpec, req.Inputs)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	finishedAt := time.Now()

	status := domain.RunStatusSucceeded
	var runErr string
	if summary.Failed > 0 {
		status = domain.RunStatusFailed
		runErr = "dry run detected failing items"
	}

	// Run-запись для аудита: сразу завершённая
	baseVersion := 0
	if proposal.BaseVersion != nil {
		baseVersion = *proposal.BaseVersion
	}
	run := &domain.Run{
		ID:         uuid.New(),
		ProjectID:  proposal.ProjectID,
		Version:    baseVersion,
		Status:     status,
		Inputs:     req.Inputs,
		StartedAt:  &startedAt,
		FinishedAt: &finishedAt,
		Error:      runErr,
		IsDryRun:   true,
	}
	if err := h.runRepo.Create(r.Context(), run); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	result := &domain.DryRunResult{
		RunID:      run.ID,
		Status:     status,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Items:      items,
		Summary:    summary,
	}

	if err := h.proposalRepo.SetDryRunResult(r.Context(), id, run.ID, result); err != nil {
		if HandleRepoError(w, h.logger, err, "proposal not found") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	h.respondWithProposal(w, r, id)
}

// ApplyProposal применяет одобренный proposal: создаёт новую версию project.
// POST /api/v1/proposals/{id}/apply
func (h *Handler) ApplyProposal(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid proposal id")
		return
	}

	proposal, err := h.proposalRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "proposal not found") {
		return
	}

	if !proposal.CanApply() {
		InvalidState(w, "only APPROVED proposals can be applied")
		return
	}

	version, err := h.projectRepo.CreateVersion(r.Context(), proposal.ProjectID, proposal.ProposedSpec)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	if err := h.proposalRepo.MarkApplied(r.Context(), id, version.Version); err != nil {
		if HandleRepoError(w, h.logger, err, "proposal not found") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	h.respondWithProposal(w, r, id)
}

// respondWithProposal возвращает актуальное состояние proposal.
func (h *Handler) respondWithProposal(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	proposal, err := h.proposalRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "proposal not found") {
		return
	}
	Success(w, ProposalFromDomain(proposal))
}
