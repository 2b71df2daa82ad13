package domain

import (
	"time"

	"github.com/google/uuid"
)

// Proposal — предложение изменений в project (PR-workflow).
//
// Proposal позволяет:
// - Создать черновик новой спецификации project
// - Проверить его dry-run'ом перед применением
// - Получить одобрение (review)
// - Применить изменения (создать новую версию project)
//
// Жизненный цикл:
//
//	DRAFT → PENDING_REVIEW → APPROVED → APPLIED
//	                       ↘ REJECTED
type Proposal struct {
	// ID — уникальный идентификатор proposal.
	ID uuid.UUID `json:"id"`

	// ProjectID — ссылка на project, который изменяем.
	ProjectID uuid.UUID `json:"project_id"`

	// BaseVersion — версия project, от которой отталкиваемся.
	// Nil, если это первая версия (project ещё без версий).
	BaseVersion *int `json:"base_version,omitempty"`

	// ProposedSpec — предлагаемая спецификация.
	ProposedSpec ProjectSpec `json:"proposed_spec"`

	// Status — текущий статус proposal.
	Status ProposalStatus `json:"status"`

	// Title — заголовок изменений.
	Title string `json:"title,omitempty"`

	// Description — описание изменений.
	Description string `json:"description,omitempty"`

	// CreatedBy — кто создал proposal.
	CreatedBy string `json:"created_by,omitempty"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updated_at"`

	// --- Review ---

	// ReviewedBy — кто провёл review.
	ReviewedBy string `json:"reviewed_by,omitempty"`

	// ReviewedAt — время review.
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`

	// ReviewComment — комментарий к review.
	ReviewComment string `json:"review_comment,omitempty"`

	// --- Dry-run ---

	// DryRunID — ID проверочного run для предлагаемой спецификации.
	DryRunID *uuid.UUID `json:"dry_run_id,omitempty"`

	// DryRunResult — результат проверочного запуска.
	DryRunResult *DryRunResult `json:"dry_run_result,omitempty"`

	// --- Applied ---

	// AppliedVersion — версия project, созданная при применении.
	AppliedVersion *int `json:"applied_version,omitempty"`

	// AppliedAt — время применения.
	AppliedAt *time.Time `json:"applied_at,omitempty"`
}

// DryRunResult — результат проверочного выполнения предлагаемой спецификации.
type DryRunResult struct {
	// RunID — ID dry-run.
	RunID uuid.UUID `json:"run_id"`

	// Status — итоговый статус.
	Status RunStatus `json:"status"`

	// StartedAt — время начала.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt — время завершения.
	FinishedAt time.Time `json:"finished_at"`

	// Items — результаты по каждому элементу.
	Items []ItemResult `json:"items"`

	// Summary — сводка по результатам.
	Summary DryRunSummary `json:"summary"`
}

// ItemResult — результат выполнения элемента в dry-run.
type ItemResult struct {
	// ItemName — имя элемента.
	ItemName string `json:"item_name"`

	// Status — статус выполнения.
	Status TaskStatus `json:"status"`

	// DurationMs — продолжительность выполнения.
	DurationMs int64 `json:"duration_ms"`

	// Resources — ресурсы, которые элемент произвёл бы.
	Resources []Resource `json:"resources,omitempty"`

	// Error — ошибка, если элемент упал.
	Error string `json:"error,omitempty"`
}

// DryRunSummary — сводка по dry-run.
type DryRunSummary struct {
	// TotalItems — общее количество элементов.
	TotalItems int `json:"total_items"`

	// Succeeded — количество успешных.
	Succeeded int `json:"succeeded"`

	// Failed — количество упавших.
	Failed int `json:"failed"`

	// Skipped — количество пропущенных.
	Skipped int `json:"skipped"`
}

// CanEdit возвращает true, если proposal можно редактировать.
func (p *Proposal) CanEdit() bool {
	return p.Status == ProposalStatusDraft
}

// CanSubmit возвращает true, если proposal можно отправить на review.
func (p *Proposal) CanSubmit() bool {
	return p.Status == ProposalStatusDraft
}

// CanApply возвращает true, если proposal можно применить.
func (p *Proposal) CanApply() bool {
	return p.Status == ProposalStatusApproved
}

// Submit отправляет proposal на review.
func (p *Proposal) Submit() {
	p.Status = ProposalStatusPendingReview
	p.UpdatedAt = time.Now()
}

// Approve одобряет proposal.
func (p *Proposal) Approve(reviewer, comment string) {
	now := time.Now()
	p.Status = ProposalStatusApproved
	p.ReviewedBy = reviewer
	p.ReviewedAt = &now
	p.ReviewComment = comment
	p.UpdatedAt = now
}

// Reject отклоняет proposal.
func (p *Proposal) Reject(reviewer, comment string) {
	now := time.Now()
	p.Status = ProposalStatusRejected
	p.ReviewedBy = reviewer
	p.ReviewedAt = &now
	p.ReviewComment = comment
	p.UpdatedAt = now
}

// MarkApplied отмечает proposal как применённый.
func (p *Proposal) MarkApplied(version int) {
	now := time.Now()
	p.Status = ProposalStatusApplied
	p.AppliedVersion = &version
	p.AppliedAt = &now
	p.UpdatedAt = now
}
