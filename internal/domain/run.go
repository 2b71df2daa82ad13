package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run — экземпляр выполнения project.
//
// Run создаётся когда:
// - Пользователь запускает project вручную (через API/CLI)
// - Scheduler создаёт run по расписанию
// - Proposal запускает dry-run для проверки изменений
//
// Каждый run выполняет конкретную версию project и имеет свой набор tasks.
type Run struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// ProjectID — ссылка на project, который выполняется.
	ProjectID uuid.UUID `json:"project_id"`

	// Version — версия project, которая выполняется.
	Version int `json:"version"`

	// Status — текущий статус выполнения.
	Status RunStatus `json:"status"`

	// Inputs — входные параметры, переданные при запуске.
	// Соответствуют ProjectSpec.Inputs.
	Inputs map[string]any `json:"inputs,omitempty"`

	// SelectedItems — имена элементов для выборочного выполнения.
	// Пустой список — выполняются все элементы.
	// Невыбранные элементы пропускаются, но их статические ресурсы
	// всё равно передаются потомкам.
	SelectedItems []string `json:"selected_items,omitempty"`

	// StartedAt — время начала выполнения (когда статус стал RUNNING).
	// Nil, если run ещё не начался.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения (успешного или с ошибкой).
	// Nil, если run ещё выполняется.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — текст ошибки, если run завершился с FAILED.
	Error string `json:"error,omitempty"`

	// IdempotencyKey — ключ идемпотентности для предотвращения дубликатов.
	// Например, для scheduled runs: "{schedule_id}_{next_due_at}"
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	// IsDryRun — флаг проверочного запуска (для proposals).
	// Dry-run строит DAG и рендерит конфигурации, но элементы
	// выполняются в проверочном режиме без побочных эффектов.
	IsDryRun bool `json:"is_dry_run,omitempty"`

	// CreatedAt — время создания run.
	CreatedAt time.Time `json:"created_at"`
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если run завершён (в любом статусе).
func (r *Run) IsFinished() bool {
	return r.Status.IsTerminal()
}

// IsItemSelected проверяет, входит ли элемент в выборку.
// При пустой выборке выбраны все элементы.
func (r *Run) IsItemSelected(name string) bool {
	if len(r.SelectedItems) == 0 {
		return true
	}
	for _, sel := range r.SelectedItems {
		if sel == name {
			return true
		}
	}
	return false
}

// MarkRunning переводит run в статус RUNNING.
func (r *Run) MarkRunning() {
	now := time.Now()
	r.Status = RunStatusRunning
	r.StartedAt = &now
}

// MarkSucceeded переводит run в статус SUCCEEDED.
func (r *Run) MarkSucceeded() {
	now := time.Now()
	r.Status = RunStatusSucceeded
	r.FinishedAt = &now
}

// MarkFailed переводит run в статус FAILED с ошибкой.
func (r *Run) MarkFailed(err string) {
	now := time.Now()
	r.Status = RunStatusFailed
	r.FinishedAt = &now
	r.Error = err
}

// MarkCancelled переводит run в статус CANCELLED.
func (r *Run) MarkCancelled() {
	now := time.Now()
	r.Status = RunStatusCancelled
	r.FinishedAt = &now
}
