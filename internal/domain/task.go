package domain

import (
	"time"

	"github.com/google/uuid"
)

// Task — выполнение одного элемента project внутри run.
//
// Task создаётся Orchestrator'ом когда:
// - Run стартует (для элементов без предшественников)
// - Все предшественники элемента завершились
//
// Task выполняется Worker'ом.
type Task struct {
	// ID — уникальный идентификатор task.
	ID uuid.UUID `json:"id"`

	// RunID — ссылка на родительский run.
	RunID uuid.UUID `json:"run_id"`

	// ItemName — имя элемента из ProjectSpec (соответствует ItemDef.Name).
	ItemName string `json:"item_name"`

	// Type — тип элемента: "data_store", "data_connection", "tool",
	// "importer", "exporter", "view".
	Type string `json:"type"`

	// Attempt — номер попытки (начиная с 1).
	// Увеличивается при retry.
	Attempt int `json:"attempt"`

	// Status — текущий статус task.
	Status TaskStatus `json:"status"`

	// Payload — входные данные для task: отрендеренная конфигурация элемента.
	// Это то, что Worker получает для выполнения.
	Payload map[string]any `json:"payload,omitempty"`

	// ForwardResources — ресурсы непосредственных предшественников
	// (с уже применёнными фильтрами связей).
	ForwardResources []Resource `json:"forward_resources,omitempty"`

	// BackwardResources — ресурсы, объявленные непосредственными потомками
	// (например, URL базы, в которую нужно писать).
	BackwardResources []Resource `json:"backward_resources,omitempty"`

	// Outputs — результаты выполнения task.
	// Заполняется Worker'ом после успешного выполнения.
	// Доступны потомкам через {{ .Items.X.Outputs.Y }}
	Outputs map[string]any `json:"outputs,omitempty"`

	// Resources — ресурсы, произведённые элементом.
	// Передаются потомкам как forward-ресурсы (после фильтров связей).
	Resources []Resource `json:"resources,omitempty"`

	// StartedAt — время начала выполнения.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — текст ошибки при неудаче.
	Error string `json:"error,omitempty"`

	// CreatedAt — время создания task.
	CreatedAt time.Time `json:"created_at"`
}

// Duration возвращает продолжительность выполнения.
func (t *Task) Duration() time.Duration {
	if t.StartedAt == nil || t.FinishedAt == nil {
		return 0
	}
	return t.FinishedAt.Sub(*t.StartedAt)
}

// IsFinished возвращает true, если task завершён.
func (t *Task) IsFinished() bool {
	return t.Status.IsTerminal()
}

// MarkRunning переводит task в статус RUNNING.
func (t *Task) MarkRunning() {
	now := time.Now()
	t.Status = TaskStatusRunning
	t.StartedAt = &now
	t.Attempt++
}

// MarkSucceeded переводит task в статус SUCCEEDED с результатами.
func (t *Task) MarkSucceeded(outputs map[string]any, resources []Resource) {
	now := time.Now()
	t.Status = TaskStatusSucceeded
	t.FinishedAt = &now
	t.Outputs = outputs
	t.Resources = resources
}

// MarkFailed переводит task в статус FAILED с ошибкой.
func (t *Task) MarkFailed(err string) {
	now := time.Now()
	t.Status = TaskStatusFailed
	t.FinishedAt = &now
	t.Error = err
}

// MarkSkipped переводит task в статус SKIPPED.
// Используется для невыбранных элементов и ложных условий:
// task завершается сразу, потомкам достаются только статические ресурсы элемента.
func (t *Task) MarkSkipped(reason string) {
	now := time.Now()
	t.Status = TaskStatusSkipped
	t.FinishedAt = &now
	t.Error = reason
}

// ResetForRetry подготавливает task для повторной попытки.
// Сбрасывает статус в QUEUED, очищает ошибку.
func (t *Task) ResetForRetry() {
	t.Status = TaskStatusQueued
	t.StartedAt = nil
	t.FinishedAt = nil
	t.Error = ""
	// Attempt увеличится при следующем MarkRunning()
}

// CanRetry проверяет, можно ли сделать ещё одну попытку.
func (t *Task) CanRetry(maxAttempts int) bool {
	return t.Attempt < maxAttempts
}
