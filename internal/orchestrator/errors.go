package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrRunNotFound — run не найден в БД.
	ErrRunNotFound = errors.New("run not found")

	// ErrProjectNotFound — project не найден.
	ErrProjectNotFound = errors.New("project not found")

	// ErrVersionNotFound — версия project не найдена.
	ErrVersionNotFound = errors.New("project version not found")

	// ErrInvalidProjectSpec — ProjectSpec не прошёл валидацию.
	ErrInvalidProjectSpec = errors.New("invalid project spec")

	// ErrRunAlreadyActive — run уже обрабатывается.
	ErrRunAlreadyActive = errors.New("run already being processed")

	// ErrRunNotActive — run не найден в активных (для обработки item.completed).
	ErrRunNotActive = errors.New("run not in active runs")

	// ErrRunNotPending — run не в статусе PENDING.
	ErrRunNotPending = errors.New("run is not in PENDING status")

	// ErrTaskNotFound — task не найден.
	ErrTaskNotFound = errors.New("task not found")

	// ErrItemNotFound — элемент не найден в графе.
	ErrItemNotFound = errors.New("item not found in graph")

	// ErrOrchestratorStopped — оркестратор остановлен.
	ErrOrchestratorStopped = errors.New("orchestrator stopped")
)
