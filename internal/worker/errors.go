package worker

import "errors"

// Ошибки воркера.
var (
	// ErrTaskNotFound — task не найден в БД.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskNotQueued — task не в статусе QUEUED.
	ErrTaskNotQueued = errors.New("task is not in QUEUED status")

	// ErrUnknownItemType — нет executor'а для данного типа элемента.
	ErrUnknownItemType = errors.New("unknown item type")

	// ErrInvalidConfig — конфигурация элемента неполна или некорректна.
	ErrInvalidConfig = errors.New("invalid item config")

	// ErrToolExecution — внешняя программа не запустилась.
	ErrToolExecution = errors.New("tool execution failed")

	// ErrDatabaseAccess — не удалось подключиться к базе данных ресурса.
	ErrDatabaseAccess = errors.New("database access failed")

	// ErrMissingResource — нет подходящего forward/backward ресурса.
	ErrMissingResource = errors.New("required resource not available")

	// ErrItemDefNotFound — определение элемента не найдено в версии project.
	ErrItemDefNotFound = errors.New("item definition not found")
)
