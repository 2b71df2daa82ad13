package domain

import (
	"time"

	"github.com/google/uuid"
)

// Project — проект обработки данных.
//
// Project — это контейнер для DAG элементов (items) и связей между ними.
// Один project может иметь множество версий (ProjectVersion).
// Каждый запуск (Run) выполняет конкретную версию project.
type Project struct {
	// ID — уникальный идентификатор project.
	ID uuid.UUID `json:"id"`

	// Name — уникальное имя project (например, "energy-model", "nightly-import").
	// Используется для удобной идентификации пользователем.
	Name string `json:"name"`

	// IsActive — флаг активности. Неактивные projects не запускаются по расписанию.
	IsActive bool `json:"is_active"`

	// CreatedAt — время создания project.
	CreatedAt time.Time `json:"created_at"`
}

// ProjectVersion — версия project с конкретной спецификацией.
//
// Версионирование позволяет:
// - Отслеживать историю изменений
// - Откатываться к предыдущим версиям
// - Запускать старые версии для сравнения результатов
type ProjectVersion struct {
	// ProjectID — ссылка на родительский project.
	ProjectID uuid.UUID `json:"project_id"`

	// Version — номер версии (1, 2, 3, ...).
	// Автоинкремент при создании новой версии.
	Version int `json:"version"`

	// Spec — спецификация project в формате JSON.
	Spec ProjectSpec `json:"spec"`

	// CreatedAt — время создания версии.
	CreatedAt time.Time `json:"created_at"`
}

// ProjectSpec — спецификация project (содержимое JSONB поля spec).
//
// Описывает DAG: элементы (items) и направленные связи (connections).
// Порядок выполнения определяется связями, а не порядком в списке.
type ProjectSpec struct {
	// Version — версия формата спецификации (для обратной совместимости).
	Version string `json:"version,omitempty"`

	// Name — имя project (дублирует Project.Name для удобства).
	Name string `json:"name,omitempty"`

	// Description — описание назначения project.
	Description string `json:"description,omitempty"`

	// Inputs — входные параметры project.
	// Ключ — имя параметра, значение — его определение.
	Inputs map[string]InputDef `json:"inputs,omitempty"`

	// Defaults — настройки по умолчанию для всех элементов.
	Defaults *ItemDefaults `json:"defaults,omitempty"`

	// Items — элементы project.
	Items []ItemDef `json:"items"`

	// Connections — направленные связи между элементами.
	Connections []ConnectionDef `json:"connections,omitempty"`
}

// InputDef — определение входного параметра.
type InputDef struct {
	// Type — тип параметра: "string", "number", "boolean", "object".
	Type string `json:"type"`

	// Required — обязательный ли параметр.
	Required bool `json:"required,omitempty"`

	// Default — значение по умолчанию.
	Default any `json:"default,omitempty"`

	// Description — описание параметра.
	Description string `json:"description,omitempty"`
}

// ItemDefaults — настройки по умолчанию для элементов.
type ItemDefaults struct {
	// Retry — политика повторных попыток.
	Retry *RetryPolicy `json:"retry,omitempty"`

	// TimeoutSec — таймаут выполнения в секундах.
	TimeoutSec int `json:"timeout_sec,omitempty"`
}

// Типы элементов project.
const (
	ItemTypeDataStore      = "data_store"
	ItemTypeDataConnection = "data_connection"
	ItemTypeTool           = "tool"
	ItemTypeImporter       = "importer"
	ItemTypeExporter       = "exporter"
	ItemTypeView           = "view"
)

// ItemDef — определение элемента project.
type ItemDef struct {
	// Name — уникальное имя элемента в рамках project.
	// Используется в connections и для ссылок на результаты.
	Name string `json:"name"`

	// Type — тип элемента: "data_store", "data_connection", "tool",
	// "importer", "exporter", "view".
	Type string `json:"type"`

	// Description — человекочитаемое описание элемента.
	Description string `json:"description,omitempty"`

	// Condition — условие выполнения (Go template, возвращающий bool).
	// Например: "{{ .Inputs.full_rebuild }}"
	// Если условие ложно, элемент пропускается, но его статические
	// ресурсы всё равно доступны потомкам.
	Condition string `json:"condition,omitempty"`

	// Config — конфигурация элемента (зависит от типа).
	// Для tool: command, args, workdir, output_files
	// Для data_store: dialect, url
	// Для data_connection: files, patterns
	Config map[string]any `json:"config,omitempty"`

	// Retry — политика повторных попыток для этого элемента.
	// Переопределяет defaults.retry.
	Retry *RetryPolicy `json:"retry,omitempty"`

	// TimeoutSec — таймаут для этого элемента.
	// Переопределяет defaults.timeout_sec.
	TimeoutSec int `json:"timeout_sec,omitempty"`
}

// ConnectionDef — направленная связь между двумя элементами.
//
// Связь определяет и порядок выполнения, и маршрут передачи ресурсов:
// ресурсы передаются только между непосредственными соседями по связи.
type ConnectionDef struct {
	// From — имя элемента-источника.
	From string `json:"from"`

	// To — имя элемента-приёмника.
	To string `json:"to"`

	// Filters — фильтры, применяемые к database-ресурсам,
	// проходящим через эту связь.
	Filters []FilterDef `json:"filters,omitempty"`
}

// Типы фильтров связей.
const (
	FilterTypeScenario    = "scenario_filter"
	FilterTypeAlternative = "alternative_filter"
)

// FilterDef — фильтр database-ресурса на связи.
//
// Фильтр сужает данные, которые база данных отдаёт потомку:
// каждый выбранный сценарий/альтернатива порождает отдельный
// отфильтрованный ресурс с модифицированным URL.
type FilterDef struct {
	// Type — тип фильтра: "scenario_filter" или "alternative_filter".
	Type string `json:"type"`

	// Values — выбранные значения (имена сценариев или альтернатив).
	Values []string `json:"values"`
}

// RetryPolicy — политика повторных попыток.
type RetryPolicy struct {
	// MaxAttempts — максимальное количество попыток (включая первую).
	MaxAttempts int `json:"max_attempts,omitempty"`

	// Backoff — стратегия задержки: "fixed", "exponential".
	Backoff string `json:"backoff,omitempty"`

	// InitialDelayMs — начальная задержка в миллисекундах.
	InitialDelayMs int `json:"initial_delay_ms,omitempty"`

	// MaxDelayMs — максимальная задержка в миллисекундах.
	MaxDelayMs int `json:"max_delay_ms,omitempty"`
}

// ItemByName возвращает определение элемента по имени.
// Возвращает nil, если элемент не найден.
func (s *ProjectSpec) ItemByName(name string) *ItemDef {
	for i := range s.Items {
		if s.Items[i].Name == name {
			return &s.Items[i]
		}
	}
	return nil
}

// ConnectionsTo возвращает все связи, входящие в элемент.
func (s *ProjectSpec) ConnectionsTo(name string) []ConnectionDef {
	var conns []ConnectionDef
	for _, c := range s.Connections {
		if c.To == name {
			conns = append(conns, c)
		}
	}
	return conns
}

// ConnectionsFrom возвращает все связи, исходящие из элемента.
func (s *ProjectSpec) ConnectionsFrom(name string) []ConnectionDef {
	var conns []ConnectionDef
	for _, c := range s.Connections {
		if c.From == name {
			conns = append(conns, c)
		}
	}
	return conns
}
