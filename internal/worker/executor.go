package worker

import (
	"context"
	"fmt"

	"github.com/avdonin/Conveyor/internal/domain"
)

// Executor — интерфейс для выполнения конкретного типа элемента.
//
// Реализации: ToolExecutor, DataConnectionExecutor, DataStoreExecutor,
// ImporterExecutor, ExporterExecutor, ViewExecutor.
//
// task.Payload содержит отрендеренную конфигурацию элемента,
// task.ForwardResources — ресурсы предшественников (после фильтров связей),
// task.BackwardResources — статические ресурсы потомков.
// ctx может содержать таймаут, установленный из ItemDef.TimeoutSec.
type Executor interface {
	Execute(ctx context.Context, task *domain.Task) (*ExecutionResult, error)
}

// ExecutionResult — результат выполнения task.
type ExecutionResult struct {
	// Outputs — выходные данные выполнения.
	Outputs map[string]any

	// Resources — ресурсы, произведённые элементом.
	// Передаются потомкам как forward-ресурсы.
	Resources []domain.Resource

	// Error — сообщение об ошибке (логическая ошибка выполнения).
	// Инфраструктурные ошибки возвращаются через error в Execute().
	Error string
}

// Registry — реестр executor'ов по типу элемента.
type Registry struct {
	executors map[string]Executor
}

// NewRegistry создаёт реестр с зарегистрированными executor'ами по умолчанию.
//
// Регистрирует все шесть типов элементов: data_store, data_connection,
// tool, importer, exporter, view.
func NewRegistry() *Registry {
	r := &Registry{executors: make(map[string]Executor)}
	r.Register(domain.ItemTypeDataStore, &DataStoreExecutor{})
	r.Register(domain.ItemTypeDataConnection, &DataConnectionExecutor{})
	r.Register(domain.ItemTypeTool, &ToolExecutor{})
	r.Register(domain.ItemTypeImporter, &ImporterExecutor{})
	r.Register(domain.ItemTypeExporter, &ExporterExecutor{})
	r.Register(domain.ItemTypeView, &ViewExecutor{})
	return r
}

// Register добавляет executor для типа элемента.
func (r *Registry) Register(itemType string, executor Executor) {
	r.executors[itemType] = executor
}

// Get возвращает executor для типа элемента.
func (r *Registry) Get(itemType string) (Executor, error) {
	executor, ok := r.executors[itemType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownItemType, itemType)
	}
	return executor, nil
}

// getString извлекает строку из map с default значением.
func getString(m map[string]any, key, defaultVal string) string {
	if val, ok := m[key]; ok {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return defaultVal
}

// getBool извлекает bool из map с default значением.
func getBool(m map[string]any, key string, defaultVal bool) bool {
	if val, ok := m[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return defaultVal
}

// getStrings извлекает список строк ([]any или []string) из map.
func getStrings(m map[string]any, key string) []string {
	val, ok := m[key]
	if !ok || val == nil {
		return nil
	}

	switch list := val.(type) {
	case []string:
		return list
	case []any:
		result := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok && s != "" {
				result = append(result, s)
			}
		}
		return result
	}
	return nil
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
