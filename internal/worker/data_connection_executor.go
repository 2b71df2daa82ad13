package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/avdonin/Conveyor/internal/domain"
	"github.com/avdonin/Conveyor/internal/engine"
)

// DataConnectionExecutor — executor для элемента типа "data_connection".
//
// Проверяет объявленные файлы и разворачивает glob-паттерны
// в file-ресурсы для потомков. Сами файлы не читаются.
//
// Config (из task.Payload):
//   - files ([]string): явные пути к файлам (каждый должен существовать)
//   - patterns ([]string): glob-паттерны (doublestar); пустое совпадение —
//     не ошибка
//   - base_dir (string): база для относительных путей и паттернов
//
// Outputs:
//   - file_count (int): количество собранных файлов
//
// Resources: file-ресурс на каждый файл.
type DataConnectionExecutor struct{}

// Execute собирает file-ресурсы из files и patterns.
func (e *DataConnectionExecutor) Execute(_ context.Context, task *domain.Task) (*ExecutionResult, error) {
	baseDir := getString(task.Payload, "base_dir", "")

	var resources []domain.Resource

	// Явные файлы: отсутствие — логическая ошибка
	for _, path := range getStrings(task.Payload, "files") {
		resolved := resolvePath(baseDir, path)
		if _, err := os.Stat(resolved); err != nil {
			return &ExecutionResult{
				Error: fmt.Sprintf("declared file not found: %s", resolved),
			}, nil
		}
		resources = append(resources, domain.FileResource(engine.FileURL(resolved), task.ItemName))
	}

	// Паттерны: пустое совпадение допустимо
	for _, pattern := range getStrings(task.Payload, "patterns") {
		resolved := resolvePath(baseDir, pattern)
		matches, err := doublestar.FilepathGlob(resolved)
		if err != nil {
			return nil, fmt.Errorf("%w: bad pattern %q: %v", ErrInvalidConfig, pattern, err)
		}
		for _, match := range matches {
			abs, err := filepath.Abs(match)
			if err != nil {
				abs = match
			}
			resources = append(resources, domain.FileResource(engine.FileURL(abs), task.ItemName))
		}
	}

	return &ExecutionResult{
		Outputs:   map[string]any{"file_count": len(resources)},
		Resources: resources,
	}, nil
}

// resolvePath присоединяет относительный путь к base_dir.
func resolvePath(baseDir, path string) string {
	if baseDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
