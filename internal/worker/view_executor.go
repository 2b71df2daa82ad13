package worker

import (
	"context"

	"github.com/avdonin/Conveyor/internal/domain"
)

// ViewExecutor — executor для элемента типа "view".
//
// Терминальный потребитель: фиксирует сводку по полученным
// forward-ресурсам. Ничего не производит — view предназначен
// для инспекции результатов, у него нет потомков с данными.
//
// Outputs:
//   - resource_count (int)
//   - file_count (int)
//   - database_count (int)
//   - labels ([]string): метки полученных ресурсов
type ViewExecutor struct{}

// Execute формирует сводку по forward-ресурсам.
func (e *ViewExecutor) Execute(_ context.Context, task *domain.Task) (*ExecutionResult, error) {
	files, databases := 0, 0
	labels := make([]string, 0, len(task.ForwardResources))

	for _, res := range task.ForwardResources {
		switch {
		case res.IsFile():
			files++
		case res.IsDatabase():
			databases++
		}
		labels = append(labels, res.Label)
	}

	return &ExecutionResult{
		Outputs: map[string]any{
			"resource_count": len(task.ForwardResources),
			"file_count":     files,
			"database_count": databases,
			"labels":         labels,
		},
	}, nil
}
