package engine

import (
	"fmt"
	"os"

	"github.com/avdonin/Conveyor/internal/domain"
)

// DryRun выполняет проверочный проход по спецификации без запуска элементов.
//
// Проход повторяет логику оркестратора: валидация, построение графа,
// обход в топологическом порядке с рендерингом условий и конфигураций.
// Вместо выполнения каждый элемент "производит" свои статические ресурсы,
// которые передаются потомкам через фильтры связей.
//
// Ошибка рендеринга помечает элемент как FAILED и блокирует его ветку;
// остальные ветки проверяются до конца. Ошибка возвращается только если
// спецификация не прошла валидацию или граф не построился.
func DryRun(spec *domain.ProjectSpec, inputs map[string]any) ([]domain.ItemResult, domain.DryRunSummary, error) {
	if err := Validate(spec); err != nil {
		return nil, domain.DryRunSummary{}, err
	}

	g, err := BuildGraph(spec)
	if err != nil {
		return nil, domain.DryRunSummary{}, err
	}

	merged := MergeInputs(spec, inputs)
	if err := ValidateInputs(spec, merged); err != nil {
		return nil, domain.DryRunSummary{}, err
	}
	ctx := NewContext(merged)
	ctx.SetEnviron(os.Environ())

	produced := make(map[string][]domain.Resource, len(g.Nodes))
	blocked := make(map[string]bool)

	results := make([]domain.ItemResult, 0, len(g.Order))
	summary := domain.DryRunSummary{TotalItems: len(g.Order)}

	for _, node := range g.Order {
		if blocked[node.Name] {
			continue
		}

		result := checkItem(node, ctx, produced)
		results = append(results, result)

		switch result.Status {
		case domain.TaskStatusSucceeded:
			summary.Succeeded++
			produced[node.Name] = result.Resources
			ctx.AddItemResult(node.Name, nil, string(domain.TaskStatusSucceeded))

		case domain.TaskStatusSkipped:
			summary.Skipped++
			produced[node.Name] = result.Resources
			ctx.AddItemResult(node.Name, nil, string(domain.TaskStatusSkipped))

		case domain.TaskStatusFailed:
			summary.Failed++
			ctx.AddItemResult(node.Name, nil, string(domain.TaskStatusFailed))
			for name := range g.DownstreamOf(node.Name) {
				blocked[name] = true
			}
		}
	}

	return results, summary, nil
}

// checkItem проверяет один элемент: условие, рендеринг конфигурации,
// статические ресурсы.
func checkItem(node *Node, ctx *Context, produced map[string][]domain.Resource) domain.ItemResult {
	result := domain.ItemResult{ItemName: node.Name}

	// Forward-ресурсы предшественников через фильтры связей
	var forward []domain.Resource
	for _, edge := range node.Upstream {
		if upstream := produced[edge.From.Name]; len(upstream) > 0 {
			forward = append(forward, ApplyFilters(upstream, edge.Filters)...)
		}
	}
	renderCtx := ctx.WithResources(forward)

	// Условие
	if node.Item.Condition != "" {
		ok, err := RenderCondition(node.Item.Condition, renderCtx)
		if err != nil {
			result.Status = domain.TaskStatusFailed
			result.Error = fmt.Sprintf("condition: %v", err)
			return result
		}
		if !ok {
			result.Status = domain.TaskStatusSkipped
			result.Resources = StaticResources(node.Item)
			return result
		}
	}

	// Конфигурация
	if _, err := RenderConfig(node.Item.Config, renderCtx); err != nil {
		result.Status = domain.TaskStatusFailed
		result.Error = fmt.Sprintf("config: %v", err)
		return result
	}

	result.Status = domain.TaskStatusSucceeded
	result.Resources = StaticResources(node.Item)
	return result
}
