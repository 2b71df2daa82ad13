package engine

import (
	"net/url"
	"strings"

	"github.com/avdonin/Conveyor/internal/domain"
)

// Имя query-параметра, которым фильтр модифицирует database URL.
const filterQueryParam = "filter"

// StaticResources возвращает ресурсы, которые элемент объявляет
// без выполнения.
//
// Статические ресурсы известны из конфигурации элемента:
//   - data_store объявляет свой database URL
//   - data_connection объявляет явно перечисленные файлы
//
// Остальные типы производят ресурсы только при выполнении
// (например, output-файлы tool появляются после его запуска).
func StaticResources(item *domain.ItemDef) []domain.Resource {
	switch item.Type {
	case domain.ItemTypeDataStore:
		rawURL, _ := item.Config["url"].(string)
		if rawURL == "" {
			return nil
		}
		return []domain.Resource{domain.DatabaseResource(rawURL, item.Name)}

	case domain.ItemTypeDataConnection:
		files, _ := item.Config["files"].([]any)
		resources := make([]domain.Resource, 0, len(files))
		for _, f := range files {
			path, ok := f.(string)
			if !ok || path == "" {
				continue
			}
			resources = append(resources, domain.FileResource(FileURL(path), item.Name))
		}
		return resources

	default:
		return nil
	}
}

// BackwardResources вычисляет backward-ресурсы для каждого узла графа:
// статические ресурсы его непосредственных потомков.
//
// Backward-пасс выполняется один раз перед началом выполнения:
// потомки ещё не выполнялись, поэтому доступны только их статические
// ресурсы. Элемент использует их, чтобы знать, куда писать результаты
// (например, tool получает URL базы стоящего за ним data_store).
//
// Фильтры связей к backward-ресурсам не применяются — фильтрация
// действует только в направлении выполнения.
func BackwardResources(g *Graph) map[string][]domain.Resource {
	result := make(map[string][]domain.Resource, len(g.Nodes))

	for name, node := range g.Nodes {
		var resources []domain.Resource
		for _, edge := range node.Downstream {
			resources = append(resources, StaticResources(edge.To.Item)...)
		}
		result[name] = resources
	}

	return result
}

// ApplyFilters применяет фильтры связи к ресурсам, проходящим по ней.
//
// Каждый фильтр действует только на фильтруемые database-ресурсы:
// для каждого значения фильтра порождается отдельная копия ресурса
// с модифицированным URL и меткой. Несколько фильтров на одной связи
// перемножаются (cross product):
//
//	scenario_filter [lo, hi] × alternative_filter [base]
//	→ db@lo@base, db@hi@base
//
// Остальные ресурсы проходят связь без изменений.
func ApplyFilters(resources []domain.Resource, filters []domain.FilterDef) []domain.Resource {
	if len(filters) == 0 {
		return resources
	}

	result := make([]domain.Resource, 0, len(resources))

	for _, res := range resources {
		if !res.Filterable || !res.IsDatabase() {
			result = append(result, res)
			continue
		}

		variants := []domain.Resource{res}
		for _, filter := range filters {
			variants = expandFilter(variants, filter)
		}
		result = append(result, variants...)
	}

	return result
}

// expandFilter порождает вариант ресурса для каждого значения фильтра.
func expandFilter(resources []domain.Resource, filter domain.FilterDef) []domain.Resource {
	kind := filterKind(filter.Type)
	if kind == "" || len(filter.Values) == 0 {
		return resources
	}

	expanded := make([]domain.Resource, 0, len(resources)*len(filter.Values))
	for _, res := range resources {
		for _, value := range filter.Values {
			variant := res.Clone()
			variant.URL = filteredURL(res.URL, kind, value)
			variant.Label = res.Label + "@" + value
			if variant.Metadata == nil {
				variant.Metadata = make(map[string]string)
			}
			variant.Metadata[kind] = value
			expanded = append(expanded, variant)
		}
	}
	return expanded
}

// filterKind возвращает короткое имя фильтра для URL и metadata.
func filterKind(filterType string) string {
	switch filterType {
	case domain.FilterTypeScenario:
		return "scenario"
	case domain.FilterTypeAlternative:
		return "alternative"
	default:
		return ""
	}
}

// filteredURL добавляет фильтр в query-часть database URL.
// Повторное применение добавляет ещё один параметр,
// так фильтры на последовательных связях стекируются.
func filteredURL(rawURL, kind, value string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		// Некорректный URL — возвращаем как есть, даунстрим упадёт с понятной ошибкой
		return rawURL
	}

	q := u.Query()
	q.Add(filterQueryParam, kind+":"+value)
	u.RawQuery = q.Encode()

	return u.String()
}

// FileURL приводит путь к file URL.
// Абсолютные пути получают схему file://, готовые URL не трогаем.
func FileURL(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	return "file://" + path
}

// FilePath извлекает путь из file URL.
// Не-file URL возвращаются как есть.
func FilePath(rawURL string) string {
	return strings.TrimPrefix(rawURL, "file://")
}
