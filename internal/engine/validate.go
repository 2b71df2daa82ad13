package engine

import (
	"fmt"

	"github.com/avdonin/Conveyor/internal/domain"
)

// Допустимые типы элементов.
var validItemTypes = map[string]bool{
	domain.ItemTypeDataStore:      true,
	domain.ItemTypeDataConnection: true,
	domain.ItemTypeTool:           true,
	domain.ItemTypeImporter:       true,
	domain.ItemTypeExporter:       true,
	domain.ItemTypeView:           true,
}

// Допустимые типы фильтров связей.
var validFilterTypes = map[string]bool{
	domain.FilterTypeScenario:    true,
	domain.FilterTypeAlternative: true,
}

// Validate выполняет полную валидацию ProjectSpec.
//
// Проверяет:
// - Наличие элементов
// - Уникальность имён элементов
// - Корректность типов элементов
// - Валидность связей (ссылки на существующие элементы, без self-loop)
// - Валидность фильтров связей
// - Отсутствие циклов (делегируется Graph)
func Validate(spec *domain.ProjectSpec) error {
	if spec == nil || len(spec.Items) == 0 {
		return ErrEmptyItems
	}

	// Валидируем элементы
	itemNames := make(map[string]bool)
	for i := range spec.Items {
		item := &spec.Items[i]

		if err := validateItem(item, itemNames); err != nil {
			return err
		}
	}

	// Валидируем связи
	if err := validateConnections(spec.Connections, itemNames); err != nil {
		return err
	}

	return nil
}

// validateItem валидирует один элемент.
// itemNames — уже встреченные имена (для проверки уникальности).
func validateItem(item *domain.ItemDef, itemNames map[string]bool) error {
	if item.Name == "" {
		return NewValidationError("", "name", "item has empty name", ErrEmptyItemName)
	}

	if itemNames[item.Name] {
		return NewValidationError(item.Name, "name",
			fmt.Sprintf("duplicate item name: %s", item.Name), ErrDuplicateItemName)
	}
	itemNames[item.Name] = true

	if item.Type == "" {
		return NewValidationError(item.Name, "type",
			"item has empty type", ErrUnknownItemType)
	}

	if !validItemTypes[item.Type] {
		return NewValidationError(item.Name, "type",
			fmt.Sprintf("unknown item type: %s", item.Type), ErrUnknownItemType)
	}

	return nil
}

// validateConnections проверяет связи и их фильтры.
func validateConnections(conns []domain.ConnectionDef, itemNames map[string]bool) error {
	for _, conn := range conns {
		if !itemNames[conn.From] {
			return NewValidationError(conn.From, "connections",
				fmt.Sprintf("connection from unknown item: %s", conn.From), ErrUnknownItem)
		}
		if !itemNames[conn.To] {
			return NewValidationError(conn.To, "connections",
				fmt.Sprintf("connection to unknown item: %s", conn.To), ErrUnknownItem)
		}
		if conn.From == conn.To {
			return NewValidationError(conn.From, "connections",
				"item connected to itself", ErrSelfConnection)
		}

		for _, filter := range conn.Filters {
			if !validFilterTypes[filter.Type] {
				return NewValidationError(conn.From, "filters",
					fmt.Sprintf("unknown filter type: %s", filter.Type), ErrUnknownFilterType)
			}
			if len(filter.Values) == 0 {
				return NewValidationError(conn.From, "filters",
					fmt.Sprintf("%s has no values", filter.Type), ErrEmptyFilterValues)
			}
		}
	}

	return nil
}

// ValidateInputs проверяет входные параметры run против ProjectSpec.Inputs.
// Обязательные параметры без значения по умолчанию должны быть переданы.
func ValidateInputs(spec *domain.ProjectSpec, inputs map[string]any) error {
	for name, def := range spec.Inputs {
		if !def.Required || def.Default != nil {
			continue
		}
		if _, ok := inputs[name]; !ok {
			return NewValidationError("", "inputs",
				fmt.Sprintf("required input missing: %s", name), ErrMissingInput)
		}
	}
	return nil
}

// MergeInputs применяет значения по умолчанию к входным параметрам.
// Переданные значения имеют приоритет над defaults.
func MergeInputs(spec *domain.ProjectSpec, inputs map[string]any) map[string]any {
	merged := make(map[string]any, len(spec.Inputs)+len(inputs))
	for name, def := range spec.Inputs {
		if def.Default != nil {
			merged[name] = def.Default
		}
	}
	for name, val := range inputs {
		merged[name] = val
	}
	return merged
}

// IsValidItemType проверяет, является ли тип элемента допустимым.
func IsValidItemType(itemType string) bool {
	return validItemTypes[itemType]
}

// ValidItemTypes возвращает список допустимых типов элементов.
func ValidItemTypes() []string {
	types := make([]string, 0, len(validItemTypes))
	for t := range validItemTypes {
		types = append(types, t)
	}
	return types
}
