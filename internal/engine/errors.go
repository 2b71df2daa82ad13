package engine

import "errors"

// Ошибки валидации ProjectSpec.
var (
	// ErrEmptyItems — project не содержит элементов.
	ErrEmptyItems = errors.New("project spec has no items")

	// ErrEmptyItemName — элемент не имеет имени.
	ErrEmptyItemName = errors.New("item has empty name")

	// ErrDuplicateItemName — несколько элементов с одинаковым именем.
	ErrDuplicateItemName = errors.New("duplicate item name")

	// ErrUnknownItemType — неизвестный тип элемента.
	ErrUnknownItemType = errors.New("unknown item type")

	// ErrUnknownItem — связь ссылается на несуществующий элемент.
	ErrUnknownItem = errors.New("connection references unknown item")

	// ErrSelfConnection — связь элемента с самим собой.
	ErrSelfConnection = errors.New("item connected to itself")

	// ErrCyclicConnection — обнаружен цикл в связях.
	ErrCyclicConnection = errors.New("cyclic connection detected")

	// ErrUnknownFilterType — неизвестный тип фильтра связи.
	ErrUnknownFilterType = errors.New("unknown filter type")

	// ErrEmptyFilterValues — фильтр без значений.
	ErrEmptyFilterValues = errors.New("filter has no values")

	// ErrMissingInput — не передан обязательный входной параметр.
	ErrMissingInput = errors.New("required input missing")
)

// Ошибки рендеринга шаблонов.
var (
	// ErrTemplateRender — ошибка рендеринга шаблона.
	ErrTemplateRender = errors.New("template render failed")

	// ErrTemplateParse — ошибка парсинга шаблона.
	ErrTemplateParse = errors.New("template parse failed")
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	ItemName string // имя элемента, где произошла ошибка
	Field    string // поле, вызвавшее ошибку
	Message  string // описание ошибки
	Err      error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.ItemName != "" {
		return "item " + e.ItemName + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(itemName, field, message string, err error) *ValidationError {
	return &ValidationError{
		ItemName: itemName,
		Field:    field,
		Message:  message,
		Err:      err,
	}
}
