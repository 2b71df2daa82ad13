package cli

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// loadSpecFile читает спецификацию project из файла.
//
// Файл может быть в YAML или JSON (YAML — надмножество JSON,
// поэтому оба формата читаются одним декодером). Валидацию
// содержимого выполняет API при создании версии.
func loadSpecFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read spec file: %w", err)
	}

	var spec map[string]any
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse spec file: %w", err)
	}
	if len(spec) == 0 {
		return nil, fmt.Errorf("spec file %s is empty", path)
	}

	return spec, nil
}

// parseInputs разбирает флаги --input KEY=VALUE в map.
func parseInputs(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	inputs := make(map[string]any, len(pairs))
	for _, kv := range pairs {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid input format %q, expected KEY=VALUE", kv)
		}
		inputs[key] = coerceValue(value)
	}
	return inputs, nil
}

// coerceValue приводит строковое значение флага к YAML-скаляру:
// числа, булевы значения и null распознаются, остальное — строка.
func coerceValue(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	switch v.(type) {
	case bool, int, int64, float64, nil:
		return v
	default:
		return s
	}
}
