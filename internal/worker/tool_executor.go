package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/avdonin/Conveyor/internal/domain"
	"github.com/avdonin/Conveyor/internal/engine"
)

const (
	defaultToolTimeout = 10 * time.Minute
	maxCapturedOutput  = 4096
)

// ToolExecutor — executor для элемента типа "tool".
//
// Запускает внешнюю программу через os/exec. Предполагается, что
// программа читает forward-ресурсы (пути/URL приходят через args
// или env после рендеринга шаблонов) и пишет результаты в файлы
// или в backward database-ресурс.
//
// Config (из task.Payload, уже отрендеренный):
//   - command (string): исполняемый файл (обязательно)
//   - args ([]string): аргументы командной строки
//   - workdir (string): рабочая директория. Default: текущая
//   - env (map[string]string): дополнительные переменные окружения
//   - output_files ([]string): glob-паттерны файлов-результатов
//     (doublestar, относительно workdir)
//   - timeout_sec (number): таймаут выполнения. Default: 600
//
// Outputs:
//   - exit_code (int): код завершения программы
//   - stdout (string): stdout, обрезанный до 4 КиБ
//
// Resources: file-ресурс на каждый файл, совпавший с output_files.
type ToolExecutor struct{}

// Execute запускает программу и собирает результаты.
func (e *ToolExecutor) Execute(ctx context.Context, task *domain.Task) (*ExecutionResult, error) {
	command := getString(task.Payload, "command", "")
	if command == "" {
		return nil, fmt.Errorf("%w: command is required", ErrInvalidConfig)
	}

	timeout := getTimeout(task.Payload, defaultToolTimeout)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, command, getStrings(task.Payload, "args")...)

	workdir := getString(task.Payload, "workdir", "")
	if workdir != "" {
		cmd.Dir = workdir
	}

	cmd.Env = append(os.Environ(), toolEnv(task.Payload)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	// Убитый по таймауту процесс возвращает *exec.ExitError, поэтому
	// дедлайн проверяется до разбора кода завершения.
	if runErr != nil && ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrToolExecution, ctx.Err())
	}

	// Программа не запустилась (не найдена, нет прав) — инфраструктурная ошибка
	var exitErr *exec.ExitError
	if runErr != nil && !errors.As(runErr, &exitErr) {
		return nil, fmt.Errorf("%w: %v", ErrToolExecution, runErr)
	}

	exitCode := cmd.ProcessState.ExitCode()
	outputs := map[string]any{
		"exit_code": exitCode,
		"stdout":    truncate(stdout.String(), maxCapturedOutput),
	}

	// Ненулевой exit code — логическая ошибка, outputs сохраняются
	if exitCode != 0 {
		errMsg := fmt.Sprintf("exit code %d: %s", exitCode, truncate(stderr.String(), 200))
		return &ExecutionResult{Outputs: outputs, Error: errMsg}, nil
	}

	resources, err := collectOutputFiles(task.Payload, workdir, task.ItemName)
	if err != nil {
		return &ExecutionResult{Outputs: outputs, Error: err.Error()}, nil
	}

	return &ExecutionResult{Outputs: outputs, Resources: resources}, nil
}

// collectOutputFiles находит файлы-результаты по glob-паттернам output_files.
func collectOutputFiles(payload map[string]any, workdir, label string) ([]domain.Resource, error) {
	patterns := getStrings(payload, "output_files")
	if len(patterns) == 0 {
		return nil, nil
	}

	var resources []domain.Resource
	for _, pattern := range patterns {
		if workdir != "" && !filepath.IsAbs(pattern) {
			pattern = filepath.Join(workdir, pattern)
		}

		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad output_files pattern %q: %v", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no output files matched %q", pattern)
		}

		for _, match := range matches {
			abs, err := filepath.Abs(match)
			if err != nil {
				abs = match
			}
			resources = append(resources, domain.FileResource(engine.FileURL(abs), label))
		}
	}
	return resources, nil
}

// toolEnv извлекает дополнительные переменные окружения из payload.
func toolEnv(payload map[string]any) []string {
	env, ok := payload["env"]
	if !ok || env == nil {
		return nil
	}

	var result []string
	switch vars := env.(type) {
	case map[string]any:
		for key, val := range vars {
			if s, ok := val.(string); ok {
				result = append(result, key+"="+s)
			}
		}
	case map[string]string:
		for key, val := range vars {
			result = append(result, key+"="+val)
		}
	}
	return result
}

// getTimeout извлекает таймаут из payload.
func getTimeout(payload map[string]any, defaultTimeout time.Duration) time.Duration {
	if val, ok := payload["timeout_sec"]; ok {
		switch v := val.(type) {
		case float64:
			if v > 0 {
				return time.Duration(v * float64(time.Second))
			}
		case int:
			if v > 0 {
				return time.Duration(v) * time.Second
			}
		}
	}
	return defaultTimeout
}
