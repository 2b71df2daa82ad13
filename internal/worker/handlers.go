package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/avdonin/Conveyor/internal/domain"
	"github.com/avdonin/Conveyor/internal/engine"
	"github.com/avdonin/Conveyor/internal/mq"
	"github.com/avdonin/Conveyor/internal/repo"
	"github.com/avdonin/Conveyor/internal/telemetry"
)

// handleItemReady обрабатывает событие о новой task из очереди items.ready.
func (w *Worker) handleItemReady(ctx context.Context, delivery *mq.Delivery) error {
	// Парсим payload
	payload, err := mq.ParsePayload[mq.ItemReadyPayload](&delivery.Message)
	if err != nil {
		w.logger.Error("failed to parse item.ready payload", "error", err)
		return err
	}

	w.logger.Debug("received item.ready event",
		"task_id", payload.TaskID,
		"run_id", payload.RunID,
	)

	// Обрабатываем task
	if err := w.processTask(ctx, payload.TaskID); err != nil {
		// Ожидаемые ситуации — не возвращаем ошибку (ack)
		if errors.Is(err, ErrTaskNotFound) || errors.Is(err, ErrTaskNotQueued) {
			w.logger.Debug("task not processed", "task_id", payload.TaskID, "reason", err)
			return nil
		}
		w.logger.Error("failed to process task", "task_id", payload.TaskID, "error", err)
		return err
	}

	return nil
}

// processTask загружает task из БД, выполняет и обрабатывает результат.
func (w *Worker) processTask(ctx context.Context, taskID uuid.UUID) error {
	// 1. Загружаем task из БД
	task, err := w.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
		}
		return fmt.Errorf("get task: %w", err)
	}

	// 2. Проверяем статус
	if task.Status != domain.TaskStatusQueued {
		return ErrTaskNotQueued
	}

	// 3. Помечаем как running
	task.MarkRunning()
	if err := w.taskRepo.Update(ctx, task); err != nil {
		return fmt.Errorf("update task to running: %w", err)
	}

	w.logger.Info("task started",
		"task_id", task.ID,
		"run_id", task.RunID,
		"item", task.ItemName,
		"type", task.Type,
		"attempt", task.Attempt,
	)

	// 4. Загружаем run и определение элемента (retry policy, таймаут, dry-run)
	run, itemDef := w.loadItemContext(ctx, task)

	var result *ExecutionResult
	var execErr error

	if run != nil && run.IsDryRun {
		// Dry-run: элемент не выполняется, потомкам — статические ресурсы
		result = dryRunResult(task, itemDef)
	} else {
		policy, timeout := resolvePolicy(itemDef)
		result, execErr = w.executeWithRetry(ctx, task, policy, timeout)
	}

	// 5. Обрабатываем результат
	if execErr == nil && (result == nil || result.Error == "") {
		var outputs map[string]any
		var resources []domain.Resource
		if result != nil {
			outputs = result.Outputs
			resources = result.Resources
		}

		task.MarkSucceeded(outputs, resources)
		if err := w.taskRepo.Update(ctx, task); err != nil {
			return fmt.Errorf("update task to succeeded: %w", err)
		}

		w.observeCompletion(task)
		w.logger.Info("task succeeded",
			"task_id", task.ID,
			"run_id", task.RunID,
			"item", task.ItemName,
			"attempt", task.Attempt,
			"resources", len(resources),
		)

		return w.publishCompletion(ctx, task, "")
	}

	// Ошибка
	errMsg := ""
	if execErr != nil {
		errMsg = execErr.Error()
	} else {
		errMsg = result.Error
	}

	task.MarkFailed(errMsg)
	if err := w.taskRepo.Update(ctx, task); err != nil {
		return fmt.Errorf("update task to failed: %w", err)
	}

	w.observeCompletion(task)
	w.logger.Warn("task failed",
		"task_id", task.ID,
		"run_id", task.RunID,
		"item", task.ItemName,
		"attempt", task.Attempt,
		"error", errMsg,
	)

	return w.publishCompletion(ctx, task, errMsg)
}

// observeCompletion фиксирует метрики завершённого task.
func (w *Worker) observeCompletion(task *domain.Task) {
	telemetry.TasksCompleted.WithLabelValues(task.Type, string(task.Status)).Inc()
	telemetry.TaskDuration.WithLabelValues(task.Type).Observe(task.Duration().Seconds())
}

// publishCompletion публикует событие item.completed.
func (w *Worker) publishCompletion(ctx context.Context, task *domain.Task, errMsg string) error {
	if w.publisher == nil {
		w.logger.Warn("publisher not available, skipping item.completed publish",
			"task_id", task.ID,
		)
		return nil
	}

	payload := mq.ItemCompletedPayload{
		TaskID:   task.ID,
		RunID:    task.RunID,
		ItemName: task.ItemName,
		Status:   string(task.Status),
		Error:    errMsg,
		Attempt:  task.Attempt,
	}

	if err := w.publisher.PublishItemCompleted(ctx, payload); err != nil {
		w.logger.Warn("failed to publish item.completed",
			"task_id", task.ID,
			"error", err,
		)
		// Не возвращаем ошибку — task обновлён в БД, оркестратор подхватит через polling
	}

	return nil
}

// dryRunResult формирует результат проверочного запуска:
// конфигурация уже отрендерена оркестратором, выполнять элемент не нужно.
// Потомкам достаются статические ресурсы элемента.
func dryRunResult(task *domain.Task, itemDef *domain.ItemDef) *ExecutionResult {
	var resources []domain.Resource
	if itemDef != nil {
		resources = engine.StaticResources(itemDef)
	}

	return &ExecutionResult{
		Outputs: map[string]any{
			"dry_run": true,
			"type":    task.Type,
		},
		Resources: resources,
	}
}

// executeWithRetry выполняет task с retry согласно RetryPolicy.
// Каждая попытка получает собственный таймаут.
func (w *Worker) executeWithRetry(ctx context.Context, task *domain.Task, policy *domain.RetryPolicy, timeout time.Duration) (*ExecutionResult, error) {
	// Получаем executor
	executor, err := w.registry.Get(task.Type)
	if err != nil {
		return nil, err
	}

	maxAttempts := 1
	if policy != nil && policy.MaxAttempts > 0 {
		maxAttempts = policy.MaxAttempts
	}

	var lastResult *ExecutionResult
	var lastErr error

	for {
		// Выполняем
		lastResult, lastErr = w.executeOnce(ctx, executor, task, timeout)

		// Успех — инфраструктурной ошибки нет и логической ошибки нет
		if lastErr == nil && (lastResult == nil || lastResult.Error == "") {
			return lastResult, nil
		}

		// Проверяем, можно ли делать retry
		if !task.CanRetry(maxAttempts) {
			break
		}

		// Считаем backoff
		delay := calculateBackoff(task.Attempt, policy)

		w.logger.Debug("retrying task",
			"task_id", task.ID,
			"attempt", task.Attempt,
			"delay", delay,
		)

		// Ждём с учётом context
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		// Сброс и новая попытка
		task.ResetForRetry()
		task.MarkRunning()
		if err := w.taskRepo.Update(ctx, task); err != nil {
			return nil, fmt.Errorf("update task for retry: %w", err)
		}
	}

	return lastResult, lastErr
}

// executeOnce выполняет одну попытку с таймаутом.
func (w *Worker) executeOnce(ctx context.Context, executor Executor, task *domain.Task, timeout time.Duration) (*ExecutionResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return executor.Execute(ctx, task)
}

// calculateBackoff вычисляет задержку перед retry.
func calculateBackoff(attempt int, policy *domain.RetryPolicy) time.Duration {
	if policy == nil {
		return time.Second
	}

	initialDelay := time.Duration(policy.InitialDelayMs) * time.Millisecond
	if initialDelay <= 0 {
		initialDelay = time.Second
	}

	maxDelay := time.Duration(policy.MaxDelayMs) * time.Millisecond
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	var delay time.Duration
	switch policy.Backoff {
	case "exponential":
		// delay = initialDelay * 2^(attempt-1)
		delay = initialDelay
		for i := 1; i < attempt; i++ {
			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
				break
			}
		}
	default:
		// "fixed" или неизвестный — используем initialDelay
		delay = initialDelay
	}

	if delay > maxDelay {
		delay = maxDelay
	}

	return delay
}

// resolvePolicy извлекает RetryPolicy и таймаут из определения элемента.
func resolvePolicy(itemDef *domain.ItemDef) (*domain.RetryPolicy, time.Duration) {
	if itemDef == nil {
		return nil, 0
	}

	var timeout time.Duration
	if itemDef.TimeoutSec > 0 {
		timeout = time.Duration(itemDef.TimeoutSec) * time.Second
	}
	return itemDef.Retry, timeout
}

// loadItemContext загружает run и определение элемента для task.
// Ошибки загрузки не фатальны: без run выполняем как обычный запуск,
// без itemDef — с политикой по умолчанию.
func (w *Worker) loadItemContext(ctx context.Context, task *domain.Task) (*domain.Run, *domain.ItemDef) {
	run, err := w.runRepo.GetByID(ctx, task.RunID)
	if err != nil {
		w.logger.Debug("failed to load run for task", "run_id", task.RunID, "error", err)
		return nil, nil
	}

	version, err := w.projectRepo.GetVersion(ctx, run.ProjectID, run.Version)
	if err != nil {
		w.logger.Debug("failed to load project version", "project_id", run.ProjectID, "error", err)
		return run, nil
	}

	itemDef := version.Spec.ItemByName(task.ItemName)
	if itemDef == nil {
		return run, nil
	}

	// Ретрай-политика элемента либо defaults проекта
	if itemDef.Retry == nil && version.Spec.Defaults != nil {
		withDefaults := *itemDef
		withDefaults.Retry = version.Spec.Defaults.Retry
		if withDefaults.TimeoutSec == 0 {
			withDefaults.TimeoutSec = version.Spec.Defaults.TimeoutSec
		}
		return run, &withDefaults
	}

	return run, itemDef
}
