package orchestrator

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

// handleRunPending обрабатывает событие о новом pending run.
func (o *Orchestrator) handleRunPending(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.RunPendingPayload](&delivery.Message)
	if err != nil {
		o.logger.Error("failed to parse run.pending payload", "error", err)
		return err
	}

	o.logger.Debug("received run.pending event", "run_id", payload.RunID)

	// Проверяем, не обрабатывается ли уже
	if o.isRunActive(payload.RunID) {
		o.logger.Debug("run already active, skipping", "run_id", payload.RunID)
		return nil
	}

	// Обрабатываем run
	if err := o.processRun(ctx, payload.RunID); err != nil {
		if errors.Is(err, ErrRunNotPending) || errors.Is(err, ErrRunAlreadyActive) {
			o.logger.Debug("run not processed", "run_id", payload.RunID, "reason", err)
			return nil
		}
		o.logger.Error("failed to process run", "run_id", payload.RunID, "error", err)
		return err
	}

	return nil
}

// handleItemCompleted обрабатывает событие о завершённой задаче элемента.
func (o *Orchestrator) handleItemCompleted(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.ItemCompletedPayload](&delivery.Message)
	if err != nil {
		o.logger.Error("failed to parse item.completed payload", "error", err)
		return err
	}

	o.logger.Debug("received item.completed event",
		"task_id", payload.TaskID,
		"run_id", payload.RunID,
		"item", payload.ItemName,
		"status", payload.Status,
	)

	if err := o.processItemCompleted(ctx, payload); err != nil {
		o.logger.Error("failed to process item completion",
			"task_id", payload.TaskID,
			"run_id", payload.RunID,
			"error", err,
		)
		return err
	}

	return nil
}

// processRun обрабатывает новый run.
func (o *Orchestrator) processRun(ctx context.Context, runID uuid.UUID) error {
	// 1. Загружаем run из БД
	run, err := o.runRepo.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return fmt.Errorf("get run: %w", err)
	}

	// 2. Проверяем статус
	if run.Status != domain.RunStatusPending {
		return ErrRunNotPending
	}

	// 3. Загружаем ProjectVersion
	version, err := o.projectRepo.GetVersion(ctx, run.ProjectID, run.Version)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return o.failRun(ctx, run, fmt.Sprintf("project version not found: %s v%d", run.ProjectID, run.Version))
		}
		return fmt.Errorf("get project version: %w", err)
	}

	// 4. Создаём RunState
	state := NewRunState(run, version)

	// 5. Инициализируем (валидация, граф, backward-ресурсы, контекст)
	if err := state.Initialize(); err != nil {
		return o.failRun(ctx, run, fmt.Sprintf("initialization failed: %v", err))
	}

	// 6. Проверяем обязательные inputs
	if err := engine.ValidateInputs(&version.Spec, run.Inputs); err != nil {
		return o.failRun(ctx, run, fmt.Sprintf("invalid inputs: %v", err))
	}

	// 7. Добавляем в активные runs
	if err := o.addActiveRun(state); err != nil {
		return err
	}

	// 8. Переводим run в RUNNING
	run.MarkRunning()
	if err := o.runRepo.Update(ctx, run); err != nil {
		o.removeActiveRun(runID)
		return fmt.Errorf("update run to running: %w", err)
	}

	telemetry.RunsStarted.Inc()

	o.logger.Info("run started",
		"run_id", runID,
		"project_id", run.ProjectID,
		"version", run.Version,
		"items", state.Graph.Size(),
		"dry_run", run.IsDryRun,
	)

	// 9. Запускаем готовые элементы
	if err := o.dispatchReadyItems(ctx, state); err != nil {
		o.logger.Error("failed to dispatch initial items", "run_id", runID, "error", err)
		// Не удаляем из активных — попробуем при следующем событии
	}

	return nil
}

// processItemCompleted обрабатывает завершение задачи элемента.
func (o *Orchestrator) processItemCompleted(ctx context.Context, payload mq.ItemCompletedPayload) error {
	// 1. Получаем активный RunState
	state := o.getActiveRun(payload.RunID)

	// Если run не в памяти, пытаемся восстановить
	if state == nil {
		var err error
		state, err = o.restoreRunState(ctx, payload.RunID)
		if err != nil {
			return fmt.Errorf("restore run state: %w", err)
		}
		if state == nil {
			// Run уже завершён или не существует
			o.logger.Debug("run not active and cannot restore", "run_id", payload.RunID)
			return nil
		}
	}

	// 2. Отмена приходит через API и видна только в БД —
	// сверяем актуальный статус перед дальнейшим dispatch
	current, err := o.runRepo.GetByID(ctx, payload.RunID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			o.removeActiveRun(payload.RunID)
			return nil
		}
		return fmt.Errorf("get run: %w", err)
	}
	if o.dropIfFinishedExternally(current) {
		return nil
	}

	// 3. Загружаем task из БД (актуальные outputs и resources)
	task, err := o.taskRepo.GetByID(ctx, payload.TaskID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, payload.TaskID)
		}
		return fmt.Errorf("get task: %w", err)
	}

	itemName := payload.ItemName

	// 4. Обновляем состояние элемента
	switch payload.Status {
	case string(domain.TaskStatusSucceeded):
		state.MarkItemCompleted(itemName, task.Outputs, task.Resources)
		o.logger.Debug("item completed",
			"run_id", payload.RunID,
			"item", itemName,
			"resources", len(task.Resources),
		)

	default:
		// Retry исчерпан на стороне worker'а — элемент упал.
		// Блокируем только его ветку, остальные продолжают выполняться.
		state.MarkItemFailed(itemName, payload.Error)
		o.logger.Warn("item failed, blocking downstream branch",
			"run_id", payload.RunID,
			"item", itemName,
			"error", payload.Error,
		)
	}

	// 5. Проверяем завершение run: все элементы учтены
	if state.IsComplete() {
		return o.completeRun(ctx, state, !state.HasFailed())
	}

	// 6. Запускаем следующие готовые элементы
	return o.dispatchReadyItems(ctx, state)
}

// dispatchReadyItems создаёт tasks для готовых элементов и публикует их.
func (o *Orchestrator) dispatchReadyItems(ctx context.Context, state *RunState) error {
	for {
		ready := state.ReadyItems()
		if len(ready) == 0 {
			break
		}

		o.logger.Debug("dispatching ready items",
			"run_id", state.RunID(),
			"count", len(ready),
		)

		// Пропуск элемента может сразу открыть его потомков,
		// поэтому обходим готовые элементы волнами.
		progressed := false
		for _, node := range ready {
			dispatched, err := o.dispatchItem(ctx, state, node)
			if err != nil {
				o.logger.Error("failed to dispatch item",
					"run_id", state.RunID(),
					"item", node.Name,
					"error", err,
				)
				continue
			}
			if !dispatched {
				progressed = true
			}
		}

		if !progressed {
			break
		}
	}

	// Если все элементы оказались пропущены — run завершён
	if state.IsComplete() {
		return o.completeRun(ctx, state, !state.HasFailed())
	}

	return nil
}

// dispatchItem создаёт task для элемента и публикует его.
// Возвращает true, если task отправлен worker'у, и false, если
// элемент был пропущен или упал до отправки (и состояние его
// потомков могло измениться).
func (o *Orchestrator) dispatchItem(ctx context.Context, state *RunState, node *engine.Node) (bool, error) {
	item := node.Item
	run := state.Run

	// Выборочное выполнение: невыбранный элемент пропускается,
	// его статические ресурсы всё равно достаются потомкам.
	if !run.IsItemSelected(node.Name) {
		o.logger.Debug("item not selected, skipping",
			"run_id", state.RunID(),
			"item", node.Name,
		)
		return false, o.skipItem(ctx, state, node, "not selected")
	}

	// Forward-ресурсы: всё, что произвели предшественники,
	// пропущенное через фильтры входящих связей.
	forward := state.ForwardResources(node.Name)
	backward := state.BackwardResources(node.Name)

	// Контекст рендеринга этого элемента видит его forward-ресурсы
	renderCtx := state.Context.WithResources(forward)

	// Проверяем condition (если есть)
	if item.Condition != "" {
		shouldRun, err := engine.RenderCondition(item.Condition, renderCtx)
		if err != nil {
			// Ошибка рендеринга — элемент упал до отправки worker'у,
			// его ветка блокируется как при ошибке выполнения
			return false, o.failItem(ctx, state, node, fmt.Sprintf("render condition: %v", err))
		}
		if !shouldRun {
			o.logger.Debug("item skipped due to condition",
				"run_id", state.RunID(),
				"item", node.Name,
			)
			return false, o.skipItem(ctx, state, node, "condition evaluated to false")
		}
	}

	// Рендерим конфигурацию элемента
	config, err := engine.RenderConfig(item.Config, renderCtx)
	if err != nil {
		return false, o.failItem(ctx, state, node, fmt.Sprintf("render config: %v", err))
	}

	// Создаём task
	task := &domain.Task{
		ID:                uuid.New(),
		RunID:             state.RunID(),
		ItemName:          node.Name,
		Type:              item.Type,
		Attempt:           0,
		Status:            domain.TaskStatusQueued,
		Payload:           config,
		ForwardResources:  forward,
		BackwardResources: backward,
		CreatedAt:         time.Now(),
	}

	// Сохраняем в БД
	if err := o.taskRepo.Create(ctx, task); err != nil {
		return false, fmt.Errorf("create task: %w", err)
	}

	// Помечаем элемент как running
	state.MarkItemRunning(node.Name, task)

	// Публикуем событие для Worker
	if err := o.publisher.PublishItemReady(ctx, task.ID, task.RunID); err != nil {
		o.logger.Warn("failed to publish item.ready",
			"task_id", task.ID,
			"run_id", state.RunID(),
			"error", err,
		)
		// Task создан в БД — Worker может забрать через polling
	}

	telemetry.TasksDispatched.WithLabelValues(item.Type).Inc()

	o.logger.Debug("task dispatched",
		"task_id", task.ID,
		"run_id", state.RunID(),
		"item", node.Name,
		"type", item.Type,
		"forward_resources", len(forward),
		"backward_resources", len(backward),
	)

	return true, nil
}

// skipItem записывает SKIPPED task и помечает элемент пропущенным.
func (o *Orchestrator) skipItem(ctx context.Context, state *RunState, node *engine.Node, reason string) error {
	task := &domain.Task{
		ID:        uuid.New(),
		RunID:     state.RunID(),
		ItemName:  node.Name,
		Type:      node.Item.Type,
		Status:    domain.TaskStatusSkipped,
		CreatedAt: time.Now(),
	}
	task.MarkSkipped(reason)

	if err := o.taskRepo.Create(ctx, task); err != nil {
		return fmt.Errorf("create skipped task: %w", err)
	}
	// Create не сохраняет terminal-поля — фиксируем их отдельным Update
	if err := o.taskRepo.Update(ctx, task); err != nil {
		return fmt.Errorf("update skipped task: %w", err)
	}

	state.MarkItemSkipped(node.Name)
	telemetry.TasksCompleted.WithLabelValues(node.Item.Type, string(domain.TaskStatusSkipped)).Inc()
	return nil
}

// failItem записывает FAILED task и блокирует ветку элемента.
// Используется когда элемент падает до отправки worker'у
// (ошибка рендеринга условия или конфигурации).
func (o *Orchestrator) failItem(ctx context.Context, state *RunState, node *engine.Node, errMsg string) error {
	task := &domain.Task{
		ID:        uuid.New(),
		RunID:     state.RunID(),
		ItemName:  node.Name,
		Type:      node.Item.Type,
		Status:    domain.TaskStatusFailed,
		CreatedAt: time.Now(),
	}
	task.MarkFailed(errMsg)

	if err := o.taskRepo.Create(ctx, task); err != nil {
		return fmt.Errorf("create failed task: %w", err)
	}
	// Create не сохраняет terminal-поля — фиксируем их отдельным Update
	if err := o.taskRepo.Update(ctx, task); err != nil {
		return fmt.Errorf("update failed task: %w", err)
	}

	state.MarkItemFailed(node.Name, errMsg)
	telemetry.TasksCompleted.WithLabelValues(node.Item.Type, string(domain.TaskStatusFailed)).Inc()

	o.logger.Warn("item failed before dispatch, blocking downstream branch",
		"run_id", state.RunID(),
		"item", node.Name,
		"error", errMsg,
	)
	return nil
}

// completeRun завершает run (успешно или с ошибкой).
func (o *Orchestrator) completeRun(ctx context.Context, state *RunState, success bool) error {
	run := state.Run

	if success {
		run.MarkSucceeded()
		o.logger.Info("run succeeded",
			"run_id", run.ID,
			"duration", run.Duration(),
		)
	} else {
		failedItems := state.FailedItems()
		errMsg := fmt.Sprintf("items failed: %v", failedItems)
		run.MarkFailed(errMsg)
		o.logger.Warn("run failed",
			"run_id", run.ID,
			"failed_items", failedItems,
			"duration", run.Duration(),
		)
	}

	// Условный UPDATE: терминальный статус, выставленный извне
	// (cancel через API), не перезаписываем
	if err := o.runRepo.Finish(ctx, run); err != nil {
		if errors.Is(err, repo.ErrAlreadyFinished) {
			o.logger.Info("run already finished externally, dropping state", "run_id", run.ID)
			o.removeActiveRun(run.ID)
			return nil
		}
		return fmt.Errorf("update run status: %w", err)
	}

	telemetry.RunsCompleted.WithLabelValues(string(run.Status)).Inc()

	// Удаляем из активных
	o.removeActiveRun(run.ID)

	return nil
}

// dropIfFinishedExternally убирает run из активных, если его статус
// в БД уже терминальный. Возвращает true, если run сброшен и
// дальнейший dispatch не нужен.
func (o *Orchestrator) dropIfFinishedExternally(current *domain.Run) bool {
	if current == nil || !current.IsFinished() {
		return false
	}
	o.logger.Info("run finished externally, dropping state",
		"run_id", current.ID,
		"status", current.Status,
	)
	o.removeActiveRun(current.ID)
	return true
}

// failRun переводит run в статус FAILED.
func (o *Orchestrator) failRun(ctx context.Context, run *domain.Run, errMsg string) error {
	run.MarkFailed(errMsg)

	if err := o.runRepo.Finish(ctx, run); err != nil {
		if errors.Is(err, repo.ErrAlreadyFinished) {
			o.removeActiveRun(run.ID)
			return nil
		}
		return fmt.Errorf("update run to failed: %w", err)
	}

	telemetry.RunsCompleted.WithLabelValues(string(run.Status)).Inc()

	o.logger.Warn("run failed early",
		"run_id", run.ID,
		"error", errMsg,
	)

	return fmt.Errorf("run failed: %s", errMsg)
}

// restoreRunState восстанавливает RunState из БД.
// Используется когда item.completed приходит для run, которого нет в памяти
// (после рестарта Orchestrator).
func (o *Orchestrator) restoreRunState(ctx context.Context, runID uuid.UUID) (*RunState, error) {
	// Загружаем run
	run, err := o.runRepo.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil // Run не существует
		}
		return nil, fmt.Errorf("get run: %w", err)
	}

	// Если run уже завершён — ничего не делаем
	if run.IsFinished() {
		return nil, nil
	}

	// Загружаем ProjectVersion
	version, err := o.projectRepo.GetVersion(ctx, run.ProjectID, run.Version)
	if err != nil {
		return nil, fmt.Errorf("get project version: %w", err)
	}

	// Создаём и инициализируем state
	state := NewRunState(run, version)
	if err := state.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize state: %w", err)
	}

	// Загружаем tasks и восстанавливаем состояние
	tasks, err := o.taskRepo.ListByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	state.RestoreFromTasks(tasks)

	// Добавляем в активные
	if err := o.addActiveRun(state); err != nil {
		if errors.Is(err, ErrRunAlreadyActive) {
			// Кто-то уже восстановил — возвращаем его
			return o.getActiveRun(runID), nil
		}
		return nil, err
	}

	o.logger.Info("run state restored",
		"run_id", runID,
		"stats", state.Stats(),
	)

	return state, nil
}
