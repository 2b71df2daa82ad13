// Package worker выполняет отдельные item tasks.
//
// # Обзор
//
// Worker — stateless компонент системы Conveyor, который выполняет
// задачи (tasks), созданные оркестратором. Worker отвечает за:
//
//   - Получение tasks из очереди RabbitMQ (event-driven)
//   - Периодическую проверку queued tasks в БД (polling fallback)
//   - Выполнение task в зависимости от типа элемента
//   - Retry с exponential backoff при ошибках
//   - Отправку результата обратно в очередь items.completed
//
// Workers масштабируются горизонтально — несколько экземпляров
// потребляют из одной очереди items.ready.
//
// # Ключевые компоненты
//
// ## Worker
//
// Основная структура, управляющая жизненным циклом.
// Создаётся через New(cfg Config) и запускается методом Start(ctx).
//
//	w := worker.New(worker.Config{
//	    TaskRepo:    taskRepo,
//	    RunRepo:     runRepo,
//	    ProjectRepo: projectRepo,
//	    Publisher:   publisher,
//	    Conn:        mqConn,
//	    Logger:      logger,
//	})
//
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
// ## Executor
//
// Интерфейс для выполнения конкретного типа элемента:
//
//	type Executor interface {
//	    Execute(ctx context.Context, task *domain.Task) (*ExecutionResult, error)
//	}
//
// Реализации:
//   - ToolExecutor — внешняя программа (os/exec, args, env, output_files)
//   - DataConnectionExecutor — файлы и glob-паттерны → file-ресурсы
//   - DataStoreExecutor — проверка базы, публикация database-ресурса
//   - ImporterExecutor — CSV → таблица postgres
//   - ExporterExecutor — запрос к postgres → CSV/JSON-файлы
//   - ViewExecutor — сводка по полученным ресурсам
//
// ## Registry
//
// Реестр executor'ов по типу элемента. NewRegistry() создаёт реестр
// со всеми шестью типами.
//
// # Обработка task
//
//  1. Получение task (из очереди или polling)
//  2. Загрузка task из БД, проверка статуса QUEUED
//  3. Перевод в RUNNING, инкремент Attempt
//  4. Загрузка run и ItemDef (RetryPolicy, таймаут, флаг dry-run)
//  5. Dry-run → успех со статическими ресурсами, без выполнения
//  6. Иначе — выполнение через executeWithRetry
//  7. Успех → MarkSucceeded(outputs, resources), publish items.completed
//  8. Ошибка → MarkFailed, publish items.completed
//
// # Ресурсы
//
// Executor получает в task.ForwardResources ресурсы предшественников
// (после фильтров связей) и в task.BackwardResources — статические
// ресурсы потомков (например, URL базы, в которую importer пишет).
// Произведённые ресурсы возвращаются в ExecutionResult.Resources и
// сохраняются в task: оркестратор раздаст их потомкам.
//
// # Retry
//
// Retry выполняется в процессе (in-process), а не через requeue в RabbitMQ.
// Это даёт точный контроль над backoff и подсчётом попыток.
//
// Стратегии backoff:
//   - "exponential": delay = initialDelay * 2^(attempt-1), capped at maxDelay
//   - "fixed": delay = initialDelay
//
// # Ошибки
//
// Пакет различает два уровня ошибок:
//   - Инфраструктурные (error от Execute) — база недоступна, программа не нашлась
//   - Логические (ExecutionResult.Error) — ненулевой exit code, нет файла
//
// Оба уровня retriable в пределах MaxAttempts.
package worker
