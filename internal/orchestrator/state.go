package orchestrator

import (
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/avdonin/Conveyor/internal/domain"
	"github.com/avdonin/Conveyor/internal/engine"
)

// RunState — состояние выполнения одного run в памяти.
//
// RunState создаётся когда Orchestrator начинает обработку run
// и удаляется когда run завершается (SUCCEEDED/FAILED/CANCELLED).
//
// Содержит:
//   - Кэш данных из БД (Run, ProjectVersion)
//   - Построенный граф элементов
//   - Контекст для шаблонов (с outputs завершённых элементов)
//   - Реестр ресурсов: что произвёл каждый элемент
//   - Отслеживание статуса каждого элемента
type RunState struct {
	// Run — данные run из БД.
	Run *domain.Run

	// ProjectVersion — версия project с ProjectSpec.
	ProjectVersion *domain.ProjectVersion

	// Graph — граф элементов project.
	Graph *engine.Graph

	// Context — контекст для рендеринга шаблонов.
	// Содержит Inputs и Outputs завершённых элементов.
	Context *engine.Context

	// backward — backward-ресурсы каждого элемента,
	// вычисленные один раз при инициализации.
	backward map[string][]domain.Resource

	// produced — ресурсы, произведённые каждым элементом.
	// Для успешных элементов — Task.Resources,
	// для пропущенных — их статические ресурсы.
	produced map[string][]domain.Resource

	// completed — завершённые элементы (успешно или пропущенные).
	// Потомки завершённого элемента могут запускаться.
	completed map[string]bool

	// running — элементы в процессе выполнения.
	running map[string]bool

	// failed — упавшие элементы.
	failed map[string]bool

	// skipped — пропущенные элементы (невыбранные или с ложным условием).
	// Подмножество completed.
	skipped map[string]bool

	// blocked — элементы ниже по графу от упавших.
	// Никогда не будут запущены.
	blocked map[string]bool

	// tasks — созданные tasks (itemName → Task).
	tasks map[string]*domain.Task

	mu sync.RWMutex
}

// NewRunState создаёт новый RunState.
func NewRunState(run *domain.Run, version *domain.ProjectVersion) *RunState {
	return &RunState{
		Run:            run,
		ProjectVersion: version,
		produced:       make(map[string][]domain.Resource),
		completed:      make(map[string]bool),
		running:        make(map[string]bool),
		failed:         make(map[string]bool),
		skipped:        make(map[string]bool),
		blocked:        make(map[string]bool),
		tasks:          make(map[string]*domain.Task),
	}
}

// Initialize инициализирует RunState: валидирует ProjectSpec,
// строит граф, вычисляет backward-ресурсы, создаёт Context.
func (s *RunState) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	spec := &s.ProjectVersion.Spec

	// 1. Валидация ProjectSpec
	if err := engine.Validate(spec); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProjectSpec, err)
	}

	// 2. Построение графа
	g, err := engine.BuildGraph(spec)
	if err != nil {
		return fmt.Errorf("build graph: %w", err)
	}
	s.Graph = g

	// 3. Backward-пасс: статические ресурсы потомков каждого элемента.
	// Вычисляется один раз — до начала выполнения.
	s.backward = engine.BackwardResources(g)

	// 4. Создание контекста с inputs (с учётом defaults)
	// и окружением процесса для {{ .Env.VAR }}
	s.Context = engine.NewContext(engine.MergeInputs(spec, s.Run.Inputs))
	s.Context.SetEnviron(os.Environ())

	return nil
}

// ReadyItems возвращает элементы, готовые к выполнению.
// Элемент готов, если все его предшественники завершены,
// сам он ещё не запущен и не заблокирован упавшей веткой.
func (s *RunState) ReadyItems() []*engine.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ready := s.Graph.ReadyNodes(s.completed, s.running)

	result := make([]*engine.Node, 0, len(ready))
	for _, node := range ready {
		if s.blocked[node.Name] || s.failed[node.Name] {
			continue
		}
		result = append(result, node)
	}
	return result
}

// ForwardResources собирает forward-ресурсы элемента: ресурсы
// непосредственных предшественников, пропущенные через фильтры связей.
func (s *RunState) ForwardResources(itemName string) []domain.Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node := s.Graph.Node(itemName)
	if node == nil {
		return nil
	}

	var resources []domain.Resource
	for _, edge := range node.Upstream {
		upstream := s.produced[edge.From.Name]
		if len(upstream) == 0 {
			continue
		}
		resources = append(resources, engine.ApplyFilters(upstream, edge.Filters)...)
	}
	return resources
}

// BackwardResources возвращает backward-ресурсы элемента.
func (s *RunState) BackwardResources(itemName string) []domain.Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backward[itemName]
}

// MarkItemRunning помечает элемент как выполняющийся.
func (s *RunState) MarkItemRunning(itemName string, task *domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running[itemName] = true
	s.tasks[itemName] = task
}

// MarkItemCompleted помечает элемент как успешно завершённый.
// Outputs попадают в Context, resources — в реестр для потомков.
func (s *RunState) MarkItemCompleted(itemName string, outputs map[string]any, resources []domain.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.running, itemName)
	s.completed[itemName] = true
	s.produced[itemName] = resources

	s.Context.AddItemResult(itemName, outputs, string(domain.TaskStatusSucceeded))
}

// MarkItemSkipped помечает элемент как пропущенный.
// Пропущенный элемент считается завершённым для потомков,
// но в реестр ресурсов попадают только его статические ресурсы.
func (s *RunState) MarkItemSkipped(itemName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.running, itemName)
	s.completed[itemName] = true
	s.skipped[itemName] = true

	if node := s.Graph.Node(itemName); node != nil {
		s.produced[itemName] = engine.StaticResources(node.Item)
	}

	s.Context.AddItemResult(itemName, nil, string(domain.TaskStatusSkipped))
}

// MarkItemFailed помечает элемент как упавший и блокирует всю его
// нижележащую ветку. Остальные ветки графа продолжают выполняться.
func (s *RunState) MarkItemFailed(itemName string, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.running, itemName)
	s.failed[itemName] = true

	for name := range s.Graph.DownstreamOf(itemName) {
		if !s.completed[name] && !s.running[name] {
			s.blocked[name] = true
		}
	}

	s.Context.AddItemResult(itemName, nil, string(domain.TaskStatusFailed))
}

// IsItemRunning проверяет, выполняется ли элемент.
func (s *RunState) IsItemRunning(itemName string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running[itemName]
}

// IsItemCompleted проверяет, завершён ли элемент.
func (s *RunState) IsItemCompleted(itemName string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.completed[itemName]
}

// GetTask возвращает task для элемента.
func (s *RunState) GetTask(itemName string) *domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tasks[itemName]
}

// IsComplete проверяет, все ли элементы учтены:
// завершены, упали или заблокированы упавшей веткой.
func (s *RunState) IsComplete() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for name := range s.Graph.Nodes {
		if !s.completed[name] && !s.failed[name] && !s.blocked[name] {
			return false
		}
	}
	return true
}

// HasFailed проверяет, есть ли упавшие элементы.
func (s *RunState) HasFailed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.failed) > 0
}

// FailedItems возвращает список упавших элементов.
func (s *RunState) FailedItems() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]string, 0, len(s.failed))
	for name := range s.failed {
		items = append(items, name)
	}
	return items
}

// RunID возвращает ID run.
func (s *RunState) RunID() uuid.UUID {
	return s.Run.ID
}

// ProjectID возвращает ID project.
func (s *RunState) ProjectID() uuid.UUID {
	return s.Run.ProjectID
}

// Stats возвращает статистику выполнения.
func (s *RunState) Stats() RunStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := s.Graph.Size()
	succeeded := len(s.completed) - len(s.skipped)
	return RunStats{
		TotalItems:     total,
		SucceededItems: succeeded,
		SkippedItems:   len(s.skipped),
		RunningItems:   len(s.running),
		FailedItems:    len(s.failed),
		BlockedItems:   len(s.blocked),
		PendingItems:   total - len(s.completed) - len(s.running) - len(s.failed) - len(s.blocked),
	}
}

// RunStats — статистика выполнения run.
type RunStats struct {
	TotalItems     int
	SucceededItems int
	SkippedItems   int
	RunningItems   int
	FailedItems    int
	BlockedItems   int
	PendingItems   int
}

// RestoreFromTasks восстанавливает состояние из списка tasks (после рестарта).
func (s *RunState) RestoreFromTasks(tasks []domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range tasks {
		task := &tasks[i]
		s.tasks[task.ItemName] = task

		switch task.Status {
		case domain.TaskStatusSucceeded:
			s.completed[task.ItemName] = true
			s.produced[task.ItemName] = task.Resources
			s.Context.AddItemResult(task.ItemName, task.Outputs, string(domain.TaskStatusSucceeded))

		case domain.TaskStatusSkipped:
			s.completed[task.ItemName] = true
			s.skipped[task.ItemName] = true
			if node := s.Graph.Node(task.ItemName); node != nil {
				s.produced[task.ItemName] = engine.StaticResources(node.Item)
			}
			s.Context.AddItemResult(task.ItemName, nil, string(domain.TaskStatusSkipped))

		case domain.TaskStatusFailed:
			s.failed[task.ItemName] = true
			s.Context.AddItemResult(task.ItemName, nil, string(domain.TaskStatusFailed))

		case domain.TaskStatusRunning:
			s.running[task.ItemName] = true

		case domain.TaskStatusQueued:
			// Task в очереди — будет обработан worker'ом
		}
	}

	// Блокировка веток восстанавливается после всех статусов
	for name := range s.failed {
		for down := range s.Graph.DownstreamOf(name) {
			if !s.completed[down] && !s.running[down] {
				s.blocked[down] = true
			}
		}
	}
}
