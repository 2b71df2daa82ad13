package orchestrator

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/avdonin/Conveyor/internal/domain"
)

// testSpec — project из четырёх элементов:
//
//	source → model → store
//	source → side
func testSpec() domain.ProjectSpec {
	return domain.ProjectSpec{
		Items: []domain.ItemDef{
			{Name: "source", Type: "data_connection", Config: map[string]any{
				"files": []any{"/data/in.csv"},
			}},
			{Name: "model", Type: "tool", Config: map[string]any{"command": "run"}},
			{Name: "store", Type: "data_store", Config: map[string]any{
				"url": "postgresql://localhost/results",
			}},
			{Name: "side", Type: "view"},
		},
		Connections: []domain.ConnectionDef{
			{From: "source", To: "model"},
			{From: "model", To: "store"},
			{From: "source", To: "side"},
		},
	}
}

func newTestState(t *testing.T, run *domain.Run) *RunState {
	t.Helper()
	version := &domain.ProjectVersion{Spec: testSpec()}
	state := NewRunState(run, version)
	if err := state.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return state
}

// --- RunState Tests ---

func TestNewRunState(t *testing.T) {
	run := &domain.Run{ID: uuid.New()}
	version := &domain.ProjectVersion{}

	state := NewRunState(run, version)

	if state.Run != run {
		t.Error("Run should be set")
	}
	if state.ProjectVersion != version {
		t.Error("ProjectVersion should be set")
	}
	if state.completed == nil || state.running == nil || state.failed == nil {
		t.Error("state maps should be initialized")
	}
	if state.produced == nil {
		t.Error("produced map should be initialized")
	}
	if state.tasks == nil {
		t.Error("tasks map should be initialized")
	}
}

func TestRunState_Initialize_EmptySpec(t *testing.T) {
	run := &domain.Run{ID: uuid.New()}
	version := &domain.ProjectVersion{
		Spec: domain.ProjectSpec{Items: []domain.ItemDef{}},
	}

	state := NewRunState(run, version)
	err := state.Initialize()

	if err == nil {
		t.Error("expected error for empty spec")
	}
}

func TestRunState_Initialize_ValidSpec(t *testing.T) {
	run := &domain.Run{
		ID:     uuid.New(),
		Inputs: map[string]any{"key": "value"},
	}
	state := newTestState(t, run)

	if state.Graph == nil {
		t.Error("graph should be built")
	}
	if state.Context == nil {
		t.Error("context should be created")
	}
	if state.Context.Inputs["key"] != "value" {
		t.Error("context should have run inputs")
	}

	// Backward-ресурсы вычислены на инициализации:
	// model видит URL стоящего за ним data_store
	backward := state.BackwardResources("model")
	if len(backward) != 1 || backward[0].URL != "postgresql://localhost/results" {
		t.Errorf("unexpected backward resources for model: %v", backward)
	}
}

func TestRunState_MarkItemRunning(t *testing.T) {
	run := &domain.Run{ID: uuid.New()}
	state := newTestState(t, run)
	task := &domain.Task{ID: uuid.New(), ItemName: "source"}

	state.MarkItemRunning("source", task)

	if !state.IsItemRunning("source") {
		t.Error("source should be running")
	}
	if state.GetTask("source") != task {
		t.Error("task should be stored")
	}
}

func TestRunState_MarkItemCompleted(t *testing.T) {
	run := &domain.Run{ID: uuid.New()}
	state := newTestState(t, run)

	task := &domain.Task{ID: uuid.New(), ItemName: "source"}
	state.MarkItemRunning("source", task)

	outputs := map[string]any{"files": 2}
	resources := []domain.Resource{
		domain.FileResource("file:///data/in.csv", "source"),
	}
	state.MarkItemCompleted("source", outputs, resources)

	if state.IsItemRunning("source") {
		t.Error("source should not be running")
	}
	if !state.IsItemCompleted("source") {
		t.Error("source should be completed")
	}

	itemCtx := state.Context.Items["source"]
	if itemCtx == nil {
		t.Fatal("item context should exist")
	}
	if itemCtx.Outputs["files"] != 2 {
		t.Error("item outputs should be in context")
	}
	if itemCtx.Status != "SUCCEEDED" {
		t.Errorf("expected status SUCCEEDED, got %s", itemCtx.Status)
	}

	// Ресурсы попали в реестр и доступны потомкам как forward
	forward := state.ForwardResources("model")
	if len(forward) != 1 || forward[0].URL != "file:///data/in.csv" {
		t.Errorf("unexpected forward resources for model: %v", forward)
	}
}

func TestRunState_MarkItemSkipped(t *testing.T) {
	run := &domain.Run{ID: uuid.New()}
	state := newTestState(t, run)

	state.MarkItemSkipped("source")

	if !state.IsItemCompleted("source") {
		t.Error("skipped item should count as completed for successors")
	}
	if state.Context.Items["source"].Status != "SKIPPED" {
		t.Error("item context should have SKIPPED status")
	}

	// Потомки получают статические ресурсы пропущенного элемента
	forward := state.ForwardResources("model")
	if len(forward) != 1 || forward[0].URL != "file:///data/in.csv" {
		t.Errorf("expected static resources of skipped item, got %v", forward)
	}
}

func TestRunState_MarkItemFailed_BlocksDownstream(t *testing.T) {
	run := &domain.Run{ID: uuid.New()}
	state := newTestState(t, run)

	state.MarkItemCompleted("source", nil, nil)
	state.MarkItemFailed("model", "exit code 1")

	if !state.HasFailed() {
		t.Error("state should have failed items")
	}
	failed := state.FailedItems()
	if len(failed) != 1 || failed[0] != "model" {
		t.Errorf("unexpected failed items: %v", failed)
	}

	// store — ниже model, заблокирован; side — другая ветка, готов
	ready := state.ReadyItems()
	if len(ready) != 1 || ready[0].Name != "side" {
		names := make([]string, len(ready))
		for i, n := range ready {
			names[i] = n.Name
		}
		t.Errorf("expected only side ready, got %v", names)
	}

	// Run не завершён, пока side не выполнится
	if state.IsComplete() {
		t.Error("run should not be complete while side is pending")
	}

	state.MarkItemCompleted("side", nil, nil)
	if !state.IsComplete() {
		t.Error("run should be complete: side done, store blocked")
	}
}

func TestRunState_FailureBeforeDispatchCompletesRun(t *testing.T) {
	run := &domain.Run{ID: uuid.New()}
	state := newTestState(t, run)

	// Падение до отправки worker'у (ошибка рендеринга конфигурации
	// корневого элемента) блокирует весь граф — run финализируется
	// сразу, а не висит в RUNNING
	state.MarkItemFailed("source", "render config: template parse error")

	if !state.HasFailed() {
		t.Error("state should have failed items")
	}
	if len(state.ReadyItems()) != 0 {
		t.Error("no items should be ready after root failure")
	}
	if !state.IsComplete() {
		t.Error("run should be complete: source failed, everything else blocked")
	}
}

func TestRunState_ForwardResources_AppliesEdgeFilters(t *testing.T) {
	spec := domain.ProjectSpec{
		Items: []domain.ItemDef{
			{Name: "db", Type: "data_store", Config: map[string]any{
				"url": "postgresql://localhost/model",
			}},
			{Name: "sim", Type: "tool"},
		},
		Connections: []domain.ConnectionDef{
			{From: "db", To: "sim", Filters: []domain.FilterDef{
				{Type: domain.FilterTypeScenario, Values: []string{"low", "high"}},
			}},
		},
	}
	run := &domain.Run{ID: uuid.New()}
	state := NewRunState(run, &domain.ProjectVersion{Spec: spec})
	if err := state.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	state.MarkItemCompleted("db", nil, []domain.Resource{
		domain.DatabaseResource("postgresql://localhost/model", "db"),
	})

	forward := state.ForwardResources("sim")
	if len(forward) != 2 {
		t.Fatalf("expected 2 filtered variants, got %d", len(forward))
	}
	labels := map[string]bool{}
	for _, res := range forward {
		labels[res.Label] = true
	}
	if !labels["db@low"] || !labels["db@high"] {
		t.Errorf("unexpected labels: %v", labels)
	}
}

func TestRunState_IsComplete(t *testing.T) {
	run := &domain.Run{ID: uuid.New()}
	state := newTestState(t, run)

	if state.IsComplete() {
		t.Error("should not be complete initially")
	}

	state.MarkItemCompleted("source", nil, nil)
	state.MarkItemCompleted("model", nil, nil)
	state.MarkItemCompleted("side", nil, nil)
	if state.IsComplete() {
		t.Error("should not be complete without store")
	}

	state.MarkItemCompleted("store", nil, nil)
	if !state.IsComplete() {
		t.Error("should be complete with all items done")
	}
}

func TestRunState_ReadyItems(t *testing.T) {
	run := &domain.Run{ID: uuid.New()}
	state := newTestState(t, run)

	// В начале готов только корень
	ready := state.ReadyItems()
	if len(ready) != 1 || ready[0].Name != "source" {
		t.Errorf("expected only source ready, got %d items", len(ready))
	}

	// source выполняется — ничего не готово
	state.MarkItemRunning("source", &domain.Task{})
	if len(state.ReadyItems()) != 0 {
		t.Error("nothing should be ready while source is running")
	}

	// source завершён — готовы model и side
	state.MarkItemCompleted("source", nil, nil)
	ready = state.ReadyItems()
	if len(ready) != 2 {
		t.Errorf("expected 2 ready items, got %d", len(ready))
	}
}

func TestRunState_Stats(t *testing.T) {
	run := &domain.Run{ID: uuid.New()}
	state := newTestState(t, run)

	stats := state.Stats()
	if stats.TotalItems != 4 {
		t.Errorf("expected 4 total items, got %d", stats.TotalItems)
	}
	if stats.PendingItems != 4 {
		t.Errorf("expected 4 pending items, got %d", stats.PendingItems)
	}

	state.MarkItemRunning("source", &domain.Task{})
	stats = state.Stats()
	if stats.RunningItems != 1 || stats.PendingItems != 3 {
		t.Errorf("unexpected stats after running: %+v", stats)
	}

	state.MarkItemCompleted("source", nil, nil)
	state.MarkItemSkipped("side")
	state.MarkItemFailed("model", "error")
	stats = state.Stats()
	if stats.SucceededItems != 1 {
		t.Errorf("expected 1 succeeded item, got %d", stats.SucceededItems)
	}
	if stats.SkippedItems != 1 {
		t.Errorf("expected 1 skipped item, got %d", stats.SkippedItems)
	}
	if stats.FailedItems != 1 {
		t.Errorf("expected 1 failed item, got %d", stats.FailedItems)
	}
	if stats.BlockedItems != 1 {
		t.Errorf("expected 1 blocked item (store), got %d", stats.BlockedItems)
	}
	if stats.PendingItems != 0 {
		t.Errorf("expected 0 pending items, got %d", stats.PendingItems)
	}
}

func TestRunState_RestoreFromTasks(t *testing.T) {
	run := &domain.Run{ID: uuid.New()}
	state := newTestState(t, run)

	tasks := []domain.Task{
		{
			ID:       uuid.New(),
			ItemName: "source",
			Status:   domain.TaskStatusSucceeded,
			Outputs:  map[string]any{"data": "result1"},
			Resources: []domain.Resource{
				domain.FileResource("file:///data/in.csv", "source"),
			},
		},
		{
			ID:       uuid.New(),
			ItemName: "model",
			Status:   domain.TaskStatusFailed,
		},
		{
			ID:       uuid.New(),
			ItemName: "side",
			Status:   domain.TaskStatusRunning,
		},
	}

	state.RestoreFromTasks(tasks)

	if !state.IsItemCompleted("source") {
		t.Error("source should be completed")
	}
	if state.Context.Items["source"].Outputs["data"] != "result1" {
		t.Error("source outputs should be in context")
	}

	// Реестр ресурсов восстановлен
	forward := state.ForwardResources("model")
	if len(forward) != 1 {
		t.Errorf("expected 1 forward resource for model, got %d", len(forward))
	}

	if !state.HasFailed() {
		t.Error("state should have failed items")
	}

	// store — ниже упавшего model — заблокирован
	stats := state.Stats()
	if stats.BlockedItems != 1 {
		t.Errorf("expected 1 blocked item, got %d", stats.BlockedItems)
	}

	if !state.IsItemRunning("side") {
		t.Error("side should be running")
	}

	if state.GetTask("source") == nil {
		t.Error("source task should be stored")
	}
}

func TestRunState_RunID(t *testing.T) {
	runID := uuid.New()
	projectID := uuid.New()
	run := &domain.Run{ID: runID, ProjectID: projectID}
	state := NewRunState(run, &domain.ProjectVersion{})

	if state.RunID() != runID {
		t.Error("RunID should return run ID")
	}
	if state.ProjectID() != projectID {
		t.Error("ProjectID should return project ID")
	}
}

// --- Orchestrator Tests ---

func TestNew(t *testing.T) {
	orch := New(Config{})

	if orch.activeRuns == nil {
		t.Error("activeRuns should be initialized")
	}
	if orch.pollInterval != defaultPollInterval {
		t.Errorf("expected default poll interval %v, got %v", defaultPollInterval, orch.pollInterval)
	}
	if orch.batchSize != defaultBatchSize {
		t.Errorf("expected default batch size %d, got %d", defaultBatchSize, orch.batchSize)
	}
}

func TestNew_CustomConfig(t *testing.T) {
	orch := New(Config{
		PollInterval: 5 * time.Second,
		BatchSize:    50,
	})

	if orch.pollInterval != 5*time.Second {
		t.Errorf("expected poll interval 5s, got %v", orch.pollInterval)
	}
	if orch.batchSize != 50 {
		t.Errorf("expected batch size 50, got %d", orch.batchSize)
	}
}

func TestOrchestrator_ActiveRuns(t *testing.T) {
	orch := New(Config{})

	runID := uuid.New()
	state := &RunState{
		Run: &domain.Run{ID: runID},
	}

	if orch.ActiveRunsCount() != 0 {
		t.Error("should have no active runs initially")
	}
	if orch.isRunActive(runID) {
		t.Error("run should not be active initially")
	}

	err := orch.addActiveRun(state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if orch.ActiveRunsCount() != 1 {
		t.Error("should have 1 active run")
	}
	if !orch.isRunActive(runID) {
		t.Error("run should be active")
	}
	if orch.getActiveRun(runID) != state {
		t.Error("getActiveRun should return the state")
	}

	err = orch.addActiveRun(state)
	if err != ErrRunAlreadyActive {
		t.Errorf("expected ErrRunAlreadyActive, got %v", err)
	}

	orch.removeActiveRun(runID)

	if orch.ActiveRunsCount() != 0 {
		t.Error("should have no active runs after removal")
	}
	if orch.isRunActive(runID) {
		t.Error("run should not be active after removal")
	}
}

func TestOrchestrator_DropIfFinishedExternally(t *testing.T) {
	orch := New(Config{})

	runID := uuid.New()
	state := &RunState{
		Run: &domain.Run{ID: runID, Status: domain.RunStatusRunning},
	}
	_ = orch.addActiveRun(state)

	// Run ещё выполняется — состояние остаётся
	if orch.dropIfFinishedExternally(&domain.Run{ID: runID, Status: domain.RunStatusRunning}) {
		t.Error("running run should not be dropped")
	}
	if !orch.isRunActive(runID) {
		t.Error("run should still be active")
	}

	// Run отменён через API — состояние сбрасывается, dispatch прекращается
	cancelled := &domain.Run{ID: runID, Status: domain.RunStatusRunning}
	cancelled.MarkCancelled()
	if !orch.dropIfFinishedExternally(cancelled) {
		t.Error("cancelled run should be dropped")
	}
	if orch.isRunActive(runID) {
		t.Error("cancelled run should not stay active")
	}

	if orch.dropIfFinishedExternally(nil) {
		t.Error("nil run should not be dropped")
	}
}

func TestOrchestrator_GetActiveRunStats(t *testing.T) {
	orch := New(Config{})

	runID := uuid.New()
	run := &domain.Run{ID: runID}
	state := newTestState(t, run)

	_, ok := orch.GetActiveRunStats(runID)
	if ok {
		t.Error("should not find stats for non-active run")
	}

	_ = orch.addActiveRun(state)
	stats, ok := orch.GetActiveRunStats(runID)
	if !ok {
		t.Fatal("should find stats for active run")
	}
	if stats.TotalItems != 4 {
		t.Errorf("expected 4 total items, got %d", stats.TotalItems)
	}
}

func TestOrchestrator_IsStopped(t *testing.T) {
	orch := New(Config{})

	if orch.IsStopped() {
		t.Error("should not be stopped initially")
	}

	orch.stoppedMu.Lock()
	orch.stopped = true
	orch.stoppedMu.Unlock()

	if !orch.IsStopped() {
		t.Error("should be stopped")
	}
}
