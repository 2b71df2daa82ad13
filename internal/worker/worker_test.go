package worker

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/avdonin/Conveyor/internal/domain"
)

// --- ToolExecutor Tests ---

func TestToolExecutor_Success(t *testing.T) {
	executor := &ToolExecutor{}
	task := &domain.Task{
		ID:       uuid.New(),
		ItemName: "model",
		Payload: map[string]any{
			"command": "echo",
			"args":    []any{"hello"},
		},
	}

	result, err := executor.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Error != "" {
		t.Fatalf("unexpected execution error: %s", result.Error)
	}

	if result.Outputs["exit_code"] != 0 {
		t.Errorf("expected exit_code 0, got %v", result.Outputs["exit_code"])
	}
	stdout, _ := result.Outputs["stdout"].(string)
	if !strings.Contains(stdout, "hello") {
		t.Errorf("expected stdout to contain hello, got %q", stdout)
	}
}

func TestToolExecutor_NonZeroExit(t *testing.T) {
	executor := &ToolExecutor{}
	task := &domain.Task{
		ID:       uuid.New(),
		ItemName: "model",
		Payload: map[string]any{
			"command": "sh",
			"args":    []any{"-c", "exit 3"},
		},
	}

	result, err := executor.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("non-zero exit should be a logical error: %v", err)
	}

	if result.Error == "" {
		t.Error("expected execution error for exit code 3")
	}
	if result.Outputs["exit_code"] != 3 {
		t.Errorf("expected exit_code 3, got %v", result.Outputs["exit_code"])
	}
}

func TestToolExecutor_MissingCommand(t *testing.T) {
	executor := &ToolExecutor{}
	task := &domain.Task{
		ID:      uuid.New(),
		Payload: map[string]any{},
	}

	_, err := executor.Execute(context.Background(), task)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestToolExecutor_CommandNotFound(t *testing.T) {
	executor := &ToolExecutor{}
	task := &domain.Task{
		ID: uuid.New(),
		Payload: map[string]any{
			"command": "definitely-not-a-real-binary-xyz",
		},
	}

	_, err := executor.Execute(context.Background(), task)
	if !errors.Is(err, ErrToolExecution) {
		t.Errorf("expected ErrToolExecution, got %v", err)
	}
}

func TestToolExecutor_OutputFiles(t *testing.T) {
	dir := t.TempDir()
	executor := &ToolExecutor{}
	task := &domain.Task{
		ID:       uuid.New(),
		ItemName: "model",
		Payload: map[string]any{
			"command":      "sh",
			"args":         []any{"-c", "echo data > result.csv"},
			"workdir":      dir,
			"output_files": []any{"*.csv"},
		},
	}

	result, err := executor.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Error != "" {
		t.Fatalf("unexpected execution error: %s", result.Error)
	}

	if len(result.Resources) != 1 {
		t.Fatalf("expected 1 file resource, got %d", len(result.Resources))
	}
	res := result.Resources[0]
	if !res.IsFile() {
		t.Error("resource should be a file")
	}
	if !strings.HasSuffix(res.URL, "result.csv") {
		t.Errorf("unexpected resource URL: %s", res.URL)
	}
	if res.Label != "model" {
		t.Errorf("resource should carry item name as label, got %s", res.Label)
	}
}

func TestToolExecutor_OutputFilesNoMatch(t *testing.T) {
	dir := t.TempDir()
	executor := &ToolExecutor{}
	task := &domain.Task{
		ID:       uuid.New(),
		ItemName: "model",
		Payload: map[string]any{
			"command":      "true",
			"workdir":      dir,
			"output_files": []any{"*.parquet"},
		},
	}

	result, err := executor.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Error == "" {
		t.Error("missing output files should be a logical error")
	}
}

func TestToolExecutor_Timeout(t *testing.T) {
	executor := &ToolExecutor{}
	task := &domain.Task{
		ID: uuid.New(),
		Payload: map[string]any{
			"command":     "sleep",
			"args":        []any{"5"},
			"timeout_sec": 0.1,
		},
	}

	_, err := executor.Execute(context.Background(), task)
	if err == nil {
		t.Fatal("expected error for timeout")
	}
	if !errors.Is(err, ErrToolExecution) {
		t.Errorf("timeout should be an infrastructure error, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) && !strings.Contains(err.Error(), context.DeadlineExceeded.Error()) {
		t.Errorf("timeout error should mention the deadline, got %v", err)
	}
}

// --- DataConnectionExecutor Tests ---

func TestDataConnectionExecutor_Files(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.csv")
	if err := os.WriteFile(path, []byte("a,b\n1,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	executor := &DataConnectionExecutor{}
	task := &domain.Task{
		ID:       uuid.New(),
		ItemName: "source",
		Payload: map[string]any{
			"files": []any{path},
		},
	}

	result, err := executor.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Error != "" {
		t.Fatalf("unexpected execution error: %s", result.Error)
	}

	if result.Outputs["file_count"] != 1 {
		t.Errorf("expected file_count 1, got %v", result.Outputs["file_count"])
	}
	if len(result.Resources) != 1 {
		t.Fatalf("expected 1 resource, got %d", len(result.Resources))
	}
	if result.Resources[0].URL != "file://"+path {
		t.Errorf("unexpected resource URL: %s", result.Resources[0].URL)
	}
}

func TestDataConnectionExecutor_MissingFile(t *testing.T) {
	executor := &DataConnectionExecutor{}
	task := &domain.Task{
		ID: uuid.New(),
		Payload: map[string]any{
			"files": []any{"/nonexistent/path/data.csv"},
		},
	}

	result, err := executor.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("missing file should be a logical error: %v", err)
	}
	if result.Error == "" {
		t.Error("expected execution error for missing file")
	}
}

func TestDataConnectionExecutor_Patterns(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.csv", "b.csv", "c.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	executor := &DataConnectionExecutor{}
	task := &domain.Task{
		ID:       uuid.New(),
		ItemName: "source",
		Payload: map[string]any{
			"base_dir": dir,
			"patterns": []any{"*.csv"},
		},
	}

	result, err := executor.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Resources) != 2 {
		t.Errorf("expected 2 csv resources, got %d", len(result.Resources))
	}
}

func TestDataConnectionExecutor_EmptyPatternMatch(t *testing.T) {
	executor := &DataConnectionExecutor{}
	task := &domain.Task{
		ID: uuid.New(),
		Payload: map[string]any{
			"base_dir": t.TempDir(),
			"patterns": []any{"**/*.csv"},
		},
	}

	result, err := executor.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Error != "" {
		t.Errorf("empty pattern match should not be an error: %s", result.Error)
	}
	if result.Outputs["file_count"] != 0 {
		t.Errorf("expected file_count 0, got %v", result.Outputs["file_count"])
	}
}

// --- DataStoreExecutor Tests ---

func TestDataStoreExecutor_MissingURL(t *testing.T) {
	executor := &DataStoreExecutor{}
	task := &domain.Task{
		ID:      uuid.New(),
		Payload: map[string]any{},
	}

	_, err := executor.Execute(context.Background(), task)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestDataStoreExecutor_SQLiteNoPing(t *testing.T) {
	executor := &DataStoreExecutor{}
	task := &domain.Task{
		ID:       uuid.New(),
		ItemName: "results",
		Payload: map[string]any{
			"url":     "sqlite:///data/results.db",
			"dialect": "sqlite",
		},
	}

	result, err := executor.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Outputs["dialect"] != "sqlite" {
		t.Errorf("expected dialect sqlite, got %v", result.Outputs["dialect"])
	}
	if len(result.Resources) != 1 || !result.Resources[0].IsDatabase() {
		t.Fatalf("expected 1 database resource, got %v", result.Resources)
	}
	if result.Resources[0].Label != "results" {
		t.Errorf("expected label results, got %s", result.Resources[0].Label)
	}
}

func TestDialectFromScheme(t *testing.T) {
	tests := []struct {
		scheme   string
		expected string
	}{
		{"postgresql", "postgres"},
		{"postgres", "postgres"},
		{"sqlite", "sqlite"},
		{"mysql", "mysql"},
	}

	for _, tt := range tests {
		if got := dialectFromScheme(tt.scheme); got != tt.expected {
			t.Errorf("%s: expected %s, got %s", tt.scheme, tt.expected, got)
		}
	}
}

// --- ImporterExecutor Tests ---

func TestImporterExecutor_MissingTable(t *testing.T) {
	executor := &ImporterExecutor{}
	task := &domain.Task{
		ID:      uuid.New(),
		Payload: map[string]any{},
	}

	_, err := executor.Execute(context.Background(), task)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestImporterExecutor_NoSources(t *testing.T) {
	executor := &ImporterExecutor{}
	task := &domain.Task{
		ID:      uuid.New(),
		Payload: map[string]any{"table": "measurements"},
	}

	_, err := executor.Execute(context.Background(), task)
	if !errors.Is(err, ErrMissingResource) {
		t.Errorf("expected ErrMissingResource, got %v", err)
	}
}

func TestImporterExecutor_NoTargetDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.csv")
	if err := os.WriteFile(path, []byte("a,b\n1,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	executor := &ImporterExecutor{}
	task := &domain.Task{
		ID: uuid.New(),
		Payload: map[string]any{
			"table": "measurements",
			"files": []any{path},
		},
		// Нет backward database-ресурса и нет config url
	}

	_, err := executor.Execute(context.Background(), task)
	if !errors.Is(err, ErrMissingResource) {
		t.Errorf("expected ErrMissingResource, got %v", err)
	}
}

func TestImportSources_ForwardResources(t *testing.T) {
	task := &domain.Task{
		Payload: map[string]any{},
		ForwardResources: []domain.Resource{
			domain.FileResource("file:///data/a.csv", "source"),
			domain.DatabaseResource("postgresql://localhost/db", "store"),
			domain.FileResource("file:///data/b.csv", "source"),
		},
	}

	sources := importSources(task)
	if len(sources) != 2 {
		t.Fatalf("expected 2 file sources, got %d", len(sources))
	}
	if sources[0] != "/data/a.csv" || sources[1] != "/data/b.csv" {
		t.Errorf("unexpected sources: %v", sources)
	}
}

func TestReadCSV_WithHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	content := "name,value\nalpha,1\nbeta,2\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	rows, columns, err := readCSV(path, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(columns) != 2 || columns[0] != "name" || columns[1] != "value" {
		t.Errorf("unexpected columns: %v", columns)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "alpha" || rows[1][1] != "2" {
		t.Errorf("unexpected rows: %v", rows)
	}
}

func TestReadCSV_NoHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	content := "alpha,1\nbeta,2\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	rows, columns, err := readCSV(path, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if columns != nil {
		t.Errorf("unexpected columns: %v", columns)
	}
	if len(rows) != 2 || rows[0][0] != "alpha" {
		t.Errorf("unexpected rows: %v", rows)
	}
}

func TestShouldSkipHeader(t *testing.T) {
	tests := []struct {
		name              string
		payload           map[string]any
		columnsFromHeader bool
		want              bool
	}{
		{
			name:    "explicit columns skip header by default",
			payload: map[string]any{"columns": []any{"name", "value"}},
			want:    true,
		},
		{
			name:    "explicit columns with headerless files",
			payload: map[string]any{"columns": []any{"name", "value"}, "skip_header": false},
			want:    false,
		},
		{
			name:              "columns from header always consume first row",
			payload:           map[string]any{"skip_header": false},
			columnsFromHeader: true,
			want:              true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldSkipHeader(tt.payload, tt.columnsFromHeader); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestInsertSQL(t *testing.T) {
	sql := insertSQL("measurements", []string{"name", "value"})
	expected := `INSERT INTO "measurements" ("name", "value") VALUES ($1, $2)`
	if sql != expected {
		t.Errorf("expected %q, got %q", expected, sql)
	}
}

// --- ExporterExecutor Tests ---

func TestExporterExecutor_MissingQuery(t *testing.T) {
	executor := &ExporterExecutor{}
	task := &domain.Task{
		ID:      uuid.New(),
		Payload: map[string]any{"output_file": "/tmp/out.csv"},
	}

	_, err := executor.Execute(context.Background(), task)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestExporterExecutor_UnsupportedFormat(t *testing.T) {
	executor := &ExporterExecutor{}
	task := &domain.Task{
		ID: uuid.New(),
		Payload: map[string]any{
			"query":       "SELECT 1",
			"output_file": "/tmp/out.xml",
			"format":      "xml",
		},
	}

	_, err := executor.Execute(context.Background(), task)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestExporterExecutor_NoSource(t *testing.T) {
	executor := &ExporterExecutor{}
	task := &domain.Task{
		ID: uuid.New(),
		Payload: map[string]any{
			"query":       "SELECT 1",
			"output_file": "/tmp/out.csv",
		},
	}

	_, err := executor.Execute(context.Background(), task)
	if !errors.Is(err, ErrMissingResource) {
		t.Errorf("expected ErrMissingResource, got %v", err)
	}
}

func TestWriteExport_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	columns := []string{"name", "value"}
	records := [][]any{
		{"alpha", 1},
		{"beta", nil},
	}

	if err := writeExport(path, "csv", columns, records); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "name,value\n") {
		t.Errorf("expected header row, got %q", content)
	}
	if !strings.Contains(content, "alpha,1") {
		t.Errorf("expected data row, got %q", content)
	}
}

func TestWriteExport_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	columns := []string{"name", "value"}
	records := [][]any{{"alpha", 1.0}}

	if err := writeExport(path, "json", columns, records); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var objects []map[string]any
	if err := json.Unmarshal(data, &objects); err != nil {
		t.Fatalf("output should be valid JSON: %v", err)
	}
	if len(objects) != 1 || objects[0]["name"] != "alpha" {
		t.Errorf("unexpected objects: %v", objects)
	}
}

func TestVariantPath(t *testing.T) {
	got := variantPath("/out/data.csv", "db@low")
	if got != "/out/data_db_low.csv" {
		t.Errorf("expected /out/data_db_low.csv, got %s", got)
	}
}

// --- ViewExecutor Tests ---

func TestViewExecutor_Summary(t *testing.T) {
	executor := &ViewExecutor{}
	task := &domain.Task{
		ID: uuid.New(),
		ForwardResources: []domain.Resource{
			domain.FileResource("file:///data/a.csv", "source"),
			domain.DatabaseResource("postgresql://localhost/db", "store"),
		},
	}

	result, err := executor.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Outputs["resource_count"] != 2 {
		t.Errorf("expected resource_count 2, got %v", result.Outputs["resource_count"])
	}
	if result.Outputs["file_count"] != 1 {
		t.Errorf("expected file_count 1, got %v", result.Outputs["file_count"])
	}
	if result.Outputs["database_count"] != 1 {
		t.Errorf("expected database_count 1, got %v", result.Outputs["database_count"])
	}
}

// --- Registry Tests ---

func TestNewRegistry_DefaultExecutors(t *testing.T) {
	r := NewRegistry()

	for _, itemType := range []string{
		domain.ItemTypeDataStore,
		domain.ItemTypeDataConnection,
		domain.ItemTypeTool,
		domain.ItemTypeImporter,
		domain.ItemTypeExporter,
		domain.ItemTypeView,
	} {
		executor, err := r.Get(itemType)
		if err != nil {
			t.Errorf("expected executor for %s, got error: %v", itemType, err)
		}
		if executor == nil {
			t.Errorf("executor for %s should not be nil", itemType)
		}
	}
}

func TestRegistry_UnknownType(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get("unknown")
	if !errors.Is(err, ErrUnknownItemType) {
		t.Errorf("expected ErrUnknownItemType, got %v", err)
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	// Регистрируем кастомный executor
	r.Register("custom", &ViewExecutor{})

	executor, err := r.Get("custom")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if executor == nil {
		t.Error("custom executor should be registered")
	}
}

// --- Backoff Tests ---

func TestCalculateBackoff_Exponential(t *testing.T) {
	policy := &domain.RetryPolicy{
		Backoff:        "exponential",
		InitialDelayMs: 1000,
		MaxDelayMs:     10000,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second}, // capped at max
		{6, 10 * time.Second}, // stays at max
	}

	for _, tt := range tests {
		got := calculateBackoff(tt.attempt, policy)
		if got != tt.expected {
			t.Errorf("attempt %d: expected %v, got %v", tt.attempt, tt.expected, got)
		}
	}
}

func TestCalculateBackoff_Fixed(t *testing.T) {
	policy := &domain.RetryPolicy{
		Backoff:        "fixed",
		InitialDelayMs: 2000,
		MaxDelayMs:     10000,
	}

	// Все попытки — одинаковая задержка
	for attempt := 1; attempt <= 5; attempt++ {
		got := calculateBackoff(attempt, policy)
		if got != 2*time.Second {
			t.Errorf("attempt %d: expected 2s, got %v", attempt, got)
		}
	}
}

func TestCalculateBackoff_NilPolicy(t *testing.T) {
	got := calculateBackoff(1, nil)
	if got != time.Second {
		t.Errorf("expected 1s default, got %v", got)
	}
}

func TestCalculateBackoff_ZeroValues(t *testing.T) {
	policy := &domain.RetryPolicy{
		Backoff: "exponential",
		// InitialDelayMs и MaxDelayMs = 0
	}

	got := calculateBackoff(1, policy)
	if got != time.Second {
		t.Errorf("expected 1s default for zero InitialDelayMs, got %v", got)
	}
}

// --- Dry-run Tests ---

func TestDryRunResult(t *testing.T) {
	task := &domain.Task{
		ID:       uuid.New(),
		ItemName: "store",
		Type:     domain.ItemTypeDataStore,
	}
	itemDef := &domain.ItemDef{
		Name: "store",
		Type: domain.ItemTypeDataStore,
		Config: map[string]any{
			"url": "postgresql://localhost/results",
		},
	}

	result := dryRunResult(task, itemDef)

	if result.Outputs["dry_run"] != true {
		t.Error("outputs should mark dry run")
	}
	if len(result.Resources) != 1 || !result.Resources[0].IsDatabase() {
		t.Errorf("dry run should yield static resources, got %v", result.Resources)
	}
}

func TestResolvePolicy(t *testing.T) {
	policy, timeout := resolvePolicy(nil)
	if policy != nil || timeout != 0 {
		t.Error("nil item def should yield nil policy")
	}

	itemDef := &domain.ItemDef{
		Retry:      &domain.RetryPolicy{MaxAttempts: 3},
		TimeoutSec: 60,
	}
	policy, timeout = resolvePolicy(itemDef)
	if policy == nil || policy.MaxAttempts != 3 {
		t.Errorf("unexpected policy: %v", policy)
	}
	if timeout != time.Minute {
		t.Errorf("expected 1m timeout, got %v", timeout)
	}
}

// --- Worker Tests ---

func TestNew_DefaultConfig(t *testing.T) {
	w := New(Config{})

	if w.pollInterval != defaultPollInterval {
		t.Errorf("expected default poll interval %v, got %v", defaultPollInterval, w.pollInterval)
	}
	if w.batchSize != defaultBatchSize {
		t.Errorf("expected default batch size %d, got %d", defaultBatchSize, w.batchSize)
	}
	if w.registry == nil {
		t.Error("registry should be initialized")
	}
}

func TestNew_CustomConfig(t *testing.T) {
	w := New(Config{
		PollInterval: 5 * time.Second,
		BatchSize:    25,
	})

	if w.pollInterval != 5*time.Second {
		t.Errorf("expected poll interval 5s, got %v", w.pollInterval)
	}
	if w.batchSize != 25 {
		t.Errorf("expected batch size 25, got %d", w.batchSize)
	}
}

func TestWorker_IsStopped(t *testing.T) {
	w := New(Config{})

	if w.IsStopped() {
		t.Error("should not be stopped initially")
	}

	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	if !w.IsStopped() {
		t.Error("should be stopped")
	}
}

func TestNew_CustomRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("custom", &ViewExecutor{})

	w := New(Config{
		Registry: r,
	})

	executor, err := w.registry.Get("custom")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if executor == nil {
		t.Error("custom executor should be available")
	}
}
