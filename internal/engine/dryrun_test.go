package engine

import (
	"errors"
	"testing"

	"github.com/avdonin/Conveyor/internal/domain"
)

func dryRunSpec() *domain.ProjectSpec {
	return &domain.ProjectSpec{
		Items: []domain.ItemDef{
			{
				Name: "source",
				Type: domain.ItemTypeDataConnection,
				Config: map[string]any{
					"files": []any{"/data/in.csv"},
				},
			},
			{
				Name: "model",
				Type: domain.ItemTypeTool,
				Config: map[string]any{
					"command": "solve",
				},
			},
			{
				Name: "store",
				Type: domain.ItemTypeDataStore,
				Config: map[string]any{
					"url": "postgresql://localhost/results",
				},
			},
			{
				Name: "side",
				Type: domain.ItemTypeView,
			},
		},
		Connections: []domain.ConnectionDef{
			{From: "source", To: "model"},
			{From: "model", To: "store"},
			{From: "source", To: "side"},
		},
	}
}

func resultByName(results []domain.ItemResult, name string) *domain.ItemResult {
	for i := range results {
		if results[i].ItemName == name {
			return &results[i]
		}
	}
	return nil
}

func TestDryRun_AllSucceed(t *testing.T) {
	results, summary, err := DryRun(dryRunSpec(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.TotalItems != 4 || summary.Succeeded != 4 || summary.Failed != 0 || summary.Skipped != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}

	source := resultByName(results, "source")
	if source == nil || source.Status != domain.TaskStatusSucceeded {
		t.Fatalf("unexpected source result: %+v", source)
	}
	if len(source.Resources) != 1 || source.Resources[0].URL != "file:///data/in.csv" {
		t.Errorf("source should declare its file resource, got %+v", source.Resources)
	}

	store := resultByName(results, "store")
	if len(store.Resources) != 1 || store.Resources[0].URL != "postgresql://localhost/results" {
		t.Errorf("store should declare its database resource, got %+v", store.Resources)
	}
}

func TestDryRun_ConditionFromEnv(t *testing.T) {
	t.Setenv("CONVEYOR_MODE", "full")

	spec := dryRunSpec()
	spec.Items[0].Condition = `eq .Env.CONVEYOR_MODE "full"`

	results, summary, err := DryRun(spec, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Skipped != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}

	source := resultByName(results, "source")
	if source == nil || source.Status != domain.TaskStatusSucceeded {
		t.Fatalf("condition on process env should pass, got %+v", source)
	}
}

func TestDryRun_ConditionSkips(t *testing.T) {
	spec := dryRunSpec()
	spec.Inputs = map[string]domain.InputDef{
		"full_rebuild": {Type: "boolean", Default: false},
	}
	spec.Items[0].Condition = ".Inputs.full_rebuild"

	results, summary, err := DryRun(spec, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Skipped != 1 || summary.Succeeded != 3 {
		t.Errorf("unexpected summary: %+v", summary)
	}

	source := resultByName(results, "source")
	if source.Status != domain.TaskStatusSkipped {
		t.Errorf("expected source SKIPPED, got %s", source.Status)
	}
	// Пропущенный элемент всё равно объявляет статические ресурсы
	if len(source.Resources) != 1 {
		t.Errorf("skipped source should keep static resources, got %+v", source.Resources)
	}
}

func TestDryRun_ConditionFromInputs(t *testing.T) {
	spec := dryRunSpec()
	spec.Inputs = map[string]domain.InputDef{
		"full_rebuild": {Type: "boolean", Default: false},
	}
	spec.Items[0].Condition = ".Inputs.full_rebuild"

	_, summary, err := DryRun(spec, map[string]any{"full_rebuild": true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Skipped != 0 || summary.Succeeded != 4 {
		t.Errorf("explicit input should override default: %+v", summary)
	}
}

func TestDryRun_FailureBlocksDownstream(t *testing.T) {
	spec := dryRunSpec()
	spec.Items[1].Config = map[string]any{
		"command": "{{ .Inputs.missing", // незакрытое выражение
	}

	results, summary, err := DryRun(spec, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Failed != 1 || summary.Succeeded != 2 {
		t.Errorf("unexpected summary: %+v", summary)
	}

	model := resultByName(results, "model")
	if model.Status != domain.TaskStatusFailed || model.Error == "" {
		t.Errorf("unexpected model result: %+v", model)
	}

	// store стоит за упавшим model и не проверяется
	if resultByName(results, "store") != nil {
		t.Error("blocked store should not appear in results")
	}

	// независимая ветка проверяется до конца
	side := resultByName(results, "side")
	if side == nil || side.Status != domain.TaskStatusSucceeded {
		t.Errorf("independent branch should still be checked: %+v", side)
	}
}

func TestDryRun_InvalidSpec(t *testing.T) {
	spec := dryRunSpec()
	spec.Connections = append(spec.Connections, domain.ConnectionDef{From: "source", To: "ghost"})

	_, _, err := DryRun(spec, nil)
	if !errors.Is(err, ErrUnknownItem) {
		t.Errorf("expected ErrUnknownItem, got %v", err)
	}
}

func TestDryRun_MissingRequiredInput(t *testing.T) {
	spec := dryRunSpec()
	spec.Inputs = map[string]domain.InputDef{
		"year": {Type: "number", Required: true},
	}

	_, _, err := DryRun(spec, nil)
	if !errors.Is(err, ErrMissingInput) {
		t.Errorf("expected ErrMissingInput, got %v", err)
	}
}
