package engine

import (
	"errors"
	"testing"

	"github.com/avdonin/Conveyor/internal/domain"
)

func TestRender_PlainString(t *testing.T) {
	ctx := NewContext(nil)

	result, err := Render("no templates here", ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "no templates here" {
		t.Errorf("unexpected result: %s", result)
	}
}

func TestRender_Inputs(t *testing.T) {
	ctx := NewContext(map[string]any{"year": 2026, "region": "fi"})

	result := MustRender("{{ .Inputs.region }}-{{ .Inputs.year }}", ctx)
	if result != "fi-2026" {
		t.Errorf("unexpected result: %s", result)
	}
}

func TestRender_ItemOutputs(t *testing.T) {
	ctx := NewContext(nil)
	ctx.AddItemResult("import", map[string]any{"rows": 42}, "SUCCEEDED")

	result := MustRender("{{ .Items.import.Outputs.rows }}", ctx)
	if result != "42" {
		t.Errorf("unexpected result: %s", result)
	}
}

func TestRender_Env(t *testing.T) {
	ctx := NewContext(nil)
	ctx.SetEnviron([]string{"DATA_ROOT=/srv/data", "EMPTY=", "malformed"})

	result := MustRender("{{ .Env.DATA_ROOT }}/in.csv", ctx)
	if result != "/srv/data/in.csv" {
		t.Errorf("unexpected result: %s", result)
	}
	if _, ok := ctx.Env["malformed"]; ok {
		t.Error("entries without '=' should be ignored")
	}
	if v := ctx.Env["EMPTY"]; v != "" {
		t.Errorf("empty value should be kept empty, got %q", v)
	}
}

func TestRender_Resources(t *testing.T) {
	ctx := NewContext(nil).WithResources([]domain.Resource{
		domain.FileResource("file:///data/demand.csv", "inputs"),
		domain.DatabaseResource("postgresql://localhost/model", "model"),
	})

	result := MustRender(`{{ (byLabel "model" .Resources).URL }}`, ctx)
	if result != "postgresql://localhost/model" {
		t.Errorf("unexpected result: %s", result)
	}

	result = MustRender(`{{ join "," (urls (files .Resources)) }}`, ctx)
	if result != "file:///data/demand.csv" {
		t.Errorf("unexpected result: %s", result)
	}
}

func TestRender_ByLabelFilteredVariant(t *testing.T) {
	// byLabel находит отфильтрованный вариант по базовой метке
	ctx := NewContext(nil).WithResources([]domain.Resource{
		domain.DatabaseResource("postgresql://localhost/model?filter=scenario%3Alow", "model@low"),
	})

	result := MustRender(`{{ (byLabel "model" .Resources).URL }}`, ctx)
	if result == "" {
		t.Error("byLabel should match label with @-suffix")
	}
}

func TestRender_DefaultAndCoalesce(t *testing.T) {
	ctx := NewContext(map[string]any{"empty": ""})

	if got := MustRender(`{{ default "x" .Inputs.empty }}`, ctx); got != "x" {
		t.Errorf("default: unexpected result %s", got)
	}
	if got := MustRender(`{{ coalesce .Inputs.empty "y" }}`, ctx); got != "y" {
		t.Errorf("coalesce: unexpected result %s", got)
	}
}

func TestRender_ParseError(t *testing.T) {
	_, err := Render("{{ .Inputs.x", NewContext(nil))
	if !errors.Is(err, ErrTemplateParse) {
		t.Errorf("expected ErrTemplateParse, got %v", err)
	}
}

func TestRenderConfig(t *testing.T) {
	ctx := NewContext(map[string]any{"year": 2026})

	config := map[string]any{
		"command": "run --year {{ .Inputs.year }}",
		"nested": map[string]any{
			"path": "/out/{{ .Inputs.year }}",
		},
		"args":  []any{"{{ .Inputs.year }}", "static"},
		"count": 3,
	}

	rendered, err := RenderConfig(config, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rendered["command"] != "run --year 2026" {
		t.Errorf("unexpected command: %v", rendered["command"])
	}
	nested := rendered["nested"].(map[string]any)
	if nested["path"] != "/out/2026" {
		t.Errorf("unexpected nested path: %v", nested["path"])
	}
	args := rendered["args"].([]any)
	if args[0] != "2026" || args[1] != "static" {
		t.Errorf("unexpected args: %v", args)
	}
	if rendered["count"] != 3 {
		t.Errorf("non-string values should pass through, got %v", rendered["count"])
	}
}

func TestRenderCondition(t *testing.T) {
	ctx := NewContext(map[string]any{"run_export": true})
	ctx.AddItemResult("import", map[string]any{"rows": 0}, "SUCCEEDED")

	tests := []struct {
		condition string
		want      bool
	}{
		{"", true},
		{".Inputs.run_export", true},
		{`eq .Items.import.Status "SUCCEEDED"`, true},
		{`gt (.Items.import.Outputs.rows | printf "%v" | len) 5`, false},
	}

	for _, tt := range tests {
		got, err := RenderCondition(tt.condition, ctx)
		if err != nil {
			t.Errorf("condition %q: unexpected error: %v", tt.condition, err)
			continue
		}
		if got != tt.want {
			t.Errorf("condition %q: expected %v, got %v", tt.condition, tt.want, got)
		}
	}
}

func TestWithResources_DoesNotMutateBase(t *testing.T) {
	base := NewContext(nil)

	scoped := base.WithResources([]domain.Resource{
		domain.FileResource("file:///x", "x"),
	})

	if len(base.Resources) != 0 {
		t.Error("base context should stay without resources")
	}
	if len(scoped.Resources) != 1 {
		t.Error("scoped context should carry resources")
	}
}
