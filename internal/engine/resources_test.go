package engine

import (
	"strings"
	"testing"

	"github.com/avdonin/Conveyor/internal/domain"
)

func TestStaticResources_DataStore(t *testing.T) {
	item := &domain.ItemDef{
		Name: "results",
		Type: domain.ItemTypeDataStore,
		Config: map[string]any{
			"url": "postgresql://localhost/results",
		},
	}

	resources := StaticResources(item)

	if len(resources) != 1 {
		t.Fatalf("expected 1 resource, got %d", len(resources))
	}
	res := resources[0]
	if res.Type != domain.ResourceTypeDatabase {
		t.Errorf("expected database resource, got %s", res.Type)
	}
	if res.URL != "postgresql://localhost/results" {
		t.Errorf("unexpected URL: %s", res.URL)
	}
	if res.Label != "results" {
		t.Errorf("expected label results, got %s", res.Label)
	}
	if !res.Filterable {
		t.Error("database resource should be filterable")
	}
}

func TestStaticResources_DataStoreWithoutURL(t *testing.T) {
	item := &domain.ItemDef{Name: "empty", Type: domain.ItemTypeDataStore}

	if resources := StaticResources(item); len(resources) != 0 {
		t.Errorf("expected no resources, got %d", len(resources))
	}
}

func TestStaticResources_DataConnection(t *testing.T) {
	item := &domain.ItemDef{
		Name: "inputs",
		Type: domain.ItemTypeDataConnection,
		Config: map[string]any{
			"files": []any{"/data/demand.csv", "/data/units.csv"},
		},
	}

	resources := StaticResources(item)

	if len(resources) != 2 {
		t.Fatalf("expected 2 resources, got %d", len(resources))
	}
	for _, res := range resources {
		if res.Type != domain.ResourceTypeFile {
			t.Errorf("expected file resource, got %s", res.Type)
		}
		if !strings.HasPrefix(res.URL, "file://") {
			t.Errorf("expected file:// URL, got %s", res.URL)
		}
		if res.Filterable {
			t.Error("file resource should not be filterable")
		}
	}
}

func TestStaticResources_Tool(t *testing.T) {
	item := &domain.ItemDef{Name: "model", Type: domain.ItemTypeTool}

	if resources := StaticResources(item); len(resources) != 0 {
		t.Errorf("tool should have no static resources, got %d", len(resources))
	}
}

func TestBackwardResources(t *testing.T) {
	// model → results (data_store), model → preview (view)
	spec := &domain.ProjectSpec{
		Items: []domain.ItemDef{
			{Name: "model", Type: "tool"},
			{Name: "results", Type: "data_store", Config: map[string]any{
				"url": "postgresql://localhost/results",
			}},
			{Name: "preview", Type: "view"},
		},
		Connections: []domain.ConnectionDef{
			{From: "model", To: "results"},
			{From: "model", To: "preview"},
		},
	}

	g, err := BuildGraph(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	backward := BackwardResources(g)

	// model видит URL стоящего за ним data_store
	modelRes := backward["model"]
	if len(modelRes) != 1 {
		t.Fatalf("expected 1 backward resource for model, got %d", len(modelRes))
	}
	if modelRes[0].URL != "postgresql://localhost/results" {
		t.Errorf("unexpected backward URL: %s", modelRes[0].URL)
	}

	// У листьев backward-ресурсов нет
	if len(backward["results"]) != 0 {
		t.Errorf("leaf should have no backward resources, got %d", len(backward["results"]))
	}
}

func TestApplyFilters_ScenarioExpansion(t *testing.T) {
	resources := []domain.Resource{
		domain.DatabaseResource("postgresql://localhost/model", "model"),
	}
	filters := []domain.FilterDef{
		{Type: domain.FilterTypeScenario, Values: []string{"low", "high"}},
	}

	filtered := ApplyFilters(resources, filters)

	if len(filtered) != 2 {
		t.Fatalf("expected 2 variants, got %d", len(filtered))
	}

	labels := map[string]bool{}
	for _, res := range filtered {
		labels[res.Label] = true
		if !strings.Contains(res.URL, "filter=scenario%3A") {
			t.Errorf("expected scenario filter in URL, got %s", res.URL)
		}
	}
	if !labels["model@low"] || !labels["model@high"] {
		t.Errorf("unexpected labels: %v", labels)
	}
}

func TestApplyFilters_CrossProduct(t *testing.T) {
	resources := []domain.Resource{
		domain.DatabaseResource("postgresql://localhost/model", "model"),
	}
	filters := []domain.FilterDef{
		{Type: domain.FilterTypeScenario, Values: []string{"low", "high"}},
		{Type: domain.FilterTypeAlternative, Values: []string{"base"}},
	}

	filtered := ApplyFilters(resources, filters)

	// 2 сценария × 1 альтернатива
	if len(filtered) != 2 {
		t.Fatalf("expected 2 variants, got %d", len(filtered))
	}
	for _, res := range filtered {
		if res.Metadata["scenario"] == "" {
			t.Errorf("missing scenario metadata: %v", res.Metadata)
		}
		if res.Metadata["alternative"] != "base" {
			t.Errorf("missing alternative metadata: %v", res.Metadata)
		}
		if !strings.HasSuffix(res.Label, "@base") {
			t.Errorf("unexpected label: %s", res.Label)
		}
	}
}

func TestApplyFilters_FilesPassThrough(t *testing.T) {
	resources := []domain.Resource{
		domain.FileResource("file:///data/demand.csv", "inputs"),
		domain.DatabaseResource("postgresql://localhost/model", "model"),
	}
	filters := []domain.FilterDef{
		{Type: domain.FilterTypeScenario, Values: []string{"low", "high"}},
	}

	filtered := ApplyFilters(resources, filters)

	// Файл проходит без изменений, база разворачивается в 2 варианта
	if len(filtered) != 3 {
		t.Fatalf("expected 3 resources, got %d", len(filtered))
	}
	if filtered[0].URL != "file:///data/demand.csv" {
		t.Errorf("file resource should pass through unchanged, got %s", filtered[0].URL)
	}
}

func TestApplyFilters_NoFilters(t *testing.T) {
	resources := []domain.Resource{
		domain.DatabaseResource("postgresql://localhost/model", "model"),
	}

	filtered := ApplyFilters(resources, nil)

	if len(filtered) != 1 || filtered[0].URL != resources[0].URL {
		t.Errorf("resources should pass through unchanged: %v", filtered)
	}
}

func TestFilteredURL_Stacking(t *testing.T) {
	u := filteredURL("postgresql://localhost/model", "scenario", "low")
	u = filteredURL(u, "alternative", "base")

	if !strings.Contains(u, "scenario%3Alow") {
		t.Errorf("missing scenario param: %s", u)
	}
	if !strings.Contains(u, "alternative%3Abase") {
		t.Errorf("missing alternative param: %s", u)
	}
}

func TestFileURL(t *testing.T) {
	if got := FileURL("/data/x.csv"); got != "file:///data/x.csv" {
		t.Errorf("expected file:///data/x.csv, got %s", got)
	}
	if got := FileURL("https://example.com/x.csv"); got != "https://example.com/x.csv" {
		t.Errorf("URL should pass through unchanged, got %s", got)
	}
	if got := FilePath("file:///data/x.csv"); got != "/data/x.csv" {
		t.Errorf("expected /data/x.csv, got %s", got)
	}
}
