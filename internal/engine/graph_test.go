package engine

import (
	"errors"
	"testing"

	"github.com/avdonin/Conveyor/internal/domain"
)

func TestBuildGraph_SimpleChain(t *testing.T) {
	spec := &domain.ProjectSpec{
		Items: []domain.ItemDef{
			{Name: "source", Type: "data_connection"},
			{Name: "import", Type: "importer"},
			{Name: "store", Type: "data_store"},
		},
		Connections: []domain.ConnectionDef{
			{From: "source", To: "import"},
			{From: "import", To: "store"},
		},
	}

	g, err := BuildGraph(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g.Size() != 3 {
		t.Errorf("expected 3 nodes, got %d", g.Size())
	}

	if len(g.RootNodes) != 1 {
		t.Errorf("expected 1 root node, got %d", len(g.RootNodes))
	}
	if g.RootNodes[0].Name != "source" {
		t.Errorf("expected root node source, got %s", g.RootNodes[0].Name)
	}

	nodeImport := g.Node("import")
	if len(nodeImport.Upstream) != 1 || nodeImport.Upstream[0].From.Name != "source" {
		t.Error("import should have source as predecessor")
	}

	nodeStore := g.Node("store")
	if len(nodeStore.Upstream) != 1 || nodeStore.Upstream[0].From.Name != "import" {
		t.Error("store should have import as predecessor")
	}
}

func TestBuildGraph_Diamond(t *testing.T) {
	// dc → tool_a → view
	// dc → tool_b → view
	spec := &domain.ProjectSpec{
		Items: []domain.ItemDef{
			{Name: "dc", Type: "data_connection"},
			{Name: "tool_a", Type: "tool"},
			{Name: "tool_b", Type: "tool"},
			{Name: "view", Type: "view"},
		},
		Connections: []domain.ConnectionDef{
			{From: "dc", To: "tool_a"},
			{From: "dc", To: "tool_b"},
			{From: "tool_a", To: "view"},
			{From: "tool_b", To: "view"},
		},
	}

	g, err := BuildGraph(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g.Size() != 4 {
		t.Errorf("expected 4 nodes, got %d", g.Size())
	}

	if g.Node("dc").InDegree != 0 {
		t.Error("dc should have inDegree 0")
	}
	if g.Node("tool_a").InDegree != 1 {
		t.Error("tool_a should have inDegree 1")
	}
	if g.Node("view").InDegree != 2 {
		t.Error("view should have inDegree 2")
	}
}

func TestBuildGraph_DuplicateConnection(t *testing.T) {
	spec := &domain.ProjectSpec{
		Items: []domain.ItemDef{
			{Name: "a", Type: "tool"},
			{Name: "b", Type: "view"},
		},
		Connections: []domain.ConnectionDef{
			{From: "a", To: "b"},
			{From: "a", To: "b"},
		},
	}

	g, err := BuildGraph(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Дубликат связи не должен удваивать InDegree
	if g.Node("b").InDegree != 1 {
		t.Errorf("expected inDegree 1, got %d", g.Node("b").InDegree)
	}
}

func TestBuildGraph_Cycle(t *testing.T) {
	spec := &domain.ProjectSpec{
		Items: []domain.ItemDef{
			{Name: "a", Type: "tool"},
			{Name: "b", Type: "tool"},
			{Name: "c", Type: "tool"},
		},
		Connections: []domain.ConnectionDef{
			{From: "a", To: "b"},
			{From: "b", To: "c"},
			{From: "c", To: "a"},
		},
	}

	_, err := BuildGraph(spec)
	if !errors.Is(err, ErrCyclicConnection) {
		t.Errorf("expected ErrCyclicConnection, got %v", err)
	}
}

func TestBuildGraph_UnknownItem(t *testing.T) {
	spec := &domain.ProjectSpec{
		Items: []domain.ItemDef{
			{Name: "a", Type: "tool"},
		},
		Connections: []domain.ConnectionDef{
			{From: "a", To: "ghost"},
		},
	}

	_, err := BuildGraph(spec)
	if !errors.Is(err, ErrUnknownItem) {
		t.Errorf("expected ErrUnknownItem, got %v", err)
	}
}

func TestGraph_TopologicalOrder(t *testing.T) {
	spec := &domain.ProjectSpec{
		Items: []domain.ItemDef{
			{Name: "export", Type: "exporter"},
			{Name: "store", Type: "data_store"},
			{Name: "import", Type: "importer"},
		},
		Connections: []domain.ConnectionDef{
			{From: "import", To: "store"},
			{From: "store", To: "export"},
		},
	}

	g, err := BuildGraph(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pos := make(map[string]int)
	for i, node := range g.Order {
		pos[node.Name] = i
	}

	if pos["import"] > pos["store"] || pos["store"] > pos["export"] {
		t.Errorf("topological order violated: %v", pos)
	}
}

func TestGraph_ReadyNodes(t *testing.T) {
	spec := &domain.ProjectSpec{
		Items: []domain.ItemDef{
			{Name: "a", Type: "data_connection"},
			{Name: "b", Type: "tool"},
			{Name: "c", Type: "tool"},
			{Name: "d", Type: "view"},
		},
		Connections: []domain.ConnectionDef{
			{From: "a", To: "b"},
			{From: "a", To: "c"},
			{From: "b", To: "d"},
			{From: "c", To: "d"},
		},
	}

	g, err := BuildGraph(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// В начале готов только корень
	ready := g.ReadyNodes(nil, nil)
	if len(ready) != 1 || ready[0].Name != "a" {
		t.Errorf("expected [a], got %v", readyNames(ready))
	}

	// После a готовы b и c
	completed := map[string]bool{"a": true}
	ready = g.ReadyNodes(completed, nil)
	if len(ready) != 2 {
		t.Errorf("expected 2 ready nodes, got %v", readyNames(ready))
	}

	// b выполняется, c завершён — d не готов (b ещё не завершён)
	running := map[string]bool{"b": true}
	completed["c"] = true
	ready = g.ReadyNodes(completed, running)
	if len(ready) != 0 {
		t.Errorf("expected no ready nodes, got %v", readyNames(ready))
	}

	// Всё завершено — d готов
	completed["b"] = true
	ready = g.ReadyNodes(completed, nil)
	if len(ready) != 1 || ready[0].Name != "d" {
		t.Errorf("expected [d], got %v", readyNames(ready))
	}
}

func TestGraph_IsComplete(t *testing.T) {
	spec := &domain.ProjectSpec{
		Items: []domain.ItemDef{
			{Name: "a", Type: "tool"},
			{Name: "b", Type: "view"},
		},
		Connections: []domain.ConnectionDef{
			{From: "a", To: "b"},
		},
	}

	g, _ := BuildGraph(spec)

	if g.IsComplete(map[string]bool{"a": true}) {
		t.Error("graph should not be complete")
	}
	if !g.IsComplete(map[string]bool{"a": true, "b": true}) {
		t.Error("graph should be complete")
	}
}

func TestGraph_DownstreamOf(t *testing.T) {
	spec := &domain.ProjectSpec{
		Items: []domain.ItemDef{
			{Name: "a", Type: "tool"},
			{Name: "b", Type: "tool"},
			{Name: "c", Type: "tool"},
			{Name: "side", Type: "tool"},
		},
		Connections: []domain.ConnectionDef{
			{From: "a", To: "b"},
			{From: "b", To: "c"},
		},
	}

	g, _ := BuildGraph(spec)

	down := g.DownstreamOf("a")
	if !down["b"] || !down["c"] {
		t.Errorf("expected b and c downstream of a, got %v", down)
	}
	if down["side"] || down["a"] {
		t.Errorf("unexpected nodes in downstream set: %v", down)
	}
}

func readyNames(nodes []*Node) []string {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name
	}
	return names
}
