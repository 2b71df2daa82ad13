package engine

import (
	"github.com/avdonin/Conveyor/internal/domain"
)

// Node — элемент project в DAG.
type Node struct {
	// Item — определение элемента из ProjectSpec.
	Item *domain.ItemDef

	// Name — имя элемента (совпадает с Item.Name).
	Name string

	// InDegree — количество входящих связей.
	InDegree int

	// Upstream — входящие связи (от предшественников).
	Upstream []*Edge

	// Downstream — исходящие связи (к потомкам).
	Downstream []*Edge
}

// Edge — направленная связь между двумя узлами.
//
// Связь несёт фильтры, применяемые к database-ресурсам,
// которые проходят по ней от From к To.
type Edge struct {
	// From — узел-источник.
	From *Node

	// To — узел-приёмник.
	To *Node

	// Filters — фильтры связи (scenario_filter, alternative_filter).
	Filters []domain.FilterDef
}

// Graph — направленный ациклический граф элементов project.
type Graph struct {
	// Nodes — все узлы графа (itemName → Node).
	Nodes map[string]*Node

	// RootNodes — узлы без предшественников (точки входа).
	RootNodes []*Node

	// Order — топологически отсортированный список узлов.
	Order []*Node
}

// BuildGraph строит DAG из ProjectSpec.
//
// Узлы — элементы, рёбра — connections. Порядок выполнения
// определяется исключительно связями.
func BuildGraph(spec *domain.ProjectSpec) (*Graph, error) {
	g := &Graph{
		Nodes:     make(map[string]*Node),
		RootNodes: make([]*Node, 0),
	}

	// Первый проход: создаём все узлы
	for i := range spec.Items {
		item := &spec.Items[i]
		g.Nodes[item.Name] = &Node{
			Item:       item,
			Name:       item.Name,
			Upstream:   make([]*Edge, 0),
			Downstream: make([]*Edge, 0),
		}
	}

	// Второй проход: связываем узлы по connections
	for _, conn := range spec.Connections {
		from, ok := g.Nodes[conn.From]
		if !ok {
			return nil, NewValidationError(conn.From, "connections",
				"connection from unknown item: "+conn.From, ErrUnknownItem)
		}
		to, ok := g.Nodes[conn.To]
		if !ok {
			return nil, NewValidationError(conn.To, "connections",
				"connection to unknown item: "+conn.To, ErrUnknownItem)
		}

		g.addEdge(from, to, conn.Filters)
	}

	// Находим корневые узлы
	g.findRootNodes()

	// Проверяем на циклы и строим топологический порядок
	order, err := g.topologicalSort()
	if err != nil {
		return nil, err
	}
	g.Order = order

	return g, nil
}

// addEdge добавляет ребро между узлами.
// Дубликаты (две связи между одной парой) игнорируются,
// чтобы избежать двойного учёта InDegree.
func (g *Graph) addEdge(from, to *Node, filters []domain.FilterDef) {
	for _, e := range to.Upstream {
		if e.From.Name == from.Name {
			return // уже связаны
		}
	}

	edge := &Edge{From: from, To: to, Filters: filters}
	from.Downstream = append(from.Downstream, edge)
	to.Upstream = append(to.Upstream, edge)
	to.InDegree++
}

// findRootNodes находит узлы без входящих связей.
func (g *Graph) findRootNodes() {
	g.RootNodes = make([]*Node, 0)
	for _, node := range g.Nodes {
		if node.InDegree == 0 {
			g.RootNodes = append(g.RootNodes, node)
		}
	}
}

// topologicalSort выполняет топологическую сортировку (алгоритм Кана).
// Возвращает ошибку, если обнаружен цикл.
func (g *Graph) topologicalSort() ([]*Node, error) {
	// Копируем inDegree, чтобы не модифицировать оригинал
	inDegree := make(map[string]int)
	for name, node := range g.Nodes {
		inDegree[name] = node.InDegree
	}

	// Очередь узлов с inDegree = 0
	queue := make([]*Node, len(g.RootNodes))
	copy(queue, g.RootNodes)

	order := make([]*Node, 0, len(g.Nodes))

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		// Уменьшаем inDegree у потомков
		for _, edge := range node.Downstream {
			inDegree[edge.To.Name]--
			if inDegree[edge.To.Name] == 0 {
				queue = append(queue, edge.To)
			}
		}
	}

	// Если не все узлы обработаны — есть цикл
	if len(order) != len(g.Nodes) {
		return nil, ErrCyclicConnection
	}

	return order, nil
}

// ReadyNodes возвращает узлы, готовые к выполнению.
//
// Узел готов, если:
// - Все его предшественники завершены (в completed)
// - Сам узел ещё не завершён и не в процессе
//
// completed — map itemName → true для завершённых элементов
// (включая пропущенные). running — map itemName → true для
// элементов в процессе выполнения.
func (g *Graph) ReadyNodes(completed, running map[string]bool) []*Node {
	if completed == nil {
		completed = make(map[string]bool)
	}
	if running == nil {
		running = make(map[string]bool)
	}

	ready := make([]*Node, 0)

	for _, node := range g.Nodes {
		if completed[node.Name] || running[node.Name] {
			continue
		}

		allDepsCompleted := true
		for _, edge := range node.Upstream {
			if !completed[edge.From.Name] {
				allDepsCompleted = false
				break
			}
		}

		if allDepsCompleted {
			ready = append(ready, node)
		}
	}

	return ready
}

// Node возвращает узел по имени элемента.
func (g *Graph) Node(name string) *Node {
	return g.Nodes[name]
}

// Size возвращает количество узлов в DAG.
func (g *Graph) Size() int {
	return len(g.Nodes)
}

// IsComplete проверяет, все ли узлы завершены.
func (g *Graph) IsComplete(completed map[string]bool) bool {
	for _, node := range g.Nodes {
		if !completed[node.Name] {
			return false
		}
	}
	return true
}

// Predecessors возвращает непосредственных предшественников узла.
func (g *Graph) Predecessors(name string) []*Node {
	node := g.Nodes[name]
	if node == nil {
		return nil
	}
	preds := make([]*Node, 0, len(node.Upstream))
	for _, edge := range node.Upstream {
		preds = append(preds, edge.From)
	}
	return preds
}

// Successors возвращает непосредственных потомков узла.
func (g *Graph) Successors(name string) []*Node {
	node := g.Nodes[name]
	if node == nil {
		return nil
	}
	succs := make([]*Node, 0, len(node.Downstream))
	for _, edge := range node.Downstream {
		succs = append(succs, edge.To)
	}
	return succs
}

// DownstreamOf возвращает имена всех узлов, достижимых из данного
// (транзитивно). Используется, чтобы не запускать потомков упавшего элемента.
func (g *Graph) DownstreamOf(name string) map[string]bool {
	result := make(map[string]bool)

	start := g.Nodes[name]
	if start == nil {
		return result
	}

	queue := []*Node{start}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		for _, edge := range node.Downstream {
			if !result[edge.To.Name] {
				result[edge.To.Name] = true
				queue = append(queue, edge.To)
			}
		}
	}

	return result
}
