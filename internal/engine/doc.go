// Package engine содержит движок выполнения project.
//
// Включает:
//   - graph.go     — построение и обход DAG элементов (алгоритм Кана)
//   - validate.go  — валидация ProjectSpec (имена, типы, связи, фильтры)
//   - resources.go — ресурсы: статические, backward-пасс, фильтры связей
//   - template.go  — рендеринг Go templates ({{ .Inputs.x }})
//
// Engine отвечает за понимание структуры project: порядок выполнения
// элементов по связям и маршрутизацию ресурсов между непосредственными
// соседями DAG.
package engine
