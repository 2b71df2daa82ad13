package domain

// Типы ресурсов.
const (
	ResourceTypeFile     = "file"
	ResourceTypeDatabase = "database"
)

// Resource — единица данных, передаваемая между соседними элементами DAG.
//
// Ресурс — это ссылка (file URL или database URL), а не сами данные.
// Ресурсы передаются только между непосредственными предшественниками
// и потомками:
//   - forward — результаты предшественников, доступные элементу при запуске
//   - backward — ресурсы потомков, объявленные до выполнения
//     (например, URL базы данных, в которую tool должен писать)
type Resource struct {
	// Type — тип ресурса: "file" или "database".
	Type string `json:"type"`

	// URL — адрес ресурса.
	// Для файлов: "file:///path/to/data.csv"
	// Для баз: "postgresql://host:5432/db"
	URL string `json:"url"`

	// Label — человекочитаемая метка ресурса.
	// По умолчанию: имя элемента-источника. Фильтры добавляют суффиксы.
	Label string `json:"label"`

	// Filterable — можно ли применять к ресурсу фильтры связей.
	// Имеет смысл только для database-ресурсов.
	Filterable bool `json:"filterable,omitempty"`

	// Metadata — дополнительные атрибуты ресурса.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// IsDatabase возвращает true для database-ресурса.
func (r *Resource) IsDatabase() bool {
	return r.Type == ResourceTypeDatabase
}

// IsFile возвращает true для file-ресурса.
func (r *Resource) IsFile() bool {
	return r.Type == ResourceTypeFile
}

// Clone возвращает глубокую копию ресурса.
// Используется при применении фильтров, чтобы не портить оригинал.
func (r *Resource) Clone() Resource {
	clone := *r
	if r.Metadata != nil {
		clone.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			clone.Metadata[k] = v
		}
	}
	return clone
}

// FileResource создаёт file-ресурс.
func FileResource(url, label string) Resource {
	return Resource{
		Type:  ResourceTypeFile,
		URL:   url,
		Label: label,
	}
}

// DatabaseResource создаёт database-ресурс.
// Database-ресурсы по умолчанию фильтруемые.
func DatabaseResource(url, label string) Resource {
	return Resource{
		Type:       ResourceTypeDatabase,
		URL:        url,
		Label:      label,
		Filterable: true,
	}
}
