package worker

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/avdonin/Conveyor/internal/domain"
	"github.com/avdonin/Conveyor/internal/engine"
)

// ExporterExecutor — executor для элемента типа "exporter".
//
// Выполняет запрос к data_store-предшественнику и пишет результат
// в файл. Если фильтры связи дали несколько вариантов одного
// database-ресурса, экспорт выполняется для каждого варианта —
// в имя файла добавляется метка варианта.
//
// Config (из task.Payload):
//   - query (string): SQL-запрос (обязательно)
//   - output_file (string): путь к файлу результата (обязательно)
//   - format (string): "csv" или "json". Default: csv
//   - url (string): явный источник вместо forward-ресурса
//
// Outputs:
//   - rows_exported (int): суммарное количество строк
//   - files ([]string): записанные файлы
//
// Resources: file-ресурс на каждый записанный файл.
type ExporterExecutor struct{}

// Execute выполняет экспорт по всем источникам.
func (e *ExporterExecutor) Execute(ctx context.Context, task *domain.Task) (*ExecutionResult, error) {
	query := getString(task.Payload, "query", "")
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidConfig)
	}

	outputFile := getString(task.Payload, "output_file", "")
	if outputFile == "" {
		return nil, fmt.Errorf("%w: output_file is required", ErrInvalidConfig)
	}

	format := getString(task.Payload, "format", "csv")
	if format != "csv" && format != "json" {
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidConfig, format)
	}

	sources := exportSources(task)
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no source database (forward database resource or config url)", ErrMissingResource)
	}

	var (
		resources []domain.Resource
		files     []string
		total     int
	)

	for _, source := range sources {
		path := outputFile
		if len(sources) > 1 {
			path = variantPath(outputFile, source.Label)
		}

		rows, err := e.export(ctx, source.URL, query, format, path)
		if err != nil {
			return nil, err
		}

		total += rows
		files = append(files, path)
		resources = append(resources, domain.FileResource(engine.FileURL(path), task.ItemName))
	}

	return &ExecutionResult{
		Outputs: map[string]any{
			"rows_exported": total,
			"files":         files,
		},
		Resources: resources,
	}, nil
}

// export выполняет запрос к одному источнику и пишет один файл.
func (e *ExporterExecutor) export(ctx context.Context, url, query, format, path string) (int, error) {
	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDatabaseAccess, err)
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("%w: query: %v", ErrDatabaseAccess, err)
	}
	defer rows.Close()

	columns := make([]string, len(rows.FieldDescriptions()))
	for i, fd := range rows.FieldDescriptions() {
		columns[i] = fd.Name
	}

	var records [][]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return 0, fmt.Errorf("%w: scan: %v", ErrDatabaseAccess, err)
		}
		records = append(records, values)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDatabaseAccess, err)
	}

	if err := writeExport(path, format, columns, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

// writeExport пишет результирующий файл в указанном формате.
func writeExport(path, format string, columns []string, records [][]any) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	switch format {
	case "json":
		objects := make([]map[string]any, len(records))
		for i, record := range records {
			obj := make(map[string]any, len(columns))
			for j, col := range columns {
				obj[col] = record[j]
			}
			objects[i] = obj
		}
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(objects)

	default: // csv
		w := csv.NewWriter(f)
		if err := w.Write(columns); err != nil {
			return err
		}
		for _, record := range records {
			fields := make([]string, len(record))
			for i, val := range record {
				if val == nil {
					continue
				}
				fields[i] = fmt.Sprint(val)
			}
			if err := w.Write(fields); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	}
}

// exportSources собирает database-источники экспорта.
func exportSources(task *domain.Task) []domain.Resource {
	if url := getString(task.Payload, "url", ""); url != "" {
		return []domain.Resource{domain.DatabaseResource(url, "config")}
	}

	var sources []domain.Resource
	for _, res := range task.ForwardResources {
		if res.IsDatabase() {
			sources = append(sources, res)
		}
	}
	return sources
}

// variantPath добавляет метку варианта в имя файла перед расширением:
// out.csv + "db@low" → out_db_low.csv
func variantPath(path, label string) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)

	suffix := strings.NewReplacer("@", "_", "/", "_", " ", "_").Replace(label)
	return base + "_" + suffix + ext
}
