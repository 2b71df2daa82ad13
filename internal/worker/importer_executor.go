package worker

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/avdonin/Conveyor/internal/domain"
	"github.com/avdonin/Conveyor/internal/engine"
)

// ImporterExecutor — executor для элемента типа "importer".
//
// Читает CSV-файлы и вставляет строки в data_store, стоящий за
// importer'ом в графе. Источники — forward file-ресурсы
// предшественников (обычно data_connection) либо явный список files.
// Приёмник — первый backward database-ресурс либо явный url.
//
// Config (из task.Payload):
//   - table (string): целевая таблица (обязательно)
//   - columns ([]string): колонки таблицы. Default: заголовок CSV
//   - files ([]string): явные источники вместо forward-ресурсов
//   - url (string): явный приёмник вместо backward-ресурса
//   - skip_header (bool): пропускать первую строку. Default: true,
//     если columns заданы в конфигурации
//
// Outputs:
//   - rows_imported (int)
//   - files_read (int)
//   - table (string)
type ImporterExecutor struct{}

// Execute импортирует CSV в целевую базу.
func (e *ImporterExecutor) Execute(ctx context.Context, task *domain.Task) (*ExecutionResult, error) {
	table := getString(task.Payload, "table", "")
	if table == "" {
		return nil, fmt.Errorf("%w: table is required", ErrInvalidConfig)
	}

	sources := importSources(task)
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no source files (forward file resources or config files)", ErrMissingResource)
	}

	targetURL := getString(task.Payload, "url", "")
	if targetURL == "" {
		targetURL = firstDatabaseURL(task.BackwardResources)
	}
	if targetURL == "" {
		return nil, fmt.Errorf("%w: no target database (backward database resource or config url)", ErrMissingResource)
	}

	conn, err := pgx.Connect(ctx, targetURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseAccess, err)
	}
	defer conn.Close(ctx)

	columns := getStrings(task.Payload, "columns")
	columnsFromHeader := len(columns) == 0

	skipHeader := shouldSkipHeader(task.Payload, columnsFromHeader)

	total := 0
	for _, path := range sources {
		rows, fileColumns, err := readCSV(path, skipHeader)
		if err != nil {
			return &ExecutionResult{
				Error: fmt.Sprintf("read %s: %v", path, err),
			}, nil
		}

		cols := columns
		if columnsFromHeader {
			cols = fileColumns
		}
		if len(cols) == 0 {
			return &ExecutionResult{
				Error: fmt.Sprintf("no columns for %s: empty file and no columns config", path),
			}, nil
		}

		inserted, err := insertRows(ctx, conn, table, cols, rows)
		if err != nil {
			return nil, fmt.Errorf("%w: insert into %s: %v", ErrDatabaseAccess, table, err)
		}
		total += inserted
	}

	return &ExecutionResult{
		Outputs: map[string]any{
			"rows_imported": total,
			"files_read":    len(sources),
			"table":         table,
		},
	}, nil
}

// importSources собирает пути к исходным файлам.
func importSources(task *domain.Task) []string {
	if files := getStrings(task.Payload, "files"); len(files) > 0 {
		return files
	}

	var paths []string
	for _, res := range task.ForwardResources {
		if res.IsFile() {
			paths = append(paths, engine.FilePath(res.URL))
		}
	}
	return paths
}

// shouldSkipHeader решает, является ли первая строка CSV заголовком.
// При columns из заголовка он нужен всегда; при явных columns
// заголовок по умолчанию пропускается (skip_header).
func shouldSkipHeader(payload map[string]any, columnsFromHeader bool) bool {
	return columnsFromHeader || getBool(payload, "skip_header", true)
}

// firstDatabaseURL возвращает URL первого database-ресурса.
func firstDatabaseURL(resources []domain.Resource) string {
	for _, res := range resources {
		if res.IsDatabase() {
			return res.URL
		}
	}
	return ""
}

// readCSV читает файл целиком. При header=true первая строка
// возвращается отдельно как список колонок.
func readCSV(path string, header bool) (rows [][]string, columns []string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	first := true
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}

		if first && header {
			columns = record
			first = false
			continue
		}
		first = false
		rows = append(rows, record)
	}
	return rows, columns, nil
}

// insertRows вставляет строки одним batch'ем в транзакции.
func insertRows(ctx context.Context, conn *pgx.Conn, table string, columns []string, rows [][]string) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	sql := insertSQL(table, columns)

	batch := &pgx.Batch{}
	count := 0
	for _, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("row has %d fields, expected %d", len(row), len(columns))
		}
		args := make([]any, len(row))
		for i, field := range row {
			args[i] = field
		}
		batch.Queue(sql, args...)
		count++
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return count, nil
}

// insertSQL строит INSERT с плейсхолдерами и экранированными именами.
func insertSQL(table string, columns []string) string {
	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = pgx.Identifier{col}.Sanitize()
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pgx.Identifier{table}.Sanitize(),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
	)
}
