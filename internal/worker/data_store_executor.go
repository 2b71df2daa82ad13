package worker

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/avdonin/Conveyor/internal/domain"
)

const dataStorePingTimeout = 10 * time.Second

// DataStoreExecutor — executor для элемента типа "data_store".
//
// Проверяет доступность сконфигурированной базы данных и публикует
// её как database-ресурс. Для диалекта postgres выполняется ping;
// остальные диалекты проходят только проверку URL.
//
// Config (из task.Payload):
//   - url (string): database URL (обязательно)
//   - dialect (string): "postgres", "sqlite", ... Default: по схеме URL
//
// Outputs:
//   - dialect (string)
//   - url (string)
//
// Resources: database-ресурс с URL хранилища.
type DataStoreExecutor struct{}

// Execute проверяет базу и возвращает её ресурс.
func (e *DataStoreExecutor) Execute(ctx context.Context, task *domain.Task) (*ExecutionResult, error) {
	rawURL := getString(task.Payload, "url", "")
	if rawURL == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidConfig)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return &ExecutionResult{
			Error: fmt.Sprintf("invalid database url: %v", err),
		}, nil
	}

	dialect := getString(task.Payload, "dialect", "")
	if dialect == "" {
		dialect = dialectFromScheme(parsed.Scheme)
	}

	if dialect == "postgres" {
		if err := pingPostgres(ctx, rawURL); err != nil {
			// Недоступность базы — инфраструктурная ошибка, retriable
			return nil, fmt.Errorf("%w: %v", ErrDatabaseAccess, err)
		}
	}

	return &ExecutionResult{
		Outputs: map[string]any{
			"dialect": dialect,
			"url":     rawURL,
		},
		Resources: []domain.Resource{
			domain.DatabaseResource(rawURL, task.ItemName),
		},
	}, nil
}

// pingPostgres открывает соединение и проверяет его.
func pingPostgres(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, dataStorePingTimeout)
	defer cancel()

	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	return conn.Ping(ctx)
}

// dialectFromScheme определяет диалект по схеме URL.
func dialectFromScheme(scheme string) string {
	switch scheme {
	case "postgresql", "postgres":
		return "postgres"
	case "sqlite", "file":
		return "sqlite"
	default:
		return scheme
	}
}
