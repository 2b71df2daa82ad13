package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avdonin/Conveyor/internal/domain"
)

// ProjectRepo — репозиторий для работы с projects и project_versions.
type ProjectRepo struct {
	pool *pgxpool.Pool
}

// NewProjectRepo создаёт новый ProjectRepo.
func NewProjectRepo(pool *pgxpool.Pool) *ProjectRepo {
	return &ProjectRepo{pool: pool}
}

// --- Project CRUD ---

// Create создаёт новый project.
func (r *ProjectRepo) Create(ctx context.Context, project *domain.Project) error {
	query := `
		INSERT INTO projects (id, name, is_active, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.pool.Exec(ctx, query,
		project.ID,
		project.Name,
		project.IsActive,
		project.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// GetByID возвращает project по ID.
func (r *ProjectRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	query := `
		SELECT id, name, is_active, created_at
		FROM projects
		WHERE id = $1
	`
	var project domain.Project
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&project.ID,
		&project.Name,
		&project.IsActive,
		&project.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project by id: %w", err)
	}
	return &project, nil
}

// GetByName возвращает project по имени.
func (r *ProjectRepo) GetByName(ctx context.Context, name string) (*domain.Project, error) {
	query := `
		SELECT id, name, is_active, created_at
		FROM projects
		WHERE name = $1
	`
	var project domain.Project
	err := r.pool.QueryRow(ctx, query, name).Scan(
		&project.ID,
		&project.Name,
		&project.IsActive,
		&project.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project by name: %w", err)
	}
	return &project, nil
}

// List возвращает список всех projects.
func (r *ProjectRepo) List(ctx context.Context) ([]domain.Project, error) {
	query := `
		SELECT id, name, is_active, created_at
		FROM projects
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []domain.Project
	for rows.Next() {
		var project domain.Project
		if err := rows.Scan(
			&project.ID,
			&project.Name,
			&project.IsActive,
			&project.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// Update обновляет project.
func (r *ProjectRepo) Update(ctx context.Context, project *domain.Project) error {
	query := `
		UPDATE projects
		SET name = $2, is_active = $3
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, project.ID, project.Name, project.IsActive)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет project (каскадно удалит versions, runs, schedules).
func (r *ProjectRepo) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM projects WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- ProjectVersion CRUD ---

// CreateVersion создаёт новую версию project.
// Версия автоматически инкрементируется.
func (r *ProjectRepo) CreateVersion(ctx context.Context, projectID uuid.UUID, spec domain.ProjectSpec) (*domain.ProjectVersion, error) {
	// Сериализуем spec в JSON
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("marshal spec: %w", err)
	}

	// Получаем следующий номер версии
	var nextVersion int
	err = r.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(version), 0) + 1
		FROM project_versions
		WHERE project_id = $1
	`, projectID).Scan(&nextVersion)
	if err != nil {
		return nil, fmt.Errorf("get next version: %w", err)
	}

	// Создаём версию
	var version domain.ProjectVersion
	err = r.pool.QueryRow(ctx, `
		INSERT INTO project_versions (project_id, version, spec, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING project_id, version, spec, created_at
	`, projectID, nextVersion, specJSON).Scan(
		&version.ProjectID,
		&version.Version,
		&specJSON,
		&version.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert project version: %w", err)
	}

	// Десериализуем spec обратно
	if err := json.Unmarshal(specJSON, &version.Spec); err != nil {
		return nil, fmt.Errorf("unmarshal spec: %w", err)
	}

	return &version, nil
}

// GetVersion возвращает конкретную версию project.
func (r *ProjectRepo) GetVersion(ctx context.Context, projectID uuid.UUID, version int) (*domain.ProjectVersion, error) {
	query := `
		SELECT project_id, version, spec, created_at
		FROM project_versions
		WHERE project_id = $1 AND version = $2
	`
	var pv domain.ProjectVersion
	var specJSON []byte
	err := r.pool.QueryRow(ctx, query, projectID, version).Scan(
		&pv.ProjectID,
		&pv.Version,
		&specJSON,
		&pv.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project version: %w", err)
	}

	if err := json.Unmarshal(specJSON, &pv.Spec); err != nil {
		return nil, fmt.Errorf("unmarshal spec: %w", err)
	}

	return &pv, nil
}

// GetLatestVersion возвращает последнюю версию project.
func (r *ProjectRepo) GetLatestVersion(ctx context.Context, projectID uuid.UUID) (*domain.ProjectVersion, error) {
	query := `
		SELECT project_id, version, spec, created_at
		FROM project_versions
		WHERE project_id = $1
		ORDER BY version DESC
		LIMIT 1
	`
	var pv domain.ProjectVersion
	var specJSON []byte
	err := r.pool.QueryRow(ctx, query, projectID).Scan(
		&pv.ProjectID,
		&pv.Version,
		&specJSON,
		&pv.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest project version: %w", err)
	}

	if err := json.Unmarshal(specJSON, &pv.Spec); err != nil {
		return nil, fmt.Errorf("unmarshal spec: %w", err)
	}

	return &pv, nil
}

// ListVersions возвращает все версии project.
func (r *ProjectRepo) ListVersions(ctx context.Context, projectID uuid.UUID) ([]domain.ProjectVersion, error) {
	query := `
		SELECT project_id, version, spec, created_at
		FROM project_versions
		WHERE project_id = $1
		ORDER BY version DESC
	`
	rows, err := r.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project versions: %w", err)
	}
	defer rows.Close()

	var versions []domain.ProjectVersion
	for rows.Next() {
		var pv domain.ProjectVersion
		var specJSON []byte
		if err := rows.Scan(
			&pv.ProjectID,
			&pv.Version,
			&specJSON,
			&pv.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan project version: %w", err)
		}

		if err := json.Unmarshal(specJSON, &pv.Spec); err != nil {
			return nil, fmt.Errorf("unmarshal spec: %w", err)
		}

		versions = append(versions, pv)
	}
	return versions, rows.Err()
}
