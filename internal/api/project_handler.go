package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/avdonin/Conveyor/internal/domain"
	"github.com/avdonin/Conveyor/internal/engine"
)

// ListProjects возвращает список всех projects.
// GET /api/v1/projects
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projectRepo.List(r.Context())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ProjectResponse, len(projects))
	for i, p := range projects {
		result[i] = ProjectFromDomain(p)
	}

	List(w, result, len(result))
}

// CreateProject создаёт новый project.
// POST /api/v1/projects
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	project := &domain.Project{
		ID:       uuid.New(),
		Name:     req.Name,
		IsActive: false,
	}

	if err := h.projectRepo.Create(r.Context(), project); err != nil {
		if HandleRepoError(w, h.logger, err, "") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	Created(w, ProjectFromDomain(*project))
}

// GetProject возвращает project по ID.
// GET /api/v1/projects/{id}
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid project id")
		return
	}

	project, err := h.projectRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "project not found") {
		return
	}

	Success(w, ProjectFromDomain(*project))
}

// UpdateProject обновляет project.
// PUT /api/v1/projects/{id}
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid project id")
		return
	}

	var req UpdateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	project, err := h.projectRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "project not found") {
		return
	}

	if req.Name != nil {
		project.Name = *req.Name
	}
	if req.IsActive != nil {
		project.IsActive = *req.IsActive
	}

	if err := h.projectRepo.Update(r.Context(), project); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, ProjectFromDomain(*project))
}

// DeleteProject удаляет project.
// DELETE /api/v1/projects/{id}
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid project id")
		return
	}

	if err := h.projectRepo.Delete(r.Context(), id); err != nil {
		if HandleRepoError(w, h.logger, err, "project not found") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	NoContent(w)
}

// ListProjectVersions возвращает список версий project.
// GET /api/v1/projects/{id}/versions
func (h *Handler) ListProjectVersions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid project id")
		return
	}

	// Проверяем, что project существует
	_, err = h.projectRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "project not found") {
		return
	}

	versions, err := h.projectRepo.ListVersions(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ProjectVersionResponse, len(versions))
	for i, v := range versions {
		result[i] = ProjectVersionFromDomain(v)
	}

	List(w, result, len(result))
}

// CreateProjectVersion создаёт новую версию project.
// Спецификация валидируется (включая проверку на циклы) до сохранения.
// POST /api/v1/projects/{id}/versions
func (h *Handler) CreateProjectVersion(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid project id")
		return
	}

	var req CreateProjectVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if err := engine.Validate(&req.Spec); err != nil {
		BadRequest(w, err.Error())
		return
	}
	if _, err := engine.BuildGraph(&req.Spec); err != nil {
		BadRequest(w, err.Error())
		return
	}

	// Проверяем, что project существует
	_, err = h.projectRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "project not found") {
		return
	}

	version, err := h.projectRepo.CreateVersion(r.Context(), id, req.Spec)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, ProjectVersionFromDomain(*version))
}

// GetProjectVersion возвращает конкретную версию project.
// GET /api/v1/projects/{id}/versions/{version}
func (h *Handler) GetProjectVersion(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid project id")
		return
	}

	versionNum, err := strconv.Atoi(r.PathValue("version"))
	if err != nil {
		BadRequest(w, "invalid version number")
		return
	}

	version, err := h.projectRepo.GetVersion(r.Context(), id, versionNum)
	if HandleRepoError(w, h.logger, err, "project version not found") {
		return
	}

	Success(w, ProjectVersionFromDomain(*version))
}
