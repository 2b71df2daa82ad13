package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// ProjectResponse — project из API.
type ProjectResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

// ProjectVersionResponse — версия project из API.
type ProjectVersionResponse struct {
	ProjectID string         `json:"project_id"`
	Version   int            `json:"version"`
	Spec      map[string]any `json:"spec"`
	CreatedAt string         `json:"created_at"`
}

// RunResponse — run из API.
type RunResponse struct {
	ID             string         `json:"id"`
	ProjectID      string         `json:"project_id"`
	Version        int            `json:"version"`
	Status         string         `json:"status"`
	Inputs         map[string]any `json:"inputs,omitempty"`
	SelectedItems  []string       `json:"selected_items,omitempty"`
	StartedAt      string         `json:"started_at,omitempty"`
	FinishedAt     string         `json:"finished_at,omitempty"`
	Error          string         `json:"error,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
	IsDryRun       bool           `json:"is_dry_run"`
	CreatedAt      string         `json:"created_at"`
}

// ResourceResponse — ресурс в ответах API.
type ResourceResponse struct {
	Type  string `json:"type"`
	URL   string `json:"url"`
	Label string `json:"label,omitempty"`
}

// TaskResponse — task из API.
type TaskResponse struct {
	ID                string             `json:"id"`
	RunID             string             `json:"run_id"`
	ItemName          string             `json:"item_name"`
	Type              string             `json:"type"`
	Attempt           int                `json:"attempt"`
	Status            string             `json:"status"`
	Payload           map[string]any     `json:"payload,omitempty"`
	ForwardResources  []ResourceResponse `json:"forward_resources,omitempty"`
	BackwardResources []ResourceResponse `json:"backward_resources,omitempty"`
	Outputs           map[string]any     `json:"outputs,omitempty"`
	Resources         []ResourceResponse `json:"resources,omitempty"`
	StartedAt         string             `json:"started_at,omitempty"`
	FinishedAt        string             `json:"finished_at,omitempty"`
	Error             string             `json:"error,omitempty"`
	CreatedAt         string             `json:"created_at"`
}

// ScheduleResponse — schedule из API.
type ScheduleResponse struct {
	ID          string         `json:"id"`
	ProjectID   string         `json:"project_id"`
	Name        string         `json:"name"`
	CronExpr    string         `json:"cron_expr,omitempty"`
	IntervalSec int            `json:"interval_sec,omitempty"`
	Timezone    string         `json:"timezone"`
	Enabled     bool           `json:"enabled"`
	NextDueAt   string         `json:"next_due_at,omitempty"`
	LastRunAt   string         `json:"last_run_at,omitempty"`
	LastRunID   string         `json:"last_run_id,omitempty"`
	Inputs      map[string]any `json:"inputs,omitempty"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}

// ProposalResponse — proposal из API.
type ProposalResponse struct {
	ID             string         `json:"id"`
	ProjectID      string         `json:"project_id"`
	BaseVersion    *int           `json:"base_version,omitempty"`
	ProposedSpec   map[string]any `json:"proposed_spec"`
	Status         string         `json:"status"`
	Title          string         `json:"title,omitempty"`
	Description    string         `json:"description,omitempty"`
	CreatedBy      string         `json:"created_by,omitempty"`
	ReviewedBy     string         `json:"reviewed_by,omitempty"`
	ReviewedAt     string         `json:"reviewed_at,omitempty"`
	ReviewComment  string         `json:"review_comment,omitempty"`
	DryRunID       string         `json:"dry_run_id,omitempty"`
	DryRunResult   map[string]any `json:"dry_run_result,omitempty"`
	AppliedVersion *int           `json:"applied_version,omitempty"`
	AppliedAt      string         `json:"applied_at,omitempty"`
	CreatedAt      string         `json:"created_at"`
	UpdatedAt      string         `json:"updated_at"`
}

// --- Request types ---

// UpdateProjectRequest — обновление project.
type UpdateProjectRequest struct {
	Name     *string `json:"name,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// CreateRunRequest — создание run.
type CreateRunRequest struct {
	Inputs         map[string]any `json:"inputs,omitempty"`
	Version        *int           `json:"version,omitempty"`
	SelectedItems  []string       `json:"selected_items,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
	IsDryRun       bool           `json:"is_dry_run,omitempty"`
}

// CreateScheduleRequest — создание schedule.
type CreateScheduleRequest struct {
	Name        string         `json:"name"`
	CronExpr    string         `json:"cron_expr,omitempty"`
	IntervalSec int            `json:"interval_sec,omitempty"`
	Timezone    string         `json:"timezone,omitempty"`
	Enabled     bool           `json:"enabled"`
	Inputs      map[string]any `json:"inputs,omitempty"`
}

// UpdateScheduleRequest — обновление schedule.
type UpdateScheduleRequest struct {
	Name        *string `json:"name,omitempty"`
	CronExpr    *string `json:"cron_expr,omitempty"`
	IntervalSec *int    `json:"interval_sec,omitempty"`
	Timezone    *string `json:"timezone,omitempty"`
}

// CreateProposalRequest — создание proposal.
type CreateProposalRequest struct {
	Title        string         `json:"title,omitempty"`
	Description  string         `json:"description,omitempty"`
	ProposedSpec map[string]any `json:"proposed_spec"`
	CreatedBy    string         `json:"created_by,omitempty"`
}

// UpdateProposalRequest — обновление proposal.
type UpdateProposalRequest struct {
	Title        *string        `json:"title,omitempty"`
	Description  *string        `json:"description,omitempty"`
	ProposedSpec map[string]any `json:"proposed_spec,omitempty"`
}

// ReviewProposalRequest — approve/reject proposal.
type ReviewProposalRequest struct {
	Reviewer string `json:"reviewer"`
	Comment  string `json:"comment,omitempty"`
}

// DryRunProposalRequest — проверочный запуск proposal.
type DryRunProposalRequest struct {
	Inputs map[string]any `json:"inputs,omitempty"`
}

// ListRunsOpts — параметры фильтрации runs.
type ListRunsOpts struct {
	ProjectID string
	Status    string
	Limit     int
}

// ListProposalsOpts — параметры фильтрации proposals.
type ListProposalsOpts struct {
	ProjectID string
	Status    string
	Limit     int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Conveyor API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient создаёт клиент для API. Если token не пустой, запросы
// отправляются с заголовком Authorization: Bearer.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Projects ---

// ListProjects возвращает все projects.
func (c *Client) ListProjects() ([]ProjectResponse, error) {
	var projects []ProjectResponse
	err := c.list("/api/v1/projects", nil, &projects)
	return projects, err
}

// CreateProject создаёт новый project.
func (c *Client) CreateProject(name string) (*ProjectResponse, error) {
	body := map[string]string{"name": name}
	var project ProjectResponse
	err := c.post("/api/v1/projects", body, &project)
	return &project, err
}

// GetProject возвращает project по ID.
func (c *Client) GetProject(id string) (*ProjectResponse, error) {
	var project ProjectResponse
	err := c.get("/api/v1/projects/"+id, &project)
	return &project, err
}

// UpdateProject обновляет project.
func (c *Client) UpdateProject(id string, req UpdateProjectRequest) (*ProjectResponse, error) {
	var project ProjectResponse
	err := c.put("/api/v1/projects/"+id, req, &project)
	return &project, err
}

// DeleteProject удаляет project.
func (c *Client) DeleteProject(id string) error {
	return c.delete("/api/v1/projects/" + id)
}

// ListVersions возвращает версии project.
func (c *Client) ListVersions(projectID string) ([]ProjectVersionResponse, error) {
	var versions []ProjectVersionResponse
	err := c.list("/api/v1/projects/"+projectID+"/versions", nil, &versions)
	return versions, err
}

// GetVersion возвращает конкретную версию project.
func (c *Client) GetVersion(projectID string, version int) (*ProjectVersionResponse, error) {
	var v ProjectVersionResponse
	err := c.get(fmt.Sprintf("/api/v1/projects/%s/versions/%d", projectID, version), &v)
	return &v, err
}

// CreateVersion создаёт новую версию project из спецификации.
func (c *Client) CreateVersion(projectID string, spec map[string]any) (*ProjectVersionResponse, error) {
	body := map[string]any{"spec": spec}
	var version ProjectVersionResponse
	err := c.post("/api/v1/projects/"+projectID+"/versions", body, &version)
	return &version, err
}

// --- Runs ---

// ListRuns возвращает список runs с фильтрацией.
func (c *Client) ListRuns(opts ListRunsOpts) ([]RunResponse, error) {
	params := url.Values{}
	if opts.ProjectID != "" {
		params.Set("project_id", opts.ProjectID)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var runs []RunResponse
	err := c.list("/api/v1/runs", params, &runs)
	return runs, err
}

// CreateRun создаёт run для project.
func (c *Client) CreateRun(projectID string, req CreateRunRequest) (*RunResponse, error) {
	var run RunResponse
	err := c.post("/api/v1/projects/"+projectID+"/runs", req, &run)
	return &run, err
}

// GetRun возвращает run по ID.
func (c *Client) GetRun(id string) (*RunResponse, error) {
	var run RunResponse
	err := c.get("/api/v1/runs/"+id, &run)
	return &run, err
}

// CancelRun отменяет run.
func (c *Client) CancelRun(id string) (*RunResponse, error) {
	var run RunResponse
	err := c.post("/api/v1/runs/"+id+"/cancel", nil, &run)
	return &run, err
}

// ListTasks возвращает tasks для run.
func (c *Client) ListTasks(runID string) ([]TaskResponse, error) {
	var tasks []TaskResponse
	err := c.list("/api/v1/runs/"+runID+"/tasks", nil, &tasks)
	return tasks, err
}

// --- Schedules ---

// ListSchedules возвращает schedules. Если projectID не пустой — фильтрует.
func (c *Client) ListSchedules(projectID string) ([]ScheduleResponse, error) {
	params := url.Values{}
	if projectID != "" {
		params.Set("project_id", projectID)
	}

	var schedules []ScheduleResponse
	err := c.list("/api/v1/schedules", params, &schedules)
	return schedules, err
}

// CreateSchedule создаёт schedule для project.
func (c *Client) CreateSchedule(projectID string, req CreateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.post("/api/v1/projects/"+projectID+"/schedules", req, &schedule)
	return &schedule, err
}

// GetSchedule возвращает schedule по ID.
func (c *Client) GetSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.get("/api/v1/schedules/"+id, &schedule)
	return &schedule, err
}

// UpdateSchedule обновляет schedule.
func (c *Client) UpdateSchedule(id string, req UpdateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.put("/api/v1/schedules/"+id, req, &schedule)
	return &schedule, err
}

// DeleteSchedule удаляет schedule.
func (c *Client) DeleteSchedule(id string) error {
	return c.delete("/api/v1/schedules/" + id)
}

// EnableSchedule включает schedule.
func (c *Client) EnableSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	body := map[string]bool{"enabled": true}
	err := c.put("/api/v1/schedules/"+id+"/enabled", body, &schedule)
	return &schedule, err
}

// DisableSchedule выключает schedule.
func (c *Client) DisableSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	body := map[string]bool{"enabled": false}
	err := c.put("/api/v1/schedules/"+id+"/enabled", body, &schedule)
	return &schedule, err
}

// --- Proposals ---

// ListProposals возвращает proposals с фильтрацией.
func (c *Client) ListProposals(opts ListProposalsOpts) ([]ProposalResponse, error) {
	params := url.Values{}
	if opts.ProjectID != "" {
		params.Set("project_id", opts.ProjectID)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var proposals []ProposalResponse
	err := c.list("/api/v1/proposals", params, &proposals)
	return proposals, err
}

// CreateProposal создаёт proposal для project.
func (c *Client) CreateProposal(projectID string, req CreateProposalRequest) (*ProposalResponse, error) {
	var proposal ProposalResponse
	err := c.post("/api/v1/projects/"+projectID+"/proposals", req, &proposal)
	return &proposal, err
}

// GetProposal возвращает proposal по ID.
func (c *Client) GetProposal(id string) (*ProposalResponse, error) {
	var proposal ProposalResponse
	err := c.get("/api/v1/proposals/"+id, &proposal)
	return &proposal, err
}

// UpdateProposal обновляет proposal (только в статусе DRAFT).
func (c *Client) UpdateProposal(id string, req UpdateProposalRequest) (*ProposalResponse, error) {
	var proposal ProposalResponse
	err := c.put("/api/v1/proposals/"+id, req, &proposal)
	return &proposal, err
}

// DeleteProposal удаляет proposal.
func (c *Client) DeleteProposal(id string) error {
	return c.delete("/api/v1/proposals/" + id)
}

// SubmitProposal отправляет proposal на review.
func (c *Client) SubmitProposal(id string) (*ProposalResponse, error) {
	var proposal ProposalResponse
	err := c.post("/api/v1/proposals/"+id+"/submit", nil, &proposal)
	return &proposal, err
}

// ApproveProposal одобряет proposal.
func (c *Client) ApproveProposal(id string, req ReviewProposalRequest) (*ProposalResponse, error) {
	var proposal ProposalResponse
	err := c.post("/api/v1/proposals/"+id+"/approve", req, &proposal)
	return &proposal, err
}

// RejectProposal отклоняет proposal.
func (c *Client) RejectProposal(id string, req ReviewProposalRequest) (*ProposalResponse, error) {
	var proposal ProposalResponse
	err := c.post("/api/v1/proposals/"+id+"/reject", req, &proposal)
	return &proposal, err
}

// DryRunProposal выполняет проверочный проход по proposed spec.
func (c *Client) DryRunProposal(id string, req DryRunProposalRequest) (*ProposalResponse, error) {
	var proposal ProposalResponse
	err := c.post("/api/v1/proposals/"+id+"/dry-run", req, &proposal)
	return &proposal, err
}

// ApplyProposal применяет одобренный proposal как новую версию project.
func (c *Client) ApplyProposal(id string) (*ProposalResponse, error) {
	var proposal ProposalResponse
	err := c.post("/api/v1/proposals/"+id+"/apply", nil, &proposal)
	return &proposal, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
