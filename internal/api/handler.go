package api

import (
	"log/slog"

	"github.com/avdonin/Conveyor/internal/mq"
	"github.com/avdonin/Conveyor/internal/repo"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	projectRepo  *repo.ProjectRepo
	runRepo      *repo.RunRepo
	taskRepo     *repo.TaskRepo
	scheduleRepo *repo.ScheduleRepo
	proposalRepo *repo.ProposalRepo
	publisher    *mq.Publisher
	authToken    string
	logger       *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	ProjectRepo  *repo.ProjectRepo
	RunRepo      *repo.RunRepo
	TaskRepo     *repo.TaskRepo
	ScheduleRepo *repo.ScheduleRepo
	ProposalRepo *repo.ProposalRepo
	Publisher    *mq.Publisher

	// AuthToken — bearer-токен для защиты API (env API_TOKEN).
	// Пустая строка — аутентификация выключена.
	AuthToken string

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		projectRepo:  cfg.ProjectRepo,
		runRepo:      cfg.RunRepo,
		taskRepo:     cfg.TaskRepo,
		scheduleRepo: cfg.ScheduleRepo,
		proposalRepo: cfg.ProposalRepo,
		publisher:    cfg.Publisher,
		authToken:    cfg.AuthToken,
		logger:       cfg.Logger,
	}
}
