package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики системы.
//
// Регистрируются в DefaultRegisterer и отдаются
// через promhttp на /metrics каждого сервиса.
var (
	// RunsStarted — количество запущенных runs.
	RunsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "conveyor",
		Name:      "runs_started_total",
		Help:      "Number of runs started by the orchestrator.",
	})

	// RunsCompleted — количество завершённых runs по статусам.
	RunsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conveyor",
		Name:      "runs_completed_total",
		Help:      "Number of completed runs by final status.",
	}, []string{"status"})

	// ActiveRuns — количество runs в обработке.
	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "conveyor",
		Name:      "active_runs",
		Help:      "Number of runs currently being orchestrated.",
	})

	// TasksDispatched — количество созданных tasks по типам элементов.
	TasksDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conveyor",
		Name:      "tasks_dispatched_total",
		Help:      "Number of item tasks dispatched to workers by item type.",
	}, []string{"type"})

	// TasksCompleted — количество завершённых tasks по типам и статусам.
	TasksCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conveyor",
		Name:      "tasks_completed_total",
		Help:      "Number of item tasks completed by item type and status.",
	}, []string{"type", "status"})

	// TaskDuration — продолжительность выполнения tasks по типам элементов.
	TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "conveyor",
		Name:      "task_duration_seconds",
		Help:      "Item task execution duration by item type.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
	}, []string{"type"})

	// ScheduleTicks — количество тиков scheduler'а.
	ScheduleTicks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "conveyor",
		Name:      "schedule_ticks_total",
		Help:      "Number of scheduler ticks processed.",
	})

	// ScheduledRuns — количество runs, созданных по расписанию.
	ScheduledRuns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "conveyor",
		Name:      "scheduled_runs_total",
		Help:      "Number of runs created by the scheduler.",
	})
)
