// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go          — Handler с DI (репозитории, publisher, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging, recovery, auth)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - project_handler.go  — обработчики для /projects и версий спецификаций
//   - run_handler.go      — обработчики для /runs
//   - schedule_handler.go — обработчики для /schedules
//   - proposal_handler.go — обработчики для /proposals (review-workflow изменений)
//
// API предоставляет REST endpoints для управления проектами, запусками,
// расписаниями и proposals.
package api
