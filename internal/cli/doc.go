// Package cli реализует инструмент командной строки Conveyor.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Conveyor API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для управления projects, runs, schedules и proposals.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Conveyor API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок. Если задан API token, запросы отправляются
// с заголовком Authorization: Bearer.
//
//	client := cli.NewClient("http://localhost:8080", token)
//	projects, err := client.ListProjects()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: conveyor project list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - project: list, create, show, update, delete, versions, push
//   - run: list, start, show, cancel, tasks
//   - schedule: list, create, show, update, delete, enable, disable
//   - proposal: list, create, show, update, delete, submit, approve,
//     reject, dry-run, apply
//
// Спецификации project принимаются в YAML или JSON (project push -f,
// proposal create -f).
//
// Каждая группа создаётся через фабричную функцию (NewProjectCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
