// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений в очереди
//   - consumer.go   — потребление сообщений из очередей
//
// Типы сообщений:
//   - run.pending      — новый run ожидает выполнения
//   - item.ready       — задача элемента готова к выполнению
//   - item.completed   — задача элемента завершена
//
// Exchanges:
//   - conveyor.runs    — события runs
//   - conveyor.items   — события задач элементов
//   - conveyor.dlq     — dead letter queue
package mq
