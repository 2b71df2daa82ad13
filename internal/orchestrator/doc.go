// Package orchestrator управляет выполнением runs.
//
// Orchestrator отвечает за:
//   - Получение новых runs из очереди RabbitMQ
//   - Парсинг project spec и построение графа элементов
//   - Вычисление forward/backward-ресурсов элементов
//   - Создание tasks для элементов без предшественников
//   - Отслеживание завершения tasks
//   - Запуск следующих элементов, когда предшественники завершены
//   - Пропуск невыбранных элементов и элементов с ложным условием
//   - Блокировку ветки графа ниже упавшего элемента
//   - Финализацию run (SUCCEEDED/FAILED)
//
// Orchestrator — это "мозг" системы, который координирует выполнение.
package orchestrator
