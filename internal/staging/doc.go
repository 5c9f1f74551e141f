// Package staging загружает исходные CSV в staging-таблицы (STG_*).
//
// Файлы берутся из каталога на диске или из бакета S3/MinIO.
// Все наборы данных загружаются одной транзакцией: каждая таблица
// очищается и заполняется заново, при любой ошибке откатывается всё.
package staging
