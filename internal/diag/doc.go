// Package diag collects per-file diagnostics produced while processing assets.
//
// Назначение: накапливать пропуски и ошибки по файлам, не прерывая обход.
// Не делает: форматирование вывода (это cmd/gfxprep).
package diag
