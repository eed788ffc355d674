// Package shader normalizes the text layout of shader sources.
//
// Назначение: канонический вид .comp файлов (директива #version, концы строк, хвостовые пробелы).
// Не делает: разбор GLSL, IO.
// Зависимости: internal/source.
package shader
