package source

import (
	"slices"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// normalizeNewlines заменяет \r\n и одиночные \r на \n.
// Возвращает новый слайс и флаг: были ли замены.
func normalizeNewlines(content []byte) ([]byte, bool) {
	// Быстрый путь: если нет \r, возвращаем как есть.
	if !slices.Contains(content, '\r') {
		return content, false
	}

	out := make([]byte, 0, len(content))
	i := 0
	for i < len(content) {
		if content[i] != '\r' {
			out = append(out, content[i])
			i++
			continue
		}
		out = append(out, '\n')
		if i+1 < len(content) && content[i+1] == '\n' {
			i += 2
		} else {
			i++
		}
	}
	return out, true
}

func removeBOM(content []byte) ([]byte, bool) {
	if len(content) < len(utf8BOM) {
		return content, false
	}
	if content[0] == utf8BOM[0] && content[1] == utf8BOM[1] && content[2] == utf8BOM[2] {
		return content[len(utf8BOM):], true
	}
	return content, false
}

func validateUTF8(content []byte) error {
	_, _, err := transform.Bytes(encoding.UTF8Validator, content)
	return err
}
