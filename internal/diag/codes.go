package diag

import "fmt"

type Code uint16

const (
	// Неизвестная ошибка - на первое время
	UnknownCode Code = 0

	// Ошибки шейдеров
	ShdInfo          Code = 1000
	ShdNotUTF8       Code = 1001
	ShdWouldReformat Code = 1002

	// I/O
	IOInfo           Code = 4000
	IOLoadFileError  Code = 4001
	IOWriteFileError Code = 4002
	IOCacheError     Code = 4003
	IOReadDirError   Code = 4004
)

var codeDescription = map[Code]string{
	UnknownCode:      "Unknown error",
	ShdInfo:          "Shader information",
	ShdNotUTF8:       "Shader is not valid UTF-8",
	ShdWouldReformat: "Shader needs normalization",
	IOInfo:           "I/O information",
	IOLoadFileError:  "I/O load file error",
	IOWriteFileError: "I/O write file error",
	IOCacheError:     "I/O cache error",
	IOReadDirError:   "I/O read directory error",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("SHD%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("IO%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
