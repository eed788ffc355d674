package source

import "io/fs"

// FileFlags encodes what loading had to change in a file.
type FileFlags uint8 // метаданные загрузки

const (
	// FileVirtual indicates the file was added from memory (test, stdin, etc.).
	FileVirtual FileFlags = 1 << iota // добавлен не с диска (тест, stdin)
	FileHadBOM
	FileNormalizedNewlines
)

// File captures the decoded text of a single file on disk.
type File struct {
	Path string
	// Raw holds the bytes exactly as read.
	Raw []byte
	// Content is Raw without BOM and with LF-only line endings.
	Content []byte
	Hash    [32]byte
	Mode    fs.FileMode
	Flags   FileFlags
}

// Has reports whether every bit of flag is set.
func (f *File) Has(flag FileFlags) bool {
	return f.Flags&flag == flag
}
