package pipeline

import "time"

// Stage describes a step applied to one asset.
type Stage string

const (
	// StageRead loads raw bytes from disk.
	StageRead Stage = "read"
	// StageNormalize rewrites shader text.
	StageNormalize Stage = "normalize"
	// StageWrite stores the result.
	StageWrite Stage = "write"
	// StageDecode decodes an image container.
	StageDecode Stage = "decode"
	// StageEncode encodes an output image.
	StageEncode Stage = "encode"
)

// Status captures progress state within a stage.
type Status string

const (
	// StatusQueued indicates the task is waiting to start.
	StatusQueued Status = "queued"
	// StatusWorking indicates the task is currently working.
	StatusWorking Status = "working"
	// StatusDone indicates the task is done.
	StatusDone Status = "done"
	// StatusSkipped indicates the file was left untouched on purpose.
	StatusSkipped Status = "skipped"
	// StatusError indicates the task encountered an error.
	StatusError Status = "error"
)

// Event reports progress for a file (or for the whole run when File is empty).
type Event struct {
	File    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events.
type ProgressSink interface {
	OnEvent(Event)
}
