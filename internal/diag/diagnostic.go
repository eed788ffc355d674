package diag

// Diagnostic describes one problem with one file.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Path     string
	Message  string
}
