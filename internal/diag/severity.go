package diag

import (
	"fmt"
	"strings"
)

// Severity ranks a diagnostic. Only SevError makes a run fail; a skipped
// shader or a pending reformat is a warning.
type Severity uint8

const (
	SevInfo Severity = iota
	SevWarning
	SevError
)

var severityNames = [...]string{"INFO", "WARNING", "ERROR"}

func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return fmt.Sprintf("Severity(%d)", uint8(s))
}

// Fails reports whether a diagnostic of this severity makes the command
// exit non-zero.
func (s Severity) Fails() bool { return s >= SevError }

// ParseSeverity accepts the names printed by String, case-insensitively,
// plus "warn".
func ParseSeverity(name string) (Severity, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "INFO":
		return SevInfo, nil
	case "WARNING", "WARN":
		return SevWarning, nil
	case "ERROR":
		return SevError, nil
	}
	return SevInfo, fmt.Errorf("invalid severity %q (expected info|warning|error)", name)
}
