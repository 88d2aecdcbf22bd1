package forecast

import (
	"fmt"
	"os"
	"sync"
)

// ResultSink receives ordered text lines summarizing finished test runs.
type ResultSink interface {
	Append(lines ...string) error
}

// FileResultSink appends to a single results file, serializing concurrent
// writers. The on-disk record format is three lines per run: the setting
// name, the metric summary, and a blank separator.
type FileResultSink struct {
	path  string
	mutex sync.Mutex
}

// NewFileResultSink creates a sink appending to path.
func NewFileResultSink(path string) *FileResultSink {
	return &FileResultSink{path: path}
}

// Append writes the lines and a trailing blank line in one open/close cycle.
func (s *FileResultSink) Append(lines ...string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open results log: %v", err)
	}
	defer f.Close()

	for _, line := range lines {
		if _, err := fmt.Fprintln(f, line); err != nil {
			return fmt.Errorf("failed to write results log: %v", err)
		}
	}
	if _, err := fmt.Fprintln(f); err != nil {
		return fmt.Errorf("failed to write results log: %v", err)
	}
	return nil
}
