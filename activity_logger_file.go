package deploy

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileActivityLogger appends step decisions to <directory>/<run-id>.jsonl,
// one JSON document per line. Each entry is synced before LogActivity
// returns, so the log survives a crash of the deployer.
type FileActivityLogger struct {
	directory string
}

// NewFileActivityLogger returns a logger writing into directory. The
// directory is created on first write.
func NewFileActivityLogger(directory string) *FileActivityLogger {
	return &FileActivityLogger{directory: directory}
}

// Path returns the log file for a run
func (l *FileActivityLogger) Path(runID string) string {
	return filepath.Join(l.directory, runID+".jsonl")
}

// GetActivityHistory reads back a run's entries in the order they were
// written. A torn final line, left by a crash mid-write, is ignored.
func (l *FileActivityLogger) GetActivityHistory(ctx context.Context, runID string) ([]*ActivityLogEntry, error) {
	data, err := os.ReadFile(l.Path(runID))
	if err != nil {
		return nil, fmt.Errorf("failed to read activity log: %w", err)
	}

	var entries []*ActivityLogEntry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var entry ActivityLogEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			if !bytes.HasSuffix(data, []byte("\n")) && isLastLine(data, line) {
				break
			}
			return nil, fmt.Errorf("activity log line %d: %w", lineNo, err)
		}
		entries = append(entries, &entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read activity log: %w", err)
	}
	return entries, nil
}

func isLastLine(data, line []byte) bool {
	return bytes.HasSuffix(bytes.TrimSpace(data), line)
}

func (l *FileActivityLogger) LogActivity(ctx context.Context, entry *ActivityLogEntry) error {
	if entry.RunID == "" {
		return errors.New("activity log entry has no run id")
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(l.directory, 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.Path(entry.RunID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return f.Sync()
}
