package memory

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileStore keeps the long-term profile in MEMORY.md and the consolidation
// history in HISTORY.md under workspace/memory/.
type FileStore struct {
	memoryDir       string
	memoryFilePath  string
	historyFilePath string
}

// NewFileStore creates a FileStore rooted at workspace.
// The memory/ subdirectory is created if it does not exist.
func NewFileStore(workspace string) (*FileStore, error) {
	dir := filepath.Join(workspace, "memory")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}

	return &FileStore{
		memoryDir:       dir,
		memoryFilePath:  filepath.Join(dir, "MEMORY.md"),
		historyFilePath: filepath.Join(dir, "HISTORY.md"),
	}, nil
}

// ReadLongTerm returns the current contents of MEMORY.md, or "" if not yet written.
func (m *FileStore) ReadLongTerm() string {
	data, err := os.ReadFile(m.memoryFilePath)
	if err != nil {
		return ""
	}
	return string(data)
}

// WriteLongTerm replaces MEMORY.md with content. The write goes through a
// temp file and rename so a crash never leaves a half-written profile.
func (m *FileStore) WriteLongTerm(content string) error {
	tmp, err := os.CreateTemp(m.memoryDir, ".MEMORY.md.*")
	if err != nil {
		return fmt.Errorf("create temp profile: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp profile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp profile: %w", err)
	}
	if err := os.Rename(tmpPath, m.memoryFilePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace profile: %w", err)
	}
	return nil
}

// AppendHistory appends a timestamped entry to HISTORY.md followed by a blank line.
func (m *FileStore) AppendHistory(entry string) error {
	f, err := os.OpenFile(m.historyFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	// Strip trailing whitespace, then terminate the block with a blank line.
	line := entry
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r' || line[len(line)-1] == ' ') {
		line = line[:len(line)-1]
	}
	_, err = fmt.Fprintf(f, "%s\n\n", line)
	return err
}

// MemoryContext returns the long-term memory formatted for injection into
// the system prompt, or "" if MEMORY.md is empty.
func (m *FileStore) MemoryContext() string {
	lt := m.ReadLongTerm()
	if lt == "" {
		return ""
	}
	return "## Long-term Memory\n" + lt
}
