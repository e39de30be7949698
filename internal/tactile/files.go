package tactile

import (
	"bufio"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fixloop/internal/logging"
)

// FileEditor handles line-oriented file reads and writes for the fix
// strategies. Edits read the whole file, mutate lines in memory, and
// write the whole file back; the write is not atomic against a crash
// between read and write, which is acceptable for best-effort
// remediation and documented as a known limitation.
type FileEditor struct {
	workingDir string
}

// NewFileEditor creates a FileEditor rooted at the current directory.
func NewFileEditor() *FileEditor {
	return &FileEditor{workingDir: "."}
}

// SetWorkingDir sets the base for relative paths.
func (e *FileEditor) SetWorkingDir(dir string) {
	e.workingDir = dir
}

func (e *FileEditor) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(e.workingDir, path)
}

// Exists checks whether a file exists.
func (e *FileEditor) Exists(path string) bool {
	_, err := os.Stat(e.resolvePath(path))
	return err == nil
}

// ReadFile reads an entire file and returns its lines.
func (e *FileEditor) ReadFile(path string) ([]string, error) {
	absPath := e.resolvePath(path)

	file, err := os.Open(absPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	// Increase buffer size for long lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	logging.FixDebug("read %s (%d lines)", path, len(lines))
	return lines, nil
}

// ReadRaw reads a file as a single string.
func (e *FileEditor) ReadRaw(path string) (string, error) {
	data, err := os.ReadFile(e.resolvePath(path))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteFile writes lines to a file with a trailing newline.
func (e *FileEditor) WriteFile(path string, lines []string) error {
	absPath := e.resolvePath(path)

	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	if err := os.WriteFile(absPath, []byte(content), 0644); err != nil {
		return err
	}

	logging.FixDebug("wrote %s (%d lines, hash=%s)", path, len(lines), contentHash(lines)[:16])
	return nil
}

// WriteRaw writes a file from a single string.
func (e *FileEditor) WriteRaw(path string, content string) error {
	return os.WriteFile(e.resolvePath(path), []byte(content), 0644)
}

// ReplaceLine rewrites a single 1-indexed line through the given
// rewriter. It returns (true, nil) when the rewriter changed the line
// and the file was written back, (false, nil) when the rewriter
// declined, and an error only for IO failures or an out-of-range line.
func (e *FileEditor) ReplaceLine(path string, line int, rewrite func(string) (string, bool)) (bool, error) {
	lines, err := e.ReadFile(path)
	if err != nil {
		return false, err
	}
	if line < 1 || line > len(lines) {
		return false, fmt.Errorf("line %d out of range for %s (%d lines)", line, path, len(lines))
	}

	updated, ok := rewrite(lines[line-1])
	if !ok || updated == lines[line-1] {
		return false, nil
	}

	lines[line-1] = updated
	if err := e.WriteFile(path, lines); err != nil {
		return false, err
	}
	return true, nil
}

// contentHash computes a SHA-256 over the lines, for debug logging.
func contentHash(lines []string) string {
	h := sha256.New()
	for _, line := range lines {
		h.Write([]byte(line))
		h.Write([]byte("\n"))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
