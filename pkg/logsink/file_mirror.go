package logsink

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileMirror appends every sink write to a per-unit log file
type FileMirror struct {
	path   string
	unitID string
	file   *os.File
	writer *bufio.Writer
	mutex  sync.Mutex
}

func NewFileMirror(dir, unitID string) *FileMirror {
	return &FileMirror{
		path:   filepath.Join(dir, unitID+".log"),
		unitID: unitID,
	}
}

func (f *FileMirror) Path() string {
	return f.path
}

func (f *FileMirror) Write(stream Stream, text string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if err := f.ensureFileOpen(); err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	timestamp := time.Now().Format(time.RFC3339)
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		logLine := fmt.Sprintf("[%s][%s][%s] %s\n", timestamp, f.unitID, stream, line)
		if _, err := f.writer.WriteString(logLine); err != nil {
			return fmt.Errorf("failed to write log entry: %w", err)
		}
	}
	return f.writer.Flush()
}

func (f *FileMirror) Close() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.writer != nil {
		f.writer.Flush()
	}
	if f.file != nil {
		err := f.file.Close()
		f.file = nil
		f.writer = nil
		return err
	}
	return nil
}

func (f *FileMirror) ensureFileOpen() error {
	if f.file != nil {
		return nil
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", f.path, err)
	}

	f.file = file
	f.writer = bufio.NewWriter(file)
	return nil
}
