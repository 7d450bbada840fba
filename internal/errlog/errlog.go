package errlog

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/labstack/gommon/log"
)

// Logger appends one timestamped line per error to a local log file and
// echoes the message to the console logger. The file is created empty at
// startup if it does not already exist.
type Logger struct {
	mu   sync.Mutex
	file *os.File
	path string
}

func New(path string) (*Logger, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening error log: %w", err)
	}
	return &Logger{file: file, path: path}, nil
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	line := fmt.Sprintf("[%s]: %s\n", time.Now().UTC().Format(time.RFC3339), message)

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.WriteString(line); err != nil {
		log.Errorf("writing error log: %+v", err)
	}
	log.Error(message)
}

func (l *Logger) Path() string {
	return l.path
}

func (l *Logger) Close() error {
	return l.file.Close()
}
