package errlog

import (
	"os"
	"path"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerCreatesFile(t *testing.T) {
	assert := assert.New(t)

	logPath := path.Join(t.TempDir(), "error.log")
	logger, err := New(logPath)
	assert.Nil(err)
	defer logger.Close()

	content, err := os.ReadFile(logPath)
	assert.Nil(err)
	assert.Empty(content)
}

func TestLoggerAppendsTimestampedLines(t *testing.T) {
	assert := assert.New(t)

	logPath := path.Join(t.TempDir(), "error.log")
	logger, err := New(logPath)
	assert.Nil(err)
	defer logger.Close()

	logger.Errorf("first failure: %s", "gateway down")
	logger.Errorf("second failure")

	raw, err := os.ReadFile(logPath)
	assert.Nil(err)

	lines := strings.Split(strings.TrimSuffix(string(raw), "\n"), "\n")
	assert.Len(lines, 2)

	// [2023-09-14T12:00:00Z]: message
	linePattern := regexp.MustCompile(`^\[\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z\]: .+$`)
	for _, line := range lines {
		assert.Regexp(linePattern, line)
	}
	assert.Contains(lines[0], "first failure: gateway down")
	assert.Contains(lines[1], "second failure")
}

func TestLoggerAppendsAcrossRestarts(t *testing.T) {
	assert := assert.New(t)

	logPath := path.Join(t.TempDir(), "error.log")

	logger, err := New(logPath)
	assert.Nil(err)
	logger.Errorf("before restart")
	logger.Close()

	logger, err = New(logPath)
	assert.Nil(err)
	defer logger.Close()
	logger.Errorf("after restart")

	raw, err := os.ReadFile(logPath)
	assert.Nil(err)
	assert.Contains(string(raw), "before restart")
	assert.Contains(string(raw), "after restart")
}
