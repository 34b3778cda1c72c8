// Package logging is the structured log sink for the engine. Entries are
// JSON lines carrying level, category, message, an optional detail blob and
// the run id of the orchestrator invocation that produced them.
package logging

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

const Category = "device-sync"

var levelOrder = map[string]int{"debug": 10, "info": 20, "warn": 30, "error": 40}

type Logger struct {
	level int
	runID string

	mu  *sync.Mutex
	out io.Writer
}

type entry struct {
	Time     string         `json:"ts"`
	Level    string         `json:"level"`
	Category string         `json:"category"`
	Message  string         `json:"msg"`
	RunID    string         `json:"run_id,omitempty"`
	Detail   map[string]any `json:"detail,omitempty"`
}

// New creates a logger writing to stdout. Unknown levels default to info.
func New(level string) *Logger {
	return newLogger(level, os.Stdout)
}

// NewWithFile creates a logger writing to a size-rotated file.
func NewWithFile(level, path string) *Logger {
	return newLogger(level, &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     14, // days
	})
}

// NewWithWriter is intended for tests.
func NewWithWriter(level string, w io.Writer) *Logger {
	return newLogger(level, w)
}

func newLogger(level string, w io.Writer) *Logger {
	lv, ok := levelOrder[strings.ToLower(strings.TrimSpace(level))]
	if !ok {
		lv = levelOrder["info"]
	}
	return &Logger{level: lv, mu: &sync.Mutex{}, out: w}
}

// WithRun returns a logger that stamps every entry with the run id. The
// returned logger shares the underlying writer and lock.
func (l *Logger) WithRun(runID string) *Logger {
	clone := *l
	clone.runID = runID
	return &clone
}

func (l *Logger) Debug(msg string, detail map[string]any) { l.write("debug", msg, detail) }
func (l *Logger) Info(msg string, detail map[string]any)  { l.write("info", msg, detail) }
func (l *Logger) Warn(msg string, detail map[string]any)  { l.write("warn", msg, detail) }
func (l *Logger) Error(msg string, detail map[string]any) { l.write("error", msg, detail) }

func (l *Logger) write(level, msg string, detail map[string]any) {
	if levelOrder[level] < l.level {
		return
	}
	e := entry{
		Time:     time.Now().UTC().Format(time.RFC3339Nano),
		Level:    level,
		Category: Category,
		Message:  msg,
		RunID:    l.runID,
		Detail:   detail,
	}
	line, err := json.Marshal(e)
	if err != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(append(line, '\n'))
}
