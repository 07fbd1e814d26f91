package logsvc

import (
	"io"
	"log"
	"sync"

	"github.com/trezcool/sundayschool/core"
)

// Entry is a logged event, kept by the console logger mock for assertions.
type Entry struct {
	Level string
	Msg   string
	Args  []interface{}
}

type consoleLogger struct {
	std *log.Logger
}

var _ core.Logger = (*consoleLogger)(nil)

// NewConsoleLogger logs to std only (admin CLI, local runs).
func NewConsoleLogger(std *log.Logger) core.Logger {
	return &consoleLogger{std: std}
}

func (l consoleLogger) Debug(msg string, args ...interface{}) { printArgs(l.std, "DEBUG", msg, args) }
func (l consoleLogger) Info(msg string, args ...interface{})  { printArgs(l.std, "INFO", msg, args) }
func (l consoleLogger) Warn(msg string, args ...interface{})  { printArgs(l.std, "WARN", msg, args) }
func (l consoleLogger) Error(msg string, args ...interface{}) { printArgs(l.std, "ERROR", msg, args) }

func (l consoleLogger) Fatal(msg string, args ...interface{}) {
	printArgs(l.std, "FATAL", msg, args)
	l.std.Fatal(msg)
}

// ConsoleLoggerMock records entries instead of printing them.
// Fatal is recorded like any other level and never exits.
type ConsoleLoggerMock struct {
	mu      sync.Mutex
	entries []Entry
}

var _ core.Logger = (*ConsoleLoggerMock)(nil)

func NewConsoleLoggerMock() *ConsoleLoggerMock {
	return &ConsoleLoggerMock{}
}

func (l *ConsoleLoggerMock) record(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Level: level, Msg: msg, Args: args})
}

func (l *ConsoleLoggerMock) Debug(msg string, args ...interface{}) { l.record("DEBUG", msg, args) }
func (l *ConsoleLoggerMock) Info(msg string, args ...interface{})  { l.record("INFO", msg, args) }
func (l *ConsoleLoggerMock) Warn(msg string, args ...interface{})  { l.record("WARN", msg, args) }
func (l *ConsoleLoggerMock) Error(msg string, args ...interface{}) { l.record("ERROR", msg, args) }
func (l *ConsoleLoggerMock) Fatal(msg string, args ...interface{}) { l.record("FATAL", msg, args) }

// Entries returns a copy of what was logged at level (all levels when empty).
func (l *ConsoleLoggerMock) Entries(level string) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		if level == "" || e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

func printArgs(std *log.Logger, level, msg string, args []interface{}) {
	if std == nil || std.Writer() == io.Discard {
		return
	}
	std.Printf("%s: %s\n", level, msg)
	for _, arg := range args {
		std.Printf("%+v\n", arg)
	}
}
