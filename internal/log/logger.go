// Package log wraps zerolog behind a small leveled interface so commands
// can switch between human-readable console output and JSON lines.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level represents log severity levels
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case DebugLevel:
		return zerolog.DebugLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Logger defines structured logging methods. Args are alternating key-value
// pairs, as in Info("parsed graph", "function", name, "blocks", n).
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	SetLevel(level Level)
	SetJSONOutput(enabled bool)
}

// LoggerConfig holds configuration for the logger
type LoggerConfig struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// ZeroLogger is the zerolog-backed implementation of Logger.
type ZeroLogger struct {
	mu     sync.Mutex
	logger zerolog.Logger
	output io.Writer
	json   bool
}

var (
	defaultLogger *ZeroLogger
	once          sync.Once
)

// New creates a new logger with the given configuration
func New(cfg LoggerConfig) *ZeroLogger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	l := &ZeroLogger{output: out, json: cfg.JSONOutput}
	l.logger = build(out, cfg.JSONOutput).Level(cfg.Level.zerolog())
	return l
}

// Default returns the process-wide logger instance.
func Default() *ZeroLogger {
	once.Do(func() {
		defaultLogger = New(LoggerConfig{Level: InfoLevel})
	})
	return defaultLogger
}

func build(out io.Writer, json bool) zerolog.Logger {
	if json {
		return zerolog.New(out).With().Timestamp().Logger()
	}
	console := zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	return zerolog.New(console).With().Timestamp().Logger()
}

func (l *ZeroLogger) emit(level zerolog.Level, msg string, args []interface{}) {
	l.mu.Lock()
	ev := l.logger.WithLevel(level)
	l.mu.Unlock()

	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", args[i])
		}
		ev = ev.Interface(key, args[i+1])
	}
	if len(args)%2 != 0 {
		ev = ev.Interface("arg", args[len(args)-1])
	}
	ev.Msg(msg)
}

// Debug logs a debug message
func (l *ZeroLogger) Debug(msg string, args ...interface{}) {
	l.emit(zerolog.DebugLevel, msg, args)
}

// Info logs an info message
func (l *ZeroLogger) Info(msg string, args ...interface{}) {
	l.emit(zerolog.InfoLevel, msg, args)
}

// Warn logs a warning message
func (l *ZeroLogger) Warn(msg string, args ...interface{}) {
	l.emit(zerolog.WarnLevel, msg, args)
}

// Error logs an error message
func (l *ZeroLogger) Error(msg string, args ...interface{}) {
	l.emit(zerolog.ErrorLevel, msg, args)
}

// SetLevel sets the minimum log level
func (l *ZeroLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger = l.logger.Level(level.zerolog())
}

// SetJSONOutput enables or disables JSON output
func (l *ZeroLogger) SetJSONOutput(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.json == enabled {
		return
	}
	l.json = enabled
	level := l.logger.GetLevel()
	l.logger = build(l.output, enabled).Level(level)
}

// ProgressSpinner shows activity on stderr during long batch runs.
type ProgressSpinner struct {
	mu      sync.Mutex
	message string
	frames  []string
	current int
	active  bool
	writer  io.Writer
}

// NewProgressSpinner creates a new progress spinner
func NewProgressSpinner(message string) *ProgressSpinner {
	return &ProgressSpinner{
		message: message,
		frames:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		writer:  os.Stderr,
	}
}

// Start begins the spinner animation
func (p *ProgressSpinner) Start() {
	p.mu.Lock()
	p.active = true
	p.mu.Unlock()

	go p.animate()
}

// Stop stops the spinner and clears its line.
func (p *ProgressSpinner) Stop() {
	p.mu.Lock()
	p.active = false
	p.mu.Unlock()

	time.Sleep(50 * time.Millisecond)
	fmt.Fprint(p.writer, "\r\033[K")
}

// Message updates the spinner message
func (p *ProgressSpinner) Message(msg string) {
	p.mu.Lock()
	p.message = msg
	p.mu.Unlock()
}

func (p *ProgressSpinner) animate() {
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		p.mu.Lock()
		if !p.active {
			p.mu.Unlock()
			return
		}
		frame := p.frames[p.current%len(p.frames)]
		p.current++
		fmt.Fprintf(p.writer, "\r%s %s", frame, p.message)
		p.mu.Unlock()
	}
}
