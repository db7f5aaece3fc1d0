// pkg/logging/logging.go - leveled logging for jcimporter.
//
// Console output with optional color plus a JSON-lines log file under a
// per-session directory, so each importer run leaves an auditable record.
// Old session directories are pruned on startup.

package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/macadmins/jcimporter/pkg/config"
)

// LogLevel represents the severity of the log message.
type LogLevel int

const (
	// Define log levels.
	LevelError LogLevel = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// String returns the string representation of the LogLevel.
func (ll LogLevel) String() string {
	switch ll {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a configuration string to a LogLevel, defaulting to INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(s) {
	case "ERROR":
		return LevelError
	case "WARN", "WARNING":
		return LevelWarn
	case "DEBUG":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// LogEntry represents a structured log entry written to the session log file.
type LogEntry struct {
	Time       int64                  `json:"time"`
	Timestamp  string                 `json:"timestamp"`
	Level      string                 `json:"level"`
	Message    string                 `json:"message"`
	PID        int64                  `json:"pid"`
	Hostname   string                 `json:"hostname"`
	SessionID  string                 `json:"session_id"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// sessionRetention is how many session directories are kept on disk.
const sessionRetention = 10

// Logger encapsulates console and session-file logging.
type Logger struct {
	mu        sync.Mutex
	out       io.Writer
	jsonFile  *os.File
	logLevel  LogLevel
	color     bool
	hostname  string
	sessionID string
	logDir    string
}

// singleton instance and sync.Once for thread-safe initialization
var (
	instance *Logger
	once     sync.Once
)

// Init initializes the singleton logger from configuration. Safe to call
// once per process; later calls are no-ops.
func Init(cfg *config.Configuration) error {
	var initErr error
	once.Do(func() {
		l := New(cfg.Verbose || cfg.Debug)
		l.logLevel = ParseLevel(cfg.LogLevel)
		if cfg.Debug {
			l.logLevel = LevelDebug
		}
		if cfg.LogPath != "" {
			if err := l.openSessionDir(cfg.LogPath); err != nil {
				initErr = err
				return
			}
			cleanupOldSessions(cfg.LogPath)
		}
		instance = l
	})
	return initErr
}

// New returns a console-only logger. Used directly by CLI entry points and
// as the base for the singleton.
func New(verbose bool) *Logger {
	hostname, _ := os.Hostname()
	level := LevelInfo
	if verbose {
		level = LevelDebug
	}
	return &Logger{
		out:       os.Stdout,
		logLevel:  level,
		color:     isTerminal(os.Stdout),
		hostname:  hostname,
		sessionID: uuid.NewString(),
	}
}

// CloseLogger flushes and closes the singleton's session log file.
func CloseLogger() {
	if instance == nil {
		return
	}
	instance.mu.Lock()
	defer instance.mu.Unlock()
	if instance.jsonFile != nil {
		_ = instance.jsonFile.Sync()
		_ = instance.jsonFile.Close()
		instance.jsonFile = nil
	}
}

// GetSessionID returns the current session identifier.
func GetSessionID() string {
	if instance == nil {
		return ""
	}
	return instance.sessionID
}

// GetCurrentLogDir returns the session log directory, or "" when file
// logging is disabled.
func GetCurrentLogDir() string {
	if instance == nil {
		return ""
	}
	return instance.logDir
}

func (l *Logger) openSessionDir(baseDir string) error {
	dir := filepath.Join(baseDir, time.Now().Format("2006-01-02-150405"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating log directory %s: %w", dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "events.json"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening session log file: %w", err)
	}
	l.logDir = dir
	l.jsonFile = f
	return nil
}

// cleanupOldSessions removes session directories beyond the retention count.
func cleanupOldSessions(baseDir string) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	if len(dirs) <= sessionRetention {
		return
	}
	// Directory names are timestamps, so lexical order is chronological.
	sort.Strings(dirs)
	for _, d := range dirs[:len(dirs)-sessionRetention] {
		_ = os.RemoveAll(filepath.Join(baseDir, d))
	}
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// logMessage is the core sink for the package-level key-value helpers.
func (l *Logger) logMessage(level LogLevel, message string, keyValues ...interface{}) {
	if level > l.logLevel {
		return
	}
	props := propertiesFrom(keyValues)
	l.mu.Lock()
	defer l.mu.Unlock()

	line := message
	if len(props) > 0 {
		pairs := make([]string, 0, len(props))
		for k, v := range props {
			pairs = append(pairs, fmt.Sprintf("%s=%v", k, v))
		}
		sort.Strings(pairs)
		line = fmt.Sprintf("%s (%s)", message, strings.Join(pairs, " "))
	}
	fmt.Fprintf(l.out, "%s %s %s\n", time.Now().Format("15:04:05"), l.levelTag(level), line)

	if l.jsonFile != nil {
		now := time.Now()
		entry := LogEntry{
			Time:       now.Unix(),
			Timestamp:  now.Format(time.RFC3339),
			Level:      level.String(),
			Message:    message,
			PID:        int64(os.Getpid()),
			Hostname:   l.hostname,
			SessionID:  l.sessionID,
			Properties: props,
		}
		if data, err := json.Marshal(entry); err == nil {
			fmt.Fprintln(l.jsonFile, string(data))
		}
	}
}

func propertiesFrom(keyValues []interface{}) map[string]interface{} {
	if len(keyValues) == 0 {
		return nil
	}
	props := make(map[string]interface{}, len(keyValues)/2)
	for i := 0; i+1 < len(keyValues); i += 2 {
		key, ok := keyValues[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keyValues[i])
		}
		props[key] = keyValues[i+1]
	}
	return props
}

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGreen  = "\033[32m"
	colorCyan   = "\033[36m"
)

func (l *Logger) levelTag(level LogLevel) string {
	tag := fmt.Sprintf("[%s]", level)
	if !l.color {
		return tag
	}
	switch level {
	case LevelError:
		return colorRed + tag + colorReset
	case LevelWarn:
		return colorYellow + tag + colorReset
	case LevelDebug:
		return colorCyan + tag + colorReset
	default:
		return tag
	}
}

// Package-level convenience functions backed by the singleton. Messages are
// dropped silently if Init has not run.

// Info logs an informational message with optional key-value properties.
func Info(message string, keyValues ...interface{}) {
	if instance != nil {
		instance.logMessage(LevelInfo, message, keyValues...)
	}
}

// Debug logs a debug message with optional key-value properties.
func Debug(message string, keyValues ...interface{}) {
	if instance != nil {
		instance.logMessage(LevelDebug, message, keyValues...)
	}
}

// Warn logs a warning message with optional key-value properties.
func Warn(message string, keyValues ...interface{}) {
	if instance != nil {
		instance.logMessage(LevelWarn, message, keyValues...)
	}
}

// Error logs an error message with optional key-value properties.
func Error(message string, keyValues ...interface{}) {
	if instance != nil {
		instance.logMessage(LevelError, message, keyValues...)
	}
}

// LogStructured logs a message with an explicit properties map.
func LogStructured(level LogLevel, message string, properties map[string]interface{}) {
	if instance == nil {
		return
	}
	kv := make([]interface{}, 0, len(properties)*2)
	for k, v := range properties {
		kv = append(kv, k, v)
	}
	instance.logMessage(level, message, kv...)
}

// Printf-style Logger methods used by CLI code.

func (l *Logger) colorPrintf(color, format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg := fmt.Sprintf(format, v...)
	if l.color && color != "" {
		fmt.Fprintf(l.out, "%s%s%s\n", color, msg, colorReset)
		return
	}
	fmt.Fprintln(l.out, msg)
}

// Printf writes an unleveled line to the console.
func (l *Logger) Printf(format string, v ...interface{}) {
	l.colorPrintf("", format, v...)
}

// Info logs an informational message.
func (l *Logger) Info(format string, v ...interface{}) {
	l.colorPrintf("", format, v...)
}

// Success logs a success message in green.
func (l *Logger) Success(format string, v ...interface{}) {
	l.colorPrintf(colorGreen, format, v...)
}

// Error logs an error message in red.
func (l *Logger) Error(format string, v ...interface{}) {
	l.colorPrintf(colorRed, format, v...)
}

// Warning logs a warning message in yellow.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.colorPrintf(colorYellow, format, v...)
}

// Debug logs a debug message when verbose output is enabled.
func (l *Logger) Debug(format string, v ...interface{}) {
	if l.logLevel >= LevelDebug {
		l.colorPrintf(colorCyan, format, v...)
	}
}

// Fatal logs an error message and exits with a non-zero status.
func (l *Logger) Fatal(format string, v ...interface{}) {
	l.colorPrintf(colorRed, format, v...)
	os.Exit(1)
}

// SetOutput redirects console output, used by tests.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = w
	l.color = false
}
