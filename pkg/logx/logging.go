package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	// Level is the minimum level that gets written: trace, debug, info,
	// warn or error. Anything else falls back to info.
	Level string

	// Console enables human-readable output on stdout.
	Console bool

	File FileConfig
}

// FileConfig enables an additional JSON log file.
type FileConfig struct {
	Enabled bool
	Path    string
}

const (
	timeFormat      = "2006-01-02T15:04:05.000Z07:00"
	defaultFilePath = "./fbdownloader.log"
)

// Field adds one key/value to a log event. Helpers below cover the types
// this codebase logs; fields apply in order, later duplicates win.
type Field func(e *zerolog.Event)

func String(k, v string) Field  { return func(e *zerolog.Event) { e.Str(k, v) } }
func Int(k string, v int) Field { return func(e *zerolog.Event) { e.Int(k, v) } }
func Duration(k string, v time.Duration) Field {
	return func(e *zerolog.Event) { e.Dur(k, v) }
}
func Time(k string, v time.Time) Field { return func(e *zerolog.Event) { e.Time(k, v) } }

func Err(err error) Field {
	return func(e *zerolog.Event) {
		if err != nil {
			e.Err(err)
		}
	}
}

// Logger writes structured events. A Logger obtained from a Service keeps
// following the service's sinks across Apply calls; the zero value is a safe
// no-op.
type Logger struct {
	svc    *Service
	fixed  []Field
	silent bool
}

// Nop returns a logger that discards everything.
func Nop() Logger { return Logger{silent: true} }

// IsZero reports whether the logger was never initialized (distinct from an
// explicit Nop).
func (l Logger) IsZero() bool { return l.svc == nil && !l.silent && len(l.fixed) == 0 }

// With returns a logger that attaches fields to every event.
func (l Logger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	cp := l
	cp.fixed = append(append([]Field(nil), l.fixed...), fields...)
	return cp
}

func (l Logger) Debug(msg string, fields ...Field) { l.emit(zerolog.DebugLevel, msg, fields) }
func (l Logger) Info(msg string, fields ...Field)  { l.emit(zerolog.InfoLevel, msg, fields) }
func (l Logger) Warn(msg string, fields ...Field)  { l.emit(zerolog.WarnLevel, msg, fields) }
func (l Logger) Error(msg string, fields ...Field) { l.emit(zerolog.ErrorLevel, msg, fields) }

func (l Logger) emit(level zerolog.Level, msg string, fields []Field) {
	if l.svc == nil {
		return
	}
	zl := l.svc.root()
	e := zl.WithLevel(level)
	if e == nil {
		return
	}
	if c := caller(3); c != "" {
		e.Str(zerolog.CallerFieldName, c)
	}
	for _, f := range l.fixed {
		f(e)
	}
	for _, f := range fields {
		f(e)
	}
	e.Msg(msg)
}

// caller is file:line of the log call, without the package path.
func caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}

// Service owns the log sinks. The root logger lives in an atomic so Apply can
// swap level and outputs mid-flight (daemon config reload) without anyone
// taking a lock on the log path.
type Service struct {
	mu   sync.Mutex
	file *os.File

	active atomic.Value // zerolog.Logger
}

// New builds the service, applies cfg and returns the service and its root
// logger.
func New(cfg Config) (*Service, Logger) {
	zerolog.ErrorFieldName = "err"
	zerolog.TimeFieldFormat = timeFormat

	s := &Service{}
	s.active.Store(zerolog.Nop())
	s.Apply(cfg)
	return s, Logger{svc: s}
}

func (s *Service) root() zerolog.Logger {
	zl, _ := s.active.Load().(zerolog.Logger)
	return zl
}

// Apply replaces level and sinks. With both console and file disabled it
// falls back to console: a silent downloader helps nobody.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}

	var sinks []io.Writer
	if cfg.Console {
		sinks = append(sinks, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: timeFormat})
	}
	if cfg.File.Enabled {
		path := strings.TrimSpace(cfg.File.Path)
		if path == "" {
			path = defaultFilePath
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logx: cannot open %q: %v\n", path, err)
		} else {
			s.file = f
			sinks = append(sinks, zerolog.SyncWriter(f))
		}
	}
	if len(sinks) == 0 {
		sinks = append(sinks, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: timeFormat})
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(sinks...)).
		Level(parseLevel(cfg.Level)).
		With().Timestamp().Logger()
	s.active.Store(zl)
}

func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil {
		err := s.file.Close()
		s.file = nil
		return err
	}
	return nil
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
