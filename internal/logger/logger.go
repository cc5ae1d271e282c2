package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

const (
	FieldComponent = "component"
	FieldNetwork   = "network"
	FieldContract  = "contract"
	FieldAddress   = "address"
	FieldTxHash    = "txHash"
	FieldSlot      = "slot"
	FieldURL       = "url"
)

var (
	mu      sync.Mutex
	logFile *os.File
	// sink is shared by every logger from New, so InitLogger and Close
	// retarget loggers that already exist.
	sink = &switchWriter{w: consoleWriter(os.Stderr)}
)

type switchWriter struct {
	mu sync.RWMutex
	w  io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.w.Write(p)
}

func (s *switchWriter) set(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

// InitLogger sets the global level and, when dir is not empty, tees every
// record into a timestamped file under dir.
func InitLogger(level, dir string) error {
	if err := SetLevel(level); err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	var (
		w io.Writer = consoleWriter(os.Stderr)
		f *os.File
	)
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create logs directory: %w", err)
		}
		logPath := filepath.Join(dir, fmt.Sprintf("fundlab_%s.log", time.Now().Format("2006-01-02_15-04-05")))
		var err error
		f, err = os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		w = zerolog.MultiLevelWriter(w, f)
	}
	old := logFile
	logFile = f
	sink.set(w)
	if old != nil {
		old.Close()
	}

	log.Logger = newLogger(sink, "global")
	return nil
}

// SetLevel parses level; an empty string falls back to LOG_LEVEL and then info.
func SetLevel(level string) error {
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if level == "" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		return nil
	}
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(l)
	return nil
}

// Close points every logger back at the console and closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	sink.set(consoleWriter(os.Stderr))
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// New returns a logger tagged with component that writes to the current sink.
func New(component string) zerolog.Logger {
	return newLogger(sink, component)
}

// NewWithWriter is New for an explicit destination; tests use it to capture output.
func NewWithWriter(w io.Writer, component string) zerolog.Logger {
	return newLogger(w, component)
}

func newLogger(w io.Writer, component string) zerolog.Logger {
	return zerolog.New(w).
		With().
		Str(FieldComponent, component).
		Timestamp().
		Logger()
}

func consoleWriter(out *os.File) zerolog.ConsoleWriter {
	noColor := os.Getenv("NO_COLOR") != "" || !term.IsTerminal(int(out.Fd()))
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.DateTime,
		PartsOrder: []string{
			zerolog.TimestampFieldName,
			zerolog.LevelFieldName,
			FieldComponent,
			zerolog.MessageFieldName,
		},
		FieldsExclude: []string{FieldComponent},
		NoColor:       noColor,
	}
}

func Info(format string, v ...any) {
	log.Info().Msgf(format, v...)
}

func Debug(format string, v ...any) {
	log.Debug().Msgf(format, v...)
}

func Warn(format string, v ...any) {
	log.Warn().Msgf(format, v...)
}

func Error(format string, v ...any) {
	log.Error().Msgf(format, v...)
}
