package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSetLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	require.NoError(t, SetLevel("debug"))
	require.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	require.Error(t, SetLevel("loud"))

	t.Setenv("LOG_LEVEL", "warn")
	require.NoError(t, SetLevel(""))
	require.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "deploy")
	l.Info().Str(FieldContract, "FundMe").Msg("deployed")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "deploy", rec[FieldComponent])
	require.Equal(t, "FundMe", rec[FieldContract])
	require.Equal(t, "deployed", rec["message"])
}

func TestInitLoggerWritesFile(t *testing.T) {
	defer Close()
	dir := t.TempDir()

	require.NoError(t, InitLogger("info", dir))
	Info("hello %s", "file")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestCloseRetargetsExistingLoggers(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, InitLogger("info", dir))
	l := New("deploy")
	l.Info().Msg("before close")
	Close()

	var writeErrs []error
	prev := zerolog.ErrorHandler
	zerolog.ErrorHandler = func(err error) { writeErrs = append(writeErrs, err) }
	defer func() { zerolog.ErrorHandler = prev }()

	l.Info().Msg("after close")
	require.Empty(t, writeErrs)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	require.Contains(t, string(data), "before close")
	require.NotContains(t, string(data), "after close")
}
