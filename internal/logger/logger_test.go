package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLoggerWritesLeveledEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l, err := NewFileLogger(&Config{
		LogFilePath: path,
		MaxFileSize: 1 << 20,
		Level:       LevelInfo,
	})
	require.NoError(t, err)
	defer l.Close()

	l.Debug("hidden")
	l.Info("visible", String("k", "v"), Int("n", 7))
	l.Error("boom", errors.New("cause"), Bool("flag", true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[INFO] visible k=v n=7")
	assert.Contains(t, out, `[ERROR] boom error="cause" flag=true`)
}

func TestFileLoggerRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rot.log")
	l, err := NewFileLogger(&Config{
		LogFilePath: path,
		MaxFileSize: 128,
		MaxBackups:  2,
		Level:       LevelInfo,
	})
	require.NoError(t, err)
	defer l.Close()

	for i := 0; i < 20; i++ {
		l.Info(strings.Repeat("x", 40))
	}

	_, err = os.Stat(path + ".1")
	assert.NoError(t, err)
}

func TestGlobalLoggerDefaultsToNoop(t *testing.T) {
	SetGlobalLogger(nil)
	assert.NotPanics(t, func() {
		Debug("d")
		Info("i")
		Warn("w")
		Error("e", errors.New("x"))
	})
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(99).String())
}

func TestErrField(t *testing.T) {
	f := Err(errors.New("nope"))
	assert.Equal(t, "error", f.Key)
	assert.Equal(t, "nope", f.Value)
	assert.Nil(t, Err(nil).Value)
}
