package logging

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestInitForCLI_WritesToOutput(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelInfo, &buf)

	Info("Test", "hello %s", "world")

	output := buf.String()
	assert.Contains(t, output, "hello world")
	assert.Contains(t, output, "subsystem=Test")
}

func TestInitForCLI_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelWarn, &buf)

	Info("Test", "too quiet to appear")
	Warn("Test", "loud enough")

	output := buf.String()
	assert.NotContains(t, output, "too quiet")
	assert.Contains(t, output, "loud enough")
}

func TestInitForCLI_ErrorIncludesError(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelInfo, &buf)

	Error("Test", errors.New("disk on fire"), "something failed")

	output := buf.String()
	assert.Contains(t, output, "something failed")
	assert.Contains(t, output, "disk on fire")
}

func TestInitForHost_DeliversEntries(t *testing.T) {
	ch := InitForHost(LevelDebug)
	require.NotNil(t, ch)
	defer func() {
		// Reset to CLI mode so later tests do not publish into the channel
		InitForCLI(LevelInfo, &bytes.Buffer{})
	}()

	Warn("Supervisor", "tool %s misbehaving", "terminal")

	select {
	case entry := <-ch:
		assert.Equal(t, LevelWarn, entry.Level)
		assert.Equal(t, "Supervisor", entry.Subsystem)
		assert.Equal(t, "tool terminal misbehaving", entry.Message)
		assert.False(t, entry.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("Expected a log entry on the host channel")
	}
}
