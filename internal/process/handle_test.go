package process

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastHandle returns a Handle whose readiness-probe timings are shrunk so
// tests don't pay the production 120s timeout.
func fastHandle(t *testing.T, engineEntry string) *Handle {
	t.Helper()
	h := New(Config{InterpreterPath: "/bin/sh", EngineEntry: engineEntry, EngineDir: t.TempDir()})
	h.readinessPollInterval = 10 * time.Millisecond
	h.readinessTimeout = 100 * time.Millisecond
	h.httpProbeTimeout = 20 * time.Millisecond
	return h
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.sh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func TestHandle_IsRunning_InitiallyFalse(t *testing.T) {
	h := New(Config{})
	assert.False(t, h.IsRunning())
}

func TestHandle_Start_MissingEngineEntryFails(t *testing.T) {
	h := fastHandle(t, filepath.Join(t.TempDir(), "does-not-exist.py"))

	var messages []string
	ok := h.Start(StartParams{Host: "127.0.0.1", Port: 9001, ProgressSink: func(_, _ int, msg string) {
		messages = append(messages, msg)
	}})

	assert.False(t, ok)
	assert.False(t, h.IsRunning())
	require.NotEmpty(t, messages)
	assert.Contains(t, messages[len(messages)-1], "not installed")
}

func TestHandle_Start_ProcessDiesDuringStartup(t *testing.T) {
	entry := writeScript(t, "#!/bin/sh\nexit 1\n")
	h := fastHandle(t, entry)

	ok := h.Start(StartParams{Host: "127.0.0.1", Port: 9002, ProgressSink: NoopProgress})

	assert.False(t, ok)
	assert.False(t, h.IsRunning())
}

func TestHandle_Start_AliveButNotRespondingIsOptimisticSuccess(t *testing.T) {
	entry := writeScript(t, "#!/bin/sh\nsleep 5\n")
	h := fastHandle(t, entry)
	defer h.Stop(NoopProgress)

	ok := h.Start(StartParams{Host: "127.0.0.1", Port: 9003, ProgressSink: NoopProgress})

	assert.True(t, ok)
	assert.True(t, h.IsRunning())
	assert.Equal(t, "http://127.0.0.1:9003", h.ServerURL())
}

func TestHandle_Start_AlreadyRunningShortCircuits(t *testing.T) {
	entry := writeScript(t, "#!/bin/sh\nsleep 5\n")
	h := fastHandle(t, entry)
	defer h.Stop(NoopProgress)

	require.True(t, h.Start(StartParams{Host: "127.0.0.1", Port: 9004, ProgressSink: NoopProgress}))

	var messages []string
	ok := h.Start(StartParams{Host: "127.0.0.1", Port: 9004, ProgressSink: func(_, _ int, msg string) {
		messages = append(messages, msg)
	}})

	assert.True(t, ok)
	require.Len(t, messages, 1)
	assert.Equal(t, "already running", messages[0])
}

func TestHandle_Stop_NotRunningIsNoop(t *testing.T) {
	h := New(Config{})
	assert.True(t, h.Stop(NoopProgress))
}

func TestHandle_Stop_KillsRunningProcess(t *testing.T) {
	entry := writeScript(t, "#!/bin/sh\nsleep 5\n")
	h := fastHandle(t, entry)

	require.True(t, h.Start(StartParams{Host: "127.0.0.1", Port: 9005, ProgressSink: NoopProgress}))
	require.True(t, h.IsRunning())

	assert.True(t, h.Stop(NoopProgress))
	assert.False(t, h.IsRunning())
}
