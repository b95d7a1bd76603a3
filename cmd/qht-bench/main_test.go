package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCmd(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{
		"--duration", "20ms",
		"--threads", "2",
		"--key-range", "100",
		"--init-keys", "50",
		"--update-rate", "10",
		"--seed", "7",
		"--log-format", "json",
	})
	require.NoError(t, cmd.Execute())

	require.Contains(t, out.String(), "Parameters:")
	require.Contains(t, out.String(), "key range:         [0, 128)")
	require.Contains(t, out.String(), "Total:")

	// every log line is a JSON object
	for _, line := range strings.Split(strings.TrimSpace(errOut.String()), "\n") {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec), line)
		require.Contains(t, rec, "msg")
	}
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--update-rate", "150", "--log-format", "text"})
	err := cmd.Execute()
	require.ErrorContains(t, err, "update rate")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	for _, format := range []string{"dev", "text", "json"} {
		buf.Reset()
		logger, err := newLogger(&buf, format, "debug")
		require.NoError(t, err)
		logger.Debug("hello", "k", 1)
		require.Contains(t, buf.String(), "hello")
	}

	logger, err := newLogger(&buf, "text", "warn")
	require.NoError(t, err)
	buf.Reset()
	logger.Info("dropped")
	require.Empty(t, buf.String())

	_, err = newLogger(&buf, "xml", "info")
	require.ErrorContains(t, err, "log format")
	_, err = newLogger(&buf, "text", "loud")
	require.ErrorContains(t, err, "log level")
}
