package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoggerFormatsLevelAndMessage(t *testing.T) {
	SetLevel(Debug)
	defer SetLevel(Debug)

	var buf bytes.Buffer
	l := New(&buf)
	l.Warnf("dump memory is not enough: channel=%d", 1)

	line := buf.String()
	require.True(t, strings.Contains(line, "[W]"), "line missing level tag: %q", line)
	require.True(t, strings.Contains(line, "dump memory is not enough: channel=1"), "line missing message: %q", line)
}

func TestLoggerFiltersBelowCurrentLevel(t *testing.T) {
	SetLevel(Warn)
	defer SetLevel(Debug)

	var buf bytes.Buffer
	l := New(&buf)
	l.Debugf("should not appear")
	l.Infof("should not appear either")
	l.Errorf("should appear")

	require.Equal(t, 1, strings.Count(buf.String(), "\n"))
	require.True(t, strings.Contains(buf.String(), "should appear"))
}

func TestOpenCreatesFileAndAppends(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, "session_1.log")
	require.NoError(t, err)
	l.Infof("hello")
	require.NoError(t, l.Close())

	l2, err := Open(dir, "session_1.log")
	require.NoError(t, err)
	l2.Infof("world")
	require.NoError(t, l2.Close())
}
