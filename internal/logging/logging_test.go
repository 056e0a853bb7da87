package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONFormat(t *testing.T) {
	t.Setenv(DebugEnv, "")
	var buf bytes.Buffer

	l := New(Options{Level: "warn", Format: "json", Output: &buf})
	l.Info("hidden")
	l.WithField("provider", "flux").Warn("fallback")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "fallback", entry["msg"])
	assert.Equal(t, "flux", entry["provider"])
}

func TestNew_DebugEnvOverrides(t *testing.T) {
	t.Setenv(DebugEnv, "true")

	l := New(Options{Level: "error", Output: &bytes.Buffer{}})
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
}

func TestNew_BadLevelFallsBackToInfo(t *testing.T) {
	t.Setenv(DebugEnv, "")

	l := New(Options{Level: "loud", Output: &bytes.Buffer{}})
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
}
