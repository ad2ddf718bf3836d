package logger

import (
	"os"
	"path/filepath"
	"testing"

	"guessescrow/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "escrow.log")
	l, err := Init(&config.LogConfig{Level: "info", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	l.Info("庄家资金池已开设")
	l.Debug("不应该输出")
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "庄家资金池已开设")
	assert.NotContains(t, string(data), "不应该输出")
	assert.Same(t, l, Log)
}

func TestInitRejectsBadLevel(t *testing.T) {
	_, err := Init(&config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}
