package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureWritesToRotatingFile(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.Dir = dir
	opts.FileName = "test.log"
	opts.Format = "json"

	require.NoError(t, Configure(opts))
	t.Cleanup(func() { _ = Configure(Options{Level: "info"}) })

	Info("visit %d created", 42)
	WithFields(Fields{"ticket_id": 7}).Warn("ticket decided")

	data, err := os.ReadFile(filepath.Join(dir, "test.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "visit 42 created")
	assert.Contains(t, string(data), `"ticket_id":7`)
}

func TestConfigureRejectsUnknownLevel(t *testing.T) {
	err := Configure(Options{Level: "loud"})
	assert.Error(t, err)
}

func TestConfigureSetsLevel(t *testing.T) {
	require.NoError(t, Configure(Options{Level: "debug"}))
	t.Cleanup(func() { _ = Configure(Options{Level: "info"}) })

	assert.Equal(t, logrus.DebugLevel, Logger().GetLevel())
}
