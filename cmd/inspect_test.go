package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/encodeous/rani/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeNodeConfig(t *testing.T, extra string) {
	t.Helper()
	p := filepath.Join(t.TempDir(), "node.yaml")
	cfg := `id: solo
address: 100
app_address: 101
app:
  embedded: true
` + extra
	require.NoError(t, os.WriteFile(p, []byte(cfg), 0600))
	old := state.NodeConfigPath
	state.NodeConfigPath = p
	t.Cleanup(func() { state.NodeConfigPath = old })
}

func TestInspectBindFromConfig(t *testing.T) {
	writeNodeConfig(t, "metrics_bind: 127.0.0.1:9100\n")
	bind, err := inspectBind(nil)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9100", bind)

	bind, err = inspectBind([]string{"127.0.0.1:9200"})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9200", bind)
}

func TestInspectBindMissing(t *testing.T) {
	writeNodeConfig(t, "")
	_, err := inspectBind(nil)
	assert.ErrorContains(t, err, "metrics_bind")
}
