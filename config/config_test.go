package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sifql.yaml")
	require.Nil(t, os.WriteFile(path, []byte("node_id: n1\nidle_timeout: 30s\nfail_fast: true\nget_pool_size: 2\n"), 0644))
	t.Setenv("SIFQL_GET_POOL_SIZE", "7")

	opts, err := Load(path)
	require.Nil(t, err)
	require.Equal(t, "n1", opts.NodeID)
	require.Equal(t, 30*time.Second, opts.IdleTimeout)
	require.Equal(t, 3*time.Second, opts.WatchdogInterval)
	require.True(t, opts.FailFast)
	require.Equal(t, 7, opts.GetPoolSize)
	require.Equal(t, "INFO", opts.LogLevel)
	require.True(t, opts.SearchPoolSize > 0)
}

func TestNodeIDIsRequired(t *testing.T) {
	_, err := Load("")
	require.NotNil(t, err)

	t.Setenv("SIFQL_NODE_ID", "n2")
	opts, err := Load("")
	require.Nil(t, err)
	require.Equal(t, "n2", opts.NodeID)
	require.Equal(t, 5*time.Minute, opts.IdleTimeout)
}

func TestMissingConfigFile(t *testing.T) {
	t.Setenv("SIFQL_NODE_ID", "n3")
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NotNil(t, err)
}

func TestClone(t *testing.T) {
	opts := &Options{NodeID: "n1"}
	require.Nil(t, opts.EnsureDefaults())
	c := opts.Clone()
	c.NodeID = "n2"
	require.Equal(t, "n1", opts.NodeID)
}

func TestDefaultsYieldToEnvironment(t *testing.T) {
	opts, err := LoadWithDefaults("", map[string]interface{}{"node_id": "local", "batch_size": 10})
	require.Nil(t, err)
	require.Equal(t, "local", opts.NodeID)
	require.Equal(t, 10, opts.BatchSize)

	t.Setenv("SIFQL_NODE_ID", "n4")
	opts, err = LoadWithDefaults("", map[string]interface{}{"node_id": "local"})
	require.Nil(t, err)
	require.Equal(t, "n4", opts.NodeID)
}
