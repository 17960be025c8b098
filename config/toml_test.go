package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dbm "github.com/tendermint/tm-db"
)

func ensureFiles(t *testing.T, rootDir string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := rootify(f, rootDir)
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}
}

func TestEnsureRoot(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "home")

	require.NoError(t, EnsureRoot(tmpDir))
	require.NoError(t, WriteDefaultConfigFileIfNone(tmpDir))

	data, err := os.ReadFile(ConfigFile(tmpDir))
	require.NoError(t, err)
	checkConfig(t, string(data))

	ensureFiles(t, tmpDir, "config", "data")
}

func TestWriteDefaultConfigFileIfNoneKeepsExisting(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, EnsureRoot(tmpDir))

	cfg := TestConfig()
	cfg.Moniker = "custom"
	require.NoError(t, WriteConfigFile(tmpDir, cfg))
	require.NoError(t, WriteDefaultConfigFileIfNone(tmpDir))

	var got map[string]interface{}
	_, err := toml.DecodeFile(ConfigFile(tmpDir), &got)
	require.NoError(t, err)
	assert.Equal(t, "custom", got["moniker"])
}

// The rendered template parses as TOML and carries every configured value.
func TestConfigTemplateRoundTrip(t *testing.T) {
	cfg := TestConfig()
	cfg.DataAvailability.MinEpochsForBlobSidecarsRequests = 18
	cfg.DataAvailability.GossipCacheSize = 7

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, cfg.WriteToTemplate(path))

	var got struct {
		Moniker          string `toml:"moniker"`
		DBBackend        string `toml:"db-backend"`
		LogFormat        string `toml:"log-format"`
		DataAvailability struct {
			MinEpochs     uint64 `toml:"min-epochs-for-blob-sidecars-requests"`
			GossipCache   int    `toml:"gossip-cache-size"`
			GossipWorkers int    `toml:"gossip-workers"`
			VerifyKZG     bool   `toml:"verify-kzg"`
		} `toml:"data-availability"`
		Fork struct {
			Deneb uint64 `toml:"deneb-fork-epoch"`
		} `toml:"fork"`
		Instrumentation struct {
			Namespace string `toml:"namespace"`
		} `toml:"instrumentation"`
	}
	_, err := toml.DecodeFile(path, &got)
	require.NoError(t, err)

	assert.Equal(t, cfg.Moniker, got.Moniker)
	assert.Equal(t, "memdb", got.DBBackend)
	assert.Equal(t, LogFormatPlain, got.LogFormat)
	assert.EqualValues(t, 18, got.DataAvailability.MinEpochs)
	assert.Equal(t, 7, got.DataAvailability.GossipCache)
	assert.Equal(t, 1, got.DataAvailability.GossipWorkers)
	assert.False(t, got.DataAvailability.VerifyKZG)
	assert.EqualValues(t, 10, got.Fork.Deneb)
	assert.Equal(t, "dasync", got.Instrumentation.Namespace)
}

func TestDefaultDBProvider(t *testing.T) {
	cfg := TestConfig()
	cfg.SetRoot(t.TempDir())

	db, err := DefaultDBProvider(&DBContext{ID: "blobstore", Config: cfg})
	require.NoError(t, err)
	_, ok := db.(*dbm.MemDB)
	assert.True(t, ok)
	require.NoError(t, db.Close())
}

func checkConfig(t *testing.T, configFile string) {
	t.Helper()
	// list of words we expect in the config
	var elems = []string{
		"moniker",
		"db-backend",
		"log-level",
		"data-availability",
		"min-epochs-for-blob-sidecars-requests = 4096",
		"gossip-cache-size = 5",
		"verify-kzg = true",
		"deneb-fork-epoch = 269568",
		"prometheus",
	}
	for _, e := range elems {
		assert.Contains(t, configFile, e)
	}
}
