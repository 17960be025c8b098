package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfg "github.com/tendermint/dasync/config"
	"github.com/tendermint/dasync/internal/store"
	"github.com/tendermint/dasync/internal/test/factory"
	"github.com/tendermint/dasync/libs/log"
	tmos "github.com/tendermint/dasync/libs/os"
	"github.com/tendermint/dasync/types"
)

// clearConfig clears env vars, the given root dir, and resets viper.
func clearConfig(t *testing.T, dir string) *cfg.Config {
	t.Helper()
	require.NoError(t, os.Unsetenv("DASYNCHOME"))
	require.NoError(t, os.Unsetenv("DASYNC_HOME"))
	require.NoError(t, os.RemoveAll(dir))

	viper.Reset()
	conf := cfg.DefaultConfig()
	conf.SetRoot(dir)

	return conf
}

// prepare new rootCmd
func testRootCmd(conf *cfg.Config) *cobra.Command {
	logger := log.NewNopLogger()
	cmd := RootCommand(conf, logger)
	cmd.PersistentFlags().String("log", "", "Log")
	cmd.AddCommand(
		MakeInitCommand(conf, logger),
		MakeInspectCommand(conf, logger),
		MakePruneCommand(conf, logger),
		VersionCmd,
	)
	// Executing a command without a Run function only prints help; give the
	// root one so PersistentPreRunE is exercised.
	cmd.RunE = func(*cobra.Command, []string) error { return nil }
	return cmd
}

// runWithArgs executes cmd with the given args and env, returning its
// output.
func runWithArgs(ctx context.Context, cmd *cobra.Command, args []string, env map[string]string) (string, error) {
	oenv := map[string]string{}
	defer func() {
		for k, v := range oenv {
			os.Setenv(k, v)
		}
	}()
	for k, v := range env {
		oenv[k] = os.Getenv(k)
		if err := os.Setenv(k, v); err != nil {
			return "", err
		}
	}

	if args == nil {
		// cobra falls back to os.Args for nil
		args = []string{}
	}
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func testSetup(ctx context.Context, t *testing.T, conf *cfg.Config, args []string, env map[string]string) (string, error) {
	t.Helper()
	cmd := testRootCmd(conf)
	viper.Set("home", conf.RootDir)
	return runWithArgs(ctx, cmd, args, env)
}

func TestRootHome(t *testing.T) {
	defaultRoot := t.TempDir()
	newRoot := filepath.Join(defaultRoot, "something-else")
	cases := []struct {
		args []string
		env  map[string]string
		root string
	}{
		{nil, nil, defaultRoot},
		{[]string{"--home", newRoot}, nil, newRoot},
		{nil, map[string]string{"DASYNCHOME": newRoot}, newRoot},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i, tc := range cases {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			conf := clearConfig(t, tc.root)

			_, err := testSetup(ctx, t, conf, tc.args, tc.env)
			require.NoError(t, err)

			require.Equal(t, tc.root, conf.RootDir)
			assert.True(t, tmos.FileExists(filepath.Join(tc.root, "data")))
		})
	}
}

func TestRootFlagsEnv(t *testing.T) {
	defaults := cfg.DefaultConfig()
	defaultDir := t.TempDir()

	cases := []struct {
		args     []string
		env      map[string]string
		logLevel string
	}{
		// wrong flag
		{[]string{"--log", "debug"}, nil, defaults.LogLevel},
		// right flag
		{[]string{"--log-level", "debug"}, nil, "debug"},
		// env
		{nil, map[string]string{"DASYNC_LOG_LEVEL": "error"}, "error"},
		// flag over env
		{[]string{"--log-level", "debug"}, map[string]string{"DASYNC_LOG_LEVEL": "error"}, "debug"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i, tc := range cases {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			conf := clearConfig(t, defaultDir)

			_, err := testSetup(ctx, t, conf, tc.args, tc.env)
			require.NoError(t, err)

			assert.Equal(t, tc.logLevel, conf.LogLevel)
		})
	}
}

func TestRootConfig(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cases := []struct {
		args      []string
		cacheSize int
	}{
		{nil, 9}, // should load config
		{[]string{"--log-level=info"}, 9},
	}

	for i, tc := range cases {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			root := t.TempDir()
			conf := clearConfig(t, root)

			written := cfg.DefaultConfig()
			written.DataAvailability.GossipCacheSize = 9
			written.LogLevel = "debug"
			require.NoError(t, cfg.EnsureRoot(root))
			require.NoError(t, cfg.WriteConfigFile(root, written))

			_, err := testSetup(ctx, t, conf, tc.args, nil)
			require.NoError(t, err)

			assert.Equal(t, tc.cacheSize, conf.DataAvailability.GossipCacheSize)
			if len(tc.args) == 0 {
				assert.Equal(t, "debug", conf.LogLevel)
			} else {
				assert.Equal(t, "info", conf.LogLevel)
			}
		})
	}
}

func TestRootRejectsInvalidConfig(t *testing.T) {
	root := t.TempDir()
	conf := clearConfig(t, root)

	written := cfg.DefaultConfig()
	written.DataAvailability.GossipCacheSize = 0
	require.NoError(t, cfg.EnsureRoot(root))
	require.NoError(t, cfg.WriteConfigFile(root, written))

	_, err := testSetup(context.Background(), t, conf, nil, nil)
	assert.Error(t, err)
}

func TestInitCommand(t *testing.T) {
	root := t.TempDir()
	conf := clearConfig(t, root)

	_, err := testSetup(context.Background(), t, conf, []string{"init"}, nil)
	require.NoError(t, err)
	assert.True(t, tmos.FileExists(cfg.ConfigFile(root)))

	// A second init keeps the existing file.
	_, err = testSetup(context.Background(), t, clearConfigKeep(t, root), []string{"init"}, nil)
	require.NoError(t, err)
}

// clearConfigKeep resets viper without removing dir.
func clearConfigKeep(t *testing.T, dir string) *cfg.Config {
	t.Helper()
	viper.Reset()
	conf := cfg.DefaultConfig()
	conf.SetRoot(dir)
	return conf
}

func openTestStore(t *testing.T, conf *cfg.Config) *store.BlobStore {
	t.Helper()
	require.NoError(t, cfg.EnsureRoot(conf.RootDir))
	bs, err := openBlobStore(conf)
	require.NoError(t, err)
	return bs
}

func TestInspectBlobs(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	conf := clearConfig(t, root)

	hot := factory.MakeBlock(factory.DenebForkSlot+1, 2)
	archived := factory.MakeBlock(factory.DenebForkSlot+2, 1)
	bs := openTestStore(t, conf)
	require.NoError(t, bs.SaveBlobSidecars(hot.Root(), factory.MakeBlobSidecars(hot)))
	require.NoError(t, bs.SaveBlobSidecars(archived.Root(), factory.MakeBlobSidecars(archived)))
	_, err := bs.ArchiveBlobSidecars(archived.Root())
	require.NoError(t, err)
	require.NoError(t, bs.Close())

	out, err := testSetup(ctx, t, conf, []string{"inspect", "blobs", "--root", hot.Root().String()}, nil)
	require.NoError(t, err)
	var got []blobSummary
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)
	assert.Equal(t, hot.Root().String(), got[0].BlockRoot)
	assert.EqualValues(t, 1, got[1].Index)
	assert.Equal(t, types.BytesPerBlob, got[0].BlobSize)

	conf = clearConfigKeep(t, root)
	out, err = testSetup(ctx, t, conf, []string{"inspect", "blobs", "--slot", fmt.Sprint(uint64(archived.Slot()))}, nil)
	require.NoError(t, err)
	got = nil
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, archived.Root().String(), got[0].BlockRoot)

	conf = clearConfigKeep(t, root)
	_, err = testSetup(ctx, t, conf, []string{"inspect", "blobs"}, nil)
	assert.Error(t, err)
}

func TestPruneCommand(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	conf := clearConfig(t, root)

	old := factory.MakeBlock(5*types.SlotsPerEpoch, 1)
	recent := factory.MakeBlock(100*types.SlotsPerEpoch, 1)
	bs := openTestStore(t, conf)
	for _, b := range []*types.SignedBeaconBlock{old, recent} {
		sidecar := &types.BlobSidecar{BlockRoot: b.Root(), Slot: b.Slot()}
		require.NoError(t, bs.SaveBlobSidecars(b.Root(), []*types.BlobSidecar{sidecar}))
		_, err := bs.ArchiveBlobSidecars(b.Root())
		require.NoError(t, err)
	}
	require.NoError(t, bs.Close())

	current := uint64(types.DefaultMinEpochsForBlobSidecarsRequests) + 50
	_, err := testSetup(ctx, t, conf, []string{"prune", "--current-epoch", fmt.Sprint(current)}, nil)
	require.NoError(t, err)

	bs, err = openBlobStore(conf)
	require.NoError(t, err)
	defer bs.Close()

	base, ok, err := bs.ArchiveBase()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, recent.Slot(), base)
}

func TestVersionCommand(t *testing.T) {
	conf := clearConfig(t, t.TempDir())
	out, err := testSetup(context.Background(), t, conf, []string{"version", "-v"}, nil)
	require.NoError(t, err)

	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.NotEmpty(t, info["dasync"])
}
