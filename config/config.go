package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tendermint/dasync/types"
)

const (
	// LogFormatPlain is a format for colored text
	LogFormatPlain = "plain"
	// LogFormatJSON is a format for json output
	LogFormatJSON = "json"

	// DefaultLogLevel is the log level used when none is configured.
	DefaultLogLevel = "info"
)

// NOTE: Most of the structs & relevant comments + the
// default configuration options were used to manually
// generate the config.toml. Please reflect any changes
// made here in the defaultConfigTemplate constant in
// config/toml.go
var (
	DefaultDasyncDir = ".dasync"
	defaultConfigDir = "config"
	defaultDataDir   = "data"

	defaultConfigFileName = "config.toml"
	defaultConfigFilePath = filepath.Join(defaultConfigDir, defaultConfigFileName)
)

// Config defines the top level configuration of a dasync node.
type Config struct {
	// Top level options use an anonymous struct
	BaseConfig `mapstructure:",squash"`

	DataAvailability *DataAvailabilityConfig `mapstructure:"data-availability"`
	Fork             *ForkConfig             `mapstructure:"fork"`
	Instrumentation  *InstrumentationConfig  `mapstructure:"instrumentation"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseConfig:       DefaultBaseConfig(),
		DataAvailability: DefaultDataAvailabilityConfig(),
		Fork:             DefaultForkConfig(),
		Instrumentation:  DefaultInstrumentationConfig(),
	}
}

// TestConfig returns a configuration that can be used for testing
func TestConfig() *Config {
	return &Config{
		BaseConfig:       TestBaseConfig(),
		DataAvailability: TestDataAvailabilityConfig(),
		Fork:             TestForkConfig(),
		Instrumentation:  TestInstrumentationConfig(),
	}
}

// SetRoot sets the RootDir for all Config structs
func (cfg *Config) SetRoot(root string) *Config {
	cfg.BaseConfig.RootDir = root
	return cfg
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *Config) ValidateBasic() error {
	if err := cfg.BaseConfig.ValidateBasic(); err != nil {
		return err
	}
	if err := cfg.DataAvailability.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [data-availability] section: %w", err)
	}
	if err := cfg.Fork.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [fork] section: %w", err)
	}
	if err := cfg.Instrumentation.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [instrumentation] section: %w", err)
	}
	return nil
}

//-----------------------------------------------------------------------------
// BaseConfig

// BaseConfig defines the base configuration of a dasync node.
type BaseConfig struct {
	// The root directory for all data.
	// This should be set in viper so it can unmarshal into this struct
	RootDir string `mapstructure:"home"`

	// A custom human readable name for this node
	Moniker string `mapstructure:"moniker"`

	// Database backend: goleveldb | cleveldb | boltdb | rocksdb | badgerdb | memdb
	DBBackend string `mapstructure:"db-backend"`

	// Database directory
	DBPath string `mapstructure:"db-dir"`

	// Output level for logging
	LogLevel string `mapstructure:"log-level"`

	// Output format: 'plain' (colored text) or 'json'
	LogFormat string `mapstructure:"log-format"`
}

// DefaultBaseConfig returns a default base configuration.
func DefaultBaseConfig() BaseConfig {
	return BaseConfig{
		Moniker:   defaultMoniker,
		LogLevel:  DefaultLogLevel,
		LogFormat: LogFormatPlain,
		DBBackend: "goleveldb",
		DBPath:    defaultDataDir,
	}
}

// TestBaseConfig returns a base configuration for testing.
func TestBaseConfig() BaseConfig {
	cfg := DefaultBaseConfig()
	cfg.DBBackend = "memdb"
	return cfg
}

// DBDir returns the full path to the database directory
func (cfg BaseConfig) DBDir() string {
	return rootify(cfg.DBPath, cfg.RootDir)
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg BaseConfig) ValidateBasic() error {
	switch cfg.LogFormat {
	case LogFormatPlain, LogFormatJSON:
	default:
		return errors.New("unknown log-format (must be 'plain' or 'json')")
	}
	return nil
}

//-----------------------------------------------------------------------------
// DataAvailabilityConfig

// DataAvailabilityConfig defines how blocks and blob sidecars are reconciled.
type DataAvailabilityConfig struct {
	// Number of epochs for which peers must serve blob sidecars. Older blobs
	// are neither requested nor kept.
	MinEpochsForBlobSidecarsRequests types.Epoch `mapstructure:"min-epochs-for-blob-sidecars-requests"`

	// Maximum number of blocks whose gossip assembly may be pending at once.
	GossipCacheSize int `mapstructure:"gossip-cache-size"`

	// Number of goroutines handling gossip messages.
	GossipWorkers int `mapstructure:"gossip-workers"`

	// Check the KZG proof of every gossiped blob sidecar.
	VerifyKZG bool `mapstructure:"verify-kzg"`
}

// DefaultDataAvailabilityConfig returns the mainnet settings.
func DefaultDataAvailabilityConfig() *DataAvailabilityConfig {
	return &DataAvailabilityConfig{
		MinEpochsForBlobSidecarsRequests: types.DefaultMinEpochsForBlobSidecarsRequests,
		GossipCacheSize:                  5,
		GossipWorkers:                    4,
		VerifyKZG:                        true,
	}
}

// TestDataAvailabilityConfig returns settings for testing. Proof
// verification is off so tests need no trusted setup.
func TestDataAvailabilityConfig() *DataAvailabilityConfig {
	cfg := DefaultDataAvailabilityConfig()
	cfg.GossipWorkers = 1
	cfg.VerifyKZG = false
	return cfg
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *DataAvailabilityConfig) ValidateBasic() error {
	if cfg.MinEpochsForBlobSidecarsRequests == 0 {
		return errors.New("min-epochs-for-blob-sidecars-requests must be positive")
	}
	if cfg.GossipCacheSize < 1 {
		return errors.New("gossip-cache-size must be positive")
	}
	if cfg.GossipWorkers < 1 {
		return errors.New("gossip-workers must be positive")
	}
	return nil
}

//-----------------------------------------------------------------------------
// ForkConfig

// ForkConfig holds the epochs at which the protocol upgrades. Phase0 starts
// at genesis.
type ForkConfig struct {
	AltairForkEpoch    types.Epoch `mapstructure:"altair-fork-epoch"`
	BellatrixForkEpoch types.Epoch `mapstructure:"bellatrix-fork-epoch"`
	CapellaForkEpoch   types.Epoch `mapstructure:"capella-fork-epoch"`
	DenebForkEpoch     types.Epoch `mapstructure:"deneb-fork-epoch"`
}

// DefaultForkConfig returns the mainnet fork epochs.
func DefaultForkConfig() *ForkConfig {
	fs := types.MainnetForkSchedule()
	return &ForkConfig{
		AltairForkEpoch:    fs.AltairForkEpoch,
		BellatrixForkEpoch: fs.BellatrixForkEpoch,
		CapellaForkEpoch:   fs.CapellaForkEpoch,
		DenebForkEpoch:     fs.DenebForkEpoch,
	}
}

// TestForkConfig returns a schedule where every fork happens early.
func TestForkConfig() *ForkConfig {
	return &ForkConfig{
		AltairForkEpoch:    1,
		BellatrixForkEpoch: 2,
		CapellaForkEpoch:   3,
		DenebForkEpoch:     10,
	}
}

// Schedule returns the fork schedule.
func (cfg *ForkConfig) Schedule() types.ForkSchedule {
	return types.ForkSchedule{
		AltairForkEpoch:    cfg.AltairForkEpoch,
		BellatrixForkEpoch: cfg.BellatrixForkEpoch,
		CapellaForkEpoch:   cfg.CapellaForkEpoch,
		DenebForkEpoch:     cfg.DenebForkEpoch,
	}
}

// ValidateBasic checks that forks are scheduled in order.
func (cfg *ForkConfig) ValidateBasic() error {
	return cfg.Schedule().ValidateBasic()
}

//-----------------------------------------------------------------------------
// InstrumentationConfig

// InstrumentationConfig defines the configuration for metrics reporting.
type InstrumentationConfig struct {
	// When true, Prometheus metrics are served under /metrics on
	// PrometheusListenAddr.
	Prometheus bool `mapstructure:"prometheus"`

	// Address to listen for Prometheus collector(s) connections.
	PrometheusListenAddr string `mapstructure:"prometheus-listen-addr"`

	// Maximum number of simultaneous connections.
	// 0 - unlimited.
	MaxOpenConnections int `mapstructure:"max-open-connections"`

	// Instrumentation namespace.
	Namespace string `mapstructure:"namespace"`
}

// DefaultInstrumentationConfig returns a default configuration for metrics
// reporting.
func DefaultInstrumentationConfig() *InstrumentationConfig {
	return &InstrumentationConfig{
		Prometheus:           false,
		PrometheusListenAddr: ":26660",
		MaxOpenConnections:   3,
		Namespace:            "dasync",
	}
}

// TestInstrumentationConfig returns a default configuration for metrics
// reporting.
func TestInstrumentationConfig() *InstrumentationConfig {
	return DefaultInstrumentationConfig()
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *InstrumentationConfig) ValidateBasic() error {
	if cfg.MaxOpenConnections < 0 {
		return errors.New("max-open-connections can't be negative")
	}
	return nil
}

//-----------------------------------------------------------------------------
// Utils

// helper function to make config creation independent of root dir
func rootify(path, root string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

var defaultMoniker = getDefaultMoniker()

// getDefaultMoniker returns a default moniker, which is the host name. If runtime
// fails to get the host name, "anonymous" will be returned.
func getDefaultMoniker() string {
	moniker, err := os.Hostname()
	if err != nil {
		moniker = "anonymous"
	}
	return moniker
}
