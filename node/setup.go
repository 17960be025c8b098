package node

import (
	"fmt"

	"github.com/tendermint/dasync/config"
	"github.com/tendermint/dasync/crypto/kzg"
	"github.com/tendermint/dasync/internal/blockinput"
	"github.com/tendermint/dasync/internal/reqresp"
	"github.com/tendermint/dasync/internal/store"
	"github.com/tendermint/dasync/libs/log"
	"github.com/tendermint/dasync/version"
)

// BlobStoreDBID names the database holding blob sidecars.
const BlobStoreDBID = "blobstore"

// MetricsProvider returns the metrics used by the gossip cache and the
// request dispatcher.
type MetricsProvider func() (*blockinput.Metrics, *reqresp.Metrics)

// DefaultMetricsProvider returns Prometheus metrics if they are enabled in
// cfg, no-op metrics otherwise. Prometheus metrics are registered with the
// default registry, so the returned provider must be called at most once per
// namespace.
func DefaultMetricsProvider(cfg *config.InstrumentationConfig) MetricsProvider {
	return func() (*blockinput.Metrics, *reqresp.Metrics) {
		if cfg.Prometheus {
			return blockinput.PrometheusMetrics(cfg.Namespace), reqresp.PrometheusMetrics(cfg.Namespace)
		}
		return blockinput.NopMetrics(), reqresp.NopMetrics()
	}
}

func initBlobStore(conf *config.Config, dbProvider config.DBProvider) (*store.BlobStore, error) {
	db, err := dbProvider(&config.DBContext{ID: BlobStoreDBID, Config: conf})
	if err != nil {
		return nil, fmt.Errorf("opening blob store: %w", err)
	}
	return store.NewBlobStore(db), nil
}

func createVerifier(cfg *config.DataAvailabilityConfig) (kzg.Verifier, error) {
	if !cfg.VerifyKZG {
		return kzg.NopVerifier{}, nil
	}
	v, err := kzg.NewEthKZGVerifier()
	if err != nil {
		return nil, err
	}
	return v, nil
}

func logNodeStartupInfo(conf *config.Config, logger log.Logger) {
	info := version.Current()
	logger.Info("Version info",
		"dasync", info.Dasync,
		"commit", info.GitCommit,
		"go", info.GoVersion,
	)
	logger.Info("Data availability",
		"moniker", conf.Moniker,
		"deneb_fork_epoch", conf.Fork.DenebForkEpoch,
		"retention_epochs", conf.DataAvailability.MinEpochsForBlobSidecarsRequests,
		"gossip_cache_size", conf.DataAvailability.GossipCacheSize,
		"verify_kzg", conf.DataAvailability.VerifyKZG,
	)
}
