package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/netutil"

	"github.com/tendermint/dasync/config"
	"github.com/tendermint/dasync/internal/blockinput"
	"github.com/tendermint/dasync/internal/gossip"
	"github.com/tendermint/dasync/internal/reqresp"
	"github.com/tendermint/dasync/internal/store"
	"github.com/tendermint/dasync/libs/log"
	"github.com/tendermint/dasync/libs/service"
	"github.com/tendermint/dasync/types"
)

const prometheusShutdownTimeout = 5 * time.Second

// Node wires the blob store, the gossip cache and reactor, and the
// request/response dispatcher together. The transport is supplied by the
// caller: gossip arrives on the channel passed to New, requests leave through
// the Sender and responses are fed back with Respond.
type Node struct {
	service.BaseService
	logger log.Logger
	config *config.Config

	schedule   types.ForkSchedule
	blobStore  *store.BlobStore
	cache      *blockinput.Cache
	dispatcher *reqresp.Dispatcher
	reactor    *gossip.Reactor

	prometheusSrv *http.Server
	prometheusLn  net.Listener
}

var _ service.Service = (*Node)(nil)

// New returns a node built from conf. sender may be nil, in which case the
// node never requests blocks from peers.
func New(
	conf *config.Config,
	logger log.Logger,
	dbProvider config.DBProvider,
	metricsProvider MetricsProvider,
	sender reqresp.Sender,
	importer gossip.BlockImporter,
	gossipCh <-chan gossip.Envelope,
) (*Node, error) {
	if err := conf.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	schedule := conf.Fork.Schedule()
	cacheMetrics, reqrespMetrics := metricsProvider()

	blobStore, err := initBlobStore(conf, dbProvider)
	if err != nil {
		return nil, err
	}

	verifier, err := createVerifier(conf.DataAvailability)
	if err != nil {
		_ = blobStore.Close()
		return nil, err
	}

	cache, err := blockinput.NewCache(logger.With("module", "blockinput"), schedule,
		conf.DataAvailability.GossipCacheSize, cacheMetrics)
	if err != nil {
		_ = blobStore.Close()
		return nil, err
	}

	n := &Node{
		logger:    logger,
		config:    conf,
		schedule:  schedule,
		blobStore: blobStore,
		cache:     cache,
	}

	var fetcher reqresp.BeaconNode
	if sender != nil {
		n.dispatcher = reqresp.NewDispatcher(logger.With("module", "reqresp"), sender, reqrespMetrics)
		fetcher = n.dispatcher
	}

	n.reactor = gossip.NewReactor(logger.With("module", "gossip"), schedule, cache, verifier,
		blobStore, importer, fetcher, conf.DataAvailability.GossipWorkers, gossipCh)

	n.BaseService = *service.NewBaseService(logger, "Node", n)
	return n, nil
}

// OnStart starts the metrics server, if enabled, and the gossip reactor.
func (n *Node) OnStart(ctx context.Context) error {
	logNodeStartupInfo(n.config, n.logger)

	if n.config.Instrumentation.Prometheus {
		if err := n.startPrometheusServer(n.config.Instrumentation); err != nil {
			return err
		}
	}

	if err := n.reactor.Start(ctx); err != nil {
		n.stopPrometheusServer()
		return err
	}
	return nil
}

// OnStop stops the reactor, fails pending peer requests and closes the store.
func (n *Node) OnStop() {
	n.logger.Info("Stopping Node")

	if err := n.reactor.Stop(); err != nil && !errors.Is(err, service.ErrAlreadyStopped) {
		n.logger.Error("failed to stop the gossip reactor", "err", err)
	}
	n.reactor.Wait()

	if n.dispatcher != nil {
		n.dispatcher.Close()
	}
	n.stopPrometheusServer()

	if err := n.blobStore.Close(); err != nil {
		n.logger.Error("failed to close the blob store", "err", err)
	}
}

// startPrometheusServer serves the default registry under /metrics.
func (n *Node) startPrometheusServer(cfg *config.InstrumentationConfig) error {
	ln, err := net.Listen("tcp", cfg.PrometheusListenAddr)
	if err != nil {
		return fmt.Errorf("prometheus listener: %w", err)
	}
	if cfg.MaxOpenConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.MaxOpenConnections)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer, promhttp.HandlerFor(
			prometheus.DefaultGatherer,
			promhttp.HandlerOpts{MaxRequestsInFlight: cfg.MaxOpenConnections},
		),
	))
	n.prometheusSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	n.prometheusLn = ln

	go func() {
		if err := n.prometheusSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			// Error starting or closing listener:
			n.logger.Error("Prometheus HTTP server Serve", "err", err)
		}
	}()
	return nil
}

func (n *Node) stopPrometheusServer() {
	if n.prometheusSrv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), prometheusShutdownTimeout)
	defer cancel()
	if err := n.prometheusSrv.Shutdown(ctx); err != nil {
		n.logger.Error("Prometheus HTTP server Shutdown", "err", err)
	}
	n.prometheusSrv = nil
}

// PrometheusAddr returns the address the metrics server listens on, or nil if
// it is not running.
func (n *Node) PrometheusAddr() net.Addr {
	if n.prometheusSrv == nil {
		return nil
	}
	return n.prometheusLn.Addr()
}

// Respond hands a response chunk received from peer to the dispatcher. It
// fails if the node was built without a Sender.
func (n *Node) Respond(peer types.NodeID, protocol reqresp.Protocol, msg interface{}) error {
	if n.dispatcher == nil {
		return errors.New("node does not send requests")
	}
	return n.dispatcher.Respond(peer, protocol, msg)
}

// PeerErrors reports peers that gossiped invalid data.
func (n *Node) PeerErrors() <-chan gossip.PeerError { return n.reactor.PeerErrors() }

// BlocksByRange requests a range of blocks, with their blob sidecars when
// required, from peer.
func (n *Node) BlocksByRange(
	ctx context.Context,
	peer types.NodeID,
	req reqresp.BlocksByRangeRequest,
	currentEpoch types.Epoch,
) ([]types.BlockInput, error) {
	if n.dispatcher == nil {
		return nil, errors.New("node does not send requests")
	}
	return reqresp.BlocksMaybeBlobsByRange(ctx, n.schedule,
		n.config.DataAvailability.MinEpochsForBlobSidecarsRequests, n.dispatcher, peer, req, currentEpoch)
}

// BlobStore returns the node's blob store.
func (n *Node) BlobStore() *store.BlobStore { return n.blobStore }

// Cache returns the gossip reconciliation cache.
func (n *Node) Cache() *blockinput.Cache { return n.cache }
