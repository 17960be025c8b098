package gossip

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/errgroup"

	"github.com/tendermint/dasync/crypto/kzg"
	"github.com/tendermint/dasync/internal/blockinput"
	"github.com/tendermint/dasync/internal/reqresp"
	"github.com/tendermint/dasync/internal/store"
	"github.com/tendermint/dasync/libs/log"
	"github.com/tendermint/dasync/libs/service"
	"github.com/tendermint/dasync/types"
)

var _ service.Service = (*Reactor)(nil)

const (
	// DefaultWorkers is the default number of goroutines handling gossip.
	DefaultWorkers = 4

	peerErrorBuffer = 64

	// recentlyCompletedSize bounds the roots remembered after their input
	// completed. Gossip for those roots is dropped.
	recentlyCompletedSize = 128
)

// Envelope is a gossip message received from a peer. Message is either a
// *types.SignedBeaconBlock or a *types.SignedBlobSidecar.
type Envelope struct {
	From    types.NodeID
	Message interface{}
}

// PeerError reports a peer that sent data violating the protocol.
type PeerError struct {
	NodeID types.NodeID
	Err    error
}

func (e PeerError) Error() string {
	return fmt.Sprintf("error with peer %v: %s", e.NodeID, e.Err.Error())
}

// BlockImporter receives every completed block input. It may see the same
// block more than once and must ignore blocks it already imported.
type BlockImporter interface {
	ImportBlockInput(ctx context.Context, input types.BlockInput) error
}

// Reactor reconciles gossiped blocks and blob sidecars. Sidecars are checked
// against their KZG proofs before they reach the cache; completed inputs have
// their blobs persisted and are handed to the importer.
type Reactor struct {
	service.BaseService
	logger log.Logger

	schedule types.ForkSchedule
	cache    *blockinput.Cache
	verifier kzg.Verifier
	store    *store.BlobStore
	importer BlockImporter
	// fetcher, if set, is used to request blocks for which only sidecars
	// were gossiped.
	fetcher reqresp.BeaconNode
	workers int

	inCh      <-chan Envelope
	peerErrCh chan PeerError

	// completed holds the roots of recently completed inputs.
	completed *lru.Cache

	mtx      sync.Mutex
	fetching map[types.Root]struct{}
	// peerFetches serializes fetches to the same peer, which serves one
	// request per protocol at a time.
	peerFetches map[types.NodeID]*peerFetchQueue

	cancel context.CancelFunc
	done   chan struct{}
}

// NewReactor returns a reactor consuming inCh with the given number of
// workers. fetcher may be nil.
func NewReactor(
	logger log.Logger,
	schedule types.ForkSchedule,
	cache *blockinput.Cache,
	verifier kzg.Verifier,
	blobStore *store.BlobStore,
	importer BlockImporter,
	fetcher reqresp.BeaconNode,
	workers int,
	inCh <-chan Envelope,
) *Reactor {
	if workers < 1 {
		workers = DefaultWorkers
	}
	completed, err := lru.New(recentlyCompletedSize)
	if err != nil {
		// only fails for a non-positive size
		panic(err)
	}
	r := &Reactor{
		logger:      logger,
		schedule:    schedule,
		cache:       cache,
		verifier:    verifier,
		store:       blobStore,
		importer:    importer,
		fetcher:     fetcher,
		workers:     workers,
		inCh:        inCh,
		peerErrCh:   make(chan PeerError, peerErrorBuffer),
		completed:   completed,
		fetching:    make(map[types.Root]struct{}),
		peerFetches: make(map[types.NodeID]*peerFetchQueue),
		done:        make(chan struct{}),
	}
	r.BaseService = *service.NewBaseService(logger, "Gossip", r)
	return r
}

// PeerErrors returns the channel on which misbehaving peers are reported.
func (r *Reactor) PeerErrors() <-chan PeerError { return r.peerErrCh }

// OnStart starts the workers. They run until the reactor is stopped, ctx is
// canceled or the inbound channel is closed.
func (r *Reactor) OnStart(ctx context.Context) error {
	ctx, r.cancel = context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < r.workers; i++ {
		g.Go(func() error {
			r.processInCh(ctx)
			return nil
		})
	}
	go func() {
		defer close(r.done)
		_ = g.Wait()
	}()
	return nil
}

// OnStop stops the workers and waits for them to return.
func (r *Reactor) OnStop() {
	r.cancel()
	<-r.done
}

func (r *Reactor) processInCh(ctx context.Context) {
	for {
		select {
		case envelope, ok := <-r.inCh:
			if !ok {
				r.logger.Debug("gossip channel closed")
				return
			}
			err := r.handleMessage(ctx, envelope)
			switch {
			case err == nil:
			case types.IsProtocolViolation(err):
				r.logger.Error("invalid gossip message", "peer", envelope.From, "err", err)
				r.sendPeerError(ctx, PeerError{NodeID: envelope.From, Err: err})
			case errors.Is(err, context.Canceled):
				return
			default:
				r.logger.Error("failed to process gossip message", "peer", envelope.From, "err", err)
			}

		case <-ctx.Done():
			return
		}
	}
}

func (r *Reactor) sendPeerError(ctx context.Context, pe PeerError) {
	select {
	case r.peerErrCh <- pe:
	case <-ctx.Done():
	}
}

func (r *Reactor) handleMessage(ctx context.Context, envelope Envelope) (err error) {
	defer func() {
		if e := recover(); e != nil {
			err = fmt.Errorf("%w: panic in processing message: %v", types.ErrProtocolViolation, e)
		}
	}()

	if err := envelope.From.Validate(); err != nil {
		return fmt.Errorf("gossip from unknown sender: %w", err)
	}

	r.logger.Debug("received message", "message", reflect.TypeOf(envelope.Message), "peer", envelope.From)

	var in blockinput.GossipedInput
	switch msg := envelope.Message.(type) {
	case *types.SignedBeaconBlock:
		if err := msg.ValidateBasic(); err != nil {
			return fmt.Errorf("%w: invalid block: %v", types.ErrProtocolViolation, err)
		}
		if r.recentlyCompleted(msg.Root()) {
			return nil
		}
		in = blockinput.BlockGossip(msg)

	case *types.SignedBlobSidecar:
		sidecar := &msg.Message
		if err := sidecar.ValidateBasic(); err != nil {
			return fmt.Errorf("%w: invalid blob sidecar: %v", types.ErrProtocolViolation, err)
		}
		if r.recentlyCompleted(sidecar.BlockRoot) {
			return nil
		}
		if err := r.verifier.VerifyBlobSidecar(sidecar); err != nil {
			return err
		}
		in = blockinput.BlobGossip(sidecar)

	default:
		return fmt.Errorf("%w: unknown message type %T", types.ErrProtocolViolation, msg)
	}

	res, err := r.cache.Ingest(in)
	if err != nil {
		return err
	}

	switch res := res.(type) {
	case *blockinput.Completed:
		return r.complete(ctx, res.Input)

	case *blockinput.AwaitingBlock:
		if r.fetcher == nil {
			return nil
		}
		sidecar := &envelope.Message.(*types.SignedBlobSidecar).Message
		return r.fetchBlock(ctx, envelope.From, sidecar.BlockRoot)
	}
	return nil
}

// recentlyCompleted reports whether the input of root completed recently, in
// which case gossip for it is redundant.
func (r *Reactor) recentlyCompleted(root types.Root) bool {
	if r.completed.Contains(root) {
		r.logger.Debug("ignoring gossip for completed block", "root", root)
		return true
	}
	return false
}

type peerFetchQueue struct {
	sem  chan struct{}
	refs int
}

// acquirePeer waits until no other fetch to peer is in flight. The returned
// func must be called once the fetch is done.
func (r *Reactor) acquirePeer(ctx context.Context, peer types.NodeID) (func(), error) {
	r.mtx.Lock()
	q, ok := r.peerFetches[peer]
	if !ok {
		q = &peerFetchQueue{sem: make(chan struct{}, 1)}
		r.peerFetches[peer] = q
	}
	q.refs++
	r.mtx.Unlock()

	unref := func() {
		r.mtx.Lock()
		q.refs--
		if q.refs == 0 {
			delete(r.peerFetches, peer)
		}
		r.mtx.Unlock()
	}

	select {
	case q.sem <- struct{}{}:
		return func() {
			<-q.sem
			unref()
		}, nil
	case <-ctx.Done():
		unref()
		return nil, ctx.Err()
	}
}

// fetchBlock requests a block and its sidecars from the peer that gossiped
// one of its sidecars. Only one request per root, and one per peer, is in
// flight. Transport failures are returned as is; a response that violates
// the protocol returns an error wrapping types.ErrProtocolViolation so the
// peer is reported.
func (r *Reactor) fetchBlock(ctx context.Context, peer types.NodeID, root types.Root) error {
	r.mtx.Lock()
	if _, ok := r.fetching[root]; ok {
		r.mtx.Unlock()
		return nil
	}
	r.fetching[root] = struct{}{}
	r.mtx.Unlock()

	defer func() {
		r.mtx.Lock()
		delete(r.fetching, root)
		r.mtx.Unlock()
	}()

	release, err := r.acquirePeer(ctx, peer)
	if err != nil {
		return err
	}
	defer release()

	// the block may have completed while this fetch was queued
	if r.recentlyCompleted(root) {
		r.cache.Discard(root)
		return nil
	}

	r.logger.Debug("fetching unknown block", "root", root, "peer", peer)
	inputs, err := reqresp.BlocksMaybeBlobsByRoot(ctx, r.schedule, r.fetcher, peer,
		reqresp.BeaconBlocksByRootRequest{root})
	if err != nil {
		return fmt.Errorf("fetching block %v: %w", root, err)
	}

	for _, input := range inputs {
		if post, ok := input.(*types.PostDenebBlockInput); ok {
			if err := r.verifier.VerifyBlobSidecars(post.Blobs()); err != nil {
				return err
			}
		}
		r.cache.Discard(input.Block().Root())
		if err := r.complete(ctx, input); err != nil {
			return err
		}
	}
	return nil
}

// complete persists the blobs of input and hands it to the importer.
func (r *Reactor) complete(ctx context.Context, input types.BlockInput) error {
	block := input.Block()
	if post, ok := input.(*types.PostDenebBlockInput); ok {
		if err := r.store.SaveBlobSidecars(block.Root(), post.Blobs()); err != nil {
			return fmt.Errorf("saving blob sidecars of block %v: %w", block.Root(), err)
		}
	}

	r.logger.Info("block input completed",
		"root", block.Root(),
		"slot", block.Slot(),
		"type", input.Type(),
		"source", input.Source())

	if err := r.importer.ImportBlockInput(ctx, input); err != nil {
		return fmt.Errorf("importing block %v: %w", block.Root(), err)
	}
	r.completed.Add(block.Root(), struct{}{})
	return nil
}
