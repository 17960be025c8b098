package gossip

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	dbm "github.com/tendermint/tm-db"

	"github.com/tendermint/dasync/crypto/kzg"
	"github.com/tendermint/dasync/internal/blockinput"
	"github.com/tendermint/dasync/internal/reqresp"
	"github.com/tendermint/dasync/internal/reqresp/mocks"
	"github.com/tendermint/dasync/internal/store"
	"github.com/tendermint/dasync/internal/test/factory"
	"github.com/tendermint/dasync/libs/log"
	"github.com/tendermint/dasync/types"
)

const testPeer = types.NodeID("0123456789abcdef0123456789abcdef01234567")

type chanImporter struct {
	ch chan types.BlockInput
}

func (i *chanImporter) ImportBlockInput(ctx context.Context, input types.BlockInput) error {
	select {
	case i.ch <- input:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type rejectingVerifier struct{}

func (rejectingVerifier) VerifyBlobSidecar(s *types.BlobSidecar) error {
	return kzg.ErrInvalidBlobProof{BlockRoot: s.BlockRoot, Index: s.Index, Reason: errors.New("bad proof")}
}

func (v rejectingVerifier) VerifyBlobSidecars(sidecars []*types.BlobSidecar) error {
	if len(sidecars) == 0 {
		return nil
	}
	return v.VerifyBlobSidecar(sidecars[0])
}

type reactorTestSuite struct {
	reactor  *Reactor
	cache    *blockinput.Cache
	store    *store.BlobStore
	importer *chanImporter
	inCh     chan Envelope
}

func setup(t *testing.T, verifier kzg.Verifier, fetcher reqresp.BeaconNode) *reactorTestSuite {
	t.Helper()
	// One worker keeps message order deterministic.
	return setupWithWorkers(t, 1, verifier, fetcher)
}

func setupWithWorkers(t *testing.T, workers int, verifier kzg.Verifier, fetcher reqresp.BeaconNode) *reactorTestSuite {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	cache, err := blockinput.NewCache(log.TestingLogger(), factory.ForkSchedule(), blockinput.DefaultCacheSize, nil)
	require.NoError(t, err)

	rts := &reactorTestSuite{
		cache:    cache,
		store:    store.NewBlobStore(dbm.NewMemDB()),
		importer: &chanImporter{ch: make(chan types.BlockInput, 8)},
		inCh:     make(chan Envelope),
	}
	rts.reactor = NewReactor(log.TestingLogger(), factory.ForkSchedule(), cache, verifier,
		rts.store, rts.importer, fetcher, workers, rts.inCh)

	require.NoError(t, rts.reactor.Start(ctx))
	t.Cleanup(func() {
		_ = rts.reactor.Stop()
		rts.reactor.Wait()
		cancel()
	})
	return rts
}

func (rts *reactorTestSuite) send(t *testing.T, msg interface{}) {
	t.Helper()
	rts.sendFrom(t, testPeer, msg)
}

func (rts *reactorTestSuite) sendFrom(t *testing.T, from types.NodeID, msg interface{}) {
	t.Helper()
	select {
	case rts.inCh <- Envelope{From: from, Message: msg}:
	case <-time.After(time.Second):
		t.Fatal("reactor is not consuming messages")
	}
}

func (rts *reactorTestSuite) imported(t *testing.T) types.BlockInput {
	t.Helper()
	select {
	case input := <-rts.importer.ch:
		return input
	case <-time.After(time.Second):
		t.Fatal("no block input imported")
	}
	return nil
}

func (rts *reactorTestSuite) peerError(t *testing.T) PeerError {
	t.Helper()
	select {
	case pe := <-rts.reactor.PeerErrors():
		return pe
	case <-time.After(time.Second):
		t.Fatal("no peer error reported")
	}
	return PeerError{}
}

func (rts *reactorTestSuite) noPeerError(t *testing.T) {
	t.Helper()
	select {
	case pe := <-rts.reactor.PeerErrors():
		t.Fatalf("unexpected peer error: %v", pe)
	default:
	}
}

func signed(s *types.BlobSidecar) *types.SignedBlobSidecar {
	return &types.SignedBlobSidecar{Message: *s}
}

func TestReactorCompletesGossipedInput(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	rts := setup(t, kzg.NopVerifier{}, nil)
	block := factory.MakeBlock(factory.DenebForkSlot+1, 2)
	sidecars := factory.MakeBlobSidecars(block)

	rts.send(t, signed(sidecars[1]))
	rts.send(t, block)
	rts.send(t, signed(sidecars[0]))

	input := rts.imported(t)
	post, ok := input.(*types.PostDenebBlockInput)
	require.True(t, ok)
	assert.Equal(t, block, post.Block())
	assert.Equal(t, sidecars, post.Blobs())
	assert.Equal(t, types.BlockSourceGossip, post.Source())

	saved, err := rts.store.BlobSidecarsByRoot(block.Root())
	require.NoError(t, err)
	assert.Equal(t, sidecars, saved)
	assert.False(t, rts.cache.Has(block.Root()))
}

func TestReactorPreDenebBlock(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	rts := setup(t, kzg.NopVerifier{}, nil)
	block := factory.MakeBlock(factory.DenebForkSlot-1, 0)

	rts.send(t, block)
	input := rts.imported(t)
	assert.Equal(t, types.BlockInputPreDeneb, input.Type())
}

func TestReactorReportsInvalidProof(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	rts := setup(t, rejectingVerifier{}, nil)
	block := factory.MakeBlock(factory.DenebForkSlot, 1)

	rts.send(t, signed(factory.MakeBlobSidecar(block, 0)))
	pe := rts.peerError(t)
	assert.Equal(t, testPeer, pe.NodeID)
	assert.True(t, errors.As(pe.Err, new(kzg.ErrInvalidBlobProof)))
	assert.False(t, rts.cache.Has(block.Root()))
}

func TestReactorReportsConflictingSidecar(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	rts := setup(t, kzg.NopVerifier{}, nil)
	block := factory.MakeBlock(factory.DenebForkSlot, 2)
	sidecar := factory.MakeBlobSidecar(block, 0)
	conflicting := *sidecar
	conflicting.KZGProof = types.KZGProof{0xaa}

	rts.send(t, signed(sidecar))
	rts.send(t, signed(&conflicting))

	pe := rts.peerError(t)
	assert.True(t, errors.As(pe.Err, new(types.ErrConflictingBlobSidecar)))
}

func TestReactorReportsMalformedMessages(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	rts := setup(t, kzg.NopVerifier{}, nil)

	rts.send(t, "not a block")
	pe := rts.peerError(t)
	assert.True(t, types.IsProtocolViolation(pe.Err))

	short := factory.MakeBlobSidecar(factory.MakeBlock(factory.DenebForkSlot, 1), 0)
	short.Blob = short.Blob[:10]
	rts.send(t, signed(short))
	pe = rts.peerError(t)
	assert.True(t, types.IsProtocolViolation(pe.Err))
}

func TestReactorFetchesUnknownBlock(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	block := factory.MakeBlock(factory.DenebForkSlot+3, 2)
	sidecars := factory.MakeBlobSidecars(block)
	root := block.Root()

	node := mocks.NewBeaconNode(t)
	node.On("BeaconBlocksByRoot", mock.Anything, testPeer, reqresp.BeaconBlocksByRootRequest{root}).
		Return([]*types.SignedBeaconBlock{block}, nil).Once()
	node.On("BlobSidecarsByRoot", mock.Anything, testPeer, reqresp.BlobSidecarsByRootRequest{
		{BlockRoot: root, Index: 0},
		{BlockRoot: root, Index: 1},
	}).Return(sidecars, nil).Once()

	rts := setup(t, kzg.NopVerifier{}, node)
	rts.send(t, signed(sidecars[0]))

	input := rts.imported(t)
	assert.Equal(t, types.BlockSourceByRoot, input.Source())
	assert.Equal(t, sidecars, input.(*types.PostDenebBlockInput).Blobs())
	assert.False(t, rts.cache.Has(root))

	saved, err := rts.store.BlobSidecarsByRoot(root)
	require.NoError(t, err)
	assert.Equal(t, sidecars, saved)
}

func TestReactorTransportFailureIsNotReported(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	block := factory.MakeBlock(factory.DenebForkSlot, 1)
	node := mocks.NewBeaconNode(t)
	node.On("BeaconBlocksByRoot", mock.Anything, testPeer, mock.Anything).
		Return(nil, errors.New("stream reset")).Once()

	rts := setup(t, kzg.NopVerifier{}, node)
	rts.send(t, signed(factory.MakeBlobSidecar(block, 0)))
	// A second message proves the first was fully handled.
	rts.send(t, factory.MakeBlock(factory.DenebForkSlot-1, 0))
	rts.imported(t)

	rts.noPeerError(t)
	assert.True(t, rts.cache.Has(block.Root()))
}

func TestReactorReportsInvalidFetchResponse(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	block := factory.MakeBlock(factory.DenebForkSlot+2, 2)
	sidecars := factory.MakeBlobSidecars(block)
	root := block.Root()

	// the peer serves the block but only one of its two sidecars
	node := mocks.NewBeaconNode(t)
	node.On("BeaconBlocksByRoot", mock.Anything, testPeer, reqresp.BeaconBlocksByRootRequest{root}).
		Return([]*types.SignedBeaconBlock{block}, nil).Once()
	node.On("BlobSidecarsByRoot", mock.Anything, testPeer, mock.Anything).
		Return(sidecars[:1], nil).Once()

	rts := setup(t, kzg.NopVerifier{}, node)
	rts.send(t, signed(sidecars[1]))

	pe := rts.peerError(t)
	assert.Equal(t, testPeer, pe.NodeID)
	var mismatch types.ErrBlobCountMismatch
	require.True(t, errors.As(pe.Err, &mismatch))
	assert.Equal(t, types.ErrBlobCountMismatch{Slot: block.Slot(), Expected: 2, Actual: 1}, mismatch)

	select {
	case input := <-rts.importer.ch:
		t.Fatalf("unexpected import of %v", input.Block().Root())
	default:
	}
}

// Sidecars gossiped after their block was fetched by root must not trigger a
// second fetch or import.
func TestReactorDropsLateGossipForCompletedBlock(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	block := factory.MakeBlock(factory.DenebForkSlot+3, 2)
	sidecars := factory.MakeBlobSidecars(block)
	root := block.Root()

	node := mocks.NewBeaconNode(t)
	node.On("BeaconBlocksByRoot", mock.Anything, testPeer, reqresp.BeaconBlocksByRootRequest{root}).
		Return([]*types.SignedBeaconBlock{block}, nil).Once()
	node.On("BlobSidecarsByRoot", mock.Anything, testPeer, mock.Anything).
		Return(sidecars, nil).Once()

	rts := setup(t, kzg.NopVerifier{}, node)
	rts.send(t, signed(sidecars[0]))
	assert.Equal(t, types.BlockSourceByRoot, rts.imported(t).Source())

	rts.send(t, signed(sidecars[1]))
	rts.send(t, block)
	assert.False(t, rts.cache.Has(root))

	// the next import must be this block, not the fetched one again
	marker := factory.MakeBlock(factory.DenebForkSlot-1, 0)
	rts.send(t, marker)
	assert.Equal(t, marker, rts.imported(t).Block())

	rts.noPeerError(t)
	assert.False(t, rts.cache.Has(root))
}

func TestReactorSerializesFetchesPerPeer(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	blocks := []*types.SignedBeaconBlock{
		factory.MakeBlock(factory.DenebForkSlot+4, 1),
		factory.MakeBlock(factory.DenebForkSlot+5, 1),
	}

	var inFlight, maxInFlight int32
	node := mocks.NewBeaconNode(t)
	for _, block := range blocks {
		block := block
		root := block.Root()
		node.On("BeaconBlocksByRoot", mock.Anything, testPeer, reqresp.BeaconBlocksByRootRequest{root}).
			Run(func(mock.Arguments) {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					peak := atomic.LoadInt32(&maxInFlight)
					if n <= peak || atomic.CompareAndSwapInt32(&maxInFlight, peak, n) {
						break
					}
				}
				time.Sleep(50 * time.Millisecond)
			}).
			Return([]*types.SignedBeaconBlock{block}, nil).Once()
		node.On("BlobSidecarsByRoot", mock.Anything, testPeer, mock.MatchedBy(
			func(req reqresp.BlobSidecarsByRootRequest) bool {
				return len(req) == 1 && req[0].BlockRoot == root
			})).
			Run(func(mock.Arguments) { atomic.AddInt32(&inFlight, -1) }).
			Return(factory.MakeBlobSidecars(block), nil).Once()
	}

	rts := setupWithWorkers(t, 2, kzg.NopVerifier{}, node)
	for _, block := range blocks {
		rts.send(t, signed(factory.MakeBlobSidecar(block, 0)))
	}

	seen := map[types.Root]bool{}
	for range blocks {
		seen[rts.imported(t).Block().Root()] = true
	}
	for _, block := range blocks {
		assert.True(t, seen[block.Root()])
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&maxInFlight))
	rts.noPeerError(t)
}

func TestReactorDropsGossipFromInvalidSender(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	rts := setup(t, kzg.NopVerifier{}, nil)
	rts.sendFrom(t, types.NodeID("not-a-node-id"), factory.MakeBlock(factory.DenebForkSlot-2, 0))

	valid := factory.MakeBlock(factory.DenebForkSlot-1, 0)
	rts.send(t, valid)
	assert.Equal(t, valid, rts.imported(t).Block())
	rts.noPeerError(t)
}

func TestReactorStopsWhenChannelCloses(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	rts := setup(t, kzg.NopVerifier{}, nil)
	close(rts.inCh)

	select {
	case <-rts.reactor.done:
	case <-time.After(time.Second):
		t.Fatal("workers did not return")
	}
}
