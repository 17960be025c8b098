package reqresp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendermint/dasync/internal/test/factory"
	"github.com/tendermint/dasync/libs/log"
	"github.com/tendermint/dasync/types"
)

const (
	peerA = types.NodeID("aa00000000000000000000000000000000000000")
	peerB = types.NodeID("bb00000000000000000000000000000000000000")
)

type chanSender struct {
	out chan Envelope
	err error
}

func (s *chanSender) Send(ctx context.Context, e Envelope) error {
	if s.err != nil {
		return s.err
	}
	select {
	case s.out <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newTestDispatcher(t *testing.T) (*Dispatcher, chan Envelope) {
	t.Helper()
	out := make(chan Envelope, 8)
	d := NewDispatcher(log.TestingLogger(), &chanSender{out: out}, NopMetrics())
	t.Cleanup(d.Close)
	return d, out
}

func TestDispatcherBlocksByRange(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d, out := newTestDispatcher(t)
	req := BlocksByRangeRequest{StartSlot: factory.DenebForkSlot, Count: 3}
	blocks := factory.MakeChain(req.StartSlot, req.StartSlot+3, nil, nil)

	go func() {
		e := <-out
		assert.Equal(t, peerA, e.To)
		assert.Equal(t, ProtocolBeaconBlocksByRange, e.Protocol)
		assert.Equal(t, req, e.Message)
		for _, b := range blocks {
			assert.NoError(t, d.Respond(peerA, e.Protocol, b))
		}
		assert.NoError(t, d.Respond(peerA, e.Protocol, StreamEnd{}))
	}()

	got, err := d.BeaconBlocksByRange(ctx, peerA, req)
	require.NoError(t, err)
	assert.Equal(t, blocks, got)
}

func TestDispatcherConcurrentProtocols(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d, out := newTestDispatcher(t)
	block := factory.MakeBlock(factory.DenebForkSlot, 2)
	sidecars := factory.MakeBlobSidecars(block)

	// A peer answers requests in whatever order it likes.
	go func() {
		for i := 0; i < 2; i++ {
			e := <-out
			switch e.Protocol {
			case ProtocolBeaconBlocksByRoot:
				assert.NoError(t, d.Respond(e.To, e.Protocol, block))
			case ProtocolBlobSidecarsByRoot:
				for _, s := range sidecars {
					assert.NoError(t, d.Respond(e.To, e.Protocol, s))
				}
			}
			assert.NoError(t, d.Respond(e.To, e.Protocol, StreamEnd{}))
		}
	}()

	inputs, err := BlocksMaybeBlobsByRoot(ctx, factory.ForkSchedule(), d, peerA,
		BeaconBlocksByRootRequest{block.Root()})
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, sidecars, inputs[0].(*types.PostDenebBlockInput).Blobs())
}

func TestDispatcherPeerBusy(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d, out := newTestDispatcher(t)
	req := BeaconBlocksByRootRequest{{1}}

	done := make(chan error, 1)
	go func() {
		_, err := d.BeaconBlocksByRoot(ctx, peerA, req)
		done <- err
	}()
	<-out

	_, err := d.BeaconBlocksByRoot(ctx, peerA, req)
	assert.Equal(t, errPeerAlreadyBusy, err)

	// Other peers are unaffected.
	go func() {
		e := <-out
		assert.NoError(t, d.Respond(e.To, e.Protocol, StreamEnd{}))
	}()
	blocks, err := d.BeaconBlocksByRoot(ctx, peerB, req)
	require.NoError(t, err)
	assert.Empty(t, blocks)

	cancel()
	assert.Equal(t, context.Canceled, <-done)
}

func TestDispatcherTooManyChunks(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	d, out := newTestDispatcher(t)
	req := BlobSidecarsByRootRequest{{Index: 0}}
	block := factory.MakeBlock(factory.DenebForkSlot, 2)

	go func() {
		e := <-out
		assert.NoError(t, d.Respond(peerA, e.Protocol, factory.MakeBlobSidecar(block, 0)))
		err := d.Respond(peerA, e.Protocol, factory.MakeBlobSidecar(block, 1))
		assert.True(t, types.IsProtocolViolation(err))
		// The stream is over; later chunks are unsolicited.
		assert.Equal(t, errUnsolicitedResponse, d.Respond(peerA, e.Protocol, StreamEnd{}))
	}()

	_, err := d.BlobSidecarsByRoot(context.Background(), peerA, req)
	var tooMany ErrTooManyChunks
	require.True(t, errors.As(err, &tooMany))
	assert.Equal(t, 1, tooMany.Max)
}

func TestDispatcherUnexpectedChunk(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	d, out := newTestDispatcher(t)
	go func() {
		e := <-out
		err := d.Respond(peerA, e.Protocol, factory.MakeBlock(factory.DenebForkSlot, 0))
		assert.True(t, types.IsProtocolViolation(err))
	}()

	_, err := d.BlobSidecarsByRange(context.Background(), peerA,
		BlobSidecarsByRangeRequest{StartSlot: factory.DenebForkSlot, Count: 1})
	assert.True(t, errors.As(err, new(ErrUnexpectedChunk)))
}

func TestDispatcherPeerError(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	d, out := newTestDispatcher(t)
	peerErr := errors.New("resource unavailable")
	go func() {
		e := <-out
		assert.NoError(t, d.Respond(peerA, e.Protocol, StreamEnd{Err: peerErr}))
	}()

	_, err := d.BeaconBlocksByRange(context.Background(), peerA, BlocksByRangeRequest{StartSlot: 1, Count: 1})
	assert.Equal(t, peerErr, err)
}

func TestDispatcherClose(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	d, out := newTestDispatcher(t)
	done := make(chan error, 1)
	go func() {
		_, err := d.BeaconBlocksByRange(context.Background(), peerA, BlocksByRangeRequest{StartSlot: 1, Count: 1})
		done <- err
	}()
	<-out

	d.Close()
	select {
	case err := <-done:
		assert.Equal(t, errDisconnected, err)
	case <-time.After(time.Second):
		t.Fatal("pending call not released by Close")
	}

	_, err := d.BeaconBlocksByRange(context.Background(), peerA, BlocksByRangeRequest{StartSlot: 1, Count: 1})
	assert.Equal(t, errDisconnected, err)
	assert.Equal(t, errUnsolicitedResponse, d.Respond(peerA, ProtocolBeaconBlocksByRange, StreamEnd{}))
}

func TestDispatcherSendFailure(t *testing.T) {
	sendErr := errors.New("no route to peer")
	d := NewDispatcher(log.NewNopLogger(), &chanSender{err: sendErr}, nil)

	_, err := d.BeaconBlocksByRoot(context.Background(), peerA, BeaconBlocksByRootRequest{{1}})
	assert.Equal(t, sendErr, err)

	// The failed call does not leave the peer busy.
	_, err = d.BeaconBlocksByRoot(context.Background(), peerA, BeaconBlocksByRootRequest{{1}})
	assert.Equal(t, sendErr, err)
}

func TestDispatcherRejectsMalformedRequests(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.BeaconBlocksByRange(context.Background(), peerA,
		BlocksByRangeRequest{StartSlot: 0, Count: types.MaxRequestBlocksDeneb + 1})
	assert.True(t, errors.Is(err, types.ErrMalformedRequest))

	_, err = d.BlobSidecarsByRoot(context.Background(), peerA, make(BlobSidecarsByRootRequest, types.MaxRequestBlobSidecars+1))
	assert.True(t, errors.Is(err, types.ErrMalformedRequest))
}

func TestDispatcherRejectsInvalidPeer(t *testing.T) {
	d, out := newTestDispatcher(t)

	_, err := d.BeaconBlocksByRoot(context.Background(), types.NodeID("not-a-peer"),
		BeaconBlocksByRootRequest{{0x01}})
	assert.True(t, errors.Is(err, types.ErrMalformedRequest))
	assert.Empty(t, out, "nothing may be sent to an invalid peer")

	assert.Error(t, d.Respond(types.NodeID("AA00000000000000000000000000000000000000"),
		ProtocolBeaconBlocksByRoot, StreamEnd{}))
}
