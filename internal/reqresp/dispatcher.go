package reqresp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tendermint/dasync/libs/log"
	"github.com/tendermint/dasync/types"
)

var (
	errUnsolicitedResponse = errors.New("unsolicited response")
	errPeerAlreadyBusy     = errors.New("peer is already processing a request")
	errDisconnected        = errors.New("dispatcher disconnected")
)

// ErrTooManyChunks is returned when a peer streams more chunks than the
// request allows.
type ErrTooManyChunks struct {
	Peer     types.NodeID
	Protocol Protocol
	Max      int
}

func (e ErrTooManyChunks) Error() string {
	return fmt.Sprintf("peer %v sent more than %d chunks for %s", e.Peer, e.Max, e.Protocol)
}

func (e ErrTooManyChunks) Unwrap() error { return types.ErrProtocolViolation }

// ErrUnexpectedChunk is returned when a peer streams a message of the wrong
// type for the protocol.
type ErrUnexpectedChunk struct {
	Peer     types.NodeID
	Protocol Protocol
	Message  interface{}
}

func (e ErrUnexpectedChunk) Error() string {
	return fmt.Sprintf("peer %v sent unexpected %T for %s", e.Peer, e.Message, e.Protocol)
}

func (e ErrUnexpectedChunk) Unwrap() error { return types.ErrProtocolViolation }

// Sender delivers request envelopes to peers.
type Sender interface {
	Send(ctx context.Context, e Envelope) error
}

type callKey struct {
	peer     types.NodeID
	protocol Protocol
}

type call struct {
	maxChunks int
	received  int
	// ch is buffered for every allowed chunk plus the terminating StreamEnd,
	// so Respond never blocks.
	ch chan interface{}
}

// A Dispatcher multiplexes concurrent requests to multiple peers. Only one
// request per peer and protocol can be in flight at a time. Responses are
// streamed back chunk by chunk through Respond and terminated by a StreamEnd.
// NOTE: It is not the responsibility of the dispatcher to verify blocks or
// sidecars, only that each chunk has the type the protocol calls for.
type Dispatcher struct {
	logger  log.Logger
	sender  Sender
	metrics *Metrics

	mtx sync.Mutex
	// all pending calls that have been dispatched and are awaiting an answer
	calls  map[callKey]*call
	closed bool
}

var _ BeaconNode = (*Dispatcher)(nil)

// NewDispatcher returns a dispatcher sending its requests through sender.
func NewDispatcher(logger log.Logger, sender Sender, metrics *Metrics) *Dispatcher {
	if metrics == nil {
		metrics = NopMetrics()
	}
	return &Dispatcher{
		logger:  logger,
		sender:  sender,
		metrics: metrics,
		calls:   make(map[callKey]*call),
	}
}

// BeaconBlocksByRange implements BeaconNode.
func (d *Dispatcher) BeaconBlocksByRange(
	ctx context.Context,
	peer types.NodeID,
	req BlocksByRangeRequest,
) ([]*types.SignedBeaconBlock, error) {
	if err := req.ValidateBasic(); err != nil {
		return nil, err
	}
	chunks, err := d.request(ctx, peer, ProtocolBeaconBlocksByRange, req, int(req.Count))
	if err != nil {
		return nil, err
	}
	return toBlocks(chunks), nil
}

// BlobSidecarsByRange implements BeaconNode.
func (d *Dispatcher) BlobSidecarsByRange(
	ctx context.Context,
	peer types.NodeID,
	req BlobSidecarsByRangeRequest,
) ([]*types.BlobSidecar, error) {
	if err := req.ValidateBasic(); err != nil {
		return nil, err
	}
	chunks, err := d.request(ctx, peer, ProtocolBlobSidecarsByRange, req, req.maxChunks())
	if err != nil {
		return nil, err
	}
	return toBlobSidecars(chunks), nil
}

// BeaconBlocksByRoot implements BeaconNode.
func (d *Dispatcher) BeaconBlocksByRoot(
	ctx context.Context,
	peer types.NodeID,
	req BeaconBlocksByRootRequest,
) ([]*types.SignedBeaconBlock, error) {
	if err := req.ValidateBasic(); err != nil {
		return nil, err
	}
	chunks, err := d.request(ctx, peer, ProtocolBeaconBlocksByRoot, req, len(req))
	if err != nil {
		return nil, err
	}
	return toBlocks(chunks), nil
}

// BlobSidecarsByRoot implements BeaconNode.
func (d *Dispatcher) BlobSidecarsByRoot(
	ctx context.Context,
	peer types.NodeID,
	req BlobSidecarsByRootRequest,
) ([]*types.BlobSidecar, error) {
	if err := req.ValidateBasic(); err != nil {
		return nil, err
	}
	chunks, err := d.request(ctx, peer, ProtocolBlobSidecarsByRoot, req, len(req))
	if err != nil {
		return nil, err
	}
	return toBlobSidecars(chunks), nil
}

// request sends req to peer and collects the streamed response.
func (d *Dispatcher) request(
	ctx context.Context,
	peer types.NodeID,
	protocol Protocol,
	req interface{},
	maxChunks int,
) ([]interface{}, error) {
	if err := peer.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrMalformedRequest, err)
	}
	if maxChunks == 0 {
		return nil, nil
	}

	key := callKey{peer: peer, protocol: protocol}
	c, err := d.dispatch(ctx, key, req, maxChunks)
	if err != nil {
		return nil, err
	}
	d.metrics.Requests.With("protocol", string(protocol)).Add(1)

	// clean up the call after a response is returned
	defer d.release(key, c)

	chunks, err := d.await(ctx, c)
	if err != nil {
		d.metrics.RequestErrors.With("protocol", string(protocol)).Add(1)
		d.logger.Debug("request failed", "peer", peer, "protocol", protocol, "err", err)
		return nil, err
	}
	d.metrics.ResponseChunks.With("protocol", string(protocol)).Add(float64(len(chunks)))
	return chunks, nil
}

// dispatch allocates a call for key so long as the peer is not already busy
// with the same protocol and the dispatcher is still running. It then sends
// the request.
func (d *Dispatcher) dispatch(ctx context.Context, key callKey, req interface{}, maxChunks int) (*call, error) {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	if d.closed {
		return nil, errDisconnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, ok := d.calls[key]; ok {
		return nil, errPeerAlreadyBusy
	}

	c := &call{maxChunks: maxChunks, ch: make(chan interface{}, maxChunks+1)}
	d.calls[key] = c

	if err := d.sender.Send(ctx, Envelope{
		To:       key.peer,
		Protocol: key.protocol,
		Message:  req,
	}); err != nil {
		delete(d.calls, key)
		return nil, err
	}
	return c, nil
}

func (d *Dispatcher) await(ctx context.Context, c *call) ([]interface{}, error) {
	var chunks []interface{}
	for {
		select {
		case msg, ok := <-c.ch:
			if !ok {
				return nil, errDisconnected
			}
			if end, ok := msg.(StreamEnd); ok {
				if end.Err != nil {
					return nil, end.Err
				}
				return chunks, nil
			}
			chunks = append(chunks, msg)

		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (d *Dispatcher) release(key callKey, c *call) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if current, ok := d.calls[key]; ok && current == c {
		delete(d.calls, key)
	}
}

// Respond passes a response chunk received from peer to the pending call for
// protocol. msg is a *types.SignedBeaconBlock or *types.BlobSidecar matching
// the protocol, or a StreamEnd. A stream that exceeds the request's chunk
// limit or carries the wrong message type is terminated with an error, which
// is also returned so the caller can penalize the peer.
func (d *Dispatcher) Respond(peer types.NodeID, protocol Protocol, msg interface{}) error {
	if err := peer.Validate(); err != nil {
		return err
	}

	d.mtx.Lock()
	defer d.mtx.Unlock()

	key := callKey{peer: peer, protocol: protocol}
	c, ok := d.calls[key]
	if !ok {
		// this can also happen if the response came in after the timeout
		return errUnsolicitedResponse
	}

	if _, ok := msg.(StreamEnd); ok {
		d.finish(key, c, msg)
		return nil
	}

	var err error
	switch {
	case !chunkMatchesProtocol(protocol, msg):
		err = ErrUnexpectedChunk{Peer: peer, Protocol: protocol, Message: msg}
	case c.received >= c.maxChunks:
		err = ErrTooManyChunks{Peer: peer, Protocol: protocol, Max: c.maxChunks}
	}
	if err != nil {
		d.finish(key, c, StreamEnd{Err: err})
		return err
	}

	c.received++
	c.ch <- msg
	return nil
}

// finish delivers the final message of a call and forgets it. d.mtx must be
// held.
func (d *Dispatcher) finish(key callKey, c *call, end interface{}) {
	c.ch <- end
	delete(d.calls, key)
}

// Close shuts down the dispatcher. Pending calls fail with errDisconnected and
// later requests are refused.
func (d *Dispatcher) Close() {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	d.closed = true
	for key, c := range d.calls {
		delete(d.calls, key)
		close(c.ch)
	}
}

func chunkMatchesProtocol(protocol Protocol, msg interface{}) bool {
	switch protocol {
	case ProtocolBeaconBlocksByRange, ProtocolBeaconBlocksByRoot:
		b, ok := msg.(*types.SignedBeaconBlock)
		return ok && b != nil
	case ProtocolBlobSidecarsByRange, ProtocolBlobSidecarsByRoot:
		s, ok := msg.(*types.BlobSidecar)
		return ok && s != nil
	default:
		return false
	}
}

func toBlocks(chunks []interface{}) []*types.SignedBeaconBlock {
	blocks := make([]*types.SignedBeaconBlock, len(chunks))
	for i, c := range chunks {
		blocks[i] = c.(*types.SignedBeaconBlock)
	}
	return blocks
}

func toBlobSidecars(chunks []interface{}) []*types.BlobSidecar {
	sidecars := make([]*types.BlobSidecar, len(chunks))
	for i, c := range chunks {
		sidecars[i] = c.(*types.BlobSidecar)
	}
	return sidecars
}
