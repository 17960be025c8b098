package reqresp

import (
	"fmt"

	"github.com/tendermint/dasync/types"
)

// Protocol identifies a request/response protocol.
type Protocol string

const (
	ProtocolBeaconBlocksByRange Protocol = "/eth2/beacon_chain/req/beacon_blocks_by_range/2"
	ProtocolBeaconBlocksByRoot  Protocol = "/eth2/beacon_chain/req/beacon_blocks_by_root/2"
	ProtocolBlobSidecarsByRange Protocol = "/eth2/beacon_chain/req/blob_sidecars_by_range/1"
	ProtocolBlobSidecarsByRoot  Protocol = "/eth2/beacon_chain/req/blob_sidecars_by_root/1"
)

// BlocksByRangeRequest asks for the blocks of Count consecutive slots starting
// at StartSlot. The same request shape is used for blob sidecars.
type BlocksByRangeRequest struct {
	StartSlot types.Slot
	Count     uint64
}

// EndSlot returns the last slot covered by the request. It must not be
// called on an empty request.
func (r BlocksByRangeRequest) EndSlot() types.Slot {
	return r.StartSlot + types.Slot(r.Count) - 1
}

// ValidateBasic performs stateless checks on the request.
func (r BlocksByRangeRequest) ValidateBasic() error {
	if r.Count > types.MaxRequestBlocksDeneb {
		return fmt.Errorf("%w: count %d exceeds max %d", types.ErrMalformedRequest, r.Count, types.MaxRequestBlocksDeneb)
	}
	if r.Count > 0 && r.EndSlot() < r.StartSlot {
		return fmt.Errorf("%w: range starting at %d overflows", types.ErrMalformedRequest, r.StartSlot)
	}
	return nil
}

// BlobSidecarsByRangeRequest asks for the blob sidecars of a slot range.
type BlobSidecarsByRangeRequest BlocksByRangeRequest

// ValidateBasic performs stateless checks on the request.
func (r BlobSidecarsByRangeRequest) ValidateBasic() error {
	if err := BlocksByRangeRequest(r).ValidateBasic(); err != nil {
		return err
	}
	if r.Count*types.MaxBlobsPerBlock > types.MaxRequestBlobSidecars {
		return fmt.Errorf("%w: %d slots may yield more than %d blob sidecars",
			types.ErrMalformedRequest, r.Count, types.MaxRequestBlobSidecars)
	}
	return nil
}

// maxChunks is the largest number of sidecars a peer may return.
func (r BlobSidecarsByRangeRequest) maxChunks() int {
	return int(r.Count) * types.MaxBlobsPerBlock
}

// BeaconBlocksByRootRequest asks for blocks by root.
type BeaconBlocksByRootRequest []types.Root

// ValidateBasic performs stateless checks on the request.
func (r BeaconBlocksByRootRequest) ValidateBasic() error {
	if len(r) > types.MaxRequestBlocks {
		return fmt.Errorf("%w: %d roots exceeds max %d", types.ErrMalformedRequest, len(r), types.MaxRequestBlocks)
	}
	return nil
}

// BlobSidecarsByRootRequest asks for blob sidecars by identifier.
type BlobSidecarsByRootRequest []types.BlobIdentifier

// ValidateBasic performs stateless checks on the request.
func (r BlobSidecarsByRootRequest) ValidateBasic() error {
	if len(r) > types.MaxRequestBlobSidecars {
		return fmt.Errorf("%w: %d blob identifiers exceeds max %d",
			types.ErrMalformedRequest, len(r), types.MaxRequestBlobSidecars)
	}
	return nil
}

// StreamEnd terminates a response stream. A non-nil Err reports that the peer
// answered with an error.
type StreamEnd struct {
	Err error
}

// Envelope is a message exchanged with a peer. Requests carry one of the
// request types above; responses carry a *types.SignedBeaconBlock, a
// *types.BlobSidecar or a StreamEnd.
type Envelope struct {
	From     types.NodeID
	To       types.NodeID
	Protocol Protocol
	Message  interface{}
}
