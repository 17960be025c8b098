package reqresp

import (
	"context"

	"github.com/tendermint/dasync/types"
)

//go:generate mockery --case underscore --name BeaconNode

// BeaconNode fetches blocks and blob sidecars from a single peer. Responses
// are returned in the order the peer streamed them. Implementations do not
// retry.
type BeaconNode interface {
	BeaconBlocksByRange(ctx context.Context, peer types.NodeID, req BlocksByRangeRequest) ([]*types.SignedBeaconBlock, error)
	BlobSidecarsByRange(ctx context.Context, peer types.NodeID, req BlobSidecarsByRangeRequest) ([]*types.BlobSidecar, error)
	BeaconBlocksByRoot(ctx context.Context, peer types.NodeID, req BeaconBlocksByRootRequest) ([]*types.SignedBeaconBlock, error)
	BlobSidecarsByRoot(ctx context.Context, peer types.NodeID, req BlobSidecarsByRootRequest) ([]*types.BlobSidecar, error)
}
