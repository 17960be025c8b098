package reqresp

import (
	"context"

	"github.com/tendermint/dasync/types"
)

// BlocksMaybeBlobsByRoot fetches blocks by root from peer, then fetches one
// sidecar per commitment of every post-Deneb block returned and matches them.
// Every sidecar returned must belong to a returned block.
func BlocksMaybeBlobsByRoot(
	ctx context.Context,
	fs types.ForkSchedule,
	node BeaconNode,
	peer types.NodeID,
	roots BeaconBlocksByRootRequest,
) ([]types.BlockInput, error) {
	if err := roots.ValidateBasic(); err != nil {
		return nil, err
	}

	blocks, err := node.BeaconBlocksByRoot(ctx, peer, roots)
	if err != nil {
		return nil, err
	}

	ids := BlobIdentifiersForBlocks(fs, blocks)

	var sidecars []*types.BlobSidecar
	for len(ids) > 0 {
		batch := ids
		if len(batch) > types.MaxRequestBlobSidecars {
			batch = batch[:types.MaxRequestBlobSidecars]
		}
		ids = ids[len(batch):]

		resp, err := node.BlobSidecarsByRoot(ctx, peer, batch)
		if err != nil {
			return nil, err
		}
		sidecars = append(sidecars, resp...)
	}

	return MatchBlocksWithBlobs(fs, blocks, sidecars, types.UnboundedSlot, types.BlockSourceByRoot)
}

// BlobIdentifiersForBlocks lists the sidecars the post-Deneb blocks declare,
// in block order and then commitment order.
func BlobIdentifiersForBlocks(fs types.ForkSchedule, blocks []*types.SignedBeaconBlock) BlobSidecarsByRootRequest {
	var ids BlobSidecarsByRootRequest
	for _, block := range blocks {
		if !fs.IsPostDeneb(block.Slot()) {
			continue
		}
		root := block.Root()
		for i := range block.Commitments() {
			ids = append(ids, types.BlobIdentifier{BlockRoot: root, Index: uint64(i)})
		}
	}
	return ids
}
