package factory

import (
	"github.com/tendermint/dasync/types"
)

// MakeBlobSidecar returns the sidecar at index of block.
func MakeBlobSidecar(block *types.SignedBeaconBlock, index int) *types.BlobSidecar {
	blob := make([]byte, types.BytesPerBlob)
	// Keep the first byte of every field element zero so the blob stays a
	// valid encoding of field elements.
	blob[1] = byte(block.Slot())
	blob[2] = byte(index)

	var proof types.KZGProof
	proof[0] = byte(index)

	return &types.BlobSidecar{
		BlockRoot:       block.Root(),
		Index:           uint64(index),
		Slot:            block.Slot(),
		BlockParentRoot: block.Message.ParentRoot,
		ProposerIndex:   block.Message.ProposerIndex,
		Blob:            blob,
		KZGCommitment:   block.Commitments()[index],
		KZGProof:        proof,
	}
}

// MakeBlobSidecars returns every sidecar of block in index order.
func MakeBlobSidecars(block *types.SignedBeaconBlock) []*types.BlobSidecar {
	sidecars := make([]*types.BlobSidecar, len(block.Commitments()))
	for i := range sidecars {
		sidecars[i] = MakeBlobSidecar(block, i)
	}
	return sidecars
}

// MakeChainBlobSidecars returns the sidecars of every block, ordered by block
// then index, the way a range response delivers them.
func MakeChainBlobSidecars(blocks []*types.SignedBeaconBlock) []*types.BlobSidecar {
	var sidecars []*types.BlobSidecar
	for _, b := range blocks {
		sidecars = append(sidecars, MakeBlobSidecars(b)...)
	}
	return sidecars
}
