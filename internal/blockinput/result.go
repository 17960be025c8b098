package blockinput

import (
	"github.com/tendermint/dasync/types"
)

// GossipedInput is a single block or blob sidecar received over gossip.
// Construct one with BlockGossip or BlobGossip.
type GossipedInput interface {
	gossipedInput()
}

type blockGossip struct {
	block *types.SignedBeaconBlock
}

type blobGossip struct {
	sidecar *types.BlobSidecar
}

func (blockGossip) gossipedInput() {}
func (blobGossip) gossipedInput()  {}

// BlockGossip wraps a gossiped block.
func BlockGossip(block *types.SignedBeaconBlock) GossipedInput {
	return blockGossip{block: block}
}

// BlobGossip wraps a gossiped blob sidecar.
func BlobGossip(sidecar *types.BlobSidecar) GossipedInput {
	return blobGossip{sidecar: sidecar}
}

// IngestResult is the state of a block's assembly after a gossip message has
// been applied. It is one of *Completed, *AwaitingBlock or *AwaitingBlobs.
type IngestResult interface {
	ingestResult()
}

// Completed is returned when every piece of a block input is present. The
// pending assembly has been removed from the cache.
type Completed struct {
	Input         types.BlockInput
	HaveBlobs     int
	ExpectedBlobs int
}

// AwaitingBlock is returned when sidecars are held for a block that has not
// arrived yet.
type AwaitingBlock struct {
	HaveBlobs int
}

// AwaitingBlobs is returned when the block is known but some of its sidecars
// are missing.
type AwaitingBlobs struct {
	HaveBlobs     int
	ExpectedBlobs int
}

func (*Completed) ingestResult()     {}
func (*AwaitingBlock) ingestResult() {}
func (*AwaitingBlobs) ingestResult() {}
