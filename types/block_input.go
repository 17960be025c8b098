package types

import (
	"fmt"
)

// BlockInputType distinguishes the variants of BlockInput.
type BlockInputType int

const (
	BlockInputPreDeneb BlockInputType = iota
	BlockInputPostDeneb
)

func (t BlockInputType) String() string {
	switch t {
	case BlockInputPreDeneb:
		return "preDeneb"
	case BlockInputPostDeneb:
		return "postDeneb"
	default:
		return fmt.Sprintf("BlockInputType(%d)", int(t))
	}
}

// BlockSource records where a block input was assembled.
type BlockSource int

const (
	BlockSourceGossip BlockSource = iota
	BlockSourceByRange
	BlockSourceByRoot
)

func (s BlockSource) String() string {
	switch s {
	case BlockSourceGossip:
		return "gossip"
	case BlockSourceByRange:
		return "range"
	case BlockSourceByRoot:
		return "root"
	default:
		return fmt.Sprintf("BlockSource(%d)", int(s))
	}
}

// BlockInput is a block paired with every sidecar its protocol version
// requires. It is either a *PreDenebBlockInput or a *PostDenebBlockInput.
type BlockInput interface {
	Type() BlockInputType
	Block() *SignedBeaconBlock
	Source() BlockSource

	blockInput()
}

// PreDenebBlockInput is a block of a version that carries no blobs.
type PreDenebBlockInput struct {
	block  *SignedBeaconBlock
	source BlockSource
}

var _ BlockInput = (*PreDenebBlockInput)(nil)

// NewPreDenebBlockInput wraps a block whose slot is before the Deneb fork.
func NewPreDenebBlockInput(fs ForkSchedule, block *SignedBeaconBlock, source BlockSource) (*PreDenebBlockInput, error) {
	slot := block.Slot()
	if fork := fs.ForkSeqAtSlot(slot); fork >= ForkDeneb {
		return nil, ErrWrongForkInput{Slot: slot, Fork: fork, Want: BlockInputPreDeneb}
	}
	return &PreDenebBlockInput{block: block, source: source}, nil
}

func (*PreDenebBlockInput) Type() BlockInputType        { return BlockInputPreDeneb }
func (b *PreDenebBlockInput) Block() *SignedBeaconBlock { return b.block }
func (b *PreDenebBlockInput) Source() BlockSource       { return b.source }
func (*PreDenebBlockInput) blockInput()                 {}

// PostDenebBlockInput is a block together with its blob sidecars, ordered by
// index. A block without commitments has no sidecars.
type PostDenebBlockInput struct {
	block  *SignedBeaconBlock
	blobs  []*BlobSidecar
	source BlockSource
}

var _ BlockInput = (*PostDenebBlockInput)(nil)

// NewPostDenebBlockInput pairs a block at or after the Deneb fork with its
// sidecars. The number of sidecars must equal the number of commitments the
// block declares.
func NewPostDenebBlockInput(
	fs ForkSchedule,
	block *SignedBeaconBlock,
	blobs []*BlobSidecar,
	source BlockSource,
) (*PostDenebBlockInput, error) {
	slot := block.Slot()
	if fork := fs.ForkSeqAtSlot(slot); fork < ForkDeneb {
		return nil, ErrWrongForkInput{Slot: slot, Fork: fork, Want: BlockInputPostDeneb}
	}
	if expected := len(block.Commitments()); expected != len(blobs) {
		return nil, ErrBlobCountMismatch{Slot: slot, Expected: expected, Actual: len(blobs)}
	}
	return &PostDenebBlockInput{block: block, blobs: blobs, source: source}, nil
}

func (*PostDenebBlockInput) Type() BlockInputType        { return BlockInputPostDeneb }
func (b *PostDenebBlockInput) Block() *SignedBeaconBlock { return b.block }
func (b *PostDenebBlockInput) Source() BlockSource       { return b.source }
func (*PostDenebBlockInput) blockInput()                 {}

// Blobs returns the sidecars, ordered by index.
func (b *PostDenebBlockInput) Blobs() []*BlobSidecar { return b.blobs }

// ValidateBlobSidecars checks that blobs describe the block with the given
// root: one sidecar per commitment, in index order, each carrying the block's
// root, slot, parent and the commitment the block declares at its index.
func ValidateBlobSidecars(root Root, block *SignedBeaconBlock, blobs []*BlobSidecar) error {
	commitments := block.Commitments()
	if len(blobs) != len(commitments) {
		return ErrBlobCountMismatch{Slot: block.Slot(), Expected: len(commitments), Actual: len(blobs)}
	}

	for i, blob := range blobs {
		switch {
		case blob.Index != uint64(i):
			return ErrBlobSidecarMismatch{BlockRoot: root, Index: blob.Index,
				Reason: fmt.Sprintf("expected index %d", i)}
		case blob.BlockRoot != root:
			return ErrBlobSidecarMismatch{BlockRoot: root, Index: blob.Index,
				Reason: fmt.Sprintf("block root %v", blob.BlockRoot)}
		case blob.Slot != block.Slot():
			return ErrBlobSidecarMismatch{BlockRoot: root, Index: blob.Index,
				Reason: fmt.Sprintf("slot %d, block slot %d", blob.Slot, block.Slot())}
		case blob.BlockParentRoot != block.Message.ParentRoot:
			return ErrBlobSidecarMismatch{BlockRoot: root, Index: blob.Index,
				Reason: fmt.Sprintf("parent root %v", blob.BlockParentRoot)}
		case blob.KZGCommitment != commitments[i]:
			return ErrCommitmentMismatch{BlockRoot: root, Index: blob.Index,
				Expected: commitments[i], Actual: blob.KZGCommitment}
		}
	}
	return nil
}
