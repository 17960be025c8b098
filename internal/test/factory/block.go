package factory

import (
	"encoding/binary"

	"github.com/tendermint/dasync/types"
)

// DenebForkEpoch is the Deneb fork epoch of ForkSchedule.
const DenebForkEpoch types.Epoch = 10

// DenebForkSlot is the first post-Deneb slot of ForkSchedule.
var DenebForkSlot = types.ComputeStartSlotAtEpoch(DenebForkEpoch)

// ForkSchedule returns a schedule with every fork in the first few epochs so
// tests can cross the Deneb boundary quickly.
func ForkSchedule() types.ForkSchedule {
	return types.ForkSchedule{
		AltairForkEpoch:    1,
		BellatrixForkEpoch: 2,
		CapellaForkEpoch:   3,
		DenebForkEpoch:     DenebForkEpoch,
	}
}

// MakeCommitment returns a deterministic commitment for the blob at index of
// the block at slot.
func MakeCommitment(slot types.Slot, index int) types.KZGCommitment {
	var c types.KZGCommitment
	binary.BigEndian.PutUint64(c[:8], uint64(slot))
	c[8] = byte(index)
	c[types.KZGCommitmentLength-1] = 0xda
	return c
}

// MakeBlock returns a block at slot declaring the given number of blob
// commitments.
func MakeBlock(slot types.Slot, blobs int) *types.SignedBeaconBlock {
	return MakeBlockWithParent(slot, blobs, types.Root{})
}

// MakeBlockWithParent is MakeBlock with an explicit parent root.
func MakeBlockWithParent(slot types.Slot, blobs int, parent types.Root) *types.SignedBeaconBlock {
	b := &types.SignedBeaconBlock{
		Message: types.BeaconBlock{
			Slot:          slot,
			ProposerIndex: types.ValidatorIndex(uint64(slot) % 64),
			ParentRoot:    parent,
		},
	}
	binary.BigEndian.PutUint64(b.Message.StateRoot[:8], uint64(slot))
	for i := 0; i < blobs; i++ {
		b.Message.Body.BlobKZGCommitments = append(b.Message.Body.BlobKZGCommitments, MakeCommitment(slot, i))
	}
	return b
}

// MakeChain returns consecutive blocks for slots [from, to), each linked to
// its predecessor, with blobsAt(slot) commitments each. Slots for which skip
// returns true have no block.
func MakeChain(from, to types.Slot, blobsAt func(types.Slot) int, skip func(types.Slot) bool) []*types.SignedBeaconBlock {
	var (
		blocks []*types.SignedBeaconBlock
		parent types.Root
	)
	for slot := from; slot < to; slot++ {
		if skip != nil && skip(slot) {
			continue
		}
		n := 0
		if blobsAt != nil {
			n = blobsAt(slot)
		}
		b := MakeBlockWithParent(slot, n, parent)
		parent = b.Root()
		blocks = append(blocks, b)
	}
	return blocks
}
