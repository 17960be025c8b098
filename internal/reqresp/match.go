package reqresp

import (
	"github.com/tendermint/dasync/types"
)

// MatchBlocksWithBlobs pairs blocks with the sidecars that belong to them.
//
// Both sequences must be ordered by slot, as peers stream them; they are not
// re-sorted. Blocks without commitments are often absent from sidecar
// responses, so each post-Deneb block consumes the run of sidecars at the
// cursor that share its slot, and that run must be exactly as long as the
// block's commitment list. Sidecars left over after the last block are an
// error if any of them is at or before endSlot. Use types.UnboundedSlot to
// require every sidecar to be consumed.
func MatchBlocksWithBlobs(
	fs types.ForkSchedule,
	blocks []*types.SignedBeaconBlock,
	sidecars []*types.BlobSidecar,
	endSlot types.Slot,
	source types.BlockSource,
) ([]types.BlockInput, error) {
	var (
		inputs          = make([]types.BlockInput, 0, len(blocks))
		cursor          int
		lastMatchedSlot *types.Slot
	)

	for _, block := range blocks {
		slot := block.Slot()
		if !fs.IsPostDeneb(slot) {
			input, err := types.NewPreDenebBlockInput(fs, block, source)
			if err != nil {
				return nil, err
			}
			inputs = append(inputs, input)
			continue
		}

		start := cursor
		for cursor < len(sidecars) && sidecars[cursor].Slot == slot {
			cursor++
		}
		if cursor > start {
			matched := slot
			lastMatchedSlot = &matched
		}

		blobs := sidecars[start:cursor:cursor]
		if expected := len(block.Commitments()); expected != len(blobs) {
			return nil, types.ErrBlobCountMismatch{Slot: slot, Expected: expected, Actual: len(blobs)}
		}

		input, err := types.NewPostDenebBlockInput(fs, block, blobs, source)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, input)
	}

	// A sidecar response may run one block past the requested range when the
	// blocks at its end carry no blobs, so only sidecars within range count.
	if cursor < len(sidecars) && sidecars[cursor].Slot <= endSlot {
		pending := make([]types.Slot, 0, len(sidecars)-cursor)
		for _, s := range sidecars[cursor:] {
			pending = append(pending, s.Slot)
		}
		return nil, types.ErrUnmatchedBlobSidecars{
			Blocks:          len(blocks),
			Blobs:           len(sidecars),
			LastMatchedSlot: lastMatchedSlot,
			PendingSlots:    pending,
		}
	}

	return inputs, nil
}
