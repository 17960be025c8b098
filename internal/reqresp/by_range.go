package reqresp

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/tendermint/dasync/types"
)

// BlocksMaybeBlobsByRange fetches the blocks of a slot range from peer,
// together with their blob sidecars when the range is post-Deneb.
//
// The range must lie within a single epoch. Ranges before the Deneb fork only
// fetch blocks. Post-Deneb ranges older than the retention window fail with
// ErrOutsideRetentionWindow before anything is sent, since peers no longer
// serve their sidecars. Otherwise blocks and sidecars are fetched concurrently
// and matched; the first failure cancels the other request and nothing is
// returned.
func BlocksMaybeBlobsByRange(
	ctx context.Context,
	fs types.ForkSchedule,
	minEpochs types.Epoch,
	node BeaconNode,
	peer types.NodeID,
	req BlocksByRangeRequest,
	currentEpoch types.Epoch,
) ([]types.BlockInput, error) {
	if req.Count < 1 {
		return []types.BlockInput{}, nil
	}
	if err := req.ValidateBasic(); err != nil {
		return nil, err
	}

	endSlot := req.EndSlot()
	startEpoch := types.ComputeEpochAtSlot(req.StartSlot)
	if endEpoch := types.ComputeEpochAtSlot(endSlot); startEpoch != endEpoch {
		return nil, types.ErrCrossEpochRange{StartEpoch: startEpoch, EndEpoch: endEpoch}
	}

	if !fs.IsPostDeneb(req.StartSlot) {
		blocks, err := node.BeaconBlocksByRange(ctx, peer, req)
		if err != nil {
			return nil, err
		}
		inputs := make([]types.BlockInput, 0, len(blocks))
		for _, block := range blocks {
			input, err := types.NewPreDenebBlockInput(fs, block, types.BlockSourceByRange)
			if err != nil {
				return nil, err
			}
			inputs = append(inputs, input)
		}
		return inputs, nil
	}

	clockSlot := types.ComputeStartSlotAtEpoch(currentEpoch)
	if !types.RequiresBlobs(fs, req.StartSlot, clockSlot, minEpochs) {
		return nil, types.ErrOutsideRetentionWindow{
			StartEpoch:   startEpoch,
			CurrentEpoch: currentEpoch,
			MinEpochs:    minEpochs,
		}
	}

	var (
		blocks   []*types.SignedBeaconBlock
		sidecars []*types.BlobSidecar
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		blocks, err = node.BeaconBlocksByRange(gctx, peer, req)
		return err
	})
	g.Go(func() (err error) {
		sidecars, err = node.BlobSidecarsByRange(gctx, peer, BlobSidecarsByRangeRequest(req))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return MatchBlocksWithBlobs(fs, blocks, sidecars, endSlot, types.BlockSourceByRange)
}
