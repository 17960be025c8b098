package commands

import (
	"github.com/spf13/cobra"

	"github.com/tendermint/dasync/config"
	"github.com/tendermint/dasync/internal/store"
	"github.com/tendermint/dasync/libs/log"
	"github.com/tendermint/dasync/types"
)

// MakePruneCommand returns the command that drops archived blob sidecars
// that fell out of the retention window.
func MakePruneCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	var currentEpoch uint64
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove archived blob sidecars outside the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			minEpochs := conf.DataAvailability.MinEpochsForBlobSidecarsRequests
			before := store.RetentionStartSlot(types.Epoch(currentEpoch), minEpochs)
			if before == 0 {
				logger.Info("nothing to prune: chain is younger than the retention window",
					"current_epoch", currentEpoch, "min_epochs", minEpochs)
				return nil
			}

			bs, err := openBlobStore(conf)
			if err != nil {
				return err
			}
			defer bs.Close()

			pruned, err := bs.PruneArchive(before)
			if err != nil {
				return err
			}
			logger.Info("pruned blob sidecars", "blocks", pruned, "before_slot", before)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&currentEpoch, "current-epoch", 0, "epoch of the wall clock")
	_ = cmd.MarkFlagRequired("current-epoch")
	return cmd
}
