package commands

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tendermint/dasync/config"
	"github.com/tendermint/dasync/crypto/kzg"
	"github.com/tendermint/dasync/internal/store"
	"github.com/tendermint/dasync/libs/log"
	"github.com/tendermint/dasync/node"
	"github.com/tendermint/dasync/types"
)

func openBlobStore(conf *config.Config) (*store.BlobStore, error) {
	db, err := config.DefaultDBProvider(&config.DBContext{ID: node.BlobStoreDBID, Config: conf})
	if err != nil {
		return nil, fmt.Errorf("opening blob store: %w", err)
	}
	return store.NewBlobStore(db), nil
}

// blobSummary is the printed form of a stored sidecar. Blobs themselves are
// too large to print.
type blobSummary struct {
	BlockRoot     string `json:"block_root"`
	Slot          uint64 `json:"slot"`
	Index         uint64 `json:"index"`
	KZGCommitment string `json:"kzg_commitment"`
	VersionedHash string `json:"versioned_hash"`
	BlobSize      int    `json:"blob_size"`
}

func summarize(sidecars []*types.BlobSidecar) []blobSummary {
	out := make([]blobSummary, 0, len(sidecars))
	for _, s := range sidecars {
		out = append(out, blobSummary{
			BlockRoot:     s.BlockRoot.String(),
			Slot:          uint64(s.Slot),
			Index:         s.Index,
			KZGCommitment: s.KZGCommitment.String(),
			VersionedHash: kzg.KZGCommitmentToVersionedHash(s.KZGCommitment).String(),
			BlobSize:      len(s.Blob),
		})
	}
	return out
}

// MakeInspectCommand returns the command that reads the local stores.
func MakeInspectCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Read data from the local stores",
	}
	cmd.AddCommand(makeInspectBlobsCommand(conf, logger))
	return cmd
}

func makeInspectBlobsCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	var (
		rootHex string
		slot    uint64
	)
	cmd := &cobra.Command{
		Use:   "blobs",
		Short: "Print the blob sidecars stored for a block",
		Long: `Print the blob sidecars stored for a block.

Recent blocks are looked up by --root, finalized ones by --slot.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			bySlot := cmd.Flags().Changed("slot")
			if (rootHex == "") == !bySlot {
				return errors.New("exactly one of --root and --slot must be set")
			}

			bs, err := openBlobStore(conf)
			if err != nil {
				return err
			}
			defer bs.Close()

			var sidecars []*types.BlobSidecar
			if bySlot {
				sidecars, err = bs.BlobSidecarsBySlot(types.Slot(slot))
			} else {
				root, perr := types.RootFromHex(rootHex)
				if perr != nil {
					return perr
				}
				sidecars, err = bs.BlobSidecarsByRoot(root)
			}
			if err != nil {
				return err
			}
			logger.Debug("read blob sidecars", "count", len(sidecars))

			bz, err := json.MarshalIndent(summarize(sidecars), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(bz))
			return nil
		},
	}
	cmd.Flags().StringVar(&rootHex, "root", "", "hex encoded root of a recent block")
	cmd.Flags().Uint64Var(&slot, "slot", 0, "slot of a finalized block")
	return cmd
}
