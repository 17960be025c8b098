package store

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/google/orderedcode"
	dbm "github.com/tendermint/tm-db"

	"github.com/tendermint/dasync/types"
)

/*
BlobStore is a simple low level store for blob sidecars.

There are two kinds of entries:
  - Hot:     the sidecars of a recent block, keyed by block root. Blocks that
             may still be reorged out live here.
  - Archive: the sidecars of a finalized block, keyed by slot.

Both hold the complete, index ordered list of sidecars of one block. Blocks
without blobs have no entry.
*/
type BlobStore struct {
	db dbm.DB
}

// NewBlobStore returns a BlobStore backed by db.
func NewBlobStore(db dbm.DB) *BlobStore {
	return &BlobStore{db: db}
}

// SaveBlobSidecars persists the sidecars of the block with the given root in
// the hot bucket. The sidecars must all belong to that block.
func (bs *BlobStore) SaveBlobSidecars(root types.Root, sidecars []*types.BlobSidecar) error {
	if len(sidecars) == 0 {
		return nil
	}
	for _, s := range sidecars {
		if s.BlockRoot != root {
			return fmt.Errorf("blob sidecar %d belongs to block %v, not %v", s.Index, s.BlockRoot, root)
		}
	}
	return bs.db.SetSync(hotKey(root), types.BlobSidecarsMarshal(sidecars))
}

// BlobSidecarsByRoot returns the hot sidecars of a block, or nil if there are
// none.
func (bs *BlobStore) BlobSidecarsByRoot(root types.Root) ([]*types.BlobSidecar, error) {
	return bs.load(hotKey(root))
}

// BlobSidecarsBySlot returns the archived sidecars of the block at slot, or
// nil if there are none.
func (bs *BlobStore) BlobSidecarsBySlot(slot types.Slot) ([]*types.BlobSidecar, error) {
	return bs.load(archiveKey(slot))
}

func (bs *BlobStore) load(key []byte) ([]*types.BlobSidecar, error) {
	bz, err := bs.db.Get(key)
	if err != nil {
		return nil, err
	}
	if len(bz) == 0 {
		return nil, nil
	}
	sidecars, err := types.BlobSidecarsUnmarshal(bz)
	if err != nil {
		return nil, fmt.Errorf("corrupted blob sidecars at key %X: %w", key, err)
	}
	return sidecars, nil
}

// ArchiveBlobSidecars moves the hot sidecars of a finalized block to the
// archive. It reports whether there was anything to move.
func (bs *BlobStore) ArchiveBlobSidecars(root types.Root) (bool, error) {
	sidecars, err := bs.BlobSidecarsByRoot(root)
	if err != nil || len(sidecars) == 0 {
		return false, err
	}

	batch := bs.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(archiveKey(sidecars[0].Slot), types.BlobSidecarsMarshal(sidecars)); err != nil {
		return false, err
	}
	if err := batch.Delete(hotKey(root)); err != nil {
		return false, err
	}
	if err := batch.WriteSync(); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteBlobSidecars removes the hot sidecars of a block, typically one that
// was orphaned.
func (bs *BlobStore) DeleteBlobSidecars(root types.Root) error {
	return bs.db.DeleteSync(hotKey(root))
}

// ArchiveBase returns the first archived slot and true, or false if the
// archive is empty.
func (bs *BlobStore) ArchiveBase() (types.Slot, bool, error) {
	iter, err := bs.db.Iterator(archiveKey(0), archiveKey(math.MaxUint64))
	if err != nil {
		return 0, false, err
	}
	defer iter.Close()

	if iter.Valid() {
		slot, err := decodeArchiveKey(iter.Key())
		if err != nil {
			return 0, false, err
		}
		return slot, true, nil
	}
	return 0, false, iter.Error()
}

// PruneArchive removes archived sidecars up to (but not including) a slot. It
// returns the number of blocks whose sidecars were pruned.
func (bs *BlobStore) PruneArchive(before types.Slot) (uint64, error) {
	if before == 0 {
		return 0, errors.New("slot must be greater than 0")
	}
	return bs.pruneRange(archiveKey(0), archiveKey(before))
}

// RetentionStartSlot returns the first slot whose sidecars must be kept when
// the clock is at currentEpoch.
func RetentionStartSlot(currentEpoch, minEpochs types.Epoch) types.Slot {
	if currentEpoch <= minEpochs {
		return 0
	}
	return types.ComputeStartSlotAtEpoch(currentEpoch - minEpochs)
}

// pruneRange deletes every key in [start, end), using batches of at most
// 1000 keys.
func (bs *BlobStore) pruneRange(start, end []byte) (uint64, error) {
	var (
		err         error
		pruned      uint64
		totalPruned uint64
	)

	batch := bs.db.NewBatch()
	defer batch.Close()

	pruned, start, err = bs.batchDelete(batch, start, end)
	if err != nil {
		return totalPruned, err
	}

	// loop until we have finished iterating over all the keys by writing, opening a new batch
	// and incrementing through the next range of keys.
	for !bytes.Equal(start, end) {
		if err := batch.Write(); err != nil {
			return totalPruned, err
		}

		totalPruned += pruned

		if err := batch.Close(); err != nil {
			return totalPruned, err
		}

		batch = bs.db.NewBatch()

		pruned, start, err = bs.batchDelete(batch, start, end)
		if err != nil {
			return totalPruned, err
		}
	}

	if err := batch.WriteSync(); err != nil {
		return totalPruned, err
	}
	totalPruned += pruned
	return totalPruned, nil
}

// batchDelete adds the keys in [start, end) to batch until 1000 keys have
// been added or the range is exhausted. It returns the key to resume from.
func (bs *BlobStore) batchDelete(batch dbm.Batch, start, end []byte) (uint64, []byte, error) {
	var pruned uint64
	iter, err := bs.db.Iterator(start, end)
	if err != nil {
		return pruned, start, err
	}
	defer iter.Close()

	for ; iter.Valid(); iter.Next() {
		if err := batch.Delete(iter.Key()); err != nil {
			return 0, start, fmt.Errorf("pruning error at key %X: %w", iter.Key(), err)
		}

		pruned++
		if pruned == 1000 {
			// resume after this key
			iter.Next()
			if !iter.Valid() {
				return pruned, end, iter.Error()
			}
			return pruned, append([]byte(nil), iter.Key()...), iter.Error()
		}
	}

	return pruned, end, iter.Error()
}

// Close closes the underlying database.
func (bs *BlobStore) Close() error {
	return bs.db.Close()
}

//---------------------------------- KEY ENCODING -----------------------------------------

// key prefixes
const (
	prefixHotBlobSidecars     = int64(0)
	prefixArchiveBlobSidecars = int64(1)
)

func hotKey(root types.Root) []byte {
	key, err := orderedcode.Append(nil, prefixHotBlobSidecars, string(root[:]))
	if err != nil {
		panic(err)
	}
	return key
}

func archiveKey(slot types.Slot) []byte {
	key, err := orderedcode.Append(nil, prefixArchiveBlobSidecars, uint64(slot))
	if err != nil {
		panic(err)
	}
	return key
}

func decodeArchiveKey(key []byte) (types.Slot, error) {
	var (
		prefix int64
		slot   uint64
	)
	remaining, err := orderedcode.Parse(string(key), &prefix, &slot)
	if err != nil {
		return 0, err
	}
	if len(remaining) != 0 {
		return 0, fmt.Errorf("expected complete key but got remainder: %s", remaining)
	}
	if prefix != prefixArchiveBlobSidecars {
		return 0, fmt.Errorf("incorrect prefix. Expected %v, got %v", prefixArchiveBlobSidecars, prefix)
	}
	return types.Slot(slot), nil
}
