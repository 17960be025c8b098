package blockinput

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/hashicorp/golang-lru/simplelru"

	"github.com/tendermint/dasync/libs/log"
	"github.com/tendermint/dasync/types"
)

// DefaultCacheSize is the number of pending assemblies kept by default.
const DefaultCacheSize = 5

// pendingInput accumulates the pieces of one block input.
type pendingInput struct {
	block *types.SignedBeaconBlock // nil until the block arrives
	root  types.Root
	blobs map[uint64]*types.BlobSidecar
}

func (p *pendingInput) expectedBlobs() int {
	return len(p.block.Commitments())
}

// Cache pairs gossiped blocks with their gossiped blob sidecars. A sidecar
// for an unknown block evicts the oldest pending assemblies until there is
// room for one more, so sidecars alone never take the cache past size.
// Blocks create their entry without evicting; the next such sidecar brings the
// cache back within size.
//
// All methods are safe for concurrent use.
type Cache struct {
	logger   log.Logger
	schedule types.ForkSchedule
	size     int
	metrics  *Metrics

	mtx sync.Mutex
	// pending maps block roots to *pendingInput. Entries are only ever added
	// once and read with Peek, so the LRU order is insertion order. Its own
	// capacity is never reached; eviction is explicit in getOrCreate.
	pending *simplelru.LRU
}

// NewCache returns an empty cache sized for size pending assemblies.
func NewCache(logger log.Logger, schedule types.ForkSchedule, size int, metrics *Metrics) (*Cache, error) {
	if size < 1 {
		return nil, fmt.Errorf("gossip cache size must be positive, got %d", size)
	}
	pending, err := simplelru.NewLRU(math.MaxInt32, nil)
	if err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	return &Cache{
		logger:   logger,
		schedule: schedule,
		size:     size,
		metrics:  metrics,
		pending:  pending,
	}, nil
}

// Ingest applies a gossiped block or blob sidecar and reports the resulting
// state of its block's assembly. A block before the Deneb fork completes
// immediately without touching the cache.
func (c *Cache) Ingest(in GossipedInput) (IngestResult, error) {
	var (
		res IngestResult
		err error
	)
	switch in := in.(type) {
	case blockGossip:
		res, err = c.ingestBlock(in.block)
	case blobGossip:
		res, err = c.ingestBlob(in.sidecar)
	default:
		err = fmt.Errorf("unknown gossiped input %T", in)
	}

	if err != nil {
		c.metrics.IngestErrors.Add(1)
		return nil, err
	}
	if done, ok := res.(*Completed); ok {
		c.metrics.CompletedInputs.With("type", done.Input.Type().String()).Add(1)
	}
	return res, nil
}

func (c *Cache) ingestBlock(block *types.SignedBeaconBlock) (IngestResult, error) {
	if block == nil {
		return nil, errors.New("nil block")
	}
	if !c.schedule.IsPostDeneb(block.Slot()) {
		input, err := types.NewPreDenebBlockInput(c.schedule, block, types.BlockSourceGossip)
		if err != nil {
			return nil, err
		}
		return &Completed{Input: input}, nil
	}

	root := block.Root()

	c.mtx.Lock()
	defer c.mtx.Unlock()

	v, ok := c.pending.Peek(root)
	if !ok && len(block.Commitments()) == 0 {
		input, err := types.NewPostDenebBlockInput(c.schedule, block, nil, types.BlockSourceGossip)
		if err != nil {
			return nil, err
		}
		return &Completed{Input: input}, nil
	}

	var entry *pendingInput
	if ok {
		entry = v.(*pendingInput)
	} else {
		// A block names its own root, so creating its entry never evicts.
		entry = c.getOrCreate(root, false)
	}
	if entry.block == nil {
		entry.block = block
	}
	return c.evaluate(entry)
}

func (c *Cache) ingestBlob(sidecar *types.BlobSidecar) (IngestResult, error) {
	if sidecar == nil {
		return nil, errors.New("nil blob sidecar")
	}
	if fork := c.schedule.ForkSeqAtSlot(sidecar.Slot); fork < types.ForkDeneb {
		return nil, types.ErrWrongForkInput{Slot: sidecar.Slot, Fork: fork, Want: types.BlockInputPostDeneb}
	}
	if sidecar.Index >= types.MaxBlobsPerBlock {
		return nil, types.ErrBlobIndexOutOfRange{
			BlockRoot: sidecar.BlockRoot,
			Index:     sidecar.Index,
			Expected:  types.MaxBlobsPerBlock,
		}
	}

	root := sidecar.BlockRoot

	c.mtx.Lock()
	defer c.mtx.Unlock()

	entry := c.getOrCreate(root, true)
	if entry.block != nil && sidecar.Index >= uint64(entry.expectedBlobs()) {
		return nil, types.ErrBlobIndexOutOfRange{
			BlockRoot: root,
			Index:     sidecar.Index,
			Expected:  entry.expectedBlobs(),
		}
	}

	if held, ok := entry.blobs[sidecar.Index]; ok {
		if !held.Equal(sidecar) {
			return nil, types.ErrConflictingBlobSidecar{BlockRoot: root, Index: sidecar.Index}
		}
		c.logger.Debug("duplicate blob sidecar", "root", root, "index", sidecar.Index)
	} else {
		entry.blobs[sidecar.Index] = sidecar
	}
	return c.evaluate(entry)
}

// getOrCreate returns the pending assembly for root, creating it if needed.
// If evict is set, the oldest assemblies are evicted before creating so the
// new entry does not take the cache past its size. c.mtx must be held.
func (c *Cache) getOrCreate(root types.Root, evict bool) *pendingInput {
	if v, ok := c.pending.Peek(root); ok {
		return v.(*pendingInput)
	}

	for evict && c.pending.Len() >= c.size {
		key, v, ok := c.pending.RemoveOldest()
		if !ok {
			break
		}
		evicted := v.(*pendingInput)
		c.metrics.EvictedInputs.Add(1)
		c.logger.Debug("evicted pending block input",
			"root", key.(types.Root),
			"has_block", evicted.block != nil,
			"blobs", len(evicted.blobs))
	}

	entry := &pendingInput{root: root, blobs: make(map[uint64]*types.BlobSidecar)}
	c.pending.Add(root, entry)
	c.metrics.PendingInputs.Set(float64(c.pending.Len()))
	return entry
}

// remove drops the assembly for root. c.mtx must be held.
func (c *Cache) remove(root types.Root) {
	c.pending.Remove(root)
	c.metrics.PendingInputs.Set(float64(c.pending.Len()))
}

// evaluate reports the state of entry, completing and removing it once every
// sidecar is present. An entry that can never complete is removed and an
// error returned. c.mtx must be held.
func (c *Cache) evaluate(entry *pendingInput) (IngestResult, error) {
	have := len(entry.blobs)
	if entry.block == nil {
		return &AwaitingBlock{HaveBlobs: have}, nil
	}

	expected := entry.expectedBlobs()
	if have > expected {
		c.remove(entry.root)
		return nil, types.ErrTooManyBlobSidecars{BlockRoot: entry.root, Expected: expected, Actual: have}
	}
	for index := range entry.blobs {
		if index >= uint64(expected) {
			c.remove(entry.root)
			return nil, types.ErrBlobIndexOutOfRange{BlockRoot: entry.root, Index: index, Expected: expected}
		}
	}
	if have < expected {
		return &AwaitingBlobs{HaveBlobs: have, ExpectedBlobs: expected}, nil
	}

	// Every index below expected is present: the count matches and no index
	// is out of range.
	blobs := make([]*types.BlobSidecar, expected)
	for i := range blobs {
		blob, ok := entry.blobs[uint64(i)]
		if !ok {
			c.remove(entry.root)
			return nil, types.ErrMissingBlobSidecar{BlockRoot: entry.root, Index: i}
		}
		blobs[i] = blob
	}

	c.remove(entry.root)

	if err := types.ValidateBlobSidecars(entry.root, entry.block, blobs); err != nil {
		return nil, err
	}
	input, err := types.NewPostDenebBlockInput(c.schedule, entry.block, blobs, types.BlockSourceGossip)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("completed block input", "root", entry.root, "slot", entry.block.Slot(), "blobs", expected)
	return &Completed{Input: input, HaveBlobs: have, ExpectedBlobs: expected}, nil
}

// Len returns the number of pending assemblies.
func (c *Cache) Len() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.pending.Len()
}

// Has reports whether an assembly for root is pending.
func (c *Cache) Has(root types.Root) bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.pending.Contains(root)
}

// Discard drops the pending assembly for root, if any. It is used once the
// block was obtained by other means. It reports whether an entry was dropped.
func (c *Cache) Discard(root types.Root) bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if !c.pending.Contains(root) {
		return false
	}
	c.remove(root)
	return true
}
