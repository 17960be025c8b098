package types

import (
	"errors"
	"fmt"
)

// Error kinds. Every typed error below unwraps to exactly one of them so
// callers can decide on peer penalties with errors.Is.
var (
	// ErrProtocolViolation marks data from the network that is inconsistent
	// with the commitments it is paired with. It is fatal to the current
	// input or request and should be attributed to the sending peer.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrOutOfRetentionWindow marks requests for blobs that peers are no
	// longer obligated to serve. It is benign.
	ErrOutOfRetentionWindow = errors.New("outside blob retention window")

	// ErrMalformedRequest marks a request rejected before it reached the
	// network.
	ErrMalformedRequest = errors.New("malformed request")

	// ErrInvariantViolation marks an internal inconsistency.
	ErrInvariantViolation = errors.New("internal invariant violation")
)

// ErrBlobCountMismatch is returned when the number of sidecars paired with a
// block differs from the number of commitments it declares.
type ErrBlobCountMismatch struct {
	Slot     Slot
	Expected int
	Actual   int
}

func (e ErrBlobCountMismatch) Error() string {
	return fmt.Sprintf("missing blob sidecars for block slot=%d: blobKzgCommitments=%d blobSidecars=%d",
		e.Slot, e.Expected, e.Actual)
}

func (e ErrBlobCountMismatch) Unwrap() error { return ErrProtocolViolation }

// ErrUnmatchedBlobSidecars is returned when a response contains sidecars that
// belong to no returned block.
type ErrUnmatchedBlobSidecars struct {
	Blocks          int
	Blobs           int
	LastMatchedSlot *Slot
	PendingSlots    []Slot
}

func (e ErrUnmatchedBlobSidecars) Error() string {
	last := "none"
	if e.LastMatchedSlot != nil {
		last = fmt.Sprintf("%d", *e.LastMatchedSlot)
	}
	return fmt.Sprintf("unmatched blob sidecars: blocks=%d blobs=%d lastMatchedSlot=%s pendingSlots=%v",
		e.Blocks, e.Blobs, last, e.PendingSlots)
}

func (e ErrUnmatchedBlobSidecars) Unwrap() error { return ErrProtocolViolation }

// ErrTooManyBlobSidecars is returned when more sidecars were received for a
// block than it has commitments.
type ErrTooManyBlobSidecars struct {
	BlockRoot Root
	Expected  int
	Actual    int
}

func (e ErrTooManyBlobSidecars) Error() string {
	return fmt.Sprintf("received more blobs=%d than commitments=%d for block %v",
		e.Actual, e.Expected, e.BlockRoot)
}

func (e ErrTooManyBlobSidecars) Unwrap() error { return ErrProtocolViolation }

// ErrBlobIndexOutOfRange is returned for a sidecar whose index is not covered
// by the block's commitments.
type ErrBlobIndexOutOfRange struct {
	BlockRoot Root
	Index     uint64
	Expected  int
}

func (e ErrBlobIndexOutOfRange) Error() string {
	return fmt.Sprintf("blob sidecar index %d out of range for block %v with %d commitments",
		e.Index, e.BlockRoot, e.Expected)
}

func (e ErrBlobIndexOutOfRange) Unwrap() error { return ErrProtocolViolation }

// ErrConflictingBlobSidecar is returned when a sidecar arrives for an index
// that already holds a different sidecar.
type ErrConflictingBlobSidecar struct {
	BlockRoot Root
	Index     uint64
}

func (e ErrConflictingBlobSidecar) Error() string {
	return fmt.Sprintf("conflicting blob sidecar for block %v index %d", e.BlockRoot, e.Index)
}

func (e ErrConflictingBlobSidecar) Unwrap() error { return ErrProtocolViolation }

// ErrBlobSidecarMismatch is returned when a sidecar does not describe the
// block it is paired with.
type ErrBlobSidecarMismatch struct {
	BlockRoot Root
	Index     uint64
	Reason    string
}

func (e ErrBlobSidecarMismatch) Error() string {
	return fmt.Sprintf("blob sidecar %d does not match block %v: %s", e.Index, e.BlockRoot, e.Reason)
}

func (e ErrBlobSidecarMismatch) Unwrap() error { return ErrProtocolViolation }

// ErrCommitmentMismatch is returned when a sidecar's commitment differs from
// the commitment the block declares at the same index.
type ErrCommitmentMismatch struct {
	BlockRoot Root
	Index     uint64
	Expected  KZGCommitment
	Actual    KZGCommitment
}

func (e ErrCommitmentMismatch) Error() string {
	return fmt.Sprintf("blob sidecar %d of block %v has commitment %v, block declares %v",
		e.Index, e.BlockRoot, e.Actual, e.Expected)
}

func (e ErrCommitmentMismatch) Unwrap() error { return ErrProtocolViolation }

// ErrWrongForkInput is returned when a block input variant is constructed for
// a slot of the wrong protocol version.
type ErrWrongForkInput struct {
	Slot Slot
	Fork ForkSeq
	Want BlockInputType
}

func (e ErrWrongForkInput) Error() string {
	return fmt.Sprintf("cannot build %v block input for slot %d at fork %v", e.Want, e.Slot, e.Fork)
}

func (e ErrWrongForkInput) Unwrap() error { return ErrProtocolViolation }

// ErrMissingBlobSidecar is returned when the sidecar count matched the
// commitments but an index is absent.
type ErrMissingBlobSidecar struct {
	BlockRoot Root
	Index     int
}

func (e ErrMissingBlobSidecar) Error() string {
	return fmt.Sprintf("missing blob sidecar %d for block %v", e.Index, e.BlockRoot)
}

func (e ErrMissingBlobSidecar) Unwrap() error { return ErrInvariantViolation }

// ErrOutsideRetentionWindow is returned for by-range requests of post-Deneb
// slots that are older than the blob retention window.
type ErrOutsideRetentionWindow struct {
	StartEpoch   Epoch
	CurrentEpoch Epoch
	MinEpochs    Epoch
}

func (e ErrOutsideRetentionWindow) Error() string {
	return fmt.Sprintf("cannot sync blobs outside of blobs prune window: startEpoch=%d currentEpoch=%d minEpochs=%d",
		e.StartEpoch, e.CurrentEpoch, e.MinEpochs)
}

func (e ErrOutsideRetentionWindow) Unwrap() error { return ErrOutOfRetentionWindow }

// ErrCrossEpochRange is returned for by-range requests spanning two epochs.
type ErrCrossEpochRange struct {
	StartEpoch Epoch
	EndEpoch   Epoch
}

func (e ErrCrossEpochRange) Error() string {
	return fmt.Sprintf("blocks by range request must be in the same epoch startEpoch=%d != endEpoch=%d",
		e.StartEpoch, e.EndEpoch)
}

func (e ErrCrossEpochRange) Unwrap() error { return ErrMalformedRequest }

// IsProtocolViolation reports whether err should be attributed to the peer
// that supplied the data.
func IsProtocolViolation(err error) bool {
	return errors.Is(err, ErrProtocolViolation)
}
