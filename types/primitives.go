package types

import (
	"encoding/hex"
	"fmt"
	"math"
	"strings"
)

// Slot is a consensus time unit.
type Slot uint64

// Epoch is a group of SlotsPerEpoch consecutive slots.
type Epoch uint64

// ValidatorIndex identifies a validator in the registry.
type ValidatorIndex uint64

// UnboundedSlot is a slot that is never reached. It is used as the upper bound
// for matching when every received sidecar must be consumed.
const UnboundedSlot = Slot(math.MaxUint64)

// FarFutureEpoch marks a fork that is not scheduled.
const FarFutureEpoch = Epoch(math.MaxUint64)

// ComputeEpochAtSlot returns the epoch the slot belongs to.
func ComputeEpochAtSlot(slot Slot) Epoch {
	return Epoch(slot / SlotsPerEpoch)
}

// ComputeStartSlotAtEpoch returns the first slot of the epoch. Epochs whose
// start slot would overflow return UnboundedSlot.
func ComputeStartSlotAtEpoch(epoch Epoch) Slot {
	if uint64(epoch) > math.MaxUint64/SlotsPerEpoch {
		return UnboundedSlot
	}
	return Slot(epoch * SlotsPerEpoch)
}

// RootLength is the length of a hash tree root.
const RootLength = 32

// Root is a 32 byte hash tree root. Block roots identify blocks.
type Root [RootLength]byte

// RootFromBytes copies bz into a Root. It fails if bz has the wrong length.
func RootFromBytes(bz []byte) (Root, error) {
	var r Root
	if len(bz) != RootLength {
		return r, fmt.Errorf("invalid root length: expected %d, got %d", RootLength, len(bz))
	}
	copy(r[:], bz)
	return r, nil
}

// RootFromHex parses a hex encoded root with an optional 0x prefix.
func RootFromHex(s string) (Root, error) {
	bz, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(s), "0x"))
	if err != nil {
		return Root{}, fmt.Errorf("invalid root %q: %w", s, err)
	}
	return RootFromBytes(bz)
}

// IsZero reports whether r is the zero root.
func (r Root) IsZero() bool {
	return r == Root{}
}

// String returns the 0x prefixed hex encoding of the root.
func (r Root) String() string {
	return "0x" + hex.EncodeToString(r[:])
}

// ShortString returns the first four bytes of the root, for logging.
func (r Root) ShortString() string {
	return hex.EncodeToString(r[:4])
}

// KZGCommitmentLength is the size of a compressed G1 point.
const KZGCommitmentLength = 48

// KZGCommitment pins a blob's polynomial.
type KZGCommitment [KZGCommitmentLength]byte

func (c KZGCommitment) String() string {
	return "0x" + hex.EncodeToString(c[:])
}

// KZGProof proves a blob against its commitment.
type KZGProof [KZGCommitmentLength]byte

// BLSSignatureLength is the size of a compressed G2 point.
const BLSSignatureLength = 96

// BLSSignature is an opaque signature. Signatures are checked by the
// verification pipeline, not here.
type BLSSignature [BLSSignatureLength]byte
