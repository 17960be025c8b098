package types

import (
	"fmt"
)

// ForkSeq orders protocol versions. Later forks compare greater.
type ForkSeq int

const (
	ForkPhase0 ForkSeq = iota
	ForkAltair
	ForkBellatrix
	ForkCapella
	ForkDeneb
)

func (f ForkSeq) String() string {
	switch f {
	case ForkPhase0:
		return "phase0"
	case ForkAltair:
		return "altair"
	case ForkBellatrix:
		return "bellatrix"
	case ForkCapella:
		return "capella"
	case ForkDeneb:
		return "deneb"
	default:
		return fmt.Sprintf("fork(%d)", int(f))
	}
}

// ForkSchedule maps epochs to protocol versions. Phase0 starts at genesis. A
// fork set to FarFutureEpoch is not scheduled.
type ForkSchedule struct {
	AltairForkEpoch    Epoch `json:"altair_fork_epoch"`
	BellatrixForkEpoch Epoch `json:"bellatrix_fork_epoch"`
	CapellaForkEpoch   Epoch `json:"capella_fork_epoch"`
	DenebForkEpoch     Epoch `json:"deneb_fork_epoch"`
}

// MainnetForkSchedule returns the mainnet fork epochs.
func MainnetForkSchedule() ForkSchedule {
	return ForkSchedule{
		AltairForkEpoch:    74240,
		BellatrixForkEpoch: 144896,
		CapellaForkEpoch:   194048,
		DenebForkEpoch:     269568,
	}
}

// ValidateBasic checks that forks are scheduled in order.
func (fs ForkSchedule) ValidateBasic() error {
	epochs := []Epoch{fs.AltairForkEpoch, fs.BellatrixForkEpoch, fs.CapellaForkEpoch, fs.DenebForkEpoch}
	for i := 1; i < len(epochs); i++ {
		if epochs[i] < epochs[i-1] {
			return fmt.Errorf("fork %v scheduled at epoch %d before fork %v at epoch %d",
				ForkSeq(i+1), epochs[i], ForkSeq(i), epochs[i-1])
		}
	}
	return nil
}

// ForkSeqAtEpoch returns the protocol version active at epoch.
func (fs ForkSchedule) ForkSeqAtEpoch(epoch Epoch) ForkSeq {
	switch {
	case epoch >= fs.DenebForkEpoch:
		return ForkDeneb
	case epoch >= fs.CapellaForkEpoch:
		return ForkCapella
	case epoch >= fs.BellatrixForkEpoch:
		return ForkBellatrix
	case epoch >= fs.AltairForkEpoch:
		return ForkAltair
	default:
		return ForkPhase0
	}
}

// ForkSeqAtSlot returns the protocol version active at slot.
func (fs ForkSchedule) ForkSeqAtSlot(slot Slot) ForkSeq {
	return fs.ForkSeqAtEpoch(ComputeEpochAtSlot(slot))
}

// IsPostDeneb reports whether blocks at slot carry blob commitments.
func (fs ForkSchedule) IsPostDeneb(slot Slot) bool {
	return fs.ForkSeqAtSlot(slot) >= ForkDeneb
}

// WithinBlobRetention reports whether epoch is recent enough, relative to
// currentEpoch, for peers to still serve its blob sidecars.
func WithinBlobRetention(epoch, currentEpoch, minEpochs Epoch) bool {
	if currentEpoch < minEpochs {
		return true
	}
	return epoch >= currentEpoch-minEpochs
}

// RequiresBlobs reports whether a block at blockSlot must be accompanied by
// its blob sidecars when observed at clockSlot: the block is post-Deneb and its
// epoch is inside the retention window.
func RequiresBlobs(fs ForkSchedule, blockSlot, clockSlot Slot, minEpochs Epoch) bool {
	return fs.IsPostDeneb(blockSlot) &&
		WithinBlobRetention(ComputeEpochAtSlot(blockSlot), ComputeEpochAtSlot(clockSlot), minEpochs)
}
