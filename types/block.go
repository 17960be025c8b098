package types

import (
	"errors"
	"fmt"

	"github.com/tendermint/dasync/crypto/merkle"
)

// BeaconBlockBody holds the parts of a block body the data availability layer
// cares about. Execution payload and attestations are opaque to it and are
// represented by the execution block hash.
type BeaconBlockBody struct {
	Graffiti           Root            `json:"graffiti"`
	ExecutionBlockHash Root            `json:"execution_block_hash"`
	BlobKZGCommitments []KZGCommitment `json:"blob_kzg_commitments"`
}

// HashTreeRoot returns the Merkle root of the body.
func (b *BeaconBlockBody) HashTreeRoot() Root {
	commitments := make([][]byte, len(b.BlobKZGCommitments))
	for i := range b.BlobKZGCommitments {
		commitments[i] = b.BlobKZGCommitments[i][:]
	}
	var r Root
	copy(r[:], merkle.HashFromByteSlices([][]byte{
		b.Graffiti[:],
		b.ExecutionBlockHash[:],
		merkle.HashFromByteSlices(commitments),
	}))
	return r
}

// BeaconBlock is an unsigned consensus block.
type BeaconBlock struct {
	Slot          Slot            `json:"slot"`
	ProposerIndex ValidatorIndex  `json:"proposer_index"`
	ParentRoot    Root            `json:"parent_root"`
	StateRoot     Root            `json:"state_root"`
	Body          BeaconBlockBody `json:"body"`
}

// HashTreeRoot returns the block root, which identifies the block and every
// sidecar that belongs to it.
func (b *BeaconBlock) HashTreeRoot() Root {
	bodyRoot := b.Body.HashTreeRoot()
	var r Root
	copy(r[:], merkle.HashFromByteSlices([][]byte{
		encodeUint64(uint64(b.Slot)),
		encodeUint64(uint64(b.ProposerIndex)),
		b.ParentRoot[:],
		b.StateRoot[:],
		bodyRoot[:],
	}))
	return r
}

// SignedBeaconBlock is a block with its proposer signature.
type SignedBeaconBlock struct {
	Message   BeaconBlock  `json:"message"`
	Signature BLSSignature `json:"signature"`
}

// Slot returns the block's slot.
func (b *SignedBeaconBlock) Slot() Slot { return b.Message.Slot }

// Root returns the block root.
func (b *SignedBeaconBlock) Root() Root { return b.Message.HashTreeRoot() }

// Commitments returns the blob commitments declared by the block.
func (b *SignedBeaconBlock) Commitments() []KZGCommitment {
	return b.Message.Body.BlobKZGCommitments
}

// ValidateBasic performs stateless checks on the block.
func (b *SignedBeaconBlock) ValidateBasic() error {
	if b == nil {
		return errors.New("nil block")
	}
	if n := len(b.Message.Body.BlobKZGCommitments); n > MaxBlobsPerBlock {
		return fmt.Errorf("block at slot %d declares %d blob commitments, max is %d",
			b.Message.Slot, n, MaxBlobsPerBlock)
	}
	return nil
}

// String returns a short description of the block, for logging.
func (b *SignedBeaconBlock) String() string {
	if b == nil {
		return "nil-Block"
	}
	return fmt.Sprintf("Block{%d %v blobs:%d}",
		b.Message.Slot, b.Root().ShortString(), len(b.Message.Body.BlobKZGCommitments))
}

// Marshal encodes the block in its wire format.
func (b *SignedBeaconBlock) Marshal() []byte {
	var body encoder
	body.bytes(1, b.Message.Body.Graffiti[:])
	body.bytes(2, b.Message.Body.ExecutionBlockHash[:])
	for i := range b.Message.Body.BlobKZGCommitments {
		body.bytes(3, b.Message.Body.BlobKZGCommitments[i][:])
	}

	var msg encoder
	msg.uint64(1, uint64(b.Message.Slot))
	msg.uint64(2, uint64(b.Message.ProposerIndex))
	msg.bytes(3, b.Message.ParentRoot[:])
	msg.bytes(4, b.Message.StateRoot[:])
	msg.bytes(5, body.buf)

	var e encoder
	e.bytes(1, msg.buf)
	e.bytes(2, b.Signature[:])
	return e.buf
}

// Unmarshal decodes a block from its wire format.
func (b *SignedBeaconBlock) Unmarshal(bz []byte) error {
	*b = SignedBeaconBlock{}
	err := decodeFields(bz, func(num protoNumber, typ protoType, bz []byte) (int, error) {
		switch num {
		case 1:
			msg, n, err := consumeBytes(typ, bz)
			if err != nil {
				return 0, err
			}
			return n, b.Message.unmarshal(msg)
		case 2:
			return consumeFixed(typ, bz, b.Signature[:])
		}
		return -1, nil
	})
	if err != nil {
		return fmt.Errorf("decoding block: %w", err)
	}
	return nil
}

func (b *BeaconBlock) unmarshal(bz []byte) error {
	return decodeFields(bz, func(num protoNumber, typ protoType, bz []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeUint64(typ, bz)
			b.Slot = Slot(v)
			return n, err
		case 2:
			v, n, err := consumeUint64(typ, bz)
			b.ProposerIndex = ValidatorIndex(v)
			return n, err
		case 3:
			return consumeFixed(typ, bz, b.ParentRoot[:])
		case 4:
			return consumeFixed(typ, bz, b.StateRoot[:])
		case 5:
			body, n, err := consumeBytes(typ, bz)
			if err != nil {
				return 0, err
			}
			return n, b.Body.unmarshal(body)
		}
		return -1, nil
	})
}

func (b *BeaconBlockBody) unmarshal(bz []byte) error {
	return decodeFields(bz, func(num protoNumber, typ protoType, bz []byte) (int, error) {
		switch num {
		case 1:
			return consumeFixed(typ, bz, b.Graffiti[:])
		case 2:
			return consumeFixed(typ, bz, b.ExecutionBlockHash[:])
		case 3:
			var c KZGCommitment
			n, err := consumeFixed(typ, bz, c[:])
			if err != nil {
				return 0, err
			}
			b.BlobKZGCommitments = append(b.BlobKZGCommitments, c)
			return n, nil
		}
		return -1, nil
	})
}
