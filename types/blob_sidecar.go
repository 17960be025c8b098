package types

import (
	"bytes"
	"errors"
	"fmt"
)

// BlobSidecar carries one blob of a block together with the commitment and
// proof that bind it to the block.
type BlobSidecar struct {
	BlockRoot       Root           `json:"block_root"`
	Index           uint64         `json:"index"`
	Slot            Slot           `json:"slot"`
	BlockParentRoot Root           `json:"block_parent_root"`
	ProposerIndex   ValidatorIndex `json:"proposer_index"`
	Blob            []byte         `json:"blob"`
	KZGCommitment   KZGCommitment  `json:"kzg_commitment"`
	KZGProof        KZGProof       `json:"kzg_proof"`
}

// ID returns the identifier of the sidecar.
func (s *BlobSidecar) ID() BlobIdentifier {
	return BlobIdentifier{BlockRoot: s.BlockRoot, Index: s.Index}
}

// ValidateBasic performs stateless checks on the sidecar.
func (s *BlobSidecar) ValidateBasic() error {
	if s == nil {
		return errors.New("nil blob sidecar")
	}
	if s.Index >= MaxBlobsPerBlock {
		return fmt.Errorf("blob sidecar index %d exceeds max %d", s.Index, MaxBlobsPerBlock-1)
	}
	if len(s.Blob) != BytesPerBlob {
		return fmt.Errorf("blob has %d bytes, expected %d", len(s.Blob), BytesPerBlob)
	}
	return nil
}

// Equal reports whether two sidecars carry the same content.
func (s *BlobSidecar) Equal(o *BlobSidecar) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.BlockRoot == o.BlockRoot &&
		s.Index == o.Index &&
		s.Slot == o.Slot &&
		s.BlockParentRoot == o.BlockParentRoot &&
		s.ProposerIndex == o.ProposerIndex &&
		s.KZGCommitment == o.KZGCommitment &&
		s.KZGProof == o.KZGProof &&
		bytes.Equal(s.Blob, o.Blob)
}

func (s *BlobSidecar) String() string {
	if s == nil {
		return "nil-BlobSidecar"
	}
	return fmt.Sprintf("BlobSidecar{%d %v #%d}", s.Slot, s.BlockRoot.ShortString(), s.Index)
}

// Marshal encodes the sidecar in its wire format.
func (s *BlobSidecar) Marshal() []byte {
	var e encoder
	e.bytes(1, s.BlockRoot[:])
	e.uint64(2, s.Index)
	e.uint64(3, uint64(s.Slot))
	e.bytes(4, s.BlockParentRoot[:])
	e.uint64(5, uint64(s.ProposerIndex))
	e.bytes(6, s.Blob)
	e.bytes(7, s.KZGCommitment[:])
	e.bytes(8, s.KZGProof[:])
	return e.buf
}

// Unmarshal decodes a sidecar from its wire format.
func (s *BlobSidecar) Unmarshal(bz []byte) error {
	*s = BlobSidecar{}
	err := decodeFields(bz, func(num protoNumber, typ protoType, bz []byte) (int, error) {
		switch num {
		case 1:
			return consumeFixed(typ, bz, s.BlockRoot[:])
		case 2:
			v, n, err := consumeUint64(typ, bz)
			s.Index = v
			return n, err
		case 3:
			v, n, err := consumeUint64(typ, bz)
			s.Slot = Slot(v)
			return n, err
		case 4:
			return consumeFixed(typ, bz, s.BlockParentRoot[:])
		case 5:
			v, n, err := consumeUint64(typ, bz)
			s.ProposerIndex = ValidatorIndex(v)
			return n, err
		case 6:
			v, n, err := consumeBytes(typ, bz)
			s.Blob = append([]byte(nil), v...)
			return n, err
		case 7:
			return consumeFixed(typ, bz, s.KZGCommitment[:])
		case 8:
			return consumeFixed(typ, bz, s.KZGProof[:])
		}
		return -1, nil
	})
	if err != nil {
		return fmt.Errorf("decoding blob sidecar: %w", err)
	}
	return nil
}

// SignedBlobSidecar is a sidecar as gossiped by the proposer.
type SignedBlobSidecar struct {
	Message   BlobSidecar  `json:"message"`
	Signature BLSSignature `json:"signature"`
}

// Marshal encodes the signed sidecar in its wire format.
func (s *SignedBlobSidecar) Marshal() []byte {
	var e encoder
	e.bytes(1, s.Message.Marshal())
	e.bytes(2, s.Signature[:])
	return e.buf
}

// Unmarshal decodes a signed sidecar from its wire format.
func (s *SignedBlobSidecar) Unmarshal(bz []byte) error {
	*s = SignedBlobSidecar{}
	return decodeFields(bz, func(num protoNumber, typ protoType, bz []byte) (int, error) {
		switch num {
		case 1:
			msg, n, err := consumeBytes(typ, bz)
			if err != nil {
				return 0, err
			}
			return n, s.Message.Unmarshal(msg)
		case 2:
			return consumeFixed(typ, bz, s.Signature[:])
		}
		return -1, nil
	})
}

// BlobIdentifier names a single sidecar by block root and index.
type BlobIdentifier struct {
	BlockRoot Root   `json:"block_root"`
	Index     uint64 `json:"index"`
}

func (id BlobIdentifier) String() string {
	return fmt.Sprintf("%v/%d", id.BlockRoot, id.Index)
}

// BlobSidecarsMarshal encodes a list of sidecars as a sequence of
// length-delimited entries.
func BlobSidecarsMarshal(sidecars []*BlobSidecar) []byte {
	var e encoder
	for _, s := range sidecars {
		e.bytes(1, s.Marshal())
	}
	return e.buf
}

// BlobSidecarsUnmarshal decodes the output of BlobSidecarsMarshal.
func BlobSidecarsUnmarshal(bz []byte) ([]*BlobSidecar, error) {
	var sidecars []*BlobSidecar
	err := decodeFields(bz, func(num protoNumber, typ protoType, bz []byte) (int, error) {
		if num != 1 {
			return -1, nil
		}
		v, n, err := consumeBytes(typ, bz)
		if err != nil {
			return 0, err
		}
		s := new(BlobSidecar)
		if err := s.Unmarshal(v); err != nil {
			return 0, err
		}
		sidecars = append(sidecars, s)
		return n, nil
	})
	if err != nil {
		return nil, err
	}
	return sidecars, nil
}
