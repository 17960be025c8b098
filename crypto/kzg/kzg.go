// Package kzg checks blob sidecars against their KZG commitments.
package kzg

import (
	"crypto/sha256"
	"fmt"

	goethkzg "github.com/crate-crypto/go-eth-kzg"

	"github.com/tendermint/dasync/types"
)

// VersionedHashVersionKZG is the version byte of a KZG versioned hash.
const VersionedHashVersionKZG byte = 0x01

// KZGCommitmentToVersionedHash returns the versioned hash execution payloads
// use to refer to a blob.
func KZGCommitmentToVersionedHash(c types.KZGCommitment) types.Root {
	h := sha256.Sum256(c[:])
	h[0] = VersionedHashVersionKZG
	return types.Root(h)
}

// Verifier checks that blobs match the commitments and proofs carried by
// their sidecars.
type Verifier interface {
	VerifyBlobSidecar(s *types.BlobSidecar) error
	// VerifyBlobSidecars checks every sidecar, typically faster than checking
	// them one by one.
	VerifyBlobSidecars(s []*types.BlobSidecar) error
}

// ErrInvalidBlobProof is returned for a sidecar whose proof does not open its
// commitment at its blob.
type ErrInvalidBlobProof struct {
	BlockRoot types.Root
	Index     uint64
	Reason    error
}

func (e ErrInvalidBlobProof) Error() string {
	return fmt.Sprintf("invalid KZG proof for blob sidecar %d of block %v: %v", e.Index, e.BlockRoot, e.Reason)
}

func (e ErrInvalidBlobProof) Unwrap() error { return types.ErrProtocolViolation }

// EthKZGVerifier verifies proofs with the Ethereum mainnet trusted setup.
type EthKZGVerifier struct {
	ctx *goethkzg.Context
}

var _ Verifier = (*EthKZGVerifier)(nil)

// NewEthKZGVerifier loads the trusted setup. Loading takes a while; share the
// verifier.
func NewEthKZGVerifier() (*EthKZGVerifier, error) {
	ctx, err := goethkzg.NewContext4096Secure()
	if err != nil {
		return nil, fmt.Errorf("loading KZG trusted setup: %w", err)
	}
	return &EthKZGVerifier{ctx: ctx}, nil
}

func toBlob(bz []byte) (*goethkzg.Blob, error) {
	if len(bz) != types.BytesPerBlob {
		return nil, fmt.Errorf("blob has %d bytes, expected %d", len(bz), types.BytesPerBlob)
	}
	return (*goethkzg.Blob)(bz), nil
}

// VerifyBlobSidecar implements Verifier.
func (v *EthKZGVerifier) VerifyBlobSidecar(s *types.BlobSidecar) error {
	blob, err := toBlob(s.Blob)
	if err != nil {
		return ErrInvalidBlobProof{BlockRoot: s.BlockRoot, Index: s.Index, Reason: err}
	}
	err = v.ctx.VerifyBlobKZGProof(blob, goethkzg.KZGCommitment(s.KZGCommitment), goethkzg.KZGProof(s.KZGProof))
	if err != nil {
		return ErrInvalidBlobProof{BlockRoot: s.BlockRoot, Index: s.Index, Reason: err}
	}
	return nil
}

// VerifyBlobSidecars implements Verifier. If the batch fails, sidecars are
// checked one by one to report the first invalid one.
func (v *EthKZGVerifier) VerifyBlobSidecars(sidecars []*types.BlobSidecar) error {
	if len(sidecars) == 0 {
		return nil
	}

	var (
		blobs       = make([]goethkzg.Blob, len(sidecars))
		commitments = make([]goethkzg.KZGCommitment, len(sidecars))
		proofs      = make([]goethkzg.KZGProof, len(sidecars))
	)
	for i, s := range sidecars {
		blob, err := toBlob(s.Blob)
		if err != nil {
			return ErrInvalidBlobProof{BlockRoot: s.BlockRoot, Index: s.Index, Reason: err}
		}
		blobs[i] = *blob
		commitments[i] = goethkzg.KZGCommitment(s.KZGCommitment)
		proofs[i] = goethkzg.KZGProof(s.KZGProof)
	}

	if err := v.ctx.VerifyBlobKZGProofBatch(blobs, commitments, proofs); err == nil {
		return nil
	}
	for _, s := range sidecars {
		if err := v.VerifyBlobSidecar(s); err != nil {
			return err
		}
	}
	return fmt.Errorf("batch verification of %d blob sidecars failed but every sidecar verified", len(sidecars))
}

// Commit computes the commitment and proof for a blob. It is used to build
// sidecars for blobs received from an execution client.
func (v *EthKZGVerifier) Commit(bz []byte) (types.KZGCommitment, types.KZGProof, error) {
	blob, err := toBlob(bz)
	if err != nil {
		return types.KZGCommitment{}, types.KZGProof{}, err
	}
	commitment, err := v.ctx.BlobToKZGCommitment(blob, 0)
	if err != nil {
		return types.KZGCommitment{}, types.KZGProof{}, err
	}
	proof, err := v.ctx.ComputeBlobKZGProof(blob, commitment, 0)
	if err != nil {
		return types.KZGCommitment{}, types.KZGProof{}, err
	}
	return types.KZGCommitment(commitment), types.KZGProof(proof), nil
}

// NopVerifier accepts every sidecar. It is used when proof verification is
// disabled in the configuration.
type NopVerifier struct{}

var _ Verifier = NopVerifier{}

func (NopVerifier) VerifyBlobSidecar(*types.BlobSidecar) error     { return nil }
func (NopVerifier) VerifyBlobSidecars([]*types.BlobSidecar) error { return nil }
