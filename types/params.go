package types

// Mainnet preset values used by the block input pipeline.
const (
	// SlotsPerEpoch is the number of slots in an epoch.
	SlotsPerEpoch = 32

	// MaxBlobsPerBlock caps the number of blob KZG commitments in a block body.
	MaxBlobsPerBlock = 6

	// FieldElementsPerBlob and BytesPerFieldElement define the blob size.
	FieldElementsPerBlob = 4096
	BytesPerFieldElement = 32
	BytesPerBlob         = FieldElementsPerBlob * BytesPerFieldElement

	// MaxRequestBlocks is the maximum number of blocks in a single by-root
	// request.
	MaxRequestBlocks = 1024

	// MaxRequestBlocksDeneb is the maximum number of blocks in a single by-range
	// request once blobs may accompany them.
	MaxRequestBlocksDeneb = 128

	// MaxRequestBlobSidecars is the maximum number of blob sidecars that may be
	// requested or served for a single request.
	MaxRequestBlobSidecars = MaxRequestBlocksDeneb * MaxBlobsPerBlock

	// DefaultMinEpochsForBlobSidecarsRequests is the retention window peers are
	// obligated to serve blob sidecars for (~18 days).
	DefaultMinEpochsForBlobSidecarsRequests Epoch = 4096
)
