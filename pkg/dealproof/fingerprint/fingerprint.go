// Package fingerprint identifies whole files: a CIDv1 over the sha2-256 hash
// of the raw bytes, and the BLAKE3 hash that roots its outboard tree,
// computed in a single pass.
package fingerprint

import (
	"fmt"
	"io"

	"github.com/ipfs/go-cid"
	sha256 "github.com/minio/sha256-simd"
	"github.com/multiformats/go-multicodec"
	"github.com/multiformats/go-multihash"
	"lukechampine.com/blake3"

	"github.com/storacha/proofbuddy/lib/verifyread"
	"github.com/storacha/proofbuddy/pkg/dealproof/types"
)

type Fingerprint struct {
	CID  cid.Cid
	Size uint64
	// Root is the BLAKE3 hash of the content, which is also the root of its
	// outboard tree.
	Root types.RootDigest
}

// Compute reads r to EOF.
func Compute(r io.Reader) (Fingerprint, error) {
	sh := sha256.New()
	b3 := blake3.New(32, nil)
	n, err := io.Copy(io.MultiWriter(sh, b3), r)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("hashing content: %w", err)
	}
	mh, err := multihash.Encode(sh.Sum(nil), uint64(multicodec.Sha2_256))
	if err != nil {
		return Fingerprint{}, fmt.Errorf("encoding multihash: %w", err)
	}
	fp := Fingerprint{CID: cid.NewCidV1(uint64(multicodec.Raw), mh), Size: uint64(n)}
	b3.Sum(fp.Root[:0])
	return fp, nil
}

// CIDOf returns the content id of data.
func CIDOf(data []byte) cid.Cid {
	sum := sha256.Sum256(data)
	mh, _ := multihash.Encode(sum[:], uint64(multicodec.Sha2_256))
	return cid.NewCidV1(uint64(multicodec.Raw), mh)
}

// Root returns the BLAKE3 hash of data.
func Root(data []byte) types.RootDigest {
	return blake3.Sum256(data)
}

// NewVerifyingReader wraps r so that reaching EOF fails unless the stream
// was exactly size bytes hashing to id. Only raw sha2-256 ids are accepted.
func NewVerifyingReader(r io.Reader, id cid.Cid, size uint64) (*verifyread.Reader, error) {
	dmh, err := multihash.Decode(id.Hash())
	if err != nil {
		return nil, types.WrapError(types.KindInvalidInput, fmt.Sprintf("decoding hash of %s", id), err)
	}
	if dmh.Code != uint64(multicodec.Sha2_256) {
		return nil, types.NewErrorf(types.KindInvalidInput, "unsupported hash %s in %s", multicodec.Code(dmh.Code), id)
	}
	return verifyread.New(r, sha256.New(), dmh.Digest, verifyread.WithLength(size)), nil
}
