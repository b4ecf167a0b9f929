package outboard

import (
	"lukechampine.com/blake3"
	"lukechampine.com/blake3/bao"

	"github.com/storacha/proofbuddy/pkg/dealproof/types"
)

// emptyRoot is the BLAKE3 hash of no bytes.
var emptyRoot = types.RootDigest(blake3.Sum256(nil))

// DecodeSlice authenticates proof against root and returns the content bytes
// in [offset, offset+size), clamped to the content length. Any structural
// problem or digest mismatch is an ErrProofVerificationFailed error.
func DecodeSlice(proof []byte, root types.RootDigest, offset, size uint64) ([]byte, error) {
	if len(proof) < HeaderSize {
		return nil, verifyFailure("proof is %d bytes", len(proof))
	}
	contentLen := decodeHeader(proof)
	_, end, err := querySpan(contentLen, offset, size)
	if err != nil {
		return nil, types.WrapError(types.KindProofVerificationFailed, "decoding slice", err)
	}
	if contentLen == 0 {
		// the decoder visits no nodes for empty content
		if root != emptyRoot {
			return nil, verifyFailure("root %s is not the empty content root", root)
		}
		if len(proof) != HeaderSize {
			return nil, verifyFailure("%d trailing bytes", len(proof)-HeaderSize)
		}
		return []byte{}, nil
	}
	data, ok := bao.VerifySlice(proof, group, offset, end-offset, root)
	if !ok {
		return nil, verifyFailure("slice [%d, %d) does not match root %s", offset, end, root)
	}
	return data, nil
}

// VerifySlice reports whether proof authenticates [offset, offset+size)
// against root.
func VerifySlice(proof []byte, root types.RootDigest, offset, size uint64) bool {
	_, err := DecodeSlice(proof, root, offset, size)
	if err != nil {
		log.Debugw("slice verification failed", "offset", offset, "size", size, "error", err)
		return false
	}
	return true
}

func verifyFailure(format string, args ...any) error {
	return types.WrapError(types.KindProofVerificationFailed, "decoding slice", types.NewErrorf(types.KindInvalidInput, format, args...))
}
