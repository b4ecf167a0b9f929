package outboard

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"lukechampine.com/blake3/bao"

	"github.com/storacha/proofbuddy/pkg/dealproof/source"
	"github.com/storacha/proofbuddy/pkg/dealproof/types"
)

// ExtractSlice builds the proof for the chunks covering [offset, offset+size).
// content is read once, in ascending order, starting from the first covered
// chunk, so forward-only readers such as source.Window are accepted.
func ExtractSlice(content io.ReadSeeker, tree io.ReadSeeker, offset, size uint64) (types.ProofArtifact, error) {
	contentLen, err := readHeader(tree)
	if err != nil {
		return nil, err
	}
	q, end, err := querySpan(contentLen, offset, size)
	if err != nil {
		return nil, err
	}
	base, limit := q.bounds(contentLen)
	chunks := make([]byte, limit-base)
	if len(chunks) > 0 {
		if _, err := content.Seek(int64(base), io.SeekStart); err != nil {
			return nil, fmt.Errorf("seeking chunk %d: %w", q.first, err)
		}
		if _, err := io.ReadFull(content, chunks); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return nil, types.WrapError(types.KindShortRead, fmt.Sprintf("reading chunks %d to %d", q.first, q.last), err)
			}
			return nil, fmt.Errorf("reading chunks %d to %d: %w", q.first, q.last, err)
		}
	}
	if _, err := tree.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking tree: %w", err)
	}
	var out bytes.Buffer
	if err := bao.ExtractSlice(&out, bytes.NewReader(chunks), tree, group, offset, end-offset); err != nil {
		return nil, types.WrapError(types.KindInvalidInput, "reading tree nodes", err)
	}
	return out.Bytes(), nil
}

func readHeader(tree io.ReadSeeker) (uint64, error) {
	end, err := tree.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("sizing tree: %w", err)
	}
	if _, err := tree.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("seeking tree: %w", err)
	}
	hdr := make([]byte, HeaderSize)
	if _, err := io.ReadFull(tree, hdr); err != nil {
		return 0, types.WrapError(types.KindInvalidInput, "reading tree header", err)
	}
	contentLen := decodeHeader(hdr)
	if want := EncodedSize(contentLen); uint64(end) != want {
		return 0, types.NewErrorf(types.KindInvalidInput, "tree is %d bytes, expected %d for %d bytes of content", end, want, contentLen)
	}
	return contentLen, nil
}

// GenerateRemoteSlice builds a proof when content can only be fetched by byte
// range. It fetches exactly the covered chunks in one read, checks that the
// fetch returned every byte, then extracts through a forward-only window.
func GenerateRemoteSlice(content io.ReaderAt, tree io.ReadSeeker, offset, size uint64) (types.ProofArtifact, error) {
	contentLen, err := readHeader(tree)
	if err != nil {
		return nil, err
	}
	q, _, err := querySpan(contentLen, offset, size)
	if err != nil {
		return nil, err
	}
	base, limit := q.bounds(contentLen)
	fetched := make([]byte, limit-base)
	n, err := content.ReadAt(fetched, int64(base))
	if uint64(n) != limit-base {
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		return nil, types.NewErrorf(types.KindShortRead, "fetched %d bytes at offset %d, expected %d", n, base, limit-base)
	}
	log.Debugw("fetched challenged range", "offset", base, "length", n)
	w := source.NewWindow(bytes.NewReader(fetched), base, uint64(n))
	return ExtractSlice(w, tree, offset, size)
}
