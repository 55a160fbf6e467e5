package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Fingerprint is the verifiable identity of an artifact: the sha256
// digest of its full byte content, the content id derived from that
// digest, and the byte count actually hashed. Byte-identical content
// always yields an identical fingerprint, regardless of filename,
// MIME label, or submission time.
type Fingerprint struct {
	Digest    string
	ContentID string
	Size      int64
}

// Compute streams the reader through sha256 and derives the content
// id from the resulting digest. Large files never need to be resident
// in memory; the hash consumes the stream in chunks.
func Compute(r io.Reader) (*Fingerprint, error) {
	sha256Hash := sha256.New()
	size, err := io.Copy(sha256Hash, r)
	if err != nil {
		return nil, fmt.Errorf("Error streaming artifact through hash function: %v", err)
	}
	digest := hex.EncodeToString(sha256Hash.Sum(nil))
	contentID, err := ContentIDForDigest(digest)
	if err != nil {
		return nil, err
	}
	return &Fingerprint{
		Digest:    digest,
		ContentID: contentID,
		Size:      size,
	}, nil
}

// ContentIDForDigest returns a CIDv1 string using the "raw"
// multicodec and a sha2-256 multihash wrapping the given hex digest.
// The digest and the content id are two encodings of one hash, so
// a single pass over the bytes produces both.
func ContentIDForDigest(hexDigest string) (string, error) {
	digestBytes, err := hex.DecodeString(hexDigest)
	if err != nil {
		return "", fmt.Errorf("Digest is not valid hex: %v", err)
	}
	if len(digestBytes) != sha256.Size {
		return "", fmt.Errorf("Digest must be %d bytes, got %d", sha256.Size, len(digestBytes))
	}
	sum, err := multihash.Encode(digestBytes, multihash.SHA2_256)
	if err != nil {
		return "", err
	}
	return cid.NewCidV1(cid.Raw, sum).String(), nil
}
