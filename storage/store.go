package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/verity-secure/evidence-services/fingerprint"
)

// ErrNotFound means no content exists under the requested content id.
var ErrNotFound = errors.New("content not found")

// UnavailableError means the store itself could not be reached. The
// coordinator treats this differently from validation problems: the
// whole submission aborts before any ledger interaction, and the
// caller may safely resubmit.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("artifact store unavailable during %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Store is a client to a content-addressed artifact store. Put is
// idempotent: storing bytes that already exist under their content id
// is a no-op, never a duplicate. Implementations must be safe for
// concurrent use.
type Store interface {
	Put(ctx context.Context, contentID string, r io.Reader, size int64) error
	Get(ctx context.Context, contentID string) (io.ReadCloser, error)
	Contains(ctx context.Context, contentID string) (bool, error)
}

// Verify recomputes the digest of the stored bytes under contentID
// and compares it to wantDigest. A mismatch means corruption and is
// reported, never silently accepted.
func Verify(ctx context.Context, store Store, contentID, wantDigest string) error {
	reader, err := store.Get(ctx, contentID)
	if err != nil {
		return err
	}
	defer reader.Close()
	fp, err := fingerprint.Compute(reader)
	if err != nil {
		return err
	}
	if fp.Digest != wantDigest {
		return fmt.Errorf("Digest mismatch for %s: expected %s, got %s",
			contentID, wantDigest, fp.Digest)
	}
	return nil
}
