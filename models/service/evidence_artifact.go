package service

import "io"

// EvidenceArtifact is the transient description of an uploaded piece
// of evidence. It is owned by the submission that carries it and is
// never persisted as an object. Persisted content lives in the
// artifact store, addressed by content id.
type EvidenceArtifact struct {
	// Reader delivers the artifact bytes. The coordinator reads it
	// exactly once, streaming through the fingerprint engine into
	// a temp spool.
	Reader io.Reader

	// FileName is the client-supplied name. It has no bearing on
	// the digest or content id.
	FileName string

	// MimeHint is the client-declared content type.
	MimeHint string

	// SizeBytes is the declared size. The fingerprint engine
	// reports the actual byte count, which wins.
	SizeBytes int64
}
