package custody

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/op/go-logging"

	"github.com/verity-secure/evidence-services/constants"
	"github.com/verity-secure/evidence-services/fingerprint"
	"github.com/verity-secure/evidence-services/models/common"
	"github.com/verity-secure/evidence-services/models/service"
	"github.com/verity-secure/evidence-services/network"
	"github.com/verity-secure/evidence-services/session"
	"github.com/verity-secure/evidence-services/storage"
)

// RecordStore is the slice of the Redis client the coordinator needs.
type RecordStore interface {
	EvidenceRecordSave(record *service.EvidenceRecord) error
	EvidenceRecordGet(recordID string) (*service.EvidenceRecord, error)
	DedupGet(sessionID, digest string) (string, error)
	DedupSet(sessionID, digest, recordID string, window time.Duration) error
}

// AnchorClient submits an anchor transaction to one chain. Satisfied
// by network.LedgerClient.
type AnchorClient interface {
	SubmitAnchor(ctx context.Context, payload *network.AnchorPayload) (*network.AnchorReceipt, int, error)
}

// Queue hands records with pending anchors to the confirmer worker.
// Satisfied by network.NSQClient.
type Queue interface {
	Enqueue(topic, recordID string) error
}

// Coordinator runs the whole submission protocol: validate, digest,
// store, anchor on every configured chain, record. Each Submit call
// is independent; the coordinator holds no per-submission state, so
// any number of submissions may run concurrently over the shared
// clients.
type Coordinator struct {
	Logger        *logging.Logger
	Sessions      *session.Manager
	Store         storage.Store
	Records       RecordStore
	Queue         Queue
	Anchors       map[string]AnchorClient
	Chains        []string
	SpoolDir      string
	MaxUploadSize int64
	SubmitTimeout time.Duration
	SessionWindow time.Duration
}

// NewCoordinator wires a coordinator from a service context.
func NewCoordinator(ctx *common.Context, sessions *session.Manager) *Coordinator {
	anchors := make(map[string]AnchorClient, len(ctx.LedgerClients))
	for chain, client := range ctx.LedgerClients {
		anchors[chain] = client
	}
	return &Coordinator{
		Logger:        ctx.Logger,
		Sessions:      sessions,
		Store:         storage.NewS3Store(ctx.S3Client, ctx.Config.EvidenceBucket),
		Records:       ctx.RedisClient,
		Queue:         ctx.NSQClient,
		Anchors:       anchors,
		Chains:        ctx.Config.ChainNames(),
		SpoolDir:      ctx.Config.SpoolDir,
		MaxUploadSize: ctx.Config.MaxUploadSize,
		SubmitTimeout: ctx.Config.SubmitTimeout,
		SessionWindow: ctx.Config.SessionWindow,
	}
}

// Submit runs one evidence submission end to end. The result always
// reports what happened; callers inspect Succeeded, PartialFailure,
// and FirstError rather than a returned error.
//
// Ordering within a submission is strict: nothing touches the
// artifact store until validation passes, and nothing touches any
// ledger until the store confirms the artifact is durable. A ledger
// failure never rolls back storage; evidence that is stored and
// fingerprinted stays retrievable even when anchoring degrades.
func (c *Coordinator) Submit(ctx context.Context, sessionID, plate string, artifact *service.EvidenceArtifact) *service.SubmissionResult {
	result := service.NewSubmissionResult()
	if c.SubmitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.SubmitTimeout)
		defer cancel()
	}

	normalizedPlate, procErr := c.validate(sessionID, plate, artifact)
	if procErr != nil {
		result.AddError(procErr)
		return result
	}

	// Single streaming pass: hash while spooling to local disk, so
	// the store upload can reread without the client resending.
	spoolPath, fp, procErr := c.spoolAndFingerprint(sessionID, artifact)
	if procErr != nil {
		result.AddError(procErr)
		return result
	}
	defer os.Remove(spoolPath)

	if fp.Size < constants.MinArtifactSize {
		result.AddError(service.NewValidationError(sessionID,
			"Artifact is too small to be a valid video; it may be corrupt or empty"))
		return result
	}
	if c.MaxUploadSize > 0 && fp.Size > c.MaxUploadSize {
		result.AddError(service.NewValidationError(sessionID,
			"Artifact exceeds the maximum allowed upload size"))
		return result
	}

	// Dedup policy: a byte-identical resubmission within the same
	// session resolves to the record already anchored for it.
	existing, procErr := c.findExisting(sessionID, fp.Digest)
	if procErr != nil {
		result.AddError(procErr)
		return result
	}
	if existing != nil {
		result.Record = existing
		result.Deduplicated = true
		return result
	}

	procErr = c.storeArtifact(ctx, sessionID, spoolPath, fp)
	if procErr != nil {
		result.AddError(procErr)
		return result
	}

	record := service.NewEvidenceRecord(
		uuid.New().String(),
		sessionID,
		normalizedPlate,
		fp.Digest,
		fp.ContentID,
		fp.Size,
	)
	record.Anchors = c.anchorAllChains(ctx, record, result)

	if ctx.Err() != nil {
		// Storage already committed stays in place. The record is
		// still persisted below so the stored artifact remains
		// referenced.
		result.AddError(service.NewTimeoutError(sessionID,
			"Submission exceeded its configured time limit"))
	}

	c.persistRecord(sessionID, record, result)
	return result
}

func (c *Coordinator) validate(sessionID, plate string, artifact *service.EvidenceArtifact) (string, *service.ProcessingError) {
	session, err := c.Sessions.Resolve(sessionID)
	if err != nil {
		return "", service.NewStorageError(sessionID, err.Error())
	}
	if session == nil {
		return "", service.NewValidationError(sessionID,
			"Trip not started. Start a trip before submitting evidence.")
	}
	if !session.IsActive() {
		return "", service.NewValidationError(sessionID,
			"Trip is closed. Evidence cannot be added to a closed trip.")
	}
	normalizedPlate := strings.ToUpper(strings.TrimSpace(plate))
	if normalizedPlate == "" {
		return "", service.NewValidationError(sessionID, "Plate cannot be empty")
	}
	if artifact == nil || artifact.Reader == nil {
		return "", service.NewValidationError(sessionID, "No video payload in request")
	}
	if !isAcceptedVideo(artifact) {
		return "", service.NewValidationError(sessionID,
			"Unsupported file type. Supported formats: MP4, WEBM, MOV, AVI, MKV, MPEG, FLV, 3GP")
	}
	return normalizedPlate, nil
}

func (c *Coordinator) spoolAndFingerprint(sessionID string, artifact *service.EvidenceArtifact) (string, *fingerprint.Fingerprint, *service.ProcessingError) {
	spoolDir := c.SpoolDir
	if spoolDir == "" {
		spoolDir = os.TempDir()
	}
	spoolFile, err := os.CreateTemp(spoolDir, "evidence-*.spool")
	if err != nil {
		return "", nil, service.NewStorageError(sessionID,
			"Cannot create spool file: "+err.Error())
	}
	spoolPath := spoolFile.Name()
	fp, err := fingerprint.Compute(io.TeeReader(artifact.Reader, spoolFile))
	closeErr := spoolFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(spoolPath)
		return "", nil, service.NewStorageError(sessionID,
			"Cannot read artifact: "+err.Error())
	}
	return spoolPath, fp, nil
}

func (c *Coordinator) findExisting(sessionID, digest string) (*service.EvidenceRecord, *service.ProcessingError) {
	recordID, err := c.Records.DedupGet(sessionID, digest)
	if err != nil {
		return nil, service.NewStorageError(sessionID, err.Error())
	}
	if recordID == "" {
		return nil, nil
	}
	record, err := c.Records.EvidenceRecordGet(recordID)
	if err != nil {
		return nil, service.NewStorageError(sessionID, err.Error())
	}
	// A dangling dedup entry just means we re-anchor.
	return record, nil
}

func (c *Coordinator) storeArtifact(ctx context.Context, sessionID, spoolPath string, fp *fingerprint.Fingerprint) *service.ProcessingError {
	spoolReader, err := os.Open(spoolPath)
	if err != nil {
		return service.NewStorageError(sessionID, err.Error())
	}
	defer spoolReader.Close()
	err = c.Store.Put(ctx, fp.ContentID, spoolReader, fp.Size)
	if err != nil {
		return service.NewStorageError(sessionID,
			"Artifact storage failed: "+err.Error())
	}
	return nil
}

// anchorAllChains fans out one goroutine per configured chain and
// joins before returning. Chains are independent: a permanent failure
// on one neither blocks nor rolls back another. Returned anchors are
// in configured chain order regardless of completion order.
func (c *Coordinator) anchorAllChains(ctx context.Context, record *service.EvidenceRecord, result *service.SubmissionResult) []*service.LedgerAnchor {
	payload := &network.AnchorPayload{
		Digest:    record.Digest,
		ContentID: record.ContentID,
		SessionID: record.SessionID,
		Plate:     record.Plate,
		Timestamp: record.CreatedAt,
	}
	type chainResult struct {
		chain  string
		anchor *service.LedgerAnchor
	}
	results := make(chan chainResult, len(c.Chains))
	for _, chain := range c.Chains {
		go func(chain string) {
			results <- chainResult{
				chain:  chain,
				anchor: c.anchorOneChain(ctx, chain, record.SessionID, payload, result),
			}
		}(chain)
	}
	byChain := make(map[string]*service.LedgerAnchor, len(c.Chains))
	for range c.Chains {
		r := <-results
		byChain[r.chain] = r.anchor
	}
	anchors := make([]*service.LedgerAnchor, 0, len(c.Chains))
	for _, chain := range c.Chains {
		anchors = append(anchors, byChain[chain])
	}
	return anchors
}

func (c *Coordinator) anchorOneChain(ctx context.Context, chain, sessionID string, payload *network.AnchorPayload, result *service.SubmissionResult) *service.LedgerAnchor {
	anchor := service.NewLedgerAnchor(chain)
	anchor.SubmittedAt = time.Now().UTC()
	client := c.Anchors[chain]
	if client == nil {
		anchor.MarkFailed("No ledger client configured for chain " + chain)
		result.AddError(service.NewLedgerError(chain, sessionID, anchor.ErrorMessage, true))
		return anchor
	}
	receipt, attempts, err := client.SubmitAnchor(ctx, payload)
	anchor.Attempts = attempts
	if err != nil {
		anchor.MarkFailed(err.Error())
		result.AddError(service.NewLedgerError(
			chain, sessionID, err.Error(), network.IsPermanentLedgerError(err)))
		if c.Logger != nil {
			c.Logger.Errorf("Anchor for session %s failed on %s after %d attempts: %v",
				sessionID, chain, attempts, err)
		}
		return anchor
	}
	anchor.TxRef = receipt.TxRef
	if receipt.Status == constants.StatusConfirmed {
		anchor.MarkConfirmed()
	}
	return anchor
}

func (c *Coordinator) persistRecord(sessionID string, record *service.EvidenceRecord, result *service.SubmissionResult) {
	err := c.Records.EvidenceRecordSave(record)
	if err != nil {
		result.AddError(service.NewStorageError(sessionID,
			"Evidence is stored and anchored but the record could not be saved: "+err.Error()))
		result.Record = record
		return
	}
	err = c.Records.DedupSet(sessionID, record.Digest, record.RecordID, c.SessionWindow)
	if err != nil && c.Logger != nil {
		c.Logger.Warningf("Cannot write dedup index for record %s: %v", record.RecordID, err)
	}
	if c.Queue != nil && len(record.PendingChains()) > 0 {
		err = c.Queue.Enqueue(constants.TopicAnchorConfirm, record.RecordID)
		if err != nil && c.Logger != nil {
			c.Logger.Errorf("Cannot queue record %s for anchor confirmation: %v",
				record.RecordID, err)
		}
	}
	result.Record = record
}

func isAcceptedVideo(artifact *service.EvidenceArtifact) bool {
	mimeType := strings.ToLower(strings.TrimSpace(artifact.MimeHint))
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	for _, accepted := range constants.AcceptedVideoTypes {
		if mimeType == accepted {
			return true
		}
	}
	// Fall back to the extension for clients that send a generic
	// content type.
	ext := strings.ToLower(filepath.Ext(artifact.FileName))
	switch ext {
	case ".mp4", ".webm", ".ogg", ".mov", ".avi", ".mkv", ".mpeg", ".mpg", ".flv", ".3gp", ".m4v":
		return true
	}
	return false
}
