package service

import (
	"encoding/json"
	"time"

	"github.com/verity-secure/evidence-services/constants"
)

// EvidenceRecord is the durable outcome of one evidence submission.
// Created exactly once per submission and immutable afterward, except
// that the anchor_confirmer worker advances Pending anchors to their
// terminal status.
//
// RecordID identifies the submission. ContentID addresses the stored
// bytes. They are independent: two records may share a ContentID
// (same bytes submitted twice) but never a RecordID.
type EvidenceRecord struct {
	RecordID  string          `json:"record_id"`
	SessionID string          `json:"session_id"`
	Plate     string          `json:"plate"`
	Digest    string          `json:"digest"`
	ContentID string          `json:"content_id"`
	SizeBytes int64           `json:"size_bytes"`
	CreatedAt int64           `json:"created_at"`
	Anchors   []*LedgerAnchor `json:"anchors"`
}

func NewEvidenceRecord(recordID, sessionID, plate, digest, contentID string, sizeBytes int64) *EvidenceRecord {
	return &EvidenceRecord{
		RecordID:  recordID,
		SessionID: sessionID,
		Plate:     plate,
		Digest:    digest,
		ContentID: contentID,
		SizeBytes: sizeBytes,
		CreatedAt: time.Now().UTC().Unix(),
		Anchors:   make([]*LedgerAnchor, 0),
	}
}

func EvidenceRecordFromJson(jsonData string) (*EvidenceRecord, error) {
	record := &EvidenceRecord{}
	err := json.Unmarshal([]byte(jsonData), record)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *EvidenceRecord) ToJson() (string, error) {
	bytes, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// AnchorFor returns the anchor for the named chain, or nil.
func (r *EvidenceRecord) AnchorFor(chain string) *LedgerAnchor {
	for _, anchor := range r.Anchors {
		if anchor.Chain == chain {
			return anchor
		}
	}
	return nil
}

// AllAnchorsSucceeded is true only when every anchor reached a
// non-Failed terminal state. A submission with any Failed anchor is
// a partial failure, even though the artifact is durably stored.
func (r *EvidenceRecord) AllAnchorsSucceeded() bool {
	if len(r.Anchors) == 0 {
		return false
	}
	for _, anchor := range r.Anchors {
		if anchor.Failed() {
			return false
		}
	}
	return true
}

// PendingChains lists chains whose anchors have not reached a
// terminal status. The confirmer worker polls these.
func (r *EvidenceRecord) PendingChains() []string {
	chains := make([]string, 0)
	for _, anchor := range r.Anchors {
		if anchor.Status == constants.StatusPending {
			chains = append(chains, anchor.Chain)
		}
	}
	return chains
}
