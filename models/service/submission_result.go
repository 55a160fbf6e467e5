package service

import (
	"strings"
	"sync"
)

// SubmissionResult collects the outcome of one coordinator submission:
// the evidence record (when one was created), whether the submission
// resolved to an existing record, and any errors. Anchor goroutines
// append errors concurrently, so access is locked internally.
type SubmissionResult struct {
	Record *EvidenceRecord `json:"record,omitempty"`

	// Deduplicated is true when the submission matched an existing
	// record for the same (session, digest) pair and no new record
	// was created.
	Deduplicated bool `json:"deduplicated"`

	// Errors is public for JSON serialization. Use AddError and
	// the accessor methods rather than writing to it directly.
	Errors []*ProcessingError `json:"errors"`

	mutex sync.Mutex
}

func NewSubmissionResult() *SubmissionResult {
	return &SubmissionResult{
		Errors: make([]*ProcessingError, 0),
	}
}

func (r *SubmissionResult) AddError(err *ProcessingError) {
	r.mutex.Lock()
	r.Errors = append(r.Errors, err)
	r.mutex.Unlock()
}

// Succeeded means a record exists and every anchor reached a
// non-Failed terminal or pending state. Deduplicated submissions
// count as succeeded: the evidence is stored and anchored.
func (r *SubmissionResult) Succeeded() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.Record == nil {
		return false
	}
	for _, anchor := range r.Record.Anchors {
		if anchor.Failed() {
			return false
		}
	}
	return len(r.Errors) == 0
}

// PartialFailure means storage succeeded and a record exists, but one
// or more chains failed permanently. The record still carries the
// successful anchors and the content reference.
func (r *SubmissionResult) PartialFailure() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.Record == nil {
		return false
	}
	for _, anchor := range r.Record.Anchors {
		if anchor.Failed() {
			return true
		}
	}
	return false
}

// FirstError returns the error the transport layer should surface,
// or nil.
func (r *SubmissionResult) FirstError() *ProcessingError {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[0]
}

func (r *SubmissionResult) ErrorMessage() string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	messages := make([]string, len(r.Errors))
	for i, err := range r.Errors {
		messages[i] = err.Error()
	}
	return strings.Join(messages, "; ")
}
