package service

import (
	"fmt"
	"runtime"

	"github.com/verity-secure/evidence-services/constants"
)

// ProcessingError describes something that went wrong during an
// evidence submission. Kind is one of the constants.Err* values and
// tells the caller whether a retry can help: validation and timeout
// errors will fail the same way on retry, storage errors are safe to
// retry because no partial state was created, and ledger errors are
// scoped to a single chain.
type ProcessingError struct {
	Kind      string `json:"kind"`
	Chain     string `json:"chain,omitempty"`
	Message   string `json:"message"`
	Source    string `json:"source"`
	SessionID string `json:"session_id,omitempty"`
	IsFatal   bool   `json:"is_fatal"`
}

func newProcessingError(kind, chain, sessionID, message string, isFatal bool) *ProcessingError {
	_, filename, line, ok := runtime.Caller(2)
	source := "unknown:0"
	if ok {
		source = fmt.Sprintf("%s:%d", filename, line)
	}
	return &ProcessingError{
		Kind:      kind,
		Chain:     chain,
		Message:   message,
		Source:    source,
		SessionID: sessionID,
		IsFatal:   isFatal,
	}
}

// NewValidationError flags bad input. Always fatal: the same input
// will be rejected the same way next time.
func NewValidationError(sessionID, message string) *ProcessingError {
	return newProcessingError(constants.ErrValidation, "", sessionID, message, true)
}

// NewStorageError flags an artifact store failure. Non-fatal because
// the submission created no partial state; the caller may resubmit.
func NewStorageError(sessionID, message string) *ProcessingError {
	return newProcessingError(constants.ErrStorage, "", sessionID, message, false)
}

// NewLedgerError flags a per-chain submission failure. isFatal marks
// permanent rejections (malformed payload, rejected transaction) that
// bounded retries cannot fix.
func NewLedgerError(chain, sessionID, message string, isFatal bool) *ProcessingError {
	return newProcessingError(constants.ErrLedger, chain, sessionID, message, isFatal)
}

// NewTimeoutError flags a submission that exceeded its configured
// bound. Storage already committed stays in place.
func NewTimeoutError(sessionID, message string) *ProcessingError {
	return newProcessingError(constants.ErrTimeout, "", sessionID, message, true)
}

func (e *ProcessingError) Error() string {
	chain := ""
	if e.Chain != "" {
		chain = fmt.Sprintf(" (chain: %s)", e.Chain)
	}
	return fmt.Sprintf("%s%s: %s", e.Kind, chain, e.Message)
}

// Detail includes the source location, for logs only. Callers see
// Error().
func (e *ProcessingError) Detail() string {
	severity := "transient"
	if e.IsFatal {
		severity = "fatal"
	}
	return fmt.Sprintf("(kind: %s) (chain: %s) (session: %s) (severity: %s) "+
		"(source: %s) %s", e.Kind, e.Chain, e.SessionID, severity,
		e.Source, e.Message)
}
