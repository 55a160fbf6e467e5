package service

import (
	"time"

	"github.com/verity-secure/evidence-services/constants"
)

// LedgerAnchor records one chain's acknowledgement of an evidence
// record. There is exactly one anchor per configured chain per
// record. Status moves Pending -> Confirmed or Pending -> Failed,
// never backward.
type LedgerAnchor struct {
	Chain        string    `json:"chain"`
	TxRef        string    `json:"tx_ref,omitempty"`
	Status       string    `json:"status"`
	Attempts     int       `json:"attempts"`
	ErrorMessage string    `json:"error_message,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at,omitempty"`
}

func NewLedgerAnchor(chain string) *LedgerAnchor {
	return &LedgerAnchor{
		Chain:  chain,
		Status: constants.StatusPending,
	}
}

// MarkConfirmed is a no-op if the anchor already failed. Terminal
// states never change.
func (a *LedgerAnchor) MarkConfirmed() {
	if a.Status == constants.StatusPending {
		a.Status = constants.StatusConfirmed
	}
}

func (a *LedgerAnchor) MarkFailed(message string) {
	if a.Status == constants.StatusPending {
		a.Status = constants.StatusFailed
		a.ErrorMessage = message
	}
}

func (a *LedgerAnchor) IsTerminal() bool {
	return a.Status == constants.StatusConfirmed || a.Status == constants.StatusFailed
}

func (a *LedgerAnchor) Failed() bool {
	return a.Status == constants.StatusFailed
}
