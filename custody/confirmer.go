package custody

import (
	"context"
	"fmt"

	"github.com/op/go-logging"

	"github.com/verity-secure/evidence-services/constants"
	"github.com/verity-secure/evidence-services/network"
)

// StatusClient polls one chain for the status of a submitted
// transaction. Satisfied by network.LedgerClient.
type StatusClient interface {
	AnchorStatus(ctx context.Context, txRef string) (*network.AnchorReceipt, error)
}

// Confirmer advances a record's Pending anchors to their terminal
// status by polling each chain's gateway. Submission returns before
// finality, so this runs asynchronously, driven by the
// anchor_confirmer worker's requeue loop.
type Confirmer struct {
	Logger  *logging.Logger
	Records RecordStore
	Ledgers map[string]StatusClient
}

func NewConfirmer(logger *logging.Logger, records RecordStore, ledgers map[string]StatusClient) *Confirmer {
	return &Confirmer{
		Logger:  logger,
		Records: records,
		Ledgers: ledgers,
	}
}

// Run polls every Pending anchor of the record once and persists any
// status changes. It returns the number of anchors still Pending, so
// the worker knows whether to requeue. Poll errors leave the anchor
// Pending; they are transient by definition here, because permanent
// gateway rejections already happened at submission time.
func (c *Confirmer) Run(ctx context.Context, recordID string) (pending int, err error) {
	record, err := c.Records.EvidenceRecordGet(recordID)
	if err != nil {
		return 0, err
	}
	if record == nil {
		return 0, fmt.Errorf("No such evidence record: %s", recordID)
	}
	changed := false
	for _, anchor := range record.Anchors {
		if anchor.Status != constants.StatusPending || anchor.TxRef == "" {
			continue
		}
		client := c.Ledgers[anchor.Chain]
		if client == nil {
			// Chain was removed from config since submission.
			// Leave the anchor pending; an operator decision is
			// needed, not an automatic failure.
			pending++
			continue
		}
		receipt, pollErr := client.AnchorStatus(ctx, anchor.TxRef)
		if pollErr != nil {
			if c.Logger != nil {
				c.Logger.Warningf("Cannot poll %s for tx %s: %v",
					anchor.Chain, anchor.TxRef, pollErr)
			}
			pending++
			continue
		}
		switch receipt.Status {
		case constants.StatusConfirmed:
			anchor.MarkConfirmed()
			changed = true
		case constants.StatusFailed:
			anchor.MarkFailed("Transaction did not reach finality")
			changed = true
		default:
			pending++
		}
	}
	if changed {
		err = c.Records.EvidenceRecordSave(record)
		if err != nil {
			return pending, err
		}
	}
	return pending, nil
}

// MarkUnconfirmable fails every still-Pending anchor of a record.
// The worker calls this when it has exhausted its polling attempts.
func (c *Confirmer) MarkUnconfirmable(recordID string) error {
	record, err := c.Records.EvidenceRecordGet(recordID)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("No such evidence record: %s", recordID)
	}
	changed := false
	for _, anchor := range record.Anchors {
		if anchor.Status == constants.StatusPending {
			anchor.MarkFailed("Finality was not observed within the polling window")
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return c.Records.EvidenceRecordSave(record)
}
