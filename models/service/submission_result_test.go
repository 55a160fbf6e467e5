package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verity-secure/evidence-services/constants"
	"github.com/verity-secure/evidence-services/models/service"
)

func TestSubmissionResultSucceeded(t *testing.T) {
	result := service.NewSubmissionResult()
	assert.False(t, result.Succeeded(), "no record means no success")

	result.Record = newTestRecord()
	result.Record.Anchors[0].MarkConfirmed()
	result.Record.Anchors[1].MarkConfirmed()
	assert.True(t, result.Succeeded())
	assert.False(t, result.PartialFailure())
}

func TestSubmissionResultPartialFailure(t *testing.T) {
	result := service.NewSubmissionResult()
	result.Record = newTestRecord()
	result.Record.Anchors[0].TxRef = "0xA1"
	result.Record.Anchors[0].MarkConfirmed()
	result.Record.Anchors[1].MarkFailed("permanent rejection")
	result.AddError(service.NewLedgerError(
		constants.ChainScroll, "trip_12345", "permanent rejection", true))

	assert.False(t, result.Succeeded())
	assert.True(t, result.PartialFailure())

	// The record still carries the stored content reference and
	// the successful anchor.
	assert.Equal(t, testContentID, result.Record.ContentID)
	assert.Equal(t, "0xA1", result.Record.AnchorFor(constants.ChainArbitrum).TxRef)
}

func TestSubmissionResultErrors(t *testing.T) {
	result := service.NewSubmissionResult()
	assert.Nil(t, result.FirstError())

	result.AddError(service.NewValidationError("trip_12345", "plate cannot be empty"))
	result.AddError(service.NewStorageError("trip_12345", "connection refused"))

	first := result.FirstError()
	require.NotNil(t, first)
	assert.Equal(t, constants.ErrValidation, first.Kind)
	assert.Contains(t, result.ErrorMessage(), "plate cannot be empty")
	assert.Contains(t, result.ErrorMessage(), "connection refused")
}

func TestProcessingErrorKinds(t *testing.T) {
	validation := service.NewValidationError("trip_1", "no session")
	assert.True(t, validation.IsFatal)
	assert.Equal(t, constants.ErrValidation, validation.Kind)

	storage := service.NewStorageError("trip_1", "unreachable")
	assert.False(t, storage.IsFatal, "storage errors are retryable by resubmission")

	ledger := service.NewLedgerError(constants.ChainArbitrum, "trip_1", "503", false)
	assert.Equal(t, constants.ChainArbitrum, ledger.Chain)
	assert.Contains(t, ledger.Error(), constants.ChainArbitrum)

	timeout := service.NewTimeoutError("trip_1", "exceeded 90s")
	assert.True(t, timeout.IsFatal)
	assert.Contains(t, timeout.Detail(), "fatal")
	assert.Contains(t, timeout.Detail(), "source:")
}
