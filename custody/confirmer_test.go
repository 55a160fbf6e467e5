package custody_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verity-secure/evidence-services/constants"
	"github.com/verity-secure/evidence-services/custody"
	"github.com/verity-secure/evidence-services/models/service"
	"github.com/verity-secure/evidence-services/network"
	"github.com/verity-secure/evidence-services/util/testutil"
)

type fakeStatusClient struct {
	status string
	err    error
}

func (f *fakeStatusClient) AnchorStatus(ctx context.Context, txRef string) (*network.AnchorReceipt, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &network.AnchorReceipt{TxRef: txRef, Status: f.status}, nil
}

func pendingRecord(t *testing.T, redis *testutil.FakeRedis) *service.EvidenceRecord {
	record := service.NewEvidenceRecord(
		"rec-1", "trip_12345", "ABC-1234",
		"9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
		"bafkreiplaceholder", 4096)
	arbitrum := service.NewLedgerAnchor(constants.ChainArbitrum)
	arbitrum.TxRef = "0xA1"
	scroll := service.NewLedgerAnchor(constants.ChainScroll)
	scroll.TxRef = "0xB2"
	record.Anchors = append(record.Anchors, arbitrum, scroll)
	require.Nil(t, redis.EvidenceRecordSave(record))
	return record
}

func TestConfirmerRunConfirmsAnchors(t *testing.T) {
	redis := testutil.NewFakeRedis()
	record := pendingRecord(t, redis)
	confirmer := custody.NewConfirmer(nil, redis, map[string]custody.StatusClient{
		constants.ChainArbitrum: &fakeStatusClient{status: constants.StatusConfirmed},
		constants.ChainScroll:   &fakeStatusClient{status: constants.StatusPending},
	})

	pending, err := confirmer.Run(context.Background(), record.RecordID)
	require.Nil(t, err)
	assert.Equal(t, 1, pending)

	saved, err := redis.EvidenceRecordGet(record.RecordID)
	require.Nil(t, err)
	assert.Equal(t, constants.StatusConfirmed, saved.AnchorFor(constants.ChainArbitrum).Status)
	assert.Equal(t, constants.StatusPending, saved.AnchorFor(constants.ChainScroll).Status)

	// Second pass: the remaining chain reaches finality.
	confirmer.Ledgers[constants.ChainScroll] = &fakeStatusClient{status: constants.StatusConfirmed}
	pending, err = confirmer.Run(context.Background(), record.RecordID)
	require.Nil(t, err)
	assert.Equal(t, 0, pending)

	saved, err = redis.EvidenceRecordGet(record.RecordID)
	require.Nil(t, err)
	assert.True(t, saved.AllAnchorsSucceeded())
}

func TestConfirmerRunHandlesDroppedTransaction(t *testing.T) {
	redis := testutil.NewFakeRedis()
	record := pendingRecord(t, redis)
	confirmer := custody.NewConfirmer(nil, redis, map[string]custody.StatusClient{
		constants.ChainArbitrum: &fakeStatusClient{status: constants.StatusFailed},
		constants.ChainScroll:   &fakeStatusClient{status: constants.StatusConfirmed},
	})

	pending, err := confirmer.Run(context.Background(), record.RecordID)
	require.Nil(t, err)
	assert.Equal(t, 0, pending)

	saved, err := redis.EvidenceRecordGet(record.RecordID)
	require.Nil(t, err)
	assert.Equal(t, constants.StatusFailed, saved.AnchorFor(constants.ChainArbitrum).Status)
	assert.Equal(t, constants.StatusConfirmed, saved.AnchorFor(constants.ChainScroll).Status)
}

func TestConfirmerRunPollErrorLeavesAnchorPending(t *testing.T) {
	redis := testutil.NewFakeRedis()
	record := pendingRecord(t, redis)
	confirmer := custody.NewConfirmer(nil, redis, map[string]custody.StatusClient{
		constants.ChainArbitrum: &fakeStatusClient{err: errors.New("gateway timeout")},
		constants.ChainScroll:   &fakeStatusClient{err: errors.New("gateway timeout")},
	})

	pending, err := confirmer.Run(context.Background(), record.RecordID)
	require.Nil(t, err)
	assert.Equal(t, 2, pending)
}

func TestConfirmerRunUnknownRecord(t *testing.T) {
	confirmer := custody.NewConfirmer(nil, testutil.NewFakeRedis(), nil)
	_, err := confirmer.Run(context.Background(), "rec-unknown")
	assert.NotNil(t, err)
}

func TestMarkUnconfirmable(t *testing.T) {
	redis := testutil.NewFakeRedis()
	record := pendingRecord(t, redis)
	record.Anchors[0].MarkConfirmed()
	require.Nil(t, redis.EvidenceRecordSave(record))

	confirmer := custody.NewConfirmer(nil, redis, nil)
	require.Nil(t, confirmer.MarkUnconfirmable(record.RecordID))

	saved, err := redis.EvidenceRecordGet(record.RecordID)
	require.Nil(t, err)
	assert.Equal(t, constants.StatusConfirmed, saved.AnchorFor(constants.ChainArbitrum).Status,
		"confirmed anchors never regress")
	assert.Equal(t, constants.StatusFailed, saved.AnchorFor(constants.ChainScroll).Status)
}
