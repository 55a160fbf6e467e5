package workers_test

import (
	"context"
	"testing"
	"time"

	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verity-secure/evidence-services/constants"
	"github.com/verity-secure/evidence-services/custody"
	"github.com/verity-secure/evidence-services/models/service"
	"github.com/verity-secure/evidence-services/network"
	"github.com/verity-secure/evidence-services/util/testutil"
	"github.com/verity-secure/evidence-services/workers"
)

type stubStatusClient struct {
	status string
	err    error
}

func (s *stubStatusClient) AnchorStatus(ctx context.Context, txRef string) (*network.AnchorReceipt, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &network.AnchorReceipt{TxRef: txRef, Status: s.status}, nil
}

// getTestWorker returns an AnchorConfirmer with buffered channels and
// no NSQ consumer, so we can exercise the routing logic directly.
func getTestWorker(records *testutil.FakeRedis, ledgers map[string]custody.StatusClient) *workers.AnchorConfirmer {
	settings := &workers.Settings{
		ChannelBufferSize: 4,
		MaxAttempts:       3,
		NumberOfWorkers:   1,
		RequeueTimeout:    10 * time.Second,
	}
	return &workers.AnchorConfirmer{
		Settings:          settings,
		Confirmer:         custody.NewConfirmer(nil, records, ledgers),
		ProcessChannel:    make(chan *workers.Task, settings.ChannelBufferSize),
		SuccessChannel:    make(chan *workers.Task, settings.ChannelBufferSize),
		ErrorChannel:      make(chan *workers.Task, settings.ChannelBufferSize),
		FatalErrorChannel: make(chan *workers.Task, settings.ChannelBufferSize),
	}
}

func saveRecordWithPendingAnchor(t *testing.T, records *testutil.FakeRedis, recordID string) {
	record := service.NewEvidenceRecord(recordID, "trip_0411", "XYZ789",
		"d1fe173d08e959397adf34b1d77e88d7", "bafkreifake", 2048)
	anchor := service.NewLedgerAnchor(constants.ChainArbitrum)
	anchor.TxRef = "0xA1"
	record.Anchors = append(record.Anchors, anchor)
	require.Nil(t, records.EvidenceRecordSave(record))
}

func newTask(recordID string, attempts uint16) *workers.Task {
	message := nsq.NewMessage(nsq.MessageID{}, []byte(recordID))
	message.Attempts = attempts
	return &workers.Task{
		NSQMessage: message,
		RecordID:   recordID,
	}
}

func TestConfirmedAnchorGoesToSuccessChannel(t *testing.T) {
	records := testutil.NewFakeRedis()
	saveRecordWithPendingAnchor(t, records, "rec-1")
	worker := getTestWorker(records, map[string]custody.StatusClient{
		constants.ChainArbitrum: &stubStatusClient{status: constants.StatusConfirmed},
	})

	worker.ProcessChannel <- newTask("rec-1", 1)
	go worker.ProcessItem()

	select {
	case task := <-worker.SuccessChannel:
		assert.Equal(t, 0, task.PendingAnchors)
		assert.Nil(t, task.Error)
	case <-time.After(2 * time.Second):
		t.Fatal("Task never reached the success channel")
	}

	record, err := records.EvidenceRecordGet("rec-1")
	require.Nil(t, err)
	require.NotNil(t, record)
	assert.Equal(t, constants.StatusConfirmed, record.Anchors[0].Status)
}

func TestPendingAnchorGoesToErrorChannel(t *testing.T) {
	records := testutil.NewFakeRedis()
	saveRecordWithPendingAnchor(t, records, "rec-2")
	worker := getTestWorker(records, map[string]custody.StatusClient{
		constants.ChainArbitrum: &stubStatusClient{status: constants.StatusPending},
	})

	worker.ProcessChannel <- newTask("rec-2", 1)
	go worker.ProcessItem()

	select {
	case task := <-worker.ErrorChannel:
		assert.Equal(t, 1, task.PendingAnchors)
		assert.Nil(t, task.Error)
	case <-time.After(2 * time.Second):
		t.Fatal("Task never reached the error channel")
	}
}

func TestUnknownRecordGoesToErrorChannel(t *testing.T) {
	records := testutil.NewFakeRedis()
	worker := getTestWorker(records, map[string]custody.StatusClient{})

	worker.ProcessChannel <- newTask("no-such-record", 1)
	go worker.ProcessItem()

	select {
	case task := <-worker.ErrorChannel:
		assert.NotNil(t, task.Error)
	case <-time.After(2 * time.Second):
		t.Fatal("Task never reached the error channel")
	}
}

func TestExhaustedAttemptsGoToFatalErrorChannel(t *testing.T) {
	records := testutil.NewFakeRedis()
	saveRecordWithPendingAnchor(t, records, "rec-3")
	worker := getTestWorker(records, map[string]custody.StatusClient{
		constants.ChainArbitrum: &stubStatusClient{status: constants.StatusPending},
	})

	// Attempts meets MaxAttempts, so the polling window is over.
	worker.ProcessChannel <- newTask("rec-3", 3)
	go worker.ProcessItem()

	select {
	case task := <-worker.FatalErrorChannel:
		assert.Equal(t, 1, task.PendingAnchors)
	case <-time.After(2 * time.Second):
		t.Fatal("Task never reached the fatal error channel")
	}
}

func TestMarkUnconfirmableFailsPendingAnchors(t *testing.T) {
	records := testutil.NewFakeRedis()
	saveRecordWithPendingAnchor(t, records, "rec-4")
	worker := getTestWorker(records, map[string]custody.StatusClient{})

	require.Nil(t, worker.Confirmer.MarkUnconfirmable("rec-4"))

	record, err := records.EvidenceRecordGet("rec-4")
	require.Nil(t, err)
	require.NotNil(t, record)
	assert.Equal(t, constants.StatusFailed, record.Anchors[0].Status)
}
