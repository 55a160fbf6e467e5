package testutil

import (
	"context"
	"sync"

	"github.com/verity-secure/evidence-services/constants"
	"github.com/verity-secure/evidence-services/network"
)

// FakeAnchorClient is a custody.AnchorClient that returns a canned
// receipt or error and counts calls, so tests can assert that no
// anchors are attempted after validation or storage failures.
type FakeAnchorClient struct {
	Receipt *network.AnchorReceipt
	Err     error

	calls    int
	payloads []*network.AnchorPayload
	mutex    sync.Mutex
}

// NewFakeAnchorClient returns a client that confirms every anchor
// with the given transaction reference.
func NewFakeAnchorClient(txRef string) *FakeAnchorClient {
	return &FakeAnchorClient{
		Receipt: &network.AnchorReceipt{
			TxRef:  txRef,
			Status: constants.StatusConfirmed,
		},
	}
}

// NewFailingAnchorClient returns a client whose submissions fail
// permanently, as if the gateway rejected the payload.
func NewFailingAnchorClient(chain, message string) *FakeAnchorClient {
	return &FakeAnchorClient{
		Err: &network.LedgerError{
			Chain:      chain,
			StatusCode: 400,
			Permanent:  true,
			Message:    message,
		},
	}
}

func (f *FakeAnchorClient) SubmitAnchor(ctx context.Context, payload *network.AnchorPayload) (*network.AnchorReceipt, int, error) {
	f.mutex.Lock()
	f.calls++
	f.payloads = append(f.payloads, payload)
	f.mutex.Unlock()
	if f.Err != nil {
		return nil, 1, f.Err
	}
	return f.Receipt, 1, nil
}

func (f *FakeAnchorClient) Calls() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.calls
}

func (f *FakeAnchorClient) LastPayload() *network.AnchorPayload {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if len(f.payloads) == 0 {
		return nil
	}
	return f.payloads[len(f.payloads)-1]
}

// FakeQueue records what was enqueued instead of talking to nsqd.
type FakeQueue struct {
	enqueued []string
	mutex    sync.Mutex
}

func NewFakeQueue() *FakeQueue {
	return &FakeQueue{}
}

func (q *FakeQueue) Enqueue(topic, recordID string) error {
	q.mutex.Lock()
	q.enqueued = append(q.enqueued, topic+"/"+recordID)
	q.mutex.Unlock()
	return nil
}

func (q *FakeQueue) Enqueued() []string {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return append([]string(nil), q.enqueued...)
}
