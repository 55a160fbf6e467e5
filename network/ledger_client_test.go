package network_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verity-secure/evidence-services/constants"
	"github.com/verity-secure/evidence-services/network"
)

var testPayload = &network.AnchorPayload{
	Digest:    "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
	ContentID: "bafkreifh22am7dnitOnePlaceholderCid",
	SessionID: "trip_12345",
	Plate:     "ABC-1234",
	Timestamp: time.Now().UTC().Unix(),
}

func newLedgerClient(t *testing.T, gatewayURL string, retries int) *network.LedgerClient {
	client, err := network.NewLedgerClient(
		constants.ChainArbitrum,
		gatewayURL,
		"test-key",
		retries,
		1*time.Millisecond,
		nil)
	require.Nil(t, err)
	return client
}

func TestNewLedgerClientRequiresGatewayURL(t *testing.T) {
	_, err := network.NewLedgerClient(
		constants.ChainScroll, "", "", 3, time.Millisecond, nil)
	assert.NotNil(t, err)
}

func TestSubmitAnchorSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/anchors", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"tx_ref":"0xA1","status":"accepted"}`))
	}))
	defer server.Close()

	client := newLedgerClient(t, server.URL, 3)
	receipt, attempts, err := client.SubmitAnchor(context.Background(), testPayload)
	require.Nil(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, "0xA1", receipt.TxRef)
	assert.Equal(t, constants.StatusPending, receipt.Status)
}

func TestSubmitAnchorRetriesTransientErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"tx_ref":"0xB2","status":"included"}`))
	}))
	defer server.Close()

	client := newLedgerClient(t, server.URL, 5)
	receipt, attempts, err := client.SubmitAnchor(context.Background(), testPayload)
	require.Nil(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
	assert.Equal(t, "0xB2", receipt.TxRef)
	assert.Equal(t, constants.StatusConfirmed, receipt.Status)
}

func TestSubmitAnchorGivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newLedgerClient(t, server.URL, 3)
	_, attempts, err := client.SubmitAnchor(context.Background(), testPayload)
	require.NotNil(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
	assert.False(t, network.IsPermanentLedgerError(err))
}

func TestSubmitAnchorPermanentFailureDoesNotRetry(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`malformed payload`))
	}))
	defer server.Close()

	client := newLedgerClient(t, server.URL, 5)
	_, attempts, err := client.SubmitAnchor(context.Background(), testPayload)
	require.NotNil(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
	assert.True(t, network.IsPermanentLedgerError(err))

	ledgerErr := err.(*network.LedgerError)
	assert.Equal(t, http.StatusBadRequest, ledgerErr.StatusCode)
	assert.Contains(t, ledgerErr.Message, "malformed payload")
}

func TestSubmitAnchorRejectsEmptyTxRef(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"accepted"}`))
	}))
	defer server.Close()

	client := newLedgerClient(t, server.URL, 1)
	_, _, err := client.SubmitAnchor(context.Background(), testPayload)
	require.NotNil(t, err)
	assert.True(t, network.IsPermanentLedgerError(err))
}

func TestAnchorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/anchors/0xA1", r.URL.Path)
		w.Write([]byte(`{"tx_ref":"0xA1","status":"finalized"}`))
	}))
	defer server.Close()

	client := newLedgerClient(t, server.URL, 1)
	receipt, err := client.AnchorStatus(context.Background(), "0xA1")
	require.Nil(t, err)
	assert.Equal(t, constants.StatusConfirmed, receipt.Status)
}

func TestAnchorStatusUnknownVocabularyStaysPending(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tx_ref":"0xA1","status":"in_mempool"}`))
	}))
	defer server.Close()

	client := newLedgerClient(t, server.URL, 1)
	receipt, err := client.AnchorStatus(context.Background(), "0xA1")
	require.Nil(t, err)
	assert.Equal(t, constants.StatusPending, receipt.Status)
}
