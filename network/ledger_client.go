package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/op/go-logging"

	"github.com/verity-secure/evidence-services/constants"
)

// AnchorPayload is the claim submitted to a chain gateway. It carries
// everything needed to later prove the evidence existed at the
// recorded time.
type AnchorPayload struct {
	Digest    string `json:"digest"`
	ContentID string `json:"content_id"`
	SessionID string `json:"session_id"`
	Plate     string `json:"plate"`
	Timestamp int64  `json:"timestamp"`
}

// AnchorReceipt is the gateway's acknowledgement of a submitted
// anchor. Status is normalized to a constants.Status* value. A
// receipt means the transaction was accepted for inclusion, not that
// it reached finality.
type AnchorReceipt struct {
	TxRef  string `json:"tx_ref"`
	Status string `json:"status"`
}

// LedgerError describes a failed gateway request. Permanent errors
// (4xx: malformed payload, rejected transaction) must not be retried.
// Transport errors and 5xx responses are transient.
type LedgerError struct {
	Chain      string
	URL        string
	StatusCode int
	Permanent  bool
	Message    string
	Err        error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("%s gateway: %s", e.Chain, e.Message)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

// IsPermanentLedgerError says whether err is a ledger error that
// bounded retries cannot fix.
func IsPermanentLedgerError(err error) bool {
	ledgerErr, ok := err.(*LedgerError)
	return ok && ledgerErr.Permanent
}

// LedgerClient submits anchor transactions to one chain's gateway and
// polls their status. One client per configured chain; all methods
// are safe for concurrent use.
type LedgerClient struct {
	Chain      string
	GatewayURL string
	APIKey     string
	MaxRetries int
	RetryDelay time.Duration
	httpClient *http.Client
	logger     *logging.Logger
}

func NewLedgerClient(chain, gatewayURL, apiKey string, maxRetries int, retryDelay time.Duration, logger *logging.Logger) (*LedgerClient, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("No gateway URL configured for chain %s", chain)
	}
	if _, err := url.Parse(gatewayURL); err != nil {
		return nil, fmt.Errorf("Bad gateway URL for chain %s: %v", chain, err)
	}
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &LedgerClient{
		Chain:      chain,
		GatewayURL: strings.TrimSuffix(gatewayURL, "/"),
		APIKey:     apiKey,
		MaxRetries: maxRetries,
		RetryDelay: retryDelay,
		httpClient: &http.Client{
			Transport: &http.Transport{
				DisableKeepAlives: false,
				ForceAttemptHTTP2: true,
			},
		},
		logger: logger,
	}, nil
}

// SubmitAnchor posts the payload to the gateway, retrying transient
// failures up to MaxRetries times with a fixed delay between
// attempts. It returns as soon as the gateway acknowledges the
// transaction; finality is the anchor_confirmer's concern. The
// returned attempt count includes the successful attempt.
func (client *LedgerClient) SubmitAnchor(ctx context.Context, payload *AnchorPayload) (receipt *AnchorReceipt, attempts int, err error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, &LedgerError{
			Chain:     client.Chain,
			Permanent: true,
			Message:   fmt.Sprintf("cannot marshal anchor payload: %v", err),
			Err:       err,
		}
	}
	submitURL := client.GatewayURL + "/api/v1/anchors"
	for attempts = 1; attempts <= client.MaxRetries; attempts++ {
		receipt, err = client.postAnchor(ctx, submitURL, body)
		if err == nil {
			return receipt, attempts, nil
		}
		if IsPermanentLedgerError(err) {
			return nil, attempts, err
		}
		if client.logger != nil {
			client.logger.Warningf("Anchor submission to %s failed (attempt %d of %d): %v",
				client.Chain, attempts, client.MaxRetries, err)
		}
		if attempts < client.MaxRetries {
			select {
			case <-ctx.Done():
				return nil, attempts, &LedgerError{
					Chain:   client.Chain,
					URL:     submitURL,
					Message: fmt.Sprintf("submission cancelled: %v", ctx.Err()),
					Err:     ctx.Err(),
				}
			case <-time.After(client.RetryDelay):
			}
		}
	}
	return nil, client.MaxRetries, err
}

func (client *LedgerClient) postAnchor(ctx context.Context, submitURL string, body []byte) (*AnchorReceipt, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, submitURL, bytes.NewReader(body))
	if err != nil {
		return nil, &LedgerError{Chain: client.Chain, URL: submitURL, Permanent: true, Message: err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if client.APIKey != "" {
		req.Header.Set("X-Api-Key", client.APIKey)
	}
	resp, err := client.httpClient.Do(req)
	if err != nil {
		return nil, &LedgerError{
			Chain:   client.Chain,
			URL:     submitURL,
			Message: fmt.Sprintf("request failed: %v", err),
			Err:     err,
		}
	}
	defer resp.Body.Close()
	respBody, _ := ioutil.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, &LedgerError{
			Chain:      client.Chain,
			URL:        submitURL,
			StatusCode: resp.StatusCode,
			Permanent:  resp.StatusCode < 500,
			Message: fmt.Sprintf("gateway returned status %d: %s",
				resp.StatusCode, strings.TrimSpace(string(respBody))),
		}
	}
	receipt := &AnchorReceipt{}
	err = json.Unmarshal(respBody, receipt)
	if err != nil {
		return nil, &LedgerError{
			Chain:      client.Chain,
			URL:        submitURL,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("cannot parse gateway response: %v", err),
			Err:        err,
		}
	}
	if receipt.TxRef == "" {
		return nil, &LedgerError{
			Chain:      client.Chain,
			URL:        submitURL,
			StatusCode: resp.StatusCode,
			Permanent:  true,
			Message:    "gateway acknowledged without a transaction reference",
		}
	}
	receipt.Status = normalizeStatus(receipt.Status)
	return receipt, nil
}

// AnchorStatus polls the gateway for a previously submitted
// transaction. Used by the anchor_confirmer worker; no retries here,
// the worker's requeue loop provides them.
func (client *LedgerClient) AnchorStatus(ctx context.Context, txRef string) (*AnchorReceipt, error) {
	statusURL := fmt.Sprintf("%s/api/v1/anchors/%s", client.GatewayURL, url.PathEscape(txRef))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return nil, &LedgerError{Chain: client.Chain, URL: statusURL, Permanent: true, Message: err.Error(), Err: err}
	}
	if client.APIKey != "" {
		req.Header.Set("X-Api-Key", client.APIKey)
	}
	resp, err := client.httpClient.Do(req)
	if err != nil {
		return nil, &LedgerError{
			Chain:   client.Chain,
			URL:     statusURL,
			Message: fmt.Sprintf("request failed: %v", err),
			Err:     err,
		}
	}
	defer resp.Body.Close()
	respBody, _ := ioutil.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, &LedgerError{
			Chain:      client.Chain,
			URL:        statusURL,
			StatusCode: resp.StatusCode,
			Permanent:  resp.StatusCode < 500,
			Message: fmt.Sprintf("gateway returned status %d: %s",
				resp.StatusCode, strings.TrimSpace(string(respBody))),
		}
	}
	receipt := &AnchorReceipt{}
	err = json.Unmarshal(respBody, receipt)
	if err != nil {
		return nil, &LedgerError{
			Chain:   client.Chain,
			URL:     statusURL,
			Message: fmt.Sprintf("cannot parse gateway response: %v", err),
			Err:     err,
		}
	}
	receipt.Status = normalizeStatus(receipt.Status)
	return receipt, nil
}

// Gateways report status in their own vocabulary. Anything we don't
// recognize as terminal stays Pending so the confirmer keeps polling.
func normalizeStatus(status string) string {
	switch strings.ToLower(status) {
	case "confirmed", "finalized", "included":
		return constants.StatusConfirmed
	case "failed", "rejected", "dropped":
		return constants.StatusFailed
	default:
		return constants.StatusPending
	}
}
