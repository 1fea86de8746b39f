package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	customError "github.com/Dianasmith6525/amerilendloan-sub000/pkg/errors"
)

// HTTPObserver queries a block explorer API of the form
// GET {base}/v1/{currency}/addresses/{address}/transactions?since=RFC3339
type HTTPObserver struct {
	baseURL          string
	apiKey           string
	minConfirmations int
	httpClient       *http.Client
}

type explorerResponse struct {
	Transactions []ObservedTx `json:"transactions"`
}

func NewHTTPObserver(baseURL, apiKey string, minConfirmations int, timeout time.Duration) *HTTPObserver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPObserver{
		baseURL:          strings.TrimSuffix(baseURL, "/"),
		apiKey:           apiKey,
		minConfirmations: minConfirmations,
		httpClient:       &http.Client{Timeout: timeout},
	}
}

// LookupTransactions returns the confirmed transfers of exactly q.Amount, in the
// order the explorer lists them.
// 404 means the address has no history yet; 5xx and network errors are transient.
func (o *HTTPObserver) LookupTransactions(ctx context.Context, q TxQuery) ([]ObservedTx, error) {
	if o.baseURL == "" {
		return nil, fmt.Errorf("blockchain observer base URL is not configured")
	}

	endpoint := fmt.Sprintf("%s/v1/%s/addresses/%s/transactions?since=%s",
		o.baseURL,
		url.PathEscape(strings.ToLower(string(q.Currency))),
		url.PathEscape(q.Address),
		url.QueryEscape(q.Since.UTC().Format(time.RFC3339)),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if o.apiKey != "" {
		req.Header.Set("X-API-Key", o.apiKey)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, customError.WrapProviderError(customError.ProviderTransient, "blockchain observer unavailable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, customError.WrapProviderError(customError.ProviderTransient,
			"blockchain observer unavailable", fmt.Errorf("observer returned status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return nil, customError.WrapProviderError(customError.ProviderNotFound,
			"blockchain observer rejected the lookup", fmt.Errorf("observer returned status %d", resp.StatusCode))
	}

	var body explorerResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, customError.WrapProviderError(customError.ProviderTransient, "blockchain observer sent an unreadable response", err)
	}

	var matches []ObservedTx
	for _, tx := range body.Transactions {
		if tx.Confirmations < o.minConfirmations {
			continue
		}
		if tx.ObservedAt.Before(q.Since) || !tx.Amount.Equal(q.Amount) {
			continue
		}
		matches = append(matches, tx)
	}
	return matches, nil
}
