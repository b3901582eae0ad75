// Package contaazul provides the Conta Azul receivables API client.
package contaazul

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// ErrUnexpectedResponse is returned when a 2xx response does not have one of
// the known shapes.
var ErrUnexpectedResponse = errors.New("unexpected response from conta azul")

// maxPages bounds the pagination loop against a server that keeps
// reporting more items than it returns.
const maxPages = 1000

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("conta azul API returned status %d: %s", e.StatusCode, body)
}

// Client for the Conta Azul receivables search endpoint
type Client struct {
	endpoint   string
	httpClient *http.Client
	pageSize   int
	log        zerolog.Logger
}

// NewClient creates a client for endpoint (the full receivables search URL).
// httpClient must add the bearer token, see auth.Authenticator.HTTPClient.
func NewClient(httpClient *http.Client, endpoint string, pageSize int, log zerolog.Logger) *Client {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: httpClient,
		pageSize:   pageSize,
		log:        log.With().Str("client", "contaazul").Logger(),
	}
}

// MonthRange returns the first and last day of the month as ISO dates.
func MonthRange(year int, month time.Month) (string, string) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return start.Format(time.DateOnly), end.Format(time.DateOnly)
}

// FetchMonth returns every receivable due in the given month.
func (c *Client) FetchMonth(ctx context.Context, year int, month time.Month) ([]Record, error) {
	from, to := MonthRange(year, month)
	return c.Search(ctx, from, to)
}

// Search returns every receivable with a due date in [from, to], following
// pagination when the endpoint pages its results.
func (c *Client) Search(ctx context.Context, from, to string) ([]Record, error) {
	var (
		collected []Record
		total     = -1
	)

	for page := 1; page <= maxPages; page++ {
		result, err := c.fetchPage(ctx, from, to, page)
		if err != nil {
			return nil, err
		}

		for _, raw := range result.items {
			record, err := NewRecord(raw)
			if err != nil {
				return nil, err
			}
			collected = append(collected, record)
		}

		if !result.paged {
			break
		}
		if total < 0 {
			total = result.total
		}

		c.log.Debug().
			Str("from", from).
			Int("page", page).
			Int("items", len(result.items)).
			Int("total", total).
			Msg("Fetched page")

		if len(collected) >= total || len(result.items) == 0 {
			break
		}
		if page == maxPages {
			return nil, fmt.Errorf("%w: more than %d pages for %s..%s", ErrUnexpectedResponse, maxPages, from, to)
		}
	}

	c.log.Info().
		Str("from", from).
		Str("to", to).
		Int("records", len(collected)).
		Msg("Fetched receivables")

	return collected, nil
}

type pageResult struct {
	items []json.RawMessage
	total int
	paged bool
}

func (c *Client) fetchPage(ctx context.Context, from, to string, page int) (*pageResult, error) {
	params := url.Values{}
	params.Set("data_vencimento_de", from)
	params.Set("data_vencimento_ate", to)
	params.Set("pagina", strconv.Itoa(page))
	params.Set("tamanho_pagina", strconv.Itoa(c.pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return parsePage(body)
}

// parsePage accepts a bare array, {"data": [...]} or the paged
// {"itens": [...], "itens_totais": n} envelope.
func parsePage(body []byte) (*pageResult, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrUnexpectedResponse)
	}

	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
		}
		return &pageResult{items: items}, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}

	if rawItems, ok := envelope["itens"]; ok {
		rawTotal, ok := envelope["itens_totais"]
		if !ok {
			return nil, fmt.Errorf("%w: field 'itens_totais' missing", ErrUnexpectedResponse)
		}
		var items []json.RawMessage
		if err := json.Unmarshal(rawItems, &items); err != nil {
			return nil, fmt.Errorf("%w: field 'itens' must be a list", ErrUnexpectedResponse)
		}
		var total json.Number
		if err := json.Unmarshal(rawTotal, &total); err != nil {
			return nil, fmt.Errorf("%w: field 'itens_totais' must be a number", ErrUnexpectedResponse)
		}
		n, err := total.Int64()
		if err != nil {
			return nil, fmt.Errorf("%w: field 'itens_totais' must be an integer", ErrUnexpectedResponse)
		}
		return &pageResult{items: items, total: int(n), paged: true}, nil
	}

	if rawData, ok := envelope["data"]; ok {
		var items []json.RawMessage
		if err := json.Unmarshal(rawData, &items); err != nil {
			return nil, fmt.Errorf("%w: field 'data' must be a list", ErrUnexpectedResponse)
		}
		return &pageResult{items: items}, nil
	}

	return nil, fmt.Errorf("%w: no 'itens' or 'data' field", ErrUnexpectedResponse)
}
