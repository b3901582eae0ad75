package contaazul

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthRange(t *testing.T) {
	tests := []struct {
		year  int
		month time.Month
		from  string
		to    string
	}{
		{2025, time.January, "2025-01-01", "2025-01-31"},
		{2024, time.February, "2024-02-01", "2024-02-29"},
		{2025, time.February, "2025-02-01", "2025-02-28"},
		{2025, time.April, "2025-04-01", "2025-04-30"},
		{2025, time.December, "2025-12-01", "2025-12-31"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d-%02d", tt.year, tt.month), func(t *testing.T) {
			from, to := MonthRange(tt.year, tt.month)
			assert.Equal(t, tt.from, from)
			assert.Equal(t, tt.to, to)
		})
	}
}

func TestFetchMonth_BareArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/receivables", r.URL.Path)
		assert.Equal(t, "2025-03-01", r.URL.Query().Get("data_vencimento_de"))
		assert.Equal(t, "2025-03-31", r.URL.Query().Get("data_vencimento_ate"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id": "a1", "total": 150.5}, {"id": "a2", "total": 20}]`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL+"/v1/receivables", 50, zerolog.Nop())

	records, err := client.FetchMonth(context.Background(), 2025, time.March)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a1", records[0].ID())
	assert.JSONEq(t, `{"id": "a1", "total": 150.5}`, string(records[0].Raw))
}

func TestFetchMonth_DataEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": [{"id": "x"}]}`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL, 0, zerolog.Nop())

	records, err := client.FetchMonth(context.Background(), 2025, time.June)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "x", records[0].ID())
}

func TestFetchMonth_EmptyMonth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"itens": [], "itens_totais": 0}`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL, 10, zerolog.Nop())

	records, err := client.FetchMonth(context.Background(), 2025, time.July)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFetchMonth_FollowsPagination(t *testing.T) {
	var pages []int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, err := strconv.Atoi(r.URL.Query().Get("pagina"))
		assert.NoError(t, err)
		assert.Equal(t, "2", r.URL.Query().Get("tamanho_pagina"))
		pages = append(pages, page)

		var items []map[string]interface{}
		switch page {
		case 1:
			items = []map[string]interface{}{{"id": "1"}, {"id": "2"}}
		case 2:
			items = []map[string]interface{}{{"id": "3"}, {"id": "4"}}
		case 3:
			items = []map[string]interface{}{{"id": "5"}}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"itens":        items,
			"itens_totais": 5,
		})
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL, 2, zerolog.Nop())

	records, err := client.FetchMonth(context.Background(), 2025, time.January)
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, []int{1, 2, 3}, pages)
	assert.Equal(t, "5", records[4].ID())
}

func TestFetchMonth_StopsOnShortPage(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("pagina") == "1" {
			_, _ = w.Write([]byte(`{"itens": [{"id": "1"}], "itens_totais": 10}`))
			return
		}
		// Server over-reported its total
		_, _ = w.Write([]byte(`{"itens": [], "itens_totais": 10}`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL, 1, zerolog.Nop())

	records, err := client.FetchMonth(context.Background(), 2025, time.January)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 2, calls)
}

func TestFetchMonth_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": "invalid_token"}`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL, 10, zerolog.Nop())

	_, err := client.FetchMonth(context.Background(), 2025, time.January)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "invalid_token")
	assert.Contains(t, err.Error(), "401")
}

func TestFetchMonth_UnexpectedShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ``},
		{"scalar", `42`},
		{"object without items", `{"foo": []}`},
		{"data not a list", `{"data": {"id": "1"}}`},
		{"itens without total", `{"itens": []}`},
		{"non-object item", `[{"id": "1"}, "oops"]`},
		{"invalid json", `{"data": [`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(server.Client(), server.URL, 10, zerolog.Nop())

			_, err := client.FetchMonth(context.Background(), 2025, time.January)
			assert.ErrorIs(t, err, ErrUnexpectedResponse)
		})
	}
}

func TestFetchMonth_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(http.DefaultClient, url, 10, zerolog.Nop())

	_, err := client.FetchMonth(context.Background(), 2025, time.January)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnexpectedResponse)
}

func TestAPIError_TruncatesBody(t *testing.T) {
	body := make([]byte, 2000)
	for i := range body {
		body[i] = 'x'
	}
	err := &APIError{StatusCode: 500, Body: string(body)}
	assert.Less(t, len(err.Error()), 600)
}
