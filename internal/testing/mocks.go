package testing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bene2386/Conta-Azul/internal/clients/contaazul"
	"golang.org/x/oauth2"
)

// MockTokenStore is an in-memory token store for testing
type MockTokenStore struct {
	mu    sync.RWMutex
	token *oauth2.Token
	saves int
	err   error
}

// NewMockTokenStore creates a token store holding token (may be nil)
func NewMockTokenStore(token *oauth2.Token) *MockTokenStore {
	return &MockTokenStore{token: token}
}

// SetError sets the error to return from Load and Save
func (m *MockTokenStore) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Load returns the stored token
func (m *MockTokenStore) Load(_ context.Context) (*oauth2.Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.token == nil {
		return nil, nil
	}
	token := *m.token
	return &token, nil
}

// Save stores token
func (m *MockTokenStore) Save(_ context.Context, token *oauth2.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if token == nil {
		return errors.New("cannot store a nil token")
	}
	stored := *token
	m.token = &stored
	m.saves++
	return nil
}

// Clear forgets the stored token
func (m *MockTokenStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.token = nil
	return nil
}

// Saves returns how many tokens were stored
func (m *MockTokenStore) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// MockFetcher serves canned records per month
type MockFetcher struct {
	mu      sync.Mutex
	records map[time.Month][]contaazul.Record
	errs    map[time.Month]error
	calls   []time.Month
}

// NewMockFetcher creates an empty fetcher; unknown months return no records
func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		records: make(map[time.Month][]contaazul.Record),
		errs:    make(map[time.Month]error),
	}
}

// SetRecords sets the records returned for month
func (m *MockFetcher) SetRecords(month time.Month, records []contaazul.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[month] = records
}

// SetError makes month fail with err
func (m *MockFetcher) SetError(month time.Month, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[month] = err
}

// FetchMonth returns the records set for month
func (m *MockFetcher) FetchMonth(_ context.Context, _ int, month time.Month) ([]contaazul.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, month)
	if err := m.errs[month]; err != nil {
		return nil, err
	}
	return m.records[month], nil
}

// Calls returns the months requested, in order
func (m *MockFetcher) Calls() []time.Month {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Month(nil), m.calls...)
}
