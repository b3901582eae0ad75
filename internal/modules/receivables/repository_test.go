package receivables

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bene2386/Conta-Azul/internal/clients/contaazul"
	testingpkg "github.com/bene2386/Conta-Azul/internal/testing"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo := NewRepository(testingpkg.NewMemoryDB(t), zerolog.Nop())
	repo.now = func() time.Time { return time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC) }
	return repo
}

func records(t *testing.T, raws ...string) []contaazul.Record {
	t.Helper()
	result := make([]contaazul.Record, 0, len(raws))
	for _, raw := range raws {
		record, err := contaazul.NewRecord(json.RawMessage(raw))
		require.NoError(t, err)
		result = append(result, record)
	}
	return result
}

func TestPeriod(t *testing.T) {
	assert.Equal(t, "2025-01", Period(2025, time.January))
	assert.Equal(t, "2025-12", Period(2025, time.December))
}

func TestSaveMonth_InsertsRecords(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	n, err := repo.SaveMonth(ctx, "run-1", "2025-03", records(t,
		`{"id": "b", "data_vencimento": "2025-03-20", "descricao": "Second", "status": "EM_ABERTO", "total": 20.5, "cliente": {"nome": "Beta"}}`,
		`{"id": "a", "data_vencimento": "2025-03-05", "descricao": "First", "status": "RECEBIDO", "total": "100.00"}`,
	))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := repo.CountByPeriod(ctx, "2025-03")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	rows, err := repo.ListByPeriod(ctx, "2025-03", 0, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, "a", first.RecordKey)
	assert.Equal(t, "2025-03-05", first.DueDate)
	assert.Equal(t, "First", first.Description)
	assert.Equal(t, "RECEBIDO", first.Status)
	require.True(t, first.Amount.Valid)
	assert.True(t, decimal.RequireFromString("100").Equal(first.Amount.Decimal))
	assert.Empty(t, first.Customer)
	assert.Equal(t, "run-1", first.RunID)
	assert.Equal(t, int64(1742032800), first.FetchedAt.Unix())

	second := rows[1]
	assert.Equal(t, "b", second.RecordKey)
	assert.Equal(t, "Beta", second.Customer)
	assert.JSONEq(t, `{"id": "b", "data_vencimento": "2025-03-20", "descricao": "Second", "status": "EM_ABERTO", "total": 20.5, "cliente": {"nome": "Beta"}}`, string(second.Data))
}

func TestListByPeriod_Pages(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	_, err := repo.SaveMonth(ctx, "run-1", "2025-05", records(t,
		`{"id": "c", "data_vencimento": "2025-05-30"}`,
		`{"id": "a", "data_vencimento": "2025-05-01"}`,
		`{"id": "b", "data_vencimento": "2025-05-15"}`,
	))
	require.NoError(t, err)

	page, err := repo.ListByPeriod(ctx, "2025-05", 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "a", page[0].RecordKey)
	assert.Equal(t, "b", page[1].RecordKey)

	page, err = repo.ListByPeriod(ctx, "2025-05", 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "c", page[0].RecordKey)

	page, err = repo.ListByPeriod(ctx, "2025-05", 0, 1)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	page, err = repo.ListByPeriod(ctx, "2025-06", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestSaveMonth_RerunDoesNotDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	_, err := repo.SaveMonth(ctx, "run-1", "2025-01", records(t,
		`{"id": "1", "status": "EM_ABERTO", "total": 10}`,
		`{"id": "2", "status": "EM_ABERTO", "total": 20}`,
	))
	require.NoError(t, err)

	_, err = repo.SaveMonth(ctx, "run-2", "2025-01", records(t,
		`{"id": "1", "status": "RECEBIDO", "total": 10}`,
		`{"id": "2", "status": "EM_ABERTO", "total": 20}`,
	))
	require.NoError(t, err)

	rows, err := repo.ListByPeriod(ctx, "2025-01", 0, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "RECEBIDO", rows[0].Status)
	assert.Equal(t, "run-2", rows[0].RunID)
	assert.Equal(t, "run-2", rows[1].RunID)
}

func TestSaveMonth_RemovesRecordsNoLongerReturned(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	_, err := repo.SaveMonth(ctx, "run-1", "2025-01", records(t, `{"id": "1"}`, `{"id": "2"}`))
	require.NoError(t, err)

	_, err = repo.SaveMonth(ctx, "run-2", "2025-01", records(t, `{"id": "2"}`))
	require.NoError(t, err)

	rows, err := repo.ListByPeriod(ctx, "2025-01", 0, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2", rows[0].RecordKey)

	// Empty month clears the period
	_, err = repo.SaveMonth(ctx, "run-3", "2025-01", nil)
	require.NoError(t, err)
	count, err := repo.CountByPeriod(ctx, "2025-01")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSaveMonth_KeepsMonthsApart(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	_, err := repo.SaveMonth(ctx, "run-1", "2025-01", records(t, `{"id": "1"}`))
	require.NoError(t, err)
	_, err = repo.SaveMonth(ctx, "run-1", "2025-02", records(t, `{"id": "1"}`, `{"id": "2"}`))
	require.NoError(t, err)

	jan, err := repo.CountByPeriod(ctx, "2025-01")
	require.NoError(t, err)
	feb, err := repo.CountByPeriod(ctx, "2025-02")
	require.NoError(t, err)

	assert.Equal(t, 1, jan)
	assert.Equal(t, 2, feb)
}

func TestSaveMonth_RecordsWithoutID(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	_, err := repo.SaveMonth(ctx, "run-1", "2025-01", records(t,
		`{"descricao": "x", "total": 1}`,
		`{"descricao": "y", "total": 1}`,
	))
	require.NoError(t, err)

	count, err := repo.CountByPeriod(ctx, "2025-01")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSaveMonth_IdenticalRecordsWithoutIDKeepOneRowEach(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	batch := records(t,
		`{"descricao": "x", "total": 1}`,
		`{"total": 1, "descricao": "x"}`,
		`{"descricao": "x", "total": 1}`,
	)

	saved, err := repo.SaveMonth(ctx, "run-1", "2025-03", batch)
	require.NoError(t, err)
	assert.Equal(t, 3, saved)

	count, err := repo.CountByPeriod(ctx, "2025-03")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// A rerun maps the copies onto the same rows
	saved, err = repo.SaveMonth(ctx, "run-2", "2025-03", batch)
	require.NoError(t, err)
	assert.Equal(t, 3, saved)

	count, err = repo.CountByPeriod(ctx, "2025-03")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// One copy fewer upstream removes one row
	saved, err = repo.SaveMonth(ctx, "run-3", "2025-03", batch[:2])
	require.NoError(t, err)
	assert.Equal(t, 2, saved)

	count, err = repo.CountByPeriod(ctx, "2025-03")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSaveMonth_RepeatedIDCountsOnce(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	saved, err := repo.SaveMonth(ctx, "run-1", "2025-04", records(t,
		`{"id": "a", "total": 1}`,
		`{"id": "a", "total": 2}`,
		`{"id": "b", "total": 3}`,
	))
	require.NoError(t, err)
	assert.Equal(t, 2, saved)

	count, err := repo.CountByPeriod(ctx, "2025-04")
	require.NoError(t, err)
	assert.Equal(t, saved, count)
}

func TestSaveMonth_Validation(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	_, err := repo.SaveMonth(ctx, "", "2025-01", nil)
	assert.Error(t, err)

	_, err = repo.SaveMonth(ctx, "run-1", "2025-13", nil)
	assert.Error(t, err)

	_, err = repo.SaveMonth(ctx, "run-1", "January", nil)
	assert.Error(t, err)
}

func TestSaveMonth_CanceledContext(t *testing.T) {
	repo := newTestRepository(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.SaveMonth(ctx, "run-1", "2025-01", records(t, `{"id": "1"}`))
	assert.Error(t, err)
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	_, err := repo.SaveMonth(ctx, "run-1", "2024-12", records(t, `{"id": "old", "total": 999}`))
	require.NoError(t, err)
	_, err = repo.SaveMonth(ctx, "run-1", "2025-01", records(t,
		`{"id": "1", "total": 10}`,
		`{"id": "2", "total": "20.00"}`,
		`{"id": "3", "total": 30}`,
	))
	require.NoError(t, err)
	_, err = repo.SaveMonth(ctx, "run-1", "2025-02", records(t,
		`{"id": "4"}`,
		`{"id": "5", "total": 7.25}`,
	))
	require.NoError(t, err)

	summaries, err := repo.Summary(ctx, 2025)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	jan := summaries[0]
	assert.Equal(t, "2025-01", jan.Period)
	assert.Equal(t, 3, jan.Count)
	assert.Equal(t, 3, jan.Priced)
	assert.Equal(t, "60.00", FormatAmount(jan.Total))
	assert.InDelta(t, 20.0, jan.Mean, 1e-9)
	assert.InDelta(t, 10.0, jan.StdDev, 1e-9)
	assert.Equal(t, "10.00", FormatAmount(jan.Minimum))
	assert.Equal(t, "30.00", FormatAmount(jan.Maximum))

	feb := summaries[1]
	assert.Equal(t, "2025-02", feb.Period)
	assert.Equal(t, 2, feb.Count)
	assert.Equal(t, 1, feb.Priced)
	assert.Equal(t, "7.25", FormatAmount(feb.Total))
	assert.InDelta(t, 7.25, feb.Mean, 1e-9)
	assert.Zero(t, feb.StdDev)
}

func TestSummary_EmptyYear(t *testing.T) {
	summaries, err := newTestRepository(t).Summary(context.Background(), 2030)
	require.NoError(t, err)
	assert.Empty(t, summaries)
}
