package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/bene2386/Conta-Azul/internal/modules/extraction"
	"github.com/bene2386/Conta-Azul/internal/modules/receivables"
	"github.com/rs/zerolog"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200

	defaultReceivablesLimit = 100
	maxReceivablesLimit     = 1000
)

// RunLister lists recent extraction runs
type RunLister interface {
	Recent(ctx context.Context, limit int) ([]extraction.Run, error)
}

// Summarizer aggregates stored receivables per month
type Summarizer interface {
	Summary(ctx context.Context, year int) ([]receivables.PeriodSummary, error)
}

// ReceivableLister pages through the stored receivables of one month
type ReceivableLister interface {
	CountByPeriod(ctx context.Context, period string) (int, error)
	ListByPeriod(ctx context.Context, period string, limit, offset int) ([]receivables.Receivable, error)
}

// StatusHandlers serves the read-only status API
type StatusHandlers struct {
	runs        RunLister
	summary     Summarizer
	receivables ReceivableLister
	now         func() time.Time
	log         zerolog.Logger
}

// NewStatusHandlers creates status handlers
func NewStatusHandlers(runs RunLister, summary Summarizer, records ReceivableLister, log zerolog.Logger) *StatusHandlers {
	return &StatusHandlers{
		runs:        runs,
		summary:     summary,
		receivables: records,
		now:         time.Now,
		log:         log.With().Str("component", "status_handlers").Logger(),
	}
}

// RunsResponse is the body of GET /api/runs
type RunsResponse struct {
	Runs []extraction.Run `json:"runs"`
}

// SummaryResponse is the body of GET /api/summary
type SummaryResponse struct {
	Year    int                         `json:"year"`
	Periods []receivables.PeriodSummary `json:"periods"`
}

// ReceivablesResponse is the body of GET /api/receivables
type ReceivablesResponse struct {
	Period      string                   `json:"period"`
	Total       int                      `json:"total"`
	Limit       int                      `json:"limit"`
	Offset      int                      `json:"offset"`
	Receivables []receivables.Receivable `json:"receivables"`
}

// HandleRuns handles GET /api/runs?limit=N
func (h *StatusHandlers) HandleRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, h.log, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := h.runs.Recent(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		writeError(w, h.log, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []extraction.Run{}
	}

	writeJSON(w, h.log, http.StatusOK, RunsResponse{Runs: runs})
}

// HandleSummary handles GET /api/summary?year=YYYY, defaulting to the current year
func (h *StatusHandlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	year := h.now().Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 2000 || n > 9999 {
			writeError(w, h.log, http.StatusBadRequest, "year must be a four-digit year")
			return
		}
		year = n
	}

	periods, err := h.summary.Summary(r.Context(), year)
	if err != nil {
		h.log.Error().Err(err).Int("year", year).Msg("Failed to summarize receivables")
		writeError(w, h.log, http.StatusInternalServerError, "failed to summarize receivables")
		return
	}
	if periods == nil {
		periods = []receivables.PeriodSummary{}
	}

	writeJSON(w, h.log, http.StatusOK, SummaryResponse{Year: year, Periods: periods})
}

// HandleReceivables handles GET /api/receivables?period=YYYY-MM&limit=N&offset=N
func (h *StatusHandlers) HandleReceivables(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	period := query.Get("period")
	if _, err := time.Parse("2006-01", period); err != nil {
		writeError(w, h.log, http.StatusBadRequest, "period must be YYYY-MM")
		return
	}

	limit := defaultReceivablesLimit
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, h.log, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxReceivablesLimit)
	}

	offset := 0
	if raw := query.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, h.log, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		offset = n
	}

	total, err := h.receivables.CountByPeriod(r.Context(), period)
	if err != nil {
		h.log.Error().Err(err).Str("period", period).Msg("Failed to count receivables")
		writeError(w, h.log, http.StatusInternalServerError, "failed to list receivables")
		return
	}

	rows, err := h.receivables.ListByPeriod(r.Context(), period, limit, offset)
	if err != nil {
		h.log.Error().Err(err).Str("period", period).Msg("Failed to list receivables")
		writeError(w, h.log, http.StatusInternalServerError, "failed to list receivables")
		return
	}
	if rows == nil {
		rows = []receivables.Receivable{}
	}

	writeJSON(w, h.log, http.StatusOK, ReceivablesResponse{
		Period:      period,
		Total:       total,
		Limit:       limit,
		Offset:      offset,
		Receivables: rows,
	})
}
