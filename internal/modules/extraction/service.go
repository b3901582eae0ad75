// Package extraction runs the Conta Azul receivables extraction: authenticate,
// fetch every month of a year in order and persist each month into CR.
package extraction

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bene2386/Conta-Azul/internal/clients/contaazul"
	"github.com/bene2386/Conta-Azul/internal/modules/receivables"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Authenticator provides the bearer-authenticated HTTP client.
type Authenticator interface {
	HTTPClient(ctx context.Context) (*http.Client, error)
}

// Fetcher returns the receivables of one month.
type Fetcher interface {
	FetchMonth(ctx context.Context, year int, month time.Month) ([]contaazul.Record, error)
}

// FetcherFactory builds a Fetcher on top of an authenticated client.
type FetcherFactory func(client *http.Client) Fetcher

// Persister stores the receivables of one month.
type Persister interface {
	SaveMonth(ctx context.Context, runID, period string, records []contaazul.Record) (int, error)
}

// RunStore records extraction runs.
type RunStore interface {
	Create(ctx context.Context, run *Run) error
	Finish(ctx context.Context, run *Run) error
}

// BackupService uploads a database backup.
type BackupService interface {
	CreateAndUploadBackup(ctx context.Context) error
}

// Service runs extractions.
type Service struct {
	auth       Authenticator
	newFetcher FetcherFactory
	persister  Persister
	runs       RunStore
	backup     BackupService // Optional
	now        func() time.Time
	log        zerolog.Logger
}

// NewService creates an extraction service. backup may be nil.
func NewService(
	auth Authenticator,
	newFetcher FetcherFactory,
	persister Persister,
	runs RunStore,
	backup BackupService,
	log zerolog.Logger,
) *Service {
	return &Service{
		auth:       auth,
		newFetcher: newFetcher,
		persister:  persister,
		runs:       runs,
		backup:     backup,
		now:        time.Now,
		log:        log.With().Str("service", "extraction").Logger(),
	}
}

// MonthsToFetch returns how many months of year are extracted at now:
// through the current month for the current year, all twelve for past years.
func MonthsToFetch(year int, now time.Time) (int, error) {
	switch {
	case year < now.Year():
		return 12, nil
	case year == now.Year():
		return int(now.Month()), nil
	default:
		return 0, fmt.Errorf("year %d is in the future", year)
	}
}

// Run extracts January through the last month due for year. Months are
// fetched and saved one at a time; the first failure stops the run and
// months already saved stay saved.
//
// The returned Run is non-nil whenever the run row was created, also on error.
func (s *Service) Run(ctx context.Context, year int) (*Run, error) {
	started := s.now()

	months, err := MonthsToFetch(year, started)
	if err != nil {
		return nil, err
	}

	run := &Run{
		ID:        uuid.NewString(),
		Year:      year,
		StartedAt: started,
		Status:    StatusRunning,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, err
	}

	log := s.log.With().Str("run_id", run.ID).Int("year", year).Logger()
	log.Info().Int("months", months).Msg("Extraction started")

	runErr := s.extract(ctx, run, months, log)

	finished := s.now()
	run.FinishedAt = &finished
	if runErr != nil {
		run.Status = StatusFailed
		run.Error = runErr.Error()
	} else {
		run.Status = StatusSucceeded
	}

	// The run row is closed even when ctx was canceled
	if err := s.runs.Finish(context.WithoutCancel(ctx), run); err != nil {
		log.Error().Err(err).Msg("Failed to record run result")
		if runErr == nil {
			runErr = err
		}
	}

	if runErr != nil {
		log.Error().
			Err(runErr).
			Int("months_saved", run.Months).
			Int("records", run.Records).
			Msg("Extraction failed")
		return run, runErr
	}

	log.Info().
		Int("months", run.Months).
		Int("records", run.Records).
		Dur("duration", finished.Sub(started)).
		Msg("Extraction completed")

	if s.backup != nil {
		if err := s.backup.CreateAndUploadBackup(ctx); err != nil {
			log.Error().Err(err).Msg("Backup after extraction failed")
		}
	}

	return run, nil
}

func (s *Service) extract(ctx context.Context, run *Run, months int, log zerolog.Logger) error {
	client, err := s.auth.HTTPClient(ctx)
	if err != nil {
		return err
	}
	fetcher := s.newFetcher(client)

	for m := 1; m <= months; m++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		month := time.Month(m)
		period := receivables.Period(run.Year, month)

		records, err := fetcher.FetchMonth(ctx, run.Year, month)
		if err != nil {
			return fmt.Errorf("failed to fetch %s: %w", period, err)
		}

		saved, err := s.persister.SaveMonth(ctx, run.ID, period, records)
		if err != nil {
			return fmt.Errorf("failed to save %s: %w", period, err)
		}

		run.Months++
		run.Records += saved

		log.Info().Str("period", period).Int("records", saved).Msg("Month extracted")
	}

	return nil
}
