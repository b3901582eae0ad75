package scheduler

import (
	"context"
	"time"

	"github.com/bene2386/Conta-Azul/internal/modules/extraction"
)

// Extractor runs one extraction for a year
type Extractor interface {
	Run(ctx context.Context, year int) (*extraction.Run, error)
}

// ExtractionJob runs the receivables extraction
type ExtractionJob struct {
	extractor Extractor
	year      func(now time.Time) int
}

// NewExtractionJob creates an extraction job. year picks the year to extract
// at each activation, see config.Config.ExtractionYear.
func NewExtractionJob(extractor Extractor, year func(now time.Time) int) *ExtractionJob {
	return &ExtractionJob{extractor: extractor, year: year}
}

// Name returns the job name
func (j *ExtractionJob) Name() string {
	return "extract_receivables"
}

// Run executes one extraction
func (j *ExtractionJob) Run(ctx context.Context) error {
	_, err := j.extractor.Run(ctx, j.year(time.Now()))
	return err
}
