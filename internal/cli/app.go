package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bene2386/Conta-Azul/internal/config"
	"github.com/bene2386/Conta-Azul/internal/di"
	"github.com/bene2386/Conta-Azul/pkg/logger"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app is what every command needs before it touches the database.
type app struct {
	cfg *config.Config
	log zerolog.Logger
}

// loadApp reads the environment (and .env) and builds the logger. Console
// formatting is only used when the log output is a terminal.
func loadApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	out := cmd.ErrOrStderr()
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty && isTerminal(out),
		Output: out,
	})

	return &app{cfg: cfg, log: log}, nil
}

// wire opens the database and builds the services.
func (a *app) wire(ctx context.Context) (*di.Container, error) {
	return di.Wire(ctx, a.cfg, a.log)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// resolveYear returns --year when given, otherwise the configured year.
func resolveYear(cmd *cobra.Command, cfg *config.Config, now time.Time) (int, error) {
	if !cmd.Flags().Changed("year") {
		return cfg.ExtractionYear(now), nil
	}
	year, err := cmd.Flags().GetInt("year")
	if err != nil {
		return 0, err
	}
	if year < 2000 || year > now.Year() {
		return 0, fmt.Errorf("--year %d is out of range (2000-%d)", year, now.Year())
	}
	return year, nil
}
