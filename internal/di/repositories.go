package di

import (
	"github.com/bene2386/Conta-Azul/internal/modules/extraction"
	"github.com/bene2386/Conta-Azul/internal/modules/receivables"
	"github.com/bene2386/Conta-Azul/internal/modules/settings"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates the repositories on top of container.DB.
func InitializeRepositories(container *Container, log zerolog.Logger) {
	conn := container.DB.Conn()

	container.SettingsRepo = settings.NewRepository(conn, log)
	container.ReceivablesRepo = receivables.NewRepository(conn, log)
	container.RunRepo = extraction.NewRunRepository(conn, log)

	log.Debug().Msg("Repositories initialized")
}
