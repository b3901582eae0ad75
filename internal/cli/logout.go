package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored Conta Azul token",
		Long: `Delete the stored OAuth2 token. The next extraction needs a new
authorization code, see "conta-azul authorize".`,
		Args: cobra.NoArgs,
		RunE: runLogoutCmd,
	}
}

func runLogoutCmd(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}

	container, err := a.wire(cmd.Context())
	if err != nil {
		return err
	}
	defer container.Close()

	if err := container.TokenStore.Clear(cmd.Context()); err != nil {
		return err
	}
	a.log.Info().Str("token_store", a.cfg.TokenStore).Msg("Stored token removed")

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s Run %s to authorize again.\n", Success("Logged out."), Primary("conta-azul authorize"))
	return nil
}
