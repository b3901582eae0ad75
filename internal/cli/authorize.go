package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bene2386/Conta-Azul/internal/auth"
	"github.com/bene2386/Conta-Azul/internal/server"
	"github.com/spf13/cobra"
)

// newState is replaced in tests to make the state predictable.
var newState = auth.NewState

func newAuthorizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authorize",
		Short: "Print the authorization URL, optionally receiving the redirect",
		Long: `Print the URL where a Conta Azul user grants access to this application.

Without --listen, copy the code parameter of the redirect into
CONTA_AZUL_AUTH_CODE and run the extractor. With --listen, a server on the
redirect URI's host and port receives the redirect, exchanges the code and
stores the token.`,
		Args: cobra.NoArgs,
		RunE: runAuthorizeCmd,
	}
	cmd.Flags().Bool("listen", false, "serve the redirect URI and exchange the code automatically")
	cmd.Flags().Duration("timeout", 5*time.Minute, "how long --listen waits for the redirect")
	return cmd
}

func runAuthorizeCmd(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	if err := a.cfg.RequireCredentials(); err != nil {
		return err
	}
	listen, _ := cmd.Flags().GetBool("listen")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	container, err := a.wire(cmd.Context())
	if err != nil {
		return err
	}
	defer container.Close()

	state := newState()
	w := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(w, headerStyle.Render("Open this URL to authorize access:"))
	_, _ = fmt.Fprintln(w, Primary(container.Authenticator.AuthCodeURL(state)))

	if !listen {
		_, _ = fmt.Fprintln(w, Silent("Then set CONTA_AZUL_AUTH_CODE to the code parameter of the redirect and run the extractor."))
		return nil
	}

	addr, path, err := server.CallbackAddress(a.cfg.RedirectURI)
	if err != nil {
		return err
	}

	callback := server.NewCallbackHandler(container.Authenticator, state, a.log)
	srv := server.New(server.Config{
		Addr:         addr,
		Log:          a.log,
		Callback:     callback,
		CallbackPath: path,
	})

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start()
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			a.log.Warn().Err(err).Msg("Callback server did not shut down cleanly")
		}
	}()

	_, _ = fmt.Fprintf(w, "%s %s\n", Silent("Waiting for the redirect on"), a.cfg.RedirectURI)

	select {
	case err := <-callback.Done():
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(w, Success("Authorization completed, token stored."))
		return nil
	case err := <-serveErr:
		if err == nil {
			err = errors.New("callback server stopped")
		}
		return fmt.Errorf("callback server on %s: %w", addr, err)
	case <-time.After(timeout):
		return fmt.Errorf("no redirect received within %s", timeout)
	case <-cmd.Context().Done():
		return cmd.Context().Err()
	}
}
