package server

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"net/url"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// ErrAuthorizationDenied is delivered when the provider redirects back with
// an error instead of a code.
var ErrAuthorizationDenied = errors.New("authorization denied")

// Exchanger trades an authorization code for a token and persists it.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// CallbackHandler receives the OAuth2 redirect. The first conclusive
// request (a valid code, or a provider error) is reported on Done; later
// requests are refused without exchanging their code. Requests with a wrong
// state are rejected and ignored.
type CallbackHandler struct {
	exchanger Exchanger
	state     string
	log       zerolog.Logger

	mu       sync.Mutex // serializes conclusive requests
	finished bool
	done     chan error
}

// NewCallbackHandler creates a handler expecting state.
func NewCallbackHandler(exchanger Exchanger, state string, log zerolog.Logger) *CallbackHandler {
	return &CallbackHandler{
		exchanger: exchanger,
		state:     state,
		log:       log.With().Str("component", "oauth_callback").Logger(),
		done:      make(chan error, 1),
	}
}

// Done yields the outcome of the authorization, nil on success.
func (h *CallbackHandler) Done() <-chan error {
	return h.done
}

// finish records the outcome. Callers hold h.mu.
func (h *CallbackHandler) finish(err error) {
	h.finished = true
	h.done <- err
}

// ServeHTTP handles GET <redirect path>?code=..&state=..
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if query.Get("state") != h.state {
		h.log.Warn().Msg("Rejected callback with unexpected state")
		writePage(w, http.StatusBadRequest, "Invalid state parameter. Start the authorization again.")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.finished {
		writePage(w, http.StatusConflict, "Authorization was already completed. You can close this window.")
		return
	}

	if providerErr := query.Get("error"); providerErr != "" {
		desc := query.Get("error_description")
		h.log.Error().Str("error", providerErr).Str("description", desc).Msg("Authorization denied")
		writePage(w, http.StatusBadRequest, "Authorization failed: "+providerErr)
		h.finish(fmt.Errorf("%w: %s %s", ErrAuthorizationDenied, providerErr, desc))
		return
	}

	code := query.Get("code")
	if code == "" {
		writePage(w, http.StatusBadRequest, "Missing code parameter.")
		return
	}

	if _, err := h.exchanger.Exchange(r.Context(), code); err != nil {
		h.log.Error().Err(err).Msg("Code exchange failed")
		writePage(w, http.StatusBadGateway, "Could not exchange the authorization code.")
		h.finish(err)
		return
	}

	h.log.Info().Msg("Authorization completed, token stored")
	writePage(w, http.StatusOK, "Authorization completed. You can close this window.")
	h.finish(nil)
}

func writePage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, "<!doctype html><title>Conta Azul</title><p>%s</p>\n", html.EscapeString(message))
}

// CallbackAddress derives the listen address and route path from a
// redirect URI. A URI without a port listens on the scheme's default port.
func CallbackAddress(redirectURI string) (addr, path string, err error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", "", fmt.Errorf("invalid redirect URI: %w", err)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("redirect URI %q has no host", redirectURI)
	}

	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "http":
			port = "80"
		case "https":
			port = "443"
		default:
			return "", "", fmt.Errorf("redirect URI %q has no port", redirectURI)
		}
	}

	path = u.Path
	if path == "" {
		path = "/"
	}
	return net.JoinHostPort(u.Hostname(), port), path, nil
}
