// Package auth handles the Conta Azul OAuth2 authorization-code and
// refresh-token flows and keeps the resulting token persisted.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// Errors related to auth
var (
	ErrAuthentication        = errors.New("authentication failed")
	ErrAuthorizationRequired = errors.New("authorization required")
)

// AuthorizationRequiredError is returned when there is neither a usable
// stored token nor an authorization code. URL is where the user grants access.
type AuthorizationRequiredError struct {
	URL string
}

func (e *AuthorizationRequiredError) Error() string {
	return fmt.Sprintf("%s: set CONTA_AZUL_AUTH_CODE with the code obtained at %s", ErrAuthorizationRequired, e.URL)
}

// Is makes errors.Is(err, ErrAuthorizationRequired) match.
func (e *AuthorizationRequiredError) Is(target error) bool {
	return target == ErrAuthorizationRequired
}

// DefaultScopes are the scopes Conta Azul's Cognito pool grants to API clients.
var DefaultScopes = []string{"openid", "profile", "aws.cognito.signin.user.admin"}

// Config holds the OAuth2 client settings.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	TokenURL     string
	Scopes       []string     // Defaults to DefaultScopes
	AuthCode     string       // One-time code for the first run
	HTTPClient   *http.Client // Used for token endpoint calls and as the API transport base
}

// Authenticator obtains access tokens and persists every token it receives.
type Authenticator struct {
	oauth      *oauth2.Config
	store      TokenStore
	authCode   string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewAuthenticator creates an authenticator backed by store.
func NewAuthenticator(cfg Config, store TokenStore, log zerolog.Logger) *Authenticator {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Authenticator{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
				// Conta Azul expects HTTP Basic client authentication
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		store:      store,
		authCode:   cfg.AuthCode,
		httpClient: httpClient,
		log:        log.With().Str("component", "auth").Logger(),
	}
}

// withClient makes the oauth2 package use our HTTP client.
func (a *Authenticator) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
}

// NewState returns a random value for the OAuth2 state parameter.
func NewState() string {
	return uuid.NewString()
}

// AuthCodeURL returns the URL where the user authorizes the application.
func (a *Authenticator) AuthCodeURL(state string) string {
	return a.oauth.AuthCodeURL(state)
}

// Token returns a valid token. It prefers, in order: the stored token while
// its access token is valid, a refresh of the stored refresh token, and the
// configured authorization code. Without any of them it returns an
// *AuthorizationRequiredError.
//
// A stored token without an expiry is refreshed when it carries a refresh
// token, since its lifetime is unknown.
func (a *Authenticator) Token(ctx context.Context) (*oauth2.Token, error) {
	stored, err := a.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored token: %w", err)
	}

	if stored != nil {
		if stored.Valid() && (!stored.Expiry.IsZero() || stored.RefreshToken == "") {
			a.log.Debug().Time("expiry", stored.Expiry).Msg("Using stored access token")
			return stored, nil
		}
		if stored.RefreshToken != "" {
			return a.Refresh(ctx, stored.RefreshToken)
		}
		a.log.Warn().Msg("Stored token has no refresh token")
	}

	if a.authCode != "" {
		return a.Exchange(ctx, a.authCode)
	}

	return nil, &AuthorizationRequiredError{URL: a.AuthCodeURL(NewState())}
}

// Exchange trades an authorization code for a token pair and persists it.
func (a *Authenticator) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	a.log.Info().Msg("Exchanging authorization code")

	token, err := a.oauth.Exchange(a.withClient(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: authorization code exchange: %w", ErrAuthentication, err)
	}
	if err := a.persist(ctx, token); err != nil {
		return nil, err
	}

	a.log.Info().Time("expiry", token.Expiry).Msg("Authorization code exchanged")
	return token, nil
}

// Refresh exchanges a refresh token for a new token and persists it. When
// the response carries no refresh token the old one is kept.
func (a *Authenticator) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	a.log.Info().Msg("Refreshing access token")

	src := a.oauth.TokenSource(a.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: refresh token exchange: %w", ErrAuthentication, err)
	}
	if err := a.persist(ctx, token); err != nil {
		return nil, err
	}

	a.log.Info().Time("expiry", token.Expiry).Msg("Access token refreshed")
	return token, nil
}

func (a *Authenticator) persist(ctx context.Context, token *oauth2.Token) error {
	if token.AccessToken == "" {
		return fmt.Errorf("%w: token endpoint returned an empty access token", ErrAuthentication)
	}
	if token.RefreshToken == "" {
		a.log.Warn().Msg("Token endpoint returned no refresh token; next run will need a new authorization code")
	}
	if err := a.store.Save(ctx, token); err != nil {
		return fmt.Errorf("failed to persist token: %w", err)
	}
	return nil
}

// HTTPClient returns a client that sends the bearer token on every request
// and refreshes (and persists) it when it expires mid-run.
func (a *Authenticator) HTTPClient(ctx context.Context) (*http.Client, error) {
	token, err := a.Token(ctx)
	if err != nil {
		return nil, err
	}

	src := &persistingTokenSource{
		ctx:   ctx,
		base:  a.oauth.TokenSource(a.withClient(ctx), token),
		store: a.store,
		last:  token.AccessToken,
		log:   a.log,
	}

	client := oauth2.NewClient(a.withClient(ctx), src)
	client.Timeout = a.httpClient.Timeout
	return client, nil
}

// persistingTokenSource saves every new token produced by base.
type persistingTokenSource struct {
	ctx   context.Context
	base  oauth2.TokenSource
	store TokenStore
	log   zerolog.Logger

	mu   sync.Mutex
	last string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := s.base.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	if token.AccessToken != s.last {
		if err := s.store.Save(s.ctx, token); err != nil {
			return nil, fmt.Errorf("failed to persist refreshed token: %w", err)
		}
		s.last = token.AccessToken
		s.log.Info().Time("expiry", token.Expiry).Msg("Access token refreshed during run")
	}
	return token, nil
}
