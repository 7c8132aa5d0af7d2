// Package apiclient assembles the resilient HTTP client from configuration and adds the
// session operations of the HRMS backend: login, logout and current user.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/akjtjhklf/fnb-hrms-client/config"
	"github.com/akjtjhklf/fnb-hrms-client/httpclient"
	"github.com/akjtjhklf/fnb-hrms-client/logger"
	"github.com/akjtjhklf/fnb-hrms-client/orgkey"
	"github.com/akjtjhklf/fnb-hrms-client/tokenstore"
)

var (
	// ErrNotConfigured is returned by New for a nil configuration
	ErrNotConfigured = errors.New("apiclient: configuration is required")
	// ErrNoAccessToken means the login response carried no access token
	ErrNoAccessToken = errors.New("apiclient: login response has no access token")
)

// API is the resilient client bound to one HRMS backend and one token store.
// The embedded Client issues arbitrary requests with credential attachment, refresh
// and retry applied.
type API struct {
	httpclient.Client

	tokens    httpclient.TokenStore
	endpoints config.EndpointsConfig
	logger    logger.Logger
	closers   []io.Closer
}

// Session describes the signed-in user as read from the access token
type Session struct {
	AccessToken string
	Subject     string
	Role        string
	OrgID       string
	// ExpiresAt is zero when the token is opaque or carries no expiry
	ExpiresAt time.Time
}

// New builds an API from cfg. opts may be nil.
func New(ctx context.Context, cfg *config.Config, opts *Options) (*API, error) {
	if cfg == nil {
		return nil, ErrNotConfigured
	}
	if opts == nil {
		opts = &Options{}
	}

	log := opts.Logger
	if log == nil {
		log = logger.New(cfg.Log.Level, cfg.Log.Pretty)
	}

	a := &API{endpoints: cfg.Auth.Endpoints, logger: log}

	httpClient, err := a.initTokenStore(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}

	builder := httpclient.NewBuilder(log).
		WithBaseURL(cfg.API.BaseURL).
		WithTimeout(cfg.API.Timeout).
		WithRetryPolicy(httpclient.RetryPolicy{
			MaxRetries:        cfg.Retry.MaxRetries,
			RetryDelay:        cfg.Retry.Delay,
			MaxRetryDelay:     cfg.Retry.MaxDelay,
			Backoff:           httpclient.BackoffStrategy(cfg.Retry.Strategy),
			RetryableStatuses: cfg.Retry.Statuses,
		}).
		WithEndpoints(httpclient.Endpoints{
			Login:       cfg.Auth.Endpoints.Login,
			Refresh:     cfg.Auth.Endpoints.Refresh,
			Logout:      cfg.Auth.Endpoints.Logout,
			CurrentUser: cfg.Auth.Endpoints.CurrentUser,
		}).
		WithTokenStore(a.tokens).
		WithOrgHeader(cfg.Auth.OrgHeader).
		WithRefreshTimeout(cfg.Auth.RefreshTimeout).
		WithRateLimit(cfg.API.RateLimit, cfg.API.RateBurst).
		WithPayloadLogging(cfg.Log.Payloads, cfg.Log.MaxPayloadBytes).
		WithTracing(cfg.API.Tracing).
		WithRedirector(opts.Redirector).
		WithMeterProvider(opts.MeterProvider)

	for name, value := range cfg.API.Headers {
		builder.WithDefaultHeader(name, value)
	}
	for _, interceptor := range opts.Interceptors {
		builder.WithRequestInterceptor(interceptor)
	}
	if httpClient != nil {
		builder.WithHTTPClient(httpClient)
	}
	if opts.Transport != nil {
		builder.WithTransport(opts.Transport)
	}

	switch {
	case opts.OrgKeyDecrypter != nil:
		builder.WithOrgKeyDecrypter(opts.OrgKeyDecrypter)
	case cfg.Auth.OrgSecret != "":
		builder.WithOrgKeyDecrypter(orgkey.NewAES(cfg.Auth.OrgSecret))
	}

	a.Client = builder.Build()

	log.Info().
		Str("base_url", cfg.API.BaseURL).
		Str("token_backend", cfg.Tokens.Backend).
		Int("max_retries", cfg.Retry.MaxRetries).
		Msg("API client ready")
	return a, nil
}

// initTokenStore selects the token backend. The cookie backend returns the http.Client
// sharing its jar.
func (a *API) initTokenStore(ctx context.Context, cfg *config.Config, opts *Options) (*nethttp.Client, error) {
	if opts.TokenStore != nil {
		a.tokens = opts.TokenStore
		return nil, nil
	}

	switch cfg.Tokens.Backend {
	case config.TokenBackendCookie:
		store, err := tokenstore.NewCookie(cfg.API.BaseURL, nil, tokenstore.CookieNames{
			Access:  cfg.Tokens.Cookie.Access,
			Refresh: cfg.Tokens.Cookie.Refresh,
			Org:     cfg.Tokens.Cookie.Org,
		})
		if err != nil {
			return nil, err
		}
		a.tokens = store
		return &nethttp.Client{Jar: store.Jar()}, nil

	case config.TokenBackendRedis:
		store, err := tokenstore.NewRedis(ctx, &tokenstore.RedisConfig{
			Addr:     cfg.Tokens.Redis.Addr,
			Password: cfg.Tokens.Redis.Password,
			DB:       cfg.Tokens.Redis.DB,
			Key:      cfg.Tokens.Redis.Key,
			TTL:      cfg.Tokens.TTL,
		})
		if err != nil {
			return nil, err
		}
		a.tokens = store
		a.closers = append(a.closers, store)
		return nil, nil

	default:
		a.tokens = tokenstore.NewMemory(tokenstore.Credentials{})
		return nil, nil
	}
}

// Tokens returns the token store the client reads on every attempt
func (a *API) Tokens() httpclient.TokenStore { return a.tokens }

// Close releases the token backend connection when New opened it
func (a *API) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginTokens struct {
	AccessToken       string `json:"accessToken"`
	RefreshToken      string `json:"refreshToken"`
	OrganizationToken string `json:"organizationToken"`
}

// Login posts the credentials and persists the returned tokens. The organization token
// is kept when the store can hold it. A rejected login never triggers a refresh.
func (a *API) Login(ctx context.Context, username, password string) (*Session, error) {
	body, err := json.Marshal(loginRequest{Username: username, Password: password})
	if err != nil {
		return nil, err
	}

	resp, err := a.Post(ctx, &httpclient.Request{URL: a.endpoints.Login, Body: body})
	if err != nil {
		return nil, err
	}

	var tokens loginTokens
	if err := decodeData(resp.Body, &tokens); err != nil {
		return nil, fmt.Errorf("apiclient: decode login response: %w", err)
	}
	if tokens.AccessToken == "" {
		return nil, ErrNoAccessToken
	}

	if err := a.tokens.SetTokens(ctx, tokens.AccessToken, tokens.RefreshToken); err != nil {
		return nil, fmt.Errorf("apiclient: store tokens: %w", err)
	}
	if tokens.OrganizationToken != "" {
		if setter, ok := a.tokens.(tokenstore.OrgTokenSetter); ok {
			if err := setter.SetOrgToken(ctx, tokens.OrganizationToken); err != nil {
				return nil, fmt.Errorf("apiclient: store organization token: %w", err)
			}
		} else {
			a.logger.Warn().Msg("Token store cannot hold the organization token; org header disabled")
		}
	}

	session := a.session(tokens.AccessToken)
	a.logger.Info().
		Str("subject", session.Subject).
		Str("role", session.Role).
		Msg("Signed in")
	return session, nil
}

// Logout calls the logout endpoint once and then clears the stored tokens, even when
// the call failed.
func (a *API) Logout(ctx context.Context) error {
	_, callErr := a.Post(ctx, &httpclient.Request{URL: a.endpoints.Logout})
	if callErr != nil {
		a.logger.Warn().Err(callErr).Msg("Logout call failed; clearing local session")
	}
	if err := a.tokens.ClearTokens(ctx); err != nil {
		return errors.Join(callErr, fmt.Errorf("apiclient: clear tokens: %w", err))
	}
	return callErr
}

// CurrentUser fetches the signed-in user and decodes it into out. A "data" envelope
// is unwrapped.
func (a *API) CurrentUser(ctx context.Context, out any) error {
	resp, err := a.Get(ctx, &httpclient.Request{URL: a.endpoints.CurrentUser})
	if err != nil {
		return err
	}
	if err := decodeData(resp.Body, out); err != nil {
		return fmt.Errorf("apiclient: decode current user: %w", err)
	}
	return nil
}

// Session reads the stored access token. It returns nil when nobody is signed in.
func (a *API) Session(ctx context.Context) (*Session, error) {
	token, err := a.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, nil
	}
	return a.session(token), nil
}

// FetchAll issues concurrent GETs and returns the responses in path order. The first
// failure cancels the remaining requests. Concurrent 401s share one refresh cycle.
func (a *API) FetchAll(ctx context.Context, paths ...string) ([]*httpclient.Response, error) {
	responses := make([]*httpclient.Response, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			resp, err := a.Get(gctx, &httpclient.Request{URL: path})
			if err != nil {
				return err
			}
			responses[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return responses, nil
}

func (a *API) session(token string) *Session {
	s := &Session{AccessToken: token}
	claims, err := tokenstore.ParseClaims(token)
	if err != nil {
		a.logger.Debug().Err(err).Msg("Access token is not a readable JWT")
		return s
	}
	s.Subject = claims.Subject
	s.Role = claims.Role
	s.OrgID = claims.OrgID
	if exp, err := claims.Expiry(); err == nil {
		s.ExpiresAt = exp
	}
	return s
}

// decodeData unmarshals body into out, unwrapping a non-null "data" member when present
func decodeData(body []byte, out any) error {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if data := bytes.TrimSpace(envelope.Data); len(data) > 0 && !bytes.Equal(data, []byte("null")) {
			return json.Unmarshal(data, out)
		}
	}
	return json.Unmarshal(body, out)
}
