// Package fakeapi is an in-process HRMS backend for tests. It issues signed JWT sessions,
// rotates refresh tokens, checks the organization header and can be told to fail.
package fakeapi

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/akjtjhklf/fnb-hrms-client/orgkey"
	"github.com/akjtjhklf/fnb-hrms-client/tokenstore"
)

// BasePath prefixes every route
const BasePath = "/api"

// Defaults used when Options leaves a field empty
const (
	DefaultUsername  = "manager@fnb.example"
	DefaultPassword  = "correct horse"
	DefaultRole      = "manager"
	DefaultOrgID     = "org-1"
	DefaultOrgHeader = "X-Org-Key"
)

// Options configures the fake backend
type Options struct {
	Username string
	Password string
	Role     string
	OrgID    string
	// OrgKey is the plain organization key expected on OrgHeader. Empty skips the check.
	OrgKey    string
	OrgSecret string
	OrgHeader string
	// AccessTTL is the lifetime of issued access tokens (default 15m)
	AccessTTL time.Duration
	// RefreshDelay holds every refresh response, widening the window for concurrent 401s
	RefreshDelay time.Duration
}

// Server is a running fake backend
type Server struct {
	opts   Options
	secret []byte
	echo   *echo.Echo
	http   *httptest.Server

	mu      sync.Mutex
	access  map[string]bool
	refresh map[string]bool
	failing map[string]failure
	hits    map[string]int

	refreshCalls atomic.Int32
	logoutCalls  atomic.Int32
}

type failure struct {
	status    int
	remaining int
}

// Start launches the backend on a loopback port. Close it with Close.
func Start(opts Options) *Server {
	applyDefaults(&opts)

	s := &Server{
		opts:    opts,
		secret:  []byte(uuid.NewString()),
		echo:    echo.New(),
		access:  make(map[string]bool),
		refresh: make(map[string]bool),
		failing: make(map[string]failure),
		hits:    make(map[string]int),
	}
	s.routes()
	s.http = httptest.NewServer(s.echo)
	return s
}

func applyDefaults(opts *Options) {
	if opts.Username == "" {
		opts.Username = DefaultUsername
	}
	if opts.Password == "" {
		opts.Password = DefaultPassword
	}
	if opts.Role == "" {
		opts.Role = DefaultRole
	}
	if opts.OrgID == "" {
		opts.OrgID = DefaultOrgID
	}
	if opts.OrgHeader == "" {
		opts.OrgHeader = DefaultOrgHeader
	}
	if opts.AccessTTL == 0 {
		opts.AccessTTL = 15 * time.Minute
	}
}

func (s *Server) routes() {
	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler
	e.Validator = &requestValidator{validate: validator.New()}

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(otelecho.Middleware("hrms-fakeapi"))
	e.Use(s.countHits, s.injectFailures)

	api := e.Group(BasePath)
	api.POST("/auth/login", s.login)
	api.POST("/auth/refresh-token", s.refreshToken)
	api.POST("/auth/logout", s.logout)

	protected := api.Group("", s.authenticate)
	protected.GET("/auth/me", s.me)
	protected.GET("/employees", s.employees)
	protected.GET("/schedule", s.schedule)
	protected.GET("/departments", s.departments)
	protected.POST("/employees", s.createEmployee)
}

// URL is the API base URL, including BasePath
func (s *Server) URL() string { return s.http.URL + BasePath }

// Close shuts the backend down
func (s *Server) Close() { s.http.Close() }

// RefreshCalls counts refresh endpoint hits
func (s *Server) RefreshCalls() int { return int(s.refreshCalls.Load()) }

// LogoutCalls counts logout endpoint hits
func (s *Server) LogoutCalls() int { return int(s.logoutCalls.Load()) }

// Hits counts requests to path, relative to BasePath
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[BasePath+path]
}

// FailNext makes the next n requests to path answer status
func (s *Server) FailNext(path string, status, n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[BasePath+path] = failure{status: status, remaining: n}
}

// ExpireAccessTokens invalidates every issued access token, as if they had timed out
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.access)
}

// RevokeSessions invalidates every access and refresh token
func (s *Server) RevokeSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.access)
	clear(s.refresh)
}

// IssueTokens creates a valid session pair without going through login
func (s *Server) IssueTokens() (access, refresh string, err error) {
	return s.issue()
}

// OrgToken seals OrgKey with OrgSecret, as returned by login
func (s *Server) OrgToken() (string, error) {
	if s.opts.OrgKey == "" {
		return "", nil
	}
	return orgkey.NewAES(s.opts.OrgSecret).Encrypt(s.opts.OrgKey)
}

func (s *Server) issue() (access, refresh string, err error) {
	now := time.Now()
	claims := tokenstore.Claims{
		Role:  s.opts.Role,
		OrgID: s.opts.OrgID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   s.opts.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.opts.AccessTTL)),
		},
	}
	access, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", "", err
	}
	refresh = uuid.NewString()

	s.mu.Lock()
	s.access[access] = true
	s.refresh[refresh] = true
	s.mu.Unlock()
	return access, refresh, nil
}

// verify checks the signature, expiry and that the token was not invalidated
func (s *Server) verify(token string) (*tokenstore.Claims, error) {
	claims := &tokenstore.Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.access[token] {
		return nil, errors.New("token expired")
	}
	return claims, nil
}

func (s *Server) countHits(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.mu.Lock()
		s.hits[c.Request().URL.Path]++
		s.mu.Unlock()
		return next(c)
	}
}

func (s *Server) injectFailures(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.Request().URL.Path
		s.mu.Lock()
		f, ok := s.failing[path]
		if ok {
			f.remaining--
			if f.remaining <= 0 {
				delete(s.failing, path)
			} else {
				s.failing[path] = f
			}
		}
		s.mu.Unlock()

		if ok {
			return echo.NewHTTPError(f.status, http.StatusText(f.status))
		}
		return next(c)
	}
}

func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
		if !ok || token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Missing bearer token")
		}
		claims, err := s.verify(token)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, fmt.Sprintf("Invalid token: %v", err))
		}
		if s.opts.OrgKey != "" && c.Request().Header.Get(s.opts.OrgHeader) != s.opts.OrgKey {
			return echo.NewHTTPError(http.StatusForbidden, "Organization key mismatch")
		}
		c.Set("claims", claims)
		return next(c)
	}
}
