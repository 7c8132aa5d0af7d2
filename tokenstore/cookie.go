package tokenstore

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
)

// CookieNames maps the three tokens to cookie names
type CookieNames struct {
	Access  string
	Refresh string
	Org     string
}

// DefaultCookieNames returns accessToken / refreshToken / orgToken
func DefaultCookieNames() CookieNames {
	return CookieNames{Access: AccessTokenName, Refresh: RefreshTokenName, Org: OrgTokenName}
}

// Cookie persists tokens as cookies scoped to the API site. Sharing Jar() with the
// http.Client lets server-set cookies and client-set tokens live in one place.
type Cookie struct {
	jar   http.CookieJar
	site  *url.URL
	names CookieNames
}

// NewCookie returns a cookie-backed store for siteURL. A nil jar gets a fresh cookiejar.
func NewCookie(siteURL string, jar http.CookieJar, names CookieNames) (*Cookie, error) {
	site, err := url.Parse(siteURL)
	if err != nil {
		return nil, fmt.Errorf("tokenstore: parse site url: %w", err)
	}
	if site.Scheme == "" || site.Host == "" {
		return nil, fmt.Errorf("tokenstore: site url %q must be absolute", siteURL)
	}
	if jar == nil {
		jar, err = cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
	}

	defaults := DefaultCookieNames()
	if names.Access == "" {
		names.Access = defaults.Access
	}
	if names.Refresh == "" {
		names.Refresh = defaults.Refresh
	}
	if names.Org == "" {
		names.Org = defaults.Org
	}

	// cookies are stored at the site root so every API path sees them
	root := *site
	root.Path = "/"
	root.RawQuery = ""
	return &Cookie{jar: jar, site: &root, names: names}, nil
}

// Jar returns the backing cookie jar
func (c *Cookie) Jar() http.CookieJar { return c.jar }

// AccessToken returns the access token cookie value
func (c *Cookie) AccessToken(_ context.Context) (string, error) { return c.get(c.names.Access), nil }

// RefreshToken returns the refresh token cookie value
func (c *Cookie) RefreshToken(_ context.Context) (string, error) { return c.get(c.names.Refresh), nil }

// OrgToken returns the organization token cookie value
func (c *Cookie) OrgToken(_ context.Context) (string, error) { return c.get(c.names.Org), nil }

// SetTokens writes the access/refresh pair
func (c *Cookie) SetTokens(_ context.Context, access, refresh string) error {
	c.jar.SetCookies(c.site, []*http.Cookie{c.cookie(c.names.Access, access), c.cookie(c.names.Refresh, refresh)})
	return nil
}

// SetOrgToken writes the organization token
func (c *Cookie) SetOrgToken(_ context.Context, token string) error {
	c.jar.SetCookies(c.site, []*http.Cookie{c.cookie(c.names.Org, token)})
	return nil
}

// ClearTokens expires all three cookies
func (c *Cookie) ClearTokens(_ context.Context) error {
	expired := make([]*http.Cookie, 0, 3)
	for _, name := range []string{c.names.Access, c.names.Refresh, c.names.Org} {
		ck := c.cookie(name, "")
		ck.MaxAge = -1
		expired = append(expired, ck)
	}
	c.jar.SetCookies(c.site, expired)
	return nil
}

func (c *Cookie) cookie(name, value string) *http.Cookie {
	if value == "" {
		return &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1}
	}
	return &http.Cookie{Name: name, Value: value, Path: "/"}
}

func (c *Cookie) get(name string) string {
	for _, ck := range c.jar.Cookies(c.site) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}
