package httpclient

import (
	"context"
	nethttp "net/http"
)

// newAugmenter returns the interceptor that attaches session credentials. It runs first on
// every attempt so retries and replays always carry the current tokens.
func (c *client) newAugmenter() RequestInterceptor {
	return func(ctx context.Context, req *nethttp.Request) error {
		if matchesEndpoint(req.URL.Path, c.config.Endpoints.Refresh) {
			req.Header.Del(HeaderAuthorization)
			return nil
		}

		if access := c.readToken(ctx, "access", c.tokens.AccessToken); access != "" {
			req.Header.Set(HeaderAuthorization, "Bearer "+access)
		} else {
			req.Header.Del(HeaderAuthorization)
		}

		orgToken := c.readToken(ctx, "org", c.tokens.OrgToken)
		if orgToken == "" || c.decrypter == nil {
			return nil
		}
		key, err := c.decrypter.Decrypt(orgToken)
		if err != nil || key == "" {
			c.logger.Debug().
				Err(err).
				Str("header", c.config.OrgHeader).
				Msg("Organization token could not be decrypted, header omitted")
			return nil
		}
		req.Header.Set(c.config.OrgHeader, key)
		return nil
	}
}

// readToken treats store read errors as an absent token
func (c *client) readToken(ctx context.Context, name string, read func(context.Context) (string, error)) string {
	token, err := read(ctx)
	if err != nil {
		c.logger.Debug().Err(err).Str("token", name).Msg("Token store read failed, treating token as absent")
		return ""
	}
	return token
}

// noTokens is the store used when none is configured: every request goes out anonymous
type noTokens struct{}

func (noTokens) AccessToken(context.Context) (string, error)  { return "", nil }
func (noTokens) RefreshToken(context.Context) (string, error) { return "", nil }
func (noTokens) OrgToken(context.Context) (string, error)     { return "", nil }
func (noTokens) SetTokens(context.Context, string, string) error {
	return nil
}
func (noTokens) ClearTokens(context.Context) error { return nil }
