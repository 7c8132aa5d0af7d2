package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	nethttp "net/http"
	"sync"
)

// waiter is a request parked behind an in-flight refresh. done receives exactly one value:
// nil when the refresh succeeded, the shared failure otherwise.
type waiter struct {
	ctx       context.Context
	requestID string
	done      chan *NormalizedError
	issued    chan struct{}
	issueOnce sync.Once
}

func newWaiter(ctx context.Context, requestID string) *waiter {
	return &waiter{
		ctx:       ctx,
		requestID: requestID,
		done:      make(chan *NormalizedError, 1),
		issued:    make(chan struct{}),
	}
}

// ack marks the replay as handed to the transport; the coordinator then releases the next waiter
func (w *waiter) ack() { w.issueOnce.Do(func() { close(w.issued) }) }

// refreshState is owned by one client. At most one refresh call is in flight per client and
// every waiter is settled exactly once, in enqueue order. generation counts successful cycles.
type refreshState struct {
	mu         sync.Mutex
	inFlight   bool
	waiters    []*waiter
	generation uint64
}

func (s *refreshState) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *refreshState) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiters)
}

func noAck() {}

// handleRefresh recovers from an expired access token. The first caller becomes the leader
// and performs the refresh call; callers arriving meanwhile queue up and are replayed in
// order once it settles. A call whose credentials were already replaced, by a cycle that
// closed after it was sent or by another writer of the store, is replayed without a new
// cycle. The returned ack must be called when the replay is handed to the transport.
func (c *client) handleRefresh(ctx context.Context, rc *call, trigger *failure) (func(), *NormalizedError) {
	rc.retried = true
	s := &c.refresh
	current := c.readToken(ctx, "access", c.tokens.AccessToken)

	s.mu.Lock()
	if s.inFlight {
		w := newWaiter(ctx, rc.requestID)
		s.waiters = append(s.waiters, w)
		queued := len(s.waiters)
		s.mu.Unlock()

		c.metrics.refreshWaiter(ctx)
		c.logger.Debug().
			Str("request_id", rc.requestID).
			Int("queue_position", queued).
			Msg("Waiting for in-flight token refresh")

		select {
		case nerr := <-w.done:
			if nerr != nil {
				return noAck, nerr
			}
			return w.ack, nil
		case <-ctx.Done():
			return noAck, normalize(rc, trigger, CategoryCredentialExpired, errors.Join(trigger.err, ctx.Err()), c.now())
		}
	}
	if s.generation != rc.generation || (current != "" && "Bearer "+current != rc.sentAuth) {
		s.mu.Unlock()
		c.logger.Debug().
			Str("request_id", rc.requestID).
			Str("path", rc.path).
			Msg("Access token already refreshed, replaying")
		return noAck, nil
	}
	s.inFlight = true
	s.mu.Unlock()

	c.logger.Info().Str("request_id", rc.requestID).Str("path", rc.path).Msg("Access token expired, refreshing")

	err := c.refreshTokens(ctx, rc.requestID)
	if err == nil {
		s.mu.Lock()
		s.generation++
		s.mu.Unlock()
		c.metrics.refreshCycle(ctx, true)
		released := c.releaseWaiters(nil, nil)
		c.logger.Info().
			Str("request_id", rc.requestID).
			Int("released", released).
			Msg("Token refresh succeeded, replaying queued requests")
		return noAck, nil
	}

	c.metrics.refreshCycle(ctx, false)
	nerr := c.refreshFailure(rc, trigger, err)
	if clearErr := c.tokens.ClearTokens(context.WithoutCancel(ctx)); clearErr != nil {
		c.logger.Warn().Err(clearErr).Msg("Failed to clear credentials after refresh failure")
	}

	released := c.releaseWaiters(nerr, func() { c.endSession(ctx) })
	c.logger.Warn().
		Err(err).
		Str("request_id", rc.requestID).
		Int("rejected", released).
		Msg("Token refresh failed, session terminated")
	return noAck, nerr
}

// releaseWaiters settles every queued waiter with nerr, draining late arrivals in the same
// cycle. settle runs once after the first drain while the cycle is still marked in flight.
// The cycle closes only when the queue is empty.
func (c *client) releaseWaiters(nerr *NormalizedError, settle func()) int {
	s := &c.refresh
	released := 0
	for {
		s.mu.Lock()
		batch := s.waiters
		s.waiters = nil
		if len(batch) == 0 {
			if settle != nil {
				s.mu.Unlock()
				settle()
				settle = nil
				continue
			}
			s.inFlight = false
			s.mu.Unlock()
			return released
		}
		s.mu.Unlock()

		for _, w := range batch {
			if w.ctx.Err() != nil {
				// abandoned
				continue
			}
			w.done <- nerr
			released++
			if nerr != nil {
				continue
			}
			select {
			case <-w.issued:
			case <-w.ctx.Done():
			}
		}
	}
}

// refreshFailure builds the one error shared by the leader and every waiter of a failed cycle
func (c *client) refreshFailure(rc *call, trigger *failure, err error) *NormalizedError {
	var rerr *refreshError
	if errors.As(err, &rerr) && rerr.resp != nil {
		refreshCall := &call{path: rerr.path, requestID: rc.requestID}
		return normalize(refreshCall, &failure{resp: rerr.resp}, CategoryCredentialInvalid, err, c.now())
	}
	category := CategoryCredentialInvalid
	if errors.Is(err, ErrRefreshUnavailable) {
		category = CategoryConnectivity
	}
	return normalize(rc, trigger, category, err, c.now())
}

// refreshTokens exchanges the stored refresh token for a new pair. The call is detached from
// the leader's cancellation and bounded by RefreshTimeout, and it bypasses classification.
func (c *client) refreshTokens(ctx context.Context, requestID string) error {
	refreshToken, err := c.tokens.RefreshToken(ctx)
	if err != nil || refreshToken == "" {
		return &refreshError{reason: ErrNoRefreshToken, cause: err}
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.RefreshTimeout)
	defer cancel()

	body, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return &refreshError{reason: ErrRefreshRejected, cause: err}
	}

	rc, err := c.newCall(nethttp.MethodPost, &Request{URL: c.config.Endpoints.Refresh, Body: body}, requestID)
	if err != nil {
		return &refreshError{reason: ErrRefreshRejected, cause: err}
	}

	resp, f := c.send(rctx, rc, noAck)
	if f != nil {
		if f.resp == nil {
			return &refreshError{reason: ErrRefreshUnavailable, cause: f.err}
		}
		return &refreshError{reason: ErrRefreshRejected, cause: f.err, resp: f.resp, path: rc.path}
	}

	access, rotated, err := parseTokenPair(resp.Body)
	if err != nil {
		return &refreshError{reason: ErrMalformedTokens, cause: err}
	}
	if rotated == "" {
		rotated = refreshToken
	}
	if err := c.tokens.SetTokens(rctx, access, rotated); err != nil {
		return &refreshError{reason: ErrTokenStore, cause: err}
	}
	return nil
}

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// parseTokenPair reads the pair from the top level or from a "data" envelope
func parseTokenPair(body []byte) (access, refresh string, err error) {
	var envelope struct {
		tokenPair
		Data *tokenPair `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", "", err
	}
	pair := envelope.tokenPair
	if pair.AccessToken == "" && envelope.Data != nil {
		pair = *envelope.Data
	}
	if pair.AccessToken == "" {
		return "", "", ErrMalformedTokens
	}
	return pair.AccessToken, pair.RefreshToken, nil
}

// endSession performs logout-and-redirect: a best-effort logout call, an unconditional
// credential clear, then the redirect.
func (c *client) endSession(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	if c.config.Endpoints.Logout != "" {
		lctx, cancel := context.WithTimeout(ctx, c.config.RefreshTimeout)
		rc, err := c.newCall(nethttp.MethodPost, &Request{URL: c.config.Endpoints.Logout}, "")
		if err == nil {
			if _, f := c.send(lctx, rc, noAck); f != nil {
				c.logger.Debug().Err(f.err).Msg("Logout call failed, ignoring")
			}
		}
		cancel()
	}

	if err := c.tokens.ClearTokens(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to clear credentials on logout")
	}
	c.metrics.sessionEnded(ctx)
	if c.redirector != nil {
		c.redirector.RedirectToLogin(ctx)
	}
}
