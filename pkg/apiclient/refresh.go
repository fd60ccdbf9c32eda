package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	json "github.com/bytedance/sonic"

	"github.com/moweilong/univadmin/pkg/errorsx"
	"github.com/moweilong/univadmin/pkg/log"
)

// waiter is a request suspended until the refresh in flight settles.
type waiter struct {
	seq  uint64
	path string
	done chan refreshResult
}

type refreshResult struct {
	token string
	err   *errorsx.Error
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// IsRefreshing reports whether a token refresh is in flight.
func (c *Client) IsRefreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshing
}

func (c *Client) pendingLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// renewToken returns the access token to replay a with. The first caller after an expiry
// refreshes, callers arriving while it runs queue behind it and share its result.
//
// The store is only read outside of c.mu, a slow file or redis store never holds up callers
// waiting for the lock.
func (c *Client) renewToken(ctx context.Context, path string, a attempt) (string, *errorsx.Error) {
	c.mu.Lock()
	if c.refreshing {
		return c.wait(ctx, path)
	}
	gen := c.gen
	c.mu.Unlock()

	stored, err := c.creds.AccessToken(ctx)

	c.mu.Lock()
	if c.refreshing {
		return c.wait(ctx, path)
	}
	if c.gen != gen {
		// A refresh settled while we read the store, share its result.
		last := c.last
		c.mu.Unlock()
		c.logger.W(ctx).Debugw("token refreshed meanwhile, replaying", "path", path, "ok", last.err == nil)
		return last.token, last.err
	}
	if err == nil && stored != "" && stored != a.token {
		// A refresh finished between our send and the 401, replay with the token it stored.
		c.mu.Unlock()
		c.metrics.observeRefresh(refreshStaleToken)
		c.logger.W(ctx).Debugw("access token changed since send, replaying", "path", path)
		return stored, nil
	}
	c.refreshing = true
	c.mu.Unlock()

	// The shared refresh must not be cut short by the caller that happened to start it.
	token, rerr := c.refresh(context.WithoutCancel(ctx), a.err)
	if rerr != nil {
		c.clearCredentials(ctx)
	}
	c.settle(token, rerr)
	if rerr != nil && c.onSessionExpired != nil {
		c.onSessionExpired(ctx, rerr)
	}
	return token, rerr
}

// wait queues the caller behind the refresh in flight. c.mu must be held, wait releases it.
func (c *Client) wait(ctx context.Context, path string) (string, *errorsx.Error) {
	c.seq++
	w := &waiter{seq: c.seq, path: path, done: make(chan refreshResult, 1)}
	c.pending = append(c.pending, w)
	c.mu.Unlock()

	c.metrics.observeQueued()
	c.logger.W(ctx).Debugw("queued behind token refresh", "seq", w.seq, "path", path)

	select {
	case r := <-w.done:
		return r.token, r.err
	case <-ctx.Done():
		// the refresh goes on, its result is dropped into the buffered channel
		return "", errorsx.FromTransport(ctx.Err())
	}
}

// settle releases the queued requests in the order they arrived and clears the flag.
func (c *Client) settle(token string, err *errorsx.Error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.refreshing = false
	c.gen++
	c.last = refreshResult{token: token, err: err}
	c.mu.Unlock()

	for _, w := range pending {
		c.logger.Debugw("release queued request", "seq", w.seq, "path", w.path, "ok", err == nil)
		w.done <- refreshResult{token: token, err: err}
	}
}

// refresh exchanges the stored refresh token for a new access token and stores it.
// Any failure is session ending, authErr is the 401 that started it.
func (c *Client) refresh(ctx context.Context, authErr *errorsx.Error) (string, *errorsx.Error) {
	logger := c.logger.W(ctx)

	refreshToken, err := c.creds.RefreshToken(ctx)
	if err != nil {
		c.metrics.observeRefresh(refreshFailure)
		return "", errorsx.SessionExpired(errorsx.FromTransport(fmt.Errorf("read refresh token: %w", err)))
	}
	if refreshToken == "" {
		c.metrics.observeRefresh(refreshMissingToken)
		logger.Warnw("no refresh token stored, session ends")
		return "", errorsx.SessionExpired(authErr)
	}

	payload, err := json.Marshal(&refreshRequest{Refresh: refreshToken})
	if err != nil {
		c.metrics.observeRefresh(refreshFailure)
		return "", errorsx.SessionExpired(errorsx.Normalize(err))
	}

	header := http.Header{}
	header.Set("Accept", "application/json")
	header.Set(HeaderRequestID, log.RequestID(ctx))
	target, rerr := c.resolve(c.refreshPath, nil)
	if rerr != nil {
		c.metrics.observeRefresh(refreshFailure)
		return "", errorsx.SessionExpired(rerr)
	}
	resp, rerr := c.roundTrip(ctx, http.MethodPost, target, payload, "application/json", header)
	if rerr != nil {
		c.metrics.observeRefresh(refreshFailure)
		logger.Errorw(rerr, "token refresh failed")
		return "", errorsx.SessionExpired(rerr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.observeRefresh(refreshFailure)
		e := errorsx.FromResponse(resp.StatusCode, resp.Header, resp.Body, nil)
		logger.Errorw(e, "token refresh rejected", "status", resp.StatusCode)
		return "", errorsx.SessionExpired(e)
	}

	var out refreshResponse
	if err = resp.Decode(&out); err == nil && out.Access == "" {
		err = errors.New("refresh response has no access token")
	}
	if err != nil {
		c.metrics.observeRefresh(refreshFailure)
		e := errorsx.FromResponse(http.StatusInternalServerError, resp.Header, resp.Body, err)
		logger.Errorw(e, "token refresh returned an unusable body")
		return "", errorsx.SessionExpired(e)
	}

	if err = c.creds.SetAccessToken(ctx, out.Access); err != nil {
		c.metrics.observeRefresh(refreshFailure)
		return "", errorsx.SessionExpired(errorsx.FromTransport(fmt.Errorf("store access token: %w", err)))
	}
	if out.Refresh != "" {
		if err = c.creds.SetRefreshToken(ctx, out.Refresh); err != nil {
			c.metrics.observeRefresh(refreshFailure)
			return "", errorsx.SessionExpired(errorsx.FromTransport(fmt.Errorf("store refresh token: %w", err)))
		}
	}

	c.metrics.observeRefresh(refreshSuccess)
	logger.Infow("access token refreshed", "rotated", out.Refresh != "")
	return out.Access, nil
}

func (c *Client) clearCredentials(ctx context.Context) {
	if err := c.creds.Clear(context.WithoutCancel(ctx)); err != nil {
		c.logger.W(ctx).Errorw(err, "failed to clear credentials")
	}
}
