package rest

import (
	"context"
	"errors"
	"strings"

	"github.com/openbasket/storefront-client/internal/session"
	pkgerrors "github.com/openbasket/storefront-client/pkg/errors"
)

const (
	// PathRefresh and PathLogout never trigger a refresh themselves.
	PathRefresh = "/api/auth/refresh"
	PathLogout  = "/api/auth/logout"

	authReasonPrefix = "auth error: "
)

// errLogoutDuringRefresh signals that a logout started while the refresh
// call was in flight; the caller propagates the original request error.
var errLogoutDuringRefresh = errors.New("logout started during refresh")

// Fatal reasons clear the session immediately; no refresh, no retry.
var fatalAuthReasons = map[string]struct{}{
	"token missing":     {},
	"missing token":     {},
	"user not found":    {},
	"user archived":     {},
	"user banned":       {},
	"malformed user id": {},
}

// Transient reasons are recoverable through one refresh + one retry.
var transientAuthReasons = map[string]struct{}{
	"token expired": {},
	"expired token": {},
	"token invalid": {},
	"invalid token": {},
}

func isAuthEndpoint(path string) bool {
	return isRefreshEndpoint(path) || path == PathLogout
}

func isRefreshEndpoint(path string) bool {
	return path == PathRefresh
}

// normalizeAuthReason maps a failed request to the backend's auth failure
// reason: 401-class errors only, the "auth error: " prefix stripped,
// case-folded. Empty means the failure is not an auth failure.
func normalizeAuthReason(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthenticated {
		return ""
	}
	reason := strings.TrimSpace(typed.Message())
	reason = strings.TrimPrefix(strings.ToLower(reason), authReasonPrefix)
	return strings.TrimSpace(reason)
}

type refreshResponse struct {
	AccessToken  string             `json:"access_token"`
	RefreshToken string             `json:"refresh_token"`
	User         *session.UserPatch `json:"user"`
}

// refreshTokens performs the single-flight token refresh: concurrent
// callers share one network call and one result.
func (c *Client) refreshTokens(ctx context.Context) error {
	_, err, _ := c.refresh.Do("refresh", func() (any, error) {
		return nil, c.doRefresh(ctx)
	})
	return err
}

func (c *Client) doRefresh(ctx context.Context) error {
	if c.session.LoggingOut() {
		return errLogoutDuringRefresh
	}

	refreshToken := c.session.RefreshToken()
	if refreshToken == "" {
		c.metrics.IncRefresh("failure")
		c.session.ForceClear()
		return pkgerrors.New(pkgerrors.CodeSessionExpired, "no refresh token")
	}

	var out refreshResponse
	// The expired access token is deliberately left off this call.
	data, err := c.attempt(ctx, Request{
		Method:   "POST",
		Path:     PathRefresh,
		Body:     map[string]string{"refresh_token": refreshToken},
		SkipAuth: true,
	})
	if err != nil {
		c.metrics.IncRefresh("failure")
		c.logger.Warn(ctx, "token refresh failed, clearing session")
		c.session.ForceClear()
		return pkgerrors.Wrap(pkgerrors.CodeSessionExpired, err, "token refresh failed")
	}
	if err := decodeInto(data, &out); err != nil {
		c.metrics.IncRefresh("failure")
		c.session.ForceClear()
		return pkgerrors.Wrap(pkgerrors.CodeSessionExpired, err, "token refresh failed")
	}
	if out.AccessToken == "" {
		c.metrics.IncRefresh("failure")
		c.session.ForceClear()
		return pkgerrors.New(pkgerrors.CodeSessionExpired, "refresh response missing access token")
	}

	// A logout may have started while the refresh call was in flight.
	if c.session.LoggingOut() {
		c.metrics.IncRefresh("aborted")
		return errLogoutDuringRefresh
	}

	if out.User != nil {
		if err := c.session.MergeUser(*out.User); err != nil {
			c.metrics.IncRefresh("aborted")
			return errLogoutDuringRefresh
		}
	}
	if err := c.session.SetTokens(out.AccessToken, out.RefreshToken); err != nil {
		c.metrics.IncRefresh("aborted")
		return errLogoutDuringRefresh
	}

	c.metrics.IncRefresh("success")
	c.logger.Debug(ctx, "access token refreshed")
	return nil
}
