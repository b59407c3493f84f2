package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	"github.com/djangify/storefront/internal/token"
)

var (
	// ErrUnauthenticated means no usable access token is held; callers of
	// auth-required reads treat this as terminal.
	ErrUnauthenticated = errors.New("no access token available")

	// ErrRefreshFailed means the refresh protocol could not produce a new
	// access token. All session state has been cleared by the time it is
	// returned; the only recovery is re-authentication.
	ErrRefreshFailed = errors.New("session refresh failed")

	// ErrRefreshThrottled means the local limiter denied a refresh attempt.
	// The condition is transient and the held tokens stay valid; callers
	// retry later.
	ErrRefreshThrottled = errors.New("token refresh throttled")
)

// AuthClient sends authenticated requests and transparently runs the token
// refresh protocol on 401, retrying the original request exactly once.
type AuthClient struct {
	api       *Client
	tokens    token.Store
	limiter   *rate.Limiter
	onExpired func()
	log       *slog.Logger
}

// NewAuthClient wires the authenticated request layer. onExpired is invoked
// after an irrecoverable refresh failure, once session state is cleared; it
// is the injection point for "redirect to login" behavior.
func NewAuthClient(api *Client, tokens token.Store, onExpired func(), log *slog.Logger) *AuthClient {
	if onExpired == nil {
		onExpired = func() {}
	}
	return &AuthClient{
		api:       api,
		tokens:    tokens,
		limiter:   rate.NewLimiter(rate.Every(10*time.Second), 3),
		onExpired: onExpired,
		log:       log,
	}
}

// Send issues an authenticated JSON request. On a 401 it refreshes the access
// token once and retries once. A throttled refresh returns
// ErrRefreshThrottled with the held tokens intact; any other refresh failure
// clears all session state, fires the session-expired hook and returns
// ErrRefreshFailed. The response body is never parsed here.
func (a *AuthClient) Send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	access, err := a.tokens.Get(ctx, token.KeyAccessToken)
	if err != nil {
		if !errors.Is(err, token.ErrNotFound) {
			a.log.Warn("token store read failed, treating as unauthenticated", "error", err)
		}
		return nil, ErrUnauthenticated
	}

	// A JWT that is already past its expiry will only bounce; refresh up
	// front instead of burning a round trip on the guaranteed 401.
	if accessTokenExpired(access) {
		access, err = a.refresh(ctx)
		if err != nil {
			if errors.Is(err, ErrRefreshThrottled) {
				return nil, err
			}
			return nil, a.expireSession(ctx, err)
		}
	}

	resp, err := a.api.Do(ctx, method, path, body, access)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	access, err = a.refresh(ctx)
	if err != nil {
		if errors.Is(err, ErrRefreshThrottled) {
			return nil, err
		}
		return nil, a.expireSession(ctx, err)
	}

	return a.api.Do(ctx, method, path, body, access)
}

// refresh exchanges the refresh token for a new access token and persists it.
// The refresh token itself is kept.
func (a *AuthClient) refresh(ctx context.Context) (string, error) {
	if !a.limiter.Allow() {
		return "", ErrRefreshThrottled
	}

	refresh, err := a.tokens.Get(ctx, token.KeyRefreshToken)
	if err != nil {
		return "", fmt.Errorf("no refresh token: %w", err)
	}

	resp, err := a.api.Do(ctx, http.MethodPost, "/auth/token/refresh/", map[string]string{"refresh": refresh}, "")
	if err != nil {
		return "", fmt.Errorf("refresh request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", DecodeAPIError(resp)
	}

	var payload struct {
		Access string `json:"access"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode refresh response: %w", err)
	}
	if payload.Access == "" {
		return "", errors.New("refresh response carried no access token")
	}

	if err := a.tokens.Set(ctx, token.KeyAccessToken, payload.Access); err != nil {
		a.log.Warn("persisting refreshed access token failed", "error", err)
	}

	return payload.Access, nil
}

// expireSession clears every credential and fires the expiry hook. There is
// no session left to recover into.
func (a *AuthClient) expireSession(ctx context.Context, cause error) error {
	a.log.Warn("token refresh failed, clearing session", "error", cause)

	for _, key := range []string{token.KeyAccessToken, token.KeyRefreshToken, token.KeyUser} {
		if err := a.tokens.Clear(ctx, key); err != nil {
			a.log.Warn("clearing credential failed", "key", key, "error", err)
		}
	}

	a.onExpired()
	return fmt.Errorf("%w: %v", ErrRefreshFailed, cause)
}

// accessTokenExpired inspects a JWT's exp claim without verifying the
// signature; the server remains the authority. Opaque tokens never report
// expired.
func accessTokenExpired(tok string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}
