// Package auth owns the user session state: login, registration, logout,
// profile and password management, with credentials held in durable token
// storage. Like the cart manager it is a single-writer state holder with
// subscriber fan-out. Every operation sets IsLoading on entry, wipes the
// previous error and lands with IsLoading off.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/djangify/storefront/internal/api"
	"github.com/djangify/storefront/internal/domain"
	"github.com/djangify/storefront/internal/token"
)

// State is the observable session state. Error holds user-displayable text;
// operations surface failures here instead of leaking transport errors to
// the UI layer.
type State struct {
	User            *domain.User
	IsAuthenticated bool
	IsLoading       bool
	Error           string
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Registration struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// ProfileUpdate carries the editable profile fields; empty fields are left
// out of the PATCH.
type ProfileUpdate struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
}

type PasswordChange struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// loginResponse is the token pair plus profile the login endpoint issues.
type loginResponse struct {
	Access  string      `json:"access"`
	Refresh string      `json:"refresh"`
	User    domain.User `json:"user"`
}

// Store manages the auth session. Login and registration go out
// unauthenticated; profile refresh rides the authenticated client so it
// benefits from the refresh-and-retry protocol.
type Store struct {
	api    *api.Client
	authed *api.AuthClient
	tokens token.Store
	log    *slog.Logger

	mu        sync.Mutex
	state     State
	listeners map[int]func(State)
	nextID    int
}

func NewStore(apiClient *api.Client, authed *api.AuthClient, tokens token.Store, log *slog.Logger) *Store {
	return &Store{
		api:       apiClient,
		authed:    authed,
		tokens:    tokens,
		log:       log,
		listeners: make(map[int]func(State)),
	}
}

// Subscribe registers a listener notified on every state change and returns
// its deregistration func.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// State returns the current session state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// setState applies a mutation under the lock, then notifies listeners with
// the resulting state outside it.
func (s *Store) setState(mutate func(*State)) {
	s.mu.Lock()
	mutate(&s.state)
	next := s.state
	listeners := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
}

// Hydrate restores the session from durable storage without touching the
// network. Authentication follows from access-token presence alone; a
// missing or stale cached profile is acceptable until the first RefreshUser
// fills it in.
func (s *Store) Hydrate(ctx context.Context) {
	if _, err := s.tokens.Get(ctx, token.KeyAccessToken); err != nil {
		return
	}

	var user *domain.User
	if raw, err := s.tokens.Get(ctx, token.KeyUser); err == nil {
		var u domain.User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			s.log.Warn("cached user profile is corrupt, ignoring", "error", err)
		} else {
			user = &u
		}
	}

	s.setState(func(st *State) {
		st.User = user
		st.IsAuthenticated = true
	})
}

// Login authenticates with email and password. On success the token pair and
// profile are persisted and the state flips to authenticated. On failure the
// state carries a displayable message and the returned error wraps the cause.
func (s *Store) Login(ctx context.Context, creds Credentials) error {
	s.startLoading()

	resp, err := s.api.Do(ctx, http.MethodPost, "/auth/login/", creds, "")
	if err != nil {
		return s.fail(err, "Login failed. Please try again.")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return s.fail(api.DecodeAPIError(resp), "Login failed. Please try again.")
	}

	var payload loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return s.fail(fmt.Errorf("decode login response: %w", err), "Login failed. Please try again.")
	}

	s.persistSession(ctx, payload)

	s.setState(func(st *State) {
		st.User = &payload.User
		st.IsAuthenticated = true
		st.IsLoading = false
		st.Error = ""
	})

	s.log.Info("user logged in", "user_id", payload.User.ID)
	return nil
}

// Register creates an account. Success does not authenticate; the caller is
// expected to log in (or verify email) afterwards.
func (s *Store) Register(ctx context.Context, reg Registration) error {
	s.startLoading()

	resp, err := s.api.Do(ctx, http.MethodPost, "/auth/register/", reg, "")
	if err != nil {
		return s.fail(err, "Registration failed. Please try again.")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return s.fail(api.DecodeAPIError(resp), "Registration failed. Please try again.")
	}

	s.setState(func(st *State) {
		st.IsLoading = false
		st.Error = ""
	})
	return nil
}

// Logout ends the session. The server call is best-effort: whatever the
// network says, local credentials are cleared and the state flips to
// signed-out, so Logout has no error to return.
func (s *Store) Logout(ctx context.Context) {
	s.startLoading()

	access, accessErr := s.tokens.Get(ctx, token.KeyAccessToken)
	refresh, refreshErr := s.tokens.Get(ctx, token.KeyRefreshToken)

	if accessErr == nil && refreshErr == nil {
		resp, err := s.api.Do(ctx, http.MethodPost, "/auth/logout/", map[string]string{"refresh": refresh}, access)
		if err != nil {
			s.log.Warn("server logout failed, clearing local session anyway", "error", err)
		} else {
			resp.Body.Close()
		}
	}

	for _, key := range []string{token.KeyAccessToken, token.KeyRefreshToken, token.KeyUser} {
		if err := s.tokens.Clear(ctx, key); err != nil {
			s.log.Warn("clearing credential failed", "key", key, "error", err)
		}
	}

	s.setState(func(st *State) {
		st.User = nil
		st.IsAuthenticated = false
		st.IsLoading = false
		st.Error = ""
	})
}

// RefreshUser re-fetches the profile over the authenticated client. An
// unauthenticated or unrefreshable session logs out; any other failure keeps
// the cached profile and surfaces a message.
func (s *Store) RefreshUser(ctx context.Context) error {
	if !s.State().IsAuthenticated {
		return nil
	}

	s.startLoading()

	resp, err := s.authed.Send(ctx, http.MethodGet, "/auth/profile/", nil)
	if err != nil {
		if errors.Is(err, api.ErrUnauthenticated) || errors.Is(err, api.ErrRefreshFailed) {
			s.log.Info("session no longer valid, logging out", "error", err)
			s.Logout(ctx)
			return err
		}
		return s.refreshFailed(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return s.refreshFailed(api.DecodeAPIError(resp))
	}

	var user domain.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return s.refreshFailed(fmt.Errorf("decode profile: %w", err))
	}

	s.cacheUser(ctx, user)

	s.setState(func(st *State) {
		st.User = &user
		st.IsLoading = false
		st.Error = ""
	})
	return nil
}

// refreshFailed ends the loading state with the fixed refresh message,
// keeping the cached profile and the session.
func (s *Store) refreshFailed(err error) error {
	s.setState(func(st *State) {
		st.IsLoading = false
		st.Error = "Failed to refresh user data"
	})
	return err
}

// UpdateProfile patches the profile over the authenticated client and
// adopts the record the server sends back.
func (s *Store) UpdateProfile(ctx context.Context, update ProfileUpdate) error {
	s.startLoading()

	resp, err := s.authed.Send(ctx, http.MethodPatch, "/auth/profile/", update)
	if err != nil {
		return s.fail(err, "Failed to update profile. Please try again.")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return s.fail(api.DecodeAPIError(resp), "Failed to update profile. Please try again.")
	}

	var user domain.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return s.fail(fmt.Errorf("decode profile: %w", err), "Failed to update profile. Please try again.")
	}

	s.cacheUser(ctx, user)

	s.setState(func(st *State) {
		st.User = &user
		st.IsLoading = false
		st.Error = ""
	})
	return nil
}

// ChangePassword verifies the current password server-side and swaps in the
// new one. The session stays valid; no tokens are touched.
func (s *Store) ChangePassword(ctx context.Context, change PasswordChange) error {
	s.startLoading()

	resp, err := s.authed.Send(ctx, http.MethodPost, "/auth/change-password/", change)
	if err != nil {
		return s.fail(err, "Failed to change password. Please try again.")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return s.fail(api.DecodeAPIError(resp), "Failed to change password. Please try again.")
	}

	s.endLoading()
	return nil
}

// VerifyEmail confirms an address with the token from the verification
// email. Unauthenticated; the token rides in the path.
func (s *Store) VerifyEmail(ctx context.Context, verificationToken string) error {
	return s.post(ctx, fmt.Sprintf("/auth/verify-email/%s/", verificationToken), nil,
		"Email verification failed. Please try again.")
}

// ResendVerification asks for a fresh verification email.
func (s *Store) ResendVerification(ctx context.Context, email string) error {
	return s.post(ctx, "/auth/resend-verification/", map[string]string{"email": email},
		"Failed to resend verification email. Please try again.")
}

// RequestPasswordReset starts the forgotten-password flow. The server
// responds identically whether or not the address exists.
func (s *Store) RequestPasswordReset(ctx context.Context, email string) error {
	return s.post(ctx, "/auth/password-reset/", map[string]string{"email": email},
		"Failed to request password reset. Please try again.")
}

// ResetPassword completes the forgotten-password flow with the emailed token.
func (s *Store) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	return s.post(ctx, "/auth/password-reset-confirm/",
		map[string]string{"token": resetToken, "password": newPassword},
		"Password reset failed. Please try again.")
}

// Session assembles the durable view of the session: cached user plus
// whatever tokens are currently held.
func (s *Store) Session(ctx context.Context) domain.AuthSession {
	session := domain.AuthSession{User: s.State().User}
	if access, err := s.tokens.Get(ctx, token.KeyAccessToken); err == nil {
		session.AccessToken = access
	}
	if refresh, err := s.tokens.Get(ctx, token.KeyRefreshToken); err == nil {
		session.RefreshToken = refresh
	}
	return session
}

// ClearError wipes the displayed error, typically when the user dismisses it.
func (s *Store) ClearError() {
	s.setState(func(st *State) {
		st.Error = ""
	})
}

// startLoading begins an operation: loading on, previous error wiped.
func (s *Store) startLoading() {
	s.setState(func(st *State) {
		st.IsLoading = true
		st.Error = ""
	})
}

// endLoading resolves an operation without touching the rest of the state.
func (s *Store) endLoading() {
	s.setState(func(st *State) {
		st.IsLoading = false
		st.Error = ""
	})
}

// post runs the shared unauthenticated POST pattern with the loading
// transitions every operation performs.
func (s *Store) post(ctx context.Context, path string, body any, fallback string) error {
	s.startLoading()

	resp, err := s.api.Do(ctx, http.MethodPost, path, body, "")
	if err != nil {
		return s.fail(err, fallback)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return s.fail(api.DecodeAPIError(resp), fallback)
	}

	s.endLoading()
	return nil
}

func (s *Store) persistSession(ctx context.Context, payload loginResponse) {
	if err := s.tokens.Set(ctx, token.KeyAccessToken, payload.Access); err != nil {
		s.log.Warn("persisting access token failed", "error", err)
	}
	if err := s.tokens.Set(ctx, token.KeyRefreshToken, payload.Refresh); err != nil {
		s.log.Warn("persisting refresh token failed", "error", err)
	}
	s.cacheUser(ctx, payload.User)
}

func (s *Store) cacheUser(ctx context.Context, user domain.User) {
	raw, err := json.Marshal(user)
	if err != nil {
		return
	}
	if err := s.tokens.Set(ctx, token.KeyUser, string(raw)); err != nil {
		s.log.Warn("caching user profile failed", "error", err)
	}
}

// fail records a displayable message derived from err, ends the loading
// state and returns the original error.
func (s *Store) fail(err error, fallback string) error {
	s.setState(func(st *State) {
		st.IsLoading = false
		st.Error = displayMessage(err, fallback)
	})
	return err
}

// displayMessage prefers the server's own wording when it sent any.
func displayMessage(err error, fallback string) string {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.HasMessage() {
		return apiErr.Message()
	}
	return fallback
}
