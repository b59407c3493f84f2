package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djangify/storefront/internal/api"
	"github.com/djangify/storefront/internal/domain"
	"github.com/djangify/storefront/internal/token"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testUser = domain.User{
	ID: 7, Username: "corrin", Email: "corrin@example.com",
	FirstName: "Corrin", LastName: "Smith",
	Profile: domain.Profile{EmailVerified: true},
}

// authAPI stubs the account endpoints.
type authAPI struct {
	*httptest.Server

	mu            sync.Mutex
	password      string
	registered    []Registration
	logoutCalls   int
	logoutStatus  int
	profileStatus int
	profileUser   domain.User

	verifiedTokens []string
	resendEmails   []string
	resetEmails    []string
	resetConfirms  int
}

func newAuthAPI(t *testing.T) *authAPI {
	s := &authAPI{
		password:      "hunter22",
		logoutStatus:  http.StatusOK,
		profileStatus: http.StatusOK,
		profileUser:   testUser,
	}

	r := chi.NewRouter()
	r.Post("/auth/login/", s.handleLogin)
	r.Post("/auth/register/", s.handleRegister)
	r.Post("/auth/logout/", s.handleLogout)
	r.Get("/auth/profile/", s.handleProfile)
	r.Patch("/auth/profile/", s.handleProfileUpdate)
	r.Post("/auth/change-password/", s.handleChangePassword)
	r.Post("/auth/verify-email/{token}/", s.handleVerifyEmail)
	r.Post("/auth/resend-verification/", s.handleResendVerification)
	r.Post("/auth/password-reset/", s.handlePasswordReset)
	r.Post("/auth/password-reset-confirm/", s.handlePasswordResetConfirm)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

func (s *authAPI) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var creds Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if creds.Email != testUser.Email || creds.Password != s.password {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Invalid credentials."})
		return
	}

	json.NewEncoder(w).Encode(map[string]any{
		"access":  "access-1",
		"refresh": "refresh-1",
		"user":    testUser,
	})
}

func (s *authAPI) handleRegister(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reg Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if reg.Email == testUser.Email {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"errors": map[string][]string{
				"email":    {"A user with this email already exists."},
				"username": {"This username is taken."},
			},
		})
		return
	}

	s.registered = append(s.registered, reg)
	w.WriteHeader(http.StatusCreated)
}

func (s *authAPI) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logoutCalls++
	w.WriteHeader(s.logoutStatus)
}

func (s *authAPI) handleProfile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Header.Get("Authorization") == "" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if s.profileStatus != http.StatusOK {
		w.WriteHeader(s.profileStatus)
		return
	}
	json.NewEncoder(w).Encode(s.profileUser)
}

func (s *authAPI) handleProfileUpdate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Header.Get("Authorization") == "" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var update ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if update.FirstName != "" {
		s.profileUser.FirstName = update.FirstName
	}
	if update.LastName != "" {
		s.profileUser.LastName = update.LastName
	}
	json.NewEncoder(w).Encode(s.profileUser)
}

func (s *authAPI) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Header.Get("Authorization") == "" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var change PasswordChange
	if err := json.NewDecoder(r.Body).Decode(&change); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if change.CurrentPassword != s.password {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Current password is incorrect."})
		return
	}
	s.password = change.NewPassword
	json.NewEncoder(w).Encode(map[string]string{"message": "Password changed."})
}

func (s *authAPI) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok := chi.URLParam(r, "token")
	if tok != "valid-verification" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Invalid verification token."})
		return
	}
	s.verifiedTokens = append(s.verifiedTokens, tok)
	json.NewEncoder(w).Encode(map[string]string{"message": "Email verified."})
}

func (s *authAPI) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.resendEmails = append(s.resendEmails, body["email"])
	json.NewEncoder(w).Encode(map[string]string{"message": "Verification email sent."})
}

func (s *authAPI) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.resetEmails = append(s.resetEmails, body["email"])
	json.NewEncoder(w).Encode(map[string]string{"message": "Reset email sent."})
}

func (s *authAPI) handlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if body["token"] != "valid-reset" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Invalid or expired reset token."})
		return
	}
	s.resetConfirms++
	s.password = body["password"]
	json.NewEncoder(w).Encode(map[string]string{"message": "Password reset."})
}

func newTestStore(t *testing.T, srv *authAPI) (*Store, *token.MemoryStore) {
	tokens := token.NewMemoryStore()
	apiClient := api.NewClient(srv.URL, discardLogger())
	authed := api.NewAuthClient(apiClient, tokens, nil, discardLogger())
	return NewStore(apiClient, authed, tokens, discardLogger()), tokens
}

func TestLogin_Success(t *testing.T) {
	srv := newAuthAPI(t)
	store, tokens := newTestStore(t, srv)
	ctx := context.Background()

	err := store.Login(ctx, Credentials{Email: testUser.Email, Password: "hunter22"})
	require.NoError(t, err)

	state := store.State()
	assert.True(t, state.IsAuthenticated)
	assert.False(t, state.IsLoading)
	assert.Empty(t, state.Error)
	require.NotNil(t, state.User)
	assert.Equal(t, testUser.Email, state.User.Email)

	access, err := tokens.Get(ctx, token.KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "access-1", access)

	refresh, err := tokens.Get(ctx, token.KeyRefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", refresh)

	cached, err := tokens.Get(ctx, token.KeyUser)
	require.NoError(t, err)
	var user domain.User
	require.NoError(t, json.Unmarshal([]byte(cached), &user))
	assert.Equal(t, testUser, user)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	srv := newAuthAPI(t)
	store, tokens := newTestStore(t, srv)
	ctx := context.Background()

	err := store.Login(ctx, Credentials{Email: testUser.Email, Password: "wrong"})
	require.Error(t, err)

	state := store.State()
	assert.False(t, state.IsAuthenticated)
	assert.False(t, state.IsLoading)
	assert.Equal(t, "Invalid credentials.", state.Error)
	assert.Nil(t, state.User)

	_, err = tokens.Get(ctx, token.KeyAccessToken)
	assert.ErrorIs(t, err, token.ErrNotFound, "no credentials persisted on failed login")
}

func TestLogin_TransportFailureUsesFallbackMessage(t *testing.T) {
	tokens := token.NewMemoryStore()
	apiClient := api.NewClient("http://127.0.0.1:1", discardLogger())
	authed := api.NewAuthClient(apiClient, tokens, nil, discardLogger())
	store := NewStore(apiClient, authed, tokens, discardLogger())

	err := store.Login(context.Background(), Credentials{Email: "a@b.c", Password: "x"})
	require.Error(t, err)
	assert.Equal(t, "Login failed. Please try again.", store.State().Error)
}

func TestLogin_LoadingTransitions(t *testing.T) {
	srv := newAuthAPI(t)
	store, _ := newTestStore(t, srv)

	var loading []bool
	store.Subscribe(func(st State) { loading = append(loading, st.IsLoading) })

	require.NoError(t, store.Login(context.Background(), Credentials{Email: testUser.Email, Password: "hunter22"}))

	require.Len(t, loading, 2)
	assert.True(t, loading[0], "loading set before the request")
	assert.False(t, loading[1], "loading cleared when the request resolves")
}

func TestRegister_Success(t *testing.T) {
	srv := newAuthAPI(t)
	store, _ := newTestStore(t, srv)

	err := store.Register(context.Background(), Registration{
		Email: "new@example.com", Username: "newbie", Password: "hunter22",
	})
	require.NoError(t, err)

	state := store.State()
	assert.False(t, state.IsAuthenticated, "registration does not authenticate")
	assert.False(t, state.IsLoading)
	assert.Empty(t, state.Error)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	require.Len(t, srv.registered, 1)
	assert.Equal(t, "newbie", srv.registered[0].Username)
}

func TestRegister_FieldErrorsJoined(t *testing.T) {
	srv := newAuthAPI(t)
	store, _ := newTestStore(t, srv)

	err := store.Register(context.Background(), Registration{
		Email: testUser.Email, Username: "corrin2", Password: "hunter22",
	})
	require.Error(t, err)

	state := store.State()
	assert.Equal(t,
		"A user with this email already exists. This username is taken.",
		state.Error, "field errors joined in key order")
}

func TestLogout_AlwaysClearsLocally(t *testing.T) {
	srv := newAuthAPI(t)
	store, tokens := newTestStore(t, srv)
	ctx := context.Background()

	require.NoError(t, store.Login(ctx, Credentials{Email: testUser.Email, Password: "hunter22"}))

	srv.mu.Lock()
	srv.logoutStatus = http.StatusInternalServerError
	srv.mu.Unlock()

	store.Logout(ctx)

	state := store.State()
	assert.False(t, state.IsAuthenticated)
	assert.Nil(t, state.User)
	assert.Empty(t, state.Error)

	for _, key := range []string{token.KeyAccessToken, token.KeyRefreshToken, token.KeyUser} {
		_, err := tokens.Get(ctx, key)
		assert.ErrorIs(t, err, token.ErrNotFound, "key %s cleared", key)
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, 1, srv.logoutCalls, "server logout attempted despite failing")
}

func TestLogout_WithoutSessionSkipsServer(t *testing.T) {
	srv := newAuthAPI(t)
	store, _ := newTestStore(t, srv)

	store.Logout(context.Background())

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Zero(t, srv.logoutCalls)
}

func TestRefreshUser_UpdatesProfile(t *testing.T) {
	srv := newAuthAPI(t)
	store, tokens := newTestStore(t, srv)
	ctx := context.Background()

	require.NoError(t, store.Login(ctx, Credentials{Email: testUser.Email, Password: "hunter22"}))

	updated := testUser
	updated.FirstName = "Cori"
	srv.mu.Lock()
	srv.profileUser = updated
	srv.mu.Unlock()

	require.NoError(t, store.RefreshUser(ctx))

	state := store.State()
	require.NotNil(t, state.User)
	assert.Equal(t, "Cori", state.User.FirstName)

	cached, err := tokens.Get(ctx, token.KeyUser)
	require.NoError(t, err)
	assert.True(t, strings.Contains(cached, "Cori"), "refreshed profile cached")
}

func TestRefreshUser_SkipsWhenSignedOut(t *testing.T) {
	srv := newAuthAPI(t)
	store, _ := newTestStore(t, srv)

	require.NoError(t, store.RefreshUser(context.Background()))

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Zero(t, srv.logoutCalls)
}

func TestRefreshUser_AuthFailureLogsOut(t *testing.T) {
	srv := newAuthAPI(t)
	store, tokens := newTestStore(t, srv)
	ctx := context.Background()

	// A hydrated session whose tokens the server no longer honors.
	raw, err := json.Marshal(testUser)
	require.NoError(t, err)
	require.NoError(t, tokens.Set(ctx, token.KeyUser, string(raw)))
	store.Hydrate(ctx)
	require.False(t, store.State().IsAuthenticated, "no access token, no session")

	require.NoError(t, tokens.Set(ctx, token.KeyAccessToken, "stale-access"))
	store.Hydrate(ctx)
	require.True(t, store.State().IsAuthenticated)

	// No refresh token held, so the 401 from the profile endpoint cannot
	// be recovered and the session must end.
	srv.mu.Lock()
	srv.profileStatus = http.StatusUnauthorized
	srv.mu.Unlock()

	err = store.RefreshUser(ctx)
	assert.ErrorIs(t, err, api.ErrRefreshFailed)
	assert.False(t, store.State().IsAuthenticated)
	assert.Nil(t, store.State().User)
}

func TestRefreshUser_ServerErrorKeepsCachedUser(t *testing.T) {
	srv := newAuthAPI(t)
	store, _ := newTestStore(t, srv)
	ctx := context.Background()

	require.NoError(t, store.Login(ctx, Credentials{Email: testUser.Email, Password: "hunter22"}))

	srv.mu.Lock()
	srv.profileStatus = http.StatusInternalServerError
	srv.mu.Unlock()

	err := store.RefreshUser(ctx)
	require.Error(t, err)

	state := store.State()
	assert.True(t, state.IsAuthenticated, "transient failure keeps the session")
	require.NotNil(t, state.User)
	assert.Equal(t, testUser.Email, state.User.Email)
	assert.Equal(t, "Failed to refresh user data", state.Error)
}

func TestHydrate_RestoresCachedSession(t *testing.T) {
	srv := newAuthAPI(t)
	store, tokens := newTestStore(t, srv)
	ctx := context.Background()

	raw, err := json.Marshal(testUser)
	require.NoError(t, err)
	require.NoError(t, tokens.Set(ctx, token.KeyAccessToken, "access-1"))
	require.NoError(t, tokens.Set(ctx, token.KeyUser, string(raw)))

	store.Hydrate(ctx)

	state := store.State()
	assert.True(t, state.IsAuthenticated)
	require.NotNil(t, state.User)
	assert.Equal(t, testUser.Username, state.User.Username)
}

func TestClearError(t *testing.T) {
	srv := newAuthAPI(t)
	store, _ := newTestStore(t, srv)
	ctx := context.Background()

	require.Error(t, store.Login(ctx, Credentials{Email: testUser.Email, Password: "wrong"}))
	require.NotEmpty(t, store.State().Error)

	store.ClearError()
	assert.Empty(t, store.State().Error)
}

func TestRefreshUser_LoadingTransitions(t *testing.T) {
	srv := newAuthAPI(t)
	store, _ := newTestStore(t, srv)
	ctx := context.Background()

	require.NoError(t, store.Login(ctx, Credentials{Email: testUser.Email, Password: "hunter22"}))

	var loading []bool
	store.Subscribe(func(st State) { loading = append(loading, st.IsLoading) })

	require.NoError(t, store.RefreshUser(ctx))

	require.Len(t, loading, 2)
	assert.True(t, loading[0], "loading set before the request")
	assert.False(t, loading[1], "loading cleared when the request resolves")
}

func TestRefreshUser_FailureClearsLoading(t *testing.T) {
	srv := newAuthAPI(t)
	store, _ := newTestStore(t, srv)
	ctx := context.Background()

	require.NoError(t, store.Login(ctx, Credentials{Email: testUser.Email, Password: "hunter22"}))

	srv.mu.Lock()
	srv.profileStatus = http.StatusInternalServerError
	srv.mu.Unlock()

	require.Error(t, store.RefreshUser(ctx))

	state := store.State()
	assert.False(t, state.IsLoading, "failure path lands loading off")
	assert.Equal(t, "Failed to refresh user data", state.Error)
}

func TestLogout_LoadingTransitions(t *testing.T) {
	srv := newAuthAPI(t)
	store, _ := newTestStore(t, srv)
	ctx := context.Background()

	require.NoError(t, store.Login(ctx, Credentials{Email: testUser.Email, Password: "hunter22"}))

	var loading []bool
	store.Subscribe(func(st State) { loading = append(loading, st.IsLoading) })

	store.Logout(ctx)

	require.Len(t, loading, 2)
	assert.True(t, loading[0])
	assert.False(t, loading[1])
}

func TestHydrate_TokenWithoutCachedProfile(t *testing.T) {
	srv := newAuthAPI(t)
	store, tokens := newTestStore(t, srv)
	ctx := context.Background()

	// Access token present, user cache lost. The session must survive with
	// a nil profile until RefreshUser restores it.
	require.NoError(t, tokens.Set(ctx, token.KeyAccessToken, "access-1"))

	store.Hydrate(ctx)

	state := store.State()
	assert.True(t, state.IsAuthenticated, "authentication follows token presence")
	assert.Nil(t, state.User)

	require.NoError(t, store.RefreshUser(ctx))

	state = store.State()
	require.NotNil(t, state.User)
	assert.Equal(t, testUser.Email, state.User.Email)

	cached, err := tokens.Get(ctx, token.KeyUser)
	require.NoError(t, err)
	assert.True(t, strings.Contains(cached, testUser.Email), "refetched profile cached")
}

func TestUpdateProfile(t *testing.T) {
	srv := newAuthAPI(t)
	store, tokens := newTestStore(t, srv)
	ctx := context.Background()

	require.NoError(t, store.Login(ctx, Credentials{Email: testUser.Email, Password: "hunter22"}))

	require.NoError(t, store.UpdateProfile(ctx, ProfileUpdate{FirstName: "Cori"}))

	state := store.State()
	require.NotNil(t, state.User)
	assert.Equal(t, "Cori", state.User.FirstName)
	assert.Equal(t, testUser.LastName, state.User.LastName, "omitted fields untouched")
	assert.False(t, state.IsLoading)
	assert.Empty(t, state.Error)

	cached, err := tokens.Get(ctx, token.KeyUser)
	require.NoError(t, err)
	assert.True(t, strings.Contains(cached, "Cori"), "updated profile cached")
}

func TestChangePassword(t *testing.T) {
	srv := newAuthAPI(t)
	store, _ := newTestStore(t, srv)
	ctx := context.Background()

	require.NoError(t, store.Login(ctx, Credentials{Email: testUser.Email, Password: "hunter22"}))

	err := store.ChangePassword(ctx, PasswordChange{CurrentPassword: "wrong", NewPassword: "hunter23"})
	require.Error(t, err)
	assert.Equal(t, "Current password is incorrect.", store.State().Error)

	require.NoError(t, store.ChangePassword(ctx, PasswordChange{CurrentPassword: "hunter22", NewPassword: "hunter23"}))

	state := store.State()
	assert.True(t, state.IsAuthenticated, "session survives a password change")
	assert.Empty(t, state.Error)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, "hunter23", srv.password)
}

func TestVerifyEmail(t *testing.T) {
	srv := newAuthAPI(t)
	store, _ := newTestStore(t, srv)
	ctx := context.Background()

	require.NoError(t, store.VerifyEmail(ctx, "valid-verification"))
	assert.Empty(t, store.State().Error)

	err := store.VerifyEmail(ctx, "bogus")
	require.Error(t, err)
	assert.Equal(t, "Invalid verification token.", store.State().Error)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, []string{"valid-verification"}, srv.verifiedTokens)
}

func TestResendVerification(t *testing.T) {
	srv := newAuthAPI(t)
	store, _ := newTestStore(t, srv)

	require.NoError(t, store.ResendVerification(context.Background(), testUser.Email))

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, []string{testUser.Email}, srv.resendEmails)
}

func TestRequestPasswordReset(t *testing.T) {
	srv := newAuthAPI(t)
	store, _ := newTestStore(t, srv)

	require.NoError(t, store.RequestPasswordReset(context.Background(), testUser.Email))
	assert.False(t, store.State().IsLoading)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, []string{testUser.Email}, srv.resetEmails)
}

func TestResetPassword(t *testing.T) {
	srv := newAuthAPI(t)
	store, _ := newTestStore(t, srv)
	ctx := context.Background()

	err := store.ResetPassword(ctx, "expired", "newpass99")
	require.Error(t, err)
	assert.Equal(t, "Invalid or expired reset token.", store.State().Error)

	require.NoError(t, store.ResetPassword(ctx, "valid-reset", "newpass99"))
	assert.Empty(t, store.State().Error)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, 1, srv.resetConfirms)
	assert.Equal(t, "newpass99", srv.password)
}

func TestSession(t *testing.T) {
	srv := newAuthAPI(t)
	store, _ := newTestStore(t, srv)
	ctx := context.Background()

	session := store.Session(ctx)
	assert.False(t, session.IsAuthenticated())

	require.NoError(t, store.Login(ctx, Credentials{Email: testUser.Email, Password: "hunter22"}))

	session = store.Session(ctx)
	assert.True(t, session.IsAuthenticated())
	assert.Equal(t, "access-1", session.AccessToken)
	assert.Equal(t, "refresh-1", session.RefreshToken)
	require.NotNil(t, session.User)
	assert.Equal(t, testUser.Email, session.User.Email)

	store.Logout(ctx)
	assert.False(t, store.Session(ctx).IsAuthenticated())
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	srv := newAuthAPI(t)
	store, _ := newTestStore(t, srv)
	ctx := context.Background()

	var count int
	unsubscribe := store.Subscribe(func(State) { count++ })

	store.ClearError()
	assert.Equal(t, 1, count)

	unsubscribe()
	store.ClearError()
	require.NoError(t, store.Login(ctx, Credentials{Email: testUser.Email, Password: "hunter22"}))
	assert.Equal(t, 1, count, "no notifications after unsubscribe")
}
