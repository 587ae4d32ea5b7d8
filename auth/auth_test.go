package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/timecost/costing"
	"github.com/warp/timecost/store/memory"
	"github.com/warp/timecost/timesheet"
)

func newTestDirectory(t *testing.T) *memory.Memory {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.SaveUser(ctx, timesheet.User{ID: "alice", Email: "alice@example.com", Username: "alice", Roles: []timesheet.Role{timesheet.RoleWorker}}))
	require.NoError(t, store.SaveUser(ctx, timesheet.User{ID: "root", Email: "root@example.com", Username: "root", Roles: []timesheet.Role{timesheet.RoleWorker, timesheet.RoleAdmin}}))
	require.NoError(t, store.SaveUser(ctx, timesheet.User{ID: "gone", Email: "gone@example.com", Username: "gone", Archived: true}))
	require.NoError(t, store.SaveUser(ctx, timesheet.User{ID: "pm", Email: "pm@example.com", Username: "pm", Roles: []timesheet.Role{timesheet.RoleProjectManager}}))
	require.NoError(t, store.AssignManager(ctx, "pm", "bridge"))
	return store
}

func token(t *testing.T, issuer *Issuer, store *memory.Memory, id string) string {
	t.Helper()
	u, err := store.GetUser(context.Background(), costing.WorkerID(id))
	require.NoError(t, err)
	tok, err := issuer.Issue(*u)
	require.NoError(t, err)
	return tok
}

func TestPasswords(t *testing.T) {
	_, err := HashPassword("short")
	assert.ErrorIs(t, err, ErrPasswordTooWeak)

	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "correct horse"))
	assert.False(t, CheckPassword(hash, "battery staple"))
}

func TestIssuer_RoundTripAndExpiry(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)
	u := timesheet.User{ID: "alice", Username: "alice", Roles: []timesheet.Role{timesheet.RoleWorker}}

	tok, err := issuer.Issue(u)
	require.NoError(t, err)
	claims, err := issuer.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.UserID)
	assert.Equal(t, []string{"worker"}, claims.Roles)

	other := NewIssuer("different", time.Hour)
	_, err = other.Validate(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	issuer.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = issuer.Validate(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", TokenFromRequest(r))

	r.AddCookie(&http.Cookie{Name: CookieName, Value: "from-cookie"})
	assert.Equal(t, "from-cookie", TokenFromRequest(r))
}

func TestMiddleware(t *testing.T) {
	store := newTestDirectory(t)
	issuer := NewIssuer("secret", time.Hour)

	var seen *Principal
	handler := Middleware(issuer, store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"garbage token", "not-a-jwt", http.StatusUnauthorized},
		{"archived user", token(t, issuer, store, "gone"), http.StatusUnauthorized},
		{"active user", token(t, issuer, store, "alice"), http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			r := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if tt.token != "" {
				r.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, r)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusUnauthorized {
				var body map[string]string
				require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
				assert.NotEmpty(t, body["error"])
				assert.Nil(t, seen)
			} else {
				require.NotNil(t, seen)
				assert.Equal(t, "alice", string(seen.ID()))
			}
		})
	}
}

func TestMiddleware_ProjectManagerCapabilities(t *testing.T) {
	store := newTestDirectory(t)

	p, err := LoadPrincipal(context.Background(), store, "pm")

	require.NoError(t, err)
	assert.True(t, p.Caps.ProjectScoped)
	assert.True(t, p.Caps.ManagedProjects["bridge"])
}

func TestRequireCapability(t *testing.T) {
	store := newTestDirectory(t)
	guarded := RequireCapability(CanManageWorkers)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for id, want := range map[string]int{"alice": http.StatusForbidden, "root": http.StatusOK} {
		p, err := LoadPrincipal(context.Background(), store, costing.WorkerID(id))
		require.NoError(t, err)
		r := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
		r = r.WithContext(WithPrincipal(r.Context(), p))
		w := httptest.NewRecorder()

		guarded.ServeHTTP(w, r)

		assert.Equal(t, want, w.Code, id)
	}

	w := httptest.NewRecorder()
	guarded.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/users", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

}

func TestSeedAdmin_CreatesOnce(t *testing.T) {
	// GIVEN: an empty store
	svc := timesheet.NewService(memory.New(), timesheet.Defaults{})
	ctx := context.Background()

	// WHEN: the admin is seeded twice
	created, err := SeedAdmin(ctx, svc, " Ops@Example.com ", "password123")
	require.NoError(t, err)
	assert.True(t, created)
	created, err = SeedAdmin(ctx, svc, "ops@example.com", "password123")
	require.NoError(t, err)

	// THEN: one admin exists, named after the email's local part
	assert.False(t, created)
	u, err := svc.Store().GetUserByEmail(ctx, "ops@example.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "ops", u.Username)
	assert.True(t, u.HasRole(timesheet.RoleAdmin))
	assert.True(t, CheckPassword(u.PasswordHash, "password123"))
}

func TestSeedAdmin_SkipsWithoutEmailAndRejectsWeakPassword(t *testing.T) {
	svc := timesheet.NewService(memory.New(), timesheet.Defaults{})
	ctx := context.Background()

	created, err := SeedAdmin(ctx, svc, "", "")
	require.NoError(t, err)
	assert.False(t, created)

	_, err = SeedAdmin(ctx, svc, "ops@example.com", "short")
	assert.ErrorIs(t, err, ErrPasswordTooWeak)
}
