/*
Package auth signs and checks session tokens and guards HTTP routes.

TOKENS:
  HS256 JWTs carrying the user id, username and roles. Read from the "token"
  cookie first, then from an "Authorization: Bearer" header.

PRINCIPAL:
  The middleware reloads the user on every request, rejects archived users
  and evaluates report.Capabilities once. Handlers read the result with
  PrincipalFromContext.
*/
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/warp/timecost/costing"
	"github.com/warp/timecost/logger"
	"github.com/warp/timecost/report"
	"github.com/warp/timecost/timesheet"
	"golang.org/x/crypto/bcrypt"
)

// CookieName is the session cookie.
const CookieName = "token"

// MinPasswordLength applies to new passwords.
const MinPasswordLength = 8

var (
	ErrInvalidToken    = errors.New("invalid or expired token")
	ErrInvalidLogin    = errors.New("invalid credentials")
	ErrPasswordTooWeak = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
)

// =============================================================================
// PASSWORDS
// =============================================================================

func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrPasswordTooWeak
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// =============================================================================
// TOKENS
// =============================================================================

type Claims struct {
	UserID   string   `json:"user_id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// Issuer signs and validates tokens with one secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL is how long issued tokens stay valid.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// ExpiresAt is when a token issued now expires.
func (i *Issuer) ExpiresAt() time.Time { return i.now().Add(i.ttl) }

func (i *Issuer) Issue(u timesheet.User) (string, error) {
	roles := make([]string, len(u.Roles))
	for n, r := range u.Roles {
		roles[n] = string(r)
	}
	now := i.now()
	claims := &Claims{
		UserID:   string(u.ID),
		Username: u.Username,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(u.ID),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

func (i *Issuer) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// TokenFromRequest reads the cookie, then the bearer header.
func TokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}

func SetTokenCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func ClearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// =============================================================================
// PRINCIPAL
// =============================================================================

// Principal is the authenticated caller of one request.
type Principal struct {
	User timesheet.User
	Caps report.Capabilities
}

func (p *Principal) ID() costing.WorkerID { return p.User.ID }

type contextKey string

const principalKey contextKey = "principal"

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}

// Directory is the store access the middleware needs.
type Directory interface {
	GetUser(ctx context.Context, id costing.WorkerID) (*timesheet.User, error)
	ManagedProjects(ctx context.Context, manager costing.WorkerID) ([]timesheet.ProjectID, error)
}

// LoadPrincipal resolves a user id into a principal with its capabilities.
func LoadPrincipal(ctx context.Context, dir Directory, id costing.WorkerID) (*Principal, error) {
	u, err := dir.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil || u.Archived {
		return nil, ErrInvalidToken
	}
	var managed []timesheet.ProjectID
	if u.HasRole(timesheet.RoleProjectManager) {
		if managed, err = dir.ManagedProjects(ctx, u.ID); err != nil {
			return nil, err
		}
	}
	return &Principal{User: *u, Caps: report.CapabilitiesFor(*u, managed)}, nil
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

// Middleware authenticates every request or answers 401.
func Middleware(issuer *Issuer, dir Directory) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := TokenFromRequest(r)
			if tokenString == "" {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			claims, err := issuer.Validate(tokenString)
			if err != nil {
				ClearTokenCookie(w)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			p, err := LoadPrincipal(r.Context(), dir, costing.WorkerID(claims.UserID))
			if errors.Is(err, ErrInvalidToken) {
				ClearTokenCookie(w)
				writeError(w, http.StatusUnauthorized, "account is not active")
				return
			}
			if err != nil {
				logger.Error("failed to load principal", "user", claims.UserID, "err", err)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireCapability answers 403 unless allow accepts the caller.
func RequireCapability(allow func(report.Capabilities) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if p == nil {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !allow(p.Caps) {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func CanManageWorkers(c report.Capabilities) bool { return c.ManageWorkers }
func CanViewCosts(c report.Capabilities) bool     { return c.ViewCosts }
func CanUnsubmit(c report.Capabilities) bool      { return c.Unsubmit }

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// =============================================================================
// BOOTSTRAP
// =============================================================================

// SeedAdmin creates the first admin when no user has email yet. The username
// is the email's local part. Returns false when the user already exists or
// no email is configured.
func SeedAdmin(ctx context.Context, svc *timesheet.Service, email, password string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false, nil
	}
	existing, err := svc.Store().GetUserByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}
	hash, err := HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("admin seed password: %w", err)
	}
	username, _, _ := strings.Cut(email, "@")
	u, err := svc.CreateUser(ctx, "", timesheet.NewUser{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Roles:        []timesheet.Role{timesheet.RoleAdmin},
	})
	if err != nil {
		return false, err
	}
	logger.Info("seeded admin user", "user", u.ID, "username", u.Username)
	return true, nil
}
