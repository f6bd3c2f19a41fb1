// Package auth reads the current user's role. depot never verifies tokens it
// sends; it only decodes the role claim to decide which row actions to show.
// The demo server signs and validates tokens with the same claims.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the backend role of the current user.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleManager     Role = "manager"
	RoleStorekeeper Role = "storekeeper"
	RoleOperator    Role = "operator"
	RoleViewer      Role = "viewer"
)

// Roles lists the known roles, most privileged first.
var Roles = []Role{RoleAdmin, RoleManager, RoleStorekeeper, RoleOperator, RoleViewer}

// ParseRole normalizes s. Unknown or empty values become RoleViewer.
func ParseRole(s string) Role {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Roles {
		if r == known {
			return r
		}
	}
	return RoleViewer
}

// CanEdit reports whether the role may create and update records.
func (r Role) CanEdit() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleStorekeeper:
		return true
	}
	return false
}

// CanDelete reports whether the role may delete records.
func (r Role) CanDelete() bool { return r == RoleAdmin }

func (r Role) String() string { return string(r) }

// Claims is the token payload the backend issues.
type Claims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
	Role string `json:"role"`
}

// ErrNoToken is returned when no token is configured.
var ErrNoToken = errors.New("no token")

// ClaimsFromToken decodes claims without checking the signature.
func ClaimsFromToken(token string) (*Claims, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return nil, ErrNoToken
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return claims, nil
}

// Resolve picks the role: an explicit override wins, then the token's role
// claim, then RoleViewer.
func Resolve(override, token string) (Role, error) {
	if strings.TrimSpace(override) != "" {
		return ParseRole(override), nil
	}
	claims, err := ClaimsFromToken(token)
	if errors.Is(err, ErrNoToken) {
		return RoleViewer, nil
	}
	if err != nil {
		return RoleViewer, err
	}
	return ParseRole(claims.Role), nil
}

// Sign issues an HS256 token for role, used by the demo server.
func Sign(secret []byte, name string, role Role, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("auth: empty secret")
	}
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   name,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name: name,
		Role: string(role),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Verify validates an HS256 token and returns its claims.
func Verify(secret []byte, token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
