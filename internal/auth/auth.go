package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"catering-backend/internal/metadata"
)

// Claims represents the JWT claims.
type Claims struct {
	jwt.RegisteredClaims
	Username  string `json:"username"`
	Role      string `json:"role,omitempty"`
	Superuser bool   `json:"superuser,omitempty"`
}

const AccessTokenTTL = 12 * time.Hour

// GenerateAccessToken creates a signed JWT carrying the principal.
func GenerateAccessToken(p *metadata.Principal, secret string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenTTL)),
		},
		Username:  p.Username,
		Role:      string(p.Role),
		Superuser: p.Superuser,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ParseAccessToken validates and parses a JWT, returning the claims.
func ParseAccessToken(tokenStr string, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// Principal converts claims back into the request principal. An unknown
// role is dropped, leaving a principal without capabilities.
func (c *Claims) Principal() *metadata.Principal {
	role, ok := metadata.ParseRole(c.Role)
	if !ok {
		role = ""
	}
	return &metadata.Principal{
		ID:        c.Subject,
		Username:  c.Username,
		Role:      role,
		Superuser: c.Superuser,
	}
}

// PrincipalFromUser builds the principal of a stored user.
func PrincipalFromUser(id int64, username, role string, superuser bool) *metadata.Principal {
	r, ok := metadata.ParseRole(role)
	if !ok {
		r = ""
	}
	return &metadata.Principal{
		ID:        strconv.FormatInt(id, 10),
		Username:  username,
		Role:      r,
		Superuser: superuser,
	}
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
