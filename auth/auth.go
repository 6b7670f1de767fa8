// Package auth provides password hashing and JWT access/refresh token
// handling. The link routes consume only its Authenticate capability.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidToken is returned for malformed, mis-signed or expired tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

// bcryptCost trades hashing latency for resistance to offline cracking.
const bcryptCost = 12

// Config contains token signing configuration. Access and refresh tokens are
// signed with separate secrets so one cannot stand in for the other.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// DefaultConfig returns default TTLs; secrets have no default and must be
// supplied by the operator.
func DefaultConfig() Config {
	return Config{
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}
}

// Service issues and verifies tokens and hashes passwords.
type Service struct {
	config Config
}

// NewService creates a new Service. Returns an error when a secret is empty,
// refusing to run with forgeable tokens.
func NewService(config Config) (*Service, error) {
	if config.AccessSecret == "" || config.RefreshSecret == "" {
		return nil, fmt.Errorf("access and refresh secrets are required")
	}
	if config.AccessTTL <= 0 {
		config.AccessTTL = 15 * time.Minute
	}
	if config.RefreshTTL <= 0 {
		config.RefreshTTL = 7 * 24 * time.Hour
	}
	return &Service{config: config}, nil
}

// Claims carries the authenticated user id.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// TokenPair is an access/refresh token set issued together.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// HashPassword returns the bcrypt hash of a password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateTokens issues a new access/refresh pair for a user.
func (s *Service) GenerateTokens(userID string) (*TokenPair, error) {
	accessToken, err := signToken(userID, s.config.AccessSecret, s.config.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}
	refreshToken, err := signToken(userID, s.config.RefreshSecret, s.config.RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Authenticate verifies an access token and returns the user id it carries.
func (s *Service) Authenticate(tokenStr string) (string, error) {
	return parseToken(tokenStr, s.config.AccessSecret)
}

// VerifyRefresh verifies a refresh token and returns the user id it carries.
func (s *Service) VerifyRefresh(tokenStr string) (string, error) {
	return parseToken(tokenStr, s.config.RefreshSecret)
}

func signToken(userID, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString([]byte(secret))
}

func parseToken(tokenStr, secret string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return "", ErrInvalidToken
	}
	return claims.UserID, nil
}
