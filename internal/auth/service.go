// Package auth is a minimal operator-auth guard for the mutating routes
// (POST/PUT/DELETE under /api): one configured operator credential,
// issued as a signed JWT, checked by gateway middleware. There is no
// user table in this system's data model — scenarios, runs, and the
// event log belong to whoever is operating the simulator, not to
// individual end users — so this intentionally drops the teacher's
// multi-user registration/API-key surface rather than inventing
// persistence the spec never calls for.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidCredentials = errors.New("invalid operator credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// Service issues and verifies operator session tokens. The credential
// is configured once at process start (see cmd/server's loadConfig),
// not looked up from a database.
type Service struct {
	jwtSecret    string
	username     string
	passwordHash string
	tokenTTL     time.Duration
}

// Claims identifies the operator a token was issued to.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// NewService builds the operator-auth service from a configured
// username/password pair and the secret used to sign issued tokens.
func NewService(jwtSecret, username, password string) *Service {
	return &Service{
		jwtSecret:    jwtSecret,
		username:     username,
		passwordHash: hashPassword(password),
		tokenTTL:     24 * time.Hour,
	}
}

// Login issues a signed token for the configured operator credential.
// With exactly one operator account, this never touches storage — it's
// a comparison against the hash captured at construction.
func (s *Service) Login(username, password string) (string, error) {
	if username != s.username || hashPassword(password) != s.passwordHash {
		return "", ErrInvalidCredentials
	}

	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

// VerifyToken parses and validates a bearer token, stripping a leading
// "Bearer " prefix if the caller passed the raw Authorization header
// value.
func (s *Service) VerifyToken(tokenString string) (*Claims, error) {
	if len(tokenString) > 7 && tokenString[:7] == "Bearer " {
		tokenString = tokenString[7:]
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// hashPassword keeps the teacher's unsalted sha256 exactly as-is. A
// multi-operator deployment would want bcrypt/argon2 and per-credential
// salts; for the single configured operator credential here, the
// fidelity tradeoff is recorded rather than silently "fixed".
func hashPassword(password string) string {
	hash := sha256.Sum256([]byte(password))
	return hex.EncodeToString(hash[:])
}
