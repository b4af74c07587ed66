// internal/utils/jwt.go
package utils

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const (
	tokenIssuer = "songgate"

	audienceAccess  = "access"
	audienceRefresh = "refresh"
)

var (
	ErrJWTSecretUnset = errors.New("jwt secret not configured")
	ErrInvalidToken   = errors.New("invalid token")
)

type JWTClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// The signing key is set once from config.JWT.SecretKey when the router is
// built; until then no token can be issued or accepted.
var (
	jwtMu     sync.RWMutex
	jwtSecret []byte
)

func SetJWTSecret(secret string) {
	jwtMu.Lock()
	defer jwtMu.Unlock()
	jwtSecret = []byte(secret)
}

func signingKey() ([]byte, error) {
	jwtMu.RLock()
	defer jwtMu.RUnlock()
	if len(jwtSecret) == 0 {
		return nil, ErrJWTSecretUnset
	}
	return jwtSecret, nil
}

func registered(userID uuid.UUID, audience string, ttlHours int) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ttlHours) * time.Hour)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Issuer:    tokenIssuer,
		Subject:   userID.String(),
		Audience:  jwt.ClaimStrings{audience},
	}
}

func sign(claims jwt.Claims) (string, error) {
	key, err := signingKey()
	if err != nil {
		return "", err
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

// parse verifies signature, expiry, issuer and audience.
func parse(tokenString string, claims jwt.Claims, audience string) error {
	key, err := signingKey()
	if err != nil {
		return err
	}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return key, nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return ErrInvalidToken
	}

	var rc *jwt.RegisteredClaims
	switch c := claims.(type) {
	case *JWTClaims:
		rc = &c.RegisteredClaims
	case *jwt.RegisteredClaims:
		rc = c
	}
	if rc == nil || !rc.VerifyIssuer(tokenIssuer, true) || !rc.VerifyAudience(audience, true) {
		return ErrInvalidToken
	}
	return nil
}

func GenerateJWT(userID uuid.UUID, username string, ttlHours int) (string, error) {
	return sign(JWTClaims{
		UserID:           userID.String(),
		Username:         username,
		RegisteredClaims: registered(userID, audienceAccess, ttlHours),
	})
}

func ValidateJWT(tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	if err := parse(tokenString, claims, audienceAccess); err != nil {
		return nil, err
	}
	return claims, nil
}

func GenerateRefreshToken(userID uuid.UUID, ttlHours int) (string, error) {
	claims := registered(userID, audienceRefresh, ttlHours)
	return sign(&claims)
}

// ValidateRefreshToken returns the subject of a refresh token. Access tokens
// are rejected.
func ValidateRefreshToken(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	if err := parse(tokenString, claims, audienceRefresh); err != nil {
		return "", err
	}
	return claims.Subject, nil
}
