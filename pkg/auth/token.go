package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/docreview-backend/pkg/config"
)

const (
	tokenAudience = "docreview-api"
	clockLeeway   = 5 * time.Second
)

var jwtSigningMethod = jwt.SigningMethodHS256

var errMissingSecret = errors.New("jwt secret is required")

// MintAccessToken signs an HS256 token binding payload.Username to the review
// session in payload.SessionID. It expires after cfg.SessionTTL().
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	if err := checkSigningConfig(cfg); err != nil {
		return "", err
	}
	ttl := cfg.SessionTTL()
	if ttl <= 0 {
		return "", fmt.Errorf("jwt expiration minutes must be positive")
	}
	username, sessionID, err := payload.normalize()
	if err != nil {
		return "", err
	}

	issued := jwt.NewNumericDate(now)
	claims := AccessTokenClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   username,
			Audience:  jwt.ClaimStrings{tokenAudience},
			IssuedAt:  issued,
			NotBefore: issued,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        sessionID,
		},
	}

	signed, err := jwt.NewWithClaims(jwtSigningMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer, audience and expiry, allowing
// a few seconds of clock skew.
func ParseAccessToken(cfg config.JWTConfig, tokenString string) (*AccessTokenClaims, error) {
	return ParseAccessTokenAt(cfg, tokenString, time.Now())
}

// ParseAccessTokenAt is ParseAccessToken with time-based claims checked against now.
func ParseAccessTokenAt(cfg config.JWTConfig, tokenString string, now time.Time) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, errMissingSecret
	}

	claims := &AccessTokenClaims{}
	keyFunc := func(*jwt.Token) (any, error) { return []byte(cfg.Secret), nil }
	if _, err := jwt.ParseWithClaims(tokenString, claims, keyFunc,
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockLeeway),
		jwt.WithTimeFunc(func() time.Time { return now }),
	); err != nil {
		return nil, err
	}
	if claims.SessionID() == "" || claims.Username == "" {
		return nil, fmt.Errorf("token missing session claims")
	}
	return claims, nil
}

func checkSigningConfig(cfg config.JWTConfig) error {
	if cfg.Secret == "" {
		return errMissingSecret
	}
	if cfg.Issuer == "" {
		return fmt.Errorf("jwt issuer is required")
	}
	return nil
}

func (p AccessTokenPayload) normalize() (username, sessionID string, err error) {
	username = strings.TrimSpace(p.Username)
	if username == "" {
		return "", "", fmt.Errorf("username is required")
	}
	sessionID = strings.TrimSpace(p.SessionID)
	if sessionID == "" {
		return "", "", fmt.Errorf("session id is required")
	}
	return username, sessionID, nil
}
