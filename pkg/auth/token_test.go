package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/docreview-backend/pkg/config"
	"github.com/golang-jwt/jwt/v5"
)

func testJWTConfig(minutes int) config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "docreview",
		ExpirationMinutes: minutes,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig(30)
	now := time.Now().UTC()

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{Username: "reviewer", SessionID: "sess-1"})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}

	if claims.Username != "reviewer" {
		t.Fatalf("expected username reviewer, got %s", claims.Username)
	}
	if claims.SessionID() != "sess-1" {
		t.Fatalf("expected session id sess-1, got %s", claims.SessionID())
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("expected issuer %s, got %s", cfg.Issuer, claims.Issuer)
	}

	exp := now.Add(cfg.SessionTTL())
	diff := claims.ExpiresAt.Sub(exp)
	if diff < 0 {
		diff = -diff
	}
	if diff >= time.Second {
		t.Fatalf("expected exp roughly %v, got %v (diff %v)", exp.UTC(), claims.ExpiresAt.UTC(), diff)
	}
}

func TestParseAccessTokenInvalidSignature(t *testing.T) {
	cfg := testJWTConfig(10)
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{Username: "reviewer", SessionID: "sess-1"})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	if _, err := ParseAccessToken(cfg, token+"x"); err == nil {
		t.Fatal("expected invalid signature error")
	}

	other := cfg
	other.Secret = "different"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatal("expected error for token signed with another secret")
	}
}

func TestParseAccessTokenExpired(t *testing.T) {
	cfg := testJWTConfig(15)
	token, err := MintAccessToken(cfg, time.Now().Add(-time.Hour), AccessTokenPayload{Username: "reviewer", SessionID: "sess-1"})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	_, err = ParseAccessToken(cfg, token)
	if err == nil {
		t.Fatal("expected expiration error")
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseAccessTokenWrongIssuer(t *testing.T) {
	cfg := testJWTConfig(15)
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{Username: "reviewer", SessionID: "sess-1"})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	other := cfg
	other.Issuer = "someone-else"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatal("expected issuer mismatch error")
	}
}

func TestParseAccessTokenMissingSession(t *testing.T) {
	cfg := testJWTConfig(15)
	claims := AccessTokenClaims{
		Username: "reviewer",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwtSigningMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatal("expected error for token without jti")
	}
}

func TestParseAccessTokenRejectsForeignAudienceAndAlg(t *testing.T) {
	cfg := testJWTConfig(15)
	foreign := AccessTokenClaims{
		Username: "reviewer",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{"another-api"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			ID:        "sess-1",
		},
	}
	token, err := jwt.NewWithClaims(jwtSigningMethod, foreign).SignedString([]byte(cfg.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatal("expected audience mismatch error")
	}

	foreign.Audience = jwt.ClaimStrings{tokenAudience}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS512, foreign).SignedString([]byte(cfg.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatal("expected HS512 token to be rejected")
	}
}

func TestParseAccessTokenToleratesSmallSkew(t *testing.T) {
	cfg := testJWTConfig(15)
	token, err := MintAccessToken(cfg, time.Now().Add(2*time.Second), AccessTokenPayload{Username: "reviewer", SessionID: "sess-1"})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err != nil {
		t.Fatalf("expected token minted slightly in the future to parse: %v", err)
	}
}

func TestParseAccessTokenAtUsesGivenClock(t *testing.T) {
	cfg := testJWTConfig(15)
	minted := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	token, err := MintAccessToken(cfg, minted, AccessTokenPayload{Username: "reviewer", SessionID: "sess-1"})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	if _, err := ParseAccessTokenAt(cfg, token, minted.Add(14*time.Minute)); err != nil {
		t.Fatalf("expected token to be valid inside its lifetime: %v", err)
	}
	if _, err := ParseAccessTokenAt(cfg, token, minted.Add(-time.Minute)); err == nil {
		t.Fatal("expected token to be rejected before it was issued")
	}
	_, err = ParseAccessTokenAt(cfg, token, minted.Add(16*time.Minute))
	if err == nil || !strings.Contains(err.Error(), "expired") {
		t.Fatalf("expected expiration error, got %v", err)
	}
}

func TestMintAccessTokenValidation(t *testing.T) {
	cfg := testJWTConfig(5)
	now := time.Now()

	if _, err := MintAccessToken(cfg, now, AccessTokenPayload{SessionID: "sess-1"}); err == nil {
		t.Fatal("expected missing username error")
	}
	if _, err := MintAccessToken(cfg, now, AccessTokenPayload{Username: "reviewer"}); err == nil {
		t.Fatal("expected missing session error")
	}
	if _, err := MintAccessToken(testJWTConfig(0), now, AccessTokenPayload{Username: "reviewer", SessionID: "s"}); err == nil {
		t.Fatal("expected ttl error")
	}
}
