package security_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/angelmondragon/docreview-backend/pkg/config"
	"github.com/angelmondragon/docreview-backend/pkg/security"
)

func testPasswordConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    32768,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := security.HashPassword("very-secure-password", testPasswordConfig())
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=32768,t=1,p=1$") {
		t.Fatalf("unexpected hash format %q", hash)
	}
	if err := security.ValidateHash(hash); err != nil {
		t.Fatalf("ValidateHash rejected a fresh hash: %v", err)
	}

	ok, err := security.VerifyPassword("very-secure-password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword returned error for valid hash: %v", err)
	}
	if !ok {
		t.Fatal("VerifyPassword failed for the correct password")
	}

	ok, err = security.VerifyPassword("bogus-password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword returned error for invalid password: %v", err)
	}
	if ok {
		t.Fatal("VerifyPassword returned true for incorrect password")
	}
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	if _, err := security.HashPassword("", testPasswordConfig()); err == nil {
		t.Fatal("expected error for empty password")
	}
}

func TestHashesAreSalted(t *testing.T) {
	first, err := security.HashPassword("same", testPasswordConfig())
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	second, err := security.HashPassword("same", testPasswordConfig())
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct salts per hash")
	}
}

func TestVerifyPasswordBadHash(t *testing.T) {
	cases := []string{
		"not-a-hash",
		"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=65536,t=3,p=2$c2FsdHNhbHQ$aGFzaGhhc2g",
		"$argon2id$v=19$m=65536,t=0,p=2$c2FsdHNhbHQ$aGFzaGhhc2g",
		"$argon2id$v=19$m=65536,t=3,p=2$!!!$aGFzaGhhc2g",
	}
	for _, encoded := range cases {
		if _, err := security.VerifyPassword("irrelevant", encoded); !errors.Is(err, security.ErrInvalidHash) {
			t.Fatalf("expected ErrInvalidHash for %q, got %v", encoded, err)
		}
	}
}

func TestNeedsRehash(t *testing.T) {
	cfg := testPasswordConfig()
	hash, err := security.HashPassword("very-secure-password", cfg)
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if security.NeedsRehash(hash, cfg) {
		t.Fatal("hash built from current settings should not need a rehash")
	}

	stronger := cfg
	stronger.ArgonTime = 3
	if !security.NeedsRehash(hash, stronger) {
		t.Fatal("expected rehash when time cost increases")
	}
	if !security.NeedsRehash("not-a-hash", cfg) {
		t.Fatal("malformed hashes should need a rehash")
	}
}

func TestParamsFromConfigClamps(t *testing.T) {
	p := security.ParamsFromConfig(config.PasswordConfig{ArgonParallelism: 1000})
	if p.Memory != 8 || p.Time != 1 || p.Parallelism != 255 || p.SaltLen != 8 || p.KeyLen != 16 {
		t.Fatalf("unexpected clamped params %+v", p)
	}
}
