package utils

import (
	"testing"
	"time"

	"github.com/agroph/portal/config"
	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndParseToken(t *testing.T) {
	config.Set(config.AppConfig{AppEnv: "test", JWTSecret: "unit-test-secret"})

	token, err := GenerateToken(42, "admin", "Ana", 0)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	claims, err := ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != 42 || claims.Role != "admin" || claims.DisplayName != "Ana" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	lifetime := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	if lifetime != 7*24*time.Hour {
		t.Fatalf("token lifetime = %v, want 7 days", lifetime)
	}
}

func TestParseTokenRejectsExpiredAndForeign(t *testing.T) {
	config.Set(config.AppConfig{AppEnv: "test", JWTSecret: "unit-test-secret"})

	past := time.Now().Add(-time.Hour)
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: 1,
		Role:   "user",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(past),
			IssuedAt:  jwt.NewNumericDate(past.Add(-time.Hour)),
		},
	}).SignedString([]byte("unit-test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseToken(expired); !IsExpired(err) {
		t.Fatalf("expired token: got %v", err)
	}

	valid, _ := GenerateToken(1, "user", "Ben", time.Hour)
	config.Set(config.AppConfig{AppEnv: "test", JWTSecret: "other-secret"})
	if _, err := ParseToken(valid); err == nil {
		t.Fatal("token signed with another secret must be rejected")
	}
	if _, err := ParseToken("not-a-token"); err == nil {
		t.Fatal("garbage must be rejected")
	}
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("secret123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword(hash, "secret123") {
		t.Fatal("correct password rejected")
	}
	if CheckPassword(hash, "secret124") {
		t.Fatal("wrong password accepted")
	}
	if CheckPassword("", "") {
		t.Fatal("empty hash must never match")
	}
}
