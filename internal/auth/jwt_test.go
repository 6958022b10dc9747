package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestJWTManager_GenerateAndVerify(t *testing.T) {
	m := NewJWTManager("test-secret", 5*time.Minute)

	token, _, err := m.GenerateToken(42, "Ada Obi")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := m.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}

	if claims.UserID != 42 {
		t.Fatalf("claims.UserID mismatch: got %d", claims.UserID)
	}
	if claims.Name != "Ada Obi" {
		t.Fatalf("claims.Name mismatch: got %s", claims.Name)
	}
}

func TestJWTManager_RejectsWrongSecret(t *testing.T) {
	token, _, err := NewJWTManager("one", time.Minute).GenerateToken(1, "")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if _, err := NewJWTManager("two", time.Minute).VerifyToken(token); err == nil {
		t.Fatal("VerifyToken succeeded with the wrong secret")
	}
}

func TestJWTManager_RejectsExpired(t *testing.T) {
	m := NewJWTManager("s", -time.Minute)
	token, _, err := m.GenerateToken(1, "")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if _, err := m.VerifyToken(token); err == nil {
		t.Fatal("VerifyToken accepted an expired token")
	}
}

func TestJWTManager_SubjectFallback(t *testing.T) {
	// tokens minted elsewhere may only carry the id in sub
	claims := jwt.RegisteredClaims{Subject: "77", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	got, err := NewJWTManager("s", time.Minute).VerifyToken(signed)
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}
	if got.UserID != 77 {
		t.Fatalf("expected user id from subject, got %d", got.UserID)
	}
}

func TestJWTManager_RejectsMissingUser(t *testing.T) {
	claims := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewJWTManager("s", time.Minute).VerifyToken(signed); err == nil {
		t.Fatal("VerifyToken accepted a token without a user")
	}
}

func TestJWTManager_Rotation(t *testing.T) {
	keys := map[string]string{"k1": "secret-one", "k2": "secret-two"}
	m := NewJWTManagerFromKeys(keys, "k2", 5*time.Minute)

	tkn2, _, err := m.GenerateToken(9, "rot")
	if err != nil {
		t.Fatalf("GenerateToken (k2) failed: %v", err)
	}
	if _, err := m.VerifyToken(tkn2); err != nil {
		t.Fatalf("VerifyToken (k2) failed: %v", err)
	}

	// a token issued while k1 was active must still verify
	mOld := NewJWTManagerFromKeys(keys, "k1", 5*time.Minute)
	tkn1, _, err := mOld.GenerateToken(9, "rot")
	if err != nil {
		t.Fatalf("GenerateToken (k1) failed: %v", err)
	}
	if _, err := m.VerifyToken(tkn1); err != nil {
		t.Fatalf("VerifyToken (old k1) failed: %v", err)
	}

	// once k1 is retired its tokens are rejected
	retired := NewJWTManagerFromKeys(map[string]string{"k2": "secret-two"}, "k2", 5*time.Minute)
	if _, err := retired.VerifyToken(tkn1); err == nil {
		t.Fatal("VerifyToken accepted a token signed by a retired key")
	}
}

func TestContextRoundTrip(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Fatal("empty context should carry no claims")
	}
	ctx := NewContext(context.Background(), &Claims{UserID: 3})
	c, ok := FromContext(ctx)
	if !ok || c.UserID != 3 {
		t.Fatalf("claims not carried: %+v", c)
	}
}
