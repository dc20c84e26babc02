package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/R3E-Network/recordstore/internal/app/domain/user"
	"github.com/R3E-Network/recordstore/internal/errors"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestIssueAndVerify(t *testing.T) {
	m := NewManager(secret, time.Hour, "recordstore")
	tok, err := m.Issue(user.User{ID: "u1", Role: user.RoleAdmin})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if tok.TokenType != "Bearer" || tok.AccessToken == "" {
		t.Fatalf("unexpected token %+v", tok)
	}

	claims, err := m.Verify(tok.AccessToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "u1" || claims.Role != "admin" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestVerifyExpired(t *testing.T) {
	m := NewManager(secret, time.Minute, "")
	issued := time.Now().Add(-time.Hour)
	m.now = func() time.Time { return issued }
	tok, err := m.Issue(user.User{ID: "u1", Role: user.RoleUser})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	m.now = time.Now
	if _, err := m.Verify(tok.AccessToken); !errors.IsCode(err, errors.CodeInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestVerifyRejectsOtherSecret(t *testing.T) {
	tok, err := NewManager("another-secret-another-secret", time.Hour, "").Issue(user.User{ID: "u1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewManager(secret, time.Hour, "").Verify(tok.AccessToken); err == nil {
		t.Fatal("expected signature failure")
	}
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	tok, err := NewManager(secret, time.Hour, "someone-else").Issue(user.User{ID: "u1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewManager(secret, time.Hour, "recordstore").Verify(tok.AccessToken); err == nil {
		t.Fatal("expected issuer mismatch")
	}
}

func TestVerifyRejectsNoneAlgorithm(t *testing.T) {
	claims := Claims{UserID: "u1", Role: "admin", RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("build unsigned token: %v", err)
	}
	if _, err := NewManager(secret, time.Hour, "").Verify(unsigned); err == nil {
		t.Fatal("expected unsigned token to be rejected")
	}
}
