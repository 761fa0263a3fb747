package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateVerify(t *testing.T) {
	secret := []byte("secret")
	tok, err := Generate("u1", RoleModerator, secret)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	a, err := Verify(tok, secret, time.Minute)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if a.UserID != "u1" || !a.IsModerator() {
		t.Fatalf("unexpected actor: %+v", a)
	}
}

func TestVerifyExpired(t *testing.T) {
	secret := []byte("s")
	tok, err := generateAt("u", RoleUser, time.Now().Add(-2*time.Hour), secret)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := Verify(tok, secret, time.Hour); err != ErrExpired {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if _, err := Verify(tok, secret, 0); err != nil {
		t.Fatalf("zero ttl should skip expiry, got %v", err)
	}
}

func TestVerifyInvalid(t *testing.T) {
	secret := []byte("s")
	tok, _ := Generate("u", RoleUser, secret)
	cases := map[string]string{
		"tampered signature": tok + "x",
		"wrong secret":       "",
		"no separator":       strings.ReplaceAll(tok, ".", ""),
		"extra segment":      tok + ".abc",
		"garbage":            "!!!.???",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			key := secret
			if in == "" {
				in, key = tok, []byte("other")
			}
			if _, err := Verify(in, key, time.Minute); err != ErrInvalid {
				t.Fatalf("expected invalid, got %v", err)
			}
		})
	}
}

func TestRoleCannotBeForged(t *testing.T) {
	secret := []byte("s")
	tok, _ := Generate("u", RoleUser, secret)
	forged, _ := Generate("u", RoleModerator, []byte("guess"))
	body := forged[:strings.LastIndex(forged, ".")]
	sig := tok[strings.LastIndex(tok, ".")+1:]
	if _, err := Verify(body+"."+sig, secret, time.Minute); err != ErrInvalid {
		t.Fatalf("expected invalid, got %v", err)
	}
}

func TestUnsignedTokenRejected(t *testing.T) {
	claims := Claims{
		Role: RoleModerator,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  "u",
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := Verify(tok, []byte("s"), time.Minute); err != ErrInvalid {
		t.Fatalf("expected invalid, got %v", err)
	}
}

func TestUnknownRoleRejected(t *testing.T) {
	secret := []byte("s")
	claims := Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  "u",
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := Verify(tok, secret, time.Minute); err != ErrInvalid {
		t.Fatalf("expected invalid, got %v", err)
	}
}

func TestGenerateValidation(t *testing.T) {
	secret := []byte("s")
	if _, err := Generate("", RoleUser, secret); err == nil {
		t.Error("expected error for empty user id")
	}
	if _, err := Generate(strings.Repeat("u", MaxUserIDLength+1), RoleUser, secret); err == nil {
		t.Error("expected error for long user id")
	}
	if _, err := Generate("u", "admin", secret); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestFromHeader(t *testing.T) {
	if tok, ok := FromHeader("Bearer abc.def"); !ok || tok != "abc.def" {
		t.Fatalf("got %q %v", tok, ok)
	}
	if tok, ok := FromHeader("bearer  xyz "); !ok || tok != "xyz" {
		t.Fatalf("got %q %v", tok, ok)
	}
	for _, h := range []string{"", "Basic abc", "Bearer", "Bearer   "} {
		if _, ok := FromHeader(h); ok {
			t.Errorf("expected %q to be rejected", h)
		}
	}
}
