package auth

import (
	"testing"
	"time"

	"github.com/angelmondragon/abcxyz-forecast/pkg/config"
	"github.com/angelmondragon/abcxyz-forecast/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
)

var testCfg = config.JWTConfig{Secret: "secret", Issuer: "abcxyz"}

func sign(t *testing.T, method jwt.SigningMethod, key any, claims AccessTokenClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func validClaims() AccessTokenClaims {
	now := time.Now()
	return AccessTokenClaims{
		UserID: "17",
		Roles:  []enums.Role{enums.RoleUser},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "abcxyz",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

func TestParseAccessTokenRoundTrip(t *testing.T) {
	token := sign(t, jwt.SigningMethodHS256, []byte("secret"), validClaims())

	claims, err := ParseAccessToken(testCfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.Subject() != "17" {
		t.Fatalf("unexpected subject %q", claims.Subject())
	}
	if !claims.HasAnyRole(enums.RoleAdmin, enums.RoleUser) {
		t.Fatalf("expected user role to match")
	}
	if claims.HasAnyRole(enums.RoleAdmin) {
		t.Fatalf("did not expect admin role")
	}
}

func TestParseAccessTokenFallsBackToSub(t *testing.T) {
	c := validClaims()
	c.UserID = ""
	c.RegisteredClaims.Subject = "99"
	claims, err := ParseAccessToken(testCfg, sign(t, jwt.SigningMethodHS256, []byte("secret"), c))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject() != "99" {
		t.Fatalf("expected sub fallback, got %q", claims.Subject())
	}
}

func TestParseAccessTokenRejects(t *testing.T) {
	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	wrongIssuer := validClaims()
	wrongIssuer.Issuer = "other"

	noExpiry := validClaims()
	noExpiry.ExpiresAt = nil

	cases := map[string]string{
		"wrong secret": sign(t, jwt.SigningMethodHS256, []byte("nope"), validClaims()),
		"expired":      sign(t, jwt.SigningMethodHS256, []byte("secret"), expired),
		"issuer":       sign(t, jwt.SigningMethodHS256, []byte("secret"), wrongIssuer),
		"no expiry":    sign(t, jwt.SigningMethodHS256, []byte("secret"), noExpiry),
		"hs384":        sign(t, jwt.SigningMethodHS384, []byte("secret"), validClaims()),
		"garbage":      "not-a-token",
	}
	for name, token := range cases {
		if _, err := ParseAccessToken(testCfg, token); err == nil {
			t.Fatalf("%s: expected parse error", name)
		}
	}

	if _, err := ParseAccessToken(config.JWTConfig{}, "x"); err == nil {
		t.Fatal("expected error without secret")
	}
}
