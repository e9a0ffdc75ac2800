package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/uporders-backend/pkg/config"
	"github.com/angelmondragon/uporders-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "uporders",
		ExpirationMinutes: 30,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()
	customerID := uuid.New()

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{
		CustomerID: customerID,
		Role:       enums.CustomerRoleConsumer,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.CustomerID != customerID {
		t.Fatalf("expected customer_id %s, got %s", customerID, claims.CustomerID)
	}
	if claims.Role != enums.CustomerRoleConsumer {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("unexpected issuer %s", claims.Issuer)
	}
	if claims.Subject != customerID.String() {
		t.Fatalf("unexpected subject %s", claims.Subject)
	}
	if claims.ID == "" {
		t.Fatalf("expected jti to be generated")
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.Time.After(now) {
		t.Fatalf("expected expiry in the future")
	}
}

func TestMintAccessTokenValidation(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now()

	if _, err := MintAccessToken(cfg, now, AccessTokenPayload{Role: enums.CustomerRoleConsumer}); err == nil {
		t.Fatalf("expected error without customer id")
	}
	if _, err := MintAccessToken(cfg, now, AccessTokenPayload{CustomerID: uuid.New(), Role: "admin"}); err == nil {
		t.Fatalf("expected error for invalid role")
	}
	noSecret := cfg
	noSecret.Secret = ""
	if _, err := MintAccessToken(noSecret, now, AccessTokenPayload{CustomerID: uuid.New(), Role: enums.CustomerRoleConsumer}); err == nil {
		t.Fatalf("expected error without secret")
	}
}

func TestParseAccessTokenRejectsTampering(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{CustomerID: uuid.New(), Role: enums.CustomerRoleConsumer})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	other := cfg
	other.Secret = "different"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatalf("expected signature failure")
	}

	otherIssuer := cfg
	otherIssuer.Issuer = "someone-else"
	if _, err := ParseAccessToken(otherIssuer, token); err == nil {
		t.Fatalf("expected issuer failure")
	}

	parts := strings.Split(token, ".")
	if _, err := ParseAccessToken(cfg, parts[0]+"."+parts[1]+".bad"); err == nil {
		t.Fatalf("expected error for corrupted signature")
	}
}

func TestParseAccessTokenExpired(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), AccessTokenPayload{CustomerID: uuid.New(), Role: enums.CustomerRoleMerchant})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatalf("expected expired token error")
	}
}

func TestParseAccessTokenRejectsMismatchedSubject(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now()
	claims := AccessTokenClaims{
		CustomerID: uuid.New(),
		Role:       enums.CustomerRoleConsumer,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); !errors.Is(err, ErrInvalidClaims) {
		t.Fatalf("expected invalid claims, got %v", err)
	}
}

func TestParseAccessTokenRequiresExpiry(t *testing.T) {
	cfg := testJWTConfig()
	customerID := uuid.New()
	claims := AccessTokenClaims{
		CustomerID:       customerID,
		Role:             enums.CustomerRoleConsumer,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: cfg.Issuer, Subject: customerID.String()},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatal("expected missing expiry to fail")
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]struct {
		header string
		token  string
		ok     bool
	}{
		"bearer":      {"Bearer abc", "abc", true},
		"lowercase":   {"bearer   abc ", "abc", true},
		"empty":       {"", "", false},
		"no scheme":   {"abc", "", false},
		"basic":       {"Basic abc", "", false},
		"blank token": {"Bearer   ", "", false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			token, ok := BearerToken(tc.header)
			if token != tc.token || ok != tc.ok {
				t.Fatalf("got (%q, %v), want (%q, %v)", token, ok, tc.token, tc.ok)
			}
		})
	}
}
