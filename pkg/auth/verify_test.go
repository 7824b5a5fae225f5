package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lucalabs/luca-backend/pkg/config"
	"github.com/lucalabs/luca-backend/pkg/enums"
	pkgerrors "github.com/lucalabs/luca-backend/pkg/errors"
)

var jwtCfg = config.JWTConfig{Secret: "test-secret", Issuer: "luca-idp"}

func mintToken(t *testing.T, cfg config.JWTConfig, claims AccessTokenClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func validClaims() AccessTokenClaims {
	return AccessTokenClaims{
		UserID:   uuid.New(),
		TenantID: uuid.New(),
		Role:     enums.TenantRoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "luca-idp",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestParseAccessTokenRoundTrip(t *testing.T) {
	want := validClaims()
	got, err := ParseAccessToken(jwtCfg, mintToken(t, jwtCfg, want))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.TenantID != want.TenantID || got.UserID != want.UserID {
		t.Fatalf("claims mismatch: %+v", got)
	}
	if got.Role != enums.TenantRoleAdmin {
		t.Fatalf("unexpected role %s", got.Role)
	}
}

func TestParseAccessTokenRejectsWrongSecret(t *testing.T) {
	token := mintToken(t, config.JWTConfig{Secret: "other", Issuer: "luca-idp"}, validClaims())
	_, err := ParseAccessToken(jwtCfg, token)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("forged token must be UNAUTHORIZED, got %v", err)
	}
}

func TestParseAccessTokenRejectsWrongIssuer(t *testing.T) {
	claims := validClaims()
	claims.Issuer = "someone-else"
	_, err := ParseAccessToken(jwtCfg, mintToken(t, jwtCfg, claims))
	if pkgerrors.As(err) == nil {
		t.Fatalf("wrong issuer must be rejected")
	}
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	claims := validClaims()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	_, err := ParseAccessToken(jwtCfg, mintToken(t, jwtCfg, claims))
	if err == nil {
		t.Fatalf("expired token must be rejected")
	}
}

func TestParseAccessTokenRequiresTenant(t *testing.T) {
	claims := validClaims()
	claims.TenantID = uuid.Nil
	_, err := ParseAccessToken(jwtCfg, mintToken(t, jwtCfg, claims))
	if err == nil {
		t.Fatalf("tokens without a tenant must be rejected")
	}
}
