package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iho/eodledger/internal/domain"
	"github.com/iho/eodledger/internal/infrastructure/auth"
)

func TestJWTManagerGenerateAndVerify(t *testing.T) {
	t.Parallel()

	manager := auth.NewJWTManager("super-secret", time.Minute)
	op := domain.Operator{ID: "ops-01", Role: domain.RoleOperator}

	token, err := manager.Generate(op)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	claims, err := manager.Verify(token)
	if err != nil {
		t.Fatalf("expected token to verify, got %v", err)
	}

	if claims.Operator() != op || claims.Subject != op.ID {
		t.Fatalf("expected claims to match operator, got %+v", claims)
	}
}

func TestJWTManagerRejectsUnknownRole(t *testing.T) {
	t.Parallel()

	manager := auth.NewJWTManager("secret", time.Minute)
	if _, err := manager.Generate(domain.Operator{ID: "x", Role: "root"}); !errors.Is(err, domain.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestJWTManagerVerifyErrors(t *testing.T) {
	t.Parallel()

	manager := auth.NewJWTManager("secret", time.Minute)

	sign := func(claims auth.Claims, secret string) string {
		t.Helper()
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		if err != nil {
			t.Fatalf("failed to sign token: %v", err)
		}
		return token
	}

	expired := sign(auth.Claims{
		OperatorID: "expired",
		Role:       domain.RoleViewer,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "eodledger",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Minute)),
		},
	}, "secret")

	foreignIssuer := sign(auth.Claims{
		OperatorID: "ops",
		Role:       domain.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}, "secret")

	unknownRole := sign(auth.Claims{
		OperatorID: "ops",
		Role:       "root",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "eodledger",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}, "secret")

	tests := []struct {
		name    string
		manager *auth.JWTManager
		token   string
		want    error
	}{
		{"expired", manager, expired, domain.ErrExpiredToken},
		{"wrong secret", auth.NewJWTManager("other-secret", time.Minute), expired, domain.ErrInvalidToken},
		{"foreign issuer", manager, foreignIssuer, domain.ErrInvalidToken},
		{"unknown role", manager, unknownRole, domain.ErrInvalidToken},
		{"malformed", manager, "not-a-token", domain.ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.manager.Verify(tt.token); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
