package authjwt

import (
	"errors"
	"os"
	"testing"
	"time"

	authdomain "github.com/Black-And-White-Club/score-ledger/app/modules/auth/domain"
)

func TestProvider_GenerateAndValidateToken(t *testing.T) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "test-secret-at-least-32-chars-long!!"
	}
	p := NewProvider(secret, "score-ledger")

	claims := &authdomain.Claims{
		Subject: "0x52908400098527886e0f7030069857d2e4169ee7",
		Role:    authdomain.RolePlayer,
	}

	tests := []struct {
		name        string
		setupClaims *authdomain.Claims
		token       string
		ttl         time.Duration
		provider    Provider
		expectedErr error
		verify      func(t *testing.T, validated *authdomain.Claims)
	}{
		{
			name:        "success",
			setupClaims: claims,
			ttl:         1 * time.Hour,
			verify: func(t *testing.T, validated *authdomain.Claims) {
				if validated.Subject != claims.Subject {
					t.Errorf("expected subject %s, got %s", claims.Subject, validated.Subject)
				}
				if validated.Role != authdomain.RolePlayer {
					t.Errorf("expected role %s, got %s", authdomain.RolePlayer, validated.Role)
				}
				if validated.IsAdmin() {
					t.Error("player token must not be admin")
				}
				if validated.ExpiresAt.Before(time.Now()) {
					t.Errorf("expected future expiry, got %v", validated.ExpiresAt)
				}
			},
		},
		{
			name:        "admin role survives the round trip",
			setupClaims: &authdomain.Claims{Subject: "ops", Role: authdomain.RoleAdmin},
			ttl:         time.Minute,
			verify: func(t *testing.T, validated *authdomain.Claims) {
				if !validated.IsAdmin() {
					t.Errorf("expected admin, got %s", validated.Role)
				}
			},
		},
		{
			name:        "expired token",
			setupClaims: claims,
			ttl:         -1 * time.Hour,
			expectedErr: ErrExpiredToken,
		},
		{
			name:        "invalid signature",
			setupClaims: claims,
			ttl:         1 * time.Hour,
			provider:    NewProvider("wrong-secret", "score-ledger"),
			expectedErr: ErrInvalidSignature,
		},
		{
			name:        "wrong issuer",
			setupClaims: claims,
			ttl:         1 * time.Hour,
			provider:    NewProvider(secret, "someone-else"),
			expectedErr: ErrInvalidToken,
		},
		{
			name:        "malformed token",
			token:       "not.a.jwt",
			expectedErr: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := tt.token
			if tt.setupClaims != nil {
				var err error
				token, err = p.GenerateToken(tt.setupClaims, tt.ttl)
				if err != nil {
					t.Fatalf("failed to generate token: %v", err)
				}
			}

			validateTarget := p
			if tt.provider != nil {
				validateTarget = tt.provider
			}

			validatedClaims, err := validateTarget.ValidateToken(token)

			if tt.expectedErr != nil {
				if !errors.Is(err, tt.expectedErr) {
					t.Errorf("expected error %v, got %v", tt.expectedErr, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tt.verify != nil {
				tt.verify(t, validatedClaims)
			}
		})
	}
}

func TestProvider_GenerateTokenRejectsBadClaims(t *testing.T) {
	p := NewProvider("test-secret-at-least-32-chars-long!!", "")

	if _, err := p.GenerateToken(&authdomain.Claims{Role: authdomain.RolePlayer}, time.Hour); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for empty subject, got %v", err)
	}
	if _, err := p.GenerateToken(&authdomain.Claims{Subject: "x", Role: "root"}, time.Hour); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for unknown role, got %v", err)
	}
}
