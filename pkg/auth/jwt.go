package auth

import (
	"fmt"
	"time"

	"github.com/Abraxas-365/docfill/pkg/kernel"
	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultIssuer   = "docfill"
	DefaultAudience = "docfill-api"
)

// JWTService signs and verifies HS256 access tokens.
type JWTService struct {
	secretKey []byte
	ttl       time.Duration
	issuer    string
}

func NewJWTService(secretKey string, ttl time.Duration, issuer string) *JWTService {
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &JWTService{secretKey: []byte(secretKey), ttl: ttl, issuer: issuer}
}

type Claims struct {
	UserID   kernel.UserID   `json:"user_id"`
	TenantID kernel.TenantID `json:"tenant_id"`
	Email    string          `json:"email,omitempty"`
	Scopes   []string        `json:"scopes"`
	jwt.RegisteredClaims
}

// GenerateAccessToken issues a token carrying ac. Used by operators and
// tests; the API itself only verifies.
func (j *JWTService) GenerateAccessToken(ac kernel.AuthContext) (string, error) {
	now := time.Now()
	scopes := ac.Scopes
	if scopes == nil {
		scopes = []string{}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:   ac.UserID,
		TenantID: ac.TenantID,
		Email:    ac.Email,
		Scopes:   scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   ac.UserID.String(),
			Audience:  []string{DefaultAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})

	signed, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", authErrors.NewWithCause(CodeTokenGenerationFailed, err)
	}
	return signed, nil
}

// ValidateAccessToken verifies signature, issuer, audience and expiry.
func (j *JWTService) ValidateAccessToken(tokenString string) (*kernel.AuthContext, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	},
		jwt.WithIssuer(j.issuer),
		jwt.WithAudience(DefaultAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, ErrInvalidToken(err.Error())
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken("invalid claims")
	}

	ac := &kernel.AuthContext{
		UserID:   claims.UserID,
		TenantID: claims.TenantID,
		Email:    claims.Email,
		Scopes:   claims.Scopes,
	}
	if !ac.IsValid() {
		return nil, ErrInvalidToken("missing user_id")
	}
	return ac, nil
}
