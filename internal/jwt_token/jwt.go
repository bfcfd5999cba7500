package jwttoken

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"renewals/pkg/domain"
	dErrors "renewals/pkg/domain-errors"
)

// Claims are the access-token claims issued by the identity service.
// emp_no may arrive as a JSON number or string.
type Claims struct {
	EmpNo domain.FlexibleInt `json:"emp_no"`
	Role  string             `json:"role"`
	jwt.RegisteredClaims
}

// JWTService validates (and, for tests and tooling, issues) HS256 access tokens.
type JWTService struct {
	signingKey []byte
	issuer     string
}

func NewJWTService(signingKey string, issuer string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
	}
}

func (s *JWTService) GenerateAccessToken(actor domain.Actor, expiresIn time.Duration) (string, error) {
	now := time.Now()
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		EmpNo: domain.FlexibleInt(actor.ID),
		Role:  actor.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	return newToken.SignedString(s.signingKey)
}

func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return s.signingKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if claims.EmpNo <= 0 {
		// Older tokens only carry the employee number as the subject.
		if v, err := strconv.ParseInt(claims.Subject, 10, 64); err == nil {
			claims.EmpNo = domain.FlexibleInt(v)
		}
	}
	return claims, nil
}
