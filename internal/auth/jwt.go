package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/config"
	"github.com/straye-as/pipeline-api/internal/domain"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrMissingClaim = errors.New("token missing required claim")
)

// Claims are the custom claims carried by pipeline access tokens.
// The subject is the profile id.
type Claims struct {
	OrgID string             `json:"org_id"`
	Email string             `json:"email,omitempty"`
	Name  string             `json:"name,omitempty"`
	Role  domain.ProfileRole `json:"role"`
	jwt.RegisteredClaims
}

// JWTValidator validates and issues HS256 tokens
type JWTValidator struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewJWTValidator creates a new JWT validator
func NewJWTValidator(cfg *config.AuthConfig) *JWTValidator {
	return &JWTValidator{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.JWTIssuer,
		now:    time.Now,
	}
}

// ValidateToken validates a JWT token and returns user context
func (v *JWTValidator) ValidateToken(tokenString string) (*UserContext, error) {
	if len(v.secret) == 0 {
		return nil, fmt.Errorf("%w: no signing secret configured", ErrInvalidToken)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims.userContext()
}

func (c *Claims) userContext() (*UserContext, error) {
	profileID, err := uuid.Parse(c.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	orgID, err := uuid.Parse(c.OrgID)
	if err != nil {
		return nil, fmt.Errorf("%w: org_id", ErrMissingClaim)
	}

	role := c.Role
	if !role.IsValid() {
		role = domain.ProfileRoleUser
	}

	return &UserContext{
		ProfileID:   profileID,
		OrgID:       orgID,
		DisplayName: c.Name,
		Email:       c.Email,
		Role:        role,
		AuthType:    AuthTypeJWT,
	}, nil
}

// IssueToken signs a token for user that expires after ttl
func (v *JWTValidator) IssueToken(user *UserContext, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		OrgID: user.OrgID.String(),
		Email: user.Email,
		Name:  user.DisplayName,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ProfileID.String(),
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
