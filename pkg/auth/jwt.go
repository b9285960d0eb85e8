package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/fisioflow/scheduler-api/pkg/tenant"
)

// Claims are the assertions made by the identity collaborator. The
// scheduler trusts them as-is; it never inspects credentials itself.
type Claims struct {
	OrganizationID string `json:"org_id"`
	Role           string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens issued by the identity service.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates the token and returns the tenant scope it
// asserts.
func (v *Verifier) Verify(tokenString string) (tenant.Scope, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return tenant.Scope{}, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return tenant.Scope{}, fmt.Errorf("invalid token claims")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return tenant.Scope{}, fmt.Errorf("invalid subject claim: %w", err)
	}
	orgID, err := uuid.Parse(claims.OrganizationID)
	if err != nil {
		return tenant.Scope{}, fmt.Errorf("invalid org claim: %w", err)
	}

	return tenant.Scope{
		UserID:         userID,
		OrganizationID: orgID,
		Role:           tenant.Role(claims.Role),
	}, nil
}
