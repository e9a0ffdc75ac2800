package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/uporders-backend/pkg/enums"
)

// ErrInvalidClaims is returned for a well-signed token whose identity claims
// cannot be trusted.
var ErrInvalidClaims = errors.New("invalid identity claims")

// AccessTokenPayload is what the caller supplies when minting.
type AccessTokenPayload struct {
	CustomerID uuid.UUID
	Role       enums.CustomerRole
	JTI        string
}

// AccessTokenClaims identify one customer acting in one role.
type AccessTokenClaims struct {
	CustomerID uuid.UUID          `json:"customer_id"`
	Role       enums.CustomerRole `json:"role"`
	jwt.RegisteredClaims
}

// Validate runs after the registered claims checked out. The subject must
// name the same customer so a token cannot carry two identities.
func (c AccessTokenClaims) Validate() error {
	switch {
	case c.CustomerID == uuid.Nil:
		return errors.Join(ErrInvalidClaims, errors.New("customer id missing"))
	case c.Subject != c.CustomerID.String():
		return errors.Join(ErrInvalidClaims, errors.New("subject does not match customer"))
	case !c.Role.IsValid():
		return errors.Join(ErrInvalidClaims, errors.New("unknown role"))
	}
	return nil
}
