package driven

import "github.com/custodia-labs/marketlink/internal/core/domain"

// AuthAdapter signs and verifies operator bearer tokens.
type AuthAdapter interface {
	GenerateToken(claims *domain.OperatorClaims) (string, error)
	ParseToken(token string) (*domain.OperatorClaims, error)
}
