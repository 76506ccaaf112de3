package auth

// TokenValidator turns a bearer token into verified claims.
// Handlers and middleware depend on this so tests can swap in fixed identities.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// Ensure Service implements TokenValidator
var _ TokenValidator = (*Service)(nil)
