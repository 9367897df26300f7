package interfaces

// -----------------------------------------------------------------------------
// ITokenVerifier defines the contract for access token validation.
// Token issuance lives in an external service; the gateway only verifies.
// -----------------------------------------------------------------------------

type ITokenVerifier interface {

	// Verify checks the access token and returns the owning user id.
	Verify(token string) (int64, error)
}
